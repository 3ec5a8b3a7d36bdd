// Package app runs the frame pipeline and owns the single active ritual
// session.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/ayusman/spellkitchen/internal/capture"
	"github.com/ayusman/spellkitchen/internal/detector"
	"github.com/ayusman/spellkitchen/internal/events"
	"github.com/ayusman/spellkitchen/internal/recipe"
	"github.com/ayusman/spellkitchen/internal/ritual"
)

// Pipeline defaults.
const (
	DefaultFPS           = capture.DefaultFPS
	DefaultDetectTimeout = 500 * time.Millisecond
	DefaultRecipeTimeout = 60 * time.Second
)

var (
	// ErrSessionActive is returned when a ritual is started while another is running.
	ErrSessionActive = errors.New("a ritual is already in progress")

	// ErrNoSession is returned when there is no active ritual to act on.
	ErrNoSession = errors.New("no ritual in progress")

	// ErrPipelineStopped is returned when a ritual is started without a running camera pipeline.
	ErrPipelineStopped = errors.New("frame pipeline is not running")
)

// Config holds the collaborators and settings of an App.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Recipes  recipe.Generator
	Events   events.Publisher
	Preview  *capture.Preview

	FPS           int
	DetectTimeout time.Duration
	RecipeTimeout time.Duration

	// Rand picks the ritual kind when none is requested.
	Rand *rand.Rand
	// Now stamps observations; tests replace it to drive the pulse timer.
	Now func() time.Time

	Logger *log.Logger
	Debug  bool
}

// Ritual is a snapshot of the current session for callers outside the
// pipeline.
type Ritual struct {
	ID          string              `json:"id"`
	Kind        ritual.Kind         `json:"kind"`
	Status      ritual.Status       `json:"status"`
	Progress    float64             `json:"progress"`
	Complete    bool                `json:"complete"`
	Ingredients []recipe.Ingredient `json:"ingredients,omitempty"`
	Recipe      *recipe.Result      `json:"recipe,omitempty"`
	RecipeError string              `json:"recipeError,omitempty"`
}

// current is the session plus what it was started with.
type current struct {
	session     *ritual.Session
	ingredients []recipe.Ingredient
	recipe      *recipe.Result
	recipeErr   error
}

// App orchestrates camera, detector, ritual session and recipe requests.
type App struct {
	config Config
	logger *log.Logger

	mu      sync.Mutex
	current *current
	rng     *rand.Rand
	stopCh  chan struct{}
	doneCh  chan struct{}

	// detectSlot holds one token while a detection is in flight.
	detectSlot chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	jobs   sync.WaitGroup
}

// New creates an App, filling in defaults for zero config values.
func New(config Config) *App {
	if config.FPS <= 0 {
		config.FPS = DefaultFPS
	}
	if config.DetectTimeout <= 0 {
		config.DetectTimeout = DefaultDetectTimeout
	}
	if config.RecipeTimeout <= 0 {
		config.RecipeTimeout = DefaultRecipeTimeout
	}
	if config.Events == nil {
		config.Events = events.Discard{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	rng := config.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		config:     config,
		logger:     logger,
		rng:        rng,
		detectSlot: make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start opens the camera and begins the frame pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if a.config.Camera == nil {
		return capture.ErrCameraNotOpen
	}
	if err := a.config.Camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.config.Camera.SetFPS(a.config.FPS)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	a.logger.Printf("frame pipeline started at %d fps", a.config.FPS)
	return nil
}

// Stop cancels any active ritual, halts the pipeline and releases the
// camera and detector. Pending recipe requests are cancelled. An App
// cannot be started again after Stop.
func (a *App) Stop() {
	a.CancelSession()

	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}

	a.cancel()
	a.jobs.Wait()

	if a.config.Camera != nil {
		if err := a.config.Camera.Close(); err != nil {
			a.logger.Printf("error closing camera: %v", err)
		}
	}
	if a.config.Detector != nil {
		if err := a.config.Detector.Close(); err != nil {
			a.logger.Printf("error closing detector: %v", err)
		}
	}
	a.logger.Println("frame pipeline stopped")
}

// Running reports whether the frame pipeline is running.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCh != nil
}

// Preview returns the latest-frame store fed by the pipeline, or nil.
func (a *App) Preview() *capture.Preview {
	return a.config.Preview
}

// StartSession begins a ritual for the given ingredients. An empty kind
// picks one at random. Ingredients are validated before any session state
// exists, and a recipe is requested once the ritual completes.
func (a *App) StartSession(ingredients []recipe.Ingredient, kind ritual.Kind) (*ritual.Session, error) {
	ingredients, err := recipe.Validate(ingredients)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh == nil {
		return nil, ErrPipelineStopped
	}
	if a.current != nil && a.current.session.Active() {
		return nil, ErrSessionActive
	}

	var s *ritual.Session
	if kind == "" {
		s = ritual.NewRandomSession(a.rng)
	} else if s, err = ritual.NewSession(kind); err != nil {
		return nil, err
	}

	cur := &current{session: s, ingredients: ingredients}
	s.OnComplete(func(s *ritual.Session, out ritual.Outcome) {
		a.onComplete(cur, out)
	})
	a.current = cur

	a.logger.Printf("ritual %s started: %s", s.ID(), s.Kind())
	a.config.Events.Publish(events.RitualStarted(s.ID(), s.Kind()))
	return s, nil
}

// Recast starts a new ritual with the ingredients of the most recent
// session. It returns recipe.ErrNoIngredients when there is none.
func (a *App) Recast(kind ritual.Kind) (*ritual.Session, error) {
	a.mu.Lock()
	var ingredients []recipe.Ingredient
	if a.current != nil {
		ingredients = a.current.ingredients
	}
	a.mu.Unlock()

	return a.StartSession(ingredients, kind)
}

// CancelSession stops the active ritual. It returns ErrNoSession when no
// ritual is in progress.
func (a *App) CancelSession() error {
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()

	if cur == nil || !cur.session.Cancel() {
		return ErrNoSession
	}

	s := cur.session
	a.logger.Printf("ritual %s cancelled after %d frames", s.ID(), s.Frames())
	a.config.Events.Publish(events.Cancelled(s.ID(), s.Kind()))
	return nil
}

// Current returns a snapshot of the most recent session. ok is false when
// no session was ever started.
func (a *App) Current() (r Ritual, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		return Ritual{}, false
	}
	s := a.current.session
	last := s.Last()
	r = Ritual{
		ID:          s.ID(),
		Kind:        s.Kind(),
		Status:      s.Status(),
		Progress:    last.Progress,
		Complete:    last.Complete,
		Ingredients: a.current.ingredients,
		Recipe:      a.current.recipe,
	}
	if a.current.recipeErr != nil {
		r.RecipeError = recipe.ErrManifestationFailed.Error()
	}
	return r, true
}

// GenerateRecipe requests a recipe directly, without a ritual.
func (a *App) GenerateRecipe(ctx context.Context, ingredients []recipe.Ingredient) (*recipe.Result, error) {
	if a.config.Recipes == nil {
		return nil, fmt.Errorf("%w: no recipe generator configured", recipe.ErrManifestationFailed)
	}
	ctx, cancel := context.WithTimeout(ctx, a.config.RecipeTimeout)
	defer cancel()
	return a.config.Recipes.Generate(ctx, ingredients)
}

// onComplete runs on the pipeline goroutine when the session completes.
func (a *App) onComplete(cur *current, out ritual.Outcome) {
	s := cur.session
	a.logger.Printf("ritual %s complete after %d frames", s.ID(), s.Frames())
	a.config.Events.Publish(events.Complete(s.ID(), out))

	a.jobs.Add(1)
	go func() {
		defer a.jobs.Done()

		res, err := a.GenerateRecipe(a.ctx, cur.ingredients)

		a.mu.Lock()
		cur.recipe, cur.recipeErr = res, err
		a.mu.Unlock()

		if err != nil {
			a.logger.Printf("ritual %s: recipe request failed: %v", s.ID(), err)
			a.config.Events.Publish(events.RecipeFailed(s.ID()))
			return
		}
		a.logger.Printf("ritual %s: recipe ready: %s", s.ID(), res.DishName)
		a.config.Events.Publish(events.Recipe(s.ID(), res))
	}()
}

// activeSession returns the session the pipeline should feed, or nil.
func (a *App) activeSession() *ritual.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil || !a.current.session.Active() {
		return nil
	}
	return a.current.session
}
