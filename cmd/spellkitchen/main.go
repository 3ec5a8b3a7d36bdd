// Spellkitchen turns a webcam and a shopping list into a casting ritual.
//
// It loads configuration, opens the camera pipeline, and serves the HTTP
// API, MJPEG preview and event stream. With --tray it also shows a system
// tray menu. Shutdown is handled gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/spellkitchen/internal/app"
	"github.com/ayusman/spellkitchen/internal/capture"
	"github.com/ayusman/spellkitchen/internal/config"
	"github.com/ayusman/spellkitchen/internal/detector"
	"github.com/ayusman/spellkitchen/internal/events"
	"github.com/ayusman/spellkitchen/internal/recipe"
	"github.com/ayusman/spellkitchen/internal/server"
	"github.com/ayusman/spellkitchen/internal/tray"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", defaultConfigPath(), "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides config)")
		camera     = pflag.Int("camera", -1, "Camera device index (overrides config)")
		withTray   = pflag.Bool("tray", false, "Show the system tray menu")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		log.Fatalf("config env failed: %v", err)
	}
	if pflag.CommandLine.Changed("bind") {
		cfg.Server.Bind = *bind
	}
	if *camera >= 0 {
		cfg.Camera.Device = *camera
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = findWebDir()
	}

	logger := log.New(os.Stdout, "spellkitchen ", log.LstdFlags|log.Lmicroseconds)
	if cfg.Server.StaticDir != "" {
		logger.Printf("serving static files from %s", cfg.Server.StaticDir)
	}
	if cfg.Recipe.APIKey == "" {
		logger.Println("SPELLKITCHEN_GEMINI_API_KEY is not set; recipes will fail to manifest")
	}

	hub := server.NewHub()
	var tr *tray.Tray
	publishers := events.Multi{hub}
	if *withTray {
		tr = tray.New()
		publishers = append(publishers, tr)
	}

	preview := capture.NewPreview()
	a := app.New(app.Config{
		Camera:   capture.NewCamera(capture.Options{Device: cfg.Camera.Device, FPS: cfg.Camera.FPS}),
		Detector: newDetector(cfg.Detector, logger),
		Recipes: recipe.NewClient(recipe.Config{
			APIKey:   cfg.Recipe.APIKey,
			Model:    cfg.Recipe.Model,
			Endpoint: cfg.Recipe.Endpoint,
			Timeout:  cfg.Recipe.Timeout(),
		}),
		Events:        publishers,
		Preview:       preview,
		FPS:           cfg.Camera.FPS,
		DetectTimeout: cfg.Detector.DetectTimeout(),
		RecipeTimeout: cfg.Recipe.Timeout(),
		Logger:        logger,
		Debug:         cfg.Logging.Debug,
	})

	// Without a camera the ritual routes answer 503; recipes still work.
	if err := a.Start(); err != nil {
		logger.Printf("camera unavailable, rituals disabled: %v", err)
	}
	defer a.Stop()

	srv := server.New(server.Config{
		StaticDir: cfg.Server.StaticDir,
		App:       a,
		Hub:       hub,
		Preview:   preview,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx, cfg.Server.Bind) })

	if tr != nil {
		url := browserURL(cfg.Server.Bind)
		tr.OnBegin(func() {
			_, err := a.Recast("")
			switch {
			case errors.Is(err, recipe.ErrNoIngredients):
				logger.Printf("tray: begin ritual: no ingredients yet, start one from the browser first")
			case err != nil:
				logger.Printf("tray: begin ritual: %v", err)
			}
		})
		tr.OnDispel(func() {
			if err := a.CancelSession(); err != nil && !errors.Is(err, app.ErrNoSession) {
				logger.Printf("tray: dispel ritual: %v", err)
			}
		})
		tr.OnOpen(func() {
			if err := openBrowser(url); err != nil {
				logger.Printf("tray: open browser: %v", err)
			}
		})
		tr.OnQuit(stop)

		// The tray loop must own the main goroutine.
		go func() {
			<-gctx.Done()
			tr.Quit()
		}()
		tr.Run()
		stop()
	}

	if err := g.Wait(); err != nil {
		logger.Printf("spellkitchen failed: %v", err)
		a.Stop()
		os.Exit(1)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}

// newDetector prefers MediaPipe and falls back to a detector that never
// sees a hand, so the preview and API still work without Python.
func newDetector(cfg config.DetectorConfig, logger *log.Logger) detector.Detector {
	mp, err := detector.NewMediaPipeDetector(detector.Config{
		MaxHands:      cfg.MaxHands,
		MinConfidence: cfg.MinConfidence,
		ScriptPath:    cfg.ScriptPath,
		PythonPath:    cfg.PythonPath,
	})
	if err != nil {
		logger.Printf("MediaPipe not available (%v), using mock detector", err)
		return detector.NewMockDetector()
	}
	logger.Println("using MediaPipe hand detection")
	return mp
}

// defaultConfigPath returns ~/.spellkitchen/spellkitchen.toml.
func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "spellkitchen.toml"
	}
	return filepath.Join(homeDir, ".spellkitchen", "spellkitchen.toml")
}

// browserURL turns a bind address into a URL a local browser can open.
func browserURL(bind string) string {
	host := bind
	if strings.HasPrefix(host, ":") || strings.HasPrefix(host, "0.0.0.0:") {
		host = "127.0.0.1:" + host[strings.LastIndex(host, ":")+1:]
	}
	return "http://" + host + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.spellkitchen/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if absPath, err := filepath.Abs(p); err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeWebDir := filepath.Join(homeDir, ".spellkitchen", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
