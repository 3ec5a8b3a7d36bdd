// Package events defines the JSON envelopes pushed to browser clients and
// the publishers that carry them.
package events

import (
	"sync"
	"time"

	"github.com/ayusman/spellkitchen/internal/recipe"
	"github.com/ayusman/spellkitchen/internal/ritual"
)

// Type names an event on the wire.
type Type string

const (
	TypeRitualStarted Type = "ritual_started"
	TypeProgress      Type = "progress"
	TypeComplete      Type = "complete"
	TypeCancelled     Type = "cancelled"
	TypeRecipe        Type = "recipe"
	TypeRecipeFailed  Type = "recipe_failed"
	TypeHeartbeat     Type = "heartbeat"
)

// Event is the envelope every client message uses. Fields that do not
// apply to a type are omitted.
type Event struct {
	Type      Type            `json:"type"`
	TS        int64           `json:"ts"`
	SessionID string          `json:"sessionId,omitempty"`
	Kind      ritual.Kind     `json:"kind,omitempty"`
	Progress  *float64        `json:"progress,omitempty"`
	Overlay   *ritual.Overlay `json:"overlay,omitempty"`
	Recipe    *recipe.Result  `json:"recipe,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Publisher accepts events. Implementations must not block the caller.
type Publisher interface {
	Publish(Event)
}

func stamp(t Type, sessionID string, kind ritual.Kind) Event {
	return Event{Type: t, TS: time.Now().UnixMilli(), SessionID: sessionID, Kind: kind}
}

func RitualStarted(sessionID string, kind ritual.Kind) Event {
	return stamp(TypeRitualStarted, sessionID, kind)
}

func Progress(sessionID string, out ritual.Outcome) Event {
	e := stamp(TypeProgress, sessionID, out.Kind)
	p := out.Progress
	e.Progress = &p
	e.Overlay = out.Overlay
	return e
}

func Complete(sessionID string, out ritual.Outcome) Event {
	e := stamp(TypeComplete, sessionID, out.Kind)
	p := out.Progress
	e.Progress = &p
	return e
}

func Cancelled(sessionID string, kind ritual.Kind) Event {
	return stamp(TypeCancelled, sessionID, kind)
}

func Recipe(sessionID string, res *recipe.Result) Event {
	e := stamp(TypeRecipe, sessionID, "")
	e.Recipe = res
	return e
}

// RecipeFailed carries a user-facing message, never the upstream error text.
func RecipeFailed(sessionID string) Event {
	e := stamp(TypeRecipeFailed, sessionID, "")
	e.Error = recipe.ErrManifestationFailed.Error()
	return e
}

func Heartbeat() Event {
	return stamp(TypeHeartbeat, "", "")
}

// Multi fans one event out to several publishers. Nil entries are skipped.
type Multi []Publisher

func (m Multi) Publish(e Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(e)
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}

// Recorder keeps every published event in memory. It is meant for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t Type) int {
	n := 0
	for _, e := range r.Events() {
		if e.Type == t {
			n++
		}
	}
	return n
}

// WaitFor blocks until an event of type t has been recorded or the timeout
// passes. It returns the first matching event.
func (r *Recorder) WaitFor(t Type, timeout time.Duration) (Event, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		for _, e := range r.Events() {
			if e.Type == t {
				return e, true
			}
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return Event{}, false
		}
	}
}
