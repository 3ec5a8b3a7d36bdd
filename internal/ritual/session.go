package ritual

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusActive    Status = "active"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
)

// ErrSessionClosed is returned by Feed once a session is complete or cancelled.
var ErrSessionClosed = errors.New("ritual session is closed")

// Session owns the interpreter state of one casting attempt.
//
// Feed must be called from a single goroutine (the frame pipeline).
// Cancel, Status and Last are safe to call from anywhere.
type Session struct {
	id   string
	kind Kind

	mu         sync.Mutex
	state      State
	status     Status
	last       Outcome
	frames     int
	onComplete func(*Session, Outcome)
}

// NewSession creates an active session for the given kind.
func NewSession(kind Kind) (*Session, error) {
	state, err := NewState(kind)
	if err != nil {
		return nil, err
	}
	return &Session{
		id:     uuid.New().String(),
		kind:   kind,
		state:  state,
		status: StatusActive,
		last:   Outcome{Kind: kind},
	}, nil
}

// NewRandomSession creates a session whose kind is drawn uniformly from rng.
func NewRandomSession(rng *rand.Rand) *Session {
	s, _ := NewSession(RandomKind(rng))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Kind returns the ritual kind, fixed for the session's lifetime.
func (s *Session) Kind() Kind { return s.kind }

// OnComplete registers the callback fired once when the ritual completes.
// It never fires after Cancel.
func (s *Session) OnComplete(fn func(*Session, Outcome)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = fn
}

// Feed interprets one observation. It returns ErrSessionClosed without
// touching the state once the session is complete or cancelled.
func (s *Session) Feed(obs Observation) (Outcome, error) {
	s.mu.Lock()
	if s.status != StatusActive {
		last := s.last
		s.mu.Unlock()
		return last, ErrSessionClosed
	}

	next, out := Step(s.state, obs)
	s.state = next
	s.last = out
	s.frames++

	var callback func(*Session, Outcome)
	if out.Complete {
		s.status = StatusComplete
		callback = s.onComplete
	}
	s.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(s, out)
	}
	return out, nil
}

// Cancel stops the session. It reports whether the session was active;
// cancelling a finished session is a no-op.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return false
	}
	s.status = StatusCancelled
	return true
}

// Active reports whether the session still accepts frames.
func (s *Session) Active() bool {
	return s.Status() == StatusActive
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Last returns the most recent outcome.
func (s *Session) Last() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Frames returns the number of observations interpreted so far.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// State returns a copy of the interpreter state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
