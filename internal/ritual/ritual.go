// Package ritual interprets streams of hand landmarks as casting rituals.
//
// Each ritual kind has a pure step function that takes the previous state
// and one frame's observation and returns the next state plus an Outcome.
// A Session owns exactly one state and feeds it frames until the ritual
// completes or is cancelled.
package ritual

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/ayusman/spellkitchen/internal/detector"
)

// Kind identifies which ritual a session performs.
type Kind string

const (
	// KindRotational is the grinding ritual: circle the index fingertip clockwise.
	KindRotational Kind = "rotational"
	// KindPinch is the pinch-combo ritual: pinch thumb and index finger repeatedly.
	KindPinch Kind = "pinch"
	// KindPulse is the pulse ritual: hold both hands close together.
	KindPulse Kind = "pulse"
)

// Kinds lists every ritual kind in a stable order.
var Kinds = []Kind{KindRotational, KindPinch, KindPulse}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown ritual kind %q", s)
}

// RandomKind picks a kind uniformly from Kinds.
func RandomKind(rng *rand.Rand) Kind {
	return Kinds[rng.Intn(len(Kinds))]
}

// Observation is what the landmark source saw in one frame.
type Observation struct {
	Hands []detector.HandLandmarks
	At    time.Time
}

// firstHand returns the first detected hand, if any.
func (o Observation) firstHand() (detector.HandLandmarks, bool) {
	if len(o.Hands) == 0 {
		return detector.HandLandmarks{}, false
	}
	return o.Hands[0], true
}

// Overlay carries cosmetic rendering hints for the browser.
type Overlay struct {
	Distance  float64 `json:"distance"`
	LineWidth float64 `json:"line_width"`
	Intensity float64 `json:"intensity"`
}

// Outcome is derived from the state after each frame.
// Progress is ritual specific: percent for rotational, combo count for
// pinch, energy density for pulse. Complete is authoritative.
type Outcome struct {
	Kind     Kind     `json:"kind"`
	Progress float64  `json:"progress"`
	Complete bool     `json:"complete"`
	Overlay  *Overlay `json:"overlay,omitempty"`
}

// State is the accumulator of one ritual kind.
type State interface {
	Kind() Kind
	// Completed reports whether the state is terminal.
	Completed() bool

	isState()
}

// NewState returns the zero state for kind.
func NewState(kind Kind) (State, error) {
	switch kind {
	case KindRotational:
		return RotationalState{}, nil
	case KindPinch:
		return PinchState{}, nil
	case KindPulse:
		return PulseState{}, nil
	default:
		return nil, fmt.Errorf("unknown ritual kind %q", kind)
	}
}

// Step advances s by one observation using the interpreter matching its kind.
func Step(s State, obs Observation) (State, Outcome) {
	switch st := s.(type) {
	case RotationalState:
		return StepRotational(st, obs)
	case PinchState:
		return StepPinch(st, obs)
	case PulseState:
		return StepPulse(st, obs)
	default:
		// State is sealed; only a nil state lands here.
		return s, Outcome{}
	}
}
