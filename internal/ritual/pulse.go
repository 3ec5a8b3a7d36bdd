package ritual

import (
	"math"
	"time"

	"github.com/ayusman/spellkitchen/internal/detector"
)

const (
	// PulseDistance is the middle-finger-base gap under which the hands count as joined.
	PulseDistance = 0.06
	// PulseHold is how long the hands must stay joined without a break.
	PulseHold = 5 * time.Second

	maxLineWidth = 20.0
	minLineWidth = 2.0
	// overlayFalloff is the hand distance at which the overlay fades out.
	overlayFalloff = 0.5
)

// PulseState is the Idle/Timing machine of the pulse ritual.
type PulseState struct {
	Timing     bool      `json:"timing"`
	PulseStart time.Time `json:"pulse_start"`
	Density    float64   `json:"density"`
	Done       bool      `json:"done"`
}

func (PulseState) Kind() Kind        { return KindPulse }
func (s PulseState) Completed() bool { return s.Done }
func (PulseState) isState()          {}

// Held returns how long the hands have been joined as of at.
func (s PulseState) Held(at time.Time) time.Duration {
	if !s.Timing {
		return 0
	}
	return at.Sub(s.PulseStart)
}

// EnergyDensity maps the hand distance to the 0-100 progress metric.
func EnergyDensity(distance float64) float64 {
	return math.Min(100, 0.1/(distance+0.01)*100)
}

// PulseOverlay derives the cosmetic connecting-line hints from the distance.
func PulseOverlay(distance float64) *Overlay {
	intensity := math.Max(0, math.Min(1, 1-distance/overlayFalloff))
	return &Overlay{
		Distance:  distance,
		LineWidth: minLineWidth + (maxLineWidth-minLineWidth)*intensity,
		Intensity: intensity,
	}
}

// StepPulse interprets one frame for the pulse ritual.
//
// Anything other than exactly two hands stalls the ritual: the timer is
// reset and the density reported as 0.
func StepPulse(s PulseState, obs Observation) (PulseState, Outcome) {
	if s.Done {
		return s, Outcome{Kind: KindPulse, Progress: s.Density, Complete: true}
	}
	if len(obs.Hands) != 2 {
		s.Timing = false
		s.PulseStart = time.Time{}
		s.Density = 0
		return s, Outcome{Kind: KindPulse}
	}
	distance := detector.Distance2D(obs.Hands[0].Points[detector.MiddleMCP], obs.Hands[1].Points[detector.MiddleMCP])
	return advancePulse(s, distance, obs.At)
}

// advancePulse applies one hand distance observed at time at.
func advancePulse(s PulseState, distance float64, at time.Time) (PulseState, Outcome) {
	s.Density = EnergyDensity(distance)

	if distance < PulseDistance {
		if !s.Timing {
			s.Timing = true
			s.PulseStart = at
		}
		if s.Held(at) >= PulseHold {
			s.Done = true
		}
	} else {
		s.Timing = false
		s.PulseStart = time.Time{}
	}

	return s, Outcome{
		Kind:     KindPulse,
		Progress: s.Density,
		Complete: s.Done,
		Overlay:  PulseOverlay(distance),
	}
}
