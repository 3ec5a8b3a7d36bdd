package ritual

import "github.com/ayusman/spellkitchen/internal/detector"

const (
	// PinchEnterDistance is the thumb-index gap below which a pinch starts.
	PinchEnterDistance = 0.04
	// PinchExitDistance is the gap above which a pinch is released.
	PinchExitDistance = 0.08
	// PinchComboTarget is the number of pinches that completes the ritual.
	PinchComboTarget = 10
)

// PinchState tracks the pinch hysteresis and the combo count.
type PinchState struct {
	IsPinching bool `json:"is_pinching"`
	ComboCount int  `json:"combo_count"`
	Done       bool `json:"done"`
}

func (PinchState) Kind() Kind        { return KindPinch }
func (s PinchState) Completed() bool { return s.Done }
func (PinchState) isState()          {}

func (s PinchState) outcome() Outcome {
	return Outcome{Kind: KindPinch, Progress: float64(s.ComboCount), Complete: s.Done}
}

// StepPinch interprets one frame for the pinch ritual using the first hand.
// Frames without a hand leave the state untouched.
func StepPinch(s PinchState, obs Observation) (PinchState, Outcome) {
	if s.Done {
		return s, s.outcome()
	}
	hand, ok := obs.firstHand()
	if !ok {
		return s, s.outcome()
	}
	gap := detector.Distance2D(hand.Points[detector.ThumbTip], hand.Points[detector.IndexTip])
	return advancePinch(s, gap)
}

// advancePinch applies one thumb-index distance. A combo is counted on the
// transition into pinching only; gaps between the two thresholds keep the
// current state.
func advancePinch(s PinchState, gap float64) (PinchState, Outcome) {
	if s.Done {
		return s, s.outcome()
	}
	switch {
	case gap < PinchEnterDistance:
		if !s.IsPinching {
			s.IsPinching = true
			s.ComboCount++
			if s.ComboCount >= PinchComboTarget {
				s.Done = true
			}
		}
	case gap > PinchExitDistance:
		s.IsPinching = false
	}
	return s, s.outcome()
}
