package ritual

import (
	"math"

	"github.com/ayusman/spellkitchen/internal/detector"
)

const (
	// RotationRevolutions is the number of net clockwise turns the grinding ritual needs.
	RotationRevolutions = 8

	rotationGoal = 2 * math.Pi * RotationRevolutions

	// rotationTolerance absorbs float rounding accumulated over many deltas.
	// Thirty-two exact quarter turns can sum to a hair under 16π; anything
	// further than this from the goal is a real shortfall and does not
	// complete.
	rotationTolerance = 1e-9
)

// RotationalState accumulates clockwise fingertip rotation around the frame center.
type RotationalState struct {
	LastAngle     float64 `json:"last_angle"`
	HasAngle      bool    `json:"has_angle"`
	TotalRotation float64 `json:"total_rotation"`
	Done          bool    `json:"done"`
}

func (RotationalState) Kind() Kind        { return KindRotational }
func (s RotationalState) Completed() bool { return s.Done }
func (RotationalState) isState()          {}

// Progress returns the completion percentage (0-100).
func (s RotationalState) Progress() float64 {
	if s.Done {
		return 100
	}
	return math.Min(100, s.TotalRotation/(2*math.Pi)/RotationRevolutions*100)
}

func (s RotationalState) outcome() Outcome {
	return Outcome{Kind: KindRotational, Progress: s.Progress(), Complete: s.Done}
}

// FingertipAngle returns the angle of p around the frame center (0.5, 0.5).
// With image coordinates (y down) increasing angles run clockwise on screen.
func FingertipAngle(p detector.Point3D) float64 {
	return math.Atan2(p.Y-0.5, p.X-0.5)
}

// WrapAngle folds an angular difference into (-π, π].
func WrapAngle(delta float64) float64 {
	if delta > math.Pi {
		delta -= 2 * math.Pi
	} else if delta <= -math.Pi {
		delta += 2 * math.Pi
	}
	return delta
}

// StepRotational interprets one frame for the grinding ritual.
//
// Only the first hand is used. Frames without a hand leave the state as is,
// including LastAngle, so the first frame after the hand reappears is
// measured against the last known angle.
func StepRotational(s RotationalState, obs Observation) (RotationalState, Outcome) {
	if s.Done {
		return s, s.outcome()
	}
	hand, ok := obs.firstHand()
	if !ok {
		return s, s.outcome()
	}
	return advanceRotation(s, FingertipAngle(hand.Points[detector.IndexTip]))
}

// advanceRotation applies one fingertip angle. Counter-clockwise deltas are
// dropped: reversing stalls progress but never loses it.
func advanceRotation(s RotationalState, angle float64) (RotationalState, Outcome) {
	if s.Done {
		return s, s.outcome()
	}
	if s.HasAngle {
		if delta := WrapAngle(angle - s.LastAngle); delta > 0 {
			s.TotalRotation += delta
		}
	}
	s.LastAngle = angle
	s.HasAngle = true

	if s.TotalRotation >= rotationGoal-rotationTolerance {
		s.Done = true
	}
	return s, s.outcome()
}
