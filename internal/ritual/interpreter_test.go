package ritual

import (
	"math"
	"testing"
	"time"

	"github.com/ayusman/spellkitchen/internal/detector"
)

const epsilon = 1e-9

func oneHand(h detector.HandLandmarks) Observation {
	return Observation{Hands: []detector.HandLandmarks{h}, At: time.Now()}
}

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		name  string
		delta float64
		want  float64
	}{
		{"zero", 0, 0},
		{"small positive", 0.5, 0.5},
		{"small negative", -0.5, -0.5},
		{"just over pi", math.Pi + 0.1, -math.Pi + 0.1},
		{"just under minus pi", -math.Pi - 0.1, math.Pi - 0.1},
		{"pi stays", math.Pi, math.Pi},
		{"minus pi folds to pi", -math.Pi, math.Pi},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WrapAngle(tt.delta); math.Abs(got-tt.want) > epsilon {
				t.Errorf("WrapAngle(%f) = %f, want %f", tt.delta, got, tt.want)
			}
		})
	}
}

func TestRotational_ExactEightRevolutions(t *testing.T) {
	// Quarter turns: 32 deltas of π/2 make 16π.
	cycle := []float64{0, math.Pi / 2, math.Pi, -math.Pi / 2}

	var s RotationalState
	var out Outcome
	for i := 0; i <= 32; i++ {
		s, out = advanceRotation(s, cycle[i%len(cycle)])

		if i < 32 {
			if out.Complete {
				t.Fatalf("completed early after %d quarter turns (total %f)", i, s.TotalRotation)
			}
			if out.Progress >= 100 {
				t.Fatalf("progress reached %f after %d quarter turns", out.Progress, i)
			}
		}
	}

	if !out.Complete {
		t.Fatalf("expected completion after 16π, total = %f", s.TotalRotation)
	}
	if out.Progress != 100 {
		t.Errorf("progress = %f, want exactly 100", out.Progress)
	}
	if math.Abs(s.TotalRotation-16*math.Pi) > 1e-9 {
		t.Errorf("total rotation = %f, want %f", s.TotalRotation, 16*math.Pi)
	}
}

func TestRotational_HalfwayProgress(t *testing.T) {
	cycle := []float64{0, math.Pi / 2, math.Pi, -math.Pi / 2}

	var s RotationalState
	var out Outcome
	// 16 quarter turns = 4 revolutions = 50%.
	for i := 0; i <= 16; i++ {
		s, out = advanceRotation(s, cycle[i%len(cycle)])
	}

	if math.Abs(out.Progress-50) > 1e-6 {
		t.Errorf("progress = %f, want 50", out.Progress)
	}
}

func TestRotational_CounterClockwiseNeverAdvances(t *testing.T) {
	var s RotationalState
	var out Outcome
	// Step backwards by 0.1 rad for several full turns, crossing ±π repeatedly.
	for i := 0; i < 300; i++ {
		s, out = advanceRotation(s, math.Remainder(-0.1*float64(i), 2*math.Pi))
		if out.Progress != 0 {
			t.Fatalf("progress = %f after %d counter-clockwise steps, want 0", out.Progress, i)
		}
		if out.Complete {
			t.Fatal("counter-clockwise motion completed the ritual")
		}
	}
}

func TestRotational_ReversalStallsWithoutLoss(t *testing.T) {
	var s RotationalState
	for _, a := range []float64{0, 0.5, 1.0} {
		s, _ = advanceRotation(s, a)
	}
	before := s.TotalRotation

	for _, a := range []float64{0.8, 0.4, 0.0} {
		s, _ = advanceRotation(s, a)
	}
	if s.TotalRotation != before {
		t.Errorf("total rotation changed from %f to %f on reversal", before, s.TotalRotation)
	}
}

func TestRotational_WrapAroundIsSmallDelta(t *testing.T) {
	var s RotationalState
	s, _ = advanceRotation(s, 3.0)
	s, _ = advanceRotation(s, -3.0)

	want := 2*math.Pi - 6.0 // ~0.283
	if math.Abs(s.TotalRotation-want) > epsilon {
		t.Errorf("total rotation = %f, want %f", s.TotalRotation, want)
	}
}

func TestStepRotational_NoHandKeepsState(t *testing.T) {
	var s RotationalState
	s, _ = StepRotational(s, oneHand(detector.FingertipOnCircle(0.2, 0)))
	if !s.HasAngle {
		t.Fatal("expected angle to be recorded")
	}

	next, out := StepRotational(s, Observation{At: time.Now()})
	if next != s {
		t.Errorf("state changed on empty frame: %+v -> %+v", s, next)
	}
	if out.Complete || out.Progress != 0 {
		t.Errorf("unexpected outcome on empty frame: %+v", out)
	}
}

func TestAdvanceRotation_ToleranceOnlyCoversRounding(t *testing.T) {
	tests := []struct {
		name     string
		short    float64
		wantDone bool
	}{
		{"rounding error", 1e-12, true},
		{"real shortfall", 1e-6, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := RotationalState{TotalRotation: rotationGoal - tt.short, LastAngle: 1, HasAngle: true}
			s, out := advanceRotation(s, 1)
			if s.Done != tt.wantDone || out.Complete != tt.wantDone {
				t.Fatalf("done = %v, complete = %v, want %v", s.Done, out.Complete, tt.wantDone)
			}
			if !tt.wantDone && out.Progress >= 100 {
				t.Errorf("progress = %f before completion", out.Progress)
			}
		})
	}
}

func TestStepRotational_StaleAngleAfterGap(t *testing.T) {
	var s RotationalState
	s, _ = StepRotational(s, oneHand(detector.FingertipOnCircle(0.2, 0)))
	s, _ = StepRotational(s, Observation{})
	s, _ = StepRotational(s, Observation{})
	s, _ = StepRotational(s, oneHand(detector.FingertipOnCircle(0.2, math.Pi/2)))

	// The jump across the gap is measured against the last known angle.
	if math.Abs(s.TotalRotation-math.Pi/2) > 1e-6 {
		t.Errorf("total rotation = %f, want %f", s.TotalRotation, math.Pi/2)
	}
}

func pinchSequence(t *testing.T, gaps []float64) (PinchState, []Outcome) {
	t.Helper()
	var s PinchState
	outs := make([]Outcome, 0, len(gaps))
	for _, g := range gaps {
		var out Outcome
		s, out = StepPinch(s, oneHand(detector.PinchLandmarks(g)))
		outs = append(outs, out)
	}
	return s, outs
}

func TestPinch_EdgeTriggered(t *testing.T) {
	s, _ := pinchSequence(t, []float64{0.10, 0.03, 0.03, 0.10, 0.03})

	if s.ComboCount != 2 {
		t.Errorf("combo count = %d, want 2", s.ComboCount)
	}
	if !s.IsPinching {
		t.Error("expected to end in pinching state")
	}
}

func TestPinch_DeadZoneHoldsState(t *testing.T) {
	tests := []struct {
		name      string
		gaps      []float64
		wantPinch bool
		wantCombo int
	}{
		{"dip into dead zone keeps pinch", []float64{0.03, 0.05}, true, 1},
		{"dead zone then re-close does not recount", []float64{0.03, 0.05, 0.07, 0.03}, true, 1},
		{"release above exit threshold", []float64{0.03, 0.09}, false, 1},
		{"dead zone from open does not pinch", []float64{0.10, 0.05}, false, 0},
		{"exactly enter threshold is not a pinch", []float64{0.04}, false, 0},
		{"exactly exit threshold keeps pinch", []float64{0.03, 0.08}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s PinchState
			for _, g := range tt.gaps {
				s, _ = advancePinch(s, g)
			}
			if s.IsPinching != tt.wantPinch {
				t.Errorf("IsPinching = %v, want %v", s.IsPinching, tt.wantPinch)
			}
			if s.ComboCount != tt.wantCombo {
				t.Errorf("ComboCount = %d, want %d", s.ComboCount, tt.wantCombo)
			}
		})
	}
}

func TestPinch_CompletesOnTenth(t *testing.T) {
	var gaps []float64
	for i := 0; i < 12; i++ {
		gaps = append(gaps, 0.03, 0.10)
	}

	s, outs := pinchSequence(t, gaps)

	completions := 0
	for i, out := range outs {
		if !out.Complete {
			continue
		}
		completions++
		if completions == 1 {
			// Pinch n is at index 2(n-1).
			if i != 18 {
				t.Errorf("completed at frame %d, want 18 (10th pinch)", i)
			}
			if out.Progress != 10 {
				t.Errorf("progress at completion = %f, want 10", out.Progress)
			}
		}
	}
	if completions == 0 {
		t.Fatal("pinch ritual never completed")
	}

	// State is frozen after completion.
	if s.ComboCount != PinchComboTarget {
		t.Errorf("combo count = %d after completion, want %d", s.ComboCount, PinchComboTarget)
	}
}

func TestPinch_NoHandKeepsState(t *testing.T) {
	s := PinchState{IsPinching: true, ComboCount: 3}
	next, out := StepPinch(s, Observation{})
	if next != s {
		t.Errorf("state changed on empty frame: %+v -> %+v", s, next)
	}
	if out.Progress != 3 {
		t.Errorf("progress = %f, want 3", out.Progress)
	}
}

func pulseAt(t0 time.Time, ms int, hands []detector.HandLandmarks) Observation {
	return Observation{Hands: hands, At: t0.Add(time.Duration(ms) * time.Millisecond)}
}

func TestPulse_ContinuousHoldCompletes(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	near := detector.HandPair(0.03)

	var s PulseState
	var out Outcome
	for ms := 0; ms <= 5000; ms += 500 {
		s, out = StepPulse(s, pulseAt(t0, ms, near))
		if ms < 5000 && out.Complete {
			t.Fatalf("completed early at %dms", ms)
		}
	}
	if !out.Complete {
		t.Fatal("expected completion after 5000ms continuous hold")
	}
	if out.Progress != 100 {
		t.Errorf("density = %f, want 100 (clamped)", out.Progress)
	}
}

func TestPulse_InterruptionResetsTimer(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	near := detector.HandPair(0.03)
	apart := detector.HandPair(0.10)

	var s PulseState
	var out Outcome
	for ms := 0; ms <= 2500; ms += 500 {
		s, out = StepPulse(s, pulseAt(t0, ms, near))
	}
	s, out = StepPulse(s, pulseAt(t0, 3000, apart))
	if s.Timing {
		t.Fatal("timer should reset when hands separate")
	}
	// 4.5s of further contact: 7s total, but never 5s unbroken.
	for ms := 3500; ms <= 8000; ms += 500 {
		s, out = StepPulse(s, pulseAt(t0, ms, near))
		if out.Complete {
			t.Fatalf("completed at %dms from non-contiguous dwell", ms)
		}
	}
	if got := s.Held(t0.Add(8000 * time.Millisecond)); got != 4500*time.Millisecond {
		t.Errorf("held = %v, want 4.5s", got)
	}
}

func TestPulse_MissingHandResetsTimer(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	near := detector.HandPair(0.03)

	var s PulseState
	var out Outcome
	for ms := 0; ms <= 4000; ms += 500 {
		s, _ = StepPulse(s, pulseAt(t0, ms, near))
	}

	s, out = StepPulse(s, pulseAt(t0, 4500, near[:1]))
	if s.Timing {
		t.Error("timer should reset with a single hand")
	}
	if out.Progress != 0 {
		t.Errorf("density with one hand = %f, want 0", out.Progress)
	}
	if out.Overlay != nil {
		t.Error("expected no overlay without two hands")
	}

	for ms := 5000; ms <= 9000; ms += 500 {
		s, out = StepPulse(s, pulseAt(t0, ms, near))
		if out.Complete {
			t.Fatalf("completed at %dms across a missing-hand gap", ms)
		}
	}
}

func TestEnergyDensity(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 100},
		{0.03, 100},
		{0.19, 50},
		{0.39, 25},
	}

	for _, tt := range tests {
		if got := EnergyDensity(tt.distance); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("EnergyDensity(%f) = %f, want %f", tt.distance, got, tt.want)
		}
	}
}

func TestPulseOverlay(t *testing.T) {
	tests := []struct {
		distance      float64
		wantIntensity float64
		wantWidth     float64
	}{
		{0, 1, 20},
		{0.25, 0.5, 11},
		{0.5, 0, 2},
		{0.9, 0, 2},
	}

	for _, tt := range tests {
		o := PulseOverlay(tt.distance)
		if math.Abs(o.Intensity-tt.wantIntensity) > epsilon {
			t.Errorf("PulseOverlay(%f).Intensity = %f, want %f", tt.distance, o.Intensity, tt.wantIntensity)
		}
		if math.Abs(o.LineWidth-tt.wantWidth) > epsilon {
			t.Errorf("PulseOverlay(%f).LineWidth = %f, want %f", tt.distance, o.LineWidth, tt.wantWidth)
		}
	}
}

func TestStep_Dispatch(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			s, err := NewState(kind)
			if err != nil {
				t.Fatalf("NewState(%q) error = %v", kind, err)
			}
			next, out := Step(s, Observation{At: time.Now()})
			if next.Kind() != kind {
				t.Errorf("Step changed kind to %q", next.Kind())
			}
			if out.Kind != kind {
				t.Errorf("outcome kind = %q, want %q", out.Kind, kind)
			}
			if out.Complete || next.Completed() {
				t.Error("empty frame completed the ritual")
			}
		})
	}
}

func TestNewState_Unknown(t *testing.T) {
	if _, err := NewState("juggling"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := ParseKind("Rotational"); err == nil {
		t.Error("ParseKind should be case sensitive")
	}
}
