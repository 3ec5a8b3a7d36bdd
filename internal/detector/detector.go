package detector

import "gocv.io/x/gocv"

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to report per frame (default: 2).
	MaxHands int

	// MinConfidence drops hands whose handedness score is below it (0.0-1.0).
	MinConfidence float64

	// ScriptPath overrides the lookup of mediapipe_service.py.
	ScriptPath string

	// PythonPath overrides the interpreter. The default is venv/bin/python
	// when one is found, else python3 from PATH.
	PythonPath string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:      2,
		MinConfidence: 0.5,
	}
}

// filterHands applies the MaxHands and MinConfidence limits, keeping the
// detector's ordering.
func filterHands(hands []HandLandmarks, cfg Config) []HandLandmarks {
	out := make([]HandLandmarks, 0, len(hands))
	for _, h := range hands {
		if h.Score < cfg.MinConfidence {
			continue
		}
		out = append(out, h)
		if cfg.MaxHands > 0 && len(out) == cfg.MaxHands {
			break
		}
	}
	return out
}
