package app

import (
	"errors"
	"time"

	"github.com/ayusman/spellkitchen/internal/detector"
	"github.com/ayusman/spellkitchen/internal/events"
	"github.com/ayusman/spellkitchen/internal/ritual"
	"gocv.io/x/gocv"
)

var (
	errDetectTimeout = errors.New("hand detection timed out")
	errDetectorBusy  = errors.New("previous detection still running")
)

// runPipeline is the frame loop. On every tick it:
//  1. reads one frame and publishes it to the preview
//  2. if a ritual is active, detects hands within the detect timeout
//  3. feeds the observation to the session and publishes the outcome
//
// Detection errors and timeouts count as "no hand this frame". Frames that
// arrive while an overrunning detection still holds the slot are skipped.
// Ticks that fire while a frame is being processed are dropped by the
// ticker.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			a.processFrame()
		}
	}
}

func (a *App) processFrame() {
	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		if a.config.Debug {
			a.logger.Printf("error reading frame: %v", err)
		}
		return
	}
	defer frame.Close()

	if a.config.Preview != nil {
		if err := a.config.Preview.Publish(frame); err != nil && a.config.Debug {
			a.logger.Printf("error encoding preview: %v", err)
		}
	}

	s := a.activeSession()
	if s == nil {
		return
	}

	hands, err := a.detect(frame)
	if errors.Is(err, errDetectorBusy) {
		return
	}
	if err != nil {
		if a.config.Debug {
			a.logger.Printf("ritual %s: %v", s.ID(), err)
		}
		hands = nil
	}

	out, err := s.Feed(ritual.Observation{Hands: hands, At: a.config.Now()})
	if err != nil {
		// Cancelled while detecting.
		return
	}
	if !out.Complete {
		a.config.Events.Publish(events.Progress(s.ID(), out))
	}
}

type detectResult struct {
	hands []detector.HandLandmarks
	err   error
}

// detect runs the detector on a copy of frame and waits at most
// DetectTimeout. A detection that overruns keeps its slot until it
// finishes, so at most one call is ever outstanding.
func (a *App) detect(frame *gocv.Mat) ([]detector.HandLandmarks, error) {
	if a.config.Detector == nil {
		return nil, nil
	}

	select {
	case a.detectSlot <- struct{}{}:
	default:
		return nil, errDetectorBusy
	}

	clone := frame.Clone()
	results := make(chan detectResult, 1)
	go func() {
		defer func() { <-a.detectSlot }()
		defer clone.Close()

		hands, err := a.config.Detector.Detect(&clone)
		results <- detectResult{hands: hands, err: err}
	}()

	timer := time.NewTimer(a.config.DetectTimeout)
	defer timer.Stop()

	select {
	case r := <-results:
		return r.hands, r.err
	case <-timer.C:
		return nil, errDetectTimeout
	}
}
