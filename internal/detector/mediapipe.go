package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ServiceIdleTimeout is how long the Python service may sit unused before
// it is shut down. The next Detect call restarts it.
const ServiceIdleTimeout = 30 * time.Second

const (
	serviceScript = "scripts/mediapipe_service.py"
	venvPython    = "venv/bin/python"
)

// ErrScriptNotFound is returned when mediapipe_service.py cannot be located.
var ErrScriptNotFound = errors.New("mediapipe_service.py not found")

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// Wire format: each request is a 4-byte big-endian length followed by a JPEG
// frame on stdin; each response is one JSON line on stdout of the form
// {"hands":[{"points":[{"x":..,"y":..,"z":..}, ...],"handedness":"Left","score":0.97}]}.
type MediaPipeDetector struct {
	config Config
	script string
	python string

	mu   sync.Mutex
	proc *serviceProc
	idle *time.Timer
}

// NewMediaPipeDetector resolves the service script and interpreter. The
// Python process is started lazily on the first Detect.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	dirs := searchDirs()

	script := config.ScriptPath
	if script == "" {
		script = locate(serviceScript, dirs)
	}
	if script == "" {
		return nil, ErrScriptNotFound
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("stat mediapipe script: %w", err)
	}

	python := config.PythonPath
	if python == "" {
		python = locate(venvPython, dirs)
	}
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{config: config, script: script, python: python}, nil
}

// Detect sends the frame to the service and waits for its answer. Only one
// request is ever in flight per detector.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	jpeg, err := encodeJPEG(frame)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		p, err := startService(d.python, d.script)
		if err != nil {
			return nil, err
		}
		d.proc = p
	}

	line, err := d.proc.exchange(jpeg)
	if err != nil {
		d.stopLocked()
		return nil, err
	}

	hands, err := parseServiceResponse(line)
	if err != nil {
		return nil, err
	}
	d.touchLocked()
	return filterHands(hands, d.config), nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *MediaPipeDetector) stopLocked() error {
	if d.idle != nil {
		d.idle.Stop()
		d.idle = nil
	}
	if d.proc == nil {
		return nil
	}
	err := d.proc.stop()
	d.proc = nil
	return err
}

// touchLocked restarts the idle countdown.
func (d *MediaPipeDetector) touchLocked() {
	if d.idle != nil {
		d.idle.Stop()
	}
	d.idle = time.AfterFunc(ServiceIdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.stopLocked()
	})
}

func encodeJPEG(frame *gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// serviceProc is one running mediapipe_service.py.
type serviceProc struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   *bufio.Reader
}

func startService(python, script string) (*serviceProc, error) {
	cmd := exec.Command(python, script)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mediapipe stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mediapipe stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mediapipe service: %w", err)
	}
	return &serviceProc{cmd: cmd, stdin: stdin, out: bufio.NewReader(stdout)}, nil
}

// exchange writes one length-prefixed frame and reads one response line.
func (p *serviceProc) exchange(jpeg []byte) ([]byte, error) {
	msg := make([]byte, 4+len(jpeg))
	binary.BigEndian.PutUint32(msg, uint32(len(jpeg)))
	copy(msg[4:], jpeg)

	if _, err := p.stdin.Write(msg); err != nil {
		return nil, fmt.Errorf("send frame: %w", err)
	}
	line, err := p.out.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

// stop closes stdin, which ends the service loop, and reaps the process.
func (p *serviceProc) stop() error {
	_ = p.stdin.Close()
	return p.cmd.Wait()
}

// parseServiceResponse decodes one response line from the service.
// Hands with fewer than NumLandmarks points are rejected rather than padded.
func parseServiceResponse(line []byte) ([]HandLandmarks, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("mediapipe service: %s", response.Error)
	}

	result := make([]HandLandmarks, 0, len(response.Hands))
	for _, h := range response.Hands {
		if len(h.Points) < NumLandmarks {
			return nil, fmt.Errorf("parse response: hand has %d landmarks, want %d", len(h.Points), NumLandmarks)
		}
		result = append(result, h.toHandLandmarks())
	}
	return result, nil
}

// searchDirs lists where the service files may live: the working directory,
// its parent, the binary's directory and ~/.spellkitchen.
func searchDirs() []string {
	dirs := []string{".", ".."}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".spellkitchen"))
	}
	return dirs
}

// locate returns the absolute path of the first dir/rel that exists.
func locate(rel string, dirs []string) string {
	for _, dir := range dirs {
		path := filepath.Join(dir, rel)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{Handedness: h.Handedness, Score: h.Score}
	copy(lm.Points[:], h.Points)
	return lm
}
