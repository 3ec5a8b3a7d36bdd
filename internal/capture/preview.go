package capture

import (
	"context"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Preview holds the most recent JPEG-encoded frame for the MJPEG stream.
// Publishing overwrites the previous frame, so slow viewers skip frames
// instead of holding up the pipeline.
type Preview struct {
	mu      sync.Mutex
	jpeg    []byte
	seq     uint64
	updated chan struct{}

	drops uint64
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	return &Preview{updated: make(chan struct{})}
}

// Publish encodes frame as JPEG and makes it the latest frame.
func (p *Preview) Publish(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() {
		return ErrEmptyFrame
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return err
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	p.PublishJPEG(data)
	return nil
}

// PublishJPEG stores an already encoded frame. data must not be modified
// afterwards.
func (p *Preview) PublishJPEG(data []byte) {
	p.mu.Lock()
	p.jpeg = data
	p.seq++
	close(p.updated)
	p.updated = make(chan struct{})
	p.mu.Unlock()
}

// Latest returns the current frame and its sequence number. seq is 0 until
// the first Publish.
func (p *Preview) Latest() (data []byte, seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jpeg, p.seq
}

// Next blocks until a frame newer than after is available or ctx is done.
func (p *Preview) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		p.mu.Lock()
		data, seq, ch := p.jpeg, p.seq, p.updated
		p.mu.Unlock()

		if seq > after {
			if seq > after+1 && after > 0 {
				atomic.AddUint64(&p.drops, seq-after-1)
			}
			return data, seq, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, after, ctx.Err()
		}
	}
}

// Drops returns how many frames viewers skipped because they fell behind.
func (p *Preview) Drops() uint64 {
	return atomic.LoadUint64(&p.drops)
}
