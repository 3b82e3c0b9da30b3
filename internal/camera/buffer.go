package camera

import (
	"context"
	"sync"

	"github.com/skylark-data/overflight.report/internal/vision"
)

// FrameBuffer is a single-slot handoff between the transport and the
// analysis loop. When the loop falls behind, Put replaces the unconsumed
// frame and counts the drop; the transport never blocks on a slow consumer,
// and the loop always works on the freshest frame.
type FrameBuffer struct {
	mu      sync.Mutex
	slot    *vision.Frame
	dropped int64
	ready   chan struct{}
}

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{ready: make(chan struct{}, 1)}
}

// Put stores a frame for the consumer, replacing any unconsumed frame.
func (b *FrameBuffer) Put(f *vision.Frame) {
	if f == nil {
		return
	}
	b.mu.Lock()
	if b.slot != nil {
		b.dropped++
	}
	b.slot = f
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// Next blocks until a frame is available or the context is cancelled.
func (b *FrameBuffer) Next(ctx context.Context) (*vision.Frame, error) {
	for {
		b.mu.Lock()
		f := b.slot
		b.slot = nil
		b.mu.Unlock()
		if f != nil {
			return f, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.ready:
		}
	}
}

// Dropped returns the number of frames replaced before consumption.
func (b *FrameBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
