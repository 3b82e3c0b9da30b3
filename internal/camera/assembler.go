package camera

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"log"
	"sync"
	"time"

	"github.com/skylark-data/overflight.report/internal/vision"
)

// DefaultPartialFrameTimeout bounds how long an incomplete frame may wait
// for missing chunks before it is discarded.
const DefaultPartialFrameTimeout = 500 * time.Millisecond

// FrameAssembler reassembles chunked datagrams into complete frames, keyed
// by frame sequence number. Chunks may arrive out of order; frames whose
// chunks stop arriving are evicted after a timeout so a lossy link cannot
// grow the pending set without bound.
type FrameAssembler struct {
	mu      sync.Mutex
	pending map[uint32]*partialFrame

	timeout       time.Duration
	frameCallback func(*vision.Frame)

	completed int64
	evicted   int64
	malformed int64
}

// partialFrame accumulates the chunks of one frame sequence.
type partialFrame struct {
	pixFmt      uint8
	tsUnixNanos int64
	width       int
	height      int
	chunkCount  int
	received    []bool
	got         int
	payloads    [][]byte
	firstSeen   time.Time
}

// FrameAssemblerConfig configures a FrameAssembler.
type FrameAssemblerConfig struct {
	// PartialFrameTimeout is how long an incomplete frame waits for its
	// remaining chunks. Zero selects DefaultPartialFrameTimeout.
	PartialFrameTimeout time.Duration

	// FrameCallback receives each completed, decoded frame. Required.
	FrameCallback func(*vision.Frame)
}

// NewFrameAssembler creates a FrameAssembler with the given configuration.
func NewFrameAssembler(config FrameAssemblerConfig) *FrameAssembler {
	timeout := config.PartialFrameTimeout
	if timeout <= 0 {
		timeout = DefaultPartialFrameTimeout
	}
	return &FrameAssembler{
		pending:       make(map[uint32]*partialFrame),
		timeout:       timeout,
		frameCallback: config.FrameCallback,
	}
}

// AddChunk folds one parsed chunk into the pending set. When the chunk
// completes its frame, the frame is decoded and delivered to the callback
// on the caller's goroutine. Malformed or inconsistent chunks are dropped
// with an error; the assembler itself never fails.
func (a *FrameAssembler) AddChunk(c *Chunk) error {
	now := time.Now()

	a.mu.Lock()
	a.evictStaleLocked(now)

	pf, ok := a.pending[c.FrameSeq]
	if !ok {
		pf = &partialFrame{
			pixFmt:      c.PixFmt,
			tsUnixNanos: c.TSUnixNanos,
			width:       c.Width,
			height:      c.Height,
			chunkCount:  c.ChunkCount,
			received:    make([]bool, c.ChunkCount),
			payloads:    make([][]byte, c.ChunkCount),
			firstSeen:   now,
		}
		a.pending[c.FrameSeq] = pf
	}

	// All chunks of a frame must agree on its geometry; a disagreement
	// means the sequence number wrapped onto a different frame.
	if pf.chunkCount != c.ChunkCount || pf.width != c.Width || pf.height != c.Height || pf.pixFmt != c.PixFmt {
		delete(a.pending, c.FrameSeq)
		a.malformed++
		a.mu.Unlock()
		return fmt.Errorf("chunk seq %d disagrees with pending frame header", c.FrameSeq)
	}
	if pf.received[c.ChunkIndex] {
		// Duplicate delivery; keep the first copy.
		a.mu.Unlock()
		return nil
	}

	payload := make([]byte, len(c.Payload))
	copy(payload, c.Payload)
	pf.payloads[c.ChunkIndex] = payload
	pf.received[c.ChunkIndex] = true
	pf.got++

	if pf.got < pf.chunkCount {
		a.mu.Unlock()
		return nil
	}

	delete(a.pending, c.FrameSeq)
	a.mu.Unlock()

	frame, err := decodeFrame(pf)
	if err != nil {
		a.mu.Lock()
		a.malformed++
		a.mu.Unlock()
		return fmt.Errorf("decode frame seq %d: %w", c.FrameSeq, err)
	}

	a.mu.Lock()
	a.completed++
	a.mu.Unlock()

	if a.frameCallback != nil {
		a.frameCallback(frame)
	}
	return nil
}

// evictStaleLocked drops pending frames whose chunks stopped arriving.
// Caller holds a.mu.
func (a *FrameAssembler) evictStaleLocked(now time.Time) {
	for seq, pf := range a.pending {
		if now.Sub(pf.firstSeen) > a.timeout {
			delete(a.pending, seq)
			a.evicted++
			log.Printf("Evicted partial frame seq %d (%d/%d chunks after %v)",
				seq, pf.got, pf.chunkCount, a.timeout)
		}
	}
}

// EvictStale drops timed-out partial frames. The listener calls this
// periodically so eviction happens even when no chunks are arriving.
func (a *FrameAssembler) EvictStale() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.evictStaleLocked(time.Now())
}

// Counts reports completed, evicted and malformed frame totals plus the
// current pending set size.
func (a *FrameAssembler) Counts() (completed, evicted, malformed int64, pending int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed, a.evicted, a.malformed, len(a.pending)
}

// decodeFrame turns a fully received partial frame into a vision.Frame.
func decodeFrame(pf *partialFrame) (*vision.Frame, error) {
	var body []byte
	if pf.chunkCount == 1 {
		body = pf.payloads[0]
	} else {
		total := 0
		for _, p := range pf.payloads {
			total += len(p)
		}
		body = make([]byte, 0, total)
		for _, p := range pf.payloads {
			body = append(body, p...)
		}
	}

	switch pf.pixFmt {
	case PixFmtRGB24:
		return vision.NewFrame(pf.tsUnixNanos, pf.width, pf.height, body)
	case PixFmtJPEG:
		img, err := jpeg.Decode(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("jpeg decode: %w", err)
		}
		f := vision.FrameFromImage(img, pf.tsUnixNanos)
		if f.Width != pf.width || f.Height != pf.height {
			return nil, fmt.Errorf("jpeg dimensions %dx%d disagree with header %dx%d",
				f.Width, f.Height, pf.width, pf.height)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown pixel format %d", pf.pixFmt)
	}
}
