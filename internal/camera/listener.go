package camera

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/skylark-data/overflight.report/internal/vision"
)

// StatsSink receives per-packet accounting from the listener.
type StatsSink interface {
	AddPacket(bytes int)
	AddFrame()
	AddError()
	LogStats()
}

// noopStats is a StatsSink implementation that does nothing. It is used as
// a safe default when no stats collector is provided.
type noopStats struct{}

func (n *noopStats) AddPacket(bytes int) {}
func (n *noopStats) AddFrame()           {}
func (n *noopStats) AddError()           {}
func (n *noopStats) LogStats()           {}

// UDPListener receives frame transport datagrams, parses and reassembles
// them, and drops completed frames into a FrameBuffer.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	conn        *net.UDPConn
	stats       StatsSink
	assembler   *FrameAssembler
	buffer      *FrameBuffer
}

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address             string
	RcvBuf              int
	LogInterval         time.Duration
	Stats               StatsSink
	Buffer              *FrameBuffer
	PartialFrameTimeout time.Duration
}

// NewUDPListener creates a UDP frame listener with the provided
// configuration. Buffer is required; completed frames are Put into it.
func NewUDPListener(config UDPListenerConfig) (*UDPListener, error) {
	if config.Buffer == nil {
		return nil, fmt.Errorf("frame buffer is required")
	}

	var stats StatsSink
	if config.Stats != nil {
		stats = config.Stats
	} else {
		stats = &noopStats{}
	}

	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	rcvBuf := config.RcvBuf
	if rcvBuf == 0 {
		rcvBuf = 4 * 1024 * 1024
	}

	l := &UDPListener{
		address:     config.Address,
		rcvBuf:      rcvBuf,
		logInterval: logInterval,
		stats:       stats,
		buffer:      config.Buffer,
	}
	l.assembler = NewFrameAssembler(FrameAssemblerConfig{
		PartialFrameTimeout: config.PartialFrameTimeout,
		FrameCallback: func(f *vision.Frame) {
			stats.AddFrame()
			config.Buffer.Put(f)
		},
	})
	return l, nil
}

// Assembler exposes the listener's frame assembler for status reporting.
func (l *UDPListener) Assembler() *FrameAssembler {
	return l.assembler
}

// Start begins listening for frame datagrams and processing them. It blocks
// until the context is cancelled.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.conn = conn
	defer conn.Close()

	if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
		log.Printf("Warning: Failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
	}

	log.Printf("Frame listener started on %s with receive buffer %d bytes", l.address, l.rcvBuf)

	go l.startStatsLogging(ctx)

	buffer := make([]byte, MaxDatagramSize+64)

	for {
		select {
		case <-ctx.Done():
			log.Print("Frame listener stopping due to context cancellation")
			return ctx.Err()
		default:
			// Set read deadline to allow checking context cancellation.
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, addr, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					l.assembler.EvictStale()
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("UDP read error: %v", err)
				continue
			}

			if err := l.handlePacket(buffer[:n]); err != nil {
				log.Printf("Error handling chunk from %v: %v", addr, err)
			}
		}
	}
}

// handlePacket processes a single received datagram.
func (l *UDPListener) handlePacket(packet []byte) error {
	l.stats.AddPacket(len(packet))

	chunk, err := ParseChunk(packet)
	if err != nil {
		l.stats.AddError()
		return err
	}
	if err := l.assembler.AddChunk(chunk); err != nil {
		l.stats.AddError()
		return err
	}
	return nil
}

// startStatsLogging periodically logs packet statistics.
func (l *UDPListener) startStatsLogging(ctx context.Context) {
	// Trigger an initial stats report shortly after startup to avoid a long
	// silence on first run, then continue on the configured interval.
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
		l.stats.LogStats()
	}

	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}

// Close closes the UDP listener and releases resources.
func (l *UDPListener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
