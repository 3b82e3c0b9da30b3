package camera

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// PacketStats tracks frame transport statistics with thread-safe operations.
// The windowed counters reset on each stats log; the totals never reset and
// back the status endpoint.
type PacketStats struct {
	mu          sync.Mutex
	packetCount int64
	byteCount   int64
	frameCount  int64
	errorCount  int64
	lastReset   time.Time

	totalPackets int64
	totalBytes   int64
	totalFrames  int64
	totalErrors  int64
}

// NewPacketStats creates a new PacketStats instance.
func NewPacketStats() *PacketStats {
	return &PacketStats{lastReset: time.Now()}
}

// AddPacket increments packet count and byte count.
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.byteCount += int64(bytes)
	ps.totalPackets++
	ps.totalBytes += int64(bytes)
}

// AddFrame increments the completed frame count.
func (ps *PacketStats) AddFrame() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.frameCount++
	ps.totalFrames++
}

// AddError increments the malformed datagram count.
func (ps *PacketStats) AddError() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.errorCount++
	ps.totalErrors++
}

// PacketTotals are cumulative transport counters since startup.
type PacketTotals struct {
	Packets int64 `json:"packets"`
	Bytes   int64 `json:"bytes"`
	Frames  int64 `json:"frames"`
	Errors  int64 `json:"errors"`
}

// Totals returns cumulative counters without resetting the logging window.
func (ps *PacketStats) Totals() PacketTotals {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return PacketTotals{
		Packets: ps.totalPackets,
		Bytes:   ps.totalBytes,
		Frames:  ps.totalFrames,
		Errors:  ps.totalErrors,
	}
}

// GetAndReset returns current stats and resets counters.
func (ps *PacketStats) GetAndReset() (packets, bytes, frames, errors int64, duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	duration = now.Sub(ps.lastReset)
	packets = ps.packetCount
	bytes = ps.byteCount
	frames = ps.frameCount
	errors = ps.errorCount

	ps.packetCount = 0
	ps.byteCount = 0
	ps.frameCount = 0
	ps.errorCount = 0
	ps.lastReset = now

	return
}

// LogStats logs formatted statistics for the last interval.
func (ps *PacketStats) LogStats() {
	packets, bytes, frames, errors, duration := ps.GetAndReset()
	if packets == 0 && errors == 0 {
		return
	}

	packetsPerSec := float64(packets) / duration.Seconds()
	mbPerSec := float64(bytes) / duration.Seconds() / (1024 * 1024)
	framesPerSec := float64(frames) / duration.Seconds()

	logMsg := fmt.Sprintf("Camera stats (/sec): %.2f MB, %.1f chunks, %.1f frames",
		mbPerSec, packetsPerSec, framesPerSec)
	if errors > 0 {
		logMsg += fmt.Sprintf(", %d malformed", errors)
	}
	log.Print(logMsg)
}
