// Command pcap-replay re-sends the frame transport from a packet capture to
// a running daemon. Captured datagrams are reassembled into frames, then
// re-chunked and sent over UDP, paced by the recorded frame timestamps.
//
// Reading capture files requires the 'pcap' build tag:
//
//	go run -tags pcap ./cmd/pcap-replay [flags]
//
// Flags:
//
//	-file     Capture file to replay (required)
//	-port     UDP port the capture recorded frames on (default: 9300)
//	-target   Daemon frame listener address (default: 127.0.0.1:9300)
//	-speed    Playback rate multiplier; 0 replays without pacing (default: 1)
//	-loop     Restart from the beginning at end of file
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/skylark-data/overflight.report/internal/camera"
	"github.com/skylark-data/overflight.report/internal/vision"
)

var (
	file   = flag.String("file", "", "Capture file to replay (required)")
	port   = flag.Int("port", 9300, "UDP port the capture recorded frames on")
	target = flag.String("target", "127.0.0.1:9300", "Daemon frame listener address")
	speed  = flag.Float64("speed", 1.0, "Playback rate multiplier (0 = no pacing)")
	loop   = flag.Bool("loop", false, "Restart from the beginning at end of file")
)

// sender re-chunks assembled frames and writes them to the daemon, sleeping
// between frames to reproduce the recorded cadence.
type sender struct {
	conn       net.Conn
	rate       float64
	lastTS     int64
	frameSeq   uint32
	framesSent int
}

func (s *sender) send(f *vision.Frame) {
	if s.rate > 0 && s.lastTS != 0 && f.TSUnixNanos > s.lastTS {
		gap := time.Duration(float64(f.TSUnixNanos-s.lastTS) / s.rate)
		// Captures can contain multi-minute gaps; cap the wait so a
		// replay never stalls longer than a couple of seconds.
		if gap > 2*time.Second {
			gap = 2 * time.Second
		}
		time.Sleep(gap)
	}
	s.lastTS = f.TSUnixNanos

	datagrams, err := camera.ChunkFrame(camera.PixFmtRGB24, s.frameSeq, f.TSUnixNanos, f.Width, f.Height, f.Pix)
	if err != nil {
		log.Printf("chunk frame %d: %v", s.frameSeq, err)
		return
	}
	for _, d := range datagrams {
		if _, err := s.conn.Write(d); err != nil {
			log.Fatalf("UDP write failed: %v", err)
		}
	}
	s.frameSeq++
	s.framesSent++
	if s.framesSent%100 == 0 {
		log.Printf("replayed %d frames", s.framesSent)
	}
}

func main() {
	flag.Parse()

	if *file == "" {
		log.Fatal("Error: -file flag is required")
	}

	conn, err := net.Dial("udp", *target)
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", *target, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snd := &sender{conn: conn, rate: *speed}
	stats := camera.NewPacketStats()
	assembler := camera.NewFrameAssembler(camera.FrameAssemblerConfig{
		FrameCallback: snd.send,
	})

	log.Printf("replaying %s (port %d) -> %s at %.1fx", *file, *port, *target, *speed)

	for {
		if err := camera.ReadPCAPFile(ctx, *file, *port, assembler, stats); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Fatalf("Replay failed: %v", err)
		}
		if !*loop || ctx.Err() != nil {
			break
		}
		log.Print("end of capture, looping")
		snd.lastTS = 0
	}

	log.Printf("replay complete: %d frames sent", snd.framesSent)
}
