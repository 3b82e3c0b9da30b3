//go:build pcap
// +build pcap

package camera

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// ReadPCAPFile replays frame transport datagrams from a capture file through
// the assembler, exactly as the live listener would feed them. Available only
// under the 'pcap' build tag.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, assembler *FrameAssembler, stats StatsSink) error {
	if assembler == nil {
		return fmt.Errorf("frame assembler is required")
	}
	if stats == nil {
		stats = &noopStats{}
	}

	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("open pcap %s: %w", pcapFile, err)
	}
	defer handle.Close()

	// Non-transport traffic in the capture is dropped up front.
	filter := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("set BPF filter %q: %w", filter, err)
	}
	log.Printf("Replaying %s with filter %q", pcapFile, filter)

	packets := gopacket.NewPacketSource(handle, handle.LinkType()).Packets()
	start := time.Now()
	count := 0

	for {
		select {
		case <-ctx.Done():
			log.Printf("Replay canceled after %d packets", count)
			return ctx.Err()
		case packet := <-packets:
			if packet == nil {
				completed, evicted, malformed, _ := assembler.Counts()
				log.Printf("Replay finished: %d packets in %v (%d frames, %d evicted, %d malformed)",
					count, time.Since(start), completed, evicted, malformed)
				return nil
			}
			count++

			udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}
			stats.AddPacket(len(udp.Payload))

			chunk, err := ParseChunk(udp.Payload)
			if err != nil {
				stats.AddError()
				log.Printf("Replay packet %d: %v", count, err)
				continue
			}
			if err := assembler.AddChunk(chunk); err != nil {
				stats.AddError()
				log.Printf("Replay packet %d: %v", count, err)
			}
		}
	}
}
