//go:build !pcap
// +build !pcap

package camera

import (
	"context"
	"fmt"
)

// ReadPCAPFile is unavailable without the 'pcap' build tag, which needs
// libpcap at build time.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, assembler *FrameAssembler, stats StatsSink) error {
	return fmt.Errorf("pcap replay not built in: rebuild with -tags=pcap")
}
