// Package camera receives video frames pushed over UDP by a separate camera
// process. Frames arrive as chunked datagrams, are reassembled by sequence
// number, decoded to RGB24 and handed to the analysis loop through a
// single-slot FrameBuffer that drops rather than blocks.
package camera

import (
	"encoding/binary"
	"fmt"
)

// Frame transport wire format constants. Each datagram is a fixed header
// followed by a payload slice of the encoded frame.
const (
	// ChunkMagic marks the start of every frame chunk datagram.
	ChunkMagic = "SKYF"

	// ChunkVersion is the only protocol version this build understands.
	ChunkVersion = 1

	// ChunkHeaderSize is the fixed header length in bytes:
	// magic(4) version(1) pixfmt(1) frameSeq(4) tsUnixNanos(8)
	// width(2) height(2) chunkIndex(2) chunkCount(2) payloadLen(2).
	ChunkHeaderSize = 28

	// MaxChunkPayload keeps each datagram comfortably under the common
	// 1500-byte Ethernet MTU including the header and UDP/IP overhead.
	MaxChunkPayload = 1400

	// MaxDatagramSize is the receive buffer size for a single chunk.
	MaxDatagramSize = ChunkHeaderSize + MaxChunkPayload
)

// Pixel formats carried by the transport.
const (
	// PixFmtRGB24 is raw row-major RGB, 3 bytes per pixel, sliced across
	// chunks in order.
	PixFmtRGB24 = 0

	// PixFmtJPEG is a JPEG-compressed frame, decoded after reassembly.
	PixFmtJPEG = 1
)

// Chunk is one decoded frame transport datagram.
type Chunk struct {
	PixFmt      uint8
	FrameSeq    uint32
	TSUnixNanos int64
	Width       int
	Height      int
	ChunkIndex  int
	ChunkCount  int
	Payload     []byte
}

// ParseChunk validates a datagram and decodes its header. The returned
// Chunk's Payload aliases the input buffer; callers that retain the chunk
// past the next read must copy it.
func ParseChunk(packet []byte) (*Chunk, error) {
	if len(packet) < ChunkHeaderSize {
		return nil, fmt.Errorf("chunk too short: %d bytes (header is %d)", len(packet), ChunkHeaderSize)
	}
	if string(packet[0:4]) != ChunkMagic {
		return nil, fmt.Errorf("bad chunk magic %q", packet[0:4])
	}
	if v := packet[4]; v != ChunkVersion {
		return nil, fmt.Errorf("unsupported chunk version %d", v)
	}
	pixFmt := packet[5]
	if pixFmt != PixFmtRGB24 && pixFmt != PixFmtJPEG {
		return nil, fmt.Errorf("unknown pixel format %d", pixFmt)
	}

	c := &Chunk{
		PixFmt:      pixFmt,
		FrameSeq:    binary.BigEndian.Uint32(packet[6:10]),
		TSUnixNanos: int64(binary.BigEndian.Uint64(packet[10:18])),
		Width:       int(binary.BigEndian.Uint16(packet[18:20])),
		Height:      int(binary.BigEndian.Uint16(packet[20:22])),
		ChunkIndex:  int(binary.BigEndian.Uint16(packet[22:24])),
		ChunkCount:  int(binary.BigEndian.Uint16(packet[24:26])),
	}
	payloadLen := int(binary.BigEndian.Uint16(packet[26:28]))

	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d", c.Width, c.Height)
	}
	if c.ChunkCount == 0 {
		return nil, fmt.Errorf("chunk count is zero (seq %d)", c.FrameSeq)
	}
	if c.ChunkIndex >= c.ChunkCount {
		return nil, fmt.Errorf("chunk index %d out of range (count %d)", c.ChunkIndex, c.ChunkCount)
	}
	if got := len(packet) - ChunkHeaderSize; got != payloadLen {
		return nil, fmt.Errorf("payload length mismatch: header says %d, datagram carries %d", payloadLen, got)
	}
	if payloadLen == 0 {
		return nil, fmt.Errorf("empty payload (seq %d chunk %d)", c.FrameSeq, c.ChunkIndex)
	}

	c.Payload = packet[ChunkHeaderSize:]
	return c, nil
}

// EncodeChunk serialises a chunk into a datagram. Used by the synthetic
// camera and by tests; the receive path never calls it.
func EncodeChunk(c *Chunk) ([]byte, error) {
	if len(c.Payload) == 0 || len(c.Payload) > MaxChunkPayload {
		return nil, fmt.Errorf("payload size %d out of range (1..%d)", len(c.Payload), MaxChunkPayload)
	}
	if c.Width <= 0 || c.Width > 0xFFFF || c.Height <= 0 || c.Height > 0xFFFF {
		return nil, fmt.Errorf("frame dimensions %dx%d do not fit the header", c.Width, c.Height)
	}
	if c.ChunkCount <= 0 || c.ChunkCount > 0xFFFF || c.ChunkIndex < 0 || c.ChunkIndex >= c.ChunkCount {
		return nil, fmt.Errorf("chunk index %d / count %d invalid", c.ChunkIndex, c.ChunkCount)
	}

	buf := make([]byte, ChunkHeaderSize+len(c.Payload))
	copy(buf[0:4], ChunkMagic)
	buf[4] = ChunkVersion
	buf[5] = c.PixFmt
	binary.BigEndian.PutUint32(buf[6:10], c.FrameSeq)
	binary.BigEndian.PutUint64(buf[10:18], uint64(c.TSUnixNanos))
	binary.BigEndian.PutUint16(buf[18:20], uint16(c.Width))
	binary.BigEndian.PutUint16(buf[20:22], uint16(c.Height))
	binary.BigEndian.PutUint16(buf[22:24], uint16(c.ChunkIndex))
	binary.BigEndian.PutUint16(buf[24:26], uint16(c.ChunkCount))
	binary.BigEndian.PutUint16(buf[26:28], uint16(len(c.Payload)))
	copy(buf[ChunkHeaderSize:], c.Payload)
	return buf, nil
}

// ChunkFrame splits an encoded frame body into transport datagrams.
// The body is the raw RGB24 buffer or the JPEG bytes depending on pixFmt.
func ChunkFrame(pixFmt uint8, frameSeq uint32, tsUnixNanos int64, width, height int, body []byte) ([][]byte, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty frame body")
	}
	count := (len(body) + MaxChunkPayload - 1) / MaxChunkPayload
	if count > 0xFFFF {
		return nil, fmt.Errorf("frame body %d bytes needs %d chunks (max %d)", len(body), count, 0xFFFF)
	}

	datagrams := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		start := i * MaxChunkPayload
		end := start + MaxChunkPayload
		if end > len(body) {
			end = len(body)
		}
		pkt, err := EncodeChunk(&Chunk{
			PixFmt:      pixFmt,
			FrameSeq:    frameSeq,
			TSUnixNanos: tsUnixNanos,
			Width:       width,
			Height:      height,
			ChunkIndex:  i,
			ChunkCount:  count,
			Payload:     body[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i, count, err)
		}
		datagrams = append(datagrams, pkt)
	}
	return datagrams, nil
}
