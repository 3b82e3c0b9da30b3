// Command camsim is a synthetic sky camera. It renders a blue-sky gradient
// with small dark objects drifting across it and pushes the frames to a
// running daemon over the UDP frame transport, so the full pipeline can be
// exercised without camera hardware.
//
// Usage:
//
//	go run ./cmd/camsim [flags]
//
// Flags:
//
//	-target   Daemon frame listener address (default: 127.0.0.1:9300)
//	-width    Frame width in pixels (default: 640)
//	-height   Frame height in pixels (default: 480)
//	-fps      Frames per second (default: 10)
//	-objects  Number of moving objects (default: 2)
//	-frames   Stop after this many frames; 0 runs until interrupted
//	-jpeg     Send JPEG-compressed frames instead of raw RGB24
//	-seed     Random seed for object placement (default: current time)
package main

import (
	"bytes"
	"context"
	"flag"
	"image/jpeg"
	"log"
	"math"
	"math/rand"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/skylark-data/overflight.report/internal/camera"
	"github.com/skylark-data/overflight.report/internal/vision"
)

var (
	target  = flag.String("target", "127.0.0.1:9300", "Daemon frame listener address")
	width   = flag.Int("width", 640, "Frame width in pixels")
	height  = flag.Int("height", 480, "Frame height in pixels")
	fps     = flag.Float64("fps", 10, "Frames per second")
	objects = flag.Int("objects", 2, "Number of moving objects")
	frames  = flag.Int("frames", 0, "Stop after this many frames (0 = run until interrupted)")
	useJPEG = flag.Bool("jpeg", false, "Send JPEG-compressed frames instead of raw RGB24")
	seed    = flag.Int64("seed", 0, "Random seed for object placement (0 = current time)")
)

// object is one simulated aircraft: a dark square drifting in a straight
// line, wrapping at the frame edges.
type object struct {
	x, y   float64 // centre, px
	vx, vy float64 // px/s
	size   int     // half-width, px
}

func newObject(rng *rand.Rand, w, h int) *object {
	// Speeds in the tens of px/s, like a distant aircraft crossing the
	// field of view in a few tens of seconds.
	speed := 20 + rng.Float64()*60
	angle := rng.Float64() * 2 * math.Pi
	return &object{
		x:    rng.Float64() * float64(w),
		y:    float64(h)*0.1 + rng.Float64()*float64(h)*0.8,
		vx:   speed * math.Cos(angle),
		vy:   speed * math.Sin(angle) * 0.3, // mostly horizontal motion
		size: 3 + rng.Intn(3),
	}
}

func (o *object) step(dt float64, w, h int) {
	o.x += o.vx * dt
	o.y += o.vy * dt
	if o.x < 0 {
		o.x += float64(w)
	}
	if o.x >= float64(w) {
		o.x -= float64(w)
	}
	if o.y < 0 {
		o.y += float64(h)
	}
	if o.y >= float64(h) {
		o.y -= float64(h)
	}
}

// render paints the sky gradient and the objects into an RGB24 buffer.
func render(pix []uint8, w, h int, objs []*object) {
	for y := 0; y < h; y++ {
		// Brighter towards the horizon (bottom of frame).
		v := uint8(200 + 40*y/h)
		r, g := uint8(90+30*y/h), uint8(140+40*y/h)
		row := y * w * 3
		for x := 0; x < w; x++ {
			p := row + x*3
			pix[p], pix[p+1], pix[p+2] = r, g, v
		}
	}
	// The object colour keeps the sky hue and stays above the calibrated
	// value floor, so it classifies as sky, while sitting ~60 grey levels
	// below the background.
	for _, o := range objs {
		cx, cy := int(o.x), int(o.y)
		for y := cy - o.size; y <= cy+o.size; y++ {
			if y < 0 || y >= h {
				continue
			}
			for x := cx - o.size; x <= cx+o.size; x++ {
				if x < 0 || x >= w {
					continue
				}
				p := (y*w + x) * 3
				pix[p], pix[p+1], pix[p+2] = 60, 90, 175
			}
		}
	}
}

func main() {
	flag.Parse()

	if *width <= 0 || *height <= 0 || *fps <= 0 {
		log.Fatal("width, height and fps must be positive")
	}

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(s))

	conn, err := net.Dial("udp", *target)
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", *target, err)
	}
	defer conn.Close()

	objs := make([]*object, *objects)
	for i := range objs {
		objs[i] = newObject(rng, *width, *height)
	}

	pixFmt := uint8(camera.PixFmtRGB24)
	if *useJPEG {
		pixFmt = camera.PixFmtJPEG
	}

	log.Printf("camsim: %dx%d @ %.1f fps, %d objects -> %s (seed %d)",
		*width, *height, *fps, *objects, *target, s)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(float64(time.Second) / *fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pix := make([]uint8, *width**height*3)
	var frameSeq uint32
	sent := 0

	for {
		select {
		case <-ctx.Done():
			log.Printf("camsim stopped after %d frames", sent)
			return
		case <-ticker.C:
		}

		for _, o := range objs {
			o.step(interval.Seconds(), *width, *height)
		}
		render(pix, *width, *height, objs)

		ts := time.Now().UnixNano()
		body := pix
		if *useJPEG {
			f := &vision.Frame{TSUnixNanos: ts, Width: *width, Height: *height, Pix: pix}
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, f.ToImage(), &jpeg.Options{Quality: 90}); err != nil {
				log.Fatalf("JPEG encode failed: %v", err)
			}
			body = buf.Bytes()
		}

		datagrams, err := camera.ChunkFrame(pixFmt, frameSeq, ts, *width, *height, body)
		if err != nil {
			log.Fatalf("Failed to chunk frame: %v", err)
		}
		for _, d := range datagrams {
			if _, err := conn.Write(d); err != nil {
				log.Fatalf("UDP write failed: %v", err)
			}
		}
		frameSeq++
		sent++

		if sent%100 == 0 {
			log.Printf("sent %d frames (%d chunks last frame)", sent, len(datagrams))
		}
		if *frames > 0 && sent >= *frames {
			log.Printf("camsim done: %d frames sent", sent)
			return
		}
	}
}
