// Package vision implements the frame analysis pipeline: sky segmentation,
// motion detection, blob extraction, multi-object tracking, confidence
// scoring and the persistence of the resulting tracks and detections.
//
// The pipeline operates on one Frame at a time. All cross-frame state lives
// in the Tracker and in the CalibrationState; every other stage is a pure
// function of its inputs.
package vision

import (
	"fmt"
	"image"
	"image/color"
)

// Frame is a single RGB24 video frame. Pix is row-major, 3 bytes per pixel
// (R, G, B), length Width*Height*3. A Frame is owned by one pipeline cycle
// and must not be retained by stages.
type Frame struct {
	TSUnixNanos int64
	Width       int
	Height      int
	Pix         []uint8
}

// NewFrame validates dimensions against the pixel buffer and returns a Frame.
func NewFrame(tsUnixNanos int64, width, height int, pix []uint8) (*Frame, error) {
	f := &Frame{TSUnixNanos: tsUnixNanos, Width: width, Height: height, Pix: pix}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks that the frame geometry is usable by the pipeline.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame dimensions %dx%d", f.Width, f.Height)
	}
	if want := f.Width * f.Height * 3; len(f.Pix) != want {
		return fmt.Errorf("pixel buffer length %d does not match %dx%d RGB24 (want %d)",
			len(f.Pix), f.Width, f.Height, want)
	}
	return nil
}

// NumPixels returns the pixel count of the frame.
func (f *Frame) NumPixels() int {
	return f.Width * f.Height
}

// RGBAt returns the RGB triple at (x, y). Caller guarantees bounds.
func (f *Frame) RGBAt(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// FrameFromImage converts a decoded image into an RGB24 Frame.
// Used by the JPEG transport path and by the synthetic camera.
func FrameFromImage(img image.Image, tsUnixNanos int64) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]uint8, w*h*3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			pix[i] = uint8(r >> 8)
			pix[i+1] = uint8(g >> 8)
			pix[i+2] = uint8(bl >> 8)
			i += 3
		}
	}
	return &Frame{TSUnixNanos: tsUnixNanos, Width: w, Height: h, Pix: pix}
}

// ToImage converts the frame to an image.RGBA for encoding (snapshots,
// /api/frame.jpg).
func (f *Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b := f.RGBAt(x, y)
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}
