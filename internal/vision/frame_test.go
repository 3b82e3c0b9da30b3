package vision

import (
	"image"
	"image/color"
	"testing"
)

func TestNewFrame(t *testing.T) {
	pix := make([]uint8, 4*3*3)
	f, err := NewFrame(123, 4, 3, pix)
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	if f.TSUnixNanos != 123 || f.Width != 4 || f.Height != 3 {
		t.Errorf("frame fields wrong: %+v", f)
	}
	if f.NumPixels() != 12 {
		t.Errorf("NumPixels = %d, want 12", f.NumPixels())
	}
}

func TestNewFrame_Invalid(t *testing.T) {
	if _, err := NewFrame(0, 0, 10, nil); err == nil {
		t.Error("zero width should fail")
	}
	if _, err := NewFrame(0, 10, -1, nil); err == nil {
		t.Error("negative height should fail")
	}
	if _, err := NewFrame(0, 4, 3, make([]uint8, 10)); err == nil {
		t.Error("short pixel buffer should fail")
	}
}

func TestFrame_RGBAt(t *testing.T) {
	f := fillFrame(4, 4, 10, 20, 30)
	setRect(f, 2, 1, 2, 1, 100, 110, 120)

	r, g, b := f.RGBAt(0, 0)
	if r != 10 || g != 20 || b != 30 {
		t.Errorf("RGBAt(0,0) = (%d,%d,%d)", r, g, b)
	}
	r, g, b = f.RGBAt(2, 1)
	if r != 100 || g != 110 || b != 120 {
		t.Errorf("RGBAt(2,1) = (%d,%d,%d)", r, g, b)
	}
}

func TestFrameImageRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 40, G: 50, B: 60, A: 255})
	img.SetRGBA(0, 1, color.RGBA{R: 70, G: 80, B: 90, A: 255})
	img.SetRGBA(1, 1, color.RGBA{R: 100, G: 110, B: 120, A: 255})

	f := FrameFromImage(img, 7)
	if err := f.Validate(); err != nil {
		t.Fatalf("converted frame invalid: %v", err)
	}
	if f.TSUnixNanos != 7 {
		t.Errorf("timestamp not carried, got %d", f.TSUnixNanos)
	}
	if r, g, b := f.RGBAt(1, 1); r != 100 || g != 110 || b != 120 {
		t.Errorf("RGBAt(1,1) = (%d,%d,%d)", r, g, b)
	}

	back := f.ToImage()
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if back.RGBAAt(x, y) != img.RGBAAt(x, y) {
				t.Errorf("round trip mismatch at (%d,%d): %v != %v",
					x, y, back.RGBAAt(x, y), img.RGBAAt(x, y))
			}
		}
	}
}

// FrameFromImage must honour bounds that do not start at the origin.
func TestFrameFromImage_OffsetBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(5, 5, 7, 6))
	img.SetRGBA(5, 5, color.RGBA{R: 1, A: 255})
	img.SetRGBA(6, 5, color.RGBA{R: 2, A: 255})

	f := FrameFromImage(img, 0)
	if f.Width != 2 || f.Height != 1 {
		t.Fatalf("dimensions = %dx%d, want 2x1", f.Width, f.Height)
	}
	if r, _, _ := f.RGBAt(0, 0); r != 1 {
		t.Errorf("offset bounds not handled, got r=%d", r)
	}
	if r, _, _ := f.RGBAt(1, 0); r != 2 {
		t.Errorf("offset bounds not handled, got r=%d", r)
	}
}
