package vision

import (
	"testing"
)

// fillFrame builds a solid-colour RGB24 frame.
func fillFrame(w, h int, r, g, b uint8) *Frame {
	pix := make([]uint8, w*h*3)
	for i := 0; i < w*h; i++ {
		pix[i*3] = r
		pix[i*3+1] = g
		pix[i*3+2] = b
	}
	return &Frame{TSUnixNanos: 1, Width: w, Height: h, Pix: pix}
}

// setRect paints a rectangle into an existing frame.
func setRect(f *Frame, x0, y0, x1, y1 int, r, g, b uint8) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			p := (y*f.Width + x) * 3
			f.Pix[p] = r
			f.Pix[p+1] = g
			f.Pix[p+2] = b
		}
	}
}

func testSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		Sky:                       testSkyRange(),
		UniformityMinStdDev:       8.0,
		CalibrationIntervalFrames: 300,
		ValMinFloor:               80,
		ValMinCeil:                160,
	}
}

func TestSkySegmenter_SkyVersusGround(t *testing.T) {
	cal := NewCalibrationState(testSkyRange())
	seg := NewSkySegmenter(testSegmenterConfig(), cal)

	// Top half sky blue (H~107, S~139, V=220), bottom half dark ground.
	f := fillFrame(20, 20, 100, 150, 220)
	setRect(f, 0, 10, 19, 19, 40, 80, 30)

	mask, err := seg.Segment(f)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(mask) != 400 {
		t.Fatalf("mask length %d, want 400", len(mask))
	}

	if !mask[5*20+10] {
		t.Error("sky pixel classified as not-sky")
	}
	if mask[15*20+10] {
		t.Error("ground pixel classified as sky")
	}
	if seg.UniformFrames() != 0 {
		t.Errorf("structured frame should not trip the uniformity fallback")
	}
}

func TestSkySegmenter_UniformFallback(t *testing.T) {
	cal := NewCalibrationState(testSkyRange())
	seg := NewSkySegmenter(testSegmenterConfig(), cal)

	// Featureless grey: no hue or value structure. Everything becomes sky
	// so motion detection still runs.
	mask, err := seg.Segment(fillFrame(16, 16, 128, 128, 128))
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	for i, in := range mask {
		if !in {
			t.Fatalf("uniform frame should be all-sky, pixel %d is false", i)
		}
	}
	if seg.UniformFrames() != 1 {
		t.Errorf("expected 1 uniform frame counted, got %d", seg.UniformFrames())
	}
}

func TestSkySegmenter_Recalibration(t *testing.T) {
	cal := NewCalibrationState(testSkyRange())
	cfg := testSegmenterConfig()
	cfg.CalibrationIntervalFrames = 2
	seg := NewSkySegmenter(cfg, cal)

	// Sky-blue frame with a brightness ramp across columns: value runs
	// 160..232, so the 5th percentile lands at the bottom of the ramp and
	// the clamp ceiling (160) applies.
	f := &Frame{TSUnixNanos: 42, Width: 10, Height: 10, Pix: make([]uint8, 300)}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			p := (y*10 + x) * 3
			f.Pix[p] = 100
			f.Pix[p+1] = 130
			f.Pix[p+2] = uint8(160 + 8*x)
		}
	}

	if _, err := seg.Segment(f); err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if cal.Version() != 1 {
		t.Fatalf("recalibration should wait for the interval, version=%d", cal.Version())
	}

	if _, err := seg.Segment(f); err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if cal.Version() != 2 {
		t.Errorf("second frame should recalibrate, version=%d", cal.Version())
	}
	if got := cal.Sky().ValMin; got != 160 {
		t.Errorf("value floor should clamp to the ceiling 160, got %v", got)
	}
}

func TestSkySegmenter_RejectsInvalidFrame(t *testing.T) {
	cal := NewCalibrationState(testSkyRange())
	seg := NewSkySegmenter(testSegmenterConfig(), cal)

	bad := &Frame{TSUnixNanos: 1, Width: 10, Height: 10, Pix: make([]uint8, 5)}
	if _, err := seg.Segment(bad); err == nil {
		t.Error("expected error for truncated pixel buffer")
	}
}

func TestSegmenterConfigFromTuning(t *testing.T) {
	cfg := DefaultSegmenterConfig()

	if cfg.Sky.HueMin != 90 || cfg.Sky.HueMax != 140 {
		t.Errorf("default hue range wrong: %+v", cfg.Sky)
	}
	if cfg.Sky.SatMax != 255 || cfg.Sky.ValMax != 255 {
		t.Errorf("saturation/value caps should be open at 255: %+v", cfg.Sky)
	}
	if cfg.UniformityMinStdDev <= 0 {
		t.Errorf("UniformityMinStdDev must be positive, got %v", cfg.UniformityMinStdDev)
	}
	if cfg.CalibrationIntervalFrames <= 0 {
		t.Errorf("CalibrationIntervalFrames must be positive, got %d", cfg.CalibrationIntervalFrames)
	}
	if cfg.ValMinFloor >= cfg.ValMinCeil {
		t.Errorf("clamp bounds inverted: floor %v ceil %v", cfg.ValMinFloor, cfg.ValMinCeil)
	}
}
