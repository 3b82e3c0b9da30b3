package vision

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/skylark-data/overflight.report/internal/config"
)

// SegmenterConfig holds the sky segmentation parameters.
type SegmenterConfig struct {
	Sky                       SkyRange // Initial HSV classification box
	UniformityMinStdDev       float64  // Below this hue AND value stddev the sky is indeterminate
	CalibrationIntervalFrames int      // Frames between value-floor recalibrations

	// Clamp bounds for the recalibrated value floor. Fixed operational
	// defaults, not user-tunable.
	ValMinFloor float64
	ValMinCeil  float64
}

// DefaultSegmenterConfig returns segmenter configuration loaded from the
// canonical tuning defaults file (config/tuning.defaults.json).
// Panics if the file cannot be found — intended for tests and binaries
// that have already validated config availability.
func DefaultSegmenterConfig() SegmenterConfig {
	cfg := config.MustLoadDefaultConfig()
	return SegmenterConfigFromTuning(cfg)
}

// SegmenterConfigFromTuning builds a SegmenterConfig from a loaded TuningConfig.
func SegmenterConfigFromTuning(cfg *config.TuningConfig) SegmenterConfig {
	return SegmenterConfig{
		Sky: SkyRange{
			HueMin: cfg.GetSkyHueMin(),
			HueMax: cfg.GetSkyHueMax(),
			SatMin: cfg.GetSkySatMin(),
			SatMax: 255,
			ValMin: cfg.GetSkyValMin(),
			ValMax: 255,
		},
		UniformityMinStdDev:       cfg.GetUniformityMinStdDev(),
		CalibrationIntervalFrames: cfg.GetCalibrationIntervalFrames(),
		ValMinFloor:               80,
		ValMinCeil:                160,
	}
}

// SkySegmenter classifies frame pixels as sky or not-sky. The HSV range it
// classifies against lives in the shared CalibrationState; the segmenter
// re-fits the value floor every CalibrationIntervalFrames frames from the
// 5th percentile of observed sky brightness.
type SkySegmenter struct {
	Config SegmenterConfig

	cal        *CalibrationState
	frameCount int

	// Scratch planes reused between frames. The mask returned by Segment
	// aliases the scratch and is valid until the next call.
	hue, sat, val []float64
	mask          []bool

	uniformFrames int64
}

// NewSkySegmenter creates a segmenter writing its adaptive range into cal.
func NewSkySegmenter(cfg SegmenterConfig, cal *CalibrationState) *SkySegmenter {
	return &SkySegmenter{Config: cfg, cal: cal}
}

// UniformFrames returns how many frames fell back to the all-sky mask.
func (s *SkySegmenter) UniformFrames() int64 {
	return s.uniformFrames
}

// Segment computes the sky mask for a frame. The returned mask is reused on
// the next call and must not be retained across cycles.
//
// When the frame is too uniform to segment (overcast, heavy haze) the whole
// frame is treated as sky so the downstream stages still run.
func (s *SkySegmenter) Segment(f *Frame) ([]bool, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	n := f.NumPixels()
	if cap(s.hue) < n {
		s.hue = make([]float64, n)
		s.sat = make([]float64, n)
		s.val = make([]float64, n)
		s.mask = make([]bool, n)
	}
	hue := s.hue[:n]
	sat := s.sat[:n]
	val := s.val[:n]
	mask := s.mask[:n]

	for i := 0; i < n; i++ {
		p := i * 3
		hue[i], sat[i], val[i] = RGBToHSV(f.Pix[p], f.Pix[p+1], f.Pix[p+2])
	}

	// Uniformity fallback: a frame with no hue or brightness structure
	// cannot be segmented; treat everything as sky.
	hueStd := stat.StdDev(hue, nil)
	valStd := stat.StdDev(val, nil)
	if hueStd < s.Config.UniformityMinStdDev && valStd < s.Config.UniformityMinStdDev {
		s.uniformFrames++
		for i := range mask {
			mask[i] = true
		}
		s.frameCount++
		Tracef("sky: uniform frame (hue σ=%.2f val σ=%.2f), all-sky fallback", hueStd, valStd)
		return mask, nil
	}

	r := s.cal.Sky()
	skyCount := 0
	for i := 0; i < n; i++ {
		in := r.Contains(hue[i], sat[i], val[i])
		mask[i] = in
		if in {
			skyCount++
		}
	}

	s.frameCount++
	if s.Config.CalibrationIntervalFrames > 0 && s.frameCount%s.Config.CalibrationIntervalFrames == 0 && skyCount > 0 {
		s.recalibrate(val, mask, skyCount, f.TSUnixNanos)
	}

	return mask, nil
}

// recalibrate re-fits the sky value floor from the 5th percentile of
// brightness over the pixels currently classified as sky, clamped to the
// configured bounds.
func (s *SkySegmenter) recalibrate(val []float64, mask []bool, skyCount int, nowNanos int64) {
	skyVals := make([]float64, 0, skyCount)
	for i, in := range mask {
		if in {
			skyVals = append(skyVals, val[i])
		}
	}
	sort.Float64s(skyVals)
	p5 := stat.Quantile(0.05, stat.Empirical, skyVals, nil)

	newMin := p5
	if newMin < s.Config.ValMinFloor {
		newMin = s.Config.ValMinFloor
	}
	if newMin > s.Config.ValMinCeil {
		newMin = s.Config.ValMinCeil
	}

	old := s.cal.Sky().ValMin
	s.cal.SetSkyValMin(newMin, nowNanos)
	if newMin != old {
		Diagf("sky: recalibrated value floor %.1f -> %.1f (p5=%.1f over %d sky px)",
			old, newMin, p5, skyCount)
	}
}
