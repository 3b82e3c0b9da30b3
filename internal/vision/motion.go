package vision

import (
	"gonum.org/v1/gonum/stat"

	"github.com/skylark-data/overflight.report/internal/config"
)

// MotionConfig holds the motion detection parameters.
type MotionConfig struct {
	BlockSize            int     // Odd local-mean window for the adaptive threshold
	ThresholdC           float64 // Constant margin above the local mean
	NoiseSigmaMultiplier float64 // Extra margin per unit of rolling noise sigma
	NoiseUpdateFraction  float64 // EMA alpha for the rolling noise sigma
}

// DefaultMotionConfig returns motion configuration loaded from the
// canonical tuning defaults file (config/tuning.defaults.json).
func DefaultMotionConfig() MotionConfig {
	cfg := config.MustLoadDefaultConfig()
	return MotionConfigFromTuning(cfg)
}

// MotionConfigFromTuning builds a MotionConfig from a loaded TuningConfig.
func MotionConfigFromTuning(cfg *config.TuningConfig) MotionConfig {
	return MotionConfig{
		BlockSize:            cfg.GetMotionBlockSize(),
		ThresholdC:           cfg.GetMotionThresholdC(),
		NoiseSigmaMultiplier: cfg.GetNoiseSigmaMultiplier(),
		NoiseUpdateFraction:  cfg.GetNoiseUpdateFraction(),
	}
}

// MotionResult carries the per-pixel motion scores for one frame together
// with the smoothed luminance plane they were derived from (reused by the
// blob extractor for contrast measurement).
type MotionResult struct {
	Scores     []float64 // len Width*Height; 0 = static, else diff magnitude
	Gray       []float64 // smoothed luminance plane of the current frame
	NoiseSigma float64   // rolling noise sigma after this frame
}

// MotionDetector scores per-pixel motion against the previous frame,
// restricted to the sky mask, with a locally adaptive threshold. The first
// frame (no reference yet) yields an all-zero score grid.
type MotionDetector struct {
	Config MotionConfig

	cal *CalibrationState

	prev  []float64
	prevW int
	prevH int
}

// NewMotionDetector creates a detector folding its rolling noise estimate
// into cal.
func NewMotionDetector(cfg MotionConfig, cal *CalibrationState) *MotionDetector {
	return &MotionDetector{Config: cfg, cal: cal}
}

// Reset drops the reference frame so the next Detect starts over. Used when
// the frame geometry changes or detection is re-enabled after a pause.
func (m *MotionDetector) Reset() {
	m.prev = nil
	m.prevW = 0
	m.prevH = 0
}

// Detect computes motion scores for the frame within the sky mask.
func (m *MotionDetector) Detect(f *Frame, skyMask []bool) MotionResult {
	gray := Grayscale(f)
	smoothed := GaussianBlur5(gray, f.Width, f.Height)
	n := f.NumPixels()
	scores := make([]float64, n)

	if m.prev == nil || m.prevW != f.Width || m.prevH != f.Height {
		// No reference yet (or geometry changed): no motion this cycle.
		m.prev = smoothed
		m.prevW = f.Width
		m.prevH = f.Height
		return MotionResult{Scores: scores, Gray: smoothed, NoiseSigma: m.cal.NoiseSigma()}
	}

	diff := make([]float64, n)
	masked := make([]float64, 0, n/4)
	for i := 0; i < n; i++ {
		if !skyMask[i] {
			continue
		}
		d := smoothed[i] - m.prev[i]
		if d < 0 {
			d = -d
		}
		diff[i] = d
		masked = append(masked, d)
	}

	// Fold this frame's diff spread into the rolling noise sigma before
	// thresholding, so a sudden global change (exposure step) raises the
	// bar in the same cycle.
	var sigma float64
	if len(masked) > 1 {
		sigma = stat.StdDev(masked, nil)
		m.cal.UpdateNoiseSigma(sigma, m.Config.NoiseUpdateFraction, f.TSUnixNanos)
	}
	noise := m.cal.NoiseSigma()

	// Adaptive threshold: local mean over BlockSize plus a noise-scaled
	// margin. Pixels below the bar are zeroed; survivors keep their diff
	// magnitude as the score.
	ii := integralImage(diff, f.Width, f.Height)
	r := m.Config.BlockSize / 2
	margin := m.Config.ThresholdC + m.Config.NoiseSigmaMultiplier*noise
	for y := 0; y < f.Height; y++ {
		row := y * f.Width
		for x := 0; x < f.Width; x++ {
			i := row + x
			if diff[i] == 0 {
				continue
			}
			if diff[i] > boxMean(ii, f.Width, f.Height, x, y, r)+margin {
				scores[i] = diff[i]
			}
		}
	}

	m.prev = smoothed
	return MotionResult{Scores: scores, Gray: smoothed, NoiseSigma: noise}
}
