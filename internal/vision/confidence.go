package vision

import (
	"math"

	"github.com/skylark-data/overflight.report/internal/config"
)

// ConfidenceConfig holds the weights and references for detection scoring.
type ConfidenceConfig struct {
	WeightContrast   float64 // Weight of the contrast component
	WeightSize       float64 // Weight of the size component
	WeightShape      float64 // Weight of the shape component
	WeightTrajectory float64 // Weight of the trajectory component
	OptimalArea      float64 // Blob area (px) scoring 1.0 on the size component
	Threshold        float64 // Minimum score for a confirmed track to emit a detection

	// Heading consistency needs at least MinTrajectorySegments segments;
	// below that the trajectory component is neutral (0.5).
	MinTrajectorySegments int
}

// DefaultConfidenceConfig returns scoring configuration loaded from the
// canonical tuning defaults file. Panics if the file cannot be found.
func DefaultConfidenceConfig() ConfidenceConfig {
	cfg := config.MustLoadDefaultConfig()
	return ConfidenceConfigFromTuning(cfg)
}

// ConfidenceConfigFromTuning builds a ConfidenceConfig from a loaded
// TuningConfig.
func ConfidenceConfigFromTuning(cfg *config.TuningConfig) ConfidenceConfig {
	return ConfidenceConfig{
		WeightContrast:   cfg.GetWeightContrast(),
		WeightSize:       cfg.GetWeightSize(),
		WeightShape:      cfg.GetWeightShape(),
		WeightTrajectory: cfg.GetWeightTrajectory(),
		OptimalArea:      cfg.GetOptimalArea(),
		Threshold:        cfg.GetConfidenceThreshold(),

		MinTrajectorySegments: 3,
	}
}

// ConfidenceBreakdown carries the per-component scores alongside the final
// weighted value, for the diagnostics API and tuning sessions.
type ConfidenceBreakdown struct {
	Contrast   float64 `json:"contrast"`
	Size       float64 `json:"size"`
	Shape      float64 `json:"shape"`
	Trajectory float64 `json:"trajectory"`
	Score      float64 `json:"score"`
}

// Scorer computes detection confidence for tracked objects.
type Scorer struct {
	Config ConfidenceConfig
}

// NewScorer creates a scorer with the given configuration.
func NewScorer(cfg ConfidenceConfig) *Scorer {
	return &Scorer{Config: cfg}
}

// Score computes the weighted confidence for a track snapshot. Components
// are each clamped to [0,1] before weighting, so the result is bounded by
// the weight sum (1.0 with default weights).
func (s *Scorer) Score(track *TrackedObject) ConfidenceBreakdown {
	b := ConfidenceBreakdown{
		Contrast:   s.contrastScore(track.LastContrast),
		Size:       s.sizeScore(float64(track.LastArea)),
		Shape:      s.shapeScore(float64(track.LastArea), float64(track.LastPerimeter)),
		Trajectory: s.trajectoryScore(track.History),
	}
	score := s.Config.WeightContrast*b.Contrast +
		s.Config.WeightSize*b.Size +
		s.Config.WeightShape*b.Shape +
		s.Config.WeightTrajectory*b.Trajectory
	b.Score = clamp01(score)
	return b
}

// IsDetection reports whether a track currently qualifies as a detection:
// confirmed lifecycle state and score at or above the threshold.
func (s *Scorer) IsDetection(track *TrackedObject, score float64) bool {
	return track.State == TrackConfirmed && score >= s.Config.Threshold
}

// contrastScore scales absolute contrast so that 100 grey levels of
// separation from the surrounding sky scores 1.0.
func (s *Scorer) contrastScore(contrast float64) float64 {
	return clamp01(contrast / 100)
}

// sizeScore peaks at OptimalArea and falls off linearly to 0 at zero area
// and at twice the optimum.
func (s *Scorer) sizeScore(area float64) float64 {
	if s.Config.OptimalArea <= 0 {
		return 0
	}
	return clamp01(1 - math.Abs(area-s.Config.OptimalArea)/s.Config.OptimalArea)
}

// shapeScore doubles the isoperimetric circularity 4*pi*A/P^2 and caps at
// 1, so moderately compact blobs score full marks while filamentary noise
// scores low. Degenerate perimeters score 0.
func (s *Scorer) shapeScore(area, perimeter float64) float64 {
	if perimeter <= 0 {
		return 0
	}
	circularity := 4 * math.Pi * area / (perimeter * perimeter)
	return clamp01(circularity * 2)
}

// trajectoryScore is the mean resultant length of the heading vectors over
// the recent history. Straight movers score near 1, jitter scores near 0.
// Tracks too short to judge get a neutral 0.5.
func (s *Scorer) trajectoryScore(history []TrackPoint) float64 {
	r, segments := HeadingConsistency(history, MaxTrackHistoryLength)
	if segments < s.Config.MinTrajectorySegments {
		return 0.5
	}
	return clamp01(r)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Detection is an emitted aircraft-candidate event: a confirmed track whose
// confidence crossed the threshold on this frame.
type Detection struct {
	ID          int64   `json:"id,omitempty"` // DB row ID once persisted
	TrackID     string  `json:"track_id"`
	TSUnixNanos int64   `json:"ts_unix_nanos"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Confidence  float64 `json:"confidence"`
	Area        int     `json:"area"`
	Contrast    float64 `json:"contrast"`

	// ADS-B identity, when the correlator has matched this track.
	CorrelatedHex    string  `json:"correlated_hex,omitempty"`
	CorrelatedFlight string  `json:"correlated_flight,omitempty"`
	CorrelatedAltFt  float64 `json:"correlated_alt_ft,omitempty"`

	// ImagePath points at a saved crop of the detection, when image saving
	// is enabled.
	ImagePath string `json:"image_path,omitempty"`
}
