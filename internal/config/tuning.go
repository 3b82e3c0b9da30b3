package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for pipeline tuning.
// The schema matches the /api/config endpoint so the same JSON can be
// used for both startup configuration and runtime updates. All fields
// are pointers so a partial file (or PATCH body) only overrides the
// fields it names.
type TuningConfig struct {
	// Sky segmentation params. Hue/sat/value use the OpenCV scale the
	// original calibration data was collected in: H in [0,180), S and V
	// in [0,255].
	SkyHueMin                 *float64 `json:"sky_hue_min,omitempty"`
	SkyHueMax                 *float64 `json:"sky_hue_max,omitempty"`
	SkySatMin                 *float64 `json:"sky_sat_min,omitempty"`
	SkyValMin                 *float64 `json:"sky_val_min,omitempty"`
	UniformityMinStdDev       *float64 `json:"uniformity_min_stddev,omitempty"`
	CalibrationIntervalFrames *int     `json:"calibration_interval_frames,omitempty"`

	// Motion detection params
	MotionBlockSize      *int     `json:"motion_block_size,omitempty"`
	MotionThresholdC     *float64 `json:"motion_threshold_c,omitempty"`
	NoiseSigmaMultiplier *float64 `json:"noise_sigma_multiplier,omitempty"`
	NoiseUpdateFraction  *float64 `json:"noise_update_fraction,omitempty"`

	// Blob extraction params
	MinBlobArea      *int     `json:"min_blob_area,omitempty"`
	MaxBlobArea      *int     `json:"max_blob_area,omitempty"`
	MinContrast      *float64 `json:"min_contrast,omitempty"`
	AspectRatioMin   *float64 `json:"aspect_ratio_min,omitempty"`
	AspectRatioMax   *float64 `json:"aspect_ratio_max,omitempty"`
	MaxBlobsPerFrame *int     `json:"max_blobs_per_frame,omitempty"`

	// Tracker params
	GatingDistancePx   *float64 `json:"gating_distance_px,omitempty"`
	MaxPositionJumpPx  *float64 `json:"max_position_jump_px,omitempty"`
	HitsToConfirm      *int     `json:"hits_to_confirm,omitempty"`
	MaxMissesTentative *int     `json:"max_misses_tentative,omitempty"`
	StaleAfterMisses   *int     `json:"stale_after_misses,omitempty"`
	RetireAfterMisses  *int     `json:"retire_after_misses,omitempty"`
	RetiredGracePeriod *string  `json:"retired_grace_period,omitempty"` // duration string like "5s"
	VelocityWindow     *int     `json:"velocity_window,omitempty"`
	MaxTracks          *int     `json:"max_tracks,omitempty"`
	CostDistanceWeight *float64 `json:"cost_distance_weight,omitempty"`
	CostSizeWeight     *float64 `json:"cost_size_weight,omitempty"`
	CostContrastWeight *float64 `json:"cost_contrast_weight,omitempty"`

	// Confidence params
	WeightContrast      *float64 `json:"weight_contrast,omitempty"`
	WeightSize          *float64 `json:"weight_size,omitempty"`
	WeightShape         *float64 `json:"weight_shape,omitempty"`
	WeightTrajectory    *float64 `json:"weight_trajectory,omitempty"`
	OptimalArea         *float64 `json:"optimal_area,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`

	// ADS-B params
	ADSBURL             *string  `json:"adsb_url,omitempty"`
	ADSBPollInterval    *string  `json:"adsb_poll_interval,omitempty"`    // duration string like "1s"
	ADSBFreshness       *string  `json:"adsb_freshness,omitempty"`        // duration string like "60s"
	ADSBMaxPositionAge  *string  `json:"adsb_max_position_age,omitempty"` // duration string like "60s"
	ADSBMaxRangeNm      *float64 `json:"adsb_max_range_nm,omitempty"`
	ADSBMinAltitudeFt   *float64 `json:"adsb_min_altitude_ft,omitempty"`
	CameraLatitude      *float64 `json:"camera_latitude,omitempty"`
	CameraLongitude     *float64 `json:"camera_longitude,omitempty"`
	NorthOffsetDeg      *float64 `json:"north_offset_deg,omitempty"`
	MatchMaxCost        *float64 `json:"match_max_cost,omitempty"`
	MatchPositionWeight *float64 `json:"match_position_weight,omitempty"`
	MatchHeadingWeight  *float64 `json:"match_heading_weight,omitempty"`
	MatchAgeWeight      *float64 `json:"match_age_weight,omitempty"`

	// Pipeline params
	MinFrameInterval    *string `json:"min_frame_interval,omitempty"`    // duration string like "40ms"
	PartialFrameTimeout *string `json:"partial_frame_timeout,omitempty"` // duration string like "1s"
	RetentionDays       *int    `json:"retention_days,omitempty"`

	// Endpoint and path params. Flags in main.go take precedence when set;
	// these let a deployment carry its addresses in the same file as its
	// tuning.
	ADSBSBSPort     *string `json:"adsb_sbs_port,omitempty"` // serial device path, empty disables
	ADSBSBSBaud     *int    `json:"adsb_sbs_baud,omitempty"`
	FrameListenAddr *string `json:"frame_listen_addr,omitempty"`
	DBPath          *string `json:"db_path,omitempty"`
	SnapshotDir     *string `json:"snapshot_dir,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field explicitly set
// to its default value. The values here must agree with the Get* fallbacks
// and with config/tuning.defaults.json; TestDefaultMatchesGetters enforces
// the first half of that.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		SkyHueMin:                 ptrFloat64(90),
		SkyHueMax:                 ptrFloat64(140),
		SkySatMin:                 ptrFloat64(30),
		SkyValMin:                 ptrFloat64(120),
		UniformityMinStdDev:       ptrFloat64(8.0),
		CalibrationIntervalFrames: ptrInt(300),

		MotionBlockSize:      ptrInt(11),
		MotionThresholdC:     ptrFloat64(2.0),
		NoiseSigmaMultiplier: ptrFloat64(1.5),
		NoiseUpdateFraction:  ptrFloat64(0.05),

		MinBlobArea:      ptrInt(25),
		MaxBlobArea:      ptrInt(2000),
		MinContrast:      ptrFloat64(25),
		AspectRatioMin:   ptrFloat64(0.2),
		AspectRatioMax:   ptrFloat64(5.0),
		MaxBlobsPerFrame: ptrInt(32),

		GatingDistancePx:   ptrFloat64(50),
		MaxPositionJumpPx:  ptrFloat64(150),
		HitsToConfirm:      ptrInt(3),
		MaxMissesTentative: ptrInt(5),
		StaleAfterMisses:   ptrInt(15),
		RetireAfterMisses:  ptrInt(50),
		RetiredGracePeriod: ptrString("5s"),
		VelocityWindow:     ptrInt(5),
		MaxTracks:          ptrInt(64),
		CostDistanceWeight: ptrFloat64(1.0),
		CostSizeWeight:     ptrFloat64(5.0),
		CostContrastWeight: ptrFloat64(2.0),

		WeightContrast:      ptrFloat64(0.4),
		WeightSize:          ptrFloat64(0.2),
		WeightShape:         ptrFloat64(0.2),
		WeightTrajectory:    ptrFloat64(0.2),
		OptimalArea:         ptrFloat64(100),
		ConfidenceThreshold: ptrFloat64(0.6),

		ADSBURL:             ptrString("http://localhost:8080/data/aircraft.json"),
		ADSBPollInterval:    ptrString("1s"),
		ADSBFreshness:       ptrString("60s"),
		ADSBMaxPositionAge:  ptrString("60s"),
		ADSBMaxRangeNm:      ptrFloat64(50),
		ADSBMinAltitudeFt:   ptrFloat64(500),
		CameraLatitude:      ptrFloat64(0),
		CameraLongitude:     ptrFloat64(0),
		NorthOffsetDeg:      ptrFloat64(0),
		MatchMaxCost:        ptrFloat64(0.5),
		MatchPositionWeight: ptrFloat64(1.0),
		MatchHeadingWeight:  ptrFloat64(0.5),
		MatchAgeWeight:      ptrFloat64(0.25),

		MinFrameInterval:    ptrString("0s"),
		PartialFrameTimeout: ptrString("1s"),
		RetentionDays:       ptrInt(30),

		ADSBSBSPort:     ptrString(""),
		ADSBSBSBaud:     ptrInt(115200),
		FrameListenAddr: ptrString(":9300"),
		DBPath:          ptrString("skywatch_data.db"),
		SnapshotDir:     ptrString("snapshots"),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/vision/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Merge overlays the non-nil fields of other onto c. Used by the runtime
// config endpoint so a PATCH body only touches the fields it names.
func (c *TuningConfig) Merge(other *TuningConfig) {
	if other == nil {
		return
	}
	data, err := json.Marshal(other)
	if err != nil {
		return
	}
	// Unmarshal over the existing struct: omitempty on the source means
	// absent fields stay untouched.
	_ = json.Unmarshal(data, c)
}

// Validate checks that the configuration values are valid.
// Called at startup; a failure here is fatal before the pipeline begins.
func (c *TuningConfig) Validate() error {
	if c.SkyHueMin != nil && (*c.SkyHueMin < 0 || *c.SkyHueMin >= 180) {
		return fmt.Errorf("sky_hue_min must be in [0,180), got %f", *c.SkyHueMin)
	}
	if c.SkyHueMax != nil && (*c.SkyHueMax < 0 || *c.SkyHueMax >= 180) {
		return fmt.Errorf("sky_hue_max must be in [0,180), got %f", *c.SkyHueMax)
	}
	if c.SkyHueMin != nil && c.SkyHueMax != nil && *c.SkyHueMin > *c.SkyHueMax {
		return fmt.Errorf("sky_hue_min (%f) must not exceed sky_hue_max (%f)", *c.SkyHueMin, *c.SkyHueMax)
	}
	if c.SkySatMin != nil && (*c.SkySatMin < 0 || *c.SkySatMin > 255) {
		return fmt.Errorf("sky_sat_min must be in [0,255], got %f", *c.SkySatMin)
	}
	if c.SkyValMin != nil && (*c.SkyValMin < 0 || *c.SkyValMin > 255) {
		return fmt.Errorf("sky_val_min must be in [0,255], got %f", *c.SkyValMin)
	}

	if c.MotionBlockSize != nil {
		if *c.MotionBlockSize < 3 || *c.MotionBlockSize%2 == 0 {
			return fmt.Errorf("motion_block_size must be an odd value >= 3, got %d", *c.MotionBlockSize)
		}
	}
	if c.NoiseUpdateFraction != nil && (*c.NoiseUpdateFraction <= 0 || *c.NoiseUpdateFraction > 1) {
		return fmt.Errorf("noise_update_fraction must be in (0,1], got %f", *c.NoiseUpdateFraction)
	}

	if c.MinBlobArea != nil && *c.MinBlobArea < 1 {
		return fmt.Errorf("min_blob_area must be >= 1, got %d", *c.MinBlobArea)
	}
	if c.MinBlobArea != nil && c.MaxBlobArea != nil && *c.MinBlobArea > *c.MaxBlobArea {
		return fmt.Errorf("min_blob_area (%d) must not exceed max_blob_area (%d)", *c.MinBlobArea, *c.MaxBlobArea)
	}
	if c.AspectRatioMin != nil && c.AspectRatioMax != nil && *c.AspectRatioMin > *c.AspectRatioMax {
		return fmt.Errorf("aspect_ratio_min (%f) must not exceed aspect_ratio_max (%f)", *c.AspectRatioMin, *c.AspectRatioMax)
	}

	if c.GatingDistancePx != nil && *c.GatingDistancePx <= 0 {
		return fmt.Errorf("gating_distance_px must be positive, got %f", *c.GatingDistancePx)
	}
	if c.HitsToConfirm != nil && *c.HitsToConfirm < 1 {
		return fmt.Errorf("hits_to_confirm must be >= 1, got %d", *c.HitsToConfirm)
	}
	if c.StaleAfterMisses != nil && c.RetireAfterMisses != nil && *c.StaleAfterMisses >= *c.RetireAfterMisses {
		return fmt.Errorf("stale_after_misses (%d) must be below retire_after_misses (%d)",
			*c.StaleAfterMisses, *c.RetireAfterMisses)
	}
	if c.VelocityWindow != nil && *c.VelocityWindow < 2 {
		return fmt.Errorf("velocity_window must be >= 2, got %d", *c.VelocityWindow)
	}

	for name, w := range map[string]*float64{
		"weight_contrast":   c.WeightContrast,
		"weight_size":       c.WeightSize,
		"weight_shape":      c.WeightShape,
		"weight_trajectory": c.WeightTrajectory,
	} {
		if w != nil && (*w < 0 || *w > 1) {
			return fmt.Errorf("%s must be in [0,1], got %f", name, *w)
		}
	}
	if c.ConfidenceThreshold != nil && (*c.ConfidenceThreshold < 0 || *c.ConfidenceThreshold > 1) {
		return fmt.Errorf("confidence_threshold must be in [0,1], got %f", *c.ConfidenceThreshold)
	}

	if c.CameraLatitude != nil && (*c.CameraLatitude < -90 || *c.CameraLatitude > 90) {
		return fmt.Errorf("camera_latitude must be in [-90,90], got %f", *c.CameraLatitude)
	}
	if c.CameraLongitude != nil && (*c.CameraLongitude < -180 || *c.CameraLongitude > 180) {
		return fmt.Errorf("camera_longitude must be in [-180,180], got %f", *c.CameraLongitude)
	}
	if c.ADSBMaxRangeNm != nil && *c.ADSBMaxRangeNm <= 0 {
		return fmt.Errorf("adsb_max_range_nm must be positive, got %f", *c.ADSBMaxRangeNm)
	}

	for name, d := range map[string]*string{
		"retired_grace_period":  c.RetiredGracePeriod,
		"adsb_poll_interval":    c.ADSBPollInterval,
		"adsb_freshness":        c.ADSBFreshness,
		"adsb_max_position_age": c.ADSBMaxPositionAge,
		"min_frame_interval":    c.MinFrameInterval,
		"partial_frame_timeout": c.PartialFrameTimeout,
	} {
		if d != nil && *d != "" {
			if _, err := time.ParseDuration(*d); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
			}
		}
	}

	if c.RetentionDays != nil && *c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must be non-negative, got %d", *c.RetentionDays)
	}

	if c.ADSBSBSBaud != nil && *c.ADSBSBSBaud <= 0 {
		return fmt.Errorf("adsb_sbs_baud must be positive, got %d", *c.ADSBSBSBaud)
	}

	return nil
}

func (c *TuningConfig) duration(field *string, fallback time.Duration) time.Duration {
	if field == nil || *field == "" {
		return fallback
	}
	d, err := time.ParseDuration(*field)
	if err != nil {
		return fallback
	}
	return d
}

// GetSkyHueMin returns the sky_hue_min value or the default.
func (c *TuningConfig) GetSkyHueMin() float64 {
	if c.SkyHueMin == nil {
		return 90
	}
	return *c.SkyHueMin
}

// GetSkyHueMax returns the sky_hue_max value or the default.
func (c *TuningConfig) GetSkyHueMax() float64 {
	if c.SkyHueMax == nil {
		return 140
	}
	return *c.SkyHueMax
}

// GetSkySatMin returns the sky_sat_min value or the default.
func (c *TuningConfig) GetSkySatMin() float64 {
	if c.SkySatMin == nil {
		return 30
	}
	return *c.SkySatMin
}

// GetSkyValMin returns the sky_val_min value or the default.
func (c *TuningConfig) GetSkyValMin() float64 {
	if c.SkyValMin == nil {
		return 120
	}
	return *c.SkyValMin
}

// GetUniformityMinStdDev returns the uniformity_min_stddev value or the default.
func (c *TuningConfig) GetUniformityMinStdDev() float64 {
	if c.UniformityMinStdDev == nil {
		return 8.0
	}
	return *c.UniformityMinStdDev
}

// GetCalibrationIntervalFrames returns the calibration_interval_frames value or the default.
func (c *TuningConfig) GetCalibrationIntervalFrames() int {
	if c.CalibrationIntervalFrames == nil {
		return 300
	}
	return *c.CalibrationIntervalFrames
}

// GetMotionBlockSize returns the motion_block_size value or the default.
func (c *TuningConfig) GetMotionBlockSize() int {
	if c.MotionBlockSize == nil {
		return 11
	}
	return *c.MotionBlockSize
}

// GetMotionThresholdC returns the motion_threshold_c value or the default.
func (c *TuningConfig) GetMotionThresholdC() float64 {
	if c.MotionThresholdC == nil {
		return 2.0
	}
	return *c.MotionThresholdC
}

// GetNoiseSigmaMultiplier returns the noise_sigma_multiplier value or the default.
func (c *TuningConfig) GetNoiseSigmaMultiplier() float64 {
	if c.NoiseSigmaMultiplier == nil {
		return 1.5
	}
	return *c.NoiseSigmaMultiplier
}

// GetNoiseUpdateFraction returns the noise_update_fraction value or the default.
func (c *TuningConfig) GetNoiseUpdateFraction() float64 {
	if c.NoiseUpdateFraction == nil {
		return 0.05
	}
	return *c.NoiseUpdateFraction
}

// GetMinBlobArea returns the min_blob_area value or the default.
func (c *TuningConfig) GetMinBlobArea() int {
	if c.MinBlobArea == nil {
		return 25
	}
	return *c.MinBlobArea
}

// GetMaxBlobArea returns the max_blob_area value or the default.
func (c *TuningConfig) GetMaxBlobArea() int {
	if c.MaxBlobArea == nil {
		return 2000
	}
	return *c.MaxBlobArea
}

// GetMinContrast returns the min_contrast value or the default.
func (c *TuningConfig) GetMinContrast() float64 {
	if c.MinContrast == nil {
		return 25
	}
	return *c.MinContrast
}

// GetAspectRatioMin returns the aspect_ratio_min value or the default.
func (c *TuningConfig) GetAspectRatioMin() float64 {
	if c.AspectRatioMin == nil {
		return 0.2
	}
	return *c.AspectRatioMin
}

// GetAspectRatioMax returns the aspect_ratio_max value or the default.
func (c *TuningConfig) GetAspectRatioMax() float64 {
	if c.AspectRatioMax == nil {
		return 5.0
	}
	return *c.AspectRatioMax
}

// GetMaxBlobsPerFrame returns the max_blobs_per_frame value or the default.
func (c *TuningConfig) GetMaxBlobsPerFrame() int {
	if c.MaxBlobsPerFrame == nil {
		return 32
	}
	return *c.MaxBlobsPerFrame
}

// GetGatingDistancePx returns the gating_distance_px value or the default.
func (c *TuningConfig) GetGatingDistancePx() float64 {
	if c.GatingDistancePx == nil {
		return 50
	}
	return *c.GatingDistancePx
}

// GetMaxPositionJumpPx returns the max_position_jump_px value or the default.
func (c *TuningConfig) GetMaxPositionJumpPx() float64 {
	if c.MaxPositionJumpPx == nil {
		return 150
	}
	return *c.MaxPositionJumpPx
}

// GetHitsToConfirm returns the hits_to_confirm value or the default.
func (c *TuningConfig) GetHitsToConfirm() int {
	if c.HitsToConfirm == nil {
		return 3
	}
	return *c.HitsToConfirm
}

// GetMaxMissesTentative returns the max_misses_tentative value or the default.
func (c *TuningConfig) GetMaxMissesTentative() int {
	if c.MaxMissesTentative == nil {
		return 5
	}
	return *c.MaxMissesTentative
}

// GetStaleAfterMisses returns the stale_after_misses value or the default.
func (c *TuningConfig) GetStaleAfterMisses() int {
	if c.StaleAfterMisses == nil {
		return 15
	}
	return *c.StaleAfterMisses
}

// GetRetireAfterMisses returns the retire_after_misses value or the default.
func (c *TuningConfig) GetRetireAfterMisses() int {
	if c.RetireAfterMisses == nil {
		return 50
	}
	return *c.RetireAfterMisses
}

// GetRetiredGracePeriod parses and returns the retired_grace_period duration.
func (c *TuningConfig) GetRetiredGracePeriod() time.Duration {
	return c.duration(c.RetiredGracePeriod, 5*time.Second)
}

// GetVelocityWindow returns the velocity_window value or the default.
func (c *TuningConfig) GetVelocityWindow() int {
	if c.VelocityWindow == nil {
		return 5
	}
	return *c.VelocityWindow
}

// GetMaxTracks returns the max_tracks value or the default.
func (c *TuningConfig) GetMaxTracks() int {
	if c.MaxTracks == nil {
		return 64
	}
	return *c.MaxTracks
}

// GetCostDistanceWeight returns the cost_distance_weight value or the default.
func (c *TuningConfig) GetCostDistanceWeight() float64 {
	if c.CostDistanceWeight == nil {
		return 1.0
	}
	return *c.CostDistanceWeight
}

// GetCostSizeWeight returns the cost_size_weight value or the default.
func (c *TuningConfig) GetCostSizeWeight() float64 {
	if c.CostSizeWeight == nil {
		return 5.0
	}
	return *c.CostSizeWeight
}

// GetCostContrastWeight returns the cost_contrast_weight value or the default.
func (c *TuningConfig) GetCostContrastWeight() float64 {
	if c.CostContrastWeight == nil {
		return 2.0
	}
	return *c.CostContrastWeight
}

// GetWeightContrast returns the weight_contrast value or the default.
func (c *TuningConfig) GetWeightContrast() float64 {
	if c.WeightContrast == nil {
		return 0.4
	}
	return *c.WeightContrast
}

// GetWeightSize returns the weight_size value or the default.
func (c *TuningConfig) GetWeightSize() float64 {
	if c.WeightSize == nil {
		return 0.2
	}
	return *c.WeightSize
}

// GetWeightShape returns the weight_shape value or the default.
func (c *TuningConfig) GetWeightShape() float64 {
	if c.WeightShape == nil {
		return 0.2
	}
	return *c.WeightShape
}

// GetWeightTrajectory returns the weight_trajectory value or the default.
func (c *TuningConfig) GetWeightTrajectory() float64 {
	if c.WeightTrajectory == nil {
		return 0.2
	}
	return *c.WeightTrajectory
}

// GetOptimalArea returns the optimal_area value or the default.
func (c *TuningConfig) GetOptimalArea() float64 {
	if c.OptimalArea == nil {
		return 100
	}
	return *c.OptimalArea
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.6
	}
	return *c.ConfidenceThreshold
}

// GetADSBURL returns the adsb_url value or the default.
func (c *TuningConfig) GetADSBURL() string {
	if c.ADSBURL == nil || *c.ADSBURL == "" {
		return "http://localhost:8080/data/aircraft.json"
	}
	return *c.ADSBURL
}

// GetADSBPollInterval parses and returns the adsb_poll_interval duration.
func (c *TuningConfig) GetADSBPollInterval() time.Duration {
	return c.duration(c.ADSBPollInterval, time.Second)
}

// GetADSBFreshness parses and returns the adsb_freshness duration.
func (c *TuningConfig) GetADSBFreshness() time.Duration {
	return c.duration(c.ADSBFreshness, 60*time.Second)
}

// GetADSBMaxPositionAge parses and returns the adsb_max_position_age duration.
func (c *TuningConfig) GetADSBMaxPositionAge() time.Duration {
	return c.duration(c.ADSBMaxPositionAge, 60*time.Second)
}

// GetADSBMaxRangeNm returns the adsb_max_range_nm value or the default.
func (c *TuningConfig) GetADSBMaxRangeNm() float64 {
	if c.ADSBMaxRangeNm == nil {
		return 50
	}
	return *c.ADSBMaxRangeNm
}

// GetADSBMinAltitudeFt returns the adsb_min_altitude_ft value or the default.
func (c *TuningConfig) GetADSBMinAltitudeFt() float64 {
	if c.ADSBMinAltitudeFt == nil {
		return 500
	}
	return *c.ADSBMinAltitudeFt
}

// GetCameraLatitude returns the camera_latitude value or the default.
func (c *TuningConfig) GetCameraLatitude() float64 {
	if c.CameraLatitude == nil {
		return 0
	}
	return *c.CameraLatitude
}

// GetCameraLongitude returns the camera_longitude value or the default.
func (c *TuningConfig) GetCameraLongitude() float64 {
	if c.CameraLongitude == nil {
		return 0
	}
	return *c.CameraLongitude
}

// GetNorthOffsetDeg returns the north_offset_deg value or the default.
func (c *TuningConfig) GetNorthOffsetDeg() float64 {
	if c.NorthOffsetDeg == nil {
		return 0
	}
	return *c.NorthOffsetDeg
}

// GetMatchMaxCost returns the match_max_cost value or the default.
func (c *TuningConfig) GetMatchMaxCost() float64 {
	if c.MatchMaxCost == nil {
		return 0.5
	}
	return *c.MatchMaxCost
}

// GetMatchPositionWeight returns the match_position_weight value or the default.
func (c *TuningConfig) GetMatchPositionWeight() float64 {
	if c.MatchPositionWeight == nil {
		return 1.0
	}
	return *c.MatchPositionWeight
}

// GetMatchHeadingWeight returns the match_heading_weight value or the default.
func (c *TuningConfig) GetMatchHeadingWeight() float64 {
	if c.MatchHeadingWeight == nil {
		return 0.5
	}
	return *c.MatchHeadingWeight
}

// GetMatchAgeWeight returns the match_age_weight value or the default.
func (c *TuningConfig) GetMatchAgeWeight() float64 {
	if c.MatchAgeWeight == nil {
		return 0.25
	}
	return *c.MatchAgeWeight
}

// GetMinFrameInterval parses and returns the min_frame_interval duration.
func (c *TuningConfig) GetMinFrameInterval() time.Duration {
	return c.duration(c.MinFrameInterval, 0)
}

// GetPartialFrameTimeout parses and returns the partial_frame_timeout duration.
func (c *TuningConfig) GetPartialFrameTimeout() time.Duration {
	return c.duration(c.PartialFrameTimeout, time.Second)
}

// GetRetentionDays returns the retention_days value or the default.
// Zero disables pruning.
func (c *TuningConfig) GetRetentionDays() int {
	if c.RetentionDays == nil {
		return 30
	}
	return *c.RetentionDays
}

// GetADSBSBSPort returns the adsb_sbs_port value. Empty means the serial
// SBS source is disabled.
func (c *TuningConfig) GetADSBSBSPort() string {
	if c.ADSBSBSPort == nil {
		return ""
	}
	return *c.ADSBSBSPort
}

// GetADSBSBSBaud returns the adsb_sbs_baud value or the default.
func (c *TuningConfig) GetADSBSBSBaud() int {
	if c.ADSBSBSBaud == nil {
		return 115200
	}
	return *c.ADSBSBSBaud
}

// GetFrameListenAddr returns the frame_listen_addr value or the default.
func (c *TuningConfig) GetFrameListenAddr() string {
	if c.FrameListenAddr == nil || *c.FrameListenAddr == "" {
		return ":9300"
	}
	return *c.FrameListenAddr
}

// GetDBPath returns the db_path value or the default.
func (c *TuningConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "skywatch_data.db"
	}
	return *c.DBPath
}

// GetSnapshotDir returns the snapshot_dir value or the default.
func (c *TuningConfig) GetSnapshotDir() string {
	if c.SnapshotDir == nil || *c.SnapshotDir == "" {
		return "snapshots"
	}
	return *c.SnapshotDir
}
