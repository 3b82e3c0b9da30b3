package vision

import "sync"

// SkyRange is an inclusive HSV box on the OpenCV scale (H in [0,180),
// S and V in [0,255]) classifying a pixel as sky.
type SkyRange struct {
	HueMin float64 `json:"hue_min"`
	HueMax float64 `json:"hue_max"`
	SatMin float64 `json:"sat_min"`
	SatMax float64 `json:"sat_max"`
	ValMin float64 `json:"val_min"`
	ValMax float64 `json:"val_max"`
}

// Contains reports whether the HSV triple falls inside the range.
func (r SkyRange) Contains(h, s, v float64) bool {
	return h >= r.HueMin && h <= r.HueMax &&
		s >= r.SatMin && s <= r.SatMax &&
		v >= r.ValMin && v <= r.ValMax
}

// CalibrationSnapshot is a point-in-time copy of the calibration state for
// the API and for logging.
type CalibrationSnapshot struct {
	Version          int64    `json:"version"`
	UpdatedUnixNanos int64    `json:"updated_unix_nanos"`
	Sky              SkyRange `json:"sky"`
	NoiseSigma       float64  `json:"noise_sigma"`
}

// CalibrationState owns the adaptive thresholds shared by the segmentation
// and motion stages. Every mutation increments Version, so consumers can
// detect recalibration without comparing values. Stages mutate it only at
// their own cadence; everything else reads snapshots.
type CalibrationState struct {
	mu               sync.RWMutex
	version          int64
	updatedUnixNanos int64
	sky              SkyRange
	noiseSigma       float64
	noiseSeeded      bool
}

// NewCalibrationState returns calibration state seeded with the given sky
// range at version 1.
func NewCalibrationState(sky SkyRange) *CalibrationState {
	return &CalibrationState{version: 1, sky: sky}
}

// Sky returns the current sky classification range.
func (c *CalibrationState) Sky() SkyRange {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sky
}

// NoiseSigma returns the current rolling noise estimate.
func (c *CalibrationState) NoiseSigma() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.noiseSigma
}

// Version returns the current calibration version.
func (c *CalibrationState) Version() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Snapshot returns a copy of the full calibration state.
func (c *CalibrationState) Snapshot() CalibrationSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CalibrationSnapshot{
		Version:          c.version,
		UpdatedUnixNanos: c.updatedUnixNanos,
		Sky:              c.sky,
		NoiseSigma:       c.noiseSigma,
	}
}

// SetSkyValMin rewrites the sky value floor from a recalibration pass and
// bumps the version.
func (c *CalibrationState) SetSkyValMin(valMin float64, nowNanos int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sky.ValMin == valMin {
		return
	}
	c.sky.ValMin = valMin
	c.version++
	c.updatedUnixNanos = nowNanos
}

// UpdateNoiseSigma folds an observed per-frame noise sigma into the rolling
// estimate with EMA weight alpha. The first observation seeds the estimate
// directly.
func (c *CalibrationState) UpdateNoiseSigma(observed, alpha float64, nowNanos int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.noiseSeeded {
		c.noiseSigma = observed
		c.noiseSeeded = true
	} else {
		c.noiseSigma = (1-alpha)*c.noiseSigma + alpha*observed
	}
	c.version++
	c.updatedUnixNanos = nowNanos
}
