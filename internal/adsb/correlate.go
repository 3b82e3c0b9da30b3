package adsb

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/skylark-data/overflight.report/internal/config"
	"github.com/skylark-data/overflight.report/internal/units"
	"github.com/skylark-data/overflight.report/internal/vision"
)

// CorrelatorConfig holds the eligibility gates, projection parameters and
// cost weights for matching aircraft to visual tracks.
type CorrelatorConfig struct {
	// Camera location and orientation.
	CameraLat      float64
	CameraLon      float64
	NorthOffsetDeg float64 // rotation from image-up to true north

	// Aircraft eligibility.
	MaxPositionAgeSec float64 // seen_pos bound, seconds
	MinAltitudeFt     float64
	MaxRangeNm        float64

	// Snapshot freshness; older snapshots are skipped entirely.
	FreshnessWindow time.Duration

	// Cost weights and gate.
	MaxMatchCost   float64
	PositionWeight float64
	HeadingWeight  float64
	AgeWeight      float64
}

// DefaultCorrelatorConfig returns the default correlator configuration.
func DefaultCorrelatorConfig() CorrelatorConfig {
	return CorrelatorConfigFromTuning(config.EmptyTuningConfig())
}

// CorrelatorConfigFromTuning builds a CorrelatorConfig from a loaded
// TuningConfig.
func CorrelatorConfigFromTuning(cfg *config.TuningConfig) CorrelatorConfig {
	return CorrelatorConfig{
		CameraLat:         cfg.GetCameraLatitude(),
		CameraLon:         cfg.GetCameraLongitude(),
		NorthOffsetDeg:    cfg.GetNorthOffsetDeg(),
		MaxPositionAgeSec: cfg.GetADSBMaxPositionAge().Seconds(),
		MinAltitudeFt:     cfg.GetADSBMinAltitudeFt(),
		MaxRangeNm:        cfg.GetADSBMaxRangeNm(),
		FreshnessWindow:   cfg.GetADSBFreshness(),
		MaxMatchCost:      cfg.GetMatchMaxCost(),
		PositionWeight:    cfg.GetMatchPositionWeight(),
		HeadingWeight:     cfg.GetMatchHeadingWeight(),
		AgeWeight:         cfg.GetMatchAgeWeight(),
	}
}

// Correlation is one track↔aircraft pairing produced by a cycle.
type Correlation struct {
	TrackID    string  `json:"track_id"`
	Hex        string  `json:"hex"`
	Flight     string  `json:"flight,omitempty"`
	AltFt      float64 `json:"alt_ft"`
	DistNm     float64 `json:"dist_nm"`
	BearingDeg float64 `json:"bearing_deg"`
	Cost       float64 `json:"cost"`
}

// Correlator matches eligible ADS-B aircraft to visual tracks once per
// cycle. It holds no per-cycle state; the config may be swapped at runtime.
type Correlator struct {
	mu  sync.RWMutex
	cfg CorrelatorConfig
}

// NewCorrelator creates a Correlator with the given configuration.
func NewCorrelator(cfg CorrelatorConfig) *Correlator {
	return &Correlator{cfg: cfg}
}

// Config returns the current configuration.
func (c *Correlator) Config() CorrelatorConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// UpdateConfig replaces the configuration. Safe to call while the pipeline
// is correlating.
func (c *Correlator) UpdateConfig(cfg CorrelatorConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

// candidate is an eligible aircraft with its predicted image position.
type candidate struct {
	aircraft   *Aircraft
	altFt      float64
	distNm     float64
	bearingDeg float64
	px, py     float64
	headingDeg float64 // ground track mapped into image orientation
	hasHeading bool
	ageSec     float64
}

// Correlate matches aircraft from the snapshot against the given tracks
// and returns at most one pairing per track and per aircraft. A nil or
// stale snapshot yields no correlations; that is the degraded-receiver
// fallback, not an error.
func (c *Correlator) Correlate(tracks []*vision.TrackedObject, snap *Snapshot, width, height int, now time.Time) []Correlation {
	cfg := c.Config()

	if snap == nil || len(snap.Aircraft) == 0 || len(tracks) == 0 {
		return nil
	}
	if now.Sub(time.Unix(0, snap.FetchedUnixNanos)) > cfg.FreshnessWindow {
		return nil
	}
	if width <= 0 || height <= 0 {
		return nil
	}

	candidates := eligibleCandidates(snap, cfg, width, height)
	if len(candidates) == 0 {
		return nil
	}

	// Stable ordering: tracks by creation sequence, aircraft by hex.
	// Assignment is deterministic for identical inputs.
	ordered := make([]*vision.TrackedObject, len(tracks))
	copy(ordered, tracks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	diag := math.Hypot(float64(width), float64(height))
	costs := make([][]float64, len(ordered))
	for i, track := range ordered {
		row := make([]float64, len(candidates))
		for j, cand := range candidates {
			row[j] = pairCost(track, cand, cfg, diag)
		}
		costs[i] = row
	}

	assignment := vision.GatedAssign(costs, cfg.MaxMatchCost)

	var matches []Correlation
	for i, j := range assignment {
		if j < 0 {
			continue
		}
		cand := candidates[j]
		matches = append(matches, Correlation{
			TrackID:    ordered[i].TrackID,
			Hex:        cand.aircraft.Hex,
			Flight:     cand.aircraft.Callsign(),
			AltFt:      cand.altFt,
			DistNm:     cand.distNm,
			BearingDeg: cand.bearingDeg,
			Cost:       costs[i][j],
		})
	}
	return matches
}

// eligibleCandidates filters the snapshot to aircraft that could plausibly
// appear in frame and projects each onto the image.
func eligibleCandidates(snap *Snapshot, cfg CorrelatorConfig, width, height int) []*candidate {
	var out []*candidate
	for i := range snap.Aircraft {
		ac := &snap.Aircraft[i]
		if !ac.HasPosition() {
			continue
		}
		if ac.PositionAgeSec() > cfg.MaxPositionAgeSec {
			continue
		}
		altFt, ok := ac.AltitudeFt()
		if !ok || altFt < cfg.MinAltitudeFt {
			continue
		}
		distNm := HaversineNm(cfg.CameraLat, cfg.CameraLon, *ac.Lat, *ac.Lon)
		if distNm > cfg.MaxRangeNm {
			continue
		}
		bearingDeg := InitialBearingDeg(cfg.CameraLat, cfg.CameraLon, *ac.Lat, *ac.Lon)

		px, py := ProjectToImage(bearingDeg, altFt, distNm, cfg.NorthOffsetDeg, width, height)

		cand := &candidate{
			aircraft:   ac,
			altFt:      altFt,
			distNm:     distNm,
			bearingDeg: bearingDeg,
			px:         px,
			py:         py,
			ageSec:     ac.AgeSec(),
		}
		if math.IsInf(cand.ageSec, 1) {
			cand.ageSec = cfg.MaxPositionAgeSec
		}
		if ac.Track != nil {
			cand.headingDeg = math.Mod(*ac.Track-cfg.NorthOffsetDeg+360, 360)
			cand.hasHeading = true
		}
		out = append(out, cand)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].aircraft.Hex < out[j].aircraft.Hex })
	return out
}

// ProjectToImage maps an aircraft's bearing/altitude/range to its expected
// pixel under the fixed zenith-facing equidistant model: the zenith is the
// image center, the horizon the inscribed circle, and radius grows linearly
// as elevation falls.
func ProjectToImage(bearingDeg, altFt, distNm, northOffsetDeg float64, width, height int) (px, py float64) {
	elevDeg := 90.0
	if distNm > 0 {
		elevRad := math.Atan2(units.FeetToMeters(altFt), units.NauticalMilesToMeters(distNm))
		elevDeg = elevRad * 180 / math.Pi
	}

	rMax := math.Min(float64(width), float64(height)) / 2
	r := (90 - elevDeg) / 90 * rMax

	thetaRad := (bearingDeg - northOffsetDeg) * math.Pi / 180
	cx := float64(width) / 2
	cy := float64(height) / 2
	return cx + r*math.Sin(thetaRad), cy - r*math.Cos(thetaRad)
}

// pairCost scores one track↔aircraft pairing. Lower is better; the matcher
// gates at MaxMatchCost.
func pairCost(track *vision.TrackedObject, cand *candidate, cfg CorrelatorConfig, diag float64) float64 {
	pxDist := math.Hypot(cand.px-track.X, cand.py-track.Y)
	cost := cfg.PositionWeight * (pxDist / diag)

	// Heading term. When either side has no usable heading the term is
	// scored at its midpoint rather than forbidding the pair.
	if cand.hasHeading && track.Speed() > 0 {
		cost += cfg.HeadingWeight * (AngularDiffDeg(cand.headingDeg, track.HeadingDeg()) / 180)
	} else {
		cost += cfg.HeadingWeight * 0.5
	}

	// Staleness term: prefer aircraft heard from recently.
	if cfg.FreshnessWindow > 0 {
		cost += cfg.AgeWeight * (cand.ageSec / cfg.FreshnessWindow.Seconds())
	}
	return cost
}
