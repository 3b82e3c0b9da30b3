package vision

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skylark-data/overflight.report/internal/config"
)

// TrackState represents the lifecycle state of a track.
type TrackState string

const (
	TrackTentative TrackState = "tentative" // New track, needs confirmation
	TrackConfirmed TrackState = "confirmed" // Stable track with sufficient history
	TrackStale     TrackState = "stale"     // Confirmed track missing recent frames
	TrackRetired   TrackState = "retired"   // Terminal; trajectory is immutable
)

const (
	// MaxSpeedHistoryLength is the maximum number of speed samples kept for percentile computation
	MaxSpeedHistoryLength = 100
	// MaxTrackHistoryLength is the maximum position trail length
	MaxTrackHistoryLength = 600
	// DefaultRetiredGracePeriod is how long retired tracks stay readable before cleanup
	DefaultRetiredGracePeriod = 5 * time.Second
)

// TrackerConfig holds configuration parameters for the tracker.
type TrackerConfig struct {
	MaxTracks          int           // Maximum number of concurrent live tracks
	GatingDistancePx   float64       // Association gate on predicted-to-observed distance
	MaxPositionJumpPx  float64       // Hard plausibility bound on instantaneous jumps
	HitsToConfirm      int           // Consecutive hits needed for confirmation
	MaxMissesTentative int           // Consecutive misses before a tentative track retires
	StaleAfterMisses   int           // Consecutive misses before a confirmed track goes stale
	RetireAfterMisses  int           // Consecutive misses before a stale track retires
	RetiredGracePeriod time.Duration // How long to keep retired tracks before cleanup
	VelocityWindow     int           // Trajectory points used for the velocity fit

	// Association cost weights
	DistanceWeight float64 // Weight on euclidean distance (pixels)
	SizeWeight     float64 // Weight on relative area difference [0,1]
	ContrastWeight float64 // Weight on contrast difference normalised by 255
}

// DefaultTrackerConfig returns tracker configuration loaded from the
// canonical tuning defaults file (config/tuning.defaults.json).
// Panics if the file cannot be found — intended for tests and binaries
// that have already validated config availability.
func DefaultTrackerConfig() TrackerConfig {
	cfg := config.MustLoadDefaultConfig()
	return TrackerConfigFromTuning(cfg)
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		MaxTracks:          cfg.GetMaxTracks(),
		GatingDistancePx:   cfg.GetGatingDistancePx(),
		MaxPositionJumpPx:  cfg.GetMaxPositionJumpPx(),
		HitsToConfirm:      cfg.GetHitsToConfirm(),
		MaxMissesTentative: cfg.GetMaxMissesTentative(),
		StaleAfterMisses:   cfg.GetStaleAfterMisses(),
		RetireAfterMisses:  cfg.GetRetireAfterMisses(),
		RetiredGracePeriod: cfg.GetRetiredGracePeriod(),
		VelocityWindow:     cfg.GetVelocityWindow(),
		DistanceWeight:     cfg.GetCostDistanceWeight(),
		SizeWeight:         cfg.GetCostSizeWeight(),
		ContrastWeight:     cfg.GetCostContrastWeight(),
	}
}

// TrackPoint represents a single point in a track's trajectory.
type TrackPoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"` // Unix nanos
}

// TrackedObject represents a single tracked object in the tracker.
type TrackedObject struct {
	// Identity
	TrackID string     `json:"track_id"`
	Seq     int64      `json:"seq"` // Creation sequence; older tracks win cost ties
	State   TrackState `json:"state"`

	// Lifecycle counters
	Hits   int `json:"hits"`   // Consecutive successful associations
	Misses int `json:"misses"` // Consecutive missed associations

	// Timestamps
	FirstUnixNanos   int64 `json:"first_unix_nanos"`
	LastUnixNanos    int64 `json:"last_unix_nanos"`
	RetiredUnixNanos int64 `json:"retired_unix_nanos,omitempty"` // 0 until retired

	// Latest observed position and windowed velocity estimate (px, px/s)
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`

	// Latest observation geometry (for association costs and scoring)
	LastW         int     `json:"last_w"`
	LastH         int     `json:"last_h"`
	LastArea      int     `json:"last_area"`
	LastPerimeter int     `json:"last_perimeter"`
	LastContrast  float64 `json:"last_contrast"`

	// Aggregated features
	ObservationCount int     `json:"observation_count"`
	AreaAvg          float64 `json:"area_avg"`
	ContrastAvg      float64 `json:"contrast_avg"`
	AvgSpeedPps      float64 `json:"avg_speed_pps"`
	PeakSpeedPps     float64 `json:"peak_speed_pps"`

	// Latest confidence score, recomputed each cycle by the scorer
	Confidence float64 `json:"confidence"`

	// History of positions
	History []TrackPoint `json:"history,omitempty"`

	// Speed history for percentile computation
	speedHistory []float64

	// ADS-B correlation metadata. Identity only; never feeds back into
	// association or trajectory.
	CorrelatedHex        string  `json:"correlated_hex,omitempty"`
	CorrelatedFlight     string  `json:"correlated_flight,omitempty"`
	CorrelatedAltFt      float64 `json:"correlated_alt_ft,omitempty"`
	CorrelatedDistNm     float64 `json:"correlated_dist_nm,omitempty"`
	CorrelatedBearingDeg float64 `json:"correlated_bearing_deg,omitempty"`
	CorrelatedUnixNanos  int64   `json:"correlated_unix_nanos,omitempty"`
}

// TrackerCounts summarises the track table by lifecycle state.
type TrackerCounts struct {
	Total     int `json:"total"`
	Tentative int `json:"tentative"`
	Confirmed int `json:"confirmed"`
	Stale     int `json:"stale"`
	Retired   int `json:"retired"`
}

// TrackerMetrics holds aggregate tracking quality counters since start (or
// the last Clear). Used by the status endpoint.
type TrackerMetrics struct {
	TracksCreated       int64   `json:"tracks_created"`
	TracksConfirmed     int64   `json:"tracks_confirmed"`
	FragmentationRatio  float64 `json:"fragmentation_ratio"` // created-but-never-confirmed fraction
	DroppedObservations int64   `json:"dropped_observations"`
	OutOfOrderFrames    int64   `json:"out_of_order_frames"`
}

// Tracker manages multi-object tracking with explicit lifecycle states.
// All mutation happens inside Update/SetCorrelation/SetConfidence under the
// tracker lock; readers get deep-copied snapshots.
type Tracker struct {
	Tracks  map[string]*TrackedObject
	Config  TrackerConfig
	nextSeq int64

	// Last update timestamp for dt computation and out-of-order rejection
	LastUpdateNanos int64

	// Quality counters
	tracksCreated       int64
	tracksConfirmed     int64
	droppedObservations int64
	outOfOrderFrames    int64

	mu sync.RWMutex
}

// NewTracker creates a new tracker with the specified configuration.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.RetiredGracePeriod == 0 {
		cfg.RetiredGracePeriod = DefaultRetiredGracePeriod
	}
	return &Tracker{
		Tracks:  make(map[string]*TrackedObject),
		Config:  cfg,
		nextSeq: 1,
	}
}

// UpdateConfig applies the given function to the tracker's configuration
// under the tracker lock. This is the safe way to mutate Config fields
// from outside the tracking goroutine (e.g. HTTP tuning handlers).
func (t *Tracker) UpdateConfig(fn func(*TrackerConfig)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.Config)
}

// Clear removes all tracks and resets counters. Used by the dev reset
// endpoint and between test scenarios.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Tracks = make(map[string]*TrackedObject)
	t.nextSeq = 1
	t.LastUpdateNanos = 0
	t.tracksCreated = 0
	t.tracksConfirmed = 0
	t.droppedObservations = 0
	t.outOfOrderFrames = 0
}

// Update processes one frame of observations. This is the main entry point
// for the tracking pipeline.
//
// Frames whose timestamp does not advance past the previous update are
// dropped whole: trajectory timestamps must strictly increase.
func (t *Tracker) Update(observations []Observation, timestamp time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nowNanos := timestamp.UnixNano()
	if t.LastUpdateNanos > 0 && nowNanos <= t.LastUpdateNanos {
		t.outOfOrderFrames++
		Diagf("tracker: dropped out-of-order frame (ts %d <= %d)", nowNanos, t.LastUpdateNanos)
		return
	}

	// Compute dt (time delta since last update)
	var dt float64
	if t.LastUpdateNanos > 0 {
		dt = float64(nowNanos-t.LastUpdateNanos) / 1e9
	} else {
		dt = 0.1 // Default 100ms for first frame
	}
	t.LastUpdateNanos = nowNanos

	// Drop malformed observations before they can poison track state.
	valid := observations[:0:0]
	for _, o := range observations {
		if !isFiniteObservation(o) {
			t.droppedObservations++
			continue
		}
		valid = append(valid, o)
	}
	if dropped := len(observations) - len(valid); dropped > 0 {
		Diagf("tracker: dropped %d malformed observation(s)", dropped)
	}

	// Step 1+2: associate observations to tracks with gated optimal
	// assignment. Track rows are ordered by creation sequence so cost ties
	// resolve to the older track.
	active := t.activeTracksOrdered()
	assignments := t.associate(active, valid, dt)

	// Step 3: update matched tracks.
	matched := make(map[string]bool, len(active))
	for ti, oi := range assignments {
		if oi < 0 {
			continue
		}
		track := active[ti]
		t.applyObservation(track, valid[oi], nowNanos)
		matched[track.TrackID] = true
	}

	// Step 4: unmatched tracks accumulate misses and walk the lifecycle.
	for _, track := range active {
		if matched[track.TrackID] {
			continue
		}
		track.Misses++
		track.Hits = 0

		switch track.State {
		case TrackTentative:
			if track.Misses >= t.Config.MaxMissesTentative {
				t.retire(track, nowNanos)
			}
		case TrackConfirmed:
			if track.Misses >= t.Config.StaleAfterMisses {
				track.State = TrackStale
			}
		case TrackStale:
			if track.Misses >= t.Config.RetireAfterMisses {
				t.retire(track, nowNanos)
			}
		}
	}

	// Step 5: unmatched observations seed new tentative tracks.
	assignedObs := make(map[int]bool, len(valid))
	for _, oi := range assignments {
		if oi >= 0 {
			assignedObs[oi] = true
		}
	}
	for oi, o := range valid {
		if assignedObs[oi] {
			continue
		}
		if t.liveTrackCount() >= t.Config.MaxTracks {
			Diagf("tracker: at MaxTracks=%d, observation at (%.1f,%.1f) not seeded",
				t.Config.MaxTracks, o.CX, o.CY)
			continue
		}
		t.initTrack(o, nowNanos)
	}

	// Step 6: drop retired tracks past the grace period.
	t.cleanupRetired(nowNanos)
}

// activeTracksOrdered returns the live (non-retired) tracks sorted by
// creation sequence. Called under the tracker lock.
func (t *Tracker) activeTracksOrdered() []*TrackedObject {
	active := make([]*TrackedObject, 0, len(t.Tracks))
	for _, track := range t.Tracks {
		if track.State != TrackRetired {
			active = append(active, track)
		}
	}
	// Insertion sort keeps this allocation-free; track counts are small.
	for i := 1; i < len(active); i++ {
		for j := i; j > 0 && active[j].Seq < active[j-1].Seq; j-- {
			active[j], active[j-1] = active[j-1], active[j]
		}
	}
	return active
}

// liveTrackCount counts non-retired tracks. Called under the tracker lock.
func (t *Tracker) liveTrackCount() int {
	n := 0
	for _, track := range t.Tracks {
		if track.State != TrackRetired {
			n++
		}
	}
	return n
}

// associate builds the gated cost matrix over (track, observation) pairs
// and solves it with the shared matcher. Returns assignments indexed like
// tracks: assignments[ti] = observation index or -1.
func (t *Tracker) associate(tracks []*TrackedObject, observations []Observation, dt float64) []int {
	if len(tracks) == 0 || len(observations) == 0 {
		out := make([]int, len(tracks))
		for i := range out {
			out[i] = -1
		}
		return out
	}

	cost := make([][]float64, len(tracks))
	for ti, track := range tracks {
		predX := track.X + track.VX*dt
		predY := track.Y + track.VY*dt
		row := make([]float64, len(observations))
		for oi, o := range observations {
			row[oi] = t.pairCost(track, predX, predY, o)
		}
		cost[ti] = row
	}

	return GatedAssign(cost, assignForbidden/2)
}

// pairCost computes the association cost between one track and one
// observation, or +Inf when the pair is implausible: outside the gating
// radius around the prediction, or an instantaneous jump from the last
// observed position beyond MaxPositionJumpPx.
func (t *Tracker) pairCost(track *TrackedObject, predX, predY float64, o Observation) float64 {
	dist := math.Hypot(o.CX-predX, o.CY-predY)
	if dist > t.Config.GatingDistancePx {
		return math.Inf(1)
	}
	jump := math.Hypot(o.CX-track.X, o.CY-track.Y)
	if jump > t.Config.MaxPositionJumpPx {
		return math.Inf(1)
	}

	cost := t.Config.DistanceWeight * dist

	if t.Config.SizeWeight > 0 && track.LastArea > 0 && o.Area > 0 {
		maxArea := float64(track.LastArea)
		if float64(o.Area) > maxArea {
			maxArea = float64(o.Area)
		}
		cost += t.Config.SizeWeight * math.Abs(float64(track.LastArea-o.Area)) / maxArea
	}
	if t.Config.ContrastWeight > 0 {
		cost += t.Config.ContrastWeight * math.Abs(track.LastContrast-o.Contrast) / 255
	}
	return cost
}

// applyObservation folds a matched observation into a track: trajectory,
// windowed velocity, lifecycle promotion, aggregates.
func (t *Tracker) applyObservation(track *TrackedObject, o Observation, nowNanos int64) {
	track.X = o.CX
	track.Y = o.CY
	track.LastW = o.W
	track.LastH = o.H
	track.LastArea = o.Area
	track.LastPerimeter = o.Perimeter
	track.LastContrast = o.Contrast
	track.LastUnixNanos = nowNanos

	track.History = append(track.History, TrackPoint{X: o.CX, Y: o.CY, Timestamp: nowNanos})
	if len(track.History) > MaxTrackHistoryLength {
		track.History = track.History[len(track.History)-MaxTrackHistoryLength:]
	}

	track.VX, track.VY = FitVelocity(track.History, t.Config.VelocityWindow)
	if !isFiniteTrack(track) {
		Opsf("tracker: %s went non-finite, forcing retirement", track.TrackID)
		t.retire(track, nowNanos)
		return
	}

	track.Hits++
	track.Misses = 0

	switch track.State {
	case TrackTentative:
		if track.Hits >= t.Config.HitsToConfirm {
			track.State = TrackConfirmed
			t.tracksConfirmed++
			Diagf("tracker: %s confirmed after %d hits", track.TrackID, track.Hits)
		}
	case TrackStale:
		// Re-acquisition: history continuity beats forcing re-confirmation.
		track.State = TrackConfirmed
		Diagf("tracker: %s re-acquired after %d misses", track.TrackID, track.Misses)
	}

	// Aggregates: running means in the observation count.
	track.ObservationCount++
	n := float64(track.ObservationCount)
	track.AreaAvg = ((n-1)*track.AreaAvg + float64(o.Area)) / n
	track.ContrastAvg = ((n-1)*track.ContrastAvg + o.Contrast) / n

	speed := math.Hypot(track.VX, track.VY)
	track.AvgSpeedPps = ((n-1)*track.AvgSpeedPps + speed) / n
	if speed > track.PeakSpeedPps {
		track.PeakSpeedPps = speed
	}
	track.speedHistory = append(track.speedHistory, speed)
	if len(track.speedHistory) > MaxSpeedHistoryLength {
		track.speedHistory = track.speedHistory[1:]
	}
}

// retire moves a track to the terminal state and freezes its trajectory.
func (t *Tracker) retire(track *TrackedObject, nowNanos int64) {
	track.State = TrackRetired
	track.RetiredUnixNanos = nowNanos
}

// initTrack creates a new tentative track from an unassociated observation.
// Track IDs are globally unique UUIDs to prevent collisions across tracker
// resets, server restarts, and long-running deployments.
func (t *Tracker) initTrack(o Observation, nowNanos int64) *TrackedObject {
	track := &TrackedObject{
		TrackID: fmt.Sprintf("trk_%s", uuid.NewString()),
		Seq:     t.nextSeq,
		State:   TrackTentative,
		Hits:    1,

		FirstUnixNanos: nowNanos,
		LastUnixNanos:  nowNanos,

		X:             o.CX,
		Y:             o.CY,
		LastW:         o.W,
		LastH:         o.H,
		LastArea:      o.Area,
		LastPerimeter: o.Perimeter,
		LastContrast:  o.Contrast,

		ObservationCount: 1,
		AreaAvg:          float64(o.Area),
		ContrastAvg:      o.Contrast,

		History: []TrackPoint{{X: o.CX, Y: o.CY, Timestamp: nowNanos}},

		speedHistory: make([]float64, 0, MaxSpeedHistoryLength),
	}
	t.nextSeq++
	t.tracksCreated++
	t.Tracks[track.TrackID] = track
	return track
}

// cleanupRetired removes retired tracks past the grace period.
func (t *Tracker) cleanupRetired(nowNanos int64) {
	graceNanos := int64(t.Config.RetiredGracePeriod)
	var toRemove []string
	for id, track := range t.Tracks {
		if track.State == TrackRetired && nowNanos-track.RetiredUnixNanos > graceNanos {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		delete(t.Tracks, id)
	}
}

// isFiniteObservation validates observation numerics before association.
func isFiniteObservation(o Observation) bool {
	for _, v := range [...]float64{o.CX, o.CY, o.Contrast} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return o.Area > 0 && o.W > 0 && o.H > 0
}

// isFiniteTrack validates track numerics after a velocity refit.
func isFiniteTrack(track *TrackedObject) bool {
	for _, v := range [...]float64{track.X, track.Y, track.VX, track.VY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// SetConfidence stores the latest confidence score for a track under the
// tracker lock. Returns false if the track no longer exists.
func (t *Tracker) SetConfidence(trackID string, confidence float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	track, ok := t.Tracks[trackID]
	if !ok {
		return false
	}
	track.Confidence = confidence
	return true
}

// SetCorrelation writes ADS-B identity metadata onto a live track under the
// tracker lock. Identity only; trajectory and lifecycle are untouched.
// Returns false if the track no longer exists.
func (t *Tracker) SetCorrelation(trackID, hex, flight string, altFt, distNm, bearingDeg float64, nowNanos int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	track, ok := t.Tracks[trackID]
	if !ok {
		return false
	}
	track.CorrelatedHex = hex
	track.CorrelatedFlight = flight
	track.CorrelatedAltFt = altFt
	track.CorrelatedDistNm = distNm
	track.CorrelatedBearingDeg = bearingDeg
	track.CorrelatedUnixNanos = nowNanos
	return true
}

// copyTrack snapshots a track: shallow copy plus deep-copied slices, so
// callers can read History without holding the tracker lock.
func copyTrack(track *TrackedObject) *TrackedObject {
	copied := *track
	if len(track.History) > 0 {
		copied.History = make([]TrackPoint, len(track.History))
		copy(copied.History, track.History)
	}
	if len(track.speedHistory) > 0 {
		copied.speedHistory = make([]float64, len(track.speedHistory))
		copy(copied.speedHistory, track.speedHistory)
	}
	return &copied
}

// ActiveTracks returns deep-copied snapshots of all live (non-retired)
// tracks, ordered by creation sequence.
func (t *Tracker) ActiveTracks() []*TrackedObject {
	t.mu.RLock()
	defer t.mu.RUnlock()

	active := make([]*TrackedObject, 0, len(t.Tracks))
	for _, track := range t.Tracks {
		if track.State != TrackRetired {
			active = append(active, copyTrack(track))
		}
	}
	sortTracksBySeq(active)
	return active
}

// ConfirmedTracks returns deep-copied snapshots of confirmed tracks,
// ordered by creation sequence.
func (t *Tracker) ConfirmedTracks() []*TrackedObject {
	t.mu.RLock()
	defer t.mu.RUnlock()

	confirmed := make([]*TrackedObject, 0)
	for _, track := range t.Tracks {
		if track.State == TrackConfirmed {
			confirmed = append(confirmed, copyTrack(track))
		}
	}
	sortTracksBySeq(confirmed)
	return confirmed
}

// RecentlyRetiredTracks returns deep-copied snapshots of retired tracks
// still inside the grace period. Used by persistence to record terminal
// state and by the API for fade-out rendering.
func (t *Tracker) RecentlyRetiredTracks(nowNanos int64) []*TrackedObject {
	t.mu.RLock()
	defer t.mu.RUnlock()

	graceNanos := int64(t.Config.RetiredGracePeriod)
	retired := make([]*TrackedObject, 0)
	for _, track := range t.Tracks {
		if track.State != TrackRetired {
			continue
		}
		elapsed := nowNanos - track.RetiredUnixNanos
		if elapsed >= 0 && elapsed <= graceNanos {
			retired = append(retired, copyTrack(track))
		}
	}
	sortTracksBySeq(retired)
	return retired
}

// AllTracks returns deep-copied snapshots of every track in the table,
// including retired ones still inside the grace period.
func (t *Tracker) AllTracks() []*TrackedObject {
	t.mu.RLock()
	defer t.mu.RUnlock()

	all := make([]*TrackedObject, 0, len(t.Tracks))
	for _, track := range t.Tracks {
		all = append(all, copyTrack(track))
	}
	sortTracksBySeq(all)
	return all
}

// GetTrack returns a deep-copied snapshot of a track by ID, or nil.
func (t *Tracker) GetTrack(trackID string) *TrackedObject {
	t.mu.RLock()
	defer t.mu.RUnlock()
	track, ok := t.Tracks[trackID]
	if !ok {
		return nil
	}
	return copyTrack(track)
}

// Counts returns the current track table breakdown by state.
func (t *Tracker) Counts() TrackerCounts {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var c TrackerCounts
	for _, track := range t.Tracks {
		c.Total++
		switch track.State {
		case TrackTentative:
			c.Tentative++
		case TrackConfirmed:
			c.Confirmed++
		case TrackStale:
			c.Stale++
		case TrackRetired:
			c.Retired++
		}
	}
	return c
}

// Metrics returns aggregate quality counters since start or the last Clear.
func (t *Tracker) Metrics() TrackerMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := TrackerMetrics{
		TracksCreated:       t.tracksCreated,
		TracksConfirmed:     t.tracksConfirmed,
		DroppedObservations: t.droppedObservations,
		OutOfOrderFrames:    t.outOfOrderFrames,
	}
	if t.tracksCreated > 0 {
		m.FragmentationRatio = 1.0 - float64(t.tracksConfirmed)/float64(t.tracksCreated)
	}
	return m
}

func sortTracksBySeq(tracks []*TrackedObject) {
	for i := 1; i < len(tracks); i++ {
		for j := i; j > 0 && tracks[j].Seq < tracks[j-1].Seq; j-- {
			tracks[j], tracks[j-1] = tracks[j-1], tracks[j]
		}
	}
}

// Speed returns the current speed magnitude in pixels/second.
func (track *TrackedObject) Speed() float64 {
	return math.Hypot(track.VX, track.VY)
}

// HeadingDeg returns the apparent heading in degrees, measured clockwise
// from image-up (the convention the ADS-B correlator maps ground tracks
// into). Zero velocity yields 0.
func (track *TrackedObject) HeadingDeg() float64 {
	if track.VX == 0 && track.VY == 0 {
		return 0
	}
	// Image Y grows downward, so up is -VY.
	deg := math.Atan2(track.VX, -track.VY) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// SpeedHistory returns a copy of the track's speed history for percentile
// computation.
func (track *TrackedObject) SpeedHistory() []float64 {
	if track.speedHistory == nil {
		return nil
	}
	result := make([]float64, len(track.speedHistory))
	copy(result, track.speedHistory)
	return result
}

// SpeedPercentiles returns the p50/p85/p95 speeds for the track.
func (track *TrackedObject) SpeedPercentiles() (p50, p85, p95 float64) {
	return SpeedPercentiles(track.speedHistory)
}
