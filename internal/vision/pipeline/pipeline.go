package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/skylark-data/overflight.report/internal/adsb"
	"github.com/skylark-data/overflight.report/internal/config"
	"github.com/skylark-data/overflight.report/internal/security"
	"github.com/skylark-data/overflight.report/internal/vision"
)

// FrameSource yields frames, blocking until one is available or the context
// ends. camera.FrameBuffer satisfies this.
type FrameSource interface {
	Next(ctx context.Context) (*vision.Frame, error)
}

// DetectionPublisher receives qualifying detection records for live
// streaming. Implementations must not block the frame loop.
type DetectionPublisher interface {
	PublishDetection(det *vision.Detection)
}

// isNilInterface checks if an interface value is nil or contains a nil pointer.
// This handles the Go interface nil pitfall where interface{} != nil but the
// underlying value is nil.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Config holds the stages and sinks for the frame pipeline.
type Config struct {
	Segmenter *vision.SkySegmenter
	Motion    *vision.MotionDetector
	Blobs     *vision.BlobExtractor
	Tracker   *vision.Tracker
	Scorer    *vision.Scorer

	// Correlator and Aircraft enable ADS-B identity matching when both are
	// set. Optional: without them tracks simply stay anonymous.
	Correlator *adsb.Correlator
	Aircraft   *adsb.Store

	// DB receives track/observation/detection rows. Optional; persistence
	// failures are logged and the loop continues.
	DB *sql.DB

	// Publisher receives each emitted detection after it is persisted.
	Publisher DetectionPublisher

	// MinFrameInterval drops frames arriving faster than this. The frame
	// cache still updates on throttled frames so snapshots stay current;
	// only the detection stages are skipped. Zero processes every frame.
	MinFrameInterval time.Duration

	// DetectionImageDir, when non-empty, saves a padded crop of each
	// detection and records its path on the detection row.
	DetectionImageDir string
}

// Counts are the pipeline's monotonic counters, for the status API.
type Counts struct {
	FramesProcessed    int64 `json:"frames_processed"`
	FramesThrottled    int64 `json:"frames_throttled"`
	FramesInvalid      int64 `json:"frames_invalid"`
	DetectionsEmitted  int64 `json:"detections_emitted"`
	LastFrameUnixNanos int64 `json:"last_frame_unix_nanos"`
}

// Pipeline runs the per-frame stage sequence. ProcessFrame must only be
// called from one goroutine; the snapshot accessors are safe from any.
type Pipeline struct {
	cfg Config

	detectionEnabled atomic.Bool
	latest           atomic.Pointer[vision.Frame]
	pendingTuning    atomic.Pointer[config.TuningConfig]

	framesProcessed   atomic.Int64
	framesThrottled   atomic.Int64
	framesInvalid     atomic.Int64
	detectionsEmitted atomic.Int64

	// Frame-loop-local state. Only touched by ProcessFrame.
	lastProcessed time.Time
	motionStale   bool
}

// New validates the stage wiring and returns a pipeline with detection
// enabled.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Segmenter == nil:
		return nil, fmt.Errorf("pipeline requires a sky segmenter")
	case cfg.Motion == nil:
		return nil, fmt.Errorf("pipeline requires a motion detector")
	case cfg.Blobs == nil:
		return nil, fmt.Errorf("pipeline requires a blob extractor")
	case cfg.Tracker == nil:
		return nil, fmt.Errorf("pipeline requires a tracker")
	case cfg.Scorer == nil:
		return nil, fmt.Errorf("pipeline requires a confidence scorer")
	}
	if cfg.DetectionImageDir != "" {
		if err := os.MkdirAll(cfg.DetectionImageDir, 0o755); err != nil {
			return nil, fmt.Errorf("create detection image dir: %w", err)
		}
	}

	p := &Pipeline{cfg: cfg}
	p.detectionEnabled.Store(true)
	return p, nil
}

// Run consumes frames from the source until the context is cancelled.
// Cancellation is observed between cycles only, so an in-flight frame always
// completes and no partial track mutation is visible afterward.
func (p *Pipeline) Run(ctx context.Context, frames FrameSource) error {
	diagf("frame loop started (min interval %v)", p.cfg.MinFrameInterval)
	for {
		f, err := frames.Next(ctx)
		if err != nil {
			diagf("frame loop stopped: %v", err)
			return err
		}
		p.ProcessFrame(f)
	}
}

// SetDetectionEnabled toggles the detection stages. While disabled the
// pipeline keeps caching frames (for the snapshot endpoints) but runs no
// segmentation, tracking or persistence.
func (p *Pipeline) SetDetectionEnabled(enabled bool) {
	was := p.detectionEnabled.Swap(enabled)
	if was == enabled {
		return
	}
	if enabled {
		diagf("detection enabled")
	} else {
		diagf("detection disabled")
	}
}

// DetectionEnabled reports whether the detection stages are active.
func (p *Pipeline) DetectionEnabled() bool {
	return p.detectionEnabled.Load()
}

// ApplyTuning queues a full tuning config to be folded into the live stages
// at the start of the next cycle. The fold happens on the frame-loop
// goroutine, so stage configs are never written while a frame is in flight.
// A second call before the next frame replaces the first.
func (p *Pipeline) ApplyTuning(cfg *config.TuningConfig) {
	if cfg == nil {
		return
	}
	p.pendingTuning.Store(cfg)
}

func (p *Pipeline) applyTuning(cfg *config.TuningConfig) {
	p.cfg.Segmenter.Config = vision.SegmenterConfigFromTuning(cfg)
	p.cfg.Motion.Config = vision.MotionConfigFromTuning(cfg)
	p.cfg.Blobs.Config = vision.BlobConfigFromTuning(cfg)
	p.cfg.Scorer.Config = vision.ConfidenceConfigFromTuning(cfg)
	p.cfg.Tracker.UpdateConfig(func(tc *vision.TrackerConfig) {
		*tc = vision.TrackerConfigFromTuning(cfg)
	})
	if p.cfg.Correlator != nil {
		p.cfg.Correlator.UpdateConfig(adsb.CorrelatorConfigFromTuning(cfg))
	}
	diagf("applied tuning update")
}

// LatestFrame returns the most recent frame seen by the loop, or nil.
func (p *Pipeline) LatestFrame() *vision.Frame {
	return p.latest.Load()
}

// Counts returns the pipeline counters.
func (p *Pipeline) Counts() Counts {
	c := Counts{
		FramesProcessed:   p.framesProcessed.Load(),
		FramesThrottled:   p.framesThrottled.Load(),
		FramesInvalid:     p.framesInvalid.Load(),
		DetectionsEmitted: p.detectionsEmitted.Load(),
	}
	if f := p.latest.Load(); f != nil {
		c.LastFrameUnixNanos = f.TSUnixNanos
	}
	return c
}

// ProcessFrame runs one full cycle: segment, detect motion, extract blobs,
// update tracks, correlate, score, persist, publish.
func (p *Pipeline) ProcessFrame(f *vision.Frame) {
	if f == nil {
		return
	}
	if err := f.Validate(); err != nil {
		p.framesInvalid.Add(1)
		opsf("dropping malformed frame: %v", err)
		return
	}

	// Cache unconditionally so /api/frame.jpg and snapshots work even when
	// detection is off or the frame ends up throttled.
	p.latest.Store(f)

	if cfg := p.pendingTuning.Swap(nil); cfg != nil {
		p.applyTuning(cfg)
	}

	if !p.detectionEnabled.Load() {
		p.motionStale = true
		return
	}
	if p.motionStale {
		// Frames were skipped while detection was off; the differencing
		// reference is stale and would flag the whole sky as motion.
		p.cfg.Motion.Reset()
		p.motionStale = false
	}

	// Frame-rate throttle: drop frames arriving faster than the configured
	// interval (PCAP catch-up bursts, over-eager cameras). Wall clock, not
	// frame timestamps, since replay timestamps compress.
	if p.cfg.MinFrameInterval > 0 {
		now := time.Now()
		if !p.lastProcessed.IsZero() && now.Sub(p.lastProcessed) < p.cfg.MinFrameInterval {
			if count := p.framesThrottled.Add(1); count%50 == 0 {
				diagf("throttled %d frames (min interval %v)", count, p.cfg.MinFrameInterval)
			}
			return
		}
		p.lastProcessed = now
	}

	frameTime := time.Unix(0, f.TSUnixNanos)

	mask, err := p.cfg.Segmenter.Segment(f)
	if err != nil {
		p.framesInvalid.Add(1)
		opsf("sky segmentation failed: %v", err)
		return
	}

	motion := p.cfg.Motion.Detect(f, mask)
	observations := p.cfg.Blobs.Extract(f, motion)
	tracef("frame ts=%d: %d observations (noise σ=%.2f)",
		f.TSUnixNanos, len(observations), motion.NoiseSigma)

	p.cfg.Tracker.Update(observations, frameTime)
	p.framesProcessed.Add(1)

	confirmed := p.cfg.Tracker.ConfirmedTracks()
	p.correlate(confirmed, f)
	detections := p.score(confirmed, f)
	p.persist(f.TSUnixNanos, confirmed, detections)

	if len(detections) > 0 {
		p.detectionsEmitted.Add(int64(len(detections)))
		if !isNilInterface(p.cfg.Publisher) {
			for _, det := range detections {
				p.cfg.Publisher.PublishDetection(det)
			}
		}
		diagf("%d detections this frame (%d confirmed tracks)", len(detections), len(confirmed))
	}
}

// correlate matches confirmed tracks against the latest ADS-B snapshot and
// writes identity metadata both to the live tracks and to the snapshot
// copies this cycle works with.
func (p *Pipeline) correlate(confirmed []*vision.TrackedObject, f *vision.Frame) {
	if p.cfg.Correlator == nil || p.cfg.Aircraft == nil || len(confirmed) == 0 {
		return
	}

	snap := p.cfg.Aircraft.Latest()
	matches := p.cfg.Correlator.Correlate(confirmed, snap, f.Width, f.Height, time.Now())
	if len(matches) == 0 {
		return
	}

	byTrack := make(map[string]adsb.Correlation, len(matches))
	for _, m := range matches {
		byTrack[m.TrackID] = m
		p.cfg.Tracker.SetCorrelation(m.TrackID, m.Hex, m.Flight, m.AltFt, m.DistNm, m.BearingDeg, f.TSUnixNanos)
	}
	for _, track := range confirmed {
		if m, ok := byTrack[track.TrackID]; ok {
			track.CorrelatedHex = m.Hex
			track.CorrelatedFlight = m.Flight
			track.CorrelatedAltFt = m.AltFt
			track.CorrelatedDistNm = m.DistNm
			track.CorrelatedBearingDeg = m.BearingDeg
			track.CorrelatedUnixNanos = f.TSUnixNanos
		}
	}
	diagf("correlated %d of %d confirmed tracks", len(matches), len(confirmed))
}

// score computes confidence for each confirmed track and builds detection
// records for those that qualify this frame.
func (p *Pipeline) score(confirmed []*vision.TrackedObject, f *vision.Frame) []*vision.Detection {
	var detections []*vision.Detection
	for _, track := range confirmed {
		breakdown := p.cfg.Scorer.Score(track)
		track.Confidence = breakdown.Score
		p.cfg.Tracker.SetConfidence(track.TrackID, breakdown.Score)

		// Coasting tracks (Misses > 0) carry an extrapolated position, not
		// a measurement; they never emit detections.
		if track.Misses != 0 || !p.cfg.Scorer.IsDetection(track, breakdown.Score) {
			continue
		}

		det := &vision.Detection{
			TrackID:          track.TrackID,
			TSUnixNanos:      f.TSUnixNanos,
			X:                track.X,
			Y:                track.Y,
			Confidence:       breakdown.Score,
			Area:             track.LastArea,
			Contrast:         track.LastContrast,
			CorrelatedHex:    track.CorrelatedHex,
			CorrelatedFlight: track.CorrelatedFlight,
			CorrelatedAltFt:  track.CorrelatedAltFt,
		}
		if p.cfg.DetectionImageDir != "" {
			path, err := saveDetectionImage(p.cfg.DetectionImageDir, f, track)
			if err != nil {
				opsf("save detection image for %s: %v", track.TrackID, err)
			} else {
				det.ImagePath = path
			}
		}
		detections = append(detections, det)
	}
	return detections
}

// persist writes track summaries, per-frame observations and detections.
// Failures are logged; the loop never stops for storage.
func (p *Pipeline) persist(nowNanos int64, confirmed []*vision.TrackedObject, detections []*vision.Detection) {
	if p.cfg.DB == nil {
		return
	}

	for _, track := range confirmed {
		if err := vision.UpsertCameraTrack(p.cfg.DB, track); err != nil {
			opsf("upsert track %s: %v", track.TrackID, err)
		}
		// Only matched tracks produced a real measurement this frame.
		if track.Misses == 0 {
			if err := vision.InsertTrackObservation(p.cfg.DB, vision.TrackObservationFromTrack(track)); err != nil {
				opsf("insert observation for %s: %v", track.TrackID, err)
			}
		}
	}

	// Record terminal state for tracks retired within the grace period.
	for _, track := range p.cfg.Tracker.RecentlyRetiredTracks(nowNanos) {
		if err := vision.UpsertCameraTrack(p.cfg.DB, track); err != nil {
			opsf("upsert retired track %s: %v", track.TrackID, err)
		}
	}

	for _, det := range detections {
		if err := vision.InsertDetection(p.cfg.DB, det); err != nil {
			opsf("insert detection for %s: %v", det.TrackID, err)
		}
	}
}

// detectionCropPadding is the margin around the detection box in saved
// evidence crops.
const detectionCropPadding = 50

// saveDetectionImage writes a padded crop around the track's current box
// and returns the file path.
func saveDetectionImage(dir string, f *vision.Frame, track *vision.TrackedObject) (string, error) {
	x0 := int(track.X) - track.LastW/2 - detectionCropPadding
	y0 := int(track.Y) - track.LastH/2 - detectionCropPadding
	x1 := int(track.X) + track.LastW/2 + detectionCropPadding
	y1 := int(track.Y) + track.LastH/2 + detectionCropPadding
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > f.Width {
		x1 = f.Width
	}
	if y1 > f.Height {
		y1 = f.Height
	}
	if x1 <= x0 || y1 <= y0 {
		return "", fmt.Errorf("empty crop for track %s", track.TrackID)
	}

	crop := f.ToImage().SubImage(image.Rect(x0, y0, x1, y1))

	name := fmt.Sprintf("aircraft_%d_%s.jpg", f.TSUnixNanos, security.SanitizeFilename(track.TrackID))
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create detection image: %w", err)
	}
	if err := jpeg.Encode(file, crop, &jpeg.Options{Quality: 90}); err != nil {
		file.Close()
		return "", fmt.Errorf("encode detection image: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close detection image: %w", err)
	}
	return path, nil
}
