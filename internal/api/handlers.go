package api

import (
	"encoding/json"
	"fmt"
	"image/jpeg"
	"image/png"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/skylark-data/overflight.report/internal/adsb"
	"github.com/skylark-data/overflight.report/internal/camera"
	"github.com/skylark-data/overflight.report/internal/config"
	"github.com/skylark-data/overflight.report/internal/security"
	"github.com/skylark-data/overflight.report/internal/units"
	"github.com/skylark-data/overflight.report/internal/version"
	"github.com/skylark-data/overflight.report/internal/vision"
	"github.com/skylark-data/overflight.report/internal/vision/pipeline"
)

const (
	defaultDetectionLimit = 100
	defaultTrackLimit     = 200
	defaultObsLimit       = 1000
	maxQueryLimit         = 1000
)

// parseLimit reads an optional positive 'limit' query parameter, clamped to
// maxQueryLimit.
func parseLimit(r *http.Request, fallback int) (int, error) {
	l := r.URL.Query().Get("limit")
	if l == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(l)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("invalid 'limit' parameter")
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	return limit, nil
}

func (s *Server) listDetections(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "detection store not configured")
		return
	}

	limit, err := parseLimit(r, defaultDetectionLimit)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if sc := r.URL.Query().Get("since"); sc != "" {
		parsed, err := time.Parse(time.RFC3339, sc)
		if err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'since' parameter, want RFC3339")
			return
		}
		since = parsed
	}

	detections, err := vision.QueryDetections(s.db.DB, since, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve detections: %v", err))
		return
	}
	if detections == nil {
		detections = []*vision.Detection{}
	}

	if err := json.NewEncoder(w).Encode(detections); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write detections")
		return
	}
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "track store not configured")
		return
	}

	state := r.URL.Query().Get("state")
	switch state {
	case "", string(vision.TrackTentative), string(vision.TrackConfirmed),
		string(vision.TrackStale), string(vision.TrackRetired):
	default:
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'state' parameter")
		return
	}

	hours := 24
	if h := r.URL.Query().Get("hours"); h != "" {
		parsed, err := strconv.Atoi(h)
		if err != nil || parsed < 1 || parsed > 24*7 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'hours' parameter")
			return
		}
		hours = parsed
	}

	limit, err := parseLimit(r, defaultTrackLimit)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}

	end := time.Now()
	start := end.Add(-time.Duration(hours) * time.Hour)
	tracks, err := vision.QueryCameraTracks(s.db.DB, state, start, end, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve tracks: %v", err))
		return
	}
	if tracks == nil {
		tracks = []*vision.CameraTrackRow{}
	}

	if err := json.NewEncoder(w).Encode(tracks); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write tracks")
		return
	}
}

func (s *Server) listTrackObservations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "track store not configured")
		return
	}

	trackID := r.URL.Query().Get("track_id")
	if trackID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'track_id' parameter")
		return
	}

	limit, err := parseLimit(r, defaultObsLimit)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}

	obs, err := vision.QueryTrackObservations(s.db.DB, trackID, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve observations: %v", err))
		return
	}
	if obs == nil {
		obs = []*vision.TrackObservation{}
	}

	if err := json.NewEncoder(w).Encode(obs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write observations")
		return
	}
}

// clearTracks drops the in-memory track table and the persisted camera
// track rows. Development reset; detections are kept.
func (s *Server) clearTracks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if s.tracker != nil {
		s.tracker.Clear()
	}
	if s.db != nil {
		if err := vision.ClearCameraTracks(s.db.DB); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to clear track rows: %v", err))
			return
		}
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
}

type aircraftResponse struct {
	Snapshot *adsb.Snapshot               `json:"snapshot"`
	Fresh    bool                         `json:"fresh"`
	Health   map[string]adsb.SourceHealth `json:"health"`

	// SpeedUnit names the unit the snapshot's gs fields were converted to.
	// Absent when speeds are as received (knots).
	SpeedUnit string `json:"speed_unit,omitempty"`
}

// showAircraft reports the latest receiver snapshot plus source health. An
// optional 'units' parameter converts ground speeds for display.
func (s *Server) showAircraft(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.aircraft == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "ADS-B source not configured")
		return
	}

	unit := r.URL.Query().Get("units")
	if unit != "" && !units.IsValidSpeedUnit(unit) {
		s.writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid 'units' parameter; valid values: %s", units.ValidSpeedUnitsString()))
		return
	}

	s.mu.Lock()
	freshness := s.tuning.GetADSBFreshness()
	s.mu.Unlock()

	resp := aircraftResponse{
		Snapshot: s.aircraft.Latest(),
		Fresh:    s.aircraft.Current(freshness, time.Now()) != nil,
		Health:   s.aircraft.Health(),
	}
	if unit != "" {
		resp.Snapshot = resp.Snapshot.ConvertGroundSpeeds(unit)
		resp.SpeedUnit = unit
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write aircraft state")
		return
	}
}

type statusResponse struct {
	Status           string                       `json:"status"`
	Version          string                       `json:"version"`
	UptimeSeconds    float64                      `json:"uptime_seconds"`
	DetectionEnabled bool                         `json:"detection_enabled"`
	Pipeline         pipeline.Counts              `json:"pipeline"`
	Packets          camera.PacketTotals          `json:"packets"`
	TrackCounts      vision.TrackerCounts         `json:"track_counts"`
	Tracker          vision.TrackerMetrics        `json:"tracker"`
	Calibration      *vision.CalibrationSnapshot  `json:"calibration,omitempty"`
	ADSB             map[string]adsb.SourceHealth `json:"adsb,omitempty"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := statusResponse{
		Status:        "ok",
		Version:       version.String(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}
	if s.pipeline != nil {
		resp.DetectionEnabled = s.pipeline.DetectionEnabled()
		resp.Pipeline = s.pipeline.Counts()
	}
	if s.stats != nil {
		resp.Packets = s.stats.Totals()
	}
	if s.tracker != nil {
		resp.TrackCounts = s.tracker.Counts()
		resp.Tracker = s.tracker.Metrics()
	}
	if s.calibration != nil {
		snap := s.calibration.Snapshot()
		resp.Calibration = &snap
	}
	if s.aircraft != nil {
		resp.ADSB = s.aircraft.Health()
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write status")
		return
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.showConfig(w, r)
	case http.MethodPost:
		s.updateConfig(w, r)
	default:
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s.mu.Lock()
	active := s.tuning
	s.mu.Unlock()

	if err := json.NewEncoder(w).Encode(active); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}

// updateConfig merges a partial tuning payload into the active config,
// validates the result and hands it to the pipeline. Fields absent from the
// payload keep their current values, so the same document shape works for
// startup files and runtime patches.
func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	patch := config.EmptyTuningConfig()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(patch); err != nil {
		s.writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid config payload: %v", err))
		return
	}

	s.mu.Lock()
	merged := config.EmptyTuningConfig()
	merged.Merge(s.tuning)
	merged.Merge(patch)
	if err := merged.Validate(); err != nil {
		s.mu.Unlock()
		s.writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid config: %v", err))
		return
	}
	s.tuning = merged
	s.mu.Unlock()

	if s.pipeline != nil {
		s.pipeline.ApplyTuning(merged)
	}

	if err := json.NewEncoder(w).Encode(merged); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}

// Tuning returns the active runtime config. The pointer must be treated as
// read-only; updates swap in a fresh value.
func (s *Server) Tuning() *config.TuningConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tuning
}

type controlRequest struct {
	Detection *bool `json:"detection"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.pipeline == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "pipeline not running")
		return
	}

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid control payload: %v", err))
		return
	}
	if req.Detection == nil {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'detection' field")
		return
	}

	s.pipeline.SetDetectionEnabled(*req.Detection)
	json.NewEncoder(w).Encode(map[string]bool{"detection_enabled": *req.Detection})
}

// saveSnapshot writes the most recent frame to the snapshot directory as a
// PNG and returns its path. Useful during lens alignment and tuning.
func (s *Server) saveSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.pipeline == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "pipeline not running")
		return
	}
	if s.snapshotDir == "" {
		s.writeJSONError(w, http.StatusServiceUnavailable, "snapshot directory not configured")
		return
	}

	frame := s.pipeline.LatestFrame()
	if frame == nil {
		s.writeJSONError(w, http.StatusNotFound, "no frame received yet")
		return
	}

	if err := os.MkdirAll(s.snapshotDir, 0o755); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to create snapshot directory: %v", err))
		return
	}

	path := filepath.Join(s.snapshotDir, fmt.Sprintf("frame_%d.png", frame.TSUnixNanos))
	out, err := os.Create(path)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to create snapshot file: %v", err))
		return
	}
	defer out.Close()

	if err := png.Encode(out, frame.ToImage()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to encode snapshot: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"path":          path,
		"ts_unix_nanos": frame.TSUnixNanos,
	})
}

func (s *Server) serveFrame(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.pipeline == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "pipeline not running")
		return
	}

	frame := s.pipeline.LatestFrame()
	if frame == nil {
		s.writeJSONError(w, http.StatusNotFound, "no frame received yet")
		return
	}

	// Headers are not flushed until the first write, so the JSON type set
	// above can still be replaced on the success path.
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	if err := jpeg.Encode(w, frame.ToImage(), &jpeg.Options{Quality: 85}); err != nil {
		log.Printf("[api] frame encode failed: %v", err)
	}
}

// serveDetectionImage returns the frame image saved alongside a detection.
// The stored path must resolve inside the snapshot directory; anything else
// is treated as missing.
func (s *Server) serveDetectionImage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "detection store not configured")
		return
	}
	if s.snapshotDir == "" {
		s.writeJSONError(w, http.StatusServiceUnavailable, "snapshot directory not configured")
		return
	}

	idParam := r.URL.Query().Get("id")
	if idParam == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'id' parameter")
		return
	}
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'id' parameter")
		return
	}

	det, err := vision.GetDetection(s.db.DB, id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve detection: %v", err))
		return
	}
	if det == nil {
		s.writeJSONError(w, http.StatusNotFound, "detection not found")
		return
	}
	if det.ImagePath == "" {
		s.writeJSONError(w, http.StatusNotFound, "no image saved for this detection")
		return
	}

	if err := security.ValidatePathWithinDirectory(det.ImagePath, s.snapshotDir); err != nil {
		log.Printf("[api] rejected detection image path %q: %v", det.ImagePath, err)
		s.writeJSONError(w, http.StatusNotFound, "detection image not available")
		return
	}
	if _, err := os.Stat(det.ImagePath); err != nil {
		s.writeJSONError(w, http.StatusNotFound, "detection image not available")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, det.ImagePath)
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.events == nil {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusServiceUnavailable, "event stream not configured")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := s.events.Subscribe()
	defer s.events.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	w.(http.Flusher).Flush()

	for {
		select {
		case payload, ok := <-c:
			if !ok {
				// Channel closed, exit gracefully
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			w.(http.Flusher).Flush()
		case <-r.Context().Done():
			return
		}
	}
}
