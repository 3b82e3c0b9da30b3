// Package api serves the HTTP control surface for the camera daemon:
// detection and track queries, live aircraft state, runtime tuning, the
// MJPEG-style frame snapshot, and a server-sent event stream of emitted
// detections.
package api

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/skylark-data/overflight.report/internal/adsb"
	"github.com/skylark-data/overflight.report/internal/camera"
	"github.com/skylark-data/overflight.report/internal/config"
	"github.com/skylark-data/overflight.report/internal/db"
	"github.com/skylark-data/overflight.report/internal/vision"
	"github.com/skylark-data/overflight.report/internal/vision/monitor"
	"github.com/skylark-data/overflight.report/internal/vision/pipeline"
)

// ANSI color codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// loggingResponseWriter wraps http.ResponseWriter to capture the status code
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher so the event stream can push data through
// the logging wrapper.
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs all HTTP requests with method, path, status and timing
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// Server exposes the daemon's state over HTTP. All fields are optional
// except Tracker; handlers whose backing component is absent answer 503.
type Server struct {
	pipeline    *pipeline.Pipeline
	tracker     *vision.Tracker
	calibration *vision.CalibrationState
	aircraft    *adsb.Store
	db          *db.DB
	stats       *camera.PacketStats
	events      *EventBus
	charts      *monitor.Charts
	snapshotDir string
	startTime   time.Time

	// tuning is the active runtime config. POST /api/config swaps in a
	// merged copy under mu; readers always see a complete value.
	mu     sync.Mutex
	tuning *config.TuningConfig
}

// Config carries the server's dependencies.
type Config struct {
	Pipeline    *pipeline.Pipeline
	Tracker     *vision.Tracker
	Calibration *vision.CalibrationState
	Aircraft    *adsb.Store
	DB          *db.DB
	Stats       *camera.PacketStats
	Events      *EventBus
	Tuning      *config.TuningConfig
	SnapshotDir string
}

// NewServer wires the handler set around the daemon's components.
func NewServer(cfg Config) *Server {
	s := &Server{
		pipeline:    cfg.Pipeline,
		tracker:     cfg.Tracker,
		calibration: cfg.Calibration,
		aircraft:    cfg.Aircraft,
		db:          cfg.DB,
		stats:       cfg.Stats,
		events:      cfg.Events,
		tuning:      cfg.Tuning,
		snapshotDir: cfg.SnapshotDir,
		startTime:   time.Now(),
	}
	if s.tuning == nil {
		s.tuning = config.DefaultTuningConfig()
	}
	if cfg.Tracker != nil {
		var sqlDB *sql.DB
		if cfg.DB != nil {
			sqlDB = cfg.DB.DB
		}
		s.charts = monitor.NewCharts(cfg.Tracker, sqlDB)
	}
	return s
}

// ServeMux returns the mux with all API and chart routes registered.
// Admin debug routes are attached separately by the caller so they can be
// skipped in restricted deployments.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/detections", s.listDetections)
	mux.HandleFunc("/api/tracks", s.listTracks)
	mux.HandleFunc("/api/track_obs", s.listTrackObservations)
	mux.HandleFunc("/api/tracks/clear", s.clearTracks)
	mux.HandleFunc("/api/aircraft", s.showAircraft)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/control", s.handleControl)
	mux.HandleFunc("/api/snapshot", s.saveSnapshot)
	mux.HandleFunc("/api/frame.jpg", s.serveFrame)
	mux.HandleFunc("/api/detection_image", s.serveDetectionImage)
	mux.HandleFunc("/api/events", s.streamEvents)

	if s.charts != nil {
		s.charts.Register(mux)
	}

	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
