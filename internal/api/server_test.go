package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylark-data/overflight.report/internal/adsb"
	"github.com/skylark-data/overflight.report/internal/config"
	"github.com/skylark-data/overflight.report/internal/db"
	"github.com/skylark-data/overflight.report/internal/vision"
)

func newTestTracker() *vision.Tracker {
	return vision.NewTracker(vision.TrackerConfig{
		MaxTracks:          16,
		GatingDistancePx:   60,
		MaxPositionJumpPx:  200,
		HitsToConfirm:      3,
		MaxMissesTentative: 3,
		StaleAfterMisses:   3,
		RetireAfterMisses:  10,
		RetiredGracePeriod: 5 * time.Second,
		VelocityWindow:     5,
		DistanceWeight:     1.0,
	})
}

// newTestServer builds a server with an empty tracker and default tuning;
// no store, pipeline or ADS-B source.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(Config{
		Tracker: newTestTracker(),
		Tuning:  config.DefaultTuningConfig(),
	})
}

// newStoreServer adds a migrated database to the test server.
func newStoreServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	s := NewServer(Config{
		Tracker: newTestTracker(),
		Tuning:  config.DefaultTuningConfig(),
		DB:      database,
	})
	return s, database
}

func doRequest(s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Version)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, 0.0)
	assert.Equal(t, 0, resp.TrackCounts.Total)
	assert.False(t, resp.DetectionEnabled) // no pipeline wired
	assert.Nil(t, resp.ADSB)
}

func TestStatusIncludesADSBHealth(t *testing.T) {
	store := adsb.NewStore()
	store.RecordSuccess("poll", 3, 120, time.Now())

	s := NewServer(Config{
		Tracker:  newTestTracker(),
		Tuning:   config.DefaultTuningConfig(),
		Aircraft: store,
	})
	rec := doRequest(s, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Contains(t, resp.ADSB, "poll")
	assert.Equal(t, 3, resp.ADSB["poll"].AircraftCount)
}

func TestStatusMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/status", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListDetectionsWithoutStore(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/detections", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListDetections(t *testing.T) {
	s, database := newStoreServer(t)

	now := time.Now()
	for i := 0; i < 3; i++ {
		det := &vision.Detection{
			TrackID:     "trk_det",
			TSUnixNanos: now.Add(time.Duration(i) * time.Second).UnixNano(),
			X:           100 + float64(i),
			Y:           50,
			Confidence:  0.8,
			Area:        120,
			Contrast:    40,
		}
		require.NoError(t, vision.InsertDetection(database.DB, det))
	}

	rec := doRequest(s, http.MethodGet, "/api/detections", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detections []*vision.Detection
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detections))
	assert.Len(t, detections, 3)
}

func TestListDetectionsSinceFilter(t *testing.T) {
	s, database := newStoreServer(t)

	old := &vision.Detection{
		TrackID:     "trk_old",
		TSUnixNanos: time.Now().Add(-48 * time.Hour).UnixNano(),
		Confidence:  0.5,
		Area:        80,
	}
	recent := &vision.Detection{
		TrackID:     "trk_recent",
		TSUnixNanos: time.Now().UnixNano(),
		Confidence:  0.9,
		Area:        90,
	}
	require.NoError(t, vision.InsertDetection(database.DB, old))
	require.NoError(t, vision.InsertDetection(database.DB, recent))

	// Default window is 24h, so only the recent row comes back.
	rec := doRequest(s, http.MethodGet, "/api/detections", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detections []*vision.Detection
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detections))
	require.Len(t, detections, 1)
	assert.Equal(t, "trk_recent", detections[0].TrackID)

	// An explicit since far in the past returns both.
	since := time.Now().Add(-72 * time.Hour).Format(time.RFC3339)
	rec = doRequest(s, http.MethodGet, "/api/detections?since="+since, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detections = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detections))
	assert.Len(t, detections, 2)
}

func TestListDetectionsBadParams(t *testing.T) {
	s, _ := newStoreServer(t)

	rec := doRequest(s, http.MethodGet, "/api/detections?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/detections?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/detections?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func seedTrackRow(t *testing.T, database *db.DB, id string, state vision.TrackState, endedAgo time.Duration) {
	t.Helper()
	now := time.Now()
	track := &vision.TrackedObject{
		TrackID:          id,
		State:            state,
		FirstUnixNanos:   now.Add(-endedAgo - time.Minute).UnixNano(),
		LastUnixNanos:    now.Add(-endedAgo).UnixNano(),
		ObservationCount: 5,
		Hits:             5,
		AreaAvg:          100,
		ContrastAvg:      35,
		Confidence:       0.7,
	}
	require.NoError(t, vision.UpsertCameraTrack(database.DB, track))
}

func TestListTracks(t *testing.T) {
	s, database := newStoreServer(t)
	seedTrackRow(t, database, "trk_a", vision.TrackConfirmed, time.Minute)
	seedTrackRow(t, database, "trk_b", vision.TrackRetired, 2*time.Minute)

	rec := doRequest(s, http.MethodGet, "/api/tracks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tracks []*vision.CameraTrackRow
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tracks))
	assert.Len(t, tracks, 2)
}

func TestListTracksStateFilter(t *testing.T) {
	s, database := newStoreServer(t)
	seedTrackRow(t, database, "trk_a", vision.TrackConfirmed, time.Minute)
	seedTrackRow(t, database, "trk_b", vision.TrackRetired, 2*time.Minute)

	rec := doRequest(s, http.MethodGet, "/api/tracks?state=retired", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tracks []*vision.CameraTrackRow
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tracks))
	require.Len(t, tracks, 1)
	assert.Equal(t, "trk_b", tracks[0].TrackID)

	rec = doRequest(s, http.MethodGet, "/api/tracks?state=hovering", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackObservations(t *testing.T) {
	s, database := newStoreServer(t)
	seedTrackRow(t, database, "trk_obs", vision.TrackConfirmed, time.Minute)

	now := time.Now().UnixNano()
	for i := 0; i < 4; i++ {
		obs := &vision.TrackObservation{
			TrackID:     "trk_obs",
			TSUnixNanos: now + int64(i)*1e9,
			X:           float64(40 + i*20),
			Y:           60,
			W:           8, H: 8,
			Area:     64,
			Contrast: 40,
			SpeedPps: 20,
		}
		require.NoError(t, vision.InsertTrackObservation(database.DB, obs))
	}

	rec := doRequest(s, http.MethodGet, "/api/track_obs?track_id=trk_obs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var obs []*vision.TrackObservation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&obs))
	assert.Len(t, obs, 4)
}

func TestTrackObservationsMissingID(t *testing.T) {
	s, _ := newStoreServer(t)
	rec := doRequest(s, http.MethodGet, "/api/track_obs", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearTracks(t *testing.T) {
	s, database := newStoreServer(t)
	seedTrackRow(t, database, "trk_gone", vision.TrackConfirmed, time.Minute)

	// Seed the in-memory table too.
	s.tracker.Update([]vision.Observation{{
		X: 40, Y: 60, W: 8, H: 8, CX: 44, CY: 64, Area: 64, Perimeter: 28,
		Contrast: 40, TSUnixNanos: time.Now().UnixNano(),
	}}, time.Now())
	require.Equal(t, 1, s.tracker.Counts().Total)

	rec := doRequest(s, http.MethodPost, "/api/tracks/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 0, s.tracker.Counts().Total)
	rows := doRequest(s, http.MethodGet, "/api/tracks", nil)
	var tracks []*vision.CameraTrackRow
	require.NoError(t, json.NewDecoder(rows.Body).Decode(&tracks))
	assert.Empty(t, tracks)
}

func TestClearTracksRequiresPost(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/tracks/clear", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAircraftWithoutStore(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/aircraft", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAircraftEndpoint(t *testing.T) {
	store := adsb.NewStore()
	lat, lon := 51.5, -0.12
	store.Swap(&adsb.Snapshot{
		NowUnixSec:       float64(time.Now().Unix()),
		Aircraft:         []adsb.Aircraft{{Hex: "4008f5", Flight: "BAW123 ", Lat: &lat, Lon: &lon}},
		FetchedUnixNanos: time.Now().UnixNano(),
		Source:           "poll",
	})
	store.RecordSuccess("poll", 1, 80, time.Now())

	s := NewServer(Config{
		Tracker:  newTestTracker(),
		Tuning:   config.DefaultTuningConfig(),
		Aircraft: store,
	})
	rec := doRequest(s, http.MethodGet, "/api/aircraft", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp aircraftResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Snapshot)
	require.Len(t, resp.Snapshot.Aircraft, 1)
	assert.Equal(t, "4008f5", resp.Snapshot.Aircraft[0].Hex)
	assert.True(t, resp.Fresh)
	assert.Contains(t, resp.Health, "poll")
}

func TestAircraftSpeedUnits(t *testing.T) {
	store := adsb.NewStore()
	gs := 400.0
	store.Swap(&adsb.Snapshot{
		Aircraft:         []adsb.Aircraft{{Hex: "4008f5", GS: &gs}},
		FetchedUnixNanos: time.Now().UnixNano(),
		Source:           "poll",
	})

	s := NewServer(Config{
		Tracker:  newTestTracker(),
		Tuning:   config.DefaultTuningConfig(),
		Aircraft: store,
	})

	rec := doRequest(s, http.MethodGet, "/api/aircraft?units=mph", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp aircraftResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "mph", resp.SpeedUnit)
	require.NotNil(t, resp.Snapshot)
	require.Len(t, resp.Snapshot.Aircraft, 1)
	require.NotNil(t, resp.Snapshot.Aircraft[0].GS)
	assert.InDelta(t, 460.3, *resp.Snapshot.Aircraft[0].GS, 0.1)

	// The store's snapshot is untouched by display conversion.
	assert.Equal(t, 400.0, *store.Latest().Aircraft[0].GS)

	rec = doRequest(s, http.MethodGet, "/api/aircraft?units=furlongs", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAircraftStaleSnapshot(t *testing.T) {
	store := adsb.NewStore()
	store.Swap(&adsb.Snapshot{
		FetchedUnixNanos: time.Now().Add(-time.Hour).UnixNano(),
		Source:           "poll",
	})

	s := NewServer(Config{
		Tracker:  newTestTracker(),
		Tuning:   config.DefaultTuningConfig(),
		Aircraft: store,
	})
	rec := doRequest(s, http.MethodGet, "/api/aircraft", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp aircraftResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotNil(t, resp.Snapshot)
	assert.False(t, resp.Fresh)
}

func TestConfigGet(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg config.TuningConfig
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cfg))
	require.NotNil(t, cfg.MinBlobArea)
	assert.Equal(t, 25, *cfg.MinBlobArea)
}

func TestConfigPostMergesPatch(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/config",
		[]byte(`{"min_blob_area": 50, "confidence_threshold": 0.4}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg config.TuningConfig
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cfg))
	require.NotNil(t, cfg.MinBlobArea)
	assert.Equal(t, 50, *cfg.MinBlobArea)
	require.NotNil(t, cfg.ConfidenceThreshold)
	assert.InDelta(t, 0.4, *cfg.ConfidenceThreshold, 1e-9)

	// Untouched fields keep their previous values.
	require.NotNil(t, cfg.MaxBlobArea)
	assert.Equal(t, 2000, *cfg.MaxBlobArea)

	// The active config the next GET serves is the merged one.
	rec = doRequest(s, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active config.TuningConfig
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&active))
	require.NotNil(t, active.MinBlobArea)
	assert.Equal(t, 50, *active.MinBlobArea)
}

func TestConfigPostRejectsInvalid(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/config", []byte(`{"min_blob_area": 0}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "min_blob_area")

	// The active config is untouched after a rejected patch.
	rec = doRequest(s, http.MethodGet, "/api/config", nil)
	var cfg config.TuningConfig
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cfg))
	require.NotNil(t, cfg.MinBlobArea)
	assert.Equal(t, 25, *cfg.MinBlobArea)
}

func TestConfigPostRejectsBadJSON(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/config", []byte(`{"min_blob`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestControlRequiresPipeline(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/control", []byte(`{"detection": false}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestControlTogglesDetection(t *testing.T) {
	p := newTestAPIPipeline(t)
	s := NewServer(Config{
		Pipeline: p,
		Tracker:  newTestTracker(),
		Tuning:   config.DefaultTuningConfig(),
	})

	rec := doRequest(s, http.MethodPost, "/api/control", []byte(`{"detection": false}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, p.DetectionEnabled())

	rec = doRequest(s, http.MethodPost, "/api/control", []byte(`{"detection": true}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, p.DetectionEnabled())

	rec = doRequest(s, http.MethodPost, "/api/control", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChartsMounted(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/charts/trajectories.png", nil)
	// Empty tracker still renders a PNG.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	s := newTestServer(t)
	handler := LoggingMiddleware(s.ServeMux())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestStatusCodeColor(t *testing.T) {
	assert.True(t, strings.Contains(statusCodeColor(200), "200"))
	assert.True(t, strings.HasPrefix(statusCodeColor(200), colorBoldGreen))
	assert.True(t, strings.HasPrefix(statusCodeColor(302), colorYellow))
	assert.True(t, strings.HasPrefix(statusCodeColor(404), colorBoldRed))
	assert.True(t, strings.HasPrefix(statusCodeColor(500), colorBoldRed))
}
