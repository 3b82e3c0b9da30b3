package vision

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "camera-track-store-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open database: %v", err)
	}

	// Mirrors the embedded migrations.
	createSQL := `
		CREATE TABLE IF NOT EXISTS camera_tracks (
			track_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			start_unix_nanos INTEGER NOT NULL,
			end_unix_nanos INTEGER,
			observation_count INTEGER,
			hits INTEGER,
			misses INTEGER,
			avg_speed_pps REAL,
			peak_speed_pps REAL,
			p50_speed_pps REAL,
			p85_speed_pps REAL,
			p95_speed_pps REAL,
			area_avg REAL,
			contrast_avg REAL,
			confidence REAL,
			correlated_hex TEXT,
			correlated_flight TEXT,
			correlated_alt_ft REAL,
			correlated_dist_nm REAL,
			correlated_bearing_deg REAL
		);

		CREATE TABLE IF NOT EXISTS camera_track_obs (
			track_id TEXT NOT NULL,
			ts_unix_nanos INTEGER NOT NULL,
			x REAL,
			y REAL,
			w INTEGER,
			h INTEGER,
			area INTEGER,
			contrast REAL,
			vx REAL,
			vy REAL,
			speed_pps REAL,
			heading_deg REAL,
			confidence REAL,
			PRIMARY KEY (track_id, ts_unix_nanos)
		);

		CREATE TABLE IF NOT EXISTS detections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id TEXT NOT NULL,
			ts_unix_nanos INTEGER NOT NULL,
			x REAL,
			y REAL,
			confidence REAL,
			area INTEGER,
			contrast REAL,
			correlated_hex TEXT,
			correlated_flight TEXT,
			correlated_alt_ft REAL,
			image_path TEXT
		);
	`

	if _, err := db.Exec(createSQL); err != nil {
		db.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create tables: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return db, cleanup
}

func storedTrack() *TrackedObject {
	return &TrackedObject{
		TrackID:          "trk_store_test",
		State:            TrackConfirmed,
		Hits:             4,
		Misses:           0,
		FirstUnixNanos:   1_700_000_000_000_000_000,
		LastUnixNanos:    1_700_000_001_000_000_000,
		X:                120.5,
		Y:                80.25,
		VX:               30,
		VY:               -10,
		LastW:            12,
		LastH:            10,
		LastArea:         96,
		LastPerimeter:    40,
		LastContrast:     55,
		ObservationCount: 5,
		AreaAvg:          90,
		ContrastAvg:      52,
		AvgSpeedPps:      28,
		PeakSpeedPps:     35,
		Confidence:       0.71,
		speedHistory:     []float64{20, 25, 30, 32, 35},
	}
}

func TestUpsertCameraTrack(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	track := storedTrack()
	if err := UpsertCameraTrack(db, track); err != nil {
		t.Fatalf("UpsertCameraTrack failed: %v", err)
	}

	start := time.Unix(0, track.FirstUnixNanos-1)
	end := time.Unix(0, track.FirstUnixNanos+1)
	rows, err := QueryCameraTracks(db, "", start, end, 10)
	if err != nil {
		t.Fatalf("QueryCameraTracks failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if row.TrackID != track.TrackID || row.State != string(TrackConfirmed) {
		t.Errorf("identity fields wrong: %+v", row)
	}
	if row.ObservationCount != 5 || row.Hits != 4 {
		t.Errorf("counters wrong: %+v", row)
	}
	if row.AvgSpeedPps != 28 || row.PeakSpeedPps != 35 {
		t.Errorf("speed summary wrong: %+v", row)
	}
	if row.P50SpeedPps <= 0 || row.P95SpeedPps < row.P50SpeedPps {
		t.Errorf("speed percentiles wrong: %+v", row)
	}
	if row.CorrelatedHex != "" {
		t.Errorf("uncorrelated track stored identity %q", row.CorrelatedHex)
	}

	// Second upsert updates in place.
	track.State = TrackRetired
	track.LastUnixNanos += 1_000_000_000
	track.CorrelatedHex = "4ca2f3"
	track.CorrelatedFlight = "EIN159"
	track.CorrelatedAltFt = 35000
	if err := UpsertCameraTrack(db, track); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	rows, err = QueryCameraTracks(db, "", start, end, 10)
	if err != nil {
		t.Fatalf("QueryCameraTracks failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("upsert should not create a second row, got %d", len(rows))
	}
	if rows[0].State != string(TrackRetired) {
		t.Errorf("state not updated, got %s", rows[0].State)
	}
	if rows[0].CorrelatedHex != "4ca2f3" || rows[0].CorrelatedFlight != "EIN159" {
		t.Errorf("correlation not updated: %+v", rows[0])
	}
	if rows[0].CorrelatedAltFt != 35000 {
		t.Errorf("altitude not updated: %v", rows[0].CorrelatedAltFt)
	}
}

func TestQueryCameraTracks_StateFilter(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	confirmed := storedTrack()
	retired := storedTrack()
	retired.TrackID = "trk_store_retired"
	retired.State = TrackRetired
	if err := UpsertCameraTrack(db, confirmed); err != nil {
		t.Fatal(err)
	}
	if err := UpsertCameraTrack(db, retired); err != nil {
		t.Fatal(err)
	}

	start := time.Unix(0, 0)
	end := time.Unix(0, confirmed.FirstUnixNanos+1)

	all, err := QueryCameraTracks(db, "", start, end, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 rows unfiltered, got %d", len(all))
	}

	only, err := QueryCameraTracks(db, string(TrackRetired), start, end, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(only) != 1 || only[0].TrackID != "trk_store_retired" {
		t.Errorf("state filter failed: %+v", only)
	}
}

func TestInsertTrackObservation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	track := storedTrack()
	obs := TrackObservationFromTrack(track)
	if obs.TrackID != track.TrackID || obs.TSUnixNanos != track.LastUnixNanos {
		t.Fatalf("observation row not derived from track: %+v", obs)
	}
	if obs.SpeedPps != track.Speed() || obs.HeadingDeg != track.HeadingDeg() {
		t.Fatalf("derived kinematics wrong: %+v", obs)
	}

	if err := InsertTrackObservation(db, obs); err != nil {
		t.Fatalf("InsertTrackObservation failed: %v", err)
	}
	// Duplicate (track, ts) is ignored.
	if err := InsertTrackObservation(db, obs); err != nil {
		t.Fatalf("duplicate insert should be a no-op, got %v", err)
	}

	later := *obs
	later.TSUnixNanos += 100_000_000
	later.X += 3
	if err := InsertTrackObservation(db, &later); err != nil {
		t.Fatalf("second insert failed: %v", err)
	}

	got, err := QueryTrackObservations(db, track.TrackID, 10)
	if err != nil {
		t.Fatalf("QueryTrackObservations failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].TSUnixNanos >= got[1].TSUnixNanos {
		t.Errorf("observations should be ordered oldest first")
	}
	if got[0].X != obs.X || got[0].Confidence != obs.Confidence {
		t.Errorf("row round trip wrong: %+v", got[0])
	}
}

func TestInsertDetection(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	det := &Detection{
		TrackID:     "trk_store_test",
		TSUnixNanos: 1_700_000_000_500_000_000,
		X:           150,
		Y:           90,
		Confidence:  0.81,
		Area:        110,
		Contrast:    60,
	}
	if err := InsertDetection(db, det); err != nil {
		t.Fatalf("InsertDetection failed: %v", err)
	}
	if det.ID == 0 {
		t.Error("insert should fill in the row ID")
	}

	correlated := &Detection{
		TrackID:          "trk_store_test",
		TSUnixNanos:      1_700_000_001_500_000_000,
		X:                160,
		Y:                92,
		Confidence:       0.9,
		Area:             120,
		Contrast:         62,
		CorrelatedHex:    "4ca2f3",
		CorrelatedFlight: "EIN159",
		CorrelatedAltFt:  35000,
	}
	if err := InsertDetection(db, correlated); err != nil {
		t.Fatalf("correlated insert failed: %v", err)
	}

	got, err := QueryDetections(db, time.Unix(0, 0), 10)
	if err != nil {
		t.Fatalf("QueryDetections failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(got))
	}
	// Newest first.
	if got[0].TSUnixNanos < got[1].TSUnixNanos {
		t.Errorf("detections should be ordered newest first")
	}
	if got[0].CorrelatedHex != "4ca2f3" || got[0].CorrelatedAltFt != 35000 {
		t.Errorf("correlated columns wrong: %+v", got[0])
	}
	if got[1].CorrelatedHex != "" || got[1].CorrelatedAltFt != 0 {
		t.Errorf("uncorrelated detection should read back empty: %+v", got[1])
	}

	// Since filter cuts off the older record.
	recent, err := QueryDetections(db, time.Unix(0, correlated.TSUnixNanos), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].ID != correlated.ID {
		t.Errorf("since filter failed: %+v", recent)
	}
}

func TestGetDetection(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	det := &Detection{
		TrackID:     "trk_get_test",
		TSUnixNanos: 1_700_000_002_000_000_000,
		X:           40,
		Y:           25,
		Confidence:  0.77,
		Area:        95,
		Contrast:    55,
		ImagePath:   "/var/lib/skywatch/snapshots/aircraft_1700000002000000000_trk_get_test.jpg",
	}
	if err := InsertDetection(db, det); err != nil {
		t.Fatalf("InsertDetection failed: %v", err)
	}

	got, err := GetDetection(db, det.ID)
	if err != nil {
		t.Fatalf("GetDetection failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a detection, got nil")
	}
	if got.TrackID != det.TrackID || got.ImagePath != det.ImagePath {
		t.Errorf("detection read back wrong: %+v", got)
	}

	missing, err := GetDetection(db, det.ID+100)
	if err != nil {
		t.Fatalf("GetDetection for missing row errored: %v", err)
	}
	if missing != nil {
		t.Errorf("missing row should return nil, got %+v", missing)
	}
}

func TestClearCameraTracks(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	track := storedTrack()
	if err := UpsertCameraTrack(db, track); err != nil {
		t.Fatal(err)
	}
	if err := InsertTrackObservation(db, TrackObservationFromTrack(track)); err != nil {
		t.Fatal(err)
	}
	if err := InsertDetection(db, &Detection{TrackID: track.TrackID, TSUnixNanos: 1}); err != nil {
		t.Fatal(err)
	}

	if err := ClearCameraTracks(db); err != nil {
		t.Fatalf("ClearCameraTracks failed: %v", err)
	}

	rows, err := QueryCameraTracks(db, "", time.Unix(0, 0), time.Now(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("tracks not cleared: %d rows", len(rows))
	}
	dets, err := QueryDetections(db, time.Unix(0, 0), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(dets) != 0 {
		t.Errorf("detections not cleared: %d rows", len(dets))
	}
}

func TestPruneCameraData(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	old := storedTrack()
	old.TrackID = "trk_old"
	old.FirstUnixNanos = 1000
	old.LastUnixNanos = 2000
	recent := storedTrack()
	recent.TrackID = "trk_recent"

	for _, track := range []*TrackedObject{old, recent} {
		if err := UpsertCameraTrack(db, track); err != nil {
			t.Fatal(err)
		}
		if err := InsertTrackObservation(db, TrackObservationFromTrack(track)); err != nil {
			t.Fatal(err)
		}
	}
	if err := InsertDetection(db, &Detection{TrackID: "trk_old", TSUnixNanos: 1500}); err != nil {
		t.Fatal(err)
	}

	cutoff := time.Unix(0, recent.LastUnixNanos-1)
	removed, err := PruneCameraData(db, cutoff)
	if err != nil {
		t.Fatalf("PruneCameraData failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 rows pruned (track, obs, detection), got %d", removed)
	}

	rows, err := QueryCameraTracks(db, "", time.Unix(0, 0), time.Now(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].TrackID != "trk_recent" {
		t.Errorf("recent track should survive pruning: %+v", rows)
	}
}

func TestStore_NilDB(t *testing.T) {
	if err := UpsertCameraTrack(nil, storedTrack()); err != nil {
		t.Errorf("nil db should no-op, got %v", err)
	}
	if err := InsertTrackObservation(nil, &TrackObservation{}); err != nil {
		t.Errorf("nil db should no-op, got %v", err)
	}
	if err := InsertDetection(nil, &Detection{}); err != nil {
		t.Errorf("nil db should no-op, got %v", err)
	}
	if err := ClearCameraTracks(nil); err != nil {
		t.Errorf("nil db should no-op, got %v", err)
	}
	if _, err := PruneCameraData(nil, time.Now()); err != nil {
		t.Errorf("nil db should no-op, got %v", err)
	}
	if rows, err := QueryCameraTracks(nil, "", time.Time{}, time.Now(), 1); err != nil || rows != nil {
		t.Errorf("nil db query should return nothing, got %v, %v", rows, err)
	}
	if det, err := GetDetection(nil, 1); err != nil || det != nil {
		t.Errorf("nil db get should return nothing, got %v, %v", det, err)
	}
}
