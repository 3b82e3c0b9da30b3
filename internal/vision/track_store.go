package vision

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertCameraTrack inserts or updates a track summary row. Called once per
// persistence cycle per live track, and a final time when the track retires.
func UpsertCameraTrack(db *sql.DB, track *TrackedObject) error {
	if db == nil || track == nil {
		return nil
	}

	p50, p85, p95 := track.SpeedPercentiles()

	query := `
		INSERT INTO camera_tracks (
			track_id, state,
			start_unix_nanos, end_unix_nanos, observation_count, hits, misses,
			avg_speed_pps, peak_speed_pps,
			p50_speed_pps, p85_speed_pps, p95_speed_pps,
			area_avg, contrast_avg, confidence,
			correlated_hex, correlated_flight, correlated_alt_ft,
			correlated_dist_nm, correlated_bearing_deg
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			state = excluded.state,
			end_unix_nanos = excluded.end_unix_nanos,
			observation_count = excluded.observation_count,
			hits = excluded.hits,
			misses = excluded.misses,
			avg_speed_pps = excluded.avg_speed_pps,
			peak_speed_pps = excluded.peak_speed_pps,
			p50_speed_pps = excluded.p50_speed_pps,
			p85_speed_pps = excluded.p85_speed_pps,
			p95_speed_pps = excluded.p95_speed_pps,
			area_avg = excluded.area_avg,
			contrast_avg = excluded.contrast_avg,
			confidence = excluded.confidence,
			correlated_hex = excluded.correlated_hex,
			correlated_flight = excluded.correlated_flight,
			correlated_alt_ft = excluded.correlated_alt_ft,
			correlated_dist_nm = excluded.correlated_dist_nm,
			correlated_bearing_deg = excluded.correlated_bearing_deg
	`

	_, err := db.Exec(query,
		track.TrackID,
		string(track.State),
		track.FirstUnixNanos,
		track.LastUnixNanos,
		track.ObservationCount,
		track.Hits,
		track.Misses,
		track.AvgSpeedPps,
		track.PeakSpeedPps,
		p50, p85, p95,
		track.AreaAvg,
		track.ContrastAvg,
		track.Confidence,
		nullString(track.CorrelatedHex),
		nullString(track.CorrelatedFlight),
		nullFloat64IfZero(track.CorrelatedAltFt, track.CorrelatedHex == ""),
		nullFloat64IfZero(track.CorrelatedDistNm, track.CorrelatedHex == ""),
		nullFloat64IfZero(track.CorrelatedBearingDeg, track.CorrelatedHex == ""),
	)

	return err
}

// TrackObservation is one per-frame observation row for a track.
type TrackObservation struct {
	TrackID     string  `json:"track_id"`
	TSUnixNanos int64   `json:"ts_unix_nanos"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	W           int     `json:"w"`
	H           int     `json:"h"`
	Area        int     `json:"area"`
	Contrast    float64 `json:"contrast"`
	VX          float64 `json:"vx"`
	VY          float64 `json:"vy"`
	SpeedPps    float64 `json:"speed_pps"`
	HeadingDeg  float64 `json:"heading_deg"`
	Confidence  float64 `json:"confidence"`
}

// TrackObservationFromTrack builds an observation row from a track's
// current state. Call after Update has folded the frame in.
func TrackObservationFromTrack(track *TrackedObject) *TrackObservation {
	return &TrackObservation{
		TrackID:     track.TrackID,
		TSUnixNanos: track.LastUnixNanos,
		X:           track.X,
		Y:           track.Y,
		W:           track.LastW,
		H:           track.LastH,
		Area:        track.LastArea,
		Contrast:    track.LastContrast,
		VX:          track.VX,
		VY:          track.VY,
		SpeedPps:    track.Speed(),
		HeadingDeg:  track.HeadingDeg(),
		Confidence:  track.Confidence,
	}
}

// InsertTrackObservation inserts one observation row. Duplicate
// (track_id, ts) pairs are ignored so retried persistence cycles are safe.
func InsertTrackObservation(db *sql.DB, obs *TrackObservation) error {
	if db == nil || obs == nil {
		return nil
	}

	query := `
		INSERT INTO camera_track_obs (
			track_id, ts_unix_nanos,
			x, y, w, h, area, contrast,
			vx, vy, speed_pps, heading_deg, confidence
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id, ts_unix_nanos) DO NOTHING
	`

	_, err := db.Exec(query,
		obs.TrackID,
		obs.TSUnixNanos,
		obs.X, obs.Y,
		obs.W, obs.H, obs.Area, obs.Contrast,
		obs.VX, obs.VY, obs.SpeedPps, obs.HeadingDeg, obs.Confidence,
	)

	return err
}

// InsertDetection inserts a detection record and fills in det.ID.
func InsertDetection(db *sql.DB, det *Detection) error {
	if db == nil || det == nil {
		return nil
	}

	query := `
		INSERT INTO detections (
			track_id, ts_unix_nanos, x, y, confidence, area, contrast,
			correlated_hex, correlated_flight, correlated_alt_ft, image_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := db.Exec(query,
		det.TrackID,
		det.TSUnixNanos,
		det.X, det.Y,
		det.Confidence,
		det.Area,
		det.Contrast,
		nullString(det.CorrelatedHex),
		nullString(det.CorrelatedFlight),
		nullFloat64IfZero(det.CorrelatedAltFt, det.CorrelatedHex == ""),
		nullString(det.ImagePath),
	)
	if err != nil {
		return fmt.Errorf("insert detection: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("detection insert id: %w", err)
	}
	det.ID = id
	return nil
}

// CameraTrackRow is a persisted track summary as read back from the store.
type CameraTrackRow struct {
	TrackID          string  `json:"track_id"`
	State            string  `json:"state"`
	StartUnixNanos   int64   `json:"start_unix_nanos"`
	EndUnixNanos     int64   `json:"end_unix_nanos"`
	ObservationCount int     `json:"observation_count"`
	Hits             int     `json:"hits"`
	Misses           int     `json:"misses"`
	AvgSpeedPps      float64 `json:"avg_speed_pps"`
	PeakSpeedPps     float64 `json:"peak_speed_pps"`
	P50SpeedPps      float64 `json:"p50_speed_pps"`
	P85SpeedPps      float64 `json:"p85_speed_pps"`
	P95SpeedPps      float64 `json:"p95_speed_pps"`
	AreaAvg          float64 `json:"area_avg"`
	ContrastAvg      float64 `json:"contrast_avg"`
	Confidence       float64 `json:"confidence"`
	CorrelatedHex    string  `json:"correlated_hex,omitempty"`
	CorrelatedFlight string  `json:"correlated_flight,omitempty"`
	CorrelatedAltFt  float64 `json:"correlated_alt_ft,omitempty"`
}

// QueryCameraTracks retrieves persisted track summaries, newest first.
// state filters to one lifecycle state when non-empty.
func QueryCameraTracks(db *sql.DB, state string, start, end time.Time, limit int) ([]*CameraTrackRow, error) {
	if db == nil {
		return nil, nil
	}

	query := `
		SELECT
			track_id, state,
			start_unix_nanos, end_unix_nanos, observation_count, hits, misses,
			avg_speed_pps, peak_speed_pps,
			p50_speed_pps, p85_speed_pps, p95_speed_pps,
			area_avg, contrast_avg, confidence,
			correlated_hex, correlated_flight, correlated_alt_ft
		FROM camera_tracks
		WHERE start_unix_nanos >= ? AND start_unix_nanos <= ?
		AND (? = '' OR state = ?)
		ORDER BY start_unix_nanos DESC
		LIMIT ?
	`

	rows, err := db.Query(query, start.UnixNano(), end.UnixNano(), state, state, limit)
	if err != nil {
		return nil, fmt.Errorf("query camera tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*CameraTrackRow
	for rows.Next() {
		row := &CameraTrackRow{}
		var hex, flight sql.NullString
		var altFt sql.NullFloat64

		err := rows.Scan(
			&row.TrackID, &row.State,
			&row.StartUnixNanos, &row.EndUnixNanos, &row.ObservationCount, &row.Hits, &row.Misses,
			&row.AvgSpeedPps, &row.PeakSpeedPps,
			&row.P50SpeedPps, &row.P85SpeedPps, &row.P95SpeedPps,
			&row.AreaAvg, &row.ContrastAvg, &row.Confidence,
			&hex, &flight, &altFt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan camera track: %w", err)
		}

		if hex.Valid {
			row.CorrelatedHex = hex.String
		}
		if flight.Valid {
			row.CorrelatedFlight = flight.String
		}
		if altFt.Valid {
			row.CorrelatedAltFt = altFt.Float64
		}
		tracks = append(tracks, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate camera tracks: %w", err)
	}

	return tracks, nil
}

// QueryTrackObservations retrieves the per-frame rows for a track, oldest
// first so the result draws as a trajectory.
func QueryTrackObservations(db *sql.DB, trackID string, limit int) ([]*TrackObservation, error) {
	if db == nil {
		return nil, nil
	}

	query := `
		SELECT track_id, ts_unix_nanos,
			x, y, w, h, area, contrast,
			vx, vy, speed_pps, heading_deg, confidence
		FROM camera_track_obs
		WHERE track_id = ?
		ORDER BY ts_unix_nanos ASC
		LIMIT ?
	`

	rows, err := db.Query(query, trackID, limit)
	if err != nil {
		return nil, fmt.Errorf("query track observations: %w", err)
	}
	defer rows.Close()

	var observations []*TrackObservation
	for rows.Next() {
		obs := &TrackObservation{}
		err := rows.Scan(
			&obs.TrackID,
			&obs.TSUnixNanos,
			&obs.X, &obs.Y,
			&obs.W, &obs.H, &obs.Area, &obs.Contrast,
			&obs.VX, &obs.VY, &obs.SpeedPps, &obs.HeadingDeg, &obs.Confidence,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		observations = append(observations, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}

	return observations, nil
}

// QueryDetections retrieves detection records, newest first.
func QueryDetections(db *sql.DB, since time.Time, limit int) ([]*Detection, error) {
	if db == nil {
		return nil, nil
	}

	query := `
		SELECT id, track_id, ts_unix_nanos, x, y, confidence, area, contrast,
			correlated_hex, correlated_flight, correlated_alt_ft, image_path
		FROM detections
		WHERE ts_unix_nanos >= ?
		ORDER BY ts_unix_nanos DESC
		LIMIT ?
	`

	rows, err := db.Query(query, since.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var detections []*Detection
	for rows.Next() {
		det := &Detection{}
		var hex, flight, imagePath sql.NullString
		var altFt sql.NullFloat64

		err := rows.Scan(
			&det.ID, &det.TrackID, &det.TSUnixNanos,
			&det.X, &det.Y, &det.Confidence, &det.Area, &det.Contrast,
			&hex, &flight, &altFt, &imagePath,
		)
		if err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}

		if hex.Valid {
			det.CorrelatedHex = hex.String
		}
		if flight.Valid {
			det.CorrelatedFlight = flight.String
		}
		if altFt.Valid {
			det.CorrelatedAltFt = altFt.Float64
		}
		if imagePath.Valid {
			det.ImagePath = imagePath.String
		}
		detections = append(detections, det)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detections: %w", err)
	}

	return detections, nil
}

// GetDetection retrieves a single detection by id. Returns nil when no
// such row exists.
func GetDetection(db *sql.DB, id int64) (*Detection, error) {
	if db == nil {
		return nil, nil
	}

	query := `
		SELECT id, track_id, ts_unix_nanos, x, y, confidence, area, contrast,
			correlated_hex, correlated_flight, correlated_alt_ft, image_path
		FROM detections
		WHERE id = ?
	`

	det := &Detection{}
	var hex, flight, imagePath sql.NullString
	var altFt sql.NullFloat64

	err := db.QueryRow(query, id).Scan(
		&det.ID, &det.TrackID, &det.TSUnixNanos,
		&det.X, &det.Y, &det.Confidence, &det.Area, &det.Contrast,
		&hex, &flight, &altFt, &imagePath,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying detection %d: %w", id, err)
	}

	if hex.Valid {
		det.CorrelatedHex = hex.String
	}
	if flight.Valid {
		det.CorrelatedFlight = flight.String
	}
	if altFt.Valid {
		det.CorrelatedAltFt = altFt.Float64
	}
	if imagePath.Valid {
		det.ImagePath = imagePath.String
	}

	return det, nil
}

// ClearCameraTracks deletes all track, observation and detection rows.
// Backs the dev reset endpoint.
func ClearCameraTracks(db *sql.DB) error {
	if db == nil {
		return nil
	}

	// Observations and detections first (foreign keys)
	if _, err := db.Exec(`DELETE FROM camera_track_obs`); err != nil {
		return fmt.Errorf("delete track observations: %w", err)
	}
	if _, err := db.Exec(`DELETE FROM detections`); err != nil {
		return fmt.Errorf("delete detections: %w", err)
	}
	if _, err := db.Exec(`DELETE FROM camera_tracks`); err != nil {
		return fmt.Errorf("delete camera tracks: %w", err)
	}

	return nil
}

// PruneCameraData deletes rows whose timestamps fall before the cutoff.
// Returns the total number of rows removed.
func PruneCameraData(db *sql.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, nil
	}

	cutoffNanos := cutoff.UnixNano()
	var total int64

	res, err := db.Exec(`DELETE FROM camera_track_obs WHERE ts_unix_nanos < ?`, cutoffNanos)
	if err != nil {
		return total, fmt.Errorf("prune track observations: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = db.Exec(`DELETE FROM detections WHERE ts_unix_nanos < ?`, cutoffNanos)
	if err != nil {
		return total, fmt.Errorf("prune detections: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = db.Exec(`DELETE FROM camera_tracks WHERE end_unix_nanos < ?`, cutoffNanos)
	if err != nil {
		return total, fmt.Errorf("prune camera tracks: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	return total, nil
}

// Helper functions for nullable values

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullFloat64IfZero maps a float to NULL when the owning identity is absent,
// so uncorrelated tracks do not store spurious zero altitudes.
func nullFloat64IfZero(f float64, absent bool) interface{} {
	if absent {
		return nil
	}
	return f
}
