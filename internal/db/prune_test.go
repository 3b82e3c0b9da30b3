package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return count
}

// TestPruneOnceRemovesExpiredRows verifies retention deletes by timestamp
func TestPruneOnceRemovesExpiredRows(t *testing.T) {
	db := openTestDB(t)

	oldNanos := time.Now().AddDate(0, 0, -10).UnixNano()
	newNanos := time.Now().UnixNano()

	exec := func(query string, args ...interface{}) {
		t.Helper()
		if _, err := db.Exec(query, args...); err != nil {
			t.Fatalf("Failed to exec %q: %v", query, err)
		}
	}

	exec("INSERT INTO camera_tracks (track_id, state, start_unix_nanos, end_unix_nanos) VALUES ('trk_old', 'retired', ?, ?)", oldNanos, oldNanos)
	exec("INSERT INTO camera_tracks (track_id, state, start_unix_nanos, end_unix_nanos) VALUES ('trk_new', 'retired', ?, ?)", newNanos, newNanos)
	// A live track has no end timestamp and must never be pruned.
	exec("INSERT INTO camera_tracks (track_id, state, start_unix_nanos) VALUES ('trk_live', 'confirmed', ?)", oldNanos)
	exec("INSERT INTO camera_track_obs (track_id, ts_unix_nanos, x, y) VALUES ('trk_old', ?, 1, 1)", oldNanos)
	exec("INSERT INTO camera_track_obs (track_id, ts_unix_nanos, x, y) VALUES ('trk_new', ?, 2, 2)", newNanos)
	exec("INSERT INTO detections (track_id, ts_unix_nanos, x, y, confidence) VALUES ('trk_old', ?, 1, 1, 0.5)", oldNanos)
	exec("INSERT INTO detections (track_id, ts_unix_nanos, x, y, confidence) VALUES ('trk_new', ?, 2, 2, 0.5)", newNanos)

	db.pruneOnce(7, "")

	if got := countRows(t, db, "camera_tracks"); got != 2 {
		t.Errorf("Expected 2 camera_tracks after prune (new + live), got %d", got)
	}
	if got := countRows(t, db, "camera_track_obs"); got != 1 {
		t.Errorf("Expected 1 observation after prune, got %d", got)
	}
	if got := countRows(t, db, "detections"); got != 1 {
		t.Errorf("Expected 1 detection after prune, got %d", got)
	}

	var remaining string
	if err := db.QueryRow("SELECT track_id FROM camera_track_obs").Scan(&remaining); err != nil {
		t.Fatalf("Failed to read remaining observation: %v", err)
	}
	if remaining != "trk_new" {
		t.Errorf("Expected trk_new observation to survive, got %s", remaining)
	}
}

// TestPruneDetectionImages verifies only expired crops are removed
func TestPruneDetectionImages(t *testing.T) {
	dir := t.TempDir()
	oldTime := time.Now().AddDate(0, 0, -10)

	writeFile := func(name string, old bool) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		if old {
			if err := os.Chtimes(path, oldTime, oldTime); err != nil {
				t.Fatalf("Failed to age %s: %v", name, err)
			}
		}
		return path
	}

	oldImage := writeFile("aircraft_1000_trk_a.jpg", true)
	newImage := writeFile("aircraft_2000_trk_b.jpg", false)
	unrelated := writeFile("notes.txt", true)

	removed, err := pruneDetectionImages(dir, time.Now().AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("pruneDetectionImages failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 image removed, got %d", removed)
	}

	if _, err := os.Stat(oldImage); !os.IsNotExist(err) {
		t.Error("Expected expired image to be removed")
	}
	if _, err := os.Stat(newImage); err != nil {
		t.Errorf("Expected recent image to survive: %v", err)
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Errorf("Expected unrelated file to survive: %v", err)
	}
}

// TestPruneDetectionImagesMissingDir verifies a missing directory is a no-op
func TestPruneDetectionImagesMissingDir(t *testing.T) {
	removed, err := pruneDetectionImages(filepath.Join(t.TempDir(), "absent"), time.Now())
	if err != nil {
		t.Fatalf("Expected no error for missing directory, got %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected 0 removed, got %d", removed)
	}

	removed, err = pruneDetectionImages("", time.Now())
	if err != nil || removed != 0 {
		t.Errorf("Expected empty dir to be a no-op, got %d, %v", removed, err)
	}
}

// TestRunRetentionLoopStopsOnCancel verifies the loop honours its context
func TestRunRetentionLoopStopsOnCancel(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		db.RunRetentionLoop(ctx, 7, "")
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunRetentionLoop did not stop after context cancellation")
	}
}

// TestRunRetentionLoopDisabled verifies zero retention returns immediately
func TestRunRetentionLoopDisabled(t *testing.T) {
	db := openTestDB(t)

	done := make(chan struct{})
	go func() {
		db.RunRetentionLoop(context.Background(), 0, "")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunRetentionLoop with retention disabled should return immediately")
	}
}
