package db

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skylark-data/overflight.report/internal/vision"
)

// pruneInterval is how often the retention loop re-checks for expired data.
const pruneInterval = 6 * time.Hour

// RunRetentionLoop deletes camera rows and saved detection images older than
// retentionDays, once at startup and then periodically. Blocks until ctx is
// cancelled. A retentionDays of zero or less disables pruning entirely.
func (db *DB) RunRetentionLoop(ctx context.Context, retentionDays int, imageDir string) {
	if retentionDays <= 0 {
		log.Printf("[db] retention pruning disabled")
		return
	}

	db.pruneOnce(retentionDays, imageDir)

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.pruneOnce(retentionDays, imageDir)
		}
	}
}

func (db *DB) pruneOnce(retentionDays int, imageDir string) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	rows, err := vision.PruneCameraData(db.DB, cutoff)
	if err != nil {
		log.Printf("[db] prune failed: %v", err)
	} else if rows > 0 {
		log.Printf("[db] pruned %d rows older than %s", rows, cutoff.Format(time.RFC3339))
	}

	removed, err := pruneDetectionImages(imageDir, cutoff)
	if err != nil {
		log.Printf("[db] image prune failed: %v", err)
	} else if removed > 0 {
		log.Printf("[db] removed %d expired detection images", removed)
	}
}

// pruneDetectionImages removes detection crops older than the cutoff. Only
// files matching the saver's aircraft_ prefix are touched; anything else in
// the directory is left alone.
func pruneDetectionImages(dir string, cutoff time.Time) (int, error) {
	if dir == "" {
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "aircraft_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				log.Printf("[db] failed to remove %s: %v", entry.Name(), err)
				continue
			}
			removed++
		}
	}

	return removed, nil
}
