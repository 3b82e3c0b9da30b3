// Package db owns the sqlite lifecycle for the camera daemon: opening the
// database with the right pragmas, schema migrations, retention pruning and
// the admin debug surface. Row-level operations on camera data live in
// internal/vision (track_store.go); this package hands out the connection
// they run against.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB

	// Path is the on-disk location of the database file.
	Path string
}

// OpenDB opens the sqlite database at path and applies connection pragmas.
// The schema is not touched; callers run migrations explicitly.
func OpenDB(path string) (*DB, error) {
	// _pragma params are applied by the driver on every new pool
	// connection, so per-connection settings like busy_timeout hold
	// across the whole pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=temp_store(MEMORY)&_pragma=foreign_keys(ON)",
		path,
	)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database %s: %w", path, err)
	}

	return &DB{DB: sqlDB, Path: path}, nil
}

// NewDB opens the database and applies all pending migrations from the
// embedded migration files. This is the normal entry point for the daemon.
func NewDB(path string) (*DB, error) {
	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	if err := database.MigrateUp(migrationsFS); err != nil {
		database.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return database, nil
}

// TableStats describes one table in the stats report.
type TableStats struct {
	Name     string  `json:"name"`
	RowCount int64   `json:"row_count"`
	SizeMB   float64 `json:"size_mb"`
}

// DatabaseStats summarises on-disk size and per-table row counts.
type DatabaseStats struct {
	Path        string       `json:"path"`
	TotalSizeMB float64      `json:"total_size_mb"`
	Tables      []TableStats `json:"tables"`
}

// GetDatabaseStats reports total database size and per-table row counts.
// Per-table sizes come from the dbstat virtual table and are left at zero
// when the driver was built without it.
func (db *DB) GetDatabaseStats() (*DatabaseStats, error) {
	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("page_count: %w", err)
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("page_size: %w", err)
	}

	stats := &DatabaseStats{
		Path:        db.Path,
		TotalSizeMB: float64(pageCount*pageSize) / (1024 * 1024),
	}

	rows, err := db.Query(`
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, name := range names {
		ts := TableStats{Name: name}
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q", name)).Scan(&ts.RowCount); err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}

		// Best effort; dbstat is an optional sqlite extension.
		var tableBytes sql.NullInt64
		if err := db.QueryRow("SELECT SUM(pgsize) FROM dbstat WHERE name = ?", name).Scan(&tableBytes); err == nil && tableBytes.Valid {
			ts.SizeMB = float64(tableBytes.Int64) / (1024 * 1024)
		}

		stats.Tables = append(stats.Tables, ts)
	}

	return stats, nil
}
