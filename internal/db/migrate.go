package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Schema migrations ship embedded in the binary (see getMigrationsFS) and
// run through golang-migrate's iofs source. All helpers below take the
// filesystem explicitly so tests can swap in their own migration sets.

// MigrateUp applies every pending migration. A database already at the
// latest version is not an error.
func (db *DB) MigrateUp(migrationsFS fs.FS) error {
	return db.withMigrate(migrationsFS, "applying migrations", func(m *migrate.Migrate) error {
		return m.Up()
	})
}

// MigrateDown rolls back the most recent migration.
func (db *DB) MigrateDown(migrationsFS fs.FS) error {
	return db.withMigrate(migrationsFS, "rolling back migration", func(m *migrate.Migrate) error {
		return m.Steps(-1)
	})
}

// MigrateTo walks the schema up or down to the given version.
func (db *DB) MigrateTo(migrationsFS fs.FS, version uint) error {
	return db.withMigrate(migrationsFS, fmt.Sprintf("migrating to version %d", version), func(m *migrate.Migrate) error {
		return m.Migrate(version)
	})
}

// MigrateForce stamps the schema version without running anything. Recovery
// tool for a dirty state left by an interrupted migration.
func (db *DB) MigrateForce(migrationsFS fs.FS, version int) error {
	return db.withMigrate(migrationsFS, fmt.Sprintf("forcing version %d", version), func(m *migrate.Migrate) error {
		return m.Force(version)
	})
}

// MigrateVersion reports the schema version and dirty flag, with 0/clean for
// a database that has never been migrated.
func (db *DB) MigrateVersion(migrationsFS fs.FS) (version uint, dirty bool, err error) {
	m, err := db.newMigrate(migrationsFS)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// withMigrate builds a migrate instance, runs op against it, and normalizes
// the no-op case. The instance is deliberately never closed: closing it would
// tear down the shared sql.DB handle.
func (db *DB) withMigrate(migrationsFS fs.FS, what string, op func(*migrate.Migrate) error) error {
	m, err := db.newMigrate(migrationsFS)
	if err != nil {
		return err
	}
	if err := op(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func (db *DB) newMigrate(migrationsFS fs.FS) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrationLogger{}
	return m, nil
}

// migrationLogger routes golang-migrate's progress lines through the
// standard logger at a recognizable prefix.
type migrationLogger struct{}

func (migrationLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (migrationLogger) Verbose() bool { return false }

// MigrationStatus summarizes where the schema stands.
type MigrationStatus struct {
	Version         uint
	Dirty           bool
	HasVersionTable bool
}

// GetMigrationStatus reports the applied version, the dirty flag, and whether
// the schema_migrations bookkeeping table exists at all.
func (db *DB) GetMigrationStatus(migrationsFS fs.FS) (*MigrationStatus, error) {
	version, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration version: %w", err)
	}

	st := &MigrationStatus{Version: version, Dirty: dirty}
	err = db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_migrations'
	`).Scan(&st.HasVersionTable)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check schema_migrations table: %w", err)
	}
	return st, nil
}

// GetLatestMigrationVersion scans the migration files for the highest
// version. Filenames follow golang-migrate's 000001_name.up.sql layout.
func GetLatestMigrationVersion(migrationsFS fs.FS) (uint, error) {
	entries, err := fs.Glob(migrationsFS, "*.up.sql")
	if err != nil {
		return 0, fmt.Errorf("failed to list migration files: %w", err)
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("no migration files found")
	}

	var latest uint64
	for _, entry := range entries {
		prefix, _, ok := strings.Cut(entry, "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			continue
		}
		if v > latest {
			latest = v
		}
	}
	if latest == 0 {
		return 0, fmt.Errorf("could not determine latest migration version")
	}
	return uint(latest), nil
}
