package db

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand drives the 'migrate' subcommand. It opens the database
// without the automatic schema upgrade, since the point of the subcommand is
// to control the schema by hand.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		printMigrateHelp()
		os.Exit(1)
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		log.Fatalf("Failed to load migrations: %v", err)
	}

	database, err := OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", dbPath, err)
	}
	defer database.Close()

	if err := runMigrateAction(database, migrationsFS, args); err != nil {
		log.Fatalf("migrate %s: %v", args[0], err)
	}
}

func runMigrateAction(database *DB, fsys fs.FS, args []string) error {
	switch action := args[0]; action {
	case "up":
		return migrateUpCmd(database, fsys)

	case "down":
		return migrateDownCmd(database, fsys)

	case "status":
		return migrateStatusCmd(database, fsys)

	case "version":
		target, err := versionArg(args, action)
		if err != nil {
			return err
		}
		if target < 0 {
			return fmt.Errorf("invalid version %q", args[1])
		}
		log.Printf("Migrating to version %d", target)
		if err := database.MigrateTo(fsys, uint(target)); err != nil {
			return err
		}
		log.Printf("Schema now at version %d", target)
		return nil

	case "force":
		target, err := versionArg(args, action)
		if err != nil {
			return err
		}
		return migrateForceCmd(database, fsys, target)

	case "help":
		printMigrateHelp()
		return nil

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", action)
		printMigrateHelp()
		os.Exit(1)
		return nil
	}
}

// versionArg parses the numeric argument the version and force actions take.
func versionArg(args []string, action string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: overflight-report migrate %s <version>", action)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("invalid version %q", args[1])
	}
	return n, nil
}

func migrateUpCmd(database *DB, fsys fs.FS) error {
	log.Printf("Applying pending migrations")
	if err := database.MigrateUp(fsys); err != nil {
		return err
	}
	version, dirty, _ := database.MigrateVersion(fsys)
	log.Printf("Schema up to date at version %d (dirty: %v)", version, dirty)
	return nil
}

func migrateDownCmd(database *DB, fsys fs.FS) error {
	log.Printf("Rolling back one migration")
	if err := database.MigrateDown(fsys); err != nil {
		return err
	}
	version, dirty, _ := database.MigrateVersion(fsys)
	log.Printf("Schema now at version %d (dirty: %v)", version, dirty)
	return nil
}

func migrateStatusCmd(database *DB, fsys fs.FS) error {
	st, err := database.GetMigrationStatus(fsys)
	if err != nil {
		return err
	}
	latest, err := GetLatestMigrationVersion(fsys)
	if err != nil {
		return err
	}

	fmt.Printf("Schema version: %d of %d\n", st.Version, latest)
	fmt.Printf("Dirty:          %v\n", st.Dirty)
	fmt.Printf("Version table:  %v\n", st.HasVersionTable)

	switch {
	case st.Dirty:
		fmt.Println("\nA migration stopped partway through. Inspect the database,")
		fmt.Println("repair what it left behind, then stamp the version with:")
		fmt.Println("  overflight-report migrate force <version>")
	case st.Version < latest:
		fmt.Printf("\n%d migration(s) pending. Apply them with:\n", latest-st.Version)
		fmt.Println("  overflight-report migrate up")
	default:
		fmt.Println("\nSchema is up to date.")
	}
	return nil
}

// migrateForceCmd stamps the version after an explicit confirmation. A wrong
// stamp silently desynchronizes schema and code.
func migrateForceCmd(database *DB, fsys fs.FS, version int) error {
	fmt.Printf("Forcing schema version to %d without running any migrations.\n", version)
	fmt.Print("Only do this to recover from a dirty state. Continue? [y/N]: ")

	var answer string
	fmt.Scanln(&answer)
	if answer != "y" && answer != "Y" {
		log.Println("Aborted")
		os.Exit(0)
	}

	if err := database.MigrateForce(fsys, version); err != nil {
		return err
	}
	log.Printf("Schema version forced to %d", version)
	return nil
}

func printMigrateHelp() {
	fmt.Println("Manage the sqlite schema.")
	fmt.Println()
	fmt.Println("Usage: overflight-report migrate <action> [--db-path <path>] [--dev]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  up           apply every pending migration")
	fmt.Println("  down         roll back the most recent migration")
	fmt.Println("  status       show applied vs available schema versions")
	fmt.Println("  version <N>  migrate up or down to version N")
	fmt.Println("  force <N>    stamp version N without running migrations")
	fmt.Println("  help         show this message")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --db-path <path>  database file (default: skywatch_data.db)")
	fmt.Println("  --dev             read migrations from disk instead of the embedded copy")
}
