// Package storage ships its schema as embedded SQL migration files.
//
// Migration files live under migrations/<driver>/ and must match
// NNNN_name.up.sql or NNNN_name.down.sql. Versions are four-digit
// integers applied in order inside a transaction each, with the current
// version tracked in the schema_version table.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"embed"
)

//go:embed migrations/**/*.sql
var migrationsFS embed.FS

var reMigrationFilename = regexp.MustCompile(`^(?P<Version>\d{4})\_(?P<Name>[^.]+)\.(?P<Direction>(up|down))\.sql$`)

var errUnsupportedDriver = errors.New("unsupported migration driver")

// SchemaMigration represents a single database migration file.
type SchemaMigration struct {
	Version int
	Name    string
	Up      bool
	SQL     string
}

func migrationsDir(driver string) (string, error) {
	switch driver {
	case "sqlite3":
		return "migrations/sqlite3", nil
	default:
		return "", fmt.Errorf("%w: %s", errUnsupportedDriver, driver)
	}
}

// loadMigrations returns all "up" migrations for the driver with a version
// greater than prior, sorted ascending.
func loadMigrations(driver string, prior int) ([]SchemaMigration, error) {
	dirPath, err := migrationsDir(driver)
	if err != nil {
		return nil, err
	}

	entries, err := migrationsFS.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var migrations []SchemaMigration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		migration, err := parseMigrationFile(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			return nil, err
		}

		if !migration.Up || migration.Version <= prior {
			continue
		}

		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// parseMigrationFile parses a migration filename and reads its content.
// Expected format: NNNN_description.up.sql or NNNN_description.down.sql
func parseMigrationFile(path string) (SchemaMigration, error) {
	filename := filepath.Base(path)
	parts := reMigrationFilename.FindStringSubmatch(filename)
	if parts == nil {
		return SchemaMigration{}, fmt.Errorf("invalid migration filename: %s", filename)
	}

	sqlText, err := migrationsFS.ReadFile(path)
	if err != nil {
		return SchemaMigration{}, fmt.Errorf("failed to read migration file: %w", err)
	}

	version, _ := strconv.Atoi(parts[reMigrationFilename.SubexpIndex("Version")])
	return SchemaMigration{
		Version: version,
		Name:    parts[reMigrationFilename.SubexpIndex("Name")],
		Up:      parts[reMigrationFilename.SubexpIndex("Direction")] == "up",
		SQL:     string(sqlText),
	}, nil
}

// runMigrations brings the schema up to the latest embedded version.
func (p *SQLProvider) runMigrations(driver string) error {
	if _, err := p.db.Exec(
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current, err := p.schemaVersion()
	if err != nil {
		return err
	}

	migrations, err := loadMigrations(driver, current)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		tx, err := p.db.Beginx()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %04d_%s failed: %w", migration.Version, migration.Name, err)
		}
		if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, migration.Version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		p.logger.Info("Applied migration", "version", migration.Version, "name", migration.Name)
	}

	return nil
}

func (p *SQLProvider) schemaVersion() (int, error) {
	var version int
	err := p.db.Get(&version, `SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
