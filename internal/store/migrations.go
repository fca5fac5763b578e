package store

import (
	"database/sql"
	"fmt"
	"time"

	"heroshell/internal/logging"
)

// Schema versions:
// v1: snapshots table (id, saved_at, client, size, content)
// v2: elements column and saved_at index
const CurrentSchemaVersion = 2

// MigrationResult holds the result of a migration run.
type MigrationResult struct {
	FromVersion   int
	ToVersion     int
	MigrationsRun int
	Duration      time.Duration
}

// migration upgrades the schema from version-1 to version.
type migration struct {
	version     int
	description string
	apply       func(db *sql.DB) error
}

var migrations = []migration{
	{1, "snapshots table", migrateV0ToV1},
	{2, "element count column", migrateV1ToV2},
}

// RunMigrations brings the archive schema up to CurrentSchemaVersion.
func RunMigrations(db *sql.DB) (*MigrationResult, error) {
	start := time.Now()
	from := GetSchemaVersion(db)
	result := &MigrationResult{FromVersion: from, ToVersion: from}

	for _, m := range migrations {
		if m.version <= from {
			continue
		}
		logging.Store("Migrating archive schema to v%d (%s)", m.version, m.description)
		if err := m.apply(db); err != nil {
			return result, fmt.Errorf("migration to v%d failed: %w", m.version, err)
		}
		if err := SetSchemaVersion(db, m.version, m.description); err != nil {
			return result, err
		}
		result.ToVersion = m.version
		result.MigrationsRun++
	}

	result.Duration = time.Since(start)
	if result.MigrationsRun > 0 {
		logging.Store("Archive schema migrated v%d -> v%d in %s", result.FromVersion, result.ToVersion, result.Duration)
	}
	return result, nil
}

func migrateV0ToV1(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		saved_at INTEGER NOT NULL,
		client TEXT NOT NULL,
		size INTEGER NOT NULL,
		content TEXT NOT NULL
	)`)
	return err
}

func migrateV1ToV2(db *sql.DB) error {
	if !columnExists(db, "snapshots", "elements") {
		if _, err := db.Exec(`ALTER TABLE snapshots ADD COLUMN elements INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_snapshots_saved_at ON snapshots(saved_at)`)
	return err
}

// columnExists checks if a column exists in a table using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var count int
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		logging.StoreDebug("Table existence check failed for %s: %v", table, err)
		return false
	}
	return count > 0
}

// GetSchemaVersion returns the schema version of the archive. Databases
// written before versioning are inferred from their table structure.
func GetSchemaVersion(db *sql.DB) int {
	if tableExists(db, "schema_versions") {
		var version int
		if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version); err == nil && version > 0 {
			return version
		}
	}
	return inferSchemaVersion(db)
}

func inferSchemaVersion(db *sql.DB) int {
	if !tableExists(db, "snapshots") {
		return 0
	}
	if columnExists(db, "snapshots", "elements") {
		return 2
	}
	return 1
}

// SetSchemaVersion records a new schema version.
func SetSchemaVersion(db *sql.DB, version int, description string) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL,
			applied_at INTEGER NOT NULL,
			description TEXT
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_versions table: %w", err)
	}
	_, err = db.Exec(
		"INSERT INTO schema_versions (version, applied_at, description) VALUES (?, ?, ?)",
		version, time.Now().UnixNano(), description,
	)
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
