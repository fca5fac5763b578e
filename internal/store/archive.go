package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"heroshell/internal/logging"
)

// Archive drivers. "sqlite" is pure Go; "sqlite3" needs cgo.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// Snapshot is one archived save_dump payload.
type Snapshot struct {
	ID       string
	SavedAt  time.Time
	Client   string
	Size     int
	Elements int // humanBeing elements in Content
	Content  string
}

// Archive records every dump accepted by the server.
type Archive struct {
	db     *sql.DB
	dbPath string
	driver string
}

// OpenArchive creates or opens the archive database at path.
func OpenArchive(driver, path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var dsn string
	switch driver {
	case DriverModernc:
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	case DriverMattn:
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	default:
		return nil, fmt.Errorf("unknown archive driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	a := &Archive{db: db, dbPath: path, driver: driver}
	if _, err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Store("Archive opened at %s (driver %s)", path, driver)
	return a, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.dbPath
}

// Record archives content sent by client holding elements elements.
func (a *Archive) Record(ctx context.Context, client string, content []byte, elements int) (Snapshot, error) {
	snap := Snapshot{
		ID:       uuid.NewString(),
		SavedAt:  time.Now().UTC(),
		Client:   client,
		Size:     len(content),
		Elements: elements,
		Content:  string(content),
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, saved_at, client, size, elements, content) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.SavedAt.UnixNano(), snap.Client, snap.Size, snap.Elements, snap.Content)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to record snapshot: %w", err)
	}
	logging.StoreDebug("Archived snapshot %s (%d bytes from %s)", snap.ID, snap.Size, client)
	return snap, nil
}

// Recent returns up to limit snapshots, newest first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, saved_at, client, size, elements, content FROM snapshots ORDER BY saved_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var savedAt int64
		if err := rows.Scan(&s.ID, &savedAt, &s.Client, &s.Size, &s.Elements, &s.Content); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.SavedAt = time.Unix(0, savedAt).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns the number of archived snapshots.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n)
	return n, err
}
