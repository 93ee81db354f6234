// Package sqlite provides a SQLite-backed implementation of storage.Archive.
//
// WHY SQLite AS WELL AS THE JSON FILE?
// ────────────────────────────────────
// The JSON archive rewrites the whole file on every append, which is fine
// for a small site but grows linearly. SQLite is still a single file with no
// server process, yet an append is one INSERT. Select it with
// storage.driver: sqlite.
//
// SQLite serializes writers itself. A busy database surfaces as a
// LockTimeout once the driver's busy timeout (the same wait budget the JSON
// archive uses) has elapsed.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aanand-mishra/contact-form/internal/storage"
	"github.com/aanand-mishra/contact-form/internal/types"

	// Named import rather than blank: besides registering the "sqlite3"
	// driver we need its Error type and ErrBusy/ErrLocked codes.
	sqlite3 "github.com/mattn/go-sqlite3"
)

// SQLite is a storage.Archive over a submissions table.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Archive = (*SQLite)(nil)

// New opens the database at path, creating the file and the submissions
// table if needed. busyTimeout bounds how long a write waits for a lock.
func New(path string, busyTimeout time.Duration) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite.New: create dir: %w", err)
		}
	}

	// DSN parameters understood by mattn/go-sqlite3:
	//   _busy_timeout: ms to wait on a locked database before SQLITE_BUSY
	//   _journal_mode: WAL lets readers proceed while a write is in flight
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// CREATE TABLE IF NOT EXISTS is idempotent, safe to run on every start.
	//
	// Schema:
	//   id        : insertion order; ReadAll sorts on it
	//   privacy   : 0/1, SQLite has no BOOLEAN type
	//   created_at: RFC 3339 text with nanoseconds, UTC
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS submissions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT    NOT NULL,
			email      TEXT    NOT NULL,
			subject    TEXT    NOT NULL,
			message    TEXT    NOT NULL,
			privacy    INTEGER NOT NULL,
			terms      INTEGER NOT NULL,
			created_at TEXT    NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Append inserts one row.
//
// The ? placeholders keep submitted text out of the SQL itself; the driver
// sends values separately, so a message containing "'); DROP TABLE" is just
// text.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) Append(ctx context.Context, rec types.Record) error {
	_, err := s.Db.ExecContext(ctx,
		`INSERT INTO submissions (name, email, subject, message, privacy, terms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Name, rec.Email, rec.Subject, rec.Message, rec.Privacy, rec.Terms,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return classify("append", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ReadAll returns every row in insertion order.
//
// records starts as an empty slice, not nil, so an untouched archive encodes
// as [] rather than null.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) ReadAll(ctx context.Context) ([]types.Record, error) {
	rows, err := s.Db.QueryContext(ctx,
		`SELECT name, email, subject, message, privacy, terms, created_at
		 FROM submissions ORDER BY id`,
	)
	if err != nil {
		return nil, classify("read", err)
	}
	defer rows.Close()

	records := make([]types.Record, 0)
	for rows.Next() {
		var (
			rec       types.Record
			createdAt string
		)
		if err := rows.Scan(&rec.Name, &rec.Email, &rec.Subject, &rec.Message,
			&rec.Privacy, &rec.Terms, &createdAt); err != nil {
			return nil, classify("read", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, storage.IOError("read", fmt.Errorf("parse created_at %q: %w", createdAt, err))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("read", err)
	}

	return records, nil
}

// Close closes the connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

// classify maps driver errors onto the storage taxonomy.
func classify(op string, err error) *storage.Error {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return storage.LockError(op, err)
	}
	return storage.IOError(op, err)
}
