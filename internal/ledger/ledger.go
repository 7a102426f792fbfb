// Package ledger records conversions in SQLite so that unchanged chapters
// can be skipped on the next run.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/FocuswithJustin/qmdptx/core/cas"
	"github.com/FocuswithJustin/qmdptx/core/errors"
	"github.com/FocuswithJustin/qmdptx/core/sqlite"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS conversions (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		doc_id        TEXT    NOT NULL,
		run_id        TEXT    NOT NULL,
		source        TEXT    NOT NULL,
		output        TEXT    NOT NULL,
		build_key     TEXT    NOT NULL,
		output_sha256 TEXT    NOT NULL,
		bytes         INTEGER NOT NULL,
		converted_at  TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS conversions_doc ON conversions (doc_id, id)`,
}

// Entry is one recorded conversion.
type Entry struct {
	DocID        string
	RunID        string
	Source       string
	Output       string
	BuildKey     string
	OutputSHA256 string
	Bytes        int
	ConvertedAt  time.Time
}

// Current reports whether the entry still describes the output on disk
// for a conversion with build key key.
func (e *Entry) Current(key string) bool {
	if e == nil || e.BuildKey != key {
		return false
	}
	data, err := os.ReadFile(e.Output)
	if err != nil {
		return false
	}
	return cas.Hash(data) == e.OutputSHA256
}

// Ledger is a conversion history database.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewIO("create directory", filepath.Dir(path), err)
	}
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	// One connection serialises writers from the worker pool.
	db.SetMaxOpenConns(1)

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating ledger %s: %w", path, err)
		}
	}
	return &Ledger{db: db, path: path}, nil
}

// OpenReadOnly opens an existing ledger for reading.
func OpenReadOnly(path string) (*Ledger, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.NotFoundError{Resource: "ledger", ID: path, Err: err}
		}
		return nil, errors.NewIO("read", path, err)
	}
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	return &Ledger{db: db, path: path}, nil
}

// Path returns the database file.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends a conversion. A zero ConvertedAt is set to now.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.ConvertedAt.IsZero() {
		e.ConvertedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO conversions (doc_id, run_id, source, output, build_key, output_sha256, bytes, converted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.DocID, e.RunID, e.Source, e.Output, e.BuildKey, e.OutputSHA256, e.Bytes,
		e.ConvertedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", e.DocID, err)
	}
	return nil
}

// Latest returns the most recent entry for docID, or nil if there is none.
func (l *Ledger) Latest(ctx context.Context, docID string) (*Entry, error) {
	entries, err := l.query(ctx,
		`SELECT doc_id, run_id, source, output, build_key, output_sha256, bytes, converted_at
		 FROM conversions WHERE doc_id = ? ORDER BY id DESC LIMIT 1`, docID)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// History returns up to limit entries, newest first. An empty docID
// returns entries for every chapter; limit <= 0 means no limit.
func (l *Ledger) History(ctx context.Context, docID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	return l.query(ctx,
		`SELECT doc_id, run_id, source, output, build_key, output_sha256, bytes, converted_at
		 FROM conversions WHERE (? = '' OR doc_id = ?) ORDER BY id DESC LIMIT ?`,
		docID, docID, limit)
}

func (l *Ledger) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.DocID, &e.RunID, &e.Source, &e.Output, &e.BuildKey, &e.OutputSHA256, &e.Bytes, &at); err != nil {
			return nil, fmt.Errorf("reading ledger row: %w", err)
		}
		if e.ConvertedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, &errors.ParseError{Format: "ledger timestamp", Path: l.path, Message: err.Error(), Err: err}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
