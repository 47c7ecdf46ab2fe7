// Package journal keeps an optional SQLite record of every request a worker
// handled: what kind it was, which function or names it touched, the digest
// of any script it loaded, and how it ended.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one handled request.
type Entry struct {
	ID           string        `json:"id"`
	Kind         string        `json:"kind"`
	Func         string        `json:"func,omitempty"`
	Names        []string      `json:"names,omitempty"`
	ScriptDigest string        `json:"script_digest,omitempty"`
	Error        string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}

// Failed reports whether the request ended with an error.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// Journal writes entries to the request_log table.
type Journal struct {
	db *sql.DB
}

// Open opens (and creates if needed) the journal database at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

// New wraps an already bootstrapped database.
func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Record appends one entry.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO request_log(id, kind, func, names, script_digest, error, started_at, duration_ms)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, e.ID, e.Kind, e.Func, strings.Join(e.Names, ","), e.ScriptDigest, errText,
		e.StartedAt.UTC().Format(timeLayout), e.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert request_log: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT id, kind, func, names, script_digest, error, started_at, duration_ms
FROM request_log
ORDER BY started_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query request_log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			names      string
			errText    sql.NullString
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Func, &names, &e.ScriptDigest, &errText, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scan request_log: %w", err)
		}
		if names != "" {
			e.Names = strings.Split(names, ",")
		}
		e.Error = errText.String
		e.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at for %s: %w", e.ID, err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
