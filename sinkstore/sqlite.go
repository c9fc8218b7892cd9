package sinkstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Schema for the sink_records table.
const Schema = `
CREATE TABLE IF NOT EXISTS sink_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	dedup_key TEXT NOT NULL UNIQUE,
	sink_name TEXT NOT NULL,
	tag TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL,
	captured_data TEXT NOT NULL DEFAULT '',
	canary TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sink_records_canary ON sink_records(canary) WHERE canary != '';
`

// SQLiteStore is a Store backed by a SQLite database. Discovery order is
// insertion order (rowid).
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a sink store at path with WAL-mode pragmas
// and bootstraps the schema. Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sinkstore: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sinkstore: open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sinkstore: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sinkstore: schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Put upserts a record by dedup key. The rowid of the first ingestion is
// kept, so re-capturing a known sink does not change discovery order.
func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sink_records (dedup_key, sink_name, tag, url, captured_data, canary, timestamp)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(dedup_key) DO UPDATE SET
			sink_name = excluded.sink_name,
			tag = excluded.tag,
			url = excluded.url,
			captured_data = excluded.captured_data,
			canary = excluded.canary,
			timestamp = excluded.timestamp`,
		rec.DedupKey, rec.SinkName, rec.Tag, rec.URL,
		string(rec.CapturedData), rec.Canary, rec.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("sinkstore: put %s: %w", rec.DedupKey, err)
	}
	return nil
}

// Get returns the record for a dedup key.
func (s *SQLiteStore) Get(ctx context.Context, dedupKey string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT dedup_key, sink_name, tag, url, captured_data, canary, timestamp
		FROM sink_records WHERE dedup_key = ?`, dedupKey)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("sinkstore: get %s: %w", dedupKey, err)
	}
	return rec, true, nil
}

// QueryCanary returns matches in rowid order, truncated to max.
func (s *SQLiteStore) QueryCanary(ctx context.Context, canary string, max int) ([]Record, error) {
	if canary == "" {
		return []Record{}, nil
	}

	q := `
		SELECT dedup_key, sink_name, tag, url, captured_data, canary, timestamp
		FROM sink_records
		WHERE canary = ? OR instr(captured_data, ?) > 0
		ORDER BY id`
	args := []any{canary, canary}
	if max > 0 {
		q += ` LIMIT ?`
		args = append(args, max)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sinkstore: query canary: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sinkstore: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountCanary counts all matches regardless of limit.
func (s *SQLiteStore) CountCanary(ctx context.Context, canary string) (int, error) {
	if canary == "" {
		return 0, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sink_records
		WHERE canary = ? OR instr(captured_data, ?) > 0`, canary, canary).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sinkstore: count canary: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var data string
	var ts int64
	if err := row.Scan(&rec.DedupKey, &rec.SinkName, &rec.Tag, &rec.URL, &data, &rec.Canary, &ts); err != nil {
		return Record{}, err
	}
	if data != "" {
		rec.CapturedData = json.RawMessage(data)
	}
	rec.Timestamp = time.UnixMilli(ts)
	return rec, nil
}
