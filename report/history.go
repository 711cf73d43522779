package report

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// History archives run results in a SQLite database.
type History struct {
	db *sql.DB
}

// RunRecord is one archived run as listed by Recent.
type RunRecord struct {
	RunID        string
	StartedAt    time.Time
	Duration     time.Duration
	Status       Status
	Verified     int
	Unverified   int
	SendFailures int
	Error        string
}

// OpenHistory creates or opens the archive at path.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return &History{db: db}, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

// Record stores r. Recording the same run id twice replaces the first record.
func (h *History) Record(ctx context.Context, r *Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			run_id, started_at, finished_at, duration_ms, status,
			receiver_url, log_api_url, generator,
			requested, sent, send_failures, rejected, verified, unverified,
			start_offset, final_offset, error, result_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID,
		r.StartTime.UTC().Format(timeLayout),
		r.EndTime.UTC().Format(timeLayout),
		r.Duration.Milliseconds(),
		string(r.Status),
		r.ReceiverURL, r.LogAPIURL, r.Generator,
		r.Counts.Requested, r.Counts.Sent, r.Counts.SendFailures, r.Counts.Rejected,
		r.Counts.Verified, r.Counts.Unverified,
		r.StartOffset, r.FinalOffset, r.Error, string(data),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT run_id, started_at, duration_ms, status, verified, unverified, send_failures, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			rec        RunRecord
			startedAt  string
			durationMS int64
			status     string
		)
		if err := rows.Scan(&rec.RunID, &startedAt, &durationMS, &status,
			&rec.Verified, &rec.Unverified, &rec.SendFailures, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.Status = Status(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns the full archived result of one run.
func (h *History) Get(ctx context.Context, runID string) (*Result, error) {
	var data string
	err := h.db.QueryRowContext(ctx, `SELECT result_json FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	var r Result
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &r, nil
}
