// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a local SQLite record of finished conversions so
// past task ids and results can be listed after the session ends.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pdfnmd/pkg/types"
)

const dbFile = "history.db"

// defaultLimit caps List when the caller passes no limit.
const defaultLimit = 50

// Entry is one recorded attempt.
type Entry struct {
	FileID      string               `json:"file_id" yaml:"file_id"`
	Attempt     int                  `json:"attempt" yaml:"attempt"`
	Name        string               `json:"name" yaml:"name"`
	Size        int64                `json:"size" yaml:"size"`
	TaskID      string               `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	State       types.LifecycleState `json:"state" yaml:"state"`
	ResultName  string               `json:"result_name,omitempty" yaml:"result_name,omitempty"`
	DownloadRef string               `json:"download_ref,omitempty" yaml:"download_ref,omitempty"`
	ErrorKind   string               `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	ErrorDetail string               `json:"error_detail,omitempty" yaml:"error_detail,omitempty"`
	FinishedAt  time.Time            `json:"finished_at" yaml:"finished_at"`
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates dir/history.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			file_id TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			name TEXT NOT NULL,
			size INTEGER,
			task_id TEXT,
			state TEXT NOT NULL,
			result_name TEXT,
			download_ref TEXT,
			error_kind TEXT,
			error_detail TEXT,
			finished_at TEXT NOT NULL,
			PRIMARY KEY (file_id, attempt)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_finished ON conversions(finished_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_task ON conversions(task_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record upserts f's current attempt. A copied file is stored as completed.
func (s *Store) Record(ctx context.Context, f types.TrackedFile) error {
	state := f.State
	if state == types.StateCopied {
		state = types.StateCompleted
	}
	finished := f.UpdatedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions
			(file_id, attempt, name, size, task_id, state, result_name, download_ref, error_kind, error_detail, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, attempt) DO UPDATE SET
			task_id = excluded.task_id,
			state = excluded.state,
			result_name = excluded.result_name,
			download_ref = excluded.download_ref,
			error_kind = excluded.error_kind,
			error_detail = excluded.error_detail,
			finished_at = excluded.finished_at`,
		f.ID, f.Attempt, f.Source.Name, f.Source.Size, f.TaskID, string(state),
		f.ResultName, f.DownloadRef, f.ErrorKind, f.ErrorDetail,
		finished.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", f.Source.Name, err)
	}
	return nil
}

// Query filters List results. Zero values match everything.
type Query struct {
	Limit int
	State types.LifecycleState
	// Name matches a substring of the source file name, case-insensitively.
	Name string
}

// List returns recorded attempts, most recent first.
func (s *Store) List(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	var where []string
	var args []interface{}
	if q.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(q.State))
	}
	if q.Name != "" {
		where = append(where, "lower(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Name)+"%")
	}

	query := `SELECT file_id, attempt, name, size, task_id, state, result_name, download_ref, error_kind, error_detail, finished_at
		FROM conversions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY finished_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var taskID, resultName, downloadRef, errorKind, errorDetail sql.NullString
		var state, finished string
		if err := rows.Scan(&e.FileID, &e.Attempt, &e.Name, &e.Size, &taskID, &state,
			&resultName, &downloadRef, &errorKind, &errorDetail, &finished); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.TaskID = taskID.String
		e.State = types.LifecycleState(state)
		e.ResultName = resultName.String
		e.DownloadRef = downloadRef.String
		e.ErrorKind = errorKind.String
		e.ErrorDetail = errorDetail.String
		if t, err := time.Parse(time.RFC3339Nano, finished); err == nil {
			e.FinishedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats counts recorded attempts by state.
func (s *Store) Stats(ctx context.Context) (map[types.LifecycleState]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, count(*) FROM conversions GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("counting history: %w", err)
	}
	defer rows.Close()

	out := make(map[types.LifecycleState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		out[types.LifecycleState(state)] = n
	}
	return out, rows.Err()
}
