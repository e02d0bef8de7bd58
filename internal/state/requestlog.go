package state

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current request log schema version. Bump this when
// the schema changes; stale databases are rejected rather than migrated.
const schemaVersion = 1

// requestLogCap bounds the number of retained request rows.
const requestLogCap = 1000

// ErrSchemaMismatch indicates the database was created by a different
// version.
var ErrSchemaMismatch = errors.New("request log schema version mismatch")

// Request statuses.
const (
	RequestOK     = "ok"
	RequestFailed = "failed"
)

// Request is one API or subprocess invocation outcome.
type Request struct {
	ID         int64
	CreatedAt  time.Time
	RunID      string
	Stage      string
	Provider   string
	Model      string
	Credential string
	Duration   time.Duration
	Status     string
	ErrorKind  string
	Message    string
}

// RequestLog persists request outcomes in SQLite.
type RequestLog struct {
	db   *sql.DB
	path string
}

// OpenRequestLog initializes or connects to the request log database.
func OpenRequestLog(path string) (*RequestLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open request log: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	log := &RequestLog{db: db, path: path}
	if err := log.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return log, nil
}

// Close closes the underlying database connection.
func (l *RequestLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *RequestLog) initSchema(ctx context.Context) error {
	var tableExists int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := l.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, l.path)
	}
	return nil
}

// Record appends a request outcome and prunes rows beyond the retention cap.
func (l *RequestLog) Record(ctx context.Context, req Request) error {
	created := req.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO request_log (
            created_at, run_id, stage, provider, model, credential,
            duration_ms, status, error_kind, message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.Format(time.RFC3339Nano),
		req.RunID,
		req.Stage,
		req.Provider,
		req.Model,
		req.Credential,
		req.Duration.Milliseconds(),
		req.Status,
		req.ErrorKind,
		req.Message,
	)
	if err != nil {
		return fmt.Errorf("record request: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`DELETE FROM request_log WHERE id NOT IN (
            SELECT id FROM request_log ORDER BY id DESC LIMIT ?
        )`, requestLogCap)
	if err != nil {
		return fmt.Errorf("prune request log: %w", err)
	}
	return nil
}

// Recent returns the newest requests, most recent first.
func (l *RequestLog) Recent(ctx context.Context, limit int) ([]Request, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, created_at, run_id, stage, provider, model, credential,
                duration_ms, status, error_kind, message
         FROM request_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var req Request
		var created string
		var durationMS int64
		if err := rows.Scan(&req.ID, &created, &req.RunID, &req.Stage, &req.Provider,
			&req.Model, &req.Credential, &durationMS, &req.Status, &req.ErrorKind, &req.Message); err != nil {
			return nil, err
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, created); parseErr == nil {
			req.CreatedAt = ts
		}
		req.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, req)
	}
	return out, rows.Err()
}

// StageStats summarizes request outcomes for one stage.
type StageStats struct {
	Stage       string
	Total       int
	Failed      int
	SuccessRate float64
}

// Stats aggregates success rates per stage for diagnostic output.
func (l *RequestLog) Stats(ctx context.Context) ([]StageStats, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT stage,
                COUNT(1),
                SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
         FROM request_log GROUP BY stage ORDER BY stage`, RequestFailed)
	if err != nil {
		return nil, fmt.Errorf("request stats: %w", err)
	}
	defer rows.Close()

	var out []StageStats
	for rows.Next() {
		var stats StageStats
		if err := rows.Scan(&stats.Stage, &stats.Total, &stats.Failed); err != nil {
			return nil, err
		}
		if stats.Total > 0 {
			stats.SuccessRate = float64(stats.Total-stats.Failed) / float64(stats.Total)
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}
