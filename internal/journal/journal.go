// Package journal is the append-only record of finished engine invocations.
// It exists for operators (status API, watch TUI, postmortems); dedup state
// deliberately stays in memory and is never reconstructed from here.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const maxStderrBytes = 64 * 1024

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Entry is one finished invocation.
type Entry struct {
	ID          string     `json:"id"`
	Bot         string     `json:"bot"`
	Fingerprint string     `json:"fingerprint"`
	Status      Status     `json:"status"`
	Move        string     `json:"move,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Stderr      string     `json:"-"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at"`
}

type Journal struct {
	db *sql.DB
}

func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Record appends one finished invocation.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("entry id is empty")
	}
	if e.Status != StatusSucceeded && e.Status != StatusFailed && e.Status != StatusTimedOut {
		return fmt.Errorf("invalid terminal status: %q", e.Status)
	}

	stderr := e.Stderr
	if len(stderr) > maxStderrBytes {
		stderr = stderr[:maxStderrBytes]
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO turn_log(id, bot, fingerprint, status, move, last_error, stderr, started_at, completed_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, e.ID, e.Bot, e.Fingerprint, e.Status, nullable(e.Move), nullable(e.LastError), nullable(stderr),
		e.StartedAt.UTC().Format(time.RFC3339Nano), e.CompletedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert turn_log: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT id, bot, fingerprint, status, move, last_error, stderr, started_at, completed_at
FROM turn_log
ORDER BY completed_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query turn_log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e            Entry
			statusS      string
			move         sql.NullString
			lastError    sql.NullString
			stderr       sql.NullString
			startedAtS   string
			completedAtS string
		)
		if err := rows.Scan(&e.ID, &e.Bot, &e.Fingerprint, &statusS, &move, &lastError, &stderr,
			&startedAtS, &completedAtS); err != nil {
			return nil, fmt.Errorf("scan turn_log: %w", err)
		}
		e.Status = Status(statusS)
		e.Move = move.String
		e.LastError = lastError.String
		e.Stderr = stderr.String
		if ts, err := time.Parse(time.RFC3339Nano, startedAtS); err == nil {
			e.StartedAt = ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, completedAtS); err == nil {
			e.CompletedAt = ts
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries whose completion is older than retention. Returns the
// number of rows removed.
func (j *Journal) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	res, err := j.db.ExecContext(ctx, `DELETE FROM turn_log WHERE completed_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune turn_log: %w", err)
	}
	return res.RowsAffected()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
