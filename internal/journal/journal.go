package journal

import (
	"context"
	"fmt"
	"time"
)

// Entry kinds. Operations are routine audit rows; warnings are non-fatal
// problems surfaced to the caller; anomalies are inputs outside the sane
// range that were accepted anyway (availability over strict validation).
const (
	KindOperation = "operation"
	KindWarning   = "warning"
	KindAnomaly   = "anomaly"
)

// Entry is one journal row.
type Entry struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Agent     string    `json:"agent"`
	TaskID    string    `json:"task_id"`
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Record appends one entry. Nil-safe: a nil Journal drops the entry.
func (j *Journal) Record(ctx context.Context, kind, agent, taskID, operation, message string) error {
	if j == nil {
		return nil
	}
	return retryWithBackoff(func() error {
		_, err := j.db.ExecContext(ctx, `
			INSERT INTO journal (kind, agent, task_id, operation, message)
			VALUES (?, ?, ?, ?, ?)
		`, kind, agent, taskID, operation, message)
		if err != nil {
			return fmt.Errorf("append journal entry: %w", err)
		}
		return nil
	})
}

// Tail returns the most recent entries, newest first.
func (j *Journal) Tail(ctx context.Context, limit int) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, kind, agent, task_id, operation, message, created_at
		FROM journal
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Agent, &e.TaskID, &e.Operation, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// CountByKind returns how many entries of a kind exist for a task.
// Used by tests and diagnostics.
func (j *Journal) CountByKind(ctx context.Context, agent, taskID, kind string) (int, error) {
	if j == nil {
		return 0, nil
	}
	var n int
	err := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM journal WHERE agent = ? AND task_id = ? AND kind = ?
	`, agent, taskID, kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count journal entries: %w", err)
	}
	return n, nil
}
