// Package journal is the observability sink for the task store: an
// append-only sqlite log of operations, warnings, and anomalies. Recording
// is always best-effort — a journal failure must never abort the task
// operation that triggered it, so the store logs and moves on. A nil
// *Journal is valid and drops everything.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// defaultBusyTimeoutMS is the SQLite busy_timeout in milliseconds.
// Override with TASKCOMM_BUSY_TIMEOUT_MS for high-contention environments.
const defaultBusyTimeoutMS = 5000

// Journal wraps the sqlite handle.
type Journal struct {
	db *sql.DB
}

// Open initializes the journal database at path, configures WAL mode,
// and runs migrations.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	// modernc.org/sqlite is strict about DSNs. Use a file: URI with mode=rwc
	// so the database can be created/written consistently across platforms.
	db, err := sql.Open("sqlite", normalizeDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// Single connection: the journal is a low-volume append log.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busyTimeout := defaultBusyTimeoutMS
	if v := os.Getenv("TASKCOMM_BUSY_TIMEOUT_MS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			busyTimeout = parsed
		}
	}

	// busy_timeout first so subsequent pragmas (including WAL) wait on locks.
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA synchronous=NORMAL",
		"PRAGMA journal_mode=WAL",
	}
	for _, pragma := range pragmas {
		if err := retryWithBackoff(func() error {
			_, err := db.ExecContext(context.Background(), pragma)
			return err
		}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if err := retryWithBackoff(func() error { return migrate(db, path) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run journal migrations: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database. Nil-safe.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

func normalizeDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	if path == ":memory:" {
		return "file::memory:?cache=shared"
	}
	// mode=rwc => read/write/create. Without this, some environments open read-only.
	return "file:" + path + "?mode=rwc"
}
