package journal

import (
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryWithBackoff wraps an operation with exponential backoff retry
// logic. Retries on transient SQLite errors (SQLITE_BUSY, "database is
// locked"); everything else stops immediately.
func retryWithBackoff(operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	b.RandomizationFactor = 0.1

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}

// isRetryable relies on modernc.org/sqlite error message strings.
// If modernc changes its error format in a major version bump, update
// the matchers below. Current baseline: modernc.org/sqlite v1.45+.
func isRetryable(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY")
}
