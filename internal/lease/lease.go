// Package lease serializes mutating access to a task directory across
// concurrent callers, including separate processes sharing the same
// filesystem. A lease is an exclusively-created marker file with a TTL;
// an expired marker may be reclaimed by the next caller. Enforcement is
// advisory only: a process that bypasses the store can still race.
package lease

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// MarkerName is the lease marker file created inside a task directory.
const MarkerName = ".lease"

// DefaultTTL bounds how long a crashed holder can wedge a task directory.
const DefaultTTL = 30 * time.Second

// HeldError is returned when the marker exists and has not expired.
// Callers are expected to retry with backoff, not block.
type HeldError struct {
	Dir       string
	Holder    string
	ExpiresAt time.Time
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("lease on %s held by %q until %s", e.Dir, e.Holder, e.ExpiresAt.Format(time.RFC3339))
}

func (e *HeldError) ErrorCode() string { return "LEASE_HELD" }

func (e *HeldError) Context() map[string]string {
	return map[string]string{
		"dir":        e.Dir,
		"holder":     e.Holder,
		"expires_at": e.ExpiresAt.Format(time.RFC3339),
	}
}

func (e *HeldError) SuggestedAction() string {
	return "retry after a short backoff; the holder releases on exit or the lease expires"
}

// Lease is a live claim on a task directory. The token fences release so
// a reclaimed lease cannot be removed by its previous holder.
type Lease struct {
	Dir        string
	Holder     string
	Token      string
	AcquiredAt time.Time
	TTL        time.Duration
}

// marker is the JSON persisted in the lease file.
type marker struct {
	Token      string    `json:"token"`
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
	TTLMillis  int64     `json:"ttl_ms"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the lease TTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source. Tests use this to expire leases
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager acquires and releases directory leases.
type Manager struct {
	ttl time.Duration
	now func() time.Time
}

// NewManager creates a Manager with DefaultTTL and the wall clock.
func NewManager(opts ...Option) *Manager {
	m := &Manager{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the configured lease TTL.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Acquire attempts to create the lease marker exclusively. If the marker
// exists but has expired, it is removed and creation is retried once. A
// live marker yields a HeldError. An unreadable marker is judged by its
// file age, never reclaimed at age zero: a young unreadable marker is
// treated as held, so a writer that crashes outside our control still
// gets its full TTL before reclaim.
func (m *Manager) Acquire(taskDir, holder string) (*Lease, error) {
	l, err := m.tryCreate(taskDir, holder)
	if err == nil {
		return l, nil
	}
	if !os.IsExist(err) {
		return nil, fmt.Errorf("create lease marker: %w", err)
	}

	path := filepath.Join(taskDir, MarkerName)
	mk, readErr := readMarker(path)
	switch {
	case readErr == nil:
		if !m.expired(mk) {
			return nil, &HeldError{
				Dir:       taskDir,
				Holder:    mk.Holder,
				ExpiresAt: mk.AcquiredAt.Add(time.Duration(mk.TTLMillis) * time.Millisecond),
			}
		}
	case os.IsNotExist(readErr):
		// Marker vanished between create and read: fall through to retry.
	default:
		if info, statErr := os.Stat(path); statErr == nil {
			if age := time.Since(info.ModTime()); age < m.ttl {
				return nil, &HeldError{Dir: taskDir, Holder: "unknown", ExpiresAt: info.ModTime().Add(m.ttl)}
			}
		}
	}

	// Stale marker: reclaim and retry once.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reclaim stale lease %s: %w", path, err)
	}
	l, err = m.tryCreate(taskDir, holder)
	if err == nil {
		return l, nil
	}
	if os.IsExist(err) {
		// Lost the reclaim race: report whoever won it.
		return nil, m.heldError(taskDir, path)
	}
	return nil, fmt.Errorf("create lease marker: %w", err)
}

// heldError builds a HeldError from the marker on disk, falling back to
// an anonymous holder when the marker cannot be read.
func (m *Manager) heldError(taskDir, path string) *HeldError {
	if mk, err := readMarker(path); err == nil {
		return &HeldError{
			Dir:       taskDir,
			Holder:    mk.Holder,
			ExpiresAt: mk.AcquiredAt.Add(time.Duration(mk.TTLMillis) * time.Millisecond),
		}
	}
	return &HeldError{Dir: taskDir, Holder: "unknown", ExpiresAt: m.now().Add(m.ttl)}
}

// AcquireWithRetry retries Acquire with exponential backoff while the
// lease is held by someone else. Other errors are permanent. The context
// bounds the total wait.
func (m *Manager) AcquireWithRetry(ctx context.Context, taskDir, holder string) (*Lease, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = m.ttl + 5*time.Second
	b.RandomizationFactor = 0.2

	var l *Lease
	err := backoff.Retry(func() error {
		var err error
		l, err = m.Acquire(taskDir, holder)
		if err == nil {
			return nil
		}
		var held *HeldError
		if errors.As(err, &held) {
			return err // retryable contention
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Release removes the marker only if it still carries this lease's token.
// A marker reclaimed by another holder after TTL expiry is left alone.
// Releasing an already-released lease is a no-op.
func (m *Manager) Release(l *Lease) error {
	if l == nil {
		return nil
	}
	path := filepath.Join(l.Dir, MarkerName)
	mk, err := readMarker(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		// Unreadable marker: we cannot prove it is ours, so leave it for
		// TTL-based reclaim rather than remove someone else's claim.
		return nil
	}
	if mk.Token != l.Token {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lease %s: %w", path, err)
	}
	return nil
}

func (m *Manager) tryCreate(taskDir, holder string) (*Lease, error) {
	path := filepath.Join(taskDir, MarkerName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	l := &Lease{
		Dir:        taskDir,
		Holder:     holder,
		Token:      uuid.NewString(),
		AcquiredAt: m.now(),
		TTL:        m.ttl,
	}
	data, err := json.Marshal(marker{
		Token:      l.Token,
		Holder:     l.Holder,
		AcquiredAt: l.AcquiredAt,
		TTLMillis:  l.TTL.Milliseconds(),
	})
	if err == nil {
		_, err = f.Write(data)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write lease marker: %w", err)
	}
	return l, nil
}

func (m *Manager) expired(mk marker) bool {
	ttl := time.Duration(mk.TTLMillis) * time.Millisecond
	if ttl <= 0 {
		return true
	}
	return m.now().Sub(mk.AcquiredAt) >= ttl
}

func readMarker(path string) (marker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return marker{}, err
	}
	var mk marker
	if err := json.Unmarshal(data, &mk); err != nil {
		return marker{}, err
	}
	return mk, nil
}
