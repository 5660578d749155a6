// Package archive relocates task directories between the live store and
// timestamped snapshots. Each snapshot partitions tasks into completed/
// and pending/ subtrees mirroring the live agent/task layout. Every task
// move is its own unit of failure: one failed move never corrupts the
// rest of the batch.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dotcommander/taskcomm/internal/lease"
	"github.com/dotcommander/taskcomm/internal/models"
	"github.com/dotcommander/taskcomm/internal/store"
)

// Snapshot subtree names.
const (
	CompletedDir = "completed"
	PendingDir   = "pending"
)

// snapshotTimeLayout names snapshot directories; ':' is avoided for
// portability.
const snapshotTimeLayout = "2006-01-02T15-04-05"

// Mode selects which tasks an archive run matches.
type Mode string

// Archive modes.
const (
	ModeCompleted Mode = "completed"
	ModeAll       Mode = "all"
	ModeByAgent   Mode = "by-agent"
	ModeByDate    Mode = "by-date"
)

// Valid returns true if m is a known archive mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeCompleted, ModeAll, ModeByAgent, ModeByDate:
		return true
	}
	return false
}

// Error reports a directory move failure.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("archive: %s: %v", e.Path, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) ErrorCode() string { return "ARCHIVE" }

func (e *Error) Context() map[string]string {
	return map[string]string{"path": e.Path, "cause": e.Err.Error()}
}

func (e *Error) SuggestedAction() string {
	return "check filesystem permissions and retry; completed moves are unaffected"
}

// Options selects tasks to archive.
type Options struct {
	Mode          Mode   `json:"mode"`
	Agent         string `json:"agent,omitempty"`           // required for by-agent
	OlderThanDays int    `json:"older_than_days,omitempty"` // required for by-date
	DryRun        bool   `json:"dry_run,omitempty"`
}

// TaskRef identifies one task touched by an archive or restore run.
type TaskRef struct {
	Agent     string `json:"agent"`
	TaskID    string `json:"task_id"`
	Completed bool   `json:"completed"`
}

// Skip records a task left in place and why.
type Skip struct {
	Agent  string `json:"agent"`
	TaskID string `json:"task_id"`
	Reason string `json:"reason"`
}

// Result reports an archive run.
type Result struct {
	Timestamp string    `json:"timestamp"`
	Archived  []TaskRef `json:"archived"`
	Skipped   []Skip    `json:"skipped,omitempty"`
	DryRun    bool      `json:"dry_run,omitempty"`
}

// RestoreResult reports a restore run.
type RestoreResult struct {
	Timestamp string    `json:"timestamp"`
	Restored  []TaskRef `json:"restored"`
	Failed    []Skip    `json:"failed,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager moves task directories between the live root and snapshots.
type Manager struct {
	store *store.Store
	root  string // archive root
	now   func() time.Time
}

// NewManager creates a Manager writing snapshots under archiveRoot.
func NewManager(st *store.Store, archiveRoot string, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(archiveRoot) == "" {
		return nil, &models.ValidationError{Field: "archive_root", Value: archiveRoot, Reason: "must not be empty"}
	}
	m := &Manager{store: st, root: archiveRoot, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Root returns the archive root directory.
func (m *Manager) Root() string { return m.root }

// ArchiveTasks moves every matching task into a fresh timestamped
// snapshot, partitioned by completion state at archive time. A task with
// a live lease (mutation in flight) is skipped rather than raced. DryRun
// reports what would move without touching the tree.
func (m *Manager) ArchiveTasks(ctx context.Context, opts Options) (*Result, error) {
	if !opts.Mode.Valid() {
		return nil, &models.ValidationError{Field: "mode", Value: string(opts.Mode), Reason: "unknown archive mode"}
	}
	if opts.Mode == ModeByAgent && strings.TrimSpace(opts.Agent) == "" {
		return nil, &models.ValidationError{Field: "agent", Value: "", Reason: "required for by-agent mode"}
	}
	if opts.Mode == ModeByDate && opts.OlderThanDays <= 0 {
		return nil, &models.ValidationError{Field: "older_than_days", Value: fmt.Sprint(opts.OlderThanDays), Reason: "must be positive for by-date mode"}
	}

	result := &Result{
		Timestamp: m.now().UTC().Format(snapshotTimeLayout),
		DryRun:    opts.DryRun,
	}

	agents, err := m.matchAgents(opts)
	if err != nil {
		return nil, err
	}

	cutoff := m.now().AddDate(0, 0, -opts.OlderThanDays)
	for _, agent := range agents {
		tasks, err := store.ListTasks(m.store, agent)
		if err != nil {
			// One unreadable agent dir must not sink the whole run.
			slog.Warn("archive: skipping agent", "agent", agent, "error", err)
			result.Skipped = append(result.Skipped, Skip{Agent: agent, Reason: err.Error()})
			continue
		}
		for _, t := range tasks {
			if !matches(opts, t, cutoff) {
				continue
			}
			ref := TaskRef{Agent: t.Agent, TaskID: t.ID, Completed: t.Status() == models.TaskStatusCompleted}
			if opts.DryRun {
				result.Archived = append(result.Archived, ref)
				continue
			}
			if skip := m.moveToSnapshot(t, ref, result.Timestamp); skip != nil {
				result.Skipped = append(result.Skipped, *skip)
				continue
			}
			result.Archived = append(result.Archived, ref)
		}
		if !opts.DryRun {
			// Drop agent dirs emptied by the run. Best effort: Remove
			// fails on non-empty directories, which is exactly what we want.
			_ = os.Remove(m.store.AgentDir(agent))
		}
	}

	return result, nil
}

func (m *Manager) matchAgents(opts Options) ([]string, error) {
	if opts.Mode == ModeByAgent {
		return []string{opts.Agent}, nil
	}
	return store.ListAgents(m.store)
}

func matches(opts Options, t models.Task, cutoff time.Time) bool {
	switch opts.Mode {
	case ModeCompleted:
		return t.Status() == models.TaskStatusCompleted
	case ModeByDate:
		return !t.CreatedAt.IsZero() && t.CreatedAt.Before(cutoff)
	default: // all, by-agent
		return true
	}
}

// moveToSnapshot relocates one task directory. The task lease is taken
// first so an in-flight mutation is never moved out from under its
// writer; the marker travels with the directory and is removed at the
// destination.
func (m *Manager) moveToSnapshot(t models.Task, ref TaskRef, timestamp string) *Skip {
	src := m.store.TaskDir(t.Agent, t.ID)

	l, err := m.store.Leases().Acquire(src, "archive")
	if err != nil {
		var held *lease.HeldError
		if errors.As(err, &held) {
			return &Skip{Agent: t.Agent, TaskID: t.ID, Reason: "mutation in flight: " + held.Holder}
		}
		return &Skip{Agent: t.Agent, TaskID: t.ID, Reason: err.Error()}
	}

	partition := PendingDir
	if ref.Completed {
		partition = CompletedDir
	}
	dest := filepath.Join(m.root, timestamp, partition, t.Agent, t.ID)

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		_ = m.store.Leases().Release(l)
		return &Skip{Agent: t.Agent, TaskID: t.ID, Reason: (&Error{Path: dest, Err: err}).Error()}
	}
	if err := os.Rename(src, dest); err != nil {
		_ = m.store.Leases().Release(l)
		return &Skip{Agent: t.Agent, TaskID: t.ID, Reason: (&Error{Path: src, Err: err}).Error()}
	}

	// The lease marker moved with the directory; clean it up there.
	if err := os.Remove(filepath.Join(dest, lease.MarkerName)); err != nil && !os.IsNotExist(err) {
		slog.Warn("archive: stale lease marker left in snapshot", "path", dest, "error", err)
	}
	return nil
}

// RestoreTasks re-walks a snapshot's completed/ and pending/ subtrees and
// moves matching task directories back under the live root, recreating
// agent directories as needed. An empty pattern matches every task;
// otherwise the task id must contain the pattern, case-insensitively.
func (m *Manager) RestoreTasks(ctx context.Context, timestamp, agent, taskNamePattern string) (*RestoreResult, error) {
	if strings.TrimSpace(timestamp) == "" {
		return nil, &models.ValidationError{Field: "timestamp", Value: "", Reason: "must not be empty"}
	}
	snapDir := filepath.Join(m.root, timestamp)
	if _, err := os.Stat(snapDir); err != nil {
		return nil, &Error{Path: snapDir, Err: err}
	}

	result := &RestoreResult{Timestamp: timestamp}
	pattern := strings.ToLower(strings.TrimSpace(taskNamePattern))

	for _, partition := range []string{CompletedDir, PendingDir} {
		partDir := filepath.Join(snapDir, partition)
		agentEntries, err := os.ReadDir(partDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &Error{Path: partDir, Err: err}
		}
		for _, ae := range agentEntries {
			if !ae.IsDir() {
				continue
			}
			if agent != "" && ae.Name() != agent {
				continue
			}
			taskEntries, err := os.ReadDir(filepath.Join(partDir, ae.Name()))
			if err != nil {
				result.Failed = append(result.Failed, Skip{Agent: ae.Name(), Reason: err.Error()})
				continue
			}
			for _, te := range taskEntries {
				if !te.IsDir() {
					continue
				}
				if pattern != "" && !strings.Contains(strings.ToLower(te.Name()), pattern) {
					continue
				}
				ref := TaskRef{Agent: ae.Name(), TaskID: te.Name(), Completed: partition == CompletedDir}
				src := filepath.Join(partDir, ae.Name(), te.Name())
				dest := m.store.TaskDir(ae.Name(), te.Name())
				if err := m.moveBack(src, dest); err != nil {
					result.Failed = append(result.Failed, Skip{Agent: ref.Agent, TaskID: ref.TaskID, Reason: err.Error()})
					continue
				}
				result.Restored = append(result.Restored, ref)
			}
		}
	}
	return result, nil
}

func (m *Manager) moveBack(src, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return &Error{Path: dest, Err: os.ErrExist}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return &Error{Path: dest, Err: err}
	}
	if err := os.Rename(src, dest); err != nil {
		return &Error{Path: src, Err: err}
	}
	return nil
}
