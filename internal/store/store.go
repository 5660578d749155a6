// Package store is the single source of truth for task existence,
// ownership, and lifecycle file contents. A task is a directory under
// <commRoot>/<agent>/<taskId>/ holding up to four markdown files:
// INIT.md (created once), PLAN.md (checkbox step list), and the terminal
// DONE.md / ERROR.md. Status is derived from file presence, never stored.
//
// Mutating operations serialize through the lease manager; readers take
// no lease and get best-effort consistency.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dotcommander/taskcomm/internal/journal"
	"github.com/dotcommander/taskcomm/internal/lease"
	"github.com/dotcommander/taskcomm/internal/models"
)

// Lifecycle file names (the persisted format compatibility surface).
const (
	InitFile  = "INIT.md"
	PlanFile  = "PLAN.md"
	DoneFile  = "DONE.md"
	ErrorFile = "ERROR.md"
)

// Store owns the task directory layout under one communication root.
type Store struct {
	root    string
	leases  *lease.Manager
	journal *journal.Journal // nil drops observability entries
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLeaseManager overrides the default lease manager.
func WithLeaseManager(m *lease.Manager) Option {
	return func(s *Store) { s.leases = m }
}

// WithJournal attaches an observability journal. Journal failures are
// logged and never fatal.
func WithJournal(j *journal.Journal) Option {
	return func(s *Store) { s.journal = j }
}

// WithClock overrides the time source used for task id generation.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store rooted at commRoot, creating the directory if
// needed.
func New(commRoot string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(commRoot) == "" {
		return nil, &models.ValidationError{Field: "comm_root", Value: commRoot, Reason: "must not be empty"}
	}
	if err := os.MkdirAll(commRoot, 0o750); err != nil {
		return nil, fmt.Errorf("create comm root: %w", err)
	}

	s := &Store{
		root: commRoot,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.leases == nil {
		s.leases = lease.NewManager()
	}
	return s, nil
}

// Root returns the communication root directory.
func (s *Store) Root() string { return s.root }

// Leases exposes the lease manager so the archive layer can coordinate
// with in-flight mutations.
func (s *Store) Leases() *lease.Manager { return s.leases }

// AgentDir returns the directory holding all of an agent's tasks.
func (s *Store) AgentDir(agent string) string {
	return filepath.Join(s.root, agent)
}

// TaskDir returns a task's directory.
func (s *Store) TaskDir(agent, taskID string) string {
	return filepath.Join(s.root, agent, taskID)
}

// validateAgent fails closed: an empty or whitespace-only agent is an
// ownership error, and a name that would escape the root is rejected
// before any filesystem access.
func validateAgent(agent string) error {
	if strings.TrimSpace(agent) == "" {
		return &models.OwnershipError{Agent: agent, Reason: "agent name is empty"}
	}
	if strings.ContainsAny(agent, `/\`) || agent == "." || agent == ".." {
		return &models.ValidationError{Field: "agent", Value: agent, Reason: "must not contain path separators"}
	}
	return nil
}

func validateTaskID(taskID string) error {
	if strings.TrimSpace(taskID) == "" {
		return &models.ValidationError{Field: "task_id", Value: taskID, Reason: "must not be empty"}
	}
	if strings.ContainsAny(taskID, `/\`) || taskID == "." || taskID == ".." {
		return &models.ValidationError{Field: "task_id", Value: taskID, Reason: "must not contain path separators"}
	}
	return nil
}

// requireOwnership validates identities and confirms both the agent and
// task directories exist.
func (s *Store) requireOwnership(agent, taskID, operation string) error {
	ok, err := s.ValidateOwnership(agent, taskID)
	if err != nil {
		return err
	}
	if !ok {
		return &models.OwnershipError{Agent: agent, TaskID: taskID, Reason: operation + ": task directory not found"}
	}
	return nil
}

// record appends a journal entry, logging instead of failing when the
// journal is unavailable.
func (s *Store) record(ctx context.Context, kind, agent, taskID, operation, message string) {
	if err := s.journal.Record(ctx, kind, agent, taskID, operation, message); err != nil {
		slog.Warn("journal append failed", "kind", kind, "operation", operation, "error", err)
	}
}

// holder builds a lease holder identity from the operation name.
func holder(operation string) string {
	return fmt.Sprintf("%s@%d", operation, os.Getpid())
}
