package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/taskcomm/internal/app"
	"github.com/dotcommander/taskcomm/internal/archive"
	"github.com/dotcommander/taskcomm/internal/journal"
	"github.com/dotcommander/taskcomm/internal/lease"
	"github.com/dotcommander/taskcomm/internal/output"
	"github.com/dotcommander/taskcomm/internal/store"
)

// printedError marks errors whose JSON response has already been written,
// so root doesn't log them twice.
type printedError struct {
	err error
}

func (e printedError) Error() string {
	// Intentionally hide the original error: the JSON error response is the output.
	return "error already printed"
}

// cmdErr prints the JSON error envelope, logs with structured attrs, and
// wraps the error so the root handler knows it was handled.
func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	attrs := []any{"error", err.Error()}
	type slogAttrError interface {
		SlogAttrs() []any
	}
	var detailed slogAttrError
	if errors.As(err, &detailed) {
		attrs = append(attrs, detailed.SlogAttrs()...)
	}
	slog.Error("command error", attrs...)
	_ = output.PrintError(err)
	return printedError{err: err}
}

// resolveAgentName resolves the agent identity for an operation.
// Precedence: per-command flag, global --agent, env TASKCOMM_AGENT.
func resolveAgentName(cmd *cobra.Command, perCmdFlag string) string {
	if perCmdFlag != "" {
		if v, err := cmd.Flags().GetString(perCmdFlag); err == nil && v != "" {
			return v
		}
	}
	if v, err := cmd.Flags().GetString("agent"); err == nil && v != "" {
		return v
	}
	return os.Getenv("TASKCOMM_AGENT")
}

func requireAgentName(cmd *cobra.Command, perCmdFlag string) (string, error) {
	agent := resolveAgentName(cmd, perCmdFlag)
	if agent == "" {
		return "", fmt.Errorf("agent is required (set --agent or TASKCOMM_AGENT)")
	}
	return agent, nil
}

// openStore builds the Store (and its journal) from resolved settings.
// The returned cleanup closes the journal; call it on every exit path.
func openStore() (*store.Store, *journal.Journal, func(), error) {
	commRoot, err := app.GetCommRoot()
	if err != nil {
		return nil, nil, nil, err
	}

	var j *journal.Journal
	if jPath, err := app.GetJournalPath(); err != nil {
		return nil, nil, nil, err
	} else if jPath != "" {
		j, err = journal.Open(jPath)
		if err != nil {
			// The journal is observability, not correctness: degrade, don't die.
			slog.Warn("journal unavailable, continuing without it", "path", jPath, "error", err)
			j = nil
		}
	}

	s, err := store.New(commRoot,
		store.WithLeaseManager(lease.NewManager(lease.WithTTL(app.GetLeaseTTL()))),
		store.WithJournal(j),
	)
	if err != nil {
		_ = j.Close()
		return nil, nil, nil, err
	}
	return s, j, func() { _ = j.Close() }, nil
}

// withStore runs fn against a freshly opened store.
func withStore(fn func(s *store.Store) error) error {
	s, _, cleanup, err := openStore()
	if err != nil {
		return cmdErr(err)
	}
	defer cleanup()

	if err := fn(s); err != nil {
		return cmdErr(err)
	}
	return nil
}

// withArchive runs fn against the store plus an archive manager rooted at
// the resolved archive root.
func withArchive(fn func(s *store.Store, m *archive.Manager) error) error {
	return withStore(func(s *store.Store) error {
		archiveRoot, err := app.GetArchiveRoot()
		if err != nil {
			return err
		}
		m, err := archive.NewManager(s, archiveRoot)
		if err != nil {
			return err
		}
		return fn(s, m)
	})
}

// withJournal runs fn against just the journal.
func withJournal(fn func(j *journal.Journal) error) error {
	_, j, cleanup, err := openStore()
	if err != nil {
		return cmdErr(err)
	}
	defer cleanup()

	if err := fn(j); err != nil {
		return cmdErr(err)
	}
	return nil
}
