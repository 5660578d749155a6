package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/taskcomm/internal/archive"
	"github.com/dotcommander/taskcomm/internal/output"
	"github.com/dotcommander/taskcomm/internal/store"
)

// NewArchiveCmd creates the archive command tree.
func NewArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move tasks into timestamped snapshots and back",
	}

	cmd.AddCommand(newArchiveRunCmd())
	cmd.AddCommand(newArchiveRestoreCmd())
	return cmd
}

func newArchiveRunCmd() *cobra.Command {
	var (
		mode          string
		agent         string
		olderThanDays int
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Archive matching tasks into a new snapshot",
		Long: `Archive tasks into a timestamped snapshot under the archive root.

Modes:
  completed   tasks whose derived status is completed (default)
  all         every task
  by-agent    every task owned by --agent
  by-date     tasks created more than --older-than days ago`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(func(s *store.Store, m *archive.Manager) error {
				res, err := m.ArchiveTasks(cmd.Context(), archive.Options{
					Mode:          archive.Mode(mode),
					Agent:         agent,
					OlderThanDays: olderThanDays,
					DryRun:        dryRun,
				})
				if err != nil {
					return err
				}
				return output.PrintSuccess(res)
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(archive.ModeCompleted), "Archive mode: completed|all|by-agent|by-date")
	cmd.Flags().StringVar(&agent, "agent-name", "", "Agent to archive (by-agent mode)")
	cmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Age threshold in days (by-date mode)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would move without moving anything")
	return cmd
}

func newArchiveRestoreCmd() *cobra.Command {
	var (
		agent   string
		pattern string
	)

	cmd := &cobra.Command{
		Use:   "restore <snapshot-timestamp>",
		Short: "Move tasks from a snapshot back into the live store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(func(s *store.Store, m *archive.Manager) error {
				res, err := m.RestoreTasks(cmd.Context(), args[0], agent, pattern)
				if err != nil {
					return err
				}
				return output.PrintSuccess(res)
			})
		},
	}

	cmd.Flags().StringVar(&agent, "agent-name", "", "Restore only this agent's tasks")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Restore only task ids containing this substring")
	return cmd
}
