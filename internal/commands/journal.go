package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotcommander/taskcomm/internal/journal"
	"github.com/dotcommander/taskcomm/internal/output"
)

// NewJournalCmd creates the journal command tree.
func NewJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the operation journal",
	}

	cmd.AddCommand(newJournalTailCmd())
	return cmd
}

func newJournalTailCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent journal entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(func(j *journal.Journal) error {
				if j == nil {
					return fmt.Errorf("journal is disabled (--journal off)")
				}
				entries, err := j.Tail(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if entries == nil {
					entries = []journal.Entry{}
				}
				return output.PrintSuccess(entries)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to return")
	return cmd
}
