package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/taskcomm/internal/app"
	"github.com/dotcommander/taskcomm/internal/output"
)

// Execute runs the CLI application.
func Execute(version string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	root := &cobra.Command{
		Use:           "taskcomm",
		Short:         "File-backed task lifecycle store for agent coordination",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return output.PrintSuccess(resp{Version: version})
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.EnsureConfigDir(); err != nil {
				return err
			}

			// Wire path flags into the app-level resolvers.
			if v, err := cmd.Flags().GetString("comm-root"); err == nil && v != "" {
				app.SetCommRootOverride(v)
			}
			if v, err := cmd.Flags().GetString("archive-root"); err == nil && v != "" {
				app.SetArchiveRootOverride(v)
			}
			if v, err := cmd.Flags().GetString("journal"); err == nil && v != "" {
				app.SetJournalPathOverride(v)
			}
			return nil
		},
	}

	root.PersistentFlags().String("comm-root", "", "Override the task communication root")
	root.PersistentFlags().String("archive-root", "", "Override the archive root")
	root.PersistentFlags().String("journal", "", "Override the journal path (\"off\" disables)")
	root.PersistentFlags().StringP("agent", "a", "", "Agent name (default: $TASKCOMM_AGENT)")
	root.Flags().BoolP("version", "v", false, "version for taskcomm")

	root.AddCommand(NewTaskCmd())
	root.AddCommand(NewArchiveCmd())
	root.AddCommand(NewJournalCmd())

	err := root.Execute()
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) {
			slog.Error("command failed", "error", err.Error())
		}
	}
	return err
}
