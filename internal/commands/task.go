package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/taskcomm/internal/models"
	"github.com/dotcommander/taskcomm/internal/output"
	"github.com/dotcommander/taskcomm/internal/store"
)

// NewTaskCmd creates the task command tree.
func NewTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create and mutate task lifecycle records",
	}

	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskContextCmd())
	cmd.AddCommand(newTaskPlanCmd())
	cmd.AddCommand(newTaskProgressCmd())
	cmd.AddCommand(newTaskSyncCmd())
	cmd.AddCommand(newTaskCompleteCmd())
	cmd.AddCommand(newTaskMarkersCmd())
	cmd.AddCommand(newTaskLifecycleCmd())
	return cmd
}

// resolveTaskID falls back to the agent's most recent open task when the
// caller did not name one (e.g., after a process restart lost the
// session's current-task pointer).
func resolveTaskID(s *store.Store, agent, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	taskID, err := store.ResolveCurrentTask(s, agent)
	if err != nil {
		return "", err
	}
	if taskID == "" {
		return "", fmt.Errorf("no open task for agent %q; pass --task", agent)
	}
	return taskID, nil
}

func newTaskCreateCmd() *cobra.Command {
	var (
		name        string
		content     string
		contentFile string
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task and write its INIT.md",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}
			if name == "" {
				return cmdErr(fmt.Errorf("--name is required"))
			}
			if content == "" && contentFile != "" {
				data, err := os.ReadFile(contentFile)
				if err != nil {
					return cmdErr(err)
				}
				content = string(data)
			}
			if content == "" {
				return cmdErr(fmt.Errorf("--content or --content-file is required"))
			}

			return withStore(func(s *store.Store) error {
				task, err := store.CreateTask(cmd.Context(), s, agent, name, content, force)
				if err != nil {
					return err
				}
				return output.PrintSuccess(task)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Task name (required)")
	cmd.Flags().StringVar(&content, "content", "", "INIT.md content")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "Read INIT.md content from a file")
	cmd.Flags().BoolVar(&force, "force", false, "Skip duplicate-task detection")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an agent's tasks with derived status",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}

			return withStore(func(s *store.Store) error {
				tasks, err := store.ListTasks(s, agent)
				if err != nil {
					return err
				}
				type row struct {
					ID     string            `json:"id"`
					Status models.TaskStatus `json:"status"`
				}
				rows := make([]row, 0, len(tasks))
				for i := range tasks {
					rows = append(rows, row{ID: tasks[i].ID, Status: tasks[i].Status()})
				}
				return output.PrintSuccess(rows)
			})
		},
	}
	return cmd
}

func newTaskContextCmd() *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show a task's aggregated context",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}

			return withStore(func(s *store.Store) error {
				id, err := resolveTaskID(s, agent, taskID)
				if err != nil {
					return err
				}
				tc, err := store.GetTaskContext(s, agent, id)
				if err != nil {
					return err
				}
				return output.PrintSuccess(tc)
			})
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Task ID (default: most recent open task)")
	return cmd
}

func newTaskPlanCmd() *cobra.Command {
	var (
		taskID   string
		content  string
		planFile string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Submit (overwrite) a task's PLAN.md",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}
			if content == "" && planFile != "" {
				data, err := os.ReadFile(planFile)
				if err != nil {
					return cmdErr(err)
				}
				content = string(data)
			}
			if content == "" {
				return cmdErr(fmt.Errorf("--content or --plan-file is required"))
			}

			return withStore(func(s *store.Store) error {
				id, err := resolveTaskID(s, agent, taskID)
				if err != nil {
					return err
				}
				res, err := store.SubmitPlan(cmd.Context(), s, agent, id, content)
				if err != nil {
					return err
				}
				return output.PrintSuccess(res)
			})
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Task ID (default: most recent open task)")
	cmd.Flags().StringVar(&content, "content", "", "Plan markdown")
	cmd.Flags().StringVar(&planFile, "plan-file", "", "Read plan markdown from a file")
	return cmd
}

func newTaskProgressCmd() *cobra.Command {
	var (
		taskID      string
		updatesJSON string
	)

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Apply a batch of step updates to PLAN.md",
		Long: `Apply step updates to the plan. Updates are a JSON array, e.g.:
  [{"step":1,"status":"complete","time_spent":"30m"},
   {"step":2,"status":"blocked","description":"waiting on API keys"}]`,
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}
			if updatesJSON == "" {
				return cmdErr(fmt.Errorf("--updates is required"))
			}
			var updates []models.ProgressUpdate
			if err := json.Unmarshal([]byte(updatesJSON), &updates); err != nil {
				return cmdErr(fmt.Errorf("parse --updates: %w", err))
			}

			return withStore(func(s *store.Store) error {
				id, err := resolveTaskID(s, agent, taskID)
				if err != nil {
					return err
				}
				res, err := store.ReportProgress(cmd.Context(), s, agent, id, updates)
				if err != nil {
					return err
				}
				return output.PrintSuccess(res)
			})
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Task ID (default: most recent open task)")
	cmd.Flags().StringVar(&updatesJSON, "updates", "", "JSON array of step updates (required)")
	return cmd
}

func newTaskSyncCmd() *cobra.Command {
	var (
		taskID      string
		updatesJSON string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync checkbox state by step title",
		Long: `Fuzzy-match titles against plan steps and apply status changes, e.g.:
  [{"title":"write tests","status":"complete"}]`,
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}
			if updatesJSON == "" {
				return cmdErr(fmt.Errorf("--updates is required"))
			}
			var updates []models.CheckboxUpdate
			if err := json.Unmarshal([]byte(updatesJSON), &updates); err != nil {
				return cmdErr(fmt.Errorf("parse --updates: %w", err))
			}

			return withStore(func(s *store.Store) error {
				id, err := resolveTaskID(s, agent, taskID)
				if err != nil {
					return err
				}
				res, err := store.SyncTodoCheckboxes(cmd.Context(), s, agent, id, updates)
				if err != nil {
					return err
				}
				return output.PrintSuccess(res)
			})
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Task ID (default: most recent open task)")
	cmd.Flags().StringVar(&updatesJSON, "updates", "", "JSON array of title updates (required)")
	return cmd
}

func newTaskCompleteCmd() *cobra.Command {
	var (
		taskID           string
		status           string
		summary          string
		mode             string
		explanationsJSON string
	)

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Finalize a task (DONE or ERROR)",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}
			if summary == "" {
				return cmdErr(fmt.Errorf("--summary is required"))
			}
			var explanations map[string]string
			if explanationsJSON != "" {
				if err := json.Unmarshal([]byte(explanationsJSON), &explanations); err != nil {
					return cmdErr(fmt.Errorf("parse --explanations: %w", err))
				}
			}

			return withStore(func(s *store.Store) error {
				id, err := resolveTaskID(s, agent, taskID)
				if err != nil {
					return err
				}
				res, err := store.MarkComplete(cmd.Context(), s, agent, id,
					models.TerminalStatus(status), summary, models.ReconcileMode(mode), explanations)
				if err != nil {
					return err
				}
				return output.PrintSuccess(res)
			})
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Task ID (default: most recent open task)")
	cmd.Flags().StringVar(&status, "status", string(models.TerminalDone), "DONE or ERROR")
	cmd.Flags().StringVar(&summary, "summary", "", "Completion summary (required)")
	cmd.Flags().StringVar(&mode, "mode", "", "Reconciliation mode: strict|auto_complete|reconcile|force")
	cmd.Flags().StringVar(&explanationsJSON, "explanations", "", "JSON map of unchecked title -> explanation (reconcile mode)")
	return cmd
}

func newTaskMarkersCmd() *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "markers",
		Short: "Show progress markers recomputed from PLAN.md",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}

			return withStore(func(s *store.Store) error {
				id, err := resolveTaskID(s, agent, taskID)
				if err != nil {
					return err
				}
				mk, err := store.GetProgressMarkers(s, agent, id)
				if err != nil {
					return err
				}
				return output.PrintSuccess(mk)
			})
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Task ID (default: most recent open task)")
	return cmd
}

func newTaskLifecycleCmd() *cobra.Command {
	var (
		taskID          string
		includeProgress bool
	)

	cmd := &cobra.Command{
		Use:   "lifecycle",
		Short: "Show raw lifecycle file contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}

			return withStore(func(s *store.Store) error {
				id, err := resolveTaskID(s, agent, taskID)
				if err != nil {
					return err
				}
				lc, err := store.GetFullLifecycle(s, agent, id, includeProgress)
				if err != nil {
					return err
				}
				return output.PrintSuccess(lc)
			})
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Task ID (default: most recent open task)")
	cmd.Flags().BoolVar(&includeProgress, "progress", false, "Include progress markers")
	return cmd
}
