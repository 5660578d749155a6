package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dotcommander/taskcomm/internal/models"
	"github.com/dotcommander/taskcomm/internal/reconcile"
)

// MarkComplete finalizes a task. DONE completions are routed through the
// reconciliation engine first; ERROR completions bypass it entirely. The
// terminal file is written atomically under the task lease. Writing a
// terminal file while the opposite one already exists is rejected, so the
// ambiguous both-files state can only be produced by external writers.
func MarkComplete(ctx context.Context, s *Store, agent, taskID string, status models.TerminalStatus, summary string, mode models.ReconcileMode, explanations map[string]string) (*models.CompletionResult, error) {
	if err := s.requireOwnership(agent, taskID, "mark_complete"); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, &models.ValidationError{Field: "status", Value: string(status), Reason: "must be DONE or ERROR"}
	}
	if strings.TrimSpace(summary) == "" {
		return nil, &models.ValidationError{Field: "summary", Value: "", Reason: "must not be empty"}
	}
	if mode != "" && !mode.Valid() {
		return nil, &models.ValidationError{Field: "reconciliation_mode", Value: string(mode), Reason: "unknown mode"}
	}

	taskDir := s.TaskDir(agent, taskID)
	l, err := s.leases.AcquireWithRetry(ctx, taskDir, holder("mark_complete"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.leases.Release(l) }()

	opposite := ErrorFile
	if status == models.TerminalError {
		opposite = DoneFile
	}
	if fileExists(filepath.Join(taskDir, opposite)) {
		return nil, &models.ValidationError{
			Field:  "status",
			Value:  string(status),
			Reason: fmt.Sprintf("task already has %s; a task gets exactly one terminal file", opposite),
		}
	}

	result := &models.CompletionResult{Agent: agent, TaskID: taskID}

	if status == models.TerminalError {
		if err := WriteFileAtomic(filepath.Join(taskDir, ErrorFile), []byte(renderError(summary))); err != nil {
			return nil, err
		}
		result.Status = models.TaskStatusError
		result.File = ErrorFile
		s.record(ctx, "operation", agent, taskID, "mark_complete", "task errored")
		return result, nil
	}

	planText, hasPlan, err := readOptional(filepath.Join(taskDir, PlanFile))
	if err != nil {
		return nil, err
	}

	outcome := &reconcile.Outcome{Mode: mode, Plan: planText}
	if outcome.Mode == "" {
		outcome.Mode = models.ReconcileStrict
	}
	if hasPlan {
		outcome, err = reconcile.Evaluate(agent, taskID, mode, planText, explanations)
		if err != nil {
			return nil, err
		}
		if outcome.PlanRewritten {
			if err := WriteFileAtomic(filepath.Join(taskDir, PlanFile), []byte(outcome.Plan)); err != nil {
				return nil, err
			}
		}
	}

	if err := WriteFileAtomic(filepath.Join(taskDir, DoneFile), []byte(renderDone(summary, outcome))); err != nil {
		return nil, err
	}

	result.Status = models.TaskStatusCompleted
	result.File = DoneFile
	result.Mode = outcome.Mode
	result.CheckedOff = outcome.CheckedOff
	result.Variances = outcome.Variances
	result.Forced = outcome.Forced
	s.record(ctx, "operation", agent, taskID, "mark_complete",
		fmt.Sprintf("task completed (mode=%s)", outcome.Mode))
	return result, nil
}

// renderDone builds the DONE.md content: the summary, plus a variance
// report for reconcile mode or a warning banner for forced overrides.
func renderDone(summary string, outcome *reconcile.Outcome) string {
	var b strings.Builder
	b.WriteString("# Task Complete\n\n")

	if outcome.Forced {
		b.WriteString("> ⚠️ FORCED COMPLETION: plan items were left unchecked and overridden without explanation.\n\n")
	}

	b.WriteString(strings.TrimSpace(summary))
	b.WriteString("\n")

	if len(outcome.CheckedOff) > 0 {
		b.WriteString("\n## Auto-Completed Items\n\n")
		for _, title := range outcome.CheckedOff {
			b.WriteString("- " + title + "\n")
		}
	}

	if len(outcome.Variances) > 0 {
		b.WriteString("\n## Variance Report\n\nPlanned items not completed:\n\n")
		for _, v := range outcome.Variances {
			b.WriteString(fmt.Sprintf("- **%s**: %s\n", v.Title, v.Explanation))
		}
	}
	return b.String()
}

func renderError(summary string) string {
	return "# Task Error\n\n" + strings.TrimSpace(summary) + "\n"
}
