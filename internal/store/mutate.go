package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dotcommander/taskcomm/internal/models"
	"github.com/dotcommander/taskcomm/internal/plan"
)

// stepSanityMargin bounds how far past the plan length a step reference
// can point before it is journaled as an anomaly. Anomalous updates are
// still processed, not rejected: availability over strict validation.
const stepSanityMargin = 50

// SubmitPlan overwrites the plan file wholesale while holding the task
// lease. Updated reports whether a prior plan existed.
func SubmitPlan(ctx context.Context, s *Store, agent, taskID, planMarkdown string) (*models.PlanSubmission, error) {
	if err := s.requireOwnership(agent, taskID, "submit_plan"); err != nil {
		return nil, err
	}
	if planMarkdown == "" {
		return nil, &models.ValidationError{Field: "plan", Value: "", Reason: "must not be empty"}
	}

	taskDir := s.TaskDir(agent, taskID)
	l, err := s.leases.AcquireWithRetry(ctx, taskDir, holder("submit_plan"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.leases.Release(l) }()

	planPath := filepath.Join(taskDir, PlanFile)
	updated := fileExists(planPath)
	if err := WriteFileAtomic(planPath, []byte(planMarkdown)); err != nil {
		return nil, err
	}

	s.record(ctx, "operation", agent, taskID, "submit_plan",
		fmt.Sprintf("plan written (%d steps, updated=%v)", len(plan.Parse(planMarkdown)), updated))
	return &models.PlanSubmission{Updated: updated}, nil
}

// ReportProgress applies a batch of step updates under the task lease.
// Updates that cannot be resolved to a parsed step become warnings and
// the rest of the batch continues; the plan is re-read after lease
// acquisition so concurrent batches never overwrite each other.
func ReportProgress(ctx context.Context, s *Store, agent, taskID string, updates []models.ProgressUpdate) (*models.ProgressResult, error) {
	if err := s.requireOwnership(agent, taskID, "report_progress"); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, &models.ValidationError{Field: "updates", Value: "", Reason: "at least one update is required"}
	}
	for _, u := range updates {
		if !u.Status.Valid() {
			return nil, &models.ValidationError{Field: "status", Value: string(u.Status), Reason: "unknown step status"}
		}
	}

	taskDir := s.TaskDir(agent, taskID)
	l, err := s.leases.AcquireWithRetry(ctx, taskDir, holder("report_progress"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.leases.Release(l) }()

	planPath := filepath.Join(taskDir, PlanFile)
	planText, ok, err := readOptional(planPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &models.NotFoundError{Agent: agent, TaskID: taskID, Path: planPath, Operation: "report_progress"}
	}

	total := len(plan.Parse(planText))
	result := &models.ProgressResult{Success: true}
	for _, u := range updates {
		if u.Step < 1 || u.Step > total+stepSanityMargin {
			s.record(ctx, "anomaly", agent, taskID, "report_progress",
				fmt.Sprintf("step %d outside sane range for a %d-step plan", u.Step, total))
		}

		out, found := plan.ApplyUpdate(planText, u.Step, plan.Update{
			Status:             u.Status,
			TimeSpent:          u.TimeSpent,
			EstimatedRemaining: u.EstimatedRemaining,
			BlockerNote:        u.Description,
		})
		if !found {
			w := fmt.Sprintf("step %d not found (plan has %d steps)", u.Step, total)
			result.Warnings = append(result.Warnings, w)
			s.record(ctx, "warning", agent, taskID, "report_progress", w)
			continue
		}
		planText = out
		result.Applied++
	}

	if result.Applied > 0 {
		if err := WriteFileAtomic(planPath, []byte(planText)); err != nil {
			return nil, err
		}
	}

	s.record(ctx, "operation", agent, taskID, "report_progress",
		fmt.Sprintf("applied %d/%d updates", result.Applied, len(updates)))
	return result, nil
}

// SyncTodoCheckboxes fuzzy-matches update titles against plan step titles
// (case-insensitive exact or substring) and applies status changes for the
// matches. Unmatched titles are collected in NotFound without failing.
func SyncTodoCheckboxes(ctx context.Context, s *Store, agent, taskID string, updates []models.CheckboxUpdate) (*models.SyncResult, error) {
	if err := s.requireOwnership(agent, taskID, "sync_todo_checkboxes"); err != nil {
		return nil, err
	}
	for _, u := range updates {
		if !u.Status.Valid() {
			return nil, &models.ValidationError{Field: "status", Value: string(u.Status), Reason: "unknown step status"}
		}
	}

	taskDir := s.TaskDir(agent, taskID)
	l, err := s.leases.AcquireWithRetry(ctx, taskDir, holder("sync_todo_checkboxes"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.leases.Release(l) }()

	planPath := filepath.Join(taskDir, PlanFile)
	planText, ok, err := readOptional(planPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &models.NotFoundError{Agent: agent, TaskID: taskID, Path: planPath, Operation: "sync_todo_checkboxes"}
	}

	result := &models.SyncResult{}
	dirty := false
	for _, u := range updates {
		out, matched, found := plan.ApplyTitleUpdate(planText, u.Title, u.Status)
		if !found {
			result.NotFound = append(result.NotFound, u.Title)
			continue
		}
		planText = out
		dirty = true
		result.Updated = append(result.Updated, matched)
	}

	if dirty {
		if err := WriteFileAtomic(planPath, []byte(planText)); err != nil {
			return nil, err
		}
	}

	if len(result.NotFound) > 0 {
		s.record(ctx, "warning", agent, taskID, "sync_todo_checkboxes",
			fmt.Sprintf("%d title(s) did not match any plan step", len(result.NotFound)))
	}
	s.record(ctx, "operation", agent, taskID, "sync_todo_checkboxes",
		fmt.Sprintf("updated %d checkbox(es)", len(result.Updated)))
	return result, nil
}
