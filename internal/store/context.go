package store

import (
	"path/filepath"

	"github.com/dotcommander/taskcomm/internal/models"
	"github.com/dotcommander/taskcomm/internal/plan"
)

// GetTaskContext aggregates INIT content, the parsed plan (if present),
// terminal file contents, and progress markers. Readers take no lease and
// may observe a plan mid-write; missing optional files yield empty fields.
func GetTaskContext(s *Store, agent, taskID string) (*models.TaskContext, error) {
	if err := s.requireOwnership(agent, taskID, "get_task_context"); err != nil {
		return nil, err
	}

	dir := s.TaskDir(agent, taskID)
	task := s.statTask(agent, taskID)

	tc := &models.TaskContext{
		Agent:  agent,
		TaskID: taskID,
		Status: task.Status(),
	}

	init, ok, err := readOptional(filepath.Join(dir, InitFile))
	if err != nil {
		return nil, err
	}
	if !ok {
		// INIT.md is created with the task; its absence means the record
		// is broken, which callers need to hear about.
		return nil, &models.NotFoundError{Agent: agent, TaskID: taskID, Path: filepath.Join(dir, InitFile), Operation: "get_task_context"}
	}
	tc.Init = init

	if planText, ok, err := readOptional(filepath.Join(dir, PlanFile)); err != nil {
		return nil, err
	} else if ok {
		tc.Plan = planText
		tc.Steps = plan.Parse(planText)
		mk := plan.Markers(planText)
		tc.Markers = &mk
	}

	if done, _, err := readOptional(filepath.Join(dir, DoneFile)); err != nil {
		return nil, err
	} else {
		tc.Done = done
	}
	if errText, _, err := readOptional(filepath.Join(dir, ErrorFile)); err != nil {
		return nil, err
	} else {
		tc.Error = errText
	}

	return tc, nil
}

// GetProgressMarkers recomputes progress counters from the current plan
// parse on every call. A task without a plan yields zero markers.
func GetProgressMarkers(s *Store, agent, taskID string) (*models.ProgressMarkers, error) {
	if err := s.requireOwnership(agent, taskID, "get_progress_markers"); err != nil {
		return nil, err
	}

	planText, ok, err := readOptional(filepath.Join(s.TaskDir(agent, taskID), PlanFile))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &models.ProgressMarkers{}, nil
	}
	mk := plan.Markers(planText)
	return &mk, nil
}

// GetFullLifecycle returns raw init/plan/done contents plus derived
// status. Progress markers are parsed only when includeProgress is set.
func GetFullLifecycle(s *Store, agent, taskID string, includeProgress bool) (*models.Lifecycle, error) {
	if err := s.requireOwnership(agent, taskID, "get_full_lifecycle"); err != nil {
		return nil, err
	}

	dir := s.TaskDir(agent, taskID)
	task := s.statTask(agent, taskID)

	lc := &models.Lifecycle{
		Agent:  agent,
		TaskID: taskID,
		Status: task.Status(),
	}

	init, ok, err := readOptional(filepath.Join(dir, InitFile))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &models.NotFoundError{Agent: agent, TaskID: taskID, Path: filepath.Join(dir, InitFile), Operation: "get_full_lifecycle"}
	}
	lc.Init = init

	planText, hasPlan, err := readOptional(filepath.Join(dir, PlanFile))
	if err != nil {
		return nil, err
	}
	lc.Plan = planText

	if done, _, err := readOptional(filepath.Join(dir, DoneFile)); err != nil {
		return nil, err
	} else {
		lc.Done = done
	}

	if includeProgress && hasPlan {
		mk := plan.Markers(planText)
		lc.Markers = &mk
	}
	return lc, nil
}
