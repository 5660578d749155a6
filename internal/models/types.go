package models

import "time"

// ID Strategy:
// - Task IDs are sortable, time-derived strings unique per agent
//   (e.g., "20260827T101500-fix-login-flow"). Lexicographic order matches
//   creation order, which keeps directory listings chronological.
// - Connection IDs are random UUIDs (process-local, never persisted).

// TaskStatus represents the derived state of a task. It is never stored;
// it is computed from which lifecycle files exist in the task directory.
type TaskStatus string

// Task status constants.
const (
	TaskStatusNew        TaskStatus = "new"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusError      TaskStatus = "error"
)

// IsTerminal returns true if the task has reached a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusError
}

// StepStatus represents the state of a single plan step.
type StepStatus string

// Step status constants.
const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusBlocked    StepStatus = "blocked"
	StepStatusComplete   StepStatus = "complete"
)

// Valid returns true if s is a known step status.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusPending, StepStatusInProgress, StepStatusBlocked, StepStatusComplete:
		return true
	}
	return false
}

// TerminalStatus selects which terminal file MarkComplete writes.
type TerminalStatus string

// Terminal status constants.
const (
	TerminalDone  TerminalStatus = "DONE"
	TerminalError TerminalStatus = "ERROR"
)

// Valid returns true if s is a known terminal status.
func (s TerminalStatus) Valid() bool {
	return s == TerminalDone || s == TerminalError
}

// ReconcileMode governs how MarkComplete treats unchecked plan items.
type ReconcileMode string

// Reconciliation modes, strictest first.
const (
	ReconcileStrict       ReconcileMode = "strict"
	ReconcileAutoComplete ReconcileMode = "auto_complete"
	ReconcileVariance     ReconcileMode = "reconcile"
	ReconcileForce        ReconcileMode = "force"
)

// Valid returns true if m is a known reconciliation mode.
func (m ReconcileMode) Valid() bool {
	switch m {
	case ReconcileStrict, ReconcileAutoComplete, ReconcileVariance, ReconcileForce:
		return true
	}
	return false
}

// Task describes a task directory's lifecycle file flags.
// Status is derived, never written.
type Task struct {
	Agent     string    `json:"agent"`
	ID        string    `json:"id"`
	HasInit   bool      `json:"has_init"`
	HasPlan   bool      `json:"has_plan"`
	HasDone   bool      `json:"has_done"`
	HasError  bool      `json:"has_error"`
	CreatedAt time.Time `json:"created_at"`
}

// Status derives the task status from lifecycle file presence.
// ERROR wins over DONE when both exist (ambiguous trees are tolerated).
func (t *Task) Status() TaskStatus {
	switch {
	case t.HasError:
		return TaskStatusError
	case t.HasDone:
		return TaskStatusCompleted
	case t.HasPlan:
		return TaskStatusInProgress
	default:
		return TaskStatusNew
	}
}

// PlanStep is one checkbox line of a plan, extracted at parse time.
// Steps are ephemeral: every progress update re-parses the whole plan.
type PlanStep struct {
	Index              int        `json:"index"` // 1-based, parse order
	Title              string     `json:"title"`
	Status             StepStatus `json:"status"`
	TimeSpent          string     `json:"time_spent,omitempty"`
	EstimatedRemaining string     `json:"estimated_remaining,omitempty"`
	BlockerNote        string     `json:"blocker_note,omitempty"`
}

// ProgressMarkers summarizes plan completion, recomputed on every call.
type ProgressMarkers struct {
	TotalSteps      int `json:"total_steps"`
	CompletedSteps  int `json:"completed_steps"`
	InProgressSteps int `json:"in_progress_steps"`
	BlockedSteps    int `json:"blocked_steps"`
	Progress        int `json:"progress"` // completed/total*100, rounded; 0 when no steps
}

// TaskContext aggregates everything known about a task.
// Missing optional files yield empty fields, not errors.
type TaskContext struct {
	Agent   string           `json:"agent"`
	TaskID  string           `json:"task_id"`
	Status  TaskStatus       `json:"status"`
	Init    string           `json:"init"`
	Plan    string           `json:"plan,omitempty"`
	Steps   []PlanStep       `json:"steps,omitempty"`
	Done    string           `json:"done,omitempty"`
	Error   string           `json:"error,omitempty"`
	Markers *ProgressMarkers `json:"markers,omitempty"`
}

// Lifecycle is the raw-content view of a task: init/plan/done text plus
// derived status. Markers are included only when explicitly requested,
// to avoid needless plan parsing.
type Lifecycle struct {
	Agent   string           `json:"agent"`
	TaskID  string           `json:"task_id"`
	Status  TaskStatus       `json:"status"`
	Init    string           `json:"init"`
	Plan    string           `json:"plan,omitempty"`
	Done    string           `json:"done,omitempty"`
	Markers *ProgressMarkers `json:"markers,omitempty"`
}

// ProgressUpdate is one entry of a ReportProgress batch.
// Step is a 1-based plan index.
type ProgressUpdate struct {
	Step               int        `json:"step"`
	Status             StepStatus `json:"status"`
	Description        string     `json:"description,omitempty"`
	TimeSpent          string     `json:"time_spent,omitempty"`
	EstimatedRemaining string     `json:"estimated_remaining,omitempty"`
}

// ProgressResult reports the outcome of a ReportProgress batch.
// Unresolvable updates become warnings; the batch itself still succeeds.
type ProgressResult struct {
	Success  bool     `json:"success"`
	Applied  int      `json:"applied"`
	Warnings []string `json:"warnings,omitempty"`
}

// PlanSubmission reports whether SubmitPlan replaced an existing plan.
type PlanSubmission struct {
	Updated bool `json:"updated"`
}

// CheckboxUpdate is one entry of a SyncTodoCheckboxes batch, matched
// against plan step titles rather than indices.
type CheckboxUpdate struct {
	Title  string     `json:"title"`
	Status StepStatus `json:"status"`
}

// SyncResult reports which titles matched and which did not.
type SyncResult struct {
	Updated  []string `json:"updated"`
	NotFound []string `json:"not_found,omitempty"`
}

// Variance maps an unchecked plan title to the caller's explanation,
// used by reconcile-mode completion.
type Variance struct {
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
}

// CompletionResult describes a finalized task.
type CompletionResult struct {
	Agent      string        `json:"agent"`
	TaskID     string        `json:"task_id"`
	Status     TaskStatus    `json:"status"`
	File       string        `json:"file"` // DONE.md or ERROR.md
	Mode       ReconcileMode `json:"mode,omitempty"`
	CheckedOff []string      `json:"checked_off,omitempty"` // titles auto_complete checked
	Variances  []Variance    `json:"variances,omitempty"`
	Forced     bool          `json:"forced,omitempty"`
}
