package models

import (
	"fmt"
	"strings"
)

// RecoverableError is implemented by enriched errors that carry structured
// context and remediation hints. The store, archive, and output layers use
// this interface to avoid an import cycle.
type RecoverableError interface {
	error
	ErrorCode() string
	Context() map[string]string
	SuggestedAction() string
}

// OwnershipError reports an invalid or mismatched agent/task identity.
// Ownership checks fail closed: a malformed agent is an error, never a
// false result.
type OwnershipError struct {
	Agent  string
	TaskID string
	Reason string
}

func (e *OwnershipError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("ownership check failed for agent %q: %s", e.Agent, e.Reason)
	}
	return fmt.Sprintf("ownership check failed for agent %q task %q: %s", e.Agent, e.TaskID, e.Reason)
}

func (e *OwnershipError) ErrorCode() string { return "OWNERSHIP" }

func (e *OwnershipError) Context() map[string]string {
	return map[string]string{"agent": e.Agent, "task_id": e.TaskID, "reason": e.Reason}
}

func (e *OwnershipError) SuggestedAction() string {
	return "verify the agent name and task id; create the task first if it does not exist"
}

func (e *OwnershipError) SlogAttrs() []any {
	return []any{"agent", e.Agent, "task_id", e.TaskID, "reason", e.Reason}
}

// DuplicateTaskError reports that an equivalent open task already exists
// for the agent. Callers may force creation to bypass the check.
type DuplicateTaskError struct {
	Agent      string
	TaskName   string
	ExistingID string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("agent %q already has an open task for %q (%s)", e.Agent, e.TaskName, e.ExistingID)
}

func (e *DuplicateTaskError) ErrorCode() string { return "DUPLICATE_TASK" }

func (e *DuplicateTaskError) Context() map[string]string {
	return map[string]string{"agent": e.Agent, "task_name": e.TaskName, "existing_id": e.ExistingID}
}

func (e *DuplicateTaskError) SuggestedAction() string {
	return "continue the existing task, or pass force to create a new one"
}

// IncompletePlanError is the strict-mode reconciliation rejection.
// It carries the titles of every unchecked plan item.
type IncompletePlanError struct {
	Agent     string
	TaskID    string
	Unchecked []string
}

func (e *IncompletePlanError) Error() string {
	return fmt.Sprintf("task %s/%s has %d unchecked plan item(s): %s",
		e.Agent, e.TaskID, len(e.Unchecked), strings.Join(e.Unchecked, "; "))
}

func (e *IncompletePlanError) ErrorCode() string { return "INCOMPLETE_PLAN" }

func (e *IncompletePlanError) Context() map[string]string {
	return map[string]string{
		"agent":     e.Agent,
		"task_id":   e.TaskID,
		"unchecked": strings.Join(e.Unchecked, "; "),
	}
}

func (e *IncompletePlanError) SuggestedAction() string {
	return "check off the remaining items, or complete with auto_complete/reconcile/force"
}

// NotFoundError reports a required file or directory that was absent.
// Optional reads (PLAN/DONE/ERROR presence probes) never produce this.
type NotFoundError struct {
	Agent     string
	TaskID    string
	Path      string
	Operation string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: required path missing for task %s/%s: %s", e.Operation, e.Agent, e.TaskID, e.Path)
}

func (e *NotFoundError) ErrorCode() string { return "NOT_FOUND" }

func (e *NotFoundError) Context() map[string]string {
	return map[string]string{
		"agent":     e.Agent,
		"task_id":   e.TaskID,
		"path":      e.Path,
		"operation": e.Operation,
	}
}

func (e *NotFoundError) SuggestedAction() string {
	return "confirm the task id; the task may have been archived"
}

// ValidationError reports malformed input rejected before any filesystem
// mutation is attempted.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) ErrorCode() string { return "VALIDATION" }

func (e *ValidationError) Context() map[string]string {
	return map[string]string{"field": e.Field, "value": e.Value, "reason": e.Reason}
}

func (e *ValidationError) SuggestedAction() string {
	return "fix the request input and retry"
}

func (e *ValidationError) SlogAttrs() []any {
	return []any{"field", e.Field, "invalid_value", e.Value, "reason", e.Reason}
}
