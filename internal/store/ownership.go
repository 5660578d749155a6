package store

import (
	"github.com/dotcommander/taskcomm/internal/models"
)

// ValidateOwnership reports whether the agent's directory and the specific
// task subdirectory both exist. Identity problems are errors, not false:
// an empty or whitespace-only agent fails closed with OwnershipError.
func ValidateOwnership(s *Store, agent, taskID string) (bool, error) {
	if err := validateAgent(agent); err != nil {
		return false, err
	}
	if err := validateTaskID(taskID); err != nil {
		return false, err
	}
	if !dirExists(s.AgentDir(agent)) {
		return false, nil
	}
	return dirExists(s.TaskDir(agent, taskID)), nil
}

// ValidateOwnership is the method form used internally.
func (s *Store) ValidateOwnership(agent, taskID string) (bool, error) {
	return ValidateOwnership(s, agent, taskID)
}

// ResolveCurrentTask returns the agent's most recently created open task,
// used when a caller has no current-task pointer (e.g., after a restart).
// Returns "" when the agent has no open tasks.
func ResolveCurrentTask(s *Store, agent string) (string, error) {
	tasks, err := ListTasks(s, agent)
	if err != nil {
		return "", err
	}
	current := ""
	for _, t := range tasks {
		if t.Status() == models.TaskStatusError || t.Status() == models.TaskStatusCompleted {
			continue
		}
		current = t.ID // ids sort by creation time, keep the newest
	}
	return current, nil
}
