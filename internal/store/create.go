package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dotcommander/taskcomm/internal/models"
)

// taskIDTimeLayout keeps ids lexicographically sortable by creation time.
const taskIDTimeLayout = "20060102T150405"

var slugCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

// CreateTask creates a task directory for the agent and writes INIT.md
// atomically. Unless force is set, an existing open task with the same
// slug fails with DuplicateTaskError. The duplicate scan is best-effort:
// scan failures are journaled as warnings, never fatal.
func CreateTask(ctx context.Context, s *Store, agent, taskName, initContent string, force bool) (*models.Task, error) {
	if err := validateAgent(agent); err != nil {
		return nil, err
	}
	if strings.TrimSpace(taskName) == "" {
		return nil, &models.ValidationError{Field: "task_name", Value: taskName, Reason: "must not be empty"}
	}
	if strings.TrimSpace(initContent) == "" {
		return nil, &models.ValidationError{Field: "init_content", Value: "", Reason: "must not be empty"}
	}

	slug := Slugify(taskName)
	if !force {
		if existing, err := s.findOpenTaskBySlug(agent, slug); err != nil {
			s.record(ctx, "warning", agent, "", "create_task", fmt.Sprintf("duplicate scan failed: %v", err))
		} else if existing != "" {
			return nil, &models.DuplicateTaskError{Agent: agent, TaskName: taskName, ExistingID: existing}
		}
	}

	taskID := s.newTaskID(agent, slug)
	taskDir := s.TaskDir(agent, taskID)
	if err := os.MkdirAll(taskDir, 0o750); err != nil {
		return nil, fmt.Errorf("create task directory: %w", err)
	}
	if err := WriteFileAtomic(filepath.Join(taskDir, InitFile), []byte(initContent)); err != nil {
		return nil, err
	}

	s.record(ctx, "operation", agent, taskID, "create_task", "task created: "+taskName)

	return &models.Task{
		Agent:     agent,
		ID:        taskID,
		HasInit:   true,
		CreatedAt: s.now(),
	}, nil
}

// Slugify lowercases the task name and collapses everything outside
// [a-z0-9] into single dashes.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugCleanRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "task"
	}
	return slug
}

// newTaskID combines a sortable UTC timestamp with the slug. On the rare
// same-second collision, a numeric suffix disambiguates.
func (s *Store) newTaskID(agent, slug string) string {
	base := s.now().UTC().Format(taskIDTimeLayout) + "-" + slug
	taskID := base
	for i := 2; dirExists(s.TaskDir(agent, taskID)); i++ {
		taskID = fmt.Sprintf("%s-%d", base, i)
	}
	return taskID
}

// findOpenTaskBySlug scans the agent's tasks for a non-terminal task
// whose id carries the same slug. Returns "" when none match.
func (s *Store) findOpenTaskBySlug(agent, slug string) (string, error) {
	tasks, err := ListTasks(s, agent)
	if err != nil {
		return "", err
	}
	suffix := "-" + slug
	for _, t := range tasks {
		if t.Status().IsTerminal() {
			continue
		}
		if strings.HasSuffix(t.ID, suffix) || strings.Contains(t.ID, suffix+"-") {
			return t.ID, nil
		}
	}
	return "", nil
}

// ListTasks enumerates an agent's tasks, sorted by id (creation order).
// A missing agent directory yields an empty list.
func ListTasks(s *Store, agent string) ([]models.Task, error) {
	if err := validateAgent(agent); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.AgentDir(agent))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agent directory: %w", err)
	}

	var tasks []models.Task
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		tasks = append(tasks, s.statTask(agent, e.Name()))
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// ListAgents enumerates agents with at least one task directory.
func ListAgents(s *Store) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read comm root: %w", err)
	}
	var agents []string
	for _, e := range entries {
		if e.IsDir() {
			agents = append(agents, e.Name())
		}
	}
	sort.Strings(agents)
	return agents, nil
}

// statTask probes the four lifecycle files. CreatedAt comes from INIT.md's
// modification time; INIT.md is written once, so this is stable.
func (s *Store) statTask(agent, taskID string) models.Task {
	dir := s.TaskDir(agent, taskID)
	t := models.Task{
		Agent:    agent,
		ID:       taskID,
		HasInit:  fileExists(filepath.Join(dir, InitFile)),
		HasPlan:  fileExists(filepath.Join(dir, PlanFile)),
		HasDone:  fileExists(filepath.Join(dir, DoneFile)),
		HasError: fileExists(filepath.Join(dir, ErrorFile)),
	}
	if info, err := os.Stat(filepath.Join(dir, InitFile)); err == nil {
		t.CreatedAt = info.ModTime()
	}
	return t
}
