package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/taskcomm/internal/journal"
	"github.com/dotcommander/taskcomm/internal/models"
	"github.com/dotcommander/taskcomm/internal/plan"
)

const testPlan = `# Plan

- [ ] **Write handler**
- [ ] **Add tests**
- [ ] **Update docs**
`

func readPlan(t *testing.T, s *Store, agent, taskID string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(s.TaskDir(agent, taskID), PlanFile))
	require.NoError(t, err)
	return string(data)
}

func TestSubmitPlan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustCreate(t, s, "backend", "Ship feature")

	sub, err := SubmitPlan(ctx, s, "backend", task.ID, testPlan)
	require.NoError(t, err)
	assert.False(t, sub.Updated)
	assert.Equal(t, testPlan, readPlan(t, s, "backend", task.ID))

	// Resubmitting replaces wholesale and reports Updated.
	sub, err = SubmitPlan(ctx, s, "backend", task.ID, "- [ ] **Only step**\n")
	require.NoError(t, err)
	assert.True(t, sub.Updated)
	assert.Equal(t, "- [ ] **Only step**\n", readPlan(t, s, "backend", task.ID))

	// The task is now in progress.
	tasks, err := ListTasks(s, "backend")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskStatusInProgress, tasks[0].Status())
}

func TestSubmitPlanValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustCreate(t, s, "backend", "Ship feature")

	_, err := SubmitPlan(ctx, s, "backend", task.ID, "")
	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve))

	_, err = SubmitPlan(ctx, s, "backend", "20990101T000000-missing", testPlan)
	var oe *models.OwnershipError
	require.True(t, errors.As(err, &oe))
}

func TestReportProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustCreate(t, s, "backend", "Ship feature")
	_, err := SubmitPlan(ctx, s, "backend", task.ID, testPlan)
	require.NoError(t, err)

	res, err := ReportProgress(ctx, s, "backend", task.ID, []models.ProgressUpdate{
		{Step: 1, Status: models.StepStatusComplete, TimeSpent: "30m"},
		{Step: 2, Status: models.StepStatusInProgress},
		{Step: 3, Status: models.StepStatusBlocked, Description: "docs site down"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Applied)
	assert.Empty(t, res.Warnings)

	steps := plan.Parse(readPlan(t, s, "backend", task.ID))
	require.Len(t, steps, 3)
	assert.Equal(t, models.StepStatusComplete, steps[0].Status)
	assert.Equal(t, "30m", steps[0].TimeSpent)
	assert.Equal(t, models.StepStatusInProgress, steps[1].Status)
	assert.Equal(t, models.StepStatusBlocked, steps[2].Status)
	assert.Equal(t, "docs site down", steps[2].BlockerNote)
}

func TestReportProgressUnknownStepWarnsButContinues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustCreate(t, s, "backend", "Ship feature")
	_, err := SubmitPlan(ctx, s, "backend", task.ID, testPlan)
	require.NoError(t, err)

	res, err := ReportProgress(ctx, s, "backend", task.ID, []models.ProgressUpdate{
		{Step: 9, Status: models.StepStatusComplete},
		{Step: 1, Status: models.StepStatusComplete},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "step 9 not found")

	steps := plan.Parse(readPlan(t, s, "backend", task.ID))
	assert.Equal(t, models.StepStatusComplete, steps[0].Status)
}

func TestReportProgressValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustCreate(t, s, "backend", "Ship feature")

	_, err := ReportProgress(ctx, s, "backend", task.ID, nil)
	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve))

	_, err = ReportProgress(ctx, s, "backend", task.ID, []models.ProgressUpdate{
		{Step: 1, Status: "finished"},
	})
	require.True(t, errors.As(err, &ve))

	// No plan yet: the batch needs one.
	_, err = ReportProgress(ctx, s, "backend", task.ID, []models.ProgressUpdate{
		{Step: 1, Status: models.StepStatusComplete},
	})
	var nf *models.NotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestReportProgressAnomalyJournaled(t *testing.T) {
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	s := newTestStore(t, WithJournal(j))
	ctx := context.Background()
	task := mustCreate(t, s, "backend", "Ship feature")
	_, err = SubmitPlan(ctx, s, "backend", task.ID, testPlan)
	require.NoError(t, err)

	// Far past the plan length plus the sanity margin.
	res, err := ReportProgress(ctx, s, "backend", task.ID, []models.ProgressUpdate{
		{Step: 500, Status: models.StepStatusComplete},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	require.Len(t, res.Warnings, 1)

	n, err := j.CountByKind(ctx, "backend", task.ID, journal.KindAnomaly)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReportProgressConcurrentDisjointUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustCreate(t, s, "backend", "Ship feature")
	_, err := SubmitPlan(ctx, s, "backend", task.ID, testPlan)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, step := range []int{1, 2} {
		wg.Add(1)
		go func(i, step int) {
			defer wg.Done()
			_, errs[i] = ReportProgress(ctx, s, "backend", task.ID, []models.ProgressUpdate{
				{Step: step, Status: models.StepStatusComplete},
			})
		}(i, step)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// Both updates survive: the lease serializes the read-modify-write.
	steps := plan.Parse(readPlan(t, s, "backend", task.ID))
	assert.Equal(t, models.StepStatusComplete, steps[0].Status)
	assert.Equal(t, models.StepStatusComplete, steps[1].Status)
	assert.Equal(t, models.StepStatusPending, steps[2].Status)
}

func TestReportProgressIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustCreate(t, s, "backend", "Ship feature")
	_, err := SubmitPlan(ctx, s, "backend", task.ID, testPlan)
	require.NoError(t, err)

	updates := []models.ProgressUpdate{
		{Step: 1, Status: models.StepStatusComplete, TimeSpent: "30m"},
	}
	_, err = ReportProgress(ctx, s, "backend", task.ID, updates)
	require.NoError(t, err)
	once := readPlan(t, s, "backend", task.ID)

	_, err = ReportProgress(ctx, s, "backend", task.ID, updates)
	require.NoError(t, err)
	assert.Equal(t, once, readPlan(t, s, "backend", task.ID))
}

func TestSyncTodoCheckboxes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustCreate(t, s, "backend", "Ship feature")
	_, err := SubmitPlan(ctx, s, "backend", task.ID, testPlan)
	require.NoError(t, err)

	res, err := SyncTodoCheckboxes(ctx, s, "backend", task.ID, []models.CheckboxUpdate{
		{Title: "write handler", Status: models.StepStatusComplete},
		{Title: "tests", Status: models.StepStatusInProgress},
		{Title: "nonexistent item", Status: models.StepStatusComplete},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Write handler", "Add tests"}, res.Updated)
	assert.Equal(t, []string{"nonexistent item"}, res.NotFound)

	steps := plan.Parse(readPlan(t, s, "backend", task.ID))
	assert.Equal(t, models.StepStatusComplete, steps[0].Status)
	assert.Equal(t, models.StepStatusInProgress, steps[1].Status)
	assert.Equal(t, models.StepStatusPending, steps[2].Status)
}

func TestSyncTodoCheckboxesRequiresPlan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustCreate(t, s, "backend", "Ship feature")

	_, err := SyncTodoCheckboxes(ctx, s, "backend", task.ID, []models.CheckboxUpdate{
		{Title: "anything", Status: models.StepStatusComplete},
	})
	var nf *models.NotFoundError
	require.True(t, errors.As(err, &nf))
}
