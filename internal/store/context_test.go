package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/taskcomm/internal/models"
)

func TestGetTaskContextNewTask(t *testing.T) {
	s := newTestStore(t)
	task := mustCreate(t, s, "backend", "Ship feature")

	tc, err := GetTaskContext(s, "backend", task.ID)
	require.NoError(t, err)

	assert.Equal(t, "backend", tc.Agent)
	assert.Equal(t, task.ID, tc.TaskID)
	assert.Equal(t, models.TaskStatusNew, tc.Status)
	assert.Contains(t, tc.Init, "Ship feature")
	assert.Empty(t, tc.Plan)
	assert.Nil(t, tc.Steps)
	assert.Nil(t, tc.Markers)
}

func TestGetTaskContextWithPlanAndDone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustCreate(t, s, "backend", "Ship feature")

	_, err := SubmitPlan(ctx, s, "backend", task.ID, "- [x] **One**\n- [ ] **Two**\n")
	require.NoError(t, err)
	_, err = MarkComplete(ctx, s, "backend", task.ID, models.TerminalDone, "Wrapped up.", models.ReconcileAutoComplete, nil)
	require.NoError(t, err)

	tc, err := GetTaskContext(s, "backend", task.ID)
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusCompleted, tc.Status)
	require.Len(t, tc.Steps, 2)
	require.NotNil(t, tc.Markers)
	assert.Equal(t, 2, tc.Markers.TotalSteps)
	assert.Equal(t, 100, tc.Markers.Progress)
	assert.Contains(t, tc.Done, "Wrapped up.")
	assert.Empty(t, tc.Error)
}

func TestGetTaskContextMissingInit(t *testing.T) {
	s := newTestStore(t)
	task := mustCreate(t, s, "backend", "Ship feature")
	require.NoError(t, os.Remove(filepath.Join(s.TaskDir("backend", task.ID), InitFile)))

	_, err := GetTaskContext(s, "backend", task.ID)
	var nf *models.NotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestGetTaskContextUnknownTask(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, "backend", "Ship feature")

	_, err := GetTaskContext(s, "backend", "20990101T000000-missing")
	var oe *models.OwnershipError
	require.True(t, errors.As(err, &oe))
}

func TestGetProgressMarkers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustCreate(t, s, "backend", "Ship feature")

	// No plan: zero markers, not an error.
	mk, err := GetProgressMarkers(s, "backend", task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, mk.TotalSteps)

	_, err = SubmitPlan(ctx, s, "backend", task.ID, "- [x] **One**\n- [ ] **Two** 🔄\n- [ ] **Three**\n")
	require.NoError(t, err)

	mk, err = GetProgressMarkers(s, "backend", task.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, mk.TotalSteps)
	assert.Equal(t, 1, mk.CompletedSteps)
	assert.Equal(t, 1, mk.InProgressSteps)
	assert.Equal(t, 33, mk.Progress)
}

func TestGetFullLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustCreate(t, s, "backend", "Ship feature")
	_, err := SubmitPlan(ctx, s, "backend", task.ID, "- [x] **Only**\n")
	require.NoError(t, err)
	_, err = MarkComplete(ctx, s, "backend", task.ID, models.TerminalDone, "Finished.", models.ReconcileStrict, nil)
	require.NoError(t, err)

	lc, err := GetFullLifecycle(s, "backend", task.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, lc.Status)
	assert.NotEmpty(t, lc.Init)
	assert.NotEmpty(t, lc.Plan)
	assert.Contains(t, lc.Done, "Finished.")
	assert.Nil(t, lc.Markers)

	lc, err = GetFullLifecycle(s, "backend", task.ID, true)
	require.NoError(t, err)
	require.NotNil(t, lc.Markers)
	assert.Equal(t, 100, lc.Markers.Progress)
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.md")
	require.NoError(t, WriteFileAtomic(path, []byte("hello")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Overwrite keeps the same guarantee.
	require.NoError(t, WriteFileAtomic(path, []byte("replaced")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(data))
}
