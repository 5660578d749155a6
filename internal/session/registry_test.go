package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()

	conn := r.Register("backend", map[string]string{"version": "1.2"})
	assert.NotEmpty(t, conn.ID)
	assert.Equal(t, "backend", conn.Agent)
	assert.False(t, conn.StartTime.IsZero())

	got, ok := r.Get(conn.ID)
	require.True(t, ok)
	assert.Equal(t, conn.ID, got.ID)
	assert.Equal(t, "1.2", got.Metadata["version"])

	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	r := NewRegistry()
	conn := r.Register("backend", map[string]string{"k": "v"})

	got, ok := r.Get(conn.ID)
	require.True(t, ok)
	got.Metadata["k"] = "mutated"

	again, ok := r.Get(conn.ID)
	require.True(t, ok)
	assert.Equal(t, "v", again.Metadata["k"])
}

func TestCurrentTaskPointer(t *testing.T) {
	r := NewRegistry()
	conn := r.Register("backend", nil)

	taskID, err := r.CurrentTask(conn.ID)
	require.NoError(t, err)
	assert.Empty(t, taskID)

	require.NoError(t, r.SetCurrentTask(conn.ID, "20260101T120000-fix-auth"))
	taskID, err = r.CurrentTask(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "20260101T120000-fix-auth", taskID)

	// Clearing.
	require.NoError(t, r.SetCurrentTask(conn.ID, ""))
	taskID, err = r.CurrentTask(conn.ID)
	require.NoError(t, err)
	assert.Empty(t, taskID)

	assert.ErrorIs(t, r.SetCurrentTask("unknown", "x"), ErrNotFound)
	_, err = r.CurrentTask("unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetMetadata(t *testing.T) {
	r := NewRegistry()
	conn := r.Register("backend", nil)

	require.NoError(t, r.SetMetadata(conn.ID, "model", "large"))
	got, ok := r.Get(conn.ID)
	require.True(t, ok)
	assert.Equal(t, "large", got.Metadata["model"])

	assert.ErrorIs(t, r.SetMetadata("unknown", "k", "v"), ErrNotFound)
}

func TestRemove(t *testing.T) {
	r := NewRegistry()
	conn := r.Register("backend", nil)

	assert.True(t, r.Remove(conn.ID))
	assert.False(t, r.Remove(conn.ID))
	assert.Equal(t, 0, r.Len())
}

func TestByAgentSorted(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	current := base
	r := NewRegistry(WithClock(func() time.Time { return current }))

	r.Register("other", nil)
	c1 := r.Register("backend", nil)
	current = base.Add(time.Minute)
	c2 := r.Register("backend", nil)

	conns := r.ByAgent("backend")
	require.Len(t, conns, 2)
	assert.Equal(t, c1.ID, conns[0].ID)
	assert.Equal(t, c2.ID, conns[1].ID)

	assert.Empty(t, r.ByAgent("missing"))
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := r.Register("backend", nil)
			_ = r.SetCurrentTask(conn.ID, fmt.Sprintf("task-%d", i))
			_, _ = r.CurrentTask(conn.ID)
			_ = r.ByAgent("backend")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, r.Len())
}
