package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndTail(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, KindOperation, "backend", "t1", "create_task", "task created"))
	require.NoError(t, j.Record(ctx, KindWarning, "backend", "t1", "report_progress", "step 9 not found"))
	require.NoError(t, j.Record(ctx, KindAnomaly, "backend", "t1", "report_progress", "step 500 outside sane range"))

	entries, err := j.Tail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Newest first.
	assert.Equal(t, KindAnomaly, entries[0].Kind)
	assert.Equal(t, KindWarning, entries[1].Kind)
	assert.Equal(t, KindOperation, entries[2].Kind)

	assert.Equal(t, "backend", entries[0].Agent)
	assert.Equal(t, "t1", entries[0].TaskID)
	assert.Equal(t, "report_progress", entries[0].Operation)
	assert.False(t, entries[0].CreatedAt.IsZero())
	assert.Greater(t, entries[0].ID, entries[2].ID)
}

func TestTailLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, KindOperation, "backend", "t1", "op", "m"))
	}

	entries, err := j.Tail(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Non-positive limits fall back to the default.
	entries, err = j.Tail(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestCountByKind(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, KindAnomaly, "backend", "t1", "op", "m"))
	require.NoError(t, j.Record(ctx, KindAnomaly, "backend", "t1", "op", "m"))
	require.NoError(t, j.Record(ctx, KindAnomaly, "backend", "t2", "op", "m"))
	require.NoError(t, j.Record(ctx, KindWarning, "backend", "t1", "op", "m"))

	n, err := j.CountByKind(ctx, "backend", "t1", KindAnomaly)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = j.CountByKind(ctx, "backend", "t1", KindWarning)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = j.CountByKind(ctx, "ghost", "t1", KindAnomaly)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNilJournalIsSafe(t *testing.T) {
	var j *Journal
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, KindOperation, "a", "t", "op", "m"))

	entries, err := j.Tail(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, entries)

	n, err := j.CountByKind(ctx, "a", "t", KindOperation)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, j.Close())
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Record(context.Background(), KindOperation, "a", "t", "op", "m"))
	assert.FileExists(t, path)
}

func TestOpenIsIdempotentAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), KindOperation, "a", "t", "op", "first"))
	require.NoError(t, j.Close())

	// Reopening runs migrations again without error and keeps old rows.
	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Tail(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "first", entries[0].Message)
}

func TestNormalizeDSN(t *testing.T) {
	assert.Equal(t, "file:/tmp/x.db?mode=rwc", normalizeDSN("/tmp/x.db"))
	assert.Equal(t, "file::memory:?cache=shared", normalizeDSN(":memory:"))
	assert.Equal(t, "file:custom?mode=ro", normalizeDSN("file:custom?mode=ro"))
}
