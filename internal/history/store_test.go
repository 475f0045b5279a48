package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRecordAndRecent(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	require.NoError(t, store.Record(ctx, Run{
		JobID:      "job-1",
		Latest:     "v2.4.7",
		Versions:   []string{"master", "v3.0.0", "v2.4.7"},
		Outcome:    "success",
		StartedAt:  time.Now().Add(-time.Minute),
		DurationMS: 1234,
	}))
	require.NoError(t, store.Record(ctx, Run{
		JobID:      "job-2",
		Latest:     "v2.4.7",
		Versions:   []string{"master"},
		Outcome:    "failed",
		Error:      "builder exited 2",
		StartedAt:  time.Now(),
		DurationMS: 42,
	}))

	runs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, "job-2", runs[0].JobID)
	assert.Equal(t, "failed", runs[0].Outcome)
	assert.Equal(t, "builder exited 2", runs[0].Error)
	assert.Equal(t, []string{"master", "v3.0.0", "v2.4.7"}, runs[1].Versions)
}

func TestStoreRecentLimit(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, Run{
			JobID: "job", Latest: "v1.0.0", Versions: []string{"v1.0.0"},
			Outcome: "success", StartedAt: time.Now(),
		}))
	}

	runs, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}
