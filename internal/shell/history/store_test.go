package history

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/shipway/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(project string, code int) domain.RunResult {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.RunResult{
		RunID:      "run-" + project,
		Project:    project,
		ExitCode:   code,
		Message:    "done",
		StartedAt:  now.Add(-time.Minute),
		FinishedAt: now,
	}
}

// =============================================================================
// Store Tests
// =============================================================================

func TestOpen_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRecordRun_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result := sampleResult("my-app", 0)
	result.Stage = ""
	require.NoError(t, s.RecordRun(ctx, result))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "my-app", runs[0].Project)
	assert.Equal(t, 0, runs[0].ExitCode)
	assert.True(t, runs[0].Success())
}

func TestRecordRun_FailureOutcome(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result := sampleResult("my-app", domain.ExitTransferFailed)
	result.Stage = domain.StageTransfer
	require.NoError(t, s.RecordRun(ctx, result))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.StageTransfer, runs[0].Stage)
	assert.False(t, runs[0].Success())
}

func TestListRuns_NewestFirstAndLimited(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		r := sampleResult("app", 0)
		r.RunID = string(rune('a' + i))
		r.StartedAt = base.Add(time.Duration(i) * time.Minute)
		r.FinishedAt = r.StartedAt.Add(30 * time.Second)
		require.NoError(t, s.RecordRun(ctx, r))
	}

	runs, err := s.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "e", runs[0].RunID)
	assert.Equal(t, "d", runs[1].RunID)
}
