package remediation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/remedyd/internal/store"
	"github.com/fyrsmithlabs/remedyd/internal/track"
)

func seedTasks(t *testing.T, f *fixture, records map[string]map[string]string) {
	t.Helper()
	ctx := context.Background()
	for id, rec := range records {
		require.NoError(t, f.store.Put(ctx, store.TaskKey(id), rec))
	}
}

func TestSweepTasks_RemediatesFailedAndStuck(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tracker := track.NewTracker(30*time.Minute, nil)

	stale := time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339)
	seedTasks(t, f, map[string]map[string]string{
		"1": {track.FieldStatus: "completed"},
		"2": {
			track.FieldStatus:     "failed",
			track.FieldStage:      "review",
			track.FieldError:      "status checks failed",
			track.FieldRepository: "acme/widgets",
			track.FieldPRNumber:   "7",
		},
		"3": {
			track.FieldStatus:      "in_progress",
			track.FieldStage:       "implement",
			track.FieldLastUpdated: stale,
		},
	})

	require.NoError(t, f.svc.SweepTasks(ctx, tracker))

	// One corrective job per task needing remediation; the completed task
	// spawns nothing.
	require.Len(t, f.runner.Submitted(), 2)

	failed := f.unit(t, "task-failed:task-2")
	assert.Equal(t, StatusInProgress, failed.Status)
	assert.Equal(t, 2, failed.TaskID)
	assert.Equal(t, "acme/widgets", failed.Repository)
	assert.Equal(t, 7, failed.PRNumber)

	stuck := f.unit(t, "task-stuck:task-3")
	assert.Equal(t, StatusInProgress, stuck.Status)
	assert.Equal(t, 3, stuck.TaskID)

	// The task records now carry their corrective jobs.
	rec, err := f.store.Get(ctx, store.TaskKey("2"))
	require.NoError(t, err)
	assert.Equal(t, failed.JobName, rec[track.FieldRemediation])

	rec, err = f.store.Get(ctx, store.TaskKey("3"))
	require.NoError(t, err)
	assert.Equal(t, stuck.JobName, rec[track.FieldRemediation])
}

func TestSweepTasks_SecondSweepIsAbsorbed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tracker := track.NewTracker(30*time.Minute, nil)

	seedTasks(t, f, map[string]map[string]string{
		"5": {track.FieldStatus: "failed", track.FieldError: "build broke"},
	})

	require.NoError(t, f.svc.SweepTasks(ctx, tracker))
	require.Len(t, f.runner.Submitted(), 1)

	// The open unit absorbs the next sweep.
	require.NoError(t, f.svc.SweepTasks(ctx, tracker))
	assert.Len(t, f.runner.Submitted(), 1)
}

func TestSweepTasks_EmptyBatch(t *testing.T) {
	f := newFixture(t, nil)
	tracker := track.NewTracker(30*time.Minute, nil)

	require.NoError(t, f.svc.SweepTasks(context.Background(), tracker))
	assert.Empty(t, f.runner.Submitted())
}
