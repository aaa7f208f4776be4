package track

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tracker := NewTracker(0, nil)
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	records := map[string]map[string]string{
		"1": {
			"status":       "completed",
			"pr-number":    "41",
			"repository":   "acme/widgets",
			"last-updated": now.Format(time.RFC3339),
		},
		"2": {
			"status":        "failed",
			"stage":         "review",
			"error":         "tests failed",
			"workflow-name": "ci-build",
		},
		"3": {
			"status":   "in_progress",
			"stage":    "implement",
			"job-name": "remedyd-fix-task3-a7-deadbeef",
		},
	}

	batch := tracker.Load(context.Background(), records)
	require.Len(t, batch.Tasks, 3)

	// Numeric ID ordering
	assert.Equal(t, "1", batch.Tasks[0].ID)
	assert.Equal(t, "2", batch.Tasks[1].ID)
	assert.Equal(t, "3", batch.Tasks[2].ID)

	assert.Equal(t, StatusCompleted, batch.Tasks[0].Status.Kind)
	assert.Equal(t, 41, batch.Tasks[0].PRNumber)
	assert.Equal(t, now, batch.Tasks[0].LastUpdated)

	assert.Equal(t, StatusFailed, batch.Tasks[1].Status.Kind)
	assert.Equal(t, StageReview, batch.Tasks[1].Status.Stage)
	assert.Equal(t, "tests failed", batch.Tasks[1].Status.Reason)

	assert.Equal(t, StatusInProgress, batch.Tasks[2].Status.Kind)
	assert.Equal(t, StageImplement, batch.Tasks[2].Status.Stage)

	assert.Equal(t, BatchInProgress, batch.Status.Kind)
	assert.Equal(t, 1, batch.Status.Completed)
	assert.Equal(t, 3, batch.Status.Total)
}

func TestLoad_SafeDefaults(t *testing.T) {
	tracker := NewTracker(0, nil)

	records := map[string]map[string]string{
		"7": {
			"status":       "exploded",
			"stage":        "launching",
			"pr-number":    "not-a-number",
			"last-updated": "yesterday-ish",
		},
		"8": {},
	}

	batch := tracker.Load(context.Background(), records)
	require.Len(t, batch.Tasks, 2)

	for _, task := range batch.Tasks {
		assert.Equal(t, StatusInProgress, task.Status.Kind)
		assert.Equal(t, StagePending, task.Status.Stage)
		assert.Zero(t, task.PRNumber)
		assert.True(t, task.LastUpdated.IsZero())
	}
}

func TestLoad_Empty(t *testing.T) {
	tracker := NewTracker(0, nil)
	batch := tracker.Load(context.Background(), nil)

	assert.Empty(t, batch.Tasks)
	assert.Equal(t, BatchInProgress, batch.Status.Kind)
	assert.Zero(t, batch.Progress())
}

func TestRecord_RoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	task := TaskState{
		ID:           "5",
		Status:       Failed(StageMerge, "merge conflict", "rebase onto main"),
		PRNumber:     12,
		JobName:      "remedyd-fix-task5-a2-deadbeef",
		WorkflowName: "ci-deploy",
		Repository:   "acme/widgets",
		LastUpdated:  now,
	}

	rec := Record(task)
	tracker := NewTracker(0, nil)
	batch := tracker.Load(context.Background(), map[string]map[string]string{"5": rec})

	require.Len(t, batch.Tasks, 1)
	got := batch.Tasks[0]
	assert.Equal(t, task.Status.Kind, got.Status.Kind)
	assert.Equal(t, task.Status.Stage, got.Status.Stage)
	assert.Equal(t, task.Status.Reason, got.Status.Reason)
	assert.Equal(t, task.Status.Remediation, got.Status.Remediation)
	assert.Equal(t, task.PRNumber, got.PRNumber)
	assert.Equal(t, task.JobName, got.JobName)
	assert.Equal(t, task.WorkflowName, got.WorkflowName)
	assert.Equal(t, task.Repository, got.Repository)
	assert.Equal(t, task.LastUpdated, got.LastUpdated)
}

func TestAggregateStatus(t *testing.T) {
	completed := TaskState{ID: "c", Status: Completed()}
	failed := TaskState{ID: "f", Status: Failed(StageReview, "boom", "")}
	running := TaskState{ID: "r", Status: InProgress(StageImplement, time.Now())}

	tests := []struct {
		name  string
		tasks []TaskState
		want  BatchKind
	}{
		{"empty is in progress", nil, BatchInProgress},
		{"all completed", []TaskState{completed, completed}, BatchCompleted},
		{"all settled with a failure", []TaskState{completed, failed}, BatchFailed},
		{"all failed", []TaskState{failed, failed}, BatchFailed},
		{"failure but still running", []TaskState{failed, running}, BatchInProgress},
		{"only running", []TaskState{running}, BatchInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregateStatus(tt.tasks)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, len(tt.tasks), got.Total)
			if tt.want == BatchFailed {
				assert.NotEmpty(t, got.FailedTasks)
			}
		})
	}
}

func TestIsStuck(t *testing.T) {
	tracker := NewTracker(30*time.Minute, nil)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task TaskState
		want bool
	}{
		{
			"fresh in-progress task",
			TaskState{Status: InProgress(StageImplement, now.Add(-5*time.Minute))},
			false,
		},
		{
			"over threshold",
			TaskState{Status: InProgress(StageImplement, now.Add(-31*time.Minute))},
			true,
		},
		{
			"exactly at threshold",
			TaskState{Status: InProgress(StageImplement, now.Add(-30*time.Minute))},
			false,
		},
		{
			"completed never stuck",
			TaskState{Status: Completed()},
			false,
		},
		{
			"failed not stuck",
			TaskState{Status: Failed(StageReview, "x", "")},
			false,
		},
		{
			"no stage start recorded",
			TaskState{Status: TaskStatus{Kind: StatusInProgress, Stage: StagePending}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tracker.IsStuck(tt.task, now))
		})
	}
}

func TestNeedsRemediation(t *testing.T) {
	tracker := NewTracker(30*time.Minute, nil)
	now := time.Now()

	assert.True(t, tracker.NeedsRemediation(TaskState{Status: Failed(StageReview, "x", "")}, now))
	assert.True(t, tracker.NeedsRemediation(TaskState{Status: InProgress(StageImplement, now.Add(-time.Hour))}, now))
	assert.False(t, tracker.NeedsRemediation(TaskState{Status: Completed()}, now))
	assert.False(t, tracker.NeedsRemediation(TaskState{Status: InProgress(StageImplement, now)}, now))
}

func TestProgress(t *testing.T) {
	batch := &Batch{Tasks: []TaskState{
		{Status: Completed()},
		{Status: Completed()},
		{Status: InProgress(StageImplement, time.Now())},
		{Status: Failed(StageReview, "x", "")},
	}}

	assert.InDelta(t, 0.5, batch.Progress(), 1e-9)
}

func TestSortTasks_Lexicographic(t *testing.T) {
	tracker := NewTracker(0, nil)
	batch := tracker.Load(context.Background(), map[string]map[string]string{
		"task-b": {}, "task-a": {}, "task-c": {},
	})

	require.Len(t, batch.Tasks, 3)
	assert.Equal(t, "task-a", batch.Tasks[0].ID)
	assert.Equal(t, "task-c", batch.Tasks[2].ID)
}

func TestSortTasks_NumericOverTen(t *testing.T) {
	tracker := NewTracker(0, nil)
	batch := tracker.Load(context.Background(), map[string]map[string]string{
		"10": {}, "2": {}, "1": {},
	})

	require.Len(t, batch.Tasks, 3)
	assert.Equal(t, []string{"1", "2", "10"}, []string{
		batch.Tasks[0].ID, batch.Tasks[1].ID, batch.Tasks[2].ID,
	})
}
