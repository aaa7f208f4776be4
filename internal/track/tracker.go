package track

import (
	"context"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/logging"
)

// Record field names. These match the flat string-keyed records the batch is
// persisted under, one record per task.
const (
	FieldStage        = "stage"
	FieldStatus       = "status"
	FieldError        = "error"
	FieldRemediation  = "remediation"
	FieldPRNumber     = "pr-number"
	FieldWorkflowName = "workflow-name"
	FieldJobName      = "job-name"
	FieldRepository   = "repository"
	FieldLastUpdated  = "last-updated"
)

// DefaultStuckThreshold is how long a task may sit in one stage before it
// counts as stuck.
const DefaultStuckThreshold = 30 * time.Minute

// Tracker reconstructs batches from persisted records and answers the
// stuck/needs-remediation questions against its configured threshold.
type Tracker struct {
	stuckAfter time.Duration
	logger     *logging.Logger
}

// NewTracker creates a tracker. A non-positive stuckAfter falls back to
// DefaultStuckThreshold; a nil logger discards logs.
func NewTracker(stuckAfter time.Duration, logger *logging.Logger) *Tracker {
	if stuckAfter <= 0 {
		stuckAfter = DefaultStuckThreshold
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{stuckAfter: stuckAfter, logger: logger}
}

// Load reconstructs a batch from records, one record per task keyed by task
// ID. Missing or malformed fields degrade to a safe in-progress/pending
// state; Load never fails.
//
// Task order is by ID: numerically when every ID is a number, otherwise
// lexicographically.
func (t *Tracker) Load(ctx context.Context, records map[string]map[string]string) *Batch {
	tasks := make([]TaskState, 0, len(records))

	for id, rec := range records {
		task := t.loadTask(ctx, id, rec)
		tasks = append(tasks, task)
	}

	sortTasks(tasks)

	batch := &Batch{Tasks: tasks}
	batch.UpdateStatus()
	return batch
}

// loadTask builds one TaskState, defaulting anything it cannot parse.
func (t *Tracker) loadTask(ctx context.Context, id string, rec map[string]string) TaskState {
	task := TaskState{
		ID:           id,
		JobName:      rec[FieldJobName],
		WorkflowName: rec[FieldWorkflowName],
		Repository:   rec[FieldRepository],
	}

	if raw := rec[FieldPRNumber]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			t.logger.Warn(ctx, "ignoring malformed pr-number",
				zap.String("task_id", id),
				zap.String("value", raw))
		} else {
			task.PRNumber = n
		}
	}

	if raw := rec[FieldLastUpdated]; raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			t.logger.Warn(ctx, "ignoring malformed last-updated",
				zap.String("task_id", id),
				zap.String("value", raw))
		} else {
			task.LastUpdated = ts
		}
	}

	stage := parseStage(rec[FieldStage])

	switch rec[FieldStatus] {
	case string(StatusCompleted):
		task.Status = Completed()
	case string(StatusFailed):
		task.Status = Failed(stage, rec[FieldError], rec[FieldRemediation])
	case string(StatusInProgress):
		task.Status = InProgress(stage, task.LastUpdated)
	default:
		if rec[FieldStatus] != "" {
			t.logger.Warn(ctx, "unknown task status, defaulting to in_progress",
				zap.String("task_id", id),
				zap.String("status", rec[FieldStatus]))
		}
		task.Status = InProgress(stage, task.LastUpdated)
	}

	return task
}

// Record converts a task back to its flat record form, the inverse of Load.
func Record(task TaskState) map[string]string {
	rec := map[string]string{
		FieldStatus: string(task.Status.Kind),
	}
	if task.Status.Stage != "" {
		rec[FieldStage] = string(task.Status.Stage)
	}
	if task.Status.Reason != "" {
		rec[FieldError] = task.Status.Reason
	}
	if task.Status.Remediation != "" {
		rec[FieldRemediation] = task.Status.Remediation
	}
	if task.PRNumber > 0 {
		rec[FieldPRNumber] = strconv.Itoa(task.PRNumber)
	}
	if task.WorkflowName != "" {
		rec[FieldWorkflowName] = task.WorkflowName
	}
	if task.JobName != "" {
		rec[FieldJobName] = task.JobName
	}
	if task.Repository != "" {
		rec[FieldRepository] = task.Repository
	}
	if !task.LastUpdated.IsZero() {
		rec[FieldLastUpdated] = task.LastUpdated.UTC().Format(time.RFC3339)
	}
	return rec
}

// IsStuck reports whether a non-terminal task has stayed in its current
// stage beyond the tracker's threshold. Tasks with no recorded stage start
// are never stuck; a fresh poll will stamp one.
func (t *Tracker) IsStuck(task TaskState, now time.Time) bool {
	if task.Status.Kind != StatusInProgress {
		return false
	}
	if task.Status.StageStartedAt.IsZero() {
		return false
	}
	return now.Sub(task.Status.StageStartedAt) > t.stuckAfter
}

// NeedsRemediation reports whether a task is failed or stuck.
func (t *Tracker) NeedsRemediation(task TaskState, now time.Time) bool {
	return task.Status.Kind == StatusFailed || t.IsStuck(task, now)
}

// UpdateStatus recomputes the batch's aggregate status from its tasks.
func (b *Batch) UpdateStatus() {
	b.Status = AggregateStatus(b.Tasks)
}

// AggregateStatus derives the batch status from a task list:
// Completed iff all tasks completed; Failed iff every task is terminal-or-
// failed and at least one failed; otherwise InProgress{completed, total}.
func AggregateStatus(tasks []TaskState) BatchStatus {
	total := len(tasks)

	var completed int
	var failed []string
	for _, task := range tasks {
		switch task.Status.Kind {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed = append(failed, task.ID)
		}
	}

	switch {
	case total > 0 && completed == total:
		return BatchStatus{Kind: BatchCompleted, Completed: completed, Total: total}
	case len(failed) > 0 && completed+len(failed) == total:
		return BatchStatus{Kind: BatchFailed, Completed: completed, Total: total, FailedTasks: failed}
	default:
		return BatchStatus{Kind: BatchInProgress, Completed: completed, Total: total}
	}
}

// Progress returns completed/total, 0 for an empty batch.
func (b *Batch) Progress() float64 {
	if len(b.Tasks) == 0 {
		return 0
	}
	var completed int
	for _, task := range b.Tasks {
		if task.Status.Kind == StatusCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(b.Tasks))
}

// parseStage maps a raw stage string, defaulting to pending.
func parseStage(raw string) Stage {
	switch Stage(raw) {
	case StagePending, StageImplement, StageReview, StageMerge:
		return Stage(raw)
	default:
		return StagePending
	}
}

// sortTasks orders numerically when every ID parses, else lexicographically.
func sortTasks(tasks []TaskState) {
	numeric := true
	for _, task := range tasks {
		if _, err := strconv.Atoi(task.ID); err != nil {
			numeric = false
			break
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		if numeric {
			a, _ := strconv.Atoi(tasks[i].ID)
			b, _ := strconv.Atoi(tasks[j].ID)
			return a < b
		}
		return tasks[i].ID < tasks[j].ID
	})
}
