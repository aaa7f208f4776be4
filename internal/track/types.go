// Package track reconstructs and maintains the state of a batch of
// concurrent work items from flat persisted records, and derives the
// aggregate facts the orchestrator acts on: progress, stuck tasks, tasks
// that need remediation.
package track

import (
	"time"
)

// Stage is the pipeline stage a task is in.
type Stage string

const (
	StagePending   Stage = "pending"
	StageImplement Stage = "implement"
	StageReview    Stage = "review"
	StageMerge     Stage = "merge"
)

// StatusKind discriminates the task status variants.
type StatusKind string

const (
	StatusInProgress StatusKind = "in_progress"
	StatusCompleted  StatusKind = "completed"
	StatusFailed     StatusKind = "failed"
)

// TaskStatus is a task's current status variant.
//
// Stage and StageStartedAt are meaningful for InProgress; Stage, Reason and
// Remediation for Failed.
type TaskStatus struct {
	Kind           StatusKind `json:"kind"`
	Stage          Stage      `json:"stage,omitempty"`
	StageStartedAt time.Time  `json:"stage_started_at,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	Remediation    string     `json:"remediation,omitempty"`
}

// InProgress returns an in-progress status at the given stage.
func InProgress(stage Stage, startedAt time.Time) TaskStatus {
	return TaskStatus{Kind: StatusInProgress, Stage: stage, StageStartedAt: startedAt}
}

// Completed returns a completed status.
func Completed() TaskStatus {
	return TaskStatus{Kind: StatusCompleted}
}

// Failed returns a failed status with the stage it failed in.
func Failed(stage Stage, reason, remediation string) TaskStatus {
	return TaskStatus{Kind: StatusFailed, Stage: stage, Reason: reason, Remediation: remediation}
}

// Terminal reports whether the status can no longer change.
func (s TaskStatus) Terminal() bool {
	return s.Kind == StatusCompleted
}

// TaskState is one tracked work item.
type TaskState struct {
	ID           string     `json:"id"`
	Status       TaskStatus `json:"status"`
	PRNumber     int        `json:"pr_number,omitempty"`
	JobName      string     `json:"job_name,omitempty"`
	WorkflowName string     `json:"workflow_name,omitempty"`
	Repository   string     `json:"repository,omitempty"`
	LastUpdated  time.Time  `json:"last_updated,omitempty"`
}

// BatchKind discriminates the batch status variants.
type BatchKind string

const (
	BatchInProgress BatchKind = "in_progress"
	BatchCompleted  BatchKind = "completed"
	BatchFailed     BatchKind = "failed"
)

// BatchStatus is the derived aggregate status of a batch.
type BatchStatus struct {
	Kind      BatchKind `json:"kind"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	// FailedTasks lists the IDs of failed tasks when Kind is BatchFailed.
	FailedTasks []string `json:"failed_tasks,omitempty"`
}

// Batch is an ordered list of tasks plus its derived aggregate status.
type Batch struct {
	Tasks  []TaskState `json:"tasks"`
	Status BatchStatus `json:"status"`
}
