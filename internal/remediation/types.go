package remediation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/remedyd/internal/diagnose"
	"github.com/fyrsmithlabs/remedyd/internal/store"
)

// Status is a remediation unit's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusEscalated  Status = "escalated"
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusEscalated
}

// Open reports whether the unit still claims its dedup key: anything not
// terminal, including a failed attempt awaiting retry.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusFailed
}

// transitions lists the allowed forward moves. There is no way back to
// pending and no way out of a terminal status.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusSucceeded, StatusFailed},
	StatusFailed:     {StatusInProgress, StatusEscalated},
}

// CanTransition reports whether from → to is an allowed move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Attempt is one corrective job run for a unit.
type Attempt struct {
	Number    int           `json:"number"`
	Agent     string        `json:"agent"`
	Outcome   string        `json:"outcome"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Attempt outcomes.
const (
	OutcomeSucceeded     = "succeeded"
	OutcomeFailed        = "failed"
	OutcomeLowConfidence = "low-confidence"
	OutcomeVanished      = "vanished"
	OutcomeSpawnError    = "spawn-error"
)

// Unit is one tracked remediation: a failure signal, its diagnosis, and the
// corrective attempts made for it. Units are keyed by the signal's dedup key
// so at most one open unit exists per {type, target}.
type Unit struct {
	Fingerprint string `json:"fingerprint"`
	Key         string `json:"key"`
	Type        string `json:"type"`
	Target      string `json:"target"`

	// TaskID links the unit to the work item whose pipeline failed.
	TaskID int `json:"task_id"`

	// Repository in "owner/name" form, when known.
	Repository    string `json:"repository,omitempty"`
	PRNumber      int    `json:"pr_number,omitempty"`
	WorkflowRunID int64  `json:"workflow_run_id,omitempty"`

	Status    Status              `json:"status"`
	Diagnosis *diagnose.Diagnosis `json:"diagnosis,omitempty"`

	// JobName is the currently or last submitted corrective job.
	JobName string `json:"job_name,omitempty"`

	Attempts []Attempt `json:"attempts,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transition moves the unit to a new status, rejecting moves the lifecycle
// does not allow.
func (u *Unit) Transition(to Status, now time.Time) error {
	if !CanTransition(u.Status, to) {
		return fmt.Errorf("invalid unit transition %s -> %s", u.Status, to)
	}
	u.Status = to
	u.UpdatedAt = now
	return nil
}

// lastAttempt returns a pointer to the most recent attempt, or nil.
func (u *Unit) lastAttempt() *Attempt {
	if len(u.Attempts) == 0 {
		return nil
	}
	return &u.Attempts[len(u.Attempts)-1]
}

// Unit record fields.
const (
	fieldFingerprint = "fingerprint"
	fieldKey         = "key"
	fieldType        = "type"
	fieldTarget      = "target"
	fieldTaskID      = "task-id"
	fieldRepository  = "repository"
	fieldPRNumber    = "pr-number"
	fieldWorkflowRun = "workflow-run-id"
	fieldStatus      = "status"
	fieldJobName     = "job-name"
	fieldAttempts    = "attempts"
	fieldDiagnosis   = "diagnosis"
	fieldCreatedAt   = "created-at"
	fieldUpdatedAt   = "last-updated"
)

// unitRecord flattens a unit for persistence. Attempts and diagnosis are
// JSON-encoded inside their fields.
func unitRecord(u *Unit) store.Record {
	rec := store.Record{
		fieldFingerprint: u.Fingerprint,
		fieldKey:         u.Key,
		fieldType:        u.Type,
		fieldTarget:      u.Target,
		fieldTaskID:      strconv.Itoa(u.TaskID),
		fieldStatus:      string(u.Status),
		fieldCreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
		fieldUpdatedAt:   u.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if u.Repository != "" {
		rec[fieldRepository] = u.Repository
	}
	if u.PRNumber > 0 {
		rec[fieldPRNumber] = strconv.Itoa(u.PRNumber)
	}
	if u.WorkflowRunID > 0 {
		rec[fieldWorkflowRun] = strconv.FormatInt(u.WorkflowRunID, 10)
	}
	if u.JobName != "" {
		rec[fieldJobName] = u.JobName
	}
	if len(u.Attempts) > 0 {
		if data, err := json.Marshal(u.Attempts); err == nil {
			rec[fieldAttempts] = string(data)
		}
	}
	if u.Diagnosis != nil {
		if data, err := json.Marshal(u.Diagnosis); err == nil {
			rec[fieldDiagnosis] = string(data)
		}
	}
	return rec
}

// unitFromRecord rebuilds a unit. Malformed optional fields degrade to their
// zero values; only a missing key or unknown status is an error.
func unitFromRecord(rec store.Record) (*Unit, error) {
	if rec[fieldKey] == "" {
		return nil, fmt.Errorf("unit record missing key")
	}
	status := Status(rec[fieldStatus])
	switch status {
	case StatusPending, StatusInProgress, StatusSucceeded, StatusFailed, StatusEscalated:
	default:
		return nil, fmt.Errorf("unit record has unknown status %q", rec[fieldStatus])
	}

	u := &Unit{
		Fingerprint: rec[fieldFingerprint],
		Key:         rec[fieldKey],
		Type:        rec[fieldType],
		Target:      rec[fieldTarget],
		Repository:  rec[fieldRepository],
		Status:      status,
		JobName:     rec[fieldJobName],
	}

	if raw := rec[fieldTaskID]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			u.TaskID = n
		}
	}
	if raw := rec[fieldPRNumber]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			u.PRNumber = n
		}
	}
	if raw := rec[fieldWorkflowRun]; raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			u.WorkflowRunID = n
		}
	}
	if raw := rec[fieldAttempts]; raw != "" {
		var attempts []Attempt
		if err := json.Unmarshal([]byte(raw), &attempts); err == nil {
			u.Attempts = attempts
		}
	}
	if raw := rec[fieldDiagnosis]; raw != "" {
		var d diagnose.Diagnosis
		if err := json.Unmarshal([]byte(raw), &d); err == nil {
			u.Diagnosis = &d
		}
	}
	if ts, err := time.Parse(time.RFC3339, rec[fieldCreatedAt]); err == nil {
		u.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, rec[fieldUpdatedAt]); err == nil {
		u.UpdatedAt = ts
	}
	return u, nil
}
