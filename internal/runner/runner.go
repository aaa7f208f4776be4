// Package runner consumes the resource-lifecycle API that executes
// corrective jobs. remedyd only submits specs, polls phases, fetches logs,
// and cancels; the execution backend itself is external.
package runner

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the referenced job does not exist (any more).
	ErrNotFound = errors.New("job not found")

	// ErrInvalidSpec indicates a spec the backend cannot accept.
	ErrInvalidSpec = errors.New("invalid job spec")
)

// Phase is a job's lifecycle phase as reported by the backend.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseRunning   Phase = "running"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Terminal reports whether the phase can no longer change.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// Spec describes one corrective job to run.
type Spec struct {
	// Name is the bounded identifier from the naming codec.
	Name string `json:"name"`

	// Repository the job operates on.
	Repository string `json:"repository,omitempty"`

	// Prompt carries the corrective instructions, including the diagnosis.
	Prompt string `json:"prompt"`

	// Labels attach routing metadata; the originating task ID label is what
	// out-of-band cancellation matches on.
	Labels map[string]string `json:"labels,omitempty"`
}

// Ref identifies a submitted job.
type Ref struct {
	Name string `json:"name"`
}

// Runner is the job lifecycle API.
type Runner interface {
	// Submit starts a job and returns its reference.
	Submit(ctx context.Context, spec Spec) (Ref, error)

	// Status returns the job's current phase, or ErrNotFound.
	Status(ctx context.Context, ref Ref) (Phase, error)

	// Logs returns up to tail recent log lines for the job.
	Logs(ctx context.Context, ref Ref, tail int) ([]string, error)

	// Delete stops and removes the job. Deleting a missing job is not an
	// error.
	Delete(ctx context.Context, ref Ref) error

	// DeleteByLabel stops every job carrying the label, the out-of-band
	// cancellation path.
	DeleteByLabel(ctx context.Context, key, value string) error
}
