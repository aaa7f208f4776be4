package runner

import (
	"context"
	"sync"
)

// Fake is an in-memory Runner for tests. Submitted jobs start in
// PhaseRunning; tests advance phases with SetPhase.
type Fake struct {
	mu     sync.Mutex
	jobs   map[string]*fakeJob
	submit []Spec

	// SubmitErr, when set, fails every Submit.
	SubmitErr error
	// StatusErr, when set, fails every Status.
	StatusErr error
	// LogsErr, when set, fails every Logs.
	LogsErr error
}

type fakeJob struct {
	spec  Spec
	phase Phase
	logs  []string
}

// NewFake creates an empty fake runner.
func NewFake() *Fake {
	return &Fake{jobs: make(map[string]*fakeJob)}
}

// Submit implements Runner.
func (f *Fake) Submit(ctx context.Context, spec Spec) (Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SubmitErr != nil {
		return Ref{}, f.SubmitErr
	}
	f.jobs[spec.Name] = &fakeJob{spec: spec, phase: PhaseRunning}
	f.submit = append(f.submit, spec)
	return Ref{Name: spec.Name}, nil
}

// Status implements Runner.
func (f *Fake) Status(ctx context.Context, ref Ref) (Phase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.StatusErr != nil {
		return "", f.StatusErr
	}
	job, ok := f.jobs[ref.Name]
	if !ok {
		return "", ErrNotFound
	}
	return job.phase, nil
}

// Logs implements Runner.
func (f *Fake) Logs(ctx context.Context, ref Ref, tail int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.LogsErr != nil {
		return nil, f.LogsErr
	}
	job, ok := f.jobs[ref.Name]
	if !ok {
		return nil, ErrNotFound
	}
	lines := job.logs
	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out, nil
}

// Delete implements Runner.
func (f *Fake) Delete(ctx context.Context, ref Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.jobs, ref.Name)
	return nil
}

// DeleteByLabel implements Runner.
func (f *Fake) DeleteByLabel(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name, job := range f.jobs {
		if job.spec.Labels[key] == value {
			delete(f.jobs, name)
		}
	}
	return nil
}

// SetPhase moves a job to the given phase.
func (f *Fake) SetPhase(name string, phase Phase) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if job, ok := f.jobs[name]; ok {
		job.phase = phase
	}
}

// SetLogs replaces a job's log lines.
func (f *Fake) SetLogs(name string, lines []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if job, ok := f.jobs[name]; ok {
		job.logs = lines
	}
}

// Submitted returns every spec submitted so far, in order.
func (f *Fake) Submitted() []Spec {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Spec, len(f.submit))
	copy(out, f.submit)
	return out
}

// Exists reports whether a job is still present.
func (f *Fake) Exists(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.jobs[name]
	return ok
}
