// Package remediation is the orchestrator: it turns accepted failure
// signals into remediation units, spawns corrective jobs for them, walks
// each unit through its attempt lifecycle, and hands off to escalation when
// automated attempts are exhausted.
package remediation

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/dedup"
	"github.com/fyrsmithlabs/remedyd/internal/diagnose"
	"github.com/fyrsmithlabs/remedyd/internal/escalate"
	"github.com/fyrsmithlabs/remedyd/internal/evaluate"
	"github.com/fyrsmithlabs/remedyd/internal/logging"
	"github.com/fyrsmithlabs/remedyd/internal/metrics"
	"github.com/fyrsmithlabs/remedyd/internal/naming"
	"github.com/fyrsmithlabs/remedyd/internal/runner"
	"github.com/fyrsmithlabs/remedyd/internal/signal"
	"github.com/fyrsmithlabs/remedyd/internal/store"
)

// Signal labels the orchestrator understands.
const (
	LabelTaskID        = "task-id"
	LabelRepository    = "repository"
	LabelPRNumber      = "pr-number"
	LabelWorkflowRunID = "workflow-run-id"
)

// ContextSource provides external failure context. Implemented by the
// GitHub client; nil when the integration is disabled.
type ContextSource interface {
	WorkflowLogs(ctx context.Context, owner, repo string, runID int64) ([]string, error)
	PRState(ctx context.Context, owner, repo string, number int) (*evaluate.PRState, error)
}

// Config holds orchestrator settings.
type Config struct {
	// MaxAttempts bounds corrective jobs per unit before escalation.
	// Default: 3
	MaxAttempts int

	// LogTailLines bounds how many log lines are gathered per source.
	// Default: 200
	LogTailLines int
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.LogTailLines <= 0 {
		c.LogTailLines = 200
	}
}

// Deps are the collaborators a Service needs.
type Deps struct {
	Store      store.Store
	Runner     runner.Runner
	Engine     *diagnose.Engine
	Evaluator  *evaluate.Evaluator
	Dispatcher *escalate.Dispatcher
	Codec      *naming.Codec

	// Source is optional external context (workflow logs, PR state).
	Source ContextSource

	Config Config
	Logger *logging.Logger
}

// Service is the remediation orchestrator.
type Service struct {
	store      store.Store
	runner     runner.Runner
	engine     *diagnose.Engine
	evaluator  *evaluate.Evaluator
	dispatcher *escalate.Dispatcher
	codec      *naming.Codec
	source     ContextSource
	filter     *dedup.Filter
	cfg        Config
	logger     *logging.Logger
	now        func() time.Time
}

// NewService validates deps and creates the orchestrator.
func NewService(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if deps.Codec == nil {
		return nil, fmt.Errorf("naming codec is required")
	}
	if deps.Engine == nil {
		deps.Engine = diagnose.NewDefaultEngine()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	deps.Config.applyDefaults()

	return &Service{
		store:      deps.Store,
		runner:     deps.Runner,
		engine:     deps.Engine,
		evaluator:  deps.Evaluator,
		dispatcher: deps.Dispatcher,
		codec:      deps.Codec,
		source:     deps.Source,
		cfg:        deps.Config,
		logger:     deps.Logger,
		now:        time.Now,
	}, nil
}

// AttachFilter wires the dedup filter in. The filter needs the service as
// its unit checker, so it is built after the service and attached here.
func (s *Service) AttachFilter(f *dedup.Filter) {
	s.filter = f
}

// HasOpenUnit implements dedup.UnitChecker.
func (s *Service) HasOpenUnit(ctx context.Context, key string) (bool, error) {
	rec, err := s.store.Get(ctx, store.UnitKey(key))
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return Status(rec[fieldStatus]).Open(), nil
}

// HandleSignal runs one accepted signal through dedup, diagnosis, and spawn.
// A suppressed spawn returns a nil unit with no error.
func (s *Service) HandleSignal(ctx context.Context, sig *signal.Signal) (*Unit, error) {
	metrics.SignalsTotal.WithLabelValues(sig.Type).Inc()
	ctx = logging.WithUnit(ctx, sig.Fingerprint)

	var decision dedup.Decision
	if s.filter != nil {
		decision = s.filter.ShouldSuppress(ctx, sig)
	}

	if decision.SuppressSpawn {
		s.logger.Info(ctx, "signal suppressed, remediation already open",
			zap.String("key", sig.Key()),
			zap.String("reason", decision.Reason))
		return nil, nil
	}

	now := s.now()
	unit := &Unit{
		Fingerprint: sig.Fingerprint,
		Key:         sig.Key(),
		Type:        sig.Type,
		Target:      sig.Target,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if raw := sig.Labels[LabelTaskID]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			unit.TaskID = n
		}
	}
	unit.Repository = sig.Labels[LabelRepository]
	if raw := sig.Labels[LabelPRNumber]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			unit.PRNumber = n
		}
	}
	if raw := sig.Labels[LabelWorkflowRunID]; raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			unit.WorkflowRunID = n
		}
	}

	dctx := s.gatherContext(ctx, unit)
	diagnosis := s.engine.Diagnose(dctx)
	unit.Diagnosis = &diagnosis
	metrics.DiagnosesTotal.WithLabelValues(string(diagnosis.Category)).Inc()

	s.logger.Info(ctx, "failure diagnosed",
		zap.String("key", unit.Key),
		zap.String("category", string(diagnosis.Category)),
		zap.String("summary", diagnosis.Summary))

	if err := s.spawnAttempt(ctx, unit, dctx); err != nil {
		s.logger.Warn(ctx, "initial spawn failed", zap.Error(err))
	}

	if !decision.SuppressAlert && s.filter != nil {
		if err := s.filter.RecordAlert(ctx, sig); err != nil {
			s.logger.Warn(ctx, "failed to record alert", zap.Error(err))
		}
	}

	if err := s.persist(ctx, unit); err != nil {
		return unit, fmt.Errorf("failed to persist unit %s: %w", unit.Key, err)
	}
	return unit, nil
}

// gatherContext collects failure context for diagnosis. Sources degrade
// independently: the job's own logs first, the workflow summary as fallback,
// and an empty context when nothing is reachable.
func (s *Service) gatherContext(ctx context.Context, unit *Unit) diagnose.Context {
	var dctx diagnose.Context

	if unit.JobName != "" {
		lines, err := s.runner.Logs(ctx, runner.Ref{Name: unit.JobName}, s.cfg.LogTailLines)
		if err != nil {
			metrics.GatherSourceFailures.WithLabelValues("job_logs").Inc()
			s.logger.Warn(ctx, "job logs unavailable",
				zap.String("job", unit.JobName),
				zap.Error(err))
		} else {
			dctx.Logs = lines
			return dctx
		}
	}

	if s.source != nil && unit.WorkflowRunID > 0 {
		owner, repo, ok := splitRepository(unit.Repository)
		if ok {
			lines, err := s.source.WorkflowLogs(ctx, owner, repo, unit.WorkflowRunID)
			if err != nil {
				metrics.GatherSourceFailures.WithLabelValues("workflow_logs").Inc()
				s.logger.Warn(ctx, "workflow logs unavailable",
					zap.Int64("run_id", unit.WorkflowRunID),
					zap.Error(err))
			} else {
				dctx.Logs = lines
			}
		}
	}

	return dctx
}

// spawnAttempt submits the next corrective job for the unit. A submit
// failure is recorded as a failed attempt and routed through the normal
// retry/escalation path.
func (s *Service) spawnAttempt(ctx context.Context, unit *Unit, dctx diagnose.Context) error {
	now := s.now()

	name, err := s.codec.Build(unit.TaskID, alertCode(unit.Type))
	if err != nil {
		return fmt.Errorf("failed to build job name: %w", err)
	}

	attempt := Attempt{
		Number:    len(unit.Attempts) + 1,
		Agent:     name,
		StartedAt: now,
	}

	spec := runner.Spec{
		Name:       name,
		Repository: unit.Repository,
		Prompt:     buildPrompt(unit, dctx),
		Labels: map[string]string{
			LabelTaskID: strconv.Itoa(unit.TaskID),
			"unit":      naming.SanitizeLabel(unit.Fingerprint),
		},
	}

	if _, err := s.runner.Submit(ctx, spec); err != nil {
		attempt.Outcome = OutcomeSpawnError
		attempt.Error = err.Error()
		attempt.Duration = s.now().Sub(now)
		unit.Attempts = append(unit.Attempts, attempt)
		metrics.RecordAttempt(false)
		if unit.Status != StatusFailed {
			if terr := unit.Transition(StatusFailed, s.now()); terr != nil {
				return terr
			}
		}
		s.maybeEscalate(ctx, unit, err.Error())
		return fmt.Errorf("failed to submit corrective job: %w", err)
	}

	unit.Attempts = append(unit.Attempts, attempt)
	unit.JobName = name
	if err := unit.Transition(StatusInProgress, s.now()); err != nil {
		return err
	}

	s.logger.Info(ctx, "corrective job spawned",
		zap.String("job", name),
		zap.Int("attempt", attempt.Number),
		zap.Int("max_attempts", s.cfg.MaxAttempts))
	return nil
}

// buildPrompt renders the corrective instructions for the job agent.
func buildPrompt(unit *Unit, dctx diagnose.Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "A %s failure hit %s.\n", unit.Type, unit.Target)
	if d := unit.Diagnosis; d != nil {
		fmt.Fprintf(&b, "Diagnosis (%s): %s\n", d.Category, d.Summary)
		if d.SuggestedFix != "" {
			fmt.Fprintf(&b, "Suggested fix: %s\n", d.SuggestedFix)
		}
		if len(d.RelevantFiles) > 0 {
			fmt.Fprintf(&b, "Relevant files: %s\n", strings.Join(d.RelevantFiles, ", "))
		}
	}
	if len(dctx.Logs) > 0 {
		b.WriteString("\nRecent logs:\n")
		b.WriteString(strings.Join(dctx.Logs, "\n"))
		b.WriteString("\n")
	}
	b.WriteString("\nApply the fix, verify it, and report the result.")
	return b.String()
}

// alertCode maps a signal type onto the compact letter-plus-digits form job
// names embed. Types already in that form pass through; anything else is
// hashed into a stable code.
func alertCode(sigType string) string {
	if isCompactType(sigType) {
		return sigType
	}
	h := fnv.New32a()
	h.Write([]byte(sigType))
	return "a" + strconv.Itoa(int(h.Sum32()%10000))
}

func isCompactType(s string) bool {
	if len(s) < 2 {
		return false
	}
	if s[0] < 'a' || s[0] > 'z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// splitRepository splits "owner/name" into its parts.
func splitRepository(repo string) (owner, name string, ok bool) {
	owner, name, found := strings.Cut(repo, "/")
	if !found || owner == "" || name == "" {
		return "", "", false
	}
	return owner, name, true
}

// persist writes the unit's current state to the store.
func (s *Service) persist(ctx context.Context, unit *Unit) error {
	return s.store.Put(ctx, store.UnitKey(unit.Key), unitRecord(unit))
}

// ListUnits returns every persisted unit. Records that cannot be decoded are
// skipped with a warning.
func (s *Service) ListUnits(ctx context.Context) ([]*Unit, error) {
	recs, err := s.store.List(ctx, store.UnitPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}

	units := make([]*Unit, 0, len(recs))
	for key, rec := range recs {
		unit, err := unitFromRecord(rec)
		if err != nil {
			s.logger.Warn(ctx, "skipping undecodable unit record",
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		units = append(units, unit)
	}
	return units, nil
}

// Cancel tears down every corrective job spawned for a task. The jobs
// vanish; the next reconcile records the interrupted attempts as failed.
func (s *Service) Cancel(ctx context.Context, taskID int) error {
	if err := s.runner.DeleteByLabel(ctx, LabelTaskID, strconv.Itoa(taskID)); err != nil {
		return fmt.Errorf("failed to cancel jobs for task %d: %w", taskID, err)
	}
	s.logger.Info(ctx, "corrective jobs canceled", zap.Int("task_id", taskID))
	return nil
}
