package remediation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/escalate"
	"github.com/fyrsmithlabs/remedyd/internal/evaluate"
	"github.com/fyrsmithlabs/remedyd/internal/logging"
	"github.com/fyrsmithlabs/remedyd/internal/metrics"
	"github.com/fyrsmithlabs/remedyd/internal/runner"
	"github.com/fyrsmithlabs/remedyd/internal/signal"
)

// Reconcile drives every in-flight unit one step forward: it polls job
// phases, scores finished attempts, respawns failed ones, and escalates
// exhausted ones. One unit's error never stops the sweep.
func (s *Service) Reconcile(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.PollCycleDuration.Observe(time.Since(start).Seconds())
	}()

	units, err := s.ListUnits(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	for _, unit := range units {
		var err error
		switch unit.Status {
		case StatusInProgress:
			err = s.reconcileUnit(ctx, unit)
		case StatusFailed:
			err = s.recoverFailed(ctx, unit)
		default:
			continue
		}
		if err != nil {
			s.logger.Warn(ctx, "unit reconcile failed",
				zap.String("key", unit.Key),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// recoverFailed picks a parked failed unit back up. A unit sits in failed
// when the respawn after a failed attempt could not submit; the next cycle
// either spawns the pending attempt or escalates, so a transient submit
// failure never strands the unit below its attempt bound.
func (s *Service) recoverFailed(ctx context.Context, unit *Unit) error {
	ctx = logging.WithUnit(ctx, unit.Fingerprint)

	var lastErr string
	if a := unit.lastAttempt(); a != nil {
		lastErr = a.Error
	}

	s.logger.Info(ctx, "retrying parked unit",
		zap.String("key", unit.Key),
		zap.Int("attempts", len(unit.Attempts)))

	if !s.maybeEscalate(ctx, unit, lastErr) {
		s.respawn(ctx, unit)
	}
	return s.persist(ctx, unit)
}

// reconcileUnit advances one in-progress unit based on its job's phase.
func (s *Service) reconcileUnit(ctx context.Context, unit *Unit) error {
	ctx = logging.WithUnit(ctx, unit.Fingerprint)

	phase, err := s.runner.Status(ctx, runner.Ref{Name: unit.JobName})
	switch {
	case errors.Is(err, runner.ErrNotFound):
		// The job was torn down underneath us, most likely a cancellation.
		s.failAttempt(ctx, unit, OutcomeVanished, "corrective job disappeared before finishing")
	case err != nil:
		// Transient backend trouble; try again next cycle.
		return fmt.Errorf("failed to poll job %s: %w", unit.JobName, err)
	case phase == runner.PhaseSucceeded:
		s.handleSucceeded(ctx, unit)
	case phase == runner.PhaseFailed:
		detail := s.tailLogs(ctx, unit)
		s.failAttempt(ctx, unit, OutcomeFailed, detail)
	default:
		// Still pending or running.
		return nil
	}

	return s.persist(ctx, unit)
}

// handleSucceeded scores a finished job. With pull request context the
// weighted evaluator decides; without it the job's own exit status is the
// only evidence and counts as success.
func (s *Service) handleSucceeded(ctx context.Context, unit *Unit) {
	now := s.now()

	st := s.assembleState(ctx, unit)
	if st == nil {
		s.completeSuccess(ctx, unit, now)
		return
	}

	assessment := s.evaluator.Evaluate(ctx, unit.Key, st)
	if assessment.Success {
		s.completeSuccess(ctx, unit, now)
		return
	}

	var failed []string
	for _, c := range assessment.Criteria {
		if !c.Passed {
			failed = append(failed, c.Criterion+": "+c.Details)
		}
	}
	detail := fmt.Sprintf("job finished but confidence %.2f is below threshold\n%s",
		assessment.Confidence, strings.Join(failed, "\n"))
	s.failAttempt(ctx, unit, OutcomeLowConfidence, detail)
}

// assembleState gathers the evaluator's evidence. Nil means there is no
// external state to judge against.
func (s *Service) assembleState(ctx context.Context, unit *Unit) *evaluate.State {
	if s.source == nil || s.evaluator == nil || unit.PRNumber == 0 {
		return nil
	}
	owner, repo, ok := splitRepository(unit.Repository)
	if !ok {
		return nil
	}

	resolved := true
	st := &evaluate.State{
		FeedbackResolved: &resolved,
		IssuesKnown:      true,
	}

	pr, err := s.source.PRState(ctx, owner, repo, unit.PRNumber)
	if err != nil {
		metrics.GatherSourceFailures.WithLabelValues("pr_state").Inc()
		s.logger.Warn(ctx, "PR state unavailable",
			zap.Int("pr", unit.PRNumber),
			zap.Error(err))
	} else {
		st.PR = pr
	}
	return st
}

// completeSuccess closes the unit and resolves its alert.
func (s *Service) completeSuccess(ctx context.Context, unit *Unit, now time.Time) {
	if a := unit.lastAttempt(); a != nil {
		a.Outcome = OutcomeSucceeded
		a.Duration = now.Sub(a.StartedAt)
	}
	metrics.RecordAttempt(true)

	if err := unit.Transition(StatusSucceeded, now); err != nil {
		s.logger.Warn(ctx, "invalid success transition", zap.Error(err))
		return
	}

	if s.filter != nil {
		sig := &signal.Signal{Type: unit.Type, Target: unit.Target, Fingerprint: unit.Fingerprint}
		if err := s.filter.ResolveAlert(ctx, sig); err != nil {
			s.logger.Warn(ctx, "failed to resolve alert", zap.Error(err))
		}
	}

	s.logger.Info(ctx, "remediation succeeded",
		zap.String("key", unit.Key),
		zap.Int("attempts", len(unit.Attempts)))
}

// failAttempt records a failed attempt and either respawns or escalates.
func (s *Service) failAttempt(ctx context.Context, unit *Unit, outcome, detail string) {
	now := s.now()

	if a := unit.lastAttempt(); a != nil && a.Outcome == "" {
		a.Outcome = outcome
		a.Error = detail
		a.Duration = now.Sub(a.StartedAt)
	}
	metrics.RecordAttempt(false)

	if err := unit.Transition(StatusFailed, now); err != nil {
		s.logger.Warn(ctx, "invalid failure transition", zap.Error(err))
		return
	}

	s.logger.Info(ctx, "corrective attempt failed",
		zap.String("key", unit.Key),
		zap.String("outcome", outcome),
		zap.Int("attempts", len(unit.Attempts)),
		zap.Int("max_attempts", s.cfg.MaxAttempts))

	if s.maybeEscalate(ctx, unit, detail) {
		return
	}

	// Attempts are strictly sequential: the next one starts only after this
	// failure is fully recorded.
	s.respawn(ctx, unit)
}

// respawn diagnoses afresh and submits the unit's next corrective job. A
// submit failure leaves the unit in failed for recoverFailed to retry.
func (s *Service) respawn(ctx context.Context, unit *Unit) {
	dctx := s.gatherContext(ctx, unit)
	unitDiagnosis := s.engine.Diagnose(dctx)
	unit.Diagnosis = &unitDiagnosis
	metrics.DiagnosesTotal.WithLabelValues(string(unitDiagnosis.Category)).Inc()

	if err := s.spawnAttempt(ctx, unit, dctx); err != nil {
		s.logger.Warn(ctx, "respawn failed", zap.Error(err))
	}
}

// maybeEscalate hands the unit off to humans once attempts are exhausted.
// Returns true when the unit was escalated.
func (s *Service) maybeEscalate(ctx context.Context, unit *Unit, lastError string) bool {
	if len(unit.Attempts) < s.cfg.MaxAttempts {
		return false
	}

	if err := unit.Transition(StatusEscalated, s.now()); err != nil {
		s.logger.Warn(ctx, "invalid escalation transition", zap.Error(err))
		return false
	}

	s.logger.Warn(ctx, "remediation exhausted, escalating",
		zap.String("key", unit.Key),
		zap.Int("attempts", len(unit.Attempts)))

	if s.dispatcher == nil {
		return true
	}

	report := escalate.Report{
		UnitKey:   unit.Key,
		Target:    unit.Target,
		LastError: lastError,
	}
	if unit.Diagnosis != nil {
		report.Category = string(unit.Diagnosis.Category)
		report.Summary = unit.Diagnosis.Summary
	}
	for _, a := range unit.Attempts {
		report.Attempts = append(report.Attempts, escalate.AttemptRow{
			Number:   a.Number,
			Agent:    a.Agent,
			Outcome:  a.Outcome,
			Duration: a.Duration,
		})
	}

	n := escalate.Notification{
		Severity: escalate.SeverityCritical,
		Subject:  fmt.Sprintf("remediation exhausted for %s", unit.Key),
		Body:     report.Render(),
	}
	if owner, repo, ok := splitRepository(unit.Repository); ok && unit.PRNumber > 0 {
		n.PR = &escalate.PRRef{Owner: owner, Repo: repo, Number: unit.PRNumber}
	}

	results := s.dispatcher.EscalateAndCollect(ctx, n)
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn(ctx, "escalation channel failed",
				zap.String("channel", r.Channel),
				zap.Error(r.Err))
		}
	}
	return true
}

// tailLogs fetches the failed job's recent output for the attempt record.
func (s *Service) tailLogs(ctx context.Context, unit *Unit) string {
	lines, err := s.runner.Logs(ctx, runner.Ref{Name: unit.JobName}, s.cfg.LogTailLines)
	if err != nil {
		metrics.GatherSourceFailures.WithLabelValues("job_logs").Inc()
		return "job logs unavailable: " + err.Error()
	}
	return strings.Join(lines, "\n")
}
