package remediation

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/signal"
	"github.com/fyrsmithlabs/remedyd/internal/store"
	"github.com/fyrsmithlabs/remedyd/internal/track"
)

// Signal types the task sweep emits.
const (
	TypeTaskFailed = "task-failed"
	TypeTaskStuck  = "task-stuck"
)

// SweepTasks loads the tracked batch and routes every task that needs
// remediation into the signal pipeline. Dedup absorbs repeated sweeps while a
// unit is open, so running this every poll cycle spawns at most one
// corrective job per task. Tasks that spawn a unit get their record stamped
// with the corrective job so the batch view shows what is being done.
func (s *Service) SweepTasks(ctx context.Context, tracker *track.Tracker) error {
	recs, err := s.store.List(ctx, store.TaskPrefix)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}

	records := make(map[string]map[string]string, len(recs))
	for id, rec := range recs {
		records[id] = rec
	}
	batch := tracker.Load(ctx, records)

	now := s.now()
	var firstErr error
	for _, task := range batch.Tasks {
		if !tracker.NeedsRemediation(task, now) {
			continue
		}
		if err := s.remediateTask(ctx, task); err != nil {
			s.logger.Warn(ctx, "task remediation failed",
				zap.String("task_id", task.ID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// remediateTask converts one failed or stuck task into a failure signal and
// hands it to the pipeline. A nil unit means dedup absorbed the signal.
func (s *Service) remediateTask(ctx context.Context, task track.TaskState) error {
	sigType := TypeTaskStuck
	severity := signal.SeverityWarning
	if task.Status.Kind == track.StatusFailed {
		sigType = TypeTaskFailed
		severity = signal.SeverityCritical
	}

	sig := &signal.Signal{
		Type:     sigType,
		Target:   "task-" + task.ID,
		Severity: severity,
		Labels:   map[string]string{LabelTaskID: task.ID},
	}
	if task.Repository != "" {
		sig.Labels[LabelRepository] = task.Repository
	}
	if task.PRNumber > 0 {
		sig.Labels[LabelPRNumber] = strconv.Itoa(task.PRNumber)
	}
	sig.Normalize(s.now())

	unit, err := s.HandleSignal(ctx, sig)
	if err != nil {
		return err
	}
	if unit == nil {
		return nil
	}

	s.logger.Info(ctx, "task routed to remediation",
		zap.String("task_id", task.ID),
		zap.String("reason", string(task.Status.Kind)),
		zap.String("key", unit.Key))

	marker := unit.JobName
	if marker == "" {
		marker = unit.Key
	}
	task.Status.Remediation = marker
	task.LastUpdated = s.now()
	if err := s.store.Put(ctx, store.TaskKey(task.ID), track.Record(task)); err != nil {
		return fmt.Errorf("failed to update task %s: %w", task.ID, err)
	}
	return nil
}
