package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one reconcile cycle and exit",
	Long: `Run one cycle: sweep the task batch for failed or stuck tasks, then poll
every in-flight remediation unit, scoring finished attempts, respawning
failed ones, and escalating exhausted ones. Useful from cron or for
debugging.`,
	RunE: runPoll,
}

func runPoll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.svc.SweepTasks(ctx, a.tracker); err != nil {
		return err
	}
	if err := a.svc.Reconcile(ctx); err != nil {
		return err
	}

	a.logger.Info(ctx, "reconcile cycle complete", zap.String("version", version))
	return nil
}
