package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/remedyd/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show batch progress and open remediation units",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := printTasks(ctx, a); err != nil {
		return err
	}
	return printUnits(ctx, a)
}

func printTasks(ctx context.Context, a *app) error {
	recs, err := a.store.List(ctx, store.TaskPrefix)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	records := make(map[string]map[string]string, len(recs))
	for id, rec := range recs {
		records[id] = rec
	}
	batch := a.tracker.Load(ctx, records)

	fmt.Printf("Batch: %s (%d/%d tasks, %.0f%%)\n",
		batch.Status.Kind, batch.Status.Completed, batch.Status.Total, batch.Progress()*100)
	if len(batch.Status.FailedTasks) > 0 {
		fmt.Printf("Failed tasks: %s\n", strings.Join(batch.Status.FailedTasks, ", "))
	}

	now := time.Now()
	for _, task := range batch.Tasks {
		line := fmt.Sprintf("  task %-6s %-12s", task.ID, task.Status.Kind)
		if task.Status.Stage != "" {
			line += fmt.Sprintf(" stage=%s", task.Status.Stage)
		}
		if task.PRNumber > 0 {
			line += fmt.Sprintf(" pr=#%d", task.PRNumber)
		}
		if a.tracker.IsStuck(task, now) {
			line += " [stuck]"
		}
		fmt.Println(line)
	}
	return nil
}

func printUnits(ctx context.Context, a *app) error {
	units, err := a.svc.ListUnits(ctx)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		fmt.Println("No remediation units.")
		return nil
	}

	fmt.Println("\nRemediation units:")
	for _, u := range units {
		fmt.Printf("  %-24s %-12s attempts=%d", u.Key, u.Status, len(u.Attempts))
		if u.JobName != "" {
			fmt.Printf(" job=%s", u.JobName)
		}
		if u.Diagnosis != nil {
			fmt.Printf(" diagnosis=%s", u.Diagnosis.Category)
		}
		fmt.Println()
	}
	return nil
}
