package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/server"
	sig "github.com/fyrsmithlabs/remedyd/internal/signal"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the remediation daemon",
	Long: `Start the remedyd daemon: HTTP signal ingest, NATS signal subscription,
and the periodic reconcile loop, with graceful shutdown on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info(ctx, "starting remedyd",
		zap.String("version", version),
		zap.Int("port", a.cfg.Server.Port),
		zap.Duration("poll_interval", a.cfg.Poll.Interval.Duration()))

	sub, err := subscribeSignals(ctx, a)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	go runPollLoop(ctx, a)

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout.Duration(),
	}, a.svc, a.logger)

	if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
		return err
	}

	a.logger.Info(ctx, "shutdown complete")
	return nil
}

// subscribeSignals feeds NATS-delivered failure signals into the pipeline.
func subscribeSignals(ctx context.Context, a *app) (*nats.Subscription, error) {
	subject := a.cfg.NATS.SignalSubject

	sub, err := a.nc.Subscribe(subject, func(msg *nats.Msg) {
		var s sig.Signal
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			a.logger.Warn(ctx, "discarding undecodable signal",
				zap.String("subject", msg.Subject),
				zap.Error(err))
			return
		}

		s.Normalize(time.Now())
		if err := s.Validate(); err != nil {
			a.logger.Warn(ctx, "discarding invalid signal",
				zap.String("subject", msg.Subject),
				zap.Error(err))
			return
		}

		if _, err := a.svc.HandleSignal(ctx, &s); err != nil {
			a.logger.Error(ctx, "signal handling failed",
				zap.String("key", s.Key()),
				zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info(ctx, "subscribed to signals", zap.String("subject", subject))
	return sub, nil
}

// runPollLoop drives the periodic cycle until the context ends: sweep the
// task batch for failed or stuck tasks, then reconcile in-flight units.
func runPollLoop(ctx context.Context, a *app) {
	ticker := time.NewTicker(a.cfg.Poll.Interval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.svc.SweepTasks(ctx, a.tracker); err != nil {
				a.logger.Warn(ctx, "task sweep finished with errors", zap.Error(err))
			}
			if err := a.svc.Reconcile(ctx); err != nil {
				a.logger.Warn(ctx, "reconcile cycle finished with errors", zap.Error(err))
			}
		}
	}
}
