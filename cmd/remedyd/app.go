package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/config"
	"github.com/fyrsmithlabs/remedyd/internal/dedup"
	"github.com/fyrsmithlabs/remedyd/internal/escalate"
	"github.com/fyrsmithlabs/remedyd/internal/evaluate"
	"github.com/fyrsmithlabs/remedyd/internal/github"
	"github.com/fyrsmithlabs/remedyd/internal/logging"
	"github.com/fyrsmithlabs/remedyd/internal/naming"
	"github.com/fyrsmithlabs/remedyd/internal/remediation"
	"github.com/fyrsmithlabs/remedyd/internal/runner"
	"github.com/fyrsmithlabs/remedyd/internal/store"
	"github.com/fyrsmithlabs/remedyd/internal/track"
)

// app bundles the wired daemon: configuration, infrastructure connections,
// and the remediation service.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	nc      *nats.Conn
	store   store.Store
	svc     *remediation.Service
	tracker *track.Tracker
}

// newApp loads configuration and wires every component. The caller owns the
// returned app and must Close it.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	logger.Info(ctx, "connected to NATS", zap.String("url", cfg.NATS.URL))

	st, err := store.NewKVStore(nc, cfg.NATS.Bucket)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open KV bucket %s: %w", cfg.NATS.Bucket, err)
	}

	svc, err := buildService(ctx, cfg, nc, st, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		nc:      nc,
		store:   st,
		svc:     svc,
		tracker: track.NewTracker(cfg.Tracker.StuckAfter.Duration(), logger),
	}, nil
}

// Close releases infrastructure resources.
func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.nc != nil {
		a.nc.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadWithFile(configPath)
	}
	return config.Load()
}

func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	lcfg := logging.NewDefaultConfig()
	lcfg.Level = level
	lcfg.Format = cfg.Logging.Format
	return logging.NewLogger(lcfg)
}

// buildService wires the remediation service and its collaborators.
func buildService(ctx context.Context, cfg *config.Config, nc *nats.Conn, st store.Store, logger *logging.Logger) (*remediation.Service, error) {
	if cfg.Runner.BaseURL == "" {
		return nil, fmt.Errorf("runner base_url is required")
	}
	run, err := runner.NewClient(runner.ClientConfig{
		BaseURL: cfg.Runner.BaseURL,
		Token:   cfg.Runner.Token,
		Timeout: cfg.Runner.Timeout.Duration(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner client: %w", err)
	}

	codec, err := naming.NewCodec(naming.Config{
		Prefix:    cfg.Remediation.JobPrefix,
		MaxLength: cfg.Remediation.MaxNameLength,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create naming codec: %w", err)
	}

	evaluator, err := evaluate.NewEvaluator(evaluate.Config{
		FeedbackWeight:     cfg.Evaluator.Weights.Feedback,
		ApprovalWeight:     cfg.Evaluator.Weights.Approval,
		StatusChecksWeight: cfg.Evaluator.Weights.StatusChecks,
		NoCriticalWeight:   cfg.Evaluator.Weights.NoCritical,
		ManualWeight:       cfg.Evaluator.Weights.Manual,
		Threshold:          cfg.Evaluator.Threshold,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluator: %w", err)
	}

	var gh *github.Client
	if cfg.GitHub.Enabled {
		gh, err = github.NewClient(ctx, github.ClientConfig{
			Token: cfg.GitHub.Token,
			RPS:   cfg.GitHub.RPS,
			Burst: cfg.GitHub.Burst,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
	}

	var channels []escalate.Channel
	if gh != nil {
		channels = append(channels, escalate.NewGitHubChannel(gh, cfg.Escalation.GitHub.Enabled))
	}
	channels = append(channels,
		escalate.NewWebhookChannel(
			cfg.Escalation.Webhook.URL,
			cfg.Escalation.Webhook.Token,
			cfg.Escalation.Webhook.Timeout.Duration(),
			cfg.Escalation.Webhook.Enabled,
		),
		escalate.NewNATSChannel(nc, cfg.Escalation.NATS.Subject, cfg.Escalation.NATS.Enabled),
	)

	deps := remediation.Deps{
		Store:      st,
		Runner:     run,
		Evaluator:  evaluator,
		Dispatcher: escalate.NewDispatcher(channels, logger),
		Codec:      codec,
		Config: remediation.Config{
			MaxAttempts:  cfg.Remediation.MaxAttempts,
			LogTailLines: cfg.Remediation.LogTailLines,
		},
		Logger: logger,
	}
	if gh != nil {
		deps.Source = gh
	}

	svc, err := remediation.NewService(deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create remediation service: %w", err)
	}

	cache := dedup.NewCache(cfg.Dedup.CacheTTL.Duration())
	filter := dedup.NewFilter(svc, st, cache, cfg.Dedup.Window.Duration(), logger)
	svc.AttachFilter(filter)

	return svc, nil
}
