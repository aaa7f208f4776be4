// internal/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for remedyd.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	NATS        NATSConfig        `koanf:"nats"`
	GitHub      GitHubConfig      `koanf:"github"`
	Runner      RunnerConfig      `koanf:"runner"`
	Dedup       DedupConfig       `koanf:"dedup"`
	Tracker     TrackerConfig     `koanf:"tracker"`
	Evaluator   EvaluatorConfig   `koanf:"evaluator"`
	Remediation RemediationConfig `koanf:"remediation"`
	Escalation  EscalationConfig  `koanf:"escalation"`
	Poll        PollConfig        `koanf:"poll"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds the subset of logger settings exposed via the config
// file. The full logger config lives in internal/logging; cmd maps this in.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// NATSConfig holds NATS connection and JetStream KV settings.
type NATSConfig struct {
	URL           string `koanf:"url"`
	Bucket        string `koanf:"bucket"`
	SignalSubject string `koanf:"signal_subject"`
}

// GitHubConfig holds GitHub API access settings.
type GitHubConfig struct {
	Token   Secret  `koanf:"token"`
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// RunnerConfig holds settings for the corrective-job runner API.
type RunnerConfig struct {
	BaseURL string   `koanf:"base_url"`
	Token   Secret   `koanf:"token"`
	Timeout Duration `koanf:"timeout"`
}

// DedupConfig holds duplicate-suppression settings.
type DedupConfig struct {
	Window   Duration `koanf:"window"`
	CacheTTL Duration `koanf:"cache_ttl"`
}

// TrackerConfig holds batch/task tracker thresholds.
type TrackerConfig struct {
	StuckAfter Duration `koanf:"stuck_after"`
}

// EvaluatorConfig holds success-evaluator weights and threshold.
type EvaluatorConfig struct {
	Weights   WeightsConfig `koanf:"weights"`
	Threshold float64       `koanf:"threshold"`
}

// WeightsConfig holds per-criterion weights for success scoring.
type WeightsConfig struct {
	Feedback     float64 `koanf:"feedback"`
	Approval     float64 `koanf:"approval"`
	StatusChecks float64 `koanf:"status_checks"`
	NoCritical   float64 `koanf:"no_critical"`
	Manual       float64 `koanf:"manual"`
}

// RemediationConfig holds orchestrator settings.
type RemediationConfig struct {
	MaxAttempts    int      `koanf:"max_attempts"`
	JobPrefix      string   `koanf:"job_prefix"`
	MaxNameLength  int      `koanf:"max_name_length"`
	ContextTimeout Duration `koanf:"context_timeout"`
	LogTailLines   int      `koanf:"log_tail_lines"`
}

// EscalationConfig holds notification channel settings.
type EscalationConfig struct {
	GitHub  GitHubChannelConfig  `koanf:"github"`
	Webhook WebhookChannelConfig `koanf:"webhook"`
	NATS    NATSChannelConfig    `koanf:"nats"`
}

// GitHubChannelConfig enables escalation via PR comments.
type GitHubChannelConfig struct {
	Enabled bool `koanf:"enabled"`
}

// WebhookChannelConfig enables escalation via an HTTP webhook.
type WebhookChannelConfig struct {
	Enabled bool     `koanf:"enabled"`
	URL     string   `koanf:"url"`
	Token   Secret   `koanf:"token"`
	Timeout Duration `koanf:"timeout"`
}

// NATSChannelConfig enables escalation via a NATS subject.
type NATSChannelConfig struct {
	Enabled bool   `koanf:"enabled"`
	Subject string `koanf:"subject"`
}

// PollConfig holds reconcile loop settings.
type PollConfig struct {
	Interval Duration `koanf:"interval"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.NATS.Bucket == "" {
		cfg.NATS.Bucket = "remedyd-records"
	}
	if cfg.NATS.SignalSubject == "" {
		cfg.NATS.SignalSubject = "remedyd.signals.>"
	}

	if cfg.GitHub.RPS == 0 {
		cfg.GitHub.RPS = 5
	}
	if cfg.GitHub.Burst == 0 {
		cfg.GitHub.Burst = 10
	}

	if cfg.Runner.Timeout == 0 {
		cfg.Runner.Timeout = Duration(30 * time.Second)
	}

	if cfg.Dedup.Window == 0 {
		cfg.Dedup.Window = Duration(30 * time.Minute)
	}
	if cfg.Dedup.CacheTTL == 0 {
		cfg.Dedup.CacheTTL = Duration(5 * time.Minute)
	}

	if cfg.Tracker.StuckAfter == 0 {
		cfg.Tracker.StuckAfter = Duration(30 * time.Minute)
	}

	if cfg.Evaluator.Threshold == 0 {
		cfg.Evaluator.Threshold = 0.8
	}
	if cfg.Evaluator.Weights == (WeightsConfig{}) {
		cfg.Evaluator.Weights = WeightsConfig{
			Feedback:     1.0,
			Approval:     1.0,
			StatusChecks: 0.8,
			NoCritical:   1.0,
			Manual:       0.5,
		}
	}

	if cfg.Remediation.MaxAttempts == 0 {
		cfg.Remediation.MaxAttempts = 3
	}
	if cfg.Remediation.JobPrefix == "" {
		cfg.Remediation.JobPrefix = "remedyd-fix"
	}
	if cfg.Remediation.MaxNameLength == 0 {
		cfg.Remediation.MaxNameLength = 63
	}
	if cfg.Remediation.ContextTimeout == 0 {
		cfg.Remediation.ContextTimeout = Duration(20 * time.Second)
	}
	if cfg.Remediation.LogTailLines == 0 {
		cfg.Remediation.LogTailLines = 200
	}

	if cfg.Escalation.Webhook.Timeout == 0 {
		cfg.Escalation.Webhook.Timeout = Duration(10 * time.Second)
	}
	if cfg.Escalation.NATS.Subject == "" {
		cfg.Escalation.NATS.Subject = "remedyd.escalations"
	}

	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = Duration(time.Minute)
	}
}

// Validate checks the configuration for errors that must be fatal before
// first use: invalid weights, non-positive limits, missing credentials for
// enabled integrations.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}

	if c.Dedup.Window.Duration() <= 0 {
		return fmt.Errorf("dedup window must be > 0")
	}
	if c.Tracker.StuckAfter.Duration() <= 0 {
		return fmt.Errorf("tracker stuck_after must be > 0")
	}

	w := c.Evaluator.Weights
	for name, v := range map[string]float64{
		"feedback":      w.Feedback,
		"approval":      w.Approval,
		"status_checks": w.StatusChecks,
		"no_critical":   w.NoCritical,
		"manual":        w.Manual,
	} {
		if v < 0 {
			return fmt.Errorf("evaluator weight %q cannot be negative: %v", name, v)
		}
	}
	if w.Feedback+w.Approval+w.StatusChecks+w.NoCritical+w.Manual <= 0 {
		return fmt.Errorf("evaluator weights must not all be zero")
	}
	if c.Evaluator.Threshold <= 0 || c.Evaluator.Threshold > 1 {
		return fmt.Errorf("evaluator threshold must be in (0, 1], got %v", c.Evaluator.Threshold)
	}

	if c.Remediation.MaxAttempts <= 0 {
		return fmt.Errorf("remediation max_attempts must be > 0, got %d", c.Remediation.MaxAttempts)
	}
	if c.Remediation.MaxNameLength <= 0 {
		return fmt.Errorf("remediation max_name_length must be > 0, got %d", c.Remediation.MaxNameLength)
	}

	if c.GitHub.Enabled && !c.GitHub.Token.IsSet() {
		return fmt.Errorf("github token required when github integration is enabled")
	}
	if c.Escalation.GitHub.Enabled && !c.GitHub.Enabled {
		return fmt.Errorf("github escalation channel requires github integration")
	}
	if c.Escalation.Webhook.Enabled && c.Escalation.Webhook.URL == "" {
		return fmt.Errorf("webhook escalation channel requires a url")
	}

	if c.Poll.Interval.Duration() <= 0 {
		return fmt.Errorf("poll interval must be > 0")
	}

	return nil
}
