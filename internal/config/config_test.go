package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Dedup.Window.Duration())
	assert.Equal(t, 30*time.Minute, cfg.Tracker.StuckAfter.Duration())
	assert.Equal(t, 3, cfg.Remediation.MaxAttempts)
	assert.Equal(t, 63, cfg.Remediation.MaxNameLength)
	assert.Equal(t, 0.8, cfg.Evaluator.Threshold)
	assert.Equal(t, 1.0, cfg.Evaluator.Weights.Feedback)
	assert.Equal(t, 0.8, cfg.Evaluator.Weights.StatusChecks)
	assert.Equal(t, 0.5, cfg.Evaluator.Weights.Manual)
	assert.Equal(t, "remedyd-fix", cfg.Remediation.JobPrefix)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Evaluator.Weights.Manual = 0.9
	cfg.Evaluator.Weights.Feedback = 0.1
	applyDefaults(cfg)

	assert.Equal(t, 0.9, cfg.Evaluator.Weights.Manual)
	assert.Equal(t, 0.1, cfg.Evaluator.Weights.Feedback)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "negative weight",
			mutate:  func(c *Config) { c.Evaluator.Weights.Approval = -0.5 },
			wantErr: "cannot be negative",
		},
		{
			name: "all weights zero",
			mutate: func(c *Config) {
				c.Evaluator.Weights = WeightsConfig{}
			},
			wantErr: "must not all be zero",
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.Evaluator.Threshold = 1.5 },
			wantErr: "threshold must be in (0, 1]",
		},
		{
			name:    "non-positive max attempts",
			mutate:  func(c *Config) { c.Remediation.MaxAttempts = -1 },
			wantErr: "max_attempts must be > 0",
		},
		{
			name:    "non-positive name length",
			mutate:  func(c *Config) { c.Remediation.MaxNameLength = -1 },
			wantErr: "max_name_length must be > 0",
		},
		{
			name:    "non-positive dedup window",
			mutate:  func(c *Config) { c.Dedup.Window = Duration(-time.Minute) },
			wantErr: "dedup window must be > 0",
		},
		{
			name:    "github enabled without token",
			mutate:  func(c *Config) { c.GitHub.Enabled = true },
			wantErr: "github token required",
		},
		{
			name: "github channel without integration",
			mutate: func(c *Config) {
				c.Escalation.GitHub.Enabled = true
			},
			wantErr: "requires github integration",
		},
		{
			name: "webhook channel without url",
			mutate: func(c *Config) {
				c.Escalation.Webhook.Enabled = true
			},
			wantErr: "requires a url",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "port must be 1-65535",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("45m")))
	assert.Equal(t, 45*time.Minute, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("not-a-duration")))
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("ghp_supersecret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "ghp_supersecret", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct {
		Token Secret `json:"token"`
	}{Token: s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "supersecret")
	assert.Contains(t, string(data), "[REDACTED]")

	empty := Secret("")
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}
