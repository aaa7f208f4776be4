package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/remedyd/internal/config"
)

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info(context.Background(), "started")
	assert.NoError(t, logger.Sync())
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format must be")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(*Config) {}, false},
		{"bad format", func(c *Config) { c.Format = "yaml" }, true},
		{"zero sampling tick", func(c *Config) { c.Sampling.Tick = 0 }, true},
		{"negative caller skip", func(c *Config) { c.Caller.Skip = -1 }, true},
		{"bad redaction pattern", func(c *Config) { c.Redaction.Patterns = []string{"("} }, true},
		{"empty field value", func(c *Config) { c.Fields = map[string]string{"service": ""} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)

	lvl, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = LevelFromString("loud")
	assert.Error(t, err)
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))

	ctx = WithUnit(ctx, "ci-build:pod-123")
	ctx = WithTaskID(ctx, "7")
	ctx = WithRequestID(ctx, "req-abc")

	fields := ContextFields(ctx)
	assert.Len(t, fields, 3)

	assert.Equal(t, "ci-build:pod-123", UnitFromContext(ctx))
	assert.Equal(t, "7", TaskIDFromContext(ctx))
	assert.Equal(t, "req-abc", RequestIDFromContext(ctx))
}

func TestRedactingEncoder(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{
		Enabled: true,
		Fields:  []string{"token"},
		Patterns: []string{
			`(?i)bearer\s+\S+`,
		},
	})
	require.NoError(t, err)

	enc.AddString("token", "ghp_abc123")
	enc.AddString("note", "Bearer abc123")
	enc.AddString("target", "pod-123")

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "m"}, nil)
	require.NoError(t, err)
	out := buf.String()

	assert.NotContains(t, out, "ghp_abc123")
	assert.NotContains(t, out, "Bearer abc123")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "[REDACTED:pattern]")
	assert.Contains(t, out, "pod-123")
}

func TestRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{
		Enabled:  true,
		Patterns: []string{"("},
	})
	assert.Error(t, err)
}

func TestSecretField(t *testing.T) {
	f := Secret("token", config.Secret("hunter2"))
	assert.Equal(t, "token", f.Key)

	rs := RedactedString("password", "hunter2")
	assert.Contains(t, rs.String, "[REDACTED:7]")
}
