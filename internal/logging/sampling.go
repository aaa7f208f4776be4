// internal/logging/sampling.go
package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore applies rate sampling to everything below Error. Errors
// and above always pass: a reconcile loop can emit the same warning every
// cycle, but dropped errors would hide real failures.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	errors := &bandCore{core: core, minLevel: zapcore.ErrorLevel}
	chatter := &bandCore{core: core, maxLevel: zapcore.WarnLevel}

	infoSampling := cfg.Levels[zapcore.InfoLevel]
	sampled := zapcore.NewSamplerWithOptions(
		chatter,
		cfg.Tick.Duration(),
		infoSampling.Initial,
		infoSampling.Thereafter,
	)

	return zapcore.NewTee(errors, sampled)
}

// bandCore passes entries within [minLevel, maxLevel]; a zero bound is open.
type bandCore struct {
	core     zapcore.Core
	minLevel zapcore.Level
	maxLevel zapcore.Level
}

func (c *bandCore) Enabled(lvl zapcore.Level) bool {
	if c.minLevel != 0 && lvl < c.minLevel {
		return false
	}
	if c.maxLevel != 0 && lvl > c.maxLevel {
		return false
	}
	return c.core.Enabled(lvl)
}

func (c *bandCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.core.Check(e, ce)
}

func (c *bandCore) With(fields []zapcore.Field) zapcore.Core {
	return &bandCore{
		core:     c.core.With(fields),
		minLevel: c.minLevel,
		maxLevel: c.maxLevel,
	}
}

func (c *bandCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	return c.core.Write(e, fields)
}

func (c *bandCore) Sync() error {
	return c.core.Sync()
}
