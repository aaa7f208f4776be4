// internal/logging/levels.go
package logging

import (
	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one step below Debug (-2) and carries the noisiest
// output: per-signal dedup decisions, raw runner responses. Filtered out
// everywhere but local debugging.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a configured level name. "trace" maps to
// TraceLevel; everything else goes through zapcore's own parsing.
func LevelFromString(level string) (zapcore.Level, error) {
	if level == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
