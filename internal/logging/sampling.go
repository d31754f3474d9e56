package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below debug. Run loops use it for per-file and per-event
// detail that is off in normal operation.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name, accepting "trace" in addition to
// the zap names.
func LevelFromString(level string) (zapcore.Level, error) {
	if strings.EqualFold(level, "trace") {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

// newSampledCore samples entries below error. Errors always reach core.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	sampled := zapcore.NewSamplerWithOptions(
		&bandCore{Core: core, below: zapcore.ErrorLevel},
		cfg.Tick.Duration(), cfg.Initial, cfg.Thereafter,
	)
	return zapcore.NewTee(&bandCore{Core: core, from: zapcore.ErrorLevel, bounded: true}, sampled)
}

// bandCore passes entries at or above from (when bounded) and below below
// (when below is set).
type bandCore struct {
	zapcore.Core
	from    zapcore.Level
	bounded bool
	below   zapcore.Level
}

func (c *bandCore) Enabled(lvl zapcore.Level) bool {
	if c.bounded && lvl < c.from {
		return false
	}
	if c.below != 0 && lvl >= c.below {
		return false
	}
	return c.Core.Enabled(lvl)
}

func (c *bandCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *bandCore) With(fields []zapcore.Field) zapcore.Core {
	return &bandCore{Core: c.Core.With(fields), from: c.from, bounded: c.bounded, below: c.below}
}
