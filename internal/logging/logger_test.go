package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/archharness/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.NotNil(t, logger.zap)
	assert.Equal(t, cfg, logger.config)
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.log")
	cfg := NewDefaultConfig()
	cfg.Format = "json"
	cfg.Output.Stderr = false
	cfg.Output.File = path
	cfg.Sampling.Enabled = false

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	ctx := WithRunID(context.Background(), "20250101T000000Z")
	logger.Info(ctx, "run started", zap.String("token", "abc"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run.id":"20250101T000000Z"`)
	assert.Contains(t, string(data), `"token":"[REDACTED]"`)
	assert.NotContains(t, string(data), `"abc"`)
}

func TestLogger_ContextAwareMethods(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	logger := &Logger{
		zap:    zap.New(core),
		config: NewDefaultConfig(),
	}

	ctx := context.Background()

	tests := []struct {
		name    string
		logFunc func()
		level   zapcore.Level
		message string
	}{
		{
			name:    "trace",
			logFunc: func() { logger.Trace(ctx, "trace message") },
			level:   TraceLevel,
			message: "trace message",
		},
		{
			name:    "debug",
			logFunc: func() { logger.Debug(ctx, "debug message") },
			level:   zapcore.DebugLevel,
			message: "debug message",
		},
		{
			name:    "info",
			logFunc: func() { logger.Info(ctx, "info message") },
			level:   zapcore.InfoLevel,
			message: "info message",
		},
		{
			name:    "warn",
			logFunc: func() { logger.Warn(ctx, "warn message") },
			level:   zapcore.WarnLevel,
			message: "warn message",
		},
		{
			name:    "error",
			logFunc: func() { logger.Error(ctx, "error message") },
			level:   zapcore.ErrorLevel,
			message: "error message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observed.TakeAll()
			tt.logFunc()

			logs := observed.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.level, logs[0].Level)
			assert.Equal(t, tt.message, logs[0].Message)
		})
	}
}

func TestContextFields(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))

	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithRole(ctx, "builder")
	ctx = WithWorkflow(ctx, "frontend_feature")

	tl := NewTestLogger()
	tl.Info(ctx, "correlated")

	tl.AssertRunCorrelation(t, "correlated")
	tl.AssertField(t, "correlated", "agent.role", "builder")
	tl.AssertField(t, "correlated", "run.workflow", "frontend_feature")
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()
	child := tl.Named("orchestrator").With(zap.String("component", "loop"))
	child.Info(context.Background(), "child log")

	entries := tl.observed.FilterMessage("child log").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "orchestrator", entries[0].LoggerName)
	tl.AssertField(t, "child log", "component", "loop")
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad format", mutate: func(c *Config) { c.Format = "xml" }, wantErr: "format"},
		{name: "no output", mutate: func(c *Config) { c.Output.Stderr = false }, wantErr: "output"},
		{name: "zero tick", mutate: func(c *Config) { c.Sampling.Tick = 0 }, wantErr: "tick"},
		{name: "bad pattern", mutate: func(c *Config) { c.Redaction.Patterns = []string{"("} }, wantErr: "invalid redaction pattern"},
		{name: "empty field value", mutate: func(c *Config) { c.Fields["env"] = "" }, wantErr: "empty value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{Level: "trace", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)

	_, err = FromSettings(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestRedactingEncoder(t *testing.T) {
	base := zapcore.NewJSONEncoder(zapcore.EncoderConfig{MessageKey: "msg"})
	enc, err := NewRedactingEncoder(base, NewDefaultConfig().Redaction)
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "m"}, []zapcore.Field{
		zap.String("password", "hunter2"),
		zap.String("header", "Bearer abc.def"),
		zap.String("user", "alice"),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"password":"[REDACTED]"`)
	assert.Contains(t, out, `"header":"[REDACTED:pattern]"`)
	assert.Contains(t, out, `"user":"alice"`)
	assert.NotContains(t, out, "hunter2")
}

func TestRedactingEncoder_ObjectsAndPassThrough(t *testing.T) {
	base := zapcore.NewJSONEncoder(zapcore.EncoderConfig{MessageKey: "msg"})
	enc, err := NewRedactingEncoder(base, NewDefaultConfig().Redaction)
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "m"}, []zapcore.Field{
		Secret("token", config.Secret("abc")),
		Secret("nats", config.Secret("abcd")),
		zap.Strings("missing", []string{"task", "workspace"}),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"token":"[REDACTED]"`)
	assert.Contains(t, out, `"nats":{"nats":"[REDACTED:4]"}`)
	assert.Contains(t, out, `"missing":["task","workspace"]`)
	assert.NotContains(t, out, "abcd")
}

func TestNewRedactingEncoder_PatternTooLong(t *testing.T) {
	base := zapcore.NewJSONEncoder(zapcore.EncoderConfig{})
	_, err := NewRedactingEncoder(base, RedactionConfig{
		Enabled:  true,
		Patterns: []string{strings.Repeat("a", maxPatternLen+1)},
	})
	assert.ErrorContains(t, err, "too long")

	enc, err := NewRedactingEncoder(base, RedactionConfig{Patterns: []string{"("}})
	require.NoError(t, err, "disabled redaction ignores patterns")
	assert.False(t, enc.sensitive("password"))
}

func TestSecretField(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "auth", Secret("creds", config.Secret("super-secret-value")))

	entries := tl.All()
	require.Len(t, entries, 1)
	marshaler, ok := entries[0].Context[0].Interface.(zapcore.ObjectMarshaler)
	require.True(t, ok)

	enc := zapcore.NewMapObjectEncoder()
	require.NoError(t, marshaler.MarshalLogObject(enc))
	assert.Equal(t, "[REDACTED:18]", enc.Fields["creds"])
}

func TestSampledCore_ErrorsNeverDropped(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	sampled := zap.New(newSampledCore(core, SamplingConfig{
		Enabled:    true,
		Tick:       config.Duration(time.Minute),
		Initial:    1,
		Thereafter: 0,
	}))

	for i := 0; i < 5; i++ {
		sampled.Info("tick")
		sampled.Error("boom")
	}

	assert.Equal(t, 1, observed.FilterMessage("tick").Len())
	assert.Equal(t, 5, observed.FilterMessage("boom").Len())
}

func TestLevelFromString(t *testing.T) {
	for in, want := range map[string]zapcore.Level{
		"trace": TraceLevel,
		"TRACE": TraceLevel,
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
	} {
		got, err := LevelFromString(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := LevelFromString("loud")
	assert.Error(t, err)
}
