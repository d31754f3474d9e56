// Package logging provides structured logging for the harness.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - stderr and optional file output (stdout carries command results)
//   - Automatic context field injection (run.id, agent.role, run.workflow)
//   - Encoder-level secret redaction
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg, err := logging.FromSettings(appCfg.Logging)
//	logger, err := logging.NewLogger(cfg)
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, "20250101T120000Z")
//	ctx = logging.WithRole(ctx, "builder")
//	logger.Info(ctx, "implementation finished", zap.Int("files", 3))
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
//	tl.AssertNoSecrets(t)
//
// Logger is safe for concurrent use. Child loggers (With, Named) are
// independent and do not affect parent or siblings.
package logging
