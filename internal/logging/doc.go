// Package logging provides structured, context-aware logging for vecli.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Console or JSON output on stderr (stdout carries command output)
//   - Automatic context field injection (request id, trace_id)
//   - Secret redaction by field name and value pattern
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, uuid.NewString())
//	logger.Info(ctx, "uploaded batch", zap.Int("points", 100))
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "exported records", zap.Int("count", 3))
//	tl.AssertLogged(t, zapcore.InfoLevel, "exported records")
//	tl.AssertField(t, "exported records", "count", int64(3))
package logging
