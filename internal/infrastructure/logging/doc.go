// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Loggers are injected explicitly; nothing logs through a global.
// Call Sync on shutdown to flush buffered entries.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("server starting", zap.String("port", "8000"))
//	logger.Error("boot gate failed", zap.Error(err))
package logging
