// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Key features:
//   - JSON and text output formats
//   - Per-source logger tagging (WithSource)
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "newsfeed-pipeline/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started", slog.String("version", "1.0"))
//	}
//
//	func runCycle(ctx context.Context, source string) {
//	    logger := logging.WithSource(logging.FromContext(ctx), source)
//	    logger.Info("cycle started")
//	}
package logging
