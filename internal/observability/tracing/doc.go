// Package tracing provides OpenTelemetry tracing integration for the
// pipeline's cron-driven run loops.
//
// internal/worker.Runner opens one span per collector/dispatcher/
// scheduler cycle via GetTracer().Start, the per-cycle unit of work
// standing in for the per-request span a server-style service would
// open instead.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "dispatcher.cycle")
//	defer span.End()
package tracing
