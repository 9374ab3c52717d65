// Package observability provides structured logging, metrics, and tracing
// for the event hub.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
)

// EnrichLogger adds extension context to a logger.
// Returns a new logger with the extension field.
//
// Example:
//
//	enriched := EnrichLogger(logger, "com.example.module.demo")
//	enriched.Info("inbox drained") // includes extension
func EnrichLogger(logger *slog.Logger, extension string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("extension", extension),
	)
}

// LogEventDispatched logs an event entering the hub's ingress.
func LogEventDispatched(logger *slog.Logger, eventID, eventType, eventSource string, number int64) {
	if logger == nil {
		return
	}
	logger.Debug("event dispatched",
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("event_source", eventSource),
		slog.Int64("event_number", number),
	)
}

// LogEventDiscarded logs an event dropped by the preprocessor pipeline.
// The event keeps its number; only fan-out is skipped.
func LogEventDiscarded(logger *slog.Logger, eventID string, reason any) {
	if logger == nil {
		return
	}
	logger.Error("event discarded by preprocessor",
		slog.String("event_id", eventID),
		slog.Any("reason", reason),
	)
}

// LogExtensionRegistered logs successful extension registration.
func LogExtensionRegistered(logger *slog.Logger) {
	if logger == nil {
		return
	}
	logger.Info("extension registered")
}

// LogExtensionUnregistered logs extension teardown.
func LogExtensionUnregistered(logger *slog.Logger) {
	if logger == nil {
		return
	}
	logger.Info("extension unregistered")
}

// LogCallbackPanic logs a recovered panic from an extension callback.
func LogCallbackPanic(logger *slog.Logger, stage string, recovered any) {
	if logger == nil {
		return
	}
	logger.Error("extension callback panicked",
		slog.String("stage", stage),
		slog.Any("panic", recovered),
	)
}

// LogSharedStateCreated logs a shared-state snapshot write.
func LogSharedStateCreated(logger *slog.Logger, owner, kind string, version int64, pending bool) {
	if logger == nil {
		return
	}
	logger.Debug("shared state created",
		slog.String("owner", owner),
		slog.String("kind", kind),
		slog.Int64("version", version),
		slog.Bool("pending", pending),
	)
}

// LogSharedStateRejected logs a shared-state write that violated the
// version ordering rules and was ignored.
func LogSharedStateRejected(logger *slog.Logger, owner, kind string, version int64) {
	if logger == nil {
		return
	}
	logger.Warn("shared state write rejected",
		slog.String("owner", owner),
		slog.String("kind", kind),
		slog.Int64("version", version),
	)
}

// LogHistoryError logs an event-history operation failure (non-fatal).
func LogHistoryError(logger *slog.Logger, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event history failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}
