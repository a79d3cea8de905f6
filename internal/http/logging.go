package http

import (
	"context"
	"log/slog"

	"github.com/example/room-reservations/internal/application"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = fallback
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"handler", handlerName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// logFailure logs a failed request at warn for caller errors and error for
// everything the caller could not have caused.
func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	args := []any{"error", err, "error_kind", application.ErrorKind(err), "status", status}
	if status >= 500 {
		logger.ErrorContext(ctx, msg, args...)
		return
	}
	logger.WarnContext(ctx, msg, args...)
}
