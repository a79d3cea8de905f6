package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/scheduler"
)

// Dispatcher delivers one event to its recipients. A returned error makes the
// relay retry the whole event later.
type Dispatcher interface {
	Dispatch(ctx context.Context, event scheduler.Event) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, event scheduler.Event) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, event scheduler.Event) error {
	return f(ctx, event)
}

// LogDispatcher writes every event as a structured log line.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher returns a dispatcher logging through logger, or through
// the context logger when logger is nil.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Dispatch logs the event.
func (d *LogDispatcher) Dispatch(ctx context.Context, event scheduler.Event) error {
	logger := d.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"event_id", event.ID,
		"fingerprint", event.Fingerprint(),
		"kind", string(event.Kind),
		"reservation_id", event.ReservationID,
		"room", event.Floor + "/" + event.Room,
		"start", event.Start,
		"recipients", event.Recipients,
	}
	if event.NewStatus != "" {
		attrs = append(attrs, "new_status", string(event.NewStatus))
	}
	logger.InfoContext(ctx, "reservation notification", attrs...)
	return nil
}

// Fanout hands each event to every dispatcher and joins their errors.
type Fanout []Dispatcher

// Dispatch calls every dispatcher even when an earlier one failed.
func (f Fanout) Dispatch(ctx context.Context, event scheduler.Event) error {
	var errs []error
	for _, d := range f {
		if d == nil {
			continue
		}
		if err := d.Dispatch(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
