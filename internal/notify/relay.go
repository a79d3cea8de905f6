package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/room-reservations/internal/metrics"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

const (
	defaultBatchSize   = 50
	defaultBaseBackoff = 30 * time.Second
	defaultMaxBackoff  = 30 * time.Minute
)

// RelayConfig tunes outbox draining.
type RelayConfig struct {
	BatchSize   int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Now         func() time.Time
}

// Relay moves due outbox events to a Dispatcher. Delivery is at least once:
// an event is marked delivered only after Dispatch returns nil.
type Relay struct {
	outbox     persistence.OutboxRepository
	dispatcher Dispatcher
	cfg        RelayConfig
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewRelay builds a relay. Zero config fields take defaults.
func NewRelay(outbox persistence.OutboxRepository, dispatcher Dispatcher, cfg RelayConfig, m *metrics.Metrics, logger *slog.Logger) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = max(defaultMaxBackoff, cfg.BaseBackoff)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		outbox:     outbox,
		dispatcher: dispatcher,
		cfg:        cfg,
		metrics:    m,
		logger:     logger.With("component", "notify.Relay"),
	}
}

// Run drains the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "outbox drain failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce delivers one batch of due events and returns how many succeeded.
// Dispatch failures are rescheduled, not returned; only storage errors are.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	now := r.cfg.Now()
	events, err := r.outbox.ListPendingEvents(ctx, now, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, stored := range events {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		ok, err := r.deliver(ctx, stored)
		if err != nil {
			return delivered, err
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

func (r *Relay) deliver(ctx context.Context, stored persistence.OutboxEvent) (bool, error) {
	logger := r.logger.With("event_id", stored.ID, "kind", stored.Kind, "attempts", stored.Attempts)

	event, err := scheduler.DecodeEvent(stored.Payload)
	if err != nil {
		// An undecodable payload never succeeds; drop it instead of retrying.
		logger.ErrorContext(ctx, "discarding undecodable outbox event", "error", err)
		return false, r.outbox.MarkEventDelivered(ctx, stored.ID, r.cfg.Now())
	}

	dispatchErr := r.dispatcher.Dispatch(ctx, event)
	r.metrics.ObserveDelivery(dispatchErr)
	if dispatchErr == nil {
		if err := r.outbox.MarkEventDelivered(ctx, stored.ID, r.cfg.Now()); err != nil {
			return false, err
		}
		logger.DebugContext(ctx, "outbox event delivered")
		return true, nil
	}
	if errors.Is(dispatchErr, context.Canceled) && ctx.Err() != nil {
		return false, ctx.Err()
	}

	attempts := stored.Attempts + 1
	next := r.cfg.Now().Add(r.backoff(attempts))
	logger.WarnContext(ctx, "outbox delivery failed", "error", dispatchErr, "next_attempt_at", next)
	return false, r.outbox.MarkEventFailed(ctx, stored.ID, attempts, next, dispatchErr.Error())
}

// backoff doubles the base delay per failed attempt up to MaxBackoff.
func (r *Relay) backoff(attempts int) time.Duration {
	delay := r.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= r.cfg.MaxBackoff {
			return r.cfg.MaxBackoff
		}
	}
	return delay
}
