// Package sweeper runs the periodic expiry of pending reservations whose slot
// has ended.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/metrics"
)

// Expirer moves ended pending reservations to expired and reports how many
// it changed.
type Expirer interface {
	Expire(ctx context.Context) (int, error)
}

// DefaultTimeout bounds a single expiry pass.
const DefaultTimeout = time.Minute

// Sweeper coalesces concurrent sweep requests so at most one runs at a time.
// Callers that arrive while a sweep is running share its result.
type Sweeper struct {
	expirer Expirer
	group   singleflight.Group
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithTimeout bounds each expiry pass by d.
func WithTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New builds a sweeper around expirer.
func New(expirer Expirer, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{expirer: expirer, timeout: DefaultTimeout, metrics: m, logger: logger.With("component", "sweeper")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs one expiry pass, or joins the one already in flight. The pass is
// detached from the caller that started it: a caller that gives up gets
// ctx.Err() while the pass continues, bounded by the sweeper timeout, for
// everyone else that joined.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ch := s.group.DoChan("expire", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		start := time.Now()
		count, err := s.expirer.Expire(runCtx)
		s.metrics.ObserveSweep(count, err)
		if err != nil {
			s.logger.WarnContext(runCtx, "expiry sweep failed",
				"error", err,
				"error_kind", application.ErrorKind(err),
				"expired", count,
			)
		} else if count > 0 {
			s.logger.InfoContext(runCtx, "expiry sweep completed", "expired", count, "duration", time.Since(start))
		}
		return count, err
	})

	select {
	case res := <-ch:
		count, _ := res.Val.(int)
		if res.Shared {
			s.logger.DebugContext(ctx, "joined running expiry sweep")
		}
		return count, res.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		_, _ = s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
