package sqlstore

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/example/room-reservations/internal/persistence"
)

var outboxColumns = []string{
	"id", "fingerprint", "kind", "payload", "attempts", "next_attempt_at", "last_error", "created_at", "delivered_at",
}

// EnqueueEvent stores a notification for delivery unless its fingerprint is
// already queued. The conflict clause keeps a Postgres transaction usable.
func (s *Store) EnqueueEvent(ctx context.Context, e persistence.OutboxEvent) (bool, error) {
	if e.ID == "" || e.Fingerprint == "" {
		return false, persistence.ErrConstraintViolation
	}
	result, err := s.exec(ctx, s.sb.Insert("outbox_events").
		Columns(outboxColumns...).
		Values(e.ID, e.Fingerprint, e.Kind, e.Payload, e.Attempts,
			s.dialect.encodeTime(e.NextAttemptAt), e.LastError,
			s.dialect.encodeTime(e.CreatedAt), s.dialect.encodeOptionalTime(e.DeliveredAt)).
		Suffix("ON CONFLICT (fingerprint) DO NOTHING"))
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlstore: enqueue event rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListPendingEvents returns undelivered events due at now, oldest first.
func (s *Store) ListPendingEvents(ctx context.Context, now time.Time, limit int) ([]persistence.OutboxEvent, error) {
	query := s.sb.Select(outboxColumns...).
		From("outbox_events").
		Where(sq.Eq{"delivered_at": nil}).
		Where(sq.LtOrEq{"next_attempt_at": s.dialect.encodeTime(now)}).
		OrderBy("created_at", "id")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []persistence.OutboxEvent
	for rows.Next() {
		var e persistence.OutboxEvent
		var deliveredAt time.Time
		delivered := scanTime(&deliveredAt)
		if err := rows.Scan(&e.ID, &e.Fingerprint, &e.Kind, &e.Payload, &e.Attempts,
			scanTime(&e.NextAttemptAt), &e.LastError, scanTime(&e.CreatedAt), delivered); err != nil {
			return nil, s.mapper.MapError(err)
		}
		if delivered.valid {
			e.DeliveredAt = &deliveredAt
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return events, nil
}

// MarkEventDelivered records a successful delivery.
func (s *Store) MarkEventDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	return s.updateEvent(ctx, id, map[string]any{"delivered_at": s.dialect.encodeTime(deliveredAt)})
}

// MarkEventFailed records a failed attempt and schedules the next one.
func (s *Store) MarkEventFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	return s.updateEvent(ctx, id, map[string]any{
		"attempts":        attempts,
		"next_attempt_at": s.dialect.encodeTime(nextAttemptAt),
		"last_error":      lastError,
	})
}

func (s *Store) updateEvent(ctx context.Context, id string, values map[string]any) error {
	result, err := s.exec(ctx, s.sb.Update("outbox_events").SetMap(values).Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	return requireAffected(result)
}
