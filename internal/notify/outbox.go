// Package notify delivers reservation lifecycle events. Services write events
// to the transactional outbox; the Relay drains it after commit and hands each
// event to a Dispatcher, retrying failures with backoff.
package notify

import (
	"context"
	"fmt"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

// Outbox stores lifecycle events in the outbox table. Enqueue joins the
// transaction carried by ctx.
type Outbox struct {
	repo persistence.OutboxRepository
}

// NewOutbox wraps an outbox repository.
func NewOutbox(repo persistence.OutboxRepository) *Outbox {
	return &Outbox{repo: repo}
}

// Enqueue serialises event and schedules it for immediate delivery. An event
// whose fingerprint is already queued is dropped, so a notification that is
// emitted twice reaches the dispatcher once.
func (o *Outbox) Enqueue(ctx context.Context, event scheduler.Event) error {
	if event.ID == "" {
		return fmt.Errorf("enqueue %s: event id is required", event.Kind)
	}
	payload, err := event.Encode()
	if err != nil {
		return err
	}
	if _, err := o.repo.EnqueueEvent(ctx, persistence.OutboxEvent{
		ID:            event.ID,
		Fingerprint:   event.Fingerprint(),
		Kind:          string(event.Kind),
		Payload:       payload,
		NextAttemptAt: event.OccurredAt,
		CreatedAt:     event.OccurredAt,
	}); err != nil {
		return fmt.Errorf("enqueue %s: %w", event.ID, err)
	}
	return nil
}
