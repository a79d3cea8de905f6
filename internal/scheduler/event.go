package scheduler

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// EventKind names a lifecycle notification.
type EventKind string

const (
	EventCreated       EventKind = "reservation.created"
	EventStatusChanged EventKind = "reservation.status_changed"
	EventExpired       EventKind = "reservation.expired"
)

// Event is the payload handed to the notification dispatcher.
type Event struct {
	ID             string    `json:"id"`
	Kind           EventKind `json:"kind"`
	ReservationID  string    `json:"reservation_id"`
	OwnerID        string    `json:"owner_id"`
	ParticipantIDs []string  `json:"participant_ids,omitempty"`
	Floor          string    `json:"floor"`
	Room           string    `json:"room"`
	Date           string    `json:"date"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Purpose        string    `json:"purpose,omitempty"`
	NewStatus      Status    `json:"new_status,omitempty"`
	Recipients     []string  `json:"recipients"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Fingerprint identifies the logical notification independent of its ID. The
// outbox stores at most one event per fingerprint.
func (e Event) Fingerprint() string {
	parts := []string{
		string(e.Kind),
		e.ReservationID,
		string(e.NewStatus),
		e.Start.UTC().Format(time.RFC3339),
	}
	sum := blake2b.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}

// Encode serialises the event for the outbox.
func (e Event) Encode() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.ID, err)
	}
	return payload, nil
}

// DecodeEvent restores an event written by Encode.
func DecodeEvent(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}
