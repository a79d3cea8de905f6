package scheduler

import (
	"fmt"
	"slices"
	"strings"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusOngoing   Status = "ongoing"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// transitions lists every edge a status command may take. Statuses without an
// entry are terminal.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusOngoing, StatusCancelled, StatusExpired},
	StatusOngoing:  {StatusCancelled, StatusExpired},
}

var (
	// RoomBlockingStatuses occupy a room for conflict detection.
	RoomBlockingStatuses = []Status{StatusApproved, StatusOngoing}
	// ParticipantBlockingStatuses make a person busy for the reservation window.
	ParticipantBlockingStatuses = []Status{StatusPending, StatusApproved, StatusOngoing}
	// DisplayStatuses are shown as occupied on the availability grid.
	DisplayStatuses = []Status{StatusPending, StatusApproved}
	// QuotaStatuses count toward an owner's weekly allowance.
	QuotaStatuses = []Status{StatusPending, StatusApproved, StatusOngoing}
)

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusApproved, StatusOngoing, StatusRejected, StatusCancelled, StatusExpired}
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown reservation status %q", value)
	}
	return status, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return slices.Contains(AllStatuses(), s)
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// In reports whether s is a member of set.
func (s Status) In(set []Status) bool {
	return slices.Contains(set, s)
}

// CanTransition reports whether the lifecycle permits moving from one status to another.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// CanExpire reports whether the expiry sweep may move a reservation in from to
// Expired. Pending reservations only expire through the sweep, never by command.
func CanExpire(from Status) bool {
	return from == StatusPending || CanTransition(from, StatusExpired)
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s Status) []Status {
	return slices.Clone(transitions[s])
}

func (s Status) String() string {
	return string(s)
}
