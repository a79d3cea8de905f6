package persistence

import "time"

// Room represents a bookable room catalog entry.
type Room struct {
	ID        string
	Floor     string
	Name      string
	Capacity  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Person represents a directory record for owners and participants.
type Person struct {
	ID             string
	DisplayName    string
	Email          string
	Program        string
	YearLevel      string
	Department     string
	Verified       bool
	IsAdmin        bool
	TelegramChatID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Participant is a person snapshot embedded in a reservation, in request order.
type Participant struct {
	PersonID    string
	DisplayName string
	Program     string
	YearLevel   string
	Department  string
}

// Reservation represents a booked room slot.
type Reservation struct {
	ID           string
	OwnerID      string
	Floor        string
	RoomName     string
	Start        time.Time
	End          time.Time
	Date         string
	Purpose      string
	Status       string
	Version      int64
	Participants []Participant
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ArchivedReservation is a reservation moved out of the live set.
type ArchivedReservation struct {
	ArchiveID  string
	ArchivedAt time.Time
	Reservation
}

// OutboxEvent is a notification awaiting delivery.
type OutboxEvent struct {
	ID            string
	Fingerprint   string
	Kind          string
	Payload       []byte
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DeliveredAt   *time.Time
}
