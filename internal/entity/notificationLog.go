package entity

import "time"

type NotificationOutcome string

const (
	NotificationOutcomeSent  NotificationOutcome = "sent"
	NotificationOutcomeError NotificationOutcome = "error"
)

// NotificationLog records one push delivery attempt for a reservation.
// Rows are append-only and never mutated.
type NotificationLog struct {
	ID            int64               `json:"id" db:"id"`
	ReservationID int64               `json:"reservation_id" db:"reservation_id"`
	Outcome       NotificationOutcome `json:"outcome" db:"outcome"`
	ErrorMessage  string              `json:"error_message,omitempty" db:"error_message"`
	SentAt        time.Time           `json:"sent_at" db:"sent_at"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
}
