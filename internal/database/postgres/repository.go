package repository

import (
	"context"
	"time"

	"busalarm/internal/entity"
)

type ReservationRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, reservation *entity.Reservation) error
	GetByID(ctx context.Context, id int64) (*entity.Reservation, error)
	GetActiveByUser(ctx context.Context, userID int64) (*entity.Reservation, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]*entity.Reservation, error)

	// Scheduling operations
	GetByStatus(ctx context.Context, status entity.ReservationStatus) ([]*entity.Reservation, error)
	GetExpired(ctx context.Context, before time.Time) ([]*entity.Reservation, error)
	UpdatePolling(ctx context.Context, id int64, lastEtaMinutes int, nextPollAt time.Time) error

	// Finalize moves a reservation into a terminal state, clearing
	// next_poll_at. The write is conditional on the row still being
	// reserved; it reports whether this call performed the transition,
	// which is what keeps terminal transitions idempotent.
	Finalize(ctx context.Context, id int64, status entity.ReservationStatus, lastEtaMinutes *int) (bool, error)
}

type NotificationLogRepository interface {
	Append(ctx context.Context, log *entity.NotificationLog) error
	ListByReservation(ctx context.Context, reservationID int64) ([]*entity.NotificationLog, error)
}

type DeviceTokenRepository interface {
	Upsert(ctx context.Context, userID int64, token, platform string) error
	GetActiveTokens(ctx context.Context, userID int64) ([]string, error)
	Deactivate(ctx context.Context, userID int64, token string) error
}
