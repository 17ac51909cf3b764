package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"busalarm/internal/entity"
)

type reservationRepository struct {
	db *sql.DB
}

func NewReservationRepository(db *sql.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

const reservationColumns = `
	id, user_id, route_id, city_code, bus_number, direction, stop_id, stop_name,
	notification_type, minutes_before, stops_before, status, last_eta_minutes,
	next_poll_at, expires_at, created_at, updated_at
`

// Create inserts a reservation, enforcing the single-active-reservation
// invariant inside one transaction.
func (r *reservationRepository) Create(ctx context.Context, reservation *entity.Reservation) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	var activeCount int
	query := `SELECT COUNT(*) FROM reservations WHERE user_id = $1 AND status = 'reserved'`
	err = tx.QueryRowContext(ctx, query, reservation.UserID).Scan(&activeCount)
	if err != nil {
		return fmt.Errorf("failed to check active reservations: %v", err)
	}
	if activeCount > 0 {
		return entity.ErrActiveReservationExists
	}

	query = `
		INSERT INTO reservations (
			user_id, route_id, city_code, bus_number, direction, stop_id, stop_name,
			notification_type, minutes_before, stops_before, status,
			next_poll_at, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`

	now := time.Now()
	err = tx.QueryRowContext(ctx, query,
		reservation.UserID,
		reservation.RouteID,
		reservation.CityCode,
		reservation.BusNumber,
		reservation.Direction,
		reservation.StopID,
		reservation.StopName,
		reservation.NotificationType,
		nullableInt(reservation.MinutesBefore),
		nullableInt(reservation.StopsBefore),
		reservation.Status,
		reservation.NextPollAt,
		reservation.ExpiresAt,
		now,
		now,
	).Scan(&reservation.ID)

	if err != nil {
		return fmt.Errorf("failed to create reservation: %v", err)
	}

	reservation.CreatedAt = now
	reservation.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// GetByID retrieves a reservation by its ID
func (r *reservationRepository) GetByID(ctx context.Context, id int64) (*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	reservation, err := scanReservation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %v", err)
	}

	return reservation, nil
}

// GetActiveByUser returns the user's reserved reservation, or nil when the
// user has none.
func (r *reservationRepository) GetActiveByUser(ctx context.Context, userID int64) (*entity.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1 AND status = 'reserved'
		ORDER BY created_at DESC
		LIMIT 1
	`

	reservation, err := scanReservation(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active reservation: %v", err)
	}

	return reservation, nil
}

// ListActiveByUser returns the user's reserved reservations, most recent first.
func (r *reservationRepository) ListActiveByUser(ctx context.Context, userID int64) ([]*entity.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1 AND status = 'reserved'
		ORDER BY id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %v", err)
	}
	defer rows.Close()

	return collectReservations(rows)
}

// GetByStatus returns all reservations in the given status.
func (r *reservationRepository) GetByStatus(ctx context.Context, status entity.ReservationStatus) ([]*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE status = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservations by status: %v", err)
	}
	defer rows.Close()

	return collectReservations(rows)
}

// GetExpired returns reserved reservations whose deadline has passed.
func (r *reservationRepository) GetExpired(ctx context.Context, before time.Time) ([]*entity.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'reserved' AND expires_at < $1
		ORDER BY expires_at
	`

	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired reservations: %v", err)
	}
	defer rows.Close()

	return collectReservations(rows)
}

// UpdatePolling records the last observed ETA and the next planned check.
func (r *reservationRepository) UpdatePolling(ctx context.Context, id int64, lastEtaMinutes int, nextPollAt time.Time) error {
	query := `
		UPDATE reservations
		SET last_eta_minutes = $2, next_poll_at = $3, updated_at = $4
		WHERE id = $1 AND status = 'reserved'
	`

	if _, err := r.db.ExecContext(ctx, query, id, lastEtaMinutes, nextPollAt, time.Now()); err != nil {
		return fmt.Errorf("failed to update polling state: %v", err)
	}
	return nil
}

// Finalize performs the conditional terminal-state write.
func (r *reservationRepository) Finalize(ctx context.Context, id int64, status entity.ReservationStatus, lastEtaMinutes *int) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("status %s is not terminal", status)
	}

	query := `
		UPDATE reservations
		SET status = $2,
			next_poll_at = NULL,
			last_eta_minutes = COALESCE($3, last_eta_minutes),
			updated_at = $4
		WHERE id = $1 AND status = 'reserved'
	`

	result, err := r.db.ExecContext(ctx, query, id, status, lastEtaMinutes, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to finalize reservation: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %v", err)
	}

	return affected == 1, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*entity.Reservation, error) {
	var reservation entity.Reservation
	var minutesBefore, stopsBefore, lastEta sql.NullInt64
	var nextPollAt sql.NullTime

	err := row.Scan(
		&reservation.ID,
		&reservation.UserID,
		&reservation.RouteID,
		&reservation.CityCode,
		&reservation.BusNumber,
		&reservation.Direction,
		&reservation.StopID,
		&reservation.StopName,
		&reservation.NotificationType,
		&minutesBefore,
		&stopsBefore,
		&reservation.Status,
		&lastEta,
		&nextPollAt,
		&reservation.ExpiresAt,
		&reservation.CreatedAt,
		&reservation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if minutesBefore.Valid {
		reservation.MinutesBefore = int(minutesBefore.Int64)
	}
	if stopsBefore.Valid {
		reservation.StopsBefore = int(stopsBefore.Int64)
	}
	if lastEta.Valid {
		v := int(lastEta.Int64)
		reservation.LastEtaMinutes = &v
	}
	if nextPollAt.Valid {
		v := nextPollAt.Time
		reservation.NextPollAt = &v
	}

	return &reservation, nil
}

func collectReservations(rows *sql.Rows) ([]*entity.Reservation, error) {
	var reservations []*entity.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %v", err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %v", err)
	}
	return reservations, nil
}

func nullableInt(v int) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
