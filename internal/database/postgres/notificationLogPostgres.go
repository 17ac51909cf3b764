package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"busalarm/internal/entity"
)

type notificationLogRepository struct {
	db *sql.DB
}

func NewNotificationLogRepository(db *sql.DB) NotificationLogRepository {
	return &notificationLogRepository{db: db}
}

// Append records one delivery attempt. Rows are never updated or deleted.
func (r *notificationLogRepository) Append(ctx context.Context, log *entity.NotificationLog) error {
	query := `
		INSERT INTO notification_logs (reservation_id, outcome, error_message, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	now := time.Now()
	var errorMessage sql.NullString
	if log.ErrorMessage != "" {
		errorMessage = sql.NullString{String: log.ErrorMessage, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		log.ReservationID,
		log.Outcome,
		errorMessage,
		log.SentAt,
		now,
	).Scan(&log.ID)

	if err != nil {
		return fmt.Errorf("failed to append notification log: %v", err)
	}

	log.CreatedAt = now
	return nil
}

func (r *notificationLogRepository) ListByReservation(ctx context.Context, reservationID int64) ([]*entity.NotificationLog, error) {
	query := `
		SELECT id, reservation_id, outcome, error_message, sent_at, created_at
		FROM notification_logs
		WHERE reservation_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification logs: %v", err)
	}
	defer rows.Close()

	var logs []*entity.NotificationLog
	for rows.Next() {
		var log entity.NotificationLog
		var errorMessage sql.NullString

		err := rows.Scan(
			&log.ID,
			&log.ReservationID,
			&log.Outcome,
			&errorMessage,
			&log.SentAt,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification log: %v", err)
		}

		log.ErrorMessage = errorMessage.String
		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notification logs: %v", err)
	}

	return logs, nil
}
