package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type deviceTokenRepository struct {
	db *sql.DB
}

func NewDeviceTokenRepository(db *sql.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// Upsert registers a device token, reactivating it if it was deactivated.
func (r *deviceTokenRepository) Upsert(ctx context.Context, userID int64, token, platform string) error {
	if platform == "" {
		platform = "android"
	}

	query := `
		INSERT INTO device_tokens (user_id, token, platform, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $4)
		ON CONFLICT (user_id, token)
		DO UPDATE SET platform = $3, is_active = TRUE, updated_at = $4
	`

	if _, err := r.db.ExecContext(ctx, query, userID, token, platform, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert device token: %v", err)
	}
	return nil
}

func (r *deviceTokenRepository) GetActiveTokens(ctx context.Context, userID int64) ([]string, error) {
	query := `SELECT token FROM device_tokens WHERE user_id = $1 AND is_active = TRUE`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device tokens: %v", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %v", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device tokens: %v", err)
	}

	return tokens, nil
}

func (r *deviceTokenRepository) Deactivate(ctx context.Context, userID int64, token string) error {
	query := `UPDATE device_tokens SET is_active = FALSE, updated_at = $3 WHERE user_id = $1 AND token = $2`

	result, err := r.db.ExecContext(ctx, query, userID, token, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate device token: %v", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
