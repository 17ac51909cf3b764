package postgres

import (
	"database/sql"
	"fmt"
	"log"

	"busalarm/config"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS reservations (
			id SERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			route_id VARCHAR(64) NOT NULL,
			city_code VARCHAR(16) NOT NULL,
			bus_number VARCHAR(32) NOT NULL,
			direction VARCHAR(64) NOT NULL DEFAULT '',
			stop_id VARCHAR(64) NOT NULL,
			stop_name VARCHAR(255) NOT NULL,
			notification_type VARCHAR(10) NOT NULL DEFAULT 'time',
			minutes_before INTEGER,
			stops_before INTEGER,
			status VARCHAR(10) NOT NULL DEFAULT 'reserved',
			last_eta_minutes INTEGER,
			next_poll_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS notification_logs (
			id SERIAL PRIMARY KEY,
			reservation_id INTEGER REFERENCES reservations(id) ON DELETE CASCADE,
			outcome VARCHAR(10) NOT NULL,
			error_message TEXT,
			sent_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS device_tokens (
			id SERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			token VARCHAR(512) NOT NULL,
			platform VARCHAR(16) NOT NULL DEFAULT 'android',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, token)
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_reservations_user_id ON reservations(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_expires_at ON reservations(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_user_status ON reservations(user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_notification_logs_reservation_id ON notification_logs(reservation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_device_tokens_user_id ON device_tokens(user_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}
