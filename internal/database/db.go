package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/relieftrack/shipment-tracking-api/internal/config"
	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
)

// Database represents a database connection
type Database struct {
	DB     *sqlx.DB
	logger logger.Logger
}

// New creates a new database connection
func New(cfg *config.Config, logger logger.Logger) (*Database, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDBConnString())

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to database", "host", cfg.DB.Host, "database", cfg.DB.Name)

	return &Database{
		DB:     db,
		logger: logger,
	}, nil
}

// Ping checks the database connection
func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

// RunMigrations creates the schema if it does not exist yet
func (d *Database) RunMigrations() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shipments (
		id VARCHAR(100) PRIMARY KEY,
		name TEXT NOT NULL,
		supply TEXT NOT NULL,
		init_loc TEXT NOT NULL,
		final_loc TEXT NOT NULL,
		date VARCHAR(50) NOT NULL,
		status VARCHAR(30) NOT NULL,
		current_location TEXT NOT NULL,
		location_history JSONB NOT NULL DEFAULT '[]',
		received_at TIMESTAMP,
		tampered_at TIMESTAMP,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_shipments_status ON shipments(status);
	CREATE INDEX IF NOT EXISTS idx_shipments_route ON shipments(init_loc, final_loc);

	-- Outbox table for shipment event publishing
	CREATE TABLE IF NOT EXISTS outbox_messages (
		id SERIAL PRIMARY KEY,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(100) NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMP,
		processing_attempts INT NOT NULL DEFAULT 0,
		last_error TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages(status);
	CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox_messages(aggregate_type, aggregate_id);

	-- Dead letter table for events that exhausted their publish retries
	CREATE TABLE IF NOT EXISTS dead_letter_messages (
		id SERIAL PRIMARY KEY,
		original_message_id BIGINT NOT NULL,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(100) NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		error_message TEXT NOT NULL,
		failure_reason TEXT NOT NULL,
		retry_count INT NOT NULL DEFAULT 0,
		last_retry_at TIMESTAMP,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		resolved_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_dlq_status ON dead_letter_messages(status);
	`

	_, err := d.DB.Exec(schema)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}
