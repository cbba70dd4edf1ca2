package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/relieftrack/shipment-tracking-api/internal/models"
)

const pqUniqueViolation = "23505"

// PostgresShipmentStore is the Postgres-backed ShipmentStore
type PostgresShipmentStore struct {
	db *sqlx.DB
}

// NewPostgresShipmentStore creates a new Postgres-backed store
func NewPostgresShipmentStore(db *sqlx.DB) *PostgresShipmentStore {
	return &PostgresShipmentStore{db: db}
}

// Create inserts a new shipment record
func (s *PostgresShipmentStore) Create(ctx context.Context, shipment *models.Shipment) error {
	query := `
		INSERT INTO shipments (
			id, name, supply, init_loc, final_loc, date, status,
			current_location, location_history, received_at, tampered_at,
			version, created_at, updated_at
		) VALUES (
			:id, :name, :supply, :init_loc, :final_loc, :date, :status,
			:current_location, :location_history, :received_at, :tampered_at,
			:version, :created_at, :updated_at
		)
	`

	_, err := s.db.NamedExecContext(ctx, query, shipment)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// GetByID fetches a shipment by its tracking ID
func (s *PostgresShipmentStore) GetByID(ctx context.Context, id string) (*models.Shipment, error) {
	var shipment models.Shipment

	query := `SELECT * FROM shipments WHERE id = $1`
	err := s.db.GetContext(ctx, &shipment, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &shipment, nil
}

// GetAll returns every shipment, oldest first
func (s *PostgresShipmentStore) GetAll(ctx context.Context) ([]*models.Shipment, error) {
	shipments := []*models.Shipment{}

	query := `SELECT * FROM shipments ORDER BY created_at ASC`
	err := s.db.SelectContext(ctx, &shipments, query)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return shipments, nil
}

// Update writes a shipment back, guarded by its version. The version
// is bumped on success so a stale writer gets ErrVersionConflict
// instead of clobbering the row.
func (s *PostgresShipmentStore) Update(ctx context.Context, shipment *models.Shipment) error {
	query := `
		UPDATE shipments SET
			name = :name,
			supply = :supply,
			init_loc = :init_loc,
			final_loc = :final_loc,
			date = :date,
			status = :status,
			current_location = :current_location,
			location_history = :location_history,
			received_at = :received_at,
			tampered_at = :tampered_at,
			version = version + 1,
			updated_at = :updated_at
		WHERE id = :id AND version = :version
	`

	result, err := s.db.NamedExecContext(ctx, query, shipment)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rows == 0 {
		// Distinguish a vanished row from a lost version race
		var exists bool
		if err := s.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM shipments WHERE id = $1)`, shipment.ID); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	shipment.Version++
	return nil
}

// Delete removes a shipment record
func (s *PostgresShipmentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM shipments WHERE id = $1`, id)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
