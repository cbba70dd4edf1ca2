package repository

import (
	"context"
	"errors"

	"github.com/relieftrack/shipment-tracking-api/internal/models"
)

// Storage errors surfaced by ShipmentStore implementations.
var (
	ErrNotFound        = errors.New("shipment not found")
	ErrDuplicate       = errors.New("shipment already exists")
	ErrVersionConflict = errors.New("shipment was modified concurrently")
	ErrDatabase        = errors.New("database error")
)

// ShipmentStore is the persistence contract for shipment records.
// Update performs an optimistic version check: the write only lands
// if the stored version still matches the one the caller read, so a
// concurrent writer cannot silently lose a ledger entry.
type ShipmentStore interface {
	Create(ctx context.Context, shipment *models.Shipment) error
	GetByID(ctx context.Context, id string) (*models.Shipment, error)
	GetAll(ctx context.Context) ([]*models.Shipment, error)
	Update(ctx context.Context, shipment *models.Shipment) error
	Delete(ctx context.Context, id string) error
}
