package repository

import (
	"context"
	"sync"

	"github.com/relieftrack/shipment-tracking-api/internal/models"
)

// MemoryShipmentStore is an in-memory ShipmentStore used in tests and
// when running without a database. It applies the same version check
// as the Postgres store.
type MemoryShipmentStore struct {
	mu        sync.RWMutex
	shipments map[string]*models.Shipment
	order     []string
}

// NewMemoryShipmentStore creates an empty in-memory store
func NewMemoryShipmentStore() *MemoryShipmentStore {
	return &MemoryShipmentStore{
		shipments: make(map[string]*models.Shipment),
	}
}

func copyShipment(s *models.Shipment) *models.Shipment {
	cp := *s
	cp.LocationHistory = make(models.LocationHistory, len(s.LocationHistory))
	copy(cp.LocationHistory, s.LocationHistory)
	for i, ev := range cp.LocationHistory {
		if ev.Coordinates != nil {
			coords := make([]float64, len(ev.Coordinates))
			copy(coords, ev.Coordinates)
			cp.LocationHistory[i].Coordinates = coords
		}
	}
	if s.ReceivedAt != nil {
		t := *s.ReceivedAt
		cp.ReceivedAt = &t
	}
	if s.TamperedAt != nil {
		t := *s.TamperedAt
		cp.TamperedAt = &t
	}
	return &cp
}

// Create inserts a new shipment record
func (s *MemoryShipmentStore) Create(ctx context.Context, shipment *models.Shipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shipments[shipment.ID]; ok {
		return ErrDuplicate
	}

	s.shipments[shipment.ID] = copyShipment(shipment)
	s.order = append(s.order, shipment.ID)
	return nil
}

// GetByID fetches a shipment by its tracking ID
func (s *MemoryShipmentStore) GetByID(ctx context.Context, id string) (*models.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shipment, ok := s.shipments[id]
	if !ok {
		return nil, ErrNotFound
	}

	return copyShipment(shipment), nil
}

// GetAll returns every shipment in insertion order
func (s *MemoryShipmentStore) GetAll(ctx context.Context) ([]*models.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Shipment, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, copyShipment(s.shipments[id]))
	}

	return result, nil
}

// Update writes a shipment back, guarded by its version
func (s *MemoryShipmentStore) Update(ctx context.Context, shipment *models.Shipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.shipments[shipment.ID]
	if !ok {
		return ErrNotFound
	}

	if current.Version != shipment.Version {
		return ErrVersionConflict
	}

	shipment.Version++
	s.shipments[shipment.ID] = copyShipment(shipment)
	return nil
}

// Delete removes a shipment record
func (s *MemoryShipmentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shipments[id]; !ok {
		return ErrNotFound
	}

	delete(s.shipments, id)
	for i, stored := range s.order {
		if stored == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
