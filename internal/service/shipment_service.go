package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/relieftrack/shipment-tracking-api/internal/models"
	"github.com/relieftrack/shipment-tracking-api/internal/repository"
	apperrors "github.com/relieftrack/shipment-tracking-api/pkg/errors"
	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
)

// updateRetries bounds how many times an update is replayed after
// losing an optimistic-concurrency race.
const updateRetries = 3

// OutboxWriter enqueues shipment events for asynchronous publishing.
type OutboxWriter interface {
	Create(ctx context.Context, message *models.OutboxMessage) error
}

// ShipmentService implements shipment lifecycle operations on top of a
// ShipmentStore. Event publishing is best effort: an outbox failure is
// logged and never fails the request.
type ShipmentService struct {
	store  repository.ShipmentStore
	outbox OutboxWriter
	logger logger.Logger
	now    func() time.Time
}

// NewShipmentService creates a new ShipmentService. outbox may be nil
// when event publishing is disabled.
func NewShipmentService(store repository.ShipmentStore, outbox OutboxWriter, logger logger.Logger) *ShipmentService {
	return &ShipmentService{
		store:  store,
		outbox: outbox,
		logger: logger,
		now:    models.GetCurrentTime,
	}
}

// WithClock overrides the service clock. Tests use this to get
// deterministic timestamps.
func (s *ShipmentService) WithClock(now func() time.Time) *ShipmentService {
	s.now = now
	return s
}

// CreateShipment registers a new shipment record
func (s *ShipmentService) CreateShipment(ctx context.Context, req *models.CreateShipmentRequest) (*models.Shipment, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(req.ID)

	shipment := models.NewShipment(
		id,
		req.Name,
		req.Supply,
		req.InitLoc,
		req.FinalLoc,
		req.Date,
		req.Status,
		s.now(),
	)

	if err := s.store.Create(ctx, shipment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewDuplicateError("Shipment ID already exists")
		}
		s.logger.Error("Failed to create shipment", "error", err, "shipmentID", id)
		return nil, apperrors.NewInternalError("Failed to create shipment")
	}

	s.publishEvent(ctx, models.EventShipmentCreated, shipment, "System")
	s.logger.Info("Shipment created", "shipmentID", shipment.ID, "route", shipment.InitLoc+" -> "+shipment.FinalLoc)

	return shipment, nil
}

// GetShipment fetches a shipment by its tracking ID
func (s *ShipmentService) GetShipment(ctx context.Context, id string) (*models.Shipment, error) {
	shipment, err := s.store.GetByID(ctx, id)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Shipment not found")
		}
		s.logger.Error("Failed to get shipment", "error", err, "shipmentID", id)
		return nil, apperrors.NewInternalError("Failed to get shipment")
	}

	return shipment, nil
}

// GetAllShipments returns every shipment record
func (s *ShipmentService) GetAllShipments(ctx context.Context) ([]*models.Shipment, error) {
	shipments, err := s.store.GetAll(ctx)

	if err != nil {
		s.logger.Error("Failed to list shipments", "error", err)
		return nil, apperrors.NewInternalError("Failed to list shipments")
	}

	return shipments, nil
}

// AppendLocation records a checkpoint scan against a shipment. The
// ledger only ever grows; the scan itself never changes status, a
// checkpoint that intends a status change issues a separate update.
func (s *ShipmentService) AppendLocation(ctx context.Context, id string, req *models.AppendLocationRequest) (*models.LocationEvent, *models.Shipment, error) {
	if strings.TrimSpace(req.Location) == "" {
		return nil, nil, apperrors.NewInvalidInputError("Location is required")
	}

	var event models.LocationEvent
	shipment, err := s.applyUpdate(ctx, id, func(sh *models.Shipment) error {
		event = models.LocationEvent{
			Location:    req.Location,
			Timestamp:   s.now(),
			Officer:     req.Officer,
			Action:      req.Action,
			Coordinates: req.Coordinates,
		}
		sh.AppendEvent(event)
		event = sh.LocationHistory[len(sh.LocationHistory)-1]
		return nil
	})

	if err != nil {
		return nil, nil, err
	}

	s.publishEvent(ctx, models.EventShipmentLocationAppended, shipment, event.Officer)
	s.logger.Info("Location appended", "shipmentID", id, "location", event.Location, "officer", event.Officer)

	return &event, shipment, nil
}

// VerifyShipment records a checkpoint verification. A verification
// ledger entry is always written; the shipment becomes received only
// when the verifying officer marks the delivery complete. Verification
// never clears a tamper flag, only a direct status edit can.
func (s *ShipmentService) VerifyShipment(ctx context.Context, id string, req *models.VerifyShipmentRequest) (*models.Shipment, error) {
	completed := false

	shipment, err := s.applyUpdate(ctx, id, func(sh *models.Shipment) error {
		location := req.Location
		if location == "" {
			location = sh.CurrentLocation
		}

		sh.AppendEvent(models.LocationEvent{
			Location:  location,
			Timestamp: s.now(),
			Officer:   req.Officer,
			Action:    models.ActionVerified,
		})

		completed = req.Complete && sh.Status != models.StatusTampered
		if completed {
			sh.Status = models.StatusReceived
			if sh.ReceivedAt == nil {
				t := s.now()
				sh.ReceivedAt = &t
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	if completed {
		s.publishEvent(ctx, models.EventShipmentStatusChanged, shipment, req.Officer)
	} else {
		s.publishEvent(ctx, models.EventShipmentLocationAppended, shipment, req.Officer)
	}
	s.logger.Info("Shipment verified", "shipmentID", id, "officer", req.Officer, "complete", req.Complete)

	return shipment, nil
}

// FlagTampered flags a shipment as tampered. No lifecycle event clears
// the flag automatically; a direct status edit is the only way out.
func (s *ShipmentService) FlagTampered(ctx context.Context, id string, req *models.VerifyShipmentRequest) (*models.Shipment, error) {
	shipment, err := s.applyUpdate(ctx, id, func(sh *models.Shipment) error {
		location := req.Location
		if location == "" {
			location = sh.CurrentLocation
		}

		sh.AppendEvent(models.LocationEvent{
			Location:  location,
			Timestamp: s.now(),
			Officer:   req.Officer,
			Action:    models.ActionTampered,
		})

		sh.Status = models.StatusTampered
		if sh.TamperedAt == nil {
			t := s.now()
			sh.TamperedAt = &t
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, models.EventShipmentStatusChanged, shipment, req.Officer)
	s.logger.Warn("Shipment flagged as tampered", "shipmentID", id, "officer", req.Officer)

	return shipment, nil
}

// UpdateShipment applies a partial update. Empty fields keep their
// stored value. Supplying a new currentLocation also writes a ledger
// entry so the history and the pointer never diverge.
func (s *ShipmentService) UpdateShipment(ctx context.Context, id string, req *models.UpdateShipmentRequest) (*models.Shipment, error) {
	shipment, err := s.applyUpdate(ctx, id, func(sh *models.Shipment) error {
		if req.Name != "" {
			sh.Name = req.Name
		}
		if req.Supply != "" {
			sh.Supply = req.Supply
		}
		if req.InitLoc != "" {
			sh.InitLoc = req.InitLoc
		}
		if req.FinalLoc != "" {
			sh.FinalLoc = req.FinalLoc
		}
		if req.Date != "" {
			sh.Date = req.Date
		}

		if req.Location != "" {
			sh.AppendEvent(models.LocationEvent{
				Location:  req.Location,
				Timestamp: s.now(),
				Officer:   req.Officer,
				Action:    req.Action,
			})
		}

		// A direct status edit is the administrative override path and
		// lands even on a tampered shipment.
		if req.Status != "" {
			status := models.NormalizeStatus(req.Status)
			sh.Status = status

			switch status {
			case models.StatusReceived:
				if sh.ReceivedAt == nil {
					t := s.now()
					sh.ReceivedAt = &t
				}
			case models.StatusTampered:
				if sh.TamperedAt == nil {
					t := s.now()
					sh.TamperedAt = &t
				}
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, models.EventShipmentStatusChanged, shipment, req.Officer)
	s.logger.Info("Shipment updated", "shipmentID", id, "status", shipment.Status)

	return shipment, nil
}

// DeleteShipment removes a shipment record
func (s *ShipmentService) DeleteShipment(ctx context.Context, id string) error {
	shipment, err := s.GetShipment(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFoundError("Shipment not found")
		}
		s.logger.Error("Failed to delete shipment", "error", err, "shipmentID", id)
		return apperrors.NewInternalError("Failed to delete shipment")
	}

	s.publishEvent(ctx, models.EventShipmentDeleted, shipment, "System")
	s.logger.Info("Shipment deleted", "shipmentID", id)

	return nil
}

// applyUpdate runs a read-modify-write cycle under the store's version
// guard, replaying the mutation on a lost race. The mutation closure
// must be side-effect free apart from changing the shipment.
func (s *ShipmentService) applyUpdate(ctx context.Context, id string, mutate func(*models.Shipment) error) (*models.Shipment, error) {
	for attempt := 0; attempt < updateRetries; attempt++ {
		shipment, err := s.store.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFoundError("Shipment not found")
			}
			s.logger.Error("Failed to load shipment for update", "error", err, "shipmentID", id)
			return nil, apperrors.NewInternalError("Failed to load shipment")
		}

		if err := mutate(shipment); err != nil {
			return nil, err
		}

		shipment.UpdatedAt = s.now()

		err = s.store.Update(ctx, shipment)
		if err == nil {
			return shipment, nil
		}

		if errors.Is(err, repository.ErrVersionConflict) {
			s.logger.Warn("Concurrent update detected, retrying", "shipmentID", id, "attempt", attempt+1)
			continue
		}

		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Shipment not found")
		}

		s.logger.Error("Failed to update shipment", "error", err, "shipmentID", id)
		return nil, apperrors.NewInternalError("Failed to update shipment")
	}

	return nil, apperrors.NewConflictError("Shipment was modified concurrently, please retry")
}

func (s *ShipmentService) publishEvent(ctx context.Context, eventType string, shipment *models.Shipment, officer string) {
	if s.outbox == nil {
		return
	}

	message, err := models.NewShipmentEvent(eventType, shipment, officer, s.now())
	if err != nil {
		s.logger.Error("Failed to build shipment event", "error", err, "shipmentID", shipment.ID, "eventType", eventType)
		return
	}

	if err := s.outbox.Create(ctx, message); err != nil {
		s.logger.Error("Failed to enqueue shipment event", "error", err, "shipmentID", shipment.ID, "eventType", eventType)
	}
}

func validateCreateRequest(req *models.CreateShipmentRequest) error {
	missing := []string{}

	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(req.Supply) == "" {
		missing = append(missing, "supply")
	}
	if strings.TrimSpace(req.InitLoc) == "" {
		missing = append(missing, "initLoc")
	}
	if strings.TrimSpace(req.FinalLoc) == "" {
		missing = append(missing, "finalLoc")
	}
	if strings.TrimSpace(req.Date) == "" {
		missing = append(missing, "date")
	}

	if len(missing) > 0 {
		return apperrors.NewInvalidInputError("Missing required fields: " + strings.Join(missing, ", "))
	}

	return nil
}
