package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/relieftrack/shipment-tracking-api/internal/clients"
	apperrors "github.com/relieftrack/shipment-tracking-api/pkg/errors"
	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
)

// DefaultTravelProfile is used when a caller does not pick a mode.
const DefaultTravelProfile = "driving-car"

// RouteEstimator resolves place names and fetches travel estimates.
// Implemented by clients.RoutingClient; tests substitute a stub.
type RouteEstimator interface {
	Geocode(ctx context.Context, text string) (*clients.GeocodedPlace, error)
	GetRoute(ctx context.Context, start, end []float64, profile string) (*clients.RouteSummary, error)
}

// TravelEstimate is the enriched travel estimate returned to callers.
// It is derived on demand and never persisted.
type TravelEstimate struct {
	ShipmentID        string  `json:"shipmentId,omitempty"`
	StartName         string  `json:"startName"`
	EndName           string  `json:"endName"`
	Duration          float64 `json:"duration"`
	Distance          float64 `json:"distance"`
	DurationFormatted string  `json:"durationFormatted"`
	DistanceFormatted string  `json:"distanceFormatted"`
	Profile           string  `json:"profile"`
}

// EstimateService composes geocode and directions lookups into travel
// estimates for arbitrary place pairs or existing shipments.
type EstimateService struct {
	estimator RouteEstimator
	shipments *ShipmentService
	logger    logger.Logger
}

// NewEstimateService creates a new EstimateService
func NewEstimateService(estimator RouteEstimator, shipments *ShipmentService, logger logger.Logger) *EstimateService {
	return &EstimateService{
		estimator: estimator,
		shipments: shipments,
		logger:    logger,
	}
}

// Estimate computes a travel estimate between two place names
func (s *EstimateService) Estimate(ctx context.Context, startLocation, endLocation, profile string) (*TravelEstimate, error) {
	if strings.TrimSpace(startLocation) == "" || strings.TrimSpace(endLocation) == "" {
		return nil, apperrors.NewInvalidInputError("startLocation and endLocation are required")
	}

	if profile == "" {
		profile = DefaultTravelProfile
	}

	start, err := s.estimator.Geocode(ctx, startLocation)
	if err != nil {
		return nil, err
	}

	end, err := s.estimator.Geocode(ctx, endLocation)
	if err != nil {
		return nil, err
	}

	route, err := s.estimator.GetRoute(ctx, start.Coordinates, end.Coordinates, profile)
	if err != nil {
		return nil, err
	}

	return &TravelEstimate{
		StartName:         start.Name,
		EndName:           end.Name,
		Duration:          route.DurationSeconds,
		Distance:          route.DistanceMeters,
		DurationFormatted: FormatDuration(route.DurationSeconds),
		DistanceFormatted: FormatDistance(route.DistanceMeters),
		Profile:           profile,
	}, nil
}

// EstimateForShipment computes a travel estimate over a shipment's
// origin and destination
func (s *EstimateService) EstimateForShipment(ctx context.Context, shipmentID, profile string) (*TravelEstimate, error) {
	shipment, err := s.shipments.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	if shipment.InitLoc == "" || shipment.FinalLoc == "" {
		return nil, apperrors.NewInvalidInputError("Shipment lacks initLoc/finalLoc")
	}

	estimate, err := s.Estimate(ctx, shipment.InitLoc, shipment.FinalLoc, profile)
	if err != nil {
		return nil, err
	}

	estimate.ShipmentID = shipment.ID
	return estimate, nil
}

// FormatDuration renders seconds as "Xh Ym" or "N min"
func FormatDuration(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}

	hours := total / 3600
	minutes := (total % 3600) / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%d min", minutes)
}

// FormatDistance renders meters as kilometers with two decimals
func FormatDistance(meters float64) string {
	return fmt.Sprintf("%.2f km", meters/1000)
}
