package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/relieftrack/shipment-tracking-api/internal/models"
	"github.com/relieftrack/shipment-tracking-api/internal/repository"
	apperrors "github.com/relieftrack/shipment-tracking-api/pkg/errors"
	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
)

// Delivery-time samples outside this window are treated as corrupt or
// placeholder timestamps and dropped from averages.
const maxDeliveryHours = 720

// StatusBreakdown buckets shipment counts by lifecycle status
type StatusBreakdown struct {
	Pending   int `json:"pending"`
	InTransit int `json:"inTransit"`
	Received  int `json:"received"`
	Tampered  int `json:"tampered"`
}

// OverviewReport is the fleet-wide summary
type OverviewReport struct {
	Total                int             `json:"total"`
	StatusBreakdown      StatusBreakdown `json:"statusBreakdown"`
	LocationStats        map[string]int  `json:"locationStats"`
	SupplyStats          map[string]int  `json:"supplyStats"`
	RecentShipmentsCount int             `json:"recentShipmentsCount"`
	AvgDeliveryHours     float64         `json:"avgDeliveryHours"`
	DeliveredCount       int             `json:"deliveredCount"`
	Timestamp            time.Time       `json:"timestamp"`
}

// TimelineEntry is one per-date bucket on the timeline
type TimelineEntry struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Pending   int    `json:"pending"`
	InTransit int    `json:"inTransit"`
	Received  int    `json:"received"`
	Tampered  int    `json:"tampered"`
}

// RouteReport summarizes traffic over one (origin, destination) pair
type RouteReport struct {
	Route            string  `json:"route"`
	InitLoc          string  `json:"initLoc"`
	FinalLoc         string  `json:"finalLoc"`
	Total            int     `json:"total"`
	Completed        int     `json:"completed"`
	InProgress       int     `json:"inProgress"`
	AvgDeliveryHours float64 `json:"avgDeliveryHours"`
}

// CheckpointReport summarizes scan activity at one location
type CheckpointReport struct {
	Location        string `json:"location"`
	TotalScans      int    `json:"totalScans"`
	UniqueShipments int    `json:"uniqueShipments"`
	OfficersCount   int    `json:"officersCount"`
}

// ComputeOverview derives the fleet summary from a snapshot. The four
// status buckets partition the set, so they always sum to Total.
func ComputeOverview(shipments []*models.Shipment, now time.Time) *OverviewReport {
	report := &OverviewReport{
		Total:         len(shipments),
		LocationStats: map[string]int{},
		SupplyStats:   map[string]int{},
		Timestamp:     now,
	}

	thirtyDaysAgo := now.AddDate(0, 0, -30)

	var totalDeliveryHours float64

	for _, s := range shipments {
		switch models.NormalizeStatus(s.Status) {
		case models.StatusPending:
			report.StatusBreakdown.Pending++
		case models.StatusReceived:
			report.StatusBreakdown.Received++
		case models.StatusTampered:
			report.StatusBreakdown.Tampered++
		default:
			report.StatusBreakdown.InTransit++
		}

		location := s.CurrentLocation
		if location == "" {
			location = s.InitLoc
		}
		report.LocationStats[location]++

		supply := s.Supply
		if supply == "" {
			supply = "Unknown"
		}
		report.SupplyStats[supply]++

		if date, ok := parseShipmentDate(s.Date); ok && !date.Before(thirtyDaysAgo) {
			report.RecentShipmentsCount++
		}

		if hours, ok := deliveryHours(s, now); ok {
			totalDeliveryHours += hours
			report.DeliveredCount++
		}
	}

	if report.DeliveredCount > 0 {
		report.AvgDeliveryHours = round1(totalDeliveryHours / float64(report.DeliveredCount))
	}

	return report
}

// ComputeTimeline groups shipments by their raw date string, optionally
// filtered to [startDate, endDate], sorted ascending by parsed date.
func ComputeTimeline(shipments []*models.Shipment, startDate, endDate string) []*TimelineEntry {
	start, hasStart := parseShipmentDate(startDate)
	end, hasEnd := parseShipmentDate(endDate)
	filtering := startDate != "" || endDate != ""

	groups := map[string]*TimelineEntry{}

	for _, s := range shipments {
		if filtering {
			date, ok := parseShipmentDate(s.Date)
			if !ok {
				continue
			}
			if hasStart && date.Before(start) {
				continue
			}
			if hasEnd && date.After(end) {
				continue
			}
		}

		key := s.Date
		if key == "" {
			key = "Unknown"
		}

		entry, ok := groups[key]
		if !ok {
			entry = &TimelineEntry{Date: key}
			groups[key] = entry
		}

		entry.Total++
		switch models.NormalizeStatus(s.Status) {
		case models.StatusPending:
			entry.Pending++
		case models.StatusReceived:
			entry.Received++
		case models.StatusTampered:
			entry.Tampered++
		default:
			entry.InTransit++
		}
	}

	timeline := make([]*TimelineEntry, 0, len(groups))
	for _, entry := range groups {
		timeline = append(timeline, entry)
	}

	sort.Slice(timeline, func(i, j int) bool {
		a, okA := parseShipmentDate(timeline[i].Date)
		b, okB := parseShipmentDate(timeline[j].Date)
		if okA && okB {
			if !a.Equal(b) {
				return a.Before(b)
			}
			return timeline[i].Date < timeline[j].Date
		}
		if okA != okB {
			return okA // unparseable dates sort last
		}
		return timeline[i].Date < timeline[j].Date
	})

	return timeline
}

// ComputeRoutePerformance groups shipments by (initLoc, finalLoc) and
// sorts by traffic volume, heaviest route first.
func ComputeRoutePerformance(shipments []*models.Shipment) []*RouteReport {
	type routeAccum struct {
		report        *RouteReport
		deliveryHours []float64
	}

	groups := map[string]*routeAccum{}
	order := []string{}

	for _, s := range shipments {
		key := s.InitLoc + " → " + s.FinalLoc

		accum, ok := groups[key]
		if !ok {
			accum = &routeAccum{
				report: &RouteReport{
					Route:    key,
					InitLoc:  s.InitLoc,
					FinalLoc: s.FinalLoc,
				},
			}
			groups[key] = accum
			order = append(order, key)
		}

		accum.report.Total++

		switch models.NormalizeStatus(s.Status) {
		case models.StatusReceived:
			accum.report.Completed++
			if hours, ok := ledgerDeliveryHours(s); ok {
				accum.deliveryHours = append(accum.deliveryHours, hours)
			}
		case models.StatusInTransit:
			accum.report.InProgress++
		}
	}

	routes := make([]*RouteReport, 0, len(groups))
	for _, key := range order {
		accum := groups[key]
		if len(accum.deliveryHours) > 0 {
			var sum float64
			for _, h := range accum.deliveryHours {
				sum += h
			}
			accum.report.AvgDeliveryHours = round1(sum / float64(len(accum.deliveryHours)))
		}
		routes = append(routes, accum.report)
	}

	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Total > routes[j].Total
	})

	return routes
}

// ComputeCheckpointActivity flattens every ledger and groups scan
// events by location, busiest checkpoint first.
func ComputeCheckpointActivity(shipments []*models.Shipment) []*CheckpointReport {
	type checkpointAccum struct {
		report    *CheckpointReport
		shipments map[string]struct{}
		officers  map[string]struct{}
	}

	groups := map[string]*checkpointAccum{}
	order := []string{}

	for _, s := range shipments {
		for _, event := range s.LocationHistory {
			accum, ok := groups[event.Location]
			if !ok {
				accum = &checkpointAccum{
					report:    &CheckpointReport{Location: event.Location},
					shipments: map[string]struct{}{},
					officers:  map[string]struct{}{},
				}
				groups[event.Location] = accum
				order = append(order, event.Location)
			}

			accum.report.TotalScans++
			accum.shipments[s.ID] = struct{}{}
			if event.Officer != "" {
				accum.officers[event.Officer] = struct{}{}
			}
		}
	}

	checkpoints := make([]*CheckpointReport, 0, len(groups))
	for _, key := range order {
		accum := groups[key]
		accum.report.UniqueShipments = len(accum.shipments)
		accum.report.OfficersCount = len(accum.officers)
		checkpoints = append(checkpoints, accum.report)
	}

	sort.SliceStable(checkpoints, func(i, j int) bool {
		return checkpoints[i].TotalScans > checkpoints[j].TotalScans
	})

	return checkpoints
}

// deliveryHours computes a delivery-time sample for a received
// shipment: ledger span when the history has at least two entries,
// otherwise (now - date) as an approximation. Returns false when the
// shipment is not received or the sample falls outside (0, 720) hours.
func deliveryHours(s *models.Shipment, now time.Time) (float64, bool) {
	if models.NormalizeStatus(s.Status) != models.StatusReceived {
		return 0, false
	}

	if hours, ok := ledgerDeliveryHours(s); ok {
		return hours, true
	}
	if len(s.LocationHistory) > 1 {
		return 0, false
	}

	start, ok := parseShipmentDate(s.Date)
	if !ok {
		return 0, false
	}

	return validDeliveryHours(now.Sub(start).Hours())
}

// ledgerDeliveryHours is the ledger-span variant: first to last event
func ledgerDeliveryHours(s *models.Shipment) (float64, bool) {
	if len(s.LocationHistory) < 2 {
		return 0, false
	}

	first := s.LocationHistory[0].Timestamp
	last := s.LocationHistory[len(s.LocationHistory)-1].Timestamp
	if first.IsZero() || last.IsZero() {
		return 0, false
	}

	return validDeliveryHours(last.Sub(first).Hours())
}

func validDeliveryHours(hours float64) (float64, bool) {
	if hours <= 0 || hours >= maxDeliveryHours {
		return 0, false
	}
	return hours, true
}

var shipmentDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

func parseShipmentDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range shipmentDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// AnalyticsService serves aggregation reports over the current store
// snapshot. Every report is recomputed on demand; nothing is cached.
type AnalyticsService struct {
	store  repository.ShipmentStore
	logger logger.Logger
	now    func() time.Time
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(store repository.ShipmentStore, logger logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		store:  store,
		logger: logger,
		now:    models.GetCurrentTime,
	}
}

// WithClock overrides the service clock for deterministic reports.
func (s *AnalyticsService) WithClock(now func() time.Time) *AnalyticsService {
	s.now = now
	return s
}

// GetOverview returns the fleet-wide summary
func (s *AnalyticsService) GetOverview(ctx context.Context) (*OverviewReport, error) {
	shipments, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeOverview(shipments, s.now()), nil
}

// GetTimeline returns per-date totals, optionally filtered by date range
func (s *AnalyticsService) GetTimeline(ctx context.Context, startDate, endDate string) ([]*TimelineEntry, error) {
	shipments, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeTimeline(shipments, startDate, endDate), nil
}

// GetRoutePerformance returns per-route traffic and delivery stats
func (s *AnalyticsService) GetRoutePerformance(ctx context.Context) ([]*RouteReport, error) {
	shipments, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeRoutePerformance(shipments), nil
}

// GetCheckpointActivity returns per-checkpoint scan stats
func (s *AnalyticsService) GetCheckpointActivity(ctx context.Context) ([]*CheckpointReport, error) {
	shipments, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeCheckpointActivity(shipments), nil
}

func (s *AnalyticsService) snapshot(ctx context.Context) ([]*models.Shipment, error) {
	shipments, err := s.store.GetAll(ctx)
	if err != nil {
		s.logger.Error("Failed to load shipments for analytics", "error", err)
		return nil, apperrors.NewInternalError("Failed to load shipments")
	}
	return shipments, nil
}
