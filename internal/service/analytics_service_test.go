package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relieftrack/shipment-tracking-api/internal/models"
	"github.com/relieftrack/shipment-tracking-api/internal/repository"
	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
)

func buildShipment(id, initLoc, finalLoc, date, status string, events ...models.LocationEvent) *models.Shipment {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := models.NewShipment(id, "Cargo "+id, "Medical", initLoc, finalLoc, date, "", created)
	for _, e := range events {
		s.AppendEvent(e)
	}
	s.Status = models.NormalizeStatus(status)
	return s
}

func at(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

func TestOverviewBucketsSumToTotal(t *testing.T) {
	shipments := []*models.Shipment{
		buildShipment("S1", "Delhi", "Mumbai", "2024-01-01", "pending"),
		buildShipment("S2", "Delhi", "Mumbai", "2024-01-02", "in_transit"),
		buildShipment("S3", "Pune", "Goa", "2024-01-03", "received"),
		buildShipment("S4", "Pune", "Goa", "2024-01-04", "tampered"),
		buildShipment("S5", "Pune", "Goa", "2024-01-05", "at customs"),
		buildShipment("S6", "Delhi", "Mumbai", "", ""),
	}

	overview := ComputeOverview(shipments, at(15, 0))

	b := overview.StatusBreakdown
	assert.Equal(t, 6, overview.Total)
	assert.Equal(t, 2, b.Pending)
	assert.Equal(t, 2, b.InTransit)
	assert.Equal(t, 1, b.Received)
	assert.Equal(t, 1, b.Tampered)
	assert.Equal(t, overview.Total, b.Pending+b.InTransit+b.Received+b.Tampered)
}

func TestOverviewTamperedNotCountedInTransit(t *testing.T) {
	shipments := []*models.Shipment{
		buildShipment("S1", "Delhi", "Mumbai", "2024-01-01", "tampered"),
	}

	overview := ComputeOverview(shipments, at(15, 0))

	assert.Equal(t, 1, overview.StatusBreakdown.Tampered)
	assert.Equal(t, 0, overview.StatusBreakdown.InTransit)
}

func TestOverviewLocationAndSupplyStats(t *testing.T) {
	s1 := buildShipment("S1", "Delhi", "Mumbai", "2024-01-01", "pending")
	s2 := buildShipment("S2", "Delhi", "Mumbai", "2024-01-02", "in_transit",
		models.LocationEvent{Location: "Jaipur", Timestamp: at(2, 10), Officer: "A"})
	s3 := buildShipment("S3", "Pune", "Goa", "2024-01-03", "pending")
	s3.Supply = ""

	overview := ComputeOverview([]*models.Shipment{s1, s2, s3}, at(15, 0))

	assert.Equal(t, 1, overview.LocationStats["Delhi"])
	assert.Equal(t, 1, overview.LocationStats["Jaipur"])
	assert.Equal(t, 1, overview.LocationStats["Pune"])
	assert.Equal(t, 2, overview.SupplyStats["Medical"])
	assert.Equal(t, 1, overview.SupplyStats["Unknown"])
}

func TestOverviewRecentShipmentsWindow(t *testing.T) {
	shipments := []*models.Shipment{
		buildShipment("S1", "Delhi", "Mumbai", "2024-01-10", "pending"),
		buildShipment("S2", "Delhi", "Mumbai", "2023-11-01", "pending"),
		buildShipment("S3", "Delhi", "Mumbai", "not-a-date", "pending"),
	}

	overview := ComputeOverview(shipments, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 1, overview.RecentShipmentsCount)
}

func TestOverviewDeliveryTimeFromLedger(t *testing.T) {
	// first event 2024-01-01T00:00Z, last 2024-01-02T00:00Z: exactly 24h
	s := buildShipment("S1", "Delhi", "Mumbai", "2024-01-01", "received",
		models.LocationEvent{Location: "Mumbai", Timestamp: at(2, 0), Officer: "B", Action: models.ActionVerified})

	overview := ComputeOverview([]*models.Shipment{s}, at(15, 0))

	assert.Equal(t, 1, overview.DeliveredCount)
	assert.Equal(t, 24.0, overview.AvgDeliveryHours)
}

func TestOverviewDeliveryTimeValidityWindow(t *testing.T) {
	// ledger span of exactly 720h is discarded
	tooLong := buildShipment("S1", "Delhi", "Mumbai", "2024-01-01", "received",
		models.LocationEvent{Location: "Mumbai", Timestamp: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), Officer: "B"})

	// non-positive span is discarded
	backwards := buildShipment("S2", "Delhi", "Mumbai", "2024-01-01", "received",
		models.LocationEvent{Location: "Mumbai", Timestamp: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), Officer: "B"})

	overview := ComputeOverview([]*models.Shipment{tooLong, backwards}, at(15, 0))

	assert.Equal(t, 0, overview.DeliveredCount)
	assert.Equal(t, 0.0, overview.AvgDeliveryHours)
}

func TestOverviewDeliveryTimeFallbackToDate(t *testing.T) {
	// received with a single-entry ledger: (now - date) approximation
	s := buildShipment("S1", "Delhi", "Mumbai", "2024-01-01", "received")

	overview := ComputeOverview([]*models.Shipment{s}, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 1, overview.DeliveredCount)
	assert.Equal(t, 48.0, overview.AvgDeliveryHours)
}

func TestOverviewOnlyReceivedContribute(t *testing.T) {
	inTransit := buildShipment("S1", "Delhi", "Mumbai", "2024-01-01", "in_transit",
		models.LocationEvent{Location: "Jaipur", Timestamp: at(2, 0), Officer: "A"})

	overview := ComputeOverview([]*models.Shipment{inTransit}, at(15, 0))

	assert.Equal(t, 0, overview.DeliveredCount)
}

func TestTimelineGroupsAndSorts(t *testing.T) {
	shipments := []*models.Shipment{
		buildShipment("S1", "Delhi", "Mumbai", "2024-01-03", "pending"),
		buildShipment("S2", "Delhi", "Mumbai", "2024-01-01", "received"),
		buildShipment("S3", "Delhi", "Mumbai", "2024-01-01", "tampered"),
		buildShipment("S4", "Delhi", "Mumbai", "2024-01-02", "in_transit"),
	}

	timeline := ComputeTimeline(shipments, "", "")

	require.Len(t, timeline, 3)
	assert.Equal(t, "2024-01-01", timeline[0].Date)
	assert.Equal(t, "2024-01-02", timeline[1].Date)
	assert.Equal(t, "2024-01-03", timeline[2].Date)

	assert.Equal(t, 2, timeline[0].Total)
	assert.Equal(t, 1, timeline[0].Received)
	assert.Equal(t, 1, timeline[0].Tampered)
	assert.Equal(t, 1, timeline[1].InTransit)
	assert.Equal(t, 1, timeline[2].Pending)
}

func TestTimelineDateRangeFilter(t *testing.T) {
	shipments := []*models.Shipment{
		buildShipment("S1", "Delhi", "Mumbai", "2024-01-01", "pending"),
		buildShipment("S2", "Delhi", "Mumbai", "2024-01-05", "pending"),
		buildShipment("S3", "Delhi", "Mumbai", "2024-01-10", "pending"),
	}

	timeline := ComputeTimeline(shipments, "2024-01-02", "2024-01-08")

	require.Len(t, timeline, 1)
	assert.Equal(t, "2024-01-05", timeline[0].Date)
}

func TestRoutePerformance(t *testing.T) {
	shipments := []*models.Shipment{
		buildShipment("S1", "Delhi", "Mumbai", "2024-01-01", "received",
			models.LocationEvent{Location: "Mumbai", Timestamp: at(2, 0), Officer: "B"}),
		buildShipment("S2", "Delhi", "Mumbai", "2024-01-01", "received",
			models.LocationEvent{Location: "Mumbai", Timestamp: at(3, 0), Officer: "B"}),
		buildShipment("S3", "Delhi", "Mumbai", "2024-01-02", "in_transit"),
		buildShipment("S4", "Delhi", "Mumbai", "2024-01-02", "tampered"),
		buildShipment("S5", "Pune", "Goa", "2024-01-03", "pending"),
	}

	routes := ComputeRoutePerformance(shipments)

	require.Len(t, routes, 2)

	// heaviest route first
	delhi := routes[0]
	assert.Equal(t, "Delhi → Mumbai", delhi.Route)
	assert.Equal(t, 4, delhi.Total)
	assert.Equal(t, 2, delhi.Completed)
	// tampered shipments are not in progress
	assert.Equal(t, 1, delhi.InProgress)
	// (24h + 48h) / 2
	assert.Equal(t, 36.0, delhi.AvgDeliveryHours)

	pune := routes[1]
	assert.Equal(t, 1, pune.Total)
	assert.Equal(t, 0, pune.Completed)

	assert.Equal(t, len(shipments), delhi.Total+pune.Total)
}

func TestRoutePerformanceSkipsSingleEntryLedgers(t *testing.T) {
	// received but never scanned: no ledger span, no (now-date) fallback here
	s := buildShipment("S1", "Delhi", "Mumbai", "2024-01-01", "received")

	routes := ComputeRoutePerformance([]*models.Shipment{s})

	require.Len(t, routes, 1)
	assert.Equal(t, 1, routes[0].Completed)
	assert.Equal(t, 0.0, routes[0].AvgDeliveryHours)
}

func TestCheckpointActivity(t *testing.T) {
	shipments := []*models.Shipment{
		buildShipment("S1", "Delhi", "Mumbai", "2024-01-01", "in_transit",
			models.LocationEvent{Location: "Jaipur", Timestamp: at(2, 0), Officer: "A"}),
		buildShipment("S2", "Delhi", "Goa", "2024-01-01", "in_transit",
			models.LocationEvent{Location: "Jaipur", Timestamp: at(2, 5), Officer: "B"},
			models.LocationEvent{Location: "Jaipur", Timestamp: at(2, 9), Officer: "A"}),
	}

	checkpoints := ComputeCheckpointActivity(shipments)

	require.Len(t, checkpoints, 2)

	jaipur := checkpoints[0]
	assert.Equal(t, "Jaipur", jaipur.Location)
	assert.Equal(t, 3, jaipur.TotalScans)
	assert.Equal(t, 2, jaipur.UniqueShipments)
	assert.Equal(t, 2, jaipur.OfficersCount)

	delhi := checkpoints[1]
	assert.Equal(t, "Delhi", delhi.Location)
	assert.Equal(t, 2, delhi.TotalScans)
	assert.Equal(t, 2, delhi.UniqueShipments)
	// both dispatch events are by "System"
	assert.Equal(t, 1, delhi.OfficersCount)
}

func TestAnalyticsDeterministicForSnapshot(t *testing.T) {
	shipments := []*models.Shipment{
		buildShipment("S1", "Delhi", "Mumbai", "2024-01-01", "received",
			models.LocationEvent{Location: "Mumbai", Timestamp: at(2, 0), Officer: "B"}),
		buildShipment("S2", "Pune", "Goa", "2024-01-02", "pending"),
	}
	now := at(15, 0)

	first := ComputeOverview(shipments, now)
	second := ComputeOverview(shipments, now)
	assert.Equal(t, first, second)

	assert.Equal(t, ComputeRoutePerformance(shipments), ComputeRoutePerformance(shipments))
	assert.Equal(t, ComputeCheckpointActivity(shipments), ComputeCheckpointActivity(shipments))
	assert.Equal(t, ComputeTimeline(shipments, "", ""), ComputeTimeline(shipments, "", ""))
}

func TestAnalyticsServiceOverview(t *testing.T) {
	store := repository.NewMemoryShipmentStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, buildShipment("S1", "Delhi", "Mumbai", "2024-01-01", "pending")))
	require.NoError(t, store.Create(ctx, buildShipment("S2", "Delhi", "Mumbai", "2024-01-02", "received",
		models.LocationEvent{Location: "Mumbai", Timestamp: at(3, 0), Officer: "B"})))

	svc := NewAnalyticsService(store, logger.NewNopLogger()).WithClock(func() time.Time { return at(15, 0) })

	overview, err := svc.GetOverview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, overview.Total)
	assert.Equal(t, 1, overview.StatusBreakdown.Pending)
	assert.Equal(t, 1, overview.StatusBreakdown.Received)
}
