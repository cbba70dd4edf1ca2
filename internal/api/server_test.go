package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relieftrack/shipment-tracking-api/internal/clients"
	"github.com/relieftrack/shipment-tracking-api/internal/config"
	"github.com/relieftrack/shipment-tracking-api/internal/models"
	"github.com/relieftrack/shipment-tracking-api/internal/repository"
	"github.com/relieftrack/shipment-tracking-api/internal/service"
	apperrors "github.com/relieftrack/shipment-tracking-api/pkg/errors"
	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
	"github.com/relieftrack/shipment-tracking-api/pkg/middleware"
)

type stubEstimator struct{}

func (stubEstimator) Geocode(_ context.Context, text string) (*clients.GeocodedPlace, error) {
	switch text {
	case "Delhi":
		return &clients.GeocodedPlace{Coordinates: []float64{77.21, 28.61}, Name: "Delhi, India"}, nil
	case "Mumbai":
		return &clients.GeocodedPlace{Coordinates: []float64{72.88, 19.08}, Name: "Mumbai, India"}, nil
	default:
		return nil, apperrors.NewNoRouteError("Location not found: " + text)
	}
}

func (stubEstimator) GetRoute(_ context.Context, _, _ []float64, _ string) (*clients.RouteSummary, error) {
	return &clients.RouteSummary{DurationSeconds: 5400, DistanceMeters: 1415230}, nil
}

func newTestServer() *Server {
	l := logger.NewNopLogger()
	store := repository.NewMemoryShipmentStore()

	shipmentService := service.NewShipmentService(store, nil, l).
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) })

	s := &Server{
		config: &config.Config{
			Admin:   config.AdminConfig{Token: "test-admin-token"},
			Routing: config.RoutingConfig{DefaultProfile: "driving-car"},
		},
		logger:           l,
		router:           mux.NewRouter(),
		store:            store,
		shipmentService:  shipmentService,
		analyticsService: service.NewAnalyticsService(store, l),
		estimateService:  service.NewEstimateService(stubEstimator{}, shipmentService, l),
		rateLimiter: middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
			GlobalMaxTokens:  10000,
			GlobalRefillRate: 10000,
			IPMaxTokens:      10000,
			IPRefillRate:     10000,
		}, l),
		degradation: middleware.NewGracefulDegradation(l),
	}

	s.setupRoutes()
	return s
}

func doRequest(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func createShipmentBody() map[string]string {
	return map[string]string{
		"id":       "S1",
		"name":     "Medkit",
		"supply":   "Medical",
		"initLoc":  "Delhi",
		"finalLoc": "Mumbai",
		"date":     "2024-01-01",
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var health Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
}

func TestCreateShipmentEndpoint(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())

	assert.Equal(t, http.StatusCreated, rec.Code)

	var shipment models.Shipment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shipment))
	assert.Equal(t, "S1", shipment.ID)
	assert.Equal(t, "pending", shipment.Status)
	assert.Equal(t, "Delhi", shipment.CurrentLocation)
	require.Len(t, shipment.LocationHistory, 1)
	assert.Equal(t, "dispatched", shipment.LocationHistory[0].Action)
}

func TestCreateShipmentMissingFields(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/shipments", map[string]string{"id": "S1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestCreateShipmentDuplicateID(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetShipmentsEndpoint(t *testing.T) {
	s := newTestServer()
	doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())

	rec := doRequest(s, http.MethodGet, "/api/shipments", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var shipments []models.Shipment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shipments))
	require.Len(t, shipments, 1)
	assert.Equal(t, "S1", shipments[0].ID)
}

func TestGetShipmentByIDNotFound(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodGet, "/api/shipments/ghost", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppendLocationEndpoint(t *testing.T) {
	s := newTestServer()
	doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())

	rec := doRequest(s, http.MethodPost, "/api/shipments/S1/location", map[string]interface{}{
		"location": "Jaipur",
		"officer":  "A",
		"action":   "checked_in",
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success  bool                 `json:"success"`
		Location models.LocationEvent `json:"location"`
		Shipment models.Shipment      `json:"shipment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Jaipur", resp.Location.Location)
	assert.Equal(t, "Jaipur", resp.Shipment.CurrentLocation)
	assert.Len(t, resp.Shipment.LocationHistory, 2)
}

func TestAppendLocationMissingLocation(t *testing.T) {
	s := newTestServer()
	doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())

	rec := doRequest(s, http.MethodPost, "/api/shipments/S1/location", map[string]string{"officer": "A"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateShipmentEndpoint(t *testing.T) {
	s := newTestServer()
	doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())

	rec := doRequest(s, http.MethodPut, "/api/shipments/S1", map[string]string{"status": "received"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var shipment models.Shipment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shipment))
	assert.Equal(t, "received", shipment.Status)
	require.NotNil(t, shipment.ReceivedAt)
	// no location included, so the ledger is untouched
	assert.Len(t, shipment.LocationHistory, 1)
}

func TestUpdateShipmentNotFound(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPut, "/api/shipments/ghost", map[string]string{"name": "x"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteShipmentEndpoint(t *testing.T) {
	s := newTestServer()
	doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())

	rec := doRequest(s, http.MethodDelete, "/api/shipments/S1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/shipments/S1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(s, http.MethodDelete, "/api/shipments/S1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyShipmentEndpoint(t *testing.T) {
	s := newTestServer()
	doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())

	rec := doRequest(s, http.MethodPost, "/api/shipments/S1/verify", map[string]interface{}{
		"officer":  "B",
		"location": "Mumbai",
		"complete": true,
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var shipment models.Shipment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shipment))
	assert.Equal(t, "received", shipment.Status)
	assert.Equal(t, "Mumbai", shipment.CurrentLocation)
}

func TestTamperEndpointIsSticky(t *testing.T) {
	s := newTestServer()
	doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())

	rec := doRequest(s, http.MethodPost, "/api/shipments/S1/tamper", map[string]string{"officer": "C"})
	require.Equal(t, http.StatusOK, rec.Code)

	// a completing verification scan is recorded but does not clear the flag
	rec = doRequest(s, http.MethodPost, "/api/shipments/S1/verify", map[string]interface{}{
		"officer":  "B",
		"complete": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var shipment models.Shipment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shipment))
	assert.Equal(t, "tampered", shipment.Status)

	// only the direct status edit overrides it
	rec = doRequest(s, http.MethodPut, "/api/shipments/S1", map[string]string{"status": "received"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shipment))
	assert.Equal(t, "received", shipment.Status)
}

func TestEstimateEndpoint(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/estimate", map[string]string{
		"startLocation": "Delhi",
		"endLocation":   "Mumbai",
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var estimate service.TravelEstimate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &estimate))
	assert.Equal(t, "1h 30m", estimate.DurationFormatted)
	assert.Equal(t, "1415.23 km", estimate.DistanceFormatted)
	assert.Equal(t, "driving-car", estimate.Profile)
}

func TestShipmentEstimateEndpoint(t *testing.T) {
	s := newTestServer()
	doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())

	rec := doRequest(s, http.MethodGet, "/api/shipments/S1/estimate?mode=driving-hgv", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var estimate service.TravelEstimate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &estimate))
	assert.Equal(t, "S1", estimate.ShipmentID)
	assert.Equal(t, "driving-hgv", estimate.Profile)
}

func TestAnalyticsOverviewEndpoint(t *testing.T) {
	s := newTestServer()
	doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())
	doRequest(s, http.MethodPut, "/api/shipments/S1", map[string]string{"status": "received"})

	rec := doRequest(s, http.MethodGet, "/api/analytics/overview", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var overview service.OverviewReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	assert.Equal(t, 1, overview.Total)
	assert.Equal(t, 1, overview.StatusBreakdown.Received)
	assert.Equal(t, overview.Total,
		overview.StatusBreakdown.Pending+overview.StatusBreakdown.InTransit+
			overview.StatusBreakdown.Received+overview.StatusBreakdown.Tampered)
}

func TestAnalyticsTimelineEndpoint(t *testing.T) {
	s := newTestServer()
	doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())

	rec := doRequest(s, http.MethodGet, "/api/analytics/timeline?startDate=2024-01-01&endDate=2024-01-31", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Timeline []service.TimelineEntry `json:"timeline"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Timeline, 1)
	assert.Equal(t, "2024-01-01", resp.Timeline[0].Date)
}

func TestAnalyticsRoutesEndpoint(t *testing.T) {
	s := newTestServer()
	doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())

	rec := doRequest(s, http.MethodGet, "/api/analytics/routes", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Routes []service.RouteReport `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Routes, 1)
	assert.Equal(t, "Delhi → Mumbai", resp.Routes[0].Route)
}

func TestAnalyticsCheckpointsEndpoint(t *testing.T) {
	s := newTestServer()
	doRequest(s, http.MethodPost, "/api/shipments", createShipmentBody())
	doRequest(s, http.MethodPost, "/api/shipments/S1/location", map[string]string{"location": "Jaipur", "officer": "A"})

	rec := doRequest(s, http.MethodGet, "/api/analytics/checkpoints", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Checkpoints []service.CheckpointReport `json:"checkpoints"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Checkpoints, 2)
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodGet, "/api/admin/ratelimits", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/ratelimits", nil)
	req.Header.Set("Authorization", "Bearer test-admin-token")
	out := httptest.NewRecorder()
	s.router.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
}

func TestAdminCircuitBreakersEndpoint(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/circuit-breakers", nil)
	req.Header.Set("Authorization", "Bearer test-admin-token")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "closed")
}
