package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/relieftrack/shipment-tracking-api/pkg/errors"
	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
)

func newGeocodeServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func TestGeocode(t *testing.T) {
	srv := newGeocodeServer(t, `{"features":[{"geometry":{"coordinates":[77.21,28.61]},"properties":{"label":"Delhi, India"}}]}`)
	defer srv.Close()

	client := NewRoutingClient(srv.URL, "key", logger.NewNopLogger())

	place, err := client.Geocode(context.Background(), "Delhi")

	require.NoError(t, err)
	assert.Equal(t, "Delhi, India", place.Name)
	assert.Equal(t, []float64{77.21, 28.61}, place.Coordinates)
}

func TestGeocodeUnresolvedPlaceDoesNotTripBreaker(t *testing.T) {
	srv := newGeocodeServer(t, `{"features":[]}`)
	defer srv.Close()

	client := NewRoutingClient(srv.URL, "key", logger.NewNopLogger())

	for i := 0; i < 6; i++ {
		_, err := client.Geocode(context.Background(), "Atlantis")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrNoRoute)
	}

	metrics := client.Breaker().GetMetrics()
	assert.Equal(t, "closed", metrics.State)
	assert.Equal(t, 0, metrics.FailureCount)
}

func TestGetRouteEmptyResponseDoesNotTripBreaker(t *testing.T) {
	srv := newGeocodeServer(t, `{"routes":[]}`)
	defer srv.Close()

	client := NewRoutingClient(srv.URL, "key", logger.NewNopLogger())

	for i := 0; i < 6; i++ {
		_, err := client.GetRoute(context.Background(), []float64{77.21, 28.61}, []float64{72.88, 19.08}, "driving-car")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrNoRoute)
	}

	metrics := client.Breaker().GetMetrics()
	assert.Equal(t, "closed", metrics.State)
}

func TestGeocodeUpstreamErrorCountsAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewRoutingClient(srv.URL, "key", logger.NewNopLogger())

	_, err := client.Geocode(context.Background(), "Delhi")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExternalService)
	assert.Equal(t, 1, client.Breaker().GetMetrics().FailureCount)
}
