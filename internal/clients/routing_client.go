package clients

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/relieftrack/shipment-tracking-api/pkg/circuitbreaker"
	"github.com/relieftrack/shipment-tracking-api/pkg/errors"
	"github.com/relieftrack/shipment-tracking-api/pkg/logger"
	"github.com/relieftrack/shipment-tracking-api/pkg/retry"
)

// GeocodedPlace is a resolved place name
type GeocodedPlace struct {
	Coordinates []float64 // [longitude, latitude]
	Name        string
}

// RouteSummary is the travel estimate between two coordinates
type RouteSummary struct {
	DurationSeconds float64
	DistanceMeters  float64
}

// RoutingClient calls the OpenRouteService geocoding and directions
// APIs. Calls are retried with backoff and guarded by a circuit
// breaker so a degraded upstream cannot stall every estimate request.
type RoutingClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	logger      logger.Logger
	retryConfig *retry.RetryConfig
	breaker     *circuitbreaker.CircuitBreaker
}

// NewRoutingClient creates a new RoutingClient instance
func NewRoutingClient(baseURL, apiKey string, logger logger.Logger) *RoutingClient {
	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}

	retryConfig := &retry.RetryConfig{
		MaxAttempts: 3,
		BackoffStrategy: &retry.ExponentialBackoff{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      1.5,
			JitterFactor:    0.2,
		},
		Logger: logger,
		RetryableErrors: []error{
			errors.ErrTimeout,
			errors.ErrTemporaryFailure,
			errors.ErrServiceUnavailable,
		},
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 2,
	})

	return &RoutingClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  httpClient,
		logger:      logger,
		retryConfig: retryConfig,
		breaker:     breaker,
	}
}

// Breaker exposes the circuit breaker for monitoring endpoints
func (c *RoutingClient) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label string `json:"label"`
		} `json:"properties"`
	} `json:"features"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Duration float64 `json:"duration"`
			Distance float64 `json:"distance"`
		} `json:"summary"`
	} `json:"routes"`
}

// Geocode resolves a place name to coordinates and a canonical label
func (c *RoutingClient) Geocode(ctx context.Context, text string) (*GeocodedPlace, error) {
	if !c.breaker.Allow() {
		return nil, errors.NewTemporaryError("routing service circuit is open")
	}

	requestURL := fmt.Sprintf(
		"%s/geocode/search?api_key=%s&text=%s&size=1",
		c.baseURL,
		url.QueryEscape(c.apiKey),
		url.QueryEscape(text),
	)

	var place *GeocodedPlace

	retryFunc := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)

		if err != nil {
			return errors.NewInternalError(fmt.Sprintf("failed to create request: %v", err))
		}

		body, err := c.do(req)
		if err != nil {
			return err
		}

		var parsed geocodeResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return errors.NewExternalServiceError(fmt.Sprintf("failed to parse geocode response: %v", err))
		}

		if len(parsed.Features) == 0 {
			return errors.NewNoRouteError(fmt.Sprintf("Location not found: %s", text))
		}

		feature := parsed.Features[0]
		place = &GeocodedPlace{
			Coordinates: feature.Geometry.Coordinates,
			Name:        feature.Properties.Label,
		}
		return nil
	}

	err := retry.Retry(ctx, retryFunc, c.retryConfig)

	if err != nil {
		// An unresolved place is a definitive upstream answer, not a fault
		if !stderrors.Is(err, errors.ErrNoRoute) {
			c.breaker.Failure()
		}
		c.logger.Error("Geocode failed after retries", "error", err, "text", text)
		return nil, err
	}

	c.breaker.Success()
	return place, nil
}

// GetRoute fetches a travel estimate between two coordinate pairs
func (c *RoutingClient) GetRoute(ctx context.Context, start, end []float64, profile string) (*RouteSummary, error) {
	if !c.breaker.Allow() {
		return nil, errors.NewTemporaryError("routing service circuit is open")
	}

	requestURL := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, profile)

	var summary *RouteSummary

	retryFunc := func() error {
		reqBody, err := json.Marshal(map[string][][]float64{
			"coordinates": {start, end},
		})

		if err != nil {
			return errors.NewInternalError(fmt.Sprintf("failed to marshal request: %v", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewBuffer(reqBody))

		if err != nil {
			return errors.NewInternalError(fmt.Sprintf("failed to create request: %v", err))
		}

		req.Header.Set("Authorization", c.apiKey)

		body, err := c.do(req)
		if err != nil {
			return err
		}

		var parsed directionsResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return errors.NewExternalServiceError(fmt.Sprintf("failed to parse directions response: %v", err))
		}

		if len(parsed.Routes) == 0 {
			return errors.NewNoRouteError("No route found")
		}

		summary = &RouteSummary{
			DurationSeconds: parsed.Routes[0].Summary.Duration,
			DistanceMeters:  parsed.Routes[0].Summary.Distance,
		}
		return nil
	}

	err := retry.Retry(ctx, retryFunc, c.retryConfig)

	if err != nil {
		// A missing route is a definitive upstream answer, not a fault
		if !stderrors.Is(err, errors.ErrNoRoute) {
			c.breaker.Failure()
		}
		c.logger.Error("Route lookup failed after retries", "error", err, "profile", profile)
		return nil, err
	}

	c.breaker.Success()
	return summary, nil
}

func (c *RoutingClient) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json, application/geo+json; charset=utf-8")

	resp, err := c.httpClient.Do(req)

	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, errors.NewTimeoutError("routing request timed out")
		}
		return nil, errors.NewTemporaryError(fmt.Sprintf("failed to send request: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)

	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to read response body: %v", err))
	}

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout {
			return nil, errors.NewTimeoutError("routing request timed out")
		}

		if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusInternalServerError {
			return nil, errors.NewTemporaryError(fmt.Sprintf("routing service error: %d", resp.StatusCode))
		}

		return nil, errors.NewExternalServiceError(fmt.Sprintf("routing service returned error: %d", resp.StatusCode))
	}

	return body, nil
}
