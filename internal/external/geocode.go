package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"climarisk/internal/config"
	"climarisk/internal/types"
)

// Geocoder resolves free-form place names into coordinates.
type Geocoder interface {
	// Resolve returns the best-matching location for the query, including a
	// display name. Returns ErrCodeNotFoundLocation when nothing matches.
	Resolve(ctx context.Context, query string) (types.Location, error)
}

// nominatimResult is one entry of the geocoder's search response.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimClient implements Geocoder against a Nominatim-compatible search
// endpoint through BaseClient.
type NominatimClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewGeocoder creates a NominatimClient from configuration.
func NewGeocoder(httpClient *http.Client, cfg config.GeocodeConfig, logger *slog.Logger) *NominatimClient {
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"geocoder",
		RetryPolicy{
			MaxRetries: 1,
			MinWait:    time.Second,
			MaxWait:    5 * time.Second,
		},
		cfg.UserAgent,
	)

	return &NominatimClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// NewGeocoderWithBase creates a NominatimClient with a pre-configured
// BaseClient. Intended for tests.
func NewGeocoderWithBase(base *BaseClient, baseURL string, logger *slog.Logger) *NominatimClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &NominatimClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Resolve performs a single-result search for the query.
func (c *NominatimClient) Resolve(ctx context.Context, query string) (types.Location, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return types.Location{}, types.NewAppError(types.ErrCodeInternalUnexpected, "building geocode request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return types.Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Location{}, types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("geocoder returned status %d", resp.StatusCode),
			nil,
		)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return types.Location{}, types.NewAppError(types.ErrCodeUpstreamUnavailable, "decoding geocode response", err)
	}

	if len(results) == 0 {
		return types.Location{}, types.NewAppError(
			types.ErrCodeNotFoundLocation,
			fmt.Sprintf("no location found for %q", query),
			nil,
		)
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return types.Location{}, types.NewAppError(types.ErrCodeUpstreamUnavailable, "geocoder returned malformed coordinates", nil)
	}

	loc := types.Location{Lat: lat, Lon: lon, DisplayName: results[0].DisplayName}
	c.logger.DebugContext(ctx, "geocode resolved",
		slog.String("query", query),
		slog.Float64("lat", loc.Lat),
		slog.Float64("lon", loc.Lon),
	)
	return loc, nil
}
