package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"climarisk/internal/config"
	"climarisk/internal/types"
)

// ArchiveClient retrieves raw daily observations for a coordinate from the
// historical climate archive. Implementations must be safe for concurrent use.
type ArchiveClient interface {
	// FetchDaily returns one observation per day in [start, end], ordered by
	// date ascending. Days the archive has no data for are omitted.
	FetchDaily(ctx context.Context, loc types.Location, start, end time.Time) ([]types.WeatherObservation, error)
}

// archiveParameters are the daily point parameters requested from the
// archive, in its own naming scheme.
const archiveParameters = "T2M,T2M_MAX,T2M_MIN,WS10M,PRECTOTCORR,RH2M,PS"

// archiveFillValue marks a missing reading in archive responses.
const archiveFillValue = -999.0

const archiveDateLayout = "20060102"

// archiveResponse mirrors the subset of the archive's daily point payload we
// consume: a map of parameter name to {yyyymmdd: value}.
type archiveResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// ArchiveHTTPClient implements ArchiveClient against the POWER-style daily
// point REST API through BaseClient, inheriting circuit breaking, retries,
// and error mapping.
type ArchiveHTTPClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewArchiveClient creates an ArchiveHTTPClient from configuration. The
// http client timeout should match cfg.Timeout.
func NewArchiveClient(httpClient *http.Client, cfg config.ArchiveConfig, logger *slog.Logger) *ArchiveHTTPClient {
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"climate-archive",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    cfg.RetryBackoff,
			MaxWait:    10 * time.Second,
		},
		cfg.UserAgent,
	)

	return &ArchiveHTTPClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// NewArchiveClientWithBase creates an ArchiveHTTPClient with a pre-configured
// BaseClient. Intended for tests that need to control retry behavior.
func NewArchiveClientWithBase(base *BaseClient, baseURL string, logger *slog.Logger) *ArchiveHTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveHTTPClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// FetchDaily requests the daily point series for the coordinate and converts
// it into domain observations. Fill values are dropped per-field rather than
// per-day: a day missing only humidity still contributes its temperatures.
func (c *ArchiveHTTPClient) FetchDaily(
	ctx context.Context,
	loc types.Location,
	start, end time.Time,
) ([]types.WeatherObservation, error) {
	q := url.Values{}
	q.Set("parameters", archiveParameters)
	q.Set("community", "RE")
	q.Set("latitude", fmt.Sprintf("%.4f", loc.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", loc.Lon))
	q.Set("start", start.Format(archiveDateLayout))
	q.Set("end", end.Format(archiveDateLayout))
	q.Set("format", "JSON")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building archive request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewAppError(
			types.ErrCodeUpstreamDataUnavailable,
			fmt.Sprintf("archive returned status %d", resp.StatusCode),
			fmt.Errorf("archive response: %s", string(body)),
		)
	}

	var payload archiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamDataUnavailable, "decoding archive response", err)
	}

	obs := c.assemble(loc, payload.Properties.Parameter)
	c.logger.DebugContext(ctx, "archive fetch complete",
		slog.Float64("lat", loc.Lat),
		slog.Float64("lon", loc.Lon),
		slog.Int("days", len(obs)),
	)
	return obs, nil
}

// assemble pivots the parameter-major archive payload into date-major
// observations, dropping fill values.
func (c *ArchiveHTTPClient) assemble(loc types.Location, params map[string]map[string]float64) []types.WeatherObservation {
	byDate := make(map[string]*types.WeatherObservation)

	get := func(dateKey string) *types.WeatherObservation {
		o, ok := byDate[dateKey]
		if !ok {
			o = &types.WeatherObservation{Location: loc}
			byDate[dateKey] = o
		}
		return o
	}

	for name, series := range params {
		for dateKey, value := range series {
			if value <= archiveFillValue {
				continue
			}
			o := get(dateKey)
			switch name {
			case "T2M":
				o.TempMeanC = value
			case "T2M_MAX":
				o.TempMaxC = value
			case "T2M_MIN":
				o.TempMinC = value
			case "WS10M":
				o.WindSpeedMS = value
			case "PRECTOTCORR":
				o.PrecipMM = value
			case "RH2M":
				o.HumidityPct = value
			case "PS":
				o.PressureKPa = value
			}
		}
	}

	keys := make([]string, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.WeatherObservation, 0, len(keys))
	for _, k := range keys {
		date, err := time.Parse(archiveDateLayout, k)
		if err != nil {
			continue
		}
		o := byDate[k]
		o.Date = date.UTC()
		out = append(out, *o)
	}
	return out
}
