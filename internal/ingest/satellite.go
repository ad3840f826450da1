package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/safestreets/safestreets/internal/httputil"
	"github.com/safestreets/safestreets/internal/metrics"
	"github.com/safestreets/safestreets/internal/models"
)

const (
	defaultPowerEndpoint = "https://power.larc.nasa.gov/api/temporal/climatology/point"
	defaultTopoEndpoint  = "https://api.opentopodata.org/v1/srtm90m"
	defaultModisEndpoint = "https://modis.ornl.gov/rst/api/v1/MOD13Q1/subset"

	// Offset used to sample a rural reference point for the heat-island
	// delta and neighboring elevations for slope. Roughly 1km at mid
	// latitudes for slope, 10km for the heat reference.
	slopeSampleDeg = 0.009
	heatRefDeg     = 0.09
)

// Satellite reduces remote-sensing sources to the per-location scalars the
// scoring engine consumes: NDVI canopy fraction, SRTM slope, NASA POWER
// summer temperature, and a heat-island delta.
type Satellite struct {
	powerEndpoint string
	topoEndpoint  string
	modisEndpoint string
	client        *http.Client
}

func NewSatellite() *Satellite {
	return &Satellite{
		powerEndpoint: defaultPowerEndpoint,
		topoEndpoint:  defaultTopoEndpoint,
		modisEndpoint: defaultModisEndpoint,
		client:        httputil.NewClient(),
	}
}

// SetEndpoints overrides the upstream URLs, used by tests.
func (s *Satellite) SetEndpoints(power, topo, modis string) {
	if power != "" {
		s.powerEndpoint = power
	}
	if topo != "" {
		s.topoEndpoint = topo
	}
	if modis != "" {
		s.modisEndpoint = modis
	}
}

// Fetch gathers all satellite scalars. Each source degrades independently:
// a failed fetch leaves its field null rather than failing the whole call.
func (s *Satellite) Fetch(ctx context.Context, lat, lon float64) (*models.SatelliteData, error) {
	data := &models.SatelliteData{}

	if ndvi, err := s.fetchNDVI(ctx, lat, lon); err == nil {
		data.TreeCanopyNDVI = sql.NullFloat64{Float64: ndvi, Valid: true}
	}
	if slope, err := s.fetchSlope(ctx, lat, lon); err == nil {
		data.SlopeDegrees = sql.NullFloat64{Float64: slope, Valid: true}
	}

	local, localErr := s.fetchSummerTemp(ctx, lat, lon)
	if localErr == nil {
		data.SummerTempC = sql.NullFloat64{Float64: local, Valid: true}
		if ref, err := s.fetchSummerTemp(ctx, lat+heatRefDeg, lon); err == nil {
			data.HeatIslandDelta = sql.NullFloat64{Float64: local - ref, Valid: true}
		}
	}

	if !data.TreeCanopyNDVI.Valid && !data.SlopeDegrees.Valid && !data.SummerTempC.Valid {
		return data, fmt.Errorf("all satellite sources unavailable")
	}
	return data, nil
}

type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// fetchSummerTemp returns the climatological mean 2m air temperature of the
// warmest month at the point.
func (s *Satellite) fetchSummerTemp(ctx context.Context, lat, lon float64) (float64, error) {
	url := fmt.Sprintf("%s?parameters=T2M&community=RE&latitude=%.4f&longitude=%.4f&format=JSON",
		s.powerEndpoint, lat, lon)
	body, err := s.get(ctx, "power", url)
	if err != nil {
		return 0, err
	}

	var data powerResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, fmt.Errorf("unmarshal power: %w", err)
	}
	months, ok := data.Properties.Parameter["T2M"]
	if !ok || len(months) == 0 {
		return 0, fmt.Errorf("no T2M data")
	}
	warmest := math.Inf(-1)
	for key, v := range months {
		if key == "ANN" {
			continue
		}
		if v > warmest {
			warmest = v
		}
	}
	if math.IsInf(warmest, -1) {
		return 0, fmt.Errorf("no monthly T2M data")
	}
	return warmest, nil
}

type topoResponse struct {
	Results []struct {
		Elevation float64 `json:"elevation"`
	} `json:"results"`
}

// fetchSlope samples SRTM elevation at the point and four offsets ~1km out
// and converts the steepest rise to degrees.
func (s *Satellite) fetchSlope(ctx context.Context, lat, lon float64) (float64, error) {
	locations := fmt.Sprintf("%.5f,%.5f|%.5f,%.5f|%.5f,%.5f|%.5f,%.5f|%.5f,%.5f",
		lat, lon,
		lat+slopeSampleDeg, lon,
		lat-slopeSampleDeg, lon,
		lat, lon+slopeSampleDeg,
		lat, lon-slopeSampleDeg)
	url := fmt.Sprintf("%s?locations=%s", s.topoEndpoint, locations)
	body, err := s.get(ctx, "srtm", url)
	if err != nil {
		return 0, err
	}

	var data topoResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, fmt.Errorf("unmarshal srtm: %w", err)
	}
	if len(data.Results) < 5 {
		return 0, fmt.Errorf("srtm returned %d samples, want 5", len(data.Results))
	}

	center := data.Results[0].Elevation
	runM := slopeSampleDeg * 111320 // degrees latitude to metres
	maxSlope := 0.0
	for _, r := range data.Results[1:] {
		rise := math.Abs(r.Elevation - center)
		slope := math.Atan(rise/runM) * 180 / math.Pi
		if slope > maxSlope {
			maxSlope = slope
		}
	}
	return maxSlope, nil
}

type modisResponse struct {
	Subset []struct {
		Data []float64 `json:"data"`
	} `json:"subset"`
}

// modisNDVIScale converts MOD13Q1 integer NDVI to the -1..1 range.
const modisNDVIScale = 0.0001

func (s *Satellite) fetchNDVI(ctx context.Context, lat, lon float64) (float64, error) {
	url := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&band=250m_16_days_NDVI&startDate=A2024161&endDate=A2024161&kmAboveBelow=0&kmLeftRight=0",
		s.modisEndpoint, lat, lon)
	body, err := s.get(ctx, "modis", url)
	if err != nil {
		return 0, err
	}

	var data modisResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, fmt.Errorf("unmarshal modis: %w", err)
	}
	if len(data.Subset) == 0 || len(data.Subset[0].Data) == 0 {
		return 0, fmt.Errorf("no NDVI data")
	}
	return data.Subset[0].Data[0] * modisNDVIScale, nil
}

func (s *Satellite) get(ctx context.Context, source, url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := s.client.Do(req)
		metrics.UpstreamLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamCallsTotal.WithLabelValues(source, "error").Inc()
			return fmt.Errorf("fetch %s: %w", source, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			metrics.UpstreamCallsTotal.WithLabelValues(source, "retry").Inc()
			return fmt.Errorf("%s rate limited", source)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.UpstreamCallsTotal.WithLabelValues(source, "error").Inc()
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", source, resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			metrics.UpstreamCallsTotal.WithLabelValues(source, "error").Inc()
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		metrics.UpstreamCallsTotal.WithLabelValues(source, "ok").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
