package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/safestreets/safestreets/internal/httputil"
)

const defaultOpenAQEndpoint = "https://api.openaq.org/v3"

// AirQuality fetches PM2.5 readings from OpenAQ.
type AirQuality struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewAirQuality(endpoint, apiKey string) *AirQuality {
	if endpoint == "" {
		endpoint = defaultOpenAQEndpoint
	}
	return &AirQuality{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   httputil.NewClient(),
	}
}

type openAQLocations struct {
	Results []struct {
		ID      int `json:"id"`
		Sensors []struct {
			ID        int `json:"id"`
			Parameter struct {
				Name string `json:"name"`
			} `json:"parameter"`
		} `json:"sensors"`
	} `json:"results"`
}

type openAQLatest struct {
	Results []struct {
		Value float64 `json:"value"`
	} `json:"results"`
}

// FetchPM25 returns the latest PM2.5 reading in µg/m³ from the nearest
// station within 25km, plus the raw locations payload for snapshot caching.
func (a *AirQuality) FetchPM25(ctx context.Context, lat, lon float64) (float64, string, error) {
	url := fmt.Sprintf("%s/locations?coordinates=%.4f,%.4f&radius=25000&limit=5&parameters_id=2",
		a.endpoint, lat, lon)
	body, err := a.get(ctx, url)
	if err != nil {
		return 0, "", err
	}

	var locs openAQLocations
	if err := json.Unmarshal(body, &locs); err != nil {
		return 0, "", fmt.Errorf("unmarshal openaq locations: %w", err)
	}

	sensorID := 0
	for _, loc := range locs.Results {
		for _, s := range loc.Sensors {
			if s.Parameter.Name == "pm25" {
				sensorID = s.ID
				break
			}
		}
		if sensorID != 0 {
			break
		}
	}
	if sensorID == 0 {
		return 0, string(body), fmt.Errorf("no pm25 station within 25km")
	}

	latestBody, err := a.get(ctx, fmt.Sprintf("%s/sensors/%d/measurements?limit=1", a.endpoint, sensorID))
	if err != nil {
		return 0, string(body), err
	}
	var latest openAQLatest
	if err := json.Unmarshal(latestBody, &latest); err != nil {
		return 0, string(body), fmt.Errorf("unmarshal openaq latest: %w", err)
	}
	if len(latest.Results) == 0 {
		return 0, string(body), fmt.Errorf("pm25 sensor %d has no measurements", sensorID)
	}
	return latest.Results[0].Value, string(body), nil
}

func (a *AirQuality) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}
	return doInstrumented(a.client, req, "openaq")
}
