package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/safestreets/safestreets/internal/httputil"
	"github.com/safestreets/safestreets/internal/metrics"
	"github.com/safestreets/safestreets/internal/models"
)

const defaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

// Overpass fetches street topology from the Overpass API.
type Overpass struct {
	endpoint string
	client   *http.Client
}

func NewOverpass(endpoint string) *Overpass {
	if endpoint == "" {
		endpoint = defaultOverpassEndpoint
	}
	return &Overpass{
		endpoint: endpoint,
		client:   httputil.NewClient(),
	}
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   float64           `json:"lat"`
	Lon   float64           `json:"lon"`
	Nodes []int64           `json:"nodes"`
	Tags  map[string]string `json:"tags"`
}

// walkableHighways are the street classes that matter for pedestrian network
// analysis. Motorways are excluded: they carry no foot traffic.
var walkableHighways = map[string]bool{
	"primary": true, "secondary": true, "tertiary": true,
	"residential": true, "unclassified": true, "living_street": true,
	"pedestrian": true, "service": true,
}

// localHighways are the low-speed classes. Their share of all streets is a
// proxy for traffic speed exposure.
var localHighways = map[string]bool{
	"residential": true, "living_street": true, "pedestrian": true, "service": true,
}

func buildTopologyQuery(lat, lon, radius float64) string {
	return fmt.Sprintf(`[out:json][timeout:30];
(
  way["highway"](around:%.0f,%.6f,%.6f);
  node["highway"="crossing"](around:%.0f,%.6f,%.6f);
  node["highway"="street_lamp"](around:%.0f,%.6f,%.6f);
  node["amenity"](around:%.0f,%.6f,%.6f);
  node["shop"](around:%.0f,%.6f,%.6f);
  way["building"](around:%.0f,%.6f,%.6f);
);
out body;
>;
out skel qt;`,
		radius, lat, lon,
		radius, lat, lon,
		radius, lat, lon,
		radius, lat, lon,
		radius, lat, lon,
		radius, lat, lon)
}

// FetchTopology queries Overpass for everything within radius metres of the
// point and reduces the result to aggregate counts and a NetworkGraph. The
// raw response body is returned for snapshot caching.
func (o *Overpass) FetchTopology(ctx context.Context, lat, lon, radius float64) (*models.TopologyCounts, *models.NetworkGraph, string, error) {
	query := buildTopologyQuery(lat, lon, radius)

	var body []byte
	operation := func() error {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint,
			strings.NewReader(url.Values{"data": {query}}.Encode()))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := o.client.Do(req)
		metrics.UpstreamLatency.WithLabelValues("overpass").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.UpstreamCallsTotal.WithLabelValues("overpass", "error").Inc()
			return fmt.Errorf("fetch topology: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusGatewayTimeout {
			metrics.UpstreamCallsTotal.WithLabelValues("overpass", "retry").Inc()
			return fmt.Errorf("overpass busy: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.UpstreamCallsTotal.WithLabelValues("overpass", "error").Inc()
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch topology: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			metrics.UpstreamCallsTotal.WithLabelValues("overpass", "error").Inc()
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		metrics.UpstreamCallsTotal.WithLabelValues("overpass", "ok").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, nil, "", err
	}

	counts, graph, err := ReduceTopology(body, radius)
	if err != nil {
		return nil, nil, "", err
	}
	return counts, graph, string(body), nil
}

// ReduceTopology parses an Overpass JSON payload into aggregate counts and a
// NetworkGraph. Exposed separately so cached snapshots can be re-reduced
// without refetching.
func ReduceTopology(payload []byte, radius float64) (*models.TopologyCounts, *models.NetworkGraph, error) {
	var data overpassResponse
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, nil, fmt.Errorf("unmarshal overpass: %w", err)
	}

	counts := &models.TopologyCounts{}
	nodeCoords := make(map[int64][2]float64)
	var streetWays []overpassElement

	for _, el := range data.Elements {
		switch el.Type {
		case "node":
			nodeCoords[el.ID] = [2]float64{el.Lat, el.Lon}
			if el.Tags["highway"] == "crossing" {
				counts.Crossings++
			}
			if el.Tags["highway"] == "street_lamp" {
				counts.StreetLights++
			}
			if el.Tags["amenity"] != "" || el.Tags["shop"] != "" {
				counts.POIs++
			}
		case "way":
			if el.Tags["building"] != "" {
				counts.Buildings++
				continue
			}
			hw := el.Tags["highway"]
			if hw == "footway" && el.Tags["footway"] == "sidewalk" {
				counts.Sidewalks++
				continue
			}
			if el.Tags["sidewalk"] != "" && el.Tags["sidewalk"] != "no" {
				counts.Sidewalks++
			}
			if walkableHighways[hw] {
				counts.Streets++
				if localHighways[hw] {
					counts.LocalStreets++
				}
				streetWays = append(streetWays, el)
			}
		}
	}

	graph := buildGraph(streetWays, nodeCoords, radius)
	return counts, graph, nil
}

// buildGraph derives the street network summary. A node shared by two or
// more street ways is an intersection; a way endpoint used by exactly one
// way is a dead end.
func buildGraph(ways []overpassElement, nodeCoords map[int64][2]float64, radius float64) *models.NetworkGraph {
	usage := make(map[int64]int)
	endpoint := make(map[int64]bool)
	for _, w := range ways {
		for _, n := range w.Nodes {
			usage[n]++
		}
		if len(w.Nodes) > 0 {
			endpoint[w.Nodes[0]] = true
			endpoint[w.Nodes[len(w.Nodes)-1]] = true
		}
	}

	g := &models.NetworkGraph{
		AreaKm2: math.Pi * (radius / 1000) * (radius / 1000),
	}

	for id, count := range usage {
		coord := nodeCoords[id]
		node := models.Node{ID: id, Lat: coord[0], Lon: coord[1]}
		if count >= 2 {
			g.Intersections = append(g.Intersections, node)
		} else if endpoint[id] {
			g.DeadEnds = append(g.DeadEnds, node)
		}
	}

	var totalM float64
	for _, w := range ways {
		for i := 1; i < len(w.Nodes); i++ {
			a, aok := nodeCoords[w.Nodes[i-1]]
			b, bok := nodeCoords[w.Nodes[i]]
			if aok && bok {
				totalM += haversineMeters(a[0], a[1], b[0], b[1])
			}
		}
	}
	g.TotalStreetLengthKm = totalM / 1000

	// Average block length approximated as street length per intersection.
	if n := len(g.Intersections); n > 0 {
		g.AverageBlockLengthM = totalM / float64(n)
	}

	return g
}

const earthRadiusM = 6371000

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}
