package ingest

import (
	"math"
	"strings"
	"testing"
)

const overpassFixture = `{
  "elements": [
    {"type": "node", "id": 1, "lat": -37.8000, "lon": 144.9600, "tags": {"highway": "crossing"}},
    {"type": "node", "id": 2, "lat": -37.8010, "lon": 144.9610},
    {"type": "node", "id": 3, "lat": -37.8020, "lon": 144.9620, "tags": {"highway": "street_lamp"}},
    {"type": "node", "id": 4, "lat": -37.8030, "lon": 144.9630, "tags": {"amenity": "cafe"}},
    {"type": "node", "id": 5, "lat": -37.8040, "lon": 144.9640, "tags": {"shop": "bakery"}},
    {"type": "node", "id": 6, "lat": -37.8050, "lon": 144.9650},
    {"type": "way", "id": 100, "nodes": [1, 2, 3], "tags": {"highway": "residential", "sidewalk": "both"}},
    {"type": "way", "id": 101, "nodes": [3, 4], "tags": {"highway": "tertiary"}},
    {"type": "way", "id": 102, "nodes": [5, 6], "tags": {"highway": "motorway"}},
    {"type": "way", "id": 103, "nodes": [4, 5], "tags": {"highway": "footway", "footway": "sidewalk"}},
    {"type": "way", "id": 104, "nodes": [2, 6], "tags": {"building": "yes"}}
  ]
}`

func TestReduceTopology(t *testing.T) {
	counts, graph, err := ReduceTopology([]byte(overpassFixture), 500)
	if err != nil {
		t.Fatalf("ReduceTopology: %v", err)
	}

	if counts.Crossings != 1 {
		t.Errorf("Crossings = %d, want 1", counts.Crossings)
	}
	if counts.StreetLights != 1 {
		t.Errorf("StreetLights = %d, want 1", counts.StreetLights)
	}
	if counts.POIs != 2 {
		t.Errorf("POIs = %d, want 2", counts.POIs)
	}
	// One tagged sidewalk way plus one dedicated footway.
	if counts.Sidewalks != 2 {
		t.Errorf("Sidewalks = %d, want 2", counts.Sidewalks)
	}
	// Motorways and footways are not walkable street ways.
	if counts.Streets != 2 {
		t.Errorf("Streets = %d, want 2", counts.Streets)
	}
	if counts.LocalStreets != 1 {
		t.Errorf("LocalStreets = %d, want 1", counts.LocalStreets)
	}
	if counts.Buildings != 1 {
		t.Errorf("Buildings = %d, want 1", counts.Buildings)
	}

	// Node 3 is shared by ways 100 and 101.
	if len(graph.Intersections) != 1 || graph.Intersections[0].ID != 3 {
		t.Errorf("Intersections = %+v, want node 3 only", graph.Intersections)
	}
	// Nodes 1 and 4 are single-use way endpoints.
	if len(graph.DeadEnds) != 2 {
		t.Errorf("DeadEnds = %+v, want 2", graph.DeadEnds)
	}

	wantArea := math.Pi * 0.5 * 0.5
	if math.Abs(graph.AreaKm2-wantArea) > 1e-9 {
		t.Errorf("AreaKm2 = %v, want %v", graph.AreaKm2, wantArea)
	}
	if graph.TotalStreetLengthKm <= 0 {
		t.Errorf("TotalStreetLengthKm = %v, want > 0", graph.TotalStreetLengthKm)
	}
	if graph.AverageBlockLengthM <= 0 {
		t.Errorf("AverageBlockLengthM = %v, want > 0", graph.AverageBlockLengthM)
	}
}

func TestReduceTopology_BadPayload(t *testing.T) {
	if _, _, err := ReduceTopology([]byte("<html>rate limited</html>"), 500); err == nil {
		t.Error("expected error for non-JSON payload")
	}
}

func TestBuildTopologyQuery(t *testing.T) {
	q := buildTopologyQuery(-37.8136, 144.9631, 500)
	for _, want := range []string{
		"[out:json]",
		`way["highway"](around:500,-37.813600,144.963100)`,
		`node["highway"="crossing"]`,
		`node["highway"="street_lamp"]`,
		`node["amenity"]`,
		`node["shop"]`,
		`way["building"]`,
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
}

func TestHaversineMeters(t *testing.T) {
	// Melbourne CBD to St Kilda, about 5.8km.
	got := haversineMeters(-37.8136, 144.9631, -37.8679, 144.9740)
	if got < 5500 || got > 6200 {
		t.Errorf("haversineMeters = %v, want ~5800", got)
	}
	if d := haversineMeters(10, 20, 10, 20); d != 0 {
		t.Errorf("zero distance = %v", d)
	}
}
