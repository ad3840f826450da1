package ingest

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchSummerTemp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"properties": {"parameter": {"T2M": {
			"JAN": 25.1, "FEB": 24.8, "JUL": 9.9, "ANN": 18.0
		}}}}`)
	}))
	defer srv.Close()

	s := NewSatellite()
	s.SetEndpoints(srv.URL, "", "")

	got, err := s.fetchSummerTemp(context.Background(), -37.81, 144.96)
	if err != nil {
		t.Fatalf("fetchSummerTemp: %v", err)
	}
	// Warmest month, never the annual mean.
	if got != 25.1 {
		t.Errorf("summer temp = %v, want 25.1", got)
	}
}

func TestFetchSlope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [
			{"elevation": 100},
			{"elevation": 200},
			{"elevation": 100},
			{"elevation": 100},
			{"elevation": 100}
		]}`)
	}))
	defer srv.Close()

	s := NewSatellite()
	s.SetEndpoints("", srv.URL, "")

	got, err := s.fetchSlope(context.Background(), -37.81, 144.96)
	if err != nil {
		t.Fatalf("fetchSlope: %v", err)
	}
	// 100m rise over ~1002m run is about 5.7 degrees.
	want := math.Atan(100/(slopeSampleDeg*111320)) * 180 / math.Pi
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("slope = %v, want %v", got, want)
	}
}

func TestFetchNDVI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"subset": [{"data": [6213]}]}`)
	}))
	defer srv.Close()

	s := NewSatellite()
	s.SetEndpoints("", "", srv.URL)

	got, err := s.fetchNDVI(context.Background(), -37.81, 144.96)
	if err != nil {
		t.Fatalf("fetchNDVI: %v", err)
	}
	if math.Abs(got-0.6213) > 1e-9 {
		t.Errorf("NDVI = %v, want 0.6213", got)
	}
}

func TestFetch_DegradesPerSource(t *testing.T) {
	// Only the elevation source answers; the rest stay null.
	topo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [
			{"elevation": 50}, {"elevation": 52}, {"elevation": 50},
			{"elevation": 50}, {"elevation": 51}
		]}`)
	}))
	defer topo.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	s := NewSatellite()
	s.SetEndpoints(down.URL, topo.URL, down.URL)

	data, err := s.Fetch(context.Background(), -37.81, 144.96)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !data.SlopeDegrees.Valid {
		t.Error("SlopeDegrees should be set")
	}
	if data.TreeCanopyNDVI.Valid || data.SummerTempC.Valid || data.HeatIslandDelta.Valid {
		t.Errorf("failed sources should stay null: %+v", data)
	}
}
