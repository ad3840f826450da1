package ingest

import (
	"database/sql"
	"testing"

	"github.com/safestreets/safestreets/internal/models"
)

func TestValidateLocation(t *testing.T) {
	tests := []struct {
		name             string
		lat, lon, radius float64
		wantErr          bool
	}{
		{"valid", -37.81, 144.96, 500, false},
		{"min radius", 0, 0, 100, false},
		{"max radius", 0, 0, 2000, false},
		{"latitude too high", 91, 0, 500, true},
		{"longitude too low", 0, -181, 500, true},
		{"radius too small", 0, 0, 50, true},
		{"radius too large", 0, 0, 5000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLocation(tt.lat, tt.lon, tt.radius)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLocation = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSanityFlags(t *testing.T) {
	counts := &models.TopologyCounts{Streets: 10}
	graph := &models.NetworkGraph{AreaKm2: 0.5}
	sat := &models.SatelliteData{
		TreeCanopyNDVI: sql.NullFloat64{Float64: 1.4, Valid: true},
		SummerTempC:    sql.NullFloat64{Float64: 28, Valid: true},
	}

	flags := SanityFlags(counts, graph, sat)
	if len(flags) != 2 {
		t.Fatalf("flags = %v, want 2", flags)
	}

	if got := SanityFlags(nil, nil, nil); len(got) != 0 {
		t.Errorf("nil inputs should produce no flags, got %v", got)
	}
}
