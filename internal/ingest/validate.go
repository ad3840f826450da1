package ingest

import (
	"fmt"

	"github.com/safestreets/safestreets/internal/models"
)

const (
	MinRadiusMeters = 100
	MaxRadiusMeters = 2000
)

// ValidateLocation rejects requests outside plausible bounds before any
// upstream call is made.
func ValidateLocation(lat, lon, radius float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %.4f out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %.4f out of range", lon)
	}
	if radius < MinRadiusMeters || radius > MaxRadiusMeters {
		return fmt.Errorf("radius %.0fm outside %d-%dm", radius, MinRadiusMeters, MaxRadiusMeters)
	}
	return nil
}

// SanityFlags lists implausible values in fetched data. Flagged data is
// still scored; the flags surface in the response for the caller to judge.
func SanityFlags(counts *models.TopologyCounts, graph *models.NetworkGraph, sat *models.SatelliteData) []string {
	var flags []string

	if counts != nil && graph != nil {
		if counts.Streets > 0 && graph.TotalStreetLengthKm == 0 {
			flags = append(flags, "streets counted but zero street length derived")
		}
		if graph.AreaKm2 > 0 && float64(len(graph.Intersections))/graph.AreaKm2 > 1000 {
			flags = append(flags, "intersection density above 1000/km2")
		}
	}
	if sat != nil {
		if sat.TreeCanopyNDVI.Valid && (sat.TreeCanopyNDVI.Float64 < -1 || sat.TreeCanopyNDVI.Float64 > 1) {
			flags = append(flags, "NDVI outside -1..1")
		}
		if sat.SlopeDegrees.Valid && (sat.SlopeDegrees.Float64 < 0 || sat.SlopeDegrees.Float64 > 60) {
			flags = append(flags, "slope outside 0-60 degrees")
		}
		if sat.SummerTempC.Valid && (sat.SummerTempC.Float64 < -30 || sat.SummerTempC.Float64 > 55) {
			flags = append(flags, "summer temperature outside -30..55C")
		}
	}
	return flags
}
