package analysis

import (
	"github.com/safestreets/safestreets/internal/models"
	"github.com/safestreets/safestreets/internal/score"
)

// DeriveLegacyMetrics maps raw topology and satellite data onto the eight
// legacy 0-10 sub-scores. Missing inputs leave their metric at zero, which
// the aggregators treat as absent where that matters.
func DeriveLegacyMetrics(counts *models.TopologyCounts, graph *models.NetworkGraph, sat *models.SatelliteData) score.WalkabilityMetrics {
	var m score.WalkabilityMetrics
	if counts != nil {
		m.CrossingSafety = scoreCrossingSafety(counts, graph)
		m.SidewalkCoverage = scoreSidewalkCoverage(counts)
		m.SpeedExposure = scoreSpeedExposure(counts)
		m.DestinationAccess = scoreDestinationAccess(counts, graph)
		m.NightSafety = scoreNightSafety(counts, graph)
	}
	if sat != nil {
		if sat.SlopeDegrees.Valid {
			m.Slope = scoreSlope(sat.SlopeDegrees.Float64)
		}
		if sat.TreeCanopyNDVI.Valid {
			m.TreeCanopy = scoreTreeCanopy(sat.TreeCanopyNDVI.Float64)
		}
		if sat.SummerTempC.Valid {
			delta := 0.0
			if sat.HeatIslandDelta.Valid {
				delta = sat.HeatIslandDelta.Float64
			}
			m.ThermalComfort = scoreThermalComfort(sat.SummerTempC.Float64, delta)
		}
	}
	return m
}

// scoreCrossingSafety rates marked crossings per intersection. One crossing
// for every intersection is as good as it gets.
func scoreCrossingSafety(counts *models.TopologyCounts, graph *models.NetworkGraph) float64 {
	intersections := 0
	if graph != nil {
		intersections = len(graph.Intersections)
	}
	if intersections == 0 {
		if counts.Crossings > 0 {
			return 5
		}
		return 0
	}
	ratio := float64(counts.Crossings) / float64(intersections)
	return clamp0to10(ratio * 10)
}

// scoreSidewalkCoverage rates sidewalk-tagged ways against street ways.
func scoreSidewalkCoverage(counts *models.TopologyCounts) float64 {
	if counts.Streets == 0 {
		return 0
	}
	ratio := float64(counts.Sidewalks) / float64(counts.Streets)
	return clamp0to10(ratio * 10)
}

// scoreSpeedExposure rates the share of low-speed street classes.
func scoreSpeedExposure(counts *models.TopologyCounts) float64 {
	if counts.Streets == 0 {
		return 0
	}
	share := float64(counts.LocalStreets) / float64(counts.Streets)
	return clamp0to10(share * 10)
}

// scoreDestinationAccess rates POI density. 40 destinations per km2 is a
// lively mixed-use neighborhood.
func scoreDestinationAccess(counts *models.TopologyCounts, graph *models.NetworkGraph) float64 {
	area := 0.0
	if graph != nil {
		area = graph.AreaKm2
	}
	if area <= 0 {
		return 0
	}
	perKm2 := float64(counts.POIs) / area
	return clamp0to10(perKm2 / 40 * 10)
}

// scoreNightSafety rates street lamps per street kilometre. 20 lamps per km
// is roughly 50m spacing, a fully lit street.
func scoreNightSafety(counts *models.TopologyCounts, graph *models.NetworkGraph) float64 {
	lengthKm := 0.0
	if graph != nil {
		lengthKm = graph.TotalStreetLengthKm
	}
	if lengthKm <= 0 {
		return 0
	}
	perKm := float64(counts.StreetLights) / lengthKm
	return clamp0to10(perKm / 20 * 10)
}

// scoreSlope rates terrain steepness. Flat scores 10; anything past 10
// degrees is hard walking.
func scoreSlope(degrees float64) float64 {
	switch {
	case degrees <= 1:
		return 10
	case degrees <= 3:
		return 8
	case degrees <= 5:
		return 6
	case degrees <= 8:
		return 4
	case degrees <= 12:
		return 2
	default:
		return 1
	}
}

// scoreTreeCanopy maps NDVI to a canopy score. 0.2 is sparse urban green,
// 0.6 is dense canopy.
func scoreTreeCanopy(ndvi float64) float64 {
	return clamp0to10((ndvi - 0.1) / 0.5 * 10)
}

// scoreThermalComfort rates summer heat plus any urban heat-island penalty.
func scoreThermalComfort(summerTempC, heatIslandDelta float64) float64 {
	var base float64
	switch {
	case summerTempC <= 22:
		base = 10
	case summerTempC <= 26:
		base = 8
	case summerTempC <= 30:
		base = 6
	case summerTempC <= 34:
		base = 4
	case summerTempC <= 38:
		base = 2
	default:
		base = 1
	}
	if heatIslandDelta > 2 {
		base -= 1
	}
	if heatIslandDelta > 4 {
		base -= 1
	}
	return clamp0to10(base)
}

func clamp0to10(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
