package score

import (
	"math"

	"github.com/safestreets/safestreets/internal/models"
)

// SubScore pairs a bounded 0-100 score with the raw measurement it came from.
type SubScore struct {
	Score float64
	Raw   float64
}

func clamp0to100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// round10 rounds to one decimal place, half away from zero.
func round10(v float64) float64 {
	return math.Round(v*10) / 10
}

// round1dp is round10 under a name that reads better for raw values.
func round1dp(v float64) float64 {
	return math.Round(v*10) / 10
}

// ScoreAirQuality maps a PM2.5 concentration (µg/m³) onto the 0-10 scale.
// Step bands follow the EPA breakpoints; each boundary value belongs to the
// cleaner band. Monotonically non-increasing in pm25.
func ScoreAirQuality(pm25 float64) float64 {
	switch {
	case pm25 <= 12:
		return 10
	case pm25 <= 35:
		return 8
	case pm25 <= 55:
		return 6
	case pm25 <= 150:
		return 4
	case pm25 <= 250:
		return 2
	default:
		return 0
	}
}

// ScoreIntersectionDensity scores intersections per km². 150/km² or more is
// a full 100; a zero-area graph scores 0.
func ScoreIntersectionDensity(g *models.NetworkGraph) SubScore {
	density := 0.0
	if g.AreaKm2 > 0 {
		density = float64(len(g.Intersections)) / g.AreaKm2
	}
	return SubScore{
		Score: clamp0to100(density / 150 * 100),
		Raw:   round1dp(density),
	}
}

// ScoreBlockLength scores average block length: 100m or shorter is a full
// 100, 280m or longer is 0, linear between.
func ScoreBlockLength(g *models.NetworkGraph) SubScore {
	length := g.AverageBlockLengthM
	var s float64
	switch {
	case length <= 100:
		s = 100
	case length >= 280:
		s = 0
	default:
		s = (280 - length) / (280 - 100) * 100
	}
	return SubScore{Score: s, Raw: round1dp(length)}
}

// ScoreNetworkDensity scores street kilometres per km². 20 km/km² or more
// is a full 100; a zero-area graph scores 0.
func ScoreNetworkDensity(g *models.NetworkGraph) SubScore {
	density := 0.0
	if g.AreaKm2 > 0 {
		density = g.TotalStreetLengthKm / g.AreaKm2
	}
	return SubScore{
		Score: clamp0to100(density / 20 * 100),
		Raw:   round1dp(density),
	}
}

// ScoreDeadEndRatio scores the fraction of terminal nodes that are dead ends:
// 0% is a full 100, 30% or more is 0, linear between. A graph with no
// intersections and no dead ends has no topology to judge and returns the
// 50-point sentinel with raw 0 — distinct from a genuine 0% or 100% ratio.
func ScoreDeadEndRatio(g *models.NetworkGraph) SubScore {
	total := len(g.DeadEnds) + len(g.Intersections)
	if total == 0 {
		return SubScore{Score: 50, Raw: 0}
	}
	ratio := float64(len(g.DeadEnds)) / float64(total)
	s := clamp0to100((0.30 - ratio) / 0.30 * 100)
	return SubScore{Score: s, Raw: round1dp(ratio * 100)}
}
