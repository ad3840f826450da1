package score

import (
	"fmt"
	"math"

	"github.com/safestreets/safestreets/internal/models"
)

// Grade is the composite letter grade.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// GradeForScore bands a 0-100 overall score into a letter grade.
func GradeForScore(overall int) Grade {
	switch {
	case overall >= 80:
		return GradeA
	case overall >= 60:
		return GradeB
	case overall >= 40:
		return GradeC
	case overall >= 20:
		return GradeD
	default:
		return GradeF
	}
}

// SubMetric is one scored input within a component. Weight is the nominal
// fraction before redistribution. HasData distinguishes a genuine 0 from a
// missing measurement.
type SubMetric struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	RawValue string  `json:"rawValue,omitempty"`
	Weight   float64 `json:"weight"`
	HasData  bool    `json:"hasData"`
}

// ComponentScore is one of the four composite components.
type ComponentScore struct {
	Label   string      `json:"label"`
	Score   float64     `json:"score"`
	Weight  float64     `json:"weight"`
	Metrics []SubMetric `json:"metrics"`
}

// Components holds all four components. Always fully populated, zero-filled
// when no underlying data exists, so downstream consumers never see a gap.
type Components struct {
	NetworkDesign        ComponentScore `json:"networkDesign"`
	EnvironmentalComfort ComponentScore `json:"environmentalComfort"`
	Safety               ComponentScore `json:"safety"`
	DensityContext       ComponentScore `json:"densityContext"`
}

// WalkabilityScoreV2 is the composite scoring result.
type WalkabilityScoreV2 struct {
	OverallScore int                `json:"overallScore"`
	Grade        Grade              `json:"grade"`
	Components   Components         `json:"components"`
	Confidence   int                `json:"confidence"`
	Legacy       WalkabilityMetrics `json:"legacy"`
}

// CompositeInput carries everything the composite aggregator consumes.
// All fields beyond Legacy are optional snapshots from collaborators.
type CompositeInput struct {
	Legacy            WalkabilityMetrics
	Graph             *models.NetworkGraph
	Crash             *models.CrashData
	BuildingDensity   Opt // 0-100, present only when explicitly supplied
	PopulationDensity Opt // 0-100, present only when explicitly supplied
	Raw               *models.RawMetricData
}

// CalculateCompositeScore runs the v2 aggregator with production weights.
func CalculateCompositeScore(in CompositeInput) WalkabilityScoreV2 {
	return CalculateCompositeScoreWeighted(in, DefaultWeights())
}

// CalculateCompositeScoreWeighted runs the v2 aggregator with an explicit
// weighting scheme.
//
// Presence note: sub-metric aggregation treats a score as present iff its
// data exists (HasData); the component and overall roll-ups instead treat
// score > 0 as present. The divergence is inherited from the reference
// numbers and is an open product question — a legitimately zero-scoring
// component currently drops out of the overall average.
func CalculateCompositeScoreWeighted(in CompositeInput, w Weights) WalkabilityScoreV2 {
	comps := Components{
		NetworkDesign:        networkDesignComponent(in.Graph, w),
		EnvironmentalComfort: comfortComponent(in, w),
		Safety:               safetyComponent(in, w),
		DensityContext:       densityComponent(in, w),
	}

	items := []weightedItem{
		{score: presentIfPositive(comps.NetworkDesign.Score), weight: comps.NetworkDesign.Weight},
		{score: presentIfPositive(comps.EnvironmentalComfort.Score), weight: comps.EnvironmentalComfort.Weight},
		{score: presentIfPositive(comps.Safety.Score), weight: comps.Safety.Weight},
		{score: presentIfPositive(comps.DensityContext.Score), weight: comps.DensityContext.Weight},
	}
	overall := int(math.Round(weightedAverage(items)))

	return WalkabilityScoreV2{
		OverallScore: overall,
		Grade:        GradeForScore(overall),
		Components:   comps,
		Confidence:   confidence(comps),
		Legacy:       in.Legacy,
	}
}

func presentIfPositive(v float64) Opt {
	if v > 0 {
		return Some(v)
	}
	return None()
}

// confidence is the share of sub-metrics carrying a positive score, across
// all four components. The dead-end sentinel of 50 counts as present even
// though it signals missing topology — preserved from the reference numbers.
func confidence(c Components) int {
	total, scored := 0, 0
	for _, comp := range []ComponentScore{c.NetworkDesign, c.EnvironmentalComfort, c.Safety, c.DensityContext} {
		for _, m := range comp.Metrics {
			total++
			if m.Score > 0 {
				scored++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(scored) / float64(total) * 100))
}

func networkDesignComponent(g *models.NetworkGraph, w Weights) ComponentScore {
	var id, bl, nd, de SubScore
	hasGraph := g != nil
	if hasGraph {
		id = ScoreIntersectionDensity(g)
		bl = ScoreBlockLength(g)
		nd = ScoreNetworkDensity(g)
		de = ScoreDeadEndRatio(g)
	}
	// Without a graph the four sub-scores stay at 0 rather than absent; the
	// component then scores 0 and falls out of the roll-up via score>0.

	metrics := []SubMetric{
		{Name: "Intersection Density", Score: id.Score, Weight: w.NetworkDesign.IntersectionDensity, HasData: hasGraph},
		{Name: "Block Length", Score: bl.Score, Weight: w.NetworkDesign.BlockLength, HasData: hasGraph},
		{Name: "Network Density", Score: nd.Score, Weight: w.NetworkDesign.NetworkDensity, HasData: hasGraph},
		{Name: "Dead-End Ratio", Score: de.Score, Weight: w.NetworkDesign.DeadEndRatio, HasData: hasGraph},
	}
	if hasGraph {
		metrics[0].RawValue = fmt.Sprintf("%.1f intersections/km²", id.Raw)
		metrics[1].RawValue = fmt.Sprintf("%.0f m avg block", bl.Raw)
		metrics[2].RawValue = fmt.Sprintf("%.1f km/km²", nd.Raw)
		metrics[3].RawValue = fmt.Sprintf("%.1f%% dead ends", de.Raw)
	}

	return ComponentScore{
		Label:   "Network Design",
		Score:   componentAverage(metrics),
		Weight:  w.Components.NetworkDesign,
		Metrics: metrics,
	}
}

func comfortComponent(in CompositeInput, w Weights) ComponentScore {
	tree := None()
	if in.Legacy.TreeCanopy > 0 {
		tree = Some(in.Legacy.TreeCanopy * 10)
	}
	thermal := None()
	if in.Legacy.ThermalComfort > 0 {
		thermal = Some(in.Legacy.ThermalComfort * 10)
	}

	metrics := []SubMetric{
		subMetric("Tree Canopy", tree, w.EnvironmentalComfort.TreeCanopy),
		subMetric("Building Density", in.BuildingDensity, w.EnvironmentalComfort.BuildingDensity),
		subMetric("Thermal Comfort", thermal, w.EnvironmentalComfort.ThermalComfort),
	}
	if in.Raw != nil && in.Raw.NDVI.Valid {
		metrics[0].RawValue = fmt.Sprintf("NDVI %.2f", in.Raw.NDVI.Float64)
	}
	if in.Raw != nil && in.Raw.HeatIslandDelta.Valid {
		metrics[2].RawValue = fmt.Sprintf("+%.1f°C heat island", in.Raw.HeatIslandDelta.Float64)
	}

	return ComponentScore{
		Label:   "Environmental Comfort",
		Score:   componentAverage(metrics),
		Weight:  w.Components.EnvironmentalComfort,
		Metrics: metrics,
	}
}

func safetyComponent(in CompositeInput, w Weights) ComponentScore {
	metrics := []SubMetric{
		subMetric("Speed Exposure", Some(in.Legacy.SpeedExposure*10), w.Safety.SpeedExposure),
		subMetric("Crossing Safety", Some(in.Legacy.CrossingSafety*10), w.Safety.CrossingSafety),
		subMetric("Night Safety", Some(in.Legacy.NightSafety*10), w.Safety.NightSafety),
		subMetric("Crash Data", ScoreCrashData(in.Crash), w.Safety.CrashData),
	}
	if in.Crash != nil {
		switch in.Crash.Type {
		case models.CrashLocal:
			metrics[3].RawValue = fmt.Sprintf("%d fatalities %d-%d", in.Crash.TotalFatalities, in.Crash.YearRange.From, in.Crash.YearRange.To)
		case models.CrashCountry:
			metrics[3].RawValue = fmt.Sprintf("%.1f deaths/100k (%s)", in.Crash.DeathRatePer100k, in.Crash.CountryName)
		}
	}

	return ComponentScore{
		Label:   "Safety",
		Score:   componentAverage(metrics),
		Weight:  w.Components.Safety,
		Metrics: metrics,
	}
}

func densityComponent(in CompositeInput, w Weights) ComponentScore {
	metrics := []SubMetric{
		subMetric("Population Density", in.PopulationDensity, w.DensityContext.PopulationDensity),
	}
	if in.Raw != nil && in.Raw.PopulationPerKm2.Valid {
		metrics[0].RawValue = fmt.Sprintf("%.0f people/km²", in.Raw.PopulationPerKm2.Float64)
	}

	return ComponentScore{
		Label:   "Density Context",
		Score:   componentAverage(metrics),
		Weight:  w.Components.DensityContext,
		Metrics: metrics,
	}
}

func subMetric(name string, s Opt, weight float64) SubMetric {
	return SubMetric{Name: name, Score: s.Value, Weight: weight, HasData: s.Present}
}

// componentAverage aggregates sub-metrics with true data presence: a missing
// measurement redistributes its weight, a genuine zero does not.
func componentAverage(metrics []SubMetric) float64 {
	items := make([]weightedItem, 0, len(metrics))
	for _, m := range metrics {
		s := None()
		if m.HasData {
			s = Some(m.Score)
		}
		items = append(items, weightedItem{score: s, weight: m.Weight})
	}
	return weightedAverage(items)
}
