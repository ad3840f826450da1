package score

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ComponentWeights are the nominal weights of the four composite components.
// They must sum to 1.0.
type ComponentWeights struct {
	NetworkDesign        float64 `yaml:"network_design"`
	EnvironmentalComfort float64 `yaml:"environmental_comfort"`
	Safety               float64 `yaml:"safety"`
	DensityContext       float64 `yaml:"density_context"`
}

// NetworkDesignWeights weight the four network sub-metrics; sum 1.0.
type NetworkDesignWeights struct {
	IntersectionDensity float64 `yaml:"intersection_density"`
	BlockLength         float64 `yaml:"block_length"`
	NetworkDensity      float64 `yaml:"network_density"`
	DeadEndRatio        float64 `yaml:"dead_end_ratio"`
}

// ComfortWeights weight the environmental comfort sub-metrics; sum 1.0.
type ComfortWeights struct {
	TreeCanopy      float64 `yaml:"tree_canopy"`
	BuildingDensity float64 `yaml:"building_density"`
	ThermalComfort  float64 `yaml:"thermal_comfort"`
}

// SafetyWeights weight the safety sub-metrics; sum 1.0.
type SafetyWeights struct {
	SpeedExposure  float64 `yaml:"speed_exposure"`
	CrossingSafety float64 `yaml:"crossing_safety"`
	NightSafety    float64 `yaml:"night_safety"`
	CrashData      float64 `yaml:"crash_data"`
}

// DensityWeights weight the density context sub-metrics; sum 1.0.
type DensityWeights struct {
	PopulationDensity float64 `yaml:"population_density"`
}

// Weights is the full composite weighting scheme. Weights are nominal: when
// a sub-metric has no data its weight is redistributed at aggregation time,
// never edited here.
type Weights struct {
	Components           ComponentWeights     `yaml:"components"`
	NetworkDesign        NetworkDesignWeights `yaml:"network_design"`
	EnvironmentalComfort ComfortWeights       `yaml:"environmental_comfort"`
	Safety               SafetyWeights        `yaml:"safety"`
	DensityContext       DensityWeights       `yaml:"density_context"`
}

// DefaultWeights returns the hand-tuned production weighting scheme.
func DefaultWeights() Weights {
	return Weights{
		Components: ComponentWeights{
			NetworkDesign:        0.35,
			EnvironmentalComfort: 0.25,
			Safety:               0.25,
			DensityContext:       0.15,
		},
		NetworkDesign: NetworkDesignWeights{
			IntersectionDensity: 0.30,
			BlockLength:         0.30,
			NetworkDensity:      0.20,
			DeadEndRatio:        0.20,
		},
		EnvironmentalComfort: ComfortWeights{
			TreeCanopy:      0.50,
			BuildingDensity: 0.30,
			ThermalComfort:  0.20,
		},
		Safety: SafetyWeights{
			SpeedExposure:  0.25,
			CrossingSafety: 0.25,
			NightSafety:    0.25,
			CrashData:      0.25,
		},
		DensityContext: DensityWeights{
			PopulationDensity: 1.00,
		},
	}
}

const weightSumTolerance = 1e-9

// Validate checks that every weight level sums to 1.0.
func (w Weights) Validate() error {
	levels := []struct {
		name string
		sum  float64
	}{
		{"components", w.Components.NetworkDesign + w.Components.EnvironmentalComfort + w.Components.Safety + w.Components.DensityContext},
		{"network_design", w.NetworkDesign.IntersectionDensity + w.NetworkDesign.BlockLength + w.NetworkDesign.NetworkDensity + w.NetworkDesign.DeadEndRatio},
		{"environmental_comfort", w.EnvironmentalComfort.TreeCanopy + w.EnvironmentalComfort.BuildingDensity + w.EnvironmentalComfort.ThermalComfort},
		{"safety", w.Safety.SpeedExposure + w.Safety.CrossingSafety + w.Safety.NightSafety + w.Safety.CrashData},
		{"density_context", w.DensityContext.PopulationDensity},
	}
	for _, l := range levels {
		if math.Abs(l.sum-1.0) > weightSumTolerance {
			return fmt.Errorf("%s weights sum to %v, want 1.0", l.name, l.sum)
		}
	}
	return nil
}

// LoadWeights reads a YAML weight override file. Missing file fields keep
// their defaults; the merged result must still validate.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	data, err := os.ReadFile(path)
	if err != nil {
		return w, fmt.Errorf("read weights: %w", err)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return w, fmt.Errorf("parse weights: %w", err)
	}
	if err := w.Validate(); err != nil {
		return w, fmt.Errorf("invalid weights in %s: %w", path, err)
	}
	return w, nil
}
