// Package score implements the composite walkability scoring engine: pure,
// table-driven transforms from raw open-data measurements to bounded scores.
// Every function here is total and side-effect free; none returns NaN or Inf.
package score

// Opt is an optional 0-100 score. The zero value is absent. It replaces the
// source convention of overloading a numeric 0 as both "worst score" and
// "no data", which is kept only where downstream numbers depend on it.
type Opt struct {
	Value   float64
	Present bool
}

// Some wraps a known score value.
func Some(v float64) Opt {
	return Opt{Value: v, Present: true}
}

// None is the absent score.
func None() Opt {
	return Opt{}
}

type weightedItem struct {
	score  Opt
	weight float64
}

// weightedAverage computes a weight-redistributed average: absent items drop
// out and their weight is spread proportionally over the remaining ones.
// Used identically at the sub-metric, component, and overall levels.
func weightedAverage(items []weightedItem) float64 {
	var sum, weightSum float64
	for _, it := range items {
		if !it.score.Present {
			continue
		}
		sum += it.score.Value * it.weight
		weightSum += it.weight
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}
