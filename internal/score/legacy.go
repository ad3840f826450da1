package score

// MetricKey identifies one of the eight legacy sub-metrics. The set is
// closed: adding a ninth metric means extending every exhaustive switch
// below, which the compiler and tests will surface.
type MetricKey string

const (
	KeyCrossingSafety    MetricKey = "crossingSafety"
	KeySidewalkCoverage  MetricKey = "sidewalkCoverage"
	KeySpeedExposure     MetricKey = "speedExposure"
	KeyDestinationAccess MetricKey = "destinationAccess"
	KeyNightSafety       MetricKey = "nightSafety"
	KeySlope             MetricKey = "slope"
	KeyTreeCanopy        MetricKey = "treeCanopy"
	KeyThermalComfort    MetricKey = "thermalComfort"
)

// MetricKeys lists all legacy metric keys in display order.
var MetricKeys = []MetricKey{
	KeyCrossingSafety,
	KeySidewalkCoverage,
	KeySpeedExposure,
	KeyDestinationAccess,
	KeyNightSafety,
	KeySlope,
	KeyTreeCanopy,
	KeyThermalComfort,
}

// Valid reports whether k is one of the eight known metric keys.
func (k MetricKey) Valid() bool {
	switch k {
	case KeyCrossingSafety, KeySidewalkCoverage, KeySpeedExposure,
		KeyDestinationAccess, KeyNightSafety, KeySlope, KeyTreeCanopy,
		KeyThermalComfort:
		return true
	}
	return false
}

// Label is the 5-level walkability band.
type Label string

const (
	LabelExcellent Label = "Excellent"
	LabelGood      Label = "Good"
	LabelFair      Label = "Fair"
	LabelPoor      Label = "Poor"
	LabelCritical  Label = "Critical"
)

// WalkabilityMetrics is the legacy 8-metric result. Each sub-score is 0-10.
// Immutable once produced; field verification creates a new value rather
// than editing this one.
type WalkabilityMetrics struct {
	CrossingSafety    float64 `json:"crossingSafety"`
	SidewalkCoverage  float64 `json:"sidewalkCoverage"`
	SpeedExposure     float64 `json:"speedExposure"`
	DestinationAccess float64 `json:"destinationAccess"`
	NightSafety       float64 `json:"nightSafety"`
	Slope             float64 `json:"slope"`
	TreeCanopy        float64 `json:"treeCanopy"`
	ThermalComfort    float64 `json:"thermalComfort"`
	OverallScore      float64 `json:"overallScore"`
	Label             Label   `json:"label"`
}

// Get returns the sub-score for a metric key.
func (m WalkabilityMetrics) Get(k MetricKey) float64 {
	switch k {
	case KeyCrossingSafety:
		return m.CrossingSafety
	case KeySidewalkCoverage:
		return m.SidewalkCoverage
	case KeySpeedExposure:
		return m.SpeedExposure
	case KeyDestinationAccess:
		return m.DestinationAccess
	case KeyNightSafety:
		return m.NightSafety
	case KeySlope:
		return m.Slope
	case KeyTreeCanopy:
		return m.TreeCanopy
	case KeyThermalComfort:
		return m.ThermalComfort
	}
	return 0
}

func (m *WalkabilityMetrics) set(k MetricKey, v float64) {
	switch k {
	case KeyCrossingSafety:
		m.CrossingSafety = v
	case KeySidewalkCoverage:
		m.SidewalkCoverage = v
	case KeySpeedExposure:
		m.SpeedExposure = v
	case KeyDestinationAccess:
		m.DestinationAccess = v
	case KeyNightSafety:
		m.NightSafety = v
	case KeySlope:
		m.Slope = v
	case KeyTreeCanopy:
		m.TreeCanopy = v
	case KeyThermalComfort:
		m.ThermalComfort = v
	}
}

// LabelForScore bands an overall 0-10 score into the 5-level label.
func LabelForScore(overall float64) Label {
	switch {
	case overall >= 8:
		return LabelExcellent
	case overall >= 6:
		return LabelGood
	case overall >= 4:
		return LabelFair
	case overall >= 2:
		return LabelPoor
	default:
		return LabelCritical
	}
}

// CalculateMetrics fills OverallScore and Label from the eight sub-scores.
//
// With satellite data (at least two of slope, treeCanopy, thermalComfort
// above zero) the overall is the full weighted sum. Without it the five
// OSM-derived scores are averaged unweighted — the original per-metric
// weights are discarded on that branch. The asymmetry is preserved from the
// reference behavior; downstream consumers depend on today's exact numbers.
func CalculateMetrics(m WalkabilityMetrics) WalkabilityMetrics {
	safetyScore := m.CrossingSafety*0.15 + m.SidewalkCoverage*0.15 +
		m.SpeedExposure*0.15 + m.NightSafety*0.10 + m.DestinationAccess*0.10

	if hasSatelliteData(m) {
		m.OverallScore = round10(safetyScore + m.Slope*0.10 + m.TreeCanopy*0.10 + m.ThermalComfort*0.15)
	} else {
		m.OverallScore = round10((m.CrossingSafety + m.SidewalkCoverage +
			m.SpeedExposure + m.NightSafety + m.DestinationAccess) / 5)
	}
	m.Label = LabelForScore(m.OverallScore)
	return m
}

func hasSatelliteData(m WalkabilityMetrics) bool {
	n := 0
	if m.Slope > 0 {
		n++
	}
	if m.TreeCanopy > 0 {
		n++
	}
	if m.ThermalComfort > 0 {
		n++
	}
	return n >= 2
}
