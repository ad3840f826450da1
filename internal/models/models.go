package models

import (
	"database/sql"
	"time"
)

// Location identifies the point being analyzed.
type Location struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radiusMeters"`
	Name         string  `json:"name,omitempty"`
}

// Node is a street-network node identity with its position.
type Node struct {
	ID  int64   `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NetworkGraph is the street topology summary built from OSM data.
// Built once per analysis and consumed read-only by the scoring engine.
type NetworkGraph struct {
	Intersections       []Node  `json:"intersections"`
	DeadEnds            []Node  `json:"deadEnds"`
	AreaKm2             float64 `json:"areaKm2"`
	TotalStreetLengthKm float64 `json:"totalStreetLengthKm"`
	AverageBlockLengthM float64 `json:"averageBlockLengthM"`
}

// TopologyCounts are the raw OSM element counts within the analysis radius.
type TopologyCounts struct {
	Crossings    int `json:"crossings"`
	Sidewalks    int `json:"sidewalks"`
	Streets      int `json:"streets"`
	LocalStreets int `json:"localStreets"` // residential, living, pedestrian
	POIs         int `json:"pois"`
	StreetLights int `json:"streetLights"`
	Buildings    int `json:"buildings"`
}

// SatelliteData holds the per-location scalars reduced from satellite sources.
// Each field is already a single number by the time it reaches the engine.
type SatelliteData struct {
	TreeCanopyNDVI  sql.NullFloat64 `json:"treeCanopyNdvi"`  // NDVI, -1..1
	SlopeDegrees    sql.NullFloat64 `json:"slopeDegrees"`    // SRTM-derived
	SummerTempC     sql.NullFloat64 `json:"summerTempC"`     // NASA POWER
	HeatIslandDelta sql.NullFloat64 `json:"heatIslandDelta"` // SWIR-derived °C
}

// CrashType tags the two crash-data shapes.
type CrashType string

const (
	CrashLocal   CrashType = "local"
	CrashCountry CrashType = "country"
)

// YearRange is an inclusive span of calendar years.
type YearRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// YearCount is one year's crash/fatality tally.
type YearCount struct {
	Year       int `json:"year"`
	Crashes    int `json:"crashes"`
	Fatalities int `json:"fatalities"`
}

// CrashSite is the nearest recorded crash to the analysis point.
type CrashSite struct {
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	DistanceMeters float64 `json:"distanceMeters"`
	Year           int     `json:"year"`
}

// CrashData is an immutable snapshot from either the FARS local lookup
// (Type == CrashLocal) or the static WHO country table (Type == CrashCountry).
// The engine never mutates it.
type CrashData struct {
	Type CrashType `json:"type"`

	// Local (FARS) fields.
	TotalCrashes    int         `json:"totalCrashes,omitempty"`
	TotalFatalities int         `json:"totalFatalities,omitempty"`
	YearRange       YearRange   `json:"yearRange,omitempty"`
	YearlyBreakdown []YearCount `json:"yearlyBreakdown,omitempty"`
	NearestCrash    *CrashSite  `json:"nearestCrash,omitempty"`
	RadiusMeters    float64     `json:"radiusMeters,omitempty"`

	// Country (WHO) fields.
	DeathRatePer100k float64 `json:"deathRatePer100k,omitempty"`
	TotalDeaths      int     `json:"totalDeaths,omitempty"`
	CountryName      string  `json:"countryName,omitempty"`
	Year             int     `json:"year,omitempty"`
}

// RawMetricData carries raw measurements for display strings only.
// The scoring math never reads it; every field is optional.
type RawMetricData struct {
	PM25             sql.NullFloat64 `json:"pm25"`
	NDVI             sql.NullFloat64 `json:"ndvi"`
	SlopeDegrees     sql.NullFloat64 `json:"slopeDegrees"`
	SummerTempC      sql.NullFloat64 `json:"summerTempC"`
	HeatIslandDelta  sql.NullFloat64 `json:"heatIslandDelta"`
	BuildingCount    sql.NullInt64   `json:"buildingCount"`
	PopulationPerKm2 sql.NullFloat64 `json:"populationPerKm2"`
}

// Snapshot is a cached raw upstream payload. Scores are never cached; only
// the collaborator responses that feed them.
type Snapshot struct {
	ID        int64
	Source    string // "overpass", "satellite", "airquality", "fars"
	Latitude  float64
	Longitude float64
	Radius    float64
	Payload   string
	FetchedAt time.Time
}

// SidewalkImageAssessment is the deterministic banding of a CV sidecar
// segmentation result. The segmentation itself is produced externally.
type SidewalkImageAssessment struct {
	ImageID          string   `json:"imageId"`
	SidewalkDetected bool     `json:"sidewalkDetected"`
	Confidence       string   `json:"confidence"` // "high", "medium", "low"
	Quality          string   `json:"quality"`    // "good", "fair", "poor", "none"
	Issues           []string `json:"issues"`
	Notes            string   `json:"notes"`
}
