package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/safestreets/safestreets/internal/ingest"
	"github.com/safestreets/safestreets/internal/metrics"
	"github.com/safestreets/safestreets/internal/models"
	"github.com/safestreets/safestreets/internal/score"
	"github.com/safestreets/safestreets/internal/store"
)

// Snapshot cache TTLs per source. Street topology and crash history move
// slowly; air quality does not.
const (
	topologyTTL  = 7 * 24 * time.Hour
	satelliteTTL = 30 * 24 * time.Hour
	airTTL       = time.Hour
	crashTTL     = 30 * 24 * time.Hour
)

type topologyFetcher interface {
	FetchTopology(ctx context.Context, lat, lon, radius float64) (*models.TopologyCounts, *models.NetworkGraph, string, error)
}

type satelliteFetcher interface {
	Fetch(ctx context.Context, lat, lon float64) (*models.SatelliteData, error)
}

type airFetcher interface {
	FetchPM25(ctx context.Context, lat, lon float64) (float64, string, error)
}

type localCrashFetcher interface {
	FetchLocal(ctx context.Context, lat, lon, radiusM float64) (*models.CrashData, error)
}

type countryCrashFetcher interface {
	FetchCountry(ctx context.Context, lat, lon float64) (*models.CrashData, error)
}

// Pipeline runs one full analysis: fetch collaborator data, derive the
// legacy metrics, and run both aggregators. Nothing computed here is
// persisted; only the fetched snapshots go through the cache.
type Pipeline struct {
	topology topologyFetcher
	sat      satelliteFetcher
	air      airFetcher
	fars     localCrashFetcher
	who      countryCrashFetcher
	store    *store.Store
	weights  score.Weights
}

func NewPipeline(overpass *ingest.Overpass, sat *ingest.Satellite, air *ingest.AirQuality,
	fars *ingest.FARS, who *ingest.WHO, st *store.Store, w score.Weights) *Pipeline {
	return &Pipeline{
		topology: overpass,
		sat:      sat,
		air:      air,
		fars:     fars,
		who:      who,
		store:    st,
		weights:  w,
	}
}

// AirQuality is the standalone PM2.5 reading and its 0-10 band. It informs
// the report but feeds neither aggregator.
type AirQuality struct {
	Score float64 `json:"score"`
	PM25  float64 `json:"pm25"`
}

// Result is one complete analysis response.
type Result struct {
	Location    models.Location          `json:"location"`
	Score       score.WalkabilityScoreV2 `json:"score"`
	AirQuality  *AirQuality              `json:"airQuality,omitempty"`
	Topology    *models.TopologyCounts   `json:"topology,omitempty"`
	Flags       []string                 `json:"flags,omitempty"`
	ElapsedMs   int64                    `json:"elapsedMs"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

// Analyze scores one location. Collaborator failures degrade to missing
// data; only an invalid request fails the call outright.
func (p *Pipeline) Analyze(ctx context.Context, lat, lon, radius float64) (*Result, error) {
	if err := ingest.ValidateLocation(lat, lon, radius); err != nil {
		return nil, err
	}
	start := time.Now()

	var (
		wg     sync.WaitGroup
		counts *models.TopologyCounts
		graph  *models.NetworkGraph
		sat    *models.SatelliteData
		pm25   *float64
		crash  *models.CrashData
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		counts, graph = p.fetchTopology(ctx, lat, lon, radius)
	}()
	go func() {
		defer wg.Done()
		sat = p.fetchSatellite(ctx, lat, lon, radius)
	}()
	go func() {
		defer wg.Done()
		pm25 = p.fetchPM25(ctx, lat, lon, radius)
	}()
	go func() {
		defer wg.Done()
		crash = p.fetchCrash(ctx, lat, lon, radius)
	}()
	wg.Wait()

	legacy := score.CalculateMetrics(DeriveLegacyMetrics(counts, graph, sat))

	raw := buildRawMetricData(counts, graph, sat, pm25)
	composite := score.CalculateCompositeScoreWeighted(score.CompositeInput{
		Legacy:          legacy,
		Graph:           graph,
		Crash:           crash,
		BuildingDensity: DeriveBuildingDensity(counts, graph),
		Raw:             raw,
	}, p.weights)

	result := &Result{
		Location:    models.Location{Latitude: lat, Longitude: lon, RadiusMeters: radius},
		Score:       composite,
		Topology:    counts,
		Flags:       ingest.SanityFlags(counts, graph, sat),
		ElapsedMs:   time.Since(start).Milliseconds(),
		GeneratedAt: time.Now().UTC(),
	}
	if pm25 != nil {
		result.AirQuality = &AirQuality{Score: score.ScoreAirQuality(*pm25), PM25: *pm25}
	}

	metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	if p.store != nil {
		if err := p.store.LogAnalysis(lat, lon, radius, time.Since(start), "ok"); err != nil {
			log.Printf("analysis: log request: %v", err)
		}
	}
	return result, nil
}

// DeriveBuildingDensity scores built-environment density from the building
// count. 1500 buildings per km2 is a dense urban core.
func DeriveBuildingDensity(counts *models.TopologyCounts, graph *models.NetworkGraph) score.Opt {
	if counts == nil || graph == nil || graph.AreaKm2 <= 0 || counts.Buildings == 0 {
		return score.None()
	}
	perKm2 := float64(counts.Buildings) / graph.AreaKm2
	v := perKm2 / 1500 * 100
	if v > 100 {
		v = 100
	}
	return score.Some(v)
}

func (p *Pipeline) fetchTopology(ctx context.Context, lat, lon, radius float64) (*models.TopologyCounts, *models.NetworkGraph) {
	if snap := p.getSnapshot("overpass", lat, lon, radius, topologyTTL); snap != nil {
		counts, graph, err := ingest.ReduceTopology([]byte(snap.Payload), radius)
		if err == nil {
			return counts, graph
		}
		log.Printf("analysis: re-reduce cached topology: %v", err)
	}

	counts, graph, payload, err := p.topology.FetchTopology(ctx, lat, lon, radius)
	if err != nil {
		log.Printf("analysis: topology unavailable: %v", err)
		return nil, nil
	}
	p.putSnapshot("overpass", lat, lon, radius, []byte(payload))
	return counts, graph
}

func (p *Pipeline) fetchSatellite(ctx context.Context, lat, lon, radius float64) *models.SatelliteData {
	if snap := p.getSnapshot("satellite", lat, lon, radius, satelliteTTL); snap != nil {
		var data models.SatelliteData
		if err := json.Unmarshal([]byte(snap.Payload), &data); err == nil {
			return &data
		}
	}

	data, err := p.sat.Fetch(ctx, lat, lon)
	if err != nil {
		log.Printf("analysis: satellite unavailable: %v", err)
		return nil
	}
	if payload, err := json.Marshal(data); err == nil {
		p.putSnapshot("satellite", lat, lon, radius, payload)
	}
	return data
}

func (p *Pipeline) fetchPM25(ctx context.Context, lat, lon, radius float64) *float64 {
	type cached struct {
		PM25 float64 `json:"pm25"`
	}
	if snap := p.getSnapshot("airquality", lat, lon, radius, airTTL); snap != nil {
		var c cached
		if err := json.Unmarshal([]byte(snap.Payload), &c); err == nil {
			return &c.PM25
		}
	}

	v, _, err := p.air.FetchPM25(ctx, lat, lon)
	if err != nil {
		log.Printf("analysis: air quality unavailable: %v", err)
		return nil
	}
	if payload, err := json.Marshal(cached{PM25: v}); err == nil {
		p.putSnapshot("airquality", lat, lon, radius, payload)
	}
	return &v
}

// fetchCrash prefers the local FARS history inside the US and falls back to
// the WHO country table everywhere else.
func (p *Pipeline) fetchCrash(ctx context.Context, lat, lon, radius float64) *models.CrashData {
	if snap := p.getSnapshot("crash", lat, lon, radius, crashTTL); snap != nil {
		var data models.CrashData
		if err := json.Unmarshal([]byte(snap.Payload), &data); err == nil {
			return &data
		}
	}

	var (
		data *models.CrashData
		err  error
	)
	if ingest.InUS(lat, lon) {
		data, err = p.fars.FetchLocal(ctx, lat, lon, radius)
		if err != nil {
			log.Printf("analysis: fars unavailable, falling back to country data: %v", err)
		}
	}
	if data == nil {
		data, err = p.who.FetchCountry(ctx, lat, lon)
		if err != nil {
			log.Printf("analysis: crash data unavailable: %v", err)
			return nil
		}
	}
	if payload, err := json.Marshal(data); err == nil {
		p.putSnapshot("crash", lat, lon, radius, payload)
	}
	return data
}

func (p *Pipeline) getSnapshot(source string, lat, lon, radius float64, ttl time.Duration) *models.Snapshot {
	if p.store == nil {
		return nil
	}
	snap, err := p.store.GetSnapshot(source, lat, lon, radius, ttl)
	if err != nil {
		log.Printf("analysis: snapshot lookup %s: %v", source, err)
		return nil
	}
	return snap
}

func (p *Pipeline) putSnapshot(source string, lat, lon, radius float64, payload []byte) {
	if p.store == nil {
		return
	}
	if err := p.store.PutSnapshot(source, lat, lon, radius, payload); err != nil {
		log.Printf("analysis: snapshot store %s: %v", source, err)
	}
}

func buildRawMetricData(counts *models.TopologyCounts, graph *models.NetworkGraph,
	sat *models.SatelliteData, pm25 *float64) *models.RawMetricData {
	raw := &models.RawMetricData{}
	if pm25 != nil {
		raw.PM25 = sql.NullFloat64{Float64: *pm25, Valid: true}
	}
	if sat != nil {
		raw.NDVI = sat.TreeCanopyNDVI
		raw.SlopeDegrees = sat.SlopeDegrees
		raw.SummerTempC = sat.SummerTempC
		raw.HeatIslandDelta = sat.HeatIslandDelta
	}
	if counts != nil {
		raw.BuildingCount = sql.NullInt64{Int64: int64(counts.Buildings), Valid: true}
	}
	return raw
}
