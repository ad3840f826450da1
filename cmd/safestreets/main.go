package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/safestreets/safestreets/internal/analysis"
	"github.com/safestreets/safestreets/internal/api"
	"github.com/safestreets/safestreets/internal/ingest"
	"github.com/safestreets/safestreets/internal/models"
	"github.com/safestreets/safestreets/internal/narrative"
	"github.com/safestreets/safestreets/internal/score"
	"github.com/safestreets/safestreets/internal/store"
)

type cli struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,help='Load environment from a .env file'"`

	DB      string `kong:"default='data/safestreets.db',env='SAFESTREETS_DB',help='Path to the SQLite snapshot cache'"`
	Port    string `kong:"default='8080',env='PORT',help='HTTP server port'"`
	Weights string `kong:"optional,env='SAFESTREETS_WEIGHTS',help='YAML file overriding scoring weights'"`

	OverpassURL string `kong:"optional,env='OVERPASS_URL',help='Alternate Overpass API endpoint'"`
	OpenAQKey   string `kong:"optional,env='OPENAQ_API_KEY',help='OpenAQ API key'"`
	FARSAddr    string `kong:"optional,env='FARS_FTP_ADDR',help='NHTSA FARS FTP address'"`
	FARSFrom    int    `kong:"default=2018,env='FARS_YEAR_FROM',help='First FARS year to load'"`
	FARSTo      int    `kong:"default=2022,env='FARS_YEAR_TO',help='Last FARS year to load'"`
	CVEndpoint  string `kong:"optional,env='CV_ENDPOINT',help='Sidewalk segmentation sidecar URL'"`

	Once struct {
		Lat    float64 `kong:"arg,help='Latitude'"`
		Lon    float64 `kong:"arg,help='Longitude'"`
		Radius float64 `kong:"default=500,help='Analysis radius in metres'"`
	} `kong:"cmd,help='Analyze one location, print JSON, and exit'"`

	Serve struct{} `kong:"cmd,default=1,help='Run the HTTP API server'"`

	Cleanup struct {
		RetentionDays int `kong:"default=90,help='Delete snapshots older than this many days'"`
	} `kong:"cmd,help='Prune old snapshots and exit'"`
}

func main() {
	var flags cli
	kctx := kong.Parse(&flags, kong.Name("safestreets"),
		kong.Description("Street walkability scoring service"))

	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database migrated")

	weights := score.DefaultWeights()
	if flags.Weights != "" {
		weights, err = score.LoadWeights(flags.Weights)
		if err != nil {
			log.Fatalf("load weights: %v", err)
		}
		log.Printf("scoring weights loaded from %s", flags.Weights)
	}

	pipeline := analysis.NewPipeline(
		ingest.NewOverpass(flags.OverpassURL),
		ingest.NewSatellite(),
		ingest.NewAirQuality("", flags.OpenAQKey),
		ingest.NewFARS(flags.FARSAddr, models.YearRange{From: flags.FARSFrom, To: flags.FARSTo}),
		ingest.NewWHO(""),
		st,
		weights,
	)

	switch kctx.Command() {
	case "once <lat> <lon>":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		res, err := pipeline.Analyze(ctx, flags.Once.Lat, flags.Once.Lon, flags.Once.Radius)
		if err != nil {
			log.Fatalf("analyze: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatalf("encode result: %v", err)
		}

	case "cleanup":
		deleted, err := st.CleanupOldSnapshots(flags.Cleanup.RetentionDays)
		if err != nil {
			log.Fatalf("cleanup: %v", err)
		}
		log.Printf("deleted %d snapshots older than %d days", deleted, flags.Cleanup.RetentionDays)

	default:
		var narrator api.Narrator
		if gen, err := narrative.NewGenerator(); err != nil {
			log.Printf("narrative generation disabled: %v", err)
		} else {
			narrator = gen
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		server := api.NewServer(pipeline, st, narrator, flags.Port)
		if flags.CVEndpoint != "" {
			server.SetSidewalkCV(ingest.NewSidewalkCV(flags.CVEndpoint))
		}
		if err := server.Run(ctx); err != nil {
			log.Fatalf("server: %v", err)
		}
	}
}
