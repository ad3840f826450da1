package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/safestreets/safestreets/internal/analysis"
	"github.com/safestreets/safestreets/internal/ingest"
	"github.com/safestreets/safestreets/internal/store"
)

// Analyzer runs one full walkability analysis.
type Analyzer interface {
	Analyze(ctx context.Context, lat, lon, radius float64) (*analysis.Result, error)
}

// Narrator writes the optional plain-language summary.
type Narrator interface {
	Summarize(ctx context.Context, res *analysis.Result) (string, error)
}

type Server struct {
	analyzer Analyzer
	store    *store.Store
	narrator Narrator
	cv       *ingest.SidewalkCV
	port     string
}

func NewServer(analyzer Analyzer, st *store.Store, narrator Narrator, port string) *Server {
	return &Server{
		analyzer: analyzer,
		store:    st,
		narrator: narrator,
		port:     port,
	}
}

// SetSidewalkCV enables the sidewalk image assessment endpoint.
func (s *Server) SetSidewalkCV(cv *ingest.SidewalkCV) {
	s.cv = cv
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/recalculate", s.handleRecalculate)
	mux.HandleFunc("/api/sidewalk-image", s.handleSidewalkImage)
	mux.HandleFunc("/api/badge", s.handleBadge)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
