package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/safestreets/safestreets/internal/analysis"
	"github.com/safestreets/safestreets/internal/badge"
	"github.com/safestreets/safestreets/internal/score"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type analyzeRequest struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radiusMeters"`
	Narrative    bool    `json:"narrative,omitempty"`
}

type analyzeResponse struct {
	*analysis.Result
	Narrative string `json:"narrative,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RadiusMeters == 0 {
		req.RadiusMeters = 500
	}

	res, err := s.analyzer.Analyze(r.Context(), req.Latitude, req.Longitude, req.RadiusMeters)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := analyzeResponse{Result: res}
	if req.Narrative && s.narrator != nil {
		text, err := s.narrator.Summarize(r.Context(), res)
		if err != nil {
			log.Printf("api: narrative: %v", err)
		} else {
			resp.Narrative = text
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type recalculateRequest struct {
	Metrics   score.WalkabilityMetrics `json:"metrics"`
	FieldData *score.FieldData         `json:"fieldData"`
}

type recalculateResponse struct {
	Original score.WalkabilityMetrics `json:"original"`
	Adjusted score.WalkabilityMetrics `json:"adjusted"`
}

// handleRecalculate applies field-verification adjustments to a previously
// computed result. Stateless: the caller supplies both the original metrics
// and the adjustments, and nothing is stored.
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req recalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	original := score.CalculateMetrics(req.Metrics)
	fd := score.NewFieldData()
	if req.FieldData != nil {
		fd = *req.FieldData
	}

	writeJSON(w, http.StatusOK, recalculateResponse{
		Original: original,
		Adjusted: score.Recalculate(original, fd),
	})
}

type sidewalkImageRequest struct {
	ImageURL string `json:"imageUrl"`
	ImageID  string `json:"imageId"`
}

// handleSidewalkImage forwards a street-level photo to the segmentation
// sidecar and returns the banded quality assessment.
func (s *Server) handleSidewalkImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	if s.cv == nil || !s.cv.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "sidewalk image analysis not configured")
		return
	}

	var req sidewalkImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ImageURL == "" || req.ImageID == "" {
		writeError(w, http.StatusBadRequest, "imageUrl and imageId required")
		return
	}

	assessment, err := s.cv.AnalyzeImage(r.Context(), req.ImageURL, req.ImageID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	overall, err := strconv.Atoi(q.Get("score"))
	if err != nil || overall < 0 || overall > 100 {
		writeError(w, http.StatusBadRequest, "score must be 0-100")
		return
	}
	confidence, _ := strconv.Atoi(q.Get("confidence"))

	data, err := badge.Render(badge.Data{
		OverallScore: overall,
		Grade:        score.GradeForScore(overall),
		Confidence:   confidence,
		Name:         q.Get("name"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

type healthStatus struct {
	Status        string         `json:"status"`
	SnapshotCount int            `json:"snapshotCount"`
	BySource      map[string]int `json:"bySource,omitempty"`
	NewestFetch   *time.Time     `json:"newestFetch,omitempty"`
	Error         string         `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := healthStatus{Status: "ok"}

	if s.store != nil {
		stats, err := s.store.GetSnapshotStats()
		if err != nil {
			health.Status = "error"
			health.Error = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, health)
			return
		}
		health.SnapshotCount = stats.TotalCount
		health.BySource = stats.CountBySource
		if !stats.NewestFetchedAt.IsZero() {
			t := stats.NewestFetchedAt
			health.NewestFetch = &t
		}
	}

	writeJSON(w, http.StatusOK, health)
}
