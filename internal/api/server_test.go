package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/safestreets/safestreets/internal/analysis"
	"github.com/safestreets/safestreets/internal/ingest"
	"github.com/safestreets/safestreets/internal/models"
	"github.com/safestreets/safestreets/internal/score"
)

type fakeAnalyzer struct {
	res *analysis.Result
	err error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, lat, lon, radius float64) (*analysis.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.Location = models.Location{Latitude: lat, Longitude: lon, RadiusMeters: radius}
	return &res, nil
}

type fakeNarrator struct {
	text string
	err  error
}

func (f *fakeNarrator) Summarize(ctx context.Context, res *analysis.Result) (string, error) {
	return f.text, f.err
}

func testServer(analyzer Analyzer, narrator Narrator) *Server {
	return NewServer(analyzer, nil, narrator, "0")
}

func sampleResult() *analysis.Result {
	return &analysis.Result{
		Score: score.WalkabilityScoreV2{
			OverallScore: 63,
			Grade:        score.GradeB,
			Confidence:   83,
		},
	}
}

func TestHandleAnalyze(t *testing.T) {
	srv := testServer(&fakeAnalyzer{res: sampleResult()}, nil)

	body := `{"latitude": -37.8136, "longitude": 144.9631, "radiusMeters": 500}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var resp struct {
		Score struct {
			OverallScore int         `json:"overallScore"`
			Grade        score.Grade `json:"grade"`
		} `json:"score"`
		Location models.Location `json:"location"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Score.OverallScore != 63 || resp.Score.Grade != score.GradeB {
		t.Errorf("score = %+v", resp.Score)
	}
	if resp.Location.RadiusMeters != 500 {
		t.Errorf("radius = %v, want 500", resp.Location.RadiusMeters)
	}
}

func TestHandleAnalyze_DefaultRadius(t *testing.T) {
	srv := testServer(&fakeAnalyzer{res: sampleResult()}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze",
		strings.NewReader(`{"latitude": 1, "longitude": 2}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var resp struct {
		Location models.Location `json:"location"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Location.RadiusMeters != 500 {
		t.Errorf("default radius = %v, want 500", resp.Location.RadiusMeters)
	}
}

func TestHandleAnalyze_Errors(t *testing.T) {
	t.Run("GET rejected", func(t *testing.T) {
		srv := testServer(&fakeAnalyzer{res: sampleResult()}, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/analyze", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("bad JSON", func(t *testing.T) {
		srv := testServer(&fakeAnalyzer{res: sampleResult()}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("{"))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("analyzer error", func(t *testing.T) {
		srv := testServer(&fakeAnalyzer{err: fmt.Errorf("latitude 95.0000 out of range")}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/analyze",
			strings.NewReader(`{"latitude": 95, "longitude": 0}`))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})
}

func TestHandleAnalyze_Narrative(t *testing.T) {
	srv := testServer(&fakeAnalyzer{res: sampleResult()}, &fakeNarrator{text: "A walkable corner of the city."})

	req := httptest.NewRequest(http.MethodPost, "/api/analyze",
		strings.NewReader(`{"latitude": 1, "longitude": 2, "narrative": true}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var resp struct {
		Narrative string `json:"narrative"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Narrative != "A walkable corner of the city." {
		t.Errorf("narrative = %q", resp.Narrative)
	}

	// Narrator failure must not fail the analysis.
	srv = testServer(&fakeAnalyzer{res: sampleResult()}, &fakeNarrator{err: fmt.Errorf("api down")})
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/analyze",
		strings.NewReader(`{"latitude": 1, "longitude": 2, "narrative": true}`)))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 despite narrator failure", w.Code)
	}
}

func TestHandleRecalculate(t *testing.T) {
	srv := testServer(&fakeAnalyzer{res: sampleResult()}, nil)

	adjusted := 8.0
	reqBody := recalculateRequest{
		Metrics: score.WalkabilityMetrics{
			CrossingSafety: 6, SidewalkCoverage: 8.2, SpeedExposure: 7.5,
			DestinationAccess: 9.1, NightSafety: 5, Slope: 8.5,
			TreeCanopy: 4, ThermalComfort: 4.5,
		},
		FieldData: &score.FieldData{
			Entries: map[score.MetricKey]score.FieldEntry{
				score.KeyTreeCanopy: {AdjustedScore: &adjusted},
			},
		},
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/api/recalculate", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	var resp recalculateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Original.OverallScore != 6.6 {
		t.Errorf("original overall = %v, want 6.6", resp.Original.OverallScore)
	}
	if resp.Adjusted.OverallScore != 7.0 {
		t.Errorf("adjusted overall = %v, want 7.0", resp.Adjusted.OverallScore)
	}
	if resp.Adjusted.TreeCanopy != 8 {
		t.Errorf("adjusted treeCanopy = %v, want 8", resp.Adjusted.TreeCanopy)
	}
}

func TestHandleRecalculate_NoFieldDataIsIdentity(t *testing.T) {
	srv := testServer(&fakeAnalyzer{res: sampleResult()}, nil)

	body := `{"metrics": {"crossingSafety": 6, "sidewalkCoverage": 8, "speedExposure": 7, "destinationAccess": 9, "nightSafety": 5}}`
	req := httptest.NewRequest(http.MethodPost, "/api/recalculate", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var resp recalculateResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Original.OverallScore != resp.Adjusted.OverallScore {
		t.Errorf("identity violated: %v vs %v", resp.Original.OverallScore, resp.Adjusted.OverallScore)
	}
}

func TestHandleBadge(t *testing.T) {
	srv := testServer(&fakeAnalyzer{res: sampleResult()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/badge?score=63&confidence=83", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if _, err := png.Decode(w.Body); err != nil {
		t.Errorf("body is not a PNG: %v", err)
	}

	for _, bad := range []string{"/api/badge", "/api/badge?score=abc", "/api/badge?score=150"} {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, bad, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", bad, w.Code)
		}
	}
}

func TestHandleSidewalkImage(t *testing.T) {
	t.Run("unconfigured returns 503", func(t *testing.T) {
		srv := testServer(&fakeAnalyzer{res: sampleResult()}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/sidewalk-image",
			strings.NewReader(`{"imageUrl": "http://example.com/a.jpg", "imageId": "a"}`))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})

	t.Run("proxies to sidecar", func(t *testing.T) {
		sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"sidewalkPercentage": 30, "obstructions": []}`)
		}))
		defer sidecar.Close()

		srv := testServer(&fakeAnalyzer{res: sampleResult()}, nil)
		srv.SetSidewalkCV(ingest.NewSidewalkCV(sidecar.URL))

		req := httptest.NewRequest(http.MethodPost, "/api/sidewalk-image",
			strings.NewReader(`{"imageUrl": "http://example.com/a.jpg", "imageId": "a"}`))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body)
		}
		var resp models.SidewalkImageAssessment
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Quality != "good" || resp.ImageID != "a" {
			t.Errorf("assessment = %+v", resp)
		}
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		srv := testServer(&fakeAnalyzer{res: sampleResult()}, nil)
		srv.SetSidewalkCV(ingest.NewSidewalkCV("http://localhost:1"))
		req := httptest.NewRequest(http.MethodPost, "/api/sidewalk-image", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestHandleHealth(t *testing.T) {
	srv := testServer(&fakeAnalyzer{res: sampleResult()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp healthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
}
