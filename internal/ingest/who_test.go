package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/safestreets/safestreets/internal/models"
)

func TestLookupCountry(t *testing.T) {
	got, err := LookupCountry("AU")
	if err != nil {
		t.Fatalf("LookupCountry: %v", err)
	}
	if got.Type != models.CrashCountry {
		t.Errorf("Type = %v, want country", got.Type)
	}
	if got.CountryName != "Australia" {
		t.Errorf("CountryName = %q", got.CountryName)
	}
	if got.DeathRatePer100k != 4.4 {
		t.Errorf("DeathRatePer100k = %v, want 4.4", got.DeathRatePer100k)
	}
	if got.Year != whoReportYear {
		t.Errorf("Year = %d, want %d", got.Year, whoReportYear)
	}

	if _, err := LookupCountry("zz"); err == nil {
		t.Error("expected error for unknown country")
	}
}

func TestFetchCountry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent header")
		}
		w.Write([]byte(`{"address": {"country_code": "nl", "country": "Nederland"}}`))
	}))
	defer srv.Close()

	got, err := NewWHO(srv.URL).FetchCountry(context.Background(), 52.37, 4.89)
	if err != nil {
		t.Fatalf("FetchCountry: %v", err)
	}
	if got.CountryName != "Netherlands" {
		t.Errorf("CountryName = %q, want Netherlands", got.CountryName)
	}
}

func TestFetchCountry_Ocean(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address": {}}`))
	}))
	defer srv.Close()

	if _, err := NewWHO(srv.URL).FetchCountry(context.Background(), 0, -160); err == nil {
		t.Error("expected error for point with no country")
	}
}
