package ingest

import (
	"archive/zip"
	"bytes"
	"testing"
)

func buildFARSZip(t *testing.T, csvBody string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("accident.CSV")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(csvBody)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseAccidentZip(t *testing.T) {
	csvBody := "STATE,LATITUDE,LONGITUD,FATALS\n" +
		"6,34.05220,-118.24370,1\n" +
		"6,34.06000,-118.25000,2\n" +
		"6,77.7777,777.7777,1\n" + // unknown-position sentinel
		"6,not-a-number,-118.0,1\n"

	sites, err := parseAccidentZip(buildFARSZip(t, csvBody))
	if err != nil {
		t.Fatalf("parseAccidentZip: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("got %d sites, want 2", len(sites))
	}
	if sites[0].Lat != 34.0522 || sites[0].fatalities != 1 {
		t.Errorf("first site = %+v", sites[0])
	}
	if sites[1].fatalities != 2 {
		t.Errorf("second site fatalities = %d, want 2", sites[1].fatalities)
	}
}

func TestParseAccidentZip_MissingColumns(t *testing.T) {
	if _, err := parseAccidentZip(buildFARSZip(t, "STATE,COUNTY\n6,1\n")); err == nil {
		t.Error("expected error for missing coordinate columns")
	}
}

func TestParseAccidentZip_NoAccidentFile(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("person.csv")
	w.Write([]byte("x\n"))
	zw.Close()

	if _, err := parseAccidentZip(buf.Bytes()); err == nil {
		t.Error("expected error when accident.csv is absent")
	}
}

func TestInUS(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"los angeles", 34.05, -118.24, true},
		{"anchorage", 61.22, -149.90, true},
		{"honolulu", 21.31, -157.86, true},
		{"melbourne", -37.81, 144.96, false},
		{"london", 51.51, -0.13, false},
	}
	for _, tt := range tests {
		if got := InUS(tt.lat, tt.lon); got != tt.want {
			t.Errorf("InUS(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
