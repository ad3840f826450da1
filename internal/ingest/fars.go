package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/safestreets/safestreets/internal/metrics"
	"github.com/safestreets/safestreets/internal/models"
)

const (
	defaultFARSAddr = "ftp.nhtsa.dot.gov:21"

	// FARS coordinates use these sentinels for unknown positions.
	farsUnknownLat = 77.7777
	farsUnknownLon = 777.7777
)

// FARS pulls fatal-crash records from the NHTSA FARS bulk FTP archive and
// reduces them to a local CrashData for a point. FARS only covers the US;
// points elsewhere fall back to the WHO country table.
type FARS struct {
	addr  string
	years models.YearRange
}

func NewFARS(addr string, years models.YearRange) *FARS {
	if addr == "" {
		addr = defaultFARSAddr
	}
	return &FARS{addr: addr, years: years}
}

// InUS reports whether the point is inside a bounding box of the US
// including Alaska and Hawaii. Coarse on purpose: a false positive just
// means an empty FARS result and a WHO fallback.
func InUS(lat, lon float64) bool {
	return lat >= 18 && lat <= 72 && lon >= -180 && lon <= -66
}

// FetchLocal downloads the accident file for each configured year, filters
// rows within radius metres of the point, and aggregates them.
func (f *FARS) FetchLocal(ctx context.Context, lat, lon, radiusM float64) (*models.CrashData, error) {
	if !InUS(lat, lon) {
		return nil, fmt.Errorf("point outside FARS coverage")
	}

	start := time.Now()
	conn, err := ftp.Dial(f.addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		metrics.UpstreamCallsTotal.WithLabelValues("fars", "error").Inc()
		return nil, fmt.Errorf("dial fars: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		metrics.UpstreamCallsTotal.WithLabelValues("fars", "error").Inc()
		return nil, fmt.Errorf("fars login: %w", err)
	}

	data := &models.CrashData{
		Type:         models.CrashLocal,
		YearRange:    f.years,
		RadiusMeters: radiusM,
	}

	for year := f.years.From; year <= f.years.To; year++ {
		sites, err := f.fetchYear(conn, year)
		if err != nil {
			// Recent years lag publication by a year or two; skip quietly.
			log.Printf("fars: year %d unavailable: %v", year, err)
			continue
		}
		yc := models.YearCount{Year: year}
		for _, s := range sites {
			d := haversineMeters(lat, lon, s.Lat, s.Lon)
			if d > radiusM {
				continue
			}
			yc.Crashes++
			yc.Fatalities += s.fatalities
			if data.NearestCrash == nil || d < data.NearestCrash.DistanceMeters {
				data.NearestCrash = &models.CrashSite{
					Lat: s.Lat, Lon: s.Lon, DistanceMeters: d, Year: year,
				}
			}
		}
		data.TotalCrashes += yc.Crashes
		data.TotalFatalities += yc.Fatalities
		data.YearlyBreakdown = append(data.YearlyBreakdown, yc)
	}

	metrics.UpstreamLatency.WithLabelValues("fars").Observe(time.Since(start).Seconds())
	metrics.UpstreamCallsTotal.WithLabelValues("fars", "ok").Inc()

	if len(data.YearlyBreakdown) == 0 {
		return nil, fmt.Errorf("no FARS years available in %d-%d", f.years.From, f.years.To)
	}
	return data, nil
}

type crashSite struct {
	Lat, Lon   float64
	fatalities int
}

func (f *FARS) fetchYear(conn *ftp.ServerConn, year int) ([]crashSite, error) {
	path := fmt.Sprintf("fars/%d/National/FARS%dNationalCSV.zip", year, year)
	resp, err := conn.Retr(path)
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", path, err)
	}
	raw, err := io.ReadAll(resp)
	resp.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parseAccidentZip(raw)
}

// parseAccidentZip extracts accident.csv from a FARS national zip and keeps
// rows with usable coordinates.
func parseAccidentZip(raw []byte) ([]crashSite, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var file *zip.File
	for _, zf := range zr.File {
		if strings.EqualFold(zf.Name, "accident.csv") {
			file = zf
			break
		}
	}
	if file == nil {
		return nil, fmt.Errorf("accident.csv not in archive")
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open accident.csv: %w", err)
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	latIdx, lonIdx, fatIdx := -1, -1, -1
	for i, name := range header {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "LATITUDE":
			latIdx = i
		case "LONGITUD", "LONGITUDE":
			lonIdx = i
		case "FATALS":
			fatIdx = i
		}
	}
	if latIdx < 0 || lonIdx < 0 || fatIdx < 0 {
		return nil, fmt.Errorf("accident.csv missing coordinate or fatality columns")
	}

	var sites []crashSite
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) <= latIdx || len(row) <= lonIdx || len(row) <= fatIdx {
			continue
		}
		lat, err1 := strconv.ParseFloat(row[latIdx], 64)
		lon, err2 := strconv.ParseFloat(row[lonIdx], 64)
		fat, err3 := strconv.Atoi(row[fatIdx])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		if lat == farsUnknownLat || lon == farsUnknownLon {
			continue
		}
		sites = append(sites, crashSite{Lat: lat, Lon: lon, fatalities: fat})
	}
	return sites, nil
}
