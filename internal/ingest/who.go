package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/safestreets/safestreets/internal/httputil"
	"github.com/safestreets/safestreets/internal/models"
)

const defaultNominatimEndpoint = "https://nominatim.openstreetmap.org"

// whoEntry is one row of the WHO Global Health Observatory road-traffic
// mortality table (RS_198, 2021 estimates).
type whoEntry struct {
	name        string
	ratePer100k float64
	totalDeaths int
}

// whoDeathRates maps ISO 3166-1 alpha-2 codes to road-traffic death rates.
// Compiled from the WHO Global Status Report on Road Safety 2023.
var whoDeathRates = map[string]whoEntry{
	"us": {"United States", 12.8, 42939},
	"ca": {"Canada", 4.6, 1768},
	"mx": {"Mexico", 13.1, 16538},
	"br": {"Brazil", 16.0, 34158},
	"ar": {"Argentina", 14.0, 6402},
	"cl": {"Chile", 8.7, 1682},
	"co": {"Colombia", 15.5, 7894},
	"gb": {"United Kingdom", 2.9, 1973},
	"ie": {"Ireland", 2.9, 147},
	"fr": {"France", 5.0, 3398},
	"de": {"Germany", 3.3, 2788},
	"nl": {"Netherlands", 3.8, 663},
	"be": {"Belgium", 4.5, 522},
	"es": {"Spain", 3.7, 1755},
	"pt": {"Portugal", 6.3, 648},
	"it": {"Italy", 5.2, 3063},
	"ch": {"Switzerland", 2.3, 200},
	"at": {"Austria", 4.1, 369},
	"se": {"Sweden", 2.2, 229},
	"no": {"Norway", 1.5, 82},
	"dk": {"Denmark", 2.7, 158},
	"fi": {"Finland", 3.6, 199},
	"pl": {"Poland", 5.9, 2245},
	"cz": {"Czechia", 5.2, 553},
	"gr": {"Greece", 6.1, 636},
	"tr": {"Turkey", 6.8, 5741},
	"ru": {"Russia", 10.4, 15158},
	"ua": {"Ukraine", 9.8, 4286},
	"jp": {"Japan", 2.6, 3205},
	"kr": {"South Korea", 5.3, 2735},
	"cn": {"China", 17.4, 248000},
	"in": {"India", 15.4, 215000},
	"id": {"Indonesia", 11.3, 31000},
	"th": {"Thailand", 25.4, 18218},
	"vn": {"Vietnam", 17.7, 17286},
	"ph": {"Philippines", 11.0, 12690},
	"my": {"Malaysia", 22.5, 7635},
	"sg": {"Singapore", 1.8, 104},
	"au": {"Australia", 4.4, 1123},
	"nz": {"New Zealand", 6.9, 352},
	"za": {"South Africa", 24.5, 14595},
	"ng": {"Nigeria", 21.4, 45521},
	"ke": {"Kenya", 28.2, 14848},
	"eg": {"Egypt", 9.7, 10676},
	"ma": {"Morocco", 10.8, 4027},
	"sa": {"Saudi Arabia", 17.4, 6276},
	"ae": {"United Arab Emirates", 6.6, 620},
	"il": {"Israel", 3.5, 327},
}

const whoReportYear = 2021

// WHO resolves a point to a country and returns that country's road-safety
// context as CrashData. The mortality table is static and ships with the
// binary; only the reverse geocode goes over the network.
type WHO struct {
	nominatim string
	client    *http.Client
}

func NewWHO(nominatimEndpoint string) *WHO {
	if nominatimEndpoint == "" {
		nominatimEndpoint = defaultNominatimEndpoint
	}
	return &WHO{nominatim: nominatimEndpoint, client: httputil.NewClient()}
}

type nominatimResponse struct {
	Address struct {
		CountryCode string `json:"country_code"`
		Country     string `json:"country"`
	} `json:"address"`
}

// FetchCountry reverse-geocodes the point and looks the country up in the
// WHO table.
func (w *WHO) FetchCountry(ctx context.Context, lat, lon float64) (*models.CrashData, error) {
	code, err := w.resolveCountry(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	return LookupCountry(code)
}

// LookupCountry returns the WHO road-safety row for an ISO alpha-2 code.
func LookupCountry(code string) (*models.CrashData, error) {
	entry, ok := whoDeathRates[strings.ToLower(code)]
	if !ok {
		return nil, fmt.Errorf("no WHO road-safety data for country %q", code)
	}
	return &models.CrashData{
		Type:             models.CrashCountry,
		DeathRatePer100k: entry.ratePer100k,
		TotalDeaths:      entry.totalDeaths,
		CountryName:      entry.name,
		Year:             whoReportYear,
	}, nil
}

func (w *WHO) resolveCountry(ctx context.Context, lat, lon float64) (string, error) {
	url := fmt.Sprintf("%s/reverse?lat=%.5f&lon=%.5f&zoom=3&format=json", w.nominatim, lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	// Nominatim's usage policy requires an identifying UA.
	req.Header.Set("User-Agent", "safestreets/1.0")

	body, err := doInstrumented(w.client, req, "nominatim")
	if err != nil {
		return "", err
	}

	var data nominatimResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("unmarshal nominatim: %w", err)
	}
	if data.Address.CountryCode == "" {
		return "", fmt.Errorf("no country at %.4f,%.4f", lat, lon)
	}
	return data.Address.CountryCode, nil
}
