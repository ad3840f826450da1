package score

import (
	"testing"

	"github.com/safestreets/safestreets/internal/models"
)

func TestScoreCrashData_Local(t *testing.T) {
	tests := []struct {
		name       string
		fatalities int
		years      models.YearRange
		want       float64
	}{
		{"no fatalities", 0, models.YearRange{From: 2018, To: 2022}, 100},
		{"one per year", 5, models.YearRange{From: 2018, To: 2022}, 80},
		{"1.2 per year", 6, models.YearRange{From: 2018, To: 2022}, 60},
		{"three per year", 15, models.YearRange{From: 2018, To: 2022}, 60},
		{"five per year", 25, models.YearRange{From: 2018, To: 2022}, 40},
		{"worst band", 30, models.YearRange{From: 2018, To: 2022}, 20},
		{"single-year range", 2, models.YearRange{From: 2022, To: 2022}, 60},
		{"inverted range guarded", 4, models.YearRange{From: 2022, To: 2018}, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crash := &models.CrashData{
				Type:            models.CrashLocal,
				TotalFatalities: tt.fatalities,
				YearRange:       tt.years,
			}
			got := ScoreCrashData(crash)
			if !got.Present {
				t.Fatal("expected present score")
			}
			if got.Value != tt.want {
				t.Errorf("ScoreCrashData = %v, want %v", got.Value, tt.want)
			}
		})
	}
}

func TestScoreCrashData_Country(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want float64
	}{
		{"very safe country", 2.1, 95},
		{"WHO 4.7 per 100k", 4.7, 80},
		{"boundary 6", 6, 80},
		{"moderate", 8.5, 60},
		{"high", 14, 40},
		{"very high", 28, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crash := &models.CrashData{
				Type:             models.CrashCountry,
				DeathRatePer100k: tt.rate,
			}
			got := ScoreCrashData(crash)
			if !got.Present {
				t.Fatal("expected present score")
			}
			if got.Value != tt.want {
				t.Errorf("ScoreCrashData = %v, want %v", got.Value, tt.want)
			}
		})
	}
}

func TestScoreCrashData_Missing(t *testing.T) {
	if got := ScoreCrashData(nil); got.Present {
		t.Errorf("nil crash data should be absent, got %v", got.Value)
	}
	if got := ScoreCrashData(&models.CrashData{Type: "unknown"}); got.Present {
		t.Errorf("unknown crash type should be absent, got %v", got.Value)
	}
}
