package score

import (
	"github.com/safestreets/safestreets/internal/models"
)

// ScoreCrashData converts either crash-data shape to the 0-100 safety scale.
// Returns the absent score when no crash data is available so the Safety
// component can redistribute its weight.
func ScoreCrashData(crash *models.CrashData) Opt {
	if crash == nil {
		return None()
	}

	switch crash.Type {
	case models.CrashLocal:
		span := crash.YearRange.To - crash.YearRange.From + 1
		if span < 1 {
			span = 1
		}
		perYear := float64(crash.TotalFatalities) / float64(span)
		switch {
		case perYear == 0:
			return Some(100)
		case perYear <= 1:
			return Some(80)
		case perYear <= 3:
			return Some(60)
		case perYear <= 5:
			return Some(40)
		default:
			return Some(20)
		}
	case models.CrashCountry:
		rate := crash.DeathRatePer100k
		switch {
		case rate <= 3:
			return Some(95)
		case rate <= 6:
			return Some(80)
		case rate <= 10:
			return Some(60)
		case rate <= 15:
			return Some(40)
		default:
			return Some(20)
		}
	default:
		return None()
	}
}
