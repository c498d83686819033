package pipeline

import (
	"time"

	"github.com/dvloznov/subtrack/internal/domain"
)

// EstimateSavings computes money saved to date for each cancelled
// subscription by frequency-based extrapolation. The caller supplies now so
// the computation stays deterministic under test; results are never cached,
// the value moves with the clock.
//
// Periods elapse by integer division: Daily counts every day, Weekly every 7,
// Monthly every 30, Yearly every 365. An unrecognized frequency yields an
// explicit zero estimate, not an error. No aggregation across merchants:
// one estimate per input record.
func EstimateSavings(records []domain.CancelledSubscription, now time.Time) []domain.SavingsEstimate {
	estimates := make([]domain.SavingsEstimate, 0, len(records))
	for _, rec := range records {
		days := int(now.Sub(rec.CancellationDate).Hours() / 24)

		var saved float64
		switch rec.Frequency {
		case domain.FrequencyDaily:
			saved = rec.Amount * float64(days)
		case domain.FrequencyWeekly:
			saved = rec.Amount * float64(days/7)
		case domain.FrequencyMonthly:
			saved = rec.Amount * float64(days/30)
		case domain.FrequencyYearly:
			saved = rec.Amount * float64(days/365)
		default:
			saved = 0
		}

		estimates = append(estimates, domain.SavingsEstimate{
			Merchant:    rec.Merchant,
			AmountSaved: saved,
		})
	}
	return estimates
}
