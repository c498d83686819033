package pipeline

import (
	"sort"
	"time"

	"github.com/dvloznov/subtrack/internal/domain"
)

// SpendingTrends sums transaction amounts per calendar month, oldest month
// first. The core hands the series to the presentation layer as-is; charting
// is not its business.
func SpendingTrends(txs []domain.Transaction) []domain.MonthlyTotal {
	type monthKey struct {
		year  int
		month int
	}

	totals := make(map[monthKey]float64)
	for _, tx := range txs {
		key := monthKey{year: tx.Date.Year(), month: int(tx.Date.Month())}
		totals[key] += tx.Amount
	}

	keys := make([]monthKey, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].year != keys[b].year {
			return keys[a].year < keys[b].year
		}
		return keys[a].month < keys[b].month
	})

	out := make([]domain.MonthlyTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.MonthlyTotal{
			Year:  k.year,
			Month: time.Month(k.month),
			Total: totals[k],
		})
	}
	return out
}
