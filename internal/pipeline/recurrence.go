package pipeline

import (
	"sort"

	"github.com/dvloznov/subtrack/internal/config"
	"github.com/dvloznov/subtrack/internal/domain"
)

// DetectRecurring computes per-merchant transaction intervals and flags
// recurring charges.
//
// Grouping is stable: within a merchant group, transactions sort by date
// ascending with the original row order breaking ties, and the output keeps
// the input row order. For each transaction except the first in its group,
// IntervalDays is the whole-day gap to the previous one.
//
// historicalMerchants, when non-nil, is the set of merchants with validated
// subscriptions on record; IsNewSubscription then becomes Yes/No. A nil
// baseline yields the Unknown sentinel; downstream filtering distinguishes
// "known merchant" from "no baseline".
func DetectRecurring(txs []domain.Transaction, historicalMerchants []string, cfg config.Detection) ([]domain.RecurrenceRecord, error) {
	for _, tx := range txs {
		if tx.Merchant == nil {
			return nil, &MissingColumnError{Column: "Merchant"}
		}
		if tx.Date.IsZero() {
			return nil, &MissingColumnError{Column: "Date"}
		}
	}

	// Stable group-by-merchant over row indices.
	groups := make(map[string][]int)
	var order []string
	for i, tx := range txs {
		m := tx.MerchantName()
		if _, seen := groups[m]; !seen {
			order = append(order, m)
		}
		groups[m] = append(groups[m], i)
	}

	var known map[string]bool
	if historicalMerchants != nil {
		known = make(map[string]bool, len(historicalMerchants))
		for _, m := range historicalMerchants {
			known[m] = true
		}
	}

	records := make([]domain.RecurrenceRecord, len(txs))
	for i, tx := range txs {
		records[i] = domain.RecurrenceRecord{
			Transaction:       tx,
			IsNewSubscription: domain.TriUnknown,
		}
		if known != nil {
			if known[tx.MerchantName()] {
				records[i].IsNewSubscription = domain.TriNo
			} else {
				records[i].IsNewSubscription = domain.TriYes
			}
		}
	}

	for _, merchant := range order {
		idxs := groups[merchant]

		// Date ascending, original order as tiebreak.
		sorted := make([]int, len(idxs))
		copy(sorted, idxs)
		sort.SliceStable(sorted, func(a, b int) bool {
			return txs[sorted[a]].Date.Before(txs[sorted[b]].Date)
		})

		for pos := 1; pos < len(sorted); pos++ {
			prev := txs[sorted[pos-1]].Date
			cur := txs[sorted[pos]].Date
			days := int(cur.Sub(prev).Hours() / 24)

			rec := &records[sorted[pos]]
			rec.IntervalDays = &days
			rec.IsRecurring, rec.Pattern = classifyInterval(days, cfg)
		}
	}

	return records, nil
}

// classifyInterval applies the configured threshold mode to one interval.
// In pattern mode the interval lands in the tightest pattern whose threshold
// covers it; no pattern covering it means not recurring.
func classifyInterval(days int, cfg config.Detection) (bool, string) {
	switch cfg.Mode {
	case config.ThresholdModePattern:
		for _, pt := range cfg.PatternThresholds {
			if days <= pt.Days {
				return true, pt.Pattern
			}
		}
		return false, ""
	default:
		threshold := cfg.GenericThresholdDays
		if threshold == 0 {
			threshold = config.DefaultGenericThresholdDays
		}
		return days <= threshold, ""
	}
}
