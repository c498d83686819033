package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/dvloznov/subtrack/internal/domain"
)

// DefaultCategory labels transactions no keyword rule matches.
const DefaultCategory = "Others"

// CategorizeByKeywords assigns a category to a transaction from the
// category -> keyword table. It is the zero-training fallback used when an
// organization has no trained model and explicitly asked for rule labeling.
// Exactly one category comes out; ties across categories are broken by
// category name so the result is deterministic regardless of map order.
func CategorizeByKeywords(tx domain.Transaction, keywords map[string][]string) string {
	text := tx.MerchantName() + " " + tx.Description

	categories := make([]string, 0, len(keywords))
	for cat := range keywords {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	for _, cat := range categories {
		for _, kw := range keywords[cat] {
			if kw != "" && strings.Contains(text, kw) {
				return cat
			}
		}
	}
	return DefaultCategory
}

// RuleLabeler labels recurrence records with the keyword categorizer. It
// satisfies the pipeline's Labeler interface and never fails.
type RuleLabeler struct {
	Keywords map[string][]string
}

// Label fills PredictedCategory on every record in place.
func (l *RuleLabeler) Label(ctx context.Context, records []domain.RecurrenceRecord) error {
	for i := range records {
		records[i].PredictedCategory = CategorizeByKeywords(records[i].Transaction, l.Keywords)
	}
	return nil
}
