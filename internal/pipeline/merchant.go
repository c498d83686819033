package pipeline

import (
	"strings"

	"github.com/dvloznov/subtrack/internal/config"
	"github.com/dvloznov/subtrack/internal/domain"
)

// UnknownMerchant is the fallback value for descriptions no rule matches.
const UnknownMerchant = "Unknown Merchant"

// ResolveMerchant assigns a merchant name to a free-text description by
// ordered substring match against the rule table; the first matching rule
// wins. The match is case-sensitive substring containment with no word
// boundary check, so "Netflixx" matches the "Netflix" rule; changing that
// needs a product decision, not a code fix. Always returns a value.
func ResolveMerchant(description string, rules []config.MerchantRule) string {
	for _, rule := range rules {
		if strings.Contains(description, rule.Keyword) {
			return rule.Merchant
		}
	}
	return UnknownMerchant
}

// ResolveMerchants fills in the Merchant field for transactions that lack
// one, together with the derived one-line category: "Subscription" when a
// rule matched, "Unknown" otherwise. Existing merchant values are never
// overwritten; this stage only runs for uploads without a Merchant column.
func ResolveMerchants(txs []domain.Transaction, rules []config.MerchantRule) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	for i, tx := range txs {
		if tx.Merchant != nil {
			out[i] = tx
			continue
		}

		merchant := ResolveMerchant(tx.Description, rules)
		category := "Subscription"
		if merchant == UnknownMerchant {
			category = "Unknown"
		}

		tx.Merchant = &merchant
		if tx.Category == nil {
			tx.Category = &category
		}
		out[i] = tx
	}
	return out
}
