package domain

import (
	"time"
)

// Transaction represents one validated transaction row from an uploaded file.
// This is a domain struct, not a BigQuery row; the results repository maps it
// into the subtrack.recurrence_results table schema.
// Date and Amount are always present and parseable after validation; rows
// whose date fails to parse never make it into a Transaction.
type Transaction struct {
	Date        time.Time // parsed best-effort from the "Date" column
	Amount      float64   // from "Amount" (signed, currency-agnostic)
	Description string    // from "Description"

	Merchant *string // from "Merchant" when the column exists, or resolved later
	Category *string // assigned by the resolver, keyword rules, or the classifier
}

// MerchantName returns the merchant value or the empty string when unset.
func (t *Transaction) MerchantName() string {
	if t.Merchant == nil {
		return ""
	}
	return *t.Merchant
}

// CategoryName returns the category value or the empty string when unset.
func (t *Transaction) CategoryName() string {
	if t.Category == nil {
		return ""
	}
	return *t.Category
}

// TriState is a three-valued flag used where a boolean answer may be
// unavailable rather than false. The distinction matters downstream: a "No"
// means the merchant was found in the historical baseline, an "Unknown" means
// no baseline was supplied at all.
type TriState string

const (
	TriYes     TriState = "Yes"
	TriNo      TriState = "No"
	TriUnknown TriState = "Unknown"
)

// RecurrenceRecord is a transaction augmented with recurrence metadata.
// Derived fresh on every detection run; the persisted copy is a snapshot
// owned by the storage layer, never the source of truth.
type RecurrenceRecord struct {
	Transaction

	// IntervalDays is the whole-day gap to the previous transaction from the
	// same merchant, nil for the first transaction in its merchant group.
	IntervalDays *int

	// IsRecurring is true iff IntervalDays is present and within the
	// configured threshold.
	IsRecurring bool

	// Pattern names the renewal pattern the interval matched (Daily, Weekly,
	// ...) when pattern thresholds are in use, empty otherwise.
	Pattern string

	// IsNewSubscription is Yes/No against the historical merchant set, or
	// Unknown when no historical baseline was supplied.
	IsNewSubscription TriState

	// MerchantInfo carries enrichment text for the merchant. Empty when the
	// enrichment collaborator failed or was not configured; a failed
	// enrichment never aborts the batch.
	MerchantInfo string

	// PredictedCategory is filled by the trained classifier or the keyword
	// rules, depending on which labeling path the caller chose.
	PredictedCategory string
}

// MonthlyTotal is one point of a spending trend: the summed amount of all
// transactions in a calendar month.
type MonthlyTotal struct {
	Year  int
	Month time.Month
	Total float64
}
