package domain

import (
	"time"
)

// Frequency is the billing cadence of a subscription. Unrecognized values are
// kept as-is: the savings estimator treats them as zero savings rather than
// an error.
type Frequency string

const (
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
	FrequencyYearly  Frequency = "Yearly"
)

// ValidatedSubscription is a subscription record a human has confirmed as
// correct. These form the classifier training set for an organization.
type ValidatedSubscription struct {
	Merchant    string
	Description string
	Category    string
}

// CancelledSubscription is a subscription the user has cancelled, the input
// shape for savings estimation.
type CancelledSubscription struct {
	Merchant         string
	Amount           float64
	Frequency        Frequency
	CancellationDate time.Time
}

// SavingsEstimate is the money saved to date by a single cancellation.
// Recomputed on demand against an explicit "now"; never cached, the value is
// time-dependent. Aggregation across merchants is the caller's business.
type SavingsEstimate struct {
	Merchant    string
	AmountSaved float64
}
