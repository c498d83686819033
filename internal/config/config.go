package config

import (
	"github.com/dvloznov/subtrack/internal/domain"
)

// ThresholdMode selects how the recurrence detector decides whether an
// interval counts as recurring. The upstream product never reconciled the
// single generic threshold with the per-pattern table, so both are exposed
// and the caller picks one per run.
type ThresholdMode string

const (
	// ThresholdModeGeneric compares every interval against one day count.
	ThresholdModeGeneric ThresholdMode = "generic"
	// ThresholdModePattern matches the interval against the per-pattern
	// renewal thresholds and records the matched pattern name.
	ThresholdModePattern ThresholdMode = "pattern"
)

// DefaultGenericThresholdDays is the single-threshold default.
const DefaultGenericThresholdDays = 30

// MerchantRule maps a description keyword to a merchant name. Rules are
// ordered; the first matching rule wins.
type MerchantRule struct {
	Keyword  string
	Merchant string
}

// PatternThreshold is one entry of the renewal threshold table. Kept as an
// ordered slice rather than a map so that interval classification is
// deterministic.
type PatternThreshold struct {
	Pattern string
	Days    int
}

// Detection is the configuration value object passed into the recurrence
// detector and merchant resolver. It is an immutable snapshot: persistence of
// configuration changes is the storage layer's responsibility, never shared
// process state mutated in place.
type Detection struct {
	Mode ThresholdMode

	// GenericThresholdDays applies in ThresholdModeGeneric.
	GenericThresholdDays int

	// PatternThresholds applies in ThresholdModePattern, ordered from the
	// tightest cadence to the loosest.
	PatternThresholds []PatternThreshold

	// MerchantRules drive merchant resolution for files without a Merchant
	// column. Substring match is case-sensitive on purpose.
	MerchantRules []MerchantRule

	// CategoryKeywords drive the zero-training keyword categorizer:
	// category name -> keyword list.
	CategoryKeywords map[string][]string

	// RequiredColumns for schema validation.
	RequiredColumns []string
}

// DefaultDetection returns the built-in configuration used when the storage
// layer has no overrides for the organization.
func DefaultDetection() Detection {
	return Detection{
		Mode:                 ThresholdModeGeneric,
		GenericThresholdDays: DefaultGenericThresholdDays,
		PatternThresholds: []PatternThreshold{
			{Pattern: string(domain.FrequencyDaily), Days: 1},
			{Pattern: string(domain.FrequencyWeekly), Days: 7},
			{Pattern: "Bi-Weekly", Days: 15},
			{Pattern: string(domain.FrequencyMonthly), Days: 45},
			{Pattern: "Quarterly", Days: 90},
			{Pattern: string(domain.FrequencyYearly), Days: 370},
		},
		MerchantRules: []MerchantRule{
			{Keyword: "Netflix", Merchant: "Netflix"},
			{Keyword: "Spotify", Merchant: "Spotify"},
			{Keyword: "Gym", Merchant: "Local Gym"},
		},
		CategoryKeywords: map[string][]string{
			"Entertainment": {"Netflix", "Spotify", "Hulu"},
			"Utilities":     {"Electric", "Water", "Gas"},
			"Others":        {},
		},
		RequiredColumns: []string{"Date", "Amount", "Description"},
	}
}
