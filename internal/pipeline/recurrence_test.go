package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/subtrack/internal/config"
	"github.com/dvloznov/subtrack/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tx(merchant string, date time.Time, amount float64) domain.Transaction {
	return domain.Transaction{
		Date:        date,
		Amount:      amount,
		Description: merchant + " charge",
		Merchant:    &merchant,
	}
}

func TestDetectRecurring_RequiresMerchantAndDate(t *testing.T) {
	cfg := config.DefaultDetection()

	t.Run("missing merchant", func(t *testing.T) {
		txs := []domain.Transaction{{Date: day(2026, 1, 1), Description: "x"}}
		_, err := DetectRecurring(txs, nil, cfg)

		var colErr *MissingColumnError
		if !errors.As(err, &colErr) || colErr.Column != "Merchant" {
			t.Fatalf("error = %v, want *MissingColumnError{Merchant}", err)
		}
	})

	t.Run("zero date", func(t *testing.T) {
		m := "Netflix"
		txs := []domain.Transaction{{Merchant: &m, Description: "x"}}
		_, err := DetectRecurring(txs, nil, cfg)

		var colErr *MissingColumnError
		if !errors.As(err, &colErr) || colErr.Column != "Date" {
			t.Fatalf("error = %v, want *MissingColumnError{Date}", err)
		}
	})
}

func TestDetectRecurring_GenericThreshold(t *testing.T) {
	cfg := config.DefaultDetection()

	txs := []domain.Transaction{
		tx("Netflix", day(2026, 1, 1), 9.99),
		tx("Netflix", day(2026, 1, 31), 9.99),
		tx("Netflix", day(2026, 4, 1), 9.99),
	}

	records, err := DetectRecurring(txs, nil, cfg)
	if err != nil {
		t.Fatalf("DetectRecurring() error = %v", err)
	}

	// First charge per merchant has no interval and is never recurring.
	if records[0].IntervalDays != nil || records[0].IsRecurring {
		t.Errorf("first charge: interval %v recurring %v, want nil/false",
			records[0].IntervalDays, records[0].IsRecurring)
	}

	// 30 days <= generic threshold.
	if records[1].IntervalDays == nil || *records[1].IntervalDays != 30 {
		t.Fatalf("second charge interval = %v, want 30", records[1].IntervalDays)
	}
	if !records[1].IsRecurring {
		t.Errorf("30-day interval should be recurring at threshold 30")
	}

	// 60 days > generic threshold.
	if records[2].IntervalDays == nil || *records[2].IntervalDays != 60 {
		t.Fatalf("third charge interval = %v, want 60", records[2].IntervalDays)
	}
	if records[2].IsRecurring {
		t.Errorf("60-day interval should not be recurring at threshold 30")
	}
}

func TestDetectRecurring_GenericThresholdOverride(t *testing.T) {
	txs := []domain.Transaction{
		tx("Netflix", day(2026, 1, 1), 9.99),
		tx("Netflix", day(2026, 1, 11), 9.99),
	}

	tests := []struct {
		name      string
		threshold int
		want      bool
	}{
		{"10-day gap at threshold 30", 30, true},
		{"10-day gap at threshold 5", 5, false},
		{"zero threshold falls back to the default", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultDetection()
			cfg.GenericThresholdDays = tt.threshold

			records, err := DetectRecurring(txs, nil, cfg)
			if err != nil {
				t.Fatalf("DetectRecurring() error = %v", err)
			}
			if records[1].IsRecurring != tt.want {
				t.Errorf("recurring = %v at threshold %d, want %v",
					records[1].IsRecurring, tt.threshold, tt.want)
			}
		})
	}
}

func TestDetectRecurring_PatternMode(t *testing.T) {
	cfg := config.DefaultDetection()
	cfg.Mode = config.ThresholdModePattern

	tests := []struct {
		name        string
		gapDays     int
		wantPattern string
		wantHit     bool
	}{
		{"daily", 1, "Daily", true},
		{"weekly", 7, "Weekly", true},
		{"biweekly boundary", 15, "Bi-Weekly", true},
		{"monthly", 30, "Monthly", true},
		{"monthly upper bound", 45, "Monthly", true},
		{"quarterly", 90, "Quarterly", true},
		{"yearly", 365, "Yearly", true},
		{"beyond yearly", 400, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := day(2026, 1, 1)
			txs := []domain.Transaction{
				tx("Acme", start, 5),
				tx("Acme", start.AddDate(0, 0, tt.gapDays), 5),
			}

			records, err := DetectRecurring(txs, nil, cfg)
			if err != nil {
				t.Fatalf("DetectRecurring() error = %v", err)
			}

			rec := records[1]
			if rec.IsRecurring != tt.wantHit {
				t.Errorf("recurring = %v, want %v", rec.IsRecurring, tt.wantHit)
			}
			if rec.Pattern != tt.wantPattern {
				t.Errorf("pattern = %q, want %q", rec.Pattern, tt.wantPattern)
			}
		})
	}
}

func TestDetectRecurring_PreservesInputOrder(t *testing.T) {
	cfg := config.DefaultDetection()

	// Interleaved merchants, dates out of order within a merchant.
	txs := []domain.Transaction{
		tx("Spotify", day(2026, 2, 1), 4.99),
		tx("Netflix", day(2026, 1, 1), 9.99),
		tx("Spotify", day(2026, 1, 1), 4.99),
		tx("Netflix", day(2026, 2, 1), 9.99),
	}

	records, err := DetectRecurring(txs, nil, cfg)
	if err != nil {
		t.Fatalf("DetectRecurring() error = %v", err)
	}

	for i := range txs {
		if records[i].MerchantName() != txs[i].MerchantName() ||
			!records[i].Date.Equal(txs[i].Date) {
			t.Fatalf("row %d reordered: got %s %s", i, records[i].MerchantName(), records[i].Date)
		}
	}

	// The later Spotify charge (row 0) carries the interval, not the earlier
	// one (row 2), because intervals follow date order within the group.
	if records[0].IntervalDays == nil || *records[0].IntervalDays != 31 {
		t.Errorf("row 0 interval = %v, want 31", records[0].IntervalDays)
	}
	if records[2].IntervalDays != nil {
		t.Errorf("row 2 interval = %v, want nil", records[2].IntervalDays)
	}
}

func TestDetectRecurring_NewSubscriptionTriState(t *testing.T) {
	cfg := config.DefaultDetection()
	txs := []domain.Transaction{
		tx("Netflix", day(2026, 1, 1), 9.99),
		tx("Hulu", day(2026, 1, 2), 7.99),
	}

	t.Run("no baseline means unknown", func(t *testing.T) {
		records, err := DetectRecurring(txs, nil, cfg)
		if err != nil {
			t.Fatalf("DetectRecurring() error = %v", err)
		}
		for i, rec := range records {
			if rec.IsNewSubscription != domain.TriUnknown {
				t.Errorf("row %d = %q, want %q", i, rec.IsNewSubscription, domain.TriUnknown)
			}
		}
	})

	t.Run("baseline splits yes and no", func(t *testing.T) {
		records, err := DetectRecurring(txs, []string{"Netflix"}, cfg)
		if err != nil {
			t.Fatalf("DetectRecurring() error = %v", err)
		}
		if records[0].IsNewSubscription != domain.TriNo {
			t.Errorf("known merchant = %q, want %q", records[0].IsNewSubscription, domain.TriNo)
		}
		if records[1].IsNewSubscription != domain.TriYes {
			t.Errorf("unknown merchant = %q, want %q", records[1].IsNewSubscription, domain.TriYes)
		}
	})

	t.Run("empty non-nil baseline still answers", func(t *testing.T) {
		records, err := DetectRecurring(txs, []string{}, cfg)
		if err != nil {
			t.Fatalf("DetectRecurring() error = %v", err)
		}
		if records[0].IsNewSubscription != domain.TriYes {
			t.Errorf("got %q, want %q", records[0].IsNewSubscription, domain.TriYes)
		}
	})
}

func TestDetectRecurring_SameDayCharges(t *testing.T) {
	cfg := config.DefaultDetection()
	txs := []domain.Transaction{
		tx("Gym", day(2026, 1, 10), 25),
		tx("Gym", day(2026, 1, 10), 25),
	}

	records, err := DetectRecurring(txs, nil, cfg)
	if err != nil {
		t.Fatalf("DetectRecurring() error = %v", err)
	}
	if records[1].IntervalDays == nil || *records[1].IntervalDays != 0 {
		t.Fatalf("same-day interval = %v, want 0", records[1].IntervalDays)
	}
	if !records[1].IsRecurring {
		t.Errorf("zero-day interval should count as recurring")
	}
}

func TestEstimateSavings(t *testing.T) {
	now := day(2026, 1, 31) // 30 days after cancellation below
	cancelled := day(2026, 1, 1)

	tests := []struct {
		name      string
		frequency domain.Frequency
		amount    float64
		want      float64
	}{
		{"daily", domain.FrequencyDaily, 1, 30},
		{"weekly", domain.FrequencyWeekly, 5, 20},    // 30/7 = 4 periods
		{"monthly", domain.FrequencyMonthly, 10, 10}, // 30/30 = 1 period
		{"yearly", domain.FrequencyYearly, 100, 0},   // 30/365 = 0 periods
		{"unknown frequency", domain.Frequency("Fortnightly"), 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []domain.CancelledSubscription{
				{Merchant: "Acme", Amount: tt.amount, Frequency: tt.frequency, CancellationDate: cancelled},
			}
			estimates := EstimateSavings(records, now)
			if len(estimates) != 1 {
				t.Fatalf("got %d estimates, want 1", len(estimates))
			}
			if estimates[0].AmountSaved != tt.want {
				t.Errorf("AmountSaved = %v, want %v", estimates[0].AmountSaved, tt.want)
			}
		})
	}
}

func TestSpendingTrends(t *testing.T) {
	txs := []domain.Transaction{
		{Date: day(2026, 2, 10), Amount: 5},
		{Date: day(2026, 1, 1), Amount: 10},
		{Date: day(2026, 1, 20), Amount: 2.5},
		{Date: day(2025, 12, 31), Amount: 1},
	}

	totals := SpendingTrends(txs)

	want := []struct {
		year  int
		month time.Month
		total float64
	}{
		{2025, time.December, 1},
		{2026, time.January, 12.5},
		{2026, time.February, 5},
	}

	if len(totals) != len(want) {
		t.Fatalf("got %d months, want %d", len(totals), len(want))
	}
	for i, w := range want {
		if totals[i].Year != w.year || totals[i].Month != w.month || totals[i].Total != w.total {
			t.Errorf("month %d = %+v, want %+v", i, totals[i], w)
		}
	}
}
