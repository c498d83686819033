package pipeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/subtrack/internal/domain"
)

// DefaultRequiredColumns are the columns every upload must carry. Merchant is
// optional; files without it go through the merchant resolver instead.
var DefaultRequiredColumns = []string{"Date", "Amount", "Description"}

// dateLayouts are tried in order when coercing the Date column. Uploads come
// from many banks, so the parse is best-effort across common formats.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"01-02-2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// Validate checks an uploaded dataset against the required columns and
// coerces it into typed transactions.
//
// Failure modes, all recoverable:
//   - any required column absent        -> *SchemaError with the missing set
//   - zero data rows                    -> *EmptyDatasetError
//   - every row has an unparseable date -> *SchemaError{Reason: "no parseable dates"}
//
// Rows whose date fails to parse are dropped, never retained with a zero
// date. Rows whose amount fails to parse are dropped for the same reason.
func Validate(raw *RawDataset, required []string) ([]domain.Transaction, error) {
	if len(required) == 0 {
		required = DefaultRequiredColumns
	}

	var missing []string
	for _, col := range required {
		if !raw.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	if len(raw.Rows) == 0 {
		return nil, &EmptyDatasetError{}
	}

	dateIdx := raw.ColumnIndex("Date")
	amountIdx := raw.ColumnIndex("Amount")
	descIdx := raw.ColumnIndex("Description")
	merchantIdx := raw.ColumnIndex("Merchant")

	txs := make([]domain.Transaction, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		if dateIdx >= len(row) || amountIdx >= len(row) || descIdx >= len(row) {
			continue
		}

		date, ok := parseDate(row[dateIdx])
		if !ok {
			continue
		}
		amount, err := parseAmount(row[amountIdx])
		if err != nil {
			continue
		}

		tx := domain.Transaction{
			Date:        date,
			Amount:      amount,
			Description: row[descIdx],
		}
		if merchantIdx >= 0 && merchantIdx < len(row) {
			m := strings.TrimSpace(row[merchantIdx])
			if m != "" {
				tx.Merchant = &m
			}
		}
		txs = append(txs, tx)
	}

	if len(txs) == 0 {
		return nil, &SchemaError{Reason: "no parseable dates"}
	}

	return txs, nil
}

// parseDate tries each known layout and truncates to a calendar date.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// parseAmount accepts plain decimals plus the thousands separators and
// currency signs that show up in bank exports.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "£")
	s = strings.TrimPrefix(s, "€")
	return strconv.ParseFloat(s, 64)
}
