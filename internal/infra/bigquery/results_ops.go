package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/subtrack/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// InsertRecurrenceRecords persists a detection run's output snapshot.
func (r *Repository) InsertRecurrenceRecords(ctx context.Context, userID, fileID, runID string, records []domain.RecurrenceRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]*RecurrenceResultRow, 0, len(records))
	now := time.Now()
	for _, rec := range records {
		row := &RecurrenceResultRow{
			ResultID:          uuid.NewString(),
			UserID:            userID,
			FileID:            fileID,
			RunID:             runID,
			Date:              civil.DateOf(rec.Date),
			Amount:            rec.Amount,
			Description:       rec.Description,
			Merchant:          rec.MerchantName(),
			IsRecurring:       rec.IsRecurring,
			Pattern:           rec.Pattern,
			IsNewSubscription: string(rec.IsNewSubscription),
			MerchantInfo:      rec.MerchantInfo,
			PredictedCategory: rec.PredictedCategory,
			CreatedTS:         now,
		}
		if rec.IntervalDays != nil {
			row.IntervalDays = bigquery.NullInt64{Int64: int64(*rec.IntervalDays), Valid: true}
		}
		rows = append(rows, row)
	}

	if err := r.table("recurrence_results").Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertRecurrenceRecords: inserting %d rows: %w", len(rows), err)
	}
	return nil
}

// ListRecurrenceResults returns the stored snapshot for a user, optionally
// narrowed to one file and to recurring rows only.
func (r *Repository) ListRecurrenceResults(ctx context.Context, userID, fileID string, recurringOnly bool) ([]*RecurrenceResultRow, error) {
	query := fmt.Sprintf(`
		SELECT result_id, user_id, file_id, run_id, date, amount, description,
		       merchant, interval_days, is_recurring, pattern,
		       is_new_subscription, merchant_info, predicted_category, created_ts
		FROM %s.recurrence_results
		WHERE user_id = @user_id
	`, datasetID)
	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}
	if fileID != "" {
		query += " AND file_id = @file_id"
		params = append(params, bigquery.QueryParameter{Name: "file_id", Value: fileID})
	}
	if recurringOnly {
		query += " AND is_recurring = TRUE"
	}
	query += " ORDER BY date"

	q := r.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecurrenceResults: query read: %w", err)
	}

	var rows []*RecurrenceResultRow
	for {
		var row RecurrenceResultRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecurrenceResults: iter next: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}
