package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/subtrack/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// ListValidatedSubscriptions returns the organization's training set.
func (r *Repository) ListValidatedSubscriptions(ctx context.Context, orgID string) ([]domain.ValidatedSubscription, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT merchant, description, category
		FROM %s.validated_subscriptions
		WHERE org_id = @org_id
	`, datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "org_id", Value: orgID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListValidatedSubscriptions: query read: %w", err)
	}

	var subs []domain.ValidatedSubscription
	for {
		var row ValidatedSubscriptionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListValidatedSubscriptions: iter next: %w", err)
		}
		subs = append(subs, domain.ValidatedSubscription{
			Merchant:    row.Merchant,
			Description: row.Description,
			Category:    row.Category,
		})
	}

	return subs, nil
}

// ListValidatedMerchants returns the distinct merchants with validated
// subscriptions, the historical baseline for new-subscription detection.
// A nil result with nil error means the organization has no baseline yet.
func (r *Repository) ListValidatedMerchants(ctx context.Context, orgID string) ([]string, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT DISTINCT merchant
		FROM %s.validated_subscriptions
		WHERE org_id = @org_id
	`, datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "org_id", Value: orgID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListValidatedMerchants: query read: %w", err)
	}

	var merchants []string
	for {
		var row struct {
			Merchant string `bigquery:"merchant"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListValidatedMerchants: iter next: %w", err)
		}
		merchants = append(merchants, row.Merchant)
	}

	return merchants, nil
}

// ListValidatedSubscriptionRows returns the organization's validated
// subscriptions as stored rows, ids included, for the presentation sync.
func (r *Repository) ListValidatedSubscriptionRows(ctx context.Context, orgID string) ([]*ValidatedSubscriptionRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT subscription_id, org_id, user_id, merchant, description, category, status, created_ts
		FROM %s.validated_subscriptions
		WHERE org_id = @org_id
		ORDER BY merchant
	`, datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "org_id", Value: orgID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListValidatedSubscriptionRows: query read: %w", err)
	}

	var rows []*ValidatedSubscriptionRow
	for {
		var row ValidatedSubscriptionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListValidatedSubscriptionRows: iter next: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}

// InsertValidatedSubscriptions appends human-confirmed records, including
// category corrections from the feedback loop.
func (r *Repository) InsertValidatedSubscriptions(ctx context.Context, orgID, userID string, subs []domain.ValidatedSubscription) error {
	if len(subs) == 0 {
		return nil
	}

	rows := make([]*ValidatedSubscriptionRow, 0, len(subs))
	for _, sub := range subs {
		rows = append(rows, &ValidatedSubscriptionRow{
			SubscriptionID: uuid.NewString(),
			OrgID:          orgID,
			UserID:         userID,
			Merchant:       sub.Merchant,
			Description:    sub.Description,
			Category:       sub.Category,
			Status:         "active",
			CreatedTS:      bigquery.NullTimestamp{Timestamp: time.Now(), Valid: true},
		})
	}

	if err := r.table("validated_subscriptions").Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertValidatedSubscriptions: inserting %d rows: %w", len(rows), err)
	}
	return nil
}

// ListCancelledSubscriptions returns the user's cancelled subscriptions for
// savings estimation.
func (r *Repository) ListCancelledSubscriptions(ctx context.Context, userID string) ([]domain.CancelledSubscription, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT merchant, amount, frequency, cancellation_date
		FROM %s.cancelled_subscriptions
		WHERE user_id = @user_id
	`, datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCancelledSubscriptions: query read: %w", err)
	}

	var records []domain.CancelledSubscription
	for {
		var row CancelledSubscriptionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCancelledSubscriptions: iter next: %w", err)
		}
		records = append(records, domain.CancelledSubscription{
			Merchant:         row.Merchant,
			Amount:           row.Amount,
			Frequency:        domain.Frequency(row.Frequency),
			CancellationDate: row.CancellationDate.In(time.UTC),
		})
	}

	return records, nil
}
