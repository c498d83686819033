package bigquery

import (
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

const defaultProjectID = "studious-union-470122-v7"

// datasetID is the BigQuery dataset holding all subtrack tables.
const datasetID = "subtrack"

// projectID resolves the GCP project, overridable via BQ_PROJECT_ID.
func projectID() string {
	if p := os.Getenv("BQ_PROJECT_ID"); p != "" {
		return p
	}
	return defaultProjectID
}

// UploadedFileRow is one uploaded transaction file, metadata only; the bytes
// live in GCS at GCSURI.
type UploadedFileRow struct {
	FileID   string `bigquery:"file_id"`  // REQUIRED
	UserID   string `bigquery:"user_id"`  // REQUIRED
	OrgID    string `bigquery:"org_id"`   // NULLABLE
	FileName string `bigquery:"file_name"`
	GCSURI   string `bigquery:"gcs_uri"` // REQUIRED

	UploadTS time.Time `bigquery:"upload_ts"` // REQUIRED

	DetectionStatus string `bigquery:"detection_status"` // PENDING/RUNNING/SUCCESS/FAILED

	Metadata bigquery.NullJSON `bigquery:"metadata"` // NULLABLE
}

// DetectionRunRow is the bookkeeping record for one detection pipeline run.
type DetectionRunRow struct {
	RunID  string `bigquery:"run_id"`
	FileID string `bigquery:"file_id"`

	StartedAt  time.Time              `bigquery:"started_ts"`
	FinishedAt bigquery.NullTimestamp `bigquery:"finished_ts"`

	Status       string `bigquery:"status"` // RUNNING/SUCCESS/FAILED
	ErrorMessage string `bigquery:"error_message"`
}

// RecurrenceResultRow is the persisted snapshot of one recurrence record.
// The in-memory record is derived fresh each run; this row is the copy the
// presentation layer reads back.
type RecurrenceResultRow struct {
	ResultID string `bigquery:"result_id"`
	UserID   string `bigquery:"user_id"`
	FileID   string `bigquery:"file_id"`
	RunID    string `bigquery:"run_id"`

	Date        civil.Date `bigquery:"date"`
	Amount      float64    `bigquery:"amount"`
	Description string     `bigquery:"description"`
	Merchant    string     `bigquery:"merchant"`

	IntervalDays      bigquery.NullInt64 `bigquery:"interval_days"`
	IsRecurring       bool               `bigquery:"is_recurring"`
	Pattern           string             `bigquery:"pattern"`
	IsNewSubscription string             `bigquery:"is_new_subscription"` // Yes/No/Unknown
	MerchantInfo      string             `bigquery:"merchant_info"`
	PredictedCategory string             `bigquery:"predicted_category"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// ValidatedSubscriptionRow is a human-confirmed subscription, the classifier
// training unit, scoped per organization.
type ValidatedSubscriptionRow struct {
	SubscriptionID string `bigquery:"subscription_id"`
	OrgID          string `bigquery:"org_id"`
	UserID         string `bigquery:"user_id"`

	Merchant    string `bigquery:"merchant"`
	Description string `bigquery:"description"`
	Category    string `bigquery:"category"`

	Status string `bigquery:"status"` // active/cancelled

	CreatedTS bigquery.NullTimestamp `bigquery:"created_ts"`
}

// CancelledSubscriptionRow feeds the savings estimator.
type CancelledSubscriptionRow struct {
	SubscriptionID   string     `bigquery:"subscription_id"`
	UserID           string     `bigquery:"user_id"`
	Merchant         string     `bigquery:"merchant"`
	Amount           float64    `bigquery:"amount"`
	Frequency        string     `bigquery:"frequency"`
	CancellationDate civil.Date `bigquery:"cancellation_date"`
}

// KeywordRow maps a category to one keyword; the set of rows forms the
// keyword table the resolver and rule categorizer run on.
type KeywordRow struct {
	OrgID    string `bigquery:"org_id"`
	Category string `bigquery:"category"`
	Keyword  string `bigquery:"keyword"`
}

// ThresholdRow is one renewal-pattern threshold override.
type ThresholdRow struct {
	OrgID   string `bigquery:"org_id"`
	Pattern string `bigquery:"pattern"`
	Days    int64  `bigquery:"days"`
}

// AppLogRow records a user-visible action for the audit trail.
type AppLogRow struct {
	Action    string            `bigquery:"action"`
	UserID    string            `bigquery:"user_id"`
	OrgID     string            `bigquery:"org_id"`
	Details   bigquery.NullJSON `bigquery:"details"`
	CreatedTS time.Time         `bigquery:"created_ts"`
}
