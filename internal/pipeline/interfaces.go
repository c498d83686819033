package pipeline

import (
	"context"

	"github.com/dvloznov/subtrack/internal/domain"
)

// StorageService is an interface for blob storage operations. The concrete
// implementation lives in gcsuploader; the pipeline only needs bytes back.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURI(uri string) string
}

// Enricher is the enrichment collaborator: given a merchant name or raw
// description, it returns contextual text. It may be slow or unreliable; the
// pipeline tolerates per-row errors and degrades to empty merchant info.
type Enricher interface {
	Enrich(ctx context.Context, text string) (string, error)
}

// SubscriptionSource supplies the historical baseline for new-subscription
// detection.
type SubscriptionSource interface {
	// ListValidatedMerchants returns the distinct merchants with validated
	// subscriptions for the organization. A nil slice with nil error means
	// no baseline exists and detection reports Unknown.
	ListValidatedMerchants(ctx context.Context, orgID string) ([]string, error)
}

// ResultSink persists recurrence records produced by a detection run.
type ResultSink interface {
	InsertRecurrenceRecords(ctx context.Context, userID, fileID, runID string, records []domain.RecurrenceRecord) error
}

// RunRecorder tracks detection run bookkeeping: one row per run with
// started/finished timestamps, status, and error message.
type RunRecorder interface {
	StartDetectionRun(ctx context.Context, fileID string) (string, error)
	MarkDetectionRunFailed(ctx context.Context, runID string, runErr error)
	MarkDetectionRunSucceeded(ctx context.Context, runID string) error
}

// Labeler assigns a predicted category to each recurrence record in place.
// RuleLabeler is the zero-training implementation; the classifier package
// provides the trained one.
type Labeler interface {
	Label(ctx context.Context, records []domain.RecurrenceRecord) error
}
