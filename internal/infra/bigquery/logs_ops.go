package bigquery

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/subtrack/internal/logger"
)

// InsertAppLog appends one audit-trail row. Best-effort: the audit trail must
// never fail the action it records, so errors are logged and swallowed.
func (r *Repository) InsertAppLog(ctx context.Context, action, userID, orgID string, details map[string]any) {
	row := &AppLogRow{
		Action:    action,
		UserID:    userID,
		OrgID:     orgID,
		CreatedTS: time.Now(),
	}
	log := logger.FromContext(ctx)

	if details != nil {
		encoded, err := appLogDetails(details)
		if err != nil {
			log.Warn().Err(err).Str("action", action).Msg("Failed to encode app log details")
		} else {
			row.Details = encoded
		}
	}

	if err := r.table("app_logs").Inserter().Put(ctx, row); err != nil {
		log.Warn().
			Err(err).
			Str("action", action).
			Str("user_id", userID).
			Msg("Failed to write app log row")
	}
}

// appLogDetails encodes the details map into the JSON column value. The
// column type expects the serialized text, not the map itself.
func appLogDetails(details map[string]any) (bigquery.NullJSON, error) {
	encoded, err := json.Marshal(details)
	if err != nil {
		return bigquery.NullJSON{}, err
	}
	return bigquery.NullJSON{JSONVal: string(encoded), Valid: true}, nil
}
