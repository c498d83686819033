package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/subtrack/internal/logger"
	"github.com/google/uuid"
)

// StartDetectionRun creates a detection_runs row with status=RUNNING and
// returns its id.
func (r *Repository) StartDetectionRun(ctx context.Context, fileID string) (string, error) {
	runID := uuid.NewString()

	err := r.runDML(ctx, fmt.Sprintf(`
		INSERT %s.detection_runs (run_id, file_id, started_ts, status)
		VALUES (@run_id, @file_id, @started_ts, @status)
	`, datasetID), []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "file_id", Value: fileID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: "RUNNING"},
	})
	if err != nil {
		return "", fmt.Errorf("StartDetectionRun: %w", err)
	}

	return runID, nil
}

// MarkDetectionRunFailed updates a detection_runs row to status=FAILED.
// Best-effort: the pipeline error is what matters to the caller, so failures
// here are logged and swallowed.
func (r *Repository) MarkDetectionRunFailed(ctx context.Context, runID string, runErr error) {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		const maxLen = 2000
		if len(errMsg) > maxLen {
			errMsg = errMsg[:maxLen]
		}
	}

	err := r.runDML(ctx, fmt.Sprintf(`
		UPDATE %s.detection_runs
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, datasetID), []bigquery.QueryParameter{
		{Name: "status", Value: "FAILED"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "run_id", Value: runID},
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("Failed to mark detection run as failed")
	}
}

// MarkDetectionRunSucceeded updates a detection_runs row to status=SUCCESS.
func (r *Repository) MarkDetectionRunSucceeded(ctx context.Context, runID string) error {
	err := r.runDML(ctx, fmt.Sprintf(`
		UPDATE %s.detection_runs
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = ""
		WHERE run_id = @run_id
	`, datasetID), []bigquery.QueryParameter{
		{Name: "status", Value: "SUCCESS"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "run_id", Value: runID},
	})
	if err != nil {
		return fmt.Errorf("MarkDetectionRunSucceeded: %w", err)
	}
	return nil
}
