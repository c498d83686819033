package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// InsertUploadedFile records metadata for a freshly uploaded file.
func (r *Repository) InsertUploadedFile(ctx context.Context, row *UploadedFileRow) error {
	if err := r.table("uploaded_files").Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertUploadedFile: inserting row: %w", err)
	}
	return nil
}

// ListUploadedFiles returns the user's uploads, newest first.
func (r *Repository) ListUploadedFiles(ctx context.Context, userID string) ([]*UploadedFileRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT file_id, user_id, org_id, file_name, gcs_uri, upload_ts, detection_status
		FROM %s.uploaded_files
		WHERE user_id = @user_id
		ORDER BY upload_ts DESC
	`, datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListUploadedFiles: query read: %w", err)
	}

	var rows []*UploadedFileRow
	for {
		var row UploadedFileRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListUploadedFiles: iter next: %w", err)
		}
		rows = append(rows, &row)
	}

	return rows, nil
}

// GetUploadedFile fetches one upload by id.
func (r *Repository) GetUploadedFile(ctx context.Context, fileID string) (*UploadedFileRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT file_id, user_id, org_id, file_name, gcs_uri, upload_ts, detection_status
		FROM %s.uploaded_files
		WHERE file_id = @file_id
		LIMIT 1
	`, datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "file_id", Value: fileID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetUploadedFile: query read: %w", err)
	}

	var row UploadedFileRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, fmt.Errorf("GetUploadedFile: file not found: %s", fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("GetUploadedFile: iter next: %w", err)
	}

	return &row, nil
}

// UpdateDetectionStatus moves an upload through PENDING/RUNNING/SUCCESS/FAILED.
func (r *Repository) UpdateDetectionStatus(ctx context.Context, fileID, status string) error {
	err := r.runDML(ctx, fmt.Sprintf(`
		UPDATE %s.uploaded_files
		SET detection_status = @status
		WHERE file_id = @file_id
	`, datasetID), []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "file_id", Value: fileID},
	})
	if err != nil {
		return fmt.Errorf("UpdateDetectionStatus: %w", err)
	}
	return nil
}
