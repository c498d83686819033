package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// Repository is the storage collaborator: every persistent read and write of
// the core goes through here, against BigQuery. It holds one shared client;
// all lookups are keyed by user or organization id, never by process-global
// state, so concurrent requests for different tenants cannot interfere.
type Repository struct {
	client *bigquery.Client
}

// NewRepository creates a repository with a shared BigQuery client.
func NewRepository(ctx context.Context) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID())
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client}, nil
}

// Close releases the BigQuery client.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) table(name string) *bigquery.Table {
	return r.client.Dataset(datasetID).Table(name)
}

// runDML executes a parameterized DML statement and waits for completion.
func (r *Repository) runDML(ctx context.Context, query string, params []bigquery.QueryParameter) error {
	q := r.client.Query(query)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
