package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/subtrack/internal/config"
	"google.golang.org/api/iterator"
)

// FetchKeywords returns the organization's category-keyword table.
// An empty map with nil error means the organization has no overrides.
func (r *Repository) FetchKeywords(ctx context.Context, orgID string) (map[string][]string, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT org_id, category, keyword
		FROM %s.category_keywords
		WHERE org_id = @org_id
		ORDER BY category, keyword
	`, datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "org_id", Value: orgID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchKeywords: query read: %w", err)
	}

	keywords := make(map[string][]string)
	for {
		var row KeywordRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FetchKeywords: iter next: %w", err)
		}
		keywords[row.Category] = append(keywords[row.Category], row.Keyword)
	}

	return keywords, nil
}

// AddKeyword appends a keyword under a category for the organization.
func (r *Repository) AddKeyword(ctx context.Context, orgID, category, keyword string) error {
	row := &KeywordRow{OrgID: orgID, Category: category, Keyword: keyword}
	if err := r.table("category_keywords").Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("AddKeyword: inserting row: %w", err)
	}
	return nil
}

// FetchThresholds returns the organization's renewal threshold overrides in
// ascending day order. Nil with nil error means no overrides exist.
func (r *Repository) FetchThresholds(ctx context.Context, orgID string) ([]config.PatternThreshold, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT org_id, pattern, days
		FROM %s.renewal_thresholds
		WHERE org_id = @org_id
		ORDER BY days
	`, datasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "org_id", Value: orgID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchThresholds: query read: %w", err)
	}

	var thresholds []config.PatternThreshold
	for {
		var row ThresholdRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FetchThresholds: iter next: %w", err)
		}
		thresholds = append(thresholds, config.PatternThreshold{
			Pattern: row.Pattern,
			Days:    int(row.Days),
		})
	}

	return thresholds, nil
}

// UpdateThreshold upserts one renewal threshold override.
func (r *Repository) UpdateThreshold(ctx context.Context, orgID, pattern string, days int) error {
	err := r.runDML(ctx, fmt.Sprintf(`
		MERGE %s.renewal_thresholds t
		USING (SELECT @org_id AS org_id, @pattern AS pattern, @days AS days) s
		ON t.org_id = s.org_id AND t.pattern = s.pattern
		WHEN MATCHED THEN UPDATE SET days = s.days
		WHEN NOT MATCHED THEN INSERT (org_id, pattern, days) VALUES (s.org_id, s.pattern, s.days)
	`, datasetID), []bigquery.QueryParameter{
		{Name: "org_id", Value: orgID},
		{Name: "pattern", Value: pattern},
		{Name: "days", Value: int64(days)},
	})
	if err != nil {
		return fmt.Errorf("UpdateThreshold: %w", err)
	}
	return nil
}

// DetectionConfig returns the organization's effective detection config:
// built-in defaults with stored keyword and threshold overrides applied.
func (r *Repository) DetectionConfig(ctx context.Context, orgID string) (config.Detection, error) {
	cfg := config.DefaultDetection()

	keywords, err := r.FetchKeywords(ctx, orgID)
	if err != nil {
		return config.Detection{}, fmt.Errorf("DetectionConfig: %w", err)
	}
	if len(keywords) > 0 {
		cfg.CategoryKeywords = keywords
	}

	thresholds, err := r.FetchThresholds(ctx, orgID)
	if err != nil {
		return config.Detection{}, fmt.Errorf("DetectionConfig: %w", err)
	}
	if len(thresholds) > 0 {
		cfg.PatternThresholds = thresholds
	}

	return cfg, nil
}
