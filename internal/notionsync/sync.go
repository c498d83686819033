package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/subtrack/internal/infra/bigquery"
	"github.com/dvloznov/subtrack/internal/logger"
	"github.com/jomei/notionapi"
)

const (
	// BatchSize defines the number of rows to process in a single batch
	BatchSize = 100
)

// ResultSource provides the stored detection output the sync mirrors to Notion.
type ResultSource interface {
	ListRecurrenceResults(ctx context.Context, userID, fileID string, recurringOnly bool) ([]*bigquery.RecurrenceResultRow, error)
}

// SubscriptionRowSource provides the validated subscriptions the sync mirrors
// to Notion.
type SubscriptionRowSource interface {
	ListValidatedSubscriptionRows(ctx context.Context, orgID string) ([]*bigquery.ValidatedSubscriptionRow, error)
}

// SyncRecurrenceResults mirrors a user's stored detection results to a Notion
// database. This function:
// 1. Queries all existing pages in the Notion database
// 2. Deletes stale pages (result IDs no longer in the stored set)
// 3. Creates pages for results not yet in Notion
// Notion is a mirror of storage, never the other way around.
func SyncRecurrenceResults(ctx context.Context, source ResultSource, notionClient NotionService, notionDBID, userID, fileID string, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Str("user_id", userID).
		Str("file_id", fileID).
		Bool("dry_run", dryRun).
		Msg("Starting recurrence results sync to Notion")

	results, err := source.ListRecurrenceResults(ctx, userID, fileID, false)
	if err != nil {
		return fmt.Errorf("failed to query recurrence results: %w", err)
	}

	log.Info().Int("result_count", len(results)).Msg("Retrieved recurrence results from storage")

	validResultIDs := make(map[string]bool)
	for _, row := range results {
		validResultIDs[row.ResultID] = true
	}

	log.Info().Msg("Querying existing pages from Notion")
	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("failed to query Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	existingResultIDs := make(map[string]bool)
	for _, page := range notionPages {
		resultID := extractResultID(page)
		if resultID != "" {
			existingResultIDs[resultID] = true
		}
	}

	deleted := deleteStalePages(ctx, notionClient, notionPages, extractResultID, validResultIDs, dryRun)
	if deleted > 0 {
		log.Info().Int("deleted", deleted).Msg("Deleted stale result pages from Notion")
	}

	var created, skipped int
	for i := 0; i < len(results); i += BatchSize {
		end := i + BatchSize
		if end > len(results) {
			end = len(results)
		}

		batch := results[i:end]
		log.Info().
			Int("batch_start", i).
			Int("batch_end", end).
			Int("batch_size", len(batch)).
			Msg("Processing batch")

		for _, row := range batch {
			if existingResultIDs[row.ResultID] {
				skipped++
				continue
			}

			if dryRun {
				log.Info().
					Str("result_id", row.ResultID).
					Msg("[DRY RUN] Would create Notion page for result")
				created++
				continue
			}

			props := RecurrenceResultToNotionProperties(row)

			page, err := notionClient.CreatePage(ctx, notionDBID, props)
			if err != nil {
				log.Warn().
					Err(err).
					Str("result_id", row.ResultID).
					Msg("Failed to create Notion page for result")
				continue
			}
			log.Info().
				Str("result_id", row.ResultID).
				Str("page_id", string(page.ID)).
				Msg("Created Notion page for result")
			created++
		}
	}

	log.Info().
		Int("deleted", deleted).
		Int("created", created).
		Int("skipped", skipped).
		Int("total", len(results)).
		Msg("Recurrence results sync completed")

	return nil
}

// SyncSubscriptions mirrors an organization's validated subscriptions to a
// Notion database. Deletes stale pages and creates missing ones.
func SyncSubscriptions(ctx context.Context, source SubscriptionRowSource, notionClient NotionService, notionDBID, orgID string, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Str("org_id", orgID).
		Bool("dry_run", dryRun).
		Msg("Starting subscriptions sync to Notion")

	subs, err := source.ListValidatedSubscriptionRows(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to query validated subscriptions: %w", err)
	}

	log.Info().Int("subscription_count", len(subs)).Msg("Retrieved validated subscriptions from storage")

	validSubscriptionIDs := make(map[string]bool)
	for _, row := range subs {
		validSubscriptionIDs[row.SubscriptionID] = true
	}

	log.Info().Msg("Querying existing pages from Notion")
	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("failed to query Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	existingSubscriptionIDs := make(map[string]bool)
	for _, page := range notionPages {
		subID := extractSubscriptionID(page)
		if subID != "" {
			existingSubscriptionIDs[subID] = true
		}
	}

	deleted := deleteStalePages(ctx, notionClient, notionPages, extractSubscriptionID, validSubscriptionIDs, dryRun)
	if deleted > 0 {
		log.Info().Int("deleted", deleted).Msg("Deleted stale subscription pages from Notion")
	}

	var created, skipped int
	for _, row := range subs {
		if existingSubscriptionIDs[row.SubscriptionID] {
			skipped++
			continue
		}

		if dryRun {
			log.Info().
				Str("subscription_id", row.SubscriptionID).
				Msg("[DRY RUN] Would create Notion page for subscription")
			created++
			continue
		}

		props := SubscriptionToNotionProperties(row)

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().
				Err(err).
				Str("subscription_id", row.SubscriptionID).
				Msg("Failed to create Notion page for subscription")
			continue
		}

		log.Info().
			Str("subscription_id", row.SubscriptionID).
			Str("page_id", string(page.ID)).
			Msg("Created Notion page for subscription")
		created++
	}

	log.Info().
		Int("deleted", deleted).
		Int("created", created).
		Int("skipped", skipped).
		Int("total", len(subs)).
		Msg("Subscriptions sync completed")

	return nil
}

// deleteStalePages archives pages whose key is empty or no longer in the valid
// set. Failures are logged and skipped so one bad page cannot stall the sync.
func deleteStalePages(ctx context.Context, notionClient NotionService, pages []notionapi.Page, extractKey func(notionapi.Page) string, valid map[string]bool, dryRun bool) int {
	log := logger.FromContext(ctx)

	var deleted int
	for _, page := range pages {
		key := extractKey(page)
		if key != "" && valid[key] {
			continue
		}

		if dryRun {
			log.Info().
				Str("key", key).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would delete stale Notion page")
			deleted++
			continue
		}

		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("key", key).
				Str("page_id", string(page.ID)).
				Msg("Failed to delete stale Notion page")
			continue
		}
		log.Info().
			Str("key", key).
			Str("page_id", string(page.ID)).
			Msg("Deleted stale Notion page")
		deleted++
	}

	return deleted
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
