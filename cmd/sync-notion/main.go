package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	infraBQ "github.com/dvloznov/subtrack/internal/infra/bigquery"
	"github.com/dvloznov/subtrack/internal/logger"
	"github.com/dvloznov/subtrack/internal/notionsync"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	userID := flag.String("user", "", "User id whose detection results to sync")
	orgID := flag.String("org", "", "Organization id whose subscriptions to sync")
	fileID := flag.String("file-id", "", "Narrow the results sync to one uploaded file")
	notionToken := flag.String("notion-token", os.Getenv("NOTION_TOKEN"), "Notion API token (or set NOTION_TOKEN env)")
	resultsDBID := flag.String("results-db-id", "", "Notion database ID for detection results")
	subsDBID := flag.String("subscriptions-db-id", "", "Notion database ID for validated subscriptions")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *resultsDBID == "" && *subsDBID == "" {
		log.Fatal().Msg("Error: at least one of --results-db-id or --subscriptions-db-id is required")
	}
	if *resultsDBID != "" && *userID == "" {
		log.Fatal().Msg("Error: --user is required when syncing results")
	}
	if *subsDBID != "" && *orgID == "" {
		log.Fatal().Msg("Error: --org is required when syncing subscriptions")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("user_id", *userID).
		Str("org_id", *orgID).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	// Initialize storage repository
	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage repository")
	}
	defer repo.Close()

	// Initialize Notion client
	notionClient := notionsync.NewNotionClient(*notionToken)

	if *resultsDBID != "" {
		if err := notionsync.SyncRecurrenceResults(ctx, repo, notionClient, *resultsDBID, *userID, *fileID, *dryRun); err != nil {
			log.Fatal().Err(err).Msg("Results sync failed")
		}
	}

	if *subsDBID != "" {
		if err := notionsync.SyncSubscriptions(ctx, repo, notionClient, *subsDBID, *orgID, *dryRun); err != nil {
			log.Fatal().Err(err).Msg("Subscriptions sync failed")
		}
	}

	fmt.Println("Sync completed successfully.")
}
