package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/subtrack/internal/config"
	"github.com/dvloznov/subtrack/internal/gcsuploader"
	infraBQ "github.com/dvloznov/subtrack/internal/infra/bigquery"
	"github.com/dvloznov/subtrack/internal/logger"
	"github.com/dvloznov/subtrack/internal/pipeline"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runDetect(log)
	case "upload":
		runUpload(log)
	case "results":
		runResults(log)
	case "savings":
		runSavings(log)
	case "trends":
		runTrends(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Subtrack CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  detect <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Detect recurring subscriptions in a local CSV file")
	fmt.Println("  upload    Upload a transaction CSV to GCS and register it")
	fmt.Println("  results   List stored detection results for a user")
	fmt.Println("  savings   Estimate savings from cancelled subscriptions")
	fmt.Println("  trends    Print per-month spending totals for a local CSV file")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'detect <command> -h' for more information on a command.")
}

// runDetect runs the detection stages over a local CSV, entirely offline: no
// storage, no enrichment, keyword labeling only.
func runDetect(log zerolog.Logger) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local CSV file")
	mode := fs.String("mode", string(config.ThresholdModeGeneric), "Threshold mode: generic or pattern")
	threshold := fs.Int("threshold", config.DefaultGenericThresholdDays, "Generic threshold in days")
	recurringOnly := fs.Bool("recurring-only", false, "Print recurring rows only")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read file")
	}

	cfg := config.DefaultDetection()
	cfg.Mode = config.ThresholdMode(*mode)
	cfg.GenericThresholdDays = *threshold

	raw, err := pipeline.ParseCSV(data)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse CSV")
	}

	txs, err := pipeline.Validate(raw, cfg.RequiredColumns)
	if err != nil {
		log.Fatal().Err(err).Msg("Validation failed")
	}

	txs = pipeline.ResolveMerchants(txs, cfg.MerchantRules)

	records, err := pipeline.DetectRecurring(txs, nil, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Detection failed")
	}

	ctx := logger.WithContext(context.Background(), log)
	labeler := &pipeline.RuleLabeler{Keywords: cfg.CategoryKeywords}
	if err := labeler.Label(ctx, records); err != nil {
		log.Fatal().Err(err).Msg("Labeling failed")
	}

	var recurring int
	for _, rec := range records {
		if rec.IsRecurring {
			recurring++
		}
	}

	fmt.Printf("\n=== Detection (%d rows, %d recurring) ===\n", len(records), recurring)
	for i, rec := range records {
		if *recurringOnly && !rec.IsRecurring {
			continue
		}
		fmt.Printf("\n%d. %s\n", i+1, rec.Description)
		fmt.Printf("   Date:      %s\n", rec.Date.Format("2006-01-02"))
		fmt.Printf("   Amount:    %.2f\n", rec.Amount)
		fmt.Printf("   Merchant:  %s\n", rec.MerchantName())
		fmt.Printf("   Recurring: %t\n", rec.IsRecurring)
		if rec.IntervalDays != nil {
			fmt.Printf("   Interval:  %d days\n", *rec.IntervalDays)
		}
		if rec.Pattern != "" {
			fmt.Printf("   Pattern:   %s\n", rec.Pattern)
		}
		fmt.Printf("   Category:  %s\n", rec.PredictedCategory)
	}
	fmt.Println()
}

// runTrends prints per-calendar-month spending totals for a local CSV.
func runTrends(log zerolog.Logger) {
	fs := flag.NewFlagSet("trends", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local CSV file")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read file")
	}

	cfg := config.DefaultDetection()

	raw, err := pipeline.ParseCSV(data)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse CSV")
	}

	txs, err := pipeline.Validate(raw, cfg.RequiredColumns)
	if err != nil {
		log.Fatal().Err(err).Msg("Validation failed")
	}

	totals := pipeline.SpendingTrends(txs)

	fmt.Printf("\n=== Spending trends (%d months) ===\n", len(totals))
	for _, total := range totals {
		fmt.Printf("  %04d-%02d  %10.2f\n", total.Year, int(total.Month), total.Total)
	}
	fmt.Println()
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket name")
	filePath := fs.String("file", "", "Path to local CSV file")
	userID := fs.String("user", "", "User id owning the upload")
	orgID := fs.String("org", "", "Organization id")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" || *userID == "" {
		log.Fatal().Msg("Usage: detect upload -bucket NAME -file PATH -user ID [-org ID]")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	filename := filepath.Base(*filePath)
	fileID := uuid.NewString()
	objectName := fmt.Sprintf("uploads/%s/%s", time.Now().Format("2006/01/02"), fileID+"-"+filename)
	gcsURI := fmt.Sprintf("gs://%s/%s", *bucketName, objectName)

	if err := gcsuploader.UploadBytes(ctx, *bucketName, objectName, "text/csv", data); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	row := &infraBQ.UploadedFileRow{
		FileID:          fileID,
		UserID:          *userID,
		OrgID:           *orgID,
		FileName:        filename,
		GCSURI:          gcsURI,
		UploadTS:        time.Now(),
		DetectionStatus: "PENDING",
	}
	if err := repo.InsertUploadedFile(ctx, row); err != nil {
		log.Fatal().Err(err).Msg("Failed to register upload")
	}

	fmt.Printf("Uploaded %s to %s (file_id %s)\n", *filePath, gcsURI, fileID)
}

func runResults(log zerolog.Logger) {
	fs := flag.NewFlagSet("results", flag.ExitOnError)
	userID := fs.String("user", "", "User id")
	fileID := fs.String("file-id", "", "Narrow to one uploaded file")
	recurringOnly := fs.Bool("recurring-only", false, "Recurring rows only")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	ctx := logger.WithContext(context.Background(), log)

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	results, err := repo.ListRecurrenceResults(ctx, *userID, *fileID, *recurringOnly)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list results")
	}

	fmt.Printf("\n=== Results (%d) ===\n", len(results))
	for i, row := range results {
		fmt.Printf("\n%d. %s\n", i+1, row.Description)
		fmt.Printf("   Date:      %s\n", row.Date)
		fmt.Printf("   Amount:    %.2f\n", row.Amount)
		fmt.Printf("   Merchant:  %s\n", row.Merchant)
		fmt.Printf("   Recurring: %t\n", row.IsRecurring)
		if row.Pattern != "" {
			fmt.Printf("   Pattern:   %s\n", row.Pattern)
		}
		if row.PredictedCategory != "" {
			fmt.Printf("   Category:  %s\n", row.PredictedCategory)
		}
		if row.MerchantInfo != "" {
			fmt.Printf("   Info:      %s\n", row.MerchantInfo)
		}
	}
	fmt.Println()
}

func runSavings(log zerolog.Logger) {
	fs := flag.NewFlagSet("savings", flag.ExitOnError)
	userID := fs.String("user", "", "User id")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	ctx := logger.WithContext(context.Background(), log)

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	cancelled, err := repo.ListCancelledSubscriptions(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list cancelled subscriptions")
	}

	estimates := pipeline.EstimateSavings(cancelled, time.Now())

	var total float64
	fmt.Printf("\n=== Savings (%d cancelled subscriptions) ===\n", len(estimates))
	for _, est := range estimates {
		fmt.Printf("  %-30s %10.2f\n", est.Merchant, est.AmountSaved)
		total += est.AmountSaved
	}
	fmt.Printf("  %-30s %10.2f\n", "TOTAL", total)
	fmt.Println()
}
