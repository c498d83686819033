package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/subtrack/internal/classifier"
	"github.com/dvloznov/subtrack/internal/config"
	"github.com/dvloznov/subtrack/internal/enrich"
	"github.com/dvloznov/subtrack/internal/gcsuploader"
	infraBQ "github.com/dvloznov/subtrack/internal/infra/bigquery"
	"github.com/dvloznov/subtrack/internal/jobs"
	"github.com/dvloznov/subtrack/internal/jobs/inmemory"
	"github.com/dvloznov/subtrack/internal/logger"
	"github.com/dvloznov/subtrack/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	bucket := flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket holding uploads and models (or set GCS_BUCKET env)")
	flag.Parse()

	// Initialize logger
	log := logger.New()

	if *bucket == "" {
		log.Fatal().Msg("No GCS bucket configured - set GCS_BUCKET or pass -bucket")
	}

	log.Info().Msg("Starting worker service")

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage repository")
	}
	defer repo.Close()

	registry := classifier.NewRegistry(gcsuploader.NewModelStore(*bucket))

	var enricher pipeline.Enricher
	if gemini, err := enrich.NewGeminiEnricher(ctx); err != nil {
		log.Warn().Err(err).Msg("Enrichment disabled, could not create Gemini client")
	} else {
		cached, err := enrich.NewCachedEnricher(gemini, 24*time.Hour)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create enrichment cache")
		}
		defer cached.Close()
		enricher = cached
	}

	runner := &pipeline.Runner{
		Deps: pipeline.Deps{
			Storage:       gcsuploader.NewGCSStorageService(),
			Enricher:      enricher,
			Subscriptions: repo,
			Results:       repo,
			Runs:          repo,
		},
		Configs: repo,
		Files:   repo,
		Labelers: func(ctx context.Context, orgID string, cfg config.Detection) pipeline.Labeler {
			if _, err := registry.Model(ctx, orgID); err == nil {
				return &classifier.Labeler{Registry: registry, OrgID: orgID}
			}
			return &pipeline.RuleLabeler{Keywords: cfg.CategoryKeywords}
		},
	}

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	// Create job handler that processes detection jobs
	handler := func(ctx context.Context, job jobs.Job) error {
		detectJob, ok := job.(*jobs.DetectFileJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", detectJob.JobID).
			Str("file_id", detectJob.FileID).
			Str("gcs_uri", detectJob.GCSURI).
			Msg("Processing detection job")

		err := runner.Detect(ctx, detectJob.UserID, detectJob.OrgID, detectJob.FileID, detectJob.GCSURI)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", detectJob.JobID).
				Str("file_id", detectJob.FileID).
				Msg("Detection run failed")
			return err
		}

		log.Info().
			Str("job_id", detectJob.JobID).
			Str("file_id", detectJob.FileID).
			Msg("Detection run completed successfully")

		return nil
	}

	// Start consuming jobs
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Cancel context to stop workers
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
