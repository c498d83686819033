package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/subtrack/internal/api/handlers"
	"github.com/dvloznov/subtrack/internal/api/middleware"
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

	// Parse command-line flags
	var (
		port   = flag.String("port", "8080", "HTTP server port")
		bucket = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket name for file uploads and models (or set GCS_BUCKET env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	if *bucket == "" {
		log.Fatal().Msg("No GCS bucket configured - set GCS_BUCKET or pass -bucket")
	}

	ctx := logger.WithContext(context.Background(), log)

	// Initialize storage repository
	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage repository")
	}
	defer repo.Close()

	// Classifier registry, persisted per organization in GCS
	registry := classifier.NewRegistry(gcsuploader.NewModelStore(*bucket))

	// Merchant enrichment. Optional: when the client cannot start the
	// pipeline runs without merchant info rather than failing uploads.
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

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

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
			// Trained model when one exists, keyword rules otherwise.
			if _, err := registry.Model(ctx, orgID); err == nil {
				return &classifier.Labeler{Registry: registry, OrgID: orgID}
			}
			return &pipeline.RuleLabeler{Keywords: cfg.CategoryKeywords}
		},
	}

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
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

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	filesHandler := handlers.NewFilesHandler(repo, jobQueue, *bucket, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)
	subscriptionsHandler := handlers.NewSubscriptionsHandler(repo, log)
	savingsHandler := handlers.NewSavingsHandler(repo, log)
	modelsHandler := handlers.NewModelsHandler(repo, registry, log)
	configHandler := handlers.NewConfigHandler(repo, log)

	// Create router
	mux := http.NewServeMux()

	// Files endpoints
	mux.HandleFunc("/api/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			filesHandler.ListFiles(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/files/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			filesHandler.UploadFile(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/files/detect", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			filesHandler.EnqueueDetection(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Subscriptions and feedback endpoints
	mux.HandleFunc("/api/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			subscriptionsHandler.ListSubscriptions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/feedback", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			subscriptionsHandler.SubmitFeedback(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Savings endpoint
	mux.HandleFunc("/api/savings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			savingsHandler.EstimateSavings(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Model endpoints
	mux.HandleFunc("/api/models/train", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			modelsHandler.TrainModel(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/models/predict", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			modelsHandler.PredictCategories(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Config endpoints
	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			configHandler.GetConfig(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/config/keywords", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			configHandler.AddKeyword(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/config/thresholds", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			configHandler.UpdateThreshold(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
