package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/subtrack/internal/api/middleware"
	"github.com/dvloznov/subtrack/internal/classifier"
	"github.com/dvloznov/subtrack/internal/config"
	"github.com/dvloznov/subtrack/internal/domain"
	"github.com/dvloznov/subtrack/internal/gcsuploader"
	"github.com/dvloznov/subtrack/internal/infra/bigquery"
	"github.com/dvloznov/subtrack/internal/jobs"
	"github.com/dvloznov/subtrack/internal/pipeline"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository is the slice of the storage layer the API consumes.
type Repository interface {
	InsertUploadedFile(ctx context.Context, row *bigquery.UploadedFileRow) error
	ListUploadedFiles(ctx context.Context, userID string) ([]*bigquery.UploadedFileRow, error)
	GetUploadedFile(ctx context.Context, fileID string) (*bigquery.UploadedFileRow, error)
	UpdateDetectionStatus(ctx context.Context, fileID, status string) error

	ListRecurrenceResults(ctx context.Context, userID, fileID string, recurringOnly bool) ([]*bigquery.RecurrenceResultRow, error)

	ListValidatedSubscriptions(ctx context.Context, orgID string) ([]domain.ValidatedSubscription, error)
	InsertValidatedSubscriptions(ctx context.Context, orgID, userID string, subs []domain.ValidatedSubscription) error
	ListCancelledSubscriptions(ctx context.Context, userID string) ([]domain.CancelledSubscription, error)

	FetchKeywords(ctx context.Context, orgID string) (map[string][]string, error)
	AddKeyword(ctx context.Context, orgID, category, keyword string) error
	FetchThresholds(ctx context.Context, orgID string) ([]config.PatternThreshold, error)
	UpdateThreshold(ctx context.Context, orgID, pattern string, days int) error
	DetectionConfig(ctx context.Context, orgID string) (config.Detection, error)

	InsertAppLog(ctx context.Context, action, userID, orgID string, details map[string]any)
}

// identity resolves the caller's user and organization, header first, query
// parameter as fallback.
func identity(r *http.Request) (userID, orgID string) {
	userID = r.Header.Get("X-User-ID")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	orgID = r.Header.Get("X-Org-ID")
	if orgID == "" {
		orgID = r.URL.Query().Get("org_id")
	}
	return userID, orgID
}

// FilesHandler handles uploaded-file endpoints.
type FilesHandler struct {
	repo      Repository
	publisher jobs.Publisher
	bucket    string
	log       zerolog.Logger
}

// NewFilesHandler creates a new files handler.
func NewFilesHandler(repo Repository, publisher jobs.Publisher, bucket string, log zerolog.Logger) *FilesHandler {
	return &FilesHandler{
		repo:      repo,
		publisher: publisher,
		bucket:    bucket,
		log:       log,
	}
}

// ListFiles handles GET /api/files
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _ := identity(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user id is required")
		return
	}

	files, err := h.repo.ListUploadedFiles(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list uploaded files")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list files")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"files": files,
		"count": len(files),
	})
}

// UploadFile handles POST /api/files/upload?filename=...
// The request body carries the raw CSV bytes; they go to GCS untouched and
// only metadata lands in storage. Validation happens later, inside the
// detection run, so a schema-broken file still uploads fine.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, orgID := identity(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user id is required")
		return
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "transactions.csv"
	}
	if idx := strings.Index(filename, "?"); idx > 0 {
		filename = filename[:idx]
	}
	filename = filepath.Base(filename)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Empty file")
		return
	}

	fileID := uuid.NewString()
	objectName := fmt.Sprintf("uploads/%s/%s", time.Now().Format("2006/01/02"), fileID+"-"+filename)
	gcsURI := fmt.Sprintf("gs://%s/%s", h.bucket, objectName)

	if err := gcsuploader.UploadBytes(ctx, h.bucket, objectName, "text/csv", data); err != nil {
		h.log.Error().Err(err).Str("gcs_uri", gcsURI).Msg("Failed to upload file to GCS")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	row := &bigquery.UploadedFileRow{
		FileID:          fileID,
		UserID:          userID,
		OrgID:           orgID,
		FileName:        filename,
		GCSURI:          gcsURI,
		UploadTS:        time.Now(),
		DetectionStatus: "PENDING",
	}
	if err := h.repo.InsertUploadedFile(ctx, row); err != nil {
		h.log.Error().Err(err).Str("file_id", fileID).Msg("Failed to insert file metadata")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save file metadata")
		return
	}

	h.repo.InsertAppLog(ctx, "upload_file", userID, orgID, map[string]any{
		"file_id":   fileID,
		"file_name": filename,
		"bytes":     len(data),
	})

	h.log.Info().
		Str("file_id", fileID).
		Str("gcs_uri", gcsURI).
		Int("bytes", len(data)).
		Msg("File uploaded")

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"file_id": fileID,
		"gcs_uri": gcsURI,
		"status":  "uploaded",
	})
}

// EnqueueDetection handles POST /api/files/detect
func (h *FilesHandler) EnqueueDetection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileID string `json:"file_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FileID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "file_id is required")
		return
	}

	ctx := r.Context()

	file, err := h.repo.GetUploadedFile(ctx, req.FileID)
	if err != nil {
		h.log.Error().Err(err).Str("file_id", req.FileID).Msg("Failed to load uploaded file")
		middleware.WriteError(w, http.StatusNotFound, "File not found")
		return
	}

	job := &jobs.DetectFileJob{
		JobID:      uuid.NewString(),
		UserID:     file.UserID,
		OrgID:      file.OrgID,
		FileID:     file.FileID,
		GCSURI:     file.GCSURI,
		Status:     jobs.JobStatusPending,
		CreatedAt:  time.Now(),
		MaxRetries: 3,
	}

	if err := h.publisher.PublishDetectFile(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue detection job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue detection job")
		return
	}

	if err := h.repo.UpdateDetectionStatus(ctx, file.FileID, "PENDING"); err != nil {
		h.log.Warn().Err(err).Str("file_id", file.FileID).Msg("Failed to update detection status")
	}

	h.repo.InsertAppLog(ctx, "enqueue_detection", file.UserID, file.OrgID, map[string]any{
		"file_id": file.FileID,
		"job_id":  job.JobID,
	})

	h.log.Info().Str("job_id", job.JobID).Str("file_id", file.FileID).Msg("Detection job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"file_id": file.FileID,
		"status":  string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		FileID: query.Get("file_id"),
		UserID: query.Get("user_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// SubscriptionsHandler serves stored detection results and the feedback loop.
type SubscriptionsHandler struct {
	repo Repository
	log  zerolog.Logger
}

// NewSubscriptionsHandler creates a new subscriptions handler.
func NewSubscriptionsHandler(repo Repository, log zerolog.Logger) *SubscriptionsHandler {
	return &SubscriptionsHandler{
		repo: repo,
		log:  log,
	}
}

// ListSubscriptions handles GET /api/subscriptions
// Optional query parameters: file_id narrows to one upload, recurring_only=true
// drops non-recurring rows.
func (h *SubscriptionsHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _ := identity(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user id is required")
		return
	}

	query := r.URL.Query()
	fileID := query.Get("file_id")
	recurringOnly := query.Get("recurring_only") == "true"

	results, err := h.repo.ListRecurrenceResults(ctx, userID, fileID, recurringOnly)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list recurrence results")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list subscriptions")
		return
	}

	if results == nil {
		results = []*bigquery.RecurrenceResultRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, results)
}

// SubmitFeedback handles POST /api/feedback
// Confirmed or corrected rows become validated subscriptions, the training
// set for the next model fit. Corrections only take effect after retraining.
func (h *SubscriptionsHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, orgID := identity(r)
	if userID == "" || orgID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user id and org id are required")
		return
	}

	var req struct {
		Subscriptions []struct {
			Merchant    string `json:"merchant"`
			Description string `json:"description"`
			Category    string `json:"category"`
		} `json:"subscriptions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Subscriptions) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "subscriptions are required")
		return
	}

	subs := make([]domain.ValidatedSubscription, 0, len(req.Subscriptions))
	for _, s := range req.Subscriptions {
		if s.Merchant == "" || s.Category == "" {
			middleware.WriteError(w, http.StatusBadRequest, "merchant and category are required on every subscription")
			return
		}
		subs = append(subs, domain.ValidatedSubscription{
			Merchant:    s.Merchant,
			Description: s.Description,
			Category:    s.Category,
		})
	}

	if err := h.repo.InsertValidatedSubscriptions(ctx, orgID, userID, subs); err != nil {
		h.log.Error().Err(err).Msg("Failed to insert validated subscriptions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save feedback")
		return
	}

	h.repo.InsertAppLog(ctx, "submit_feedback", userID, orgID, map[string]any{
		"count": len(subs),
	})

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"saved": len(subs),
	})
}

// SavingsHandler serves savings estimates for cancelled subscriptions.
type SavingsHandler struct {
	repo Repository
	log  zerolog.Logger
}

// NewSavingsHandler creates a new savings handler.
func NewSavingsHandler(repo Repository, log zerolog.Logger) *SavingsHandler {
	return &SavingsHandler{
		repo: repo,
		log:  log,
	}
}

// EstimateSavings handles GET /api/savings
// Estimates are computed fresh against the current clock on every call.
func (h *SavingsHandler) EstimateSavings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, _ := identity(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user id is required")
		return
	}

	cancelled, err := h.repo.ListCancelledSubscriptions(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list cancelled subscriptions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to estimate savings")
		return
	}

	estimates := pipeline.EstimateSavings(cancelled, time.Now())

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"estimates": estimates,
		"count":     len(estimates),
	})
}

// ModelsHandler handles classifier training and prediction.
type ModelsHandler struct {
	repo     Repository
	registry *classifier.Registry
	log      zerolog.Logger
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(repo Repository, registry *classifier.Registry, log zerolog.Logger) *ModelsHandler {
	return &ModelsHandler{
		repo:     repo,
		registry: registry,
		log:      log,
	}
}

// TrainModel handles POST /api/models/train
// Training is explicit: it happens only through this endpoint, never as a
// side effect of feedback or detection.
func (h *ModelsHandler) TrainModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, orgID := identity(r)
	if orgID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "org id is required")
		return
	}

	examples, err := h.repo.ListValidatedSubscriptions(ctx, orgID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load validated subscriptions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load training data")
		return
	}

	model, err := h.registry.Train(ctx, orgID, examples)
	if err != nil {
		var noData *classifier.NoDataError
		if errors.As(err, &noData) {
			middleware.WriteError(w, http.StatusBadRequest, noData.Error())
			return
		}
		h.log.Error().Err(err).Str("org_id", orgID).Msg("Failed to train model")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to train model")
		return
	}

	h.repo.InsertAppLog(ctx, "train_model", userID, orgID, map[string]any{
		"examples": len(examples),
		"classes":  len(model.Classes),
	})

	h.log.Info().
		Str("org_id", orgID).
		Int("examples", len(examples)).
		Int("classes", len(model.Classes)).
		Msg("Model trained")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"org_id":     orgID,
		"examples":   len(examples),
		"classes":    model.Classes,
		"trained_at": model.TrainedAt,
	})
}

// PredictCategories handles POST /api/models/predict
func (h *ModelsHandler) PredictCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, orgID := identity(r)
	if orgID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "org id is required")
		return
	}

	var req struct {
		Records []struct {
			Merchant    string `json:"merchant"`
			Description string `json:"description"`
		} `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	model, err := h.registry.Model(ctx, orgID)
	if err != nil {
		var notFound *classifier.ModelNotFoundError
		if errors.As(err, &notFound) {
			middleware.WriteError(w, http.StatusNotFound, notFound.Error())
			return
		}
		h.log.Error().Err(err).Str("org_id", orgID).Msg("Failed to load model")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load model")
		return
	}

	type prediction struct {
		Merchant    string `json:"merchant"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}
	predictions := make([]prediction, 0, len(req.Records))
	for _, rec := range req.Records {
		predictions = append(predictions, prediction{
			Merchant:    rec.Merchant,
			Description: rec.Description,
			Category:    model.Predict(rec.Merchant, rec.Description),
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": predictions,
	})
}

// ConfigHandler serves and mutates per-organization detection configuration.
type ConfigHandler struct {
	repo Repository
	log  zerolog.Logger
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(repo Repository, log zerolog.Logger) *ConfigHandler {
	return &ConfigHandler{
		repo: repo,
		log:  log,
	}
}

// GetConfig handles GET /api/config
// Returns the effective detection configuration: defaults overlaid with the
// organization's stored keywords and thresholds.
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, orgID := identity(r)
	if orgID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "org id is required")
		return
	}

	cfg, err := h.repo.DetectionConfig(ctx, orgID)
	if err != nil {
		h.log.Error().Err(err).Str("org_id", orgID).Msg("Failed to load detection config")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load config")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"mode":                   cfg.Mode,
		"generic_threshold_days": cfg.GenericThresholdDays,
		"pattern_thresholds":     cfg.PatternThresholds,
		"category_keywords":      cfg.CategoryKeywords,
		"required_columns":       cfg.RequiredColumns,
	})
}

// AddKeyword handles POST /api/config/keywords
func (h *ConfigHandler) AddKeyword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, orgID := identity(r)
	if orgID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "org id is required")
		return
	}

	var req struct {
		Category string `json:"category"`
		Keyword  string `json:"keyword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Category == "" || req.Keyword == "" {
		middleware.WriteError(w, http.StatusBadRequest, "category and keyword are required")
		return
	}

	if err := h.repo.AddKeyword(ctx, orgID, req.Category, req.Keyword); err != nil {
		h.log.Error().Err(err).Msg("Failed to add keyword")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to add keyword")
		return
	}

	h.repo.InsertAppLog(ctx, "add_keyword", userID, orgID, map[string]any{
		"category": req.Category,
		"keyword":  req.Keyword,
	})

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"category": req.Category,
		"keyword":  req.Keyword,
		"status":   "added",
	})
}

// UpdateThreshold handles PUT /api/config/thresholds
func (h *ConfigHandler) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, orgID := identity(r)
	if orgID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "org id is required")
		return
	}

	var req struct {
		Pattern string `json:"pattern"`
		Days    int    `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Pattern == "" || req.Days <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "pattern and a positive days value are required")
		return
	}

	if err := h.repo.UpdateThreshold(ctx, orgID, req.Pattern, req.Days); err != nil {
		h.log.Error().Err(err).Msg("Failed to update threshold")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update threshold")
		return
	}

	h.repo.InsertAppLog(ctx, "update_threshold", userID, orgID, map[string]any{
		"pattern": req.Pattern,
		"days":    req.Days,
	})

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"pattern": req.Pattern,
		"days":    req.Days,
		"status":  "updated",
	})
}
