package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeDetectFile represents a subscription detection job over one
	// uploaded file.
	JobTypeDetectFile JobType = "detect_file"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// DetectFileJob represents a job to run the detection pipeline over an
// uploaded file stored in GCS.
type DetectFileJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// UserID owns the uploaded file.
	UserID string `json:"user_id"`

	// OrgID scopes configuration, historical baseline, and the classifier.
	OrgID string `json:"org_id"`

	// FileID is the uploaded file's identifier in the files table.
	FileID string `json:"file_id"`

	// GCSURI points at the raw CSV bytes.
	GCSURI string `json:"gcs_uri"`

	// RunID is filled once the pipeline creates its detection run record.
	RunID string `json:"run_id,omitempty"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *DetectFileJob) GetID() string        { return j.JobID }
func (j *DetectFileJob) GetType() JobType     { return JobTypeDetectFile }
func (j *DetectFileJob) GetStatus() JobStatus { return j.Status }

// Publisher defines the interface for publishing jobs to a queue. The
// abstraction keeps the door open for Cloud Tasks or Pub/Sub behind the same
// call sites.
type Publisher interface {
	PublishDetectFile(ctx context.Context, job *DetectFileJob) error
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs; handler is called for each one.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job failed and
// eligible for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore stores and retrieves job status so callers can poll progress.
type JobStore interface {
	SaveJob(ctx context.Context, job *DetectFileJob) error
	GetJob(ctx context.Context, jobID string) (*DetectFileJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*DetectFileJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	FileID string
	UserID string
	Status JobStatus
	Limit  int
	Offset int
}
