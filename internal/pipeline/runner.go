package pipeline

import (
	"context"

	"github.com/dvloznov/subtrack/internal/config"
	"github.com/dvloznov/subtrack/internal/logger"
)

// ConfigSource resolves the effective detection configuration for an
// organization.
type ConfigSource interface {
	DetectionConfig(ctx context.Context, orgID string) (config.Detection, error)
}

// FileStatusUpdater moves an uploaded file through its detection statuses.
type FileStatusUpdater interface {
	UpdateDetectionStatus(ctx context.Context, fileID, status string) error
}

// LabelerFactory builds the labeler for one run. Detection runs for different
// organizations may label with different models, so the labeler is resolved
// per run rather than fixed at startup.
type LabelerFactory func(ctx context.Context, orgID string, cfg config.Detection) Labeler

// Runner wires configuration lookup, labeler selection, and file status
// bookkeeping around the detection pipeline. It is the single entry point the
// job handler and the CLI both call.
type Runner struct {
	Deps     Deps
	Configs  ConfigSource
	Files    FileStatusUpdater
	Labelers LabelerFactory
}

// Detect runs the full detection pipeline for one uploaded file.
func (r *Runner) Detect(ctx context.Context, userID, orgID, fileID, gcsURI string) error {
	log := logger.FromContext(ctx)

	cfg := config.DefaultDetection()
	if r.Configs != nil {
		loaded, err := r.Configs.DetectionConfig(ctx, orgID)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	deps := r.Deps
	if r.Labelers != nil {
		deps.Labeler = r.Labelers(ctx, orgID, cfg)
	}

	r.updateStatus(ctx, fileID, "RUNNING")

	state := &State{
		UserID: userID,
		OrgID:  orgID,
		FileID: fileID,
		GCSURI: gcsURI,
		Config: cfg,
	}

	if err := NewDetectionPipeline(deps).Execute(ctx, state); err != nil {
		r.updateStatus(ctx, fileID, "FAILED")
		return err
	}

	r.updateStatus(ctx, fileID, "SUCCESS")

	log.Info().
		Str("file_id", fileID).
		Str("run_id", state.RunID).
		Int("records", len(state.Records)).
		Msg("Detection run completed")

	return nil
}

func (r *Runner) updateStatus(ctx context.Context, fileID, status string) {
	if r.Files == nil {
		return
	}
	if err := r.Files.UpdateDetectionStatus(ctx, fileID, status); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("file_id", fileID).
			Str("status", status).
			Msg("Failed to update file detection status")
	}
}
