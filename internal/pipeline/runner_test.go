package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/subtrack/internal/config"
	"github.com/dvloznov/subtrack/internal/pipeline"
)

// MockFileStatusUpdater records status transitions for an uploaded file.
type MockFileStatusUpdater struct {
	Statuses []string
	Err      error
}

func (m *MockFileStatusUpdater) UpdateDetectionStatus(ctx context.Context, fileID, status string) error {
	m.Statuses = append(m.Statuses, status)
	return m.Err
}

// MockConfigSource returns a fixed detection configuration.
type MockConfigSource struct {
	Cfg config.Detection
	Err error
}

func (m *MockConfigSource) DetectionConfig(ctx context.Context, orgID string) (config.Detection, error) {
	return m.Cfg, m.Err
}

func TestRunner_Detect(t *testing.T) {
	deps, sink, runs, _ := testDeps()
	files := &MockFileStatusUpdater{}
	runner := &pipeline.Runner{
		Deps:  deps,
		Files: files,
	}

	err := runner.Detect(context.Background(), "user-1", "org-1", "file-1", "gs://bucket/test.csv")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	want := []string{"RUNNING", "SUCCESS"}
	if len(files.Statuses) != len(want) || files.Statuses[0] != want[0] || files.Statuses[1] != want[1] {
		t.Errorf("statuses = %v, want %v", files.Statuses, want)
	}
	if runs.SucceededID != "run-1" {
		t.Errorf("run %q marked succeeded, want run-1", runs.SucceededID)
	}
	if len(sink.Records) != 5 {
		t.Errorf("persisted %d records, want 5", len(sink.Records))
	}
}

func TestRunner_Detect_StatusUpdateFailureIsNotFatal(t *testing.T) {
	deps, sink, _, _ := testDeps()
	files := &MockFileStatusUpdater{Err: errors.New("table unavailable")}
	runner := &pipeline.Runner{
		Deps:  deps,
		Files: files,
	}

	// Status bookkeeping is best-effort; the run itself must still complete.
	err := runner.Detect(context.Background(), "user-1", "org-1", "file-1", "gs://bucket/test.csv")
	if err != nil {
		t.Fatalf("Detect() error = %v, want success despite status update failures", err)
	}
	if len(sink.Records) != 5 {
		t.Errorf("persisted %d records, want 5", len(sink.Records))
	}
}

func TestRunner_Detect_PipelineFailureMarksFileFailed(t *testing.T) {
	deps, _, _, _ := testDeps()
	deps.Storage = &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			return []byte("Amount,Description\n9.99,Netflix\n"), nil
		},
	}
	files := &MockFileStatusUpdater{}
	runner := &pipeline.Runner{
		Deps:  deps,
		Files: files,
	}

	err := runner.Detect(context.Background(), "user-1", "org-1", "file-1", "gs://bucket/bad.csv")
	if err == nil {
		t.Fatal("Detect() succeeded on a file missing the Date column")
	}

	want := []string{"RUNNING", "FAILED"}
	if len(files.Statuses) != len(want) || files.Statuses[0] != want[0] || files.Statuses[1] != want[1] {
		t.Errorf("statuses = %v, want %v", files.Statuses, want)
	}
}

func TestRunner_Detect_ConfigSourceAndLabelerFactory(t *testing.T) {
	deps, sink, _, _ := testDeps()
	deps.Labeler = nil

	cfg := config.DefaultDetection()
	cfg.CategoryKeywords = map[string][]string{"Video": {"Netflix"}}

	var factoryOrg string
	runner := &pipeline.Runner{
		Deps:    deps,
		Configs: &MockConfigSource{Cfg: cfg},
		Labelers: func(ctx context.Context, orgID string, cfg config.Detection) pipeline.Labeler {
			factoryOrg = orgID
			return &pipeline.RuleLabeler{Keywords: cfg.CategoryKeywords}
		},
	}

	err := runner.Detect(context.Background(), "user-1", "org-1", "file-1", "gs://bucket/test.csv")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if factoryOrg != "org-1" {
		t.Errorf("labeler factory called for org %q, want org-1", factoryOrg)
	}

	// The loaded configuration flows into the labeler the factory built.
	var netflixCategory string
	for _, rec := range sink.Records {
		if rec.MerchantName() == "Netflix" {
			netflixCategory = rec.PredictedCategory
		}
	}
	if netflixCategory != "Video" {
		t.Errorf("Netflix category = %q, want Video from the loaded keyword config", netflixCategory)
	}
}

func TestRunner_Detect_ConfigLoadFailureAborts(t *testing.T) {
	deps, sink, _, _ := testDeps()
	files := &MockFileStatusUpdater{}
	runner := &pipeline.Runner{
		Deps:    deps,
		Configs: &MockConfigSource{Err: errors.New("config table unavailable")},
		Files:   files,
	}

	err := runner.Detect(context.Background(), "user-1", "org-1", "file-1", "gs://bucket/test.csv")
	if err == nil {
		t.Fatal("Detect() succeeded with a failing config source")
	}
	if len(files.Statuses) != 0 {
		t.Errorf("statuses = %v, want none before config resolves", files.Statuses)
	}
	if sink.Records != nil {
		t.Errorf("records persisted despite config failure")
	}
}
