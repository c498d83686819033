package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dvloznov/subtrack/internal/config"
	"github.com/dvloznov/subtrack/internal/domain"
	"github.com/dvloznov/subtrack/internal/pipeline"
)

// MockStorageService is a mock blob store for pipeline tests.
type MockStorageService struct {
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return m.FetchFromGCSFunc(ctx, gcsURI)
}

func (m *MockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return "test.csv"
}

// MockSubscriptionSource returns a fixed merchant baseline.
type MockSubscriptionSource struct {
	Merchants []string
	Err       error
}

func (m *MockSubscriptionSource) ListValidatedMerchants(ctx context.Context, orgID string) ([]string, error) {
	return m.Merchants, m.Err
}

// MockResultSink captures persisted records.
type MockResultSink struct {
	UserID  string
	FileID  string
	RunID   string
	Records []domain.RecurrenceRecord
	Err     error
}

func (m *MockResultSink) InsertRecurrenceRecords(ctx context.Context, userID, fileID, runID string, records []domain.RecurrenceRecord) error {
	m.UserID = userID
	m.FileID = fileID
	m.RunID = runID
	m.Records = records
	return m.Err
}

// MockRunRecorder tracks run bookkeeping calls.
type MockRunRecorder struct {
	StartedFileID string
	FailedRunID   string
	FailedErr     error
	SucceededID   string
}

func (m *MockRunRecorder) StartDetectionRun(ctx context.Context, fileID string) (string, error) {
	m.StartedFileID = fileID
	return "run-1", nil
}

func (m *MockRunRecorder) MarkDetectionRunFailed(ctx context.Context, runID string, runErr error) {
	m.FailedRunID = runID
	m.FailedErr = runErr
}

func (m *MockRunRecorder) MarkDetectionRunSucceeded(ctx context.Context, runID string) error {
	m.SucceededID = runID
	return nil
}

// MockEnricher fails for configured merchants and counts calls.
type MockEnricher struct {
	Calls   map[string]int
	FailFor map[string]bool
}

func (m *MockEnricher) Enrich(ctx context.Context, text string) (string, error) {
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[text]++
	if m.FailFor[text] {
		return "", errors.New("lookup failed")
	}
	return "info about " + text, nil
}

const testCSV = "Date,Amount,Description\n" +
	"2026-01-01,9.99,Netflix monthly\n" +
	"2026-01-31,9.99,Netflix monthly\n" +
	"2026-01-05,4.99,Spotify family\n" +
	"2026-02-04,4.99,Spotify family\n" +
	"2026-01-15,52.10,groceries\n"

func testDeps() (pipeline.Deps, *MockResultSink, *MockRunRecorder, *MockEnricher) {
	sink := &MockResultSink{}
	runs := &MockRunRecorder{}
	enricher := &MockEnricher{FailFor: map[string]bool{"Spotify": true}}

	deps := pipeline.Deps{
		Storage: &MockStorageService{
			FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
				return []byte(testCSV), nil
			},
		},
		Enricher:      enricher,
		Subscriptions: &MockSubscriptionSource{Merchants: []string{"Netflix"}},
		Results:       sink,
		Runs:          runs,
		Labeler:       &pipeline.RuleLabeler{Keywords: config.DefaultDetection().CategoryKeywords},
	}
	return deps, sink, runs, enricher
}

func TestDetectionPipeline_EndToEnd(t *testing.T) {
	deps, sink, runs, enricher := testDeps()

	state := &pipeline.State{
		UserID: "user-1",
		OrgID:  "org-1",
		FileID: "file-1",
		GCSURI: "gs://bucket/test.csv",
		Config: config.DefaultDetection(),
	}

	err := pipeline.NewDetectionPipeline(deps).Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if runs.StartedFileID != "file-1" {
		t.Errorf("run started for %q, want file-1", runs.StartedFileID)
	}
	if runs.SucceededID != "run-1" {
		t.Errorf("run %q marked succeeded, want run-1", runs.SucceededID)
	}
	if runs.FailedRunID != "" {
		t.Errorf("run unexpectedly marked failed: %v", runs.FailedErr)
	}

	if sink.RunID != "run-1" || sink.UserID != "user-1" || sink.FileID != "file-1" {
		t.Errorf("persisted with run=%q user=%q file=%q", sink.RunID, sink.UserID, sink.FileID)
	}
	if len(sink.Records) != 5 {
		t.Fatalf("persisted %d records, want 5", len(sink.Records))
	}

	byDesc := make(map[string]domain.RecurrenceRecord)
	var recurring int
	for _, rec := range sink.Records {
		if rec.IsRecurring {
			recurring++
			byDesc[rec.Description] = rec
		}
	}
	if recurring != 2 {
		t.Errorf("got %d recurring records, want 2 (second Netflix and Spotify charges)", recurring)
	}

	netflix := byDesc["Netflix monthly"]
	if netflix.IsNewSubscription != domain.TriNo {
		t.Errorf("Netflix new-subscription = %q, want %q", netflix.IsNewSubscription, domain.TriNo)
	}
	if netflix.MerchantInfo != "info about Netflix" {
		t.Errorf("Netflix merchant info = %q", netflix.MerchantInfo)
	}
	if netflix.PredictedCategory != "Entertainment" {
		t.Errorf("Netflix category = %q, want Entertainment", netflix.PredictedCategory)
	}

	spotify := byDesc["Spotify family"]
	if spotify.IsNewSubscription != domain.TriYes {
		t.Errorf("Spotify new-subscription = %q, want %q", spotify.IsNewSubscription, domain.TriYes)
	}
	// Enrichment failed for Spotify; rows keep empty info, the run continues.
	if spotify.MerchantInfo != "" {
		t.Errorf("Spotify merchant info = %q, want empty after failed lookup", spotify.MerchantInfo)
	}

	// One enrichment call per distinct merchant, not per row.
	if enricher.Calls["Netflix"] != 1 {
		t.Errorf("Netflix enriched %d times, want 1", enricher.Calls["Netflix"])
	}
}

func TestDetectionPipeline_SchemaFailureMarksRunFailed(t *testing.T) {
	deps, sink, runs, _ := testDeps()
	deps.Storage = &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			return []byte("Amount,Description\n9.99,Netflix\n"), nil
		},
	}

	state := &pipeline.State{
		UserID: "user-1",
		FileID: "file-1",
		GCSURI: "gs://bucket/bad.csv",
		Config: config.DefaultDetection(),
	}

	err := pipeline.NewDetectionPipeline(deps).Execute(context.Background(), state)
	if err == nil {
		t.Fatal("Execute() succeeded on a file missing the Date column")
	}

	var schemaErr *pipeline.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Errorf("error = %v, want *SchemaError in the chain", err)
	}

	if runs.FailedRunID != "run-1" {
		t.Errorf("failed run id = %q, want run-1", runs.FailedRunID)
	}
	if runs.SucceededID != "" {
		t.Errorf("run marked succeeded despite failure")
	}
	if sink.Records != nil {
		t.Errorf("records persisted despite failure")
	}
}

func TestDetectionPipeline_FetchFailureBeforeRunStartsNothingPersisted(t *testing.T) {
	deps, sink, runs, _ := testDeps()
	deps.Storage = &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			return nil, fmt.Errorf("object missing")
		},
	}

	state := &pipeline.State{
		FileID: "file-1",
		GCSURI: "gs://bucket/missing.csv",
		Config: config.DefaultDetection(),
	}

	err := pipeline.NewDetectionPipeline(deps).Execute(context.Background(), state)
	if err == nil {
		t.Fatal("Execute() succeeded with a failing blob store")
	}
	if sink.Records != nil {
		t.Errorf("records persisted despite fetch failure")
	}
	// The run record exists by the time fetch runs, so it must be failed.
	if runs.FailedRunID != "run-1" {
		t.Errorf("failed run id = %q, want run-1", runs.FailedRunID)
	}
}

func TestDetectionPipeline_NilEnricherAndLabeler(t *testing.T) {
	deps, sink, _, _ := testDeps()
	deps.Enricher = nil
	deps.Labeler = nil

	state := &pipeline.State{
		FileID: "file-1",
		GCSURI: "gs://bucket/test.csv",
		Config: config.DefaultDetection(),
	}

	if err := pipeline.NewDetectionPipeline(deps).Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(sink.Records) != 5 {
		t.Fatalf("persisted %d records, want 5", len(sink.Records))
	}
	for i, rec := range sink.Records {
		if rec.MerchantInfo != "" || rec.PredictedCategory != "" {
			t.Errorf("row %d: info=%q category=%q, want both empty", i, rec.MerchantInfo, rec.PredictedCategory)
		}
	}
}
