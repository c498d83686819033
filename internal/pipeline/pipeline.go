package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/subtrack/internal/config"
	"github.com/dvloznov/subtrack/internal/domain"
	"github.com/dvloznov/subtrack/internal/logger"
)

// Step represents a single step in the detection pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State holds the shared state across all pipeline steps.
type State struct {
	UserID string
	OrgID  string
	FileID string
	GCSURI string
	RunID  string

	Config     config.Detection
	CSVBytes   []byte
	Raw        *RawDataset
	Txs        []domain.Transaction
	Historical []string
	Records    []domain.RecurrenceRecord
}

// Pipeline executes a sequence of steps in order. When a step fails after
// the run record was created, the run is marked failed with the step error;
// the error itself propagates to the caller either way.
type Pipeline struct {
	steps []Step
	runs  RunRecorder
}

// NewPipeline creates a pipeline from the given steps.
func NewPipeline(runs RunRecorder, steps ...Step) *Pipeline {
	return &Pipeline{steps: steps, runs: runs}
}

// Execute runs all steps sequentially over the shared state.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			if p.runs != nil && state.RunID != "" {
				p.runs.MarkDetectionRunFailed(ctx, state.RunID, err)
			}
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// StartRunStep creates the detection run record (status=RUNNING).
type StartRunStep struct {
	Runs RunRecorder
}

func (s *StartRunStep) Execute(ctx context.Context, state *State) error {
	runID, err := s.Runs.StartDetectionRun(ctx, state.FileID)
	if err != nil {
		return err
	}
	state.RunID = runID
	return nil
}

// FetchCSVStep fetches the uploaded file bytes from blob storage.
type FetchCSVStep struct {
	Storage StorageService
}

func (s *FetchCSVStep) Execute(ctx context.Context, state *State) error {
	data, err := s.Storage.FetchFromGCS(ctx, state.GCSURI)
	if err != nil {
		return err
	}
	state.CSVBytes = data
	return nil
}

// ParseCSVStep loads the raw bytes into the untyped staging dataset.
type ParseCSVStep struct{}

func (s *ParseCSVStep) Execute(ctx context.Context, state *State) error {
	raw, err := ParseCSV(state.CSVBytes)
	if err != nil {
		return err
	}
	state.Raw = raw
	return nil
}

// ValidateStep checks required columns and coerces rows into transactions.
// Validation failures abort the run; no schema-invalid dataset ever reaches
// the stages below.
type ValidateStep struct{}

func (s *ValidateStep) Execute(ctx context.Context, state *State) error {
	txs, err := Validate(state.Raw, state.Config.RequiredColumns)
	if err != nil {
		return err
	}
	state.Txs = txs
	return nil
}

// ResolveMerchantsStep assigns merchants to rows that lack one. A no-op for
// uploads that carried a Merchant column.
type ResolveMerchantsStep struct{}

func (s *ResolveMerchantsStep) Execute(ctx context.Context, state *State) error {
	state.Txs = ResolveMerchants(state.Txs, state.Config.MerchantRules)
	return nil
}

// FetchHistoricalStep loads the organization's validated merchant baseline.
type FetchHistoricalStep struct {
	Subscriptions SubscriptionSource
}

func (s *FetchHistoricalStep) Execute(ctx context.Context, state *State) error {
	merchants, err := s.Subscriptions.ListValidatedMerchants(ctx, state.OrgID)
	if err != nil {
		return err
	}
	state.Historical = merchants
	return nil
}

// DetectRecurrenceStep computes intervals and recurrence flags.
type DetectRecurrenceStep struct{}

func (s *DetectRecurrenceStep) Execute(ctx context.Context, state *State) error {
	records, err := DetectRecurring(state.Txs, state.Historical, state.Config)
	if err != nil {
		return err
	}
	state.Records = records
	return nil
}

// EnrichMerchantsStep fills MerchantInfo from the enrichment collaborator,
// one lookup per distinct merchant. A failed lookup is logged and the rows
// keep empty merchant info; enrichment failures never abort the batch.
type EnrichMerchantsStep struct {
	Enricher Enricher
}

func (s *EnrichMerchantsStep) Execute(ctx context.Context, state *State) error {
	if s.Enricher == nil {
		return nil
	}
	log := logger.FromContext(ctx)

	info := make(map[string]string)
	for i := range state.Records {
		merchant := state.Records[i].MerchantName()
		if merchant == "" || merchant == UnknownMerchant {
			continue
		}
		if _, done := info[merchant]; !done {
			text, err := s.Enricher.Enrich(ctx, merchant)
			if err != nil {
				log.Warn().
					Err(err).
					Str("merchant", merchant).
					Msg("Merchant enrichment failed, continuing without info")
				text = ""
			}
			info[merchant] = text
		}
		state.Records[i].MerchantInfo = info[merchant]
	}
	return nil
}

// LabelStep assigns predicted categories via the configured labeler.
type LabelStep struct {
	Labeler Labeler
}

func (s *LabelStep) Execute(ctx context.Context, state *State) error {
	if s.Labeler == nil {
		return nil
	}
	return s.Labeler.Label(ctx, state.Records)
}

// PersistResultsStep writes the recurrence records through the result sink.
type PersistResultsStep struct {
	Results ResultSink
}

func (s *PersistResultsStep) Execute(ctx context.Context, state *State) error {
	return s.Results.InsertRecurrenceRecords(ctx, state.UserID, state.FileID, state.RunID, state.Records)
}

// MarkSuccessStep marks the detection run as SUCCESS.
type MarkSuccessStep struct {
	Runs RunRecorder
}

func (s *MarkSuccessStep) Execute(ctx context.Context, state *State) error {
	return s.Runs.MarkDetectionRunSucceeded(ctx, state.RunID)
}

// Deps bundles the collaborators a detection pipeline needs.
type Deps struct {
	Storage       StorageService
	Enricher      Enricher
	Subscriptions SubscriptionSource
	Results       ResultSink
	Runs          RunRecorder
	Labeler       Labeler
}

// NewDetectionPipeline creates the standard step sequence for detecting
// subscriptions in an uploaded file: fetch, parse, validate, resolve
// merchants, baseline, detect, enrich, label, persist, mark success.
func NewDetectionPipeline(deps Deps) *Pipeline {
	return NewPipeline(
		deps.Runs,
		&StartRunStep{Runs: deps.Runs},
		&FetchCSVStep{Storage: deps.Storage},
		&ParseCSVStep{},
		&ValidateStep{},
		&ResolveMerchantsStep{},
		&FetchHistoricalStep{Subscriptions: deps.Subscriptions},
		&DetectRecurrenceStep{},
		&EnrichMerchantsStep{Enricher: deps.Enricher},
		&LabelStep{Labeler: deps.Labeler},
		&PersistResultsStep{Results: deps.Results},
		&MarkSuccessStep{Runs: deps.Runs},
	)
}
