package classifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/subtrack/internal/domain"
	"github.com/dvloznov/subtrack/internal/logger"
)

// ModelStore persists serialized models keyed by organization id. The GCS
// implementation lives in gcsuploader; tests use an in-memory map.
type ModelStore interface {
	SaveModel(ctx context.Context, orgID string, data []byte) error
	// LoadModel returns (nil, nil) when no model exists for the organization.
	LoadModel(ctx context.Context, orgID string) ([]byte, error)
}

// Registry holds one model per organization. Models are independent
// resources keyed strictly by organization id: training for one organization
// never touches another's entry. Same-organization train/predict is
// serialized by swapping a fully built immutable *Model under the lock, so a
// concurrent prediction sees either the old or the new model, never a
// partial one.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
	store  ModelStore
}

// NewRegistry creates a registry backed by the given store. A nil store is
// allowed; models then live only in memory.
func NewRegistry(store ModelStore) *Registry {
	return &Registry{
		models: make(map[string]*Model),
		store:  store,
	}
}

// Train fits a fresh model on the organization's validated subscriptions,
// persists it, and swaps it into the registry. Zero examples fail with
// *NoDataError. When persistence fails the new model is still installed;
// the failure is logged and the snapshot is rewritten on the next train.
func (r *Registry) Train(ctx context.Context, orgID string, examples []domain.ValidatedSubscription) (*Model, error) {
	model, err := Train(orgID, examples)
	if err != nil {
		return nil, err
	}

	if r.store != nil {
		data, err := model.Encode()
		if err != nil {
			return nil, fmt.Errorf("Registry.Train: %w", err)
		}
		if err := r.store.SaveModel(ctx, orgID, data); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().
				Err(err).
				Str("org_id", orgID).
				Msg("Failed to persist trained model, keeping it in memory")
		}
	}

	r.mu.Lock()
	r.models[orgID] = model
	r.mu.Unlock()

	return model, nil
}

// Model returns the organization's current model, loading it from the store
// on first use. No model anywhere fails with *ModelNotFoundError.
func (r *Registry) Model(ctx context.Context, orgID string) (*Model, error) {
	r.mu.RLock()
	model := r.models[orgID]
	r.mu.RUnlock()
	if model != nil {
		return model, nil
	}

	if r.store != nil {
		data, err := r.store.LoadModel(ctx, orgID)
		if err != nil {
			return nil, fmt.Errorf("Registry.Model: loading model for org %s: %w", orgID, err)
		}
		if data != nil {
			model, err := Decode(data)
			if err != nil {
				return nil, fmt.Errorf("Registry.Model: decoding model for org %s: %w", orgID, err)
			}
			r.mu.Lock()
			// Another goroutine may have trained meanwhile; keep its model.
			if existing := r.models[orgID]; existing != nil {
				model = existing
			} else {
				r.models[orgID] = model
			}
			r.mu.Unlock()
			return model, nil
		}
	}

	return nil, &ModelNotFoundError{OrgID: orgID}
}

// Predict fills PredictedCategory on every record using the organization's
// trained model. Absence of a model is the caller's problem to surface; it
// is never papered over with keyword rules here.
func (r *Registry) Predict(ctx context.Context, orgID string, records []domain.RecurrenceRecord) error {
	model, err := r.Model(ctx, orgID)
	if err != nil {
		return err
	}
	for i := range records {
		records[i].PredictedCategory = model.Predict(records[i].MerchantName(), records[i].Description)
	}
	return nil
}

// Labeler adapts one organization's model lookup to the pipeline's Labeler
// interface.
type Labeler struct {
	Registry *Registry
	OrgID    string
}

// Label implements pipeline.Labeler. It resolves the model eagerly so a
// missing model surfaces as *ModelNotFoundError before any record is touched.
func (l *Labeler) Label(ctx context.Context, records []domain.RecurrenceRecord) error {
	return l.Registry.Predict(ctx, l.OrgID, records)
}
