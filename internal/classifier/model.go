package classifier

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/subtrack/internal/domain"
)

// Model is a category classifier over merchant+description text. Features
// are term frequencies of whitespace-lowered tokens; scoring is multinomial
// naive Bayes with add-one smoothing, fronted by an exact-text table so that
// rows seen verbatim during training always recover their trained label.
//
// A Model is immutable once built. Retraining builds a new one; the registry
// swaps the reference, readers never observe a half-built model.
type Model struct {
	// Classes in sorted order; ties in scoring break toward the first.
	Classes []string

	// ClassDocs counts training examples per class.
	ClassDocs map[string]int

	// TokenCounts is class -> token -> occurrences across that class.
	TokenCounts map[string]map[string]int

	// ClassTokens is class -> total token occurrences.
	ClassTokens map[string]int

	// VocabSize is the number of distinct tokens over the whole corpus.
	VocabSize int

	// TotalDocs is the training set size.
	TotalDocs int

	// Exact maps normalized training text to its label, last write wins.
	Exact map[string]string

	TrainedAt time.Time
}

// Train fits a model on an organization's validated subscriptions. Zero
// examples fail with *NoDataError.
func Train(orgID string, examples []domain.ValidatedSubscription) (*Model, error) {
	if len(examples) == 0 {
		return nil, &NoDataError{OrgID: orgID}
	}

	m := &Model{
		ClassDocs:   make(map[string]int),
		TokenCounts: make(map[string]map[string]int),
		ClassTokens: make(map[string]int),
		Exact:       make(map[string]string),
		TotalDocs:   len(examples),
		TrainedAt:   time.Now().UTC(),
	}

	vocab := make(map[string]bool)
	for _, ex := range examples {
		text := featureText(ex.Merchant, ex.Description)
		m.Exact[text] = ex.Category
		m.ClassDocs[ex.Category]++

		if m.TokenCounts[ex.Category] == nil {
			m.TokenCounts[ex.Category] = make(map[string]int)
		}
		for _, tok := range tokenize(text) {
			m.TokenCounts[ex.Category][tok]++
			m.ClassTokens[ex.Category]++
			vocab[tok] = true
		}
	}
	m.VocabSize = len(vocab)

	for class := range m.ClassDocs {
		m.Classes = append(m.Classes, class)
	}
	sort.Strings(m.Classes)

	return m, nil
}

// Predict returns the category for one merchant+description pair. Total:
// always returns one of the trained classes.
func (m *Model) Predict(merchant, description string) string {
	text := featureText(merchant, description)
	if class, ok := m.Exact[text]; ok {
		return class
	}

	best := m.Classes[0]
	bestScore := math.Inf(-1)
	for _, class := range m.Classes {
		score := m.logPosterior(class, tokenize(text))
		if score > bestScore {
			best = class
			bestScore = score
		}
	}
	return best
}

// logPosterior is log P(class) + sum log P(token|class) with add-one
// smoothing over the corpus vocabulary.
func (m *Model) logPosterior(class string, tokens []string) float64 {
	score := math.Log(float64(m.ClassDocs[class]) / float64(m.TotalDocs))
	denom := float64(m.ClassTokens[class] + m.VocabSize)
	for _, tok := range tokens {
		count := m.TokenCounts[class][tok]
		score += math.Log(float64(count+1) / denom)
	}
	return score
}

// Encode serializes the model for persistence keyed by organization id.
func (m *Model) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("Encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode restores a model serialized with Encode.
func Decode(data []byte) (*Model, error) {
	var m Model
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, fmt.Errorf("Decode: %w", err)
	}
	return &m, nil
}

// featureText concatenates merchant and description the same way at train
// and predict time.
func featureText(merchant, description string) string {
	return strings.TrimSpace(merchant + " " + description)
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
