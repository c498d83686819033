package classifier

import (
	"errors"
	"testing"

	"github.com/dvloznov/subtrack/internal/domain"
)

func trainingSet() []domain.ValidatedSubscription {
	return []domain.ValidatedSubscription{
		{Merchant: "Netflix", Description: "streaming plan", Category: "Entertainment"},
		{Merchant: "Spotify", Description: "music family plan", Category: "Entertainment"},
		{Merchant: "City Power", Description: "electric bill", Category: "Utilities"},
		{Merchant: "Aqua Co", Description: "water bill", Category: "Utilities"},
	}
}

func TestTrain_NoData(t *testing.T) {
	_, err := Train("org-1", nil)

	var noData *NoDataError
	if !errors.As(err, &noData) {
		t.Fatalf("Train() error = %v, want *NoDataError", err)
	}
	if noData.OrgID != "org-1" {
		t.Errorf("OrgID = %q, want org-1", noData.OrgID)
	}
}

func TestPredict_RecoversTrainingLabels(t *testing.T) {
	examples := trainingSet()
	model, err := Train("org-1", examples)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	// Every example seen verbatim in training predicts its own label.
	for _, ex := range examples {
		got := model.Predict(ex.Merchant, ex.Description)
		if got != ex.Category {
			t.Errorf("Predict(%q, %q) = %q, want %q", ex.Merchant, ex.Description, got, ex.Category)
		}
	}
}

func TestPredict_UnseenText(t *testing.T) {
	model, err := Train("org-1", trainingSet())
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	tests := []struct {
		name        string
		merchant    string
		description string
		want        string
	}{
		{
			name:        "token overlap with utilities",
			merchant:    "Gas Works",
			description: "monthly bill",
			want:        "Utilities",
		},
		{
			name:        "token overlap with entertainment",
			merchant:    "Hulu",
			description: "streaming subscription plan",
			want:        "Entertainment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := model.Predict(tt.merchant, tt.description)
			if got != tt.want {
				t.Errorf("Predict() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPredict_AlwaysReturnsTrainedClass(t *testing.T) {
	model, err := Train("org-1", trainingSet())
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	got := model.Predict("zzz", "completely unrelated tokens qqq")
	valid := false
	for _, class := range model.Classes {
		if got == class {
			valid = true
		}
	}
	if !valid {
		t.Errorf("Predict() = %q, not one of the trained classes %v", got, model.Classes)
	}
}

func TestPredict_LastWriteWinsOnDuplicateText(t *testing.T) {
	examples := []domain.ValidatedSubscription{
		{Merchant: "Netflix", Description: "plan", Category: "Entertainment"},
		{Merchant: "Netflix", Description: "plan", Category: "Streaming"},
	}
	model, err := Train("org-1", examples)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if got := model.Predict("Netflix", "plan"); got != "Streaming" {
		t.Errorf("Predict() = %q, want the later label Streaming", got)
	}
}

func TestModel_EncodeDecode(t *testing.T) {
	model, err := Train("org-1", trainingSet())
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	data, err := model.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	restored, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	for _, ex := range trainingSet() {
		got := restored.Predict(ex.Merchant, ex.Description)
		if got != ex.Category {
			t.Errorf("restored Predict(%q, %q) = %q, want %q", ex.Merchant, ex.Description, got, ex.Category)
		}
	}
	if restored.TotalDocs != model.TotalDocs || restored.VocabSize != model.VocabSize {
		t.Errorf("restored model differs: docs %d/%d vocab %d/%d",
			restored.TotalDocs, model.TotalDocs, restored.VocabSize, model.VocabSize)
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode([]byte("not a gob")); err == nil {
		t.Fatal("Decode() succeeded on garbage input")
	}
}
