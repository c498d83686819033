package pipeline

import (
	"testing"

	"github.com/dvloznov/subtrack/internal/config"
	"github.com/dvloznov/subtrack/internal/domain"
)

func TestResolveMerchant(t *testing.T) {
	rules := []config.MerchantRule{
		{Keyword: "Netflix", Merchant: "Netflix"},
		{Keyword: "Spotify", Merchant: "Spotify"},
		{Keyword: "Gym", Merchant: "Local Gym"},
	}

	tests := []struct {
		name        string
		description string
		want        string
	}{
		{
			name:        "exact keyword",
			description: "Netflix",
			want:        "Netflix",
		},
		{
			name:        "keyword inside description",
			description: "POS Netflix Monthly 03/26",
			want:        "Netflix",
		},
		{
			name:        "substring containment matches",
			description: "Netflixx special",
			want:        "Netflix",
		},
		{
			name:        "match is case-sensitive",
			description: "NETFLIX.COM",
			want:        UnknownMerchant,
		},
		{
			name:        "first rule wins",
			description: "Netflix and Spotify bundle",
			want:        "Netflix",
		},
		{
			name:        "no rule matches",
			description: "Corner shop groceries",
			want:        UnknownMerchant,
		},
		{
			name:        "empty description",
			description: "",
			want:        UnknownMerchant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveMerchant(tt.description, rules)
			if got != tt.want {
				t.Errorf("ResolveMerchant(%q) = %q, want %q", tt.description, got, tt.want)
			}
		})
	}
}

func TestResolveMerchants(t *testing.T) {
	rules := []config.MerchantRule{
		{Keyword: "Spotify", Merchant: "Spotify"},
	}

	existing := "Hand Picked"
	txs := []domain.Transaction{
		{Description: "Spotify P2026"},
		{Description: "mystery charge"},
		{Description: "Spotify P2026", Merchant: &existing},
	}

	out := ResolveMerchants(txs, rules)

	if got := out[0].MerchantName(); got != "Spotify" {
		t.Errorf("row 0 merchant = %q, want Spotify", got)
	}
	if got := out[0].CategoryName(); got != "Subscription" {
		t.Errorf("row 0 category = %q, want Subscription", got)
	}

	if got := out[1].MerchantName(); got != UnknownMerchant {
		t.Errorf("row 1 merchant = %q, want %q", got, UnknownMerchant)
	}
	if got := out[1].CategoryName(); got != "Unknown" {
		t.Errorf("row 1 category = %q, want Unknown", got)
	}

	// Pre-set merchants are never overwritten.
	if got := out[2].MerchantName(); got != "Hand Picked" {
		t.Errorf("row 2 merchant = %q, want Hand Picked", got)
	}

	// Input slice must not be mutated.
	if txs[0].Merchant != nil {
		t.Errorf("input slice mutated: %v", *txs[0].Merchant)
	}
}

func TestCategorizeByKeywords(t *testing.T) {
	keywords := map[string][]string{
		"Entertainment": {"Netflix", "Spotify"},
		"Utilities":     {"Electric", "Water"},
		"Others":        {},
	}

	merchant := "Netflix"
	tests := []struct {
		name string
		tx   domain.Transaction
		want string
	}{
		{
			name: "keyword in merchant",
			tx:   domain.Transaction{Merchant: &merchant, Description: "monthly"},
			want: "Entertainment",
		},
		{
			name: "keyword in description",
			tx:   domain.Transaction{Description: "Electric bill April"},
			want: "Utilities",
		},
		{
			name: "no match falls back",
			tx:   domain.Transaction{Description: "corner shop"},
			want: DefaultCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeByKeywords(tt.tx, keywords)
			if got != tt.want {
				t.Errorf("CategorizeByKeywords() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCategorizeByKeywords_DeterministicTieBreak(t *testing.T) {
	// Both categories match; the alphabetically first must win every time.
	keywords := map[string][]string{
		"Streaming": {"Netflix"},
		"Cinema":    {"Netflix"},
	}
	tx := domain.Transaction{Description: "Netflix"}

	for i := 0; i < 20; i++ {
		if got := CategorizeByKeywords(tx, keywords); got != "Cinema" {
			t.Fatalf("iteration %d: got %q, want Cinema", i, got)
		}
	}
}
