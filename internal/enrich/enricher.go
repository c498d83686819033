package enrich

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for merchant enrichment.
const DefaultModelName = "gemini-2.5-flash"

// GeminiEnricher looks up merchant context through the Gemini API. It is the
// single long-lived handle to the enrichment collaborator: constructed once
// at startup and injected into the pipeline, never built per call, so tests
// can substitute a fake.
type GeminiEnricher struct {
	client *genai.Client
	model  string
}

// NewGeminiEnricher creates the enricher. Credentials come from the
// environment the same way as the rest of the Google stack.
func NewGeminiEnricher(ctx context.Context) (*GeminiEnricher, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiEnricher: create genai client: %w", err)
	}
	return &GeminiEnricher{client: client, model: DefaultModelName}, nil
}

// Enrich returns a short context blurb for a merchant name or transaction
// description. Errors are returned as-is; the pipeline isolates them per row.
func (e *GeminiEnricher) Enrich(ctx context.Context, text string) (string, error) {
	prompt :=
		"You are a merchant lookup tool for a subscription tracker.\n\n" +
			"Given the merchant name or bank transaction description below, reply with\n" +
			"one short sentence describing what the merchant sells and whether it is a\n" +
			"subscription service. Plain text only, no Markdown, no preamble.\n\n" +
			"Merchant: " + text + "\n"

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Enrich: generate content: %w", err)
	}

	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", fmt.Errorf("Enrich: empty response from model")
	}
	return out, nil
}
