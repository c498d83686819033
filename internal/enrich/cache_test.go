package enrich

import (
	"context"
	"errors"
	"testing"
	"time"
)

// countingEnricher is a fake backend that counts calls per text.
type countingEnricher struct {
	calls map[string]int
	err   error
}

func (c *countingEnricher) Enrich(ctx context.Context, text string) (string, error) {
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[text]++
	if c.err != nil {
		return "", c.err
	}
	return "blurb for " + text, nil
}

func TestCachedEnricher_SecondCallHitsCache(t *testing.T) {
	backend := &countingEnricher{}
	cached, err := NewCachedEnricher(backend, time.Hour)
	if err != nil {
		t.Fatalf("NewCachedEnricher() error = %v", err)
	}
	defer cached.Close()

	ctx := context.Background()
	first, err := cached.Enrich(ctx, "Netflix")
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}
	if first != "blurb for Netflix" {
		t.Errorf("Enrich() = %q", first)
	}

	// Ristretto admits writes asynchronously; settle before reading back.
	cached.cache.Wait()

	second, err := cached.Enrich(ctx, "Netflix")
	if err != nil {
		t.Fatalf("Enrich() second call error = %v", err)
	}
	if second != first {
		t.Errorf("cached response %q differs from original %q", second, first)
	}
	if backend.calls["Netflix"] != 1 {
		t.Errorf("backend called %d times, want 1", backend.calls["Netflix"])
	}
}

func TestCachedEnricher_DistinctTextsMissIndependently(t *testing.T) {
	backend := &countingEnricher{}
	cached, err := NewCachedEnricher(backend, time.Hour)
	if err != nil {
		t.Fatalf("NewCachedEnricher() error = %v", err)
	}
	defer cached.Close()

	ctx := context.Background()
	for _, text := range []string{"Netflix", "Spotify"} {
		if _, err := cached.Enrich(ctx, text); err != nil {
			t.Fatalf("Enrich(%q) error = %v", text, err)
		}
	}

	if backend.calls["Netflix"] != 1 || backend.calls["Spotify"] != 1 {
		t.Errorf("backend calls = %v, want one per text", backend.calls)
	}
}

func TestCachedEnricher_ErrorsAreNotCached(t *testing.T) {
	backend := &countingEnricher{err: errors.New("model unavailable")}
	cached, err := NewCachedEnricher(backend, time.Hour)
	if err != nil {
		t.Fatalf("NewCachedEnricher() error = %v", err)
	}
	defer cached.Close()

	ctx := context.Background()
	if _, err := cached.Enrich(ctx, "Netflix"); err == nil {
		t.Fatal("Enrich() succeeded with a failing backend")
	}

	// Backend recovers; the next call must reach it instead of a cached error.
	backend.err = nil
	out, err := cached.Enrich(ctx, "Netflix")
	if err != nil {
		t.Fatalf("Enrich() after recovery error = %v", err)
	}
	if out != "blurb for Netflix" {
		t.Errorf("Enrich() = %q", out)
	}
	if backend.calls["Netflix"] != 2 {
		t.Errorf("backend called %d times, want 2", backend.calls["Netflix"])
	}
}
