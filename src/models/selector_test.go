package models

import (
	"context"
	"errors"
	"testing"
)

func TestInferQuality(t *testing.T) {
	long := make([]byte, 0, 800)
	for len(long) < 750 {
		long = append(long, "lorem ipsum "...)
	}

	tests := []struct {
		name      string
		message   string
		requested string
		want      Quality
	}{
		{"explicit wins", "short", "HIGH", QualityHigh},
		{"explicit garbage ignored", "hi", "ultra", QualityLow},
		{"architecture keyword", "sketch the architecture for me", "", QualityHigh},
		{"long message", string(long), "", QualityHigh},
		{"explain keyword", "explain this trade-off", "", QualityMedium},
		{"code keyword", "write code for a parser", "", QualityMedium},
		{"short chit-chat", "hello there", "", QualityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferQuality(tt.message, tt.requested); got != tt.want {
				t.Fatalf("InferQuality(%q, %q) = %q, want %q", tt.message, tt.requested, got, tt.want)
			}
		})
	}
}

func TestScoreModelNameOrdering(t *testing.T) {
	pairs := []struct{ better, worse string }{
		{"gemini-2.5-pro", "gemini-2.0-pro"},
		{"gemini-1.5-pro-latest", "gemini-1.5-pro"},
		{"gemini-1.5-pro", "gemini-1.5-flash"},
		{"gemini-2.0-flash", "gemini-2.0-flash-exp"},
	}
	for _, p := range pairs {
		if ScoreModelName(p.better) <= ScoreModelName(p.worse) {
			t.Errorf("ScoreModelName(%q)=%d should beat %q=%d",
				p.better, ScoreModelName(p.better), p.worse, ScoreModelName(p.worse))
		}
	}
}

func catalogOf(names ...string) Catalog {
	return CatalogFunc(func(context.Context) ([]string, error) {
		return names, nil
	})
}

func noOverride(string) string { return "" }

func TestSelectModelPrefersProForHighQuality(t *testing.T) {
	sel := NewSelector(catalogOf("gemini-1.5-flash", "gemini-1.5-pro", "gemini-2.0-flash"), noOverride)
	got := sel.SelectModel(context.Background(), QualityHigh, "text")
	if got != "gemini-1.5-pro" {
		t.Fatalf("SelectModel(high) = %q, want gemini-1.5-pro", got)
	}
}

func TestSelectModelPrefersFlashForLowQuality(t *testing.T) {
	sel := NewSelector(catalogOf("gemini-1.5-pro", "gemini-2.0-flash"), noOverride)
	got := sel.SelectModel(context.Background(), QualityLow, "text")
	if got != "gemini-2.0-flash" {
		t.Fatalf("SelectModel(low) = %q, want gemini-2.0-flash", got)
	}
}

func TestSelectModelOverrideWinsWhenAvailable(t *testing.T) {
	override := func(task string) string {
		if task == "text" {
			return "gemini-1.5-flash"
		}
		return ""
	}
	sel := NewSelector(catalogOf("gemini-1.5-flash", "gemini-2.5-pro"), override)
	if got := sel.SelectModel(context.Background(), QualityHigh, "text"); got != "gemini-1.5-flash" {
		t.Fatalf("override should win outright, got %q", got)
	}
	// Override absent from the catalog falls back to scoring.
	sel2 := NewSelector(catalogOf("gemini-2.5-pro"), override)
	if got := sel2.SelectModel(context.Background(), QualityHigh, "text"); got != "gemini-2.5-pro" {
		t.Fatalf("unavailable override must not be selected, got %q", got)
	}
}

func TestSelectModelEmptyCatalogFallsBackToDefault(t *testing.T) {
	sel := NewSelector(catalogOf(), noOverride)
	if got := sel.SelectModel(context.Background(), QualityHigh, "text"); got != DefaultModel {
		t.Fatalf("empty catalog should yield %q, got %q", DefaultModel, got)
	}

	override := func(string) string { return "my-tuned-model" }
	sel2 := NewSelector(catalogOf(), override)
	if got := sel2.SelectModel(context.Background(), QualityHigh, "text"); got != "my-tuned-model" {
		t.Fatalf("empty catalog with override should yield the override, got %q", got)
	}
}

func TestSelectModelDeterministic(t *testing.T) {
	sel := NewSelector(catalogOf("gemini-1.5-pro-b", "gemini-1.5-pro-a"), noOverride)
	first := sel.SelectModel(context.Background(), QualityHigh, "text")
	for i := 0; i < 5; i++ {
		if got := sel.SelectModel(context.Background(), QualityHigh, "text"); got != first {
			t.Fatalf("selection not deterministic: %q vs %q", got, first)
		}
	}
	if first != "gemini-1.5-pro-a" {
		t.Fatalf("equal scores must break ties by name, got %q", first)
	}
}

func TestModelNamesCachesCatalog(t *testing.T) {
	calls := 0
	sel := NewSelector(CatalogFunc(func(context.Context) ([]string, error) {
		calls++
		return []string{"gemini-1.5-pro"}, nil
	}), noOverride)

	ctx := context.Background()
	sel.ModelNames(ctx)
	sel.ModelNames(ctx)
	sel.ModelNames(ctx)
	if calls != 1 {
		t.Fatalf("catalog listed %d times, want 1 (cached)", calls)
	}
}

func TestModelNamesDegradesOnListError(t *testing.T) {
	sel := NewSelector(CatalogFunc(func(context.Context) ([]string, error) {
		return nil, errors.New("upstream down")
	}), noOverride)
	if names := sel.ModelNames(context.Background()); names != nil {
		t.Fatalf("expected nil catalog on list failure, got %v", names)
	}
	// Selection still resolves to the default name.
	if got := sel.SelectModel(context.Background(), QualityLow, "text"); got != DefaultModel {
		t.Fatalf("got %q, want %q", got, DefaultModel)
	}
}

func TestGenerationConfigFor(t *testing.T) {
	high := GenerationConfigFor(QualityHigh)
	low := GenerationConfigFor(QualityLow)
	if high.MaxOutputTokens <= low.MaxOutputTokens {
		t.Fatalf("high tier should allow more tokens: %d vs %d", high.MaxOutputTokens, low.MaxOutputTokens)
	}
	if high.Temperature <= low.Temperature {
		t.Fatalf("high tier should sample hotter: %f vs %f", high.Temperature, low.Temperature)
	}
}
