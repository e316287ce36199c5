package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"googleapi 404", &googleapi.Error{Code: 404}, ClassNotFound},
		{"googleapi 429", &googleapi.Error{Code: 429}, ClassRateLimited},
		{"googleapi 403", &googleapi.Error{Code: 403}, ClassFatal},
		{"googleapi 500", &googleapi.Error{Code: 500}, ClassTransient},
		{"wrapped config error", fmt.Errorf("init: %w", &ConfigError{Reason: "no key"}), ClassFatal},
		{"empty response", ErrEmptyResponse, ClassTransient},
		{"textual not found", errors.New("models/gemini-9 is not found"), ClassNotFound},
		{"textual quota", errors.New("quota exceeded for project"), ClassRateLimited},
		{"unknown", errors.New("connection reset"), ClassTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// scriptedRun fails every model except those in ok, recording attempt order.
func scriptedRun(ok map[string]string, errFor func(model string) error) (RunFunc, *[]string) {
	var order []string
	run := func(_ context.Context, model string) (string, error) {
		order = append(order, model)
		if text, found := ok[model]; found {
			return text, nil
		}
		return "", errFor(model)
	}
	return run, &order
}

func TestCascadePrimarySucceeds(t *testing.T) {
	run, order := scriptedRun(map[string]string{"gemini-2.5-pro": "hi"}, nil)
	c := NewCascade(NewSelector(catalogOf("gemini-2.5-pro"), noOverride))

	text, used, err := c.Run(context.Background(), QualityHigh, "gemini-2.5-pro", run)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if text != "hi" || used != "gemini-2.5-pro" {
		t.Fatalf("got (%q, %q)", text, used)
	}
	if len(*order) != 1 {
		t.Fatalf("expected a single attempt, got %v", *order)
	}
}

func TestCascadeTriesLatestAlternateOnNotFound(t *testing.T) {
	run, order := scriptedRun(
		map[string]string{"gemini-1.5-pro-latest": "recovered"},
		func(string) error { return &googleapi.Error{Code: 404} },
	)
	c := NewCascade(NewSelector(catalogOf(), noOverride))

	text, used, err := c.Run(context.Background(), QualityHigh, "gemini-1.5-pro", run)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if text != "recovered" || used != "gemini-1.5-pro-latest" {
		t.Fatalf("got (%q, %q)", text, used)
	}
	if (*order)[0] != "gemini-1.5-pro" || (*order)[1] != "gemini-1.5-pro-latest" {
		t.Fatalf("unexpected attempt order: %v", *order)
	}
}

func TestCascadeSkipsAlternateOnTransientFailure(t *testing.T) {
	run, order := scriptedRun(
		map[string]string{"gemini-1.5-pro-latest": "served"},
		func(string) error { return errors.New("connection reset") },
	)
	c := NewCascade(NewSelector(catalogOf(), noOverride))

	_, used, err := c.Run(context.Background(), QualityHigh, "gemini-1.5-pro", run)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	// The alternate toggle is reserved for unknown-model errors; a transient
	// failure goes straight to the explicit fallbacks.
	if used != "gemini-1.5-pro-latest" {
		t.Fatalf("served by %q, want first explicit fallback", used)
	}
	if (*order)[1] != "gemini-1.5-pro-latest" {
		t.Fatalf("unexpected attempt order: %v", *order)
	}
}

func TestCascadeFatalAbortsImmediately(t *testing.T) {
	run, order := scriptedRun(nil, func(string) error {
		return &ConfigError{Reason: "missing key"}
	})
	c := NewCascade(NewSelector(catalogOf("gemini-1.5-pro"), noOverride))

	_, _, err := c.Run(context.Background(), QualityHigh, "gemini-1.5-pro", run)
	var cfg *ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("expected the fatal error back, got %v", err)
	}
	if len(*order) != 1 {
		t.Fatalf("fatal error must stop the cascade, attempts: %v", *order)
	}
}

func TestCascadeWalksCatalogAndExhausts(t *testing.T) {
	run, order := scriptedRun(nil, func(model string) error {
		return fmt.Errorf("%s unavailable", model)
	})
	sel := NewSelector(catalogOf("gemini-1.0-pro", "gemini-2.5-pro"), noOverride)
	c := NewCascade(sel)

	_, _, err := c.Run(context.Background(), QualityHigh, "gemini-2.5-pro", run)
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	// primary, both explicit defaults, then the remaining catalog entry.
	want := []string{"gemini-2.5-pro", "gemini-1.5-pro-latest", "gemini-1.5-flash-latest", "gemini-1.0-pro"}
	if len(*order) != len(want) {
		t.Fatalf("attempts = %v, want %v", *order, want)
	}
	for i := range want {
		if (*order)[i] != want[i] {
			t.Fatalf("attempt %d = %q, want %q (full: %v)", i, (*order)[i], want[i], *order)
		}
	}
	if len(ex.Attempts) != len(want) {
		t.Fatalf("trail has %d entries, want %d", len(ex.Attempts), len(want))
	}
	if ex.Attempts[0].Model != "gemini-2.5-pro" {
		t.Fatalf("trail must start with the primary, got %q", ex.Attempts[0].Model)
	}
}

func TestCascadeRecoversViaCatalogStage(t *testing.T) {
	run, _ := scriptedRun(
		map[string]string{"gemini-2.0-pro": "finally"},
		func(model string) error { return fmt.Errorf("%s down", model) },
	)
	sel := NewSelector(catalogOf("gemini-2.0-pro", "gemini-2.5-pro"), noOverride)
	c := NewCascade(sel)

	text, used, err := c.Run(context.Background(), QualityHigh, "gemini-2.5-pro", run)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if text != "finally" || used != "gemini-2.0-pro" {
		t.Fatalf("got (%q, %q)", text, used)
	}
}

func TestAltName(t *testing.T) {
	if got := AltName("gemini-1.5-pro"); got != "gemini-1.5-pro-latest" {
		t.Fatalf("AltName = %q", got)
	}
	if got := AltName("gemini-1.5-pro-latest"); got != "gemini-1.5-pro" {
		t.Fatalf("AltName = %q", got)
	}
}
