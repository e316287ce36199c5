package models

import (
	"context"
	"log"
	"strings"
)

// ExplicitFallbacks are well-known model names tried after the primary and
// its alternate, before scanning the rest of the catalog.
var ExplicitFallbacks = []string{
	"gemini-1.5-pro-latest",
	"gemini-1.5-flash-latest",
}

// RunFunc executes one generation attempt against a concrete model name.
type RunFunc func(ctx context.Context, model string) (string, error)

// Cascade walks an ordered list of model candidates until one produces text.
// Stages: the primary pick, its "-latest" alternate (only when the primary
// was unknown to the account), the explicit fallbacks, then the remaining
// catalog ranked by tier preference and score. A fatal error aborts the walk
// immediately; every other failure moves on to the next candidate.
type Cascade struct {
	Selector *Selector
	// Defaults overrides ExplicitFallbacks when non-nil.
	Defaults []string
}

func NewCascade(sel *Selector) *Cascade {
	return &Cascade{Selector: sel}
}

// Run executes the cascade for one request. On success it returns the text
// and the model that served it; on exhaustion it returns an *ExhaustedError
// carrying the ordered attempt trail.
func (c *Cascade) Run(ctx context.Context, q Quality, primary string, run RunFunc) (string, string, error) {
	tried := map[string]bool{}
	var attempts []Attempt

	attempt := func(model string) (string, bool, error) {
		tried[model] = true
		text, err := run(ctx, model)
		if err == nil {
			return text, true, nil
		}
		attempts = append(attempts, Attempt{Model: model, Err: err})
		if Classify(err) == ClassFatal {
			return "", false, err
		}
		log.Printf("models: %s failed (%s): %v", model, Classify(err), err)
		return "", false, nil
	}

	text, ok, fatal := attempt(primary)
	if ok {
		return text, primary, nil
	}
	if fatal != nil {
		return "", "", fatal
	}

	// An unknown model name often has a sibling with the "-latest" suffix
	// toggled. Only worth trying when the primary itself was not found.
	if Classify(attempts[len(attempts)-1].Err) == ClassNotFound {
		if alt := AltName(primary); alt != primary && !tried[alt] {
			text, ok, fatal = attempt(alt)
			if ok {
				return text, alt, nil
			}
			if fatal != nil {
				return "", "", fatal
			}
		}
	}

	defaults := c.Defaults
	if defaults == nil {
		defaults = ExplicitFallbacks
	}
	for _, cand := range defaults {
		if tried[cand] {
			continue
		}
		text, ok, fatal = attempt(cand)
		if ok {
			return text, cand, nil
		}
		if fatal != nil {
			return "", "", fatal
		}
	}

	if c.Selector != nil {
		for _, cand := range c.Selector.FallbackCandidates(ctx, q, tried) {
			text, ok, fatal = attempt(cand)
			if ok {
				return text, cand, nil
			}
			if fatal != nil {
				return "", "", fatal
			}
		}
	}

	return "", "", &ExhaustedError{Attempts: attempts}
}

// AltName toggles the "-latest" suffix on a model id.
func AltName(model string) string {
	if strings.HasSuffix(model, "-latest") {
		return strings.TrimSuffix(model, "-latest")
	}
	return model + "-latest"
}
