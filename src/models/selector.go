package models

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/taliyo/assistant-go/src/cache"
)

// Quality is the requested answer tier. It drives both model selection and
// the generation config.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// DefaultModel is the last-resort model name used when the catalog is empty
// and no override applies.
const DefaultModel = "gemini-1.5-pro-latest"

const (
	catalogCacheKey = "model-catalog"
	catalogCacheTTL = 10 * time.Minute
)

// highQualityMarkers / mediumQualityMarkers are the phrases that bump a
// message into a higher tier regardless of length.
var (
	highQualityMarkers   = []string{"architecture", "detailed", "diagram"}
	mediumQualityMarkers = []string{"analyze", "explain", "code", "steps", "why"}
)

// InferQuality normalizes an explicit request or derives a tier from the
// message itself: long or structural questions get high, analytical ones
// medium, everything else low.
func InferQuality(message, requested string) Quality {
	switch Quality(strings.ToLower(strings.TrimSpace(requested))) {
	case QualityLow, QualityMedium, QualityHigh:
		return Quality(strings.ToLower(strings.TrimSpace(requested)))
	}

	lower := strings.ToLower(message)
	if len(message) > 700 || containsAny(lower, highQualityMarkers) {
		return QualityHigh
	}
	if len(message) > 280 || containsAny(lower, mediumQualityMarkers) {
		return QualityMedium
	}
	return QualityLow
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ScoreModelName ranks a model id by recency and capability markers. Higher
// is better; the ordering is deliberately deterministic.
func ScoreModelName(name string) int {
	score := 0
	if strings.Contains(name, "latest") {
		score += 3
	}
	switch {
	case strings.Contains(name, "2.5"):
		score += 5
	case strings.Contains(name, "2.0"):
		score += 4
	case strings.Contains(name, "1.5"):
		score += 3
	}
	if strings.Contains(name, "pro") {
		score += 2
	}
	if strings.Contains(name, "flash") {
		score += 1
	}
	if strings.Contains(name, "exp") {
		score -= 1
	}
	return score
}

// GenerationConfigFor maps a quality tier onto sampling parameters.
func GenerationConfigFor(q Quality) GenerationConfig {
	switch q {
	case QualityHigh:
		return GenerationConfig{Temperature: 0.8, TopP: 0.95, TopK: 40, MaxOutputTokens: 2048}
	case QualityMedium:
		return GenerationConfig{Temperature: 0.7, TopP: 0.9, TopK: 40, MaxOutputTokens: 1024}
	default:
		return GenerationConfig{Temperature: 0.5, TopP: 0.9, TopK: 40, MaxOutputTokens: 768}
	}
}

// Catalog lists the model ids available to the account.
type Catalog interface {
	ListModelNames(ctx context.Context) ([]string, error)
}

// CatalogFunc adapts a plain function to Catalog.
type CatalogFunc func(ctx context.Context) ([]string, error)

func (f CatalogFunc) ListModelNames(ctx context.Context) ([]string, error) { return f(ctx) }

// Selector picks a concrete model name for a quality tier. The catalog is
// cached so repeated requests do not hit the list-models endpoint.
type Selector struct {
	Catalog Catalog
	// Override returns the configured model for a task ("" means none).
	// An available override wins outright over scoring.
	Override func(task string) string

	catalogCache *cache.LRUCache
}

func NewSelector(catalog Catalog, override func(task string) string) *Selector {
	if override == nil {
		override = func(string) string { return "" }
	}
	return &Selector{
		Catalog:      catalog,
		Override:     override,
		catalogCache: cache.NewLRUCache(4, catalogCacheTTL),
	}
}

// ModelNames returns the cached catalog, sorted and de-duplicated. A listing
// failure degrades to an empty catalog so selection can still fall back to
// the default name.
func (s *Selector) ModelNames(ctx context.Context) []string {
	if s.Catalog == nil {
		return nil
	}
	if cached, ok := s.catalogCache.Get(catalogCacheKey); ok {
		if names, ok := cached.([]string); ok {
			return names
		}
	}
	names, err := s.Catalog.ListModelNames(ctx)
	if err != nil {
		log.Printf("models: list models failed: %v", err)
		return nil
	}
	seen := make(map[string]bool, len(names))
	uniq := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		uniq = append(uniq, n)
	}
	sort.Strings(uniq)
	s.catalogCache.Set(catalogCacheKey, uniq)
	return uniq
}

// SelectModel resolves the model for one call. An override configured for the
// task wins when the catalog carries it; otherwise candidates are filtered by
// tier preference (pro for high/medium, flash first for low) and ranked by
// ScoreModelName. An empty catalog yields the override or DefaultModel.
func (s *Selector) SelectModel(ctx context.Context, q Quality, task string) string {
	override := strings.TrimSpace(s.Override(task))
	names := s.ModelNames(ctx)

	if override != "" && containsName(names, override) {
		return override
	}

	candidates := preferContains(names, q)
	if len(candidates) == 0 {
		if override != "" {
			return override
		}
		return DefaultModel
	}
	return bestByScore(candidates)
}

// FallbackCandidates returns the remaining catalog in cascade order: tier
// preference first, then the rest, all ranked by score, minus anything
// already tried.
func (s *Selector) FallbackCandidates(ctx context.Context, q Quality, tried map[string]bool) []string {
	names := s.ModelNames(ctx)
	preferred := preferContains(names, q)

	seq := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range preferred {
		if tried[n] || seen[n] {
			continue
		}
		seen[n] = true
		seq = append(seq, n)
	}
	if len(seq) == 0 {
		for _, n := range names {
			if tried[n] || seen[n] {
				continue
			}
			seen[n] = true
			seq = append(seq, n)
		}
	}
	sortByScore(seq)
	return seq
}

// preferContains applies the tier preference: high/medium want pro models,
// low wants flash and settles for pro. No match at all returns the full
// catalog.
func preferContains(names []string, q Quality) []string {
	filter := func(subs ...string) []string {
		var out []string
		for _, n := range names {
			if containsAny(n, subs) {
				out = append(out, n)
			}
		}
		return out
	}
	var candidates []string
	if q == QualityHigh || q == QualityMedium {
		candidates = filter("pro")
	} else {
		candidates = filter("flash")
		if len(candidates) == 0 {
			candidates = filter("pro")
		}
	}
	if len(candidates) == 0 {
		candidates = names
	}
	return candidates
}

func bestByScore(names []string) string {
	ranked := append([]string(nil), names...)
	sortByScore(ranked)
	return ranked[0]
}

// sortByScore orders descending by score, breaking ties by name so repeated
// runs agree.
func sortByScore(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		si, sj := ScoreModelName(names[i]), ScoreModelName(names[j])
		if si != sj {
			return si > sj
		}
		return names[i] < names[j]
	})
}

func containsName(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
