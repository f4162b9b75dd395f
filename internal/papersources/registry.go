package papersources

import (
	"context"
	"sync"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// SourceResult is one source's contribution to a fan-out search. Exactly one
// of Result and Error is set.
type SourceResult struct {
	Source domain.SourceType
	Result *SearchResult
	Error  error
}

// Registry holds the registered paper sources and fans searches out across
// them. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.SourceType]PaperSource
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.SourceType]PaperSource),
	}
}

// Register adds a source, replacing any existing source of the same type.
func (r *Registry) Register(source PaperSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns the source registered for the type, or nil.
func (r *Registry) Get(sourceType domain.SourceType) PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// AllSources returns a snapshot of every registered source.
func (r *Registry) AllSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.sources))
	for _, source := range r.sources {
		sources = append(sources, source)
	}
	return sources
}

// EnabledSources returns a snapshot of the sources reporting IsEnabled.
func (r *Registry) EnabledSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.sources))
	for _, source := range r.sources {
		if source.IsEnabled() {
			sources = append(sources, source)
		}
	}
	return sources
}

// SearchAll runs the search against every enabled source concurrently and
// returns one SourceResult per source, failures included.
func (r *Registry) SearchAll(ctx context.Context, params SearchParams) []SourceResult {
	return r.SearchSources(ctx, params, nil)
}

// SearchSources runs the search against the named sources concurrently.
// A nil or empty sourceTypes means every enabled source; unknown types are
// skipped. Per-source errors come back in the results rather than aborting
// the other searches.
func (r *Registry) SearchSources(ctx context.Context, params SearchParams, sourceTypes []domain.SourceType) []SourceResult {
	sources := r.pick(sourceTypes)
	if len(sources) == 0 {
		return nil
	}

	results := make(chan SourceResult, len(sources))
	var wg sync.WaitGroup
	for _, source := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := source.Search(ctx, params)
			results <- SourceResult{
				Source: source.SourceType(),
				Result: result,
				Error:  err,
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]SourceResult, 0, len(sources))
	for result := range results {
		collected = append(collected, result)
	}
	return collected
}

func (r *Registry) pick(sourceTypes []domain.SourceType) []PaperSource {
	if len(sourceTypes) == 0 {
		return r.EnabledSources()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(sourceTypes))
	for _, st := range sourceTypes {
		if source, ok := r.sources[st]; ok {
			sources = append(sources, source)
		}
	}
	return sources
}
