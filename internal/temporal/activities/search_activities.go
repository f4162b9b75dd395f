package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/scribeworks/litreview-service/internal/dedup"
	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/observability"
	"github.com/scribeworks/litreview-service/internal/papersources"
	"github.com/scribeworks/litreview-service/internal/temporal/resilience"
)

// SearchActivities provides Temporal activities for paper source searches.
type SearchActivities struct {
	registry *papersources.Registry
	breakers *resilience.BreakerRegistry
	metrics  *observability.Metrics
}

// NewSearchActivities creates a new SearchActivities instance.
// The breakers and metrics parameters may be nil (circuit breaking and
// metrics recording will be skipped).
func NewSearchActivities(registry *papersources.Registry, breakers *resilience.BreakerRegistry, metrics *observability.Metrics) *SearchActivities {
	return &SearchActivities{
		registry: registry,
		breakers: breakers,
		metrics:  metrics,
	}
}

// SearchCandidates fetches candidate papers from a single source using the
// crafted query.
func (a *SearchActivities) SearchCandidates(ctx context.Context, input SearchCandidatesInput) (*SearchCandidatesOutput, error) {
	logger := activity.GetLogger(ctx)

	source := input.Source
	if source == "" {
		source = domain.SourceTypeArXiv
	}

	logger.Info("searching for candidates",
		"requestID", input.RequestID,
		"source", source,
		"query", input.Query,
		"maxResults", input.MaxResults,
	)

	client := a.registry.Get(source)
	if client == nil {
		return nil, fmt.Errorf("search candidates: no client registered for source %q", source)
	}

	var breaker *resilience.CircuitBreaker
	if a.breakers != nil {
		breaker = a.breakers.Get(string(source))
		if !breaker.Allow() {
			// Surfaces as a transient activity error; the workflow retries
			// after backoff, by which time the cooldown may have elapsed.
			return nil, fmt.Errorf("search %s: circuit open", source)
		}
	}

	if a.metrics != nil {
		a.metrics.RecordSearchStarted(string(source))
	}

	result, err := client.Search(ctx, papersources.SearchParams{
		Query:      input.Query,
		DateFrom:   input.DateFrom,
		DateTo:     input.DateTo,
		MaxResults: input.MaxResults,
	})
	if err != nil {
		if breaker != nil {
			breaker.RecordFailure()
		}
		if a.metrics != nil {
			a.metrics.RecordSearchFailed(string(source), 0)
		}
		logger.Error("candidate search failed",
			"requestID", input.RequestID,
			"source", source,
			"error", err,
		)
		return nil, fmt.Errorf("search %s: %w", source, err)
	}

	if breaker != nil {
		breaker.RecordSuccess()
	}

	// arXiv result pages can repeat entries and list several versions of
	// the same work; drop them before they count against the selection.
	papers, duplicates := dedup.Deduplicate(result.Papers)
	if duplicates > 0 {
		logger.Info("dropped duplicate candidates",
			"requestID", input.RequestID,
			"source", source,
			"duplicates", duplicates,
		)
	}

	if a.metrics != nil {
		a.metrics.RecordSearchCompleted(string(source), len(papers), result.SearchDuration.Seconds())
		a.metrics.RecordCandidatesFetched(string(source), len(papers))
	}

	logger.Info("candidate search completed",
		"requestID", input.RequestID,
		"source", source,
		"papers", len(papers),
		"totalFound", result.TotalResults,
	)

	return &SearchCandidatesOutput{
		Papers:     papers,
		TotalFound: result.TotalResults,
		Source:     result.Source,
	}, nil
}
