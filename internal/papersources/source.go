// Package papersources provides clients for searching academic paper databases.
//
// Each supported database implements the PaperSource interface, allowing the
// review pipeline to fetch candidate papers through a unified API. arXiv is the
// primary source; the Registry coordinates searches when more than one source
// is enabled.
//
// Example usage:
//
//	source := arxiv.New(cfg)
//	params := papersources.SearchParams{
//		Query:      `all:"quantum error correction"`,
//		MaxResults: 25,
//	}
//	result, err := source.Search(ctx, params)
package papersources

import (
	"context"
	"time"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// SearchParams describes one candidate search. Only Query is required.
type SearchParams struct {
	// Query is the search string. The search agent crafts it, so it may
	// carry source-specific field prefixes and boolean operators (arXiv's
	// all:, ti:, AND).
	Query string

	// DateFrom and DateTo bound the publication window; nil means
	// unbounded on that side.
	DateFrom *time.Time
	DateTo   *time.Time

	// MaxResults caps one page of results. Zero means the source default,
	// and sources may clamp it to their own ceiling.
	MaxResults int

	// Offset is the pagination start position.
	Offset int
}

// SearchResult is one page of candidates from a source.
type SearchResult struct {
	// Papers are the matches, already mapped to domain form. May be empty.
	Papers []*domain.Paper

	// TotalResults is the source's match count across all pages. Some
	// APIs estimate this for large result sets.
	TotalResults int

	// HasMore and NextOffset describe the next page; NextOffset only
	// means anything when HasMore is true.
	HasMore    bool
	NextOffset int

	// Source names which backend produced this page.
	Source domain.SourceType

	// SearchDuration covers the request plus response parsing.
	SearchDuration time.Duration
}

// PaperSource is the contract every paper database client implements.
// Implementations respect context cancellation, rate-limit their own
// upstream calls, map responses to domain.Paper, and wrap errors with
// source context.
type PaperSource interface {
	// Search returns one page of papers matching params.
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// GetByID fetches a single paper by its source-native identifier
	// ("2301.04567" for arXiv). Missing papers yield domain.ErrNotFound.
	GetByID(ctx context.Context, id string) (*domain.Paper, error)

	// SourceType identifies the backend in domain terms.
	SourceType() domain.SourceType

	// Name is the display name used in logs and metrics.
	Name() string

	// IsEnabled reports whether this source participates in searches.
	IsEnabled() bool
}
