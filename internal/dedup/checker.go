package dedup

import (
	"strings"
	"unicode"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// DefaultAuthorThreshold is the author overlap score above which two papers
// with matching titles are treated as the same work.
const DefaultAuthorThreshold = 0.5

// Config holds the thresholds for the duplicate checker.
type Config struct {
	// AuthorThreshold is the author overlap score required to confirm a
	// title match as a duplicate. Zero uses DefaultAuthorThreshold.
	AuthorThreshold float64
}

// Checker detects duplicates within a candidate set. Candidates from arXiv
// can repeat across result pages and appear as multiple versions of the
// same work; equality on the canonical ID catches the former, normalized
// title plus author overlap the latter.
type Checker struct {
	authorThreshold float64
}

// NewChecker creates a Checker with the given configuration.
func NewChecker(cfg Config) *Checker {
	threshold := cfg.AuthorThreshold
	if threshold <= 0 {
		threshold = DefaultAuthorThreshold
	}
	return &Checker{authorThreshold: threshold}
}

// Deduplicate returns the papers with duplicates removed, preserving order.
// When two papers match, the earlier one wins. The second return value is
// the number of papers dropped.
func (c *Checker) Deduplicate(papers []*domain.Paper) ([]*domain.Paper, int) {
	if len(papers) <= 1 {
		return papers, 0
	}

	seenCanonical := make(map[string]struct{}, len(papers))
	kept := make([]*domain.Paper, 0, len(papers))
	keptTitles := make([]string, 0, len(papers))

	for _, paper := range papers {
		if paper == nil {
			continue
		}

		if paper.CanonicalID != "" {
			if _, ok := seenCanonical[paper.CanonicalID]; ok {
				continue
			}
		}

		title := NormalizeTitle(paper.Title)
		duplicate := false
		for i, keptTitle := range keptTitles {
			if title == "" || title != keptTitle {
				continue
			}
			if c.sameWork(paper, kept[i]) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		if paper.CanonicalID != "" {
			seenCanonical[paper.CanonicalID] = struct{}{}
		}
		kept = append(kept, paper)
		keptTitles = append(keptTitles, title)
	}

	return kept, len(papers) - len(kept)
}

// sameWork confirms a title match. Papers whose author lists overlap above
// the threshold are the same work; if either side has no authors the title
// match alone decides.
func (c *Checker) sameWork(a, b *domain.Paper) bool {
	if len(a.Authors) == 0 || len(b.Authors) == 0 {
		return true
	}
	return AuthorOverlap(a.Authors, b.Authors) >= c.authorThreshold
}

// Deduplicate removes duplicates from a candidate set using default
// thresholds. See Checker.Deduplicate.
func Deduplicate(papers []*domain.Paper) ([]*domain.Paper, int) {
	return NewChecker(Config{}).Deduplicate(papers)
}

// NormalizeTitle normalizes a paper title for comparison: lowercases,
// drops every non-letter non-digit non-space character, and collapses
// runs of whitespace.
func NormalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(title))
	prevSpace := false

	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimRight(sb.String(), " ")
}
