// Package dedup detects duplicate papers inside a candidate set through
// canonical identifiers and fuzzy matching of titles and author lists.
package dedup

import (
	"strings"
	"unicode"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// AuthorOverlap computes a fuzzy overlap score between two author lists.
// Each author in the smaller list is greedily paired with the most similar
// unmatched author in the larger list, and the total matched similarity is
// divided by the union count.
//
// Returns 0.0 if either list is empty and 1.0 for a perfect match. The
// result is symmetric.
func AuthorOverlap(a, b []domain.Author) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	smaller := normalizeAuthors(a)
	larger := normalizeAuthors(b)
	if len(smaller) > len(larger) {
		smaller, larger = larger, smaller
	}

	used := make([]bool, len(larger))
	matched := 0
	totalScore := 0.0

	for _, name := range smaller {
		idx, score := bestMatch(name, larger, used)
		if idx < 0 {
			continue
		}
		used[idx] = true
		matched++
		totalScore += score
	}

	union := len(smaller) + len(larger) - matched
	if union == 0 {
		return 0.0
	}
	return totalScore / float64(union)
}

// bestMatch finds the most similar unused name, returning -1 when nothing
// scores above zero.
func bestMatch(name string, candidates []string, used []bool) (int, float64) {
	bestIdx, bestScore := -1, 0.0
	for j, candidate := range candidates {
		if used[j] {
			continue
		}
		if score := nameSimilarity(name, candidate); score > bestScore {
			bestIdx, bestScore = j, score
		}
	}
	return bestIdx, bestScore
}

// NormalizeName normalizes an author name for comparison: lowercases,
// reorders "Last, First" to "First Last", drops every non-letter
// non-space character, and collapses runs of whitespace.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	if idx := strings.Index(name, ","); idx >= 0 {
		last := strings.TrimSpace(name[:idx])
		first := strings.TrimSpace(name[idx+1:])
		name = last
		if first != "" {
			name = first + " " + last
		}
	}

	var sb strings.Builder
	sb.Grow(len(name))
	pendingSpace := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			if pendingSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
			}
			sb.WriteRune(r)
			pendingSpace = false
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return sb.String()
}

// nameSimilarity compares two normalized author names.
//
// Scoring:
//   - exact match, or same last and first name: 1.0
//   - same last name, matching initial: 0.9
//   - same last name, a side has only a last name: 0.7
//   - same last name, different first names: 0.3
//   - different last names: 0.0
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	partsA := strings.Fields(a)
	partsB := strings.Fields(b)

	if partsA[len(partsA)-1] != partsB[len(partsB)-1] {
		return 0.0
	}

	firstA := partsA[:len(partsA)-1]
	firstB := partsB[:len(partsB)-1]

	switch {
	case len(firstA) == 0 || len(firstB) == 0:
		return 0.7
	case strings.Join(firstA, " ") == strings.Join(firstB, " "):
		return 1.0
	case isInitialMatch(firstA[0], firstB[0]):
		return 0.9
	}
	return 0.3
}

// isInitialMatch reports whether one token is a single-letter initial of
// the other.
func isInitialMatch(a, b string) bool {
	if len(a) == 1 && len(b) > 1 {
		return a[0] == b[0]
	}
	if len(b) == 1 && len(a) > 1 {
		return b[0] == a[0]
	}
	return false
}

func normalizeAuthors(authors []domain.Author) []string {
	result := make([]string, len(authors))
	for i, a := range authors {
		result[i] = NormalizeName(a.Name)
	}
	return result
}
