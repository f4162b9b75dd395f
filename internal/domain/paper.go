package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// arxivVersionSuffix matches a trailing version marker on an arXiv ID (e.g. "v2").
var arxivVersionSuffix = regexp.MustCompile(`v\d+$`)

// PaperIdentifiers holds the identifiers a paper can carry.
type PaperIdentifiers struct {
	DOI     string
	ArXivID string
}

// GenerateCanonicalID generates a canonical identifier from paper identifiers.
// Priority order: DOI > ArXiv. ArXiv version suffixes are stripped so that
// revisions of the same paper share a canonical ID. Returns empty string if
// no identifiers are available.
func GenerateCanonicalID(ids PaperIdentifiers) string {
	if doi := strings.TrimSpace(ids.DOI); doi != "" {
		// Normalize DOI to lowercase
		return "doi:" + strings.ToLower(doi)
	}

	if arxiv := strings.TrimSpace(ids.ArXivID); arxiv != "" {
		return "arxiv:" + arxivVersionSuffix.ReplaceAllString(arxiv, "")
	}

	return ""
}

// Author represents a paper author with optional affiliation and ORCID.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

// String returns a formatted string representation of the author.
func (a Author) String() string {
	var sb strings.Builder
	sb.WriteString(a.Name)

	if a.Affiliation != "" {
		sb.WriteString(" (")
		sb.WriteString(a.Affiliation)
		sb.WriteString(")")
	}

	if a.ORCID != "" {
		sb.WriteString(" [")
		sb.WriteString(a.ORCID)
		sb.WriteString("]")
	}

	return sb.String()
}

// AuthorNames joins author names with commas for display and prompts.
func AuthorNames(authors []Author) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

// Paper represents an academic paper discovered during a review.
type Paper struct {
	ID              uuid.UUID
	CanonicalID     string
	ArXivID         string
	Title           string
	Abstract        string
	Authors         []Author
	PublicationDate *time.Time
	PDFURL          string
	Categories      []string
	RelevanceRank   int
	RawMetadata     map[string]interface{}
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasIdentifier returns true if the paper has at least one identifier.
func (p *Paper) HasIdentifier() bool {
	return p.CanonicalID != ""
}

// PublishedDate returns the publication date formatted as YYYY-MM-DD,
// or empty string when unknown.
func (p *Paper) PublishedDate() string {
	if p.PublicationDate == nil {
		return ""
	}
	return p.PublicationDate.Format("2006-01-02")
}
