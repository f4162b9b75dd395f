package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaperReview is the structured literature review of a single paper.
// Section fields mirror the fixed markdown template the review agent emits.
type PaperReview struct {
	ID        uuid.UUID `json:"id"`
	RequestID uuid.UUID `json:"request_id"`
	PaperID   uuid.UUID `json:"paper_id"`

	// Rank is the paper's relevance rank within the review (1 = most relevant).
	Rank int `json:"rank"`

	Title              string   `json:"title"`
	AuthorNames        string   `json:"author_names"`
	PublicationDetails string   `json:"publication_details"`
	Abstract           string   `json:"abstract"`
	Description        string   `json:"description"`
	Scope              string   `json:"scope"`
	Methodology        string   `json:"methodology"`
	ResearchGaps       string   `json:"research_gaps"`
	ResearchQuestions  string   `json:"research_questions"`
	ImportantPoints    []string `json:"important_points"`
	ImportantSentences []string `json:"important_sentences"`
	ResultsConclusion  string   `json:"results_conclusion"`
	Advantages         string   `json:"advantages"`
	Disadvantages      string   `json:"disadvantages"`

	// TokensUsed is the total LLM token count spent producing this review.
	TokensUsed int `json:"tokens_used,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Markdown renders the review in the canonical structured format.
func (r *PaperReview) Markdown() string {
	var sb strings.Builder

	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "### Title: %s\n\n", r.Title)
	fmt.Fprintf(&sb, "**Author Names:** %s\n", r.AuthorNames)
	fmt.Fprintf(&sb, "**Publication Details:** %s\n\n", r.PublicationDetails)
	fmt.Fprintf(&sb, "**Abstract:** %s\n\n", r.Abstract)
	fmt.Fprintf(&sb, "**Description:** %s\n\n", r.Description)
	fmt.Fprintf(&sb, "**Scope:** %s\n\n", r.Scope)
	fmt.Fprintf(&sb, "**Methodology:** %s\n\n", r.Methodology)
	fmt.Fprintf(&sb, "**Research Gaps:** %s\n\n", r.ResearchGaps)
	fmt.Fprintf(&sb, "**Research Questions:** %s\n\n", r.ResearchQuestions)

	sb.WriteString("**Important Points:**\n")
	for _, p := range r.ImportantPoints {
		fmt.Fprintf(&sb, "- %s\n", p)
	}
	sb.WriteString("\n**Important Sentences (direct quotes):**\n")
	for i, s := range r.ImportantSentences {
		fmt.Fprintf(&sb, "%d. %q\n", i+1, s)
	}

	fmt.Fprintf(&sb, "\n**Results & Conclusion:** %s\n\n", r.ResultsConclusion)
	fmt.Fprintf(&sb, "**Advantages:** %s\n", r.Advantages)
	fmt.Fprintf(&sb, "**Disadvantages:** %s\n", r.Disadvantages)
	sb.WriteString("---\n")

	return sb.String()
}

// ReviewDocument is the assembled literature review for a request: the
// per-paper reviews in rank order plus the rendered markdown body.
type ReviewDocument struct {
	ID        uuid.UUID `json:"id"`
	RequestID uuid.UUID `json:"request_id"`

	Topic        string `json:"topic"`
	CraftedQuery string `json:"crafted_query,omitempty"`

	Reviews []PaperReview `json:"reviews"`

	// Markdown is the rendered document body.
	Markdown string `json:"markdown"`

	// TotalTokensUsed aggregates LLM token usage across the whole review.
	TotalTokensUsed int `json:"total_tokens_used,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// AssembleDocument builds a ReviewDocument from per-paper reviews, ordered by
// rank, rendering the combined markdown body.
func AssembleDocument(requestID uuid.UUID, topic, craftedQuery string, reviews []PaperReview) *ReviewDocument {
	doc := &ReviewDocument{
		ID:           uuid.New(),
		RequestID:    requestID,
		Topic:        topic,
		CraftedQuery: craftedQuery,
		Reviews:      reviews,
		CreatedAt:    time.Now(),
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Literature Review: %s\n\n", topic)
	for i := range reviews {
		doc.TotalTokensUsed += reviews[i].TokensUsed
		sb.WriteString(reviews[i].Markdown())
		sb.WriteString("\n")
	}
	doc.Markdown = strings.TrimRight(sb.String(), "\n") + "\n"

	return doc
}
