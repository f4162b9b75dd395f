package httpserver

import (
	"time"

	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/repository"
)

// Review response types for JSON serialization.

type startReviewResponse struct {
	RequestID  string    `json:"request_id"`
	WorkflowID string    `json:"workflow_id"`
	RunID      string    `json:"run_id,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	Message    string    `json:"message"`
}

type reviewStatusResponse struct {
	RequestID    string            `json:"request_id"`
	Topic        string            `json:"topic"`
	CraftedQuery string            `json:"crafted_query,omitempty"`
	Status       string            `json:"status"`
	Progress     *progressResponse `json:"progress,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	Duration     string            `json:"duration,omitempty"`
	Config       *configResponse   `json:"configuration,omitempty"`
}

type progressResponse struct {
	CandidatesFound int `json:"candidates_found"`
	PapersSelected  int `json:"papers_selected"`
	PapersReviewed  int `json:"papers_reviewed"`
	PapersFailed    int `json:"papers_failed"`
}

type configResponse struct {
	RequestedPapers int      `json:"requested_papers"`
	OverfetchFactor int      `json:"overfetch_factor"`
	MaxResults      int      `json:"max_results,omitempty"`
	Sources         []string `json:"sources,omitempty"`
	DateFrom        string   `json:"date_from,omitempty"`
	DateTo          string   `json:"date_to,omitempty"`
}

type reviewSummaryResponse struct {
	RequestID       string     `json:"request_id"`
	Topic           string     `json:"topic"`
	Status          string     `json:"status"`
	RequestedPapers int        `json:"requested_papers"`
	PapersReviewed  int        `json:"papers_reviewed"`
	PapersFailed    int        `json:"papers_failed"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Duration        string     `json:"duration,omitempty"`
}

type listReviewsResponse struct {
	Reviews       []reviewSummaryResponse `json:"reviews"`
	NextPageToken string                  `json:"next_page_token,omitempty"`
	TotalCount    int                     `json:"total_count"`
}

type cancelReviewResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	FinalStatus string `json:"final_status"`
}

type paperResponse struct {
	ID              string           `json:"id"`
	CanonicalID     string           `json:"canonical_id,omitempty"`
	ArXivID         string           `json:"arxiv_id,omitempty"`
	Title           string           `json:"title"`
	Abstract        string           `json:"abstract,omitempty"`
	Authors         []authorResponse `json:"authors,omitempty"`
	PublicationDate *time.Time       `json:"publication_date,omitempty"`
	PdfURL          string           `json:"pdf_url,omitempty"`
	Categories      []string         `json:"categories,omitempty"`
	RelevanceRank   int              `json:"relevance_rank,omitempty"`
	Outcome         string           `json:"outcome,omitempty"`
	OutcomeError    string           `json:"outcome_error,omitempty"`
}

type authorResponse struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

type listPapersResponse struct {
	Papers     []paperResponse `json:"papers"`
	TotalCount int             `json:"total_count"`
}

type paperReviewResponse struct {
	PaperID            string   `json:"paper_id"`
	Rank               int      `json:"rank"`
	Title              string   `json:"title"`
	AuthorNames        string   `json:"author_names,omitempty"`
	PublicationDetails string   `json:"publication_details,omitempty"`
	Abstract           string   `json:"abstract,omitempty"`
	Description        string   `json:"description,omitempty"`
	Scope              string   `json:"scope,omitempty"`
	Methodology        string   `json:"methodology,omitempty"`
	ResearchGaps       string   `json:"research_gaps,omitempty"`
	ResearchQuestions  string   `json:"research_questions,omitempty"`
	ImportantPoints    []string `json:"important_points,omitempty"`
	ImportantSentences []string `json:"important_sentences,omitempty"`
	ResultsConclusion  string   `json:"results_conclusion,omitempty"`
	Advantages         string   `json:"advantages,omitempty"`
	Disadvantages      string   `json:"disadvantages,omitempty"`
	TokensUsed         int      `json:"tokens_used,omitempty"`
}

type documentResponse struct {
	RequestID       string                `json:"request_id"`
	Topic           string                `json:"topic"`
	CraftedQuery    string                `json:"crafted_query,omitempty"`
	Markdown        string                `json:"markdown"`
	Reviews         []paperReviewResponse `json:"reviews"`
	TotalTokensUsed int                   `json:"total_tokens_used,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

// Converter functions

func domainReviewToStatusResponse(r *domain.ReviewRequest) reviewStatusResponse {
	resp := reviewStatusResponse{
		RequestID:    r.ID.String(),
		Topic:        r.Topic,
		CraftedQuery: r.CraftedQuery,
		Status:       string(r.Status),
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		Progress: &progressResponse{
			CandidatesFound: r.CandidatesFound,
			PapersSelected:  r.PapersSelected,
			PapersReviewed:  r.PapersReviewed,
			PapersFailed:    r.PapersFailedCount,
		},
		Config: domainConfigToResponse(r.Configuration),
	}
	if d := r.Duration(); d > 0 {
		resp.Duration = d.String()
	}
	return resp
}

func domainConfigToResponse(c domain.ReviewConfiguration) *configResponse {
	sources := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		sources[i] = string(s)
	}
	resp := &configResponse{
		RequestedPapers: c.RequestedPapers,
		OverfetchFactor: c.OverfetchFactor,
		MaxResults:      c.MaxResults,
		Sources:         sources,
	}
	if c.DateFrom != nil {
		resp.DateFrom = c.DateFrom.Format(time.RFC3339)
	}
	if c.DateTo != nil {
		resp.DateTo = c.DateTo.Format(time.RFC3339)
	}
	return resp
}

func domainReviewToSummary(r *domain.ReviewRequest) reviewSummaryResponse {
	resp := reviewSummaryResponse{
		RequestID:       r.ID.String(),
		Topic:           r.Topic,
		Status:          string(r.Status),
		RequestedPapers: r.Configuration.RequestedPapers,
		PapersReviewed:  r.PapersReviewed,
		PapersFailed:    r.PapersFailedCount,
		CreatedAt:       r.CreatedAt,
		CompletedAt:     r.CompletedAt,
	}
	if d := r.Duration(); d > 0 {
		resp.Duration = d.String()
	}
	return resp
}

func selectedPaperToResponse(sp *repository.SelectedPaper) paperResponse {
	resp := domainPaperToResponse(sp.Paper)
	resp.RelevanceRank = sp.RelevanceRank
	resp.Outcome = string(sp.Outcome)
	resp.OutcomeError = sp.OutcomeError
	return resp
}

func domainPaperToResponse(p *domain.Paper) paperResponse {
	authors := make([]authorResponse, len(p.Authors))
	for i, a := range p.Authors {
		authors[i] = authorResponse{
			Name:        a.Name,
			Affiliation: a.Affiliation,
			ORCID:       a.ORCID,
		}
	}
	return paperResponse{
		ID:              p.ID.String(),
		CanonicalID:     p.CanonicalID,
		ArXivID:         p.ArXivID,
		Title:           p.Title,
		Abstract:        p.Abstract,
		Authors:         authors,
		PublicationDate: p.PublicationDate,
		PdfURL:          p.PDFURL,
		Categories:      p.Categories,
	}
}

func domainDocumentToResponse(doc *domain.ReviewDocument) documentResponse {
	reviews := make([]paperReviewResponse, len(doc.Reviews))
	for i, rev := range doc.Reviews {
		reviews[i] = paperReviewResponse{
			PaperID:            rev.PaperID.String(),
			Rank:               rev.Rank,
			Title:              rev.Title,
			AuthorNames:        rev.AuthorNames,
			PublicationDetails: rev.PublicationDetails,
			Abstract:           rev.Abstract,
			Description:        rev.Description,
			Scope:              rev.Scope,
			Methodology:        rev.Methodology,
			ResearchGaps:       rev.ResearchGaps,
			ResearchQuestions:  rev.ResearchQuestions,
			ImportantPoints:    rev.ImportantPoints,
			ImportantSentences: rev.ImportantSentences,
			ResultsConclusion:  rev.ResultsConclusion,
			Advantages:         rev.Advantages,
			Disadvantages:      rev.Disadvantages,
			TokensUsed:         rev.TokensUsed,
		}
	}
	return documentResponse{
		RequestID:       doc.RequestID.String(),
		Topic:           doc.Topic,
		CraftedQuery:    doc.CraftedQuery,
		Markdown:        doc.Markdown,
		Reviews:         reviews,
		TotalTokensUsed: doc.TotalTokensUsed,
		CreatedAt:       doc.CreatedAt,
	}
}
