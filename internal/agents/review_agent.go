package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/llm"
)

const reviewSystemPrompt = `You are a research assistant specialized in summarizing academic papers.
For each paper, output the following **exact structured format**:

---
### Title: <paper title>

**Author Names:** <list of authors>
**Publication Details:** <year, venue>

**Abstract:** <exact abstract from paper>

**Description:** <summary in your own words>

**Scope:** <scope of research>

**Methodology:** <technical approaches, models, algorithms>

**Research Gaps:** <limitations / gaps>

**Research Questions:** <questions addressed>

**Important Points:**
- Point 1
- Point 2
...

**Important Sentences (direct quotes):**
1. "..."
2. "..."

**Results & Conclusion:** <findings, statistics, contributions>

**Advantages:** <strengths>
**Disadvantages:** <limitations>
---

Always output in this exact structure. Do NOT return JSON. Do NOT include tool logs.`

// ReviewAgentConfig configures the review agent.
type ReviewAgentConfig struct {
	// Temperature is the sampling temperature for review prompts.
	Temperature float64

	// MaxTokens limits each review's response length. Zero uses the
	// provider default.
	MaxTokens int
}

// applyDefaults fills unset config fields.
func (c *ReviewAgentConfig) applyDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 0.4
	}
}

// ReviewAgent produces a structured literature review for each paper.
type ReviewAgent struct {
	client llm.Client
	config ReviewAgentConfig
	logger zerolog.Logger
}

// NewReviewAgent creates a review agent backed by the given LLM client.
func NewReviewAgent(client llm.Client, cfg ReviewAgentConfig, logger zerolog.Logger) *ReviewAgent {
	cfg.applyDefaults()
	return &ReviewAgent{
		client: client,
		config: cfg,
		logger: logger.With().Str("agent", ReviewAgentName).Logger(),
	}
}

// Name returns the agent's name.
func (a *ReviewAgent) Name() string { return ReviewAgentName }

// Description returns a short description of the agent.
func (a *ReviewAgent) Description() string {
	return "Agent that helps with literature review tasks."
}

// Review summarizes one paper into the structured review format.
// The model response is parsed section by section; sections the model
// omitted fall back to the paper's own metadata where possible.
func (a *ReviewAgent) Review(ctx context.Context, topic string, paper *domain.Paper) (*domain.PaperReview, error) {
	if paper == nil {
		return nil, domain.NewValidationError("paper", "paper is required")
	}

	resp, err := a.client.Complete(ctx, llm.Request{
		System:      reviewSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildReviewPrompt(topic, paper)}},
		Temperature: a.config.Temperature,
		MaxTokens:   a.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("reviewing %q: %w", paper.Title, err)
	}

	review := parseReview(resp.Text)
	review.PaperID = paper.ID
	review.Rank = paper.RelevanceRank
	review.TokensUsed = resp.TotalTokens()
	review.CreatedAt = time.Now()

	// Fill gaps the model left from the paper's own metadata.
	if review.Title == "" {
		review.Title = paper.Title
	}
	if review.AuthorNames == "" {
		review.AuthorNames = domain.AuthorNames(paper.Authors)
	}
	if review.Abstract == "" {
		review.Abstract = paper.Abstract
	}
	if review.PublicationDetails == "" && paper.PublicationDate != nil {
		review.PublicationDetails = fmt.Sprintf("%d, arXiv", paper.PublicationDate.Year())
	}

	return review, nil
}

// HandleTurn runs the review agent's conversation turn: review every
// selected paper in rank order.
func (a *ReviewAgent) HandleTurn(ctx context.Context, conv *Conversation) (*Message, error) {
	if len(conv.Selected) == 0 {
		return nil, domain.NewValidationError("selected", "no papers selected for review")
	}

	tokens := 0
	reviews := make([]*domain.PaperReview, 0, len(conv.Selected))
	var parts []string

	for _, paper := range conv.Selected {
		review, err := a.Review(ctx, conv.Topic, paper)
		if err != nil {
			return nil, err
		}
		tokens += review.TokensUsed
		reviews = append(reviews, review)
		parts = append(parts, review.Markdown())
	}
	conv.Reviews = reviews

	return &Message{
		Agent:      ReviewAgentName,
		Content:    strings.Join(parts, "\n"),
		TokensUsed: tokens,
		CreatedAt:  time.Now(),
	}, nil
}

// buildReviewPrompt renders the paper details for the review request.
func buildReviewPrompt(topic string, paper *domain.Paper) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summarize this paper for a literature review on the topic %q.\n\n", topic)
	fmt.Fprintf(&sb, "Title: %s\n", paper.Title)
	if names := domain.AuthorNames(paper.Authors); names != "" {
		fmt.Fprintf(&sb, "Authors: %s\n", names)
	}
	if d := paper.PublishedDate(); d != "" {
		fmt.Fprintf(&sb, "Published: %s\n", d)
	}
	if len(paper.Categories) > 0 {
		fmt.Fprintf(&sb, "Categories: %s\n", strings.Join(paper.Categories, ", "))
	}
	if paper.PDFURL != "" {
		fmt.Fprintf(&sb, "PDF: %s\n", paper.PDFURL)
	}
	if paper.Abstract != "" {
		fmt.Fprintf(&sb, "\nAbstract: %s\n", paper.Abstract)
	}
	return sb.String()
}

// sectionHeaderRegex matches a bold section header like "**Methodology:**".
var sectionHeaderRegex = regexp.MustCompile(`^\*\*([^*]+?):?\*\*:?\s*(.*)$`)

// titleHeaderRegex matches the "### Title:" heading.
var titleHeaderRegex = regexp.MustCompile(`^#{1,4}\s*Title:?\s*(.*)$`)

// quoteLineRegex matches a numbered quote line like `1. "..."`.
var quoteLineRegex = regexp.MustCompile(`^\d+[.)]\s*(.*)$`)

// parseReview parses the model's structured markdown into a PaperReview.
// The parser is tolerant: unknown sections are ignored and missing sections
// leave their fields empty for the caller to backfill.
func parseReview(text string) *domain.PaperReview {
	review := &domain.PaperReview{}

	var current string
	var buf []string

	flush := func() {
		content := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if current == "" {
			return
		}
		setSection(review, current, content)
		current = ""
	}

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)

		if line == "---" {
			flush()
			continue
		}

		if m := titleHeaderRegex.FindStringSubmatch(line); m != nil {
			flush()
			review.Title = strings.TrimSpace(m[1])
			continue
		}

		if m := sectionHeaderRegex.FindStringSubmatch(line); m != nil {
			flush()
			current = normalizeSectionName(m[1])
			if rest := strings.TrimSpace(m[2]); rest != "" {
				buf = append(buf, rest)
			}
			continue
		}

		if current != "" {
			buf = append(buf, line)
		}
	}
	flush()

	return review
}

// normalizeSectionName canonicalizes a section header for lookup.
func normalizeSectionName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, ":")
	return name
}

// setSection writes a parsed section's content into the review.
func setSection(review *domain.PaperReview, section, content string) {
	switch section {
	case "author names", "authors":
		review.AuthorNames = content
	case "publication details":
		review.PublicationDetails = content
	case "abstract":
		review.Abstract = content
	case "description":
		review.Description = content
	case "scope":
		review.Scope = content
	case "methodology":
		review.Methodology = content
	case "research gaps":
		review.ResearchGaps = content
	case "research questions":
		review.ResearchQuestions = content
	case "important points":
		review.ImportantPoints = parseBullets(content)
	case "important sentences (direct quotes)", "important sentences":
		review.ImportantSentences = parseQuotes(content)
	case "results & conclusion", "results and conclusion":
		review.ResultsConclusion = content
	case "advantages":
		review.Advantages = content
	case "disadvantages":
		review.Disadvantages = content
	}
}

// parseBullets extracts bullet list items from section content.
func parseBullets(content string) []string {
	var points []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "- "); ok {
			points = append(points, strings.TrimSpace(after))
		} else if after, ok := strings.CutPrefix(line, "* "); ok {
			points = append(points, strings.TrimSpace(after))
		}
	}
	return points
}

// parseQuotes extracts numbered quote lines from section content.
func parseQuotes(content string) []string {
	var quotes []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		m := quoteLineRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		quote := strings.TrimSpace(m[1])
		quote = strings.Trim(quote, `"`)
		quote = strings.Trim(quote, "“”")
		if quote != "" {
			quotes = append(quotes, quote)
		}
	}
	return quotes
}
