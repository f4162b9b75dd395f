package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/llm"
	"github.com/scribeworks/litreview-service/internal/papersources"
)

const searchSystemPrompt = `You are arxiv_agent, a research assistant that searches arXiv for academic papers.
Given a user topic, think of the best arXiv query for it. Queries may use arXiv
field prefixes (all:, ti:, abs:, cat:) and the boolean operators AND and OR.
You over-fetch candidates so that you can down-select the most relevant papers
for the requested count. Always respond with a single JSON object and nothing else.`

// craftQueryResponse is the JSON shape the model returns for query crafting.
type craftQueryResponse struct {
	Query     string `json:"query"`
	Reasoning string `json:"reasoning"`
}

// selectionResponse is the JSON shape the model returns for down-selection.
type selectionResponse struct {
	Selected  []int  `json:"selected"`
	Reasoning string `json:"reasoning"`
}

// CraftedQuery is the result of turning a topic into an arXiv query.
type CraftedQuery struct {
	// Query is the arXiv search query.
	Query string

	// Reasoning is the model's one-line justification.
	Reasoning string

	// TokensUsed is the LLM token count spent crafting the query.
	TokensUsed int
}

// Selection is the result of down-selecting candidates to the requested count.
type Selection struct {
	// Papers are the selected papers in relevance order.
	Papers []*domain.Paper

	// Reasoning is the model's justification for the selection.
	Reasoning string

	// TokensUsed is the LLM token count spent on selection.
	TokensUsed int

	// Fallback is true when the selection came from the recency fallback
	// rather than the model.
	Fallback bool
}

// SearchAgentConfig configures the search agent.
type SearchAgentConfig struct {
	// OverfetchFactor is the candidate multiplier applied to the requested
	// paper count when searching.
	OverfetchFactor int

	// MaxResults caps the number of candidates fetched in one search.
	MaxResults int

	// Temperature is the sampling temperature for agent prompts.
	Temperature float64
}

// applyDefaults fills unset config fields.
func (c *SearchAgentConfig) applyDefaults() {
	if c.OverfetchFactor <= 0 {
		c.OverfetchFactor = domain.DefaultOverfetchFactor
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 100
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
}

// SearchAgent crafts arXiv queries, fetches candidates, and down-selects
// them to the requested paper count.
type SearchAgent struct {
	client llm.Client
	source papersources.PaperSource
	config SearchAgentConfig
	logger zerolog.Logger
}

// NewSearchAgent creates a search agent backed by the given LLM client and
// paper source.
func NewSearchAgent(client llm.Client, source papersources.PaperSource, cfg SearchAgentConfig, logger zerolog.Logger) *SearchAgent {
	cfg.applyDefaults()
	return &SearchAgent{
		client: client,
		source: source,
		config: cfg,
		logger: logger.With().Str("agent", SearchAgentName).Logger(),
	}
}

// Name returns the agent's name.
func (a *SearchAgent) Name() string { return SearchAgentName }

// Description returns a short description of the agent.
func (a *SearchAgent) Description() string {
	return "An agent that helps with searching and retrieving academic papers from arXiv."
}

// CandidateLimit returns the number of candidates to fetch for the requested
// paper count: count times the overfetch factor, capped at MaxResults.
func (a *SearchAgent) CandidateLimit(requested int) int {
	limit := requested * a.config.OverfetchFactor
	if limit > a.config.MaxResults {
		limit = a.config.MaxResults
	}
	if limit < requested {
		limit = requested
	}
	return limit
}

// CraftQuery asks the model for the best arXiv query for the topic.
// A malformed model response is retried once; if the retry also fails the
// topic itself is used as the query.
func (a *SearchAgent) CraftQuery(ctx context.Context, topic string) (*CraftedQuery, error) {
	userPrompt := fmt.Sprintf(
		`Craft the best arXiv search query for a literature review on the topic: %q.
Respond with a JSON object: {"query": "<arXiv query>", "reasoning": "<one sentence>"}`, topic)

	crafted := &CraftedQuery{}
	messages := []llm.Message{{Role: llm.RoleUser, Content: userPrompt}}

	for attempt := 0; attempt < 2; attempt++ {
		resp, err := a.client.Complete(ctx, llm.Request{
			System:      searchSystemPrompt,
			Messages:    messages,
			Temperature: a.config.Temperature,
			JSONMode:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("crafting query: %w", err)
		}
		crafted.TokensUsed += resp.TotalTokens()

		var parsed craftQueryResponse
		if err := json.Unmarshal([]byte(stripCodeFence(resp.Text)), &parsed); err == nil && strings.TrimSpace(parsed.Query) != "" {
			crafted.Query = strings.TrimSpace(parsed.Query)
			crafted.Reasoning = strings.TrimSpace(parsed.Reasoning)
			return crafted, nil
		}

		a.logger.Warn().Int("attempt", attempt+1).Msg("malformed query response, retrying")
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Text},
			llm.Message{Role: llm.RoleUser, Content: "That was not valid JSON. Respond with only the JSON object."},
		)
	}

	// Fall back to the raw topic as an all-fields query.
	a.logger.Warn().Str("topic", topic).Msg("query crafting failed, falling back to topic query")
	crafted.Query = topic
	crafted.Reasoning = "fallback: raw topic query"
	return crafted, nil
}

// SelectPapers asks the model to choose exactly count papers from the
// candidates. A malformed or incomplete selection is retried once; if the
// retry also fails the most recent count candidates are selected instead.
func (a *SearchAgent) SelectPapers(ctx context.Context, topic string, candidates []*domain.Paper, count int) (*Selection, error) {
	if len(candidates) == 0 {
		return nil, domain.NewValidationError("candidates", "no candidate papers to select from")
	}
	if count <= 0 {
		return nil, domain.NewValidationError("count", "requested paper count must be positive")
	}
	if len(candidates) <= count {
		// Nothing to down-select.
		return &Selection{
			Papers:    rankPapers(candidates),
			Reasoning: "all candidates selected: candidate count at or below requested count",
		}, nil
	}

	userPrompt := a.buildSelectionPrompt(topic, candidates, count)

	selection := &Selection{}
	messages := []llm.Message{{Role: llm.RoleUser, Content: userPrompt}}

	for attempt := 0; attempt < 2; attempt++ {
		resp, err := a.client.Complete(ctx, llm.Request{
			System:      searchSystemPrompt,
			Messages:    messages,
			Temperature: a.config.Temperature,
			JSONMode:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("selecting papers: %w", err)
		}
		selection.TokensUsed += resp.TotalTokens()

		var parsed selectionResponse
		if err := json.Unmarshal([]byte(stripCodeFence(resp.Text)), &parsed); err == nil {
			if chosen := validSelection(parsed.Selected, len(candidates), count); chosen != nil {
				papers := make([]*domain.Paper, 0, count)
				for _, idx := range chosen {
					papers = append(papers, candidates[idx])
				}
				selection.Papers = rankPapers(papers)
				selection.Reasoning = strings.TrimSpace(parsed.Reasoning)
				return selection, nil
			}
		}

		a.logger.Warn().Int("attempt", attempt+1).Msg("invalid selection response, retrying")
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Text},
			llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf(
				"That selection was invalid. Respond with only a JSON object containing exactly %d distinct candidate numbers between 1 and %d.", count, len(candidates))},
		)
	}

	// Fall back to the most recent candidates. arXiv results are sorted by
	// submission date descending, so the first count entries are the newest.
	a.logger.Warn().Int("count", count).Msg("selection failed, falling back to most recent candidates")
	selection.Papers = rankPapers(firstByRecency(candidates, count))
	selection.Reasoning = "fallback: most recent candidates"
	selection.Fallback = true
	return selection, nil
}

// HandleTurn runs the search agent's conversation turn: craft the query,
// fetch candidates, and down-select to the requested count.
func (a *SearchAgent) HandleTurn(ctx context.Context, conv *Conversation) (*Message, error) {
	crafted, err := a.CraftQuery(ctx, conv.Topic)
	if err != nil {
		return nil, err
	}
	conv.CraftedQuery = crafted.Query

	limit := a.CandidateLimit(conv.RequestedPapers)
	result, err := a.source.Search(ctx, papersources.SearchParams{
		Query:      crafted.Query,
		MaxResults: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", a.source.Name(), err)
	}
	conv.Candidates = result.Papers

	selection, err := a.SelectPapers(ctx, conv.Topic, result.Papers, conv.RequestedPapers)
	if err != nil {
		return nil, err
	}
	conv.Selected = selection.Papers

	titles := make([]string, 0, len(selection.Papers))
	for _, p := range selection.Papers {
		titles = append(titles, p.Title)
	}

	return &Message{
		Agent: SearchAgentName,
		Content: fmt.Sprintf("Selected %d of %d candidates for query %q: %s",
			len(selection.Papers), len(result.Papers), crafted.Query, strings.Join(titles, "; ")),
		TokensUsed: crafted.TokensUsed + selection.TokensUsed,
		CreatedAt:  time.Now(),
	}, nil
}

// buildSelectionPrompt renders the numbered candidate list for down-selection.
func (a *SearchAgent) buildSelectionPrompt(topic string, candidates []*domain.Paper, count int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Choose exactly %d papers most relevant to the topic %q from these candidates.\n", count, topic)
	fmt.Fprintf(&sb, "Respond with a JSON object: {\"selected\": [<candidate numbers>], \"reasoning\": \"<one sentence>\"}\n\n")

	for i, p := range candidates {
		fmt.Fprintf(&sb, "%d. %s", i+1, p.Title)
		if d := p.PublishedDate(); d != "" {
			fmt.Fprintf(&sb, " (%s)", d)
		}
		if p.Abstract != "" {
			fmt.Fprintf(&sb, " - %s", truncate(p.Abstract, 300))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// validSelection validates 1-based candidate numbers from the model and
// returns the 0-based indices, or nil when the selection is unusable.
func validSelection(selected []int, candidateCount, want int) []int {
	if len(selected) < want {
		return nil
	}

	seen := make(map[int]bool, want)
	indices := make([]int, 0, want)
	for _, n := range selected {
		idx := n - 1
		if idx < 0 || idx >= candidateCount || seen[idx] {
			continue
		}
		seen[idx] = true
		indices = append(indices, idx)
		if len(indices) == want {
			return indices
		}
	}
	return nil
}

// firstByRecency returns the count newest candidates by publication date.
func firstByRecency(candidates []*domain.Paper, count int) []*domain.Paper {
	sorted := make([]*domain.Paper, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].PublicationDate, sorted[j].PublicationDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	if count > len(sorted) {
		count = len(sorted)
	}
	return sorted[:count]
}

// rankPapers assigns 1-based relevance ranks in slice order.
func rankPapers(papers []*domain.Paper) []*domain.Paper {
	for i, p := range papers {
		p.RelevanceRank = i + 1
	}
	return papers
}

// stripCodeFence removes a surrounding markdown code fence from model output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
