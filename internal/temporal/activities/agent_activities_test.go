package activities

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/scribeworks/litreview-service/internal/agents"
	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/llm"
	"github.com/scribeworks/litreview-service/internal/papersources"
)

// fakeLLMClient returns canned responses in order.
type fakeLLMClient struct {
	responses []*llm.Response
	errs      []error
	calls     int
}

func (c *fakeLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return &llm.Response{Text: "{}", Model: "test-model"}, nil
}

func (c *fakeLLMClient) Provider() string { return "test" }
func (c *fakeLLMClient) Model() string    { return "test-model" }

// fakePaperSource returns a fixed search result.
type fakePaperSource struct {
	result *papersources.SearchResult
	err    error
}

func (s *fakePaperSource) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *fakePaperSource) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	return nil, domain.ErrNotFound
}

func (s *fakePaperSource) SourceType() domain.SourceType { return domain.SourceTypeArXiv }
func (s *fakePaperSource) Name() string                  { return "arXiv" }
func (s *fakePaperSource) IsEnabled() bool               { return true }

func newAgentActivitiesWithClient(client llm.Client) *AgentActivities {
	searchAgent := agents.NewSearchAgent(client, &fakePaperSource{}, agents.SearchAgentConfig{}, zerolog.Nop())
	reviewAgent := agents.NewReviewAgent(client, agents.ReviewAgentConfig{}, zerolog.Nop())
	return NewAgentActivities(searchAgent, reviewAgent, nil)
}

func TestCraftQuery_Success(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	client := &fakeLLMClient{responses: []*llm.Response{
		{Text: `{"query": "all:\"diffusion model\"", "reasoning": "targets the exact phrase"}`, InputTokens: 40, OutputTokens: 15},
	}}
	act := newAgentActivitiesWithClient(client)
	env.RegisterActivity(act.CraftQuery)

	result, err := env.ExecuteActivity(act.CraftQuery, CraftQueryInput{
		RequestID: uuid.New(),
		Topic:     "diffusion models",
	})
	require.NoError(t, err)

	var output CraftQueryOutput
	require.NoError(t, result.Get(&output))

	assert.Equal(t, `all:"diffusion model"`, output.Query)
	assert.Equal(t, "targets the exact phrase", output.Reasoning)
	assert.Equal(t, 55, output.TokensUsed)
}

func TestCraftQuery_ProviderError(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	client := &fakeLLMClient{errs: []error{&llm.APIError{Provider: "test", StatusCode: 401}}}
	act := newAgentActivitiesWithClient(client)
	env.RegisterActivity(act.CraftQuery)

	_, err := env.ExecuteActivity(act.CraftQuery, CraftQueryInput{
		RequestID: uuid.New(),
		Topic:     "diffusion models",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "craft query")
}

func TestSelectPapers_Success(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	client := &fakeLLMClient{responses: []*llm.Response{
		{Text: `{"selected": [2, 4, 1], "reasoning": "most relevant"}`, InputTokens: 150, OutputTokens: 10},
	}}
	act := newAgentActivitiesWithClient(client)
	env.RegisterActivity(act.SelectPapers)

	candidates := []*domain.Paper{
		{CanonicalID: "arxiv:2401.00001", Title: "Paper A"},
		{CanonicalID: "arxiv:2401.00002", Title: "Paper B"},
		{CanonicalID: "arxiv:2401.00003", Title: "Paper C"},
		{CanonicalID: "arxiv:2401.00004", Title: "Paper D"},
		{CanonicalID: "arxiv:2401.00005", Title: "Paper E"},
	}

	result, err := env.ExecuteActivity(act.SelectPapers, SelectPapersInput{
		RequestID:  uuid.New(),
		Topic:      "diffusion models",
		Candidates: candidates,
		Count:      3,
	})
	require.NoError(t, err)

	var output SelectPapersOutput
	require.NoError(t, result.Get(&output))

	require.Len(t, output.Papers, 3)
	assert.Equal(t, "Paper B", output.Papers[0].Title)
	assert.Equal(t, "Paper D", output.Papers[1].Title)
	assert.Equal(t, "Paper A", output.Papers[2].Title)
	assert.False(t, output.Fallback)
	assert.Equal(t, 160, output.TokensUsed)
}

func TestSelectPapers_FallbackFlag(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	// Two invalid responses push the agent onto its recency fallback.
	client := &fakeLLMClient{responses: []*llm.Response{
		{Text: "garbage"},
		{Text: "still garbage"},
	}}
	act := newAgentActivitiesWithClient(client)
	env.RegisterActivity(act.SelectPapers)

	result, err := env.ExecuteActivity(act.SelectPapers, SelectPapersInput{
		RequestID: uuid.New(),
		Topic:     "diffusion models",
		Candidates: []*domain.Paper{
			{CanonicalID: "arxiv:2401.00001", Title: "Paper A"},
			{CanonicalID: "arxiv:2401.00002", Title: "Paper B"},
			{CanonicalID: "arxiv:2401.00003", Title: "Paper C"},
			{CanonicalID: "arxiv:2401.00004", Title: "Paper D"},
		},
		Count: 2,
	})
	require.NoError(t, err)

	var output SelectPapersOutput
	require.NoError(t, result.Get(&output))

	assert.True(t, output.Fallback)
	assert.Len(t, output.Papers, 2)
}

func TestReviewPaper_Success(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	reviewText := "---\n### Title: Paper A\n\n**Description:** A study of diffusion models.\n\n**Methodology:** Controlled experiments.\n---"
	client := &fakeLLMClient{responses: []*llm.Response{
		{Text: reviewText, InputTokens: 400, OutputTokens: 250},
	}}
	act := newAgentActivitiesWithClient(client)
	env.RegisterActivity(act.ReviewPaper)

	requestID := uuid.New()
	paper := &domain.Paper{
		ID:          uuid.New(),
		CanonicalID: "arxiv:2401.00001",
		Title:       "Paper A",
		Abstract:    "An abstract.",
	}

	result, err := env.ExecuteActivity(act.ReviewPaper, ReviewPaperInput{
		RequestID: requestID,
		Topic:     "diffusion models",
		Paper:     paper,
		Rank:      2,
	})
	require.NoError(t, err)

	var output ReviewPaperOutput
	require.NoError(t, result.Get(&output))

	require.NotNil(t, output.Review)
	assert.Equal(t, requestID, output.Review.RequestID)
	assert.Equal(t, paper.ID, output.Review.PaperID)
	assert.Equal(t, 2, output.Review.Rank)
	assert.Equal(t, "A study of diffusion models.", output.Review.Description)
	assert.Equal(t, 650, output.Review.TokensUsed)
}

func TestReviewPaper_NilPaper(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	act := newAgentActivitiesWithClient(&fakeLLMClient{})
	env.RegisterActivity(act.ReviewPaper)

	_, err := env.ExecuteActivity(act.ReviewPaper, ReviewPaperInput{
		RequestID: uuid.New(),
		Topic:     "diffusion models",
		Rank:      1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paper cannot be nil")
}

func TestReviewPaper_ProviderError(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	client := &fakeLLMClient{errs: []error{&llm.APIError{Provider: "test", StatusCode: 500}}}
	act := newAgentActivitiesWithClient(client)
	env.RegisterActivity(act.ReviewPaper)

	_, err := env.ExecuteActivity(act.ReviewPaper, ReviewPaperInput{
		RequestID: uuid.New(),
		Topic:     "diffusion models",
		Paper:     &domain.Paper{ID: uuid.New(), CanonicalID: "arxiv:2401.00001"},
		Rank:      1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review paper")
}
