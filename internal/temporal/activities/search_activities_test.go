package activities

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/papersources"
	"github.com/scribeworks/litreview-service/internal/temporal/resilience"
)

func newSearchActivitiesWithSource(source papersources.PaperSource) *SearchActivities {
	registry := papersources.NewRegistry()
	registry.Register(source)
	return NewSearchActivities(registry, resilience.NewBreakerRegistry(), nil)
}

func TestSearchCandidates_Success(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	papers := []*domain.Paper{
		{CanonicalID: "arxiv:2401.00001", Title: "Paper A"},
		{CanonicalID: "arxiv:2401.00002", Title: "Paper B"},
	}
	source := &fakePaperSource{result: &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   42,
		Source:         domain.SourceTypeArXiv,
		SearchDuration: 120 * time.Millisecond,
	}}
	act := newSearchActivitiesWithSource(source)
	env.RegisterActivity(act.SearchCandidates)

	result, err := env.ExecuteActivity(act.SearchCandidates, SearchCandidatesInput{
		RequestID:  uuid.New(),
		Source:     domain.SourceTypeArXiv,
		Query:      `all:"diffusion model"`,
		MaxResults: 25,
	})
	require.NoError(t, err)

	var output SearchCandidatesOutput
	require.NoError(t, result.Get(&output))

	require.Len(t, output.Papers, 2)
	assert.Equal(t, "Paper A", output.Papers[0].Title)
	assert.Equal(t, 42, output.TotalFound)
	assert.Equal(t, domain.SourceTypeArXiv, output.Source)
}

func TestSearchCandidates_DropsDuplicates(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	papers := []*domain.Paper{
		{CanonicalID: "arxiv:2401.00001", Title: "Paper A"},
		{CanonicalID: "arxiv:2401.00001", Title: "Paper A v2"},
		{CanonicalID: "arxiv:2401.00002", Title: "Paper B"},
	}
	source := &fakePaperSource{result: &papersources.SearchResult{
		Papers:       papers,
		TotalResults: 3,
		Source:       domain.SourceTypeArXiv,
	}}
	act := newSearchActivitiesWithSource(source)
	env.RegisterActivity(act.SearchCandidates)

	result, err := env.ExecuteActivity(act.SearchCandidates, SearchCandidatesInput{
		RequestID: uuid.New(),
		Source:    domain.SourceTypeArXiv,
		Query:     `all:"diffusion model"`,
	})
	require.NoError(t, err)

	var output SearchCandidatesOutput
	require.NoError(t, result.Get(&output))

	require.Len(t, output.Papers, 2)
	assert.Equal(t, "Paper A", output.Papers[0].Title)
	assert.Equal(t, "Paper B", output.Papers[1].Title)
}

func TestSearchCandidates_DefaultsToArXiv(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	source := &fakePaperSource{result: &papersources.SearchResult{
		Papers: []*domain.Paper{{CanonicalID: "arxiv:2401.00001"}},
		Source: domain.SourceTypeArXiv,
	}}
	act := newSearchActivitiesWithSource(source)
	env.RegisterActivity(act.SearchCandidates)

	// No source in the input; the arXiv client must be picked.
	result, err := env.ExecuteActivity(act.SearchCandidates, SearchCandidatesInput{
		RequestID: uuid.New(),
		Query:     "all:transformers",
	})
	require.NoError(t, err)

	var output SearchCandidatesOutput
	require.NoError(t, result.Get(&output))
	assert.Len(t, output.Papers, 1)
}

func TestSearchCandidates_UnknownSource(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	act := NewSearchActivities(papersources.NewRegistry(), nil, nil)
	env.RegisterActivity(act.SearchCandidates)

	_, err := env.ExecuteActivity(act.SearchCandidates, SearchCandidatesInput{
		RequestID: uuid.New(),
		Source:    domain.SourceTypeArXiv,
		Query:     "all:test",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no client registered")
}

func TestSearchCandidates_CircuitOpen(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	breakers := resilience.NewBreakerRegistryWithConfigs(map[string]resilience.BreakerConfig{
		"arxiv": {ConsecutiveThreshold: 1, Cooldown: time.Hour},
	})
	breakers.Get("arxiv").RecordFailure()

	registry := papersources.NewRegistry()
	registry.Register(&fakePaperSource{result: &papersources.SearchResult{}})
	act := NewSearchActivities(registry, breakers, nil)
	env.RegisterActivity(act.SearchCandidates)

	_, err := env.ExecuteActivity(act.SearchCandidates, SearchCandidatesInput{
		RequestID: uuid.New(),
		Source:    domain.SourceTypeArXiv,
		Query:     "all:test",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
}

func TestSearchCandidates_SourceError(t *testing.T) {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()

	source := &fakePaperSource{err: assert.AnError}
	act := newSearchActivitiesWithSource(source)
	env.RegisterActivity(act.SearchCandidates)

	_, err := env.ExecuteActivity(act.SearchCandidates, SearchCandidatesInput{
		RequestID: uuid.New(),
		Source:    domain.SourceTypeArXiv,
		Query:     "all:test",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search arxiv")
}
