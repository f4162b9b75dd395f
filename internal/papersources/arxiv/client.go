// Package arxiv implements the papersources.PaperSource interface for the
// arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/papersources"
)

// Defaults applied by New when the corresponding Config field is zero.
// arXiv asks clients to stay under 3 requests per second.
const (
	DefaultBaseURL    = "https://export.arxiv.org/api"
	DefaultRateLimit  = 3.0
	DefaultBurstSize  = 3
	DefaultTimeout    = 30 * time.Second
	DefaultMaxResults = 100

	sourceName = "arXiv"

	// maxFeedBytes bounds how much of the Atom response body is decoded.
	maxFeedBytes = 10 << 20
)

// arxivIDRegex pulls the bare ID out of an entry URL, dropping the version
// suffix. Handles both "2301.12345v1" and legacy "hep-th/9901001v1" forms.
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// fieldPrefixRegex matches queries that already start with an arXiv field
// prefix such as "all:" or "ti:".
var fieldPrefixRegex = regexp.MustCompile(`^(all|ti|abs|au|cat|co|jr|rn|id):`)

// Config controls the arXiv client. Zero fields fall back to the package
// defaults above.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	MaxResults int
	Enabled    bool
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client talks to the arXiv query API.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New builds a client with its own rate-limited HTTP transport.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
		}),
	}
}

// NewWithHTTPClient builds a client around an existing transport, which lets
// tests point it at a local server.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Search runs one paginated query against arXiv.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	started := time.Now()

	searchURL, err := c.searchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	feed, err := c.fetchFeed(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	papers := make([]*domain.Paper, 0, len(feed.Entries))
	for i := range feed.Entries {
		if p := c.entryToPaper(&feed.Entries[i]); p != nil {
			papers = append(papers, p)
		}
	}

	next := params.Offset + len(papers)

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   feed.TotalResults,
		HasMore:        next < feed.TotalResults,
		NextOffset:     next,
		Source:         domain.SourceTypeArXiv,
		SearchDuration: time.Since(started),
	}, nil
}

// GetByID looks up a single paper through the id_list parameter.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	endpoint, err := c.queryEndpoint()
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("id_list", id)
	endpoint.RawQuery = q.Encode()

	feed, err := c.fetchFeed(ctx, endpoint.String())
	if err != nil {
		return nil, err
	}

	if len(feed.Entries) == 0 {
		return nil, domain.NewNotFoundError("paper", id)
	}
	paper := c.entryToPaper(&feed.Entries[0])
	if paper == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}
	return paper, nil
}

func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeArXiv
}

func (c *Client) Name() string {
	return sourceName
}

func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// queryEndpoint resolves the /query path under the configured base URL.
func (c *Client) queryEndpoint() (*url.URL, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/query"
	return u, nil
}

func (c *Client) fetchFeed(ctx context.Context, requestURL string) (*atomFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	var feed atomFeed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &feed, nil
}

func (c *Client) searchURL(params papersources.SearchParams) (string, error) {
	endpoint, err := c.queryEndpoint()
	if err != nil {
		return "", err
	}

	searchQuery := buildSearchQuery(params.Query)
	if window := dateWindow(params.DateFrom, params.DateTo); window != "" {
		searchQuery += " AND " + window
	}

	limit := params.MaxResults
	if limit == 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}

	q := url.Values{}
	q.Set("search_query", searchQuery)
	q.Set("max_results", strconv.Itoa(limit))
	if params.Offset > 0 {
		q.Set("start", strconv.Itoa(params.Offset))
	}
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")

	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

// buildSearchQuery wraps a bare topic string in all: while passing crafted
// field queries through unchanged.
func buildSearchQuery(q string) string {
	q = strings.TrimSpace(q)
	if fieldPrefixRegex.MatchString(q) || strings.Contains(q, " AND ") || strings.Contains(q, " OR ") {
		return q
	}
	return "all:" + q
}

// dateWindow renders a submittedDate range filter, or "" when both bounds
// are nil. Open ends use the arXiv wildcard.
func dateWindow(from, to *time.Time) string {
	if from == nil && to == nil {
		return ""
	}

	lo, hi := "*", "*"
	if from != nil {
		lo = from.Format("20060102") + "0000"
	}
	if to != nil {
		hi = to.Format("20060102") + "2359"
	}
	return fmt.Sprintf("submittedDate:[%s TO %s]", lo, hi)
}

func (c *Client) entryToPaper(entry *atomEntry) *domain.Paper {
	if entry == nil {
		return nil
	}

	arxivID := extractArXivID(entry.ID)
	if arxivID == "" {
		return nil
	}

	doi := strings.TrimSpace(entry.DOI)
	canonicalID := domain.GenerateCanonicalID(domain.PaperIdentifiers{
		ArXivID: arxivID,
		DOI:     doi,
	})
	if canonicalID == "" {
		return nil
	}

	var pubDate *time.Time
	if entry.Published != "" {
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			pubDate = &t
		}
	}

	return &domain.Paper{
		CanonicalID: canonicalID,
		ArXivID:     arxivID,
		// arXiv pads titles and abstracts with newlines and indentation.
		Title:           normalizeWhitespace(entry.Title),
		Abstract:        normalizeWhitespace(entry.Summary),
		Authors:         entryAuthors(entry),
		PublicationDate: pubDate,
		PDFURL:          entryPDFURL(entry, arxivID),
		Categories:      entryCategories(entry),
		RawMetadata:     entryMetadata(entry, arxivID, doi),
	}
}

func entryAuthors(entry *atomEntry) []domain.Author {
	authors := make([]domain.Author, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		authors = append(authors, domain.Author{
			Name:        name,
			Affiliation: strings.TrimSpace(a.Affiliation),
		})
	}
	return authors
}

func entryPDFURL(entry *atomEntry, arxivID string) string {
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			return link.Href
		}
	}
	return "http://arxiv.org/pdf/" + arxivID
}

func entryCategories(entry *atomEntry) []string {
	categories := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		if cat.Term != "" {
			categories = append(categories, cat.Term)
		}
	}
	return categories
}

func entryMetadata(entry *atomEntry, arxivID, doi string) map[string]interface{} {
	meta := map[string]interface{}{
		"arxiv_id": arxivID,
	}
	if doi != "" {
		meta["doi"] = doi
	}
	if entry.JournalRef != "" {
		meta["journal_ref"] = strings.TrimSpace(entry.JournalRef)
	}
	if entry.Comment != "" {
		meta["comment"] = strings.TrimSpace(entry.Comment)
	}
	if entry.PrimaryCategory.Term != "" {
		meta["primary_category"] = entry.PrimaryCategory.Term
	}
	return meta
}

// extractArXivID reduces an entry URL like "http://arxiv.org/abs/2301.12345v1"
// to the plain ID "2301.12345".
func extractArXivID(entryURL string) string {
	m := arxivIDRegex.FindStringSubmatch(entryURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// normalizeWhitespace collapses runs of whitespace into single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
