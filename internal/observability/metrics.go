package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every Prometheus collector the service registers. All of
// them go through promauto, so constructing Metrics twice in one process
// panics on duplicate registration; create it once and share it.
type Metrics struct {
	// Review lifecycle.
	ReviewsStarted   prometheus.Counter
	ReviewsCompleted prometheus.Counter
	ReviewsFailed    prometheus.Counter
	ReviewsCancelled prometheus.Counter
	ReviewDuration   prometheus.Histogram
	QueriesCrafted   prometheus.Counter

	// Candidate searches, labeled by paper source.
	SearchesStarted   *prometheus.CounterVec
	SearchesCompleted *prometheus.CounterVec
	SearchesFailed    *prometheus.CounterVec
	SearchDuration    *prometheus.HistogramVec
	PapersPerSearch   *prometheus.HistogramVec

	// Paper selection and per-paper reviewing.
	CandidatesFetched  prometheus.Counter
	PapersSelected     prometheus.Counter
	PapersReviewed     prometheus.Counter
	PaperReviewsFailed prometheus.Counter
	PapersBySource     *prometheus.CounterVec

	// Outbound HTTP traffic to the source APIs.
	SourceRequestsTotal   *prometheus.CounterVec
	SourceRequestsFailed  *prometheus.CounterVec
	SourceRequestDuration *prometheus.HistogramVec
	SourceRateLimited     *prometheus.CounterVec

	// Agent and LLM usage.
	AgentTurns         *prometheus.CounterVec
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestsFailed  *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	LLMTokensUsed      *prometheus.CounterVec

	// Progress streaming.
	SSEStreamsActive prometheus.Gauge
}

func counter(ns, name, help string) prometheus.Counter {
	return promauto.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: name, Help: help})
}

func counterVec(ns, name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: name, Help: help}, labels)
}

func histogram(ns, name, help string, buckets []float64) prometheus.Histogram {
	return promauto.NewHistogram(prometheus.HistogramOpts{Namespace: ns, Name: name, Help: help, Buckets: buckets})
}

func histogramVec(ns, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: name, Help: help, Buckets: buckets}, labels)
}

// NewMetrics registers all collectors under the given namespace prefix.
func NewMetrics(namespace string) *Metrics {
	reviewBuckets := []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600}
	searchBuckets := []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}
	requestBuckets := []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

	return &Metrics{
		ReviewsStarted:   counter(namespace, "reviews_started_total", "Total number of literature reviews started"),
		ReviewsCompleted: counter(namespace, "reviews_completed_total", "Total number of literature reviews completed successfully"),
		ReviewsFailed:    counter(namespace, "reviews_failed_total", "Total number of literature reviews that failed"),
		ReviewsCancelled: counter(namespace, "reviews_cancelled_total", "Total number of literature reviews cancelled"),
		ReviewDuration:   histogram(namespace, "review_duration_seconds", "Duration of literature reviews in seconds", reviewBuckets),
		QueriesCrafted:   counter(namespace, "queries_crafted_total", "Total number of arXiv queries crafted by the search agent"),

		SearchesStarted:   counterVec(namespace, "searches_started_total", "Total number of paper searches started by source", "source"),
		SearchesCompleted: counterVec(namespace, "searches_completed_total", "Total number of paper searches completed by source", "source"),
		SearchesFailed:    counterVec(namespace, "searches_failed_total", "Total number of paper searches that failed by source", "source"),
		SearchDuration:    histogramVec(namespace, "search_duration_seconds", "Duration of paper searches in seconds by source", searchBuckets, "source"),
		PapersPerSearch: histogramVec(namespace, "papers_per_search", "Number of papers returned per search by source",
			[]float64{0, 1, 5, 10, 25, 50, 100, 200, 500}, "source"),

		CandidatesFetched:  counter(namespace, "candidates_fetched_total", "Total number of candidate papers fetched"),
		PapersSelected:     counter(namespace, "papers_selected_total", "Total number of papers selected for review"),
		PapersReviewed:     counter(namespace, "papers_reviewed_total", "Total number of per-paper reviews produced"),
		PaperReviewsFailed: counter(namespace, "paper_reviews_failed_total", "Total number of per-paper reviews that failed"),
		PapersBySource:     counterVec(namespace, "papers_by_source_total", "Total number of papers discovered by source", "source"),

		SourceRequestsTotal:  counterVec(namespace, "source_requests_total", "Total number of requests to paper sources", "source", "endpoint"),
		SourceRequestsFailed: counterVec(namespace, "source_requests_failed_total", "Total number of failed requests to paper sources", "source", "endpoint", "error_type"),
		SourceRequestDuration: histogramVec(namespace, "source_request_duration_seconds", "Duration of requests to paper sources in seconds",
			requestBuckets, "source", "endpoint"),
		SourceRateLimited: counterVec(namespace, "source_rate_limited_total", "Total number of rate limit responses from paper sources", "source"),

		AgentTurns:        counterVec(namespace, "agent_turns_total", "Total number of agent turns taken by agent name", "agent"),
		LLMRequestsTotal:  counterVec(namespace, "llm_requests_total", "Total number of LLM requests by operation", "operation", "model"),
		LLMRequestsFailed: counterVec(namespace, "llm_requests_failed_total", "Total number of failed LLM requests by operation", "operation", "model", "error_type"),
		LLMRequestDuration: histogramVec(namespace, "llm_request_duration_seconds", "Duration of LLM requests in seconds",
			searchBuckets, "operation", "model"),
		LLMTokensUsed: counterVec(namespace, "llm_tokens_used_total", "Total number of tokens used by LLM operations", "operation", "model", "token_type"),

		SSEStreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sse_streams_active",
			Help:      "Number of currently open progress streams",
		}),
	}
}

func (m *Metrics) RecordReviewStarted() {
	m.ReviewsStarted.Inc()
}

func (m *Metrics) RecordReviewCompleted(durationSeconds float64) {
	m.ReviewsCompleted.Inc()
	m.ReviewDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordReviewFailed(durationSeconds float64) {
	m.ReviewsFailed.Inc()
	m.ReviewDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordReviewCancelled() {
	m.ReviewsCancelled.Inc()
}

func (m *Metrics) RecordQueryCrafted() {
	m.QueriesCrafted.Inc()
}

func (m *Metrics) RecordSearchStarted(source string) {
	m.SearchesStarted.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordSearchCompleted(source string, paperCount int, durationSeconds float64) {
	m.SearchesCompleted.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.PapersPerSearch.WithLabelValues(source).Observe(float64(paperCount))
}

func (m *Metrics) RecordSearchFailed(source string, durationSeconds float64) {
	m.SearchesFailed.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

func (m *Metrics) RecordCandidatesFetched(source string, count int) {
	m.CandidatesFetched.Add(float64(count))
	m.PapersBySource.WithLabelValues(source).Add(float64(count))
}

func (m *Metrics) RecordPapersSelected(count int) {
	m.PapersSelected.Add(float64(count))
}

func (m *Metrics) RecordPaperReviewed() {
	m.PapersReviewed.Inc()
}

func (m *Metrics) RecordPaperReviewFailed() {
	m.PaperReviewsFailed.Inc()
}

func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordAgentTurn(agent string) {
	m.AgentTurns.WithLabelValues(agent).Inc()
}

// RecordLLMRequest tracks one successful call, including token usage split
// by direction.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64, inputTokens, outputTokens int) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues(operation, model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(operation, model, "output").Add(float64(outputTokens))
}

func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}

func (m *Metrics) RecordSSEStreamOpened() {
	m.SSEStreamsActive.Inc()
}

func (m *Metrics) RecordSSEStreamClosed() {
	m.SSEStreamsActive.Dec()
}
