// Package workflows defines Temporal workflow implementations for the
// literature review pipeline.
package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/scribeworks/litreview-service/internal/domain"
	litemporal "github.com/scribeworks/litreview-service/internal/temporal"
	"github.com/scribeworks/litreview-service/internal/temporal/activities"
)

// Re-export signal/query name constants from the parent temporal package for
// convenience. These are defined in the parent package so the server layer can
// reference them without depending on the workflows package.
const (
	SignalCancel  = litemporal.SignalCancel
	QueryProgress = litemporal.QueryProgress
)

// Activity timeout constants.
const (
	agentActivityTimeout   = 2 * time.Minute
	reviewActivityTimeout  = 5 * time.Minute
	searchActivityTimeout  = 5 * time.Minute
	persistActivityTimeout = 30 * time.Second
)

// defaultReviewBatchSize is the number of concurrent per-paper reviews when
// the configuration does not specify one.
const defaultReviewBatchSize = 5

// ReviewWorkflowInput is an alias for the shared input type defined in the
// parent temporal package. This allows the workflow function signature to
// remain unchanged while the type is importable from either location.
type ReviewWorkflowInput = litemporal.ReviewWorkflowInput

// ReviewWorkflowResult contains the final results of a literature review workflow.
type ReviewWorkflowResult struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// Status is the final status of the review.
	Status string

	// CraftedQuery is the arXiv query the search agent produced.
	CraftedQuery string

	// CandidatesFound is the number of candidate papers fetched.
	CandidatesFound int

	// PapersSelected is the number of papers chosen for review.
	PapersSelected int

	// PapersReviewed is the number of per-paper reviews completed.
	PapersReviewed int

	// PapersFailed is the number of papers whose review failed.
	PapersFailed int

	// TotalTokensUsed aggregates LLM token usage across the whole review.
	TotalTokensUsed int

	// Duration is the total workflow execution time in seconds.
	Duration float64
}

// workflowProgress tracks the internal progress state of the workflow,
// exposed via the QueryProgress query handler.
type workflowProgress struct {
	Status          string
	Phase           string
	CraftedQuery    string
	CandidatesFound int
	PapersSelected  int
	PapersReviewed  int
	PapersFailed    int
}

// LiteratureReviewWorkflow orchestrates an automated literature review.
//
// The workflow proceeds through the following phases:
//  1. Craft the best arXiv search query from the research topic
//  2. Fetch candidate papers, overfetched past the requested count
//  3. Down-select to exactly the requested number of papers
//  4. Review each selected paper with the litreviewer agent, in batches
//  5. Assemble and persist the combined review document
//
// Per-paper review failures do not fail the workflow; the review completes
// with partial status as long as at least one paper was reviewed. The
// workflow supports cancellation via the "cancel" signal and progress
// queries via the "progress" query type.
func LiteratureReviewWorkflow(ctx workflow.Context, input ReviewWorkflowInput) (*ReviewWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	startTime := workflow.Now(ctx)

	progress := &workflowProgress{
		Status: string(domain.ReviewStatusPending),
		Phase:  "initializing",
	}

	err := workflow.SetQueryHandler(ctx, QueryProgress, func() (*workflowProgress, error) {
		return progress, nil
	})
	if err != nil {
		logger.Error("failed to register progress query handler", "error", err)
		return nil, fmt.Errorf("register query handler: %w", err)
	}

	// Cancellation: the signal carries an optional reason, recorded as the
	// review's error message.
	var cancelled bool
	var cancelReason string
	cancelCtx, cancelFunc := workflow.WithCancel(ctx)
	signalCh := workflow.GetSignalChannel(ctx, SignalCancel)
	workflow.Go(ctx, func(gCtx workflow.Context) {
		var req litemporal.CancelRequest
		signalCh.Receive(gCtx, &req)
		logger.Info("received cancel signal", "reason", req.Reason)
		cancelled = true
		cancelReason = req.Reason
		cancelFunc()
	})

	// Activity nil-pointer variables for method references.
	var agentAct *activities.AgentActivities
	var searchAct *activities.SearchActivities
	var persistAct *activities.PersistenceActivities

	agentCtx := workflow.WithActivityOptions(cancelCtx, workflow.ActivityOptions{
		StartToCloseTimeout: agentActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	reviewCtx := workflow.WithActivityOptions(cancelCtx, workflow.ActivityOptions{
		StartToCloseTimeout: reviewActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    1 * time.Minute,
			MaximumAttempts:    3,
		},
	})

	searchCtx := workflow.WithActivityOptions(cancelCtx, workflow.ActivityOptions{
		StartToCloseTimeout: searchActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    1 * time.Minute,
			MaximumAttempts:    3,
		},
	})

	persistCtx := workflow.WithActivityOptions(cancelCtx, workflow.ActivityOptions{
		StartToCloseTimeout: persistActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	})

	// Terminal writes run on a disconnected context so they still execute
	// after cancellation.
	disconnectedCtx, _ := workflow.NewDisconnectedContext(ctx)
	finalCtx := workflow.WithActivityOptions(disconnectedCtx, workflow.ActivityOptions{
		StartToCloseTimeout: persistActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	})

	updateStatus := func(status domain.ReviewStatus, phase string) error {
		progress.Status = string(status)
		progress.Phase = phase
		return workflow.ExecuteActivity(persistCtx, persistAct.UpdateStatus, activities.UpdateStatusInput{
			RequestID: input.RequestID,
			Status:    status,
		}).Get(cancelCtx, nil)
	}

	// recordProgress is fire-and-forget: a lost progress event never fails
	// the review.
	recordProgress := func(eventType string, data map[string]interface{}) {
		_ = workflow.ExecuteActivity(persistCtx, persistAct.RecordProgress, activities.RecordProgressInput{
			RequestID: input.RequestID,
			EventType: eventType,
			EventData: data,
		}).Get(cancelCtx, nil)
	}

	publishEvent := func(wfCtx workflow.Context, eventType string, payload map[string]interface{}) {
		_ = workflow.ExecuteActivity(wfCtx, persistAct.PublishEvent, activities.PublishEventInput{
			RequestID: input.RequestID,
			EventType: eventType,
			Payload:   payload,
		}).Get(wfCtx, nil)
	}

	buildResult := func(status domain.ReviewStatus, totalTokens int) *ReviewWorkflowResult {
		return &ReviewWorkflowResult{
			RequestID:       input.RequestID,
			Status:          string(status),
			CraftedQuery:    progress.CraftedQuery,
			CandidatesFound: progress.CandidatesFound,
			PapersSelected:  progress.PapersSelected,
			PapersReviewed:  progress.PapersReviewed,
			PapersFailed:    progress.PapersFailed,
			TotalTokensUsed: totalTokens,
			Duration:        workflow.Now(ctx).Sub(startTime).Seconds(),
		}
	}

	// handleCancelled records the cancelled status and exits cleanly.
	handleCancelled := func() (*ReviewWorkflowResult, error) {
		logger.Info("workflow cancelled", "requestID", input.RequestID, "reason", cancelReason)
		progress.Status = string(domain.ReviewStatusCancelled)
		progress.Phase = "cancelled"

		_ = workflow.ExecuteActivity(finalCtx, persistAct.UpdateStatus, activities.UpdateStatusInput{
			RequestID: input.RequestID,
			Status:    domain.ReviewStatusCancelled,
			ErrorMsg:  cancelReason,
		}).Get(finalCtx, nil)

		publishEvent(finalCtx, domain.EventTypeReviewCancel, map[string]interface{}{
			"reason": cancelReason,
		})

		return buildResult(domain.ReviewStatusCancelled, 0), nil
	}

	// handleFailure records the failed status and returns the original error.
	handleFailure := func(originalErr error) (*ReviewWorkflowResult, error) {
		if cancelled {
			return handleCancelled()
		}

		logger.Error("workflow failed", "requestID", input.RequestID, "error", originalErr)
		progress.Status = string(domain.ReviewStatusFailed)
		progress.Phase = "failed"

		_ = workflow.ExecuteActivity(finalCtx, persistAct.UpdateStatus, activities.UpdateStatusInput{
			RequestID: input.RequestID,
			Status:    domain.ReviewStatusFailed,
			ErrorMsg:  originalErr.Error(),
		}).Get(finalCtx, nil)

		publishEvent(finalCtx, domain.EventTypeReviewFailed, map[string]interface{}{
			"error": originalErr.Error(),
		})

		return nil, originalErr
	}

	var totalTokens int

	// =========================================================================
	// Phase 1: Craft the arXiv search query
	// =========================================================================

	logger.Info("crafting search query", "requestID", input.RequestID, "topic", input.Topic)
	if err := updateStatus(domain.ReviewStatusCraftingQuery, "crafting_query"); err != nil {
		return handleFailure(fmt.Errorf("update status to crafting_query: %w", err))
	}

	publishEvent(persistCtx, domain.EventTypeReviewStarted, map[string]interface{}{
		"topic":            input.Topic,
		"requested_papers": input.Config.RequestedPapers,
	})

	var craftOutput activities.CraftQueryOutput
	err = workflow.ExecuteActivity(agentCtx, agentAct.CraftQuery, activities.CraftQueryInput{
		RequestID: input.RequestID,
		Topic:     input.Topic,
	}).Get(cancelCtx, &craftOutput)
	if err != nil {
		return handleFailure(fmt.Errorf("craft query: %w", err))
	}

	progress.CraftedQuery = craftOutput.Query
	totalTokens += craftOutput.TokensUsed

	err = workflow.ExecuteActivity(persistCtx, persistAct.SetCraftedQuery, activities.SetCraftedQueryInput{
		RequestID: input.RequestID,
		Query:     craftOutput.Query,
	}).Get(cancelCtx, nil)
	if err != nil {
		return handleFailure(fmt.Errorf("set crafted query: %w", err))
	}

	recordProgress(domain.EventTypeQueryCrafted, map[string]interface{}{
		"query":     craftOutput.Query,
		"reasoning": craftOutput.Reasoning,
	})

	// =========================================================================
	// Phase 2: Fetch candidate papers
	// =========================================================================

	logger.Info("searching for candidates", "requestID", input.RequestID, "query", craftOutput.Query)
	if err := updateStatus(domain.ReviewStatusSearching, "searching"); err != nil {
		return handleFailure(fmt.Errorf("update status to searching: %w", err))
	}

	sources := input.Config.Sources
	if len(sources) == 0 {
		sources = []domain.SourceType{domain.SourceTypeArXiv}
	}

	var candidates []*domain.Paper
	for _, source := range sources {
		var searchOutput activities.SearchCandidatesOutput
		err = workflow.ExecuteActivity(searchCtx, searchAct.SearchCandidates, activities.SearchCandidatesInput{
			RequestID:  input.RequestID,
			Source:     source,
			Query:      craftOutput.Query,
			MaxResults: input.Config.CandidateLimit(),
			DateFrom:   input.Config.DateFrom,
			DateTo:     input.Config.DateTo,
		}).Get(cancelCtx, &searchOutput)
		if err != nil {
			return handleFailure(fmt.Errorf("search %s: %w", source, err))
		}
		candidates = append(candidates, searchOutput.Papers...)
	}

	if len(candidates) == 0 {
		return handleFailure(fmt.Errorf("no papers found for query %q", craftOutput.Query))
	}

	progress.CandidatesFound = len(candidates)

	var savePapersOutput activities.SavePapersOutput
	err = workflow.ExecuteActivity(persistCtx, persistAct.SavePapers, activities.SavePapersInput{
		RequestID: input.RequestID,
		Papers:    candidates,
	}).Get(cancelCtx, &savePapersOutput)
	if err != nil {
		return handleFailure(fmt.Errorf("save papers: %w", err))
	}
	candidates = savePapersOutput.Papers

	recordProgress(domain.EventTypePapersFound, map[string]interface{}{
		"candidates_found": len(candidates),
	})

	// =========================================================================
	// Phase 3: Down-select to the requested count
	// =========================================================================

	logger.Info("selecting papers", "requestID", input.RequestID, "candidates", len(candidates))
	if err := updateStatus(domain.ReviewStatusSelecting, "selecting"); err != nil {
		return handleFailure(fmt.Errorf("update status to selecting: %w", err))
	}

	selectCount := input.Config.RequestedPapers
	if selectCount > len(candidates) {
		selectCount = len(candidates)
	}

	var selectOutput activities.SelectPapersOutput
	err = workflow.ExecuteActivity(agentCtx, agentAct.SelectPapers, activities.SelectPapersInput{
		RequestID:  input.RequestID,
		Topic:      input.Topic,
		Candidates: candidates,
		Count:      selectCount,
	}).Get(cancelCtx, &selectOutput)
	if err != nil {
		return handleFailure(fmt.Errorf("select papers: %w", err))
	}

	selected := selectOutput.Papers
	progress.PapersSelected = len(selected)
	totalTokens += selectOutput.TokensUsed

	err = workflow.ExecuteActivity(persistCtx, persistAct.SaveSelection, activities.SaveSelectionInput{
		RequestID: input.RequestID,
		Papers:    selected,
	}).Get(cancelCtx, nil)
	if err != nil {
		return handleFailure(fmt.Errorf("save selection: %w", err))
	}

	recordProgress(domain.EventTypePapersSelected, map[string]interface{}{
		"papers_selected": len(selected),
		"fallback":        selectOutput.Fallback,
	})

	// =========================================================================
	// Phase 4: Review each selected paper
	// =========================================================================

	logger.Info("reviewing papers", "requestID", input.RequestID, "count", len(selected))
	if err := updateStatus(domain.ReviewStatusReviewing, "reviewing"); err != nil {
		return handleFailure(fmt.Errorf("update status to reviewing: %w", err))
	}

	batchSize := input.Config.ReviewBatchSize
	if batchSize <= 0 {
		batchSize = defaultReviewBatchSize
	}

	type reviewFuture struct {
		paper  *domain.Paper
		rank   int
		future workflow.Future
	}

	for start := 0; start < len(selected); start += batchSize {
		if cancelled {
			return handleCancelled()
		}

		end := start + batchSize
		if end > len(selected) {
			end = len(selected)
		}

		// Run the batch concurrently, then collect in rank order so replay
		// stays deterministic.
		var futures []reviewFuture
		for i := start; i < end; i++ {
			futures = append(futures, reviewFuture{
				paper: selected[i],
				rank:  i + 1,
				future: workflow.ExecuteActivity(reviewCtx, agentAct.ReviewPaper, activities.ReviewPaperInput{
					RequestID: input.RequestID,
					Topic:     input.Topic,
					Paper:     selected[i],
					Rank:      i + 1,
				}),
			})
		}

		for _, rf := range futures {
			var reviewOutput activities.ReviewPaperOutput
			reviewErr := rf.future.Get(cancelCtx, &reviewOutput)
			if reviewErr != nil {
				if cancelled {
					return handleCancelled()
				}
				logger.Warn("paper review failed",
					"requestID", input.RequestID,
					"paperID", rf.paper.ID,
					"error", reviewErr,
				)
				progress.PapersFailed++
				markErr := workflow.ExecuteActivity(persistCtx, persistAct.MarkPaperFailed, activities.MarkPaperFailedInput{
					RequestID: input.RequestID,
					PaperID:   rf.paper.ID,
					ErrorMsg:  reviewErr.Error(),
				}).Get(cancelCtx, nil)
				if markErr != nil {
					return handleFailure(fmt.Errorf("mark paper failed: %w", markErr))
				}
				continue
			}

			totalTokens += reviewOutput.Review.TokensUsed
			saveErr := workflow.ExecuteActivity(persistCtx, persistAct.SaveReview, activities.SaveReviewInput{
				RequestID: input.RequestID,
				Review:    reviewOutput.Review,
			}).Get(cancelCtx, nil)
			if saveErr != nil {
				return handleFailure(fmt.Errorf("save review: %w", saveErr))
			}

			progress.PapersReviewed++
			recordProgress(domain.EventTypePaperReviewed, map[string]interface{}{
				"paper_id":        rf.paper.ID.String(),
				"title":           rf.paper.Title,
				"rank":            rf.rank,
				"papers_reviewed": progress.PapersReviewed,
			})
		}
	}

	if progress.PapersReviewed == 0 {
		return handleFailure(fmt.Errorf("all %d paper reviews failed", len(selected)))
	}

	// =========================================================================
	// Phase 5: Assemble the review document and finish
	// =========================================================================

	var docOutput activities.SaveDocumentOutput
	err = workflow.ExecuteActivity(persistCtx, persistAct.SaveDocument, activities.SaveDocumentInput{
		RequestID:    input.RequestID,
		Topic:        input.Topic,
		CraftedQuery: craftOutput.Query,
	}).Get(cancelCtx, &docOutput)
	if err != nil {
		return handleFailure(fmt.Errorf("save document: %w", err))
	}

	finalStatus := domain.ReviewStatusCompleted
	if progress.PapersFailed > 0 || progress.PapersReviewed < input.Config.RequestedPapers {
		finalStatus = domain.ReviewStatusPartial
	}

	if err := updateStatus(finalStatus, string(finalStatus)); err != nil {
		return handleFailure(fmt.Errorf("update status to %s: %w", finalStatus, err))
	}

	result := buildResult(finalStatus, totalTokens)

	publishEvent(persistCtx, domain.EventTypeReviewComplete, map[string]interface{}{
		"status":           string(finalStatus),
		"candidates_found": result.CandidatesFound,
		"papers_selected":  result.PapersSelected,
		"papers_reviewed":  result.PapersReviewed,
		"papers_failed":    result.PapersFailed,
		"total_tokens":     result.TotalTokensUsed,
		"duration":         result.Duration,
	})

	recordProgress(domain.EventTypeReviewComplete, map[string]interface{}{
		"status":          string(finalStatus),
		"papers_reviewed": result.PapersReviewed,
		"papers_failed":   result.PapersFailed,
	})

	logger.Info("literature review workflow completed",
		"requestID", input.RequestID,
		"status", finalStatus,
		"candidatesFound", result.CandidatesFound,
		"papersSelected", result.PapersSelected,
		"papersReviewed", result.PapersReviewed,
		"papersFailed", result.PapersFailed,
		"totalTokens", result.TotalTokensUsed,
		"duration", result.Duration,
	)

	return result, nil
}
