package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// txStarter is satisfied by the pool but not by an existing pgx.Tx. Update
// uses it to decide whether it must open its own transaction around the
// SELECT FOR UPDATE.
type txStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// validStatusTransitions lists where each review status may move next.
// Terminal states have no entries: nothing leaves them.
var validStatusTransitions = map[domain.ReviewStatus][]domain.ReviewStatus{
	domain.ReviewStatusPending: {
		domain.ReviewStatusCraftingQuery,
		domain.ReviewStatusFailed,
		domain.ReviewStatusCancelled,
	},
	domain.ReviewStatusCraftingQuery: {
		domain.ReviewStatusSearching,
		domain.ReviewStatusFailed,
		domain.ReviewStatusCancelled,
	},
	domain.ReviewStatusSearching: {
		domain.ReviewStatusSelecting,
		domain.ReviewStatusFailed,
		domain.ReviewStatusCancelled,
	},
	domain.ReviewStatusSelecting: {
		domain.ReviewStatusReviewing,
		domain.ReviewStatusFailed,
		domain.ReviewStatusCancelled,
	},
	domain.ReviewStatusReviewing: {
		domain.ReviewStatusCompleted,
		domain.ReviewStatusPartial,
		domain.ReviewStatusFailed,
		domain.ReviewStatusCancelled,
	},
}

const reviewColumns = `id, topic, crafted_query,
	temporal_workflow_id, temporal_run_id, status, error_message,
	candidates_found, papers_selected, papers_reviewed, papers_failed,
	configuration,
	created_at, updated_at, started_at, completed_at`

var _ ReviewRepository = (*PgReviewRepository)(nil)

// PgReviewRepository persists review requests in PostgreSQL.
type PgReviewRepository struct {
	db DBTX
}

func NewPgReviewRepository(db DBTX) *PgReviewRepository {
	return &PgReviewRepository{db: db}
}

// Create inserts a new review request.
func (r *PgReviewRepository) Create(ctx context.Context, review *domain.ReviewRequest) error {
	switch {
	case review == nil:
		return domain.NewValidationError("review", "review cannot be nil")
	case review.ID == uuid.Nil:
		return domain.NewValidationError("id", "review ID is required")
	case strings.TrimSpace(review.Topic) == "":
		return domain.NewValidationError("topic", "topic is required")
	}

	configJSON, err := json.Marshal(review.Configuration)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	query := `
		INSERT INTO review_requests (
			id, topic, crafted_query,
			temporal_workflow_id, temporal_run_id, status, error_message,
			candidates_found, papers_selected, papers_reviewed, papers_failed,
			configuration,
			created_at, updated_at, started_at, completed_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10, $11,
			$12,
			$13, $14, $15, $16
		)`

	_, err = r.db.Exec(ctx, query,
		review.ID, review.Topic, nullString(review.CraftedQuery),
		nullString(review.TemporalWorkflowID), nullString(review.TemporalRunID), review.Status, nullString(review.ErrorMessage),
		review.CandidatesFound, review.PapersSelected, review.PapersReviewed, review.PapersFailedCount,
		configJSON,
		review.CreatedAt, review.UpdatedAt, review.StartedAt, review.CompletedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("review", review.ID.String())
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// Get looks up a review request by ID.
func (r *PgReviewRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ReviewRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM review_requests WHERE id = $1`, reviewColumns)

	review, err := reviewFromRow(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("review", id.String())
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return review, nil
}

// GetByWorkflowID looks up a review request by its Temporal workflow ID.
func (r *PgReviewRepository) GetByWorkflowID(ctx context.Context, workflowID string) (*domain.ReviewRequest, error) {
	if workflowID == "" {
		return nil, domain.NewValidationError("workflow_id", "workflow ID is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM review_requests WHERE temporal_workflow_id = $1`, reviewColumns)

	review, err := reviewFromRow(r.db.QueryRow(ctx, query, workflowID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("review", workflowID)
		}
		return nil, fmt.Errorf("failed to get review by workflow ID: %w", err)
	}
	return review, nil
}

// Update reads the row under SELECT FOR UPDATE, applies fn, and writes the
// result back. Against the pool it opens its own transaction; inside an
// existing transaction it reuses the caller's.
func (r *PgReviewRepository) Update(ctx context.Context, id uuid.UUID, fn func(*domain.ReviewRequest) error) error {
	starter, ok := r.db.(txStarter)
	if !ok {
		return r.updateLocked(ctx, id, fn)
	}

	tx, err := starter.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := (&PgReviewRepository{db: tx}).updateLocked(ctx, id, fn); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// updateLocked needs a surrounding transaction for the row lock to hold.
func (r *PgReviewRepository) updateLocked(ctx context.Context, id uuid.UUID, fn func(*domain.ReviewRequest) error) error {
	selectQuery := fmt.Sprintf(`SELECT %s FROM review_requests WHERE id = $1 FOR UPDATE`, reviewColumns)

	rows, err := r.db.Query(ctx, selectQuery, id)
	if err != nil {
		return fmt.Errorf("failed to query review for update: %w", err)
	}

	review, err := reviewFromLockedRows(rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("review", id.String())
		}
		return fmt.Errorf("failed to scan review: %w", err)
	}

	if err := fn(review); err != nil {
		return err
	}
	review.UpdatedAt = time.Now().UTC()

	configJSON, err := json.Marshal(review.Configuration)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	updateQuery := `
		UPDATE review_requests SET
			topic = $1,
			crafted_query = $2,
			temporal_workflow_id = $3,
			temporal_run_id = $4,
			status = $5,
			error_message = $6,
			candidates_found = $7,
			papers_selected = $8,
			papers_reviewed = $9,
			papers_failed = $10,
			configuration = $11,
			updated_at = $12,
			started_at = $13,
			completed_at = $14
		WHERE id = $15`

	_, err = r.db.Exec(ctx, updateQuery,
		review.Topic,
		nullString(review.CraftedQuery),
		nullString(review.TemporalWorkflowID),
		nullString(review.TemporalRunID),
		review.Status,
		nullString(review.ErrorMessage),
		review.CandidatesFound,
		review.PapersSelected,
		review.PapersReviewed,
		review.PapersFailedCount,
		configJSON,
		review.UpdatedAt,
		review.StartedAt,
		review.CompletedAt,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	return nil
}

// UpdateStatus moves a review to a new status, enforcing the transition
// table and stamping started_at/completed_at as the review enters and
// leaves the pipeline.
func (r *PgReviewRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ReviewStatus, errorMsg string) error {
	return r.Update(ctx, id, func(review *domain.ReviewRequest) error {
		if !isValidStatusTransition(review.Status, status) {
			return fmt.Errorf("invalid status transition from %s to %s: %w",
				review.Status, status, domain.ErrInvalidInput)
		}

		review.Status = status
		// Failure reasons and cancellation reasons both land in error_message.
		if errorMsg != "" && (status == domain.ReviewStatusFailed || status == domain.ReviewStatusCancelled) {
			review.ErrorMessage = errorMsg
		}

		now := time.Now().UTC()
		if status == domain.ReviewStatusCraftingQuery && review.StartedAt == nil {
			review.StartedAt = &now
		}
		if status.IsTerminal() && review.CompletedAt == nil {
			review.CompletedAt = &now
		}
		return nil
	})
}

// List returns matching reviews newest first, with an opaque page token for
// the next page and the total match count.
func (r *PgReviewRepository) List(ctx context.Context, filter ReviewFilter) ([]*domain.ReviewRequest, int64, string, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, "", err
	}

	offset, err := decodePageToken(filter.PageToken)
	if err != nil {
		return nil, 0, "", err
	}

	whereClause, args := buildReviewFilter(filter)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM review_requests WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, "", fmt.Errorf("failed to count reviews: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM review_requests
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		reviewColumns, whereClause, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]*domain.ReviewRequest, 0, filter.Limit)
	for rows.Next() {
		review, err := reviewFromRows(rows)
		if err != nil {
			return nil, 0, "", fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, "", fmt.Errorf("error iterating reviews: %w", err)
	}

	nextToken := ""
	if int64(offset+len(reviews)) < totalCount {
		nextToken = encodePageToken(offset + len(reviews))
	}
	return reviews, totalCount, nextToken, nil
}

// buildReviewFilter renders the WHERE clause and its arguments for List.
func buildReviewFilter(filter ReviewFilter) (string, []interface{}) {
	conditions := []string{"TRUE"}
	args := []interface{}{}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			args = append(args, s)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.CreatedAfter != nil {
		args = append(args, *filter.CreatedAfter)
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", len(args)))
	}
	if filter.CreatedBefore != nil {
		args = append(args, *filter.CreatedBefore)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}

	return strings.Join(conditions, " AND "), args
}

// IncrementCounters adjusts the progress counters in a single statement.
func (r *PgReviewRepository) IncrementCounters(ctx context.Context, id uuid.UUID, delta CounterDelta) error {
	query := `
		UPDATE review_requests
		SET candidates_found = candidates_found + $1,
			papers_selected = papers_selected + $2,
			papers_reviewed = papers_reviewed + $3,
			papers_failed = papers_failed + $4,
			updated_at = $5
		WHERE id = $6`

	result, err := r.db.Exec(ctx, query,
		delta.CandidatesFound,
		delta.PapersSelected,
		delta.PapersReviewed,
		delta.PapersFailed,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to increment counters: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("review", id.String())
	}
	return nil
}

func isValidStatusTransition(from, to domain.ReviewStatus) bool {
	if from.IsTerminal() {
		return false
	}
	for _, s := range validStatusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// reviewRecord carries the scan targets for one review_requests row,
// including the nullable columns that need post-processing.
type reviewRecord struct {
	review             domain.ReviewRequest
	configJSON         []byte
	craftedQuery       *string
	temporalWorkflowID *string
	temporalRunID      *string
	errorMessage       *string
}

func (rec *reviewRecord) scanTargets() []interface{} {
	return []interface{}{
		&rec.review.ID, &rec.review.Topic, &rec.craftedQuery,
		&rec.temporalWorkflowID, &rec.temporalRunID, &rec.review.Status, &rec.errorMessage,
		&rec.review.CandidatesFound, &rec.review.PapersSelected, &rec.review.PapersReviewed, &rec.review.PapersFailedCount,
		&rec.configJSON,
		&rec.review.CreatedAt, &rec.review.UpdatedAt, &rec.review.StartedAt, &rec.review.CompletedAt,
	}
}

// toDomain resolves the nullable columns and decodes the configuration.
func (rec *reviewRecord) toDomain() (*domain.ReviewRequest, error) {
	if rec.craftedQuery != nil {
		rec.review.CraftedQuery = *rec.craftedQuery
	}
	if rec.temporalWorkflowID != nil {
		rec.review.TemporalWorkflowID = *rec.temporalWorkflowID
	}
	if rec.temporalRunID != nil {
		rec.review.TemporalRunID = *rec.temporalRunID
	}
	if rec.errorMessage != nil {
		rec.review.ErrorMessage = *rec.errorMessage
	}

	if len(rec.configJSON) > 0 {
		if err := json.Unmarshal(rec.configJSON, &rec.review.Configuration); err != nil {
			return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
		}
	}
	return &rec.review, nil
}

func reviewFromRow(row pgx.Row) (*domain.ReviewRequest, error) {
	var rec reviewRecord
	if err := row.Scan(rec.scanTargets()...); err != nil {
		return nil, err
	}
	return rec.toDomain()
}

func reviewFromRows(rows pgx.Rows) (*domain.ReviewRequest, error) {
	var rec reviewRecord
	if err := rows.Scan(rec.scanTargets()...); err != nil {
		return nil, err
	}
	return rec.toDomain()
}

// reviewFromLockedRows consumes the single-row result of a SELECT FOR
// UPDATE, translating an empty result into pgx.ErrNoRows.
func reviewFromLockedRows(rows pgx.Rows) (*domain.ReviewRequest, error) {
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}
	return reviewFromRows(rows)
}
