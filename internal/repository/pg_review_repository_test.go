package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// newTestReview builds a valid review request for testing.
func newTestReview() *domain.ReviewRequest {
	now := time.Now().UTC()
	return &domain.ReviewRequest{
		ID:            uuid.New(),
		Topic:         "diffusion models for medical imaging",
		Status:        domain.ReviewStatusPending,
		Configuration: domain.DefaultReviewConfiguration(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func reviewRowColumns() []string {
	return []string{
		"id", "topic", "crafted_query",
		"temporal_workflow_id", "temporal_run_id", "status", "error_message",
		"candidates_found", "papers_selected", "papers_reviewed", "papers_failed",
		"configuration",
		"created_at", "updated_at", "started_at", "completed_at",
	}
}

func reviewRow(t *testing.T, review *domain.ReviewRequest) *pgxmock.Rows {
	t.Helper()

	configJSON, err := json.Marshal(review.Configuration)
	require.NoError(t, err)

	return pgxmock.NewRows(reviewRowColumns()).AddRow(
		review.ID, review.Topic, nullString(review.CraftedQuery),
		nullString(review.TemporalWorkflowID), nullString(review.TemporalRunID), review.Status, nullString(review.ErrorMessage),
		review.CandidatesFound, review.PapersSelected, review.PapersReviewed, review.PapersFailedCount,
		configJSON,
		review.CreatedAt, review.UpdatedAt, review.StartedAt, review.CompletedAt,
	)
}

func TestIsValidStatusTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     domain.ReviewStatus
		to       domain.ReviewStatus
		expected bool
	}{
		{"pending to crafting_query", domain.ReviewStatusPending, domain.ReviewStatusCraftingQuery, true},
		{"pending to failed", domain.ReviewStatusPending, domain.ReviewStatusFailed, true},
		{"pending to cancelled", domain.ReviewStatusPending, domain.ReviewStatusCancelled, true},
		{"pending cannot skip to searching", domain.ReviewStatusPending, domain.ReviewStatusSearching, false},
		{"pending cannot skip to completed", domain.ReviewStatusPending, domain.ReviewStatusCompleted, false},
		{"crafting_query to searching", domain.ReviewStatusCraftingQuery, domain.ReviewStatusSearching, true},
		{"crafting_query cannot skip to reviewing", domain.ReviewStatusCraftingQuery, domain.ReviewStatusReviewing, false},
		{"searching to selecting", domain.ReviewStatusSearching, domain.ReviewStatusSelecting, true},
		{"searching cannot go back to pending", domain.ReviewStatusSearching, domain.ReviewStatusPending, false},
		{"selecting to reviewing", domain.ReviewStatusSelecting, domain.ReviewStatusReviewing, true},
		{"reviewing to completed", domain.ReviewStatusReviewing, domain.ReviewStatusCompleted, true},
		{"reviewing to partial", domain.ReviewStatusReviewing, domain.ReviewStatusPartial, true},
		{"reviewing to failed", domain.ReviewStatusReviewing, domain.ReviewStatusFailed, true},
		{"reviewing to cancelled", domain.ReviewStatusReviewing, domain.ReviewStatusCancelled, true},
		{"completed is terminal", domain.ReviewStatusCompleted, domain.ReviewStatusPending, false},
		{"partial is terminal", domain.ReviewStatusPartial, domain.ReviewStatusCompleted, false},
		{"failed is terminal", domain.ReviewStatusFailed, domain.ReviewStatusPending, false},
		{"cancelled is terminal", domain.ReviewStatusCancelled, domain.ReviewStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isValidStatusTransition(tt.from, tt.to))
		})
	}
}

func TestPgReviewRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates review successfully", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		review := newTestReview()

		mock.ExpectExec("INSERT INTO review_requests").
			WithArgs(
				review.ID, review.Topic, pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), review.Status, pgxmock.AnyArg(),
				review.CandidatesFound, review.PapersSelected, review.PapersReviewed, review.PapersFailedCount,
				pgxmock.AnyArg(),
				review.CreatedAt, review.UpdatedAt, pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.Create(ctx, review)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects nil review", func(t *testing.T) {
		repo := NewPgReviewRepository(nil)
		err := repo.Create(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects missing ID", func(t *testing.T) {
		repo := NewPgReviewRepository(nil)
		review := newTestReview()
		review.ID = uuid.Nil

		err := repo.Create(ctx, review)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects blank topic", func(t *testing.T) {
		repo := NewPgReviewRepository(nil)
		review := newTestReview()
		review.Topic = "   "

		err := repo.Create(ctx, review)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("duplicate ID returns already exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		review := newTestReview()

		mock.ExpectExec("INSERT INTO review_requests").
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

		err = repo.Create(ctx, review)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgReviewRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("returns review when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		review := newTestReview()
		review.CraftedQuery = `all:"diffusion models"`

		mock.ExpectQuery("SELECT .* FROM review_requests WHERE id = \\$1").
			WithArgs(review.ID).
			WillReturnRows(reviewRow(t, review))

		got, err := repo.Get(ctx, review.ID)
		require.NoError(t, err)
		assert.Equal(t, review.ID, got.ID)
		assert.Equal(t, review.Topic, got.Topic)
		assert.Equal(t, review.CraftedQuery, got.CraftedQuery)
		assert.Equal(t, review.Configuration.RequestedPapers, got.Configuration.RequestedPapers)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing review", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		id := uuid.New()

		mock.ExpectQuery("SELECT .* FROM review_requests WHERE id = \\$1").
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(reviewRowColumns()))

		got, err := repo.Get(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgReviewRepository_GetByWorkflowID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns review for workflow ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		review := newTestReview()
		review.TemporalWorkflowID = "review-" + review.ID.String()

		mock.ExpectQuery("SELECT .* FROM review_requests WHERE temporal_workflow_id = \\$1").
			WithArgs(review.TemporalWorkflowID).
			WillReturnRows(reviewRow(t, review))

		got, err := repo.GetByWorkflowID(ctx, review.TemporalWorkflowID)
		require.NoError(t, err)
		assert.Equal(t, review.ID, got.ID)
		assert.Equal(t, review.TemporalWorkflowID, got.TemporalWorkflowID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects empty workflow ID", func(t *testing.T) {
		repo := NewPgReviewRepository(nil)
		got, err := repo.GetByWorkflowID(ctx, "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Nil(t, got)
	})
}

func TestPgReviewRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("wraps pool update in a transaction", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		review := newTestReview()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM review_requests WHERE id = \\$1 FOR UPDATE").
			WithArgs(review.ID).
			WillReturnRows(reviewRow(t, review))
		mock.ExpectExec("UPDATE review_requests SET").
			WithArgs(
				review.Topic, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				domain.ReviewStatusCraftingQuery, pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				review.ID,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = repo.Update(ctx, review.ID, func(r *domain.ReviewRequest) error {
			r.Status = domain.ReviewStatusCraftingQuery
			return nil
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("function error rolls back", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		review := newTestReview()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM review_requests WHERE id = \\$1 FOR UPDATE").
			WithArgs(review.ID).
			WillReturnRows(reviewRow(t, review))
		mock.ExpectRollback()

		err = repo.Update(ctx, review.ID, func(r *domain.ReviewRequest) error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing review returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM review_requests WHERE id = \\$1 FOR UPDATE").
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(reviewRowColumns()))
		mock.ExpectRollback()

		err = repo.Update(ctx, id, func(r *domain.ReviewRequest) error { return nil })
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgReviewRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid transition is rejected", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		review := newTestReview()
		review.Status = domain.ReviewStatusCompleted

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM review_requests WHERE id = \\$1 FOR UPDATE").
			WithArgs(review.ID).
			WillReturnRows(reviewRow(t, review))
		mock.ExpectRollback()

		err = repo.UpdateStatus(ctx, review.ID, domain.ReviewStatusReviewing, "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("transition to crafting_query stamps started_at", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		review := newTestReview()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM review_requests WHERE id = \\$1 FOR UPDATE").
			WithArgs(review.ID).
			WillReturnRows(reviewRow(t, review))
		mock.ExpectExec("UPDATE review_requests SET").
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				domain.ReviewStatusCraftingQuery, pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				review.ID,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = repo.UpdateStatus(ctx, review.ID, domain.ReviewStatusCraftingQuery, "")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancellation reason lands in error_message", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		review := newTestReview()
		reason := "cancelled by user"

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM review_requests WHERE id = \\$1 FOR UPDATE").
			WithArgs(review.ID).
			WillReturnRows(reviewRow(t, review))
		mock.ExpectExec("UPDATE review_requests SET").
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				domain.ReviewStatusCancelled, &reason,
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				review.ID,
			).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = repo.UpdateStatus(ctx, review.ID, domain.ReviewStatusCancelled, reason)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgReviewRepository_List(t *testing.T) {
	ctx := context.Background()

	t.Run("lists with status filter and next page token", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		review := newTestReview()

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM review_requests").
			WithArgs(domain.ReviewStatusPending).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(5)))
		mock.ExpectQuery("SELECT .* FROM review_requests .* ORDER BY created_at DESC").
			WithArgs(domain.ReviewStatusPending, 1, 0).
			WillReturnRows(reviewRow(t, review))

		reviews, total, nextToken, err := repo.List(ctx, ReviewFilter{
			Status: []domain.ReviewStatus{domain.ReviewStatusPending},
			Limit:  1,
		})
		require.NoError(t, err)
		assert.Len(t, reviews, 1)
		assert.Equal(t, int64(5), total)
		assert.NotEmpty(t, nextToken)

		offset, err := decodePageToken(nextToken)
		require.NoError(t, err)
		assert.Equal(t, 1, offset)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("last page returns no token", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		review := newTestReview()

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM review_requests").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
		mock.ExpectQuery("SELECT .* FROM review_requests .* ORDER BY created_at DESC").
			WithArgs(defaultFilterLimit, 0).
			WillReturnRows(reviewRow(t, review))

		reviews, total, nextToken, err := repo.List(ctx, ReviewFilter{})
		require.NoError(t, err)
		assert.Len(t, reviews, 1)
		assert.Equal(t, int64(1), total)
		assert.Empty(t, nextToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed page token is rejected", func(t *testing.T) {
		repo := NewPgReviewRepository(nil)

		_, _, _, err := repo.List(ctx, ReviewFilter{PageToken: "not-base64!!"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestPgReviewRepository_IncrementCounters(t *testing.T) {
	ctx := context.Background()

	t.Run("increments counters", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		id := uuid.New()

		mock.ExpectExec("UPDATE review_requests").
			WithArgs(25, 5, 0, 0, pgxmock.AnyArg(), id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.IncrementCounters(ctx, id, CounterDelta{CandidatesFound: 25, PapersSelected: 5})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing review returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgReviewRepository(mock)
		id := uuid.New()

		mock.ExpectExec("UPDATE review_requests").
			WithArgs(0, 0, 1, 0, pgxmock.AnyArg(), id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.IncrementCounters(ctx, id, CounterDelta{PapersReviewed: 1})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPageTokens(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		token := encodePageToken(42)
		require.NotEmpty(t, token)

		offset, err := decodePageToken(token)
		require.NoError(t, err)
		assert.Equal(t, 42, offset)
	})

	t.Run("zero offset encodes to empty token", func(t *testing.T) {
		assert.Empty(t, encodePageToken(0))
	})

	t.Run("empty token decodes to zero offset", func(t *testing.T) {
		offset, err := decodePageToken("")
		require.NoError(t, err)
		assert.Zero(t, offset)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		_, err := decodePageToken("%%%")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("wrong prefix is rejected", func(t *testing.T) {
		token := "eDox" // base64 of "x:1"
		_, err := decodePageToken(token)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
