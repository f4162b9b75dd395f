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

// newTestPaper builds a valid paper for testing.
func newTestPaper() *domain.Paper {
	published := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	return &domain.Paper{
		ID:          uuid.New(),
		CanonicalID: "arxiv:2301.04567",
		ArXivID:     "2301.04567",
		Title:       "Denoising Diffusion Probabilistic Models for MRI Reconstruction",
		Abstract:    "We study diffusion models applied to undersampled MRI.",
		Authors: []domain.Author{
			{Name: "Jane Roe"},
			{Name: "John Moe"},
		},
		PublicationDate: &published,
		PDFURL:          "http://arxiv.org/pdf/2301.04567",
		Categories:      []string{"eess.IV", "cs.CV"},
	}
}

func paperRowColumns() []string {
	return []string{
		"id", "canonical_id", "arxiv_id", "title", "abstract", "authors",
		"publication_date", "pdf_url", "categories", "raw_metadata",
		"created_at", "updated_at",
	}
}

func paperRow(t *testing.T, paper *domain.Paper) *pgxmock.Rows {
	t.Helper()

	authorsJSON, err := json.Marshal(paper.Authors)
	require.NoError(t, err)
	categoriesJSON, err := json.Marshal(paper.Categories)
	require.NoError(t, err)

	return pgxmock.NewRows(paperRowColumns()).AddRow(
		paper.ID, paper.CanonicalID, nullString(paper.ArXivID), paper.Title, nullString(paper.Abstract), authorsJSON,
		paper.PublicationDate, nullString(paper.PDFURL), categoriesJSON, []byte(nil),
		paper.CreatedAt, paper.UpdatedAt,
	)
}

func TestPgPaperRepository_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts paper and returns assigned fields", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()
		now := time.Now().UTC()

		mock.ExpectQuery("INSERT INTO papers").
			WithArgs(
				paper.ID, paper.CanonicalID, paper.ArXivID, paper.Title, paper.Abstract, pgxmock.AnyArg(),
				paper.PublicationDate, paper.PDFURL, pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(paper.ID, now, now))

		saved, err := repo.Upsert(ctx, paper)
		require.NoError(t, err)
		assert.Equal(t, paper.ID, saved.ID)
		assert.Equal(t, now, saved.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects nil paper", func(t *testing.T) {
		repo := NewPgPaperRepository(nil)
		_, err := repo.Upsert(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects missing canonical ID", func(t *testing.T) {
		repo := NewPgPaperRepository(nil)
		paper := newTestPaper()
		paper.CanonicalID = ""

		_, err := repo.Upsert(ctx, paper)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("assigns ID when missing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()
		paper.ID = uuid.Nil
		assigned := uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery("INSERT INTO papers").
			WithArgs(
				pgxmock.AnyArg(), paper.CanonicalID, paper.ArXivID, paper.Title, paper.Abstract, pgxmock.AnyArg(),
				paper.PublicationDate, paper.PDFURL, pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(assigned, now, now))

		saved, err := repo.Upsert(ctx, paper)
		require.NoError(t, err)
		assert.Equal(t, assigned, saved.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPaperRepository_UpsertAll(t *testing.T) {
	ctx := context.Background()

	t.Run("empty input returns nil", func(t *testing.T) {
		repo := NewPgPaperRepository(nil)
		saved, err := repo.UpsertAll(ctx, nil)
		assert.NoError(t, err)
		assert.Nil(t, saved)
	})

	t.Run("upserts all papers in order", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		first := newTestPaper()
		second := newTestPaper()
		second.CanonicalID = "arxiv:2302.00001"
		second.ArXivID = "2302.00001"
		now := time.Now().UTC()

		for _, p := range []*domain.Paper{first, second} {
			mock.ExpectQuery("INSERT INTO papers").
				WithArgs(
					p.ID, p.CanonicalID, p.ArXivID, p.Title, p.Abstract, pgxmock.AnyArg(),
					p.PublicationDate, p.PDFURL, pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(),
				).
				WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
					AddRow(p.ID, now, now))
		}

		saved, err := repo.UpsertAll(ctx, []*domain.Paper{first, second})
		require.NoError(t, err)
		require.Len(t, saved, 2)
		assert.Equal(t, first.CanonicalID, saved[0].CanonicalID)
		assert.Equal(t, second.CanonicalID, saved[1].CanonicalID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPaperRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns paper when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		paper := newTestPaper()

		mock.ExpectQuery("SELECT .* FROM papers WHERE id = \\$1").
			WithArgs(paper.ID).
			WillReturnRows(paperRow(t, paper))

		got, err := repo.GetByID(ctx, paper.ID)
		require.NoError(t, err)
		assert.Equal(t, paper.CanonicalID, got.CanonicalID)
		assert.Equal(t, paper.Title, got.Title)
		require.Len(t, got.Authors, 2)
		assert.Equal(t, "Jane Roe", got.Authors[0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing paper", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		id := uuid.New()

		mock.ExpectQuery("SELECT .* FROM papers WHERE id = \\$1").
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows(paperRowColumns()))

		got, err := repo.GetByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPaperRepository_SelectForRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces previous selection", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		requestID := uuid.New()
		paper := newTestPaper()
		paper.RelevanceRank = 1

		mock.ExpectExec("DELETE FROM request_papers WHERE request_id = \\$1").
			WithArgs(requestID).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))
		mock.ExpectExec("INSERT INTO request_papers").
			WithArgs(pgxmock.AnyArg(), requestID, paper.ID, 1, domain.ReviewOutcomePending, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.SelectForRequest(ctx, requestID, []*domain.Paper{paper})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown request returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		requestID := uuid.New()
		paper := newTestPaper()

		mock.ExpectExec("DELETE FROM request_papers WHERE request_id = \\$1").
			WithArgs(requestID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectExec("INSERT INTO request_papers").
			WithArgs(pgxmock.AnyArg(), requestID, paper.ID, paper.RelevanceRank, domain.ReviewOutcomePending, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

		err = repo.SelectForRequest(ctx, requestID, []*domain.Paper{paper})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects nil request ID", func(t *testing.T) {
		repo := NewPgPaperRepository(nil)
		err := repo.SelectForRequest(ctx, uuid.Nil, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestPgPaperRepository_ListByRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("returns papers in rank order with outcomes", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		requestID := uuid.New()
		first := newTestPaper()
		second := newTestPaper()
		second.CanonicalID = "arxiv:2302.00001"

		authorsJSON, err := json.Marshal(first.Authors)
		require.NoError(t, err)
		categoriesJSON, err := json.Marshal(first.Categories)
		require.NoError(t, err)

		cols := append(paperRowColumns(), "relevance_rank", "outcome", "outcome_error")
		rows := pgxmock.NewRows(cols).
			AddRow(
				first.ID, first.CanonicalID, nullString(first.ArXivID), first.Title, nullString(first.Abstract), authorsJSON,
				first.PublicationDate, nullString(first.PDFURL), categoriesJSON, []byte(nil),
				first.CreatedAt, first.UpdatedAt,
				1, domain.ReviewOutcomeReviewed, (*string)(nil),
			).
			AddRow(
				second.ID, second.CanonicalID, nullString(second.ArXivID), second.Title, nullString(second.Abstract), authorsJSON,
				second.PublicationDate, nullString(second.PDFURL), categoriesJSON, []byte(nil),
				second.CreatedAt, second.UpdatedAt,
				2, domain.ReviewOutcomeFailed, nullString("llm request failed"),
			)

		mock.ExpectQuery("SELECT .* FROM papers p INNER JOIN request_papers rp").
			WithArgs(requestID).
			WillReturnRows(rows)

		selected, err := repo.ListByRequest(ctx, requestID)
		require.NoError(t, err)
		require.Len(t, selected, 2)

		assert.Equal(t, 1, selected[0].RelevanceRank)
		assert.Equal(t, 1, selected[0].Paper.RelevanceRank)
		assert.Equal(t, domain.ReviewOutcomeReviewed, selected[0].Outcome)
		assert.Empty(t, selected[0].OutcomeError)

		assert.Equal(t, 2, selected[1].RelevanceRank)
		assert.Equal(t, domain.ReviewOutcomeFailed, selected[1].Outcome)
		assert.Equal(t, "llm request failed", selected[1].OutcomeError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPaperRepository_UpdateOutcome(t *testing.T) {
	ctx := context.Background()

	t.Run("updates outcome", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		requestID := uuid.New()
		paperID := uuid.New()

		mock.ExpectExec("UPDATE request_papers").
			WithArgs(domain.ReviewOutcomeReviewed, pgxmock.AnyArg(), pgxmock.AnyArg(), requestID, paperID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.UpdateOutcome(ctx, requestID, paperID, domain.ReviewOutcomeReviewed, "")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing mapping returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPaperRepository(mock)
		requestID := uuid.New()
		paperID := uuid.New()

		mock.ExpectExec("UPDATE request_papers").
			WithArgs(domain.ReviewOutcomeFailed, pgxmock.AnyArg(), pgxmock.AnyArg(), requestID, paperID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.UpdateOutcome(ctx, requestID, paperID, domain.ReviewOutcomeFailed, "timeout")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
