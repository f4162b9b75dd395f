package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/scribeworks/litreview-service/internal/domain"
)

const paperColumns = `id, canonical_id, arxiv_id, title, abstract, authors,
	publication_date, pdf_url, categories, raw_metadata,
	created_at, updated_at`

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// Upsert creates a paper or updates the existing row matched by canonical_id.
func (r *PgPaperRepository) Upsert(ctx context.Context, paper *domain.Paper) (*domain.Paper, error) {
	if paper == nil {
		return nil, domain.NewValidationError("paper", "paper cannot be nil")
	}
	if paper.CanonicalID == "" {
		return nil, domain.NewValidationError("canonical_id", "canonical ID is required")
	}

	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal authors: %w", err)
	}

	categoriesJSON, err := json.Marshal(paper.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal categories: %w", err)
	}

	var metadataJSON []byte
	if paper.RawMetadata != nil {
		metadataJSON, err = json.Marshal(paper.RawMetadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	now := time.Now().UTC()
	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}

	query := `
		INSERT INTO papers (
			id, canonical_id, arxiv_id, title, abstract, authors,
			publication_date, pdf_url, categories, raw_metadata,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (canonical_id) DO UPDATE SET
			arxiv_id = COALESCE(NULLIF(EXCLUDED.arxiv_id, ''), papers.arxiv_id),
			title = EXCLUDED.title,
			abstract = COALESCE(NULLIF(EXCLUDED.abstract, ''), papers.abstract),
			authors = EXCLUDED.authors,
			publication_date = COALESCE(EXCLUDED.publication_date, papers.publication_date),
			pdf_url = COALESCE(NULLIF(EXCLUDED.pdf_url, ''), papers.pdf_url),
			categories = EXCLUDED.categories,
			raw_metadata = COALESCE(EXCLUDED.raw_metadata, papers.raw_metadata),
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		paper.ID,
		paper.CanonicalID,
		paper.ArXivID,
		paper.Title,
		paper.Abstract,
		authorsJSON,
		paper.PublicationDate,
		paper.PDFURL,
		categoriesJSON,
		metadataJSON,
		now,
		now,
	).Scan(&paper.ID, &paper.CreatedAt, &paper.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert paper: %w", err)
	}

	return paper, nil
}

// UpsertAll upserts multiple papers in input order.
func (r *PgPaperRepository) UpsertAll(ctx context.Context, papers []*domain.Paper) ([]*domain.Paper, error) {
	if len(papers) == 0 {
		return nil, nil
	}

	result := make([]*domain.Paper, 0, len(papers))
	for i, paper := range papers {
		saved, err := r.Upsert(ctx, paper)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert paper %d: %w", i, err)
		}
		result = append(result, saved)
	}

	return result, nil
}

// GetByID retrieves a paper by its UUID.
func (r *PgPaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error) {
	query := fmt.Sprintf(`SELECT %s FROM papers WHERE id = $1`, paperColumns)

	row := r.db.QueryRow(ctx, query, id)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id.String())
		}
		return nil, fmt.Errorf("failed to get paper by ID: %w", err)
	}

	return paper, nil
}

// GetByCanonicalID retrieves a paper by its canonical identifier.
func (r *PgPaperRepository) GetByCanonicalID(ctx context.Context, canonicalID string) (*domain.Paper, error) {
	if canonicalID == "" {
		return nil, domain.NewValidationError("canonical_id", "canonical ID is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM papers WHERE canonical_id = $1`, paperColumns)

	row := r.db.QueryRow(ctx, query, canonicalID)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", canonicalID)
		}
		return nil, fmt.Errorf("failed to get paper by canonical ID: %w", err)
	}

	return paper, nil
}

// SelectForRequest records the papers selected for a review request,
// replacing any previous selection.
func (r *PgPaperRepository) SelectForRequest(ctx context.Context, requestID uuid.UUID, papers []*domain.Paper) error {
	if requestID == uuid.Nil {
		return domain.NewValidationError("request_id", "request ID is required")
	}

	deleteQuery := `DELETE FROM request_papers WHERE request_id = $1`
	if _, err := r.db.Exec(ctx, deleteQuery, requestID); err != nil {
		return fmt.Errorf("failed to clear previous selection: %w", err)
	}

	insertQuery := `
		INSERT INTO request_papers (
			id, request_id, paper_id, relevance_rank, outcome, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	now := time.Now().UTC()
	for _, paper := range papers {
		rank := paper.RelevanceRank
		_, err := r.db.Exec(ctx, insertQuery,
			uuid.New(), requestID, paper.ID, rank, domain.ReviewOutcomePending, now, now,
		)
		if err != nil {
			if isPgForeignKeyViolation(err) {
				return domain.NewNotFoundError("review", requestID.String())
			}
			return fmt.Errorf("failed to record selected paper: %w", err)
		}
	}

	return nil
}

// ListByRequest retrieves the selected papers for a request in rank order.
func (r *PgPaperRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*SelectedPaper, error) {
	query := `
		SELECT p.id, p.canonical_id, p.arxiv_id, p.title, p.abstract, p.authors,
			p.publication_date, p.pdf_url, p.categories, p.raw_metadata,
			p.created_at, p.updated_at,
			rp.relevance_rank, rp.outcome, rp.outcome_error
		FROM papers p
		INNER JOIN request_papers rp ON p.id = rp.paper_id
		WHERE rp.request_id = $1
		ORDER BY rp.relevance_rank ASC`

	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers for request: %w", err)
	}
	defer rows.Close()

	var selected []*SelectedPaper
	for rows.Next() {
		var dest paperScanDest
		var rank int
		var outcome domain.ReviewOutcome
		var outcomeError *string

		scanArgs := append(dest.destinations(), &rank, &outcome, &outcomeError)
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan selected paper: %w", err)
		}

		paper, err := dest.finalize()
		if err != nil {
			return nil, err
		}
		paper.RelevanceRank = rank

		sp := &SelectedPaper{
			Paper:         paper,
			RelevanceRank: rank,
			Outcome:       outcome,
		}
		if outcomeError != nil {
			sp.OutcomeError = *outcomeError
		}
		selected = append(selected, sp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating selected papers: %w", err)
	}

	return selected, nil
}

// UpdateOutcome records the review outcome for one selected paper.
func (r *PgPaperRepository) UpdateOutcome(ctx context.Context, requestID, paperID uuid.UUID, outcome domain.ReviewOutcome, outcomeError string) error {
	query := `
		UPDATE request_papers
		SET outcome = $1, outcome_error = $2, updated_at = $3
		WHERE request_id = $4 AND paper_id = $5`

	result, err := r.db.Exec(ctx, query,
		outcome, nullString(outcomeError), time.Now().UTC(), requestID, paperID,
	)
	if err != nil {
		return fmt.Errorf("failed to update paper outcome: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("request paper", paperID.String())
	}

	return nil
}

// paperScanDest holds the destination pointers for scanning a paper row.
type paperScanDest struct {
	paper          domain.Paper
	arxivID        *string
	abstract       *string
	pdfURL         *string
	authorsJSON    []byte
	categoriesJSON []byte
	metadataJSON   []byte
}

func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.ID, &d.paper.CanonicalID, &d.arxivID, &d.paper.Title, &d.abstract, &d.authorsJSON,
		&d.paper.PublicationDate, &d.pdfURL, &d.categoriesJSON, &d.metadataJSON,
		&d.paper.CreatedAt, &d.paper.UpdatedAt,
	}
}

func (d *paperScanDest) finalize() (*domain.Paper, error) {
	if d.arxivID != nil {
		d.paper.ArXivID = *d.arxivID
	}
	if d.abstract != nil {
		d.paper.Abstract = *d.abstract
	}
	if d.pdfURL != nil {
		d.paper.PDFURL = *d.pdfURL
	}

	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.paper.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}
	if len(d.categoriesJSON) > 0 {
		if err := json.Unmarshal(d.categoriesJSON, &d.paper.Categories); err != nil {
			return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
		}
	}
	if len(d.metadataJSON) > 0 {
		if err := json.Unmarshal(d.metadataJSON, &d.paper.RawMetadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &d.paper, nil
}

// scanPaper scans a single row into a Paper.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
