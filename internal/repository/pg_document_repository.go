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

// Compile-time interface verification.
var _ DocumentRepository = (*PgDocumentRepository)(nil)

// PgDocumentRepository is a PostgreSQL implementation of DocumentRepository.
type PgDocumentRepository struct {
	db DBTX
}

// NewPgDocumentRepository creates a new PostgreSQL document repository.
func NewPgDocumentRepository(db DBTX) *PgDocumentRepository {
	return &PgDocumentRepository{db: db}
}

// SaveReview persists a single paper review.
func (r *PgDocumentRepository) SaveReview(ctx context.Context, review *domain.PaperReview) error {
	if review == nil {
		return domain.NewValidationError("review", "review cannot be nil")
	}
	if review.RequestID == uuid.Nil {
		return domain.NewValidationError("request_id", "request ID is required")
	}
	if review.PaperID == uuid.Nil {
		return domain.NewValidationError("paper_id", "paper ID is required")
	}

	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}

	pointsJSON, err := json.Marshal(review.ImportantPoints)
	if err != nil {
		return fmt.Errorf("failed to marshal important points: %w", err)
	}
	sentencesJSON, err := json.Marshal(review.ImportantSentences)
	if err != nil {
		return fmt.Errorf("failed to marshal important sentences: %w", err)
	}

	query := `
		INSERT INTO paper_reviews (
			id, request_id, paper_id, rank,
			title, author_names, publication_details, abstract,
			description, scope, methodology, research_gaps, research_questions,
			important_points, important_sentences,
			results_conclusion, advantages, disadvantages,
			tokens_used, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15,
			$16, $17, $18,
			$19, $20
		)`

	_, err = r.db.Exec(ctx, query,
		review.ID, review.RequestID, review.PaperID, review.Rank,
		review.Title, review.AuthorNames, review.PublicationDetails, review.Abstract,
		review.Description, review.Scope, review.Methodology, review.ResearchGaps, review.ResearchQuestions,
		pointsJSON, sentencesJSON,
		review.ResultsConclusion, review.Advantages, review.Disadvantages,
		review.TokensUsed, review.CreatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("paper review", review.PaperID.String())
		}
		return fmt.Errorf("failed to save paper review: %w", err)
	}

	return nil
}

// ListReviews retrieves the paper reviews for a request in rank order.
func (r *PgDocumentRepository) ListReviews(ctx context.Context, requestID uuid.UUID) ([]domain.PaperReview, error) {
	query := `
		SELECT id, request_id, paper_id, rank,
			title, author_names, publication_details, abstract,
			description, scope, methodology, research_gaps, research_questions,
			important_points, important_sentences,
			results_conclusion, advantages, disadvantages,
			tokens_used, created_at
		FROM paper_reviews
		WHERE request_id = $1
		ORDER BY rank ASC`

	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list paper reviews: %w", err)
	}
	defer rows.Close()

	var reviews []domain.PaperReview
	for rows.Next() {
		review, err := scanPaperReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper review: %w", err)
		}
		reviews = append(reviews, *review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paper reviews: %w", err)
	}

	return reviews, nil
}

// SaveDocument persists the assembled review document, replacing any
// previous document for the request.
func (r *PgDocumentRepository) SaveDocument(ctx context.Context, doc *domain.ReviewDocument) error {
	if doc == nil {
		return domain.NewValidationError("document", "document cannot be nil")
	}
	if doc.RequestID == uuid.Nil {
		return domain.NewValidationError("request_id", "request ID is required")
	}

	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO review_documents (
			id, request_id, topic, crafted_query, markdown, total_tokens_used, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (request_id) DO UPDATE SET
			topic = EXCLUDED.topic,
			crafted_query = EXCLUDED.crafted_query,
			markdown = EXCLUDED.markdown,
			total_tokens_used = EXCLUDED.total_tokens_used,
			created_at = EXCLUDED.created_at`

	_, err := r.db.Exec(ctx, query,
		doc.ID, doc.RequestID, doc.Topic, nullString(doc.CraftedQuery),
		doc.Markdown, doc.TotalTokensUsed, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save review document: %w", err)
	}

	return nil
}

// GetDocument retrieves the assembled document for a request with its
// per-paper reviews attached.
func (r *PgDocumentRepository) GetDocument(ctx context.Context, requestID uuid.UUID) (*domain.ReviewDocument, error) {
	query := `
		SELECT id, request_id, topic, crafted_query, markdown, total_tokens_used, created_at
		FROM review_documents
		WHERE request_id = $1`

	var doc domain.ReviewDocument
	var craftedQuery *string

	err := r.db.QueryRow(ctx, query, requestID).Scan(
		&doc.ID, &doc.RequestID, &doc.Topic, &craftedQuery,
		&doc.Markdown, &doc.TotalTokensUsed, &doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("review document", requestID.String())
		}
		return nil, fmt.Errorf("failed to get review document: %w", err)
	}
	if craftedQuery != nil {
		doc.CraftedQuery = *craftedQuery
	}

	reviews, err := r.ListReviews(ctx, requestID)
	if err != nil {
		return nil, err
	}
	doc.Reviews = reviews

	return &doc, nil
}

// scanPaperReview scans the current row from pgx.Rows into a PaperReview.
func scanPaperReview(rows pgx.Rows) (*domain.PaperReview, error) {
	var review domain.PaperReview
	var pointsJSON, sentencesJSON []byte

	err := rows.Scan(
		&review.ID, &review.RequestID, &review.PaperID, &review.Rank,
		&review.Title, &review.AuthorNames, &review.PublicationDetails, &review.Abstract,
		&review.Description, &review.Scope, &review.Methodology, &review.ResearchGaps, &review.ResearchQuestions,
		&pointsJSON, &sentencesJSON,
		&review.ResultsConclusion, &review.Advantages, &review.Disadvantages,
		&review.TokensUsed, &review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(pointsJSON) > 0 {
		if err := json.Unmarshal(pointsJSON, &review.ImportantPoints); err != nil {
			return nil, fmt.Errorf("failed to unmarshal important points: %w", err)
		}
	}
	if len(sentencesJSON) > 0 {
		if err := json.Unmarshal(sentencesJSON, &review.ImportantSentences); err != nil {
			return nil, fmt.Errorf("failed to unmarshal important sentences: %w", err)
		}
	}

	return &review, nil
}
