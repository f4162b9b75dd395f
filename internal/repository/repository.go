// Package repository provides data access interfaces and PostgreSQL
// implementations for the literature review service.
//
// Repositories accept the DBTX interface so the same implementation works
// against the connection pool and inside a transaction. All methods return
// domain errors (domain.ErrNotFound, domain.ErrAlreadyExists,
// domain.ErrInvalidInput) wrapped with context via fmt.Errorf and %w.
//
// Typical wiring at startup:
//
//	db, _ := database.New(ctx, cfg, logger)
//	reviewRepo := repository.NewPgReviewRepository(db)
//	paperRepo := repository.NewPgPaperRepository(db)
//	docRepo := repository.NewPgDocumentRepository(db)
package repository

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/scribeworks/litreview-service/internal/database"
	"github.com/scribeworks/litreview-service/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction
// contexts. Passing a pgx.Tx instead of the pool makes all repository
// calls part of that transaction.
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// isPgForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func isPgForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}

// applyPaginationDefaults normalizes a filter limit, clamping it to
// [1, maxFilterLimit].
func applyPaginationDefaults(limit *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
}

// encodePageToken encodes a result offset as an opaque page token.
func encodePageToken(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte("o:" + strconv.Itoa(offset)))
}

// decodePageToken decodes an opaque page token into a result offset.
// An empty token means the first page.
func decodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, domain.NewValidationError("page_token", "malformed page token")
	}

	value, ok := strings.CutPrefix(string(raw), "o:")
	if !ok {
		return 0, domain.NewValidationError("page_token", "malformed page token")
	}

	offset, err := strconv.Atoi(value)
	if err != nil || offset < 0 {
		return 0, domain.NewValidationError("page_token", "malformed page token")
	}

	return offset, nil
}

// nullString returns a pointer to the string if non-empty, otherwise nil.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
