package httpserver

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/repository"
)

func TestInvalidUUID_InputNotEchoed(t *testing.T) {
	srv := newTestHTTPServer(&mockWorkflowClient{}, &mockReviewRepo{}, &mockPaperRepo{}, &mockDocumentRepo{}, &mockProgressRepo{})

	malicious := `<script>alert(1)</script>`
	req := httptest.NewRequest(http.MethodGet, reviewsPath("/"+url.PathEscape(malicious)), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "script") {
		t.Errorf("error response echoed request input: %s", rr.Body.String())
	}
}

func TestStartLiteratureReview_OversizedBody(t *testing.T) {
	srv := newTestHTTPServer(&mockWorkflowClient{}, &mockReviewRepo{}, &mockPaperRepo{}, &mockDocumentRepo{}, &mockProgressRepo{})

	// Body larger than the 1MB limit gets truncated mid-JSON and rejected.
	huge := `{"topic":"` + strings.Repeat("a", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, reviewsPath(""), bytes.NewBufferString(huge))
	req.Header.Set("Content-Type", "application/json")
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestHTTPServer(&mockWorkflowClient{}, &mockReviewRepo{}, &mockPaperRepo{}, &mockDocumentRepo{}, &mockProgressRepo{})

	req := httptest.NewRequest(http.MethodPut, reviewsPath(""), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestInternalErrorsNotLeaked(t *testing.T) {
	reviewRepo := &mockReviewRepo{
		listFn: func(_ context.Context, _ repository.ReviewFilter) ([]*domain.ReviewRequest, int64, string, error) {
			return nil, 0, "", errors.New("pq: connection to host 10.0.3.7 refused")
		},
	}

	srv := newTestHTTPServer(&mockWorkflowClient{}, reviewRepo, &mockPaperRepo{}, &mockDocumentRepo{}, &mockProgressRepo{})

	req := httptest.NewRequest(http.MethodGet, reviewsPath(""), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "10.0.3.7") {
		t.Errorf("error response leaked internal details: %s", rr.Body.String())
	}
}
