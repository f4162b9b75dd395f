package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// resolveReviewID parses the requestID path parameter and confirms the
// review exists, writing the error response itself when either fails.
func (s *Server) resolveReviewID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	requestID, ok := parseUUID(w, chi.URLParam(r, "requestID"), "request_id")
	if !ok {
		return uuid.Nil, false
	}
	if _, err := s.reviewRepo.Get(r.Context(), requestID); err != nil {
		writeDomainError(w, err)
		return uuid.Nil, false
	}
	return requestID, true
}

// getLiteratureReviewPapers handles GET /literature-reviews/{requestID}/papers.
// Papers come back in relevance-rank order with their per-paper review
// outcomes attached.
func (s *Server) getLiteratureReviewPapers(w http.ResponseWriter, r *http.Request) {
	requestID, ok := s.resolveReviewID(w, r)
	if !ok {
		return
	}

	selected, err := s.paperRepo.ListByRequest(r.Context(), requestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]paperResponse, len(selected))
	for i, sp := range selected {
		responses[i] = selectedPaperToResponse(sp)
	}

	writeJSON(w, http.StatusOK, listPapersResponse{
		Papers:     responses,
		TotalCount: len(responses),
	})
}

// getLiteratureReviewDocument handles GET /literature-reviews/{requestID}/document.
// Until the workflow assembles a document this is a 404.
func (s *Server) getLiteratureReviewDocument(w http.ResponseWriter, r *http.Request) {
	requestID, ok := s.resolveReviewID(w, r)
	if !ok {
		return
	}

	doc, err := s.documentRepo.GetDocument(r.Context(), requestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainDocumentToResponse(doc))
}
