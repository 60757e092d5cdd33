package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/runclub/internal/domain/model"
)

// PartnersDependencies defines the interface for partner matching.
type PartnersDependencies interface {
	FindPartners(ctx context.Context, id model.MemberID) ([]model.MatchCandidate, error)
}

// PartnersHandler handles partner suggestion requests.
type PartnersHandler struct {
	deps PartnersDependencies
}

// NewPartnersHandler creates a new partners handler.
func NewPartnersHandler(deps PartnersDependencies) *PartnersHandler {
	return &PartnersHandler{deps: deps}
}

// HandleGetPartners handles GET /partners/{member_id} requests.
func (h *PartnersHandler) HandleGetPartners(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/partners/")
	if raw == "" || strings.Contains(raw, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_member_id", ErrInvalidMemberID)
		return
	}

	partners, err := h.deps.FindPartners(r.Context(), id)
	if err != nil {
		// Lookup details stay in the logs.
		writeError(w, http.StatusInternalServerError, "internal_error", ErrLookupFailed)
		return
	}
	if partners == nil {
		partners = []model.MatchCandidate{}
	}
	writeJSON(w, http.StatusOK, partners)
}
