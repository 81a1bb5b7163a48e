package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/vkotlar/deskbridge/internal/domain"
)

// accessRequestBody is the inbound shape for POST /api/access-request.
type accessRequestBody struct {
	Email   string `json:"email"`
	UseCase string `json:"use_case"`
	Message string `json:"message"`
}

// AccessRequest captures an access request and issues a code for the
// operator to deliver by email. The code is never returned to the caller.
func (h *Handler) AccessRequest(w http.ResponseWriter, r *http.Request) {
	var body accessRequestBody
	if err := decodeJSONBody(r, &body); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	body.UseCase = strings.TrimSpace(body.UseCase)
	if body.Email == "" || !strings.Contains(body.Email, "@") {
		Error(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if body.UseCase == "" {
		Error(w, http.StatusBadRequest, "use_case is required")
		return
	}

	now := time.Now()
	req := &domain.AccessRequest{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Email:     body.Email,
		UseCase:   body.UseCase,
		Message:   strings.TrimSpace(body.Message),
		CreatedAt: now,
	}

	if err := h.repo.SaveAccessRequest(r.Context(), req); err != nil {
		slog.Error("Failed to save access request", "error", err, "email", req.Email)
		Error(w, http.StatusInternalServerError, "failed to record request")
		return
	}

	code := &domain.AccessCode{
		Code:     strings.ToLower(ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()),
		Email:    req.Email,
		IssuedAt: now,
	}
	if err := h.repo.IssueAccessCode(r.Context(), code); err != nil {
		slog.Error("Failed to issue access code", "error", err, "email", req.Email)
		Error(w, http.StatusInternalServerError, "failed to record request")
		return
	}

	slog.Info("Access request recorded", "request_id", req.ID, "email", req.Email)

	JSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Access request submitted. You'll receive your code within 24 hours.",
	})
}

// ListAccessRequests returns recent access requests for the operator.
func (h *Handler) ListAccessRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.repo.ListAccessRequests(r.Context(), 100)
	if err != nil {
		slog.Error("Failed to list access requests", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if requests == nil {
		requests = []*domain.AccessRequest{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

// RevokeAccessCode marks an issued code as revoked. Revocation is
// bookkeeping only: the relay itself never validates codes.
func (h *Handler) RevokeAccessCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		Error(w, http.StatusBadRequest, "missing code")
		return
	}

	if err := h.repo.RevokeAccessCode(r.Context(), code); err != nil {
		Error(w, http.StatusNotFound, "code not found or already revoked")
		return
	}

	slog.Info("Access code revoked", "code", code)
	JSON(w, http.StatusOK, map[string]string{"status": "success"})
}
