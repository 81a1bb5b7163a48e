// Package api provides HTTP handlers for the deskbridge API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vkotlar/deskbridge/internal/protocol"
	"github.com/vkotlar/deskbridge/internal/relay"
	"github.com/vkotlar/deskbridge/internal/store"
)

// CommandParser translates free text into a validated command. Satisfied by
// *nlu.Client; an interface here keeps the handlers testable without the
// external service.
type CommandParser interface {
	ParseCommand(ctx context.Context, text string) (protocol.Command, error)
}

// Handler holds the shared dependencies for all API endpoints.
type Handler struct {
	repo   store.Repository
	reg    *relay.Registry
	router *relay.Router
	parser CommandParser
}

// NewHandler creates a new Handler. parser may be nil when the reasoning
// service is not configured; /api/execute-command then answers 503.
func NewHandler(repo store.Repository, reg *relay.Registry, router *relay.Router, parser CommandParser) *Handler {
	return &Handler{
		repo:   repo,
		reg:    reg,
		router: router,
		parser: parser,
	}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/access-request", h.AccessRequest)
		r.Get("/access-requests", h.ListAccessRequests)
		r.Post("/access-codes/{code}/revoke", h.RevokeAccessCode)
		r.Post("/execute-command", h.ExecuteCommand)
		r.Get("/health", h.Health)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
