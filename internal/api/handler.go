// Package api provides HTTP handlers for the AIShura API.
//
//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/aishura/aishura/internal/chat"
	"github.com/aishura/aishura/internal/store"
	"github.com/containerd/errdefs"
	"github.com/go-chi/chi/v5"
)

// Handler provides common handler utilities.
type Handler struct {
	repo       store.Repository
	controller *chat.Controller
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, controller *chat.Controller) *Handler {
	return &Handler{
		repo:       repo,
		controller: controller,
	}
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

// DomainError maps typed error conditions to HTTP responses.
func DomainError(w http.ResponseWriter, err error) {
	switch {
	case errdefs.IsNotFound(err):
		Error(w, http.StatusNotFound, "not found")
	case errdefs.IsInvalidArgument(err):
		Error(w, http.StatusBadRequest, "invalid request")
	case errdefs.IsUnavailable(err):
		Error(w, http.StatusConflict, "request already in flight")
	default:
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// HealthHandler serves the health check endpoint.
type HealthHandler struct {
	repo store.Repository
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository) *HealthHandler {
	return &HealthHandler{repo: repo}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]interface{}{
		"status": "healthy",
		"checks": map[string]string{"api": "ok"},
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		status["checks"].(map[string]string)["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		status["checks"].(map[string]string)["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/healthz", h.Health)
}
