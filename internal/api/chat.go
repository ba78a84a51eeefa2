package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aishura/aishura/internal/identity"
	"github.com/go-chi/chi/v5"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20 // 1MB

// RateLimiter implements a per-user rate limiter.
// The key is userID only — not userID:sessionID — so clients cannot bypass
// throttling by rotating session IDs.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter and starts the background eviction goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
	rl.startEviction()
	return rl
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// startEviction runs a background goroutine that periodically removes expired
// keys from the requests map, preventing unbounded memory growth.
func (r *RateLimiter) startEviction() {
	go func() {
		ticker := time.NewTicker(r.window)
		defer ticker.Stop()
		for range ticker.C {
			r.mu.Lock()
			cutoff := time.Now().Add(-r.window)
			for key, times := range r.requests {
				var fresh []time.Time
				for _, t := range times {
					if t.After(cutoff) {
						fresh = append(fresh, t)
					}
				}
				if len(fresh) == 0 {
					delete(r.requests, key)
				} else {
					r.requests[key] = fresh
				}
			}
			r.mu.Unlock()
		}
	}()
}

// ChatHandler handles chat session endpoints.
type ChatHandler struct {
	*Handler
	rateLimiter *RateLimiter
}

// NewChatHandler creates a chat handler with per-user submit throttling.
func NewChatHandler(base *Handler, limit int, window time.Duration) *ChatHandler {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	return &ChatHandler{
		Handler:     base,
		rateLimiter: NewRateLimiter(limit, window),
	}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/", h.ListSessions)
		r.Get("/{sessionID}", h.GetSession)
		r.Post("/{sessionID}/select", h.SelectSession)
		r.Patch("/{sessionID}", h.RenameSession)
		r.Delete("/{sessionID}", h.DeleteSession)
		r.Post("/{sessionID}/messages", h.SubmitMessage)
	})
}

func (h *ChatHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	if err := h.controller.EnsureHydrated(r.Context(), userID); err != nil {
		slog.Error("Failed to hydrate sessions", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return "", false
	}
	return userID, true
}

// CreateSession handles POST /api/chat/sessions.
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	session := h.controller.Sessions().CreateSession(userID)
	slog.Info("Chat session created", "user_id", userID, "session_id", session.ID)
	JSON(w, http.StatusCreated, session)
}

// ListSessions handles GET /api/chat/sessions.
func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"sessions":  h.controller.Sessions().ListSessions(userID),
		"active_id": h.controller.Sessions().ActiveSessionID(userID),
	})
}

// GetSession handles GET /api/chat/sessions/{sessionID}.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	session, err := h.controller.Sessions().GetSession(userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		DomainError(w, err)
		return
	}
	JSON(w, http.StatusOK, session)
}

// SelectSession handles POST /api/chat/sessions/{sessionID}/select.
func (h *ChatHandler) SelectSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.controller.Sessions().SelectSession(userID, chi.URLParam(r, "sessionID")); err != nil {
		DomainError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"active_id": chi.URLParam(r, "sessionID")})
}

type renameRequest struct {
	Title string `json:"title"`
}

// RenameSession handles PATCH /api/chat/sessions/{sessionID}.
func (h *ChatHandler) RenameSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if err := h.controller.Sessions().RenameSession(userID, sessionID, req.Title); err != nil {
		DomainError(w, err)
		return
	}
	session, err := h.controller.Sessions().GetSession(userID, sessionID)
	if err != nil {
		DomainError(w, err)
		return
	}
	JSON(w, http.StatusOK, session)
}

// DeleteSession handles DELETE /api/chat/sessions/{sessionID}.
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.controller.DeleteSession(r.Context(), userID, sessionID); err != nil {
		DomainError(w, err)
		return
	}
	slog.Info("Chat session deleted", "user_id", userID, "session_id", sessionID)
	JSON(w, http.StatusOK, map[string]string{
		"deleted":   sessionID,
		"active_id": h.controller.Sessions().ActiveSessionID(userID),
	})
}

type submitRequest struct {
	Message string `json:"message"`
}

// SubmitMessage handles POST /api/chat/sessions/{sessionID}/messages.
func (h *ChatHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if !h.rateLimiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxRequestBodySize)

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	slog.Info("Chat submit",
		"user_id", userID,
		"session_id", sessionID,
		"message_length", len(req.Message),
	)

	turn, err := h.controller.Submit(r.Context(), userID, sessionID, req.Message)
	if err != nil {
		DomainError(w, err)
		return
	}
	if turn == nil {
		// Session vanished while the completion was in flight.
		Error(w, http.StatusNotFound, "not found")
		return
	}
	JSON(w, http.StatusOK, turn)
}
