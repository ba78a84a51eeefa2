package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aishura/aishura/internal/chat"
	"github.com/aishura/aishura/internal/identity"
	"github.com/coder/websocket"
)

// WebSocketHandler upgrades chat stream connections and feeds composition
// events into the hesitation detector.
type WebSocketHandler struct {
	controller    *chat.Controller
	hub           *Hub
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(controller *chat.Controller, hub *Hub, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		controller:    controller,
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// clientMessage represents an inbound WebSocket message.
type clientMessage struct {
	Type      string `json:"type"` // "edit", "clear", "ping"
	SessionID string `json:"session_id,omitempty"`
	Length    int    `json:"length,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	slog.Info("Stream connection request", "user_id", userID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := h.controller.EnsureHydrated(ctx, userID); err != nil {
		slog.Error("Failed to hydrate sessions for stream", "user_id", userID, "error", err)
	}

	connID := h.hub.Register(userID, ws)
	defer func() {
		h.hub.Unregister(userID, connID)
		// Pending hesitation timers must not fire into a transcript nobody
		// is watching, but another tab of the same user may still be
		// composing. Episodes are dropped only with the last connection.
		if !h.hub.Connected(userID) {
			h.controller.Detector().ForgetUser(userID)
		}
	}()

	h.writeJSON(ctx, ws, Event{Type: "connected"})

	h.readLoop(ctx, ws, userID)
}

// readLoop consumes composition events until the connection closes.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				slog.Info("Stream disconnected", "user_id", userID)
			} else {
				slog.Debug("Stream read failed", "error", err, "user_id", userID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.writeJSON(ctx, ws, Event{Type: "error", Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "edit":
			if msg.SessionID == "" || msg.Length < 0 {
				h.writeJSON(ctx, ws, Event{Type: "error", Error: "invalid edit event"})
				continue
			}
			if _, err := h.controller.Sessions().GetSession(userID, msg.SessionID); err != nil {
				h.writeJSON(ctx, ws, Event{Type: "error", SessionID: msg.SessionID, Error: "unknown session"})
				continue
			}
			h.controller.Detector().ObserveEdit(userID, msg.SessionID, msg.Length)
		case "clear":
			if msg.SessionID != "" {
				h.controller.Detector().ObserveEdit(userID, msg.SessionID, 0)
			}
		case "ping":
			h.writeJSON(ctx, ws, Event{Type: "pong"})
		default:
			h.writeJSON(ctx, ws, Event{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Debug("Failed to marshal stream event", "error", err)
		return
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("Failed to write stream event", "error", err)
	}
}

// checkOrigin validates the request origin against the allowed frontend URL.
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser client
	}
	return h.allowedOrigin != "" && strings.HasPrefix(origin, h.allowedOrigin)
}
