// Package gateway provides the client for the remote completion service.
package gateway

import (
	"time"

	"github.com/aishura/aishura/internal/domain"
)

// CompletionRequest is the wire request to the completion gateway.
type CompletionRequest struct {
	Message     string      `json:"message"`
	UserContext UserContext `json:"userContext"`
	SessionID   string      `json:"sessionId"`
}

// UserContext is the free-form context bundle forwarded with every message.
type UserContext struct {
	Name           string          `json:"name"`
	TrustScore     int             `json:"trustScore"`
	Persona        *domain.Persona `json:"persona,omitempty"`
	Level          int             `json:"level"`
	XP             int             `json:"xp"`
	HesitationData *HesitationData `json:"hesitationData,omitempty"`
}

// HesitationData carries the latest hesitation counters for the session.
type HesitationData struct {
	DeletionCount int          `json:"deletionCount"`
	LastEditAt    time.Time    `json:"lastEditAt,omitzero"`
	NudgeShown    bool         `json:"nudgeShown"`
	RecentEdits   []EditSample `json:"recentEdits,omitempty"`
}

// EditSample is one observed composition edit.
type EditSample struct {
	Length int       `json:"length"`
	At     time.Time `json:"at"`
	Shrink bool      `json:"shrink,omitempty"`
}

// CompletionResponse is the wire response from the completion gateway.
type CompletionResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}
