package domain

import (
	"time"
)

// SessionSnapshot stores a persisted chat session for a user.
type SessionSnapshot struct {
	UserID       string
	SessionID    string
	Title        string
	Preview      string
	TurnsJSON    string
	LastActivity time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
