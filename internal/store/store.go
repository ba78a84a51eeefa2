// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/aishura/aishura/internal/domain"
)

// Repository defines the interface for persisting profile and session data.
type Repository interface {
	// GetProfile retrieves a profile by user ID. Returns nil when absent.
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)

	// UpsertProfile creates or updates a profile record.
	UpsertProfile(ctx context.Context, profile *domain.Profile) error

	// UpdateLastSeen updates the last_seen_at timestamp for a profile.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// ListSessionSnapshots retrieves all persisted chat sessions for a user,
	// most recently created first.
	ListSessionSnapshots(ctx context.Context, userID string) ([]*domain.SessionSnapshot, error)

	// UpsertSessionSnapshot creates or updates a persisted chat session.
	UpsertSessionSnapshot(ctx context.Context, snap *domain.SessionSnapshot) error

	// DeleteSessionSnapshot removes a persisted chat session.
	DeleteSessionSnapshot(ctx context.Context, userID, sessionID string) error

	// CleanupExpiredSnapshots removes persisted sessions idle for longer than ttl.
	CleanupExpiredSnapshots(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
