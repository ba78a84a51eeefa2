package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/aishura/aishura/internal/store"
)

const retentionWorkerInterval = 5 * time.Minute

// snapshotRetention is how long persisted session snapshots outlive their
// in-memory state before being deleted.
const snapshotRetention = 30 * 24 * time.Hour

// StartRetentionWorker runs a background goroutine that periodically evicts
// idle in-memory session state and deletes expired persisted snapshots.
// Evicted users are rehydrated from the repository on their next request.
func StartRetentionWorker(ctx context.Context, repo store.Repository, sessions *SessionStore, detector *Detector, ttl time.Duration) {
	ticker := time.NewTicker(retentionWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", retentionWorkerInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, repo, sessions, detector, ttl)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, repo store.Repository, sessions *SessionStore, detector *Detector, ttl time.Duration) {
	idle := sessions.IdleUsers(time.Now().Add(-ttl))
	for _, userID := range idle {
		slog.Info("Retention worker evicting idle user state", "user_id", userID)
		detector.ForgetUser(userID)
		sessions.DropUser(userID)
	}
	if len(idle) > 0 {
		slog.Info("Retention worker eviction completed", "evicted", len(idle))
	}

	if repo == nil {
		return
	}
	if deleted, err := repo.CleanupExpiredSnapshots(ctx, snapshotRetention); err != nil {
		slog.Error("Retention worker failed to cleanup expired snapshots", "error", err)
	} else if deleted > 0 {
		slog.Info("Retention worker cleaned up expired snapshots", "count", deleted)
	}
}
