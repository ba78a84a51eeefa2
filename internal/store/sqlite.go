package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aishura/aishura/internal/domain"
	"github.com/aishura/aishura/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db         *sql.DB
	snapshotMu sync.Mutex // Mutex for snapshot operations to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		email TEXT,
		trust_score INTEGER NOT NULL,
		level INTEGER NOT NULL,
		xp INTEGER NOT NULL,
		tokens INTEGER NOT NULL,
		persona_json TEXT,
		pending_career_goal TEXT,
		quest_progress_json TEXT,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_profiles_last_seen ON profiles(last_seen_at);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		title TEXT NOT NULL,
		preview TEXT,
		turns_json TEXT NOT NULL,
		last_activity INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated ON chat_sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetProfile retrieves a profile by user ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `
		SELECT user_id, display_name, email, trust_score, level, xp, tokens,
		       persona_json, pending_career_goal, quest_progress_json,
		       last_seen_at, created_at, updated_at
		FROM profiles WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var profile domain.Profile
	var email, personaJSON, pendingGoal, questJSON sql.NullString
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(
		&profile.UserID, &profile.DisplayName, &email,
		&profile.TrustScore, &profile.Level, &profile.XP, &profile.Tokens,
		&personaJSON, &pendingGoal, &questJSON,
		&lastSeen, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile row: %w", err)
	}

	profile.Email = email.String
	profile.PendingCareerGoal = pendingGoal.String
	profile.LastSeenAt = time.Unix(lastSeen, 0)
	profile.CreatedAt = time.Unix(createdAt, 0)
	profile.UpdatedAt = time.Unix(updatedAt, 0)

	if personaJSON.Valid && personaJSON.String != "" {
		var persona domain.Persona
		if err := json.Unmarshal([]byte(personaJSON.String), &persona); err != nil {
			return nil, fmt.Errorf("unmarshal persona: %w", err)
		}
		profile.Persona = &persona
	}

	if questJSON.Valid && questJSON.String != "" {
		if err := json.Unmarshal([]byte(questJSON.String), &profile.QuestProgress); err != nil {
			return nil, fmt.Errorf("unmarshal quest progress: %w", err)
		}
	}

	return &profile, nil
}

// UpsertProfile creates or updates a profile record.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, profile *domain.Profile) error {
	query := `
	INSERT INTO profiles (
		user_id, display_name, email, trust_score, level, xp, tokens,
		persona_json, pending_career_goal, quest_progress_json,
		last_seen_at, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		display_name = excluded.display_name,
		email = excluded.email,
		trust_score = excluded.trust_score,
		level = excluded.level,
		xp = excluded.xp,
		tokens = excluded.tokens,
		persona_json = COALESCE(excluded.persona_json, profiles.persona_json),
		pending_career_goal = excluded.pending_career_goal,
		quest_progress_json = excluded.quest_progress_json,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	var personaJSON interface{}
	if profile.Persona != nil {
		data, err := json.Marshal(profile.Persona)
		if err != nil {
			return fmt.Errorf("marshal persona: %w", err)
		}
		personaJSON = string(data)
	}

	var questJSON interface{}
	if len(profile.QuestProgress) > 0 {
		data, err := json.Marshal(profile.QuestProgress)
		if err != nil {
			return fmt.Errorf("marshal quest progress: %w", err)
		}
		questJSON = string(data)
	}

	var email interface{}
	if profile.Email != "" {
		email = profile.Email
	}

	_, err := s.db.ExecContext(ctx, query,
		profile.UserID, profile.DisplayName, email,
		profile.TrustScore, profile.Level, profile.XP, profile.Tokens,
		personaJSON, profile.PendingCareerGoal, questJSON,
		profile.LastSeenAt.Unix(), profile.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a profile.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE profiles SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("profile not found: %s", userID)
	}
	return nil
}

// ListSessionSnapshots retrieves all persisted chat sessions for a user.
func (s *SQLiteStore) ListSessionSnapshots(ctx context.Context, userID string) ([]*domain.SessionSnapshot, error) {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	query := `
		SELECT user_id, session_id, title, preview, turns_json,
		       last_activity, created_at, updated_at
		FROM chat_sessions WHERE user_id = ?
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query session snapshots: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Debug("failed to close snapshot rows", "error", closeErr)
		}
	}()

	var snaps []*domain.SessionSnapshot
	for rows.Next() {
		var snap domain.SessionSnapshot
		var preview sql.NullString
		var lastActivity, createdAt, updatedAt int64

		if err := rows.Scan(
			&snap.UserID, &snap.SessionID, &snap.Title, &preview,
			&snap.TurnsJSON, &lastActivity, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session snapshot: %w", err)
		}

		snap.Preview = preview.String
		snap.LastActivity = time.Unix(lastActivity, 0)
		snap.CreatedAt = time.Unix(createdAt, 0)
		snap.UpdatedAt = time.Unix(updatedAt, 0)
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session snapshots: %w", err)
	}

	return snaps, nil
}

// UpsertSessionSnapshot creates or updates a persisted chat session.
func (s *SQLiteStore) UpsertSessionSnapshot(ctx context.Context, snap *domain.SessionSnapshot) error {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	query := `
		INSERT INTO chat_sessions (
			user_id, session_id, title, preview, turns_json,
			last_activity, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, session_id) DO UPDATE SET
			title = excluded.title,
			preview = excluded.preview,
			turns_json = excluded.turns_json,
			last_activity = excluded.last_activity,
			updated_at = excluded.updated_at`

	var preview interface{}
	if snap.Preview != "" {
		preview = snap.Preview
	}

	_, err := s.db.ExecContext(ctx, query,
		snap.UserID, snap.SessionID, snap.Title, preview, snap.TurnsJSON,
		snap.LastActivity.Unix(), snap.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session snapshot: %w", err)
	}
	return nil
}

// DeleteSessionSnapshot removes a persisted chat session.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) DeleteSessionSnapshot(ctx context.Context, userID, sessionID string) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.deleteSessionSnapshotOnce(ctx, userID, sessionID)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) {
			if i < maxRetries-1 {
				delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
				slog.Debug("DeleteSessionSnapshot failed with SQLITE_BUSY, retrying",
					"user_id", userID,
					"session_id", sessionID,
					"attempt", i+1,
					"delay", delay)
				time.Sleep(delay)
				continue
			}
		}

		// Non-retryable error or max retries exceeded
		return fmt.Errorf("failed to delete session snapshot %s/%s after %d attempts: %w", userID, sessionID, maxRetries, err)
	}

	return nil
}

// deleteSessionSnapshotOnce performs a single delete attempt.
func (s *SQLiteStore) deleteSessionSnapshotOnce(ctx context.Context, userID, sessionID string) error {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	query := `DELETE FROM chat_sessions WHERE user_id = ? AND session_id = ?`
	_, err := s.db.ExecContext(ctx, query, userID, sessionID)
	if err != nil {
		return fmt.Errorf("delete session snapshot: %w", err)
	}
	return nil
}

// CleanupExpiredSnapshots removes persisted sessions idle for longer than ttl.
func (s *SQLiteStore) CleanupExpiredSnapshots(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `DELETE FROM chat_sessions WHERE updated_at < ?`
	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired snapshots: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
