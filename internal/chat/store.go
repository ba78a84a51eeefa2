// Package chat implements the conversational core: the session store, the
// hesitation detector, and the conversation controller.
package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/aishura/aishura/internal/domain"
	"github.com/containerd/errdefs"
	"github.com/google/uuid"
)

// SessionStore owns the in-memory collection of chat sessions per user and the
// identity of each user's active session. All mutation goes through
// whole-transcript appends; transcripts are never reordered or edited in place.
type SessionStore struct {
	mu    sync.RWMutex
	users map[string]*userSessions
}

type userSessions struct {
	order    []*domain.Session // most recently created first
	byID     map[string]*domain.Session
	activeID string
	lastUsed time.Time
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		users: make(map[string]*userSessions),
	}
}

func (st *SessionStore) user(userID string) *userSessions {
	us, ok := st.users[userID]
	if !ok {
		us = &userSessions{byID: make(map[string]*domain.Session)}
		st.users[userID] = us
	}
	us.lastUsed = time.Now()
	return us
}

// CreateSession generates a fresh session with an empty transcript and a
// placeholder title, inserts it at the head of the user's collection, and
// makes it active.
func (st *SessionStore) CreateSession(userID string) *domain.Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	s := &domain.Session{
		ID:           uuid.NewString(),
		Title:        domain.PlaceholderTitle,
		CreatedAt:    now,
		LastActivity: now,
	}

	us := st.user(userID)
	us.order = append([]*domain.Session{s}, us.order...)
	us.byID[s.ID] = s
	us.activeID = s.ID

	return cloneSession(s)
}

// SelectSession makes the referenced session active.
func (st *SessionStore) SelectSession(userID, sessionID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	us := st.user(userID)
	if _, ok := us.byID[sessionID]; !ok {
		return fmt.Errorf("select session %s: %w", sessionID, errdefs.ErrNotFound)
	}
	us.activeID = sessionID
	return nil
}

// DeleteSession removes the session. If it was active, the most recently
// created remaining session becomes active, or none if the store is empty.
// In-flight completions bound to the deleted session will fail their append
// with NotFound and must discard the result.
func (st *SessionStore) DeleteSession(userID, sessionID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	us := st.user(userID)
	if _, ok := us.byID[sessionID]; !ok {
		return fmt.Errorf("delete session %s: %w", sessionID, errdefs.ErrNotFound)
	}

	delete(us.byID, sessionID)
	for i, s := range us.order {
		if s.ID == sessionID {
			us.order = append(us.order[:i], us.order[i+1:]...)
			break
		}
	}

	if us.activeID == sessionID {
		if len(us.order) > 0 {
			us.activeID = us.order[0].ID
		} else {
			us.activeID = ""
		}
	}
	return nil
}

// AppendTurn appends to the referenced session's transcript, updating the
// preview and, on the first turn, deriving the title.
func (st *SessionStore) AppendTurn(userID, sessionID string, turn domain.Turn) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	us := st.user(userID)
	s, ok := us.byID[sessionID]
	if !ok {
		return fmt.Errorf("append turn to session %s: %w", sessionID, errdefs.ErrNotFound)
	}
	s.Append(turn)
	return nil
}

// RenameSession overwrites the title. Empty or whitespace-only titles are a
// no-op, not an error.
func (st *SessionStore) RenameSession(userID, sessionID, title string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	us := st.user(userID)
	s, ok := us.byID[sessionID]
	if !ok {
		return fmt.Errorf("rename session %s: %w", sessionID, errdefs.ErrNotFound)
	}
	s.Rename(title)
	return nil
}

// GetSession returns a copy of the referenced session.
func (st *SessionStore) GetSession(userID, sessionID string) (*domain.Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	us, ok := st.users[userID]
	if !ok {
		return nil, fmt.Errorf("get session %s: %w", sessionID, errdefs.ErrNotFound)
	}
	s, ok := us.byID[sessionID]
	if !ok {
		return nil, fmt.Errorf("get session %s: %w", sessionID, errdefs.ErrNotFound)
	}
	return cloneSession(s), nil
}

// ListSessions returns copies of the user's sessions, most recently created first.
func (st *SessionStore) ListSessions(userID string) []*domain.Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	us, ok := st.users[userID]
	if !ok {
		return nil
	}
	out := make([]*domain.Session, 0, len(us.order))
	for _, s := range us.order {
		out = append(out, cloneSession(s))
	}
	return out
}

// ActiveSessionID returns the user's active session id, or "" when none.
func (st *SessionStore) ActiveSessionID(userID string) string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	us, ok := st.users[userID]
	if !ok {
		return ""
	}
	return us.activeID
}

// Hydrate installs persisted sessions for a user that has no in-memory state
// yet. Sessions must arrive most recently created first; the first becomes
// active. A user with live state is left untouched.
func (st *SessionStore) Hydrate(userID string, sessions []*domain.Session) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if us, ok := st.users[userID]; ok && len(us.byID) > 0 {
		return
	}

	us := st.user(userID)
	for _, s := range sessions {
		s.MarkTitled()
		us.order = append(us.order, s)
		us.byID[s.ID] = s
	}
	if len(us.order) > 0 {
		us.activeID = us.order[0].ID
	}
}

// Hydrated reports whether the user has any in-memory session state.
func (st *SessionStore) Hydrated(userID string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()

	us, ok := st.users[userID]
	return ok && len(us.byID) > 0
}

// DropUser evicts all in-memory state for a user. Persisted snapshots are
// unaffected; the next request rehydrates from the repository.
func (st *SessionStore) DropUser(userID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.users, userID)
}

// IdleUsers returns user ids with no store activity since the cutoff.
func (st *SessionStore) IdleUsers(cutoff time.Time) []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var idle []string
	for userID, us := range st.users {
		if us.lastUsed.Before(cutoff) {
			idle = append(idle, userID)
		}
	}
	return idle
}

func cloneSession(s *domain.Session) *domain.Session {
	c := *s
	c.Transcript = make([]domain.Turn, len(s.Transcript))
	copy(c.Transcript, s.Transcript)
	return &c
}
