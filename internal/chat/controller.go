package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aishura/aishura/internal/domain"
	"github.com/aishura/aishura/internal/gateway"
	"github.com/aishura/aishura/internal/store"
	"github.com/aishura/aishura/internal/translog"
	"github.com/containerd/errdefs"
	"github.com/google/uuid"
)

// FallbackReply is appended when the completion gateway fails. The raw error
// is never shown to the user.
const FallbackReply = "I'm having a little trouble reaching my thinking engine right now, " +
	"but I don't want to leave you hanging. While I recover, you could: " +
	"jot down the main thing you want out of your next role, " +
	"pick one job posting that caught your eye this week, " +
	"or send your message again in a moment — I'll pick up right where we left off."

// xpPerExchange is the experience awarded per successful completed exchange.
const xpPerExchange = 10

// Notifier receives transcript-change events for push delivery.
// Implementations must not block.
type Notifier interface {
	TurnAppended(userID, sessionID string, turn domain.Turn)
}

type nopNotifier struct{}

func (nopNotifier) TurnAppended(string, string, domain.Turn) {}

// Controller orchestrates the turn-submission lifecycle: append the user's
// turn, invoke the completion gateway, append the reply (or the canned
// fallback), and reset hesitation state.
type Controller struct {
	sessions  *SessionStore
	repo      store.Repository
	completer gateway.Completer
	detector  *Detector
	notifier  Notifier
	tlog      translog.Logger
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]bool // userID:sessionID -> submission in flight
}

// NewController creates a conversation controller. notifier and tlog may be nil.
func NewController(
	sessions *SessionStore,
	repo store.Repository,
	completer gateway.Completer,
	detector *Detector,
	notifier Notifier,
	tlog translog.Logger,
	timeout time.Duration,
	logger *slog.Logger,
) *Controller {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if tlog == nil {
		tlog = translog.NopLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Controller{
		sessions:  sessions,
		repo:      repo,
		completer: completer,
		detector:  detector,
		notifier:  notifier,
		tlog:      tlog,
		timeout:   timeout,
		logger:    logger,
		pending:   make(map[string]bool),
	}
}

// SetNotifier installs the push-delivery notifier. Wiring is two-phase
// because the stream hub and the controller reference each other.
func (c *Controller) SetNotifier(n Notifier) {
	if n != nil {
		c.notifier = n
	}
}

// Sessions exposes the underlying session store.
func (c *Controller) Sessions() *SessionStore {
	return c.sessions
}

// Detector exposes the hesitation detector.
func (c *Controller) Detector() *Detector {
	return c.detector
}

// Submit runs one turn-submission cycle and returns the assistant's turn.
// Empty (trimmed) text fails with InvalidArgument; a missing session fails
// with NotFound; an overlapping submit for the same session fails with
// Unavailable. When the session is deleted while the completion is in flight,
// the result is discarded and (nil, nil) is returned.
func (c *Controller) Submit(ctx context.Context, userID, sessionID, text string) (*domain.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty message: %w", errdefs.ErrInvalidArgument)
	}
	if _, err := c.sessions.GetSession(userID, sessionID); err != nil {
		return nil, err
	}

	key := userID + ":" + sessionID
	c.mu.Lock()
	if c.pending[key] {
		c.mu.Unlock()
		return nil, fmt.Errorf("submission already in flight for session %s: %w", sessionID, errdefs.ErrUnavailable)
	}
	c.pending[key] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}()

	userTurn := domain.Turn{
		ID:        uuid.NewString(),
		Author:    domain.AuthorUser,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := c.sessions.AppendTurn(userID, sessionID, userTurn); err != nil {
		return nil, err
	}
	c.notifier.TurnAppended(userID, sessionID, userTurn)
	c.logTurn(userID, sessionID, "outbound", "user_message", text, nil)

	// Hesitation state carries the episode that produced this message; snapshot
	// it for the context bundle before clearing.
	hesitation := c.detector.Snapshot(userID, sessionID)
	c.detector.Reset(userID, sessionID)

	req := gateway.CompletionRequest{
		Message:     text,
		UserContext: c.buildContext(ctx, userID, hesitation),
		SessionID:   sessionID,
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	replyText := FallbackReply
	isFallback := true
	resp, err := c.completer.Complete(callCtx, req)
	if err != nil {
		c.logger.Error("completion gateway call failed",
			"user_id", userID,
			"session_id", sessionID,
			"error", err,
		)
	} else {
		replyText = resp.Response
		isFallback = false
	}

	assistantTurn := domain.Turn{
		ID:        uuid.NewString(),
		Author:    domain.AuthorAssistant,
		Text:      replyText,
		CreatedAt: time.Now(),
	}
	if err := c.sessions.AppendTurn(userID, sessionID, assistantTurn); err != nil {
		if errdefs.IsNotFound(err) {
			// Session was deleted while the completion was in flight; the
			// result must not leak into another transcript.
			c.logger.Info("discarding completion for deleted session",
				"user_id", userID,
				"session_id", sessionID,
			)
			return nil, nil
		}
		return nil, err
	}
	c.notifier.TurnAppended(userID, sessionID, assistantTurn)
	c.logTurn(userID, sessionID, "inbound", "assistant_message", replyText, map[string]any{
		"fallback": isFallback,
	})

	if !isFallback {
		c.awardXP(ctx, userID)
	}
	c.persistSession(ctx, userID, sessionID)

	return &assistantTurn, nil
}

// HandleNudge is the detector's sink: it appends the nudge to the session's
// transcript as an assistant turn with IsNudge set. Nudges are not
// submissions and never trigger a gateway call.
func (c *Controller) HandleNudge(userID, sessionID string, nudge Nudge) {
	turn := domain.Turn{
		ID:        uuid.NewString(),
		Author:    domain.AuthorAssistant,
		Text:      nudge.Text,
		CreatedAt: time.Now(),
		IsNudge:   true,
	}
	if err := c.sessions.AppendTurn(userID, sessionID, turn); err != nil {
		if errdefs.IsNotFound(err) {
			c.logger.Debug("dropping nudge for missing session",
				"user_id", userID,
				"session_id", sessionID,
			)
			return
		}
		c.logger.Warn("failed to append nudge", "user_id", userID, "error", err)
		return
	}
	c.notifier.TurnAppended(userID, sessionID, turn)
	c.logTurn(userID, sessionID, "inbound", "nudge", nudge.Text, map[string]any{
		"nudge_type": string(nudge.Type),
	})
	c.persistSession(context.Background(), userID, sessionID)
}

// EnsureHydrated loads persisted sessions into the in-memory store the first
// time a user shows up after a restart or eviction.
func (c *Controller) EnsureHydrated(ctx context.Context, userID string) error {
	if c.repo == nil || c.sessions.Hydrated(userID) {
		return nil
	}

	snaps, err := c.repo.ListSessionSnapshots(ctx, userID)
	if err != nil {
		return fmt.Errorf("load session snapshots: %w", err)
	}
	if len(snaps) == 0 {
		return nil
	}

	sessions := make([]*domain.Session, 0, len(snaps))
	for _, snap := range snaps {
		var turns []domain.Turn
		if snap.TurnsJSON != "" {
			if err := json.Unmarshal([]byte(snap.TurnsJSON), &turns); err != nil {
				c.logger.Warn("skipping corrupt session snapshot",
					"user_id", userID,
					"session_id", snap.SessionID,
					"error", err,
				)
				continue
			}
		}
		sessions = append(sessions, &domain.Session{
			ID:           snap.SessionID,
			Title:        snap.Title,
			Preview:      snap.Preview,
			Transcript:   turns,
			CreatedAt:    snap.CreatedAt,
			LastActivity: snap.LastActivity,
		})
	}
	c.sessions.Hydrate(userID, sessions)
	return nil
}

// DeleteSession removes a session from the store and its persisted snapshot.
func (c *Controller) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if err := c.sessions.DeleteSession(userID, sessionID); err != nil {
		return err
	}
	c.detector.Forget(userID, sessionID)
	if c.repo != nil {
		if err := c.repo.DeleteSessionSnapshot(ctx, userID, sessionID); err != nil {
			c.logger.Warn("failed to delete session snapshot",
				"user_id", userID,
				"session_id", sessionID,
				"error", err,
			)
		}
	}
	return nil
}

func (c *Controller) buildContext(ctx context.Context, userID string, hes HesitationSnapshot) gateway.UserContext {
	uc := gateway.UserContext{
		Name:       userID,
		TrustScore: domain.DefaultTrustScore,
		Level:      domain.DefaultLevel,
	}
	if c.repo != nil {
		if profile, err := c.repo.GetProfile(ctx, userID); err != nil {
			c.logger.Warn("failed to load profile for context bundle", "user_id", userID, "error", err)
		} else if profile != nil {
			uc.Name = profile.DisplayName
			uc.TrustScore = profile.TrustScore
			uc.Level = profile.Level
			uc.XP = profile.XP
			uc.Persona = profile.Persona
		}
	}

	edits := make([]gateway.EditSample, 0, len(hes.RecentEdits))
	for _, e := range hes.RecentEdits {
		edits = append(edits, gateway.EditSample{Length: e.Length, At: e.At, Shrink: e.Shrink})
	}
	uc.HesitationData = &gateway.HesitationData{
		DeletionCount: hes.DeletionCount,
		LastEditAt:    hes.LastEditAt,
		NudgeShown:    hes.NudgeShown,
		RecentEdits:   edits,
	}
	return uc
}

func (c *Controller) awardXP(ctx context.Context, userID string) {
	if c.repo == nil {
		return
	}
	profile, err := c.repo.GetProfile(ctx, userID)
	if err != nil || profile == nil {
		return
	}
	profile.AwardXP(xpPerExchange)
	if err := c.repo.UpsertProfile(ctx, profile); err != nil {
		c.logger.Warn("failed to persist xp award", "user_id", userID, "error", err)
	}
}

// persistSession writes the current session state to the repository.
// Persistence is best-effort: a failed write degrades durability, not the chat.
func (c *Controller) persistSession(ctx context.Context, userID, sessionID string) {
	if c.repo == nil {
		return
	}
	s, err := c.sessions.GetSession(userID, sessionID)
	if err != nil {
		return
	}
	turnsJSON, err := json.Marshal(s.Transcript)
	if err != nil {
		c.logger.Warn("failed to marshal transcript", "session_id", sessionID, "error", err)
		return
	}
	snap := &domain.SessionSnapshot{
		UserID:       userID,
		SessionID:    s.ID,
		Title:        s.Title,
		Preview:      s.Preview,
		TurnsJSON:    string(turnsJSON),
		LastActivity: s.LastActivity,
		CreatedAt:    s.CreatedAt,
	}
	if err := c.repo.UpsertSessionSnapshot(ctx, snap); err != nil {
		c.logger.Warn("failed to persist session snapshot",
			"user_id", userID,
			"session_id", sessionID,
			"error", err,
		)
	}
}

func (c *Controller) logTurn(userID, sessionID, direction, eventType, content string, meta map[string]any) {
	c.tlog.Log(translog.Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		UserID:    userID,
		SessionID: sessionID,
		Channel:   "chat",
		Direction: direction,
		EventType: eventType,
		Content:   content,
		Meta:      meta,
	})
}
