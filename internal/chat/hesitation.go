package chat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/aishura/aishura/internal/config"
)

// NudgeSink receives emitted nudges. The detector calls it outside its own
// lock, so a sink may call back into the detector or the session store.
type NudgeSink func(userID, sessionID string, nudge Nudge)

// HesitationSnapshot is the observable hesitation state for one episode,
// forwarded to the completion gateway as part of the context bundle.
type HesitationSnapshot struct {
	DeletionCount int
	LastEditAt    time.Time
	NudgeShown    bool
	RecentEdits   []EditEvent
}

// episode tracks composition state between two submissions. The guard allows
// at most one nudge per episode and is cleared only on submit.
type episode struct {
	userID    string
	sessionID string

	composing   bool
	prevLen     int
	shrinkCount int
	lastEditAt  time.Time
	nudgeShown  bool

	// gen invalidates scheduled timers: a fire whose generation does not match
	// the episode's current generation is stale and must be ignored.
	gen           uint64
	pauseTimer    *time.Timer
	extendedTimer *time.Timer

	edits *EditRing
}

func (e *episode) cancelTimers() {
	e.gen++
	if e.pauseTimer != nil {
		e.pauseTimer.Stop()
		e.pauseTimer = nil
	}
	if e.extendedTimer != nil {
		e.extendedTimer.Stop()
		e.extendedTimer = nil
	}
}

// Detector infers, from raw composition-box edits, when the user appears
// stuck, and produces at most one nudge per episode.
//
// State machine per episode: Idle -> Composing (length reaches the minimum)
// -> NudgeShown (idle timer fires, or the shrink counter passes its
// threshold) -> Idle (on submit).
type Detector struct {
	cfg      config.HesitationConfig
	selector *NudgeSelector
	sink     NudgeSink
	logger   *slog.Logger

	mu       sync.Mutex
	episodes map[string]*episode
}

// NewDetector creates a hesitation detector. The selector supplies nudge text;
// the sink receives emitted nudges.
func NewDetector(cfg config.HesitationConfig, selector *NudgeSelector, sink NudgeSink, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		cfg:      cfg,
		selector: selector,
		sink:     sink,
		logger:   logger,
		episodes: make(map[string]*episode),
	}
}

func episodeKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

func (d *Detector) episode(userID, sessionID string) *episode {
	key := episodeKey(userID, sessionID)
	ep, ok := d.episodes[key]
	if !ok {
		ep = &episode{
			userID:    userID,
			sessionID: sessionID,
			edits:     NewEditRing(0),
		}
		d.episodes[key] = ep
	}
	return ep
}

// ObserveEdit consumes one composition edit: the current text length after a
// keystroke. Qualifying edits cancel and reschedule the idle timers; shrink
// edits past the threshold emit a deletion nudge.
func (d *Detector) ObserveEdit(userID, sessionID string, length int) {
	var emit *Nudge

	d.mu.Lock()
	ep := d.episode(userID, sessionID)
	now := time.Now()

	shrink := length < ep.prevLen && ep.prevLen > d.cfg.ShrinkFloor
	ep.edits.Push(EditEvent{Length: length, At: now, Shrink: shrink})
	ep.lastEditAt = now

	if length == 0 {
		// Composition cleared. The episode guard stays set until submit.
		ep.composing = false
		ep.prevLen = 0
		ep.cancelTimers()
		d.mu.Unlock()
		return
	}

	if shrink {
		ep.shrinkCount++
		if ep.shrinkCount > d.cfg.ShrinkThreshold {
			ep.shrinkCount = 0
			if !ep.nudgeShown {
				ep.nudgeShown = true
				n := d.selector.Pick(NudgeDeletion)
				emit = &n
			}
		}
	}

	ep.prevLen = length
	if length >= d.cfg.MinComposeLength {
		ep.composing = true
		d.reschedule(ep)
	}
	d.mu.Unlock()

	if emit != nil {
		d.logger.Debug("deletion nudge emitted", "user_id", userID, "session_id", sessionID)
		d.sink(userID, sessionID, *emit)
	}
}

// reschedule cancels any pending idle timers and starts fresh ones, so at most
// one pending timer pair exists per episode. Caller holds d.mu.
func (d *Detector) reschedule(ep *episode) {
	ep.cancelTimers()
	gen := ep.gen
	userID, sessionID := ep.userID, ep.sessionID
	ep.pauseTimer = time.AfterFunc(d.cfg.PauseAfter, func() {
		d.fireIdle(userID, sessionID, gen, NudgePause)
	})
	ep.extendedTimer = time.AfterFunc(d.cfg.ExtendedAfter, func() {
		d.fireIdle(userID, sessionID, gen, NudgeExtendedPause)
	})
}

// fireIdle handles an idle-timer expiry. Stale generations and guarded
// episodes are ignored.
func (d *Detector) fireIdle(userID, sessionID string, gen uint64, t NudgeType) {
	d.mu.Lock()
	ep, ok := d.episodes[episodeKey(userID, sessionID)]
	if !ok || ep.gen != gen || !ep.composing || ep.nudgeShown {
		d.mu.Unlock()
		return
	}
	ep.nudgeShown = true
	n := d.selector.Pick(t)
	d.mu.Unlock()

	d.logger.Debug("idle nudge emitted",
		"user_id", userID,
		"session_id", sessionID,
		"type", string(t),
	)
	d.sink(userID, sessionID, n)
}

// Reset clears the episode after a successful submission: composition state,
// counters, pending timers, and the one-nudge guard.
func (d *Detector) Reset(userID, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ep, ok := d.episodes[episodeKey(userID, sessionID)]
	if !ok {
		return
	}
	ep.cancelTimers()
	ep.composing = false
	ep.prevLen = 0
	ep.shrinkCount = 0
	ep.nudgeShown = false
	ep.edits.Reset()
}

// Forget drops all episode state for a session, cancelling pending timers.
// Called when a session is deleted or its stream disconnects.
func (d *Detector) Forget(userID, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := episodeKey(userID, sessionID)
	if ep, ok := d.episodes[key]; ok {
		ep.cancelTimers()
		delete(d.episodes, key)
	}
}

// ForgetUser drops every episode belonging to a user.
func (d *Detector) ForgetUser(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefix := userID + ":"
	for key, ep := range d.episodes {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			ep.cancelTimers()
			delete(d.episodes, key)
		}
	}
}

// Snapshot returns the observable hesitation state for an episode.
func (d *Detector) Snapshot(userID, sessionID string) HesitationSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	ep, ok := d.episodes[episodeKey(userID, sessionID)]
	if !ok {
		return HesitationSnapshot{}
	}
	return HesitationSnapshot{
		DeletionCount: ep.shrinkCount,
		LastEditAt:    ep.lastEditAt,
		NudgeShown:    ep.nudgeShown,
		RecentEdits:   ep.edits.Events(),
	}
}
