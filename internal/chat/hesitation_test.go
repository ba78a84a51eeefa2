package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/aishura/aishura/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSession = "session-1"

// nudgeRecorder collects emitted nudges so tests can poll for them.
type nudgeRecorder struct {
	mu     sync.Mutex
	nudges []Nudge
}

func (r *nudgeRecorder) sink(userID, sessionID string, nudge Nudge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nudges = append(r.nudges, nudge)
}

func (r *nudgeRecorder) all() []Nudge {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Nudge, len(r.nudges))
	copy(out, r.nudges)
	return out
}

func (r *nudgeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nudges)
}

// waitForNudges polls until the recorder holds at least n nudges or the
// deadline passes.
func waitForNudges(t *testing.T, r *nudgeRecorder, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected at least %d nudges within %v, got %d", n, timeout, r.count())
}

func testHesitationConfig() config.HesitationConfig {
	return config.HesitationConfig{
		MinComposeLength: 4,
		PauseAfter:       30 * time.Millisecond,
		ExtendedAfter:    60 * time.Millisecond,
		ShrinkFloor:      4,
		ShrinkThreshold:  2,
	}
}

func newTestDetector(rec *nudgeRecorder) *Detector {
	return NewDetector(testHesitationConfig(), NewNudgeSelector(1), rec.sink, nil)
}

func TestIdleNudgeFiresOncePerEpisode(t *testing.T) {
	t.Parallel()
	rec := &nudgeRecorder{}
	d := newTestDetector(rec)
	defer d.Forget(testUser, testSession)

	d.ObserveEdit(testUser, testSession, 10)

	// Wait well past both idle windows. Only the first timer may emit.
	waitForNudges(t, rec, 1, time.Second)
	time.Sleep(100 * time.Millisecond)

	nudges := rec.all()
	require.Len(t, nudges, 1)
	assert.Equal(t, NudgePause, nudges[0].Type)
	assert.NotEmpty(t, nudges[0].Text)
	assert.True(t, d.Snapshot(testUser, testSession).NudgeShown)
}

func TestShortDraftNeverStartsComposing(t *testing.T) {
	t.Parallel()
	rec := &nudgeRecorder{}
	d := newTestDetector(rec)
	defer d.Forget(testUser, testSession)

	d.ObserveEdit(testUser, testSession, 3)

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestEditActivityDefersIdleNudge(t *testing.T) {
	t.Parallel()
	rec := &nudgeRecorder{}
	d := newTestDetector(rec)
	defer d.Forget(testUser, testSession)

	// Keep typing faster than the pause window. No nudge may fire.
	for i := 0; i < 6; i++ {
		d.ObserveEdit(testUser, testSession, 10+i)
		time.Sleep(10 * time.Millisecond)
	}
	assert.Zero(t, rec.count())

	// Then go quiet and the nudge arrives.
	waitForNudges(t, rec, 1, time.Second)
}

func TestSubmitResetClearsGuardAndPendingTimers(t *testing.T) {
	t.Parallel()
	rec := &nudgeRecorder{}
	d := newTestDetector(rec)
	defer d.Forget(testUser, testSession)

	d.ObserveEdit(testUser, testSession, 10)
	d.Reset(testUser, testSession)

	// The timer scheduled before Reset is stale and must never fire.
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, rec.count())
	assert.False(t, d.Snapshot(testUser, testSession).NudgeShown)

	// A fresh episode can nudge again.
	d.ObserveEdit(testUser, testSession, 10)
	waitForNudges(t, rec, 1, time.Second)
}

func TestClearingDraftKeepsEpisodeGuard(t *testing.T) {
	t.Parallel()
	rec := &nudgeRecorder{}
	d := newTestDetector(rec)
	defer d.Forget(testUser, testSession)

	d.ObserveEdit(testUser, testSession, 10)
	waitForNudges(t, rec, 1, time.Second)

	// Clearing the box does not reopen the episode. The guard holds until
	// submit, so no second nudge fires for the re-typed draft.
	d.ObserveEdit(testUser, testSession, 0)
	d.ObserveEdit(testUser, testSession, 12)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestDeletionNudgeAfterRepeatedShrinks(t *testing.T) {
	t.Parallel()
	rec := &nudgeRecorder{}
	cfg := testHesitationConfig()
	cfg.PauseAfter = time.Hour
	cfg.ExtendedAfter = 2 * time.Hour
	d := NewDetector(cfg, NewNudgeSelector(1), rec.sink, nil)
	defer d.Forget(testUser, testSession)

	// Grow, then shrink three times from lengths above the floor.
	d.ObserveEdit(testUser, testSession, 10)
	d.ObserveEdit(testUser, testSession, 9)
	d.ObserveEdit(testUser, testSession, 8)
	assert.Zero(t, rec.count())
	assert.Equal(t, 2, d.Snapshot(testUser, testSession).DeletionCount)

	d.ObserveEdit(testUser, testSession, 7)

	nudges := rec.all()
	require.Len(t, nudges, 1)
	assert.Equal(t, NudgeDeletion, nudges[0].Type)

	// The counter resets once the threshold trips.
	assert.Zero(t, d.Snapshot(testUser, testSession).DeletionCount)
}

func TestShrinksBelowFloorDoNotCount(t *testing.T) {
	t.Parallel()
	rec := &nudgeRecorder{}
	cfg := testHesitationConfig()
	cfg.PauseAfter = time.Hour
	cfg.ExtendedAfter = 2 * time.Hour
	d := NewDetector(cfg, NewNudgeSelector(1), rec.sink, nil)
	defer d.Forget(testUser, testSession)

	// Previous lengths never exceed the floor, so these are not shrink edits.
	d.ObserveEdit(testUser, testSession, 4)
	d.ObserveEdit(testUser, testSession, 3)
	d.ObserveEdit(testUser, testSession, 2)
	d.ObserveEdit(testUser, testSession, 1)

	assert.Zero(t, rec.count())
	assert.Zero(t, d.Snapshot(testUser, testSession).DeletionCount)
}

func TestDeletionNudgeRespectsEpisodeGuard(t *testing.T) {
	t.Parallel()
	rec := &nudgeRecorder{}
	cfg := testHesitationConfig()
	cfg.PauseAfter = time.Hour
	cfg.ExtendedAfter = 2 * time.Hour
	d := NewDetector(cfg, NewNudgeSelector(1), rec.sink, nil)
	defer d.Forget(testUser, testSession)

	for _, length := range []int{10, 9, 8, 7} {
		d.ObserveEdit(testUser, testSession, length)
	}
	require.Equal(t, 1, rec.count())

	// Crossing the threshold again in the same episode stays silent, but the
	// counter still resets.
	for _, length := range []int{10, 9, 8, 7} {
		d.ObserveEdit(testUser, testSession, length)
	}
	assert.Equal(t, 1, rec.count())
	assert.Zero(t, d.Snapshot(testUser, testSession).DeletionCount)
}

func TestEpisodesAreIndependentPerSession(t *testing.T) {
	t.Parallel()
	rec := &nudgeRecorder{}
	d := newTestDetector(rec)
	defer d.ForgetUser(testUser)

	d.ObserveEdit(testUser, "session-a", 10)
	d.ObserveEdit(testUser, "session-b", 10)

	waitForNudges(t, rec, 2, time.Second)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, rec.count())
}

func TestForgetCancelsPendingTimers(t *testing.T) {
	t.Parallel()
	rec := &nudgeRecorder{}
	d := newTestDetector(rec)

	d.ObserveEdit(testUser, testSession, 10)
	d.Forget(testUser, testSession)

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, rec.count())
	assert.Zero(t, d.Snapshot(testUser, testSession))
}

func TestSnapshotTracksRecentEdits(t *testing.T) {
	t.Parallel()
	rec := &nudgeRecorder{}
	cfg := testHesitationConfig()
	cfg.PauseAfter = time.Hour
	cfg.ExtendedAfter = 2 * time.Hour
	d := NewDetector(cfg, NewNudgeSelector(1), rec.sink, nil)
	defer d.Forget(testUser, testSession)

	d.ObserveEdit(testUser, testSession, 10)
	d.ObserveEdit(testUser, testSession, 9)

	snap := d.Snapshot(testUser, testSession)
	require.Len(t, snap.RecentEdits, 2)
	assert.False(t, snap.RecentEdits[0].Shrink)
	assert.True(t, snap.RecentEdits[1].Shrink)
	assert.False(t, snap.LastEditAt.IsZero())
}

func TestSeededSelectorIsDeterministic(t *testing.T) {
	t.Parallel()

	a := NewNudgeSelector(42)
	b := NewNudgeSelector(42)
	for i := 0; i < 20; i++ {
		for _, typ := range []NudgeType{NudgePause, NudgeExtendedPause, NudgeDeletion} {
			na := a.Pick(typ)
			nb := b.Pick(typ)
			assert.Equal(t, na, nb)
			assert.Equal(t, typ, na.Type)
			assert.NotEmpty(t, na.Text)
		}
	}
}
