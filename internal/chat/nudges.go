package chat

import (
	"math/rand"
	"sync"
)

// NudgeType categorizes hesitation nudges.
type NudgeType string

const (
	// NudgePause is emitted after the first idle window elapses mid-composition.
	NudgePause NudgeType = "pause"
	// NudgeExtendedPause is emitted after the longer idle window elapses.
	NudgeExtendedPause NudgeType = "extended_pause"
	// NudgeDeletion is emitted after repeated shrink edits.
	NudgeDeletion NudgeType = "deletion"
)

// Nudge is a system-generated empathetic prompt inserted into the transcript
// when hesitation is detected. It is not a reply to a submitted message.
type Nudge struct {
	Type NudgeType
	Text string
}

var nudgeCatalog = map[NudgeType][]string{
	NudgePause: {
		"Take your time — there's no wrong way to start. Even a rough version of what's on your mind works.",
		"Stuck on the wording? Just type it the way you'd say it out loud.",
		"No pressure. Sometimes it helps to start with what feels hardest right now.",
	},
	NudgeExtendedPause: {
		"Still here with you. If it helps, we can start smaller — one sentence about today.",
		"It's okay to step back. When you're ready, tell me one thing you'd like to be different.",
	},
	NudgeDeletion: {
		"I noticed you're rewording — your first instinct was probably fine. Want to just send it?",
		"Editing a lot? Don't worry about polish, I'll understand the rough version.",
		"You don't need the perfect phrasing here. Say it plainly and we'll go from there.",
	},
}

// NudgeSelector picks one candidate message uniformly at random per triggered
// episode. The random source is injectable so tests can seed it.
type NudgeSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewNudgeSelector creates a selector with the given seed.
func NewNudgeSelector(seed int64) *NudgeSelector {
	return &NudgeSelector{rng: rand.New(rand.NewSource(seed))}
}

// Pick returns a nudge of the given type with uniformly chosen text.
func (ns *NudgeSelector) Pick(t NudgeType) Nudge {
	candidates := nudgeCatalog[t]
	if len(candidates) == 0 {
		return Nudge{Type: t}
	}
	ns.mu.Lock()
	idx := ns.rng.Intn(len(candidates))
	ns.mu.Unlock()
	return Nudge{Type: t, Text: candidates[idx]}
}
