// Package domain contains core domain types for the AIShura application.
package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Author identifies who produced a turn.
type Author string

const (
	// AuthorUser marks a turn typed by the user.
	AuthorUser Author = "user"
	// AuthorAssistant marks a turn produced by the assistant, including nudges.
	AuthorAssistant Author = "assistant"
)

const (
	// TitleBudget is the character budget for titles derived from a first turn.
	TitleBudget = 30
	// PreviewBudget is the character budget for the sidebar preview line.
	PreviewBudget = 60
	// PlaceholderTitle is used until a title can be derived from the first turn.
	PlaceholderTitle = "New conversation"
)

// Turn is one message exchange unit. Turns are immutable once appended.
type Turn struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	IsNudge   bool      `json:"is_nudge,omitempty"`
}

// Session holds one chat transcript with its own title and turn history.
// The transcript is append-only; display order equals insertion order.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview,omitempty"`
	Transcript   []Turn    `json:"transcript"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`

	titled bool
}

// Append adds a turn to the transcript, refreshes the preview, and derives the
// title from the first turn. A derived title is stable under later appends.
// Nudges never name a conversation: the title waits for the user's first real
// message even when a nudge lands in the transcript before it.
func (s *Session) Append(turn Turn) {
	s.Transcript = append(s.Transcript, turn)
	s.Preview = Truncate(turn.Text, PreviewBudget)
	s.LastActivity = turn.CreatedAt

	if !s.titled && !turn.IsNudge {
		s.Title = DeriveTitle(turn.Text)
		s.titled = true
	}
}

// Rename overwrites the title. Empty or whitespace-only titles are rejected
// and leave the session unchanged; renaming pins the title against derivation.
func (s *Session) Rename(title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	s.Title = title
	s.titled = true
	return true
}

// Titled reports whether the title has been derived or explicitly set.
func (s *Session) Titled() bool {
	return s.titled
}

// MarkTitled pins the current title. Used when rehydrating persisted sessions
// so a restored title is not re-derived on the next append.
func (s *Session) MarkTitled() {
	s.titled = true
}

// DeriveTitle produces a display title from the first turn's text.
func DeriveTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return PlaceholderTitle
	}
	return Truncate(text, TitleBudget)
}

// Truncate caps s at max runes, appending an ellipsis marker when cut.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}
