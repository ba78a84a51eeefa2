package domain

import "strings"

// Persona is the structured profile collected during onboarding and forwarded
// as context to the completion gateway.
type Persona struct {
	Name           string   `json:"name"`
	Location       string   `json:"location"`
	Industry       string   `json:"industry"`
	CareerStage    string   `json:"career_stage"`
	Goals          []string `json:"goals"`
	EmotionalState string   `json:"emotional_state"`
}

// Canned greeting paragraphs keyed by coarse emotional-state matches.
const (
	greetingAnxious = "Hey — first of all, take a breath. Feeling anxious about " +
		"your career is completely normal, and it usually means you care about " +
		"getting this right. We'll take it one small step at a time. What's on " +
		"your mind today?"
	greetingExcited = "Love the energy! Excitement is the best fuel for a career " +
		"move — let's channel it into something concrete. Tell me what you're " +
		"most excited about and we'll map out a first step together."
	greetingDefault = "Welcome! I'm here to help you figure out your next career " +
		"move, at whatever pace works for you. Tell me a bit about where you are " +
		"right now, or just ask me anything."
)

// Greeting picks the opening assistant message for a freshly onboarded user.
// Selection is a coarse contains-match on the emotional-state string.
func (p *Persona) Greeting() string {
	state := strings.ToLower(p.EmotionalState)
	switch {
	case strings.Contains(state, "anxious"):
		return greetingAnxious
	case strings.Contains(state, "excited"):
		return greetingExcited
	default:
		return greetingDefault
	}
}
