// Package onboarding implements the linear persona-collection wizard.
package onboarding

import (
	"fmt"
	"strings"

	"github.com/aishura/aishura/internal/domain"
	"github.com/containerd/errdefs"
)

// StepKind distinguishes how a step's answer is captured and validated.
type StepKind string

const (
	// KindText is a free-text answer, validated as non-empty when trimmed.
	KindText StepKind = "text"
	// KindSingle is a single-select answer from Options.
	KindSingle StepKind = "single"
	// KindMulti is a multi-select answer; at least one option is required.
	KindMulti StepKind = "multi"
)

// Step describes one wizard screen.
type Step struct {
	Key     string   `json:"key"`
	Prompt  string   `json:"prompt"`
	Kind    StepKind `json:"kind"`
	Options []string `json:"options,omitempty"`
}

// Steps returns the wizard's fixed step sequence.
func Steps() []Step {
	return []Step{
		{Key: "name", Prompt: "What should I call you?", Kind: KindText},
		{Key: "location", Prompt: "Where are you based?", Kind: KindText},
		{Key: "industry", Prompt: "What industry or field are you in (or aiming for)?", Kind: KindText},
		{
			Key:    "career_stage",
			Prompt: "Where are you in your career?",
			Kind:   KindSingle,
			Options: []string{
				"Student / Early career",
				"Mid-career",
				"Senior / Leadership",
				"Career changer",
				"Returning to work",
			},
		},
		{
			Key:    "goals",
			Prompt: "What are you hoping to get out of this? Pick all that apply.",
			Kind:   KindMulti,
			Options: []string{
				"Find a new job",
				"Get promoted",
				"Switch industries",
				"Build confidence",
				"Grow my network",
				"Figure out what I want",
			},
		},
		{
			Key:    "emotional_state",
			Prompt: "How are you feeling about your career right now?",
			Kind:   KindSingle,
			Options: []string{
				"Anxious but hopeful",
				"Excited and ready",
				"Stuck and frustrated",
				"Calm, just exploring",
			},
		},
	}
}

// Wizard walks a user through the steps in order. It is a plain linear index,
// not a state machine: each step only validates non-emptiness.
type Wizard struct {
	steps   []Step
	idx     int
	answers map[string][]string
}

// NewWizard creates a wizard positioned at the first step.
func NewWizard() *Wizard {
	return &Wizard{
		steps:   Steps(),
		answers: make(map[string][]string),
	}
}

// Current returns the step awaiting an answer.
func (w *Wizard) Current() (Step, bool) {
	if w.idx >= len(w.steps) {
		return Step{}, false
	}
	return w.steps[w.idx], true
}

// Answer records the answer for the current step and advances.
func (w *Wizard) Answer(values ...string) error {
	step, ok := w.Current()
	if !ok {
		return fmt.Errorf("wizard already complete: %w", errdefs.ErrInvalidArgument)
	}
	cleaned, err := validate(step, values)
	if err != nil {
		return err
	}
	w.answers[step.Key] = cleaned
	w.idx++
	return nil
}

// Back moves to the previous step, if any.
func (w *Wizard) Back() {
	if w.idx > 0 {
		w.idx--
	}
}

// Done reports whether every step has been answered.
func (w *Wizard) Done() bool {
	return w.idx >= len(w.steps)
}

// Persona assembles the collected answers. Fails if the wizard is incomplete.
func (w *Wizard) Persona() (*domain.Persona, error) {
	if !w.Done() {
		return nil, fmt.Errorf("onboarding incomplete at step %d: %w", w.idx, errdefs.ErrInvalidArgument)
	}
	return &domain.Persona{
		Name:           first(w.answers["name"]),
		Location:       first(w.answers["location"]),
		Industry:       first(w.answers["industry"]),
		CareerStage:    first(w.answers["career_stage"]),
		Goals:          w.answers["goals"],
		EmotionalState: first(w.answers["emotional_state"]),
	}, nil
}

// Collect validates a full answer set in one shot, for clients that submit
// the whole wizard at once instead of stepping through it.
func Collect(answers map[string][]string) (*domain.Persona, error) {
	w := NewWizard()
	for {
		step, ok := w.Current()
		if !ok {
			break
		}
		if err := w.Answer(answers[step.Key]...); err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Key, err)
		}
	}
	return w.Persona()
}

func validate(step Step, values []string) ([]string, error) {
	var cleaned []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("answer required: %w", errdefs.ErrInvalidArgument)
	}

	switch step.Kind {
	case KindText, KindSingle:
		cleaned = cleaned[:1]
		if step.Kind == KindSingle && !contains(step.Options, cleaned[0]) {
			return nil, fmt.Errorf("answer %q not among options: %w", cleaned[0], errdefs.ErrInvalidArgument)
		}
	case KindMulti:
		for _, v := range cleaned {
			if !contains(step.Options, v) {
				return nil, fmt.Errorf("answer %q not among options: %w", v, errdefs.ErrInvalidArgument)
			}
		}
	}
	return cleaned, nil
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
