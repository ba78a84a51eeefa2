package domain

import (
	"time"
)

// Default values seeded onto a profile on first login.
const (
	DefaultTrustScore = 50
	DefaultLevel      = 1
	DefaultXP         = 0
	DefaultTokens     = 100

	// XPPerLevel is the experience budget of one level.
	XPPerLevel = 100
)

// Profile represents a user's local profile record: identity fields consumed
// from the authentication collaborator plus gamification counters initialized
// to fixed defaults on first login.
type Profile struct {
	UserID            string    `json:"user_id"`
	DisplayName       string    `json:"display_name"`
	Email             string    `json:"email,omitempty"`
	TrustScore        int       `json:"trust_score"`
	Level             int       `json:"level"`
	XP                int       `json:"xp"`
	Tokens            int       `json:"tokens"`
	Persona           *Persona  `json:"persona,omitempty"`
	PendingCareerGoal string    `json:"pending_career_goal,omitempty"`
	// QuestProgress maps quest ID to the number of completed steps.
	QuestProgress map[string]int `json:"quest_progress,omitempty"`
	LastSeenAt        time.Time `json:"last_seen_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewProfile seeds a profile record with fixed defaults.
func NewProfile(userID, displayName string) *Profile {
	now := time.Now()
	return &Profile{
		UserID:      userID,
		DisplayName: displayName,
		TrustScore:  DefaultTrustScore,
		Level:       DefaultLevel,
		XP:          DefaultXP,
		Tokens:      DefaultTokens,
		LastSeenAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AwardXP adds experience and re-derives the level.
func (p *Profile) AwardXP(amount int) {
	if amount <= 0 {
		return
	}
	p.XP += amount
	p.Level = p.XP/XPPerLevel + 1
}

// AdvanceQuest consumes the next step of a catalog quest for this profile and
// returns it, along with whether this advance finished the quest. Finishing
// awards the quest's reward XP once; advancing a finished quest is a no-op.
func (p *Profile) AdvanceQuest(q Quest) (string, bool) {
	q.StepIndex = p.QuestProgress[q.ID]
	if q.Completed() {
		return "", false
	}
	step := q.NextStep()
	if p.QuestProgress == nil {
		p.QuestProgress = make(map[string]int)
	}
	p.QuestProgress[q.ID] = q.StepIndex
	if q.Completed() {
		p.AwardXP(q.RewardXP)
		return step, true
	}
	return step, false
}

// Onboarded reports whether the onboarding wizard has completed for this user.
func (p *Profile) Onboarded() bool {
	return p.Persona != nil
}
