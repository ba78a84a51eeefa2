package domain

// Quest represents a gamified career activity shown in the quest board.
type Quest struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	RewardXP    int      `json:"reward_xp"`
	StepIndex   int      `json:"step_index"`
}

// QuestByID looks up a catalog quest. The second return is false for
// unknown IDs.
func QuestByID(id string) (Quest, bool) {
	for _, q := range SampleQuests() {
		if q.ID == id {
			return q, true
		}
	}
	return Quest{}, false
}

// NextStep returns the next step for the quest.
// Returns empty string if no more steps remain.
func (q *Quest) NextStep() string {
	if q.StepIndex >= len(q.Steps) {
		return ""
	}
	step := q.Steps[q.StepIndex]
	q.StepIndex++
	return step
}

// Completed returns true if all steps have been consumed.
func (q *Quest) Completed() bool {
	return q.StepIndex >= len(q.Steps)
}

// SampleQuests returns the built-in quest catalog.
func SampleQuests() []Quest {
	return []Quest{
		{
			ID:          "quest-profile-polish",
			Title:       "Polish your story",
			Description: "Get your professional narrative into shape.",
			Steps: []string{
				"Write a two-sentence summary of what you do",
				"List three accomplishments you are proud of",
				"Update your resume headline to match",
			},
			RewardXP: 50,
		},
		{
			ID:          "quest-network-warmup",
			Title:       "Warm up your network",
			Description: "Reconnect before you need anything.",
			Steps: []string{
				"Message one former colleague just to catch up",
				"Comment on a post in your target industry",
				"Schedule one coffee chat this week",
			},
			RewardXP: 75,
		},
		{
			ID:          "quest-first-application",
			Title:       "Send the first application",
			Description: "Momentum beats perfection.",
			Steps: []string{
				"Pick one role that is a 70% fit",
				"Tailor your opening paragraph to it",
				"Hit send before the end of the day",
			},
			RewardXP: 100,
		},
	}
}
