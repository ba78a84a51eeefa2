package domain

import (
	"strings"
	"testing"
)

func TestNewProfileDefaults(t *testing.T) {
	p := NewProfile("anon_1", "explorer-1234")

	if p.TrustScore != DefaultTrustScore {
		t.Errorf("TrustScore = %d, want %d", p.TrustScore, DefaultTrustScore)
	}
	if p.Level != DefaultLevel {
		t.Errorf("Level = %d, want %d", p.Level, DefaultLevel)
	}
	if p.XP != DefaultXP {
		t.Errorf("XP = %d, want %d", p.XP, DefaultXP)
	}
	if p.Tokens != DefaultTokens {
		t.Errorf("Tokens = %d, want %d", p.Tokens, DefaultTokens)
	}
	if p.Onboarded() {
		t.Error("fresh profile must not be onboarded")
	}
}

func TestAwardXPLevels(t *testing.T) {
	tests := []struct {
		totalXP   int
		wantLevel int
	}{
		{0, 1},
		{90, 1},
		{100, 2},
		{250, 3},
		{990, 10},
	}

	for _, tt := range tests {
		p := NewProfile("anon_1", "explorer-1234")
		p.AwardXP(tt.totalXP)
		if p.XP != tt.totalXP {
			t.Errorf("XP = %d, want %d", p.XP, tt.totalXP)
		}
		if p.Level != tt.wantLevel {
			t.Errorf("Level at %d XP = %d, want %d", tt.totalXP, p.Level, tt.wantLevel)
		}
	}
}

func TestAdvanceQuestAwardsXPOnce(t *testing.T) {
	quest, ok := QuestByID("quest-profile-polish")
	if !ok {
		t.Fatal("catalog quest missing")
	}

	p := NewProfile("anon_1", "explorer-1234")
	for i, wantStep := range quest.Steps {
		step, completed := p.AdvanceQuest(quest)
		if step != wantStep {
			t.Fatalf("step %d = %q, want %q", i, step, wantStep)
		}
		wantCompleted := i == len(quest.Steps)-1
		if completed != wantCompleted {
			t.Fatalf("completed after step %d = %v, want %v", i, completed, wantCompleted)
		}
	}

	if p.XP != quest.RewardXP {
		t.Fatalf("XP = %d, want reward %d", p.XP, quest.RewardXP)
	}
	if p.QuestProgress[quest.ID] != len(quest.Steps) {
		t.Fatalf("progress = %d, want %d", p.QuestProgress[quest.ID], len(quest.Steps))
	}

	// A finished quest never re-awards.
	step, completed := p.AdvanceQuest(quest)
	if step != "" || completed {
		t.Fatalf("advance past the end = (%q, %v), want no-op", step, completed)
	}
	if p.XP != quest.RewardXP {
		t.Fatalf("XP after repeat advance = %d, want %d", p.XP, quest.RewardXP)
	}
}

func TestQuestByIDUnknown(t *testing.T) {
	if _, ok := QuestByID("quest-nonexistent"); ok {
		t.Fatal("unknown quest ID should not resolve")
	}
}

func TestGreetingSelection(t *testing.T) {
	tests := []struct {
		state string
		want  string
	}{
		{"Anxious but hopeful", "take a breath"},
		{"Excited and ready", "Love the energy"},
		{"Stuck and frustrated", "Welcome!"},
		{"Calm, just exploring", "Welcome!"},
		{"", "Welcome!"},
	}

	for _, tt := range tests {
		p := &Persona{EmotionalState: tt.state}
		if got := p.Greeting(); !strings.Contains(got, tt.want) {
			t.Errorf("Greeting for %q = %q, want it to contain %q", tt.state, got, tt.want)
		}
	}
}
