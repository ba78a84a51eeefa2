package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aishura/aishura/internal/domain"
	"github.com/aishura/aishura/internal/identity"
	"github.com/aishura/aishura/internal/onboarding"
	"github.com/go-chi/chi/v5"
)

// ProfileHandler handles profile, onboarding, and quest endpoints.
type ProfileHandler struct {
	*Handler
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(base *Handler) *ProfileHandler {
	return &ProfileHandler{Handler: base}
}

// RegisterRoutes registers profile routes.
func (h *ProfileHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Put("/me/career-goal", h.SetCareerGoal)
		r.Get("/onboarding/steps", h.GetOnboardingSteps)
		r.Post("/onboarding", h.CompleteOnboarding)
		r.Get("/quests", h.GetQuests)
		r.Post("/quests/{questID}/advance", h.AdvanceQuest)
	})
}

// GetMe returns the current user's profile record.
func (h *ProfileHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil || profile == nil {
		Error(w, http.StatusUnauthorized, "profile not found")
		return
	}
	JSON(w, http.StatusOK, profile)
}

type careerGoalRequest struct {
	Goal string `json:"goal"`
}

// SetCareerGoal stores the transient pending career goal carried across the
// authentication step.
func (h *ProfileHandler) SetCareerGoal(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req careerGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil || profile == nil {
		Error(w, http.StatusUnauthorized, "profile not found")
		return
	}

	profile.PendingCareerGoal = strings.TrimSpace(req.Goal)
	if err := h.repo.UpsertProfile(r.Context(), profile); err != nil {
		Error(w, http.StatusInternalServerError, "failed to save career goal")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"pending_career_goal": profile.PendingCareerGoal})
}

// GetOnboardingSteps returns the wizard's step sequence for the frontend.
func (h *ProfileHandler) GetOnboardingSteps(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{"steps": onboarding.Steps()})
}

type onboardingRequest struct {
	Answers map[string][]string `json:"answers"`
}

// CompleteOnboarding validates the full answer set, stores the persona on the
// profile, and returns the persona-keyed greeting.
func (h *ProfileHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req onboardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	persona, err := onboarding.Collect(req.Answers)
	if err != nil {
		DomainError(w, err)
		return
	}

	profile, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil || profile == nil {
		Error(w, http.StatusUnauthorized, "profile not found")
		return
	}

	profile.Persona = persona
	if persona.Name != "" {
		profile.DisplayName = persona.Name
	}
	if err := h.repo.UpsertProfile(r.Context(), profile); err != nil {
		Error(w, http.StatusInternalServerError, "failed to save persona")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"persona":  persona,
		"greeting": persona.Greeting(),
	})
}

// GetQuests returns the quest catalog with the caller's step progress merged in.
func (h *ProfileHandler) GetQuests(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil || profile == nil {
		Error(w, http.StatusUnauthorized, "profile not found")
		return
	}

	quests := domain.SampleQuests()
	for i := range quests {
		quests[i].StepIndex = profile.QuestProgress[quests[i].ID]
	}
	JSON(w, http.StatusOK, map[string]interface{}{"quests": quests})
}

// AdvanceQuest consumes the next step of a quest for the caller. Completing
// the last step awards the quest's XP once; further advances are no-ops.
func (h *ProfileHandler) AdvanceQuest(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	quest, ok := domain.QuestByID(chi.URLParam(r, "questID"))
	if !ok {
		Error(w, http.StatusNotFound, "unknown quest")
		return
	}

	profile, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil || profile == nil {
		Error(w, http.StatusUnauthorized, "profile not found")
		return
	}

	step, completed := profile.AdvanceQuest(quest)
	if step == "" && !completed {
		JSON(w, http.StatusOK, map[string]interface{}{
			"quest_id":   quest.ID,
			"completed":  true,
			"step_index": profile.QuestProgress[quest.ID],
		})
		return
	}

	if err := h.repo.UpsertProfile(r.Context(), profile); err != nil {
		Error(w, http.StatusInternalServerError, "failed to save quest progress")
		return
	}

	resp := map[string]interface{}{
		"quest_id":   quest.ID,
		"step":       step,
		"step_index": profile.QuestProgress[quest.ID],
		"completed":  completed,
	}
	if completed {
		resp["awarded_xp"] = quest.RewardXP
		resp["xp"] = profile.XP
		resp["level"] = profile.Level
	}
	JSON(w, http.StatusOK, resp)
}
