package triage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menoncello/triage/internal/models"
)

func suggestion(action models.TriageAction, priority int, effort float64, assignee string) models.IssuePrioritization {
	return models.IssuePrioritization{
		IssueID: "i1",
		Suggestion: models.TriageSuggestion{
			Action:          action,
			Priority:        priority,
			EstimatedEffort: effort,
			Assignee:        assignee,
			Reasoning:       "base",
			Confidence:      0.8,
		},
	}
}

func sprintProject(capacity, load float64) models.ProjectContext {
	return models.ProjectContext{Preferences: models.TeamPreferences{
		Workflow:      models.WorkflowScrum,
		CurrentSprint: &models.Sprint{Capacity: capacity, CurrentLoad: load},
	}}
}

func TestOptimizeSuggestions_DoesNotMutateInput(t *testing.T) {
	e := New(DefaultOptions())
	input := []models.IssuePrioritization{suggestion(models.ActionSchedule, 6, 4, "")}
	before := input[0]

	_ = e.OptimizeSuggestions(input, sprintProject(100, 95))

	assert.Equal(t, before, input[0])
}

func TestAdjustForCapacity(t *testing.T) {
	t.Run("overloaded team downgrades mid-priority work", func(t *testing.T) {
		ps := []models.IssuePrioritization{suggestion(models.ActionSchedule, 6, 4, "")}
		adjustForCapacity(ps, sprintProject(100, 95))
		assert.Equal(t, models.ActionDelegate, ps[0].Suggestion.Action)
	})

	t.Run("free team upgrades mid-priority work", func(t *testing.T) {
		ps := []models.IssuePrioritization{suggestion(models.ActionDelegate, 5, 4, "")}
		adjustForCapacity(ps, sprintProject(100, 20))
		assert.Equal(t, models.ActionSchedule, ps[0].Suggestion.Action)
	})

	t.Run("urgent work is untouched", func(t *testing.T) {
		ps := []models.IssuePrioritization{suggestion(models.ActionFixNow, 9, 4, "")}
		adjustForCapacity(ps, sprintProject(100, 95))
		assert.Equal(t, models.ActionFixNow, ps[0].Suggestion.Action)
	})

	t.Run("trivial work is untouched", func(t *testing.T) {
		ps := []models.IssuePrioritization{suggestion(models.ActionMonitor, 2, 1, "")}
		adjustForCapacity(ps, sprintProject(100, 95))
		assert.Equal(t, models.ActionMonitor, ps[0].Suggestion.Action)
	})

	t.Run("no sprint is a no-op", func(t *testing.T) {
		ps := []models.IssuePrioritization{suggestion(models.ActionSchedule, 6, 4, "")}
		adjustForCapacity(ps, models.ProjectContext{})
		assert.Equal(t, models.ActionSchedule, ps[0].Suggestion.Action)
	})
}

func TestBalanceWorkload(t *testing.T) {
	t.Run("spills past the capacity threshold", func(t *testing.T) {
		ps := []models.IssuePrioritization{
			suggestion(models.ActionSchedule, 6, 30, "backend-team"),
			suggestion(models.ActionSchedule, 6, 15, "backend-team"), // would push backend to 45h
		}
		balanceWorkload(ps)

		assert.Equal(t, "backend-team", ps[0].Suggestion.Assignee)
		assert.NotEqual(t, "backend-team", ps[1].Suggestion.Assignee, "second item spills elsewhere")
		assert.NotEmpty(t, ps[1].Suggestion.Assignee)
	})

	t.Run("unassigned items stay unassigned", func(t *testing.T) {
		ps := []models.IssuePrioritization{suggestion(models.ActionSchedule, 6, 100, "")}
		balanceWorkload(ps)
		assert.Empty(t, ps[0].Suggestion.Assignee)
	})

	t.Run("under capacity keeps assignments", func(t *testing.T) {
		ps := []models.IssuePrioritization{
			suggestion(models.ActionSchedule, 6, 10, "frontend-team"),
			suggestion(models.ActionSchedule, 6, 10, "frontend-team"),
		}
		balanceWorkload(ps)
		assert.Equal(t, "frontend-team", ps[0].Suggestion.Assignee)
		assert.Equal(t, "frontend-team", ps[1].Suggestion.Assignee)
	})
}

func TestClampDeadlines(t *testing.T) {
	end := time.Now().Add(5 * 24 * time.Hour)
	project := models.ProjectContext{Preferences: models.TeamPreferences{
		CurrentSprint: &models.Sprint{EndDate: end},
	}}

	t.Run("late deadline clamps to sprint end", func(t *testing.T) {
		late := time.Now().Add(20 * 24 * time.Hour)
		ps := []models.IssuePrioritization{suggestion(models.ActionSchedule, 6, 4, "")}
		ps[0].Suggestion.Deadline = &late

		clampDeadlines(ps, project)

		require.NotNil(t, ps[0].Suggestion.Deadline)
		assert.True(t, ps[0].Suggestion.Deadline.Equal(end))
	})

	t.Run("near-end deadline gets annotated", func(t *testing.T) {
		soonEnd := time.Now().Add(24 * time.Hour)
		soonProject := models.ProjectContext{Preferences: models.TeamPreferences{
			CurrentSprint: &models.Sprint{EndDate: soonEnd},
		}}
		late := time.Now().Add(10 * 24 * time.Hour)
		ps := []models.IssuePrioritization{suggestion(models.ActionFixNow, 8, 4, "")}
		ps[0].Suggestion.Deadline = &late

		clampDeadlines(ps, soonProject)

		assert.True(t, strings.HasSuffix(ps[0].Suggestion.Reasoning, "deadline is near sprint end"))
	})

	t.Run("no deadline is untouched", func(t *testing.T) {
		ps := []models.IssuePrioritization{suggestion(models.ActionMonitor, 3, 4, "")}
		clampDeadlines(ps, project)
		assert.Nil(t, ps[0].Suggestion.Deadline)
	})
}

func TestEscalateRisk(t *testing.T) {
	t.Run("high priority security escalates to fix-now", func(t *testing.T) {
		ps := []models.IssuePrioritization{suggestion(models.ActionSchedule, 7, 4, "")}
		ps[0].Classification.Category = models.CategorySecurity

		escalateRisk(ps)

		assert.Equal(t, models.ActionFixNow, ps[0].Suggestion.Action)
		assert.InDelta(t, 0.95, ps[0].Suggestion.Confidence, 0.001)
	})

	t.Run("low priority security is left alone", func(t *testing.T) {
		ps := []models.IssuePrioritization{suggestion(models.ActionDelegate, 4, 4, "")}
		ps[0].Classification.Category = models.CategorySecurity

		escalateRisk(ps)

		assert.Equal(t, models.ActionDelegate, ps[0].Suggestion.Action)
	})

	t.Run("low confidence gets flagged for review", func(t *testing.T) {
		ps := []models.IssuePrioritization{suggestion(models.ActionSchedule, 6, 4, "")}
		ps[0].Suggestion.Confidence = 0.4

		escalateRisk(ps)

		assert.True(t, strings.HasSuffix(ps[0].Suggestion.Reasoning, "manual review recommended"))
	})
}

func TestDowngradeUpgrade(t *testing.T) {
	assert.Equal(t, models.ActionSchedule, downgrade(models.ActionFixNow))
	assert.Equal(t, models.ActionDelegate, downgrade(models.ActionSchedule))
	assert.Equal(t, models.ActionMonitor, downgrade(models.ActionDelegate))
	assert.Equal(t, models.ActionIgnore, downgrade(models.ActionIgnore))

	assert.Equal(t, models.ActionFixNow, upgrade(models.ActionSchedule))
	assert.Equal(t, models.ActionSchedule, upgrade(models.ActionDelegate))
	assert.Equal(t, models.ActionDelegate, upgrade(models.ActionMonitor))
	assert.Equal(t, models.ActionFixNow, upgrade(models.ActionFixNow))
}
