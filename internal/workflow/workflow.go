// Package workflow adapts priority scores and triage suggestions to the
// team's process model: sprint-driven scrum, continuous-flow kanban,
// phase-gated waterfall, or custom per-category weighting.
package workflow

import (
	"math"
	"strings"
	"time"

	"github.com/menoncello/triage/internal/models"
)

// Integration adapts engine output to a team's workflow. It carries no
// state; all inputs arrive per call.
type Integration struct{}

// New returns a workflow integration.
func New() *Integration {
	return &Integration{}
}

// Adapt adjusts prioritizations for the configured workflow and returns
// the adapted copies. Inputs are never mutated.
func (w *Integration) Adapt(prioritizations []models.IssuePrioritization, project models.ProjectContext) []models.IssuePrioritization {
	out := make([]models.IssuePrioritization, len(prioritizations))
	for i, p := range prioritizations {
		out[i] = w.AdaptOne(p, project)
	}
	return out
}

// AdaptOne adapts a single prioritization. Exposed so batch workers can
// run the full pipeline per issue.
func (w *Integration) AdaptOne(p models.IssuePrioritization, project models.ProjectContext) models.IssuePrioritization {
	switch project.Preferences.Workflow {
	case models.WorkflowScrum:
		p = adaptScrum(p, project)
	case models.WorkflowKanban:
		p = adaptKanban(p)
	case models.WorkflowWaterfall:
		p = adaptWaterfall(p)
	case models.WorkflowCustom:
		p = adaptCustom(p, project)
	}
	p.FinalScore = round1(clampScore(p.FinalScore))
	p.Suggestion = adjustOne(p.Suggestion, p, project)
	return p
}

// AdjustSuggestions revises triage suggestions for the workflow without
// touching scores.
func (w *Integration) AdjustSuggestions(suggestions []models.TriageSuggestion, prioritizations []models.IssuePrioritization, project models.ProjectContext) []models.TriageSuggestion {
	out := make([]models.TriageSuggestion, len(suggestions))
	for i, s := range suggestions {
		var p models.IssuePrioritization
		if i < len(prioritizations) {
			p = prioritizations[i]
		}
		out[i] = adjustOne(s, p, project)
	}
	return out
}

// adaptScrum boosts issues aligned with sprint goals (at most 2 points)
// and discounts sub-6 scores by 20% when the sprint is nearly at
// capacity. Without a current sprint it is a pass-through.
func adaptScrum(p models.IssuePrioritization, project models.ProjectContext) models.IssuePrioritization {
	sprint := project.Preferences.CurrentSprint
	if sprint == nil {
		return p
	}

	bonus := 0.0
	for _, goal := range sprint.Goals {
		if goalAligned(goal, p.Context) {
			bonus += 0.5
		}
	}
	if bonus > 2 {
		bonus = 2
	}
	p.FinalScore += bonus

	if sprint.Capacity > 0 && sprint.CurrentLoad/sprint.Capacity > 0.9 && p.FinalScore < 6 {
		p.FinalScore *= 0.8
	}
	return p
}

// adaptKanban rewards low-effort issues: continuous flow favors small
// items that keep moving.
func adaptKanban(p models.IssuePrioritization) models.IssuePrioritization {
	switch {
	case p.Suggestion.EstimatedEffort <= 2:
		p.FinalScore += 1
	case p.Suggestion.EstimatedEffort <= 8:
		p.FinalScore += 0.5
	}
	return p
}

var phaseBonuses = []struct {
	keywords []string
	bonus    float64
}{
	{[]string{"/design/", "/docs/", "/spec/"}, 0.5},
	{[]string{"/src/", "/internal/", "/lib/"}, 1.0},
	{[]string{"/test/", "_test.", "/spec/"}, 0.75},
	{[]string{"/deploy/", "/ci/", "/infra/", "dockerfile"}, 1.25},
}

// adaptWaterfall adds a phase bonus keyed on file-path keywords: issues
// in later phases cost more to revisit, so they score higher.
func adaptWaterfall(p models.IssuePrioritization) models.IssuePrioritization {
	path := strings.ToLower(p.Context.FilePath)
	for _, phase := range phaseBonuses {
		for _, kw := range phase.keywords {
			if strings.Contains(path, kw) {
				p.FinalScore += phase.bonus
				return p
			}
		}
	}
	return p
}

// adaptCustom applies the team's per-category priority weight as a
// linear score adjustment around the neutral weight 1.0.
func adaptCustom(p models.IssuePrioritization, project models.ProjectContext) models.IssuePrioritization {
	if w, ok := project.Preferences.Priorities[p.Classification.Category]; ok {
		p.FinalScore += (w - 1.0) * 2
	}
	return p
}

// adjustOne revises a single suggestion for the workflow.
func adjustOne(s models.TriageSuggestion, p models.IssuePrioritization, project models.ProjectContext) models.TriageSuggestion {
	switch project.Preferences.Workflow {
	case models.WorkflowScrum:
		sprint := project.Preferences.CurrentSprint
		if sprint == nil {
			return s
		}
		// Deadlines never extend past the sprint.
		if !sprint.EndDate.IsZero() && s.Deadline != nil && s.Deadline.After(sprint.EndDate) {
			end := sprint.EndDate
			s.Deadline = &end
		}
	case models.WorkflowKanban:
		if s.Action == models.ActionFixNow && s.Priority < 8 {
			s.Action = models.ActionSchedule
		}
		s.Deadline = nil // flow-based teams do not work to fixed dates
	case models.WorkflowWaterfall:
		if s.Action == models.ActionFixNow && s.Priority < 9 {
			s.Action = models.ActionSchedule
		}
		if s.Deadline != nil {
			d := s.Deadline.Add(7 * 24 * time.Hour)
			s.Deadline = &d
		}
	}
	return s
}

// goalAligned reports whether a sprint goal mentions the issue's
// component, domain, or file path.
func goalAligned(goal string, ctx models.IssueContext) bool {
	path := strings.ToLower(ctx.FilePath)
	component := strings.ToLower(ctx.ComponentType)
	domain := strings.ToLower(ctx.BusinessDomain)

	for _, word := range strings.Fields(strings.ToLower(goal)) {
		word = strings.Trim(word, ".,:;!?\"'")
		if len(word) < 3 {
			continue
		}
		if word == component || word == domain || strings.Contains(path, word) {
			return true
		}
	}
	return false
}

func clampScore(v float64) float64 {
	return math.Max(1, math.Min(10, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
