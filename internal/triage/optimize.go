package triage

import (
	"fmt"
	"time"

	"github.com/menoncello/triage/internal/models"
)

// teamBuckets is the fixed set of role buckets workload balancing
// distributes across.
var teamBuckets = []string{
	"security-team",
	"frontend-team",
	"backend-team",
	"performance-team",
	"docs-team",
}

// bucketCapacityHours is the accumulated-effort threshold per bucket
// before work spills to the least-loaded alternative.
const bucketCapacityHours = 40.0

// OptimizeSuggestions applies batch-level optimization to prioritized
// issues, in order: team-capacity adjustment, workload balancing,
// deadline clamping, and risk escalation. Inputs are copied, not
// mutated.
func (e *Engine) OptimizeSuggestions(prioritizations []models.IssuePrioritization, project models.ProjectContext) []models.IssuePrioritization {
	out := make([]models.IssuePrioritization, len(prioritizations))
	copy(out, prioritizations)

	adjustForCapacity(out, project)
	balanceWorkload(out)
	clampDeadlines(out, project)
	escalateRisk(out)
	return out
}

// adjustForCapacity downgrades the urgency of mid-priority items when
// the team is over 90% utilized and upgrades them when under 50%.
func adjustForCapacity(ps []models.IssuePrioritization, project models.ProjectContext) {
	sprint := project.Preferences.CurrentSprint
	if sprint == nil || sprint.Capacity <= 0 {
		return
	}
	util := sprint.CurrentLoad / sprint.Capacity

	for i := range ps {
		s := &ps[i].Suggestion
		if s.Priority < 4 || s.Priority > 7 {
			continue
		}
		switch {
		case util > 0.9:
			s.Action = downgrade(s.Action)
		case util < 0.5:
			s.Action = upgrade(s.Action)
		}
	}
}

func downgrade(a models.TriageAction) models.TriageAction {
	switch a {
	case models.ActionFixNow:
		return models.ActionSchedule
	case models.ActionSchedule:
		return models.ActionDelegate
	case models.ActionDelegate:
		return models.ActionMonitor
	default:
		return a
	}
}

func upgrade(a models.TriageAction) models.TriageAction {
	switch a {
	case models.ActionSchedule:
		return models.ActionFixNow
	case models.ActionDelegate:
		return models.ActionSchedule
	case models.ActionMonitor:
		return models.ActionDelegate
	default:
		return a
	}
}

// balanceWorkload spreads estimated effort across the fixed role
// buckets: once a bucket's accumulated effort would exceed the
// threshold, the item moves to the least-loaded bucket instead.
// Unassigned items stay unassigned.
func balanceWorkload(ps []models.IssuePrioritization) {
	load := make(map[string]float64, len(teamBuckets))
	for _, b := range teamBuckets {
		load[b] = 0
	}

	for i := range ps {
		s := &ps[i].Suggestion
		if s.Assignee == "" {
			continue
		}
		if _, known := load[s.Assignee]; !known {
			load[s.Assignee] = 0
		}

		if load[s.Assignee]+s.EstimatedEffort > bucketCapacityHours {
			if alt := leastLoaded(load, s.Assignee); alt != "" {
				s.Assignee = alt
			}
		}
		load[s.Assignee] += s.EstimatedEffort
	}
}

func leastLoaded(load map[string]float64, exclude string) string {
	best := ""
	for _, b := range teamBuckets {
		if b == exclude {
			continue
		}
		if best == "" || load[b] < load[best] {
			best = b
		}
	}
	return best
}

// clampDeadlines pulls deadlines inside the sprint and annotates items
// that land near sprint end.
func clampDeadlines(ps []models.IssuePrioritization, project models.ProjectContext) {
	sprint := project.Preferences.CurrentSprint
	if sprint == nil || sprint.EndDate.IsZero() {
		return
	}

	for i := range ps {
		s := &ps[i].Suggestion
		if s.Deadline == nil {
			continue
		}
		if s.Deadline.After(sprint.EndDate) {
			end := sprint.EndDate
			s.Deadline = &end
		}
		if time.Until(*s.Deadline) < 48*time.Hour {
			s.Reasoning = fmt.Sprintf("%s; deadline is near sprint end", s.Reasoning)
		}
	}
}

// escalateRisk forces high-priority security findings to fix-now with
// boosted confidence, and marks low-confidence suggestions for manual
// review.
func escalateRisk(ps []models.IssuePrioritization) {
	for i := range ps {
		p := &ps[i]
		s := &p.Suggestion

		if p.Classification.Category == models.CategorySecurity && s.Priority >= 7 {
			s.Action = models.ActionFixNow
			s.Confidence = boostConfidence(s.Confidence)
		}
		if s.Confidence < 0.5 {
			s.Reasoning = fmt.Sprintf("%s; manual review recommended", s.Reasoning)
		}
	}
}

func boostConfidence(v float64) float64 {
	v += 0.15
	if v > 0.95 {
		v = 0.95
	}
	return v
}
