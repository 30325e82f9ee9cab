package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/menoncello/triage/internal/models"
)

// Fixed action thresholds over the final score.
const (
	fixNowThreshold   = 8
	scheduleThreshold = 6
	delegateThreshold = 4
	monitorThreshold  = 2
)

// suggest derives the base triage suggestion from the final score.
// Workflow adaptation and batch optimization may revise it later.
func suggest(final, effortHours float64, ctx models.IssueContext, cls models.IssueClassification, project models.ProjectContext) models.TriageSuggestion {
	action := actionFor(final)
	priority := int(final + 0.5)
	if priority < 1 {
		priority = 1
	}
	if priority > 10 {
		priority = 10
	}

	s := models.TriageSuggestion{
		Action:          action,
		Priority:        priority,
		EstimatedEffort: effortHours,
		Assignee:        suggestAssignee(ctx, cls),
		Deadline:        suggestDeadline(action, project),
		Reasoning:       buildReasoning(final, action, ctx, cls),
		Confidence:      suggestionConfidence(cls.Confidence),
	}
	return s
}

func actionFor(score float64) models.TriageAction {
	switch {
	case score >= fixNowThreshold:
		return models.ActionFixNow
	case score >= scheduleThreshold:
		return models.ActionSchedule
	case score >= delegateThreshold:
		return models.ActionDelegate
	case score >= monitorThreshold:
		return models.ActionMonitor
	default:
		return models.ActionIgnore
	}
}

// suggestDeadline assigns a due date proportional to urgency. Monitor and
// ignore carry no deadline.
func suggestDeadline(action models.TriageAction, project models.ProjectContext) *time.Time {
	var days int
	switch action {
	case models.ActionFixNow:
		days = 2
	case models.ActionSchedule:
		days = 7
	case models.ActionDelegate:
		days = 14
	default:
		return nil
	}
	d := time.Now().AddDate(0, 0, days)
	return &d
}

// suggestAssignee maps component and domain keywords to team roles.
// Pure heuristic with no persistence.
func suggestAssignee(ctx models.IssueContext, cls models.IssueClassification) string {
	if cls.Category == models.CategorySecurity || strings.EqualFold(ctx.BusinessDomain, "security") {
		return "security-team"
	}
	component := strings.ToLower(ctx.ComponentType)
	path := strings.ToLower(ctx.FilePath)
	switch {
	case component == "ui" || component == "frontend" || strings.Contains(path, "/ui/") || strings.Contains(path, "/frontend/"):
		return "frontend-team"
	case component == "api" || component == "backend" || strings.Contains(path, "/api/"):
		return "backend-team"
	case cls.Category == models.CategoryDocumentation || strings.Contains(path, "/docs/"):
		return "docs-team"
	case cls.Category == models.CategoryPerformance:
		return "performance-team"
	}
	return ""
}

func buildReasoning(final float64, action models.TriageAction, ctx models.IssueContext, cls models.IssueClassification) string {
	parts := []string{
		fmt.Sprintf("Priority score %.1f (%s/%s, confidence %.2f)", final, cls.Category, cls.Severity, cls.Confidence),
	}
	if ctx.Criticality == models.CriticalityCritical || ctx.Criticality == models.CriticalityHigh {
		parts = append(parts, fmt.Sprintf("%s-criticality component", ctx.Criticality))
	}
	if ctx.RecentChanges {
		parts = append(parts, "recently changed code")
	}
	parts = append(parts, fmt.Sprintf("recommended action: %s", action))
	return strings.Join(parts, "; ")
}

// suggestionConfidence maps model confidence onto the [0.3, 0.95] band
// used for triage suggestions.
func suggestionConfidence(modelConfidence float64) float64 {
	v := 0.4 + 0.5*clamp01(modelConfidence)
	return clampRange(v, 0.3, 0.95)
}

// keywordOverlap reports whether any word of the goal matches the
// issue's component, domain, or file path.
func keywordOverlap(goal string, ctx models.IssueContext) bool {
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
