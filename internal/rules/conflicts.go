package rules

import (
	"fmt"

	"github.com/menoncello/triage/internal/models"
)

// DetectRuleConflicts compares every pair of rules and flags those that
// share at least one condition field while carrying adjustScore actions
// with opposite-sign adjustments. Other action combinations (for
// example setPriority against adjustScore) are intentionally out of
// scope for detection.
func DetectRuleConflicts(ruleset []*models.PrioritizationRule) []models.RuleConflict {
	var conflicts []models.RuleConflict
	for i := 0; i < len(ruleset); i++ {
		for j := i + 1; j < len(ruleset); j++ {
			if c, ok := compareRules(ruleset[i], ruleset[j]); ok {
				conflicts = append(conflicts, c)
			}
		}
	}
	return conflicts
}

func compareRules(a, b *models.PrioritizationRule) (models.RuleConflict, bool) {
	if a == nil || b == nil {
		return models.RuleConflict{}, false
	}

	shared := sharedConditionField(a, b)
	if shared == "" {
		return models.RuleConflict{}, false
	}

	adjA, okA := scoreAdjustment(a)
	adjB, okB := scoreAdjustment(b)
	if !okA || !okB || adjA*adjB >= 0 {
		return models.RuleConflict{}, false
	}

	return models.RuleConflict{
		RuleID1: a.ID,
		RuleID2: b.ID,
		Type:    "opposing-adjustment",
		Description: fmt.Sprintf("rules %q and %q both match on %q but adjust the score in opposite directions (%+.1f vs %+.1f)",
			a.Name, b.Name, shared, adjA, adjB),
		Severity:   models.SeverityMedium,
		Suggestion: "merge the rules, narrow their conditions, or disable one of them",
	}, true
}

// sharedConditionField returns the first condition field present in both
// rules, or "" when they are disjoint.
func sharedConditionField(a, b *models.PrioritizationRule) string {
	fields := make(map[string]struct{}, len(a.Conditions))
	for _, c := range a.Conditions {
		fields[c.Field] = struct{}{}
	}
	for _, c := range b.Conditions {
		if _, ok := fields[c.Field]; ok {
			return c.Field
		}
	}
	return ""
}

// scoreAdjustment returns the net adjustScore delta of a rule's actions
// and whether it has any adjustScore action at all.
func scoreAdjustment(r *models.PrioritizationRule) (float64, bool) {
	total := 0.0
	found := false
	for _, a := range r.Actions {
		if a.Type == models.ActionAdjustScore {
			total += a.Adjustment
			found = true
		}
	}
	return total, found
}
