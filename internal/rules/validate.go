package rules

import (
	"fmt"

	"github.com/menoncello/triage/internal/models"
)

// maxRecommendedConditions is the point past which a rule gets a
// complexity warning. It stays usable.
const maxRecommendedConditions = 5

// ValidateRule checks a rule's structure. Hard errors make the rule
// unusable; warnings (low weight, many conditions) do not. The result is
// returned, never raised.
func ValidateRule(r *models.PrioritizationRule) models.ValidationResult {
	var res models.ValidationResult

	if r == nil {
		res.Errors = append(res.Errors, "rule is nil")
		return res
	}
	if r.ID == "" {
		res.Errors = append(res.Errors, "missing rule id")
	}
	if r.Name == "" {
		res.Errors = append(res.Errors, "missing rule name")
	}
	if len(r.Conditions) == 0 {
		res.Errors = append(res.Errors, "rule has no conditions")
	}
	if len(r.Actions) == 0 {
		res.Errors = append(res.Errors, "rule has no actions")
	}
	if r.Weight < 0 || r.Weight > 1 {
		res.Errors = append(res.Errors, fmt.Sprintf("weight %.2f outside [0,1]", r.Weight))
	}

	for i, c := range r.Conditions {
		if c.Field == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("condition %d: missing field", i))
		}
		if !validOperator(c.Operator) {
			res.Errors = append(res.Errors, fmt.Sprintf("condition %d: invalid operator %q", i, c.Operator))
		}
		if c.Value == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("condition %d: missing value", i))
		}
	}

	for i, a := range r.Actions {
		switch a.Type {
		case models.ActionAdjustScore:
			if a.Adjustment == 0 {
				res.Errors = append(res.Errors, fmt.Sprintf("action %d: adjustScore requires a non-zero adjustment", i))
			}
		case models.ActionSetPriority:
			if a.Priority == 0 {
				res.Errors = append(res.Errors, fmt.Sprintf("action %d: setPriority requires a priority", i))
			}
		case models.ActionSkipTriage:
			// no parameters
		case models.ActionCustomAction:
			if a.TriageAction == "" && a.Reasoning == "" && a.Assignee == "" {
				res.Errors = append(res.Errors, fmt.Sprintf("action %d: customAction requires at least one parameter", i))
			}
		default:
			res.Errors = append(res.Errors, fmt.Sprintf("action %d: invalid action type %q", i, a.Type))
		}
	}

	if r.Weight >= 0 && r.Weight < 0.1 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("weight %.2f is very low; the rule will have little effect", r.Weight))
	}
	if len(r.Conditions) > maxRecommendedConditions {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d conditions; consider splitting the rule", len(r.Conditions)))
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func validOperator(op models.Operator) bool {
	for _, known := range models.Operators {
		if op == known {
			return true
		}
	}
	return false
}
