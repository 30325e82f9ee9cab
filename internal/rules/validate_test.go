package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/menoncello/triage/internal/models"
)

func validRule() *models.PrioritizationRule {
	return rule("r1", 0.8, 1, securityCondition(), adjust(2))
}

func TestValidateRule_Valid(t *testing.T) {
	res := ValidateRule(validRule())
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestValidateRule_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.PrioritizationRule)
		want   string
	}{
		{"missing id", func(r *models.PrioritizationRule) { r.ID = "" }, "missing rule id"},
		{"missing name", func(r *models.PrioritizationRule) { r.Name = "" }, "missing rule name"},
		{"no conditions", func(r *models.PrioritizationRule) { r.Conditions = nil }, "rule has no conditions"},
		{"no actions", func(r *models.PrioritizationRule) { r.Actions = nil }, "rule has no actions"},
		{"weight too high", func(r *models.PrioritizationRule) { r.Weight = 1.5 }, "outside [0,1]"},
		{"weight negative", func(r *models.PrioritizationRule) { r.Weight = -0.1 }, "outside [0,1]"},
		{
			"condition missing field",
			func(r *models.PrioritizationRule) { r.Conditions[0].Field = "" },
			"missing field",
		},
		{
			"condition missing value",
			func(r *models.PrioritizationRule) { r.Conditions[0].Value = "" },
			"missing value",
		},
		{
			"invalid operator",
			func(r *models.PrioritizationRule) { r.Conditions[0].Operator = "matches" },
			"invalid operator",
		},
		{
			"adjustScore without adjustment",
			func(r *models.PrioritizationRule) { r.Actions = []models.RuleAction{{Type: models.ActionAdjustScore}} },
			"non-zero adjustment",
		},
		{
			"setPriority without priority",
			func(r *models.PrioritizationRule) { r.Actions = []models.RuleAction{{Type: models.ActionSetPriority}} },
			"requires a priority",
		},
		{
			"empty customAction",
			func(r *models.PrioritizationRule) { r.Actions = []models.RuleAction{{Type: models.ActionCustomAction}} },
			"at least one parameter",
		},
		{
			"unknown action type",
			func(r *models.PrioritizationRule) { r.Actions = []models.RuleAction{{Type: "explode"}} },
			"invalid action type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(r)

			res := ValidateRule(r)
			assert.False(t, res.Valid)
			joined := ""
			for _, e := range res.Errors {
				joined += e + "\n"
			}
			assert.Contains(t, joined, tt.want)
		})
	}
}

func TestValidateRule_Nil(t *testing.T) {
	res := ValidateRule(nil)
	assert.False(t, res.Valid)
}

func TestValidateRule_Warnings(t *testing.T) {
	t.Run("low weight", func(t *testing.T) {
		r := validRule()
		r.Weight = 0.05

		res := ValidateRule(r)
		assert.True(t, res.Valid, "warnings leave the rule usable")
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("too many conditions", func(t *testing.T) {
		r := validRule()
		for i := 0; i < maxRecommendedConditions+1; i++ {
			r.Conditions = append(r.Conditions, models.RuleCondition{
				Field: "issue.message", Operator: models.OpContains, Value: "x",
			})
		}

		res := ValidateRule(r)
		assert.True(t, res.Valid)
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("skipTriage needs no parameters", func(t *testing.T) {
		r := validRule()
		r.Actions = []models.RuleAction{{Type: models.ActionSkipTriage}}

		res := ValidateRule(r)
		assert.True(t, res.Valid)
	})
}
