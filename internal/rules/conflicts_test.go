package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menoncello/triage/internal/models"
)

func TestDetectRuleConflicts_OpposingAdjustments(t *testing.T) {
	up := rule("up", 1, 1, securityCondition(), adjust(2))
	down := rule("down", 1, 2, securityCondition(), adjust(-1))

	conflicts := DetectRuleConflicts([]*models.PrioritizationRule{up, down})

	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, "up", c.RuleID1)
	assert.Equal(t, "down", c.RuleID2)
	assert.Equal(t, "opposing-adjustment", c.Type)
	assert.Equal(t, models.SeverityMedium, c.Severity)
	assert.NotEmpty(t, c.Suggestion)
}

func TestDetectRuleConflicts_NoConflict(t *testing.T) {
	tests := []struct {
		name  string
		rules []*models.PrioritizationRule
	}{
		{
			name: "same direction",
			rules: []*models.PrioritizationRule{
				rule("a", 1, 1, securityCondition(), adjust(2)),
				rule("b", 1, 2, securityCondition(), adjust(1)),
			},
		},
		{
			name: "disjoint fields",
			rules: []*models.PrioritizationRule{
				rule("a", 1, 1, securityCondition(), adjust(2)),
				rule("b", 1, 2, []models.RuleCondition{
					{Field: "issue.toolName", Operator: models.OpEquals, Value: "eslint"},
				}, adjust(-2)),
			},
		},
		{
			name: "setPriority is out of scope",
			rules: []*models.PrioritizationRule{
				rule("a", 1, 1, securityCondition(), adjust(2)),
				rule("b", 1, 2, securityCondition(), []models.RuleAction{
					{Type: models.ActionSetPriority, Priority: 2},
				}),
			},
		},
		{
			name:  "single rule",
			rules: []*models.PrioritizationRule{rule("a", 1, 1, securityCondition(), adjust(2))},
		},
		{
			name:  "nil entries",
			rules: []*models.PrioritizationRule{nil, rule("a", 1, 1, securityCondition(), adjust(2)), nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, DetectRuleConflicts(tt.rules))
		})
	}
}

func TestDetectRuleConflicts_NetAdjustment(t *testing.T) {
	// Two adjustScore actions netting positive against one negative rule.
	mixed := rule("mixed", 1, 1, securityCondition(), []models.RuleAction{
		{Type: models.ActionAdjustScore, Adjustment: -1},
		{Type: models.ActionAdjustScore, Adjustment: 3},
	})
	down := rule("down", 1, 2, securityCondition(), adjust(-2))

	conflicts := DetectRuleConflicts([]*models.PrioritizationRule{mixed, down})
	assert.Len(t, conflicts, 1, "the net +2 opposes the -2")
}

func TestDetectRuleConflicts_AllPairs(t *testing.T) {
	up1 := rule("up1", 1, 1, securityCondition(), adjust(1))
	up2 := rule("up2", 1, 2, securityCondition(), adjust(2))
	down := rule("down", 1, 3, securityCondition(), adjust(-1))

	conflicts := DetectRuleConflicts([]*models.PrioritizationRule{up1, up2, down})
	assert.Len(t, conflicts, 2, "each positive rule conflicts with the negative one")
}
