package rules

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menoncello/triage/internal/models"
)

func rule(id string, weight float64, priority int, conds []models.RuleCondition, actions []models.RuleAction) *models.PrioritizationRule {
	return &models.PrioritizationRule{
		ID:         id,
		Name:       id,
		Conditions: conds,
		Actions:    actions,
		Weight:     weight,
		Priority:   priority,
		Enabled:    true,
	}
}

func securityCondition() []models.RuleCondition {
	return []models.RuleCondition{
		{Field: "classification.category", Operator: models.OpEquals, Value: "security"},
	}
}

func adjust(delta float64) []models.RuleAction {
	return []models.RuleAction{{Type: models.ActionAdjustScore, Adjustment: delta}}
}

func basePrioritization(score float64) models.IssuePrioritization {
	return models.IssuePrioritization{
		IssueID:        "i1",
		FinalScore:     score,
		Classification: models.IssueClassification{Category: models.CategorySecurity, Severity: models.SeverityHigh},
		Suggestion:     models.TriageSuggestion{Action: models.ActionSchedule, Priority: 6, Reasoning: "base"},
	}
}

func TestNewEngine_UnknownStrategyFallsBack(t *testing.T) {
	e := NewEngine("whatever")
	assert.Equal(t, models.StrategyFirstMatch, e.Strategy())
}

func TestApply_NoMatchLeavesBaseUntouched(t *testing.T) {
	e := NewEngine(models.StrategyFirstMatch)
	r := rule("r1", 1, 1, []models.RuleCondition{
		{Field: "issue.toolName", Operator: models.OpEquals, Value: "eslint"},
	}, adjust(2))

	base := basePrioritization(5)
	got := e.Apply(models.Issue{ID: "i1", ToolName: "golangci-lint"}, base, []*models.PrioritizationRule{r}, nil)

	assert.Equal(t, base, got)
}

func TestApply_DisabledRulesAreInvisible(t *testing.T) {
	e := NewEngine(models.StrategyFirstMatch)
	r := rule("r1", 1, 1, securityCondition(), adjust(3))
	r.Enabled = false

	base := basePrioritization(5)
	got := e.Apply(models.Issue{ID: "i1"}, base, Enabled([]*models.PrioritizationRule{r}), nil)

	assert.Equal(t, base, got)
	assert.Equal(t, int64(0), r.Metadata.ApplicationCount)
}

func TestApply_AdjustScoreScalesByWeight(t *testing.T) {
	e := NewEngine(models.StrategyFirstMatch)
	r := rule("r1", 0.5, 1, securityCondition(), adjust(2))

	got := e.Apply(models.Issue{ID: "i1"}, basePrioritization(5), []*models.PrioritizationRule{r}, nil)

	assert.Equal(t, 6.0, got.FinalScore)
}

func TestApply_SetPriorityIgnoresWeight(t *testing.T) {
	e := NewEngine(models.StrategyFirstMatch)
	r := rule("r1", 0.2, 1, securityCondition(), []models.RuleAction{
		{Type: models.ActionSetPriority, Priority: 9},
	})

	got := e.Apply(models.Issue{ID: "i1"}, basePrioritization(3), []*models.PrioritizationRule{r}, nil)

	assert.Equal(t, 9.0, got.FinalScore, "setPriority is an overwrite, not weighted")
}

func TestApply_SkipTriage(t *testing.T) {
	e := NewEngine(models.StrategyFirstMatch)
	r := rule("r1", 1, 1, securityCondition(), []models.RuleAction{
		{Type: models.ActionSkipTriage},
	})

	got := e.Apply(models.Issue{ID: "i1"}, basePrioritization(7), []*models.PrioritizationRule{r}, nil)

	assert.Equal(t, models.ActionIgnore, got.Suggestion.Action)
	assert.Equal(t, "Skipped by rule", got.Suggestion.Reasoning)
}

func TestApply_CustomActionOverwritesOnlySetFields(t *testing.T) {
	e := NewEngine(models.StrategyFirstMatch)
	r := rule("r1", 1, 1, securityCondition(), []models.RuleAction{
		{Type: models.ActionCustomAction, Assignee: "platform-team"},
	})

	base := basePrioritization(5)
	got := e.Apply(models.Issue{ID: "i1"}, base, []*models.PrioritizationRule{r}, nil)

	assert.Equal(t, "platform-team", got.Suggestion.Assignee)
	assert.Equal(t, base.Suggestion.Action, got.Suggestion.Action, "unset fields keep their values")
	assert.Equal(t, base.Suggestion.Reasoning, got.Suggestion.Reasoning)
}

func TestApply_ResultStaysBoundedAndRounded(t *testing.T) {
	e := NewEngine(models.StrategyFirstMatch)

	up := rule("up", 1, 1, securityCondition(), adjust(100))
	got := e.Apply(models.Issue{ID: "i1"}, basePrioritization(9), []*models.PrioritizationRule{up}, nil)
	assert.Equal(t, 10.0, got.FinalScore)

	down := rule("down", 1, 1, securityCondition(), adjust(-100))
	got = e.Apply(models.Issue{ID: "i1"}, basePrioritization(2), []*models.PrioritizationRule{down}, nil)
	assert.Equal(t, 1.0, got.FinalScore)
}

func TestApply_FirstMatchUsesLowestPriorityOrdinal(t *testing.T) {
	e := NewEngine(models.StrategyFirstMatch)
	rules := []*models.PrioritizationRule{
		rule("late", 1, 5, securityCondition(), adjust(1)),
		rule("early", 1, 1, securityCondition(), adjust(3)),
	}

	got := e.Apply(models.Issue{ID: "i1"}, basePrioritization(4), rules, nil)

	assert.Equal(t, 7.0, got.FinalScore, "only the lowest-ordinal rule applies")
}

func TestApply_HighestWeightWins(t *testing.T) {
	e := NewEngine(models.StrategyHighestWeight)
	rules := []*models.PrioritizationRule{
		rule("light", 0.3, 1, securityCondition(), adjust(1)),
		rule("heavy", 0.9, 9, securityCondition(), adjust(2)),
	}

	got := e.Apply(models.Issue{ID: "i1"}, basePrioritization(4), rules, nil)

	assert.InDelta(t, 4+0.9*2, got.FinalScore, 0.01)
}

func TestApply_CombineAppliesAllByWeight(t *testing.T) {
	e := NewEngine(models.StrategyCombine)
	rules := []*models.PrioritizationRule{
		rule("a", 0.5, 1, securityCondition(), adjust(2)),
		rule("b", 1.0, 2, securityCondition(), adjust(1)),
	}
	tally := NewTally()

	got := e.Apply(models.Issue{ID: "i1"}, basePrioritization(4), rules, tally)

	assert.Equal(t, 6.0, got.FinalScore, "both rules fold in")
	counts := tally.Counts()
	assert.Equal(t, int64(1), counts["a"])
	assert.Equal(t, int64(1), counts["b"])
}

func TestApply_CombineOrderIndependentForNonConflictingRules(t *testing.T) {
	e := NewEngine(models.StrategyCombine)
	r1 := rule("r1", 0.5, 1, securityCondition(), adjust(2))
	r2 := rule("r2", 0.8, 2, []models.RuleCondition{
		{Field: "issue.toolName", Operator: models.OpEquals, Value: "gosec"},
	}, adjust(1))
	r3 := rule("r3", 0.3, 3, securityCondition(), adjust(0.5))

	issue := models.Issue{ID: "i1", ToolName: "gosec"}
	permutations := [][]*models.PrioritizationRule{
		{r1, r2, r3},
		{r3, r1, r2},
		{r2, r3, r1},
		{r3, r2, r1},
	}

	var scores []float64
	for _, ruleset := range permutations {
		got := e.Apply(issue, basePrioritization(4), ruleset, nil)
		scores = append(scores, got.FinalScore)
	}

	for i := 1; i < len(scores); i++ {
		assert.Equal(t, scores[0], scores[i], "input order must not change the combined score")
	}
	assert.Greater(t, scores[0], 4.0)
}

func TestApplyRules_BatchMergesTallyOnce(t *testing.T) {
	e := NewEngine(models.StrategyFirstMatch)
	r := rule("r1", 1, 1, securityCondition(), adjust(1))
	ruleset := []*models.PrioritizationRule{r}

	issues := []models.Issue{{ID: "i1"}, {ID: "i2"}, {ID: "i3"}}
	base := []models.IssuePrioritization{basePrioritization(4), basePrioritization(5), basePrioritization(6)}

	out := e.ApplyRules(issues, ruleset, base)

	require.Len(t, out, 3)
	assert.Equal(t, int64(3), r.Metadata.ApplicationCount)
	require.NotNil(t, r.Metadata.LastApplied)
	assert.WithinDuration(t, time.Now(), *r.Metadata.LastApplied, time.Minute)
}

func TestTally_ConcurrentRecord(t *testing.T) {
	tally := NewTally()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tally.Record("r1")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), tally.Counts()["r1"])
}

func TestTally_MergeResetsCounts(t *testing.T) {
	tally := NewTally()
	tally.Record("r1")
	r := rule("r1", 1, 1, securityCondition(), adjust(1))

	tally.Merge([]*models.PrioritizationRule{r}, time.Now())
	assert.Equal(t, int64(1), r.Metadata.ApplicationCount)

	tally.Merge([]*models.PrioritizationRule{r}, time.Now())
	assert.Equal(t, int64(1), r.Metadata.ApplicationCount, "second merge has nothing to add")
}

func TestMatchCondition(t *testing.T) {
	issue := models.Issue{
		ID:       "i1",
		Type:     models.IssueTypeError,
		ToolName: "golangci-lint",
		FilePath: "internal/auth/token.go",
		Message:  "possible SQL injection",
		Fixable:  true,
		Score:    7.5,
	}
	p := basePrioritization(6.5)
	p.Context = models.IssueContext{Criticality: models.CriticalityHigh, BusinessDomain: "auth"}

	tests := []struct {
		name string
		cond models.RuleCondition
		want bool
	}{
		{"equals string", models.RuleCondition{Field: "issue.toolName", Operator: models.OpEquals, Value: "golangci-lint"}, true},
		{"equals is case-insensitive by default", models.RuleCondition{Field: "issue.message", Operator: models.OpContains, Value: "sql injection"}, true},
		{"case sensitive miss", models.RuleCondition{Field: "issue.message", Operator: models.OpContains, Value: "sql injection", CaseSensitive: true}, false},
		{"startsWith", models.RuleCondition{Field: "issue.filePath", Operator: models.OpStartsWith, Value: "internal/"}, true},
		{"endsWith", models.RuleCondition{Field: "issue.filePath", Operator: models.OpEndsWith, Value: "_test.go"}, false},
		{"regex match", models.RuleCondition{Field: "issue.filePath", Operator: models.OpRegex, Value: `auth/.*\.go$`}, true},
		{"invalid regex is a non-match", models.RuleCondition{Field: "issue.filePath", Operator: models.OpRegex, Value: `([`}, false},
		{"gt numeric", models.RuleCondition{Field: "issue.score", Operator: models.OpGT, Value: "7"}, true},
		{"lte numeric", models.RuleCondition{Field: "finalScore", Operator: models.OpLTE, Value: "6.5"}, true},
		{"numeric op on string field", models.RuleCondition{Field: "issue.toolName", Operator: models.OpGT, Value: "1"}, false},
		{"numeric op with bad value", models.RuleCondition{Field: "issue.score", Operator: models.OpGT, Value: "seven"}, false},
		{"numeric equals", models.RuleCondition{Field: "suggestion.priority", Operator: models.OpEquals, Value: "6"}, true},
		{"fixable as string", models.RuleCondition{Field: "issue.fixable", Operator: models.OpEquals, Value: "true"}, true},
		{"unknown field", models.RuleCondition{Field: "issue.nope", Operator: models.OpEquals, Value: "x"}, false},
		{"criticality", models.RuleCondition{Field: "context.criticality", Operator: models.OpEquals, Value: "high"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchCondition(tt.cond, issue, &p))
		})
	}
}

func TestMatches_AllConditionsMustHold(t *testing.T) {
	issue := models.Issue{ID: "i1", ToolName: "eslint", Score: 8}
	p := basePrioritization(7)

	r := rule("r1", 1, 1, []models.RuleCondition{
		{Field: "issue.toolName", Operator: models.OpEquals, Value: "eslint"},
		{Field: "issue.score", Operator: models.OpGTE, Value: "9"},
	}, adjust(1))

	assert.False(t, matches(r, issue, &p), "one failing condition fails the rule")

	r.Conditions[1].Value = "8"
	assert.True(t, matches(r, issue, &p))
}
