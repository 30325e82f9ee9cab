package triage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menoncello/triage/internal/classify"
	"github.com/menoncello/triage/internal/models"
)

func testIssue(n int) models.Issue {
	types := []models.IssueType{models.IssueTypeError, models.IssueTypeWarning, models.IssueTypeInfo}
	return models.Issue{
		ID:       fmt.Sprintf("ISS-%d", n),
		Type:     types[n%len(types)],
		ToolName: "golangci-lint",
		FilePath: fmt.Sprintf("internal/service%d/handler.go", n%7),
		Message:  fmt.Sprintf("finding %d", n),
		Fixable:  n%2 == 0,
		Score:    float64(1 + n%10),
	}
}

func testIssues(n int) []models.Issue {
	issues := make([]models.Issue, n)
	for i := range issues {
		issues[i] = testIssue(i)
	}
	return issues
}

func kanbanProject() models.ProjectContext {
	return models.ProjectContext{
		Configuration: models.ProjectConfiguration{Name: "shop", ProjectType: "service"},
		Preferences:   models.TeamPreferences{Workflow: models.WorkflowKanban},
	}
}

func TestPrioritize_EmptyBatch(t *testing.T) {
	e := New(DefaultOptions())

	got, err := e.Prioritize(context.Background(), nil, nil, nil, kanbanProject())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPrioritize_ModelNotLoaded(t *testing.T) {
	e := NewWithClassifier(classify.NewWithPredictor(nil), DefaultOptions())

	_, err := e.Prioritize(context.Background(), testIssues(3), nil, nil, kanbanProject())
	assert.ErrorIs(t, err, classify.ErrModelNotLoaded)
}

func TestPrioritize_OnePerIssueInInputOrder(t *testing.T) {
	e := New(DefaultOptions())
	issues := testIssues(50)

	got, err := e.Prioritize(context.Background(), issues, nil, nil, kanbanProject())
	require.NoError(t, err)

	require.Len(t, got, len(issues))
	for i, p := range got {
		assert.Equal(t, issues[i].ID, p.IssueID, "results preserve input order")
		assert.NotEmpty(t, p.ID)
		assert.GreaterOrEqual(t, p.FinalScore, 1.0)
		assert.LessOrEqual(t, p.FinalScore, 10.0)
		assert.Greater(t, p.Metadata.ProcessingTime, time.Duration(0))
		assert.Equal(t, "weighted-multi-factor-v1", p.Metadata.Algorithm)
		assert.Equal(t, "heuristic-v1", p.Metadata.ModelVersion)
	}
}

func TestPrioritize_CompletionOrderStillCoversAllIssues(t *testing.T) {
	opts := DefaultOptions()
	opts.PreserveOrder = false
	e := New(opts)
	issues := testIssues(40)

	got, err := e.Prioritize(context.Background(), issues, nil, nil, kanbanProject())
	require.NoError(t, err)
	require.Len(t, got, len(issues))

	seen := make(map[string]bool, len(got))
	for _, p := range got {
		seen[p.IssueID] = true
	}
	assert.Len(t, seen, len(issues), "every issue appears exactly once")
}

func TestPrioritize_SuppliedContextsAreUsed(t *testing.T) {
	e := New(DefaultOptions())
	issues := testIssues(1)
	contexts := map[string]models.IssueContext{
		issues[0].ID: {
			FilePath:       issues[0].FilePath,
			ComponentType:  "api",
			Criticality:    models.CriticalityCritical,
			BusinessDomain: "payments",
		},
	}

	got, err := e.Prioritize(context.Background(), issues, contexts, nil, kanbanProject())
	require.NoError(t, err)
	assert.Equal(t, models.CriticalityCritical, got[0].Context.Criticality)
	assert.Equal(t, "payments", got[0].Context.BusinessDomain)
}

func TestPrioritize_Cancellation(t *testing.T) {
	e := New(DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Prioritize(ctx, testIssues(100), nil, nil, kanbanProject())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrioritize_RuleMetadataMergedOncePerBatch(t *testing.T) {
	opts := DefaultOptions()
	opts.CacheSize = 0 // every issue must hit the rule engine
	e := New(opts)

	r := &models.PrioritizationRule{
		ID:   "boost-errors",
		Name: "boost errors",
		Conditions: []models.RuleCondition{
			{Field: "issue.type", Operator: models.OpEquals, Value: "error"},
		},
		Actions: []models.RuleAction{{Type: models.ActionAdjustScore, Adjustment: 1}},
		Weight:  1,
		Enabled: true,
	}
	issues := testIssues(30) // every third issue is an error

	_, err := e.Prioritize(context.Background(), issues, nil, []*models.PrioritizationRule{r}, kanbanProject())
	require.NoError(t, err)

	assert.Equal(t, int64(10), r.Metadata.ApplicationCount)
	require.NotNil(t, r.Metadata.LastApplied)
}

func TestPrioritize_RuleApplicationsExposedForPersistence(t *testing.T) {
	opts := DefaultOptions()
	opts.CacheSize = 0
	e := New(opts)

	r := &models.PrioritizationRule{
		ID:   "boost-errors",
		Name: "boost errors",
		Conditions: []models.RuleCondition{
			{Field: "issue.type", Operator: models.OpEquals, Value: "error"},
		},
		Actions: []models.RuleAction{{Type: models.ActionAdjustScore, Adjustment: 1}},
		Weight:  1,
		Enabled: true,
	}

	_, err := e.Prioritize(context.Background(), testIssues(30), nil, []*models.PrioritizationRule{r}, kanbanProject())
	require.NoError(t, err)

	counts, at := e.RuleApplications()
	assert.Equal(t, int64(10), counts["boost-errors"])
	assert.False(t, at.IsZero())

	// The returned map is a copy; mutating it must not leak back.
	counts["boost-errors"] = 99
	again, _ := e.RuleApplications()
	assert.Equal(t, int64(10), again["boost-errors"])
}

func TestRuleApplications_EmptyBeforeAnyBatch(t *testing.T) {
	e := New(DefaultOptions())

	counts, at := e.RuleApplications()
	assert.Empty(t, counts)
	assert.True(t, at.IsZero())
}

func TestNewULID_UniqueUnderConcurrency(t *testing.T) {
	const goroutines, perGoroutine = 8, 2000

	var mu sync.Mutex
	seen := make(map[string]struct{}, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]string, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				ids = append(ids, newULID())
			}
			mu.Lock()
			for _, id := range ids {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestPrioritize_DisabledRuleNeverFires(t *testing.T) {
	e := New(DefaultOptions())
	r := &models.PrioritizationRule{
		ID:   "r1",
		Name: "r1",
		Conditions: []models.RuleCondition{
			{Field: "issue.toolName", Operator: models.OpEquals, Value: "golangci-lint"},
		},
		Actions: []models.RuleAction{{Type: models.ActionSetPriority, Priority: 10}},
		Weight:  1,
		Enabled: false,
	}

	withRule, err := e.Prioritize(context.Background(), testIssues(5), nil, []*models.PrioritizationRule{r}, kanbanProject())
	require.NoError(t, err)

	e2 := New(DefaultOptions())
	without, err := e2.Prioritize(context.Background(), testIssues(5), nil, nil, kanbanProject())
	require.NoError(t, err)

	for i := range withRule {
		assert.Equal(t, without[i].FinalScore, withRule[i].FinalScore)
	}
	assert.Equal(t, int64(0), r.Metadata.ApplicationCount)
}

func TestPrioritize_CacheHitOnRepeat(t *testing.T) {
	e := New(DefaultOptions())
	issues := testIssues(10)
	project := kanbanProject()

	first, err := e.Prioritize(context.Background(), issues, nil, nil, project)
	require.NoError(t, err)

	second, err := e.Prioritize(context.Background(), issues, nil, nil, project)
	require.NoError(t, err)

	for i := range second {
		assert.True(t, second[i].Metadata.CacheHit, "repeat run should hit the cache")
		assert.Greater(t, second[i].Metadata.ProcessingTime, time.Duration(0))
		assert.Equal(t, first[i].FinalScore, second[i].FinalScore)
	}

	hits, misses := e.CacheStats()
	assert.Equal(t, int64(10), hits)
	assert.Equal(t, int64(10), misses)
}

func TestPrioritize_Idempotent(t *testing.T) {
	opts := DefaultOptions()
	opts.CacheSize = 0
	e := New(opts)
	issues := testIssues(20)
	project := kanbanProject()

	first, err := e.Prioritize(context.Background(), issues, nil, nil, project)
	require.NoError(t, err)
	second, err := e.Prioritize(context.Background(), issues, nil, nil, project)
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, first[i].FinalScore, second[i].FinalScore)
		assert.Equal(t, first[i].Suggestion.Action, second[i].Suggestion.Action)
		assert.Equal(t, first[i].Classification, second[i].Classification)
	}
}

func TestPrioritize_LargeBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 10k-issue batch in short mode")
	}

	e := New(DefaultOptions())
	issues := testIssues(10000)

	got, err := e.Prioritize(context.Background(), issues, nil, nil, kanbanProject())
	require.NoError(t, err)

	require.Len(t, got, len(issues))
	for i, p := range got {
		if p.IssueID != issues[i].ID {
			t.Fatalf("result %d: got issue %s, want %s", i, p.IssueID, issues[i].ID)
		}
		if p.FinalScore < 1 || p.FinalScore > 10 {
			t.Fatalf("result %d: score %.1f out of range", i, p.FinalScore)
		}
		if p.Metadata.ProcessingTime <= 0 {
			t.Fatalf("result %d: missing processing time", i)
		}
	}
}

func TestBuildContext(t *testing.T) {
	project := kanbanProject()

	tests := []struct {
		name        string
		issue       models.Issue
		component   string
		criticality models.Criticality
		domain      string
	}{
		{
			name:        "auth path is critical",
			issue:       models.Issue{ID: "i1", FilePath: "internal/auth/token.go"},
			component:   "core",
			criticality: models.CriticalityCritical,
			domain:      "auth",
		},
		{
			name:        "frontend component",
			issue:       models.Issue{ID: "i2", FilePath: "src/ui/cart.tsx"},
			component:   "frontend",
			criticality: models.CriticalityLow,
		},
		{
			name:        "severe error is high criticality",
			issue:       models.Issue{ID: "i3", FilePath: "internal/api/orders.go", Type: models.IssueTypeError, Score: 8},
			component:   "api",
			criticality: models.CriticalityHigh,
		},
		{
			name:        "plain error is medium",
			issue:       models.Issue{ID: "i4", FilePath: "pkg/util/strings.go", Type: models.IssueTypeError, Score: 3},
			component:   "core",
			criticality: models.CriticalityMedium,
		},
		{
			name:        "docs file",
			issue:       models.Issue{ID: "i5", FilePath: "docs/setup.md"},
			component:   "docs",
			criticality: models.CriticalityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := BuildContext(tt.issue, project)
			assert.Equal(t, tt.component, ctx.ComponentType)
			assert.Equal(t, tt.criticality, ctx.Criticality)
			assert.Equal(t, tt.domain, ctx.BusinessDomain)
			assert.Equal(t, models.WorkflowKanban, ctx.TeamWorkflow)
			assert.Equal(t, tt.issue.FilePath, ctx.FilePath)
		})
	}
}
