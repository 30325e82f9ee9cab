// Package scoring combines severity, impact, effort, and business-value
// sub-scores into a single bounded priority score and derives the base
// triage suggestion. All numeric inputs are clamped, never rejected.
package scoring

import (
	"math"

	"github.com/menoncello/triage/internal/models"
)

// AlgorithmID identifies this scoring implementation in result metadata.
const AlgorithmID = "weighted-multi-factor-v1"

// Weights are the configured sub-score weights. The caller keeps them
// normalized to sum to 1; the engine does not enforce it at runtime.
type Weights struct {
	Severity      float64 `json:"severity" mapstructure:"severity"`
	Impact        float64 `json:"impact" mapstructure:"impact"`
	Effort        float64 `json:"effort" mapstructure:"effort"`
	BusinessValue float64 `json:"businessValue" mapstructure:"business_value"`
}

// Config holds the tunable parts of the scoring algorithm.
type Config struct {
	Weights Weights
}

// DefaultConfig returns the standard weight distribution.
func DefaultConfig() Config {
	return Config{Weights: Weights{
		Severity:      0.35,
		Impact:        0.25,
		Effort:        0.15,
		BusinessValue: 0.25,
	}}
}

// Result is the full output of scoring one issue.
type Result struct {
	SeverityScore float64
	ImpactScore   float64
	EffortScore   float64
	BusinessValue float64
	FinalScore    float64 // [1,10], one decimal
	Factors       models.ScoringFactors
	Suggestion    models.TriageSuggestion
}

// Algorithm computes priority scores for classified issues.
type Algorithm struct {
	cfg Config
}

// New returns a scoring algorithm with the given configuration.
func New(cfg Config) *Algorithm {
	return &Algorithm{cfg: cfg}
}

// Score computes the final priority score, the factors applied, and the
// base triage suggestion for one issue. Pure: identical inputs always
// produce identical outputs.
func (a *Algorithm) Score(issue models.Issue, ctx models.IssueContext, cls models.IssueClassification, project models.ProjectContext) Result {
	severity := severityScore(issue, cls)
	impact := impactScore(ctx)
	effortHours := estimateEffort(issue, ctx, project)
	effort := effortScore(effortHours)
	businessValue := businessValueScore(ctx, cls, project)

	w := a.cfg.Weights
	weighted := severity*w.Severity + impact*w.Impact + effort*w.Effort + businessValue*w.BusinessValue

	ctxMult := contextMultiplier(ctx, project)
	clsBonus := classificationBonus(cls)
	wfAdj := workflowAdjustment(project.Preferences.Workflow)

	final := round1(clampScore(weighted*ctxMult*clsBonus + wfAdj))

	return Result{
		SeverityScore: severity,
		ImpactScore:   impact,
		EffortScore:   effort,
		BusinessValue: businessValue,
		FinalScore:    final,
		Factors: models.ScoringFactors{
			SeverityWeight:      w.Severity,
			ImpactWeight:        w.Impact,
			EffortWeight:        w.Effort,
			BusinessValueWeight: w.BusinessValue,
			ContextMultiplier:   ctxMult,
			ClassificationBonus: clsBonus,
			WorkflowAdjustment:  wfAdj,
		},
		Suggestion: suggest(final, effortHours, ctx, cls, project),
	}
}

// severityScore blends the issue-type severity with the classified
// severity, weighted by classification confidence: a confident model
// dominates, an unsure one defers to the tool's own signal.
func severityScore(issue models.Issue, cls models.IssueClassification) float64 {
	typeScore := (typeBase(issue.Type) + clampScore(issue.Score)) / 2
	clsScore := severityBase(cls.Severity)
	conf := clamp01(cls.Confidence)
	return clampScore(typeScore*(1-conf) + clsScore*conf)
}

func typeBase(t models.IssueType) float64 {
	switch t {
	case models.IssueTypeError:
		return 8
	case models.IssueTypeWarning:
		return 5
	default:
		return 2
	}
}

func severityBase(s models.Severity) float64 {
	switch s {
	case models.SeverityCritical:
		return 9.5
	case models.SeverityHigh:
		return 7.5
	case models.SeverityMedium:
		return 5
	default:
		return 2.5
	}
}

// impactScore measures blast radius: component criticality plus how many
// modules depend on the affected code.
func impactScore(ctx models.IssueContext) float64 {
	tier := criticalityTier(ctx.Criticality)
	deps := norm(float64(ctx.Complexity.Dependencies), 50)
	return clampScore(2 + 6*tier + 2*deps)
}

// estimateEffort predicts resolution hours from complexity metrics,
// blended with the team's historical average when available. Always > 0.
func estimateEffort(issue models.Issue, ctx models.IssueContext, project models.ProjectContext) float64 {
	m := ctx.Complexity
	hours := 0.5 + 0.2*math.Max(0, m.CyclomaticComplexity) +
		0.15*math.Max(0, m.CognitiveComplexity) +
		float64(m.LinesOfCode)/200
	if issue.Fixable {
		hours *= 0.5
	}
	if avg := project.Historical.AverageResolutionTime; avg > 0 {
		hours = 0.7*hours + 0.3*avg
	}
	if hours > 80 {
		hours = 80
	}
	if hours < 0.25 {
		hours = 0.25
	}
	return hours
}

// effortScore is inverse: quicker fixes score higher.
func effortScore(hours float64) float64 {
	return clampScore(10 - 0.9*hours)
}

// businessValueScore folds criticality, the team's per-category priority
// weight, and high-stakes business domains into one score.
func businessValueScore(ctx models.IssueContext, cls models.IssueClassification, project models.ProjectContext) float64 {
	v := 2 + 6*criticalityTier(ctx.Criticality)
	if w, ok := project.Preferences.Priorities[cls.Category]; ok && w > 0 {
		v *= clampRange(w, 0.5, 2)
	}
	switch ctx.BusinessDomain {
	case "security", "payments", "billing":
		v += 1.5
	case "auth", "data":
		v += 1
	}
	return clampScore(v)
}

// contextMultiplier folds sprint-goal relevance and team load into a
// factor in [0.5, 2.0]. Without a current sprint it is exactly 1.0.
func contextMultiplier(ctx models.IssueContext, project models.ProjectContext) float64 {
	sprint := project.Preferences.CurrentSprint
	if sprint == nil {
		return 1.0
	}

	mult := 1.0 + 0.15*float64(goalMatches(ctx, sprint.Goals))
	if mult > 1.5 {
		mult = 1.5
	}

	if sprint.Capacity > 0 {
		util := sprint.CurrentLoad / sprint.Capacity
		if util > 1 {
			util = 1
		}
		// A loaded team deflates new work, a free team inflates it.
		mult *= 1.1 - 0.4*util
	}
	return clampRange(mult, 0.5, 2.0)
}

// goalMatches counts sprint goals that mention the issue's component or
// business domain.
func goalMatches(ctx models.IssueContext, goals []string) int {
	matches := 0
	for _, goal := range goals {
		if keywordOverlap(goal, ctx) {
			matches++
		}
	}
	return matches
}

// classificationBonus scales the score by how confident the model is and
// how actionable the category tends to be. Bounded to [0.8, 1.5].
func classificationBonus(cls models.IssueClassification) float64 {
	bonus := 0.8 + 0.4*clamp01(cls.Confidence)
	switch cls.Category {
	case models.CategorySecurity:
		bonus += 0.2
	case models.CategoryBug, models.CategoryPerformance:
		bonus += 0.1
	case models.CategoryDocumentation:
		bonus -= 0.2
	}
	return clampRange(bonus, 0.8, 1.5)
}

// workflowAdjustment is a small additive term from the configured
// process model.
func workflowAdjustment(w models.Workflow) float64 {
	switch w {
	case models.WorkflowScrum:
		return 0.2
	case models.WorkflowKanban:
		return 0.1
	case models.WorkflowWaterfall:
		return -0.2
	default:
		return 0
	}
}

func criticalityTier(c models.Criticality) float64 {
	switch c {
	case models.CriticalityCritical:
		return 0.9
	case models.CriticalityHigh:
		return 0.7
	case models.CriticalityMedium:
		return 0.4
	default:
		return 0.2
	}
}

func norm(v, max float64) float64 {
	if max <= 0 || v <= 0 {
		return 0
	}
	if v >= max {
		return 1
	}
	return v / max
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func clampScore(v float64) float64 {
	return math.Max(1, math.Min(10, v))
}

func clampRange(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
