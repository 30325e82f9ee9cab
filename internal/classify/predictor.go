package classify

import "github.com/menoncello/triage/internal/models"

// Predictor maps classification features to a category, severity, and
// confidence. Implementations must be safe for concurrent use; a real
// statistical model can replace the default heuristic without touching
// scoring, rules, or workflow code.
type Predictor interface {
	Predict(f models.ClassificationFeatures) (models.Category, models.Severity, float64)
	Version() string
}

// HeuristicPredictor is the default model: an ordered list of decision
// buckets over the six features. The first matching bucket wins; the
// ordering is load-bearing and must not be rearranged, since downstream
// consumers depend on stable outputs for identical inputs.
type HeuristicPredictor struct{}

// NewHeuristicPredictor returns the default rule-ordered model.
func NewHeuristicPredictor() *HeuristicPredictor {
	return &HeuristicPredictor{}
}

// Version identifies the heuristic model revision.
func (p *HeuristicPredictor) Version() string { return "heuristic-v1" }

// Predict walks the decision buckets in order and returns the first match.
func (p *HeuristicPredictor) Predict(f models.ClassificationFeatures) (models.Category, models.Severity, float64) {
	switch {
	case f.BusinessCriticality > 0.8 && (f.UserFacingImpact > 0.7 || f.TeamImpact > 0.7):
		return models.CategorySecurity, models.SeverityCritical, 0.9
	case f.CodeComplexity < 0.3 && f.TechnicalDebtImpact < 0.3 && f.TeamImpact < 0.3:
		return models.CategoryDocumentation, models.SeverityLow, 0.8
	case f.UserFacingImpact > 0.4 || f.CodeComplexity > 0.5:
		return models.CategoryPerformance, models.SeverityHigh, 0.8
	case f.CodeComplexity > 0.6 || f.TechnicalDebtImpact > 0.5:
		return models.CategoryMaintainability, models.SeverityMedium, 0.75
	default:
		return models.CategoryBug, models.SeverityMedium, 0.7
	}
}
