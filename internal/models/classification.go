package models

// Category is the predicted kind of work an issue represents.
type Category string

const (
	CategoryBug             Category = "bug"
	CategoryPerformance     Category = "performance"
	CategorySecurity        Category = "security"
	CategoryMaintainability Category = "maintainability"
	CategoryDocumentation   Category = "documentation"
	CategoryFeature         Category = "feature"
)

// Categories lists all valid categories in a fixed order, used for
// confusion matrices and per-category metrics.
var Categories = []Category{
	CategoryBug,
	CategoryPerformance,
	CategorySecurity,
	CategoryMaintainability,
	CategoryDocumentation,
	CategoryFeature,
}

// Severity is the predicted urgency of an issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ClassificationFeatures are the six normalized inputs to the predictive
// model. Every field is in [0,1].
type ClassificationFeatures struct {
	CodeComplexity      float64 `json:"codeComplexity"`
	ChangeFrequency     float64 `json:"changeFrequency"`
	TeamImpact          float64 `json:"teamImpact"`
	UserFacingImpact    float64 `json:"userFacingImpact"`
	BusinessCriticality float64 `json:"businessCriticality"`
	TechnicalDebtImpact float64 `json:"technicalDebtImpact"`
}

// IssueClassification is the model's prediction for a single issue.
// Confidence is always clamped to [0.1, 1.0]; category and severity are
// always one of the enumerated values.
type IssueClassification struct {
	Category   Category               `json:"category"`
	Severity   Severity               `json:"severity"`
	Confidence float64                `json:"confidence"`
	Features   ClassificationFeatures `json:"features"`
}

// TrainingSample pairs an issue's features with its observed outcome,
// collected by a feedback collaborator.
type TrainingSample struct {
	ID       string                 `json:"id"`
	Features ClassificationFeatures `json:"features"`
	Outcome  Category               `json:"outcome"`
	Severity Severity               `json:"severity,omitempty"`
}

// CategoryMetrics holds per-category evaluation results.
type CategoryMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ModelMetrics is the result of training or evaluating a model.
type ModelMetrics struct {
	Accuracy    float64                      `json:"accuracy"`
	PerCategory map[Category]CategoryMetrics `json:"perCategory"`
	// Confusion[actual][predicted] counts evaluation outcomes over the
	// six fixed categories.
	Confusion map[Category]map[Category]int `json:"confusionMatrix"`
	Samples   int                           `json:"samples"`
}
