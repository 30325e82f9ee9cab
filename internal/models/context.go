package models

// Criticality rates how important a component is to the business.
type Criticality string

const (
	CriticalityLow      Criticality = "low"
	CriticalityMedium   Criticality = "medium"
	CriticalityHigh     Criticality = "high"
	CriticalityCritical Criticality = "critical"
)

// ComplexityMetrics holds static-analysis complexity measurements for the
// code surrounding an issue.
type ComplexityMetrics struct {
	CyclomaticComplexity float64 `json:"cyclomaticComplexity"`
	CognitiveComplexity  float64 `json:"cognitiveComplexity"`
	LinesOfCode          int     `json:"linesOfCode"`
	Dependencies         int     `json:"dependencies"`
}

// IssueContext is the derived per-issue context used for classification and
// scoring. Built once per issue before classification; never mutated after.
type IssueContext struct {
	ProjectType    string            `json:"projectType"`
	FilePath       string            `json:"filePath"`
	ComponentType  string            `json:"componentType"`
	Criticality    Criticality       `json:"criticality"`
	TeamWorkflow   Workflow          `json:"teamWorkflow"`
	RecentChanges  bool              `json:"recentChanges"`
	BusinessDomain string            `json:"businessDomain,omitempty"`
	Complexity     ComplexityMetrics `json:"complexityMetrics"`
}
