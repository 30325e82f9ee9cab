package models

import "time"

// TriageAction is the recommended next step for an issue.
type TriageAction string

const (
	ActionFixNow   TriageAction = "fix-now"
	ActionSchedule TriageAction = "schedule"
	ActionDelegate TriageAction = "delegate"
	ActionMonitor  TriageAction = "monitor"
	ActionIgnore   TriageAction = "ignore"
)

// ScoringFactors records the weights and multipliers actually applied to
// an issue, for auditability. Never reused as input.
type ScoringFactors struct {
	SeverityWeight      float64 `json:"severityWeight"`
	ImpactWeight        float64 `json:"impactWeight"`
	EffortWeight        float64 `json:"effortWeight"`
	BusinessValueWeight float64 `json:"businessValueWeight"`
	ContextMultiplier   float64 `json:"contextMultiplier"`
	ClassificationBonus float64 `json:"classificationBonus"`
	WorkflowAdjustment  float64 `json:"workflowAdjustment"`
}

// TriageSuggestion is the actionable recommendation for one issue.
type TriageSuggestion struct {
	Action          TriageAction `json:"action"`
	Priority        int          `json:"priority"`        // 1-10
	EstimatedEffort float64      `json:"estimatedEffort"` // hours, >0
	Assignee        string       `json:"assignee,omitempty"`
	Deadline        *time.Time   `json:"deadline,omitempty"`
	Reasoning       string       `json:"reasoning"`
	Confidence      float64      `json:"confidence"`
}

// PrioritizationMetadata records how a prioritization was produced.
type PrioritizationMetadata struct {
	ProcessedAt    time.Time     `json:"processedAt"`
	Algorithm      string        `json:"algorithm"`
	ModelVersion   string        `json:"modelVersion"`
	ProcessingTime time.Duration `json:"processingTime"`
	CacheHit       bool          `json:"cacheHit"`
}

// IssuePrioritization is the aggregate result for one issue. Created once
// per (issue, ruleset, workflow) combination; immutable once returned,
// superseded rather than mutated by re-prioritization.
type IssuePrioritization struct {
	ID             string                 `json:"id"`
	IssueID        string                 `json:"issueId"`
	SeverityScore  float64                `json:"severityScore"`
	ImpactScore    float64                `json:"impactScore"`
	EffortScore    float64                `json:"effortScore"`
	BusinessValue  float64                `json:"businessValueScore"`
	FinalScore     float64                `json:"finalScore"` // [1,10], 1 decimal
	Context        IssueContext           `json:"context"`
	Classification IssueClassification    `json:"classification"`
	Suggestion     TriageSuggestion       `json:"triageSuggestion"`
	Factors        ScoringFactors         `json:"scoringFactors"`
	Metadata       PrioritizationMetadata `json:"metadata"`
}

// OutcomeStatus is how the team responded to a triage suggestion.
type OutcomeStatus string

const (
	OutcomeAccepted OutcomeStatus = "accepted"
	OutcomeRejected OutcomeStatus = "rejected"
	OutcomeModified OutcomeStatus = "modified"
)

// TriageOutcome is feedback recorded after a suggestion was acted on.
type TriageOutcome struct {
	IssueID        string        `json:"issueId"`
	Status         OutcomeStatus `json:"status"`
	ActualAction   TriageAction  `json:"actualAction,omitempty"`
	ResolutionTime float64       `json:"resolutionTime,omitempty"` // hours
	Successful     bool          `json:"successful"`
	RecordedAt     time.Time     `json:"recordedAt"`
}

// TriageEffectivenessReport summarizes how well suggestions matched what
// the team actually did.
type TriageEffectivenessReport struct {
	Total           int      `json:"total"`
	Accepted        int      `json:"accepted"`
	Rejected        int      `json:"rejected"`
	Modified        int      `json:"modified"`
	Accuracy        float64  `json:"accuracy"`
	Recommendations []string `json:"recommendations"`
}
