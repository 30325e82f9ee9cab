package models

import "time"

// Operator compares a prioritization field against a condition value.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
	OpRegex      Operator = "regex"
	OpGT         Operator = "gt"
	OpLT         Operator = "lt"
	OpGTE        Operator = "gte"
	OpLTE        Operator = "lte"
)

// Operators lists every valid condition operator.
var Operators = []Operator{
	OpEquals, OpContains, OpStartsWith, OpEndsWith, OpRegex,
	OpGT, OpLT, OpGTE, OpLTE,
}

// RuleCondition is a single predicate over an issue's prioritization.
// Field uses dotted paths like "issue.filePath" or
// "classification.category".
type RuleCondition struct {
	Field         string   `json:"field"`
	Operator      Operator `json:"operator"`
	Value         string   `json:"value"`
	CaseSensitive bool     `json:"caseSensitive,omitempty"`
}

// ActionType identifies what a rule action does when its rule matches.
type ActionType string

const (
	ActionAdjustScore  ActionType = "adjustScore"
	ActionSetPriority  ActionType = "setPriority"
	ActionSkipTriage   ActionType = "skipTriage"
	ActionCustomAction ActionType = "customAction"
)

// RuleAction is one effect of a matching rule. The parameter fields form
// a closed union keyed by Type: adjustScore uses Adjustment, setPriority
// uses Priority, skipTriage has no parameters, customAction may set any
// of TriageAction/Reasoning/Assignee.
type RuleAction struct {
	Type         ActionType   `json:"type"`
	Adjustment   float64      `json:"adjustment,omitempty"`
	Priority     float64      `json:"priority,omitempty"`
	TriageAction TriageAction `json:"triageAction,omitempty"`
	Reasoning    string       `json:"reasoning,omitempty"`
	Assignee     string       `json:"assignee,omitempty"`
}

// RuleMetadata tracks rule provenance and usage. ApplicationCount and
// LastApplied are the only fields the engine mutates.
type RuleMetadata struct {
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	Author           string     `json:"author,omitempty"`
	Version          string     `json:"version"`
	ApplicationCount int64      `json:"applicationCount"`
	LastApplied      *time.Time `json:"lastApplied,omitempty"`
	Effectiveness    float64    `json:"effectiveness,omitempty"`
}

// PrioritizationRule is a user-authored override: when every condition
// matches an issue (AND semantics), each action is applied in order.
type PrioritizationRule struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Conditions  []RuleCondition `json:"conditions"`
	Actions     []RuleAction    `json:"actions"`
	Weight      float64         `json:"weight"`   // [0,1]
	Priority    int             `json:"priority"` // tie-break ordinal
	Enabled     bool            `json:"enabled"`
	Metadata    RuleMetadata    `json:"metadata"`
}

// ConflictStrategy decides how multiple matching rules combine.
type ConflictStrategy string

const (
	StrategyFirstMatch    ConflictStrategy = "first-match"
	StrategyHighestWeight ConflictStrategy = "highest-weight"
	StrategyCombine       ConflictStrategy = "combine"
)

// RuleConflict reports a pair of rules whose effects oppose each other.
// Output of static analysis over a ruleset, not persisted state.
type RuleConflict struct {
	RuleID1     string   `json:"ruleId1"`
	RuleID2     string   `json:"ruleId2"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Suggestion  string   `json:"suggestion"`
}

// ValidationResult is returned (never raised) by rule validation.
// Warnings leave the rule usable; errors make it unusable.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// TriageRuleRecommendation is a candidate rule surfaced to a
// rule-authoring UI, with the rationale for suggesting it.
type TriageRuleRecommendation struct {
	Rule       PrioritizationRule `json:"rule"`
	Rationale  string             `json:"rationale"`
	Confidence float64            `json:"confidence"`
}
