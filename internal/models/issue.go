package models

// IssueType is the severity class reported by the originating tool.
type IssueType string

const (
	IssueTypeError   IssueType = "error"
	IssueTypeWarning IssueType = "warning"
	IssueTypeInfo    IssueType = "info"
)

// Issue is a single finding reported by an external analysis tool
// (lint, type check, test). Issues are read-only inputs to the engine.
type Issue struct {
	ID         string    `json:"id"`
	Type       IssueType `json:"type"`
	ToolName   string    `json:"toolName"`
	FilePath   string    `json:"filePath"`
	LineNumber int       `json:"lineNumber"`
	Message    string    `json:"message"`
	RuleID     string    `json:"ruleId,omitempty"`
	Suggestion string    `json:"suggestion,omitempty"`
	Fixable    bool      `json:"fixable"`
	Score      float64   `json:"score"` // raw tool score, 1-10
}
