package models

import "time"

// Workflow is the team's process model.
type Workflow string

const (
	WorkflowScrum     Workflow = "scrum"
	WorkflowKanban    Workflow = "kanban"
	WorkflowWaterfall Workflow = "waterfall"
	WorkflowCustom    Workflow = "custom"
)

// Sprint describes the team's current iteration. Optional; scrum
// adaptation degrades to a pass-through when absent.
type Sprint struct {
	Number      int       `json:"number"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Capacity    float64   `json:"capacity"`    // total hours available
	CurrentLoad float64   `json:"currentLoad"` // hours already committed
	Goals       []string  `json:"goals"`
}

// TeamPreferences captures how the team wants issues weighted and
// scheduled.
type TeamPreferences struct {
	Workflow      Workflow             `json:"workflow"`
	Priorities    map[Category]float64 `json:"priorities"` // per-category weight
	WorkingHours  float64              `json:"workingHours"`
	SprintLength  int                  `json:"sprintLength"` // days
	CurrentSprint *Sprint              `json:"currentSprint,omitempty"`
}

// HistoricalData summarizes past team performance, used for effort
// estimation and rule optimization.
type HistoricalData struct {
	AverageResolutionTime float64            `json:"averageResolutionTime"` // hours
	CommonIssueTypes      []string           `json:"commonIssueTypes"`
	TeamVelocity          float64            `json:"teamVelocity"`
	BugRate               float64            `json:"bugRate"`
	Performance           map[string]float64 `json:"performance,omitempty"`
}

// ProjectConfiguration identifies the project being triaged.
type ProjectConfiguration struct {
	Name        string `json:"name"`
	ProjectType string `json:"projectType"`
	RootPath    string `json:"rootPath,omitempty"`
}

// ProjectContext is the per-invocation environment for a triage run.
// Read-only to the engine.
type ProjectContext struct {
	Configuration ProjectConfiguration `json:"projectConfiguration"`
	Preferences   TeamPreferences      `json:"teamPreferences"`
	Historical    HistoricalData       `json:"historicalData"`
}
