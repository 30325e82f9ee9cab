package triage

import (
	"strings"

	"github.com/menoncello/triage/internal/models"
)

// BuildContext derives an issue's context from the issue and the project
// environment. Callers with richer information (component maps, change
// history) can supply their own contexts instead.
func BuildContext(issue models.Issue, project models.ProjectContext) models.IssueContext {
	path := strings.ToLower(issue.FilePath)
	return models.IssueContext{
		ProjectType:    project.Configuration.ProjectType,
		FilePath:       issue.FilePath,
		ComponentType:  componentFromPath(path),
		Criticality:    criticalityFromPath(path, issue),
		TeamWorkflow:   project.Preferences.Workflow,
		RecentChanges:  false,
		BusinessDomain: domainFromPath(path),
		Complexity:     models.ComplexityMetrics{},
	}
}

func componentFromPath(path string) string {
	switch {
	case strings.Contains(path, "/ui/"), strings.Contains(path, "/frontend/"),
		strings.Contains(path, "/components/"), strings.Contains(path, "/pages/"):
		return "frontend"
	case strings.Contains(path, "/api/"), strings.Contains(path, "/handlers/"),
		strings.Contains(path, "/routes/"):
		return "api"
	case strings.Contains(path, "/cmd/"), strings.Contains(path, "/cli/"):
		return "cli"
	case strings.Contains(path, "/docs/"), strings.HasSuffix(path, ".md"):
		return "docs"
	default:
		return "core"
	}
}

func criticalityFromPath(path string, issue models.Issue) models.Criticality {
	switch {
	case strings.Contains(path, "security") || strings.Contains(path, "auth") ||
		strings.Contains(path, "payment"):
		return models.CriticalityCritical
	case issue.Type == models.IssueTypeError && issue.Score >= 7:
		return models.CriticalityHigh
	case issue.Type == models.IssueTypeError:
		return models.CriticalityMedium
	default:
		return models.CriticalityLow
	}
}

func domainFromPath(path string) string {
	for _, domain := range []string{"security", "payments", "billing", "auth", "data"} {
		if strings.Contains(path, domain) {
			return domain
		}
	}
	return ""
}
