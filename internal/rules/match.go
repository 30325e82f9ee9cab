package rules

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/menoncello/triage/internal/models"
)

// fieldValue is a resolved condition field: the string form always set,
// the numeric form only for numeric fields.
type fieldValue struct {
	str     string
	num     float64
	numeric bool
}

// resolveField looks up a dotted condition path against an issue and its
// prioritization. Unknown fields resolve to nothing, which makes the
// condition a non-match rather than an error.
func resolveField(field string, issue models.Issue, p *models.IssuePrioritization) (fieldValue, bool) {
	switch field {
	case "issue.id":
		return strVal(issue.ID), true
	case "issue.type":
		return strVal(string(issue.Type)), true
	case "issue.toolName":
		return strVal(issue.ToolName), true
	case "issue.filePath":
		return strVal(issue.FilePath), true
	case "issue.message":
		return strVal(issue.Message), true
	case "issue.ruleId":
		return strVal(issue.RuleID), true
	case "issue.fixable":
		return strVal(strconv.FormatBool(issue.Fixable)), true
	case "issue.score":
		return numVal(issue.Score), true
	case "issue.lineNumber":
		return numVal(float64(issue.LineNumber)), true
	case "context.projectType":
		return strVal(p.Context.ProjectType), true
	case "context.filePath":
		return strVal(p.Context.FilePath), true
	case "context.componentType":
		return strVal(p.Context.ComponentType), true
	case "context.criticality":
		return strVal(string(p.Context.Criticality)), true
	case "context.businessDomain":
		return strVal(p.Context.BusinessDomain), true
	case "context.teamWorkflow":
		return strVal(string(p.Context.TeamWorkflow)), true
	case "classification.category":
		return strVal(string(p.Classification.Category)), true
	case "classification.severity":
		return strVal(string(p.Classification.Severity)), true
	case "classification.confidence":
		return numVal(p.Classification.Confidence), true
	case "finalScore":
		return numVal(p.FinalScore), true
	case "severityScore":
		return numVal(p.SeverityScore), true
	case "impactScore":
		return numVal(p.ImpactScore), true
	case "effortScore":
		return numVal(p.EffortScore), true
	case "businessValueScore":
		return numVal(p.BusinessValue), true
	case "suggestion.action":
		return strVal(string(p.Suggestion.Action)), true
	case "suggestion.priority":
		return numVal(float64(p.Suggestion.Priority)), true
	}
	return fieldValue{}, false
}

func strVal(s string) fieldValue { return fieldValue{str: s} }

func numVal(n float64) fieldValue {
	return fieldValue{str: strconv.FormatFloat(n, 'f', -1, 64), num: n, numeric: true}
}

// matches evaluates every condition of the rule (AND semantics). Any
// failure inside a single condition, including a regex that does not
// compile, counts as a non-match and never aborts the batch.
func matches(rule *models.PrioritizationRule, issue models.Issue, p *models.IssuePrioritization) bool {
	for _, cond := range rule.Conditions {
		if !matchCondition(cond, issue, p) {
			return false
		}
	}
	return true
}

func matchCondition(cond models.RuleCondition, issue models.Issue, p *models.IssuePrioritization) bool {
	fv, ok := resolveField(cond.Field, issue, p)
	if !ok {
		return false
	}

	switch cond.Operator {
	case models.OpGT, models.OpLT, models.OpGTE, models.OpLTE:
		if !fv.numeric {
			return false
		}
		want, err := strconv.ParseFloat(cond.Value, 64)
		if err != nil {
			return false
		}
		switch cond.Operator {
		case models.OpGT:
			return fv.num > want
		case models.OpLT:
			return fv.num < want
		case models.OpGTE:
			return fv.num >= want
		default:
			return fv.num <= want
		}
	case models.OpRegex:
		re, err := regexp.Compile(cond.Value)
		if err != nil {
			return false
		}
		return re.MatchString(fv.str)
	}

	have, want := fv.str, cond.Value
	if !cond.CaseSensitive {
		have = strings.ToLower(have)
		want = strings.ToLower(want)
	}

	switch cond.Operator {
	case models.OpEquals:
		if fv.numeric {
			if n, err := strconv.ParseFloat(cond.Value, 64); err == nil {
				return fv.num == n
			}
		}
		return have == want
	case models.OpContains:
		return strings.Contains(have, want)
	case models.OpStartsWith:
		return strings.HasPrefix(have, want)
	case models.OpEndsWith:
		return strings.HasSuffix(have, want)
	}
	return false
}
