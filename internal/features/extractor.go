// Package features derives normalized classification features from an
// issue and its surrounding context. Extraction is deterministic and
// side-effect free; missing inputs fall back to the context's zero values.
package features

import (
	"math"
	"strings"

	"github.com/menoncello/triage/internal/models"
)

// Extract computes the six classification features for an issue. Every
// feature is a weighted combination of context fields, clamped to [0,1].
func Extract(issue models.Issue, ctx models.IssueContext) models.ClassificationFeatures {
	return models.ClassificationFeatures{
		CodeComplexity:      codeComplexity(ctx.Complexity),
		ChangeFrequency:     changeFrequency(ctx),
		TeamImpact:          teamImpact(ctx),
		UserFacingImpact:    userFacingImpact(ctx),
		BusinessCriticality: businessCriticality(ctx),
		TechnicalDebtImpact: technicalDebtImpact(issue, ctx),
	}
}

// codeComplexity blends the four complexity metrics. Cyclomatic saturates
// at 20, cognitive at 15, dependencies at 50; lines of code are
// log10-normalized so a 10k-line file scores 1.0.
func codeComplexity(m models.ComplexityMetrics) float64 {
	v := 0.3*norm(m.CyclomaticComplexity, 20) +
		0.3*norm(m.CognitiveComplexity, 15) +
		0.2*logNorm(float64(m.LinesOfCode)) +
		0.2*norm(float64(m.Dependencies), 50)
	return clamp01(v)
}

// changeFrequency is driven by the recent-changes flag with a small bump
// for dependency-heavy code, which churns more in practice.
func changeFrequency(ctx models.IssueContext) float64 {
	v := 0.2
	if ctx.RecentChanges {
		v = 0.8
	}
	v += 0.1 * norm(float64(ctx.Complexity.Dependencies), 50)
	return clamp01(v)
}

// teamImpact scales with component criticality and how many other
// modules depend on the code.
func teamImpact(ctx models.IssueContext) float64 {
	v := 0.7*criticalityTier(ctx.Criticality) +
		0.3*norm(float64(ctx.Complexity.Dependencies), 50)
	return clamp01(v)
}

var userFacingComponents = map[string]float64{
	"ui":       0.9,
	"frontend": 0.9,
	"view":     0.8,
	"api":      0.7,
	"endpoint": 0.7,
	"cli":      0.6,
}

// userFacingImpact keys on the component type, falling back to file-path
// keywords when the component is not one of the known user-facing kinds.
func userFacingImpact(ctx models.IssueContext) float64 {
	if v, ok := userFacingComponents[strings.ToLower(ctx.ComponentType)]; ok {
		return v
	}
	path := strings.ToLower(ctx.FilePath)
	for _, kw := range []string{"/ui/", "/frontend/", "/views/", "/pages/", "/components/"} {
		if strings.Contains(path, kw) {
			return 0.8
		}
	}
	if strings.Contains(path, "/api/") || strings.Contains(path, "/handlers/") {
		return 0.6
	}
	return 0.2
}

var criticalDomains = map[string]float64{
	"security": 0.3,
	"payments": 0.3,
	"billing":  0.25,
	"auth":     0.25,
	"data":     0.15,
}

// businessCriticality combines the component's criticality tier with a
// bonus for domains where failures are expensive.
func businessCriticality(ctx models.IssueContext) float64 {
	v := criticalityTier(ctx.Criticality)
	if bonus, ok := criticalDomains[strings.ToLower(ctx.BusinessDomain)]; ok {
		v += bonus
	}
	return clamp01(v)
}

// technicalDebtImpact measures how much an unfixed issue compounds:
// complex code accrues debt faster, fixable issues accrue less.
func technicalDebtImpact(issue models.Issue, ctx models.IssueContext) float64 {
	v := 0.5*codeComplexity(ctx.Complexity) +
		0.3*logNorm(float64(ctx.Complexity.LinesOfCode)) +
		0.2*norm(issue.Score, 10)
	if issue.Fixable {
		v -= 0.1
	}
	return clamp01(v)
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

// norm maps v linearly onto [0,1], saturating at max.
func norm(v, max float64) float64 {
	if max <= 0 || v <= 0 {
		return 0
	}
	if v >= max {
		return 1
	}
	return v / max
}

// logNorm maps a line count onto [0,1] on a log10 scale: 10 lines ≈ 0.25,
// 1,000 ≈ 0.75, 10,000+ = 1.0.
func logNorm(v float64) float64 {
	if v <= 1 {
		return 0
	}
	return clamp01(math.Log10(v) / 4)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
