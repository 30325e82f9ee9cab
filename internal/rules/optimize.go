package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/menoncello/triage/internal/models"
)

const (
	// minEffectiveness is the cutoff below which a rule is dropped.
	minEffectiveness = 0.3

	// fastResolutionHours bounds what counts as a "fast" resolution when
	// judging a historical application successful.
	fastResolutionHours = 24
)

// HistoricalRecord is one completed triage: the issue, the
// prioritization the engine produced for it, and what the team did.
type HistoricalRecord struct {
	Issue          models.Issue
	Prioritization models.IssuePrioritization
	Outcome        models.TriageOutcome
}

// OptimizeRules replays each rule against historical issue data and
// recomputes its effectiveness: the fraction of applications whose
// outcome was successful and fast. Rules below the cutoff are dropped;
// the rest get their weight reset to the clamped effectiveness and a
// bumped patch version. Rules that never applied are kept unchanged, as
// there is no evidence either way.
func OptimizeRules(ruleset []*models.PrioritizationRule, history []HistoricalRecord) []*models.PrioritizationRule {
	now := time.Now()
	out := make([]*models.PrioritizationRule, 0, len(ruleset))

	for _, r := range ruleset {
		if r == nil {
			continue
		}

		applications, successes := replayRule(r, history)
		if applications == 0 {
			out = append(out, r)
			continue
		}

		effectiveness := float64(successes) / float64(applications)
		if effectiveness < minEffectiveness {
			continue
		}

		tuned := *r
		tuned.Weight = clampWeight(effectiveness)
		tuned.Metadata.Effectiveness = effectiveness
		tuned.Metadata.Version = bumpPatch(tuned.Metadata.Version)
		tuned.Metadata.UpdatedAt = now
		out = append(out, &tuned)
	}
	return out
}

// replayRule evaluates the rule's conditions against every stored
// prioritization and counts real applications, not a simulation.
func replayRule(r *models.PrioritizationRule, history []HistoricalRecord) (applications, successes int) {
	for i := range history {
		rec := &history[i]
		if !matches(r, rec.Issue, &rec.Prioritization) {
			continue
		}
		applications++
		if rec.Outcome.Successful && rec.Outcome.ResolutionTime > 0 && rec.Outcome.ResolutionTime <= fastResolutionHours {
			successes++
		}
	}
	return applications, successes
}

func clampWeight(v float64) float64 {
	if v < 0.1 {
		return 0.1
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

// bumpPatch increments the patch component of a semver-ish version
// string. Unparseable versions restart at 1.0.1.
func bumpPatch(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) == 3 {
		if patch, err := strconv.Atoi(parts[2]); err == nil {
			return fmt.Sprintf("%s.%s.%d", parts[0], parts[1], patch+1)
		}
	}
	return "1.0.1"
}
