// Package rules applies user-authored prioritization overrides with
// configurable conflict resolution, validates and statically analyzes
// rulesets, and tunes rules against historical effectiveness.
package rules

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/menoncello/triage/internal/models"
)

// Engine evaluates rules against prioritized issues. Evaluation itself
// is stateless; the only side effect is the application tally merged
// into rule metadata.
type Engine struct {
	strategy models.ConflictStrategy
}

// NewEngine returns a rule engine using the given conflict-resolution
// strategy. An unknown strategy falls back to first-match.
func NewEngine(strategy models.ConflictStrategy) *Engine {
	switch strategy {
	case models.StrategyFirstMatch, models.StrategyHighestWeight, models.StrategyCombine:
	default:
		strategy = models.StrategyFirstMatch
	}
	return &Engine{strategy: strategy}
}

// Strategy returns the configured conflict-resolution strategy.
func (e *Engine) Strategy() models.ConflictStrategy { return e.strategy }

// Enabled returns the subset of rules that are enabled, preserving input
// order. Disabled rules never alter output.
func Enabled(rules []*models.PrioritizationRule) []*models.PrioritizationRule {
	out := make([]*models.PrioritizationRule, 0, len(rules))
	for _, r := range rules {
		if r != nil && r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// ApplyRules evaluates the ruleset against each issue's base
// prioritization and returns the adjusted results. Each applied rule's
// metadata.ApplicationCount and LastApplied are updated once per batch.
// Issues and base prioritizations are matched by index.
func (e *Engine) ApplyRules(issues []models.Issue, ruleset []*models.PrioritizationRule, base []models.IssuePrioritization) []models.IssuePrioritization {
	enabled := Enabled(ruleset)
	tally := NewTally()

	out := make([]models.IssuePrioritization, len(base))
	for i := range base {
		if i >= len(issues) {
			out[i] = base[i]
			continue
		}
		out[i] = e.Apply(issues[i], base[i], enabled, tally)
	}

	tally.Merge(ruleset, time.Now())
	return out
}

// Apply evaluates enabled rules against a single issue and returns the
// adjusted prioritization. The input is copied, never mutated; applied
// rules are recorded in the tally for a later merge. Safe to call
// concurrently across issues with a shared tally.
func (e *Engine) Apply(issue models.Issue, base models.IssuePrioritization, enabled []*models.PrioritizationRule, tally *Tally) models.IssuePrioritization {
	p := base

	matched := make([]*models.PrioritizationRule, 0, 4)
	for _, r := range enabled {
		if matches(r, issue, &p) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return p
	}

	switch e.strategy {
	case models.StrategyHighestWeight:
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Weight > matched[j].Weight
		})
		matched = matched[:1]
	case models.StrategyCombine:
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Weight > matched[j].Weight
		})
	default: // first-match
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Priority < matched[j].Priority
		})
		matched = matched[:1]
	}

	for _, r := range matched {
		applyActions(&p, r)
		if tally != nil {
			tally.Record(r.ID)
		}
	}

	p.FinalScore = math.Round(math.Max(1, math.Min(10, p.FinalScore))*10) / 10
	return p
}

// applyActions folds one rule's actions into the prioritization in order.
func applyActions(p *models.IssuePrioritization, r *models.PrioritizationRule) {
	for _, a := range r.Actions {
		switch a.Type {
		case models.ActionAdjustScore:
			p.FinalScore += a.Adjustment * r.Weight
		case models.ActionSetPriority:
			p.FinalScore = a.Priority
		case models.ActionSkipTriage:
			p.Suggestion.Action = models.ActionIgnore
			p.Suggestion.Reasoning = "Skipped by rule"
		case models.ActionCustomAction:
			if a.TriageAction != "" {
				p.Suggestion.Action = a.TriageAction
			}
			if a.Reasoning != "" {
				p.Suggestion.Reasoning = a.Reasoning
			}
			if a.Assignee != "" {
				p.Suggestion.Assignee = a.Assignee
			}
		}
	}
}

// Tally accumulates rule applications during a batch so that shared rule
// metadata is written once, after the parallel phase, instead of being
// mutated from every worker.
type Tally struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewTally returns an empty application tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[string]int64)}
}

// Record notes one application of the rule.
func (t *Tally) Record(ruleID string) {
	t.mu.Lock()
	t.counts[ruleID]++
	t.mu.Unlock()
}

// Counts returns a copy of the accumulated counts.
func (t *Tally) Counts() map[string]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int64, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Merge folds the tally into rule metadata: ApplicationCount increments
// and LastApplied updates for every rule that fired at least once.
func (t *Tally) Merge(ruleset []*models.PrioritizationRule, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.counts) == 0 {
		return
	}
	for _, r := range ruleset {
		if r == nil {
			continue
		}
		if n, ok := t.counts[r.ID]; ok && n > 0 {
			r.Metadata.ApplicationCount += n
			applied := at
			r.Metadata.LastApplied = &applied
		}
	}
	t.counts = make(map[string]int64)
}
