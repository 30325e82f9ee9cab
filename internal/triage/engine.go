// Package triage orchestrates the prioritization pipeline for batches of
// issues: feature extraction, classification, scoring, rule application,
// and workflow adaptation, fanned out over a bounded worker pool, then
// batch-level capacity optimization and effectiveness tracking.
package triage

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/menoncello/triage/internal/cache"
	"github.com/menoncello/triage/internal/classify"
	"github.com/menoncello/triage/internal/models"
	"github.com/menoncello/triage/internal/rules"
	"github.com/menoncello/triage/internal/scoring"
	"github.com/menoncello/triage/internal/workflow"
)

// Options configures a triage engine.
type Options struct {
	// Workers bounds the batch worker pool. Zero means GOMAXPROCS.
	Workers int

	// PreserveOrder returns results in input order; otherwise results
	// arrive in completion order.
	PreserveOrder bool

	// Strategy resolves conflicts between matching rules.
	Strategy models.ConflictStrategy

	// Scoring holds the sub-score weights.
	Scoring scoring.Config

	// CacheSize/CacheTTL bound the optional result cache. A zero size
	// disables caching.
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultOptions returns the standard engine configuration.
func DefaultOptions() Options {
	return Options{
		Workers:       runtime.GOMAXPROCS(0),
		PreserveOrder: true,
		Strategy:      models.StrategyFirstMatch,
		Scoring:       scoring.DefaultConfig(),
		CacheSize:     4096,
		CacheTTL:      15 * time.Minute,
	}
}

// Engine runs the full triage pipeline.
type Engine struct {
	classifier *classify.Classifier
	scorer     *scoring.Algorithm
	rules      *rules.Engine
	workflow   *workflow.Integration
	cache      *cache.Cache
	opts       Options

	appMu       sync.Mutex
	lastApplied map[string]int64
	appliedAt   time.Time
}

// New creates an engine with the default heuristic classifier.
func New(opts Options) *Engine {
	return NewWithClassifier(classify.New(), opts)
}

// NewWithClassifier creates an engine around a custom classifier.
func NewWithClassifier(c *classify.Classifier, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	e := &Engine{
		classifier: c,
		scorer:     scoring.New(opts.Scoring),
		rules:      rules.NewEngine(opts.Strategy),
		workflow:   workflow.New(),
		opts:       opts,
	}
	if opts.CacheSize > 0 {
		e.cache = cache.New(opts.CacheSize, opts.CacheTTL)
	}
	return e
}

// Classifier exposes the engine's classifier for training and
// evaluation flows.
func (e *Engine) Classifier() *classify.Classifier { return e.classifier }

// Prioritize runs the full pipeline for a batch of issues and returns
// one prioritization per issue. Contexts may be nil, in which case they
// are derived per issue. Rule metadata is updated once, after the
// parallel phase. Cancellation via ctx stops scheduling promptly and
// returns the context error; shared rule metadata is never left
// half-merged.
func (e *Engine) Prioritize(ctx context.Context, issues []models.Issue, contexts map[string]models.IssueContext, ruleset []*models.PrioritizationRule, project models.ProjectContext) ([]models.IssuePrioritization, error) {
	if len(issues) == 0 {
		return []models.IssuePrioritization{}, nil
	}
	if !e.classifier.IsReady() {
		return nil, classify.ErrModelNotLoaded
	}

	enabled := rules.Enabled(ruleset)
	tally := rules.NewTally()

	type job struct {
		idx   int
		issue models.Issue
	}
	type result struct {
		idx int
		p   models.IssuePrioritization
		err error
	}

	workers := e.opts.Workers
	if workers > len(issues) {
		workers = len(issues)
	}
	jobs := make(chan job)
	results := make(chan result, len(issues))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				p, err := e.prioritizeOne(ctx, j.issue, contexts, enabled, tally, project)
				select {
				case results <- result{idx: j.idx, p: p, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, issue := range issues {
			select {
			case jobs <- job{idx: i, issue: issue}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]models.IssuePrioritization, len(issues))
	var unordered []models.IssuePrioritization
	received := 0
	var firstErr error
	for r := range results {
		received++
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		if r.err == nil {
			if e.opts.PreserveOrder {
				ordered[r.idx] = r.p
			} else {
				unordered = append(unordered, r.p)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if received != len(issues) {
		return nil, fmt.Errorf("prioritize: %d of %d issues processed", received, len(issues))
	}

	// Merge rule application counts once, after all workers are done.
	mergedAt := time.Now()
	tally.Merge(ruleset, mergedAt)
	e.appMu.Lock()
	e.lastApplied = tally.Counts()
	e.appliedAt = mergedAt
	e.appMu.Unlock()

	if e.opts.PreserveOrder {
		return ordered, nil
	}
	return unordered, nil
}

// prioritizeOne runs the per-issue pipeline: context, cache check,
// classify, score, rules, workflow.
func (e *Engine) prioritizeOne(ctx context.Context, issue models.Issue, contexts map[string]models.IssueContext, enabled []*models.PrioritizationRule, tally *rules.Tally, project models.ProjectContext) (models.IssuePrioritization, error) {
	if err := ctx.Err(); err != nil {
		return models.IssuePrioritization{}, err
	}
	start := time.Now()

	issueCtx, ok := contexts[issue.ID]
	if !ok {
		issueCtx = BuildContext(issue, project)
	}

	var key string
	if e.cache != nil {
		key = cache.Fingerprint(issue, issueCtx, enabled, project.Preferences)
		if hit, found := e.cache.Get(key); found {
			hit.Metadata.CacheHit = true
			hit.Metadata.ProcessedAt = time.Now()
			hit.Metadata.ProcessingTime = time.Since(start) + time.Nanosecond
			return hit, nil
		}
	}

	cls, err := e.classifier.Classify(issue, issueCtx)
	if err != nil {
		return models.IssuePrioritization{}, fmt.Errorf("classify issue %s: %w", issue.ID, err)
	}

	scored := e.scorer.Score(issue, issueCtx, cls, project)

	p := models.IssuePrioritization{
		ID:             newULID(),
		IssueID:        issue.ID,
		SeverityScore:  scored.SeverityScore,
		ImpactScore:    scored.ImpactScore,
		EffortScore:    scored.EffortScore,
		BusinessValue:  scored.BusinessValue,
		FinalScore:     scored.FinalScore,
		Context:        issueCtx,
		Classification: cls,
		Suggestion:     scored.Suggestion,
		Factors:        scored.Factors,
	}

	p = e.rules.Apply(issue, p, enabled, tally)
	p = e.workflow.AdaptOne(p, project)

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}
	p.Metadata = models.PrioritizationMetadata{
		ProcessedAt:    time.Now(),
		Algorithm:      scoring.AlgorithmID,
		ModelVersion:   e.classifier.Version(),
		ProcessingTime: elapsed,
		CacheHit:       false,
	}

	if e.cache != nil {
		e.cache.Put(key, p)
	}
	return p, nil
}

// RuleApplications returns the per-rule application counts from the
// most recently completed batch, with the time they were merged.
// Callers holding a store persist these via RecordRuleApplications.
func (e *Engine) RuleApplications() (map[string]int64, time.Time) {
	e.appMu.Lock()
	defer e.appMu.Unlock()
	out := make(map[string]int64, len(e.lastApplied))
	for id, n := range e.lastApplied {
		out[id] = n
	}
	return out, e.appliedAt
}

// CacheStats returns cumulative cache hits and misses. Zeroes when
// caching is disabled.
func (e *Engine) CacheStats() (hits, misses int64) {
	if e.cache == nil {
		return 0, 0
	}
	return e.cache.Stats()
}

// newULID generates a new ULID string. ulid.Make uses the shared
// locked entropy source, so parallel workers never collide.
func newULID() string {
	return ulid.Make().String()
}
