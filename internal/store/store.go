package store

import (
	"context"
	"time"

	"github.com/menoncello/triage/internal/models"
	"github.com/menoncello/triage/internal/rules"
)

// RunSummary records one engine invocation for later reporting.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	Duration   time.Duration
	IssueCount int
	CacheHits  int64
	Workflow   models.Workflow
}

// Store is the persistence collaborator for the triage engine: rules,
// training samples, outcomes, and run history. The engine itself never
// touches disk; commands load inputs here and write feedback back.
type Store interface {
	// Rules
	SaveRule(ctx context.Context, r *models.PrioritizationRule) error
	GetRule(ctx context.Context, id string) (*models.PrioritizationRule, error)
	ListRules(ctx context.Context, enabledOnly bool) ([]*models.PrioritizationRule, error)
	DeleteRule(ctx context.Context, id string) error
	RecordRuleApplications(ctx context.Context, counts map[string]int64, at time.Time) error

	// Classifier feedback
	SaveTrainingSamples(ctx context.Context, samples []models.TrainingSample) error
	ListTrainingSamples(ctx context.Context, limit int) ([]models.TrainingSample, error)

	// Triage outcomes
	RecordOutcome(ctx context.Context, o models.TriageOutcome) error
	ListOutcomes(ctx context.Context, limit int) ([]models.TriageOutcome, error)

	// Prioritization history, joined with outcomes for rule replay
	SaveHistory(ctx context.Context, issues []models.Issue, prioritizations []models.IssuePrioritization) error
	ListHistory(ctx context.Context, limit int) ([]rules.HistoricalRecord, error)

	// Run summaries
	SaveRun(ctx context.Context, run *RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]*RunSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
