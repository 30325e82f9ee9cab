package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/menoncello/triage/internal/models"
	"github.com/menoncello/triage/internal/rules"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes DB access through Go's pool and avoids "database is
	// locked" errors when a batch records history concurrently.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Rules ---

// SaveRule inserts or replaces a rule. Conditions and actions are stored
// as JSON columns.
func (s *SQLiteStore) SaveRule(ctx context.Context, r *models.PrioritizationRule) error {
	if r.ID == "" {
		r.ID = newULID()
	}
	now := time.Now().UTC()
	if r.Metadata.CreatedAt.IsZero() {
		r.Metadata.CreatedAt = now
	}
	r.Metadata.UpdatedAt = now
	if r.Metadata.Version == "" {
		r.Metadata.Version = "1.0.0"
	}

	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO rules (id, name, description, conditions, actions, weight, priority, enabled, author, version, application_count, last_applied, effectiveness, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Description, string(conditions), string(actions),
		r.Weight, r.Priority, boolToInt(r.Enabled), r.Metadata.Author, r.Metadata.Version,
		r.Metadata.ApplicationCount, r.Metadata.LastApplied, r.Metadata.Effectiveness,
		r.Metadata.CreatedAt, r.Metadata.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save rule: %w", err)
	}
	return nil
}

const ruleColumns = `id, name, description, conditions, actions, weight, priority, enabled, author, version, application_count, last_applied, effectiveness, created_at, updated_at`

func scanRule(row interface{ Scan(...any) error }) (*models.PrioritizationRule, error) {
	r := &models.PrioritizationRule{}
	var conditions, actions string
	var enabled int
	var lastApplied sql.NullTime

	err := row.Scan(&r.ID, &r.Name, &r.Description, &conditions, &actions,
		&r.Weight, &r.Priority, &enabled, &r.Metadata.Author, &r.Metadata.Version,
		&r.Metadata.ApplicationCount, &lastApplied, &r.Metadata.Effectiveness,
		&r.Metadata.CreatedAt, &r.Metadata.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.Enabled = enabled != 0
	if lastApplied.Valid {
		t := lastApplied.Time
		r.Metadata.LastApplied = &t
	}
	if err := json.Unmarshal([]byte(conditions), &r.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshal conditions: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &r.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) GetRule(ctx context.Context, id string) (*models.PrioritizationRule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) ListRules(ctx context.Context, enabledOnly bool) ([]*models.PrioritizationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules ORDER BY priority, name`
	if enabledOnly {
		query = `SELECT ` + ruleColumns + ` FROM rules WHERE enabled = 1 ORDER BY priority, name`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []*models.PrioritizationRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule not found: %s", id)
	}
	return nil
}

// RecordRuleApplications merges a batch's application tally into stored
// rule metadata with one UPDATE per applied rule.
func (s *SQLiteStore) RecordRuleApplications(ctx context.Context, counts map[string]int64, at time.Time) error {
	if len(counts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for id, n := range counts {
		if n <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE rules SET application_count = application_count + ?, last_applied = ? WHERE id = ?`,
			n, at.UTC(), id); err != nil {
			return fmt.Errorf("record applications for %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// --- Training samples ---

func (s *SQLiteStore) SaveTrainingSamples(ctx context.Context, samples []models.TrainingSample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, sample := range samples {
		features, err := json.Marshal(sample.Features)
		if err != nil {
			return fmt.Errorf("marshal features: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO training_samples (id, features, outcome, severity, created_at) VALUES (?, ?, ?, ?, ?)`,
			sample.ID, string(features), string(sample.Outcome), string(sample.Severity), now); err != nil {
			return fmt.Errorf("save training sample %s: %w", sample.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListTrainingSamples(ctx context.Context, limit int) ([]models.TrainingSample, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, features, outcome, severity FROM training_samples ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list training samples: %w", err)
	}
	defer rows.Close()

	var out []models.TrainingSample
	for rows.Next() {
		var sample models.TrainingSample
		var features, outcome, severity string
		if err := rows.Scan(&sample.ID, &features, &outcome, &severity); err != nil {
			return nil, fmt.Errorf("scan training sample: %w", err)
		}
		if err := json.Unmarshal([]byte(features), &sample.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features: %w", err)
		}
		sample.Outcome = models.Category(outcome)
		sample.Severity = models.Severity(severity)
		out = append(out, sample)
	}
	return out, rows.Err()
}

// --- Outcomes ---

func (s *SQLiteStore) RecordOutcome(ctx context.Context, o models.TriageOutcome) error {
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO outcomes (issue_id, status, actual_action, resolution_time, successful, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.IssueID, string(o.Status), string(o.ActualAction), o.ResolutionTime, boolToInt(o.Successful), o.RecordedAt)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListOutcomes(ctx context.Context, limit int) ([]models.TriageOutcome, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT issue_id, status, actual_action, resolution_time, successful, recorded_at
		FROM outcomes ORDER BY recorded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []models.TriageOutcome
	for rows.Next() {
		var o models.TriageOutcome
		var status, action string
		var successful int
		if err := rows.Scan(&o.IssueID, &status, &action, &o.ResolutionTime, &successful, &o.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = models.OutcomeStatus(status)
		o.ActualAction = models.TriageAction(action)
		o.Successful = successful != 0
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- History ---

// SaveHistory stores issues and their prioritizations (matched by index)
// as JSON blobs for later rule replay.
func (s *SQLiteStore) SaveHistory(ctx context.Context, issues []models.Issue, prioritizations []models.IssuePrioritization) error {
	byIssue := make(map[string]models.Issue, len(issues))
	for _, i := range issues {
		byIssue[i.ID] = i
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, p := range prioritizations {
		issue, ok := byIssue[p.IssueID]
		if !ok {
			continue
		}
		issueJSON, err := json.Marshal(issue)
		if err != nil {
			return fmt.Errorf("marshal issue: %w", err)
		}
		prioJSON, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal prioritization: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO history (id, issue_id, issue, prioritization, created_at) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.IssueID, string(issueJSON), string(prioJSON), now); err != nil {
			return fmt.Errorf("save history for %s: %w", p.IssueID, err)
		}
	}
	return tx.Commit()
}

// ListHistory returns stored prioritizations joined with any recorded
// outcome, newest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, limit int) ([]rules.HistoricalRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT h.issue, h.prioritization,
			COALESCE(o.status, ''), COALESCE(o.actual_action, ''), COALESCE(o.resolution_time, 0),
			COALESCE(o.successful, 0), o.recorded_at
		FROM history h
		LEFT JOIN outcomes o ON o.issue_id = h.issue_id
		ORDER BY h.created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []rules.HistoricalRecord
	for rows.Next() {
		var rec rules.HistoricalRecord
		var issueJSON, prioJSON, status, action string
		var successful int
		var recordedAt sql.NullTime
		if err := rows.Scan(&issueJSON, &prioJSON, &status, &action,
			&rec.Outcome.ResolutionTime, &successful, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if err := json.Unmarshal([]byte(issueJSON), &rec.Issue); err != nil {
			return nil, fmt.Errorf("unmarshal issue: %w", err)
		}
		if err := json.Unmarshal([]byte(prioJSON), &rec.Prioritization); err != nil {
			return nil, fmt.Errorf("unmarshal prioritization: %w", err)
		}
		rec.Outcome.IssueID = rec.Issue.ID
		rec.Outcome.Status = models.OutcomeStatus(status)
		rec.Outcome.ActualAction = models.TriageAction(action)
		rec.Outcome.Successful = successful != 0
		if recordedAt.Valid {
			rec.Outcome.RecordedAt = recordedAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- Runs ---

func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunSummary) error {
	if run.ID == "" {
		run.ID = newULID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_ms, issue_count, cache_hits, workflow) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.Duration.Milliseconds(), run.IssueCount, run.CacheHits, string(run.Workflow))
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, issue_count, cache_hits, workflow FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*RunSummary
	for rows.Next() {
		run := &RunSummary{}
		var durationMS int64
		var wf string
		if err := rows.Scan(&run.ID, &run.StartedAt, &durationMS, &run.IssueCount, &run.CacheHits, &wf); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		run.Workflow = models.Workflow(wf)
		out = append(out, run)
	}
	return out, rows.Err()
}
