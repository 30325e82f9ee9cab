package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/menoncello/triage/internal/models"
	"github.com/menoncello/triage/internal/store"
	"github.com/menoncello/triage/internal/triage"
)

var (
	runIssuesFile  string
	runProjectFile string
	runRulesFile   string
	runJSON        bool
	runNoOptimize  bool
	runSave        bool
	runLimit       int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Prioritize a batch of issues",
	Long: `Run the full triage pipeline over a batch of issues.

Issues and project context are read from JSON files. Rules come from the
database unless --rules points at an exported rule file. Results are
printed ranked by final score; --save also records the run and its
prioritizations for later effectiveness reporting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVar(&runIssuesFile, "issues", "", "JSON file with the issue batch (required)")
	runCmd.Flags().StringVar(&runProjectFile, "project", "", "JSON file with the project context")
	runCmd.Flags().StringVar(&runRulesFile, "rules", "", "Rule file to use instead of stored rules")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Emit full prioritizations as JSON")
	runCmd.Flags().BoolVar(&runNoOptimize, "no-optimize", false, "Skip batch capacity optimization")
	runCmd.Flags().BoolVar(&runSave, "save", false, "Record the run and prioritizations in the database")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Show only the top N issues (0 = all)")
	_ = runCmd.MarkFlagRequired("issues")
	rootCmd.AddCommand(runCmd)
}

func runRun(ctx context.Context) error {
	issues, err := loadIssues(runIssuesFile)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		ui.Info("No issues to triage")
		return nil
	}

	project, err := loadProject(runProjectFile)
	if err != nil {
		return err
	}

	ruleset, err := loadRuleset(ctx)
	if err != nil {
		return err
	}
	ui.VerboseLog("Loaded %d issues, %d enabled rules", len(issues), len(ruleset))

	engine := triage.New(engineOptions())

	start := time.Now()
	prioritizations, err := engine.Prioritize(ctx, issues, nil, ruleset, project)
	if err != nil {
		return fmt.Errorf("prioritize: %w", err)
	}
	elapsed := time.Since(start)

	// Stored rules carry persistent application counts; file-supplied
	// rules do not.
	if runRulesFile == "" {
		if counts, at := engine.RuleApplications(); len(counts) > 0 {
			s, err := getStore()
			if err != nil {
				return err
			}
			if err := s.RecordRuleApplications(ctx, counts, at); err != nil {
				return fmt.Errorf("record rule applications: %w", err)
			}
		}
	}

	if !runNoOptimize {
		prioritizations = engine.OptimizeSuggestions(prioritizations, project)
	}

	ranked := make([]models.IssuePrioritization, len(prioritizations))
	copy(ranked, prioritizations)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	if runLimit > 0 && runLimit < len(ranked) {
		ranked = ranked[:runLimit]
	}

	if runJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ranked); err != nil {
			return err
		}
	} else {
		printRanked(ranked, issues)
		hits, misses := engine.CacheStats()
		ui.Info("Triaged %d issues in %s (cache: %d hits, %d misses)", len(issues), elapsed.Round(time.Millisecond), hits, misses)
	}

	if runSave {
		if dryRun {
			ui.DryRunMsg("Would save run with %d prioritizations", len(prioritizations))
			return nil
		}
		return saveRun(ctx, issues, prioritizations, project, elapsed, engine)
	}
	return nil
}

func printRanked(ranked []models.IssuePrioritization, issues []models.Issue) {
	byID := make(map[string]models.Issue, len(issues))
	for _, is := range issues {
		byID[is.ID] = is
	}

	table := ui.Table([]string{"Score", "Action", "Priority", "Category", "Severity", "Issue", "Location"})
	for _, p := range ranked {
		is := byID[p.IssueID]
		loc := is.FilePath
		if is.LineNumber > 0 {
			loc = fmt.Sprintf("%s:%d", is.FilePath, is.LineNumber)
		}
		table.Append([]string{
			fmt.Sprintf("%.1f", p.FinalScore),
			string(p.Suggestion.Action),
			fmt.Sprintf("%d", p.Suggestion.Priority),
			string(p.Classification.Category),
			string(p.Classification.Severity),
			truncate(is.Message, 50),
			loc,
		})
	}
	table.Render()
}

func saveRun(ctx context.Context, issues []models.Issue, prioritizations []models.IssuePrioritization, project models.ProjectContext, elapsed time.Duration, engine *triage.Engine) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	if err := s.SaveHistory(ctx, issues, prioritizations); err != nil {
		return fmt.Errorf("save history: %w", err)
	}

	hits, _ := engine.CacheStats()
	run := &store.RunSummary{
		StartedAt:  time.Now().Add(-elapsed),
		Duration:   elapsed,
		IssueCount: len(issues),
		CacheHits:  hits,
		Workflow:   project.Preferences.Workflow,
	}
	if err := s.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	ui.Success("Saved run %s (%d prioritizations)", run.ID, len(prioritizations))
	return nil
}

func loadIssues(path string) ([]models.Issue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read issues file: %w", err)
	}
	var issues []models.Issue
	if err := json.Unmarshal(data, &issues); err != nil {
		return nil, fmt.Errorf("parse issues file: %w", err)
	}
	return issues, nil
}

// loadProject reads a project context file, or returns a kanban default
// when no file is given.
func loadProject(path string) (models.ProjectContext, error) {
	if path == "" {
		return models.ProjectContext{
			Preferences: models.TeamPreferences{Workflow: models.WorkflowKanban},
		}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ProjectContext{}, fmt.Errorf("read project file: %w", err)
	}
	var project models.ProjectContext
	if err := json.Unmarshal(data, &project); err != nil {
		return models.ProjectContext{}, fmt.Errorf("parse project file: %w", err)
	}
	return project, nil
}

func loadRuleset(ctx context.Context) ([]*models.PrioritizationRule, error) {
	if runRulesFile != "" {
		return loadRulesFromFile(runRulesFile)
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return s.ListRules(ctx, true)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
