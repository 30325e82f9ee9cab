package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/menoncello/triage/internal/models"
	"github.com/menoncello/triage/internal/output"
	"github.com/menoncello/triage/internal/triage"
)

var (
	reportJSON        bool
	reportLimit       int
	outcomeStatus     string
	outcomeAction     string
	outcomeResolution float64
	outcomeSuccessful bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report on triage effectiveness and past runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportEffectivenessRun(cmd.Context())
	},
}

var reportEffectivenessCmd = &cobra.Command{
	Use:   "effectiveness",
	Short: "Compare past suggestions against recorded outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportEffectivenessRun(cmd.Context())
	},
}

var reportRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent triage runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportRunsRun(cmd.Context())
	},
}

var outcomeCmd = &cobra.Command{
	Use:   "outcome <issue-id>",
	Short: "Record how the team acted on a suggestion",
	Long: `Record the outcome for a previously triaged issue.

Outcomes feed the effectiveness report and rule optimization:
  triage outcome ISS-42 --status accepted --successful
  triage outcome ISS-43 --status modified --action schedule --resolution 6.5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return outcomeRun(cmd.Context(), args[0])
	},
}

func init() {
	reportCmd.PersistentFlags().BoolVar(&reportJSON, "json", false, "Emit JSON")
	reportCmd.PersistentFlags().IntVar(&reportLimit, "limit", 200, "Max records to consider")

	outcomeCmd.Flags().StringVar(&outcomeStatus, "status", "", "Outcome status: accepted, rejected, modified (required)")
	outcomeCmd.Flags().StringVar(&outcomeAction, "action", "", "Action actually taken, if different from the suggestion")
	outcomeCmd.Flags().Float64Var(&outcomeResolution, "resolution", 0, "Resolution time in hours")
	outcomeCmd.Flags().BoolVar(&outcomeSuccessful, "successful", false, "Whether the resolution stuck")
	_ = outcomeCmd.MarkFlagRequired("status")

	reportCmd.AddCommand(reportEffectivenessCmd)
	reportCmd.AddCommand(reportRunsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(outcomeCmd)
}

func reportEffectivenessRun(ctx context.Context) error {
	report, _, err := buildEffectivenessReport(ctx)
	if err != nil {
		return err
	}

	if reportJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if report.Total == 0 {
		ui.Info("No outcomes recorded yet (use 'triage outcome' after acting on suggestions)")
		return nil
	}

	acc := fmt.Sprintf("%.1f%%", report.Accuracy*100)
	switch {
	case report.Accuracy >= 0.7:
		acc = output.Green(acc)
	case report.Accuracy < 0.5:
		acc = output.Red(acc)
	default:
		acc = output.Yellow(acc)
	}

	ui.Info("Suggestion accuracy: %s (%d outcomes)", acc, report.Total)
	fmt.Fprintf(ui.Out, "  accepted: %d  modified: %d  rejected: %d\n", report.Accepted, report.Modified, report.Rejected)

	if len(report.Recommendations) > 0 {
		fmt.Fprintln(ui.Out)
		for _, r := range report.Recommendations {
			ui.Warning("%s", r)
		}
	}
	return nil
}

func reportRunsRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	runs, err := s.ListRuns(ctx, reportLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No runs recorded (use 'triage run --save')")
		return nil
	}

	table := ui.Table([]string{"Run", "Started", "Issues", "Duration", "Cache hits", "Workflow"})
	for _, r := range runs {
		table.Append([]string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", r.IssueCount),
			r.Duration.Round(time.Millisecond).String(),
			fmt.Sprintf("%d", r.CacheHits),
			string(r.Workflow),
		})
	}
	table.Render()
	return nil
}

func outcomeRun(ctx context.Context, issueID string) error {
	status := models.OutcomeStatus(outcomeStatus)
	switch status {
	case models.OutcomeAccepted, models.OutcomeRejected, models.OutcomeModified:
	default:
		return fmt.Errorf("invalid status %q (use: accepted, rejected, modified)", outcomeStatus)
	}

	o := models.TriageOutcome{
		IssueID:        issueID,
		Status:         status,
		ActualAction:   models.TriageAction(outcomeAction),
		ResolutionTime: outcomeResolution,
		Successful:     outcomeSuccessful,
		RecordedAt:     time.Now().UTC(),
	}

	if dryRun {
		ui.DryRunMsg("Would record %s outcome for %s", status, issueID)
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	if err := s.RecordOutcome(ctx, o); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	ui.Success("Recorded %s outcome for %s", status, issueID)
	return nil
}

// buildEffectivenessReport joins stored history with outcomes and tracks
// effectiveness over them. Returns the rejected-suggestion descriptions
// alongside the report for LLM recommendations.
func buildEffectivenessReport(ctx context.Context) (models.TriageEffectivenessReport, []string, error) {
	s, err := getStore()
	if err != nil {
		return models.TriageEffectivenessReport{}, nil, err
	}

	history, err := s.ListHistory(ctx, reportLimit)
	if err != nil {
		return models.TriageEffectivenessReport{}, nil, err
	}
	outcomes, err := s.ListOutcomes(ctx, reportLimit)
	if err != nil {
		return models.TriageEffectivenessReport{}, nil, err
	}

	prioritizations := make([]models.IssuePrioritization, 0, len(history))
	var rejections []string
	rejected := make(map[string]bool)
	for _, o := range outcomes {
		if o.Status == models.OutcomeRejected {
			rejected[o.IssueID] = true
		}
	}
	for _, h := range history {
		prioritizations = append(prioritizations, h.Prioritization)
		if rejected[h.Issue.ID] {
			rejections = append(rejections, fmt.Sprintf("%s suggested %s for %q (score %.1f)",
				h.Issue.ID, h.Prioritization.Suggestion.Action, h.Issue.Message, h.Prioritization.FinalScore))
		}
	}

	report := triage.TrackTriageEffectiveness(prioritizations, outcomes)
	return report, rejections, nil
}
