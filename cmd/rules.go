package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/menoncello/triage/internal/models"
	"github.com/menoncello/triage/internal/output"
	"github.com/menoncello/triage/internal/rules"
)

var (
	rulesAll          bool
	rulesImportFile   string
	rulesExportFile   string
	rulesHistoryLimit int
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage prioritization rules",
	Long: `Manage the custom prioritization rules applied after scoring.

Running bare 'triage rules' is the same as 'triage rules list'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return rulesListRun(cmd.Context())
	},
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return rulesListRun(cmd.Context())
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate rules in a file without importing them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rulesValidateRun(args[0])
	},
}

var rulesConflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Detect conflicts between stored rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return rulesConflictsRun(cmd.Context())
	},
}

var rulesOptimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Re-weight rules from recorded triage history",
	Long: `Replay each stored rule against recorded prioritization history and
their outcomes. Effective rules get their weight aligned with measured
effectiveness; chronically ineffective rules are removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return rulesOptimizeRun(cmd.Context())
	},
}

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored rules as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return rulesExportRun(cmd.Context())
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import rules from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rulesImportRun(cmd.Context(), args[0])
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a stored rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rulesDeleteRun(cmd.Context(), args[0])
	},
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <rule-id>",
	Short: "Enable a stored rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rulesSetEnabledRun(cmd.Context(), args[0], true)
	},
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <rule-id>",
	Short: "Disable a stored rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rulesSetEnabledRun(cmd.Context(), args[0], false)
	},
}

func init() {
	rulesListCmd.Flags().BoolVar(&rulesAll, "all", false, "Include disabled rules")
	rulesExportCmd.Flags().StringVarP(&rulesExportFile, "out", "o", "", "Write to file instead of stdout")
	rulesOptimizeCmd.Flags().IntVar(&rulesHistoryLimit, "history", 500, "Max history records to replay")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesConflictsCmd)
	rulesCmd.AddCommand(rulesOptimizeCmd)
	rulesCmd.AddCommand(rulesExportCmd)
	rulesCmd.AddCommand(rulesImportCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
	rulesCmd.AddCommand(rulesEnableCmd)
	rulesCmd.AddCommand(rulesDisableCmd)
	rootCmd.AddCommand(rulesCmd)
}

func rulesListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	ruleset, err := s.ListRules(ctx, !rulesAll)
	if err != nil {
		return err
	}
	if len(ruleset) == 0 {
		ui.Info("No rules stored (use 'triage rules import' to add some)")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Weight", "Priority", "Enabled", "Applied", "Effectiveness"})
	for _, r := range ruleset {
		enabled := "yes"
		if !r.Enabled {
			enabled = output.Yellow("no")
		}
		eff := "-"
		if r.Metadata.Effectiveness > 0 {
			eff = fmt.Sprintf("%.2f", r.Metadata.Effectiveness)
		}
		table.Append([]string{
			r.ID,
			r.Name,
			fmt.Sprintf("%.2f", r.Weight),
			fmt.Sprintf("%d", r.Priority),
			enabled,
			fmt.Sprintf("%d", r.Metadata.ApplicationCount),
			eff,
		})
	}
	table.Render()
	return nil
}

func rulesValidateRun(path string) error {
	// Parse the raw array here rather than through ImportRules, which
	// filters invalid rules out before they could be reported.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rules file: %w", err)
	}
	var ruleset []*models.PrioritizationRule
	if err := json.Unmarshal(data, &ruleset); err != nil {
		return fmt.Errorf("parse rules file: %w", err)
	}

	invalid := 0
	for i, r := range ruleset {
		result := rules.ValidateRule(r)
		if result.Valid && len(result.Warnings) == 0 {
			continue
		}
		if !result.Valid {
			invalid++
			name, id := "(null)", ""
			if r != nil {
				name, id = r.Name, r.ID
			}
			ui.Error("rule %d: %s (%s)", i+1, name, id)
			for _, e := range result.Errors {
				fmt.Fprintf(ui.Out, "    error: %s\n", e)
			}
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(ui.Out, "    warning: %s\n", w)
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d rules are invalid", invalid, len(ruleset))
	}
	ui.Success("%d rules valid", len(ruleset))
	return nil
}

func rulesConflictsRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ruleset, err := s.ListRules(ctx, false)
	if err != nil {
		return err
	}

	conflicts := rules.DetectRuleConflicts(ruleset)
	if len(conflicts) == 0 {
		ui.Success("No conflicts among %d rules", len(ruleset))
		return nil
	}

	for _, c := range conflicts {
		ui.Warning("%s <-> %s: %s", c.RuleID1, c.RuleID2, c.Description)
		fmt.Fprintf(ui.Out, "    suggestion: %s\n", c.Suggestion)
	}
	return nil
}

func rulesOptimizeRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	ruleset, err := s.ListRules(ctx, false)
	if err != nil {
		return err
	}
	history, err := s.ListHistory(ctx, rulesHistoryLimit)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		ui.Info("No recorded history to optimize against (run with --save first)")
		return nil
	}

	optimized := rules.OptimizeRules(ruleset, history)

	kept := make(map[string]bool, len(optimized))
	for _, r := range optimized {
		kept[r.ID] = true
	}

	if dryRun {
		for _, r := range ruleset {
			if !kept[r.ID] {
				ui.DryRunMsg("Would remove ineffective rule %s (%s)", r.ID, r.Name)
			}
		}
		for _, r := range optimized {
			ui.DryRunMsg("Would set %s weight=%.2f effectiveness=%.2f", r.ID, r.Weight, r.Metadata.Effectiveness)
		}
		return nil
	}

	removed := 0
	for _, r := range ruleset {
		if !kept[r.ID] {
			if err := s.DeleteRule(ctx, r.ID); err != nil {
				return err
			}
			removed++
		}
	}
	for _, r := range optimized {
		if err := s.SaveRule(ctx, r); err != nil {
			return err
		}
	}

	ui.Success("Optimized %d rules against %d history records (%d removed)", len(optimized), len(history), removed)
	return nil
}

func rulesExportRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ruleset, err := s.ListRules(ctx, false)
	if err != nil {
		return err
	}

	data, err := rules.ExportRules(ruleset)
	if err != nil {
		return err
	}

	if rulesExportFile == "" {
		fmt.Fprintln(ui.Out, string(data))
		return nil
	}
	if err := os.WriteFile(rulesExportFile, data, 0644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	ui.Success("Exported %d rules to %s", len(ruleset), rulesExportFile)
	return nil
}

func rulesImportRun(ctx context.Context, path string) error {
	imported, err := loadRulesFromFile(path)
	if err != nil {
		return err
	}
	if len(imported) == 0 {
		ui.Warning("No valid rules found in %s", path)
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would import %d rules", len(imported))
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	for _, r := range imported {
		if err := s.SaveRule(ctx, r); err != nil {
			return fmt.Errorf("save rule %s: %w", r.ID, err)
		}
	}
	ui.Success("Imported %d rules", len(imported))
	return nil
}

func rulesDeleteRun(ctx context.Context, id string) error {
	if dryRun {
		ui.DryRunMsg("Would delete rule %s", id)
		return nil
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	if err := s.DeleteRule(ctx, id); err != nil {
		return err
	}
	ui.Success("Deleted rule %s", id)
	return nil
}

func rulesSetEnabledRun(ctx context.Context, id string, enabled bool) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	r, err := s.GetRule(ctx, id)
	if err != nil {
		return err
	}

	r.Enabled = enabled
	r.Metadata.UpdatedAt = time.Now().UTC()
	if err := s.SaveRule(ctx, r); err != nil {
		return err
	}

	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	ui.Success("Rule %s %s", id, state)
	return nil
}

// loadRulesFromFile imports rules from a JSON export, dropping invalid
// entries with a warning.
func loadRulesFromFile(path string) ([]*models.PrioritizationRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	ruleset, err := rules.ImportRules(data)
	if err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return ruleset, nil
}
