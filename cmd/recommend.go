package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/menoncello/triage/internal/llm"
	"github.com/menoncello/triage/internal/rules"
)

var recommendJSON bool

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest new prioritization rules from recorded feedback",
	Long: `Ask the LLM for candidate prioritization rules based on the
effectiveness report and the suggestions the team rejected.

Requires an Anthropic API key (anthropic.api_key in config, or
ANTHROPIC_API_KEY in the environment). Recommended rules are shown for
review, not imported automatically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return recommendRun(cmd.Context())
	},
}

func init() {
	recommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "Emit recommendations as JSON")
	rootCmd.AddCommand(recommendCmd)
}

// newLLMClient creates an LLM client from config/env, or returns nil if no API key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"))
}

func recommendRun(ctx context.Context) error {
	client := newLLMClient()
	if client == nil {
		return fmt.Errorf("no Anthropic API key configured (set anthropic.api_key or ANTHROPIC_API_KEY)")
	}

	report, rejections, err := buildEffectivenessReport(ctx)
	if err != nil {
		return err
	}
	if report.Total == 0 {
		ui.Info("No outcomes recorded yet, nothing to learn from")
		return nil
	}

	ui.VerboseLog("Requesting recommendations from %d outcomes, %d rejections", report.Total, len(rejections))
	recs, err := client.RecommendRules(ctx, report, rejections)
	if err != nil {
		return fmt.Errorf("recommend rules: %w", err)
	}
	if len(recs) == 0 {
		ui.Info("No rule recommendations")
		return nil
	}

	if recommendJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	for i, rec := range recs {
		result := rules.ValidateRule(&rec.Rule)
		ui.Info("%d. %s (confidence %.2f)", i+1, rec.Rule.Name, rec.Confidence)
		fmt.Fprintf(ui.Out, "    %s\n", rec.Rationale)
		if !result.Valid {
			for _, e := range result.Errors {
				ui.Warning("    invalid: %s", e)
			}
			continue
		}
		data, err := json.MarshalIndent(rec.Rule, "    ", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(ui.Out, "    %s\n", string(data))
	}
	return nil
}
