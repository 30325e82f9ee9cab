package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/menoncello/triage/internal/classify"
	"github.com/menoncello/triage/internal/models"
	"github.com/menoncello/triage/internal/output"
)

var (
	modelSampleLimit int
	modelSamplesFile string
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Train and evaluate the issue classifier",
}

var modelTrainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the classifier from stored feedback samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		return modelTrainRun(cmd.Context())
	},
}

var modelEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the classifier with a held-out split",
	RunE: func(cmd *cobra.Command, args []string) error {
		return modelEvaluateRun(cmd.Context())
	},
}

var modelFeedbackCmd = &cobra.Command{
	Use:   "feedback <file>",
	Short: "Record training samples from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return modelFeedbackRun(cmd.Context(), args[0])
	},
}

func init() {
	modelTrainCmd.Flags().IntVar(&modelSampleLimit, "limit", 0, "Max samples to train on (0 = all)")
	modelEvaluateCmd.Flags().IntVar(&modelSampleLimit, "limit", 0, "Max samples to evaluate on (0 = all)")

	modelCmd.AddCommand(modelTrainCmd)
	modelCmd.AddCommand(modelEvaluateCmd)
	modelCmd.AddCommand(modelFeedbackCmd)
	rootCmd.AddCommand(modelCmd)
}

func modelTrainRun(ctx context.Context) error {
	samples, err := loadSamples(ctx)
	if err != nil {
		return err
	}

	classifier := classify.New()
	metrics, err := classifier.Train(samples)
	if err != nil {
		return fmt.Errorf("train classifier: %w", err)
	}

	ui.Success("Trained on %d samples", metrics.Samples)
	printMetrics(metrics)
	return nil
}

func modelEvaluateRun(ctx context.Context) error {
	samples, err := loadSamples(ctx)
	if err != nil {
		return err
	}

	classifier := classify.New()
	metrics, err := classifier.Evaluate(classify.NewHeuristicPredictor(), samples)
	if err != nil {
		return fmt.Errorf("evaluate classifier: %w", err)
	}

	printMetrics(metrics)
	return nil
}

func modelFeedbackRun(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read samples file: %w", err)
	}
	var samples []models.TrainingSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return fmt.Errorf("parse samples file: %w", err)
	}
	if len(samples) == 0 {
		ui.Warning("No samples in %s", path)
		return nil
	}

	if dryRun {
		ui.DryRunMsg("Would record %d training samples", len(samples))
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	if err := s.SaveTrainingSamples(ctx, samples); err != nil {
		return fmt.Errorf("save samples: %w", err)
	}
	ui.Success("Recorded %d training samples", len(samples))
	return nil
}

func loadSamples(ctx context.Context) ([]models.TrainingSample, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	samples, err := s.ListTrainingSamples(ctx, modelSampleLimit)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no training samples recorded (use 'triage model feedback' first)")
	}
	return samples, nil
}

func printMetrics(m models.ModelMetrics) {
	acc := fmt.Sprintf("%.1f%%", m.Accuracy*100)
	if m.Accuracy >= 0.8 {
		acc = output.Green(acc)
	} else if m.Accuracy < 0.6 {
		acc = output.Red(acc)
	}
	ui.Info("Accuracy: %s over %d samples", acc, m.Samples)

	table := ui.Table([]string{"Category", "Precision", "Recall", "F1", "Support"})
	for _, cat := range models.Categories {
		cm, ok := m.PerCategory[cat]
		if !ok || cm.Support == 0 {
			continue
		}
		table.Append([]string{
			string(cat),
			fmt.Sprintf("%.2f", cm.Precision),
			fmt.Sprintf("%.2f", cm.Recall),
			fmt.Sprintf("%.2f", cm.F1),
			fmt.Sprintf("%d", cm.Support),
		})
	}
	table.Render()
}
