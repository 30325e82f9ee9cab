// Package llm generates candidate prioritization rules from triage
// history using the Anthropic API.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/menoncello/triage/internal/models"
)

// Client wraps the Anthropic API for rule recommendation.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildPrompt constructs the system and user prompts for rule
// recommendation from an effectiveness report and rejection summaries.
func buildPrompt(report models.TriageEffectivenessReport, rejections []string) (system string, user string) {
	system = `You suggest prioritization rules for an issue triage engine. Return ONLY a JSON array of objects with these fields:
- "rule": an object with "name", "description", "conditions" (array of {"field", "operator", "value"}), "actions" (array of {"type", "adjustment" or "priority"}), "weight" (0-1), "priority" (integer), "enabled" (true)
- "rationale": 1-2 sentences explaining why this rule would reduce rejected suggestions
- "confidence": 0-1, how confident you are the rule helps

Valid condition fields: issue.type, issue.toolName, issue.filePath, issue.message, classification.category, classification.severity, context.criticality, context.businessDomain, finalScore.
Valid operators: equals, contains, startsWith, endsWith, regex, gt, lt, gte, lte.
Valid action types: adjustScore (with "adjustment"), setPriority (with "priority"), skipTriage.

Rules:
- Suggest at most 5 rules, fewest first by expected impact
- Prefer narrow conditions over broad ones
- adjustScore adjustments should stay within [-3, 3]
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Triage effectiveness: %d suggestions, %d accepted, %d rejected, %d modified, accuracy %.2f.\n",
		report.Total, report.Accepted, report.Rejected, report.Modified, report.Accuracy))
	if len(report.Recommendations) > 0 {
		sb.WriteString("Known problems:\n")
		for _, r := range report.Recommendations {
			sb.WriteString("- ")
			sb.WriteString(r)
			sb.WriteString("\n")
		}
	}
	if len(rejections) > 0 {
		sb.WriteString("\nRecently rejected suggestions:\n")
		for _, r := range rejections {
			sb.WriteString("- ")
			sb.WriteString(r)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nSuggest prioritization rules that would make future suggestions match what the team actually does.")
	user = sb.String()
	return
}

// RecommendRules asks the LLM for candidate rules given the current
// effectiveness report and a sample of rejected suggestions.
func (c *Client) RecommendRules(ctx context.Context, report models.TriageEffectivenessReport, rejections []string) ([]models.TriageRuleRecommendation, error) {
	systemPrompt, userPrompt := buildPrompt(report, rejections)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	// Strip markdown fencing if present
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var recommendations []models.TriageRuleRecommendation
	if err := json.Unmarshal([]byte(text), &recommendations); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}

	return recommendations, nil
}
