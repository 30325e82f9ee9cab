// Package mcp exposes the triage engine as MCP tools over stdio, for use
// by agent-based clients.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/menoncello/triage/internal/models"
	"github.com/menoncello/triage/internal/rules"
	"github.com/menoncello/triage/internal/store"
	"github.com/menoncello/triage/internal/triage"
)

// Server wraps the triage engine and store and exposes them as MCP tools.
type Server struct {
	engine *triage.Engine
	store  store.Store
}

// NewServer creates the MCP server wrapper. The store may be nil, in
// which case rule and outcome tools operate on request payloads only.
func NewServer(engine *triage.Engine, s store.Store) *Server {
	return &Server{engine: engine, store: s}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("triage", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.prioritizeTool())
	srv.AddTool(s.validateRuleTool())
	srv.AddTool(s.ruleConflictsTool())
	srv.AddTool(s.effectivenessTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// triage_prioritize
func (s *Server) prioritizeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("triage_prioritize",
		mcp.WithDescription("Prioritize a batch of static-analysis issues. Takes a JSON array of issues and an optional project context; returns ranked prioritizations with triage suggestions."),
		mcp.WithString("issues", mcp.Required(), mcp.Description("JSON array of issues (id, type, toolName, filePath, lineNumber, message, fixable, score)")),
		mcp.WithString("project", mcp.Description("JSON project context (teamPreferences, historicalData)")),
	)
	return tool, s.handlePrioritize
}

func (s *Server) handlePrioritize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issuesJSON, err := request.RequireString("issues")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issues"), nil
	}

	var issues []models.Issue
	if err := json.Unmarshal([]byte(issuesJSON), &issues); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid issues JSON: %v", err)), nil
	}

	var project models.ProjectContext
	if projectJSON := request.GetString("project", ""); projectJSON != "" {
		if err := json.Unmarshal([]byte(projectJSON), &project); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid project JSON: %v", err)), nil
		}
	}

	var ruleset []*models.PrioritizationRule
	if s.store != nil {
		ruleset, err = s.store.ListRules(ctx, true)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list rules: %v", err)), nil
		}
	}

	prioritizations, err := s.engine.Prioritize(ctx, issues, nil, ruleset, project)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("prioritize failed: %v", err)), nil
	}

	if s.store != nil {
		if counts, at := s.engine.RuleApplications(); len(counts) > 0 {
			if err := s.store.RecordRuleApplications(ctx, counts, at); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to record rule applications: %v", err)), nil
			}
		}
	}

	prioritizations = s.engine.OptimizeSuggestions(prioritizations, project)

	data, err := json.Marshal(prioritizations)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// triage_validate_rule
func (s *Server) validateRuleTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("triage_validate_rule",
		mcp.WithDescription("Validate a prioritization rule's structure. Returns errors (rule unusable) and warnings (rule stays usable)."),
		mcp.WithString("rule", mcp.Required(), mcp.Description("JSON rule object")),
	)
	return tool, s.handleValidateRule
}

func (s *Server) handleValidateRule(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ruleJSON, err := request.RequireString("rule")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: rule"), nil
	}

	var rule models.PrioritizationRule
	if err := json.Unmarshal([]byte(ruleJSON), &rule); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid rule JSON: %v", err)), nil
	}

	result := rules.ValidateRule(&rule)
	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// triage_rule_conflicts
func (s *Server) ruleConflictsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("triage_rule_conflicts",
		mcp.WithDescription("Detect conflicts in the stored ruleset (or a supplied one): pairs of rules sharing a condition field with opposite-sign score adjustments."),
		mcp.WithString("rules", mcp.Description("JSON array of rules; defaults to stored rules")),
	)
	return tool, s.handleRuleConflicts
}

func (s *Server) handleRuleConflicts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var ruleset []*models.PrioritizationRule

	if rulesJSON := request.GetString("rules", ""); rulesJSON != "" {
		if err := json.Unmarshal([]byte(rulesJSON), &ruleset); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid rules JSON: %v", err)), nil
		}
	} else if s.store != nil {
		var err error
		ruleset, err = s.store.ListRules(ctx, false)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list rules: %v", err)), nil
		}
	}

	conflicts := rules.DetectRuleConflicts(ruleset)
	if conflicts == nil {
		conflicts = []models.RuleConflict{}
	}
	data, err := json.Marshal(conflicts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal conflicts: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// triage_effectiveness
func (s *Server) effectivenessTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("triage_effectiveness",
		mcp.WithDescription("Report triage suggestion effectiveness from stored history and outcomes: acceptance counts, accuracy, and recommendations."),
	)
	return tool, s.handleEffectiveness
}

func (s *Server) handleEffectiveness(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no store configured"), nil
	}

	history, err := s.store.ListHistory(ctx, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list history: %v", err)), nil
	}
	outcomes, err := s.store.ListOutcomes(ctx, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list outcomes: %v", err)), nil
	}

	prioritizations := make([]models.IssuePrioritization, len(history))
	for i, rec := range history {
		prioritizations[i] = rec.Prioritization
	}

	report := triage.TrackTriageEffectiveness(prioritizations, outcomes)
	data, err := json.Marshal(report)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
