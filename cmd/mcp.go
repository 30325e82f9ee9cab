package cmd

import (
	"github.com/spf13/cobra"

	"github.com/menoncello/triage/internal/mcp"
	"github.com/menoncello/triage/internal/triage"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as an MCP server over stdio",
	Long: `Run triage as an MCP (Model Context Protocol) server on stdin/stdout,
exposing prioritization, rule validation, conflict detection, and
effectiveness reporting as tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := triage.New(engineOptions())

		// The store is optional: prioritization works without one, the
		// effectiveness tool reports an error if it is missing.
		s, err := getStore()
		if err != nil {
			ui.VerboseLog("Store unavailable, running without persistence: %v", err)
			s = nil
		}

		srv := mcp.NewServer(engine, s)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
