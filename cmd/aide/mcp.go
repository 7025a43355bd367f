package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aidekit/aide/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run aide as an MCP (Model Context Protocol) server",
		Long: `Start an MCP server that exposes aide's records over stdio.

The MCP server lets AI tools (Continue.dev, Cursor, Cline, Windsurf,
GitHub Copilot) inspect aide state directly:

  • aide_meetings  - List tracked meetings
  • aide_emails    - List recorded emails
  • aide_stats     - Summarize counts by status and source
  • aide_approvals - Show actions paused for human approval

The server communicates via JSON-RPC 2.0 over stdin/stdout, following
the Model Context Protocol specification.

Example usage in Continue.dev config.json:

  {
    "mcpServers": {
      "aide": {
        "command": "aide",
        "args": ["mcp-server"],
        "cwd": "${workspaceFolder}"
      }
    }
  }
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "aide",
				Version: version,
				Root:    root,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			// Run server (blocks until client disconnects or SIGTERM/SIGINT)
			if err := server.Run(context.Background()); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		},
	}

	return cmd
}
