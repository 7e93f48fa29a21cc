package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	lrmcp "github.com/joescharf/lr/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets a coding agent read diffs and manage review sessions, comments
and file progress. Register it with your MCP client, for example:

  {
    "mcpServers": {
      "lr": { "command": "lr", "args": ["mcp", "--repo", "/path/to/repo"] }
    }
  }

Logs go to stderr; stdout carries only the protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	repo, err := repoPath()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	logger.Debug().Str("repo", repo).Msg("mcp server starting")
	return lrmcp.NewServer(svc, repo, logger).ServeStdio(ctx)
}
