package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/joescharf/lr/internal/git"
	"github.com/joescharf/lr/internal/review"
)

// Server wraps the review service and exposes it as MCP tools.
type Server struct {
	svc      *review.Service
	repoPath string
	log      zerolog.Logger
}

// NewServer creates the MCP server wrapper. repoPath is the repository
// used by git tools when a call does not pass repoPath.
func NewServer(svc *review.Service, repoPath string, log zerolog.Logger) *Server {
	return &Server{
		svc:      svc,
		repoPath: repoPath,
		log:      log,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("lr", "1.0.0", server.WithToolCapabilities(true))

	// Sessions
	srv.AddTool(s.listSessionsTool())
	srv.AddTool(s.createSessionTool())
	srv.AddTool(s.getSessionTool())
	srv.AddTool(s.updateSessionTool())
	srv.AddTool(s.deleteSessionTool())

	// Comments
	srv.AddTool(s.listCommentsTool())
	srv.AddTool(s.createCommentTool())
	srv.AddTool(s.updateCommentTool())
	srv.AddTool(s.deleteCommentTool())
	srv.AddTool(s.toggleResolveTool())

	// Files and activity
	srv.AddTool(s.listFilesTool())
	srv.AddTool(s.updateFileStatusTool())
	srv.AddTool(s.listActivitiesTool())

	// Git
	srv.AddTool(s.gitBranchesTool())
	srv.AddTool(s.gitDiffFilesTool())
	srv.AddTool(s.gitFileContentDiffTool())
	srv.AddTool(s.gitCommitsTool())
	srv.AddTool(s.gitFileContentTool())
	srv.AddTool(s.gitRawDiffTool())
	srv.AddTool(s.gitWorkingChangesTool())
	srv.AddTool(s.gitWorkingDiffTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult reports a service error as a tool error, prefixed with its kind.
func (s *Server) errorResult(tool string, err error) *mcp.CallToolResult {
	var kind string
	switch {
	case review.IsValidation(err):
		kind = "invalid input"
	case review.IsRefError(err):
		kind = "invalid ref"
	case review.IsNotFound(err):
		kind = "not found"
	default:
		kind = "error"
		s.log.Warn().Err(err).Str("tool", tool).Msg("tool call failed")
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err))
}

// optString returns nil when key was not passed.
func optString(request mcp.CallToolRequest, key string) *string {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return nil
	}
	str, ok := v.(string)
	if !ok {
		return nil
	}
	return &str
}

func optInt(request mcp.CallToolRequest, key string) *int {
	if v, ok := request.GetArguments()[key]; !ok || v == nil {
		return nil
	}
	n := request.GetInt(key, 0)
	return &n
}

func optBool(request mcp.CallToolRequest, key string) *bool {
	if v, ok := request.GetArguments()[key]; !ok || v == nil {
		return nil
	}
	b := request.GetBool(key, false)
	return &b
}

func (s *Server) gitClient(request mcp.CallToolRequest) (git.Client, error) {
	path := request.GetString("repoPath", "")
	if path == "" {
		path = s.repoPath
	}
	return s.svc.Repos().Get(path)
}
