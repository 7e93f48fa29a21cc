package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/lr/internal/git"
)

func repoPathOption() mcp.ToolOption {
	return mcp.WithString("repoPath", mcp.Description("Path to the git repository (defaults to the configured repository)"))
}

// requireStrings returns the named string arguments or an error naming the
// first one missing.
func requireStrings(request mcp.CallToolRequest, names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		v, err := request.RequireString(name)
		if err != nil || v == "" {
			return nil, fmt.Errorf("missing required parameter: %s", name)
		}
		out[i] = v
	}
	return out, nil
}

// lr_git_branches
func (s *Server) gitBranchesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_git_branches",
		mcp.WithDescription("List local branches and the currently checked-out branch."),
		repoPathOption(),
	)
	return tool, s.handleGitBranches
}

func (s *Server) handleGitBranches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := s.gitClient(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	branches, err := c.Branches(ctx)
	if err != nil {
		return s.errorResult("lr_git_branches", err), nil
	}
	return jsonResult(branches)
}

// lr_git_diff_files
func (s *Server) gitDiffFilesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_git_diff_files",
		mcp.WithDescription("List files changed between two refs with status and line counts."),
		repoPathOption(),
		mcp.WithString("base", mcp.Required(), mcp.Description("Base ref")),
		mcp.WithString("head", mcp.Required(), mcp.Description("Head ref")),
	)
	return tool, s.handleGitDiffFiles
}

func (s *Server) handleGitDiffFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireStrings(request, "base", "head")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.gitClient(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	files, err := c.DiffFiles(ctx, args[0], args[1])
	if err != nil {
		return s.errorResult("lr_git_diff_files", err), nil
	}
	return jsonResult(files)
}

// lr_git_file_content_diff
func (s *Server) gitFileContentDiffTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_git_file_content_diff",
		mcp.WithDescription("Get the old and new content of one file between two refs, with its detected language."),
		repoPathOption(),
		mcp.WithString("base", mcp.Required(), mcp.Description("Base ref")),
		mcp.WithString("head", mcp.Required(), mcp.Description("Head ref")),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path")),
	)
	return tool, s.handleGitFileContentDiff
}

func (s *Server) handleGitFileContentDiff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireStrings(request, "base", "head", "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.gitClient(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := c.FileContentDiff(ctx, args[0], args[1], args[2])
	if err != nil {
		return s.errorResult("lr_git_file_content_diff", err), nil
	}
	return jsonResult(content)
}

// lr_git_commits
func (s *Server) gitCommitsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_git_commits",
		mcp.WithDescription("List commits reachable from head but not from base, newest first."),
		repoPathOption(),
		mcp.WithString("base", mcp.Required(), mcp.Description("Base ref")),
		mcp.WithString("head", mcp.Required(), mcp.Description("Head ref")),
	)
	return tool, s.handleGitCommits
}

func (s *Server) handleGitCommits(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireStrings(request, "base", "head")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.gitClient(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	commits, err := c.CommitsBetween(ctx, args[0], args[1])
	if err != nil {
		return s.errorResult("lr_git_commits", err), nil
	}
	return jsonResult(commits)
}

// lr_git_file_content
func (s *Server) gitFileContentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_git_file_content",
		mcp.WithDescription("Get a file's content at a ref. Returns an empty string if the file does not exist there."),
		repoPathOption(),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Branch, tag or commit")),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path")),
	)
	return tool, s.handleGitFileContent
}

func (s *Server) handleGitFileContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireStrings(request, "ref", "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.gitClient(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := c.FileContent(ctx, args[0], args[1])
	if err != nil {
		return s.errorResult("lr_git_file_content", err), nil
	}
	return mcp.NewToolResultText(content), nil
}

// lr_git_raw_diff
func (s *Server) gitRawDiffTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_git_raw_diff",
		mcp.WithDescription("Get the unified diff between two refs, optionally for one path."),
		repoPathOption(),
		mcp.WithString("base", mcp.Required(), mcp.Description("Base ref")),
		mcp.WithString("head", mcp.Required(), mcp.Description("Head ref")),
		mcp.WithString("path", mcp.Description("Limit the diff to this path")),
	)
	return tool, s.handleGitRawDiff
}

func (s *Server) handleGitRawDiff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requireStrings(request, "base", "head")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.gitClient(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	diff, err := c.RawDiff(ctx, args[0], args[1], request.GetString("path", ""))
	if err != nil {
		return s.errorResult("lr_git_raw_diff", err), nil
	}
	return mcp.NewToolResultText(diff), nil
}

// lr_git_working_changes
func (s *Server) gitWorkingChangesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_git_working_changes",
		mcp.WithDescription("List uncommitted changes split into staged and unstaged files."),
		repoPathOption(),
	)
	return tool, s.handleGitWorkingChanges
}

func (s *Server) handleGitWorkingChanges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := s.gitClient(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	changes, err := c.WorkingChanges(ctx)
	if err != nil {
		return s.errorResult("lr_git_working_changes", err), nil
	}
	return jsonResult(changes)
}

// lr_git_working_diff
func (s *Server) gitWorkingDiffTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_git_working_diff",
		mcp.WithDescription("Get the unified diff of staged or unstaged changes."),
		repoPathOption(),
		mcp.WithString("type", mcp.Required(), mcp.Description("Which changes to diff"), mcp.Enum("staged", "unstaged")),
		mcp.WithString("path", mcp.Description("Limit the diff to this path")),
	)
	return tool, s.handleGitWorkingDiff
}

func (s *Server) handleGitWorkingDiff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := git.DiffKind(request.GetString("type", ""))
	if kind != git.DiffStaged && kind != git.DiffUnstaged {
		return mcp.NewToolResultError("type must be staged or unstaged"), nil
	}
	c, err := s.gitClient(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	diff, err := c.WorkingDiff(ctx, kind, request.GetString("path", ""))
	if err != nil {
		return s.errorResult("lr_git_working_diff", err), nil
	}
	return mcp.NewToolResultText(diff), nil
}
