package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/lr/internal/models"
	"github.com/joescharf/lr/internal/review"
)

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// lr_list_sessions
func (s *Server) listSessionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_list_sessions",
		mcp.WithDescription("List all review sessions, newest first, with file and comment counts."),
	)
	return tool, s.handleListSessions
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.svc.ListSessions(ctx)
	if err != nil {
		return s.errorResult("lr_list_sessions", err), nil
	}
	return jsonResult(sessions)
}

// lr_create_session
func (s *Server) createSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_create_session",
		mcp.WithDescription("Start a review of the repository's current branch against a base branch. The diff is frozen at the current commits."),
		mcp.WithString("repositoryPath", mcp.Description("Path to the git repository (defaults to the configured repository)")),
		mcp.WithString("baseBranch", mcp.Required(), mcp.Description("Branch, tag or commit to compare against")),
		mcp.WithString("title", mcp.Description("Session title (default: Review: <base>...<head>)")),
		mcp.WithString("description", mcp.Description("Session description")),
	)
	return tool, s.handleCreateSession
}

func (s *Server) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := review.CreateSessionRequest{
		RepositoryPath: request.GetString("repositoryPath", s.repoPath),
		BaseBranch:     request.GetString("baseBranch", ""),
		Title:          optString(request, "title"),
		Description:    optString(request, "description"),
	}
	sess, err := s.svc.CreateSession(ctx, req)
	if err != nil {
		return s.errorResult("lr_create_session", err), nil
	}
	return jsonResult(sess)
}

// lr_get_session
func (s *Server) getSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_get_session",
		mcp.WithDescription("Get a review session with its changed files, per-file review status and counts."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session ID")),
	)
	return tool, s.handleGetSession
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	detail, err := s.svc.GetSession(ctx, id)
	if err != nil {
		return s.errorResult("lr_get_session", err), nil
	}
	return jsonResult(detail)
}

// lr_update_session
func (s *Server) updateSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_update_session",
		mcp.WithDescription("Update a session's title, description or status. Only provided fields are changed."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("status", mcp.Description("New status"), mcp.Enum("active", "completed", "archived")),
	)
	return tool, s.handleUpdateSession
}

func (s *Server) handleUpdateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	req := review.UpdateSessionRequest{
		Title:       optString(request, "title"),
		Description: optString(request, "description"),
	}
	if st := optString(request, "status"); st != nil {
		status := models.SessionStatus(*st)
		req.Status = &status
	}

	sess, err := s.svc.UpdateSession(ctx, id, req)
	if err != nil {
		return s.errorResult("lr_update_session", err), nil
	}
	return jsonResult(sess)
}

// lr_delete_session
func (s *Server) deleteSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_delete_session",
		mcp.WithDescription("Delete a review session with all of its comments, file statuses and activity."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session ID")),
	)
	return tool, s.handleDeleteSession
}

func (s *Server) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	if err := s.svc.DeleteSession(ctx, id); err != nil {
		return s.errorResult("lr_delete_session", err), nil
	}
	return jsonResult(map[string]any{"deleted": true, "id": id})
}

// ---------------------------------------------------------------------------
// Comments
// ---------------------------------------------------------------------------

// lr_list_comments
func (s *Server) listCommentsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_list_comments",
		mcp.WithDescription("List line comments for a session, optionally for one file, ordered by file and line."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("filePath", mcp.Description("Only comments on this file")),
	)
	return tool, s.handleListComments
}

func (s *Server) handleListComments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("sessionId")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: sessionId"), nil
	}
	comments, err := s.svc.ListComments(ctx, sessionID, request.GetString("filePath", ""))
	if err != nil {
		return s.errorResult("lr_list_comments", err), nil
	}
	return jsonResult(comments)
}

// lr_create_comment
func (s *Server) createCommentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_create_comment",
		mcp.WithDescription("Add a comment on a line (or line range) of a file in a session. Pass parentId to reply to an existing comment."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("filePath", mcp.Required(), mcp.Description("Path of the file in the diff")),
		mcp.WithString("side", mcp.Required(), mcp.Description("Which side of the diff the line is on"), mcp.Enum("old", "new")),
		mcp.WithNumber("lineNumber", mcp.Required(), mcp.Description("1-based line number")),
		mcp.WithNumber("endLineNumber", mcp.Description("Last line of a range comment")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Comment text")),
		mcp.WithString("parentId", mcp.Description("ID of the comment being replied to")),
	)
	return tool, s.handleCreateComment
}

func (s *Server) handleCreateComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := review.CreateCommentRequest{
		SessionID:     request.GetString("sessionId", ""),
		FilePath:      request.GetString("filePath", ""),
		Side:          models.Side(request.GetString("side", "")),
		LineNumber:    optInt(request, "lineNumber"),
		EndLineNumber: optInt(request, "endLineNumber"),
		Content:       request.GetString("content", ""),
		ParentID:      request.GetString("parentId", ""),
	}
	c, err := s.svc.CreateComment(ctx, req)
	if err != nil {
		return s.errorResult("lr_create_comment", err), nil
	}
	return jsonResult(c)
}

// lr_update_comment
func (s *Server) updateCommentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_update_comment",
		mcp.WithDescription("Edit a comment's content or set its resolved flag."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Comment ID")),
		mcp.WithString("content", mcp.Description("New comment text")),
		mcp.WithBoolean("resolved", mcp.Description("Mark resolved (true) or unresolved (false)")),
	)
	return tool, s.handleUpdateComment
}

func (s *Server) handleUpdateComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	c, err := s.svc.UpdateComment(ctx, id, review.UpdateCommentRequest{
		Content:  optString(request, "content"),
		Resolved: optBool(request, "resolved"),
	})
	if err != nil {
		return s.errorResult("lr_update_comment", err), nil
	}
	return jsonResult(c)
}

// lr_delete_comment
func (s *Server) deleteCommentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_delete_comment",
		mcp.WithDescription("Delete a comment and its replies."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Comment ID")),
	)
	return tool, s.handleDeleteComment
}

func (s *Server) handleDeleteComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	if err := s.svc.DeleteComment(ctx, id); err != nil {
		return s.errorResult("lr_delete_comment", err), nil
	}
	return jsonResult(map[string]any{"deleted": true, "id": id})
}

// lr_toggle_resolve
func (s *Server) toggleResolveTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_toggle_resolve",
		mcp.WithDescription("Flip a comment between resolved and unresolved."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Comment ID")),
	)
	return tool, s.handleToggleResolve
}

func (s *Server) handleToggleResolve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	c, err := s.svc.ToggleResolve(ctx, id)
	if err != nil {
		return s.errorResult("lr_toggle_resolve", err), nil
	}
	return jsonResult(c)
}

// ---------------------------------------------------------------------------
// Files and activity
// ---------------------------------------------------------------------------

// lr_list_files
func (s *Server) listFilesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_list_files",
		mcp.WithDescription("List the stored review status of each file in a session."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("Session ID")),
	)
	return tool, s.handleListFiles
}

func (s *Server) handleListFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("sessionId")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: sessionId"), nil
	}
	files, err := s.svc.ListFiles(ctx, sessionID)
	if err != nil {
		return s.errorResult("lr_list_files", err), nil
	}
	return jsonResult(files)
}

// lr_update_file_status
func (s *Server) updateFileStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_update_file_status",
		mcp.WithDescription("Set the review status of a file in a session."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("filePath", mcp.Required(), mcp.Description("Path of the file in the diff")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Review status"), mcp.Enum("pending", "viewed", "reviewed")),
	)
	return tool, s.handleUpdateFileStatus
}

func (s *Server) handleUpdateFileStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fs, err := s.svc.UpdateFileStatus(ctx, review.UpdateFileStatusRequest{
		SessionID: request.GetString("sessionId", ""),
		FilePath:  request.GetString("filePath", ""),
		Status:    models.FileStatus(request.GetString("status", "")),
	})
	if err != nil {
		return s.errorResult("lr_update_file_status", err), nil
	}
	return jsonResult(fs)
}

// lr_list_activities
func (s *Server) listActivitiesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("lr_list_activities",
		mcp.WithDescription("List a session's activity log, newest first."),
		mcp.WithString("sessionId", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default 50)")),
	)
	return tool, s.handleListActivities
}

func (s *Server) handleListActivities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("sessionId")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: sessionId"), nil
	}
	activities, err := s.svc.ListActivities(ctx, sessionID, request.GetInt("limit", 0))
	if err != nil {
		return s.errorResult("lr_list_activities", err), nil
	}
	return jsonResult(activities)
}
