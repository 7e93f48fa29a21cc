package mcp

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/lr/internal/git"
	"github.com/joescharf/lr/internal/models"
	"github.com/joescharf/lr/internal/review"
	"github.com/joescharf/lr/internal/store"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, string(out))
}

func commitFile(t *testing.T, dir, name, content, msg string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	runGit(t, dir, "add", name)
	runGit(t, dir, "commit", "-m", msg)
}

// initTestRepo creates a repo whose checked-out feature branch modifies
// main.go and adds util.go relative to main.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	out, err := exec.Command("git", "init", dir).CombinedOutput()
	require.NoError(t, err, "git init: %s", string(out))
	runGit(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	runGit(t, dir, "config", "user.email", "test@test.com")
	runGit(t, dir, "config", "user.name", "Test")
	runGit(t, dir, "config", "commit.gpgsign", "false")

	commitFile(t, dir, "main.go", "package main\n", "initial")
	runGit(t, dir, "checkout", "-b", "feature")
	commitFile(t, dir, "main.go", "package main // app\n\nfunc main() {}\n", "add main")
	commitFile(t, dir, "util.go", "package main\n", "add util")

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	return resolved
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	repoPath := initTestRepo(t)
	svc := review.NewService(s, git.NewRegistry())
	return NewServer(svc, repoPath, zerolog.Nop()), repoPath
}

// callToolReq builds a CallToolRequest with the given tool name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	require.False(t, result.IsError, "unexpected tool error: %s", resultText(t, result))
	text := resultText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target), "failed to parse result JSON: %s", text)
}

func createSession(t *testing.T, srv *Server) models.SessionWithStats {
	t.Helper()
	result, err := srv.handleCreateSession(context.Background(), callToolReq("lr_create_session", map[string]any{
		"baseBranch": "main",
	}))
	require.NoError(t, err)
	var sess models.SessionWithStats
	resultJSON(t, result, &sess)
	return sess
}

// ---------------------------------------------------------------------------
// Session tools
// ---------------------------------------------------------------------------

func TestCreateSession_DefaultRepo(t *testing.T) {
	srv, repoPath := newTestServer(t)

	sess := createSession(t, srv)
	assert.Equal(t, repoPath, sess.RepositoryPath)
	assert.Equal(t, "feature", sess.HeadBranch)
	assert.Equal(t, 2, sess.FilesTotal)
	assert.Len(t, sess.BaseCommit, 40)
}

func TestCreateSession_Errors(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleCreateSession(ctx, callToolReq("lr_create_session", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid input")

	result, err = srv.handleCreateSession(ctx, callToolReq("lr_create_session", map[string]any{"baseBranch": "ghost"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid ref")
}

func TestSessionTools_Lifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	sess := createSession(t, srv)

	result, err := srv.handleListSessions(ctx, callToolReq("lr_list_sessions", nil))
	require.NoError(t, err)
	var sessions []models.SessionWithStats
	resultJSON(t, result, &sessions)
	require.Len(t, sessions, 1)

	result, err = srv.handleGetSession(ctx, callToolReq("lr_get_session", map[string]any{"id": sess.ID}))
	require.NoError(t, err)
	var detail review.SessionDetail
	resultJSON(t, result, &detail)
	require.Len(t, detail.Files, 2)
	assert.Equal(t, "main.go", detail.Files[0].Path)
	assert.Equal(t, git.StatusModified, detail.Files[0].Status)
	assert.Equal(t, "util.go", detail.Files[1].Path)
	assert.Equal(t, git.StatusAdded, detail.Files[1].Status)

	result, err = srv.handleUpdateSession(ctx, callToolReq("lr_update_session", map[string]any{
		"id": sess.ID, "title": "Renamed", "status": "archived",
	}))
	require.NoError(t, err)
	var updated models.ReviewSession
	resultJSON(t, result, &updated)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, models.SessionStatusArchived, updated.Status)
	assert.Equal(t, sess.Description, updated.Description)

	result, err = srv.handleUpdateSession(ctx, callToolReq("lr_update_session", map[string]any{"id": sess.ID, "status": "done"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleDeleteSession(ctx, callToolReq("lr_delete_session", map[string]any{"id": sess.ID}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = srv.handleGetSession(ctx, callToolReq("lr_get_session", map[string]any{"id": sess.ID}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

func TestGetSession_MissingID(t *testing.T) {
	srv, _ := newTestServer(t)
	result, err := srv.handleGetSession(context.Background(), callToolReq("lr_get_session", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "missing required parameter: id")
}

// ---------------------------------------------------------------------------
// Comment tools
// ---------------------------------------------------------------------------

func TestCommentTools(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	sess := createSession(t, srv)

	result, err := srv.handleCreateComment(ctx, callToolReq("lr_create_comment", map[string]any{
		"sessionId": sess.ID, "filePath": "main.go", "side": "new",
		"lineNumber": float64(3), "endLineNumber": float64(4), "content": "empty main",
	}))
	require.NoError(t, err)
	var c models.LineComment
	resultJSON(t, result, &c)
	assert.Equal(t, 3, c.LineNumber)
	require.NotNil(t, c.EndLineNumber)
	assert.Equal(t, 4, *c.EndLineNumber)

	result, err = srv.handleCreateComment(ctx, callToolReq("lr_create_comment", map[string]any{
		"sessionId": sess.ID, "filePath": "main.go", "side": "new",
		"lineNumber": 3, "content": "reply", "parentId": c.ID,
	}))
	require.NoError(t, err)
	var reply models.LineComment
	resultJSON(t, result, &reply)
	assert.Equal(t, c.ID, reply.ParentID)

	result, err = srv.handleToggleResolve(ctx, callToolReq("lr_toggle_resolve", map[string]any{"id": c.ID}))
	require.NoError(t, err)
	var toggled models.LineComment
	resultJSON(t, result, &toggled)
	assert.True(t, toggled.Resolved)

	result, err = srv.handleUpdateComment(ctx, callToolReq("lr_update_comment", map[string]any{"id": c.ID, "resolved": false}))
	require.NoError(t, err)
	var reopened models.LineComment
	resultJSON(t, result, &reopened)
	assert.False(t, reopened.Resolved)
	assert.Nil(t, reopened.ResolvedAt)
	assert.Equal(t, "empty main", reopened.Content)

	result, err = srv.handleListComments(ctx, callToolReq("lr_list_comments", map[string]any{"sessionId": sess.ID, "filePath": "main.go"}))
	require.NoError(t, err)
	var comments []models.LineComment
	resultJSON(t, result, &comments)
	assert.Len(t, comments, 2)

	result, err = srv.handleDeleteComment(ctx, callToolReq("lr_delete_comment", map[string]any{"id": c.ID}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = srv.handleListComments(ctx, callToolReq("lr_list_comments", map[string]any{"sessionId": sess.ID}))
	require.NoError(t, err)
	assert.Equal(t, "[]", resultText(t, result))
}

func TestCreateComment_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := createSession(t, srv)

	result, err := srv.handleCreateComment(context.Background(), callToolReq("lr_create_comment", map[string]any{
		"sessionId": sess.ID, "filePath": "main.go", "side": "new", "content": "no line",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "lineNumber")
}

func TestUpdateComment_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	result, err := srv.handleUpdateComment(context.Background(), callToolReq("lr_update_comment", map[string]any{"id": "nope", "content": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

// ---------------------------------------------------------------------------
// File and activity tools
// ---------------------------------------------------------------------------

func TestFileStatusAndActivities(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	sess := createSession(t, srv)

	result, err := srv.handleUpdateFileStatus(ctx, callToolReq("lr_update_file_status", map[string]any{
		"sessionId": sess.ID, "filePath": "util.go", "status": "reviewed",
	}))
	require.NoError(t, err)
	var fs models.FileReviewStatus
	resultJSON(t, result, &fs)
	assert.Equal(t, models.FileStatusReviewed, fs.Status)
	assert.NotNil(t, fs.ReviewedAt)

	result, err = srv.handleUpdateFileStatus(ctx, callToolReq("lr_update_file_status", map[string]any{
		"sessionId": sess.ID, "filePath": "util.go", "status": "done",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleListFiles(ctx, callToolReq("lr_list_files", map[string]any{"sessionId": sess.ID}))
	require.NoError(t, err)
	var files []models.FileReviewStatus
	resultJSON(t, result, &files)
	require.Len(t, files, 2)
	assert.Equal(t, "main.go", files[0].FilePath)
	assert.Equal(t, models.FileStatusPending, files[0].Status)
	assert.Equal(t, models.FileStatusReviewed, files[1].Status)

	result, err = srv.handleListActivities(ctx, callToolReq("lr_list_activities", map[string]any{"sessionId": sess.ID, "limit": 1}))
	require.NoError(t, err)
	var activities []models.ActivityLog
	resultJSON(t, result, &activities)
	require.Len(t, activities, 1)
	assert.Equal(t, models.ActionFileReviewed, activities[0].Action)
	assert.Equal(t, "util.go", activities[0].TargetID)
}

// ---------------------------------------------------------------------------
// Git tools
// ---------------------------------------------------------------------------

func TestGitTools(t *testing.T) {
	srv, repoPath := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleGitBranches(ctx, callToolReq("lr_git_branches", map[string]any{"repoPath": repoPath}))
	require.NoError(t, err)
	var branches git.BranchInfo
	resultJSON(t, result, &branches)
	assert.Equal(t, "feature", branches.Current)
	assert.ElementsMatch(t, []string{"main", "feature"}, branches.All)

	result, err = srv.handleGitDiffFiles(ctx, callToolReq("lr_git_diff_files", map[string]any{"base": "main", "head": "feature"}))
	require.NoError(t, err)
	var files []git.DiffFile
	resultJSON(t, result, &files)
	require.Len(t, files, 2)
	assert.Equal(t, 3, files[0].Additions)
	assert.Equal(t, 1, files[0].Deletions)

	result, err = srv.handleGitFileContentDiff(ctx, callToolReq("lr_git_file_content_diff", map[string]any{
		"base": "main", "head": "feature", "path": "util.go",
	}))
	require.NoError(t, err)
	var content git.FileContent
	resultJSON(t, result, &content)
	assert.Equal(t, "", content.OldContent)
	assert.Equal(t, "package main\n", content.NewContent)
	assert.Equal(t, "go", content.Language)

	result, err = srv.handleGitCommits(ctx, callToolReq("lr_git_commits", map[string]any{"base": "main", "head": "feature"}))
	require.NoError(t, err)
	var commits []git.Commit
	resultJSON(t, result, &commits)
	require.Len(t, commits, 2)
	assert.Equal(t, "add util", commits[0].Message)

	result, err = srv.handleGitFileContent(ctx, callToolReq("lr_git_file_content", map[string]any{"ref": "main", "path": "main.go"}))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", resultText(t, result))

	result, err = srv.handleGitRawDiff(ctx, callToolReq("lr_git_raw_diff", map[string]any{"base": "main", "head": "feature", "path": "main.go"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "+func main() {}")
	assert.NotContains(t, resultText(t, result), "util.go")

	require.NoError(t, os.WriteFile(filepath.Join(repoPath, "util.go"), []byte("package util\n"), 0o644))
	runGit(t, repoPath, "add", "util.go")

	result, err = srv.handleGitWorkingChanges(ctx, callToolReq("lr_git_working_changes", nil))
	require.NoError(t, err)
	var changes git.WorkingChanges
	resultJSON(t, result, &changes)
	require.Len(t, changes.Staged, 1)
	assert.Empty(t, changes.Unstaged)

	result, err = srv.handleGitWorkingDiff(ctx, callToolReq("lr_git_working_diff", map[string]any{"type": "staged"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "+package util")
}

func TestGitTools_Errors(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleGitDiffFiles(ctx, callToolReq("lr_git_diff_files", map[string]any{"base": "main"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "missing required parameter: head")

	result, err = srv.handleGitCommits(ctx, callToolReq("lr_git_commits", map[string]any{"base": "main", "head": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid ref")

	result, err = srv.handleGitWorkingDiff(ctx, callToolReq("lr_git_working_diff", map[string]any{"type": "all"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleGitBranches(ctx, callToolReq("lr_git_branches", map[string]any{"repoPath": t.TempDir()}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

func TestMCPIntegration_ListTools(t *testing.T) {
	srv, _ := newTestServer(t)

	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv)

	ctx := context.Background()
	reqJSON := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	respMsg := mcpSrv.HandleMessage(ctx, reqJSON)
	require.NotNil(t, respMsg)

	respBytes, err := json.Marshal(respMsg)
	require.NoError(t, err)

	var rpcResp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpcResp))

	toolNames := make(map[string]bool)
	for _, tool := range rpcResp.Result.Tools {
		toolNames[tool.Name] = true
	}

	expectedTools := []string{
		"lr_list_sessions", "lr_create_session", "lr_get_session", "lr_update_session", "lr_delete_session",
		"lr_list_comments", "lr_create_comment", "lr_update_comment", "lr_delete_comment", "lr_toggle_resolve",
		"lr_list_files", "lr_update_file_status", "lr_list_activities",
		"lr_git_branches", "lr_git_diff_files", "lr_git_file_content_diff", "lr_git_commits",
		"lr_git_file_content", "lr_git_raw_diff", "lr_git_working_changes", "lr_git_working_diff",
	}
	assert.Len(t, rpcResp.Result.Tools, len(expectedTools))
	for _, name := range expectedTools {
		assert.True(t, toolNames[name], "expected tool %q to be registered", name)
	}
}
