package review

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joescharf/lr/internal/git"
	"github.com/joescharf/lr/internal/store"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClient is a git.Client with canned answers.
type fakeClient struct {
	path     string
	current  string
	refs     map[string]string
	files    []git.DiffFile
	diffArgs [][2]string
}

func (f *fakeClient) Path() string { return f.path }

func (f *fakeClient) Branches(context.Context) (*git.BranchInfo, error) {
	return &git.BranchInfo{Current: f.current, All: []string{f.current}}, nil
}

func (f *fakeClient) CurrentBranch(context.Context) (string, error) { return f.current, nil }

func (f *fakeClient) ResolveRef(_ context.Context, ref string) (string, error) {
	if h, ok := f.refs[ref]; ok {
		return h, nil
	}
	for _, h := range f.refs {
		if h == ref {
			return h, nil
		}
	}
	return "", &git.RefError{Ref: ref, Err: fmt.Errorf("unknown revision")}
}

func (f *fakeClient) MergeBase(ctx context.Context, base, _ string) (string, error) {
	return f.ResolveRef(ctx, base)
}

func (f *fakeClient) CommitsBetween(context.Context, string, string) ([]git.Commit, error) {
	return []git.Commit{}, nil
}

func (f *fakeClient) DiffFiles(ctx context.Context, base, head string) ([]git.DiffFile, error) {
	if _, err := f.ResolveRef(ctx, base); err != nil {
		return nil, err
	}
	f.diffArgs = append(f.diffArgs, [2]string{base, head})
	return f.files, nil
}

func (f *fakeClient) FileContent(context.Context, string, string) (string, error) { return "", nil }

func (f *fakeClient) FileContentDiff(_ context.Context, _, _, path string) (*git.FileContent, error) {
	return &git.FileContent{Path: path, Language: git.DetectLanguage(path)}, nil
}

func (f *fakeClient) FileDiff(_ context.Context, _, _, path string) (*git.FileDiff, error) {
	return &git.FileDiff{Path: path, Hunks: []git.DiffHunk{}}, nil
}

func (f *fakeClient) RawDiff(context.Context, string, string, string) (string, error) { return "", nil }

func (f *fakeClient) WorkingChanges(context.Context) (*git.WorkingChanges, error) {
	return &git.WorkingChanges{Staged: []git.DiffFile{}, Unstaged: []git.DiffFile{}}, nil
}

func (f *fakeClient) WorkingDiff(context.Context, git.DiffKind, string) (string, error) {
	return "", nil
}

const fakeRepoPath = "/repos/fake"

func newFakeClient() *fakeClient {
	return &fakeClient{
		path:    fakeRepoPath,
		current: "feature",
		refs:    map[string]string{"main": "aaa111", "feature": "bbb222"},
		files: []git.DiffFile{
			{Path: "a.ts", Status: git.StatusAdded, Additions: 10},
			{Path: "b.ts", Status: git.StatusModified, Additions: 2, Deletions: 1},
		},
	}
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestService returns a service backed by a temp store, with the fake
// client registered at fakeRepoPath.
func newTestService(t *testing.T, opts ...Option) (*Service, *fakeClient) {
	t.Helper()
	fc := newFakeClient()
	repos := git.NewRegistry()
	repos.Register(fakeRepoPath, fc)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	svc := NewService(newTestStore(t), repos, opts...)
	return svc, fc
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
func boolPtr(b bool) *bool    { return &b }

// --- real repositories ---

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).CombinedOutput()
	require.NoError(t, err, string(out))
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// setupRepo creates main with one file and checks out feature with two changes.
func setupRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	runGit(t, dir, "config", "user.email", "test@test.com")
	runGit(t, dir, "config", "user.name", "Test")
	runGit(t, dir, "config", "commit.gpgsign", "false")

	writeFile(t, dir, "a.txt", "one\ntwo\n")
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", "initial")

	runGit(t, dir, "checkout", "-b", "feature")
	writeFile(t, dir, "a.txt", "one\nTWO\n")
	writeFile(t, dir, "b.txt", "new\n")
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", "feature")
	return dir
}
