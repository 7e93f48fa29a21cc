package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestRepo creates a git repo in dir on branch main with a user config
// so commits work on CI.
func initTestRepo(t *testing.T, dir string) {
	t.Helper()
	cmds := [][]string{
		{"git", "-C", dir, "init"},
		{"git", "-C", dir, "symbolic-ref", "HEAD", "refs/heads/main"},
		{"git", "-C", dir, "config", "user.email", "test@test.com"},
		{"git", "-C", dir, "config", "user.name", "Test"},
		{"git", "-C", dir, "config", "commit.gpgsign", "false"},
	}
	for _, args := range cmds {
		require.NoError(t, exec.Command(args[0], args[1:]...).Run())
	}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).CombinedOutput()
	require.NoError(t, err, string(out))
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func commitAll(t *testing.T, dir, msg string) {
	t.Helper()
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", msg)
}

// setupFeatureRepo builds main with a.txt and c.txt, then a feature branch
// that modifies a.txt, adds b.go and deletes c.txt.
func setupFeatureRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	initTestRepo(t, dir)

	writeFile(t, dir, "a.txt", "one\ntwo\nthree\n")
	writeFile(t, dir, "c.txt", "gone\n")
	commitAll(t, dir, "initial")

	runGit(t, dir, "checkout", "-b", "feature")
	writeFile(t, dir, "a.txt", "one\nTWO\nthree\n")
	writeFile(t, dir, "b.go", "package b\n")
	require.NoError(t, os.Remove(filepath.Join(dir, "c.txt")))
	commitAll(t, dir, "feature work")
	return dir
}

func openTestRepo(t *testing.T, dir string) *Repo {
	t.Helper()
	r, err := Open(dir)
	require.NoError(t, err)
	return r
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name       string
		add, del   int
		binary     bool
		wantStatus FileChangeStatus
	}{
		{"binary", 0, 0, true, StatusModified},
		{"binary ignores counts", 5, 0, true, StatusModified},
		{"only additions", 3, 0, false, StatusAdded},
		{"only deletions", 0, 4, false, StatusDeleted},
		{"both", 2, 1, false, StatusModified},
		{"neither", 0, 0, false, StatusModified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, ClassifyStatus(tt.add, tt.del, tt.binary))
		})
	}
}

func TestParseNumstat(t *testing.T) {
	out := "3\t0\tnew.go\x001\t1\tmain.go\x00-\t-\tlogo.png\x000\t7\told file.txt\x00"
	files := ParseNumstat(out)
	require.Len(t, files, 4)

	assert.Equal(t, DiffFile{Path: "new.go", Status: StatusAdded, Additions: 3}, files[0])
	assert.Equal(t, DiffFile{Path: "main.go", Status: StatusModified, Additions: 1, Deletions: 1}, files[1])
	assert.Equal(t, DiffFile{Path: "logo.png", Status: StatusModified, Binary: true}, files[2])
	assert.Equal(t, DiffFile{Path: "old file.txt", Status: StatusDeleted, Deletions: 7}, files[3])
}

func TestParseNumstat_Empty(t *testing.T) {
	assert.Empty(t, ParseNumstat(""))
}

func TestParseUnifiedDiff(t *testing.T) {
	diff := `diff --git a/a.txt b/a.txt
index 1111111..2222222 100644
--- a/a.txt
+++ b/a.txt
@@ -1,3 +1,3 @@ header
 one
-two
+TWO
 three
@@ -10 +10,2 @@
 ten
+eleven
`
	hunks := ParseUnifiedDiff(diff)
	require.Len(t, hunks, 2)

	h := hunks[0]
	assert.Equal(t, 1, h.OldStart)
	assert.Equal(t, 3, h.OldCount)
	assert.Equal(t, 1, h.NewStart)
	assert.Equal(t, 3, h.NewCount)
	require.Len(t, h.Lines, 4)
	assert.Equal(t, DiffLine{Type: "context", Content: "one", OldNum: 1, NewNum: 1}, h.Lines[0])
	assert.Equal(t, DiffLine{Type: "del", Content: "two", OldNum: 2}, h.Lines[1])
	assert.Equal(t, DiffLine{Type: "add", Content: "TWO", NewNum: 2}, h.Lines[2])
	assert.Equal(t, DiffLine{Type: "context", Content: "three", OldNum: 3, NewNum: 3}, h.Lines[3])

	assert.Equal(t, 1, hunks[1].OldCount, "missing count defaults to 1")
	assert.Equal(t, 2, hunks[1].NewCount)
	assert.Equal(t, DiffLine{Type: "add", Content: "eleven", NewNum: 11}, hunks[1].Lines[1])
}

func TestParseUnifiedDiff_FileHeadersEndHunk(t *testing.T) {
	diff := "@@ -1 +1 @@\n-a\n+b\ndiff --git a/x b/x\n--- a/x\n+++ b/x\n@@ -1 +1 @@\n-c\n+d\n"
	hunks := ParseUnifiedDiff(diff)
	require.Len(t, hunks, 2)
	assert.Len(t, hunks[0].Lines, 2)
	assert.Len(t, hunks[1].Lines, 2)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "go", DetectLanguage("internal/git/git.go"))
	assert.Equal(t, "typescript", DetectLanguage("src/App.TS"))
	assert.Equal(t, "yaml", DetectLanguage("config.yml"))
	assert.Equal(t, "bash", DetectLanguage("scripts/run.zsh"))
	assert.Equal(t, "makefile", DetectLanguage("Makefile"))
	assert.Equal(t, "dockerfile", DetectLanguage("build/Dockerfile"))
	assert.Equal(t, "plaintext", DetectLanguage("LICENSE"))
	assert.Equal(t, "plaintext", DetectLanguage("data.unknownext"))
}

func TestRepo_BranchesAndCurrent(t *testing.T) {
	dir := setupFeatureRepo(t)
	r := openTestRepo(t, dir)
	ctx := context.Background()

	info, err := r.Branches(ctx)
	require.NoError(t, err)
	assert.Equal(t, "feature", info.Current)
	assert.Equal(t, []string{"feature", "main"}, info.All)

	current, err := r.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "feature", current)
}

func TestRepo_CurrentBranch_Detached(t *testing.T) {
	dir := setupFeatureRepo(t)
	runGit(t, dir, "checkout", "--detach", "main")
	r := openTestRepo(t, dir)

	current, err := r.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HEAD", current)
}

func TestRepo_ResolveRef(t *testing.T) {
	dir := setupFeatureRepo(t)
	r := openTestRepo(t, dir)
	ctx := context.Background()

	hash, err := r.ResolveRef(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, runGit(t, dir, "rev-parse", "main"), hash)

	short := hash[:8]
	full, err := r.ResolveRef(ctx, short)
	require.NoError(t, err)
	assert.Equal(t, hash, full)

	_, err = r.ResolveRef(ctx, "does-not-exist")
	var refErr *RefError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "does-not-exist", refErr.Ref)
	assert.True(t, errors.Is(err, ErrRefNotFound))

	_, err = r.ResolveRef(ctx, "")
	assert.ErrorIs(t, err, ErrRefNotFound)
}

func TestRepo_MergeBase(t *testing.T) {
	dir := setupFeatureRepo(t)
	r := openTestRepo(t, dir)
	ctx := context.Background()

	mainHash := runGit(t, dir, "rev-parse", "main")
	base, err := r.MergeBase(ctx, "main", "feature")
	require.NoError(t, err)
	assert.Equal(t, mainHash, base)
}

func TestRepo_MergeBase_FallsBackToBase(t *testing.T) {
	dir := setupFeatureRepo(t)
	runGit(t, dir, "checkout", "--orphan", "unrelated")
	writeFile(t, dir, "z.txt", "z\n")
	commitAll(t, dir, "unrelated root")
	r := openTestRepo(t, dir)
	ctx := context.Background()

	base, err := r.MergeBase(ctx, "main", "unrelated")
	require.NoError(t, err)
	assert.Equal(t, runGit(t, dir, "rev-parse", "main"), base)

	base, err = r.MergeBase(ctx, "main", "no-such-branch")
	require.NoError(t, err)
	assert.Equal(t, runGit(t, dir, "rev-parse", "main"), base)
}

func TestRepo_CommitsBetween(t *testing.T) {
	dir := setupFeatureRepo(t)
	writeFile(t, dir, "b.go", "package b\n\nvar x = 1\n")
	commitAll(t, dir, "second feature commit")
	r := openTestRepo(t, dir)

	commits, err := r.CommitsBetween(context.Background(), "main", "feature")
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "second feature commit", commits[0].Message)
	assert.Equal(t, "feature work", commits[1].Message)
	assert.Equal(t, "Test", commits[0].Author)
	assert.False(t, commits[0].Date.IsZero())
	assert.Len(t, commits[0].Hash, 40)

	none, err := r.CommitsBetween(context.Background(), "feature", "main")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepo_DiffFiles(t *testing.T) {
	dir := setupFeatureRepo(t)
	writeFile(t, dir, "logo.bin", "\x00\x01\x02binary")
	commitAll(t, dir, "binary")
	r := openTestRepo(t, dir)

	files, err := r.DiffFiles(context.Background(), "main", "feature")
	require.NoError(t, err)

	byPath := map[string]DiffFile{}
	for _, f := range files {
		byPath[f.Path] = f
	}
	require.Len(t, byPath, 4)
	assert.Equal(t, StatusModified, byPath["a.txt"].Status)
	assert.Equal(t, 1, byPath["a.txt"].Additions)
	assert.Equal(t, 1, byPath["a.txt"].Deletions)
	assert.Equal(t, StatusAdded, byPath["b.go"].Status)
	assert.Equal(t, StatusDeleted, byPath["c.txt"].Status)
	assert.True(t, byPath["logo.bin"].Binary)
	assert.Equal(t, StatusModified, byPath["logo.bin"].Status)
}

func TestRepo_DiffFiles_BadRef(t *testing.T) {
	dir := setupFeatureRepo(t)
	r := openTestRepo(t, dir)

	_, err := r.DiffFiles(context.Background(), "nope", "feature")
	var refErr *RefError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "nope", refErr.Ref)
}

func TestRepo_FileContent(t *testing.T) {
	dir := setupFeatureRepo(t)
	r := openTestRepo(t, dir)
	ctx := context.Background()

	content, err := r.FileContent(ctx, "feature", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "one\nTWO\nthree\n", content)

	content, err = r.FileContent(ctx, "main", "b.go")
	require.NoError(t, err)
	assert.Equal(t, "", content, "missing file reads as empty")

	_, err = r.FileContent(ctx, "bogus", "a.txt")
	assert.ErrorIs(t, err, ErrRefNotFound)
}

func TestRepo_FileContentDiff(t *testing.T) {
	dir := setupFeatureRepo(t)
	r := openTestRepo(t, dir)

	fc, err := r.FileContentDiff(context.Background(), "main", "feature", "b.go")
	require.NoError(t, err)
	assert.Equal(t, "b.go", fc.Path)
	assert.Equal(t, "", fc.OldContent)
	assert.Equal(t, "package b\n", fc.NewContent)
	assert.Equal(t, "go", fc.Language)
}

func TestRepo_RawDiffAndFileDiff(t *testing.T) {
	dir := setupFeatureRepo(t)
	r := openTestRepo(t, dir)
	ctx := context.Background()

	raw, err := r.RawDiff(ctx, "main", "feature", "")
	require.NoError(t, err)
	assert.Contains(t, raw, "a/a.txt")
	assert.Contains(t, raw, "b/b.go")

	scoped, err := r.RawDiff(ctx, "main", "feature", "a.txt")
	require.NoError(t, err)
	assert.Contains(t, scoped, "+TWO")
	assert.NotContains(t, scoped, "b.go")

	fd, err := r.FileDiff(ctx, "main", "feature", "a.txt")
	require.NoError(t, err)
	require.Len(t, fd.Hunks, 1)
	assert.Equal(t, "a.txt", fd.Path)
}

func TestRepo_WorkingChangesAndDiff(t *testing.T) {
	dir := setupFeatureRepo(t)
	writeFile(t, dir, "staged.txt", "s\n")
	runGit(t, dir, "add", "staged.txt")
	writeFile(t, dir, "a.txt", "one\nTWO\nthree\nfour\n")
	r := openTestRepo(t, dir)
	ctx := context.Background()

	wc, err := r.WorkingChanges(ctx)
	require.NoError(t, err)
	require.Len(t, wc.Staged, 1)
	assert.Equal(t, "staged.txt", wc.Staged[0].Path)
	assert.Equal(t, StatusAdded, wc.Staged[0].Status)
	require.Len(t, wc.Unstaged, 1)
	assert.Equal(t, "a.txt", wc.Unstaged[0].Path)
	assert.Equal(t, StatusAdded, wc.Unstaged[0].Status, "pure additions classify as added")

	staged, err := r.WorkingDiff(ctx, DiffStaged, "")
	require.NoError(t, err)
	assert.Contains(t, staged, "+s")

	unstaged, err := r.WorkingDiff(ctx, DiffUnstaged, "a.txt")
	require.NoError(t, err)
	assert.Contains(t, unstaged, "+four")

	_, err = r.WorkingDiff(ctx, DiffKind("sideways"), "")
	assert.Error(t, err)
}

func TestOpen_NotARepo(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

func TestRegistry_ReusesClients(t *testing.T) {
	opened := 0
	reg := NewRegistryWith(func(path string) (Client, error) {
		opened++
		return &Repo{root: path}, nil
	})

	a, err := reg.Get("/tmp/repo")
	require.NoError(t, err)
	b, err := reg.Get("/tmp/repo/")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, opened)

	_, err = reg.Get("/tmp/other")
	require.NoError(t, err)
	assert.Equal(t, 2, opened)
	assert.Equal(t, 2, reg.Len())

	_, err = reg.Get("")
	assert.Error(t, err)
}

func TestRegistry_OpenErrorNotCached(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get(t.TempDir())
	assert.Error(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_ClientSurvivesRepack(t *testing.T) {
	dir := setupFeatureRepo(t)
	runGit(t, dir, "gc", "-q")

	reg := NewRegistry()
	c, err := reg.Get(dir)
	require.NoError(t, err)
	ctx := context.Background()

	base, err := c.ResolveRef(ctx, "main")
	require.NoError(t, err)
	head, err := c.ResolveRef(ctx, "feature")
	require.NoError(t, err)

	writeFile(t, dir, "d.txt", "later\n")
	commitAll(t, dir, "later work")
	runGit(t, dir, "gc", "-q")
	runGit(t, dir, "repack", "-adq")

	again, err := reg.Get(dir)
	require.NoError(t, err)
	assert.Same(t, c, again)

	got, err := again.ResolveRef(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, base, got)

	got, err = again.ResolveRef(ctx, head)
	require.NoError(t, err)
	assert.Equal(t, head, got)

	latest, err := again.ResolveRef(ctx, "feature")
	require.NoError(t, err)
	assert.NotEqual(t, head, latest)

	content, err := again.FileContent(ctx, head, "b.go")
	require.NoError(t, err)
	assert.Equal(t, "package b\n", content)

	mb, err := again.MergeBase(ctx, "main", "feature")
	require.NoError(t, err)
	assert.Equal(t, base, mb)
}
