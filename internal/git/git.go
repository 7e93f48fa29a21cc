package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrRefNotFound is wrapped by RefError.
var ErrRefNotFound = errors.New("ref not found")

// RefError reports a branch, tag or commit that does not resolve in the repository.
type RefError struct {
	Ref string
	Err error
}

func (e *RefError) Error() string {
	return fmt.Sprintf("invalid ref %q: %v", e.Ref, e.Err)
}

func (e *RefError) Unwrap() error { return ErrRefNotFound }

// BranchInfo lists local branches and the one currently checked out.
type BranchInfo struct {
	Current string   `json:"current"`
	All     []string `json:"all"`
}

// Commit is one entry of a log between two refs.
type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
}

// FileContent holds both sides of a file for a diff view.
type FileContent struct {
	Path       string `json:"path"`
	OldContent string `json:"oldContent"`
	NewContent string `json:"newContent"`
	Language   string `json:"language"`
}

// WorkingChanges splits uncommitted changes into staged and unstaged files.
type WorkingChanges struct {
	Staged   []DiffFile `json:"staged"`
	Unstaged []DiffFile `json:"unstaged"`
}

// DiffKind selects the index or the working tree for a working diff.
type DiffKind string

const (
	DiffStaged   DiffKind = "staged"
	DiffUnstaged DiffKind = "unstaged"
)

// Client is bound to a single repository.
type Client interface {
	Path() string
	Branches(ctx context.Context) (*BranchInfo, error)
	CurrentBranch(ctx context.Context) (string, error)
	ResolveRef(ctx context.Context, ref string) (string, error)
	MergeBase(ctx context.Context, base, head string) (string, error)
	CommitsBetween(ctx context.Context, base, head string) ([]Commit, error)
	DiffFiles(ctx context.Context, base, head string) ([]DiffFile, error)
	FileContent(ctx context.Context, ref, path string) (string, error)
	FileContentDiff(ctx context.Context, base, head, path string) (*FileContent, error)
	FileDiff(ctx context.Context, base, head, path string) (*FileDiff, error)
	RawDiff(ctx context.Context, base, head, path string) (string, error)
	WorkingChanges(ctx context.Context) (*WorkingChanges, error)
	WorkingDiff(ctx context.Context, kind DiffKind, path string) (string, error)
}

// Repo implements Client. Object reads go through go-git; diffs and logs
// shell out to the git binary.
type Repo struct {
	root string
}

// Open opens the repository containing path.
func Open(path string) (*Repo, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}

	root := path
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}
	return &Repo{root: root}, nil
}

// open reads the repository from disk. go-git indexes packfiles when a
// repository is opened, so each call opens afresh to see packs written by
// gc or repack since the last one.
func (r *Repo) open() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpen(r.root)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", r.root, err)
	}
	return repo, nil
}

// Path returns the repository's working tree root.
func (r *Repo) Path() string { return r.root }

func gitCmd(ctx context.Context, path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.CommandContext(ctx, "git", fullArgs...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

func (r *Repo) Branches(ctx context.Context) (*BranchInfo, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	iter, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}

	info := &BranchInfo{All: []string{}}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		info.All = append(info.All, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	sort.Strings(info.All)

	info.Current, err = r.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// CurrentBranch returns the checked-out branch, or "HEAD" when detached.
func (r *Repo) CurrentBranch(_ context.Context) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "HEAD", nil
	}
	return head.Name().Short(), nil
}

func resolve(repo *gogit.Repository, ref string) (*object.Commit, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, &RefError{Ref: ref, Err: errors.New("empty ref")}
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, &RefError{Ref: ref, Err: err}
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, &RefError{Ref: ref, Err: err}
	}
	return commit, nil
}

// ResolveRef returns the full commit hash a ref points to.
func (r *Repo) ResolveRef(_ context.Context, ref string) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	commit, err := resolve(repo, ref)
	if err != nil {
		return "", err
	}
	return commit.Hash.String(), nil
}

// MergeBase returns the best common ancestor of base and head. When none
// can be computed it falls back to base's own commit.
func (r *Repo) MergeBase(ctx context.Context, base, head string) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	baseCommit, err := resolve(repo, base)
	if err != nil {
		return "", err
	}
	headCommit, err := resolve(repo, head)
	if err != nil {
		return baseCommit.Hash.String(), nil
	}
	bases, err := baseCommit.MergeBase(headCommit)
	if err != nil || len(bases) == 0 {
		return baseCommit.Hash.String(), nil
	}
	return bases[0].Hash.String(), nil
}

// CommitsBetween lists commits reachable from head but not base, newest first.
func (r *Repo) CommitsBetween(ctx context.Context, base, head string) ([]Commit, error) {
	baseHash, err := r.ResolveRef(ctx, base)
	if err != nil {
		return nil, err
	}
	headHash, err := r.ResolveRef(ctx, head)
	if err != nil {
		return nil, err
	}

	out, err := gitCmd(ctx, r.root, "log", "--format=%H%x1f%an%x1f%aI%x1f%s", baseHash+".."+headHash)
	if err != nil {
		return nil, err
	}
	return parseLog(out), nil
}

func parseLog(out string) []Commit {
	commits := []Commit{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.SplitN(line, "\x1f", 4)
		if len(parts) != 4 {
			continue
		}
		date, _ := time.Parse(time.RFC3339, parts[2])
		commits = append(commits, Commit{
			Hash:    parts[0],
			Author:  parts[1],
			Date:    date,
			Message: parts[3],
		})
	}
	return commits
}

// DiffFiles summarizes the files changed between two refs.
func (r *Repo) DiffFiles(ctx context.Context, base, head string) ([]DiffFile, error) {
	baseHash, err := r.ResolveRef(ctx, base)
	if err != nil {
		return nil, err
	}
	headHash, err := r.ResolveRef(ctx, head)
	if err != nil {
		return nil, err
	}

	out, err := gitCmd(ctx, r.root, "diff", "--numstat", "-z", "--no-renames", baseHash, headHash)
	if err != nil {
		return nil, err
	}
	return ParseNumstat(out), nil
}

// FileContent returns a file's content at ref, or "" if the file does not
// exist there.
func (r *Repo) FileContent(_ context.Context, ref, path string) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	commit, err := resolve(repo, ref)
	if err != nil {
		return "", err
	}
	file, err := commit.File(strings.TrimPrefix(path, "/"))
	if errors.Is(err, object.ErrFileNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s at %s: %w", path, ref, err)
	}
	content, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("read %s at %s: %w", path, ref, err)
	}
	return content, nil
}

func (r *Repo) FileContentDiff(ctx context.Context, base, head, path string) (*FileContent, error) {
	oldContent, err := r.FileContent(ctx, base, path)
	if err != nil {
		return nil, err
	}
	newContent, err := r.FileContent(ctx, head, path)
	if err != nil {
		return nil, err
	}
	return &FileContent{
		Path:       path,
		OldContent: oldContent,
		NewContent: newContent,
		Language:   DetectLanguage(path),
	}, nil
}

// FileDiff returns the parsed hunks of one file's diff between two refs.
func (r *Repo) FileDiff(ctx context.Context, base, head, path string) (*FileDiff, error) {
	raw, err := r.RawDiff(ctx, base, head, path)
	if err != nil {
		return nil, err
	}
	return &FileDiff{Path: path, Hunks: ParseUnifiedDiff(raw)}, nil
}

// RawDiff returns unified diff text between two refs, optionally for one path.
func (r *Repo) RawDiff(ctx context.Context, base, head, path string) (string, error) {
	baseHash, err := r.ResolveRef(ctx, base)
	if err != nil {
		return "", err
	}
	headHash, err := r.ResolveRef(ctx, head)
	if err != nil {
		return "", err
	}

	args := []string{"diff", "--no-renames", baseHash, headHash}
	if path != "" {
		args = append(args, "--", path)
	}
	return gitCmd(ctx, r.root, args...)
}

func (r *Repo) WorkingChanges(ctx context.Context) (*WorkingChanges, error) {
	staged, err := gitCmd(ctx, r.root, "diff", "--cached", "--numstat", "-z", "--no-renames")
	if err != nil {
		return nil, err
	}
	unstaged, err := gitCmd(ctx, r.root, "diff", "--numstat", "-z", "--no-renames")
	if err != nil {
		return nil, err
	}
	return &WorkingChanges{
		Staged:   ParseNumstat(staged),
		Unstaged: ParseNumstat(unstaged),
	}, nil
}

func (r *Repo) WorkingDiff(ctx context.Context, kind DiffKind, path string) (string, error) {
	args := []string{"diff"}
	switch kind {
	case DiffStaged:
		args = append(args, "--cached")
	case DiffUnstaged:
	default:
		return "", fmt.Errorf("unknown diff kind %q", kind)
	}
	if path != "" {
		args = append(args, "--", path)
	}
	return gitCmd(ctx, r.root, args...)
}
