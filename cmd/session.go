package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/lr/internal/models"
	"github.com/joescharf/lr/internal/output"
	"github.com/joescharf/lr/internal/review"
)

var (
	sessionTitle    string
	sessionDesc     string
	sessionAll      bool
	sessionActivity int
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"s"},
	Short:   "Manage review sessions",
	Long:    "Create, list, show and close review sessions for the current repository.",
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List review sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionListRun(cmd.Context(), sessionAll)
	},
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create <base-branch>",
	Short: "Review the current branch against a base branch",
	Long: `Create a review session comparing the checked-out branch against
<base-branch>. Both ends are frozen to their current commits.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionCreateRun(cmd.Context(), args[0])
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session with its files and review progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionShowRun(cmd.Context(), args[0])
	},
}

var sessionSetStatusCmd = &cobra.Command{
	Use:   "set-status <id> <active|completed|archived>",
	Short: "Change a session's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionSetStatusRun(cmd.Context(), args[0], models.SessionStatus(args[1]))
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a session with its comments and progress",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionDeleteRun(cmd.Context(), args[0])
	},
}

func init() {
	sessionListCmd.Flags().BoolVar(&sessionAll, "all", false, "Show sessions for every repository")

	sessionCreateCmd.Flags().StringVar(&sessionTitle, "title", "", "Session title (default: Review: <base>...<head>)")
	sessionCreateCmd.Flags().StringVar(&sessionDesc, "desc", "", "Session description")

	sessionShowCmd.Flags().IntVar(&sessionActivity, "activity", 0, "Also show the N most recent activity entries")

	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionSetStatusCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}

func sessionListRun(ctx context.Context, all bool) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx = orBackground(ctx)

	sessions, err := svc.ListSessions(ctx)
	if err != nil {
		return err
	}

	if !all {
		repo, err := repoPath()
		if err != nil {
			return err
		}
		filtered := sessions[:0]
		for _, s := range sessions {
			if samePath(s.RepositoryPath, repo) {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}

	if len(sessions) == 0 {
		ui.Info("No review sessions. Use 'lr session create <base-branch>' to start one.")
		return nil
	}

	headers := []string{"ID", "Title", "Branches", "Status", "Files", "Open Comments", "Updated"}
	if all {
		headers = append(headers, "Repository")
	}
	table := ui.Table(headers)
	for _, s := range sessions {
		row := []string{
			s.ID,
			output.Truncate(s.Title, 40),
			s.BaseBranch + "..." + s.HeadBranch,
			output.StatusColor(string(s.Status)),
			output.ProgressColor(s.FilesReviewed, s.FilesTotal),
			fmt.Sprintf("%d/%d", s.UnresolvedCommentsCount, s.CommentsCount),
			timeAgo(s.UpdatedAt),
		}
		if all {
			row = append(row, s.RepositoryPath)
		}
		_ = table.Append(row)
	}
	_ = table.Render()
	return nil
}

func sessionCreateRun(ctx context.Context, base string) error {
	repo, err := repoPath()
	if err != nil {
		return err
	}

	req := review.CreateSessionRequest{RepositoryPath: repo, BaseBranch: base}
	if sessionTitle != "" {
		req.Title = &sessionTitle
	}
	if sessionDesc != "" {
		req.Description = &sessionDesc
	}

	if dryRun {
		ui.DryRunMsg("Would create review session: %s against %s", repo, base)
		return nil
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	s, err := svc.CreateSession(orBackground(ctx), req)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	ui.Success("Created session %s: %s", output.Cyan(s.ID), s.Title)
	ui.Info("%s (%s) ... %s (%s), %d files", s.BaseBranch, shortSHA(s.BaseCommit), s.HeadBranch, shortSHA(s.HeadCommit), s.FilesTotal)
	return nil
}

func sessionShowRun(ctx context.Context, id string) error {
	svc, err := getService()
	if err != nil {
		return err
	}
	ctx = orBackground(ctx)

	d, err := svc.GetSession(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(d.Title))
	fmt.Fprintf(ui.Out, "  ID:         %s\n", d.ID)
	fmt.Fprintf(ui.Out, "  Repository: %s\n", d.RepositoryPath)
	fmt.Fprintf(ui.Out, "  Base:       %s (%s)\n", d.BaseBranch, shortSHA(d.BaseCommit))
	fmt.Fprintf(ui.Out, "  Head:       %s (%s)\n", d.HeadBranch, shortSHA(d.HeadCommit))
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(d.Status)))
	if d.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", d.Description)
	}
	fmt.Fprintf(ui.Out, "  Reviewed:   %s\n", output.ProgressColor(d.FilesReviewed, d.FilesTotal))
	fmt.Fprintf(ui.Out, "  Comments:   %d (%d unresolved)\n", d.CommentsCount, d.UnresolvedCommentsCount)
	fmt.Fprintf(ui.Out, "  Created:    %s\n", timeAgo(d.CreatedAt))
	fmt.Fprintln(ui.Out)

	if len(d.Files) == 0 {
		ui.Info("No changes between %s and %s", d.BaseBranch, d.HeadBranch)
	} else {
		table := ui.Table([]string{"File", "Change", "+/-", "Review"})
		for _, f := range d.Files {
			lines := fmt.Sprintf("+%d -%d", f.Additions, f.Deletions)
			if f.Binary {
				lines = "binary"
			}
			_ = table.Append([]string{
				f.Path,
				output.ChangeColor(string(f.Status)),
				lines,
				output.StatusColor(string(f.ReviewStatus)),
			})
		}
		_ = table.Render()
	}

	if d.CanComplete && d.Status == models.SessionStatusActive {
		fmt.Fprintln(ui.Out)
		ui.Success("All files reviewed. Run 'lr session set-status %s completed' to finish.", d.ID)
	}

	if sessionActivity > 0 {
		activities, err := svc.ListActivities(ctx, id, sessionActivity)
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"When", "Action", "Target"})
		for _, a := range activities {
			_ = table.Append([]string{timeAgo(a.CreatedAt), string(a.Action), activityTarget(a)})
		}
		_ = table.Render()
	}
	return nil
}

func sessionSetStatusRun(ctx context.Context, id string, status models.SessionStatus) error {
	if dryRun {
		ui.DryRunMsg("Would set session %s to %s", id, status)
		return nil
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	s, err := svc.UpdateSession(orBackground(ctx), id, review.UpdateSessionRequest{Status: &status})
	if err != nil {
		return err
	}

	ui.Success("Session %s is now %s", output.Cyan(s.ID), output.StatusColor(string(s.Status)))
	return nil
}

func sessionDeleteRun(ctx context.Context, id string) error {
	if dryRun {
		ui.DryRunMsg("Would delete session %s", id)
		return nil
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	if err := svc.DeleteSession(orBackground(ctx), id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	ui.Success("Deleted session %s", output.Cyan(id))
	return nil
}

// activityTarget summarizes an activity's metadata for display.
func activityTarget(a *models.ActivityLog) string {
	path, _ := a.Metadata["filePath"].(string)
	switch {
	case path != "" && a.Metadata["lineNumber"] != nil:
		return fmt.Sprintf("%s:%v", path, a.Metadata["lineNumber"])
	case path != "":
		return path
	case a.Metadata["newStatus"] != nil:
		return fmt.Sprintf("%v", a.Metadata["newStatus"])
	default:
		return a.TargetID
	}
}

func samePath(a, b string) bool {
	ra, err := filepath.EvalSymlinks(a)
	if err != nil {
		ra = filepath.Clean(a)
	}
	rb, err := filepath.EvalSymlinks(b)
	if err != nil {
		rb = filepath.Clean(b)
	}
	return ra == rb
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// timeAgo returns a human-readable relative time string.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
