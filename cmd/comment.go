package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/lr/internal/models"
	"github.com/joescharf/lr/internal/output"
	"github.com/joescharf/lr/internal/review"
)

var (
	commentFile    string
	commentSide    string
	commentEndLine int
	commentReplyTo string
)

var commentCmd = &cobra.Command{
	Use:     "comment",
	Aliases: []string{"c"},
	Short:   "Manage line comments on a review session",
}

var commentListCmd = &cobra.Command{
	Use:     "list <session-id>",
	Aliases: []string{"ls"},
	Short:   "List comment threads",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentListRun(cmd.Context(), args[0], commentFile)
	},
}

var commentAddCmd = &cobra.Command{
	Use:   "add <session-id> <file> <line> <text...>",
	Short: "Comment on a line (or reply with --reply-to)",
	Args:  cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("line must be a number: %q", args[2])
		}
		return commentAddRun(cmd.Context(), args[0], args[1], line, strings.Join(args[3:], " "))
	},
}

var commentResolveCmd = &cobra.Command{
	Use:   "resolve <comment-id>",
	Short: "Toggle a comment between resolved and unresolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentResolveRun(cmd.Context(), args[0])
	},
}

var commentDeleteCmd = &cobra.Command{
	Use:     "delete <comment-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a comment and its replies",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentDeleteRun(cmd.Context(), args[0])
	},
}

func init() {
	commentListCmd.Flags().StringVar(&commentFile, "file", "", "Only show comments on this file")

	commentAddCmd.Flags().StringVar(&commentSide, "side", string(models.SideNew), "Diff side: old or new")
	commentAddCmd.Flags().IntVar(&commentEndLine, "end-line", 0, "Last line of a multi-line comment")
	commentAddCmd.Flags().StringVar(&commentReplyTo, "reply-to", "", "Reply to this comment ID")

	commentCmd.AddCommand(commentListCmd)
	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentResolveCmd)
	commentCmd.AddCommand(commentDeleteCmd)
	rootCmd.AddCommand(commentCmd)
}

func commentListRun(ctx context.Context, sessionID, filePath string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	threads, err := svc.Threads(orBackground(ctx), sessionID, filePath)
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		ui.Info("No comments")
		return nil
	}

	for i, t := range threads {
		if i > 0 {
			fmt.Fprintln(ui.Out)
		}
		printComment(t.Root, "")
		for _, r := range t.Replies {
			printComment(r, "    ")
		}
	}
	return nil
}

func printComment(c *models.LineComment, indent string) {
	if indent == "" {
		loc := fmt.Sprintf("%s:%d", c.FilePath, c.LineNumber)
		if c.EndLineNumber != nil && *c.EndLineNumber != c.LineNumber {
			loc += fmt.Sprintf("-%d", *c.EndLineNumber)
		}
		state := output.Yellow("open")
		if c.Resolved {
			state = output.Green("resolved")
		}
		fmt.Fprintf(ui.Out, "%s (%s) %s  %s\n", output.Cyan(loc), c.Side, state, c.ID)
	}
	fmt.Fprintf(ui.Out, "%s  %s\n", indent, strings.ReplaceAll(c.Content, "\n", "\n  "+indent))
	ui.VerboseLog("%s%s, %s", indent, c.ID, timeAgo(c.CreatedAt))
}

func commentAddRun(ctx context.Context, sessionID, filePath string, line int, content string) error {
	req := review.CreateCommentRequest{
		SessionID:  sessionID,
		FilePath:   filePath,
		Side:       models.Side(commentSide),
		LineNumber: &line,
		Content:    content,
		ParentID:   commentReplyTo,
	}
	if commentEndLine > 0 {
		req.EndLineNumber = &commentEndLine
	}

	if dryRun {
		ui.DryRunMsg("Would comment on %s:%d: %s", filePath, line, output.Truncate(content, 60))
		return nil
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	c, err := svc.CreateComment(orBackground(ctx), req)
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}

	if c.ParentID != "" {
		ui.Success("Replied to %s (%s)", c.ParentID, output.Cyan(c.ID))
	} else {
		ui.Success("Commented on %s:%d (%s)", c.FilePath, c.LineNumber, output.Cyan(c.ID))
	}
	return nil
}

func commentResolveRun(ctx context.Context, id string) error {
	if dryRun {
		ui.DryRunMsg("Would toggle resolved on comment %s", id)
		return nil
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	c, err := svc.ToggleResolve(orBackground(ctx), id)
	if err != nil {
		return err
	}

	if c.Resolved {
		ui.Success("Resolved comment %s", output.Cyan(c.ID))
	} else {
		ui.Success("Reopened comment %s", output.Cyan(c.ID))
	}
	return nil
}

func commentDeleteRun(ctx context.Context, id string) error {
	if dryRun {
		ui.DryRunMsg("Would delete comment %s", id)
		return nil
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	if err := svc.DeleteComment(orBackground(ctx), id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	ui.Success("Deleted comment %s", output.Cyan(id))
	return nil
}
