package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/lr/internal/models"
	"github.com/joescharf/lr/internal/output"
	"github.com/joescharf/lr/internal/review"
)

var fileStatus string

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Track per-file review progress",
}

var fileReviewCmd = &cobra.Command{
	Use:   "review <session-id> <path>",
	Short: "Mark a file as reviewed (or another status with --status)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fileReviewRun(cmd.Context(), args[0], args[1], models.FileStatus(fileStatus))
	},
}

func init() {
	fileReviewCmd.Flags().StringVar(&fileStatus, "status", string(models.FileStatusReviewed), "Status: pending, viewed or reviewed")

	fileCmd.AddCommand(fileReviewCmd)
	rootCmd.AddCommand(fileCmd)
}

func fileReviewRun(ctx context.Context, sessionID, path string, status models.FileStatus) error {
	if dryRun {
		ui.DryRunMsg("Would mark %s as %s", path, status)
		return nil
	}

	svc, err := getService()
	if err != nil {
		return err
	}
	fs, err := svc.UpdateFileStatus(orBackground(ctx), review.UpdateFileStatusRequest{
		SessionID: sessionID,
		FilePath:  path,
		Status:    status,
	})
	if err != nil {
		return err
	}

	ui.Success("%s is %s", output.Cyan(fs.FilePath), output.StatusColor(string(fs.Status)))
	return nil
}
