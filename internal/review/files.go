package review

import (
	"context"
	"errors"

	"github.com/joescharf/lr/internal/models"
	"github.com/joescharf/lr/internal/store"
)

// ListFiles returns the stored file statuses of a session ordered by path.
func (s *Service) ListFiles(ctx context.Context, sessionID string) ([]*models.FileReviewStatus, error) {
	files, err := s.store.ListFileStatuses(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []*models.FileReviewStatus{}
	}
	return files, nil
}

// UpdateFileStatus sets a file's status, creating its row if needed.
// reviewedAt is set when the status becomes reviewed and is otherwise kept
// as it was, so it records the last time the file was reviewed.
func (s *Service) UpdateFileStatus(ctx context.Context, req UpdateFileStatusRequest) (*models.FileReviewStatus, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var fs *models.FileReviewStatus
	err := s.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetSession(ctx, req.SessionID); err != nil {
			return err
		}

		var err error
		fs, err = tx.GetFileStatus(ctx, req.SessionID, req.FilePath)
		switch {
		case errors.Is(err, store.ErrNotFound):
			fs = &models.FileReviewStatus{SessionID: req.SessionID, FilePath: req.FilePath, Status: req.Status, CreatedAt: s.now()}
			if req.Status == models.FileStatusReviewed {
				now := s.now()
				fs.ReviewedAt = &now
			}
			if err := tx.CreateFileStatus(ctx, fs); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			fs.Status = req.Status
			if req.Status == models.FileStatusReviewed {
				now := s.now()
				fs.ReviewedAt = &now
			}
			if err := tx.UpdateFileStatus(ctx, fs); err != nil {
				return err
			}
		}

		if req.Status != models.FileStatusReviewed {
			return nil
		}
		return s.logActivity(ctx, tx, &models.ActivityLog{
			SessionID:  req.SessionID,
			Action:     models.ActionFileReviewed,
			TargetType: models.TargetFile,
			TargetID:   req.FilePath,
			Metadata:   map[string]any{"status": string(req.Status)},
		})
	})
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// ListActivities returns a session's activity newest first. A limit <= 0
// uses the service's configured limit.
func (s *Service) ListActivities(ctx context.Context, sessionID string, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 {
		limit = s.activityLimit
	}
	activities, err := s.store.ListActivities(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	if activities == nil {
		activities = []*models.ActivityLog{}
	}
	return activities, nil
}
