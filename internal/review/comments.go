package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/joescharf/lr/internal/models"
	"github.com/joescharf/lr/internal/store"
)

// ListComments returns a session's comments, optionally for one file.
func (s *Service) ListComments(ctx context.Context, sessionID, filePath string) ([]*models.LineComment, error) {
	comments, err := s.store.ListComments(ctx, store.CommentListFilter{SessionID: sessionID, FilePath: filePath})
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []*models.LineComment{}
	}
	return comments, nil
}

// Threads returns a session's comments grouped into root-plus-replies threads.
func (s *Service) Threads(ctx context.Context, sessionID, filePath string) ([]*models.CommentThread, error) {
	comments, err := s.ListComments(ctx, sessionID, filePath)
	if err != nil {
		return nil, err
	}
	return models.GroupThreads(comments), nil
}

// CreateComment adds a comment. Replies must point at a root comment in
// the same session; threads are one level deep.
func (s *Service) CreateComment(ctx context.Context, req CreateCommentRequest) (*models.LineComment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c := &models.LineComment{
		SessionID:     req.SessionID,
		FilePath:      req.FilePath,
		Side:          req.Side,
		LineNumber:    *req.LineNumber,
		EndLineNumber: req.EndLineNumber,
		Content:       req.Content,
		ParentID:      req.ParentID,
		CreatedAt:     s.now(),
	}
	c.UpdatedAt = c.CreatedAt

	err := s.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetSession(ctx, req.SessionID); err != nil {
			return err
		}
		if req.ParentID != "" {
			if err := checkParent(ctx, tx, req); err != nil {
				return err
			}
		}
		if err := tx.CreateComment(ctx, c); err != nil {
			return err
		}
		return s.logActivity(ctx, tx, &models.ActivityLog{
			SessionID:  c.SessionID,
			Action:     models.ActionCommentAdded,
			TargetType: models.TargetComment,
			TargetID:   c.ID,
			Metadata:   map[string]any{"filePath": c.FilePath, "lineNumber": c.LineNumber},
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func checkParent(ctx context.Context, tx store.Store, req CreateCommentRequest) error {
	parent, err := tx.GetComment(ctx, req.ParentID)
	if errors.Is(err, store.ErrNotFound) {
		return invalidField("parentId", fmt.Errorf("comment %s does not exist", req.ParentID))
	}
	if err != nil {
		return err
	}
	if parent.SessionID != req.SessionID {
		return invalidField("parentId", fmt.Errorf("comment %s belongs to another session", req.ParentID))
	}
	if parent.IsReply() {
		return invalidField("parentId", fmt.Errorf("comment %s is a reply; replies cannot be nested", req.ParentID))
	}
	return nil
}

// UpdateComment applies a partial update. Setting Resolved also sets or
// clears resolvedAt and is logged as comment_resolved.
func (s *Service) UpdateComment(ctx context.Context, id string, req UpdateCommentRequest) (*models.LineComment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var c *models.LineComment
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		c, err = tx.GetComment(ctx, id)
		if err != nil {
			return err
		}
		if req.Content != nil {
			c.Content = *req.Content
		}
		if req.Resolved != nil {
			s.setResolved(c, *req.Resolved)
		}
		c.UpdatedAt = s.now()
		if err := tx.UpdateComment(ctx, c); err != nil {
			return err
		}
		if req.Resolved == nil {
			return nil
		}
		return s.logResolved(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteComment removes a comment and its replies. Missing ids are ignored.
func (s *Service) DeleteComment(ctx context.Context, id string) error {
	return s.store.DeleteComment(ctx, id)
}

// ToggleResolve flips a comment's resolved flag.
func (s *Service) ToggleResolve(ctx context.Context, id string) (*models.LineComment, error) {
	var c *models.LineComment
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		c, err = tx.GetComment(ctx, id)
		if err != nil {
			return err
		}
		s.setResolved(c, !c.Resolved)
		c.UpdatedAt = s.now()
		if err := tx.UpdateComment(ctx, c); err != nil {
			return err
		}
		return s.logResolved(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) setResolved(c *models.LineComment, resolved bool) {
	c.Resolved = resolved
	c.ResolvedAt = nil
	if resolved {
		now := s.now()
		c.ResolvedAt = &now
	}
}

func (s *Service) logResolved(ctx context.Context, tx store.Store, c *models.LineComment) error {
	return s.logActivity(ctx, tx, &models.ActivityLog{
		SessionID:  c.SessionID,
		Action:     models.ActionCommentResolved,
		TargetType: models.TargetComment,
		TargetID:   c.ID,
		Metadata:   map[string]any{"resolved": c.Resolved},
	})
}
