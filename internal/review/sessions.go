package review

import (
	"context"
	"fmt"
	"time"

	"github.com/joescharf/lr/internal/git"
	"github.com/joescharf/lr/internal/models"
	"github.com/joescharf/lr/internal/store"
)

// SessionFile is a file from a session's diff merged with its review status.
type SessionFile struct {
	git.DiffFile
	ReviewStatus models.FileStatus `json:"reviewStatus"`
	ReviewedAt   *time.Time        `json:"reviewedAt"`
}

// SessionDetail is a session with its live diff and aggregate counts.
// CanComplete is true once every file in the diff has been reviewed.
type SessionDetail struct {
	models.SessionWithStats
	Files       []SessionFile `json:"files"`
	CanComplete bool          `json:"canComplete"`
}

func (s *Service) repo(path string) (git.Client, error) {
	c, err := s.repos.Get(path)
	if err != nil {
		return nil, invalidField("repositoryPath", err)
	}
	return c, nil
}

// CreateSession resolves the current branch and base branch to commits,
// snapshots the diff file list and records the session in one transaction.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.SessionWithStats, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	client, err := s.repo(req.RepositoryPath)
	if err != nil {
		return nil, err
	}

	headBranch, err := client.CurrentBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("current branch: %w", err)
	}
	baseCommit, err := client.ResolveRef(ctx, req.BaseBranch)
	if err != nil {
		return nil, err
	}
	headCommit, err := client.ResolveRef(ctx, headBranch)
	if err != nil {
		return nil, err
	}
	files, err := client.DiffFiles(ctx, baseCommit, headCommit)
	if err != nil {
		return nil, err
	}

	rs := &models.ReviewSession{
		RepositoryPath: client.Path(),
		BaseBranch:     req.BaseBranch,
		HeadBranch:     headBranch,
		BaseCommit:     baseCommit,
		HeadCommit:     headCommit,
		Title:          models.DefaultSessionTitle(req.BaseBranch, headBranch),
		Status:         models.SessionStatusActive,
	}
	rs.CreatedAt = s.now()
	rs.UpdatedAt = rs.CreatedAt
	if req.Title != nil && *req.Title != "" {
		rs.Title = *req.Title
	}
	if req.Description != nil {
		rs.Description = *req.Description
	}

	err = s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.CreateSession(ctx, rs); err != nil {
			return err
		}
		for _, f := range files {
			fs := &models.FileReviewStatus{
				SessionID: rs.ID,
				FilePath:  f.Path,
				Status:    models.FileStatusPending,
				CreatedAt: rs.CreatedAt,
			}
			if err := tx.CreateFileStatus(ctx, fs); err != nil {
				return err
			}
		}
		return s.logActivity(ctx, tx, &models.ActivityLog{
			SessionID:  rs.ID,
			Action:     models.ActionSessionCreated,
			TargetType: models.TargetSession,
			TargetID:   rs.ID,
			Metadata:   map[string]any{"filesCount": len(files)},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session", rs.ID).
		Str("base", rs.BaseBranch).
		Str("head", rs.HeadBranch).
		Int("files", len(files)).
		Msg("review session created")

	return &models.SessionWithStats{
		ReviewSession: *rs,
		SessionStats:  models.SessionStats{FilesTotal: len(files)},
	}, nil
}

// GetSession loads a session and recomputes its diff from the frozen
// commits. The diff is the source of truth for the file list; files without
// a status row read as pending.
func (s *Service) GetSession(ctx context.Context, id string) (*SessionDetail, error) {
	rs, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	client, err := s.repos.Get(rs.RepositoryPath)
	if err != nil {
		return nil, fmt.Errorf("open repository for session %s: %w", id, err)
	}
	diff, err := client.DiffFiles(ctx, rs.BaseCommit, rs.HeadCommit)
	if err != nil {
		return nil, err
	}

	statuses, err := s.store.ListFileStatuses(ctx, id)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]*models.FileReviewStatus, len(statuses))
	for _, fs := range statuses {
		byPath[fs.FilePath] = fs
	}

	stats, err := s.store.SessionStats(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &SessionDetail{Files: make([]SessionFile, 0, len(diff))}
	reviewed := 0
	for _, f := range diff {
		sf := SessionFile{DiffFile: f, ReviewStatus: models.FileStatusPending}
		if fs, ok := byPath[f.Path]; ok {
			sf.ReviewStatus = fs.Status
			sf.ReviewedAt = fs.ReviewedAt
		}
		if sf.ReviewStatus == models.FileStatusReviewed {
			reviewed++
		}
		detail.Files = append(detail.Files, sf)
	}

	stats.FilesTotal = len(diff)
	stats.FilesReviewed = reviewed
	detail.SessionWithStats = models.SessionWithStats{ReviewSession: *rs, SessionStats: stats}
	detail.CanComplete = len(diff) > 0 && reviewed == len(diff)
	return detail, nil
}

// UpdateSession applies a partial update. A status change is logged as
// session_completed or status_changed.
func (s *Service) UpdateSession(ctx context.Context, id string, req UpdateSessionRequest) (*models.ReviewSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var rs *models.ReviewSession
	err := s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		rs, err = tx.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if req.Title != nil {
			rs.Title = *req.Title
		}
		if req.Description != nil {
			rs.Description = *req.Description
		}
		if req.Status != nil {
			rs.Status = *req.Status
		}
		rs.UpdatedAt = s.now()
		if err := tx.UpdateSession(ctx, rs); err != nil {
			return err
		}

		if req.Status == nil {
			return nil
		}
		action := models.ActionStatusChanged
		if *req.Status == models.SessionStatusCompleted {
			action = models.ActionSessionCompleted
		}
		return s.logActivity(ctx, tx, &models.ActivityLog{
			SessionID:  id,
			Action:     action,
			TargetType: models.TargetSession,
			TargetID:   id,
			Metadata:   map[string]any{"newStatus": string(*req.Status)},
		})
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// DeleteSession removes a session with its files, comments and activity.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("session", id).Msg("review session deleted")
	return nil
}

// ListSessions returns all sessions, newest first, with their stored counts.
func (s *Service) ListSessions(ctx context.Context) ([]*models.SessionWithStats, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*models.SessionWithStats, 0, len(sessions))
	for _, rs := range sessions {
		stats, err := s.store.SessionStats(ctx, rs.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, &models.SessionWithStats{ReviewSession: *rs, SessionStats: stats})
	}
	return out, nil
}
