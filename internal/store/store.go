package store

import (
	"context"
	"errors"

	"github.com/joescharf/lr/internal/models"
)

// ErrNotFound is returned (wrapped) when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CommentListFilter specifies filters for listing comments.
type CommentListFilter struct {
	SessionID string
	FilePath  string
}

// Store defines the persistence interface for lr.
type Store interface {
	// Review sessions
	CreateSession(ctx context.Context, s *models.ReviewSession) error
	GetSession(ctx context.Context, id string) (*models.ReviewSession, error)
	ListSessions(ctx context.Context) ([]*models.ReviewSession, error)
	UpdateSession(ctx context.Context, s *models.ReviewSession) error
	DeleteSession(ctx context.Context, id string) error
	SessionStats(ctx context.Context, sessionID string) (models.SessionStats, error)

	// File review status
	CreateFileStatus(ctx context.Context, fs *models.FileReviewStatus) error
	GetFileStatus(ctx context.Context, sessionID, filePath string) (*models.FileReviewStatus, error)
	ListFileStatuses(ctx context.Context, sessionID string) ([]*models.FileReviewStatus, error)
	UpdateFileStatus(ctx context.Context, fs *models.FileReviewStatus) error

	// Line comments
	CreateComment(ctx context.Context, c *models.LineComment) error
	GetComment(ctx context.Context, id string) (*models.LineComment, error)
	ListComments(ctx context.Context, filter CommentListFilter) ([]*models.LineComment, error)
	UpdateComment(ctx context.Context, c *models.LineComment) error
	DeleteComment(ctx context.Context, id string) error

	// Activity log
	CreateActivity(ctx context.Context, a *models.ActivityLog) error
	ListActivities(ctx context.Context, sessionID string, limit int) ([]*models.ActivityLog, error)

	// InTx runs fn against a Store bound to a single transaction. The
	// transaction commits if fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
