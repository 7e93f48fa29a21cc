// Package review implements review sessions, line comments and per-file
// review progress on top of the store and the git gateway.
package review

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/joescharf/lr/internal/git"
	"github.com/joescharf/lr/internal/models"
	"github.com/joescharf/lr/internal/store"
)

// DefaultActivityLimit caps ListActivities when no limit is given.
const DefaultActivityLimit = 50

// ErrNotFound is returned (wrapped) when a session or comment does not exist.
var ErrNotFound = store.ErrNotFound

// Service orchestrates review operations. Every operation that writes more
// than one row runs in a single transaction.
type Service struct {
	store store.Store
	repos *git.Registry
	log   zerolog.Logger
	now   func() time.Time

	activityLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides the clock used for reviewedAt and resolvedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithActivityLimit sets the ListActivities limit used when callers pass none.
func WithActivityLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.activityLimit = n
		}
	}
}

// NewService creates a review service.
func NewService(st store.Store, repos *git.Registry, opts ...Option) *Service {
	s := &Service{
		store: st,
		repos: repos,
		log:   zerolog.Nop(),
		now:   func() time.Time { return time.Now().UTC() },

		activityLimit: DefaultActivityLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repos returns the git registry the service resolves repositories with.
func (s *Service) Repos() *git.Registry { return s.repos }

func (s *Service) logActivity(ctx context.Context, st store.Store, a *models.ActivityLog) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	if err := st.CreateActivity(ctx, a); err != nil {
		return err
	}
	s.log.Debug().
		Str("session", a.SessionID).
		Str("action", string(a.Action)).
		Str("target", a.TargetID).
		Msg("activity recorded")
	return nil
}

// IsNotFound reports whether err means a referenced entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRefError reports whether err is an unresolvable git ref.
func IsRefError(err error) bool {
	return errors.Is(err, git.ErrRefNotFound)
}
