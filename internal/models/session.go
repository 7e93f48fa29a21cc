package models

import "time"

// SessionStatus represents the state of a review session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusArchived  SessionStatus = "archived"
)

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusActive, SessionStatusCompleted, SessionStatusArchived:
		return true
	}
	return false
}

// ReviewSession compares a base ref against a head ref in one repository.
// BaseCommit and HeadCommit are resolved once at creation and never change.
type ReviewSession struct {
	ID             string        `json:"id"`
	RepositoryPath string        `json:"repositoryPath"`
	BaseBranch     string        `json:"baseBranch"`
	HeadBranch     string        `json:"headBranch"`
	BaseCommit     string        `json:"baseCommit"`
	HeadCommit     string        `json:"headCommit"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Status         SessionStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// DefaultSessionTitle is used when a session is created without a title.
func DefaultSessionTitle(base, head string) string {
	return "Review: " + base + "..." + head
}

// SessionStats holds aggregate counts for a session.
type SessionStats struct {
	FilesTotal              int `json:"filesTotal"`
	FilesReviewed           int `json:"filesReviewed"`
	CommentsCount           int `json:"commentsCount"`
	UnresolvedCommentsCount int `json:"unresolvedCommentsCount"`
}

// SessionWithStats is a session annotated with its aggregate counts.
type SessionWithStats struct {
	ReviewSession
	SessionStats
}
