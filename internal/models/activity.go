package models

import "time"

// ActivityAction names an event recorded in a session's activity log.
type ActivityAction string

const (
	ActionSessionCreated   ActivityAction = "session_created"
	ActionFileReviewed     ActivityAction = "file_reviewed"
	ActionCommentAdded     ActivityAction = "comment_added"
	ActionCommentResolved  ActivityAction = "comment_resolved"
	ActionStatusChanged    ActivityAction = "status_changed"
	ActionSessionCompleted ActivityAction = "session_completed"
)

// Activity target types.
const (
	TargetSession = "session"
	TargetComment = "comment"
	TargetFile    = "file"
)

// ActivityLog is an append-only audit record of a session event.
type ActivityLog struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"sessionId"`
	Action     ActivityAction `json:"action"`
	TargetType string         `json:"targetType,omitempty"`
	TargetID   string         `json:"targetId,omitempty"`
	Metadata   map[string]any `json:"metadata"`
	CreatedAt  time.Time      `json:"createdAt"`
}
