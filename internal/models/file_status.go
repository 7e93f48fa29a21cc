package models

import "time"

// FileStatus is the review progress of one file in a session.
type FileStatus string

const (
	FileStatusPending  FileStatus = "pending"
	FileStatusViewed   FileStatus = "viewed"
	FileStatusReviewed FileStatus = "reviewed"
)

// Valid reports whether s is a known file status.
func (s FileStatus) Valid() bool {
	switch s {
	case FileStatusPending, FileStatusViewed, FileStatusReviewed:
		return true
	}
	return false
}

// FileReviewStatus tracks review progress for one (session, file) pair.
type FileReviewStatus struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"sessionId"`
	FilePath   string     `json:"filePath"`
	Status     FileStatus `json:"status"`
	ReviewedAt *time.Time `json:"reviewedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}
