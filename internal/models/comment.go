package models

import "time"

// Side identifies which column of a diff a comment is anchored to.
type Side string

const (
	SideOld Side = "old"
	SideNew Side = "new"
)

// Valid reports whether s is a known diff side.
func (s Side) Valid() bool {
	return s == SideOld || s == SideNew
}

// LineComment is a comment anchored to a line of a file's diff.
// A comment with a ParentID is a reply to a thread root.
type LineComment struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"sessionId"`
	FilePath      string     `json:"filePath"`
	Side          Side       `json:"side"`
	LineNumber    int        `json:"lineNumber"`
	EndLineNumber *int       `json:"endLineNumber"`
	Content       string     `json:"content"`
	Resolved      bool       `json:"resolved"`
	ResolvedAt    *time.Time `json:"resolvedAt"`
	ParentID      string     `json:"parentId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IsReply reports whether the comment belongs to another comment's thread.
func (c *LineComment) IsReply() bool {
	return c.ParentID != ""
}

// CommentThread is a root comment and its replies in creation order.
type CommentThread struct {
	Root    *LineComment   `json:"root"`
	Replies []*LineComment `json:"replies"`
}

// GroupThreads groups a flat comment list into threads. Roots keep their
// input order and replies are attached to their parent in input order.
// A reply whose parent is not in the list becomes a thread of its own.
func GroupThreads(comments []*LineComment) []*CommentThread {
	byRoot := make(map[string]*CommentThread)
	for _, c := range comments {
		if !c.IsReply() {
			byRoot[c.ID] = &CommentThread{Root: c, Replies: []*LineComment{}}
		}
	}

	threads := make([]*CommentThread, 0, len(byRoot))
	for _, c := range comments {
		if !c.IsReply() {
			threads = append(threads, byRoot[c.ID])
			continue
		}
		if t, ok := byRoot[c.ParentID]; ok {
			t.Replies = append(t.Replies, c)
			continue
		}
		threads = append(threads, &CommentThread{Root: c, Replies: []*LineComment{}})
	}
	return threads
}
