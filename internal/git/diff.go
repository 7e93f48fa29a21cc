package git

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FileChangeStatus classifies a file in a diff summary.
type FileChangeStatus string

const (
	StatusAdded    FileChangeStatus = "added"
	StatusDeleted  FileChangeStatus = "deleted"
	StatusModified FileChangeStatus = "modified"
	// StatusRenamed is never produced: summaries run with rename detection
	// off, so a rename shows up as a delete plus an add.
	StatusRenamed FileChangeStatus = "renamed"
)

// DiffFile is one entry of a diff summary.
type DiffFile struct {
	Path      string           `json:"path"`
	Status    FileChangeStatus `json:"status"`
	Additions int              `json:"additions"`
	Deletions int              `json:"deletions"`
	Binary    bool             `json:"binary,omitempty"`
}

// ClassifyStatus infers a file's change status from its line counts.
// Binary files are always modified.
func ClassifyStatus(additions, deletions int, binary bool) FileChangeStatus {
	switch {
	case binary:
		return StatusModified
	case additions > 0 && deletions == 0:
		return StatusAdded
	case deletions > 0 && additions == 0:
		return StatusDeleted
	default:
		return StatusModified
	}
}

// ParseNumstat parses `git diff --numstat -z --no-renames` output.
// Binary files report "-" for both counts.
func ParseNumstat(out string) []DiffFile {
	files := []DiffFile{}
	for _, rec := range strings.Split(out, "\x00") {
		rec = strings.TrimLeft(rec, "\n")
		if rec == "" {
			continue
		}
		parts := strings.SplitN(rec, "\t", 3)
		if len(parts) != 3 || parts[2] == "" {
			continue
		}

		f := DiffFile{Path: parts[2]}
		if parts[0] == "-" && parts[1] == "-" {
			f.Binary = true
		} else {
			f.Additions, _ = strconv.Atoi(parts[0])
			f.Deletions, _ = strconv.Atoi(parts[1])
		}
		f.Status = ClassifyStatus(f.Additions, f.Deletions, f.Binary)
		files = append(files, f)
	}
	return files
}

// DiffLine is one line inside a hunk. OldNum/NewNum are 0 when the line
// does not exist on that side.
type DiffLine struct {
	Type    string `json:"type"` // "context", "add", "del"
	Content string `json:"content"`
	OldNum  int    `json:"oldNum,omitempty"`
	NewNum  int    `json:"newNum,omitempty"`
}

// DiffHunk is a contiguous block of a unified diff.
type DiffHunk struct {
	OldStart int        `json:"oldStart"`
	OldCount int        `json:"oldCount"`
	NewStart int        `json:"newStart"`
	NewCount int        `json:"newCount"`
	Header   string     `json:"header"`
	Lines    []DiffLine `json:"lines"`
}

// FileDiff is the parsed diff of a single file.
type FileDiff struct {
	Path  string     `json:"path"`
	Hunks []DiffHunk `json:"hunks"`
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@(.*)$`)

// ParseUnifiedDiff parses unified diff text into hunks. File headers
// between hunks end the current hunk.
func ParseUnifiedDiff(diff string) []DiffHunk {
	hunks := []DiffHunk{}
	var current *DiffHunk
	oldLine, newLine := 0, 0

	flush := func() {
		if current != nil {
			hunks = append(hunks, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(diff, "\n") {
		if m := hunkHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			oldStart, _ := strconv.Atoi(m[1])
			oldCount := 1
			if m[2] != "" {
				oldCount, _ = strconv.Atoi(m[2])
			}
			newStart, _ := strconv.Atoi(m[3])
			newCount := 1
			if m[4] != "" {
				newCount, _ = strconv.Atoi(m[4])
			}
			current = &DiffHunk{
				OldStart: oldStart,
				OldCount: oldCount,
				NewStart: newStart,
				NewCount: newCount,
				Header:   line,
				Lines:    []DiffLine{},
			}
			oldLine = oldStart
			newLine = newStart
			continue
		}

		if strings.HasPrefix(line, "diff --git ") {
			flush()
			continue
		}
		if current == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "+"):
			current.Lines = append(current.Lines, DiffLine{Type: "add", Content: line[1:], NewNum: newLine})
			newLine++
		case strings.HasPrefix(line, "-"):
			current.Lines = append(current.Lines, DiffLine{Type: "del", Content: line[1:], OldNum: oldLine})
			oldLine++
		case strings.HasPrefix(line, " "):
			current.Lines = append(current.Lines, DiffLine{Type: "context", Content: line[1:], OldNum: oldLine, NewNum: newLine})
			oldLine++
			newLine++
		}
	}
	flush()
	return hunks
}

// String renders a summary line like "modified +3 -1 path".
func (f DiffFile) String() string {
	if f.Binary {
		return fmt.Sprintf("%s (binary) %s", f.Status, f.Path)
	}
	return fmt.Sprintf("%s +%d -%d %s", f.Status, f.Additions, f.Deletions, f.Path)
}
