package api

import (
	"net/http"

	"github.com/joescharf/lr/internal/git"
)

// gitClient returns the client for the ?repo= parameter or the default
// repository. It writes a 400 and returns false when the repository
// cannot be opened.
func (s *Server) gitClient(w http.ResponseWriter, r *http.Request) (git.Client, bool) {
	path := r.URL.Query().Get("repo")
	if path == "" {
		path = s.repoPath
	}
	c, err := s.svc.Repos().Get(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return c, true
}

// requireParams writes a 400 naming the first missing query parameter.
func requireParams(w http.ResponseWriter, r *http.Request, names ...string) bool {
	q := r.URL.Query()
	for _, name := range names {
		if q.Get(name) == "" {
			writeError(w, http.StatusBadRequest, name+" is required")
			return false
		}
	}
	return true
}

func (s *Server) gitBranches(w http.ResponseWriter, r *http.Request) {
	c, ok := s.gitClient(w, r)
	if !ok {
		return
	}
	branches, err := c.Branches(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

func (s *Server) gitDiff(w http.ResponseWriter, r *http.Request) {
	if !requireParams(w, r, "base", "head") {
		return
	}
	c, ok := s.gitClient(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	files, err := c.DiffFiles(r.Context(), q.Get("base"), q.Get("head"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) gitDiffFile(w http.ResponseWriter, r *http.Request) {
	if !requireParams(w, r, "base", "head", "path") {
		return
	}
	c, ok := s.gitClient(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	content, err := c.FileContentDiff(r.Context(), q.Get("base"), q.Get("head"), q.Get("path"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) gitDiffHunks(w http.ResponseWriter, r *http.Request) {
	if !requireParams(w, r, "base", "head", "path") {
		return
	}
	c, ok := s.gitClient(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	diff, err := c.FileDiff(r.Context(), q.Get("base"), q.Get("head"), q.Get("path"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) gitRawDiff(w http.ResponseWriter, r *http.Request) {
	if !requireParams(w, r, "base", "head") {
		return
	}
	c, ok := s.gitClient(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	diff, err := c.RawDiff(r.Context(), q.Get("base"), q.Get("head"), q.Get("path"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"diff": diff})
}

func (s *Server) gitCommits(w http.ResponseWriter, r *http.Request) {
	if !requireParams(w, r, "base", "head") {
		return
	}
	c, ok := s.gitClient(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	commits, err := c.CommitsBetween(r.Context(), q.Get("base"), q.Get("head"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
}

func (s *Server) gitMergeBase(w http.ResponseWriter, r *http.Request) {
	if !requireParams(w, r, "base", "head") {
		return
	}
	c, ok := s.gitClient(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	sha, err := c.MergeBase(r.Context(), q.Get("base"), q.Get("head"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mergeBase": sha})
}

func (s *Server) gitFile(w http.ResponseWriter, r *http.Request) {
	if !requireParams(w, r, "ref", "path") {
		return
	}
	c, ok := s.gitClient(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	content, err := c.FileContent(r.Context(), q.Get("ref"), q.Get("path"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (s *Server) gitWorkingChanges(w http.ResponseWriter, r *http.Request) {
	c, ok := s.gitClient(w, r)
	if !ok {
		return
	}
	changes, err := c.WorkingChanges(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

func (s *Server) gitWorkingDiff(w http.ResponseWriter, r *http.Request) {
	if !requireParams(w, r, "type") {
		return
	}
	kind := git.DiffKind(r.URL.Query().Get("type"))
	if kind != git.DiffStaged && kind != git.DiffUnstaged {
		writeError(w, http.StatusBadRequest, "type must be staged or unstaged")
		return
	}
	c, ok := s.gitClient(w, r)
	if !ok {
		return
	}
	diff, err := c.WorkingDiff(r.Context(), kind, r.URL.Query().Get("path"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"diff": diff})
}
