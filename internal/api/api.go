package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/joescharf/lr/internal/models"
	"github.com/joescharf/lr/internal/review"
)

// Server provides the REST API handlers.
type Server struct {
	svc      *review.Service
	repoPath string
	log      zerolog.Logger
}

// NewServer creates a new API server. repoPath is the repository used by
// git routes and session creation when a request does not name one.
func NewServer(svc *review.Service, repoPath string, log zerolog.Logger) *Server {
	return &Server{
		svc:      svc,
		repoPath: repoPath,
		log:      log,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	return s.routes(nil)
}

// Handler returns the API routes with ui serving every other path.
func (s *Server) Handler(ui http.Handler) http.Handler {
	return s.routes(ui)
}

func (s *Server) routes(ui http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.health)

	mux.HandleFunc("GET /api/sessions", s.listSessions)
	mux.HandleFunc("POST /api/sessions", s.createSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.getSession)
	mux.HandleFunc("PATCH /api/sessions/{id}", s.updateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)

	mux.HandleFunc("GET /api/sessions/{id}/comments", s.listComments)
	mux.HandleFunc("POST /api/sessions/{id}/comments", s.createComment)
	mux.HandleFunc("GET /api/sessions/{id}/threads", s.listThreads)
	mux.HandleFunc("PATCH /api/comments/{id}", s.updateComment)
	mux.HandleFunc("DELETE /api/comments/{id}", s.deleteComment)
	mux.HandleFunc("POST /api/comments/{id}/resolve", s.resolveComment)

	mux.HandleFunc("GET /api/sessions/{id}/files", s.listFiles)
	mux.HandleFunc("PATCH /api/sessions/{id}/files/{path...}", s.updateFileStatus)

	mux.HandleFunc("GET /api/sessions/{id}/activities", s.listActivities)

	mux.HandleFunc("GET /api/git/branches", s.gitBranches)
	mux.HandleFunc("GET /api/git/diff", s.gitDiff)
	mux.HandleFunc("GET /api/git/diff/file", s.gitDiffFile)
	mux.HandleFunc("GET /api/git/diff/hunks", s.gitDiffHunks)
	mux.HandleFunc("GET /api/git/diff/raw", s.gitRawDiff)
	mux.HandleFunc("GET /api/git/commits", s.gitCommits)
	mux.HandleFunc("GET /api/git/merge-base", s.gitMergeBase)
	mux.HandleFunc("GET /api/git/file", s.gitFile)
	mux.HandleFunc("GET /api/git/working-changes", s.gitWorkingChanges)
	mux.HandleFunc("GET /api/git/working-diff", s.gitWorkingDiff)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})
	if ui != nil {
		mux.Handle("/", ui)
	}

	return s.requestLogger(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		ev := s.log.Debug()
		if rec.status >= http.StatusInternalServerError {
			ev = s.log.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(started)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case review.IsValidation(err), review.IsRefError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case review.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// unchanged.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "repoPath": s.repoPath})
}

// --- Sessions ---

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.svc.ListSessions(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req review.CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.RepositoryPath == "" {
		req.RepositoryPath = s.repoPath
	}

	sess, err := s.svc.CreateSession(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	var req review.UpdateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	sess, err := s.svc.UpdateSession(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Comments ---

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.svc.ListComments(r.Context(), r.PathValue("id"), r.URL.Query().Get("filePath"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.svc.Threads(r.Context(), r.PathValue("id"), r.URL.Query().Get("filePath"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": threads})
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	var req review.CreateCommentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	req.SessionID = r.PathValue("id")

	c, err := s.svc.CreateComment(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) {
	var req review.UpdateCommentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	c, err := s.svc.UpdateComment(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteComment(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resolveComment(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.ToggleResolve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// --- Files ---

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.svc.ListFiles(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// updateFileStatus handles both /files/status?path=<p> and
// /files/<p>/status, since file paths contain slashes.
func (s *Server) updateFileStatus(w http.ResponseWriter, r *http.Request) {
	rest := r.PathValue("path")
	if rest != "status" && !strings.HasSuffix(rest, "/status") {
		writeError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
		return
	}
	filePath := strings.TrimSuffix(strings.TrimSuffix(rest, "status"), "/")
	if filePath == "" {
		filePath = r.URL.Query().Get("path")
	}

	var body struct {
		Status models.FileStatus `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	fs, err := s.svc.UpdateFileStatus(r.Context(), review.UpdateFileStatusRequest{
		SessionID: r.PathValue("id"),
		FilePath:  filePath,
		Status:    body.Status,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

// --- Activities ---

func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	activities, err := s.svc.ListActivities(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}
