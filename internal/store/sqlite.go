package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/lr/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// querier is the subset of *sql.DB and *sql.Tx used by the store.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
	q  querier
	tx bool
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Pragmas in the DSN apply to every connection the pool opens.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes access and keeps transactions on one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteStore{db: db, q: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// stamp sets t to the current time when the caller left it zero.
func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	}
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InTx runs fn inside a transaction. Nested calls reuse the outer transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.tx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&SQLiteStore{db: s.db, q: tx, tx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// --- Review Sessions ---

const sessionColumns = `id, repository_path, base_branch, head_branch, base_commit, head_commit, title, description, status, created_at, updated_at`

func (s *SQLiteStore) CreateSession(ctx context.Context, rs *models.ReviewSession) error {
	if rs.ID == "" {
		rs.ID = newULID()
	}
	if rs.Status == "" {
		rs.Status = models.SessionStatusActive
	}
	stamp(&rs.CreatedAt)
	if rs.UpdatedAt.IsZero() {
		rs.UpdatedAt = rs.CreatedAt
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO review_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rs.ID, rs.RepositoryPath, rs.BaseBranch, rs.HeadBranch, rs.BaseCommit, rs.HeadCommit,
		rs.Title, rs.Description, string(rs.Status), rs.CreatedAt, rs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func scanSession(row interface{ Scan(...any) error }) (*models.ReviewSession, error) {
	rs := &models.ReviewSession{}
	var status string
	err := row.Scan(&rs.ID, &rs.RepositoryPath, &rs.BaseBranch, &rs.HeadBranch, &rs.BaseCommit, &rs.HeadCommit,
		&rs.Title, &rs.Description, &status, &rs.CreatedAt, &rs.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rs.Status = models.SessionStatus(status)
	return rs, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.ReviewSession, error) {
	rs, err := scanSession(s.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM review_sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return rs, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*models.ReviewSession, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM review_sessions ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*models.ReviewSession
	for rows.Next() {
		rs, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, rs)
	}
	return sessions, rows.Err()
}

// UpdateSession writes the mutable fields of a session. Commits and branches
// are fixed at creation and are not touched. UpdatedAt is written as given.
func (s *SQLiteStore) UpdateSession(ctx context.Context, rs *models.ReviewSession) error {
	stamp(&rs.UpdatedAt)
	res, err := s.q.ExecContext(ctx,
		`UPDATE review_sessions SET title = ?, description = ?, status = ?, updated_at = ? WHERE id = ?`,
		rs.Title, rs.Description, string(rs.Status), rs.UpdatedAt, rs.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", rs.ID, ErrNotFound)
	}
	return nil
}

// DeleteSession removes a session and, by cascade, its files, comments and activity.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM review_sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SessionStats(ctx context.Context, sessionID string) (models.SessionStats, error) {
	var st models.SessionStats
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'reviewed' THEN 1 ELSE 0 END), 0)
		FROM file_review_status WHERE session_id = ?`, sessionID,
	).Scan(&st.FilesTotal, &st.FilesReviewed)
	if err != nil {
		return st, fmt.Errorf("file stats: %w", err)
	}

	err = s.q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN resolved = 0 THEN 1 ELSE 0 END), 0)
		FROM line_comments WHERE session_id = ?`, sessionID,
	).Scan(&st.CommentsCount, &st.UnresolvedCommentsCount)
	if err != nil {
		return st, fmt.Errorf("comment stats: %w", err)
	}
	return st, nil
}

// --- File Review Status ---

func (s *SQLiteStore) CreateFileStatus(ctx context.Context, fs *models.FileReviewStatus) error {
	if fs.ID == "" {
		fs.ID = newULID()
	}
	if fs.Status == "" {
		fs.Status = models.FileStatusPending
	}
	stamp(&fs.CreatedAt)

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO file_review_status (id, session_id, file_path, status, reviewed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fs.ID, fs.SessionID, fs.FilePath, string(fs.Status), nullTime(fs.ReviewedAt), fs.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create file status: %w", err)
	}
	return nil
}

const fileStatusColumns = `id, session_id, file_path, status, reviewed_at, created_at`

func scanFileStatus(row interface{ Scan(...any) error }) (*models.FileReviewStatus, error) {
	fs := &models.FileReviewStatus{}
	var status string
	var reviewedAt sql.NullTime
	if err := row.Scan(&fs.ID, &fs.SessionID, &fs.FilePath, &status, &reviewedAt, &fs.CreatedAt); err != nil {
		return nil, err
	}
	fs.Status = models.FileStatus(status)
	fs.ReviewedAt = timePtr(reviewedAt)
	return fs, nil
}

func (s *SQLiteStore) GetFileStatus(ctx context.Context, sessionID, filePath string) (*models.FileReviewStatus, error) {
	fs, err := scanFileStatus(s.q.QueryRowContext(ctx,
		`SELECT `+fileStatusColumns+` FROM file_review_status WHERE session_id = ? AND file_path = ?`,
		sessionID, filePath))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file %s in session %s: %w", filePath, sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get file status: %w", err)
	}
	return fs, nil
}

func (s *SQLiteStore) ListFileStatuses(ctx context.Context, sessionID string) ([]*models.FileReviewStatus, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+fileStatusColumns+` FROM file_review_status WHERE session_id = ? ORDER BY file_path`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list file statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*models.FileReviewStatus
	for rows.Next() {
		fs, err := scanFileStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file status: %w", err)
		}
		files = append(files, fs)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) UpdateFileStatus(ctx context.Context, fs *models.FileReviewStatus) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE file_review_status SET status = ?, reviewed_at = ? WHERE id = ?`,
		string(fs.Status), nullTime(fs.ReviewedAt), fs.ID,
	)
	if err != nil {
		return fmt.Errorf("update file status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("file status %s: %w", fs.ID, ErrNotFound)
	}
	return nil
}

// --- Line Comments ---

const commentColumns = `id, session_id, file_path, side, line_number, end_line_number, content, resolved, resolved_at, parent_id, created_at, updated_at`

func (s *SQLiteStore) CreateComment(ctx context.Context, c *models.LineComment) error {
	if c.ID == "" {
		c.ID = newULID()
	}
	stamp(&c.CreatedAt)
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO line_comments (`+commentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SessionID, c.FilePath, string(c.Side), c.LineNumber, nullInt(c.EndLineNumber),
		c.Content, boolToInt(c.Resolved), nullTime(c.ResolvedAt), nullString(c.ParentID), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func scanComment(row interface{ Scan(...any) error }) (*models.LineComment, error) {
	c := &models.LineComment{}
	var side string
	var endLine sql.NullInt64
	var resolvedAt sql.NullTime
	var parentID sql.NullString
	err := row.Scan(&c.ID, &c.SessionID, &c.FilePath, &side, &c.LineNumber, &endLine,
		&c.Content, &c.Resolved, &resolvedAt, &parentID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Side = models.Side(side)
	if endLine.Valid {
		n := int(endLine.Int64)
		c.EndLineNumber = &n
	}
	c.ResolvedAt = timePtr(resolvedAt)
	c.ParentID = parentID.String
	return c, nil
}

func (s *SQLiteStore) GetComment(ctx context.Context, id string) (*models.LineComment, error) {
	c, err := scanComment(s.q.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM line_comments WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

// ListComments returns a session's comments ordered by file, line and
// creation time, or by line and creation time when a file is given.
func (s *SQLiteStore) ListComments(ctx context.Context, filter CommentListFilter) ([]*models.LineComment, error) {
	query := `SELECT ` + commentColumns + ` FROM line_comments WHERE session_id = ?`
	args := []any{filter.SessionID}
	if filter.FilePath != "" {
		query += " AND file_path = ? ORDER BY line_number, created_at, rowid"
		args = append(args, filter.FilePath)
	} else {
		query += " ORDER BY file_path, line_number, created_at, rowid"
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*models.LineComment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *SQLiteStore) UpdateComment(ctx context.Context, c *models.LineComment) error {
	stamp(&c.UpdatedAt)
	res, err := s.q.ExecContext(ctx,
		`UPDATE line_comments SET content = ?, resolved = ?, resolved_at = ?, updated_at = ? WHERE id = ?`,
		c.Content, boolToInt(c.Resolved), nullTime(c.ResolvedAt), c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("comment %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

// DeleteComment removes a comment and its replies. Deleting a missing id is not an error.
func (s *SQLiteStore) DeleteComment(ctx context.Context, id string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM line_comments WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// --- Activity Log ---

func (s *SQLiteStore) CreateActivity(ctx context.Context, a *models.ActivityLog) error {
	if a.ID == "" {
		a.ID = newULID()
	}
	if a.Metadata == nil {
		a.Metadata = map[string]any{}
	}
	stamp(&a.CreatedAt)

	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO activity_log (id, session_id, action, target_type, target_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, string(a.Action), a.TargetType, a.TargetID, string(meta), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// ListActivities returns the newest activity first. A limit <= 0 returns all rows.
func (s *SQLiteStore) ListActivities(ctx context.Context, sessionID string, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, session_id, action, target_type, target_id, metadata, created_at
		FROM activity_log WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var activities []*models.ActivityLog
	for rows.Next() {
		a := &models.ActivityLog{}
		var action, meta string
		if err := rows.Scan(&a.ID, &a.SessionID, &action, &a.TargetType, &a.TargetID, &meta, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Action = models.ActivityAction(action)
		if err := json.Unmarshal([]byte(meta), &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode activity metadata: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
