package review

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/joescharf/lr/internal/models"
)

// ValidationError wraps field errors from a request that failed validation.
// Nothing is persisted when it is returned.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

func invalidField(field string, err error) error {
	return &ValidationError{Err: criterio.NewFieldErrors(field, err)}
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

// CreateSessionRequest starts a review of the current branch against BaseBranch.
type CreateSessionRequest struct {
	RepositoryPath string  `json:"repositoryPath"`
	BaseBranch     string  `json:"baseBranch"`
	Title          *string `json:"title,omitempty"`
	Description    *string `json:"description,omitempty"`
}

func (r CreateSessionRequest) Validate() error {
	return invalid(criterio.ValidateStruct(
		criterio.Run("repositoryPath", r.RepositoryPath, required),
		criterio.Run("baseBranch", r.BaseBranch, required),
	))
}

// UpdateSessionRequest is a partial update; nil fields are left unchanged.
type UpdateSessionRequest struct {
	Title       *string               `json:"title,omitempty"`
	Description *string               `json:"description,omitempty"`
	Status      *models.SessionStatus `json:"status,omitempty"`
}

func (r UpdateSessionRequest) Validate() error {
	if r.Status != nil && !r.Status.Valid() {
		return invalidField("status", fmt.Errorf("must be one of active, completed, archived; got %q", *r.Status))
	}
	return nil
}

// CreateCommentRequest adds a comment, or a reply when ParentID is set.
type CreateCommentRequest struct {
	SessionID     string      `json:"sessionId"`
	FilePath      string      `json:"filePath"`
	Side          models.Side `json:"side"`
	LineNumber    *int        `json:"lineNumber"`
	EndLineNumber *int        `json:"endLineNumber,omitempty"`
	Content       string      `json:"content"`
	ParentID      string      `json:"parentId,omitempty"`
}

func (r CreateCommentRequest) Validate() error {
	var errs criterio.FieldErrorsBuilder
	if err := required(r.SessionID); err != nil {
		errs = errs.Append("sessionId", err)
	}
	if err := required(r.FilePath); err != nil {
		errs = errs.Append("filePath", err)
	}
	switch {
	case r.Side == "":
		errs = errs.Append("side", fmt.Errorf("is required"))
	case !r.Side.Valid():
		errs = errs.Append("side", fmt.Errorf("must be old or new; got %q", r.Side))
	}
	switch {
	case r.LineNumber == nil:
		errs = errs.Append("lineNumber", fmt.Errorf("is required"))
	case *r.LineNumber < 1:
		errs = errs.Append("lineNumber", fmt.Errorf("must be at least 1"))
	case r.EndLineNumber != nil && *r.EndLineNumber < *r.LineNumber:
		errs = errs.Append("endLineNumber", fmt.Errorf("must not be before lineNumber"))
	}
	if err := required(r.Content); err != nil {
		errs = errs.Append("content", err)
	}
	return invalid(errs.ToError())
}

// UpdateCommentRequest is a partial update; nil fields are left unchanged.
type UpdateCommentRequest struct {
	Content  *string `json:"content,omitempty"`
	Resolved *bool   `json:"resolved,omitempty"`
}

func (r UpdateCommentRequest) Validate() error {
	if r.Content != nil {
		return invalid(criterio.Run("content", *r.Content, required))
	}
	return nil
}

// UpdateFileStatusRequest sets the review status of one file.
type UpdateFileStatusRequest struct {
	SessionID string            `json:"sessionId"`
	FilePath  string            `json:"filePath"`
	Status    models.FileStatus `json:"status"`
}

func (r UpdateFileStatusRequest) Validate() error {
	return invalid(criterio.ValidateStruct(
		criterio.Run("sessionId", r.SessionID, required),
		criterio.Run("filePath", r.FilePath, required),
		criterio.Run("status", string(r.Status), fileStatus),
	))
}

func fileStatus(s string) error {
	if s == "" {
		return fmt.Errorf("is required")
	}
	if !models.FileStatus(s).Valid() {
		return fmt.Errorf("must be one of pending, viewed, reviewed; got %q", s)
	}
	return nil
}
