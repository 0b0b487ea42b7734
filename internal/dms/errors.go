package dms

import (
	"errors"
	"fmt"

	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"
)

// Sentinel errors; match with errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidWorkspace      = errors.New("invalid workspace")
	ErrInvalidObjectName     = errors.New("invalid object name")
	ErrInvalidWorkspaceState = errors.New("invalid workspace state")
	ErrInvalidReference      = errors.New("invalid reference")
	ErrInvalidDocumentID     = errors.New("invalid document id")
	ErrValidation            = errors.New("validation failed")
	ErrInvalidPath           = repopath.ErrInvalidPath
	// ErrNameConflict is returned when a sibling already uses a name and
	// version.
	ErrNameConflict = errors.New("name already in use")
)

// WorkspaceError reports a workspace path that does not resolve.
type WorkspaceError struct {
	Path repopath.Path
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("invalid workspace: %q", e.Path.String())
}

func (e *WorkspaceError) Is(target error) bool {
	return target == ErrInvalidWorkspace || target == ErrNotFound
}

// ObjectNameError reports an object path that does not resolve.
type ObjectNameError struct {
	Path repopath.Path
}

func (e *ObjectNameError) Error() string {
	return fmt.Sprintf("invalid object name: %q", e.Path.String())
}

func (e *ObjectNameError) Is(target error) bool {
	return target == ErrInvalidObjectName || target == ErrNotFound
}

// WorkspaceStateError reports a change attempted in a workspace that is not
// Open.
type WorkspaceStateError struct {
	Path  repopath.Path
	State State
}

func (e *WorkspaceStateError) Error() string {
	return fmt.Sprintf("workspace %q is %s", e.Path.String(), e.State)
}

func (e *WorkspaceStateError) Is(target error) bool {
	return target == ErrInvalidWorkspaceState
}

// ReferenceError reports a document reference that does not resolve.
type ReferenceError struct {
	Text string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("invalid reference: %q", e.Text)
}

func (e *ReferenceError) Is(target error) bool {
	return target == ErrInvalidReference || target == ErrNotFound
}

// DocumentIDError reports a document id that is not linked where expected.
type DocumentIDError struct {
	ID string
}

func (e *DocumentIDError) Error() string {
	return fmt.Sprintf("invalid document id: %q", e.ID)
}

func (e *DocumentIDError) Is(target error) bool {
	return target == ErrInvalidDocumentID || target == ErrNotFound
}

// ValidationError wraps input validation failures.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string        { return "validation failed: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error        { return e.Err }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
