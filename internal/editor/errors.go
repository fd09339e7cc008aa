package editor

import (
	"errors"
	"fmt"
)

// ErrRejected marks an operation that was refused before anything changed.
// Every guard error below wraps it.
var ErrRejected = errors.New("nothing changed")

var (
	ErrPageNotFound    = fmt.Errorf("%w: page not found", ErrRejected)
	ErrElementNotFound = fmt.Errorf("%w: element not found", ErrRejected)
	ErrLastPage        = fmt.Errorf("%w: a project must keep at least one page", ErrRejected)
	ErrHomePage        = fmt.Errorf("%w: the home page cannot be deleted", ErrRejected)
	ErrIndexOutOfRange = fmt.Errorf("%w: index out of range", ErrRejected)
	ErrEmptyProject    = fmt.Errorf("%w: project has no pages", ErrRejected)
	ErrNoProject       = fmt.Errorf("%w: no project loaded", ErrRejected)
	ErrSaveInProgress  = fmt.Errorf("%w: a save is already in progress", ErrRejected)
	ErrUnknownCommand  = fmt.Errorf("%w: unknown command", ErrRejected)
	ErrInvalidSlug     = fmt.Errorf("%w: slug may only contain a-z, 0-9 and dashes", ErrRejected)
)

// SaveError reports a failed hand-off to the persistence collaborator. The
// in-memory project is left exactly as it was.
type SaveError struct {
	ProjectID string
	Err       error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("saving project %s failed, your local edits are safe: %v", e.ProjectID, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// IsRejected reports whether err means the editor refused the operation and
// left its state untouched.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}
