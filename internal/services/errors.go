package services

import (
	"errors"
	"fmt"

	"github.com/sitesmithapp/sitesmith/internal/editor"
	"github.com/sitesmithapp/sitesmith/internal/lifecycle"
	"github.com/sitesmithapp/sitesmith/internal/store"
)

// ErrRejected marks a request refused before anything was written.
var ErrRejected = errors.New("nothing changed")

func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// ExternalError reports a failed call to a collaborator (queue, document
// store, object storage). Local state is left consistent.
type ExternalError struct {
	Op  string
	Err error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s failed, your local edits are safe: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// IsRejected reports whether err means nothing changed because the request
// was invalid or broke an invariant.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected) ||
		errors.Is(err, lifecycle.ErrRejected) ||
		errors.Is(err, editor.ErrRejected)
}

func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, store.ErrConflict)
}

func IsExternal(err error) bool {
	var ext *ExternalError
	var save *editor.SaveError
	return errors.As(err, &ext) || errors.As(err, &save)
}
