package repository

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrConfiguration marks synchronous construction failures: duplicate
	// managed keys, readonly names in scope, non-scalar scope values,
	// bounded trace without a limit, bounded trace on a backend without
	// slice-on-push.
	ErrConfiguration = errors.New("invalid repository configuration")

	// ErrScopeBreach is raised when a read filter contradicts the
	// repository scope and the breach policy is BreachError.
	ErrScopeBreach = errors.New("filter contradicts repository scope")

	// ErrInvalidCursor is raised by FindPage when the cursor document is
	// not visible under the current scope or the token is malformed.
	ErrInvalidCursor = errors.New("invalid pagination cursor")

	// ErrNilBackend is returned when a repository is constructed without a
	// backend adapter.
	ErrNilBackend = errors.New("nil backend")
)

// ReadonlyViolationError reports a write that touches managed or scope
// attributes. Fields lists every offending attribute name.
type ReadonlyViolationError struct {
	Fields []string
}

func (e *ReadonlyViolationError) Error() string {
	return fmt.Sprintf("write touches readonly attributes: %s", strings.Join(e.Fields, ", "))
}

// SetUnsetOverlapError reports an update whose set and unset sections name
// the same attribute.
type SetUnsetOverlapError struct {
	Fields []string
}

func (e *SetUnsetOverlapError) Error() string {
	return fmt.Sprintf("attributes appear in both set and unset: %s", strings.Join(e.Fields, ", "))
}

func configErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}
