package twin

import "fmt"

// NotFoundError is returned when a required twin or relationship record is
// missing. This is a configuration error: the conversation makes no
// progress and no block is written.
type NotFoundError struct {
	Kind string // "twin" or "relationship"
	Key  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s record not found: %s", e.Kind, e.Key)
}

// ErrNotFound allows errors.Is matching against any NotFoundError.
var ErrNotFound = NotFoundError{}

// Is reports whether target is a NotFoundError, ignoring its fields.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	return ok
}
