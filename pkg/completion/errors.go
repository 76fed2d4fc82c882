package completion

import "errors"

var (
	// ErrCompletion is returned when the completion backend call fails.
	ErrCompletion = errors.New("completion failed")

	// ErrSchema is returned when a structured completion's output does not
	// parse against the requested schema.
	ErrSchema = errors.New("completion output does not match schema")

	// ErrEmptyResponse is returned when the backend responds successfully
	// but carries no usable choices.
	ErrEmptyResponse = errors.New("completion returned no choices")
)
