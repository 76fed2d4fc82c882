package rerank

import "errors"

var (
	// ErrFinalSetTooLarge is returned when the requested final set size
	// exceeds the per-query candidate count. The final set can never hold
	// more items than a single query could supply.
	ErrFinalSetTooLarge = errors.New("final set size exceeds per-query candidate count")

	// ErrLambdaOutOfRange is returned when the diversity weight is outside [0, 1].
	ErrLambdaOutOfRange = errors.New("lambda must be in [0, 1]")
)
