package retrieval

import "errors"

// ErrBackend is returned when the retrieval backend call fails.
var ErrBackend = errors.New("retrieval backend failed")
