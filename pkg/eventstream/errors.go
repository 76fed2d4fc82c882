package eventstream

import "errors"

// ErrNilBlockEvent indicates a nil block event payload was provided to a publisher.
var ErrNilBlockEvent = errors.New("nil block event")
