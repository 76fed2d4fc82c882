// Package eventstream publishes block-persisted events to an event stream
// backend. Backends are pluggable; the nop publisher serves deployments
// without a stream.
package eventstream

import "context"

// Publisher publishes block events to an event stream backend.
type Publisher interface {
	PublishBlock(ctx context.Context, event *BlockPersistedEvent) error
	Close() error
}
