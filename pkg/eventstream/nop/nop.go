// Package nop provides a no-op event stream publisher.
package nop

import (
	"context"

	"github.com/twinfold/contextd/pkg/eventstream"
)

// Publisher discards all events.
type Publisher struct{}

// NewPublisher creates a no-op publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishBlock validates the payload and discards it.
func (p *Publisher) PublishBlock(_ context.Context, event *eventstream.BlockPersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilBlockEvent
	}
	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
