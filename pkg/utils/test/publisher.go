package testutils

import (
	"context"
	"sync"

	"github.com/twinfold/contextd/pkg/eventstream"
)

// MockPublisher is an eventstream.Publisher that records published events.
type MockPublisher struct {
	mu sync.Mutex

	// Err, when set, fails every publish.
	Err error

	events []*eventstream.BlockPersistedEvent
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishBlock(_ context.Context, event *eventstream.BlockPersistedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// Events returns a snapshot of the events published so far.
func (m *MockPublisher) Events() []*eventstream.BlockPersistedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*eventstream.BlockPersistedEvent, len(m.events))
	copy(out, m.events)
	return out
}
