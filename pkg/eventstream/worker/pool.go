// Package worker provides an asynchronous worker pool for publishing block
// events through an eventstream.Publisher.
//
// The pool decouples event publication from the turn's request path: a turn
// finishes as soon as its block append confirms, and the event reaches the
// stream in the background. A full queue drops the event with an error log;
// events are observability and never gate a turn.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/twinfold/contextd/pkg/eventstream"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 256
)

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher is the event stream backend events are delivered to.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered event channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Pool publishes block events asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan *eventstream.BlockPersistedEvent
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, fmt.Errorf("worker pool requires a publisher")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Pool{
		config: c,
		queue:  make(chan *eventstream.BlockPersistedEvent, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits an event for publication.
// Returns true if enqueued, false if the queue is full and the event was dropped.
func (p *Pool) Enqueue(event *eventstream.BlockPersistedEvent) bool {
	if event == nil {
		return false
	}

	select {
	case p.queue <- event:
		p.logger.Debug("event queued",
			zap.String("conversation_id", event.ConversationID),
			zap.Int("block_id", event.BlockID),
		)
		return true
	default:
		p.logger.Error("event not queued, queue full, event dropped",
			zap.String("conversation_id", event.ConversationID),
			zap.Int("block_id", event.BlockID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight events to drain.
// Call this during graceful shutdown after the API server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker continuously pulls events off the queue and publishes them.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()

	for event := range p.queue {
		if err := p.config.Publisher.PublishBlock(context.Background(), event); err != nil {
			p.logger.Error("failed to publish block event",
				zap.Uint("worker", id),
				zap.String("conversation_id", event.ConversationID),
				zap.Int("block_id", event.BlockID),
				zap.Error(err),
			)
		}
	}
}
