// Package kafka provides a Kafka-backed event stream publisher using kafka-go.
// Events are keyed by conversation ID so a conversation's events land on one
// partition in order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/twinfold/contextd/pkg/eventstream"
)

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic is the topic block events are written to.
	Topic string
}

// Publisher implements eventstream.Publisher over a kafka-go Writer.
type Publisher struct {
	writer *kafkago.Writer
	logger *zap.Logger
}

// NewPublisher creates a Kafka publisher.
func NewPublisher(c Config, logger *zap.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if c.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	writer := &kafkago.Writer{
		Addr:     kafkago.TCP(c.Brokers...),
		Topic:    c.Topic,
		Balancer: &kafkago.Hash{},
	}

	return &Publisher{writer: writer, logger: logger}, nil
}

// PublishBlock writes the event to the configured topic.
func (p *Publisher) PublishBlock(ctx context.Context, event *eventstream.BlockPersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilBlockEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling block event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.ConversationID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("writing block event: %w", err)
	}

	p.logger.Debug("published block event",
		zap.String("conversation_id", event.ConversationID),
		zap.Int("block_id", event.BlockID),
	)

	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
