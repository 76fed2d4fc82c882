// Package window implements the flat-mode context window manager. Each turn
// reads the conversation's latest block, decides between appending the new
// messages and summarizing the accumulated history, and persists the result
// as a new block before returning the assembled context.
package window

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twinfold/contextd/pkg/block"
	"github.com/twinfold/contextd/pkg/completion"
	"github.com/twinfold/contextd/pkg/eventstream"
	"github.com/twinfold/contextd/pkg/eventstream/worker"
	"github.com/twinfold/contextd/pkg/llm"
	"github.com/twinfold/contextd/pkg/tokens"
	"github.com/twinfold/contextd/pkg/twin"
)

// Config holds the flat-mode budget and summarization call-site settings.
type Config struct {
	// MaxTokens is the block token budget. A turn whose new messages would
	// push the block past this budget triggers summarization.
	MaxTokens int

	// SummaryModel is the completion model used for summarization.
	SummaryModel string

	// SummaryMaxTokens caps the summary length.
	SummaryMaxTokens int
}

// Request is one inbound flat-mode turn.
type Request struct {
	ConversationID string        `json:"conversationId"`
	TwinID         string        `json:"twinId"`
	UserID         string        `json:"userId"`
	Messages       []llm.Message `json:"messages"`
}

// Result carries the assembled context for the turn's generation call.
type Result struct {
	Messages []llm.Message `json:"messages"`
}

// Manager orchestrates flat-mode block creation.
type Manager struct {
	blocks    block.Store
	twins     twin.Store
	counter   tokens.Counter
	completer completion.Client
	events    *worker.Pool
	logger    *zap.Logger
	config    Config
}

// NewManager creates a flat-mode manager. The events pool may be nil when
// no event stream is configured.
func NewManager(c Config, blocks block.Store, twins twin.Store, counter tokens.Counter, completer completion.Client, events *worker.Pool, logger *zap.Logger) (*Manager, error) {
	if c.MaxTokens <= 0 {
		return nil, fmt.Errorf("window: MaxTokens must be positive")
	}
	if blocks == nil || twins == nil || counter == nil || completer == nil {
		return nil, fmt.Errorf("window: all collaborators are required")
	}

	return &Manager{
		blocks:    blocks,
		twins:     twins,
		counter:   counter,
		completer: completer,
		events:    events,
		logger:    logger,
		config:    c,
	}, nil
}

// Advance processes one turn. All reads and external calls happen before
// the block append; any failure leaves stored state untouched, so the
// caller can safely resubmit the same turn.
func (m *Manager) Advance(ctx context.Context, req Request) (*Result, error) {
	t, err := m.twins.Twin(ctx, req.TwinID)
	if err != nil {
		return nil, fmt.Errorf("loading twin: %w", err)
	}

	relationship, err := m.twins.Relationship(ctx, req.TwinID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading relationship: %w", err)
	}

	systemMessages := make([]llm.Message, 0, len(t.SystemMessages)+1)
	for _, content := range t.SystemMessages {
		systemMessages = append(systemMessages, llm.SystemMessage(content))
	}
	systemMessages = append(systemMessages, llm.SystemMessage(relationship.UserRelationship))

	latest, err := m.blocks.Latest(ctx, req.ConversationID)
	if errors.Is(err, block.ErrNotFound) {
		return m.begin(ctx, req, systemMessages)
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest block: %w", err)
	}

	newTokens := tokens.CountMessages(m.counter, req.Messages)
	if newTokens+latest.TotalTokens > m.config.MaxTokens {
		return m.summarize(ctx, req, t, latest, systemMessages)
	}
	return m.append(ctx, req, latest, systemMessages, newTokens)
}

// begin persists block 0 carrying only the standing system messages. The
// first turn's context is the system messages alone.
func (m *Manager) begin(ctx context.Context, req Request, systemMessages []llm.Message) (*Result, error) {
	b := &block.Block{
		ConversationID: req.ConversationID,
		BlockID:        0,
		TwinID:         req.TwinID,
		UserID:         req.UserID,
		Messages:       []llm.Message{},
		SystemMessages: systemMessages,
		TotalTokens:    tokens.CountMessages(m.counter, systemMessages),
	}

	if err := m.blocks.Append(ctx, b); err != nil {
		return nil, fmt.Errorf("persisting block 0: %w", err)
	}

	m.logger.Info("started flat conversation",
		zap.String("conversation_id", req.ConversationID),
		zap.Int("total_tokens", b.TotalTokens),
	)
	m.publish(b, false)

	return &Result{Messages: systemMessages}, nil
}

// append extends the block's history. The token total is additive: no
// summarization occurred, so no re-encoding drift is possible.
func (m *Manager) append(ctx context.Context, req Request, latest *block.Block, systemMessages []llm.Message, newTokens int) (*Result, error) {
	history := append(append([]llm.Message{}, latest.Messages...), req.Messages...)

	b := &block.Block{
		ConversationID: req.ConversationID,
		BlockID:        latest.BlockID + 1,
		TwinID:         req.TwinID,
		UserID:         req.UserID,
		Messages:       history,
		SystemMessages: systemMessages,
		TotalTokens:    latest.TotalTokens + newTokens,
	}

	if err := m.blocks.Append(ctx, b); err != nil {
		return nil, fmt.Errorf("persisting block %d: %w", b.BlockID, err)
	}

	m.publish(b, false)

	full := append(append([]llm.Message{}, systemMessages...), history...)
	return &Result{Messages: full}, nil
}

// summarize replaces the block's history with one synthesized summary
// message followed by the turn's new messages. The token total is
// recomputed over the full resulting set; a fresh encode after
// summarization cannot inherit accumulated drift.
func (m *Manager) summarize(ctx context.Context, req Request, t *twin.Twin, latest *block.Block, systemMessages []llm.Message) (*Result, error) {
	m.logger.Info("summarizing block",
		zap.String("conversation_id", req.ConversationID),
		zap.Int("block_id", latest.BlockID),
		zap.Int("total_tokens", latest.TotalTokens),
	)

	summary, err := m.completer.Complete(ctx, completion.Request{
		Messages: []llm.Message{
			llm.NewMessage(llm.RoleUser, formatHistory(latest.Messages)),
			llm.SystemMessage(t.SummarizationPrompt),
		},
		Model:     m.config.SummaryModel,
		MaxTokens: m.config.SummaryMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("summarizing history: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return nil, fmt.Errorf("%w: empty summary", completion.ErrEmptyResponse)
	}

	summaryMessage := llm.SystemMessage(summary)
	history := append([]llm.Message{summaryMessage}, req.Messages...)
	full := append(append([]llm.Message{}, systemMessages...), history...)

	b := &block.Block{
		ConversationID: req.ConversationID,
		BlockID:        latest.BlockID + 1,
		TwinID:         req.TwinID,
		UserID:         req.UserID,
		Messages:       history,
		SystemMessages: systemMessages,
		TotalTokens:    tokens.CountMessages(m.counter, full),
	}

	if err := m.blocks.Append(ctx, b); err != nil {
		return nil, fmt.Errorf("persisting block %d: %w", b.BlockID, err)
	}

	m.publish(b, true)

	return &Result{Messages: full}, nil
}

func (m *Manager) publish(b *block.Block, summarized bool) {
	if m.events == nil {
		return
	}

	m.events.Enqueue(&eventstream.BlockPersistedEvent{
		SchemaVersion:  eventstream.SchemaVersionV1,
		EventType:      eventstream.EventTypeBlockPersisted,
		EventID:        uuid.NewString(),
		EmittedAt:      time.Now().UTC(),
		Mode:           eventstream.ModeFlat,
		ConversationID: b.ConversationID,
		TwinID:         b.TwinID,
		UserID:         b.UserID,
		BlockID:        b.BlockID,
		TotalTokens:    b.TotalTokens,
		Summarized:     summarized,
	})
}

// formatHistory renders history as "role: content" lines for the
// summarization call.
func formatHistory(messages []llm.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, msg.Role+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}
