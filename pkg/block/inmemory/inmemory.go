// Package inmemory provides an in-memory block store for tests and local
// development.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/twinfold/contextd/pkg/block"
)

// Store implements block.Store using per-conversation slices guarded by a
// read-write mutex.
type Store struct {
	mu sync.RWMutex

	// blocks maps conversationID to that conversation's blocks, ordered by
	// BlockID. Contiguity from 0 is enforced on append.
	blocks map[string][]*block.Block
}

// NewStore creates a new in-memory block store.
func NewStore() *Store {
	return &Store{
		blocks: make(map[string][]*block.Block),
	}
}

// Latest returns the block with the highest BlockID for the conversation.
func (s *Store) Latest(_ context.Context, conversationID string) (*block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.blocks[conversationID]
	if len(chain) == 0 {
		return nil, block.ErrNotFound
	}

	// Return a copy so callers cannot mutate persisted state.
	latest := *chain[len(chain)-1]
	return &latest, nil
}

// Append writes a new block, failing with block.ErrConflict when the
// block's ID is already taken.
func (s *Store) Append(_ context.Context, b *block.Block) error {
	if b == nil {
		return errors.New("cannot append nil block")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.blocks[b.ConversationID]
	if b.BlockID < len(chain) {
		return fmt.Errorf("%w: conversation %s block %d", block.ErrConflict, b.ConversationID, b.BlockID)
	}
	if b.BlockID != len(chain) {
		return fmt.Errorf("block %d would leave a gap: next id is %d", b.BlockID, len(chain))
	}

	stored := *b
	s.blocks[b.ConversationID] = append(chain, &stored)
	return nil
}

// Close releases store resources.
func (s *Store) Close() error {
	return nil
}
