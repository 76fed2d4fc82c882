package block

import "context"

// Store is the append-only block ledger. Implementations persist blocks and
// never rewrite or delete history; compaction is not a store concern.
//
// Append is conditional on the block's (conversationID, blockID) key not
// existing. Two concurrent turns that both read the same latest block and
// race to append blockID+1 will have exactly one writer succeed; the other
// receives ErrConflict and the caller must resubmit the turn.
type Store interface {
	// Latest returns the block with the highest BlockID for the
	// conversation, or ErrNotFound if the conversation has no history.
	Latest(ctx context.Context, conversationID string) (*Block, error)

	// Append writes a new block. A duplicate (conversationID, blockID) key
	// fails with ErrConflict; backend failures surface as wrapped errors,
	// never as silent drops.
	Append(ctx context.Context, b *Block) error

	// Close releases any resources held by the store.
	Close() error
}
