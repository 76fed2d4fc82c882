package block

import "errors"

var (
	// ErrNotFound is returned by Latest when a conversation has no blocks.
	ErrNotFound = errors.New("conversation has no blocks")

	// ErrConflict is returned by Append when a block with the same
	// (conversationID, blockID) key already exists. The caller lost an
	// append race and must re-read the latest block before retrying.
	ErrConflict = errors.New("block already exists")
)
