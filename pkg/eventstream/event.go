package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeBlockPersisted is emitted after a conversation block is persisted.
	EventTypeBlockPersisted = "contextd.block.persisted"
)

// Conversation modes carried on events.
const (
	ModeFlat   = "flat"
	ModeStaged = "staged"
)

// BlockPersistedEvent is a transport-neutral event payload for a persisted
// block. Events are observability: they are emitted after the append
// confirms and are never part of a turn's success or failure.
type BlockPersistedEvent struct {
	SchemaVersion  int       `json:"schema_version"`
	EventType      string    `json:"event_type"`
	EventID        string    `json:"event_id"`
	EmittedAt      time.Time `json:"emitted_at"`
	Mode           string    `json:"mode"`
	ConversationID string    `json:"conversation_id"`
	TwinID         string    `json:"twin_id"`
	UserID         string    `json:"user_id"`
	BlockID        int       `json:"block_id"`
	CurrentStageID int       `json:"current_stage_id,omitempty"`
	TotalTokens    int       `json:"total_tokens,omitempty"`
	Summarized     bool      `json:"summarized,omitempty"`
}
