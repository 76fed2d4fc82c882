// Package block defines the persisted conversation state model and the
// store interface for the append-only per-conversation block ledger.
//
// A block is an immutable snapshot of a conversation's accumulated context
// at one turn. Block IDs for a conversation form a contiguous, strictly
// increasing sequence starting at 0; the block with the highest ID is the
// conversation's unique current state. State transitions never mutate a
// block: they append a new one with BlockID = previous + 1.
package block

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/twinfold/contextd/pkg/llm"
	"github.com/twinfold/contextd/pkg/retrieval"
)

// StageSummary is the finalized summary of one completed stage.
type StageSummary struct {
	StageName    string `json:"stageName"`
	StageSummary string `json:"stageSummary"`
}

// Block is the unit of persisted conversation state.
type Block struct {
	// ConversationID is the ledger partition key.
	ConversationID string `json:"conversationId"`

	// BlockID is the monotonically increasing sort key, starting at 0.
	BlockID int `json:"blockId"`

	// TwinID and UserID identify the agent persona and the end user.
	TwinID string `json:"twinId"`
	UserID string `json:"userId"`

	// Messages are the messages newly attributed to this block.
	Messages []llm.Message `json:"messages"`

	// SystemMessages are the standing system messages (flat mode).
	SystemMessages []llm.Message `json:"systemMessages,omitempty"`

	// TotalTokens is the token count of the block's accountable content
	// (flat mode only).
	TotalTokens int `json:"totalTokens"`

	// Staged-mode fields.

	// CurrentStageID indexes into the twin's ordered stage list. It never
	// decreases between consecutive blocks.
	CurrentStageID int `json:"currentStageId"`

	// StageStep counts turns elapsed within the current stage.
	StageStep int `json:"stageStep"`

	// StageStateSummary is the latest model-extracted summary of the
	// information gathered in the current stage.
	StageStateSummary string `json:"stageStateSummary,omitempty"`

	// FinalizedSummaries holds one entry per completed stage, appended
	// exactly once at the block where the stage completed.
	FinalizedSummaries []StageSummary `json:"finalizedSummaries,omitempty"`

	// RetrievedContent is the reranked document set backing the current
	// stage prompt.
	RetrievedContent []retrieval.Match `json:"retrievedContent,omitempty"`

	// QueryQuestions are the retrieval queries that produced RetrievedContent.
	QueryQuestions []string `json:"queryQuestions,omitempty"`

	// IntroPrompt and StagePrompt are the derived system prompts carried
	// forward verbatim between re-identification turns.
	IntroPrompt string `json:"introPrompt,omitempty"`
	StagePrompt string `json:"stagePrompt,omitempty"`
}

// blockJSON mirrors Block with numeric index/counter fields decoded as
// json.Number. Generic decoding paths (DynamoDB attribute conversion,
// map-based JSON) can surface integers as floats; normalizing here keeps
// fractional values out of list indexing and arithmetic.
type blockJSON struct {
	ConversationID     string            `json:"conversationId"`
	BlockID            json.Number       `json:"blockId"`
	TwinID             string            `json:"twinId"`
	UserID             string            `json:"userId"`
	Messages           []llm.Message     `json:"messages"`
	SystemMessages     []llm.Message     `json:"systemMessages,omitempty"`
	TotalTokens        json.Number       `json:"totalTokens"`
	CurrentStageID     json.Number       `json:"currentStageId"`
	StageStep          json.Number       `json:"stageStep"`
	StageStateSummary  string            `json:"stageStateSummary,omitempty"`
	FinalizedSummaries []StageSummary    `json:"finalizedSummaries,omitempty"`
	RetrievedContent   []retrieval.Match `json:"retrievedContent,omitempty"`
	QueryQuestions     []string          `json:"queryQuestions,omitempty"`
	IntroPrompt        string            `json:"introPrompt,omitempty"`
	StagePrompt        string            `json:"stagePrompt,omitempty"`
}

// UnmarshalJSON decodes a block, normalizing integer-typed fields that may
// arrive as floating-point values. Non-integral values are rejected.
func (b *Block) UnmarshalJSON(data []byte) error {
	var raw blockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	blockID, err := normalizeInt(raw.BlockID, "blockId")
	if err != nil {
		return err
	}
	totalTokens, err := normalizeInt(raw.TotalTokens, "totalTokens")
	if err != nil {
		return err
	}
	stageID, err := normalizeInt(raw.CurrentStageID, "currentStageId")
	if err != nil {
		return err
	}
	stageStep, err := normalizeInt(raw.StageStep, "stageStep")
	if err != nil {
		return err
	}

	*b = Block{
		ConversationID:     raw.ConversationID,
		BlockID:            blockID,
		TwinID:             raw.TwinID,
		UserID:             raw.UserID,
		Messages:           raw.Messages,
		SystemMessages:     raw.SystemMessages,
		TotalTokens:        totalTokens,
		CurrentStageID:     stageID,
		StageStep:          stageStep,
		StageStateSummary:  raw.StageStateSummary,
		FinalizedSummaries: raw.FinalizedSummaries,
		RetrievedContent:   raw.RetrievedContent,
		QueryQuestions:     raw.QueryQuestions,
		IntroPrompt:        raw.IntroPrompt,
		StagePrompt:        raw.StagePrompt,
	}
	return nil
}

// normalizeInt converts a json.Number to an exact int. Values like "3.0"
// are accepted; "3.5" is rejected.
func normalizeInt(n json.Number, field string) (int, error) {
	if n == "" {
		return 0, nil
	}

	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}

	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("field %s: %q is not numeric", field, n)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("field %s: %v is not an integer", field, f)
	}
	return int(f), nil
}
