// Package twin defines the read-only store for agent personas, their stage
// definitions, and user-twin relationships. Records here are configuration:
// a missing record is a deployment problem, not runtime data, and surfaces
// as ErrNotFound before any conversation state is touched.
package twin

import "context"

// StagePrompt is one goal-directed stage of a staged conversation.
type StagePrompt struct {
	StageName                  string `json:"stageName"`
	StageGoal                  string `json:"stageGoal"`
	StageInformationToGather   string `json:"stageInformationToGather"`
	StageInteractionDefinition string `json:"stageInteractionDefinition"`
}

// Twin is an agent persona record.
type Twin struct {
	TwinID string `json:"twinId"`

	// Definition is the persona description merged into staged-mode prompts.
	Definition string `json:"twinDefinition"`

	// SystemMessages are the standing flat-mode system messages.
	SystemMessages []string `json:"systemMessages"`

	// SummarizationPrompt instructs the model when a flat-mode block
	// overflows its token budget.
	SummarizationPrompt string `json:"summarizationPrompt"`

	// StagePrompts is the ordered stage list for staged mode.
	StagePrompts []StagePrompt `json:"stagePrompts"`
}

// Relationship is the free-text user-twin relationship context merged into
// every prompt.
type Relationship struct {
	TwinID           string `json:"twinId"`
	UserID           string `json:"userId"`
	UserRelationship string `json:"userRelationship"`
}

// Store is the read-only twin/relationship lookup contract.
type Store interface {
	// Twin returns the persona record for twinID, or ErrNotFound.
	Twin(ctx context.Context, twinID string) (*Twin, error)

	// Relationship returns the relationship record for (twinID, userID),
	// or ErrNotFound.
	Relationship(ctx context.Context, twinID, userID string) (*Relationship, error)
}
