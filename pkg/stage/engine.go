// Package stage implements the staged-mode conversation engine. A staged
// conversation moves through a twin's ordered list of information-gathering
// stages; every F-th block the engine asks the model whether the current
// stage is complete and rebuilds the stage's retrieval-augmented prompt.
// Between those checks, turns carry the previous prompts forward verbatim
// with no model or retrieval calls.
package stage

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
	"github.com/twinfold/contextd/pkg/prompt"
	"github.com/twinfold/contextd/pkg/rerank"
	"github.com/twinfold/contextd/pkg/retrieval"
	"github.com/twinfold/contextd/pkg/twin"
	"github.com/twinfold/contextd/pkg/utils"
)

// noSummariesYet is the finalized-summaries rendering for a conversation
// that has not completed any stage.
const noSummariesYet = "None yet, the conversation is just starting."

// Config holds the staged-mode cadence and call-site settings.
type Config struct {
	// IdentificationFrequency is the block cadence F of stage
	// re-identification: a turn whose latest block ID is divisible by F
	// runs the identification call before building its block.
	IdentificationFrequency int

	// ProgressionModel and ProgressionMaxTokens configure the
	// stage-identification completion call.
	ProgressionModel     string
	ProgressionMaxTokens int

	// QuestionsModel and QuestionsMaxTokens configure the query-generation
	// completion call.
	QuestionsModel     string
	QuestionsMaxTokens int

	// RetrievalTopN is the per-query candidate count for stage retrieval.
	RetrievalTopN int

	// RetrievalK is the size of the reranked document set.
	RetrievalK int
}

// Request is one inbound staged-mode turn.
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

// Engine orchestrates staged-mode block creation.
type Engine struct {
	blocks    block.Store
	twins     twin.Store
	completer completion.Client
	reranker  *rerank.Reranker
	events    *worker.Pool
	logger    *zap.Logger
	config    Config
}

// NewEngine creates a staged-mode engine. The events pool may be nil when
// no event stream is configured.
func NewEngine(c Config, blocks block.Store, twins twin.Store, completer completion.Client, reranker *rerank.Reranker, events *worker.Pool, logger *zap.Logger) (*Engine, error) {
	if c.IdentificationFrequency <= 0 {
		return nil, fmt.Errorf("stage: IdentificationFrequency must be positive")
	}
	if c.RetrievalTopN < c.RetrievalK {
		return nil, fmt.Errorf("stage: RetrievalTopN must be at least RetrievalK")
	}
	if blocks == nil || twins == nil || completer == nil || reranker == nil {
		return nil, fmt.Errorf("stage: all collaborators are required")
	}

	return &Engine{
		blocks:    blocks,
		twins:     twins,
		completer: completer,
		reranker:  reranker,
		events:    events,
		logger:    logger,
		config:    c,
	}, nil
}

// Advance processes one turn. Like the flat manager, every read and
// external call happens before the single block append, so a failed turn
// leaves no partial state and may be resubmitted as-is.
func (e *Engine) Advance(ctx context.Context, req Request) (*Result, error) {
	t, err := e.twins.Twin(ctx, req.TwinID)
	if err != nil {
		return nil, fmt.Errorf("loading twin: %w", err)
	}
	if len(t.StagePrompts) == 0 {
		return nil, fmt.Errorf("twin %s has no stage prompts", req.TwinID)
	}

	relationship, err := e.twins.Relationship(ctx, req.TwinID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading relationship: %w", err)
	}

	latest, err := e.blocks.Latest(ctx, req.ConversationID)
	if errors.Is(err, block.ErrNotFound) {
		return e.begin(ctx, req, t, relationship)
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest block: %w", err)
	}

	if latest.BlockID%e.config.IdentificationFrequency == 0 {
		return e.reidentify(ctx, req, t, relationship, latest)
	}
	return e.carryForward(ctx, req, latest)
}

// begin starts a staged conversation: an initial retrieval seeded by the
// first user message, intro and stage prompts for stage 0, and block 0.
func (e *Engine) begin(ctx context.Context, req Request, t *twin.Twin, relationship *twin.Relationship) (*Result, error) {
	seed := firstUserContent(req.Messages)

	matches, err := e.retrieve(ctx, []string{seed}, req.TwinID)
	if err != nil {
		return nil, err
	}

	first := t.StagePrompts[0]

	introPrompt, err := prompt.Intro.Render(map[string]string{
		"twinDefinition":       t.Definition,
		"userTwinRelationship": relationship.UserRelationship,
		"finalizedSummaries":   noSummariesYet,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering intro prompt: %w", err)
	}

	stagePrompt, err := renderStagePrompt(first, first.StageInformationToGather, documentSet(matches))
	if err != nil {
		return nil, err
	}

	b := &block.Block{
		ConversationID:     req.ConversationID,
		BlockID:            0,
		TwinID:             req.TwinID,
		UserID:             req.UserID,
		Messages:           req.Messages,
		CurrentStageID:     0,
		StageStep:          0,
		FinalizedSummaries: []block.StageSummary{},
		RetrievedContent:   matches,
		QueryQuestions:     []string{seed},
		IntroPrompt:        introPrompt,
		StagePrompt:        stagePrompt,
	}

	if err := e.blocks.Append(ctx, b); err != nil {
		return nil, fmt.Errorf("persisting block 0: %w", err)
	}

	e.logger.Info("started staged conversation",
		zap.String("conversation_id", req.ConversationID),
		zap.String("stage", first.StageName),
	)
	e.publish(b)

	return &Result{Messages: assemble(introPrompt, stagePrompt, req.Messages)}, nil
}

// carryForward appends the turn's messages within the current stage. The
// previous intro and stage prompts are reused verbatim; no model or
// retrieval calls are made on this path.
func (e *Engine) carryForward(ctx context.Context, req Request, latest *block.Block) (*Result, error) {
	history := append(append([]llm.Message{}, latest.Messages...), req.Messages...)

	b := &block.Block{
		ConversationID:     req.ConversationID,
		BlockID:            latest.BlockID + 1,
		TwinID:             req.TwinID,
		UserID:             req.UserID,
		Messages:           history,
		CurrentStageID:     latest.CurrentStageID,
		StageStep:          latest.StageStep + 1,
		StageStateSummary:  latest.StageStateSummary,
		FinalizedSummaries: latest.FinalizedSummaries,
		RetrievedContent:   latest.RetrievedContent,
		QueryQuestions:     latest.QueryQuestions,
		IntroPrompt:        latest.IntroPrompt,
		StagePrompt:        latest.StagePrompt,
	}

	if err := e.blocks.Append(ctx, b); err != nil {
		return nil, fmt.Errorf("persisting block %d: %w", b.BlockID, err)
	}

	e.publish(b)

	return &Result{Messages: assemble(b.IntroPrompt, b.StagePrompt, history)}, nil
}

// reidentify runs the model-graded stage decision and rebuilds the stage's
// retrieval-augmented prompt, advancing to the next stage when the model
// judges the current one complete.
func (e *Engine) reidentify(ctx context.Context, req Request, t *twin.Twin, relationship *twin.Relationship, latest *block.Block) (*Result, error) {
	history := append(append([]llm.Message{}, latest.Messages...), req.Messages...)

	stageID := clampStageID(latest.CurrentStageID, len(t.StagePrompts))
	current := t.StagePrompts[stageID]

	decision, err := e.identifyStage(ctx, current, history)
	if err != nil {
		return nil, err
	}

	e.logger.Info("stage identified",
		zap.String("conversation_id", req.ConversationID),
		zap.String("stage", current.StageName),
		zap.Bool("progress", decision.ProgressStage),
		zap.String("gathered", utils.Truncate(decision.GatheredInformation, 120)),
	)

	// Once the last stage has been finalized there is nothing left to
	// progress to; a summary is appended exactly once per stage, so
	// repeated completions of the terminal stage stay on the continue path.
	atTerminalStage := stageID == len(t.StagePrompts)-1 &&
		stageFinalized(latest.FinalizedSummaries, current.StageName)
	if !decision.ProgressStage || atTerminalStage {
		return e.continueStage(ctx, req, t, latest, current, stageID, decision.GatheredInformation, history)
	}
	return e.progressStage(ctx, req, t, relationship, latest, current, stageID, decision.GatheredInformation, history)
}

// continueStage keeps the conversation in the current stage with a prompt
// rebuilt around what has been gathered so far and freshly retrieved
// documents.
func (e *Engine) continueStage(ctx context.Context, req Request, t *twin.Twin, latest *block.Block, current twin.StagePrompt, stageID int, gathered string, history []llm.Message) (*Result, error) {
	queries, err := e.generateQueries(ctx, t, latest.FinalizedSummaries, current, gathered)
	if err != nil {
		return nil, err
	}

	matches, err := e.retrieve(ctx, queries, req.TwinID)
	if err != nil {
		return nil, err
	}

	stagePrompt, err := renderStagePrompt(current, gathered, documentSet(matches))
	if err != nil {
		return nil, err
	}

	b := &block.Block{
		ConversationID:     req.ConversationID,
		BlockID:            latest.BlockID + 1,
		TwinID:             req.TwinID,
		UserID:             req.UserID,
		Messages:           history,
		CurrentStageID:     stageID,
		StageStep:          latest.StageStep + 1,
		StageStateSummary:  gathered,
		FinalizedSummaries: latest.FinalizedSummaries,
		RetrievedContent:   matches,
		QueryQuestions:     queries,
		IntroPrompt:        latest.IntroPrompt,
		StagePrompt:        stagePrompt,
	}

	if err := e.blocks.Append(ctx, b); err != nil {
		return nil, fmt.Errorf("persisting block %d: %w", b.BlockID, err)
	}

	e.publish(b)

	return &Result{Messages: assemble(b.IntroPrompt, b.StagePrompt, history)}, nil
}

// progressStage finalizes the completed stage's summary and moves to the
// next stage. At the last stage the stage ID stays clamped to the final
// index and the conversation continues with all stages done.
func (e *Engine) progressStage(ctx context.Context, req Request, t *twin.Twin, relationship *twin.Relationship, latest *block.Block, completed twin.StagePrompt, stageID int, gathered string, history []llm.Message) (*Result, error) {
	finalized := append(append([]block.StageSummary{}, latest.FinalizedSummaries...), block.StageSummary{
		StageName:    completed.StageName,
		StageSummary: gathered,
	})

	nextStageID := clampStageID(stageID+1, len(t.StagePrompts))
	next := t.StagePrompts[nextStageID]

	queries, err := e.generateQueries(ctx, t, finalized, next, gathered)
	if err != nil {
		return nil, err
	}

	matches, err := e.retrieve(ctx, queries, req.TwinID)
	if err != nil {
		return nil, err
	}

	introPrompt, err := prompt.Intro.Render(map[string]string{
		"twinDefinition":       t.Definition,
		"userTwinRelationship": relationship.UserRelationship,
		"finalizedSummaries":   renderSummaries(finalized),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering intro prompt: %w", err)
	}

	stagePrompt, err := renderStagePrompt(next, next.StageInformationToGather, documentSet(matches))
	if err != nil {
		return nil, err
	}

	b := &block.Block{
		ConversationID:     req.ConversationID,
		BlockID:            latest.BlockID + 1,
		TwinID:             req.TwinID,
		UserID:             req.UserID,
		Messages:           history,
		CurrentStageID:     nextStageID,
		StageStep:          0,
		StageStateSummary:  gathered,
		FinalizedSummaries: finalized,
		RetrievedContent:   matches,
		QueryQuestions:     queries,
		IntroPrompt:        introPrompt,
		StagePrompt:        stagePrompt,
	}

	if err := e.blocks.Append(ctx, b); err != nil {
		return nil, fmt.Errorf("persisting block %d: %w", b.BlockID, err)
	}

	e.logger.Info("stage progressed",
		zap.String("conversation_id", req.ConversationID),
		zap.String("completed", completed.StageName),
		zap.String("next", next.StageName),
		zap.Int("stage_id", nextStageID),
	)
	e.publish(b)

	return &Result{Messages: assemble(introPrompt, stagePrompt, history)}, nil
}

// identifyStage asks the model for the stage decision over the
// within-stage transcript.
func (e *Engine) identifyStage(ctx context.Context, current twin.StagePrompt, history []llm.Message) (*progressionDecision, error) {
	text, err := prompt.StageIdentification.Render(map[string]string{
		"stageName":                current.StageName,
		"stageGoal":                current.StageGoal,
		"stageInformationToGather": current.StageInformationToGather,
		"conversation":             llm.Transcript(history),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering stage identification prompt: %w", err)
	}

	var decision progressionDecision
	err = e.completer.CompleteStructured(ctx, completion.Request{
		Messages:  []llm.Message{llm.NewMessage(llm.RoleUser, text)},
		Model:     e.config.ProgressionModel,
		MaxTokens: e.config.ProgressionMaxTokens,
	}, progressionSchema, &decision)
	if err != nil {
		return nil, fmt.Errorf("identifying stage: %w", err)
	}

	return &decision, nil
}

// generateQueries asks the model for retrieval queries conditioned on the
// target stage and the information gathered so far.
func (e *Engine) generateQueries(ctx context.Context, t *twin.Twin, finalized []block.StageSummary, target twin.StagePrompt, gathered string) ([]string, error) {
	text, err := prompt.QueryQuestions.Render(map[string]string{
		"twinDefinition":             t.Definition,
		"finalizedSummaries":         renderSummaries(finalized),
		"stageName":                  target.StageName,
		"stageGoal":                  target.StageGoal,
		"stageInteractionDefinition": target.StageInteractionDefinition,
		"stageInformationToGather":   target.StageInformationToGather,
		"gatheredInformation":        gathered,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering query questions prompt: %w", err)
	}

	var result queryQuestionsResult
	err = e.completer.CompleteStructured(ctx, completion.Request{
		Messages:  []llm.Message{llm.NewMessage(llm.RoleUser, text)},
		Model:     e.config.QuestionsModel,
		MaxTokens: e.config.QuestionsMaxTokens,
	}, queryQuestionsSchema, &result)
	if err != nil {
		return nil, fmt.Errorf("generating query questions: %w", err)
	}
	if len(result.QueryQuestions) == 0 {
		return nil, fmt.Errorf("%w: no query questions", completion.ErrEmptyResponse)
	}

	return result.QueryQuestions, nil
}

// retrieve runs the MMR pipeline against the twin's namespace.
func (e *Engine) retrieve(ctx context.Context, queries []string, twinID string) ([]retrieval.Match, error) {
	matches, err := e.reranker.Rerank(ctx, rerank.Input{
		Queries:   queries,
		Filter:    map[string]any{},
		TopN:      e.config.RetrievalTopN,
		Namespace: twinID,
		K:         e.config.RetrievalK,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving stage documents: %w", err)
	}
	return matches, nil
}

func (e *Engine) publish(b *block.Block) {
	if e.events == nil {
		return
	}

	e.events.Enqueue(&eventstream.BlockPersistedEvent{
		SchemaVersion:  eventstream.SchemaVersionV1,
		EventType:      eventstream.EventTypeBlockPersisted,
		EventID:        uuid.NewString(),
		EmittedAt:      time.Now().UTC(),
		Mode:           eventstream.ModeStaged,
		ConversationID: b.ConversationID,
		TwinID:         b.TwinID,
		UserID:         b.UserID,
		BlockID:        b.BlockID,
		CurrentStageID: b.CurrentStageID,
	})
}

// clampStageID keeps a stage index inside the stage list. The final stage
// absorbs any advance past the end: the list is exhausted and the
// conversation continues in its last stage rather than fail on an
// out-of-range index.
func clampStageID(stageID, stageCount int) int {
	if stageID < 0 {
		return 0
	}
	if stageID > stageCount-1 {
		return stageCount - 1
	}
	return stageID
}

// stageFinalized reports whether a summary for the named stage has already
// been appended.
func stageFinalized(summaries []block.StageSummary, stageName string) bool {
	for _, s := range summaries {
		if s.StageName == stageName {
			return true
		}
	}
	return false
}

func renderStagePrompt(sp twin.StagePrompt, informationToGather, documents string) (string, error) {
	text, err := prompt.Stage.Render(map[string]string{
		"stageName":                  sp.StageName,
		"stageGoal":                  sp.StageGoal,
		"stageInteractionDefinition": sp.StageInteractionDefinition,
		"stageInformationToGather":   informationToGather,
		"documentSet":                documents,
	})
	if err != nil {
		return "", fmt.Errorf("rendering stage prompt: %w", err)
	}
	return text, nil
}

// renderSummaries renders finalized stage summaries as "name: summary"
// lines for prompt inclusion.
func renderSummaries(summaries []block.StageSummary) string {
	if len(summaries) == 0 {
		return noSummariesYet
	}

	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		lines = append(lines, s.StageName+": "+s.StageSummary)
	}
	return strings.Join(lines, "\n")
}

// documentSet joins match contents into the prompt's reference block.
func documentSet(matches []retrieval.Match) string {
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		if content := m.Content(); content != "" {
			lines = append(lines, content)
		}
	}
	return strings.Join(lines, "\n")
}

// assemble builds the returned context: intro system message, stage system
// message, then the conversation messages.
func assemble(introPrompt, stagePrompt string, messages []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages)+2)
	out = append(out, llm.SystemMessage(introPrompt), llm.SystemMessage(stagePrompt))
	out = append(out, messages...)
	return out
}

// firstUserContent returns the first user-role message content, falling
// back to the first message when none carries the user role.
func firstUserContent(messages []llm.Message) string {
	for _, m := range messages {
		if m.Role == llm.RoleUser {
			return m.Content
		}
	}
	if len(messages) > 0 {
		return messages[0].Content
	}
	return ""
}
