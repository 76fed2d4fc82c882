package stage

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/twinfold/contextd/pkg/block"
	"github.com/twinfold/contextd/pkg/block/inmemory"
	"github.com/twinfold/contextd/pkg/llm"
	"github.com/twinfold/contextd/pkg/rerank"
	"github.com/twinfold/contextd/pkg/retrieval"
	"github.com/twinfold/contextd/pkg/twin"
	"github.com/twinfold/contextd/pkg/twin/static"
	testutils "github.com/twinfold/contextd/pkg/utils/test"
)

const (
	testTwinID         = "twin-1"
	testUserID         = "user-1"
	testConversationID = "conv-1"
)

func newTestTwins(stages ...twin.StagePrompt) *static.Store {
	return static.NewStore(
		[]twin.Twin{{
			TwinID:       testTwinID,
			Definition:   "a seasoned travel agent",
			StagePrompts: stages,
		}},
		[]twin.Relationship{{
			TwinID:           testTwinID,
			UserID:           testUserID,
			UserRelationship: "returning customer",
		}},
	)
}

func stagePrompt(name string) twin.StagePrompt {
	return twin.StagePrompt{
		StageName:                  name,
		StageGoal:                  "goal of " + name,
		StageInformationToGather:   "facts for " + name,
		StageInteractionDefinition: "how to run " + name,
	}
}

func userTurn(contents ...string) Request {
	messages := make([]llm.Message, 0, len(contents))
	for _, c := range contents {
		messages = append(messages, llm.NewMessage(llm.RoleUser, c))
	}
	return Request{
		ConversationID: testConversationID,
		TwinID:         testTwinID,
		UserID:         testUserID,
		Messages:       messages,
	}
}

var _ = Describe("Engine", func() {
	var (
		blocks    *inmemory.Store
		twins     *static.Store
		completer *testutils.MockCompletionClient
		driver    *testutils.MockRetrievalDriver
		engine    *Engine
		ctx       context.Context
	)

	newEngine := func() *Engine {
		logger, _ := zap.NewDevelopment()
		reranker, err := rerank.NewReranker(rerank.Config{Lambda: rerank.DefaultLambda}, driver, logger)
		Expect(err).NotTo(HaveOccurred())

		e, err := NewEngine(Config{
			IdentificationFrequency: 5,
			ProgressionModel:        "test-model",
			ProgressionMaxTokens:    128,
			QuestionsModel:          "test-model",
			QuestionsMaxTokens:      64,
			RetrievalTopN:           5,
			RetrievalK:              2,
		}, blocks, twins, completer, reranker, nil, logger)
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	// seedBlocks appends contiguous blocks so the latest one has the given
	// ID and fields.
	seedBlocks := func(upTo int, template block.Block) {
		for i := 0; i <= upTo; i++ {
			b := template
			b.ConversationID = testConversationID
			b.TwinID = testTwinID
			b.UserID = testUserID
			b.BlockID = i
			Expect(blocks.Append(ctx, &b)).To(Succeed())
		}
	}

	BeforeEach(func() {
		blocks = inmemory.NewStore()
		twins = newTestTwins(stagePrompt("introductions"), stagePrompt("requirements"), stagePrompt("booking"))
		completer = testutils.NewMockCompletionClient()
		driver = testutils.NewMockRetrievalDriver()
		driver.Default = []retrieval.Match{
			{ID: "doc-1", Score: 0.9, Embedding: []float32{1, 0}, Metadata: map[string]any{retrieval.MetadataContentKey: "visa rules"}},
			{ID: "doc-2", Score: 0.5, Embedding: []float32{0, 1}, Metadata: map[string]any{retrieval.MetadataContentKey: "baggage policy"}},
		}
		ctx = context.Background()
		engine = newEngine()
	})

	Describe("starting a conversation", func() {
		It("seeds retrieval from the first user message", func() {
			_, err := engine.Advance(ctx, userTurn("I want to plan a trip"))
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Queries).To(Equal([]string{"I want to plan a trip"}))
		})

		It("persists block 0 in the first stage", func() {
			_, err := engine.Advance(ctx, userTurn("I want to plan a trip"))
			Expect(err).NotTo(HaveOccurred())

			latest, err := blocks.Latest(ctx, testConversationID)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.BlockID).To(Equal(0))
			Expect(latest.CurrentStageID).To(Equal(0))
			Expect(latest.StageStep).To(Equal(0))
			Expect(latest.QueryQuestions).To(Equal([]string{"I want to plan a trip"}))
			Expect(latest.IntroPrompt).To(ContainSubstring("a seasoned travel agent"))
			Expect(latest.IntroPrompt).To(ContainSubstring("None yet"))
			Expect(latest.StagePrompt).To(ContainSubstring("introductions"))
			Expect(latest.StagePrompt).To(ContainSubstring("visa rules"))
		})

		It("returns intro and stage prompts ahead of the turn messages", func() {
			result, err := engine.Advance(ctx, userTurn("I want to plan a trip"))
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Messages).To(HaveLen(3))
			Expect(result.Messages[0].Role).To(Equal(llm.RoleSystem))
			Expect(result.Messages[1].Role).To(Equal(llm.RoleSystem))
			Expect(result.Messages[2].Content).To(Equal("I want to plan a trip"))
		})

		It("makes no completion calls", func() {
			_, err := engine.Advance(ctx, userTurn("I want to plan a trip"))
			Expect(err).NotTo(HaveOccurred())
			Expect(completer.CallCount()).To(BeZero())
		})

		It("fails for a twin with no stages", func() {
			twins = newTestTwins()
			engine = newEngine()
			_, err := engine.Advance(ctx, userTurn("hello"))
			Expect(err).To(MatchError(ContainSubstring("no stage prompts")))
		})

		It("fails when the twin does not exist", func() {
			req := userTurn("hello")
			req.TwinID = "missing"
			_, err := engine.Advance(ctx, req)
			Expect(err).To(MatchError(twin.ErrNotFound))
		})
	})

	Describe("carrying a stage forward", func() {
		BeforeEach(func() {
			// Latest block 1 is between identification checkpoints (1 % 5 != 0).
			seedBlocks(1, block.Block{
				Messages:       []llm.Message{llm.NewMessage(llm.RoleUser, "earlier message")},
				CurrentStageID: 0,
				StageStep:      1,
				QueryQuestions: []string{"seed"},
				IntroPrompt:    "intro text",
				StagePrompt:    "stage text",
			})
		})

		It("makes no model or retrieval calls", func() {
			_, err := engine.Advance(ctx, userTurn("next message"))
			Expect(err).NotTo(HaveOccurred())
			Expect(completer.CallCount()).To(BeZero())
			Expect(driver.Queries).To(BeEmpty())
		})

		It("carries the prompts forward verbatim and extends the history", func() {
			result, err := engine.Advance(ctx, userTurn("next message"))
			Expect(err).NotTo(HaveOccurred())

			latest, err := blocks.Latest(ctx, testConversationID)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.BlockID).To(Equal(2))
			Expect(latest.StageStep).To(Equal(2))
			Expect(latest.CurrentStageID).To(Equal(0))
			Expect(latest.IntroPrompt).To(Equal("intro text"))
			Expect(latest.StagePrompt).To(Equal("stage text"))
			Expect(latest.Messages).To(HaveLen(2))

			Expect(result.Messages[0]).To(Equal(llm.SystemMessage("intro text")))
			Expect(result.Messages[1]).To(Equal(llm.SystemMessage("stage text")))
			Expect(result.Messages[2].Content).To(Equal("earlier message"))
			Expect(result.Messages[3].Content).To(Equal("next message"))
		})
	})

	Describe("re-identifying the stage", func() {
		BeforeEach(func() {
			// Latest block 0 sits on an identification checkpoint (0 % 5 == 0).
			seedBlocks(0, block.Block{
				Messages:       []llm.Message{llm.NewMessage(llm.RoleUser, "I am Maria")},
				CurrentStageID: 0,
				StageStep:      0,
				IntroPrompt:    "previous intro",
				StagePrompt:    "previous stage",
			})
		})

		Context("when the stage is not complete", func() {
			BeforeEach(func() {
				completer.StructuredResponses = []string{
					`{"gathered_information": "her name is Maria", "progress_stage": false}`,
					`{"query_questions": ["what documents does Maria need"]}`,
				}
			})

			It("stays in the stage and rebuilds its prompt", func() {
				_, err := engine.Advance(ctx, userTurn("nice to meet you"))
				Expect(err).NotTo(HaveOccurred())

				latest, err := blocks.Latest(ctx, testConversationID)
				Expect(err).NotTo(HaveOccurred())
				Expect(latest.BlockID).To(Equal(1))
				Expect(latest.CurrentStageID).To(Equal(0))
				Expect(latest.StageStep).To(Equal(1))
				Expect(latest.StageStateSummary).To(Equal("her name is Maria"))
				Expect(latest.FinalizedSummaries).To(BeEmpty())
				Expect(latest.QueryQuestions).To(Equal([]string{"what documents does Maria need"}))
				Expect(latest.StagePrompt).To(ContainSubstring("her name is Maria"))
				Expect(latest.StagePrompt).To(ContainSubstring("visa rules"))
			})

			It("keeps the previous intro prompt", func() {
				_, err := engine.Advance(ctx, userTurn("nice to meet you"))
				Expect(err).NotTo(HaveOccurred())

				latest, err := blocks.Latest(ctx, testConversationID)
				Expect(err).NotTo(HaveOccurred())
				Expect(latest.IntroPrompt).To(Equal("previous intro"))
			})

			It("grades the stage over the dialogue transcript", func() {
				_, err := engine.Advance(ctx, userTurn("nice to meet you"))
				Expect(err).NotTo(HaveOccurred())

				Expect(completer.Requests).To(HaveLen(2))
				identification := completer.Requests[0].Messages[0].Content
				Expect(identification).To(ContainSubstring("introductions"))
				Expect(identification).To(ContainSubstring("User: I am Maria"))
				Expect(identification).To(ContainSubstring("User: nice to meet you"))
			})

			It("retrieves with the generated queries", func() {
				_, err := engine.Advance(ctx, userTurn("nice to meet you"))
				Expect(err).NotTo(HaveOccurred())
				Expect(driver.Queries).To(Equal([]string{"what documents does Maria need"}))
			})
		})

		Context("when the stage is complete", func() {
			BeforeEach(func() {
				completer.StructuredResponses = []string{
					`{"gathered_information": "her name is Maria", "progress_stage": true}`,
					`{"query_questions": ["what does Maria want from the trip"]}`,
				}
			})

			It("finalizes the stage summary and advances", func() {
				_, err := engine.Advance(ctx, userTurn("let us continue"))
				Expect(err).NotTo(HaveOccurred())

				latest, err := blocks.Latest(ctx, testConversationID)
				Expect(err).NotTo(HaveOccurred())
				Expect(latest.CurrentStageID).To(Equal(1))
				Expect(latest.StageStep).To(Equal(0))
				Expect(latest.FinalizedSummaries).To(HaveLen(1))
				Expect(latest.FinalizedSummaries[0].StageName).To(Equal("introductions"))
				Expect(latest.FinalizedSummaries[0].StageSummary).To(Equal("her name is Maria"))
			})

			It("rebuilds the intro with the finalized summaries", func() {
				_, err := engine.Advance(ctx, userTurn("let us continue"))
				Expect(err).NotTo(HaveOccurred())

				latest, err := blocks.Latest(ctx, testConversationID)
				Expect(err).NotTo(HaveOccurred())
				Expect(latest.IntroPrompt).To(ContainSubstring("introductions: her name is Maria"))
				Expect(latest.StagePrompt).To(ContainSubstring("requirements"))
			})

			It("generates queries against the next stage", func() {
				_, err := engine.Advance(ctx, userTurn("let us continue"))
				Expect(err).NotTo(HaveOccurred())

				Expect(completer.Requests).To(HaveLen(2))
				questions := completer.Requests[1].Messages[0].Content
				Expect(questions).To(ContainSubstring("requirements"))
			})
		})

		Context("when the final stage completes", func() {
			BeforeEach(func() {
				blocks = inmemory.NewStore()
				engine = newEngine()
				// Block 5 sits on a checkpoint with the last stage active.
				seedBlocks(5, block.Block{
					Messages:       []llm.Message{llm.NewMessage(llm.RoleUser, "book it")},
					CurrentStageID: 2,
					StageStep:      1,
					IntroPrompt:    "previous intro",
					StagePrompt:    "previous stage",
				})
				completer.StructuredResponses = []string{
					`{"gathered_information": "flight booked", "progress_stage": true}`,
					`{"query_questions": ["anything else to arrange"]}`,
				}
			})

			It("stays clamped to the last stage", func() {
				_, err := engine.Advance(ctx, userTurn("thanks"))
				Expect(err).NotTo(HaveOccurred())

				latest, err := blocks.Latest(ctx, testConversationID)
				Expect(err).NotTo(HaveOccurred())
				Expect(latest.CurrentStageID).To(Equal(2))
				Expect(latest.StageStep).To(Equal(0))
				Expect(latest.FinalizedSummaries).To(HaveLen(1))
				Expect(latest.FinalizedSummaries[0].StageName).To(Equal("booking"))
			})
		})

		Context("when the final stage was already finalized", func() {
			BeforeEach(func() {
				blocks = inmemory.NewStore()
				engine = newEngine()
				seedBlocks(5, block.Block{
					Messages:       []llm.Message{llm.NewMessage(llm.RoleUser, "book it")},
					CurrentStageID: 2,
					StageStep:      1,
					FinalizedSummaries: []block.StageSummary{
						{StageName: "introductions", StageSummary: "her name is Maria"},
						{StageName: "booking", StageSummary: "flight booked"},
					},
					IntroPrompt: "previous intro",
					StagePrompt: "previous stage",
				})
				completer.StructuredResponses = []string{
					`{"gathered_information": "still all booked", "progress_stage": true}`,
					`{"query_questions": ["anything else to arrange"]}`,
				}
			})

			It("appends each stage summary exactly once", func() {
				_, err := engine.Advance(ctx, userTurn("thanks again"))
				Expect(err).NotTo(HaveOccurred())

				latest, err := blocks.Latest(ctx, testConversationID)
				Expect(err).NotTo(HaveOccurred())
				Expect(latest.FinalizedSummaries).To(HaveLen(2))
				Expect(latest.FinalizedSummaries[1].StageName).To(Equal("booking"))
				Expect(latest.FinalizedSummaries[1].StageSummary).To(Equal("flight booked"))
			})

			It("continues the last stage instead of re-progressing it", func() {
				_, err := engine.Advance(ctx, userTurn("thanks again"))
				Expect(err).NotTo(HaveOccurred())

				latest, err := blocks.Latest(ctx, testConversationID)
				Expect(err).NotTo(HaveOccurred())
				Expect(latest.CurrentStageID).To(Equal(2))
				Expect(latest.StageStep).To(Equal(2))
				Expect(latest.StageStateSummary).To(Equal("still all booked"))
				Expect(latest.IntroPrompt).To(Equal("previous intro"))
			})
		})

		It("persists nothing when the identification call fails", func() {
			completer.Err = fmt.Errorf("model unavailable")

			_, err := engine.Advance(ctx, userTurn("hello"))
			Expect(err).To(HaveOccurred())

			latest, err := blocks.Latest(ctx, testConversationID)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.BlockID).To(Equal(0))
		})

		It("persists nothing when query generation returns no questions", func() {
			completer.StructuredResponses = []string{
				`{"gathered_information": "some facts", "progress_stage": false}`,
				`{"query_questions": []}`,
			}

			_, err := engine.Advance(ctx, userTurn("hello"))
			Expect(err).To(MatchError(ContainSubstring("no query questions")))

			latest, err := blocks.Latest(ctx, testConversationID)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.BlockID).To(Equal(0))
		})
	})
})
