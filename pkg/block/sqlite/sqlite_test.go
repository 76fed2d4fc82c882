package sqlite

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/twinfold/contextd/pkg/block"
	"github.com/twinfold/contextd/pkg/llm"
)

var _ = Describe("Store", func() {
	var (
		store *Store
		ctx   context.Context
	)

	BeforeEach(func() {
		var err error
		store, err = NewStore(":memory:")
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		store.Close()
	})

	It("requires a database path", func() {
		_, err := NewStore("")
		Expect(err).To(HaveOccurred())
	})

	It("creates the database file on disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "blocks.db")
		fileStore, err := NewStore(path)
		Expect(err).NotTo(HaveOccurred())
		defer fileStore.Close()

		Expect(fileStore.Append(ctx, &block.Block{ConversationID: "conv-1", BlockID: 0})).To(Succeed())
		Expect(path).To(BeAnExistingFile())
	})

	Describe("Latest", func() {
		It("returns ErrNotFound for an unknown conversation", func() {
			_, err := store.Latest(ctx, "missing")
			Expect(err).To(MatchError(block.ErrNotFound))
		})

		It("returns the block with the highest ID", func() {
			for i := 0; i < 3; i++ {
				Expect(store.Append(ctx, &block.Block{
					ConversationID: "conv-1",
					BlockID:        i,
					TotalTokens:    i * 10,
				})).To(Succeed())
			}

			latest, err := store.Latest(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.BlockID).To(Equal(2))
			Expect(latest.TotalTokens).To(Equal(20))
		})

		It("round-trips message history through the JSON body", func() {
			stored := &block.Block{
				ConversationID: "conv-1",
				BlockID:        0,
				Messages: []llm.Message{
					llm.NewMessage(llm.RoleUser, "hello"),
					llm.NewMessage(llm.RoleAssistant, "hi"),
				},
				FinalizedSummaries: []block.StageSummary{
					{StageName: "introductions", StageSummary: "met"},
				},
			}
			Expect(store.Append(ctx, stored)).To(Succeed())

			latest, err := store.Latest(ctx, "conv-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.Messages).To(Equal(stored.Messages))
			Expect(latest.FinalizedSummaries).To(Equal(stored.FinalizedSummaries))
		})
	})

	Describe("Append", func() {
		It("rejects a nil block", func() {
			Expect(store.Append(ctx, nil)).To(HaveOccurred())
		})

		It("rejects a duplicate block ID with ErrConflict", func() {
			Expect(store.Append(ctx, &block.Block{ConversationID: "conv-1", BlockID: 0})).To(Succeed())
			err := store.Append(ctx, &block.Block{ConversationID: "conv-1", BlockID: 0})
			Expect(err).To(MatchError(block.ErrConflict))
		})

		It("allows the same block ID across conversations", func() {
			Expect(store.Append(ctx, &block.Block{ConversationID: "conv-1", BlockID: 0})).To(Succeed())
			Expect(store.Append(ctx, &block.Block{ConversationID: "conv-2", BlockID: 0})).To(Succeed())
		})
	})
})
