package block

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Block decoding", func() {
	It("decodes integer index fields", func() {
		var b Block
		err := json.Unmarshal([]byte(`{
			"conversationId": "conv-1",
			"blockId": 3,
			"totalTokens": 120,
			"currentStageId": 2,
			"stageStep": 1
		}`), &b)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.BlockID).To(Equal(3))
		Expect(b.TotalTokens).To(Equal(120))
		Expect(b.CurrentStageID).To(Equal(2))
		Expect(b.StageStep).To(Equal(1))
	})

	It("normalizes whole-number floats to integers", func() {
		var b Block
		err := json.Unmarshal([]byte(`{"blockId": 3.0, "currentStageId": 2.0}`), &b)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.BlockID).To(Equal(3))
		Expect(b.CurrentStageID).To(Equal(2))
	})

	It("rejects fractional block IDs", func() {
		var b Block
		err := json.Unmarshal([]byte(`{"blockId": 3.5}`), &b)
		Expect(err).To(MatchError(ContainSubstring("blockId")))
	})

	It("rejects fractional stage indexes", func() {
		var b Block
		err := json.Unmarshal([]byte(`{"currentStageId": 1.2}`), &b)
		Expect(err).To(MatchError(ContainSubstring("currentStageId")))
	})

	It("defaults missing numeric fields to zero", func() {
		var b Block
		err := json.Unmarshal([]byte(`{"conversationId": "conv-1"}`), &b)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.BlockID).To(BeZero())
		Expect(b.TotalTokens).To(BeZero())
	})

	It("round-trips a full staged block", func() {
		original := Block{
			ConversationID: "conv-1",
			BlockID:        4,
			TwinID:         "twin-1",
			UserID:         "user-1",
			CurrentStageID: 1,
			StageStep:      2,
			FinalizedSummaries: []StageSummary{
				{StageName: "introductions", StageSummary: "met Maria"},
			},
			QueryQuestions: []string{"q1"},
			IntroPrompt:    "intro",
			StagePrompt:    "stage",
		}

		data, err := json.Marshal(original)
		Expect(err).NotTo(HaveOccurred())

		var decoded Block
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
		Expect(decoded).To(Equal(original))
	})
})
