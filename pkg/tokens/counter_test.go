package tokens

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/twinfold/contextd/pkg/llm"
	testutils "github.com/twinfold/contextd/pkg/utils/test"
)

var _ = Describe("CountMessages", func() {
	var counter *testutils.MockCounter

	BeforeEach(func() {
		counter = testutils.NewMockCounter()
	})

	It("counts over the joined message contents", func() {
		messages := []llm.Message{
			llm.NewMessage(llm.RoleUser, "one two"),
			llm.NewMessage(llm.RoleAssistant, "three"),
		}
		Expect(CountMessages(counter, messages)).To(Equal(3))
	})

	It("returns zero for no messages", func() {
		Expect(CountMessages(counter, nil)).To(BeZero())
	})

	It("counts a single rendering, not per-message sums", func() {
		// The joined text is counted once so separator handling is uniform.
		counter.Counts[llm.JoinContents([]llm.Message{
			llm.NewMessage(llm.RoleUser, "a"),
			llm.NewMessage(llm.RoleUser, "b"),
		})] = 7

		messages := []llm.Message{
			llm.NewMessage(llm.RoleUser, "a"),
			llm.NewMessage(llm.RoleUser, "b"),
		}
		Expect(CountMessages(counter, messages)).To(Equal(7))
	})
})
