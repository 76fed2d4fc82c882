package prompt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Template", func() {
	greeting := Template{
		Name: "greeting",
		Text: "Hello {name}, welcome to {place}.",
		Fields: map[string]bool{
			"name":  true,
			"place": false,
		},
	}

	Describe("Render", func() {
		It("substitutes declared fields", func() {
			out, err := greeting.Render(map[string]string{
				"name":  "Maria",
				"place": "the lobby",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("Hello Maria, welcome to the lobby."))
		})

		It("leaves optional placeholders untouched when absent", func() {
			out, err := greeting.Render(map[string]string{"name": "Maria"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("Hello Maria, welcome to {place}."))
		})

		It("rejects values for undeclared fields", func() {
			_, err := greeting.Render(map[string]string{
				"name":    "Maria",
				"surname": "Lopez",
			})
			var unknown UnknownKeyError
			Expect(err).To(BeAssignableToTypeOf(unknown))
			Expect(err.Error()).To(ContainSubstring("surname"))
		})

		It("rejects a missing required field", func() {
			_, err := greeting.Render(map[string]string{"place": "the lobby"})
			var missing MissingKeyError
			Expect(err).To(BeAssignableToTypeOf(missing))
			Expect(err.Error()).To(ContainSubstring("name"))
		})
	})

	Describe("shipped templates", func() {
		It("renders the intro prompt", func() {
			out, err := Intro.Render(map[string]string{
				"twinDefinition":       "a travel agent",
				"userTwinRelationship": "returning customer",
				"finalizedSummaries":   "introductions: met Maria",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("a travel agent"))
			Expect(out).To(ContainSubstring("introductions: met Maria"))
		})

		It("renders the stage prompt with its document set", func() {
			out, err := Stage.Render(map[string]string{
				"stageName":                  "requirements",
				"stageGoal":                  "learn what Maria wants",
				"stageInteractionDefinition": "ask open questions",
				"stageInformationToGather":   "dates and budget",
				"documentSet":                "visa rules\nbaggage policy",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("requirements"))
			Expect(out).To(ContainSubstring("visa rules"))
		})
	})
})
