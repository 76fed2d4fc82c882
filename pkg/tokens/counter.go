// Package tokens provides token counting for budget enforcement.
//
// A Counter maps text to an integer token cost under a fixed tokenizer.
// Counts must be deterministic for a given tokenizer version and stable
// across process restarts; every budget decision in the system (block
// overflow, summarization triggers) is made through this contract.
package tokens

import "github.com/twinfold/contextd/pkg/llm"

// Counter maps text to a non-negative token count.
type Counter interface {
	Count(text string) int
}

// CountMessages counts the space-joined contents of the given messages.
// Joining before counting keeps the accounting identical to how block
// totals are recomputed, so additive updates cannot drift.
func CountMessages(c Counter, messages []llm.Message) int {
	return c.Count(llm.JoinContents(messages))
}
