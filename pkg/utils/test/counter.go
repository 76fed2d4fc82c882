package testutils

import "strings"

// MockCounter is a tokens.Counter that counts whitespace-separated words,
// with optional per-text overrides.
type MockCounter struct {
	// Counts maps exact text to a fixed token count.
	Counts map[string]int
}

func NewMockCounter() *MockCounter {
	return &MockCounter{
		Counts: make(map[string]int),
	}
}

func (m *MockCounter) Count(text string) int {
	if n, ok := m.Counts[text]; ok {
		return n
	}
	return len(strings.Fields(text))
}
