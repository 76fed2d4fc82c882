package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/twinfold/contextd/pkg/retrieval"
)

// MockRetrievalDriver is a canned retrieval.Driver. Matches are looked up
// per query text, with Default as the fallback.
type MockRetrievalDriver struct {
	mu sync.Mutex

	// Matches maps query text to the matches returned for it.
	Matches map[string][]retrieval.Match

	// Default is returned for queries with no entry in Matches.
	Default []retrieval.Match

	// Err, when set, fails every search.
	Err error

	// Queries records every query text seen, in call order.
	Queries []string
}

func NewMockRetrievalDriver() *MockRetrievalDriver {
	return &MockRetrievalDriver{
		Matches: make(map[string][]retrieval.Match),
	}
}

func (m *MockRetrievalDriver) Search(_ context.Context, query string, _ map[string]any, _ int, _ string) ([]retrieval.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Queries = append(m.Queries, query)
	if m.Err != nil {
		return nil, fmt.Errorf("%w: mock search failure", retrieval.ErrBackend)
	}

	if matches, ok := m.Matches[query]; ok {
		return copyMatches(matches), nil
	}
	return copyMatches(m.Default), nil
}

func (m *MockRetrievalDriver) Close() error {
	return nil
}

func copyMatches(matches []retrieval.Match) []retrieval.Match {
	out := make([]retrieval.Match, len(matches))
	copy(out, matches)
	return out
}
