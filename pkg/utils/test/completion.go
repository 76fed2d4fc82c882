package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/twinfold/contextd/pkg/completion"
)

// MockCompletionClient is a scripted completion.Client. Responses are
// consumed in order; structured responses are raw JSON decoded into the
// caller's out value.
type MockCompletionClient struct {
	mu sync.Mutex

	// Responses are consumed by Complete calls, first to last.
	Responses []string

	// StructuredResponses are consumed by CompleteStructured calls as raw
	// JSON documents.
	StructuredResponses []string

	// Err, when set, fails every call.
	Err error

	// Requests records every request seen, in call order.
	Requests []completion.Request
}

func NewMockCompletionClient() *MockCompletionClient {
	return &MockCompletionClient{}
}

func (m *MockCompletionClient) Complete(_ context.Context, req completion.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", fmt.Errorf("mock completion: no scripted response")
	}

	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return resp, nil
}

func (m *MockCompletionClient) CompleteStructured(_ context.Context, req completion.Request, _ completion.Schema, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return m.Err
	}
	if len(m.StructuredResponses) == 0 {
		return fmt.Errorf("mock completion: no scripted structured response")
	}

	resp := m.StructuredResponses[0]
	m.StructuredResponses = m.StructuredResponses[1:]
	return json.Unmarshal([]byte(resp), out)
}

// CallCount returns the number of requests seen so far.
func (m *MockCompletionClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
