package services

import (
	"context"
	"sync"

	"github.com/hollowvale/companion-engine/pkg/chat"
)

// MockLLM is a mock implementation of LLMService for testing
type MockLLM struct {
	StreamGreetingFunc func(ctx context.Context, req GreetingRequest) (<-chan StreamChunk, error)
	GenerateFunc       func(ctx context.Context, messages []chat.CompletionMessage) (string, error)
	IsReadyFunc        func(ctx context.Context) (bool, error)

	// Chunks drives the default StreamGreeting behavior: each string is
	// delivered as one chunk, then a clean Done.
	Chunks []string
	// StreamErr, when set, is delivered after Chunks instead of Done.
	StreamErr error

	// Track calls for testing
	StreamGreetingCalls []GreetingRequest
	GenerateCalls       [][]chat.CompletionMessage

	mu sync.Mutex // protects all fields above
}

// Ensure MockLLM implements LLMService interface
var _ LLMService = (*MockLLM)(nil)

// NewMockLLM creates a new mock LLM service
func NewMockLLM() *MockLLM {
	return &MockLLM{
		Chunks: []string{"Well met, ", "traveler."},
	}
}

func (m *MockLLM) StreamGreeting(ctx context.Context, req GreetingRequest) (<-chan StreamChunk, error) {
	m.mu.Lock()
	m.StreamGreetingCalls = append(m.StreamGreetingCalls, req)
	fn := m.StreamGreetingFunc
	chunks := make([]string, len(m.Chunks))
	copy(chunks, m.Chunks)
	streamErr := m.StreamErr
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			ch <- StreamChunk{Content: c}
		}
		if streamErr != nil {
			ch <- StreamChunk{Err: streamErr}
			return
		}
		ch <- StreamChunk{Done: true}
	}()
	return ch, nil
}

func (m *MockLLM) Generate(ctx context.Context, messages []chat.CompletionMessage) (string, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, messages)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}
	return "Mock response", nil
}

func (m *MockLLM) IsReady(ctx context.Context) (bool, error) {
	m.mu.Lock()
	fn := m.IsReadyFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return true, nil
}
