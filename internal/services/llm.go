package services

import (
	"context"

	"github.com/hollowvale/companion-engine/pkg/chat"
)

// StreamChunk is one increment of a streamed completion. Err is set on the
// final chunk when the stream died mid-generation; Done marks a clean end.
type StreamChunk struct {
	Content string
	Done    bool
	Err     error
}

// GreetingRequest asks for an in-character greeting when the player
// approaches an NPC.
type GreetingRequest struct {
	SystemPrompt  string
	CharacterName string
	// FirstMessage is the card-authored opening line, passed as a style
	// hint. May be empty.
	FirstMessage string
}

// LLMService defines the interface for the greeting generation backend
type LLMService interface {
	// StreamGreeting requests a greeting and returns a channel of
	// incremental chunks. The channel is closed after the final chunk.
	StreamGreeting(ctx context.Context, req GreetingRequest) (<-chan StreamChunk, error)

	// Generate produces a full completion for the given messages
	Generate(ctx context.Context, messages []chat.CompletionMessage) (string, error)

	// IsReady checks whether the backend is reachable and configured
	IsReady(ctx context.Context) (bool, error)
}
