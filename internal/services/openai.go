package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hollowvale/companion-engine/pkg/chat"
)

const (
	DefaultTemperature = 0.8
	DefaultMaxTokens   = 256

	greetingInstruction = "The player has just approached you. Greet them in character, briefly. One to three sentences."
)

// OpenAIService implements LLMService against any OpenAI-compatible chat
// completions endpoint.
type OpenAIService struct {
	baseURL    string
	apiKey     string
	modelName  string
	httpClient *http.Client
}

// Ensure OpenAIService implements LLMService interface
var _ LLMService = (*OpenAIService)(nil)

// NewOpenAIService creates a client for an OpenAI-compatible endpoint
func NewOpenAIService(baseURL, apiKey, modelName string) *OpenAIService {
	return &OpenAIService{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		modelName: modelName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// chatCompletionRequest is the wire request for /chat/completions
type chatCompletionRequest struct {
	Model       string                   `json:"model"`
	Messages    []chat.CompletionMessage `json:"messages"`
	Temperature float64                  `json:"temperature,omitempty"`
	MaxTokens   int                      `json:"max_tokens,omitempty"`
	Stream      bool                     `json:"stream"`
}

type chatCompletionChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Choices []chatCompletionChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (o *OpenAIService) newRequest(ctx context.Context, body chatCompletionRequest) (*http.Request, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Generate produces a full, non-streamed completion.
func (o *OpenAIService) Generate(ctx context.Context, messages []chat.CompletionMessage) (string, error) {
	req, err := o.newRequest(ctx, chatCompletionRequest{
		Model:       o.modelName,
		Messages:    messages,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Stream:      false,
	})
	if err != nil {
		return "", err
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return parsed.Choices[0].Message.Content, nil
}

// StreamGreeting requests a greeting as a server-sent-event stream and
// forwards content deltas on the returned channel. The channel is closed
// after the final chunk; a mid-stream failure is delivered as a chunk with
// Err set so callers can keep partial content.
func (o *OpenAIService) StreamGreeting(ctx context.Context, greet GreetingRequest) (<-chan StreamChunk, error) {
	messages := []chat.CompletionMessage{
		{Role: chat.ChatRoleSystem, Content: greet.SystemPrompt},
	}
	if greet.FirstMessage != "" {
		messages = append(messages, chat.CompletionMessage{
			Role:    chat.ChatRoleSystem,
			Content: fmt.Sprintf("%s's usual opening manner: %s", greet.CharacterName, greet.FirstMessage),
		})
	}
	messages = append(messages, chat.CompletionMessage{
		Role:    chat.ChatRoleSystem,
		Content: greetingInstruction,
	})

	req, err := o.newRequest(ctx, chatCompletionRequest{
		Model:       o.modelName,
		Messages:    messages,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				ch <- StreamChunk{Done: true}
				return
			}

			var parsed chatCompletionResponse
			if err := json.Unmarshal([]byte(data), &parsed); err != nil {
				continue // skip malformed keepalive lines
			}
			if parsed.Error != nil {
				ch <- StreamChunk{Err: fmt.Errorf("API error: %s", parsed.Error.Message)}
				return
			}
			if len(parsed.Choices) == 0 {
				continue
			}
			if delta := parsed.Choices[0].Delta.Content; delta != "" {
				select {
				case ch <- StreamChunk{Content: delta}:
				case <-ctx.Done():
					ch <- StreamChunk{Err: ctx.Err()}
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Err: fmt.Errorf("stream read failed: %w", err)}
			return
		}
		ch <- StreamChunk{Done: true}
	}()

	return ch, nil
}

// IsReady checks the models endpoint.
func (o *OpenAIService) IsReady(ctx context.Context) (bool, error) {
	if o.baseURL == "" {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to reach LLM API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK, nil
}
