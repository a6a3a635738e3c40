package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ChatRoleUser      = "user"      // Player
	ChatRoleAssistant = "assistant" // NPC dialogue
	ChatRoleSystem    = "system"    // Narrator or engine notices
)

// Message statuses. A message may only be mutated while streaming;
// once complete it is frozen.
const (
	StatusStreaming = "streaming"
	StatusComplete  = "complete"
	StatusError     = "error"
)

// Metadata keys used by the engine when tagging timeline messages.
const (
	MetaType          = "type"
	MetaSpeakerName   = "speakerName"
	MetaNPCID         = "npcId"
	MetaAffinityDelta = "affinityDelta"
	MetaReason        = "reason"
)

// Message type tags (values for MetaType).
const (
	TypeGreeting      = "greeting"
	TypeNarration     = "narration"
	TypeAffinity      = "affinity"
	TypeDayTransition = "day_transition"
	TypeSpeakerSplit  = "speaker_split"
	TypeCombatStart   = "combat_start"
)

// Message is a single entry in the session timeline. Messages are produced
// by the generation pipeline or emitted directly by the engine (narration,
// affinity notices, day transitions, multi-speaker splits).
type Message struct {
	ID        uuid.UUID         `json:"id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Status    string            `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewMessage creates a complete message with a fresh id.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Status:    StatusComplete,
	}
}

// NewStreamingMessage creates an empty placeholder message that a greeting
// stream will fill incrementally.
func NewStreamingMessage(role string) Message {
	m := NewMessage(role, "")
	m.Status = StatusStreaming
	return m
}

// Narration creates a system message tagged with the given type.
func Narration(msgType, content string) Message {
	m := NewMessage(ChatRoleSystem, content)
	m.Metadata = map[string]string{MetaType: msgType}
	return m
}

// WithMeta returns a copy of the message with the key set in its metadata.
func (m Message) WithMeta(key, value string) Message {
	meta := make(map[string]string, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		meta[k] = v
	}
	meta[key] = value
	m.Metadata = meta
	return m
}

// IsQualifying reports whether the message advances the in-game clock.
// Only user and assistant messages tick time; narration does not.
func (m Message) IsQualifying() bool {
	return m.Role == ChatRoleUser || m.Role == ChatRoleAssistant
}

// CompletionMessage is the role/content pair sent to the LLM API.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a player message posted to the session API.
type ChatRequest struct {
	SessionID uuid.UUID `json:"session_id"`
	Message   string    `json:"message"`
	// Valence is an optional emotion-signal reading in [-1,1] attached
	// to this tick by the caller. Nil means no reading.
	Valence *float64 `json:"valence,omitempty"`
}

func (cr *ChatRequest) Validate() error {
	if cr.Message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if cr.Valence != nil && (*cr.Valence < -1 || *cr.Valence > 1) {
		return fmt.Errorf("valence must be in [-1,1]")
	}
	return nil
}

// ChatResponse is returned by the session API after a tick.
type ChatResponse struct {
	SessionID uuid.UUID `json:"session_id,omitempty"`
	Messages  []Message `json:"messages,omitempty"` // messages appended by this tick
	Error     string    `json:"error,omitempty"`
}
