package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hollowvale/companion-engine/pkg/chat"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeMessageAppended EventType = "message.appended"
	EventTypeChatChunk       EventType = "chat.chunk"
	EventTypeDayStarted      EventType = "day.started"
	EventTypeCombatStarted   EventType = "combat.started"
	EventTypeAllyChanged     EventType = "ally.changed"
)

// Event is the generic structure published to a session's channel
type Event struct {
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Broadcaster publishes session events to Redis Pub/Sub so the UI layer
// can subscribe for live updates
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// ChannelFor returns the pub/sub channel name for a session
func ChannelFor(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:events", sessionID.String())
}

// PublishMessageAppended announces a new timeline message
func (b *Broadcaster) PublishMessageAppended(ctx context.Context, sessionID uuid.UUID, msg chat.Message) error {
	return b.publish(ctx, sessionID, Event{
		Type:      EventTypeMessageAppended,
		SessionID: sessionID.String(),
		Data: map[string]interface{}{
			"message_id": msg.ID.String(),
			"role":       msg.Role,
			"metadata":   msg.Metadata,
		},
	})
}

// PublishChatChunk announces an incremental greeting-stream update
func (b *Broadcaster) PublishChatChunk(ctx context.Context, sessionID uuid.UUID, messageID uuid.UUID, content string) error {
	return b.publish(ctx, sessionID, Event{
		Type:      EventTypeChatChunk,
		SessionID: sessionID.String(),
		Data: map[string]interface{}{
			"message_id": messageID.String(),
			"content":    content,
		},
	})
}

// PublishDayStarted announces a day rollover
func (b *Broadcaster) PublishDayStarted(ctx context.Context, sessionID uuid.UUID, day int) error {
	return b.publish(ctx, sessionID, Event{
		Type:      EventTypeDayStarted,
		SessionID: sessionID.String(),
		Data: map[string]interface{}{
			"day": day,
		},
	})
}

// PublishCombatStarted announces a combat handoff
func (b *Broadcaster) PublishCombatStarted(ctx context.Context, sessionID uuid.UUID, enemyID string) error {
	return b.publish(ctx, sessionID, Event{
		Type:      EventTypeCombatStarted,
		SessionID: sessionID.String(),
		Data: map[string]interface{}{
			"enemy_id": enemyID,
		},
	})
}

// PublishAllyChanged announces bonding or dismissal
func (b *Broadcaster) PublishAllyChanged(ctx context.Context, sessionID uuid.UUID, allyID string) error {
	return b.publish(ctx, sessionID, Event{
		Type:      EventTypeAllyChanged,
		SessionID: sessionID.String(),
		Data: map[string]interface{}{
			"ally_id": allyID,
		},
	})
}

func (b *Broadcaster) publish(ctx context.Context, sessionID uuid.UUID, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, ChannelFor(sessionID), data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "type", event.Type, "session_id", sessionID, "error", err)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
