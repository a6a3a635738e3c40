package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hollowvale/companion-engine/pkg/chat"
)

func setupBroadcaster(t *testing.T) (*Broadcaster, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBroadcaster(client, logger), client
}

func TestBroadcaster_PublishMessageAppended(t *testing.T) {
	b, client := setupBroadcaster(t)
	ctx := context.Background()
	sessionID := uuid.New()

	sub := client.Subscribe(ctx, ChannelFor(sessionID))
	t.Cleanup(func() { _ = sub.Close() })
	// Wait for the subscription to be established.
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	msg := chat.Narration(chat.TypeNarration, "*Rex joins you.*")
	if err := b.PublishMessageAppended(ctx, sessionID, msg); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	select {
	case received := <-sub.Channel():
		var event Event
		if err := json.Unmarshal([]byte(received.Payload), &event); err != nil {
			t.Fatalf("Failed to unmarshal event: %v", err)
		}
		if event.Type != EventTypeMessageAppended {
			t.Errorf("expected %s, got %s", EventTypeMessageAppended, event.Type)
		}
		if event.SessionID != sessionID.String() {
			t.Errorf("unexpected session id: %s", event.SessionID)
		}
		if event.Data["message_id"] != msg.ID.String() {
			t.Errorf("unexpected message id: %v", event.Data["message_id"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcaster_PublishDayStarted(t *testing.T) {
	b, client := setupBroadcaster(t)
	ctx := context.Background()
	sessionID := uuid.New()

	sub := client.Subscribe(ctx, ChannelFor(sessionID))
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	if err := b.PublishDayStarted(ctx, sessionID, 3); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	select {
	case received := <-sub.Channel():
		var event Event
		if err := json.Unmarshal([]byte(received.Payload), &event); err != nil {
			t.Fatalf("Failed to unmarshal event: %v", err)
		}
		if event.Type != EventTypeDayStarted {
			t.Errorf("expected %s, got %s", EventTypeDayStarted, event.Type)
		}
		if day, ok := event.Data["day"].(float64); !ok || int(day) != 3 {
			t.Errorf("unexpected day payload: %v", event.Data["day"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
