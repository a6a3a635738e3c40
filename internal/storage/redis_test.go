package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/hollowvale/companion-engine/pkg/card"
	"github.com/hollowvale/companion-engine/pkg/relationship"
	"github.com/hollowvale/companion-engine/pkg/room"
	"github.com/hollowvale/companion-engine/pkg/state"
)

func setupTestStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewRedisStorage(mr.Addr(), t.TempDir(), logger)
	t.Cleanup(func() { _ = s.Close() })

	return s, mr
}

func TestRedisStorage_SaveAndLoadSession(t *testing.T) {
	s, _ := setupTestStorage(t)
	ctx := context.Background()

	sess := state.NewSessionState()
	sess.RoomID = "harbor"
	sess.BondedID = "npc-rex"
	sess.BondedName = "Rex"
	sess.Relationships["npc-rex"] = relationship.New("npc-rex")

	if err := s.SaveSession(ctx, sess.ID, sess); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}
	if sess.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt stamped on save")
	}

	loaded, err := s.LoadSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected non-nil session")
	}
	if loaded.ID != sess.ID {
		t.Errorf("Expected ID %v, got %v", sess.ID, loaded.ID)
	}
	if loaded.RoomID != "harbor" || loaded.BondedID != "npc-rex" {
		t.Errorf("session fields lost on round trip: %+v", loaded)
	}
	rel, ok := loaded.Relationships["npc-rex"]
	if !ok {
		t.Fatal("expected relationship persisted")
	}
	if rel.Affinity != relationship.DefaultAffinity {
		t.Errorf("expected affinity %d, got %d", relationship.DefaultAffinity, rel.Affinity)
	}
}

func TestRedisStorage_LoadMissingSession(t *testing.T) {
	s, _ := setupTestStorage(t)

	loaded, err := s.LoadSession(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Expected no error for missing session, got: %v", err)
	}
	if loaded != nil {
		t.Error("Expected nil for missing session")
	}
}

func TestRedisStorage_DeleteSession(t *testing.T) {
	s, _ := setupTestStorage(t)
	ctx := context.Background()

	sess := state.NewSessionState()
	if err := s.SaveSession(ctx, sess.ID, sess); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}
	if err := s.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}

	loaded, err := s.LoadSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Unexpected load error: %v", err)
	}
	if loaded != nil {
		t.Error("Expected session gone after delete")
	}
}

func TestRedisStorage_SessionTTL(t *testing.T) {
	s, mr := setupTestStorage(t)
	ctx := context.Background()

	sess := state.NewSessionState()
	if err := s.SaveSession(ctx, sess.ID, sess); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	mr.FastForward(SessionTTL + 1)

	loaded, err := s.LoadSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Unexpected load error: %v", err)
	}
	if loaded != nil {
		t.Error("Expected session expired after TTL")
	}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal fixture: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
}

func TestRedisStorage_GetRoom(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	dataDir := t.TempDir()
	writeJSON(t, filepath.Join(dataDir, "rooms", "harbor.json"), room.Room{
		Name:        "Moonlit Harbor",
		Description: "Lanterns sway over quiet piers.",
		NPCs:        []room.NPC{{ID: "npc-mira", Name: "Mira", CardID: "mira"}},
	})

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewRedisStorage(mr.Addr(), dataDir, logger)
	t.Cleanup(func() { _ = s.Close() })

	rm, err := s.GetRoom(context.Background(), "harbor")
	if err != nil {
		t.Fatalf("Failed to get room: %v", err)
	}
	if rm.ID != "harbor" {
		t.Errorf("expected filename to set room id, got %s", rm.ID)
	}
	if rm.Name != "Moonlit Harbor" || len(rm.NPCs) != 1 {
		t.Errorf("unexpected room: %+v", rm)
	}

	if _, err := s.GetRoom(context.Background(), "nowhere"); err == nil {
		t.Error("expected error for missing room")
	}

	ids, err := s.ListRooms(context.Background())
	if err != nil {
		t.Fatalf("Failed to list rooms: %v", err)
	}
	if len(ids) != 1 || ids[0] != "harbor" {
		t.Errorf("unexpected room list: %v", ids)
	}
}

func TestRedisStorage_GetCard(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	dataDir := t.TempDir()
	writeJSON(t, filepath.Join(dataDir, "cards", "mira.json"), card.CharacterCard{
		Name:        "Mira",
		Description: "A dockhand with sharp eyes.",
		Lore:        []card.LoreEntry{{Content: "Once sailed with smugglers."}},
	})

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewRedisStorage(mr.Addr(), dataDir, logger)
	t.Cleanup(func() { _ = s.Close() })

	c, err := s.GetCard(context.Background(), "mira")
	if err != nil {
		t.Fatalf("Failed to get card: %v", err)
	}
	if c.ID != "mira" || c.Name != "Mira" {
		t.Errorf("unexpected card: %+v", c)
	}
	if len(c.Lore) != 1 {
		t.Error("expected lore retained on full card")
	}

	if _, err := s.GetCard(context.Background(), "nobody"); err == nil {
		t.Error("expected error for missing card")
	}
}
