package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowvale/companion-engine/internal/storage"
	"github.com/hollowvale/companion-engine/pkg/room"
)

func TestRoomHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	ms := storage.NewMockStorage()
	ms.AddRoom(&room.Room{
		ID:   "grove",
		Name: "Whispering Grove",
		NPCs: []room.NPC{{ID: "npc-fen", Name: "Fen"}},
	})
	h := NewRoomHandler(ms, logger)

	t.Run("list rooms", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/rooms", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var ids []string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ids))
		assert.Contains(t, ids, "grove")
	})

	t.Run("read room", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/rooms/grove", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var rm room.Room
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rm))
		assert.Equal(t, "Whispering Grove", rm.Name)
		require.Len(t, rm.NPCs, 1)
		assert.Equal(t, "Fen", rm.NPCs[0].Name)
	})

	t.Run("missing room", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/rooms/void", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/rooms", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
