package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hollowvale/companion-engine/internal/storage"
)

// RoomHandler serves the static room catalog.
//
// Routes:
// GET /v1/rooms      - List available room ids
// GET /v1/rooms/{id} - Read a room definition with its NPC roster
type RoomHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewRoomHandler(storage storage.Storage, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{
		storage: storage,
		logger:  logger,
	}
}

func (h *RoomHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed. Supported methods: GET"})
		return
	}

	roomID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/rooms"), "/")
	if roomID == "" {
		h.handleList(w, r)
		return
	}
	h.handleRead(w, r, roomID)
}

func (h *RoomHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.storage.ListRooms(r.Context())
	if err != nil {
		h.logger.Error("Failed to list rooms", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "Failed to list rooms"})
		return
	}
	if err := json.NewEncoder(w).Encode(ids); err != nil {
		h.logger.Error("Failed to encode room list", "error", err)
	}
}

func (h *RoomHandler) handleRead(w http.ResponseWriter, r *http.Request, roomID string) {
	rm, err := h.storage.GetRoom(r.Context(), roomID)
	if err != nil {
		h.logger.Warn("Failed to load room", "room_id", roomID, "error", err)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "Room not found: " + roomID})
		return
	}
	if err := json.NewEncoder(w).Encode(rm); err != nil {
		h.logger.Error("Failed to encode room", "error", err)
	}
}
