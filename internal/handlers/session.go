package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hollowvale/companion-engine/internal/session"
	"github.com/hollowvale/companion-engine/pkg/actor"
	"github.com/hollowvale/companion-engine/pkg/chat"
	"github.com/hollowvale/companion-engine/pkg/combat"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateSessionRequest starts a session in a room.
type CreateSessionRequest struct {
	RoomID string            `json:"room_id"`
	Player *actor.PlayerSpec `json:"player,omitempty"`
}

// SelectRequest names the roster NPC the player clicked.
type SelectRequest struct {
	NPCID string `json:"npc_id"`
}

// SelectResponse carries the tick's messages plus the combat payload when
// the selected NPC was hostile.
type SelectResponse struct {
	SessionID     uuid.UUID        `json:"session_id"`
	Messages      []chat.Message   `json:"messages,omitempty"`
	CombatStarted bool             `json:"combat_started"`
	Combat        *combat.InitData `json:"combat,omitempty"`
}

// SessionHandler serves the session lifecycle and its social actions.
//
// Routes:
// POST   /v1/session               - Create a new session
// GET    /v1/session/{id}          - Read session state
// DELETE /v1/session/{id}          - Delete a session
// POST   /v1/session/{id}/select   - Select a roster NPC
// POST   /v1/session/{id}/bond     - Bond the conversation target as ally
// POST   /v1/session/{id}/dismiss  - Dismiss the bonded ally
// POST   /v1/session/{id}/message  - Send a player message
// POST   /v1/session/{id}/clear    - Walk away from the conversation target
type SessionHandler struct {
	manager *session.Manager
	logger  *slog.Logger
}

func NewSessionHandler(manager *session.Manager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger,
	}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/session"), "/")
	parts := strings.Split(path, "/")

	if path == "" {
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	sessionID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, sessionID)
		case http.MethodDelete:
			h.handleDelete(w, r, sessionID)
		default:
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
		}
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		h.handleAction(w, r, sessionID, parts[1])
		return
	}

	h.writeError(w, http.StatusNotFound, "Not found")
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.RoomID == "" {
		h.writeError(w, http.StatusBadRequest, "room_id field is required")
		return
	}

	ctrl, err := h.manager.Create(r.Context(), req.RoomID, req.Player)
	if err != nil {
		h.logger.Warn("Failed to create session", "room_id", req.RoomID, "error", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st := ctrl.State()
	h.logger.Info("Session created", "session_id", st.ID, "room_id", st.RoomID)
	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, st)
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	ctrl, err := h.manager.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load session", "session_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}
	if ctrl == nil {
		h.writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	h.writeJSON(w, ctrl.Snapshot())
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.manager.Delete(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete session", "session_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleAction(w http.ResponseWriter, r *http.Request, id uuid.UUID, action string) {
	ctrl, err := h.manager.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load session", "session_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}
	if ctrl == nil {
		h.writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	switch action {
	case "select":
		h.handleSelect(w, r, ctrl)
	case "bond":
		h.handleBond(w, r, ctrl)
	case "dismiss":
		h.handleDismiss(w, r, ctrl)
	case "message":
		h.handleMessage(w, r, ctrl)
	case "clear":
		h.handleClear(w, r, ctrl)
	default:
		h.writeError(w, http.StatusNotFound, "Unknown action: "+action)
	}
}

func (h *SessionHandler) handleSelect(w http.ResponseWriter, r *http.Request, ctrl *session.Controller) {
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.NPCID == "" {
		h.writeError(w, http.StatusBadRequest, "npc_id field is required")
		return
	}

	init, msgs, err := ctrl.SelectNPC(r.Context(), req.NPCID)
	if err != nil {
		h.logger.Warn("NPC selection failed", "npc_id", req.NPCID, "error", err)
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	if !h.persist(w, r, ctrl) {
		return
	}
	h.writeJSON(w, SelectResponse{
		SessionID:     ctrl.State().ID,
		Messages:      msgs,
		CombatStarted: init != nil,
		Combat:        init,
	})
}

func (h *SessionHandler) handleBond(w http.ResponseWriter, r *http.Request, ctrl *session.Controller) {
	msgs, err := ctrl.BondNPC(r.Context())
	if err != nil {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if !h.persist(w, r, ctrl) {
		return
	}
	h.writeJSON(w, chat.ChatResponse{SessionID: ctrl.State().ID, Messages: msgs})
}

func (h *SessionHandler) handleDismiss(w http.ResponseWriter, r *http.Request, ctrl *session.Controller) {
	msgs := ctrl.DismissAlly(r.Context())
	if !h.persist(w, r, ctrl) {
		return
	}
	h.writeJSON(w, chat.ChatResponse{SessionID: ctrl.State().ID, Messages: msgs})
}

func (h *SessionHandler) handleMessage(w http.ResponseWriter, r *http.Request, ctrl *session.Controller) {
	var req chat.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, err := ctrl.HandleMessage(r.Context(), req.Message, req.Valence)
	if err != nil {
		h.logger.Error("Message tick failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}
	if !h.persist(w, r, ctrl) {
		return
	}
	h.writeJSON(w, chat.ChatResponse{SessionID: ctrl.State().ID, Messages: msgs})
}

func (h *SessionHandler) handleClear(w http.ResponseWriter, r *http.Request, ctrl *session.Controller) {
	ctrl.ClearConversingTarget()
	if !h.persist(w, r, ctrl) {
		return
	}
	h.writeJSON(w, chat.ChatResponse{SessionID: ctrl.State().ID})
}

// persist writes the controller's snapshot through, writing a 500 on
// failure.
func (h *SessionHandler) persist(w http.ResponseWriter, r *http.Request, ctrl *session.Controller) bool {
	if err := h.manager.Persist(r.Context(), ctrl); err != nil {
		h.logger.Error("Failed to save session", "session_id", ctrl.State().ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to save session")
		return false
	}
	return true
}

func (h *SessionHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *SessionHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
