package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/hollowvale/companion-engine/internal/services"
	"github.com/hollowvale/companion-engine/internal/services/events"
	"github.com/hollowvale/companion-engine/internal/storage"
	"github.com/hollowvale/companion-engine/pkg/actor"
	"github.com/hollowvale/companion-engine/pkg/state"
)

// Manager hands out live controllers by session id. Controllers stay
// resident so greeting streams and splitter bookkeeping survive between
// requests; storage is the write-through copy.
type Manager struct {
	mu    sync.Mutex
	ctrls map[uuid.UUID]*Controller

	store  storage.Storage
	llm    services.LLMService
	events *events.Broadcaster
	opts   Options
	logger *slog.Logger
}

func NewManager(store storage.Storage, llm services.LLMService, bc *events.Broadcaster, opts Options, logger *slog.Logger) *Manager {
	return &Manager{
		ctrls:  make(map[uuid.UUID]*Controller),
		store:  store,
		llm:    llm,
		events: bc,
		opts:   opts,
		logger: logger,
	}
}

// Create starts a session in the given room and returns its controller.
func (m *Manager) Create(ctx context.Context, roomID string, player *actor.PlayerSpec) (*Controller, error) {
	rm, err := m.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", roomID, err)
	}

	st := state.NewSessionState()
	st.RoomID = roomID
	st.Player = player

	ctrl := NewController(st, rm, m.store, m.llm, m.events, m.opts, m.logger)
	if err := m.store.SaveSession(ctx, st.ID, ctrl.Snapshot()); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.mu.Lock()
	m.ctrls[st.ID] = ctrl
	m.mu.Unlock()
	return ctrl, nil
}

// Get returns the live controller for the session, reviving it from
// storage if needed. Returns nil without error when the session does not
// exist.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Controller, error) {
	m.mu.Lock()
	if ctrl, ok := m.ctrls[id]; ok {
		m.mu.Unlock()
		return ctrl, nil
	}
	m.mu.Unlock()

	st, err := m.store.LoadSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if st == nil {
		return nil, nil
	}

	rm, err := m.store.GetRoom(ctx, st.RoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", st.RoomID, err)
	}

	ctrl := NewController(st, rm, m.store, m.llm, m.events, m.opts, m.logger)
	ctrl.Hydrate(ctx)

	m.mu.Lock()
	// Another request may have revived it first; keep the winner.
	if existing, ok := m.ctrls[id]; ok {
		ctrl = existing
	} else {
		m.ctrls[id] = ctrl
	}
	m.mu.Unlock()
	return ctrl, nil
}

// Delete removes the session from storage and drops its controller.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	if err := m.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	m.mu.Lock()
	delete(m.ctrls, id)
	m.mu.Unlock()
	return nil
}

// Persist writes the controller's snapshot through to storage.
func (m *Manager) Persist(ctx context.Context, ctrl *Controller) error {
	snap := ctrl.Snapshot()
	return m.store.SaveSession(ctx, snap.ID, snap)
}
