package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hollowvale/companion-engine/pkg/card"
	"github.com/hollowvale/companion-engine/pkg/room"
	"github.com/hollowvale/companion-engine/pkg/state"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*state.SessionState
	rooms     map[string]*room.Room
	cards     map[string]*card.CharacterCard
	pingError error
	cardError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		sessions: make(map[uuid.UUID]*state.SessionState),
		rooms:    make(map[string]*room.Room),
		cards:    make(map[string]*card.CharacterCard),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetCardError configures the mock to fail card fetches, for testing the
// network-failure fallback path.
func (m *MockStorage) SetCardError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cardError = err
}

// AddRoom seeds a room definition
func (m *MockStorage) AddRoom(r *room.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[r.ID] = r
}

// AddCard seeds a character card
func (m *MockStorage) AddCard(c *card.CharacterCard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[c.ID] = c
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveSession(ctx context.Context, id uuid.UUID, s *state.SessionState) error {
	if s == nil {
		return errors.New("session cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s
	return nil
}

func (m *MockStorage) LoadSession(ctx context.Context, id uuid.UUID) (*state.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (m *MockStorage) DeleteSession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MockStorage) GetRoom(ctx context.Context, roomID string) (*room.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("room not found: %s", roomID)
	}
	return r, nil
}

func (m *MockStorage) ListRooms(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockStorage) GetCard(ctx context.Context, cardID string) (*card.CharacterCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cardError != nil {
		return nil, m.cardError
	}
	c, ok := m.cards[cardID]
	if !ok {
		return nil, fmt.Errorf("card not found: %s", cardID)
	}
	return c, nil
}
