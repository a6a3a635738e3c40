package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/hollowvale/companion-engine/pkg/card"
	"github.com/hollowvale/companion-engine/pkg/room"
	"github.com/hollowvale/companion-engine/pkg/state"
)

// Storage is the persistence boundary: session progress in Redis, static
// world resources (rooms, character cards) on the filesystem.
type Storage interface {
	// Ping tests the backing connection
	Ping(ctx context.Context) error

	// Close closes the backing connection
	Close() error

	// SaveSession saves session progress under its UUID
	SaveSession(ctx context.Context, id uuid.UUID, s *state.SessionState) error

	// LoadSession retrieves session progress by UUID.
	// Returns nil if the session doesn't exist.
	LoadSession(ctx context.Context, id uuid.UUID) (*state.SessionState, error)

	// DeleteSession removes session progress by UUID
	DeleteSession(ctx context.Context, id uuid.UUID) error

	// GetRoom loads a room definition by id
	GetRoom(ctx context.Context, roomID string) (*room.Room, error)

	// ListRooms lists available room ids
	ListRooms(ctx context.Context) ([]string, error)

	// GetCard fetches a character card by id
	GetCard(ctx context.Context, cardID string) (*card.CharacterCard, error)
}
