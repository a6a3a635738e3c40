package state

import (
	"time"

	"github.com/google/uuid"

	"github.com/hollowvale/companion-engine/pkg/actor"
	"github.com/hollowvale/companion-engine/pkg/card"
	"github.com/hollowvale/companion-engine/pkg/chat"
	"github.com/hollowvale/companion-engine/pkg/relationship"
	"github.com/hollowvale/companion-engine/pkg/worldclock"
)

// SessionState is the persisted progress of one exploration session: the
// timeline, the per-NPC relationship map, the in-game clock, and the two
// independent active-NPC references. Conversing and bonded are separate
// nullable fields because both can be populated at once (dual-speaker
// mode); at most one NPC is ever bonded.
type SessionState struct {
	ID     uuid.UUID         `json:"id"`
	Player *actor.PlayerSpec `json:"player,omitempty"`
	RoomID string            `json:"room_id,omitempty"`

	ConversingID   string              `json:"conversing_id,omitempty"`
	ConversingName string              `json:"conversing_name,omitempty"`
	BondedID       string              `json:"bonded_ally_uuid,omitempty"`
	BondedName     string              `json:"bonded_name,omitempty"`
	BondedCard     *card.CharacterCard `json:"bonded_card,omitempty"`

	Relationships map[string]relationship.Relationship `json:"npc_relationships,omitempty"`
	Clock         worldclock.State                     `json:"time_state"`
	Timeline      []chat.Message                       `json:"timeline,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSessionState creates a fresh session at dawn of day one.
func NewSessionState() *SessionState {
	return &SessionState{
		ID:            uuid.New(),
		Relationships: make(map[string]relationship.Relationship),
		Clock:         worldclock.NewState(),
		Timeline:      make([]chat.Message, 0),
		CreatedAt:     time.Now(),
	}
}

// Append adds messages to the end of the timeline.
func (s *SessionState) Append(msgs ...chat.Message) {
	s.Timeline = append(s.Timeline, msgs...)
}

// Message returns the timeline index and message with the given id.
func (s *SessionState) Message(id uuid.UUID) (int, *chat.Message) {
	for i := range s.Timeline {
		if s.Timeline[i].ID == id {
			return i, &s.Timeline[i]
		}
	}
	return -1, nil
}

// ReplaceAt substitutes the message at the given timeline index with one or
// more replacements, in place, preserving surrounding order. Used by the
// multi-speaker splitter to materialize attributed messages in the same
// timeline slot.
func (s *SessionState) ReplaceAt(index int, msgs []chat.Message) {
	if index < 0 || index >= len(s.Timeline) || len(msgs) == 0 {
		return
	}
	out := make([]chat.Message, 0, len(s.Timeline)+len(msgs)-1)
	out = append(out, s.Timeline[:index]...)
	out = append(out, msgs...)
	out = append(out, s.Timeline[index+1:]...)
	s.Timeline = out
}

// InConversation reports whether a transient conversation target is set.
func (s *SessionState) InConversation() bool {
	return s.ConversingID != ""
}

// HasBondedAlly reports whether an ally is currently bonded.
func (s *SessionState) HasBondedAlly() bool {
	return s.BondedID != ""
}

// DualSpeaker reports whether both references are populated.
func (s *SessionState) DualSpeaker() bool {
	return s.InConversation() && s.HasBondedAlly()
}
