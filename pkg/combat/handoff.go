package combat

import (
	"fmt"

	"github.com/hollowvale/companion-engine/pkg/actor"
	"github.com/hollowvale/companion-engine/pkg/card"
	"github.com/hollowvale/companion-engine/pkg/chat"
	"github.com/hollowvale/companion-engine/pkg/room"
)

// InitData is the combat-engine initialization payload. This package only
// translates the social-state snapshot into the payload; resolution belongs
// to the combat engine.
type InitData struct {
	Player          *actor.Combatant   `json:"-"`
	Enemies         []*actor.Combatant `json:"-"`
	Allies          []*actor.Combatant `json:"-"`
	RoomName        string             `json:"room_name,omitempty"`
	RoomImage       string             `json:"room_image,omitempty"`
	PlayerAdvantage bool               `json:"player_advantage"`
}

// Handoff inputs: the selected hostile, the room roster, the bonded ally
// (nil when none, or when the ally itself is hostile), and the player.
type Handoff struct {
	Selected room.NPC
	Room     room.Room
	Ally     *card.CharacterCard
	AllyID   string
	Player   *actor.PlayerSpec
	// Advantage is set when the player initiated against an unaware enemy.
	Advantage bool
}

// Build translates the handoff into an InitData payload and the "combat
// begins" narration. The selected NPC always leads the enemy list; other
// hostiles in the room join it.
func Build(h Handoff) (*InitData, chat.Message, error) {
	player, err := actor.NewPlayerCombatant(h.Player)
	if err != nil {
		return nil, chat.Message{}, fmt.Errorf("failed to build player combatant: %w", err)
	}

	init := &InitData{
		Player:          player,
		RoomName:        h.Room.Name,
		RoomImage:       h.Room.ImageURL,
		PlayerAdvantage: h.Advantage,
	}

	for _, n := range hostilesLeadingWith(h.Selected, h.Room) {
		enemy, err := actor.NewCardCombatant(n.ID, card.CharacterCard{
			Name:        n.Name,
			Description: n.Description,
		})
		if err != nil {
			return nil, chat.Message{}, fmt.Errorf("failed to build enemy %s: %w", n.ID, err)
		}
		init.Enemies = append(init.Enemies, enemy)
	}

	if h.Ally != nil {
		ally, err := actor.NewCardCombatant(h.AllyID, *h.Ally)
		if err != nil {
			return nil, chat.Message{}, fmt.Errorf("failed to build ally combatant: %w", err)
		}
		init.Allies = append(init.Allies, ally)
	}

	msg := chat.Narration(chat.TypeCombatStart, narration(h.Selected, h.Ally))
	msg = msg.WithMeta(chat.MetaNPCID, h.Selected.ID)
	return init, msg, nil
}

// hostilesLeadingWith orders the room's hostile roster with the selected
// NPC first, deduplicated.
func hostilesLeadingWith(selected room.NPC, r room.Room) []room.NPC {
	out := []room.NPC{selected}
	for _, n := range r.NPCs {
		if n.ID != selected.ID && n.IsHostile() {
			out = append(out, n)
		}
	}
	return out
}

func narration(selected room.NPC, ally *card.CharacterCard) string {
	if ally != nil {
		return fmt.Sprintf("*%s lunges forward. %s moves to your side. Combat begins!*", selected.Name, ally.Name)
	}
	return fmt.Sprintf("*%s lunges forward. Combat begins!*", selected.Name)
}
