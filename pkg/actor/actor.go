package actor

import (
	"fmt"
	"maps"

	"github.com/jwebster45206/d20"

	"github.com/hollowvale/companion-engine/pkg/card"
)

// PlayerSpec is the serializable identity and stat block of the player
// character, loaded from session data and handed to the combat engine.
type PlayerSpec struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	HP          int            `json:"hp,omitempty"`
	MaxHP       int            `json:"max_hp"`
	AC          int            `json:"ac"`
	Attributes  map[string]int `json:"attributes,omitempty"`
	CombatMods  map[string]int `json:"combat_modifiers,omitempty"`
}

// Combatant is a runtime participant in a combat handoff: an identity plus
// a built d20 actor carrying HP, AC, and attribute state.
type Combatant struct {
	ID    string
	Name  string
	Actor *d20.Actor
}

// NewPlayerCombatant builds the player's combatant from their spec. A nil
// or statless spec gets the same modest defaults as statless cards, so a
// handoff works before the player has a sheet.
func NewPlayerCombatant(spec *PlayerSpec) (*Combatant, error) {
	if spec == nil {
		spec = &PlayerSpec{}
	}
	id := spec.ID
	if id == "" {
		id = "player"
	}
	name := spec.Name
	if name == "" {
		name = "You"
	}
	maxHP := spec.MaxHP
	if maxHP <= 0 {
		maxHP = 10
	}
	ac := spec.AC
	if ac <= 0 {
		ac = 10
	}
	return build(id, name, maxHP, spec.HP, ac, spec.Attributes, spec.CombatMods)
}

// NewCardCombatant builds an NPC combatant from its character card. Cards
// without combat stats get modest defaults so a handoff never fails on a
// purely social NPC caught up in a fight.
func NewCardCombatant(id string, c card.CharacterCard) (*Combatant, error) {
	maxHP := c.MaxHP
	if maxHP <= 0 {
		maxHP = 10
	}
	ac := c.AC
	if ac <= 0 {
		ac = 10
	}
	return build(id, c.Name, maxHP, c.HP, ac, c.Attributes, c.CombatMods)
}

func build(id, name string, maxHP, hp, ac int, attrs, mods map[string]int) (*Combatant, error) {
	allAttrs := make(map[string]int)
	maps.Copy(allAttrs, attrs)

	actor, err := d20.NewActor(id).
		WithHP(maxHP).
		WithAC(ac).
		WithAttributes(allAttrs).
		WithCombatModifiers(mods).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor: %w", err)
	}

	if hp > 0 && hp != maxHP {
		if err := actor.SetHP(hp); err != nil {
			return nil, fmt.Errorf("failed to set HP: %w", err)
		}
	}

	return &Combatant{ID: id, Name: name, Actor: actor}, nil
}
