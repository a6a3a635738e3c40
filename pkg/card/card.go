package card

// LoreEntry is one piece of long-form background attached to a character.
type LoreEntry struct {
	Keys    []string `json:"keys,omitempty"`
	Content string   `json:"content"`
}

// CharacterCard is the full character definition fetched for an NPC.
// Bonded allies receive the full card in prompt context; transient
// conversation targets receive the thin form.
type CharacterCard struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	Personality   string      `json:"personality,omitempty"`
	Scenario      string      `json:"scenario,omitempty"`
	FirstMessage  string      `json:"first_message,omitempty"`
	SpeechStyle   string      `json:"speech_style,omitempty"`
	Lore          []LoreEntry `json:"lore,omitempty"`
	ExampleDialog []string    `json:"example_dialog,omitempty"`

	// Combat stats, used only when the NPC is handed to the combat engine.
	HP         int            `json:"hp,omitempty"`
	MaxHP      int            `json:"max_hp,omitempty"`
	AC         int            `json:"ac,omitempty"`
	Attributes map[string]int `json:"attributes,omitempty"`
	CombatMods map[string]int `json:"combat_modifiers,omitempty"`
}

// Thin returns the reduced card used for non-recruited small talk: lore and
// example dialog are stripped to minimize prompt cost.
func (c CharacterCard) Thin() CharacterCard {
	c.Lore = nil
	c.ExampleDialog = nil
	c.Scenario = ""
	return c
}

// IsThin reports whether the card carries no long-form content.
func (c CharacterCard) IsThin() bool {
	return len(c.Lore) == 0 && len(c.ExampleDialog) == 0 && c.Scenario == ""
}
