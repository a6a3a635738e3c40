package room

// NPC is an inhabitant of a room as listed in the roster. Full character
// data lives in the card identified by CardID and is fetched on demand.
type NPC struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CardID      string `json:"card_id,omitempty"`
	Disposition string `json:"disposition,omitempty"` // "hostile", "neutral", "friendly"
	Description string `json:"description,omitempty"`
}

// IsHostile reports whether selecting this NPC begins combat rather than
// conversation.
func (n NPC) IsHostile() bool {
	return n.Disposition == "hostile"
}

// Room is one explorable location in the world.
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	NPCs        []NPC  `json:"npcs,omitempty"`
}

// FindNPC returns the roster entry with the given id.
func (r Room) FindNPC(id string) (NPC, bool) {
	for _, n := range r.NPCs {
		if n.ID == id {
			return n, true
		}
	}
	return NPC{}, false
}

// RosterNames lists the names of all present NPCs, for prompt context.
func (r Room) RosterNames() []string {
	names := make([]string, 0, len(r.NPCs))
	for _, n := range r.NPCs {
		names = append(names, n.Name)
	}
	return names
}
