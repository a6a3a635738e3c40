package relationship

// Store is an explicitly owned keyed map of NPC relationships. It is passed
// through the session controller rather than held as a global; values are
// copied in and out so callers mutate through Set only.
type Store struct {
	byNPC map[string]Relationship
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byNPC: make(map[string]Relationship)}
}

// FromMap builds a store from a persisted relationship map.
func FromMap(m map[string]Relationship) *Store {
	s := NewStore()
	for id, rel := range m {
		s.byNPC[id] = rel
	}
	return s
}

// Get returns the relationship for an NPC and whether it exists.
func (s *Store) Get(npcID string) (Relationship, bool) {
	rel, ok := s.byNPC[npcID]
	return rel, ok
}

// GetOrCreate returns the existing relationship or lazily creates the
// default one for a first interaction.
func (s *Store) GetOrCreate(npcID string) Relationship {
	if rel, ok := s.byNPC[npcID]; ok {
		return rel
	}
	rel := New(npcID)
	s.byNPC[npcID] = rel
	return rel
}

// Set stores the relationship keyed by its NPC id.
func (s *Store) Set(rel Relationship) {
	s.byNPC[rel.NPCID] = rel
}

// All returns a copy of the underlying map, suitable for persistence.
func (s *Store) All() map[string]Relationship {
	out := make(map[string]Relationship, len(s.byNPC))
	for id, rel := range s.byNPC {
		out[id] = rel
	}
	return out
}

// Len returns the number of tracked relationships.
func (s *Store) Len() int {
	return len(s.byNPC)
}

// ResetDaily resets every tracked relationship's daily counters for the
// given day. Called on day rollover.
func (s *Store) ResetDaily(day int) {
	for id, rel := range s.byNPC {
		s.byNPC[id] = ResetDaily(rel, day)
	}
}
