package prompts

import (
	"fmt"
	"strings"

	"github.com/hollowvale/companion-engine/pkg/card"
	"github.com/hollowvale/companion-engine/pkg/relationship"
	"github.com/hollowvale/companion-engine/pkg/room"
	"github.com/hollowvale/companion-engine/pkg/worldclock"
)

// Builder composes prompt context from room, world, and NPC card inputs
// using a fluent interface. Build is pure: it reads its inputs once and
// returns an immutable Context, so recomposition on any input change is
// atomic by construction.
type Builder struct {
	worldName string
	room      *room.Room
	allyCard  *card.CharacterCard
	target    *card.CharacterCard
	clock     *worldclock.State
	rel       *relationship.Relationship
}

// New creates a new context builder.
func New() *Builder {
	return &Builder{worldName: "the world"}
}

// WithWorldName sets the world title used in ambient narration.
func (b *Builder) WithWorldName(name string) *Builder {
	if name != "" {
		b.worldName = name
	}
	return b
}

// WithRoom sets the current room.
func (b *Builder) WithRoom(r *room.Room) *Builder {
	b.room = r
	return b
}

// WithAllyCard sets the bonded ally's full card.
func (b *Builder) WithAllyCard(c *card.CharacterCard) *Builder {
	b.allyCard = c
	return b
}

// WithTargetCard sets the conversation target's card. The builder thins it;
// callers may pass the full card.
func (b *Builder) WithTargetCard(c *card.CharacterCard) *Builder {
	b.target = c
	return b
}

// WithClock adds day/time ambience to the composed context.
func (b *Builder) WithClock(s *worldclock.State) *Builder {
	b.clock = s
	return b
}

// WithRelationship adds the active NPC's relationship tier so the model can
// color familiarity.
func (b *Builder) WithRelationship(rel *relationship.Relationship) *Builder {
	b.rel = rel
	return b
}

// Build selects the shape from which references are populated and returns
// the composed context.
func (b *Builder) Build() Context {
	switch {
	case b.allyCard != nil && b.target != nil:
		return b.buildDualSpeaker()
	case b.allyCard != nil:
		return b.buildCompanion()
	case b.target != nil:
		return b.buildEncounter()
	default:
		return b.buildAmbient()
	}
}

func (b *Builder) buildAmbient() Context {
	var sb strings.Builder
	fmt.Fprintf(&sb, BaseWorldPrompt, b.worldName)
	b.writeScene(&sb, nil)
	return Context{Shape: ShapeAmbient, SystemPrompt: sb.String()}
}

func (b *Builder) buildCompanion() Context {
	var sb strings.Builder
	fmt.Fprintf(&sb, CompanionPrompt, b.allyCard.Name, b.allyCard.Name)
	sb.WriteString("\n\n")
	sb.WriteString(renderCard(*b.allyCard))
	b.writeRelationship(&sb)
	b.writeScene(&sb, []string{b.allyCard.Name})
	return Context{
		Shape:        ShapeCompanion,
		SystemPrompt: sb.String(),
		SpeakerNames: []string{b.allyCard.Name},
	}
}

func (b *Builder) buildEncounter() Context {
	thin := b.target.Thin()
	var sb strings.Builder
	fmt.Fprintf(&sb, EncounterPrompt, thin.Name)
	sb.WriteString("\n\n")
	sb.WriteString(renderCard(thin))
	b.writeRelationship(&sb)
	b.writeScene(&sb, []string{thin.Name})
	return Context{
		Shape:        ShapeEncounter,
		SystemPrompt: sb.String(),
		SpeakerNames: []string{thin.Name},
	}
}

func (b *Builder) buildDualSpeaker() Context {
	thin := b.target.Thin()
	var sb strings.Builder
	fmt.Fprintf(&sb, DualSpeakerPrompt, thin.Name, b.allyCard.Name, b.allyCard.Name)
	sb.WriteString("\n\n")
	sb.WriteString(renderCard(thin))
	sb.WriteString("\n")
	sb.WriteString(renderCard(*b.allyCard))
	b.writeRelationship(&sb)
	b.writeScene(&sb, []string{thin.Name, b.allyCard.Name})
	return Context{
		Shape:        ShapeDualSpeaker,
		SystemPrompt: sb.String(),
		SpeakerNames: []string{thin.Name, b.allyCard.Name},
	}
}

// writeScene appends the room description, the present-NPC roster minus the
// already-voiced names, and the time of day.
func (b *Builder) writeScene(sb *strings.Builder, voiced []string) {
	if b.room != nil {
		sb.WriteString("\n\n### Scene\n")
		if b.room.Name != "" {
			sb.WriteString("Location: " + b.room.Name + "\n")
		}
		if b.room.Description != "" {
			sb.WriteString(b.room.Description + "\n")
		}
		if roster := renderRoster(rosterExcluding(b.room, voiced)); roster != "" {
			sb.WriteString(roster + "\n")
		}
	}
	if b.clock != nil {
		fmt.Fprintf(sb, "\nIt is %s of day %d.\n", b.clock.Phase(), b.clock.CurrentDay)
	}
}

func (b *Builder) writeRelationship(sb *strings.Builder) {
	if b.rel == nil {
		return
	}
	fmt.Fprintf(sb, "\nThis character regards the player as a %s.\n",
		strings.ReplaceAll(string(b.rel.Tier), "_", " "))
}

func rosterExcluding(r *room.Room, voiced []string) []string {
	names := make([]string, 0, len(r.NPCs))
	for _, n := range r.NPCs {
		skip := false
		for _, v := range voiced {
			if n.Name == v {
				skip = true
				break
			}
		}
		if !skip {
			names = append(names, n.Name)
		}
	}
	return names
}
