package prompts

import (
	"strings"
	"testing"

	"github.com/hollowvale/companion-engine/pkg/card"
	"github.com/hollowvale/companion-engine/pkg/relationship"
	"github.com/hollowvale/companion-engine/pkg/room"
	"github.com/hollowvale/companion-engine/pkg/worldclock"
)

func testRoom() *room.Room {
	return &room.Room{
		ID:          "harbor",
		Name:        "Moonlit Harbor",
		Description: "Lanterns sway over quiet piers.",
		NPCs: []room.NPC{
			{ID: "npc-mira", Name: "Mira"},
			{ID: "npc-rex", Name: "Rex"},
			{ID: "npc-old-salt", Name: "Old Salt"},
		},
	}
}

func fullCard(id, name string) *card.CharacterCard {
	return &card.CharacterCard{
		ID:          id,
		Name:        name,
		Description: name + " is a wanderer.",
		Personality: "wry, loyal",
		Scenario:    "Fled the capital years ago.",
		Lore: []card.LoreEntry{
			{Content: name + " once served in the border watch."},
		},
		ExampleDialog: []string{name + `: "Keep your eyes open."`},
	}
}

func TestBuild_Ambient(t *testing.T) {
	ctx := New().
		WithWorldName("Hollowvale").
		WithRoom(testRoom()).
		Build()

	if ctx.Shape != ShapeAmbient {
		t.Fatalf("expected ambient shape, got %s", ctx.Shape)
	}
	if !strings.Contains(ctx.SystemPrompt, "Hollowvale") {
		t.Error("expected world name in ambient prompt")
	}
	if !strings.Contains(ctx.SystemPrompt, "Lanterns sway") {
		t.Error("expected room description injected")
	}
	if len(ctx.SpeakerNames) != 0 {
		t.Error("ambient shape voices no named speakers")
	}
}

func TestBuild_Companion(t *testing.T) {
	ctx := New().
		WithRoom(testRoom()).
		WithAllyCard(fullCard("npc-rex", "Rex")).
		Build()

	if ctx.Shape != ShapeCompanion {
		t.Fatalf("expected companion shape, got %s", ctx.Shape)
	}
	// Full weight: lore and example dialog included.
	if !strings.Contains(ctx.SystemPrompt, "border watch") {
		t.Error("expected ally lore in companion prompt")
	}
	if !strings.Contains(ctx.SystemPrompt, "Example dialogue") {
		t.Error("expected example dialog in companion prompt")
	}
	// Roster present, minus the voiced ally.
	if !strings.Contains(ctx.SystemPrompt, "Mira") || !strings.Contains(ctx.SystemPrompt, "Old Salt") {
		t.Error("expected present-NPC roster injected")
	}
	if strings.Contains(ctx.SystemPrompt, "Also present: Rex") {
		t.Error("voiced ally must not appear in the roster")
	}
	if len(ctx.SpeakerNames) != 1 || ctx.SpeakerNames[0] != "Rex" {
		t.Errorf("expected single speaker Rex, got %v", ctx.SpeakerNames)
	}
}

func TestBuild_Encounter_Thin(t *testing.T) {
	ctx := New().
		WithRoom(testRoom()).
		WithTargetCard(fullCard("npc-mira", "Mira")).
		Build()

	if ctx.Shape != ShapeEncounter {
		t.Fatalf("expected encounter shape, got %s", ctx.Shape)
	}
	// Thin card: lore and examples stripped.
	if strings.Contains(ctx.SystemPrompt, "border watch") {
		t.Error("encounter prompt must strip lore")
	}
	if strings.Contains(ctx.SystemPrompt, "Example dialogue") {
		t.Error("encounter prompt must strip example dialog")
	}
	if !strings.Contains(ctx.SystemPrompt, "Mira is a wanderer.") {
		t.Error("expected short description retained")
	}
}

func TestBuild_DualSpeaker(t *testing.T) {
	ctx := New().
		WithRoom(testRoom()).
		WithAllyCard(fullCard("npc-rex", "Rex")).
		WithTargetCard(fullCard("npc-mira", "Mira")).
		Build()

	if ctx.Shape != ShapeDualSpeaker {
		t.Fatalf("expected dual-speaker shape, got %s", ctx.Shape)
	}
	if len(ctx.SpeakerNames) != 2 || ctx.SpeakerNames[0] != "Mira" || ctx.SpeakerNames[1] != "Rex" {
		t.Errorf("expected speakers [Mira Rex], got %v", ctx.SpeakerNames)
	}
	// Target thin, ally full.
	if strings.Contains(ctx.SystemPrompt, "Mira once served") {
		t.Error("target lore must be stripped in dual-speaker prompt")
	}
	if !strings.Contains(ctx.SystemPrompt, "Rex once served") {
		t.Error("ally lore must be kept in dual-speaker prompt")
	}
	if !strings.Contains(ctx.SystemPrompt, "two characters at once") {
		t.Error("expected dual-speaker instruction")
	}
}

func TestBuild_ShapeSelection(t *testing.T) {
	ally := fullCard("npc-rex", "Rex")
	target := fullCard("npc-mira", "Mira")

	tests := []struct {
		name     string
		ally     *card.CharacterCard
		target   *card.CharacterCard
		expected Shape
	}{
		{"neither", nil, nil, ShapeAmbient},
		{"ally only", ally, nil, ShapeCompanion},
		{"target only", nil, target, ShapeEncounter},
		{"both", ally, target, ShapeDualSpeaker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := New().WithAllyCard(tt.ally).WithTargetCard(tt.target).Build()
			if ctx.Shape != tt.expected {
				t.Errorf("expected shape %s, got %s", tt.expected, ctx.Shape)
			}
		})
	}
}

func TestBuild_ClockAndRelationship(t *testing.T) {
	clock := &worldclock.State{CurrentDay: 4, TimeOfDay: 0.8}
	rel := relationship.New("npc-mira")
	rel.Affinity = 65
	rel.Tier = relationship.TierFor(rel.Affinity)

	ctx := New().
		WithTargetCard(fullCard("npc-mira", "Mira")).
		WithClock(clock).
		WithRelationship(&rel).
		Build()

	if !strings.Contains(ctx.SystemPrompt, "night of day 4") {
		t.Error("expected time-of-day ambience in prompt")
	}
	if !strings.Contains(ctx.SystemPrompt, "regards the player as a friend") {
		t.Error("expected relationship tier in prompt")
	}
}
