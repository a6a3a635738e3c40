package prompts

import (
	"fmt"
	"strings"

	"github.com/hollowvale/companion-engine/pkg/card"
)

// Shape identifies which of the four prompt-context forms was composed.
// Exactly one shape applies at a time, selected purely by which optional
// NPC references are populated.
type Shape string

const (
	// ShapeAmbient is the base world card with the current room injected.
	// No conversation target, no bonded ally.
	ShapeAmbient Shape = "ambient"
	// ShapeCompanion is the full bonded-ally card with room description
	// and present-NPC roster. Long-form lore included.
	ShapeCompanion Shape = "companion"
	// ShapeEncounter is the thin conversation-target card, lore-stripped
	// to keep non-recruited small talk cheap.
	ShapeEncounter Shape = "encounter"
	// ShapeDualSpeaker merges the thin target card with the full ally
	// card, instructing the model to voice two named speakers.
	ShapeDualSpeaker Shape = "dual_speaker"
)

// BaseWorldPrompt frames ambient narration when no NPC is engaged.
const BaseWorldPrompt = `You are the narrator of %s, an exploration roleplay. Describe the world as the player moves through it. Keep responses to 1-3 short paragraphs. Never speak for the player.`

// CompanionPrompt frames a single bonded ally conversation.
const CompanionPrompt = `You are roleplaying %s, the player's trusted companion. Stay in character at all times. Speak in first person as %s. Never speak for the player, and never break the fourth wall.`

// EncounterPrompt frames small talk with a stranger the player approached.
const EncounterPrompt = `You are roleplaying %s, a stranger the player has approached. Stay in character. Keep replies brief and guarded; this character does not yet know the player. Never speak for the player.`

// DualSpeakerPrompt instructs the model to voice both characters in one
// completion, each line attributed by name.
const DualSpeakerPrompt = `You are roleplaying two characters at once: %s, a stranger the player is talking to, and %s, the player's companion who is present. When a character speaks, begin the line with their name and a colon, e.g. %s: "..." The companion may interject naturally. Never speak for the player.`

// Context is the composed prompt context consumed by the generation
// pipeline. It is built atomically by the Builder; downstream code never
// observes a partially composed value.
type Context struct {
	Shape        Shape
	SystemPrompt string
	// SpeakerNames lists the characters the model voices, in attribution
	// order (target first in dual-speaker shape).
	SpeakerNames []string
}

// renderCard flattens a character card into prompt text. Thin cards carry
// no lore or example dialog.
func renderCard(c card.CharacterCard) string {
	var sb strings.Builder
	sb.WriteString("### " + c.Name + "\n")
	if c.Description != "" {
		sb.WriteString(c.Description + "\n")
	}
	if c.Personality != "" {
		sb.WriteString("Personality: " + c.Personality + "\n")
	}
	if c.SpeechStyle != "" {
		sb.WriteString("Speech style: " + c.SpeechStyle + "\n")
	}
	if c.Scenario != "" {
		sb.WriteString("Background: " + c.Scenario + "\n")
	}
	for _, lore := range c.Lore {
		sb.WriteString("Lore: " + lore.Content + "\n")
	}
	if len(c.ExampleDialog) > 0 {
		sb.WriteString("Example dialogue:\n")
		for _, ex := range c.ExampleDialog {
			sb.WriteString(ex + "\n")
		}
	}
	return sb.String()
}

func renderRoster(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return fmt.Sprintf("Also present: %s.", strings.Join(names, ", "))
}
