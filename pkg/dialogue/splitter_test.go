package dialogue

import (
	"testing"

	"github.com/hollowvale/companion-engine/pkg/chat"
)

func completed(content string) chat.Message {
	return chat.NewMessage(chat.ChatRoleAssistant, content)
}

func TestSplit_AllyInterjection(t *testing.T) {
	s := NewSplitter()
	msg := completed(`Mira: Welcome. [Rex interjects] Watch your step.`)

	out, split := s.Split(msg, "Mira", "Rex")
	if !split {
		t.Fatal("expected split")
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out))
	}
	if out[0].Metadata[chat.MetaSpeakerName] != "Mira" {
		t.Errorf("expected first segment attributed to Mira, got %s", out[0].Metadata[chat.MetaSpeakerName])
	}
	if out[0].Content != "Welcome." {
		t.Errorf("unexpected first segment content: %q", out[0].Content)
	}
	if out[1].Metadata[chat.MetaSpeakerName] != "Rex" {
		t.Errorf("expected second segment attributed to Rex, got %s", out[1].Metadata[chat.MetaSpeakerName])
	}
	if out[1].Content != "Watch your step." {
		t.Errorf("unexpected second segment content: %q", out[1].Content)
	}
	// Timestamp provenance preserved.
	for _, m := range out {
		if !m.Timestamp.Equal(msg.Timestamp) {
			t.Error("expected original timestamp preserved")
		}
	}
}

func TestSplit_LabeledLines(t *testing.T) {
	s := NewSplitter()
	msg := completed("Mira: \"The tide is out tonight.\"\nRex: \"And the fog is in.\"\nMira: \"Stay close.\"")

	out, split := s.Split(msg, "Mira", "Rex")
	if !split {
		t.Fatal("expected split")
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	want := []string{"Mira", "Rex", "Mira"}
	for i, m := range out {
		if m.Metadata[chat.MetaSpeakerName] != want[i] {
			t.Errorf("segment %d: expected speaker %s, got %s", i, want[i], m.Metadata[chat.MetaSpeakerName])
		}
	}
}

func TestSplit_SingleSegmentUntouched(t *testing.T) {
	s := NewSplitter()
	msg := completed("Mira: The harbor is quiet tonight.")

	out, split := s.Split(msg, "Mira", "Rex")
	if split {
		t.Error("single-speaker reply must not split")
	}
	if len(out) != 1 || out[0].ID != msg.ID {
		t.Error("expected original message returned untouched")
	}
}

func TestSplit_NoMarkersUntouched(t *testing.T) {
	s := NewSplitter()
	msg := completed("The stranger shrugs and looks away.")

	out, split := s.Split(msg, "Mira", "Rex")
	if split {
		t.Error("unmarked reply must not split")
	}
	if len(out) != 1 || out[0].Content != msg.Content {
		t.Error("expected original message returned untouched")
	}
}

func TestSplit_Idempotent(t *testing.T) {
	s := NewSplitter()
	msg := completed(`Mira: Hello. [Rex interjects] Hmph.`)

	_, split := s.Split(msg, "Mira", "Rex")
	if !split {
		t.Fatal("expected first parse to split")
	}
	out, split := s.Split(msg, "Mira", "Rex")
	if split {
		t.Error("a message id must never be reprocessed")
	}
	if len(out) != 1 || out[0].ID != msg.ID {
		t.Error("expected original message on reprocess")
	}
}

func TestSplit_StreamingSkipped(t *testing.T) {
	s := NewSplitter()
	msg := chat.NewStreamingMessage(chat.ChatRoleAssistant)
	msg.Content = `Mira: Hello. [Rex interjects] Hmph.`

	_, split := s.Split(msg, "Mira", "Rex")
	if split {
		t.Error("streaming messages must not be parsed")
	}
	if s.Processed(msg.ID) {
		t.Error("streaming messages must not be marked processed")
	}
}

func TestSplit_SystemRoleSkipped(t *testing.T) {
	s := NewSplitter()
	msg := chat.Narration(chat.TypeNarration, "*Rex joins you.*")

	_, split := s.Split(msg, "Mira", "Rex")
	if split {
		t.Error("system messages must not be parsed")
	}
}

func TestSplit_CaseInsensitiveNames(t *testing.T) {
	s := NewSplitter()
	msg := completed(`mira: Fine weather. [REX grumbles] Too bright.`)

	out, split := s.Split(msg, "Mira", "Rex")
	if !split {
		t.Fatal("expected case-insensitive match to split")
	}
	if out[0].Metadata[chat.MetaSpeakerName] != "Mira" || out[1].Metadata[chat.MetaSpeakerName] != "Rex" {
		t.Errorf("expected canonical spellings, got %s / %s",
			out[0].Metadata[chat.MetaSpeakerName], out[1].Metadata[chat.MetaSpeakerName])
	}
}

func TestSplit_AdjacentSameSpeakerMerged(t *testing.T) {
	s := NewSplitter()
	msg := completed("Mira: One. Mira: Two. [Rex interjects] Three.")

	out, split := s.Split(msg, "Mira", "Rex")
	if !split {
		t.Fatal("expected split")
	}
	if len(out) != 2 {
		t.Fatalf("expected adjacent same-speaker segments merged, got %d", len(out))
	}
	if out[0].Content != "One. Two." {
		t.Errorf("unexpected merged content: %q", out[0].Content)
	}
}
