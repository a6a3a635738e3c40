package state

import (
	"testing"

	"github.com/google/uuid"

	"github.com/hollowvale/companion-engine/pkg/chat"
)

func TestNewSessionState(t *testing.T) {
	s := NewSessionState()
	if s.ID == uuid.Nil {
		t.Error("expected a session id")
	}
	if s.Clock.CurrentDay != 1 {
		t.Errorf("expected day 1, got %d", s.Clock.CurrentDay)
	}
	if s.InConversation() || s.HasBondedAlly() || s.DualSpeaker() {
		t.Error("fresh session should have no active NPC references")
	}
}

func TestMessageLookup(t *testing.T) {
	s := NewSessionState()
	a := chat.NewMessage(chat.ChatRoleUser, "one")
	b := chat.NewMessage(chat.ChatRoleAssistant, "two")
	s.Append(a, b)

	idx, m := s.Message(b.ID)
	if idx != 1 || m == nil || m.Content != "two" {
		t.Errorf("expected to find message at index 1, got %d %v", idx, m)
	}

	idx, m = s.Message(uuid.New())
	if idx != -1 || m != nil {
		t.Error("expected miss for unknown id")
	}
}

func TestReplaceAt(t *testing.T) {
	s := NewSessionState()
	s.Append(
		chat.NewMessage(chat.ChatRoleUser, "before"),
		chat.NewMessage(chat.ChatRoleAssistant, "combined"),
		chat.NewMessage(chat.ChatRoleUser, "after"),
	)

	parts := []chat.Message{
		chat.NewMessage(chat.ChatRoleAssistant, "first"),
		chat.NewMessage(chat.ChatRoleAssistant, "second"),
	}
	s.ReplaceAt(1, parts)

	if len(s.Timeline) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(s.Timeline))
	}
	want := []string{"before", "first", "second", "after"}
	for i, w := range want {
		if s.Timeline[i].Content != w {
			t.Errorf("timeline[%d] = %q, want %q", i, s.Timeline[i].Content, w)
		}
	}
}

func TestReplaceAtBounds(t *testing.T) {
	s := NewSessionState()
	s.Append(chat.NewMessage(chat.ChatRoleUser, "only"))

	s.ReplaceAt(-1, []chat.Message{chat.NewMessage(chat.ChatRoleUser, "x")})
	s.ReplaceAt(5, []chat.Message{chat.NewMessage(chat.ChatRoleUser, "x")})
	s.ReplaceAt(0, nil)

	if len(s.Timeline) != 1 || s.Timeline[0].Content != "only" {
		t.Error("out of range or empty replacements must not modify the timeline")
	}
}

func TestDualSpeaker(t *testing.T) {
	s := NewSessionState()
	s.ConversingID = "npc-a"
	if s.DualSpeaker() {
		t.Error("conversing alone is not dual-speaker")
	}
	s.BondedID = "npc-b"
	if !s.DualSpeaker() {
		t.Error("both references populated should be dual-speaker")
	}
}
