package sentiment

import (
	"strings"
	"testing"

	"github.com/hollowvale/companion-engine/pkg/chat"
	"github.com/hollowvale/companion-engine/pkg/relationship"
)

func signal(v float64) *Signal {
	return &Signal{Valence: v}
}

func TestObserve_NilSignalIsNoOp(t *testing.T) {
	tr := NewTracker(Config{}, nil)
	store := relationship.NewStore()

	_, gained := tr.Observe(store, "npc-1", "Mira", nil, 1)
	if gained {
		t.Error("nil signal should never grant a gain")
	}

	rel, ok := store.Get("npc-1")
	if !ok {
		t.Fatal("expected relationship created lazily")
	}
	if rel.Affinity != relationship.DefaultAffinity {
		t.Errorf("expected default affinity, got %d", rel.Affinity)
	}
	if rel.MessagesSinceLastGain != 1 {
		t.Errorf("expected message counter ticked, got %d", rel.MessagesSinceLastGain)
	}
}

func TestObserve_GainAfterCooldown(t *testing.T) {
	tr := NewTracker(Config{Cooldown: 3, DailyCap: 60}, nil)
	store := relationship.NewStore()

	var msg chat.Message
	var gained bool
	for i := 0; i < 3; i++ {
		msg, gained = tr.Observe(store, "npc-1", "Mira", signal(0.9), 1)
	}
	if !gained {
		t.Fatal("expected gain after cooldown messages of strong sentiment")
	}
	if msg.Role != chat.ChatRoleSystem {
		t.Errorf("expected system notice, got role %s", msg.Role)
	}
	if !strings.Contains(msg.Content, "Mira") || !strings.Contains(msg.Content, "+") {
		t.Errorf("unexpected notice content: %s", msg.Content)
	}
	if msg.Metadata[chat.MetaNPCID] != "npc-1" {
		t.Errorf("expected npc id metadata, got %v", msg.Metadata)
	}

	rel, _ := store.Get("npc-1")
	if rel.Affinity <= relationship.DefaultAffinity {
		t.Errorf("expected affinity to rise, got %d", rel.Affinity)
	}
	if rel.MessagesSinceLastGain != 0 {
		t.Error("expected message counter reset after gain")
	}
	if len(rel.SentimentHistory) != 0 {
		t.Error("expected sentiment window reset after gain")
	}
	if rel.AffinityGainedToday == 0 {
		t.Error("expected daily counter bumped")
	}
}

func TestObserve_CooldownBlocksImmediateRetrigger(t *testing.T) {
	tr := NewTracker(Config{Cooldown: 3, DailyCap: 60}, nil)
	store := relationship.NewStore()

	for i := 0; i < 3; i++ {
		tr.Observe(store, "npc-1", "Mira", signal(0.9), 1)
	}
	// Immediately after a gain the counter is zero; strong sentiment
	// must not grant again until the cooldown elapses.
	_, gained := tr.Observe(store, "npc-1", "Mira", signal(0.9), 1)
	if gained {
		t.Error("expected cooldown to block the next gain")
	}
}

func TestObserve_DailyCap(t *testing.T) {
	tr := NewTracker(Config{Cooldown: 1, DailyCap: 5}, nil)
	store := relationship.NewStore()

	rel := store.GetOrCreate("npc-1")
	rel.AffinityGainedToday = 5
	rel.AffinityDayStarted = 1
	rel.MessagesSinceLastGain = 10
	store.Set(rel)

	_, gained := tr.Observe(store, "npc-1", "Mira", signal(0.9), 1)
	if gained {
		t.Error("expected daily cap to block the gain")
	}

	// A new day frees the cap again.
	rel, _ = store.Get("npc-1")
	rel.MessagesSinceLastGain = 10
	store.Set(rel)
	_, gained = tr.Observe(store, "npc-1", "Mira", signal(0.9), 2)
	if !gained {
		t.Error("expected gain on a new day")
	}
	rel, _ = store.Get("npc-1")
	if rel.AffinityDayStarted != 2 {
		t.Errorf("expected day started 2, got %d", rel.AffinityDayStarted)
	}
}

func TestObserve_NegativeSentiment(t *testing.T) {
	tr := NewTracker(Config{Cooldown: 1, DailyCap: 60}, nil)
	store := relationship.NewStore()

	rel := store.GetOrCreate("npc-1")
	rel.MessagesSinceLastGain = 5
	store.Set(rel)

	msg, changed := tr.Observe(store, "npc-1", "Mira", signal(-0.9), 1)
	if !changed {
		t.Fatal("expected negative delta to apply")
	}
	if !strings.Contains(msg.Content, "-") || !strings.Contains(msg.Content, "💔") {
		t.Errorf("unexpected notice for negative delta: %s", msg.Content)
	}
	rel, _ = store.Get("npc-1")
	if rel.Affinity >= relationship.DefaultAffinity {
		t.Errorf("expected affinity to drop, got %d", rel.Affinity)
	}
	if rel.AffinityGainedToday != 0 {
		t.Error("losses must not consume the daily gain cap")
	}
}

func TestObserve_WeakSentimentIgnored(t *testing.T) {
	tr := NewTracker(Config{Cooldown: 1, DailyCap: 60}, nil)
	store := relationship.NewStore()

	for i := 0; i < 10; i++ {
		_, gained := tr.Observe(store, "npc-1", "Mira", signal(0.05), 1)
		if gained {
			t.Fatal("weak sentiment should never grant a gain")
		}
	}
}

func TestWithScoreFunc(t *testing.T) {
	tr := NewTracker(Config{Cooldown: 1, DailyCap: 60}, nil).
		WithScoreFunc(func(rel relationship.Relationship) Result {
			return Result{ShouldGainAffinity: true, AffinityDelta: 7, Reason: "custom curve"}
		})
	store := relationship.NewStore()
	rel := store.GetOrCreate("npc-1")
	rel.MessagesSinceLastGain = 5
	store.Set(rel)

	msg, gained := tr.Observe(store, "npc-1", "Mira", signal(0.1), 1)
	if !gained {
		t.Fatal("expected custom curve to grant")
	}
	if !strings.Contains(msg.Content, "custom curve") {
		t.Errorf("expected custom reason in notice, got %s", msg.Content)
	}
	rel, _ = store.Get("npc-1")
	if rel.Affinity != relationship.DefaultAffinity+7 {
		t.Errorf("expected affinity 27, got %d", rel.Affinity)
	}
}

func TestDefaultScore_Bands(t *testing.T) {
	tests := []struct {
		name     string
		valence  float64
		expected int
	}{
		{"below threshold", 0.1, 0},
		{"mild", 0.3, 1},
		{"warm", 0.5, 2},
		{"strong", 0.7, 3},
		{"intense", 0.9, 5},
		{"mild negative", -0.3, -1},
		{"intense negative", -0.9, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel := relationship.New("npc-1")
			rel = relationship.AppendSentiment(rel, tt.valence)
			res := DefaultScore(rel)
			if res.AffinityDelta != tt.expected {
				t.Errorf("expected delta %d, got %d", tt.expected, res.AffinityDelta)
			}
			if tt.expected != 0 && !res.ShouldGainAffinity {
				t.Error("expected ShouldGainAffinity")
			}
		})
	}
}

func TestEstimateValence(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantSign  int
		wantMatch bool
	}{
		{"positive", "Thank you, that was wonderful!", 1, true},
		{"negative", "You are useless and boring.", -1, true},
		{"no signal", "Which way to the harbor?", 0, false},
		{"emphasis boost", "This is amazing!! Truly amazing!!", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := EstimateValence(tt.text)
			if ok != tt.wantMatch {
				t.Fatalf("expected match=%v, got %v", tt.wantMatch, ok)
			}
			switch {
			case tt.wantSign > 0 && v <= 0:
				t.Errorf("expected positive valence, got %f", v)
			case tt.wantSign < 0 && v >= 0:
				t.Errorf("expected negative valence, got %f", v)
			}
			if v < -1 || v > 1 {
				t.Errorf("valence out of range: %f", v)
			}
		})
	}
}
