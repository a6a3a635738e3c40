package sentiment

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/hollowvale/companion-engine/pkg/chat"
	"github.com/hollowvale/companion-engine/pkg/relationship"
)

// Signal is one reading from the external emotion hook.
type Signal struct {
	Valence float64 `json:"valence"` // [-1,1]
	Arousal float64 `json:"arousal"`
}

// Result is a scoring decision for one tick.
type Result struct {
	ShouldGainAffinity bool
	AffinityDelta      int
	Reason             string
}

// ScoreFunc converts the sentiment window into an affinity decision.
// Implementations see the full relationship record, so they can honor the
// message cooldown and the daily counters. The exact curve is pluggable;
// the tracker enforces the cooldown and daily cap regardless.
type ScoreFunc func(rel relationship.Relationship) Result

// Config tunes the tracker's contracts.
type Config struct {
	// Cooldown is the minimum number of qualifying messages between
	// granted gains.
	Cooldown int
	// DailyCap limits total affinity gained per in-game day.
	DailyCap int
}

const (
	DefaultCooldown = 3
	DefaultDailyCap = 60
)

// Tracker converts emotion signals into capped affinity deltas and emits
// the system notices that narrate them.
type Tracker struct {
	score  ScoreFunc
	cfg    Config
	logger *slog.Logger
}

// NewTracker creates a tracker with the default scoring curve.
func NewTracker(cfg Config, logger *slog.Logger) *Tracker {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.DailyCap <= 0 {
		cfg.DailyCap = DefaultDailyCap
	}
	return &Tracker{
		score:  DefaultScore,
		cfg:    cfg,
		logger: logger,
	}
}

// WithScoreFunc swaps the scoring curve. Returns the tracker for chaining.
func (t *Tracker) WithScoreFunc(fn ScoreFunc) *Tracker {
	t.score = fn
	return t
}

// Observe runs one sentiment tick for the NPC. A nil signal is a no-op
// aside from the message counter. When a gain is accepted the relationship
// is updated in the store and a system notice message is returned.
func (t *Tracker) Observe(store *relationship.Store, npcID, npcName string, sig *Signal, currentDay int) (chat.Message, bool) {
	rel := store.GetOrCreate(npcID)
	rel.MessagesSinceLastGain++

	if sig == nil {
		store.Set(rel)
		return chat.Message{}, false
	}

	rel = relationship.AppendSentiment(rel, clampValence(sig.Valence))

	res := t.score(rel)
	if !res.ShouldGainAffinity || res.AffinityDelta == 0 {
		store.Set(rel)
		return chat.Message{}, false
	}

	// Cooldown since the last granted gain.
	if rel.MessagesSinceLastGain < t.cfg.Cooldown {
		store.Set(rel)
		return chat.Message{}, false
	}

	delta := res.AffinityDelta
	if delta > 0 {
		delta = relationship.AvailableGain(rel, delta, currentDay, t.cfg.DailyCap)
		if delta == 0 {
			store.Set(rel)
			return chat.Message{}, false
		}
	}

	if currentDay != rel.AffinityDayStarted {
		rel = relationship.ResetDaily(rel, currentDay)
	}

	rel = relationship.UpdateAffinity(rel, delta)
	if delta > 0 {
		rel.AffinityGainedToday += delta
	}
	rel.AffinityDayStarted = currentDay
	rel.MessagesSinceLastGain = 0
	rel.LastSentimentGain = rel.LastInteraction
	// Reset the window so one emotional beat does not retrigger.
	rel.SentimentHistory = nil
	store.Set(rel)

	if t.logger != nil {
		t.logger.Debug("Affinity changed",
			"npc", npcID,
			"delta", delta,
			"affinity", rel.Affinity,
			"tier", rel.Tier,
			"reason", res.Reason)
	}

	return noticeMessage(npcID, npcName, delta, rel.Tier, res.Reason), true
}

// noticeMessage formats the affinity system notice, e.g.
// "*Mira +3 💙 (warm conversation)*".
func noticeMessage(npcID, npcName string, delta int, tier relationship.Tier, reason string) chat.Message {
	sign := "+"
	if delta < 0 {
		sign = "-"
	}
	content := fmt.Sprintf("*%s %s%d %s (%s)*", npcName, sign, abs(delta), heartFor(delta, tier), reason)
	m := chat.Narration(chat.TypeAffinity, content)
	m = m.WithMeta(chat.MetaNPCID, npcID)
	m = m.WithMeta(chat.MetaSpeakerName, npcName)
	m = m.WithMeta(chat.MetaAffinityDelta, fmt.Sprintf("%+d", delta))
	m = m.WithMeta(chat.MetaReason, reason)
	return m
}

func heartFor(delta int, tier relationship.Tier) string {
	if delta < 0 {
		return "💔"
	}
	switch tier {
	case relationship.TierBestFriend:
		return "💖"
	case relationship.TierFriend:
		return "💗"
	default:
		return "💙"
	}
}

// DefaultScore bands the window's mean valence into small deltas. Weak
// sentiment yields nothing; stronger sentiment yields 1..5 points, signed
// by direction.
func DefaultScore(rel relationship.Relationship) Result {
	if len(rel.SentimentHistory) == 0 {
		return Result{}
	}

	var sum float64
	for _, v := range rel.SentimentHistory {
		sum += v
	}
	mean := sum / float64(len(rel.SentimentHistory))
	strength := math.Abs(mean)

	var delta int
	var reason string
	switch {
	case strength < 0.2:
		return Result{}
	case strength < 0.4:
		delta, reason = 1, "pleasant exchange"
	case strength < 0.6:
		delta, reason = 2, "warm conversation"
	case strength < 0.8:
		delta, reason = 3, "genuine connection"
	default:
		delta, reason = 5, "heartfelt moment"
	}

	if mean < 0 {
		switch {
		case strength < 0.4:
			reason = "awkward exchange"
		case strength < 0.8:
			reason = "hurtful words"
		default:
			reason = "deep offense"
		}
		delta = -delta
	}

	return Result{ShouldGainAffinity: true, AffinityDelta: delta, Reason: reason}
}

func clampValence(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
