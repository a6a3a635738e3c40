package relationship

import (
	"time"
)

// Tier is the named band derived from affinity. It is never stored
// independently of affinity; update functions recompute it.
type Tier string

const (
	TierHostile      Tier = "hostile"
	TierStranger     Tier = "stranger"
	TierAcquaintance Tier = "acquaintance"
	TierFriend       Tier = "friend"
	TierBestFriend   Tier = "best_friend"
)

const (
	MinAffinity = 0
	MaxAffinity = 100

	// DefaultAffinity is the starting score for a newly met NPC.
	DefaultAffinity = 20

	// HistoryLimit bounds the sliding sentiment window.
	HistoryLimit = 10
)

// Relationship tracks a single NPC's favor toward the player.
// All fields are plain JSON-serializable values owned by the session's
// progress store.
type Relationship struct {
	NPCID                 string          `json:"npc_uuid"`
	Affinity              int             `json:"affinity"`
	Tier                  Tier            `json:"tier"`
	LastInteraction       time.Time       `json:"last_interaction"`
	TotalInteractions     int             `json:"total_interactions"`
	Flags                 map[string]bool `json:"flags,omitempty"`
	SentimentHistory      []float64       `json:"sentiment_history,omitempty"`
	MessagesSinceLastGain int             `json:"messages_since_last_gain"`
	LastSentimentGain     time.Time       `json:"last_sentiment_gain,omitempty"`
	AffinityGainedToday   int             `json:"affinity_gained_today"`
	AffinityDayStarted    int             `json:"affinity_day_started"`
}

// New creates a default relationship for an NPC met for the first time.
func New(npcID string) Relationship {
	return Relationship{
		NPCID:    npcID,
		Affinity: DefaultAffinity,
		Tier:     TierFor(DefaultAffinity),
	}
}

// TierFor maps an affinity score to its band. The mapping is a monotonic
// step function over five bands.
func TierFor(affinity int) Tier {
	switch {
	case affinity < 20:
		return TierHostile
	case affinity < 40:
		return TierStranger
	case affinity < 60:
		return TierAcquaintance
	case affinity < 80:
		return TierFriend
	default:
		return TierBestFriend
	}
}

func clampAffinity(a int) int {
	if a < MinAffinity {
		return MinAffinity
	}
	if a > MaxAffinity {
		return MaxAffinity
	}
	return a
}

// UpdateAffinity applies a delta and returns the updated copy. The result
// is clamped to [0,100], the tier recomputed, interaction counters bumped.
func UpdateAffinity(rel Relationship, delta int) Relationship {
	rel.Affinity = clampAffinity(rel.Affinity + delta)
	rel.Tier = TierFor(rel.Affinity)
	rel.TotalInteractions++
	rel.LastInteraction = time.Now()
	return rel
}

// CanGainToday reports whether the NPC may still gain affinity on the given
// day. A day change implies the daily counter is stale and will reset.
func CanGainToday(rel Relationship, day, cap int) bool {
	if day != rel.AffinityDayStarted {
		return true
	}
	return rel.AffinityGainedToday < cap
}

// AvailableGain returns how much of the requested delta fits under the
// daily cap. On a day change the whole cap is available again.
func AvailableGain(rel Relationship, requested, day, cap int) int {
	if day != rel.AffinityDayStarted {
		return min(requested, cap)
	}
	return max(0, min(requested, cap-rel.AffinityGainedToday))
}

// AppendSentiment pushes a valence reading into the bounded sliding window
// and returns the updated copy.
func AppendSentiment(rel Relationship, valence float64) Relationship {
	history := make([]float64, 0, len(rel.SentimentHistory)+1)
	history = append(history, rel.SentimentHistory...)
	history = append(history, valence)
	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}
	rel.SentimentHistory = history
	return rel
}

// ResetDaily zeroes the daily gain counter for a new day and returns the
// updated copy.
func ResetDaily(rel Relationship, day int) Relationship {
	rel.AffinityGainedToday = 0
	rel.AffinityDayStarted = day
	return rel
}
