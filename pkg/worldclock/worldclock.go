package worldclock

import (
	"time"
)

// Config controls day/time progression.
type Config struct {
	MessagesPerDay      int  `json:"messages_per_day"`
	EnableDayNightCycle bool `json:"enable_day_night_cycle"`
}

// DefaultMessagesPerDay is used when config omits a value.
const DefaultMessagesPerDay = 50

// State is the in-game clock, driven purely by message cadence.
type State struct {
	CurrentDay    int       `json:"current_day"`     // >= 1
	MessagesInDay int       `json:"messages_in_day"` // 0..MessagesPerDay
	TotalMessages int       `json:"total_messages"`  // monotonic
	TimeOfDay     float64   `json:"time_of_day"`     // 0..1
	LastMessageAt time.Time `json:"last_message_timestamp"`
}

// NewState returns the clock at dawn of day one.
func NewState() State {
	return State{CurrentDay: 1}
}

// Advance ticks the clock for one qualifying message and returns the new
// state plus whether a new day started. It is deterministic for identical
// inputs aside from the timestamp stamp. A rollover is atomic: day+1 and
// MessagesInDay reset happen on exactly one tick.
func Advance(s State, cfg Config, now time.Time) (State, bool) {
	if !cfg.EnableDayNightCycle {
		return s, false
	}

	perDay := cfg.MessagesPerDay
	if perDay <= 0 {
		perDay = DefaultMessagesPerDay
	}

	s.TotalMessages++
	s.MessagesInDay++
	s.LastMessageAt = now

	newDay := false
	if s.MessagesInDay >= perDay {
		s.CurrentDay++
		s.MessagesInDay = 0
		newDay = true
	}

	s.TimeOfDay = timeOfDay(s.MessagesInDay, perDay)
	return s, newDay
}

func timeOfDay(messagesInDay, perDay int) float64 {
	t := float64(messagesInDay) / float64(perDay)
	if t > 1 {
		t = 1
	}
	return t
}

// Phase names the part of the day for narration and prompt ambience.
func (s State) Phase() string {
	switch {
	case s.TimeOfDay < 0.25:
		return "morning"
	case s.TimeOfDay < 0.5:
		return "afternoon"
	case s.TimeOfDay < 0.75:
		return "evening"
	default:
		return "night"
	}
}
