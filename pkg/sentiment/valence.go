package sentiment

import (
	"strings"
)

// Fallback valence estimation for sessions with no external emotion hook.
// Weighted keyword scoring; differentiated weights reduce false positives
// from throwaway politeness.

type weightedKeyword struct {
	keyword string
	weight  float64
}

var positiveKeywords = []weightedKeyword{
	{keyword: "thank you", weight: 0.5},
	{keyword: "wonderful", weight: 0.5},
	{keyword: "beautiful", weight: 0.4},
	{keyword: "love", weight: 0.4},
	{keyword: "friend", weight: 0.4},
	{keyword: "amazing", weight: 0.4},
	{keyword: "thanks", weight: 0.3},
	{keyword: "great", weight: 0.3},
	{keyword: "nice", weight: 0.2},
	{keyword: "good", weight: 0.2},
	{keyword: "please", weight: 0.1},
}

var negativeKeywords = []weightedKeyword{
	{keyword: "hate", weight: 0.6},
	{keyword: "useless", weight: 0.5},
	{keyword: "shut up", weight: 0.5},
	{keyword: "stupid", weight: 0.5},
	{keyword: "liar", weight: 0.4},
	{keyword: "leave me alone", weight: 0.4},
	{keyword: "annoying", weight: 0.4},
	{keyword: "boring", weight: 0.3},
	{keyword: "whatever", weight: 0.2},
	{keyword: "no.", weight: 0.1},
}

// EstimateValence scores a player message into [-1,1]. Returns the valence
// and whether any keyword matched at all; callers should treat a false
// second value as "no signal" rather than neutral sentiment.
func EstimateValence(text string) (float64, bool) {
	lower := strings.ToLower(text)

	var score float64
	matched := false
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw.keyword) {
			score += kw.weight
			matched = true
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw.keyword) {
			score -= kw.weight
			matched = true
		}
	}
	if !matched {
		return 0, false
	}

	// Exclamation boost: repeated emphasis amplifies whichever direction
	// the keywords landed on, capped at +0.2.
	if exclam := strings.Count(text, "!"); exclam >= 2 {
		boost := float64(exclam) * 0.1
		if boost > 0.2 {
			boost = 0.2
		}
		if score > 0 {
			score += boost
		} else if score < 0 {
			score -= boost
		}
	}

	return clampValence(score), true
}
