package dialogue

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/hollowvale/companion-engine/pkg/chat"
)

// Splitter post-processes dual-speaker completions into separate attributed
// timeline messages. It is active only while both a conversation target and
// a bonded ally exist. Each message is parsed at most once; the processed
// set makes reprocessing a no-op.
type Splitter struct {
	processed map[uuid.UUID]struct{}
	fold      cases.Caser
}

// NewSplitter creates a splitter with an empty processed set.
func NewSplitter() *Splitter {
	return &Splitter{
		processed: make(map[uuid.UUID]struct{}),
		fold:      cases.Fold(),
	}
}

// segment is one attributed run of text inside a completion.
type segment struct {
	speaker string
	text    string
}

// Processed reports whether the message id has already been parsed.
func (s *Splitter) Processed(id uuid.UUID) bool {
	_, ok := s.processed[id]
	return ok
}

// Split parses a completed assistant message into per-speaker messages.
// speakers lists the legal names in attribution order (target first). The
// original message is returned untouched when it was already processed,
// is still streaming, contains no ally interjection, or yields a single
// segment. Replacement messages preserve the original timestamp so the
// timeline slot is stable.
func (s *Splitter) Split(msg chat.Message, speakers ...string) ([]chat.Message, bool) {
	if msg.Role != chat.ChatRoleAssistant || msg.Status != chat.StatusComplete {
		return []chat.Message{msg}, false
	}
	if s.Processed(msg.ID) {
		return []chat.Message{msg}, false
	}
	s.processed[msg.ID] = struct{}{}

	if len(speakers) < 2 {
		return []chat.Message{msg}, false
	}

	segments := s.parse(msg.Content, speakers)
	if len(segments) <= 1 {
		return []chat.Message{msg}, false
	}

	out := make([]chat.Message, 0, len(segments))
	for _, seg := range segments {
		m := chat.Message{
			ID:        uuid.New(),
			Role:      chat.ChatRoleAssistant,
			Content:   seg.text,
			Timestamp: msg.Timestamp,
			Status:    chat.StatusComplete,
		}
		m = m.WithMeta(chat.MetaType, chat.TypeSpeakerSplit)
		m = m.WithMeta(chat.MetaSpeakerName, seg.speaker)
		out = append(out, m)
	}
	return out, true
}

// markerPattern builds a regex matching either form of speaker handoff:
// a leading "Name:" label or a bracketed stage direction naming a speaker,
// e.g. "[Rex interjects]".
func markerPattern(speakers []string) *regexp.Regexp {
	quoted := make([]string, 0, len(speakers))
	for _, name := range speakers {
		quoted = append(quoted, regexp.QuoteMeta(name))
	}
	alt := strings.Join(quoted, "|")
	return regexp.MustCompile(`(?i)(?:^|\n|\s)(` + alt + `)\s*:\s*|\[\s*(` + alt + `)[^\]]*\]\s*`)
}

func (s *Splitter) parse(content string, speakers []string) []segment {
	re := markerPattern(speakers)
	locs := re.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return nil
	}

	var segments []segment
	current := speakers[0]

	// Text before the first marker belongs to the primary speaker.
	if lead := strings.TrimSpace(content[:locs[0][0]]); lead != "" {
		segments = append(segments, segment{speaker: current, text: lead})
	}

	for i, loc := range locs {
		name := submatch(content, loc, 1)
		if name == "" {
			name = submatch(content, loc, 2)
		}
		current = s.canonical(name, speakers)

		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		text := strings.TrimSpace(content[loc[1]:end])
		if text == "" {
			continue
		}
		if len(segments) > 0 && segments[len(segments)-1].speaker == current {
			segments[len(segments)-1].text += " " + text
			continue
		}
		segments = append(segments, segment{speaker: current, text: text})
	}

	return segments
}

func submatch(content string, loc []int, n int) string {
	start, end := loc[2*n], loc[2*n+1]
	if start < 0 {
		return ""
	}
	return content[start:end]
}

// canonical maps a case-insensitive match back to the declared spelling.
func (s *Splitter) canonical(name string, speakers []string) string {
	folded := s.fold.String(name)
	for _, sp := range speakers {
		if s.fold.String(sp) == folded {
			return sp
		}
	}
	return name
}
