package textfilter

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Cleanup for streamed completions. Streams can stop mid-sentence when a
// token budget runs out or a connection drops; finalization trims the
// dangling fragment instead of surfacing it.

var (
	sentenceEnd = regexp.MustCompile(`[.!?…]["')\]]?\s`)
	whitespace  = regexp.MustCompile(`[ \t]+`)
)

// terminalRunes end a sentence when they appear at the very end of the text.
const terminalRunes = `.!?…"')]*`

// TrimIncompleteSentence drops a trailing fragment that never reached a
// sentence terminator. Text that is a single unterminated fragment is kept
// as-is rather than reduced to nothing.
func TrimIncompleteSentence(text string) string {
	trimmed := strings.TrimRight(text, " \t\n")
	if trimmed == "" {
		return ""
	}

	last, _ := utf8.DecodeLastRuneInString(trimmed)
	if strings.ContainsRune(terminalRunes, last) {
		return trimmed
	}

	// Find the last full sentence boundary inside the text.
	locs := sentenceEnd.FindAllStringIndex(trimmed+" ", -1)
	if len(locs) == 0 {
		return trimmed
	}
	loc := locs[len(locs)-1]
	return strings.TrimRight(trimmed[:loc[1]], " ")
}

// CollapseWhitespace squeezes runs of spaces and tabs left behind by
// chunked token appends.
func CollapseWhitespace(text string) string {
	return whitespace.ReplaceAllString(text, " ")
}

// CloseEmphasis balances a dangling markdown emphasis marker. Narration
// lines are wrapped in single asterisks; a stream that dies mid-line leaves
// the opener unclosed.
func CloseEmphasis(text string) string {
	if strings.Count(text, "*")%2 == 1 {
		return text + "*"
	}
	return text
}

// FinalizeStreamed applies the full cleanup pass used when a streamed
// message is marked complete.
func FinalizeStreamed(text string) string {
	out := CollapseWhitespace(text)
	out = TrimIncompleteSentence(out)
	out = CloseEmphasis(out)
	return out
}
