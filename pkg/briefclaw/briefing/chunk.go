package briefing

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// SplitMessage splits text into chunks of at most limit bytes. Text within
// the limit is returned as a single chunk. Otherwise lines are packed
// greedily; each chunk keeps its trailing newlines, so joining the chunks
// reproduces text exactly. A single line longer than limit is the only case
// that gets broken, at rune boundaries.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		if cur.Len()+len(line) > limit {
			flush()
		}
		if len(line) <= limit {
			cur.WriteString(line)
			continue
		}
		pieces := splitRunes(line, limit)
		chunks = append(chunks, pieces[:len(pieces)-1]...)
		cur.WriteString(pieces[len(pieces)-1])
	}
	flush()
	return chunks
}

// splitRunes cuts s into pieces of at most limit bytes without splitting a
// UTF-8 sequence. A rune wider than limit becomes its own piece.
func splitRunes(s string, limit int) []string {
	var pieces []string
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			_, size := utf8.DecodeRuneInString(s)
			cut = size
		}
		pieces = append(pieces, s[:cut])
		s = s[cut:]
	}
	return append(pieces, s)
}

var (
	linkRe       = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	boldRe       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	starRe       = regexp.MustCompile(`\*([^*\n]+)\*`)
	underscoreRe = regexp.MustCompile(`(^|[^\w])_([^_\n]+)_`)
	codeRe       = regexp.MustCompile("`([^`]+)`")

	// Escaped markers are parked on private-use runes while the emphasis
	// patterns run, then restored as literal characters.
	escapeHide = strings.NewReplacer(`\_`, "\uE000", `\*`, "\uE001", "\\`", "\uE002", `\[`, "\uE003")
	escapeShow = strings.NewReplacer("\uE000", "_", "\uE001", "*", "\uE002", "`", "\uE003", "[")
)

// StripMarkup removes the rich-format control syntax so the document can
// be resent as plain text: links become "title (url)", emphasis and code
// markers are dropped, and backslash escapes are unwrapped.
func StripMarkup(text string) string {
	text = escapeHide.Replace(text)
	text = linkRe.ReplaceAllString(text, "$1 ($2)")
	text = codeRe.ReplaceAllString(text, "$1")
	text = boldRe.ReplaceAllString(text, "$1")
	text = starRe.ReplaceAllString(text, "$1")
	text = underscoreRe.ReplaceAllString(text, "$1$2")
	return escapeShow.Replace(text)
}
