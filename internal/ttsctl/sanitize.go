package ttsctl

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	urlPattern       = regexp.MustCompile(`https?://\S+|www\.\S+`)
	mdEmphasisMarks  = regexp.MustCompile("(\\*\\*\\*|\\*\\*|\\*|___|__|_|~~|`{1,3})")
	mdHeaderMark     = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	ellipsisRun      = regexp.MustCompile(`\.{3,}|\x{2026}`)
	quoteBracketRune = regexp.MustCompile("[“”„‟«»\"()\\[\\]{}]")
	whitespaceRun    = regexp.MustCompile(`\s+`)
	spaceBeforePunct = regexp.MustCompile(`\s+([,.!?:;])`)
	punctNoSpace     = regexp.MustCompile(`([,.!?:;])([^\s,.!?:;])`)
)

// Sanitize prepares raw text for speech synthesis: NFKC-normalizes, unifies
// curly quotes into a plain apostrophe, strips URLs and Markdown emphasis,
// collapses ellipses and dot runs, removes typographic quote/bracket marks,
// and compresses whitespace and punctuation spacing.
func Sanitize(text string) string {
	text = norm.NFKC.String(text)
	text = unifyCurlyQuotes(text)
	text = urlPattern.ReplaceAllString(text, "")
	text = mdHeaderMark.ReplaceAllString(text, "")
	text = mdEmphasisMarks.ReplaceAllString(text, "")
	text = ellipsisRun.ReplaceAllString(text, ".")
	text = quoteBracketRune.ReplaceAllString(text, "")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = punctNoSpace.ReplaceAllString(text, "$1 $2")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func unifyCurlyQuotes(s string) string {
	r := strings.NewReplacer(
		"‘", "'", // left single quotation mark
		"’", "'", // right single quotation mark
		"‚", "'", // single low-9 quotation mark
		"‛", "'", // single high-reversed-9 quotation mark
	)
	return r.Replace(s)
}
