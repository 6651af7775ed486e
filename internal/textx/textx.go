// Package textx holds the small text helpers the posts service uses for
// excerpts and reading-time estimates.
package textx

import (
	"strings"
	"unicode"
)

// wordsPerMinute is the assumed reading speed for estimates.
const wordsPerMinute = 200

// StripHTML removes tags from markup and returns the remaining text with
// runs of whitespace collapsed to single spaces. It is a display helper for
// excerpts, not a sanitizer: the output must never be re-interpreted as
// HTML.
func StripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			// A tag acts as a word boundary: "<p>a</p><p>b</p>" reads "a b".
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return collapseSpace(b.String())
}

// CountWords counts whitespace-separated words.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// ReadingTimeMinutes estimates reading time at 200 words per minute,
// rounding up and never reporting less than one minute for non-empty text.
func ReadingTimeMinutes(s string) int {
	words := CountWords(s)
	if words == 0 {
		return 0
	}
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// Excerpt strips markup from content and truncates the text to at most n
// runes, appending an ellipsis when something was cut. Truncation happens on
// a word boundary when one exists near the limit.
func Excerpt(content string, n int) string {
	text := StripHTML(content)
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}

	cut := n
	for i := n; i > n/2; i-- {
		if unicode.IsSpace(runes[i-1]) {
			cut = i - 1
			break
		}
	}
	return strings.TrimRight(string(runes[:cut]), " ") + "…"
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
