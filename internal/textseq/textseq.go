// Package textseq turns reference text into an ordered sequence of word
// tokens with stable indices.
//
// Token indices are the keys used for long-term per-word tracking, so
// tokenization must be deterministic and idempotent: the same text always
// produces the same tokens at the same indices. Editing the reference text
// reindexes it and invalidates historical per-word data — an accepted
// limitation.
//
// Tokens keep their original surface form (including apostrophes and
// hyphens) for display. Characters outside [A-Za-z0-9'-] are stripped only
// at word boundaries; [Normalize] produces the lowercase comparison form
// used for matching.
package textseq

import (
	"errors"
	"strings"
	"unicode"
)

// ErrEmptyText is returned by Tokenize when the input contains no word tokens.
var ErrEmptyText = errors.New("textseq: text contains no words")

// WordToken is a single addressable word in the reference text.
// Immutable once the text is loaded.
type WordToken struct {
	// Index is the token's stable position, starting at 0.
	Index int

	// Text is the original surface form as it appeared in the source,
	// with boundary punctuation stripped.
	Text string

	// StartOffset and EndOffset delimit the token's surface form in the
	// raw input string (byte offsets, end exclusive).
	StartOffset int
	EndOffset   int
}

// Tokenize splits raw into an ordered sequence of word tokens.
// Whitespace separates tokens; punctuation attached to a word boundary is
// stripped while interior apostrophes and hyphens are kept ("don't",
// "well-known"). Returns [ErrEmptyText] when no tokens remain.
func Tokenize(raw string) ([]WordToken, error) {
	var tokens []WordToken

	i := 0
	for i < len(raw) {
		// Skip separator run.
		for i < len(raw) && isSeparator(raw[i]) {
			i++
		}
		if i >= len(raw) {
			break
		}

		start := i
		for i < len(raw) && !isSeparator(raw[i]) {
			i++
		}
		chunkStart, chunkEnd := trimBoundary(raw, start, i)
		if chunkStart >= chunkEnd {
			continue
		}

		tokens = append(tokens, WordToken{
			Index:       len(tokens),
			Text:        raw[chunkStart:chunkEnd],
			StartOffset: chunkStart,
			EndOffset:   chunkEnd,
		})
	}

	if len(tokens) == 0 {
		return nil, ErrEmptyText
	}
	return tokens, nil
}

// Normalize returns the lowercase comparison form of a word: boundary
// punctuation removed and everything outside letters, digits, apostrophes,
// and hyphens dropped.
func Normalize(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for _, r := range strings.ToLower(word) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "'-")
}

// Words returns just the surface forms of tokens, in order.
func Words(tokens []WordToken) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

// isSeparator reports whether c splits words. Word characters are
// [A-Za-z0-9'-]; everything else separates, so "fox." yields "fox" and
// "end.Start" yields two tokens.
func isSeparator(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return false
	case c == '\'' || c == '-':
		return false
	}
	// Multi-byte runes (accented letters etc.) are treated as word bytes so
	// they survive into the surface form.
	return c < 0x80
}

// trimBoundary strips leading and trailing apostrophes/hyphens from the
// chunk raw[start:end] so quoting ('tis stays, 'word' loses its quotes
// symmetrically only when they wrap the whole chunk) does not leak into
// surface forms.
func trimBoundary(raw string, start, end int) (int, int) {
	for start < end && (raw[start] == '\'' || raw[start] == '-') {
		// Keep a leading apostrophe when the chunk is not quote-wrapped
		// ("'tis"). Strip it when a matching trailing quote exists.
		if raw[start] == '\'' && (end-1 <= start || raw[end-1] != '\'') {
			break
		}
		start++
	}
	for start < end && (raw[end-1] == '\'' || raw[end-1] == '-') {
		end--
	}
	return start, end
}
