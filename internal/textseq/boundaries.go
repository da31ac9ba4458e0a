package textseq

import "strings"

// Boundaries marks structural positions in a tokenized text.
// Both slices are indexed by token index and have the same length as the
// token sequence they were derived from.
type Boundaries struct {
	// SentenceStart is true for the first token of each sentence. Sentences
	// are delimited by '.', '!' or '?' in the raw text. Token 0 always
	// starts a sentence.
	SentenceStart []bool

	// ParagraphStart is true for the first token after a blank line.
	// Token 0 always starts a paragraph.
	ParagraphStart []bool
}

// DetectBoundaries derives sentence and paragraph boundaries for tokens
// previously produced by [Tokenize] from the same raw text.
func DetectBoundaries(raw string, tokens []WordToken) Boundaries {
	b := Boundaries{
		SentenceStart:  make([]bool, len(tokens)),
		ParagraphStart: make([]bool, len(tokens)),
	}
	if len(tokens) == 0 {
		return b
	}

	b.SentenceStart[0] = true
	b.ParagraphStart[0] = true

	for i := 1; i < len(tokens); i++ {
		gap := raw[tokens[i-1].EndOffset:tokens[i].StartOffset]
		if strings.ContainsAny(gap, ".!?") {
			b.SentenceStart[i] = true
		}
		if isParagraphGap(gap) {
			b.ParagraphStart[i] = true
			b.SentenceStart[i] = true
		}
	}
	return b
}

// Sentences groups token indices into per-sentence slices, in order.
func (b Boundaries) Sentences() [][]int {
	var groups [][]int
	for i := range b.SentenceStart {
		if b.SentenceStart[i] || len(groups) == 0 {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], i)
	}
	return groups
}

// isParagraphGap reports whether the inter-token text contains a blank line
// (two newlines with only horizontal whitespace between them).
func isParagraphGap(gap string) bool {
	newlines := 0
	for _, r := range gap {
		switch r {
		case '\n':
			newlines++
			if newlines >= 2 {
				return true
			}
		case ' ', '\t', '\r':
			// horizontal whitespace between the newlines is fine
		default:
			newlines = 0
		}
	}
	return false
}
