package display

import (
	"sort"

	"github.com/ebarkley/versewise/internal/mastery"
	"github.com/ebarkley/versewise/internal/textseq"
)

// HintKind is the shape of assistance offered for a stuck word.
type HintKind int

const (
	// HintLetter reveals the first letter.
	HintLetter HintKind = iota

	// HintPartial reveals the first half of the word.
	HintPartial

	// HintContext reveals the surrounding words instead of the word itself.
	HintContext

	// HintFull reveals the whole word.
	HintFull
)

// String returns the kind's wire name.
func (k HintKind) String() string {
	switch k {
	case HintLetter:
		return "letter"
	case HintPartial:
		return "partial"
	case HintContext:
		return "context"
	case HintFull:
		return "full"
	}
	return "unknown"
}

// Level maps the kind onto the current word's hint layer level.
func (k HintKind) Level() int {
	switch k {
	case HintLetter:
		return 1
	case HintPartial:
		return 2
	case HintFull:
		return 3
	}
	return 0
}

// ChooseHint picks the hint kind for a stuck word. Very short words are
// revealed outright, known problem words get context so their surroundings
// anchor recall, repeated failed attempts earn a half-word reveal, and the
// first nudge is just the opening letter.
func ChooseHint(word string, attempts int, problemWord bool) HintKind {
	switch {
	case len([]rune(word)) <= 3:
		return HintFull
	case problemWord:
		return HintContext
	case attempts >= 2:
		return HintPartial
	default:
		return HintLetter
	}
}

// SelectRecallWords picks the hardest fraction of words for a delayed
// recall round: lowest mastery first, with problem words boosted to the
// front. fraction is clamped to (0, 1]; the result holds at least one
// index when tokens is non-empty, in ascending token order.
func SelectRecallWords(tokens []textseq.WordToken, snapshot map[int]mastery.Record, fraction float64) []int {
	if len(tokens) == 0 {
		return nil
	}
	if fraction <= 0 || fraction > 1 {
		fraction = 0.3
	}

	order := make([]int, len(tokens))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := snapshot[order[a]], snapshot[order[b]]
		if ra.IsProblemWord != rb.IsProblemWord {
			return ra.IsProblemWord
		}
		return ra.Mastery < rb.Mastery
	})

	count := int(fraction * float64(len(tokens)))
	if count < 1 {
		count = 1
	}
	picked := append([]int(nil), order[:count]...)
	sort.Ints(picked)
	return picked
}
