// Package display decides which words of the reference text are shown and
// which are blanked, and renders the classified spans the UI paints.
//
// A reveal strategy picks the hidden set from the mastery snapshot; the
// current word carries an independent hint layer that overrides the
// strategy for that one token. Every strategy is subject to the visibility
// floor: at least a configurable fraction of tokens (default 20%) stays
// visible, so the page never becomes an unsolvable blank. When a strategy's
// selection and the floor conflict, words are put back in selection order,
// favoring showing more rather than less.
package display

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/ebarkley/versewise/internal/mastery"
	"github.com/ebarkley/versewise/internal/textseq"
)

// Strategy selects how words are chosen for masking.
type Strategy string

const (
	// StrategyProgressive hides a growing percentage each round,
	// prioritizing words that are not yet mastered.
	StrategyProgressive Strategy = "progressive"

	// StrategyMasteryBased hides words whose mastery reached the hide
	// threshold, scaled by the mastery percentage knob.
	StrategyMasteryBased Strategy = "mastery_based"

	// StrategyRandom hides a random selection, deterministic per seed.
	StrategyRandom Strategy = "random"

	// StrategySentence hides whole sentences, earliest first.
	StrategySentence Strategy = "sentence_by_sentence"

	// StrategyDifficultyAdaptive reveals short easy words first, so the
	// hidden set concentrates on long or low-mastery words.
	StrategyDifficultyAdaptive Strategy = "difficulty_adaptive"
)

// IsValid reports whether s is a recognised strategy.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyProgressive, StrategyMasteryBased, StrategyRandom,
		StrategySentence, StrategyDifficultyAdaptive:
		return true
	}
	return false
}

// State classifies a rendered span for styling.
type State string

const (
	StateNormal    State = "normal"
	StateCurrent   State = "current"
	StateHinted    State = "hinted"
	StateMastered  State = "mastered"
	StateProblem   State = "problem"
	StateCompleted State = "completed"
)

// Span is one rendered word.
type Span struct {
	Index int

	// Text is the full surface form.
	Text string

	// Masked is what the UI should paint: the surface form when visible,
	// otherwise blanks or a partial hint reveal.
	Masked string

	Visible   bool
	HintLevel int
	State     State
}

// Input is one render request.
type Input struct {
	Tokens     []textseq.WordToken
	Boundaries textseq.Boundaries

	// Mastery is the per-word snapshot, keyed by token index. Words with
	// no entry are treated as unpracticed.
	Mastery map[int]mastery.Record

	// CurrentIndex is the token being practiced, or -1 when none.
	CurrentIndex int

	// HintLevel applies to the current word only: 0 plain, 1 first letter,
	// 2 half the word, 3 full reveal.
	HintLevel int

	// Round is the practice round number, driving progressive reveal.
	Round int

	Completed  map[int]bool
	AutoHidden map[int]bool
}

// Option configures a [Masker].
type Option func(*Masker)

// WithStrategy selects the reveal strategy. Default: progressive.
func WithStrategy(s Strategy) Option {
	return func(m *Masker) {
		m.strategy = s
	}
}

// WithMasteryHideThreshold sets the mastery level at which the
// mastery-based strategy hides a word. Default: 0.7.
func WithMasteryHideThreshold(t float64) Option {
	return func(m *Masker) {
		m.hideThreshold = t
	}
}

// WithMasteryPercent scales how many of the over-threshold words the
// mastery-based strategy actually hides, in [0, 1]. Default: 1.
func WithMasteryPercent(p float64) Option {
	return func(m *Masker) {
		m.masteryPercent = p
	}
}

// WithProgressiveStep sets the fraction of tokens added to the hidden set
// per round by the progressive strategy. Default: 0.1.
func WithProgressiveStep(step float64) Option {
	return func(m *Masker) {
		m.progressiveStep = step
	}
}

// WithMinVisibleFraction sets the visibility floor. Default: 0.2.
func WithMinVisibleFraction(f float64) Option {
	return func(m *Masker) {
		m.minVisible = f
	}
}

// WithSeed fixes the random strategy's selection order, making renders
// reproducible.
func WithSeed(seed int64) Option {
	return func(m *Masker) {
		m.seed = seed
	}
}

// Masker renders masked display text. Safe for concurrent use; it is
// read-only after construction.
type Masker struct {
	strategy        Strategy
	hideThreshold   float64
	masteryPercent  float64
	progressiveStep float64
	minVisible      float64
	seed            int64
}

// New returns a [Masker] with the supplied options.
func New(opts ...Option) *Masker {
	m := &Masker{
		strategy:        StrategyProgressive,
		hideThreshold:   0.7,
		masteryPercent:  1,
		progressiveStep: 0.1,
		minVisible:      0.2,
		seed:            1,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Render produces the span sequence for one display refresh.
func (m *Masker) Render(in Input) ([]Span, error) {
	if len(in.Tokens) == 0 {
		return nil, errors.New("display: render: no tokens")
	}
	if in.CurrentIndex >= len(in.Tokens) {
		return nil, fmt.Errorf("display: render: current index %d out of range [0, %d)", in.CurrentIndex, len(in.Tokens))
	}

	hidden := m.selectHidden(in)
	m.enforceFloor(in, hidden)

	for i, auto := range in.AutoHidden {
		if auto {
			hidden[i] = true
		}
	}

	spans := make([]Span, len(in.Tokens))
	for i, tok := range in.Tokens {
		sp := Span{
			Index:   i,
			Text:    tok.Text,
			Visible: !hidden[i],
			State:   m.classify(in, i),
		}

		if i == in.CurrentIndex {
			sp.HintLevel = in.HintLevel
			switch {
			case in.HintLevel >= 3:
				sp.Visible = true
				sp.Masked = tok.Text
				sp.State = StateHinted
			case in.HintLevel > 0:
				sp.Visible = false
				sp.Masked = hintText(tok.Text, in.HintLevel)
				sp.State = StateHinted
			case sp.Visible:
				sp.Masked = tok.Text
			default:
				sp.Masked = blanks(tok.Text)
			}
		} else if sp.Visible {
			sp.Masked = tok.Text
		} else {
			sp.Masked = blanks(tok.Text)
		}

		spans[i] = sp
	}
	return spans, nil
}

// selectHidden returns the strategy's chosen hidden set.
func (m *Masker) selectHidden(in Input) map[int]bool {
	switch m.strategy {
	case StrategyMasteryBased:
		return m.hideByMastery(in)
	case StrategyRandom:
		return m.hideRandom(in)
	case StrategySentence:
		return m.hideBySentence(in)
	case StrategyDifficultyAdaptive:
		return m.hideByDifficulty(in)
	default:
		return m.hideProgressive(in)
	}
}

// hideProgressive grows the hidden fraction by progressiveStep per round,
// hiding the best-known words first so struggling words stay visible
// longest.
func (m *Masker) hideProgressive(in Input) map[int]bool {
	fraction := m.progressiveStep * float64(in.Round)
	if fraction > 1 {
		fraction = 1
	}
	target := int(fraction * float64(len(in.Tokens)))

	order := indicesByMastery(in, false)
	hidden := make(map[int]bool, target)
	for _, i := range order {
		if len(hidden) >= target {
			break
		}
		hidden[i] = true
	}
	return hidden
}

// hideByMastery hides words at or above the mastery threshold. The mastery
// percentage knob scales how many of those candidates are hidden, highest
// mastery first, so difficulty can be dialed without a binary flip.
func (m *Masker) hideByMastery(in Input) map[int]bool {
	var candidates []int
	for i := range in.Tokens {
		if in.Mastery[i].Mastery >= m.hideThreshold {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return in.Mastery[candidates[a]].Mastery > in.Mastery[candidates[b]].Mastery
	})

	count := int(m.masteryPercent * float64(len(candidates)))
	hidden := make(map[int]bool, count)
	for _, i := range candidates[:count] {
		hidden[i] = true
	}
	return hidden
}

// hideRandom hides up to half the tokens in a seeded shuffle order.
func (m *Masker) hideRandom(in Input) map[int]bool {
	rng := rand.New(rand.NewSource(m.seed + int64(in.Round)))
	perm := rng.Perm(len(in.Tokens))

	target := len(in.Tokens) / 2
	hidden := make(map[int]bool, target)
	for _, i := range perm[:target] {
		hidden[i] = true
	}
	return hidden
}

// hideBySentence hides one more whole sentence per round, earliest first.
func (m *Masker) hideBySentence(in Input) map[int]bool {
	sentences := in.Boundaries.Sentences()
	count := in.Round
	if count > len(sentences) {
		count = len(sentences)
	}

	hidden := make(map[int]bool)
	for _, sentence := range sentences[:count] {
		for _, i := range sentence {
			hidden[i] = true
		}
	}
	return hidden
}

// hideByDifficulty reveals the shortest and best-known words, hiding the
// rest. Roughly half the text stays visible.
func (m *Masker) hideByDifficulty(in Input) map[int]bool {
	order := make([]int, len(in.Tokens))
	for i := range order {
		order[i] = i
	}
	// Easiest first: short words with high mastery.
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		la := len(in.Tokens[ia].Text)
		lb := len(in.Tokens[ib].Text)
		if la != lb {
			return la < lb
		}
		return in.Mastery[ia].Mastery > in.Mastery[ib].Mastery
	})

	visible := len(in.Tokens) / 2
	hidden := make(map[int]bool, len(in.Tokens)-visible)
	for _, i := range order[visible:] {
		hidden[i] = true
	}
	return hidden
}

// enforceFloor unhides words until at least minVisible of the tokens are
// showing. Unpracticed and low-mastery words are restored first.
func (m *Masker) enforceFloor(in Input, hidden map[int]bool) {
	minShown := int(m.minVisible * float64(len(in.Tokens)))
	if minShown < 1 {
		minShown = 1
	}
	shown := len(in.Tokens) - len(hidden)
	if shown >= minShown {
		return
	}

	for _, i := range indicesByMastery(in, true) {
		if shown >= minShown {
			break
		}
		if hidden[i] {
			delete(hidden, i)
			shown++
		}
	}
}

// indicesByMastery orders token indices by mastery; ascending puts the
// least-known words first. Ties keep token order for determinism.
func indicesByMastery(in Input, ascending bool) []int {
	order := make([]int, len(in.Tokens))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ma := in.Mastery[order[a]].Mastery
		mb := in.Mastery[order[b]].Mastery
		if ascending {
			return ma < mb
		}
		return ma > mb
	})
	return order
}

// classify picks the styling state for token i.
func (m *Masker) classify(in Input, i int) State {
	switch {
	case i == in.CurrentIndex:
		return StateCurrent
	case in.Completed[i]:
		return StateCompleted
	case in.Mastery[i].IsProblemWord:
		return StateProblem
	case mastery.IsMastered(in.Mastery[i]):
		return StateMastered
	default:
		return StateNormal
	}
}

// hintText renders the current word at the given hint level.
func hintText(word string, level int) string {
	runes := []rune(word)
	switch {
	case level <= 0:
		return blanks(word)
	case level == 1:
		if len(runes) == 0 {
			return ""
		}
		return string(runes[0]) + strings.Repeat("_", len(runes)-1)
	case level == 2:
		half := (len(runes) + 1) / 2
		return string(runes[:half]) + strings.Repeat("_", len(runes)-half)
	default:
		return word
	}
}

// blanks replaces every rune with an underscore.
func blanks(word string) string {
	return strings.Repeat("_", len([]rune(word)))
}
