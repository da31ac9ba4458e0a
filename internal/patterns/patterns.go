// Package patterns finds recurring difficulty in post-session attempt logs:
// runs of hard words, rough sentence starts, paragraph seams, long words,
// and confusable word groups.
//
// Each detector is independent. A failure in one is joined into the
// returned error while the others still contribute, so partial detection is
// always preferred over none. Detected patterns are merged into the
// existing set by [Merge], which increments frequency on repeat detection
// instead of duplicating records.
package patterns

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ebarkley/versewise/internal/textseq"
)

// Type names a difficulty pattern category.
type Type string

const (
	// TypeWordSequence is a run of three or more consecutive hard words.
	TypeWordSequence Type = "word_sequence"

	// TypeSentenceStart is trouble producing the first word of a sentence.
	TypeSentenceStart Type = "sentence_start"

	// TypeParagraphTransition is trouble crossing a paragraph break.
	TypeParagraphTransition Type = "paragraph_transition"

	// TypeLongWords is trouble with individual long words.
	TypeLongWords Type = "long_words"

	// TypeSimilarWords is a group of confusable words: equal length, same
	// first letter, several of them individually difficult.
	TypeSimilarWords Type = "similar_words"
)

// Pattern is one detected (or accumulated) difficulty pattern.
// The identity key is (SubjectID, TextID, Type, StartIndex).
type Pattern struct {
	SubjectID string
	TextID    string
	Type      Type

	StartIndex int
	EndIndex   int

	// DifficultyScore is in [0, 1]: the mean of a normalized attempt-count
	// term and a normalized response-time term.
	DifficultyScore float64

	// Frequency counts how many sessions detected this pattern.
	Frequency int

	// ContextWords are the surface forms covered by the pattern.
	ContextWords []string
}

// WordAttempt is one word's aggregate outcome within a session.
type WordAttempt struct {
	Index    int
	Attempts int

	// TimeSpent is seconds spent on the word across the session.
	TimeSpent float64

	Correct bool
}

// Option configures a [Detector].
type Option func(*Detector)

// WithSequenceThresholds sets what makes a word "hard" for the
// word-sequence detector. Defaults: more than 2 attempts or more than 3
// seconds.
func WithSequenceThresholds(attempts int, seconds float64) Option {
	return func(d *Detector) {
		d.hardAttempts = attempts
		d.hardSeconds = seconds
	}
}

// WithDifficultyCaps sets the attempt count and time treated as maximal
// when normalizing difficulty scores. Defaults: 5 attempts, 10 seconds.
func WithDifficultyCaps(attempts int, seconds float64) Option {
	return func(d *Detector) {
		d.capAttempts = attempts
		d.capSeconds = seconds
	}
}

// Detector runs the pattern detectors over a session log. Safe for
// concurrent use; it is read-only after construction.
type Detector struct {
	hardAttempts int
	hardSeconds  float64
	capAttempts  int
	capSeconds   float64
	longWordLen  int
}

// New returns a [Detector] with default thresholds.
func New(opts ...Option) *Detector {
	d := &Detector{
		hardAttempts: 2,
		hardSeconds:  3,
		capAttempts:  5,
		capSeconds:   10,
		longWordLen:  8,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Detect runs all detectors over one session's attempt log. The returned
// error, if any, is a join of individual detector failures; patterns from
// the detectors that succeeded are still returned alongside it.
func (d *Detector) Detect(subjectID, textID string, log []WordAttempt, tokens []textseq.WordToken, bounds textseq.Boundaries) ([]Pattern, error) {
	byIndex := make(map[int]WordAttempt, len(log))
	for _, a := range log {
		byIndex[a.Index] = a
	}

	var (
		found []Pattern
		errs  []error
	)
	run := func(name string, fn func() ([]Pattern, error)) {
		pats, err := fn()
		if err != nil {
			errs = append(errs, fmt.Errorf("patterns: %s: %w", name, err))
			return
		}
		found = append(found, pats...)
	}

	run("word_sequence", func() ([]Pattern, error) {
		return d.detectWordSequences(byIndex, tokens)
	})
	run("sentence_start", func() ([]Pattern, error) {
		return d.detectSentenceStarts(byIndex, tokens, bounds)
	})
	run("paragraph_transition", func() ([]Pattern, error) {
		return d.detectParagraphTransitions(byIndex, tokens, bounds)
	})
	run("long_words", func() ([]Pattern, error) {
		return d.detectLongWords(byIndex, tokens)
	})
	run("similar_words", func() ([]Pattern, error) {
		return d.detectSimilarWords(byIndex, tokens)
	})

	for i := range found {
		found[i].SubjectID = subjectID
		found[i].TextID = textID
		found[i].Frequency = 1
	}
	return found, errors.Join(errs...)
}

// isHard reports whether one word's session outcome crosses the
// hard-word thresholds.
func (d *Detector) isHard(a WordAttempt) bool {
	return a.Attempts > d.hardAttempts || a.TimeSpent > d.hardSeconds
}

// detectWordSequences finds runs of at least three consecutive hard words.
func (d *Detector) detectWordSequences(byIndex map[int]WordAttempt, tokens []textseq.WordToken) ([]Pattern, error) {
	var pats []Pattern

	runStart := -1
	flush := func(end int) {
		if runStart >= 0 && end-runStart >= 3 {
			pats = append(pats, Pattern{
				Type:            TypeWordSequence,
				StartIndex:      runStart,
				EndIndex:        end - 1,
				DifficultyScore: d.scoreRange(byIndex, runStart, end-1),
				ContextWords:    wordsInRange(tokens, runStart, end-1),
			})
		}
		runStart = -1
	}

	for i := range tokens {
		a, ok := byIndex[i]
		if ok && d.isHard(a) {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		flush(i)
	}
	flush(len(tokens))
	return pats, nil
}

// detectSentenceStarts flags sentence-opening words that took more than two
// attempts.
func (d *Detector) detectSentenceStarts(byIndex map[int]WordAttempt, tokens []textseq.WordToken, bounds textseq.Boundaries) ([]Pattern, error) {
	if len(bounds.SentenceStart) != len(tokens) {
		return nil, fmt.Errorf("boundary length %d does not match token count %d", len(bounds.SentenceStart), len(tokens))
	}

	var pats []Pattern
	for i := range tokens {
		if !bounds.SentenceStart[i] {
			continue
		}
		a, ok := byIndex[i]
		if !ok || a.Attempts <= 2 {
			continue
		}
		pats = append(pats, Pattern{
			Type:            TypeSentenceStart,
			StartIndex:      i,
			EndIndex:        i,
			DifficultyScore: d.score(a),
			ContextWords:    wordsInRange(tokens, i, min(i+2, len(tokens)-1)),
		})
	}
	return pats, nil
}

// detectParagraphTransitions inspects a two-word window on each side of a
// paragraph break; combined attempts above 6 flag the seam.
func (d *Detector) detectParagraphTransitions(byIndex map[int]WordAttempt, tokens []textseq.WordToken, bounds textseq.Boundaries) ([]Pattern, error) {
	if len(bounds.ParagraphStart) != len(tokens) {
		return nil, fmt.Errorf("boundary length %d does not match token count %d", len(bounds.ParagraphStart), len(tokens))
	}

	var pats []Pattern
	for i := 1; i < len(tokens); i++ {
		if !bounds.ParagraphStart[i] {
			continue
		}
		lo := max(i-2, 0)
		hi := min(i+1, len(tokens)-1)

		total := 0
		for j := lo; j <= hi; j++ {
			total += byIndex[j].Attempts
		}
		if total <= 6 {
			continue
		}
		pats = append(pats, Pattern{
			Type:            TypeParagraphTransition,
			StartIndex:      lo,
			EndIndex:        hi,
			DifficultyScore: d.scoreRange(byIndex, lo, hi),
			ContextWords:    wordsInRange(tokens, lo, hi),
		})
	}
	return pats, nil
}

// detectLongWords flags words of eight or more characters that were hard.
func (d *Detector) detectLongWords(byIndex map[int]WordAttempt, tokens []textseq.WordToken) ([]Pattern, error) {
	var pats []Pattern
	for i, tok := range tokens {
		if len(tok.Text) < d.longWordLen {
			continue
		}
		a, ok := byIndex[i]
		if !ok || !d.isHard(a) {
			continue
		}
		pats = append(pats, Pattern{
			Type:            TypeLongWords,
			StartIndex:      i,
			EndIndex:        i,
			DifficultyScore: d.score(a),
			ContextWords:    []string{tok.Text},
		})
	}
	return pats, nil
}

// detectSimilarWords groups words by (length, first letter) and flags
// groups where at least two members were individually hard — a candidate
// confusion set.
func (d *Detector) detectSimilarWords(byIndex map[int]WordAttempt, tokens []textseq.WordToken) ([]Pattern, error) {
	type key struct {
		length int
		first  byte
	}
	groups := make(map[key][]int)
	for i, tok := range tokens {
		norm := textseq.Normalize(tok.Text)
		if len(norm) < 3 {
			continue
		}
		groups[key{len(norm), norm[0]}] = append(groups[key{len(norm), norm[0]}], i)
	}

	var pats []Pattern
	for _, members := range groups {
		var hard []int
		for _, i := range members {
			if a, ok := byIndex[i]; ok && d.isHard(a) {
				hard = append(hard, i)
			}
		}
		if len(hard) < 2 {
			continue
		}

		start, end := hard[0], hard[0]
		var score float64
		var words []string
		for _, i := range hard {
			if i < start {
				start = i
			}
			if i > end {
				end = i
			}
			score += d.score(byIndex[i])
			words = append(words, tokens[i].Text)
		}
		pats = append(pats, Pattern{
			Type:            TypeSimilarWords,
			StartIndex:      start,
			EndIndex:        end,
			DifficultyScore: score / float64(len(hard)),
			ContextWords:    words,
		})
	}
	// Map iteration order must not leak into the output.
	sort.Slice(pats, func(a, b int) bool {
		return pats[a].StartIndex < pats[b].StartIndex
	})
	return pats, nil
}

// score normalizes one word's attempts and time into a [0, 1] difficulty.
func (d *Detector) score(a WordAttempt) float64 {
	attemptTerm := float64(a.Attempts) / float64(d.capAttempts)
	if attemptTerm > 1 {
		attemptTerm = 1
	}
	timeTerm := a.TimeSpent / d.capSeconds
	if timeTerm > 1 {
		timeTerm = 1
	}
	return (attemptTerm + timeTerm) / 2
}

// scoreRange averages per-word difficulty over an inclusive index range.
func (d *Detector) scoreRange(byIndex map[int]WordAttempt, lo, hi int) float64 {
	var sum float64
	for i := lo; i <= hi; i++ {
		sum += d.score(byIndex[i])
	}
	return sum / float64(hi-lo+1)
}

func wordsInRange(tokens []textseq.WordToken, lo, hi int) []string {
	words := make([]string, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		words = append(words, tokens[i].Text)
	}
	return words
}

// Merge upserts detected patterns into existing ones. Matching key
// (subject, text, type, start index) increments frequency and keeps the
// higher difficulty score; everything else is appended as new. The input
// slices are not modified.
func Merge(existing, detected []Pattern) []Pattern {
	type key struct {
		subject string
		text    string
		typ     Type
		start   int
	}

	merged := append([]Pattern(nil), existing...)
	byKey := make(map[key]int, len(merged))
	for i, p := range merged {
		byKey[key{p.SubjectID, p.TextID, p.Type, p.StartIndex}] = i
	}

	for _, p := range detected {
		k := key{p.SubjectID, p.TextID, p.Type, p.StartIndex}
		if i, ok := byKey[k]; ok {
			merged[i].Frequency++
			merged[i].EndIndex = p.EndIndex
			merged[i].ContextWords = p.ContextWords
			if p.DifficultyScore > merged[i].DifficultyScore {
				merged[i].DifficultyScore = p.DifficultyScore
			}
			continue
		}
		if p.Frequency == 0 {
			p.Frequency = 1
		}
		byKey[k] = len(merged)
		merged = append(merged, p)
	}
	return merged
}

// Recommendations turns accumulated patterns into short practice advice,
// most frequent and hardest first. At most limit entries are returned; a
// non-positive limit means no cap.
func Recommendations(pats []Pattern, limit int) []string {
	ordered := append([]Pattern(nil), pats...)
	sortPatterns(ordered)

	var recs []string
	for _, p := range ordered {
		if limit > 0 && len(recs) >= limit {
			break
		}
		recs = append(recs, recommend(p))
	}
	return recs
}

func sortPatterns(pats []Pattern) {
	sort.SliceStable(pats, func(i, j int) bool {
		if pats[i].Frequency != pats[j].Frequency {
			return pats[i].Frequency > pats[j].Frequency
		}
		return pats[i].DifficultyScore > pats[j].DifficultyScore
	})
}

func recommend(p Pattern) string {
	ctx := ""
	if len(p.ContextWords) > 0 {
		ctx = fmt.Sprintf(" (%q)", p.ContextWords[0])
	}
	switch p.Type {
	case TypeWordSequence:
		return fmt.Sprintf("Drill the word run at positions %d-%d%s in isolation before full passes.", p.StartIndex, p.EndIndex, ctx)
	case TypeSentenceStart:
		return fmt.Sprintf("Practice the sentence opening at position %d%s; say the previous sentence's last words as a lead-in.", p.StartIndex, ctx)
	case TypeParagraphTransition:
		return fmt.Sprintf("Rehearse the paragraph transition around position %d as one unit.", p.StartIndex)
	case TypeLongWords:
		return fmt.Sprintf("Break the long word at position %d%s into syllables and repeat it slowly.", p.StartIndex, ctx)
	case TypeSimilarWords:
		return fmt.Sprintf("Contrast the similar words%s deliberately; say them back to back.", ctx)
	}
	return fmt.Sprintf("Review positions %d-%d.", p.StartIndex, p.EndIndex)
}
