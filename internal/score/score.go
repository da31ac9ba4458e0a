// Package score aligns a spoken transcript against expected reference words
// and classifies each position as correct, substituted, missing, or extra.
//
// Alignment is an opcode diff (equal / replace / delete / insert) over word
// tokens, not characters. Substitutions additionally get a blended phonetic
// similarity score; a substitution similar enough to the expected word, on a
// transcript the speech layer was confident about, is reclassified as a
// pronunciation variant and counted as correct. This keeps legitimate
// transcription noise ("fone" for "phone") from reading as a recall failure.
//
// Scoring is deterministic: identical inputs always produce identical diffs
// and accuracy. An empty or unintelligible transcript is a normal input, not
// an error — it scores as accuracy 0 with every expected word missing.
package score

import (
	"github.com/ebarkley/versewise/internal/textseq"
)

// Status classifies one aligned position.
type Status string

const (
	// StatusCorrect marks an exact (normalized) match.
	StatusCorrect Status = "correct"

	// StatusVariant marks a substitution close enough phonetically to count
	// as the expected word spoken with transcription or pronunciation noise.
	StatusVariant Status = "pronunciation_variant"

	// StatusSubstitution marks a wrong word spoken in place of the expected one.
	StatusSubstitution Status = "substitution"

	// StatusMissing marks an expected word with no spoken counterpart.
	StatusMissing Status = "missing"

	// StatusExtra marks a spoken word with no expected counterpart.
	StatusExtra Status = "extra"
)

// Diff is the classification of one aligned position.
type Diff struct {
	// Position is the index into the expected sequence. For extra words it
	// is the expected index the insertion precedes.
	Position int

	// Expected is the reference word at this position ("" for extras).
	Expected string

	// Spoken is the transcript word aligned here ("" for missing).
	Spoken string

	Status Status

	// Similarity is the blended phonetic similarity for substitutions and
	// variants, 1.0 for correct matches, 0 otherwise.
	Similarity float64
}

// Result is the outcome of scoring one attempt.
type Result struct {
	// Accuracy is the percentage of expected words produced correctly,
	// counting pronunciation variants as correct. Range [0, 100].
	Accuracy float64

	Diffs []Diff

	// PerfectMatch is set when Accuracy reaches the perfect threshold.
	PerfectMatch bool

	CorrectCount int
	MissedCount  int
	ExtraCount   int
}

// MissedWords returns the expected surface forms that were missing or
// wrongly substituted, in order.
func (r Result) MissedWords() []string {
	var missed []string
	for _, d := range r.Diffs {
		if d.Status == StatusMissing || d.Status == StatusSubstitution {
			missed = append(missed, d.Expected)
		}
	}
	return missed
}

// Option configures a [Scorer].
type Option func(*Scorer)

// WithVariantThreshold sets the minimum blended similarity for a
// substitution to be reclassified as a pronunciation variant. Default: 0.8.
func WithVariantThreshold(threshold float64) Option {
	return func(s *Scorer) {
		s.variantThreshold = threshold
	}
}

// WithConfidenceFloor sets the minimum transcript confidence required for
// variant reclassification. Below the floor, near misses stay
// substitutions. Default: 0.6.
func WithConfidenceFloor(floor float64) Option {
	return func(s *Scorer) {
		s.confidenceFloor = floor
	}
}

// WithPerfectThreshold sets the accuracy percentage at or above which a
// result counts as a perfect match. Default: 95.
func WithPerfectThreshold(threshold float64) Option {
	return func(s *Scorer) {
		s.perfectThreshold = threshold
	}
}

// WithSimilarityWeights overrides the blend weights used by the similarity
// heuristics. See [Weights].
func WithSimilarityWeights(w Weights) Option {
	return func(s *Scorer) {
		s.weights = w
	}
}

// Scorer aligns and scores attempts. Safe for concurrent use; it is
// read-only after construction.
type Scorer struct {
	variantThreshold float64
	confidenceFloor  float64
	perfectThreshold float64
	weights          Weights
}

// New returns a [Scorer] with default thresholds.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		variantThreshold: 0.8,
		confidenceFloor:  0.6,
		perfectThreshold: 95,
		weights:          DefaultWeights(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ScoreTranscript tokenizes transcript and scores it against the expected
// surface forms. confidence is the speech layer's [0, 1] confidence in the
// transcript as a whole.
func (s *Scorer) ScoreTranscript(transcript string, expected []string, confidence float64) Result {
	spoken, err := textseq.Tokenize(transcript)
	if err != nil {
		return s.Score(nil, expected, confidence)
	}
	return s.Score(textseq.Words(spoken), expected, confidence)
}

// Score aligns spoken words against expected words and classifies every
// position. Either side may be empty: no expected words yields an empty
// 100%-accurate result, no spoken words marks every expected word missing.
func (s *Scorer) Score(spoken, expected []string, confidence float64) Result {
	if len(expected) == 0 {
		return Result{Accuracy: 100, PerfectMatch: true}
	}

	normExpected := normalizeAll(expected)
	normSpoken := normalizeAll(spoken)

	ops := align(normExpected, normSpoken)

	res := Result{Diffs: make([]Diff, 0, len(expected))}
	for _, op := range ops {
		switch op.kind {
		case opEqual:
			for k := 0; k < op.expEnd-op.expStart; k++ {
				res.Diffs = append(res.Diffs, Diff{
					Position:   op.expStart + k,
					Expected:   expected[op.expStart+k],
					Spoken:     spoken[op.spkStart+k],
					Status:     StatusCorrect,
					Similarity: 1,
				})
				res.CorrectCount++
			}
		case opReplace:
			s.classifyReplace(&res, op, expected, spoken, normExpected, normSpoken, confidence)
		case opDelete:
			for i := op.expStart; i < op.expEnd; i++ {
				res.Diffs = append(res.Diffs, Diff{
					Position: i,
					Expected: expected[i],
					Status:   StatusMissing,
				})
				res.MissedCount++
			}
		case opInsert:
			for j := op.spkStart; j < op.spkEnd; j++ {
				res.Diffs = append(res.Diffs, Diff{
					Position: op.expStart,
					Spoken:   spoken[j],
					Status:   StatusExtra,
				})
				res.ExtraCount++
			}
		}
	}

	res.Accuracy = float64(res.CorrectCount) / float64(len(expected)) * 100
	res.PerfectMatch = res.Accuracy >= s.perfectThreshold
	return res
}

// classifyReplace pairs up the words inside one replace opcode and decides,
// per pair, between variant and substitution. Unequal run lengths spill
// into missing or extra entries.
func (s *Scorer) classifyReplace(res *Result, op opcode, expected, spoken, normExpected, normSpoken []string, confidence float64) {
	expLen := op.expEnd - op.expStart
	spkLen := op.spkEnd - op.spkStart
	pairs := min(expLen, spkLen)

	for k := 0; k < pairs; k++ {
		ei, si := op.expStart+k, op.spkStart+k
		sim := s.weights.Similarity(normExpected[ei], normSpoken[si])

		d := Diff{
			Position:   ei,
			Expected:   expected[ei],
			Spoken:     spoken[si],
			Similarity: sim,
		}
		if sim >= s.variantThreshold && confidence >= s.confidenceFloor {
			d.Status = StatusVariant
			res.CorrectCount++
		} else {
			d.Status = StatusSubstitution
			res.MissedCount++
		}
		res.Diffs = append(res.Diffs, d)
	}

	for i := op.expStart + pairs; i < op.expEnd; i++ {
		res.Diffs = append(res.Diffs, Diff{
			Position: i,
			Expected: expected[i],
			Status:   StatusMissing,
		})
		res.MissedCount++
	}
	for j := op.spkStart + pairs; j < op.spkEnd; j++ {
		res.Diffs = append(res.Diffs, Diff{
			Position: op.expEnd,
			Spoken:   spoken[j],
			Status:   StatusExtra,
		})
		res.ExtraCount++
	}
}

func normalizeAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = textseq.Normalize(w)
	}
	return out
}
