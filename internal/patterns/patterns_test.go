package patterns_test

import (
	"strings"
	"testing"

	"github.com/ebarkley/versewise/internal/patterns"
	"github.com/ebarkley/versewise/internal/textseq"
)

func tokenize(t *testing.T, raw string) ([]textseq.WordToken, textseq.Boundaries) {
	t.Helper()
	tokens, err := textseq.Tokenize(raw)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", raw, err)
	}
	return tokens, textseq.DetectBoundaries(raw, tokens)
}

func patternsOfType(pats []patterns.Pattern, typ patterns.Type) []patterns.Pattern {
	var out []patterns.Pattern
	for _, p := range pats {
		if p.Type == typ {
			out = append(out, p)
		}
	}
	return out
}

func TestDetect_WordSequence(t *testing.T) {
	t.Parallel()

	tokens, bounds := tokenize(t, "easy one hard hard hard easy two")
	log := []patterns.WordAttempt{
		{Index: 0, Attempts: 1, Correct: true},
		{Index: 1, Attempts: 1, Correct: true},
		{Index: 2, Attempts: 4, TimeSpent: 5},
		{Index: 3, Attempts: 3, TimeSpent: 4},
		{Index: 4, Attempts: 5, TimeSpent: 6},
		{Index: 5, Attempts: 1, Correct: true},
		{Index: 6, Attempts: 1, Correct: true},
	}

	d := patterns.New()
	pats, err := d.Detect("subj", "text", log, tokens, bounds)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	seqs := patternsOfType(pats, patterns.TypeWordSequence)
	if len(seqs) != 1 {
		t.Fatalf("word sequences = %d, want 1 (%+v)", len(seqs), pats)
	}
	seq := seqs[0]
	if seq.StartIndex != 2 || seq.EndIndex != 4 {
		t.Errorf("sequence range = [%d, %d], want [2, 4]", seq.StartIndex, seq.EndIndex)
	}
	if seq.SubjectID != "subj" || seq.TextID != "text" || seq.Frequency != 1 {
		t.Errorf("sequence identity = %q/%q freq %d, want subj/text freq 1", seq.SubjectID, seq.TextID, seq.Frequency)
	}
	if seq.DifficultyScore <= 0 || seq.DifficultyScore > 1 {
		t.Errorf("DifficultyScore = %v, want in (0, 1]", seq.DifficultyScore)
	}
}

func TestDetect_TwoHardWordsAreNotASequence(t *testing.T) {
	t.Parallel()

	tokens, bounds := tokenize(t, "one two three four")
	log := []patterns.WordAttempt{
		{Index: 1, Attempts: 4, TimeSpent: 5},
		{Index: 2, Attempts: 4, TimeSpent: 5},
	}

	d := patterns.New()
	pats, err := d.Detect("subj", "text", log, tokens, bounds)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if seqs := patternsOfType(pats, patterns.TypeWordSequence); len(seqs) != 0 {
		t.Errorf("word sequences = %d, want 0 for a run of two", len(seqs))
	}
}

func TestDetect_SentenceStart(t *testing.T) {
	t.Parallel()

	tokens, bounds := tokenize(t, "First sentence here. Second sentence here.")
	log := []patterns.WordAttempt{
		{Index: 3, Attempts: 4, TimeSpent: 2},
	}

	d := patterns.New()
	pats, err := d.Detect("subj", "text", log, tokens, bounds)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	starts := patternsOfType(pats, patterns.TypeSentenceStart)
	if len(starts) != 1 {
		t.Fatalf("sentence starts = %d, want 1 (%+v)", len(starts), pats)
	}
	if starts[0].StartIndex != 3 {
		t.Errorf("StartIndex = %d, want 3", starts[0].StartIndex)
	}
}

func TestDetect_ParagraphTransition(t *testing.T) {
	t.Parallel()

	tokens, bounds := tokenize(t, "end of part one.\n\nstart of part two.")
	log := []patterns.WordAttempt{
		{Index: 2, Attempts: 3},
		{Index: 3, Attempts: 3},
		{Index: 4, Attempts: 3},
	}

	d := patterns.New()
	pats, err := d.Detect("subj", "text", log, tokens, bounds)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	trans := patternsOfType(pats, patterns.TypeParagraphTransition)
	if len(trans) != 1 {
		t.Fatalf("paragraph transitions = %d, want 1 (%+v)", len(trans), pats)
	}
	if trans[0].StartIndex != 2 || trans[0].EndIndex != 5 {
		t.Errorf("transition range = [%d, %d], want [2, 5]", trans[0].StartIndex, trans[0].EndIndex)
	}
}

func TestDetect_LongWords(t *testing.T) {
	t.Parallel()

	tokens, bounds := tokenize(t, "short magnificent word")
	log := []patterns.WordAttempt{
		{Index: 1, Attempts: 4, TimeSpent: 6},
	}

	d := patterns.New()
	pats, err := d.Detect("subj", "text", log, tokens, bounds)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	long := patternsOfType(pats, patterns.TypeLongWords)
	if len(long) != 1 {
		t.Fatalf("long-word patterns = %d, want 1 (%+v)", len(long), pats)
	}
	if long[0].StartIndex != 1 || len(long[0].ContextWords) != 1 || long[0].ContextWords[0] != "magnificent" {
		t.Errorf("long-word pattern = %+v, want index 1 %q", long[0], "magnificent")
	}
}

func TestDetect_SimilarWords(t *testing.T) {
	t.Parallel()

	// "through" and "thought" share length and first letter.
	tokens, bounds := tokenize(t, "go through the door and a thought came")
	log := []patterns.WordAttempt{
		{Index: 1, Attempts: 4, TimeSpent: 5},
		{Index: 6, Attempts: 4, TimeSpent: 5},
	}

	d := patterns.New()
	pats, err := d.Detect("subj", "text", log, tokens, bounds)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	similar := patternsOfType(pats, patterns.TypeSimilarWords)
	if len(similar) != 1 {
		t.Fatalf("similar-word patterns = %d, want 1 (%+v)", len(similar), pats)
	}
	if similar[0].StartIndex != 1 || similar[0].EndIndex != 6 {
		t.Errorf("similar range = [%d, %d], want [1, 6]", similar[0].StartIndex, similar[0].EndIndex)
	}
}

func TestDetect_SimilarWordsStableOrder(t *testing.T) {
	t.Parallel()

	// Two confusion groups: through/thought (7, t) and stream/string (6, s).
	tokens, bounds := tokenize(t, "through stream thought string")
	log := []patterns.WordAttempt{
		{Index: 0, Attempts: 4, TimeSpent: 5},
		{Index: 1, Attempts: 4, TimeSpent: 5},
		{Index: 2, Attempts: 4, TimeSpent: 5},
		{Index: 3, Attempts: 4, TimeSpent: 5},
	}

	d := patterns.New()
	for run := 0; run < 20; run++ {
		pats, err := d.Detect("subj", "text", log, tokens, bounds)
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		similar := patternsOfType(pats, patterns.TypeSimilarWords)
		if len(similar) != 2 {
			t.Fatalf("similar-word patterns = %d, want 2 (%+v)", len(similar), pats)
		}
		if similar[0].StartIndex != 0 || similar[1].StartIndex != 1 {
			t.Fatalf("run %d: similar starts = [%d, %d], want [0, 1]",
				run, similar[0].StartIndex, similar[1].StartIndex)
		}
	}
}

func TestDetect_BoundaryMismatchIsPartial(t *testing.T) {
	t.Parallel()

	tokens, _ := tokenize(t, "easy hard hard hard easy")
	log := []patterns.WordAttempt{
		{Index: 1, Attempts: 4, TimeSpent: 5},
		{Index: 2, Attempts: 4, TimeSpent: 5},
		{Index: 3, Attempts: 4, TimeSpent: 5},
	}

	d := patterns.New()
	pats, err := d.Detect("subj", "text", log, tokens, textseq.Boundaries{})
	if err == nil {
		t.Fatalf("Detect with empty boundaries: err = nil, want boundary mismatch")
	}
	// The boundary-independent detectors still report.
	if seqs := patternsOfType(pats, patterns.TypeWordSequence); len(seqs) != 1 {
		t.Errorf("word sequences alongside error = %d, want 1", len(seqs))
	}
}

func TestMerge_UpsertsByKey(t *testing.T) {
	t.Parallel()

	existing := []patterns.Pattern{
		{SubjectID: "s", TextID: "t", Type: patterns.TypeWordSequence, StartIndex: 2, EndIndex: 4, Frequency: 2, DifficultyScore: 0.5},
	}
	detected := []patterns.Pattern{
		{SubjectID: "s", TextID: "t", Type: patterns.TypeWordSequence, StartIndex: 2, EndIndex: 5, Frequency: 1, DifficultyScore: 0.7},
		{SubjectID: "s", TextID: "t", Type: patterns.TypeLongWords, StartIndex: 9, EndIndex: 9, Frequency: 1, DifficultyScore: 0.4},
	}

	merged := patterns.Merge(existing, detected)
	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}

	seq := merged[0]
	if seq.Frequency != 3 {
		t.Errorf("Frequency = %d, want 3 (incremented, not duplicated)", seq.Frequency)
	}
	if seq.EndIndex != 5 {
		t.Errorf("EndIndex = %d, want 5 (updated from detection)", seq.EndIndex)
	}
	if seq.DifficultyScore != 0.7 {
		t.Errorf("DifficultyScore = %v, want 0.7 (higher wins)", seq.DifficultyScore)
	}
	if merged[1].Type != patterns.TypeLongWords || merged[1].Frequency != 1 {
		t.Errorf("new pattern = %+v, want long_words freq 1", merged[1])
	}
}

func TestRecommendations_OrderAndLimit(t *testing.T) {
	t.Parallel()

	pats := []patterns.Pattern{
		{Type: patterns.TypeLongWords, StartIndex: 5, Frequency: 1, DifficultyScore: 0.9, ContextWords: []string{"magnificent"}},
		{Type: patterns.TypeWordSequence, StartIndex: 0, EndIndex: 3, Frequency: 4, DifficultyScore: 0.4, ContextWords: []string{"we"}},
		{Type: patterns.TypeSentenceStart, StartIndex: 8, Frequency: 4, DifficultyScore: 0.8, ContextWords: []string{"second"}},
	}

	recs := patterns.Recommendations(pats, 2)
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	// Highest frequency first; difficulty breaks the tie.
	if want := "sentence opening"; !strings.Contains(recs[0], want) {
		t.Errorf("recs[0] = %q, want mention of %q", recs[0], want)
	}
	if want := "word run"; !strings.Contains(recs[1], want) {
		t.Errorf("recs[1] = %q, want mention of %q", recs[1], want)
	}

	all := patterns.Recommendations(pats, 0)
	if len(all) != 3 {
		t.Errorf("len(recs) with no limit = %d, want 3", len(all))
	}
}
