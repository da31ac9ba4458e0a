package score

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Weights blends the similarity heuristics applied to a substituted word.
// Each heuristic produces a score in [0, 1]; the blend is their weighted
// average. All weights should be non-negative and sum to roughly 1.
type Weights struct {
	// CharSequence weights Jaro-Winkler similarity of the raw strings.
	CharSequence float64

	// PhoneticPattern weights similarity after rewriting common English
	// sound-alike spellings (ph→f, ck→k, silent letters) on both sides.
	PhoneticPattern float64

	// Metaphone weights the Double Metaphone code comparison, a consonant
	// skeleton that ignores vowel coloring.
	Metaphone float64

	// EditDistance weights normalized Levenshtein similarity.
	EditDistance float64

	// SyllableRatio weights the ratio of estimated syllable counts.
	SyllableRatio float64
}

// DefaultWeights returns the standard blend tuning.
func DefaultWeights() Weights {
	return Weights{
		CharSequence:    0.30,
		PhoneticPattern: 0.20,
		Metaphone:       0.20,
		EditDistance:    0.20,
		SyllableRatio:   0.10,
	}
}

// Similarity returns the blended phonetic similarity of two normalized
// words in [0, 1]. Identical words score 1; an empty side scores 0.
func (w Weights) Similarity(expected, spoken string) float64 {
	if expected == "" || spoken == "" {
		return 0
	}
	if expected == spoken {
		return 1
	}

	total := w.CharSequence + w.PhoneticPattern + w.Metaphone + w.EditDistance + w.SyllableRatio
	if total <= 0 {
		return 0
	}

	sum := w.CharSequence * matchr.JaroWinkler(expected, spoken, false)
	sum += w.PhoneticPattern * patternSimilarity(expected, spoken)
	sum += w.Metaphone * metaphoneSimilarity(expected, spoken)
	sum += w.EditDistance * editSimilarity(expected, spoken)
	sum += w.SyllableRatio * syllableRatio(expected, spoken)
	return sum / total
}

// phoneticRewrites maps common English spellings to a canonical sound
// form. Applied longest-pattern-first so "ck" wins over "c".
var phoneticRewrites = []struct{ from, to string }{
	{"ough", "o"},
	{"tion", "shun"},
	{"ph", "f"},
	{"gh", "g"},
	{"ck", "k"},
	{"qu", "kw"},
	{"wr", "r"},
	{"kn", "n"},
	{"mb", "m"},
	{"ed", "d"},
	{"ing", "in"},
	{"x", "ks"},
	{"c", "k"},
	{"z", "s"},
}

// patternSimilarity rewrites sound-alike spellings on both sides and
// compares the results with Jaro-Winkler. "phone" and "fone" become
// identical under the rewrite and score 1.
func patternSimilarity(a, b string) float64 {
	ra, rb := rewritePhonetic(a), rewritePhonetic(b)
	if ra == rb {
		return 1
	}
	return matchr.JaroWinkler(ra, rb, false)
}

func rewritePhonetic(s string) string {
	for _, r := range phoneticRewrites {
		s = strings.ReplaceAll(s, r.from, r.to)
	}
	return s
}

// metaphoneSimilarity compares Double Metaphone codes. A shared primary or
// secondary code scores 1; otherwise the primary codes are compared by
// normalized edit distance.
func metaphoneSimilarity(a, b string) float64 {
	pa, sa := matchr.DoubleMetaphone(a)
	pb, sb := matchr.DoubleMetaphone(b)
	if pa == "" || pb == "" {
		return 0
	}
	if pa == pb || (sa != "" && sa == sb) || pa == sb || sa == pb {
		return 1
	}
	return editSimilarity(pa, pb)
}

// editSimilarity is 1 minus the Levenshtein distance normalized by the
// longer string's length.
func editSimilarity(a, b string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}
	d := matchr.Levenshtein(a, b)
	sim := 1 - float64(d)/float64(longest)
	if sim < 0 {
		return 0
	}
	return sim
}

// syllableRatio is the smaller estimated syllable count divided by the
// larger one.
func syllableRatio(a, b string) float64 {
	sa, sb := countSyllables(a), countSyllables(b)
	if sa == 0 || sb == 0 {
		return 0
	}
	if sa > sb {
		sa, sb = sb, sa
	}
	return float64(sa) / float64(sb)
}

// countSyllables estimates syllables by counting vowel groups, with the
// usual silent-e adjustment. Every word gets at least one syllable.
func countSyllables(word string) int {
	count := 0
	prevVowel := false
	for _, r := range word {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count < 1 {
		count = 1
	}
	return count
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}
