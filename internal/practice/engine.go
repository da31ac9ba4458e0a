package practice

import (
	"slices"
	"time"

	"github.com/ebarkley/versewise/internal/display"
	"github.com/ebarkley/versewise/internal/mastery"
	"github.com/ebarkley/versewise/internal/patterns"
	"github.com/ebarkley/versewise/internal/score"
	"github.com/ebarkley/versewise/internal/textseq"
)

// Verdict is the advancement decision for one scored attempt.
type Verdict string

const (
	// VerdictPerfect advances with a near-perfect score.
	VerdictPerfect Verdict = "perfect"

	// VerdictGood advances; missed words are logged for review.
	VerdictGood Verdict = "good"

	// VerdictPartial advances past a small number of missed words, which
	// go into the review bank.
	VerdictPartial Verdict = "partial_skip"

	// VerdictRetry asks the speaker to try the same unit again.
	VerdictRetry Verdict = "retry_needed"

	// VerdictSlowDown asks for a retry at a slower pace.
	VerdictSlowDown Verdict = "retry_slow_down"

	// VerdictForced advances after repeated failed attempts so the speaker
	// is never blocked; unresolved words go into the review bank.
	VerdictForced Verdict = "forced"
)

// Advances reports whether the verdict moves the session forward.
func (v Verdict) Advances() bool {
	switch v {
	case VerdictPerfect, VerdictGood, VerdictPartial, VerdictForced:
		return true
	}
	return false
}

// TimingAction is a nudge the engine suggests based on time spent on the
// current unit. The engine never acts on wall-clock time by itself; the
// caller's UI loop decides what to do with the suggestion.
type TimingAction string

const (
	ActionNone           TimingAction = "none"
	ActionSuggestHint    TimingAction = "suggest_hint"
	ActionAutoHide       TimingAction = "auto_hide"
	ActionSuggestAdvance TimingAction = "suggest_advance"
)

// WordResult is the outcome of one word-mode attempt.
type WordResult struct {
	Correct    bool
	Similarity float64
	Diffs      []score.Diff

	// Advanced is set when the session moved to the next word.
	Advanced bool

	// HintLevel is the (possibly escalated) hint level after the attempt.
	HintLevel int

	// Done is set when the attempt completed the session.
	Done bool
}

// PhraseResult is the outcome of one phrase-mode attempt.
type PhraseResult struct {
	Verdict  Verdict
	Score    score.Result
	Advanced bool

	// MissedWords are the expected words not produced acceptably.
	MissedWords []string

	Done bool
}

// Option configures an [Engine].
type Option func(*Engine)

// WithScorer replaces the default scorer.
func WithScorer(s *score.Scorer) Option {
	return func(e *Engine) {
		e.scorer = s
	}
}

// WithTracker replaces the default mastery tracker.
func WithTracker(t *mastery.Tracker) Option {
	return func(e *Engine) {
		e.tracker = t
	}
}

// WithDetector replaces the default pattern detector.
func WithDetector(d *patterns.Detector) Option {
	return func(e *Engine) {
		e.detector = d
	}
}

// WithAdvancePolicy tunes the phrase advancement thresholds (accuracy
// percentages). Defaults: perfect 95, good 80, partial 60, retry 40.
func WithAdvancePolicy(perfect, good, partial, retry float64) Option {
	return func(e *Engine) {
		e.perfectAcc = perfect
		e.goodAcc = good
		e.partialAcc = partial
		e.retryAcc = retry
	}
}

// WithMaxPhraseAttempts sets how many failed attempts on one phrase force
// an advance. Default: 3.
func WithMaxPhraseAttempts(n int) Option {
	return func(e *Engine) {
		e.maxPhraseAttempts = n
	}
}

// WithTimingThresholds sets the hint, auto-hide, and advance suggestion
// thresholds in seconds. Defaults: 3, 4, 5.
func WithTimingThresholds(hint, autoHide, advance float64) Option {
	return func(e *Engine) {
		e.hintAfter = hint
		e.autoHideAfter = autoHide
		e.advanceAfter = advance
	}
}

// WithAutoHide enables or disables the auto-hide nudge. Default: enabled.
func WithAutoHide(enabled bool) Option {
	return func(e *Engine) {
		e.autoHide = enabled
	}
}

// Engine applies attempts to sessions. Safe for concurrent use across
// different sessions; attempts on one session must be serialized by the
// caller.
type Engine struct {
	scorer   *score.Scorer
	tracker  *mastery.Tracker
	detector *patterns.Detector

	perfectAcc float64
	goodAcc    float64
	partialAcc float64
	retryAcc   float64

	// maxMissed and minCorrectFraction gate the partial-skip verdict.
	maxMissed          int
	minCorrectFraction float64

	maxPhraseAttempts int

	hintAfter     float64
	autoHideAfter float64
	advanceAfter  float64
	autoHide      bool
}

// NewEngine returns an [Engine] with default collaborators and policy.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		scorer:             score.New(),
		tracker:            mastery.New(),
		detector:           patterns.New(),
		perfectAcc:         95,
		goodAcc:            80,
		partialAcc:         60,
		retryAcc:           40,
		maxMissed:          2,
		minCorrectFraction: 0.6,
		maxPhraseAttempts:  3,
		hintAfter:          3,
		autoHideAfter:      4,
		advanceAfter:       5,
		autoHide:           true,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// AttemptWord scores one spoken attempt at the current word. The word is
// accepted when the scorer classifies it as correct or as a pronunciation
// variant.
func (e *Engine) AttemptWord(s *Session, transcript string, confidence float64, now time.Time) (WordResult, error) {
	if s.State == StateComplete {
		return WordResult{}, ErrSessionComplete
	}
	if s.Mode != ModeWord {
		return WordResult{}, ErrModeMismatch
	}

	idx := s.CurrentIndex
	expected := []string{s.Tokens[idx].Text}
	result := e.scorer.ScoreTranscript(transcript, expected, confidence)

	correct := result.CorrectCount >= 1
	var similarity float64
	if len(result.Diffs) > 0 {
		similarity = result.Diffs[0].Similarity
	}

	responseTime := now.Sub(s.unitStartedAt).Seconds()
	ws := s.wordState(idx)
	ws.Attempts++
	ws.TimeOn += responseTime
	s.Attempts++
	s.Stats.TotalAttempts++
	s.LastActivity = now

	rec := s.record(idx)
	s.Mastery[idx] = e.tracker.Apply(rec, mastery.Outcome{
		Success:      correct,
		Accuracy:     similarity,
		ResponseTime: responseTime,
	}, now)

	res := WordResult{
		Correct:    correct,
		Similarity: similarity,
		Diffs:      result.Diffs,
	}

	if correct {
		ws.Completed = true
		ws.Correct = true
		s.Stats.WordsPracticed++
		s.Stats.CorrectWords++
		s.CurrentIndex++
		s.resetUnit(now)
		res.Advanced = true
		if s.CurrentIndex >= len(s.Tokens) {
			s.State = StateComplete
			res.Done = true
		}
	} else if s.Attempts >= 2 && s.HintLevel < 3 {
		// Repeated misses escalate the hint layer automatically.
		s.HintLevel++
		s.Stats.HintsUsed++
	}

	res.HintLevel = s.HintLevel
	return res, nil
}

// AttemptPhrase scores one spoken attempt at the current phrase window and
// applies the advancement policy. Mastery is updated for every expected
// word in the window: produced words succeed, substituted and missing
// words fail.
func (e *Engine) AttemptPhrase(s *Session, transcript string, confidence float64, now time.Time) (PhraseResult, error) {
	if s.State == StateComplete {
		return PhraseResult{}, ErrSessionComplete
	}
	if s.Mode != ModePhrase {
		return PhraseResult{}, ErrModeMismatch
	}

	start, end := s.CurrentIndex, s.phraseEnd()
	window := s.Tokens[start:end]
	result := e.scorer.ScoreTranscript(transcript, textseq.Words(window), confidence)

	s.Attempts++
	s.Stats.TotalAttempts++
	s.LastActivity = now
	elapsed := now.Sub(s.unitStartedAt).Seconds()
	perWord := elapsed / float64(len(window))

	verdict := e.phraseVerdict(result, len(window))
	if !verdict.Advances() && s.Attempts >= e.maxPhraseAttempts {
		verdict = VerdictForced
	}

	var missedIdx []int
	accuracy := result.Accuracy / 100
	for _, d := range result.Diffs {
		if d.Status == score.StatusExtra {
			continue
		}
		idx := start + d.Position
		if idx >= end {
			idx = end - 1
		}
		produced := d.Status == score.StatusCorrect || d.Status == score.StatusVariant

		ws := s.wordState(idx)
		ws.Attempts++
		ws.TimeOn += perWord

		rec := s.record(idx)
		s.Mastery[idx] = e.tracker.Apply(rec, mastery.Outcome{
			Success:      produced,
			Accuracy:     accuracy,
			ResponseTime: perWord,
		}, now)

		if !produced {
			missedIdx = append(missedIdx, idx)
		}
	}

	res := PhraseResult{
		Verdict:     verdict,
		Score:       result,
		MissedWords: result.MissedWords(),
	}

	if verdict.Advances() {
		if verdict != VerdictPerfect {
			s.ReviewBank = append(s.ReviewBank, missedIdx...)
		}
		for i := start; i < end; i++ {
			ws := s.wordState(i)
			ws.Completed = true
			s.Stats.WordsPracticed++
			if ws.Correct || !slices.Contains(missedIdx, i) {
				ws.Correct = true
				s.Stats.CorrectWords++
			}
		}
		s.CurrentIndex = end
		s.resetUnit(now)
		res.Advanced = true
		if s.CurrentIndex >= len(s.Tokens) {
			s.State = StateComplete
			res.Done = true
		}
	}

	return res, nil
}

// phraseVerdict applies the ordered advancement policy; the first matching
// rule wins.
func (e *Engine) phraseVerdict(result score.Result, windowLen int) Verdict {
	correctFraction := float64(result.CorrectCount) / float64(windowLen)
	switch {
	case result.Accuracy >= e.perfectAcc:
		return VerdictPerfect
	case result.Accuracy >= e.goodAcc:
		return VerdictGood
	case result.Accuracy >= e.partialAcc &&
		result.MissedCount <= e.maxMissed &&
		correctFraction >= e.minCorrectFraction:
		return VerdictPartial
	case result.Accuracy >= e.retryAcc:
		return VerdictRetry
	default:
		return VerdictSlowDown
	}
}

// Tick evaluates timing nudges for the current unit against the caller's
// clock. Each nudge fires at most once per unit. An auto-hide nudge also
// marks the current word hidden in the session so the next render blanks
// it.
func (e *Engine) Tick(s *Session, now time.Time) TimingAction {
	if s.State != StateActive {
		return ActionNone
	}
	elapsed := now.Sub(s.unitStartedAt).Seconds()

	switch {
	case elapsed >= e.advanceAfter && !s.advSuggested:
		s.advSuggested = true
		return ActionSuggestAdvance
	case e.autoHide && elapsed >= e.autoHideAfter && !s.hidSuggested:
		s.hidSuggested = true
		s.AutoHidden[s.CurrentIndex] = true
		s.Stats.AutoHides++
		return ActionAutoHide
	case elapsed >= e.hintAfter && !s.hintSuggested:
		s.hintSuggested = true
		return ActionSuggestHint
	}
	return ActionNone
}

// RequestHint applies a hint for the current word, choosing the kind from
// the word's length, attempt history, and problem status. The returned
// kind tells the caller what was revealed; HintContext leaves the word
// itself masked and the UI should surface the neighbors instead.
func (e *Engine) RequestHint(s *Session, now time.Time) (display.HintKind, error) {
	if s.State != StateActive {
		return 0, ErrSessionComplete
	}

	idx := s.CurrentIndex
	kind := display.ChooseHint(s.Tokens[idx].Text, s.wordState(idx).Attempts, s.record(idx).IsProblemWord)
	if lvl := kind.Level(); lvl > s.HintLevel {
		s.HintLevel = lvl
	}
	s.Stats.HintsUsed++
	s.LastActivity = now
	return kind, nil
}

// SkipWord advances past the current word without a mastery penalty, for
// use after an accepted suggest-advance nudge.
func (e *Engine) SkipWord(s *Session, now time.Time) error {
	if s.State != StateActive {
		return ErrSessionComplete
	}
	if s.Mode != ModeWord {
		return ErrModeMismatch
	}

	s.ReviewBank = append(s.ReviewBank, s.CurrentIndex)
	s.wordState(s.CurrentIndex).Completed = true
	s.Stats.WordsPracticed++
	s.CurrentIndex++
	s.resetUnit(now)
	s.LastActivity = now
	if s.CurrentIndex >= len(s.Tokens) {
		s.State = StateComplete
	}
	return nil
}

// RenderInput assembles the display input for the session's current state.
func (e *Engine) RenderInput(s *Session) display.Input {
	completed := make(map[int]bool, len(s.Words))
	for i, ws := range s.Words {
		if ws.Completed {
			completed[i] = true
		}
	}
	current := s.CurrentIndex
	if s.State == StateComplete {
		current = -1
	}
	return display.Input{
		Tokens:       s.Tokens,
		Boundaries:   s.Bounds,
		Mastery:      s.Mastery,
		CurrentIndex: current,
		HintLevel:    s.HintLevel,
		Round:        s.Round,
		Completed:    completed,
		AutoHidden:   s.AutoHidden,
	}
}
