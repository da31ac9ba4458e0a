// Package mastery tracks per-word recall proficiency with an SM-2 style
// spaced-repetition schedule.
//
// A [Record] is the only long-lived state the practice engine mutates. The
// [Tracker] is pure: [Tracker.Apply] takes a record snapshot plus one attempt
// outcome and returns the updated snapshot. It never reads the wall clock;
// the caller supplies the current time. Callers must serialize Apply calls
// per (subject, text) pair — the tracker itself holds no locks.
package mastery

import (
	"math"
	"sort"
	"time"
)

// Scheduling and scoring bounds.
const (
	// MinEase and MaxEase bound the SM-2 ease factor.
	MinEase = 1.3
	MaxEase = 3.0

	// InitialEase is the ease factor assigned to a word on first contact.
	InitialEase = 2.5
)

// Record is the persistent mastery state for one word of one text for one
// subject. Created lazily on the first attempt, mutated on every attempt,
// never deleted.
type Record struct {
	SubjectID string
	TextID    string
	WordIndex int
	WordText  string

	// Mastery estimates recall reliability in [0, 1].
	Mastery float64

	// EaseFactor is the SM-2 scheduling parameter in [MinEase, MaxEase].
	EaseFactor float64

	// Repetitions counts consecutive successful reviews.
	Repetitions int

	// IntervalDays is the current review interval, at least 1.
	IntervalDays int

	// NextReview is when the word is next due.
	NextReview time.Time

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int

	// AvgResponseTime is an exponential moving average of response times in
	// seconds. Zero means no timing has been recorded yet.
	AvgResponseTime float64

	// IsProblemWord flags words needing focused attention.
	IsProblemWord bool

	LastPracticed time.Time
}

// NewRecord returns the initial mastery state for a word that has never
// been practiced.
func NewRecord(subjectID, textID string, wordIndex int, wordText string) Record {
	return Record{
		SubjectID:    subjectID,
		TextID:       textID,
		WordIndex:    wordIndex,
		WordText:     wordText,
		EaseFactor:   InitialEase,
		IntervalDays: 1,
	}
}

// Outcome is one scored attempt at a word.
type Outcome struct {
	// Success is whether the word was produced acceptably.
	Success bool

	// Accuracy is the attempt accuracy in [0, 1], used to derive the SM-2
	// quality grade. For single-word attempts this is typically the
	// similarity score; for phrase attempts, the phrase accuracy.
	Accuracy float64

	// ResponseTime is seconds spent before the word was produced.
	// Zero means not measured and leaves the moving average untouched.
	ResponseTime float64
}

// Option configures a [Tracker].
type Option func(*Tracker)

// WithLearningRate sets the base mastery gain per successful review.
// Default: 0.1.
func WithLearningRate(rate float64) Option {
	return func(t *Tracker) {
		t.learningRate = rate
	}
}

// WithFailurePenalty sets the base and per-consecutive-failure step of the
// mastery reduction applied on failure. Defaults: 0.05 base, 0.02 step.
func WithFailurePenalty(base, step float64) Option {
	return func(t *Tracker) {
		t.failureBase = base
		t.failureStep = step
	}
}

// WithProblemThresholds sets the limits past which a word is flagged as a
// problem word. Defaults: 3 consecutive failures, mastery below 0.3, or an
// average response time above 5 seconds.
func WithProblemThresholds(failures int, masteryFloor, responseTime float64) Option {
	return func(t *Tracker) {
		t.problemFailures = failures
		t.problemMastery = masteryFloor
		t.problemResponse = responseTime
	}
}

// Tracker applies attempt outcomes to mastery records.
// Safe for concurrent use; it is read-only after construction.
type Tracker struct {
	learningRate    float64
	easePenalty     float64
	failureBase     float64
	failureStep     float64
	emaWeight       float64
	problemFailures int
	problemMastery  float64
	problemResponse float64
}

// New returns a [Tracker] with default tuning.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		learningRate:    0.1,
		easePenalty:     0.2,
		failureBase:     0.05,
		failureStep:     0.02,
		emaWeight:       0.2,
		problemFailures: 3,
		problemMastery:  0.3,
		problemResponse: 5.0,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Apply folds one attempt outcome into rec and returns the updated record.
// now is the attempt time as observed by the caller; the next review date
// is scheduled relative to it.
func (t *Tracker) Apply(rec Record, out Outcome, now time.Time) Record {
	if rec.EaseFactor == 0 {
		rec.EaseFactor = InitialEase
	}
	if rec.IntervalDays < 1 {
		rec.IntervalDays = 1
	}

	if out.Success {
		rec = t.applySuccess(rec, out)
	} else {
		rec = t.applyFailure(rec)
	}

	if out.ResponseTime > 0 {
		if rec.AvgResponseTime == 0 {
			rec.AvgResponseTime = out.ResponseTime
		} else {
			rec.AvgResponseTime = rec.AvgResponseTime*(1-t.emaWeight) + out.ResponseTime*t.emaWeight
		}
	}

	rec.EaseFactor = clamp(rec.EaseFactor, MinEase, MaxEase)
	rec.Mastery = clamp(rec.Mastery, 0, 1)
	rec.IsProblemWord = rec.ConsecutiveFailures >= t.problemFailures ||
		rec.Mastery < t.problemMastery ||
		rec.AvgResponseTime > t.problemResponse

	rec.LastPracticed = now
	rec.NextReview = now.AddDate(0, 0, rec.IntervalDays)
	return rec
}

func (t *Tracker) applySuccess(rec Record, out Outcome) Record {
	rec.Repetitions++
	rec.ConsecutiveFailures = 0

	switch rec.Repetitions {
	case 1:
		rec.IntervalDays = 1
	case 2:
		rec.IntervalDays = 6
	default:
		next := int(math.Round(float64(rec.IntervalDays) * rec.EaseFactor))
		if next < 1 {
			next = 1
		}
		rec.IntervalDays = next
	}

	q := quality(out.Accuracy)
	rec.EaseFactor += 0.1 - (5-q)*(0.08+(5-q)*0.02)

	// Mastery climbs toward 1.0 with diminishing gains; the effective rate
	// ramps up over the first ten repetitions so one lucky attempt cannot
	// mark a word as known.
	practiceFactor := math.Min(float64(rec.Repetitions)/10, 1)
	rec.Mastery += t.learningRate * (1 - rec.Mastery) * practiceFactor
	return rec
}

func (t *Tracker) applyFailure(rec Record) Record {
	rec.ConsecutiveFailures++
	rec.Repetitions = 0
	rec.IntervalDays = 1
	rec.EaseFactor -= t.easePenalty

	// Loss scales with current mastery, and repeated failures bite harder.
	penalty := (t.failureBase + t.failureStep*float64(rec.ConsecutiveFailures-1)) * rec.Mastery
	rec.Mastery -= penalty
	return rec
}

// IsMastered reports whether rec represents a reliably known word: at least
// five successful repetitions and mastery of 0.8 or higher.
func IsMastered(rec Record) bool {
	return rec.Repetitions >= 5 && rec.Mastery >= 0.8
}

// Due filters records to those due for review at now and orders them by
// priority: never-reviewed words first, then lowest ease factor, then
// earliest next-review time. At most limit records are returned; a
// non-positive limit means no cap.
func Due(records []Record, now time.Time, limit int) []Record {
	var due []Record
	for _, r := range records {
		if r.NextReview.IsZero() || !r.NextReview.After(now) {
			due = append(due, r)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if (due[i].Repetitions == 0) != (due[j].Repetitions == 0) {
			return due[i].Repetitions == 0
		}
		if due[i].EaseFactor != due[j].EaseFactor {
			return due[i].EaseFactor < due[j].EaseFactor
		}
		return due[i].NextReview.Before(due[j].NextReview)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}

// quality maps attempt accuracy in [0, 1] to the SM-2 quality grade 0..5.
func quality(accuracy float64) float64 {
	q := math.Round(accuracy * 5)
	return clamp(q, 0, 5)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
