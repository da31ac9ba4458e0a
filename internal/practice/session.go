// Package practice drives live memorization sessions: the current position
// in the text, attempt counters, hint escalation, timing nudges, and the
// advancement policy that decides when to move forward.
//
// A [Session] is plain state owned by the caller; the [Engine] operates on
// it. No method reads the wall clock — the caller passes the current time
// into every call, so the engine stays free of timers and is trivially
// testable. Callers must not share one Session across goroutines without
// their own serialization; the [MemStore] only guards its map, not the
// sessions inside it.
package practice

import (
	"errors"
	"fmt"
	"time"

	"github.com/ebarkley/versewise/internal/mastery"
	"github.com/ebarkley/versewise/internal/textseq"
)

// Sentinel errors for session operations.
var (
	// ErrSessionComplete is returned when an attempt is made on a session
	// that already reached the end of the text.
	ErrSessionComplete = errors.New("practice: session is complete")

	// ErrModeMismatch is returned when a word operation is called on a
	// phrase session or vice versa.
	ErrModeMismatch = errors.New("practice: operation does not match session mode")
)

// Mode is the practice granularity.
type Mode string

const (
	// ModeWord advances one token at a time.
	ModeWord Mode = "word"

	// ModePhrase scores and advances a whole multi-word window.
	ModePhrase Mode = "phrase"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	return m == ModeWord || m == ModePhrase
}

// State is the session lifecycle state.
type State string

const (
	StateActive   State = "active"
	StateComplete State = "complete"
)

// WordState is the session-scoped, ephemeral record for one word. Outcomes
// are persisted through mastery records; this only feeds in-session
// decisions and post-session pattern detection.
type WordState struct {
	Attempts  int
	TimeOn    float64 // seconds accumulated on this word
	Completed bool
	Correct   bool
}

// Stats accumulates over a session and feeds the final summary.
type Stats struct {
	WordsPracticed int
	CorrectWords   int
	TotalAttempts  int
	HintsUsed      int
	AutoHides      int
}

// Session is the live state of one practice run over one text.
type Session struct {
	ID        string
	SubjectID string
	TextID    string

	Mode  Mode
	State State

	Tokens []textseq.WordToken
	Bounds textseq.Boundaries

	// Mastery is the working snapshot, keyed by token index. Records are
	// created lazily on first attempt and must be persisted by the caller
	// after the session.
	Mastery map[int]mastery.Record

	// CurrentIndex is the next token to produce (word mode) or the start
	// of the current phrase window (phrase mode).
	CurrentIndex int

	// PhraseSize is the window width in phrase mode.
	PhraseSize int

	// Attempts counts tries on the current word or phrase window.
	Attempts int

	// HintLevel is the current word's hint layer (0..3).
	HintLevel int

	// Round is the reveal round driving progressive masking: round 0 shows
	// the full text and each later round hides more. The caller seeds it
	// when building the session, normally from the subject's completed
	// session count for the text.
	Round int

	// ReviewBank holds token indices left unresolved by partial or forced
	// advancement, for later focused review.
	ReviewBank []int

	Words      map[int]*WordState
	AutoHidden map[int]bool

	Stats Stats

	StartedAt    time.Time
	LastActivity time.Time

	// unitStartedAt is when work began on the current word or phrase.
	unitStartedAt time.Time
	hintSuggested bool
	hidSuggested  bool
	advSuggested  bool
}

// NewSession builds a session over raw reference text, seeding the working
// mastery snapshot from previously persisted records. phraseSize is only
// used in phrase mode and defaults to 5 when non-positive.
func NewSession(id, subjectID, textID, raw string, snapshot []mastery.Record, mode Mode, phraseSize int, now time.Time) (*Session, error) {
	tokens, err := textseq.Tokenize(raw)
	if err != nil {
		return nil, fmt.Errorf("practice: new session: %w", err)
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("practice: new session: invalid mode %q", mode)
	}
	if phraseSize <= 0 {
		phraseSize = 5
	}

	byIndex := make(map[int]mastery.Record, len(snapshot))
	for _, rec := range snapshot {
		if rec.WordIndex >= 0 && rec.WordIndex < len(tokens) {
			byIndex[rec.WordIndex] = rec
		}
	}

	return &Session{
		ID:            id,
		SubjectID:     subjectID,
		TextID:        textID,
		Mode:          mode,
		State:         StateActive,
		Tokens:        tokens,
		Bounds:        textseq.DetectBoundaries(raw, tokens),
		Mastery:       byIndex,
		PhraseSize:    phraseSize,
		Words:         make(map[int]*WordState),
		AutoHidden:    make(map[int]bool),
		StartedAt:     now,
		LastActivity:  now,
		unitStartedAt: now,
	}, nil
}

// wordState returns the session record for token i, creating it on demand.
func (s *Session) wordState(i int) *WordState {
	ws, ok := s.Words[i]
	if !ok {
		ws = &WordState{}
		s.Words[i] = ws
	}
	return ws
}

// record returns the working mastery record for token i, creating the
// initial record on first contact.
func (s *Session) record(i int) mastery.Record {
	rec, ok := s.Mastery[i]
	if !ok {
		rec = mastery.NewRecord(s.SubjectID, s.TextID, i, s.Tokens[i].Text)
	}
	return rec
}

// MasterySnapshot returns the working records as a slice for persistence.
func (s *Session) MasterySnapshot() []mastery.Record {
	out := make([]mastery.Record, 0, len(s.Mastery))
	for i := 0; i < len(s.Tokens); i++ {
		if rec, ok := s.Mastery[i]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// resetUnit prepares tracking for a new current word or phrase.
func (s *Session) resetUnit(now time.Time) {
	s.Attempts = 0
	s.HintLevel = 0
	s.unitStartedAt = now
	s.hintSuggested = false
	s.hidSuggested = false
	s.advSuggested = false
}

// phraseEnd returns the exclusive end of the current phrase window.
func (s *Session) phraseEnd() int {
	end := s.CurrentIndex + s.PhraseSize
	if end > len(s.Tokens) {
		end = len(s.Tokens)
	}
	return end
}
