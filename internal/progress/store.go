// Package progress defines the persistence contract for long-lived
// practice data: per-word mastery records, accumulated difficulty
// patterns, and completed session records.
//
// The practice engine never performs storage itself; the caller loads a
// snapshot, runs a session, and hands the results back to a [Store]. The
// caller must serialize writes per (subject, text) pair.
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/ebarkley/versewise/internal/mastery"
	"github.com/ebarkley/versewise/internal/patterns"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("progress: not found")

// SessionRecord is the persisted outcome of one completed session.
type SessionRecord struct {
	SessionID string
	SubjectID string
	TextID    string
	Mode      string

	WordsPracticed int
	CorrectWords   int
	HintsUsed      int

	// Accuracy is in [0, 100].
	Accuracy float64

	Duration   time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
}

// TextProgress is the aggregate standing of one subject on one text,
// derived from mastery records and session history.
type TextProgress struct {
	SubjectID string
	TextID    string

	// OverallMastery is the mean word mastery in [0, 1].
	OverallMastery float64

	BestAccuracy    float64
	AverageAccuracy float64
	TotalSessions   int
	TotalPractice   time.Duration

	ProblemWords  int
	MasteredWords int
}

// Store persists practice progress. All implementations must be safe for
// concurrent use.
type Store interface {
	// LoadMastery returns all mastery records for a subject and text.
	// A subject with no history returns an empty slice, not an error.
	LoadMastery(ctx context.Context, subjectID, textID string) ([]mastery.Record, error)

	// SaveMastery upserts the given mastery records, keyed by
	// (subject, text, word index).
	SaveMastery(ctx context.Context, recs []mastery.Record) error

	// LoadPatterns returns the accumulated difficulty patterns for a
	// subject and text.
	LoadPatterns(ctx context.Context, subjectID, textID string) ([]patterns.Pattern, error)

	// UpsertPatterns merges detected patterns into storage, keyed by
	// (subject, text, type, start index); repeat detections increment
	// frequency rather than creating duplicates.
	UpsertPatterns(ctx context.Context, pats []patterns.Pattern) error

	// AppendSession records one completed session.
	AppendSession(ctx context.Context, rec SessionRecord) error

	// TextProgress computes the aggregate standing for a subject and text.
	// Returns [ErrNotFound] when the subject has no history on the text.
	TextProgress(ctx context.Context, subjectID, textID string) (TextProgress, error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error
}

// aggregate derives TextProgress from raw records; shared by implementations.
func aggregate(subjectID, textID string, recs []mastery.Record, sessions []SessionRecord) (TextProgress, error) {
	if len(recs) == 0 && len(sessions) == 0 {
		return TextProgress{}, ErrNotFound
	}

	tp := TextProgress{SubjectID: subjectID, TextID: textID}

	var masterySum float64
	for _, r := range recs {
		masterySum += r.Mastery
		if r.IsProblemWord {
			tp.ProblemWords++
		}
		if mastery.IsMastered(r) {
			tp.MasteredWords++
		}
	}
	if len(recs) > 0 {
		tp.OverallMastery = masterySum / float64(len(recs))
	}

	var accSum float64
	for _, s := range sessions {
		tp.TotalSessions++
		tp.TotalPractice += s.Duration
		accSum += s.Accuracy
		if s.Accuracy > tp.BestAccuracy {
			tp.BestAccuracy = s.Accuracy
		}
	}
	if tp.TotalSessions > 0 {
		tp.AverageAccuracy = accSum / float64(tp.TotalSessions)
	}
	return tp, nil
}
