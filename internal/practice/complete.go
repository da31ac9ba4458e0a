package practice

import (
	"time"

	"github.com/ebarkley/versewise/internal/patterns"
)

// Summary is the final accounting for a finished session. The caller
// persists it (and the detected patterns) through its storage collaborator.
type Summary struct {
	SessionID string
	SubjectID string
	TextID    string
	Mode      Mode

	WordsPracticed int
	CorrectWords   int
	TotalAttempts  int
	HintsUsed      int
	AutoHides      int

	// Accuracy is the percentage of practiced words produced correctly.
	Accuracy float64

	// WordsPerMinute is the practiced-word rate over the session duration.
	WordsPerMinute float64

	Duration time.Duration

	// ReviewWords are the surface forms left in the review bank.
	ReviewWords []string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Complete finalizes the session, computes summary statistics, and runs
// pattern detection over the session's attempt log. It can be called on a
// session in any state; an abandoned session simply summarizes what
// happened so far. Pattern detection failures are returned alongside the
// partial pattern list and never void the summary.
func (e *Engine) Complete(s *Session, now time.Time) (Summary, []patterns.Pattern, error) {
	s.State = StateComplete
	s.LastActivity = now

	duration := now.Sub(s.StartedAt)
	sum := Summary{
		SessionID:      s.ID,
		SubjectID:      s.SubjectID,
		TextID:         s.TextID,
		Mode:           s.Mode,
		WordsPracticed: s.Stats.WordsPracticed,
		CorrectWords:   s.Stats.CorrectWords,
		TotalAttempts:  s.Stats.TotalAttempts,
		HintsUsed:      s.Stats.HintsUsed,
		AutoHides:      s.Stats.AutoHides,
		Duration:       duration,
		StartedAt:      s.StartedAt,
		FinishedAt:     now,
	}
	if sum.WordsPracticed > 0 {
		sum.Accuracy = float64(sum.CorrectWords) / float64(sum.WordsPracticed) * 100
	}
	if mins := duration.Minutes(); mins > 0 {
		sum.WordsPerMinute = float64(sum.WordsPracticed) / mins
	}
	for _, idx := range s.ReviewBank {
		sum.ReviewWords = append(sum.ReviewWords, s.Tokens[idx].Text)
	}

	log := make([]patterns.WordAttempt, 0, len(s.Words))
	for i, ws := range s.Words {
		log = append(log, patterns.WordAttempt{
			Index:     i,
			Attempts:  ws.Attempts,
			TimeSpent: ws.TimeOn,
			Correct:   ws.Correct,
		})
	}

	pats, err := e.detector.Detect(s.SubjectID, s.TextID, log, s.Tokens, s.Bounds)
	return sum, pats, err
}
