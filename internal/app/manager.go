// Package app composes the practice engine, session store, progress
// store, and display masker into one service surface. The [Manager] owns
// the glue: it loads mastery before a session, serializes engine calls per
// session, records metrics, and persists outcomes when a session finishes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebarkley/versewise/internal/display"
	"github.com/ebarkley/versewise/internal/mastery"
	"github.com/ebarkley/versewise/internal/observe"
	"github.com/ebarkley/versewise/internal/patterns"
	"github.com/ebarkley/versewise/internal/practice"
	"github.com/ebarkley/versewise/internal/progress"
)

// Config holds all dependencies for a [Manager].
type Config struct {
	Engine   *practice.Engine
	Sessions practice.Store
	Progress progress.Store
	Masker   *display.Masker
	Metrics  *observe.Metrics

	// Clock supplies the current time for engine calls. Defaults to
	// [time.Now]; tests substitute a fixed clock.
	Clock func() time.Time
}

// Manager drives practice sessions end to end. All exported methods are
// safe for concurrent use; calls touching the same session are serialized
// internally.
type Manager struct {
	engine   *practice.Engine
	sessions practice.Store
	progress progress.Store
	masker   *display.Masker
	metrics  *observe.Metrics
	clock    func() time.Time

	// mu guards locks; each session gets its own mutex so slow storage on
	// one session never blocks attempts on another.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a [Manager] with the given dependencies.
func New(cfg Config) (*Manager, error) {
	if cfg.Engine == nil {
		return nil, errors.New("app: engine is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("app: session store is required")
	}
	if cfg.Progress == nil {
		return nil, errors.New("app: progress store is required")
	}
	if cfg.Masker == nil {
		cfg.Masker = display.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Manager{
		engine:   cfg.Engine,
		sessions: cfg.Sessions,
		progress: cfg.Progress,
		masker:   cfg.Masker,
		metrics:  cfg.Metrics,
		clock:    cfg.Clock,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// StartInput describes a session to start.
type StartInput struct {
	SubjectID string
	TextID    string

	// Text is the raw reference text to practice.
	Text string

	Mode practice.Mode

	// PhraseSize is the phrase window width; zero means the default.
	PhraseSize int
}

// StartSession loads the subject's mastery history for the text, builds a
// new session, and registers it. Each previously completed session over the
// text counts as one reveal round, so a returning subject starts with more
// of the text masked. The returned session ID addresses all subsequent
// calls.
func (m *Manager) StartSession(ctx context.Context, in StartInput) (*practice.Session, error) {
	snapshot, err := m.progress.LoadMastery(ctx, in.SubjectID, in.TextID)
	if err != nil {
		m.metrics.RecordStoreError(ctx, "load_mastery")
		return nil, fmt.Errorf("app: start session: %w", err)
	}

	s, err := practice.NewSession("", in.SubjectID, in.TextID, in.Text, snapshot, in.Mode, in.PhraseSize, m.clock())
	if err != nil {
		return nil, err
	}

	tp, err := m.progress.TextProgress(ctx, in.SubjectID, in.TextID)
	switch {
	case err == nil:
		s.Round = tp.TotalSessions
	case !errors.Is(err, progress.ErrNotFound):
		m.metrics.RecordStoreError(ctx, "text_progress")
		return nil, fmt.Errorf("app: start session: %w", err)
	}
	if err := m.sessions.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("app: start session: %w", err)
	}

	m.metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("session started",
		"session_id", s.ID,
		"subject_id", s.SubjectID,
		"text_id", s.TextID,
		"mode", s.Mode,
		"words", len(s.Tokens),
	)
	return s, nil
}

// AttemptResult is the outcome of one scored attempt. Exactly one of Word
// and Phrase is set, matching the session mode.
type AttemptResult struct {
	Word   *practice.WordResult
	Phrase *practice.PhraseResult

	// Done mirrors the engine result's Done flag.
	Done bool
}

// Attempt scores one spoken transcript against the session's current word
// or phrase window, depending on the session mode.
func (m *Manager) Attempt(ctx context.Context, sessionID, transcript string, confidence float64) (AttemptResult, error) {
	s, unlock, err := m.checkout(ctx, sessionID)
	if err != nil {
		return AttemptResult{}, err
	}
	defer unlock()

	now := m.clock()
	start := time.Now()

	var res AttemptResult
	switch s.Mode {
	case practice.ModePhrase:
		pr, err := m.engine.AttemptPhrase(s, transcript, confidence, now)
		if err != nil {
			return AttemptResult{}, err
		}
		res.Phrase = &pr
		res.Done = pr.Done
		m.metrics.RecordAttempt(ctx, string(s.Mode), string(pr.Verdict), time.Since(start).Seconds())
	default:
		wr, err := m.engine.AttemptWord(s, transcript, confidence, now)
		if err != nil {
			return AttemptResult{}, err
		}
		res.Word = &wr
		res.Done = wr.Done
		verdict := "incorrect"
		if wr.Correct {
			verdict = "correct"
		}
		m.metrics.RecordAttempt(ctx, string(s.Mode), verdict, time.Since(start).Seconds())
	}
	return res, nil
}

// Hint issues a hint for the session's current word.
func (m *Manager) Hint(ctx context.Context, sessionID string) (display.HintKind, error) {
	s, unlock, err := m.checkout(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	kind, err := m.engine.RequestHint(s, m.clock())
	if err != nil {
		return 0, err
	}
	m.metrics.RecordHint(ctx, kind.String())
	return kind, nil
}

// Tick evaluates timing nudges for the session's current unit.
func (m *Manager) Tick(ctx context.Context, sessionID string) (practice.TimingAction, error) {
	s, unlock, err := m.checkout(ctx, sessionID)
	if err != nil {
		return practice.ActionNone, err
	}
	defer unlock()

	action := m.engine.Tick(s, m.clock())
	if action == practice.ActionAutoHide {
		m.metrics.AutoHides.Add(ctx, 1)
	}
	return action, nil
}

// Skip advances past the current word without a mastery penalty.
func (m *Manager) Skip(ctx context.Context, sessionID string) error {
	s, unlock, err := m.checkout(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	return m.engine.SkipWord(s, m.clock())
}

// Render produces the masked span sequence for the session's current state.
func (m *Manager) Render(ctx context.Context, sessionID string) ([]display.Span, error) {
	s, unlock, err := m.checkout(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return m.masker.Render(m.engine.RenderInput(s))
}

// RecallWords picks the hardest fraction of the session's words for a
// delayed recall round, based on the working mastery snapshot.
func (m *Manager) RecallWords(ctx context.Context, sessionID string, fraction float64) ([]int, error) {
	s, unlock, err := m.checkout(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return display.SelectRecallWords(s.Tokens, s.Mastery, fraction), nil
}

// FinishSession finalizes a session: it computes the summary, runs pattern
// detection, persists mastery, patterns, and the session record, and
// removes the session from the store. Persistence failures are joined into
// the returned error but the summary is always returned; the session is
// removed regardless so a retry cannot double-count.
func (m *Manager) FinishSession(ctx context.Context, sessionID string) (practice.Summary, []patterns.Pattern, error) {
	s, unlock, err := m.checkout(ctx, sessionID)
	if err != nil {
		return practice.Summary{}, nil, err
	}
	defer unlock()

	now := m.clock()
	sum, pats, detectErr := m.engine.Complete(s, now)
	if detectErr != nil {
		slog.Warn("pattern detection incomplete",
			"session_id", s.ID,
			"err", detectErr,
		)
	}

	var errs []error
	if recs := s.MasterySnapshot(); len(recs) > 0 {
		if err := m.progress.SaveMastery(ctx, recs); err != nil {
			m.metrics.RecordStoreError(ctx, "save_mastery")
			errs = append(errs, fmt.Errorf("app: save mastery: %w", err))
		}
	}
	if len(pats) > 0 {
		if err := m.progress.UpsertPatterns(ctx, pats); err != nil {
			m.metrics.RecordStoreError(ctx, "upsert_patterns")
			errs = append(errs, fmt.Errorf("app: upsert patterns: %w", err))
		}
		for _, p := range pats {
			m.metrics.RecordPattern(ctx, string(p.Type))
		}
	}
	if err := m.progress.AppendSession(ctx, progress.SessionRecord{
		SessionID:      sum.SessionID,
		SubjectID:      sum.SubjectID,
		TextID:         sum.TextID,
		Mode:           string(sum.Mode),
		WordsPracticed: sum.WordsPracticed,
		CorrectWords:   sum.CorrectWords,
		HintsUsed:      sum.HintsUsed,
		Accuracy:       sum.Accuracy,
		Duration:       sum.Duration,
		StartedAt:      sum.StartedAt,
		FinishedAt:     sum.FinishedAt,
	}); err != nil {
		m.metrics.RecordStoreError(ctx, "append_session")
		errs = append(errs, fmt.Errorf("app: append session: %w", err))
	}

	if err := m.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, practice.ErrSessionNotFound) {
		errs = append(errs, fmt.Errorf("app: delete session: %w", err))
	}
	m.release(sessionID)
	m.metrics.ActiveSessions.Add(ctx, -1)
	m.metrics.RecordSessionCompleted(ctx, string(sum.Mode))

	slog.Info("session finished",
		"session_id", sum.SessionID,
		"subject_id", sum.SubjectID,
		"text_id", sum.TextID,
		"accuracy", sum.Accuracy,
		"words_practiced", sum.WordsPracticed,
		"patterns", len(pats),
	)
	return sum, pats, errors.Join(errs...)
}

// DueWords returns the subject's words due for review on the text, in
// review priority order.
func (m *Manager) DueWords(ctx context.Context, subjectID, textID string, limit int) ([]mastery.Record, error) {
	recs, err := m.progress.LoadMastery(ctx, subjectID, textID)
	if err != nil {
		m.metrics.RecordStoreError(ctx, "load_mastery")
		return nil, fmt.Errorf("app: due words: %w", err)
	}
	return mastery.Due(recs, m.clock(), limit), nil
}

// Recommendations turns the subject's accumulated difficulty patterns on
// the text into human-readable practice advice.
func (m *Manager) Recommendations(ctx context.Context, subjectID, textID string, limit int) ([]string, error) {
	pats, err := m.progress.LoadPatterns(ctx, subjectID, textID)
	if err != nil {
		m.metrics.RecordStoreError(ctx, "load_patterns")
		return nil, fmt.Errorf("app: recommendations: %w", err)
	}
	return patterns.Recommendations(pats, limit), nil
}

// Progress returns the subject's aggregate standing on the text.
func (m *Manager) Progress(ctx context.Context, subjectID, textID string) (progress.TextProgress, error) {
	tp, err := m.progress.TextProgress(ctx, subjectID, textID)
	if err != nil {
		if !errors.Is(err, progress.ErrNotFound) {
			m.metrics.RecordStoreError(ctx, "text_progress")
		}
		return progress.TextProgress{}, err
	}
	return tp, nil
}

// checkout fetches a session and acquires its lock. The returned unlock
// must be called when the engine call completes.
func (m *Manager) checkout(ctx context.Context, id string) (*practice.Session, func(), error) {
	lock := m.sessionLock(id)
	lock.Lock()

	s, err := m.sessions.Get(ctx, id)
	if err != nil {
		lock.Unlock()
		return nil, nil, err
	}
	return s, lock.Unlock, nil
}

// sessionLock returns the mutex for a session ID, creating it on demand.
func (m *Manager) sessionLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

// release drops a finished session's lock entry.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, id)
}
