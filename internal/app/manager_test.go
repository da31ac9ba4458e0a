package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/ebarkley/versewise/internal/app"
	"github.com/ebarkley/versewise/internal/display"
	"github.com/ebarkley/versewise/internal/observe"
	"github.com/ebarkley/versewise/internal/practice"
	"github.com/ebarkley/versewise/internal/progress"
)

// fixedClock advances by step on every call so timing nudges and response
// times stay deterministic.
type fixedClock struct {
	now  time.Time
	step time.Duration
}

func (c *fixedClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func newManager(t *testing.T, store progress.Store) *app.Manager {
	t.Helper()

	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	clock := &fixedClock{
		now:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		step: time.Second,
	}
	mgr, err := app.New(app.Config{
		Engine:   practice.NewEngine(),
		Sessions: practice.NewMemStore(),
		Progress: store,
		Metrics:  metrics,
		Clock:    clock.Now,
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	return mgr
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := app.New(app.Config{}); err == nil {
		t.Errorf("New with no dependencies: err = nil, want error")
	}
}

func TestManager_WordSessionLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := progress.NewMemStore()
	mgr := newManager(t, store)

	s, err := mgr.StartSession(ctx, app.StartInput{
		SubjectID: "subj",
		TextID:    "psalm-23",
		Text:      "The Lord is my shepherd",
		Mode:      practice.ModeWord,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if s.ID == "" {
		t.Fatalf("StartSession returned a session without an ID")
	}

	// Render before any attempt shows the full text.
	spans, err := mgr.Render(ctx, s.ID)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(spans) != 5 {
		t.Fatalf("len(spans) = %d, want 5", len(spans))
	}

	for _, word := range []string{"the", "lord", "is", "my"} {
		res, err := mgr.Attempt(ctx, s.ID, word, 1)
		if err != nil {
			t.Fatalf("Attempt(%q): %v", word, err)
		}
		if res.Word == nil || !res.Word.Correct {
			t.Fatalf("Attempt(%q) = %+v, want correct word result", word, res)
		}
	}

	res, err := mgr.Attempt(ctx, s.ID, "shepherd", 1)
	if err != nil {
		t.Fatalf("Attempt(final): %v", err)
	}
	if !res.Done {
		t.Fatalf("final attempt: Done = false, want true")
	}

	sum, _, err := mgr.FinishSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("FinishSession: %v", err)
	}
	if sum.WordsPracticed != 5 || sum.CorrectWords != 5 {
		t.Errorf("summary practiced/correct = %d/%d, want 5/5", sum.WordsPracticed, sum.CorrectWords)
	}
	if sum.Accuracy != 100 {
		t.Errorf("Accuracy = %v, want 100", sum.Accuracy)
	}

	// The session is gone; mastery was persisted.
	if _, err := mgr.Attempt(ctx, s.ID, "anything", 1); !errors.Is(err, practice.ErrSessionNotFound) {
		t.Errorf("attempt after finish: err = %v, want ErrSessionNotFound", err)
	}
	recs, err := store.LoadMastery(ctx, "subj", "psalm-23")
	if err != nil {
		t.Fatalf("LoadMastery: %v", err)
	}
	if len(recs) != 5 {
		t.Errorf("persisted mastery records = %d, want 5", len(recs))
	}

	tp, err := mgr.Progress(ctx, "subj", "psalm-23")
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if tp.TotalSessions != 1 || tp.BestAccuracy != 100 {
		t.Errorf("progress = %+v, want 1 session at 100%%", tp)
	}
}

func TestManager_SecondSessionSeesPriorMastery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := progress.NewMemStore()
	mgr := newManager(t, store)

	first, err := mgr.StartSession(ctx, app.StartInput{
		SubjectID: "subj", TextID: "text", Text: "alpha beta", Mode: practice.ModeWord,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	for _, word := range []string{"alpha", "beta"} {
		if _, err := mgr.Attempt(ctx, first.ID, word, 1); err != nil {
			t.Fatalf("Attempt(%q): %v", word, err)
		}
	}
	if _, _, err := mgr.FinishSession(ctx, first.ID); err != nil {
		t.Fatalf("FinishSession: %v", err)
	}

	second, err := mgr.StartSession(ctx, app.StartInput{
		SubjectID: "subj", TextID: "text", Text: "alpha beta", Mode: practice.ModeWord,
	})
	if err != nil {
		t.Fatalf("StartSession (second): %v", err)
	}
	if rec, ok := second.Mastery[0]; !ok || rec.Repetitions != 1 {
		t.Errorf("second session mastery[0] = %+v, want snapshot with 1 repetition", rec)
	}
}

func TestManager_PhraseSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mgr := newManager(t, progress.NewMemStore())

	s, err := mgr.StartSession(ctx, app.StartInput{
		SubjectID:  "subj",
		TextID:     "text",
		Text:       "the quick brown fox jumps",
		Mode:       practice.ModePhrase,
		PhraseSize: 5,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	res, err := mgr.Attempt(ctx, s.ID, "the quick brown fox jumps", 1)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if res.Phrase == nil || res.Phrase.Verdict != practice.VerdictPerfect {
		t.Fatalf("Attempt = %+v, want perfect phrase verdict", res)
	}
	if !res.Done {
		t.Errorf("Done = false, want true")
	}
}

func TestManager_HintAndTick(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mgr := newManager(t, progress.NewMemStore())

	s, err := mgr.StartSession(ctx, app.StartInput{
		SubjectID: "subj", TextID: "text", Text: "magnificent words", Mode: practice.ModeWord,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	kind, err := mgr.Hint(ctx, s.ID)
	if err != nil {
		t.Fatalf("Hint: %v", err)
	}
	if kind.Level() < 1 {
		t.Errorf("hint kind = %v with level %d, want a revealing hint", kind, kind.Level())
	}

	// The fixed clock advances one second per call, so repeated ticks walk
	// through the nudge thresholds.
	seen := map[practice.TimingAction]bool{}
	for i := 0; i < 8; i++ {
		action, err := mgr.Tick(ctx, s.ID)
		if err != nil {
			t.Fatalf("Tick: %v", err)
		}
		seen[action] = true
	}
	if !seen[practice.ActionSuggestHint] || !seen[practice.ActionAutoHide] || !seen[practice.ActionSuggestAdvance] {
		t.Errorf("nudges seen = %v, want hint, auto-hide, and advance", seen)
	}
}

func TestManager_MaskingDeepensAcrossSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := progress.NewMemStore()
	mgr := newManager(t, store)

	text := "one two three four five six seven eight nine ten"
	words := []string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten"}

	countHidden := func(spans []display.Span) int {
		n := 0
		for _, sp := range spans {
			if !sp.Visible {
				n++
			}
		}
		return n
	}

	first, err := mgr.StartSession(ctx, app.StartInput{
		SubjectID: "subj", TextID: "text", Text: text, Mode: practice.ModeWord,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if first.Round != 0 {
		t.Errorf("first session Round = %d, want 0", first.Round)
	}
	spans, err := mgr.Render(ctx, first.ID)
	if err != nil {
		t.Fatalf("Render (first): %v", err)
	}
	if got := countHidden(spans); got != 0 {
		t.Errorf("first session hidden spans = %d, want 0 (full text on round 0)", got)
	}

	for _, word := range words {
		if _, err := mgr.Attempt(ctx, first.ID, word, 1); err != nil {
			t.Fatalf("Attempt(%q): %v", word, err)
		}
	}
	if _, _, err := mgr.FinishSession(ctx, first.ID); err != nil {
		t.Fatalf("FinishSession: %v", err)
	}

	second, err := mgr.StartSession(ctx, app.StartInput{
		SubjectID: "subj", TextID: "text", Text: text, Mode: practice.ModeWord,
	})
	if err != nil {
		t.Fatalf("StartSession (second): %v", err)
	}
	if second.Round != 1 {
		t.Errorf("second session Round = %d, want 1", second.Round)
	}
	spans, err = mgr.Render(ctx, second.ID)
	if err != nil {
		t.Fatalf("Render (second): %v", err)
	}
	if got := countHidden(spans); got != 1 {
		t.Errorf("second session hidden spans = %d, want 1 (one step deeper per round)", got)
	}
}

func TestManager_RecallWords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mgr := newManager(t, progress.NewMemStore())

	s, err := mgr.StartSession(ctx, app.StartInput{
		SubjectID: "subj", TextID: "text",
		Text: "one two three four five six seven eight nine ten",
		Mode: practice.ModeWord,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	picked, err := mgr.RecallWords(ctx, s.ID, 0.3)
	if err != nil {
		t.Fatalf("RecallWords: %v", err)
	}
	if len(picked) != 3 {
		t.Errorf("len(picked) = %d, want 3 (30%% of 10)", len(picked))
	}
}

func TestManager_DueWordsAndRecommendations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := progress.NewMemStore()
	mgr := newManager(t, store)

	due, err := mgr.DueWords(ctx, "subj", "text", 10)
	if err != nil {
		t.Fatalf("DueWords: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("DueWords on empty store = %d, want 0", len(due))
	}

	recs, err := mgr.Recommendations(ctx, "subj", "text", 3)
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("Recommendations on empty store = %d, want 0", len(recs))
	}

	if _, err := mgr.Progress(ctx, "subj", "text"); !errors.Is(err, progress.ErrNotFound) {
		t.Errorf("Progress on empty store: err = %v, want ErrNotFound", err)
	}
}
