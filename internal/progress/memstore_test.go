package progress_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ebarkley/versewise/internal/mastery"
	"github.com/ebarkley/versewise/internal/patterns"
	"github.com/ebarkley/versewise/internal/progress"
)

func TestMemStore_MasteryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := progress.NewMemStore()

	recs, err := store.LoadMastery(ctx, "subj", "text")
	if err != nil {
		t.Fatalf("LoadMastery: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("LoadMastery on empty store = %d records, want 0", len(recs))
	}

	saved := []mastery.Record{
		{SubjectID: "subj", TextID: "text", WordIndex: 0, WordText: "alpha", Mastery: 0.4},
		{SubjectID: "subj", TextID: "text", WordIndex: 1, WordText: "beta", Mastery: 0.6},
	}
	if err := store.SaveMastery(ctx, saved); err != nil {
		t.Fatalf("SaveMastery: %v", err)
	}

	// Saving again for the same word upserts rather than duplicating.
	saved[0].Mastery = 0.5
	if err := store.SaveMastery(ctx, saved[:1]); err != nil {
		t.Fatalf("SaveMastery (upsert): %v", err)
	}

	recs, err = store.LoadMastery(ctx, "subj", "text")
	if err != nil {
		t.Fatalf("LoadMastery: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	for _, rec := range recs {
		if rec.WordIndex == 0 && rec.Mastery != 0.5 {
			t.Errorf("word 0 mastery = %v, want 0.5 after upsert", rec.Mastery)
		}
	}

	// A different subject sees nothing.
	other, err := store.LoadMastery(ctx, "other", "text")
	if err != nil {
		t.Fatalf("LoadMastery(other): %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other subject sees %d records, want 0", len(other))
	}
}

func TestMemStore_UpsertPatternsIncrementsFrequency(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := progress.NewMemStore()

	p := patterns.Pattern{
		SubjectID: "subj", TextID: "text",
		Type: patterns.TypeWordSequence, StartIndex: 2, EndIndex: 4,
		Frequency: 1, DifficultyScore: 0.5,
	}
	if err := store.UpsertPatterns(ctx, []patterns.Pattern{p}); err != nil {
		t.Fatalf("UpsertPatterns: %v", err)
	}
	if err := store.UpsertPatterns(ctx, []patterns.Pattern{p}); err != nil {
		t.Fatalf("UpsertPatterns (repeat): %v", err)
	}

	pats, err := store.LoadPatterns(ctx, "subj", "text")
	if err != nil {
		t.Fatalf("LoadPatterns: %v", err)
	}
	if len(pats) != 1 {
		t.Fatalf("len(pats) = %d, want 1 (upsert, not append)", len(pats))
	}
	if pats[0].Frequency != 2 {
		t.Errorf("Frequency = %d, want 2", pats[0].Frequency)
	}
}

func TestMemStore_TextProgress(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := progress.NewMemStore()

	if _, err := store.TextProgress(ctx, "subj", "text"); !errors.Is(err, progress.ErrNotFound) {
		t.Fatalf("TextProgress on empty store: err = %v, want ErrNotFound", err)
	}

	if err := store.SaveMastery(ctx, []mastery.Record{
		{SubjectID: "subj", TextID: "text", WordIndex: 0, Mastery: 0.9, Repetitions: 6},
		{SubjectID: "subj", TextID: "text", WordIndex: 1, Mastery: 0.1, IsProblemWord: true},
	}); err != nil {
		t.Fatalf("SaveMastery: %v", err)
	}
	for _, acc := range []float64{60, 80} {
		if err := store.AppendSession(ctx, progress.SessionRecord{
			SubjectID: "subj", TextID: "text",
			Accuracy: acc, Duration: 5 * time.Minute,
		}); err != nil {
			t.Fatalf("AppendSession: %v", err)
		}
	}

	tp, err := store.TextProgress(ctx, "subj", "text")
	if err != nil {
		t.Fatalf("TextProgress: %v", err)
	}
	if tp.OverallMastery != 0.5 {
		t.Errorf("OverallMastery = %v, want 0.5", tp.OverallMastery)
	}
	if tp.ProblemWords != 1 || tp.MasteredWords != 1 {
		t.Errorf("problem/mastered = %d/%d, want 1/1", tp.ProblemWords, tp.MasteredWords)
	}
	if tp.TotalSessions != 2 || tp.BestAccuracy != 80 || tp.AverageAccuracy != 70 {
		t.Errorf("sessions/best/avg = %d/%v/%v, want 2/80/70", tp.TotalSessions, tp.BestAccuracy, tp.AverageAccuracy)
	}
	if tp.TotalPractice != 10*time.Minute {
		t.Errorf("TotalPractice = %v, want 10m", tp.TotalPractice)
	}
}
