package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ebarkley/versewise/internal/mastery"
	"github.com/ebarkley/versewise/internal/patterns"
	"github.com/ebarkley/versewise/internal/progress"
)

// Compile-time interface check.
var _ progress.Store = (*Store)(nil)

// Store is the PostgreSQL-backed implementation of [progress.Store].
// All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the PostgreSQL database at dsn, verifies the
// connection, and runs [Migrate] to ensure the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres progress: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres progress: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping implements [progress.Store.Ping].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// masteryRow mirrors the word_mastery table for row collection.
type masteryRow struct {
	SubjectID           string     `db:"subject_id"`
	TextID              string     `db:"text_id"`
	WordIndex           int        `db:"word_index"`
	WordText            string     `db:"word_text"`
	Mastery             float64    `db:"mastery"`
	EaseFactor          float64    `db:"ease_factor"`
	Repetitions         int        `db:"repetitions"`
	IntervalDays        int        `db:"interval_days"`
	NextReview          *time.Time `db:"next_review"`
	ConsecutiveFailures int        `db:"consecutive_failures"`
	AvgResponseTime     float64    `db:"avg_response_time"`
	IsProblemWord       bool       `db:"is_problem_word"`
	LastPracticed       *time.Time `db:"last_practiced"`
}

func (r masteryRow) toRecord() mastery.Record {
	rec := mastery.Record{
		SubjectID:           r.SubjectID,
		TextID:              r.TextID,
		WordIndex:           r.WordIndex,
		WordText:            r.WordText,
		Mastery:             r.Mastery,
		EaseFactor:          r.EaseFactor,
		Repetitions:         r.Repetitions,
		IntervalDays:        r.IntervalDays,
		ConsecutiveFailures: r.ConsecutiveFailures,
		AvgResponseTime:     r.AvgResponseTime,
		IsProblemWord:       r.IsProblemWord,
	}
	if r.NextReview != nil {
		rec.NextReview = *r.NextReview
	}
	if r.LastPracticed != nil {
		rec.LastPracticed = *r.LastPracticed
	}
	return rec
}

// LoadMastery implements [progress.Store.LoadMastery].
func (s *Store) LoadMastery(ctx context.Context, subjectID, textID string) ([]mastery.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT subject_id, text_id, word_index, word_text, mastery, ease_factor,
		       repetitions, interval_days, next_review, consecutive_failures,
		       avg_response_time, is_problem_word, last_practiced
		  FROM word_mastery
		 WHERE subject_id = $1 AND text_id = $2
		 ORDER BY word_index`,
		subjectID, textID)
	if err != nil {
		return nil, fmt.Errorf("postgres progress: load mastery: %w", err)
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[masteryRow])
	if err != nil {
		return nil, fmt.Errorf("postgres progress: load mastery: collect: %w", err)
	}

	recs := make([]mastery.Record, len(collected))
	for i, row := range collected {
		recs[i] = row.toRecord()
	}
	return recs, nil
}

// SaveMastery implements [progress.Store.SaveMastery]. Records are
// upserted in a single batch.
func (s *Store) SaveMastery(ctx context.Context, recs []mastery.Record) error {
	if len(recs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(`
			INSERT INTO word_mastery
			       (subject_id, text_id, word_index, word_text, mastery, ease_factor,
			        repetitions, interval_days, next_review, consecutive_failures,
			        avg_response_time, is_problem_word, last_practiced)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (subject_id, text_id, word_index) DO UPDATE SET
			       word_text            = EXCLUDED.word_text,
			       mastery              = EXCLUDED.mastery,
			       ease_factor          = EXCLUDED.ease_factor,
			       repetitions          = EXCLUDED.repetitions,
			       interval_days        = EXCLUDED.interval_days,
			       next_review          = EXCLUDED.next_review,
			       consecutive_failures = EXCLUDED.consecutive_failures,
			       avg_response_time    = EXCLUDED.avg_response_time,
			       is_problem_word      = EXCLUDED.is_problem_word,
			       last_practiced       = EXCLUDED.last_practiced`,
			rec.SubjectID, rec.TextID, rec.WordIndex, rec.WordText, rec.Mastery,
			rec.EaseFactor, rec.Repetitions, rec.IntervalDays, nullableTime(rec.NextReview),
			rec.ConsecutiveFailures, rec.AvgResponseTime, rec.IsProblemWord,
			nullableTime(rec.LastPracticed))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range recs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres progress: save mastery: %w", err)
		}
	}
	return nil
}

// patternRow mirrors the practice_patterns table.
type patternRow struct {
	SubjectID       string   `db:"subject_id"`
	TextID          string   `db:"text_id"`
	PatternType     string   `db:"pattern_type"`
	StartIndex      int      `db:"start_index"`
	EndIndex        int      `db:"end_index"`
	DifficultyScore float64  `db:"difficulty_score"`
	Frequency       int      `db:"frequency"`
	ContextWords    []string `db:"context_words"`
}

// LoadPatterns implements [progress.Store.LoadPatterns].
func (s *Store) LoadPatterns(ctx context.Context, subjectID, textID string) ([]patterns.Pattern, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT subject_id, text_id, pattern_type, start_index, end_index,
		       difficulty_score, frequency, context_words
		  FROM practice_patterns
		 WHERE subject_id = $1 AND text_id = $2
		 ORDER BY frequency DESC, difficulty_score DESC`,
		subjectID, textID)
	if err != nil {
		return nil, fmt.Errorf("postgres progress: load patterns: %w", err)
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[patternRow])
	if err != nil {
		return nil, fmt.Errorf("postgres progress: load patterns: collect: %w", err)
	}

	pats := make([]patterns.Pattern, len(collected))
	for i, row := range collected {
		pats[i] = patterns.Pattern{
			SubjectID:       row.SubjectID,
			TextID:          row.TextID,
			Type:            patterns.Type(row.PatternType),
			StartIndex:      row.StartIndex,
			EndIndex:        row.EndIndex,
			DifficultyScore: row.DifficultyScore,
			Frequency:       row.Frequency,
			ContextWords:    row.ContextWords,
		}
	}
	return pats, nil
}

// UpsertPatterns implements [progress.Store.UpsertPatterns]. A conflicting
// key increments the stored frequency and keeps the higher difficulty
// score, matching [patterns.Merge] semantics.
func (s *Store) UpsertPatterns(ctx context.Context, pats []patterns.Pattern) error {
	if len(pats) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range pats {
		batch.Queue(`
			INSERT INTO practice_patterns
			       (subject_id, text_id, pattern_type, start_index, end_index,
			        difficulty_score, frequency, context_words, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (subject_id, text_id, pattern_type, start_index) DO UPDATE SET
			       frequency        = practice_patterns.frequency + 1,
			       end_index        = EXCLUDED.end_index,
			       context_words    = EXCLUDED.context_words,
			       difficulty_score = GREATEST(practice_patterns.difficulty_score, EXCLUDED.difficulty_score),
			       updated_at       = now()`,
			p.SubjectID, p.TextID, string(p.Type), p.StartIndex, p.EndIndex,
			p.DifficultyScore, p.Frequency, p.ContextWords)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range pats {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres progress: upsert patterns: %w", err)
		}
	}
	return nil
}

// AppendSession implements [progress.Store.AppendSession].
func (s *Store) AppendSession(ctx context.Context, rec progress.SessionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO practice_sessions
		       (id, subject_id, text_id, mode, words_practiced, correct_words,
		        hints_used, accuracy, duration_ns, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.SessionID, rec.SubjectID, rec.TextID, rec.Mode, rec.WordsPracticed,
		rec.CorrectWords, rec.HintsUsed, rec.Accuracy, rec.Duration.Nanoseconds(),
		rec.StartedAt, rec.FinishedAt)
	if err != nil {
		return fmt.Errorf("postgres progress: append session: %w", err)
	}
	return nil
}

// TextProgress implements [progress.Store.TextProgress]. Aggregation runs
// in SQL so the full mastery set is never pulled into memory.
func (s *Store) TextProgress(ctx context.Context, subjectID, textID string) (progress.TextProgress, error) {
	tp := progress.TextProgress{SubjectID: subjectID, TextID: textID}

	var wordCount int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(mastery), 0),
		       COUNT(*) FILTER (WHERE is_problem_word),
		       COUNT(*) FILTER (WHERE repetitions >= 5 AND mastery >= 0.8)
		  FROM word_mastery
		 WHERE subject_id = $1 AND text_id = $2`,
		subjectID, textID).Scan(&wordCount, &tp.OverallMastery, &tp.ProblemWords, &tp.MasteredWords)
	if err != nil {
		return progress.TextProgress{}, fmt.Errorf("postgres progress: text progress: %w", err)
	}

	var durationNS int64
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(MAX(accuracy), 0),
		       COALESCE(AVG(accuracy), 0),
		       COALESCE(SUM(duration_ns), 0)
		  FROM practice_sessions
		 WHERE subject_id = $1 AND text_id = $2`,
		subjectID, textID).Scan(&tp.TotalSessions, &tp.BestAccuracy, &tp.AverageAccuracy, &durationNS)
	if err != nil {
		return progress.TextProgress{}, fmt.Errorf("postgres progress: text progress: %w", err)
	}
	tp.TotalPractice = time.Duration(durationNS)

	if wordCount == 0 && tp.TotalSessions == 0 {
		return progress.TextProgress{}, progress.ErrNotFound
	}
	return tp, nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
