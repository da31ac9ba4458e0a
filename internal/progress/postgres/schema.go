// Package postgres provides a PostgreSQL-backed implementation of the
// [progress.Store] contract.
//
// All operations share a single [pgxpool.Pool]. [Migrate] creates the
// required tables on startup via CREATE TABLE IF NOT EXISTS, so no external
// migration tooling is needed.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	recs, _ := store.LoadMastery(ctx, subjectID, textID)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlWordMastery = `
CREATE TABLE IF NOT EXISTS word_mastery (
    subject_id           TEXT             NOT NULL,
    text_id              TEXT             NOT NULL,
    word_index           INTEGER          NOT NULL,
    word_text            TEXT             NOT NULL,
    mastery              DOUBLE PRECISION NOT NULL DEFAULT 0,
    ease_factor          DOUBLE PRECISION NOT NULL DEFAULT 2.5,
    repetitions          INTEGER          NOT NULL DEFAULT 0,
    interval_days        INTEGER          NOT NULL DEFAULT 1,
    next_review          TIMESTAMPTZ,
    consecutive_failures INTEGER          NOT NULL DEFAULT 0,
    avg_response_time    DOUBLE PRECISION NOT NULL DEFAULT 0,
    is_problem_word      BOOLEAN          NOT NULL DEFAULT FALSE,
    last_practiced       TIMESTAMPTZ,
    PRIMARY KEY (subject_id, text_id, word_index)
);

CREATE INDEX IF NOT EXISTS idx_word_mastery_next_review
    ON word_mastery (subject_id, text_id, next_review);

CREATE INDEX IF NOT EXISTS idx_word_mastery_problem
    ON word_mastery (subject_id, text_id) WHERE is_problem_word;
`

const ddlPracticePatterns = `
CREATE TABLE IF NOT EXISTS practice_patterns (
    subject_id       TEXT             NOT NULL,
    text_id          TEXT             NOT NULL,
    pattern_type     TEXT             NOT NULL,
    start_index      INTEGER          NOT NULL,
    end_index        INTEGER          NOT NULL,
    difficulty_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    frequency        INTEGER          NOT NULL DEFAULT 1,
    context_words    TEXT[]           NOT NULL DEFAULT '{}',
    updated_at       TIMESTAMPTZ      NOT NULL DEFAULT now(),
    PRIMARY KEY (subject_id, text_id, pattern_type, start_index)
);
`

const ddlPracticeSessions = `
CREATE TABLE IF NOT EXISTS practice_sessions (
    id              TEXT             PRIMARY KEY,
    subject_id      TEXT             NOT NULL,
    text_id         TEXT             NOT NULL,
    mode            TEXT             NOT NULL,
    words_practiced INTEGER          NOT NULL DEFAULT 0,
    correct_words   INTEGER          NOT NULL DEFAULT 0,
    hints_used      INTEGER          NOT NULL DEFAULT 0,
    accuracy        DOUBLE PRECISION NOT NULL DEFAULT 0,
    duration_ns     BIGINT           NOT NULL DEFAULT 0,
    started_at      TIMESTAMPTZ      NOT NULL,
    finished_at     TIMESTAMPTZ      NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_practice_sessions_subject_text
    ON practice_sessions (subject_id, text_id, finished_at);
`

// Migrate creates all required tables and indexes if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlWordMastery, ddlPracticePatterns, ddlPracticeSessions} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres progress: migrate: %w", err)
		}
	}
	return nil
}
