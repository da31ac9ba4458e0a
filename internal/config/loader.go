package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// An empty file is a valid all-defaults config.
			return cfg, Validate(cfg)
		}
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Practice
	if mode := cfg.Practice.DefaultMode; mode != "" && !mode.IsValid() {
		errs = append(errs, fmt.Errorf("practice.default_mode %q is invalid; valid values: word, phrase", mode))
	}
	if cfg.Practice.PhraseSize < 0 {
		errs = append(errs, fmt.Errorf("practice.phrase_size %d must not be negative", cfg.Practice.PhraseSize))
	}
	if cfg.Practice.MaxPhraseAttempts < 0 {
		errs = append(errs, fmt.Errorf("practice.max_phrase_attempts %d must not be negative", cfg.Practice.MaxPhraseAttempts))
	}
	if v := cfg.Practice.HintAfterSeconds; v < 0 {
		errs = append(errs, fmt.Errorf("practice.hint_after_seconds %.2f must not be negative", v))
	}
	if v := cfg.Practice.AutoHideAfterSeconds; v < 0 {
		errs = append(errs, fmt.Errorf("practice.auto_hide_after_seconds %.2f must not be negative", v))
	}
	if v := cfg.Practice.AdvanceAfterSeconds; v < 0 {
		errs = append(errs, fmt.Errorf("practice.advance_after_seconds %.2f must not be negative", v))
	}

	// Scoring
	if t := cfg.Scoring.VariantThreshold; t != 0 && (t < 0 || t > 1) {
		errs = append(errs, fmt.Errorf("scoring.variant_threshold %.2f is out of range [0, 1]", t))
	}
	if f := cfg.Scoring.ConfidenceFloor; f != 0 && (f < 0 || f > 1) {
		errs = append(errs, fmt.Errorf("scoring.confidence_floor %.2f is out of range [0, 1]", f))
	}
	if t := cfg.Scoring.PerfectThreshold; t != 0 && (t < 0 || t > 100) {
		errs = append(errs, fmt.Errorf("scoring.perfect_threshold %.2f is out of range [0, 100]", t))
	}

	// Reveal
	if s := cfg.Reveal.Strategy; s != "" && !s.IsValid() {
		errs = append(errs, fmt.Errorf("reveal.strategy %q is invalid; valid values: progressive, mastery_based, random, sentence_by_sentence, difficulty_adaptive", s))
	}
	if f := cfg.Reveal.MinVisibleFraction; f != 0 && (f < 0 || f > 1) {
		errs = append(errs, fmt.Errorf("reveal.min_visible_fraction %.2f is out of range [0, 1]", f))
	}
	if f := cfg.Reveal.MinVisibleFraction; f != 0 && f < 0.1 {
		slog.Warn("reveal.min_visible_fraction is very low; the displayed text may become nearly blank", "value", f)
	}
	if p := cfg.Reveal.MasteryPercent; p != 0 && (p < 0 || p > 1) {
		errs = append(errs, fmt.Errorf("reveal.mastery_percent %.2f is out of range [0, 1]", p))
	}
	if t := cfg.Reveal.MasteryHideThreshold; t != 0 && (t < 0 || t > 1) {
		errs = append(errs, fmt.Errorf("reveal.mastery_hide_threshold %.2f is out of range [0, 1]", t))
	}

	// Mastery
	if r := cfg.Mastery.LearningRate; r != 0 && (r <= 0 || r > 1) {
		errs = append(errs, fmt.Errorf("mastery.learning_rate %.2f is out of range (0, 1]", r))
	}
	if cfg.Mastery.ProblemConsecutiveFailures < 0 {
		errs = append(errs, fmt.Errorf("mastery.problem_consecutive_failures %d must not be negative", cfg.Mastery.ProblemConsecutiveFailures))
	}

	// Storage availability
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; progress will be kept in memory and lost on restart")
	}

	return errors.Join(errs...)
}
