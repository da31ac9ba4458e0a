package main

import (
	"github.com/ebarkley/versewise/internal/config"
	"github.com/ebarkley/versewise/internal/display"
	"github.com/ebarkley/versewise/internal/mastery"
	"github.com/ebarkley/versewise/internal/score"
)

// newScorer builds the speech diff scorer from config.
func newScorer(cfg *config.Config) *score.Scorer {
	var opts []score.Option
	if t := cfg.Scoring.VariantThreshold; t > 0 {
		opts = append(opts, score.WithVariantThreshold(t))
	}
	if f := cfg.Scoring.ConfidenceFloor; f > 0 {
		opts = append(opts, score.WithConfidenceFloor(f))
	}
	if t := cfg.Scoring.PerfectThreshold; t > 0 {
		opts = append(opts, score.WithPerfectThreshold(t))
	}
	return score.New(opts...)
}

// newTracker builds the mastery tracker from config.
func newTracker(cfg *config.Config) *mastery.Tracker {
	var opts []mastery.Option
	if r := cfg.Mastery.LearningRate; r > 0 {
		opts = append(opts, mastery.WithLearningRate(r))
	}
	failures := cfg.Mastery.ProblemConsecutiveFailures
	floor := cfg.Mastery.ProblemMasteryFloor
	resp := cfg.Mastery.ProblemResponseSeconds
	if failures > 0 || floor > 0 || resp > 0 {
		if failures <= 0 {
			failures = 3
		}
		if floor <= 0 {
			floor = 0.3
		}
		if resp <= 0 {
			resp = 5
		}
		opts = append(opts, mastery.WithProblemThresholds(failures, floor, resp))
	}
	return mastery.New(opts...)
}

// newMasker builds the display masker from config.
func newMasker(cfg *config.Config) *display.Masker {
	var opts []display.Option
	if s := cfg.Reveal.Strategy; s != "" {
		opts = append(opts, display.WithStrategy(s))
	}
	if t := cfg.Reveal.MasteryHideThreshold; t > 0 {
		opts = append(opts, display.WithMasteryHideThreshold(t))
	}
	if p := cfg.Reveal.MasteryPercent; p > 0 {
		opts = append(opts, display.WithMasteryPercent(p))
	}
	if f := cfg.Reveal.MinVisibleFraction; f > 0 {
		opts = append(opts, display.WithMinVisibleFraction(f))
	}
	if s := cfg.Reveal.ProgressiveStep; s > 0 {
		opts = append(opts, display.WithProgressiveStep(s))
	}
	return display.New(opts...)
}
