package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/ebarkley/versewise/internal/config"
	"github.com/ebarkley/versewise/internal/display"
	"github.com/ebarkley/versewise/internal/practice"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  listen_addr: ":8080"
  log_level: debug
storage:
  postgres_dsn: "postgres://localhost/versewise"
practice:
  default_mode: phrase
  phrase_size: 7
  max_phrase_attempts: 4
  hint_after_seconds: 2.5
  auto_hide: false
  session_idle_timeout: 15m
scoring:
  variant_threshold: 0.85
  confidence_floor: 0.5
reveal:
  strategy: mastery_based
  min_visible_fraction: 0.25
mastery:
  learning_rate: 0.2
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v, want :8080/debug", cfg.Server)
	}
	if cfg.Practice.DefaultMode != practice.ModePhrase || cfg.Practice.PhraseSize != 7 {
		t.Errorf("practice = %+v, want phrase/7", cfg.Practice)
	}
	if cfg.Practice.AutoHideEnabled() {
		t.Errorf("AutoHideEnabled = true, want false")
	}
	if cfg.Practice.SessionIdleTimeout.Std() != 15*time.Minute {
		t.Errorf("SessionIdleTimeout = %v, want 15m", cfg.Practice.SessionIdleTimeout)
	}
	if cfg.Scoring.VariantThreshold != 0.85 {
		t.Errorf("VariantThreshold = %v, want 0.85", cfg.Scoring.VariantThreshold)
	}
	if cfg.Reveal.Strategy != display.StrategyMasteryBased {
		t.Errorf("Strategy = %q, want mastery_based", cfg.Reveal.Strategy)
	}
}

func TestLoadFromReader_EmptyIsAllDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader(empty): %v", err)
	}
	if !cfg.Practice.AutoHideEnabled() {
		t.Errorf("AutoHideEnabled = false, want true by default")
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	if _, err := config.LoadFromReader(strings.NewReader("server:\n  listne_addr: \":8080\"\n")); err == nil {
		t.Errorf("misspelled key accepted, want decode error")
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Server.LogLevel = "loud"
	cfg.Practice.DefaultMode = "sideways"
	cfg.Scoring.VariantThreshold = 1.5
	cfg.Reveal.Strategy = "invisible"
	cfg.Mastery.LearningRate = 2

	err := config.Validate(cfg)
	if err == nil {
		t.Fatalf("Validate: err = nil, want joined failures")
	}
	for _, want := range []string{
		"server.log_level",
		"practice.default_mode",
		"scoring.variant_threshold",
		"reveal.strategy",
		"mastery.learning_rate",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	base := func() *config.Config {
		cfg := &config.Config{}
		cfg.Server.ListenAddr = ":9090"
		cfg.Server.LogLevel = config.LogInfo
		cfg.Scoring.VariantThreshold = 0.8
		return cfg
	}

	t.Run("no changes", func(t *testing.T) {
		t.Parallel()
		d := config.Diff(base(), base())
		if d.Changed() || d.RestartRequired {
			t.Errorf("Diff of identical configs = %+v, want no changes", d)
		}
	})

	t.Run("log level", func(t *testing.T) {
		t.Parallel()
		newCfg := base()
		newCfg.Server.LogLevel = config.LogDebug
		d := config.Diff(base(), newCfg)
		if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
			t.Errorf("Diff = %+v, want log level change to debug", d)
		}
		if d.RestartRequired {
			t.Errorf("log level change flagged as restart-required")
		}
	})

	t.Run("scoring", func(t *testing.T) {
		t.Parallel()
		newCfg := base()
		newCfg.Scoring.VariantThreshold = 0.9
		d := config.Diff(base(), newCfg)
		if !d.ScoringChanged || !d.Changed() {
			t.Errorf("Diff = %+v, want scoring change", d)
		}
	})

	t.Run("auto hide resolved value", func(t *testing.T) {
		t.Parallel()
		enabled := true
		newCfg := base()
		newCfg.Practice.AutoHide = &enabled
		// nil and explicit true resolve to the same value.
		if d := config.Diff(base(), newCfg); d.PracticeChanged {
			t.Errorf("explicit auto_hide: true counted as a change")
		}

		disabled := false
		newCfg.Practice.AutoHide = &disabled
		if d := config.Diff(base(), newCfg); !d.PracticeChanged {
			t.Errorf("auto_hide: false not counted as a change")
		}
	})

	t.Run("restart required", func(t *testing.T) {
		t.Parallel()
		newCfg := base()
		newCfg.Storage.PostgresDSN = "postgres://elsewhere/db"
		d := config.Diff(base(), newCfg)
		if !d.RestartRequired {
			t.Errorf("DSN change not flagged as restart-required")
		}
	})
}
