// Command versewise runs the adaptive memorization practice service: it
// hosts the practice engine, keeps live sessions, persists progress, and
// exposes metrics and health endpoints. With -text it additionally drives
// an interactive practice run over the given file from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ebarkley/versewise/internal/app"
	"github.com/ebarkley/versewise/internal/config"
	"github.com/ebarkley/versewise/internal/health"
	"github.com/ebarkley/versewise/internal/observe"
	"github.com/ebarkley/versewise/internal/practice"
	"github.com/ebarkley/versewise/internal/progress"
	progresspg "github.com/ebarkley/versewise/internal/progress/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	textPath := flag.String("text", "", "path to a text file to practice interactively")
	subjectID := flag.String("subject", "local", "subject identifier for progress tracking")
	textID := flag.String("text-id", "", "text identifier; defaults to the text file path")
	mode := flag.String("mode", "", "practice mode: word or phrase (default from config)")
	phraseSize := flag.Int("phrase-size", 0, "phrase window width in phrase mode (default from config)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "versewise: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "versewise: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := &slog.LevelVar{}
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("versewise starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "versewise",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Progress store ────────────────────────────────────────────────────────
	var store progress.Store
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pg, err := progresspg.NewStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect progress store", "err", err)
			return 1
		}
		defer pg.Close()
		store = pg
		slog.Info("progress store connected", "backend", "postgres")
	} else {
		store = progress.NewMemStore()
		slog.Info("progress store in memory; data will not survive restarts")
	}

	// ── Sessions + service layer ──────────────────────────────────────────────
	sessions := practice.NewMemStore()
	manager, err := app.New(app.Config{
		Engine:   newEngine(cfg),
		Sessions: sessions,
		Progress: store,
		Masker:   newMasker(cfg),
		Metrics:  metrics,
	})
	if err != nil {
		slog.Error("failed to build service layer", "err", err)
		return 1
	}

	idleTimeout := cfg.Practice.SessionIdleTimeout.Std()
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.ScoringChanged || d.RevealChanged || d.PracticeChanged || d.MasteryChanged {
			slog.Info("engine tuning changed; new sessions pick it up",
				"scoring", d.ScoringChanged,
				"reveal", d.RevealChanged,
				"practice", d.PracticeChanged,
				"mastery", d.MasteryChanged,
			)
		}
		if d.RestartRequired {
			slog.Warn("listen address or storage changed in config; restart required to apply")
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── HTTP: metrics + health ────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(health.Checker{
		Name:  "storage",
		Check: store.Ping,
	}).Register(mux)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = ":9090"
	}
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", listenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Idle session pruning.
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				removed, err := sessions.PruneIdle(gctx, now, idleTimeout)
				if err != nil {
					slog.Warn("session prune error", "err", err)
					continue
				}
				if removed > 0 {
					metrics.ActiveSessions.Add(gctx, -int64(removed))
					slog.Debug("pruned idle sessions", "count", removed)
				}
			}
		}
	})

	// Interactive practice run, when a text was given on the command line.
	// The whole process winds down once the run finishes.
	if *textPath != "" {
		opts := practiceOpts{
			textPath:   *textPath,
			subjectID:  *subjectID,
			textID:     *textID,
			mode:       practice.Mode(*mode),
			phraseSize: *phraseSize,
		}
		if opts.textID == "" {
			opts.textID = *textPath
		}
		if opts.mode == "" {
			opts.mode = cfg.Practice.DefaultMode
		}
		if opts.mode == "" {
			opts.mode = practice.ModeWord
		}
		if opts.phraseSize <= 0 {
			opts.phraseSize = cfg.Practice.PhraseSize
		}
		g.Go(func() error {
			defer stop()
			return runPractice(gctx, manager, os.Stdout, os.Stdin, opts)
		})
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newEngine builds the practice engine from config, falling back to the
// package defaults for unset values.
func newEngine(cfg *config.Config) *practice.Engine {
	var opts []practice.Option

	if cfg.Practice.MaxPhraseAttempts > 0 {
		opts = append(opts, practice.WithMaxPhraseAttempts(cfg.Practice.MaxPhraseAttempts))
	}
	hint, hide, adv := cfg.Practice.HintAfterSeconds, cfg.Practice.AutoHideAfterSeconds, cfg.Practice.AdvanceAfterSeconds
	if hint > 0 || hide > 0 || adv > 0 {
		if hint <= 0 {
			hint = 3
		}
		if hide <= 0 {
			hide = 4
		}
		if adv <= 0 {
			adv = 5
		}
		opts = append(opts, practice.WithTimingThresholds(hint, hide, adv))
	}
	opts = append(opts, practice.WithAutoHide(cfg.Practice.AutoHideEnabled()))

	opts = append(opts, practice.WithScorer(newScorer(cfg)))
	opts = append(opts, practice.WithTracker(newTracker(cfg)))
	return practice.NewEngine(opts...)
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
