package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dzhafarfovss-code/economy-monitor/internal/config"
	"github.com/dzhafarfovss-code/economy-monitor/internal/infrastructure/fetch"
	"github.com/dzhafarfovss-code/economy-monitor/internal/infrastructure/llm"
	"github.com/dzhafarfovss-code/economy-monitor/internal/infrastructure/pdftext"
	"github.com/dzhafarfovss-code/economy-monitor/internal/infrastructure/scheduler"
	"github.com/dzhafarfovss-code/economy-monitor/internal/infrastructure/scrape"
	"github.com/dzhafarfovss-code/economy-monitor/internal/infrastructure/storage"
	"github.com/dzhafarfovss-code/economy-monitor/internal/infrastructure/telegram"
	"github.com/dzhafarfovss-code/economy-monitor/internal/logging"
	"github.com/dzhafarfovss-code/economy-monitor/internal/ports"
	"github.com/dzhafarfovss-code/economy-monitor/internal/resolver"
	"github.com/dzhafarfovss-code/economy-monitor/internal/usecase"
)

// Application wires configuration to the pipeline and owns lifecycle.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	history  *storage.History
}

// New builds a runnable application. Configuration-level problems (no
// sources, unreadable seen file) are errors; a missing messaging or analysis
// credential only degrades the corresponding capability.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}

	var seen ports.SeenStore
	if cfg.Dedup.Bypass {
		baseLogger.Warn("dedup bypass enabled, nothing will be recorded")
		seen = storage.NewBypassStore()
	} else {
		file, err := storage.OpenSeenFile(cfg.Dedup.Path)
		if err != nil {
			return nil, fmt.Errorf("open seen store: %w", err)
		}
		baseLogger.Info("seen store loaded", "path", cfg.Dedup.Path, "entries", file.Len())
		seen = file
	}

	var history *storage.History
	if cfg.Database.DSN != "" {
		h, err := storage.OpenHistory(ctx, cfg.Database.DSN)
		if err != nil {
			baseLogger.Warn("history archive unavailable", "error", err)
		} else {
			history = h
		}
	}

	var notifier ports.Notifier
	if cfg.Messaging.Enabled() {
		notifier = telegram.New(cfg.Messaging, baseLogger.With("component", "notifier"))
	}

	client := fetch.New(cfg.Fetch.InsecureHosts)
	scanner := scrape.NewLinkScanner(client, baseLogger.With("component", "scanner"))

	deps := usecase.PipelineDeps{
		Scanner:   scanner,
		Resolver:  resolver.New(scanner, baseLogger.With("component", "resolver")),
		Fetcher:   client,
		Extractor: pdftext.New(cfg.Extract.MaxPages, baseLogger.With("component", "extractor")),
		Analyzer:  llm.New(cfg.Analysis, baseLogger.With("component", "analyzer")),
		Notifier:  notifier,
		Seen:      seen,
		Logger:    baseLogger.With("component", "pipeline"),
		Workers:   cfg.Run.Workers,
	}
	// Assigned only when non-nil so the interface stays nil otherwise.
	if history != nil {
		deps.History = history
	}

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		pipeline: usecase.NewPipeline(deps),
		history:  history,
	}, nil
}

// Run performs one full pass over all sources and returns nil regardless of
// per-document failures; those are logged, not fatal.
func (a *Application) Run(ctx context.Context) error {
	return a.runOnce(ctx, time.Now().In(a.cfg.Run.Location()))
}

// Watch keeps the process resident and fires a full pass per the configured
// cron expression until ctx is cancelled.
func (a *Application) Watch(ctx context.Context) error {
	driver := scheduler.New(a.cfg.Run.CronExpression, a.cfg.Run.Location())
	err := driver.Start(func(now time.Time) {
		if err := a.runOnce(ctx, now); err != nil {
			a.logger.Error("scheduled pass failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	a.logger.Info("watch mode started", "cron", a.cfg.Run.CronExpression)
	<-ctx.Done()
	driver.Stop()
	return nil
}

// Close releases held resources.
func (a *Application) Close() {
	if a.history != nil {
		_ = a.history.Close()
	}
}

func (a *Application) runOnce(ctx context.Context, now time.Time) error {
	// Sources are rebuilt each pass: freshness markers and period hints
	// follow the clock.
	sources, err := usecase.SourcesFromConfig(a.cfg.Sources, now)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, a.cfg.Run.TimeoutDuration())
	defer cancel()

	a.pipeline.Run(runCtx, sources)
	return nil
}
