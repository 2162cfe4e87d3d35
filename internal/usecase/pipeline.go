package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dzhafarfovss-code/economy-monitor/internal/config"
	"github.com/dzhafarfovss-code/economy-monitor/internal/domain"
	"github.com/dzhafarfovss-code/economy-monitor/internal/filter"
	"github.com/dzhafarfovss-code/economy-monitor/internal/ports"
	"github.com/dzhafarfovss-code/economy-monitor/internal/resolver"
)

// Source is one configured watcher target with its compiled filter and
// period hints.
type Source struct {
	Name        string
	DisplayName string
	Header      string
	BaseURL     string
	ListingURLs []string
	Extensions  []string
	Filter      *filter.Filter
	Hints       resolver.Hints
}

// SourcesFromConfig compiles watcher targets: topic patterns become regexps,
// the clock becomes freshness markers and resolver period hints.
func SourcesFromConfig(cfgs []config.SourceConfig, now time.Time) ([]Source, error) {
	sources := make([]Source, 0, len(cfgs))
	freshness := filter.PeriodMarkers(now)
	hints := resolver.HintsFor(now)

	for _, sc := range cfgs {
		topics, err := filter.CompileTopics(sc.TopicPatterns)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		sources = append(sources, Source{
			Name:        sc.Name,
			DisplayName: sc.DisplayName,
			Header:      sc.Header,
			BaseURL:     sc.BaseURL,
			ListingURLs: sc.ListingURLs,
			Extensions:  sc.Extensions,
			Filter:      filter.New(topics, freshness),
			Hints:       hints,
		})
	}
	return sources, nil
}

// DocumentResolver locates the downloadable document behind a candidate.
type DocumentResolver interface {
	Resolve(ctx context.Context, c domain.Candidate, sourceName, baseURL string, extensions []string, hints resolver.Hints) (domain.DocumentRef, bool, error)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Scanner   ports.LinkScanner
	Resolver  DocumentResolver
	Fetcher   ports.DocumentFetcher
	Extractor ports.TextExtractor
	Analyzer  ports.Analyzer
	Notifier  ports.Notifier
	Seen      ports.SeenStore
	History   ports.HistoryArchive
	Logger    *slog.Logger
	Workers   int
}

// Pipeline runs the watch-and-notify workflow: scan, filter, resolve,
// extract, analyze, deliver, record. Failures are contained per document;
// one broken item never halts its siblings.
type Pipeline struct {
	scanner   ports.LinkScanner
	resolver  DocumentResolver
	fetcher   ports.DocumentFetcher
	extractor ports.TextExtractor
	analyzer  ports.Analyzer
	notifier  ports.Notifier
	seen      ports.SeenStore
	history   ports.HistoryArchive
	logger    *slog.Logger
	workers   int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	workers := deps.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		scanner:   deps.Scanner,
		resolver:  deps.Resolver,
		fetcher:   deps.Fetcher,
		extractor: deps.Extractor,
		analyzer:  deps.Analyzer,
		notifier:  deps.Notifier,
		seen:      deps.Seen,
		history:   deps.History,
		logger:    logger,
		workers:   workers,
	}
}

// Run performs one full pass over all sources. Sources are independent and
// may run concurrently up to the worker bound; the seen store serializes
// claims so the same URL cannot be delivered twice even when two sources
// discover it simultaneously.
func (p *Pipeline) Run(ctx context.Context, sources []Source) domain.RunSummary {
	if p.notifier == nil {
		p.logger.Warn("messaging credentials absent, delivery disabled for this run")
	}

	var (
		mu    sync.Mutex
		total domain.RunSummary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, src := range sources {
		g.Go(func() error {
			summary := p.watchSource(ctx, src)
			mu.Lock()
			total.Add(summary)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	p.logger.Info("run finished",
		"candidates", total.Candidates,
		"matched", total.Matched,
		"delivered", total.Delivered,
		"skipped_seen", total.SkippedSeen,
		"unresolved", total.Unresolved,
		"failed", total.Failed,
	)
	return total
}

func (p *Pipeline) watchSource(ctx context.Context, src Source) domain.RunSummary {
	logger := p.logger.With("source", src.Name)
	var summary domain.RunSummary

	for _, listing := range src.ListingURLs {
		candidates, err := p.scanner.Scan(ctx, listing, src.BaseURL)
		if err != nil {
			logger.Warn("listing scan failed", "url", listing, "error", err)
			summary.Failed++
			continue
		}
		summary.Candidates += len(candidates)

		for _, c := range candidates {
			topic, ok := src.Filter.Accept(c)
			if !ok {
				continue
			}
			summary.Matched++

			if !p.seen.Claim(c.URL) {
				summary.SkippedSeen++
				continue
			}

			logger.Info("new report found", "title", c.Title, "topic", topic, "url", c.URL)

			status, stage := p.processItem(ctx, src, c, logger)
			switch status {
			case domain.StatusRecorded, domain.StatusDelivered:
				summary.Delivered++
			case domain.StatusUnresolved:
				p.seen.Release(c.URL)
				summary.Unresolved++
			default:
				p.seen.Release(c.URL)
				summary.Failed++
				logger.Warn("item abandoned", "url", c.URL, "last_stage", stage)
			}
		}
	}

	return summary
}

// processItem walks one claimed candidate through the rest of the pipeline
// and returns its terminal status plus the last stage it reached. The caller
// releases the claim unless the item reached delivery.
func (p *Pipeline) processItem(ctx context.Context, src Source, c domain.Candidate, logger *slog.Logger) (domain.ItemStatus, domain.ItemStatus) {
	stage := domain.StatusDiscovered

	ref, ok, err := p.resolver.Resolve(ctx, c, src.DisplayName, src.BaseURL, src.Extensions, src.Hints)
	if err != nil {
		logger.Warn("resolve failed", "url", c.URL, "error", err)
		return domain.StatusAborted, stage
	}
	if !ok {
		// A matched topic with no extractable file is expected on
		// announcement-only pages.
		return domain.StatusUnresolved, stage
	}
	stage = domain.StatusResolved

	data, err := p.fetcher.Document(ctx, ref.DocumentURL)
	if err != nil {
		logger.Warn("document download failed", "url", ref.DocumentURL, "error", err)
		return domain.StatusAborted, stage
	}

	text, err := p.extractor.Extract(data)
	if err != nil {
		logger.Warn("text extraction failed", "url", ref.DocumentURL, "error", err)
		return domain.StatusAborted, stage
	}
	if strings.TrimSpace(text) == "" {
		logger.Warn("document yielded no text", "url", ref.DocumentURL)
		return domain.StatusAborted, stage
	}
	stage = domain.StatusExtracted

	analysis, degraded := p.analyzer.Analyze(ctx, text, ref.Title, ref.SourceName)
	stage = domain.StatusAnalyzed

	if p.notifier == nil {
		// Without credentials the document stays unrecorded and is
		// re-announced once delivery is configured.
		return domain.StatusAborted, stage
	}

	message := composeMessage(src.Header, ref.Title, analysis, ref.DocumentURL)
	outcome, err := p.notifier.Deliver(ctx, message)
	if err != nil {
		logger.Error("delivery failed", "url", ref.DocumentURL, "error", err)
		return domain.StatusAborted, stage
	}
	stage = domain.StatusDelivered

	// Recording strictly after delivery. A crash in this window costs at
	// most one duplicate on the next run, which beats losing the document.
	if err := p.seen.Record(c.URL); err != nil {
		logger.Error("seen record failed, duplicate possible next run", "url", c.URL, "error", err)
	}

	if p.history != nil {
		n := domain.Notification{
			Ref:           ref,
			Analysis:      analysis,
			Degraded:      degraded,
			PlainFallback: outcome.PlainFallback,
			DeliveredAt:   time.Now().UTC(),
		}
		if err := p.history.SaveDelivered(ctx, n); err != nil {
			logger.Warn("history archive failed", "url", c.URL, "error", err)
		}
	}

	logger.Info("report delivered",
		"title", ref.Title,
		"chunks", outcome.Chunks,
		"degraded_analysis", degraded,
		"plain_fallback", outcome.PlainFallback,
	)
	return domain.StatusRecorded, domain.StatusRecorded
}

func composeMessage(header, title, analysis, documentURL string) string {
	return fmt.Sprintf("%s\n\n📄 *%s*\n\n%s\n\n🔗 [Читать оригинал](%s)", header, title, analysis, documentURL)
}
