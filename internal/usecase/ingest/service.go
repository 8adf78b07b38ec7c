// Package ingest orchestrates the polling pipeline: it pulls feed documents
// through the resilience guard, normalizes and classifies entries, and
// escalates a bounded sample of fresh headlines to the AI dispatcher.
package ingest

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"threatwatch/internal/domain/entity"
	"threatwatch/internal/infra/aiclassify"
	"threatwatch/internal/infra/feedfetch"
	"threatwatch/internal/observability/metrics"
	"threatwatch/internal/observability/tracing"
	"threatwatch/internal/resilience/feedcache"
	"threatwatch/pkg/clock"
)

// Escalator submits a headline for asynchronous reclassification. The
// returned channel resolves once; nil means the keyword result stands.
type Escalator interface {
	Request(req aiclassify.Request) <-chan *entity.ThreatClassification
}

// Config tunes the ingest service.
type Config struct {
	// ChunkSize is how many feeds are fetched concurrently per chunk.
	// Each chunk completes before the next starts.
	ChunkSize int

	// EscalateCount is how many freshly fetched keyword-classified items
	// per feed are escalated to the AI dispatcher.
	EscalateCount int
}

// DefaultConfig returns the standard ingest tuning.
func DefaultConfig() Config {
	return Config{
		ChunkSize:     6,
		EscalateCount: 2,
	}
}

// Service runs the fetch-normalize-classify pipeline for a set of feeds.
type Service struct {
	cfg        Config
	guard      *feedcache.Guard
	fetcher    *feedfetch.Fetcher
	normalizer *feedfetch.Normalizer
	escalator  Escalator
	clock      clock.Clock
	logger     *slog.Logger

	// onReclassified is invoked after an escalated item's classification
	// is upgraded. Mutations happen under applyMu.
	onReclassified func(item *entity.NewsItem)
	applyMu        sync.Mutex

	wg sync.WaitGroup
}

// NewService creates an ingest service. escalator may be nil to disable AI
// escalation; clk and logger default to the system clock and slog.Default().
func NewService(cfg Config, guard *feedcache.Guard, fetcher *feedfetch.Fetcher, normalizer *feedfetch.Normalizer, escalator Escalator, clk clock.Clock, logger *slog.Logger) *Service {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.EscalateCount <= 0 {
		cfg.EscalateCount = def.EscalateCount
	}
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:        cfg,
		guard:      guard,
		fetcher:    fetcher,
		normalizer: normalizer,
		escalator:  escalator,
		clock:      clk,
		logger:     logger,
	}
}

// OnReclassified registers a callback for escalation upgrades. Must be set
// before polling starts.
func (s *Service) OnReclassified(fn func(item *entity.NewsItem)) {
	s.onReclassified = fn
}

// FetchFeed returns the freshest items for one feed in the given language.
// Failures degrade through the guard's cache tiers, so the result is never
// an error, at worst an empty slice.
func (s *Service) FetchFeed(ctx context.Context, desc entity.FeedDescriptor, lang string) []*entity.NewsItem {
	url := desc.ResolveURL(lang)
	if url == "" {
		s.logger.Warn("feed has no URL for language",
			slog.String("feed", desc.Name),
			slog.String("lang", lang))
		return []*entity.NewsItem{}
	}

	scope := feedcache.Scope{Feed: desc.Name, Lang: lang}
	return s.guard.Fetch(ctx, scope, func(ctx context.Context) ([]*entity.NewsItem, error) {
		doc, err := s.fetcher.FetchDocument(ctx, url)
		if err != nil {
			return nil, err
		}
		items, err := s.normalizer.Normalize(doc, desc, lang)
		if err != nil {
			return nil, err
		}
		// Escalation only runs on a fresh fetch; cache hits and
		// fallbacks were already sampled when first fetched.
		s.escalate(desc, items)
		return items, nil
	})
}

// FetchAll polls every feed in chunks. Feeds within a chunk run concurrently;
// each chunk completes before the next starts, which keeps burst pressure on
// the sources bounded. onPartial, if non-nil, receives each completed chunk's
// items as soon as the chunk finishes, so consumers can render progress
// without waiting on the slowest feed. The returned slice preserves feed
// order.
func (s *Service) FetchAll(ctx context.Context, feeds []entity.FeedDescriptor, lang string, onPartial func([]*entity.NewsItem)) []*entity.NewsItem {
	ctx, span := tracing.GetTracer().Start(ctx, "ingest.poll",
		trace.WithAttributes(
			attribute.Int("feeds", len(feeds)),
			attribute.String("lang", lang),
		))
	defer span.End()

	start := s.clock.Now()
	results := make([][]*entity.NewsItem, len(feeds))

	for base := 0; base < len(feeds); base += s.cfg.ChunkSize {
		end := base + s.cfg.ChunkSize
		if end > len(feeds) {
			end = len(feeds)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := base; i < end; i++ {
			g.Go(func() error {
				results[i] = s.FetchFeed(gctx, feeds[i], lang)
				return nil
			})
		}
		// Fetch errors never propagate; Wait only orders the chunks.
		_ = g.Wait()

		if onPartial != nil {
			var chunk []*entity.NewsItem
			for i := base; i < end; i++ {
				chunk = append(chunk, results[i]...)
			}
			onPartial(chunk)
		}
	}

	var all []*entity.NewsItem
	for _, items := range results {
		all = append(all, items...)
	}

	elapsed := s.clock.Now().Sub(start)
	metrics.RecordPollDuration(elapsed)
	s.logger.Info("poll completed",
		slog.Int("feeds", len(feeds)),
		slog.Int("items", len(all)),
		slog.Duration("duration", elapsed))

	span.SetAttributes(attribute.Int("items", len(all)))
	return all
}

// escalate submits the first EscalateCount keyword-classified items to the
// dispatcher. Items arrive newest-first, so the head of the slice is the
// freshest sample. Upgrades are applied asynchronously.
func (s *Service) escalate(desc entity.FeedDescriptor, items []*entity.NewsItem) {
	if s.escalator == nil {
		return
	}

	sent := 0
	for _, item := range items {
		if sent >= s.cfg.EscalateCount {
			break
		}
		if item.Threat.Origin != entity.OriginKeyword {
			continue
		}
		sent++

		ch := s.escalator.Request(aiclassify.Request{
			Title:  item.Title,
			Source: desc.Name,
		})

		s.wg.Add(1)
		go s.awaitUpgrade(item, ch)
	}
}

// awaitUpgrade applies a dispatcher resolution to the item. A nil resolution
// or a confidence at or below the current one leaves the item untouched.
func (s *Service) awaitUpgrade(item *entity.NewsItem, ch <-chan *entity.ThreatClassification) {
	defer s.wg.Done()

	candidate := <-ch
	if candidate == nil {
		return
	}

	s.applyMu.Lock()
	applied := item.ApplyThreat(*candidate)
	s.applyMu.Unlock()

	if !applied {
		return
	}

	s.logger.Info("item reclassified",
		slog.String("source", item.Source),
		slog.String("title", item.Title),
		slog.String("level", string(item.Threat.Level)),
		slog.Float64("confidence", item.Threat.Confidence))

	if s.onReclassified != nil {
		s.onReclassified(item)
	}
}

// Wait blocks until all in-flight escalation upgrades have resolved.
// Intended for shutdown and tests.
func (s *Service) Wait() {
	s.wg.Wait()
}
