// Package dispatch batches headline classification requests and forwards them
// to a remote AI provider without blocking the ingest path.
//
// Callers hand in a headline and immediately receive a channel that resolves
// exactly once: either with an upgraded classification or with nil, meaning
// the existing keyword classification stands. The dispatcher batches admitted
// requests, caps dispatch volume per minute, suppresses duplicate headlines,
// and pauses itself when the provider signals rate limiting or server trouble.
package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"threatwatch/internal/domain/entity"
	"threatwatch/internal/infra/aiclassify"
	"threatwatch/internal/observability/metrics"
	"threatwatch/pkg/clock"
)

// Config holds dispatcher tuning parameters.
type Config struct {
	// BatchSize is the number of queued requests that triggers an
	// immediate flush.
	BatchSize int

	// FlushDelay is how long a partially filled batch waits before it is
	// flushed anyway.
	FlushDelay time.Duration

	// WindowLimit caps admissions per sliding minute. Requests above the
	// cap resolve immediately with no upgrade.
	WindowLimit int

	// DedupTTL is how long a headline key suppresses re-admission.
	DedupTTL time.Duration

	// RateLimitPause is how long dispatching stops after the provider
	// reports rate limiting.
	RateLimitPause time.Duration

	// ServerErrorPause is how long dispatching stops after a provider
	// server failure.
	ServerErrorPause time.Duration
}

// DefaultConfig returns the standard dispatcher settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:        20,
		FlushDelay:       500 * time.Millisecond,
		WindowLimit:      30,
		DedupTTL:         30 * time.Minute,
		RateLimitPause:   60 * time.Second,
		ServerErrorPause: 30 * time.Second,
	}
}

// job is one queued classification request.
type job struct {
	id      string
	req     aiclassify.Request
	resolve chan *entity.ThreatClassification
}

// Dispatcher batches and rate-shapes remote classification requests.
type Dispatcher struct {
	cfg       Config
	provider  aiclassify.Provider
	clock     clock.Clock
	scheduler Scheduler
	logger    *slog.Logger

	mu          sync.Mutex
	queue       []*job
	cancelTimer func()
	recent      map[string]time.Time
	window      []time.Time
	pausedUntil time.Time
	closed      bool

	wg sync.WaitGroup
}

// New creates a dispatcher around the given provider.
func New(cfg Config, provider aiclassify.Provider, clk clock.Clock, scheduler Scheduler, logger *slog.Logger) *Dispatcher {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:       cfg,
		provider:  provider,
		clock:     clk,
		scheduler: scheduler,
		logger:    logger,
		recent:    make(map[string]time.Time),
	}
}

// Request submits a headline for remote classification. The returned channel
// is buffered and resolves exactly once. A nil result means the caller should
// keep its current classification.
func (d *Dispatcher) Request(req aiclassify.Request) <-chan *entity.ThreatClassification {
	out := make(chan *entity.ThreatClassification, 1)
	now := d.clock.Now()
	key := dedupKey(req)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		out <- nil
		return out
	}

	d.pruneRecentLocked(now)
	if _, ok := d.recent[key]; ok {
		metrics.RecordDispatchAdmission("dedup_rejected")
		out <- nil
		return out
	}

	d.pruneWindowLocked(now)
	if len(d.window) >= d.cfg.WindowLimit {
		metrics.RecordDispatchAdmission("window_rejected")
		out <- nil
		return out
	}

	d.recent[key] = now
	d.window = append(d.window, now)
	d.queue = append(d.queue, &job{
		id:      uuid.New().String(),
		req:     req,
		resolve: out,
	})
	metrics.RecordDispatchAdmission("admitted")
	metrics.SetDispatchQueueDepth(len(d.queue))

	// While paused, admissions still queue and count against the window and
	// dedup bookkeeping, but nothing is flushed until the pause lapses.
	paused := now.Before(d.pausedUntil)
	if !paused && len(d.queue) >= d.cfg.BatchSize {
		d.flushLocked()
	} else if d.cancelTimer == nil {
		delay := d.cfg.FlushDelay
		if paused {
			if rem := d.pausedUntil.Sub(now); rem > delay {
				delay = rem
			}
		}
		d.cancelTimer = d.scheduler.Schedule(delay, d.timerFlush)
	}

	return out
}

// QueueDepth returns the current number of queued requests.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Paused reports whether the dispatcher is currently backing off.
func (d *Dispatcher) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clock.Now().Before(d.pausedUntil)
}

// Close drains the queue, resolving all pending requests with no upgrade,
// and waits for in-flight batches to finish or the context to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.stopTimerLocked()
	d.drainLocked()
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.logger.Warn("dispatcher shutdown timed out with batches in flight")
		return ctx.Err()
	}
}

// timerFlush is the scheduler callback for a partially filled batch. While a
// pause is still in effect it re-arms itself for the remainder instead of
// flushing.
func (d *Dispatcher) timerFlush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelTimer = nil
	if len(d.queue) == 0 || d.closed {
		return
	}
	if now := d.clock.Now(); now.Before(d.pausedUntil) {
		d.cancelTimer = d.scheduler.Schedule(d.pausedUntil.Sub(now), d.timerFlush)
		return
	}
	d.flushLocked()
}

// flushLocked hands the head of the queue to a worker goroutine.
// Must be called with d.mu held.
func (d *Dispatcher) flushLocked() {
	d.stopTimerLocked()

	n := len(d.queue)
	if n > d.cfg.BatchSize {
		n = d.cfg.BatchSize
	}
	batch := d.queue[:n]
	d.queue = append([]*job(nil), d.queue[n:]...)
	metrics.SetDispatchQueueDepth(len(d.queue))
	metrics.RecordDispatchFlush()

	if len(d.queue) > 0 {
		d.cancelTimer = d.scheduler.Schedule(d.cfg.FlushDelay, d.timerFlush)
	}

	d.wg.Add(1)
	go d.processBatch(batch)
}

// processBatch issues the batch RPCs concurrently. Every call was already in
// flight when a backoff signal arrives, so a rate limit or server error pauses
// dispatching and drains only the pending queue; the failed calls themselves
// resolve with no upgrade.
func (d *Dispatcher) processBatch(batch []*job) {
	defer d.wg.Done()

	var pauseOnce sync.Once
	g := new(errgroup.Group)
	for _, j := range batch {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("panic in classification call",
						slog.String("job_id", j.id),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())))
					resolveOnce(j, nil)
				}
			}()

			result, err := d.provider.Classify(context.Background(), j.req)
			if err != nil {
				switch {
				case aiclassify.RateLimited(err):
					pauseOnce.Do(func() { d.pause(d.cfg.RateLimitPause, "rate_limit", err) })
				case aiclassify.ServerError(err):
					pauseOnce.Do(func() { d.pause(d.cfg.ServerErrorPause, "server_error", err) })
				default:
					d.logger.Warn("classification request failed, keeping keyword result",
						slog.String("job_id", j.id),
						slog.String("title", j.req.Title),
						slog.Any("error", err))
				}
				resolveOnce(j, nil)
				return nil
			}

			metrics.RecordClassification(string(result.Level), string(result.Origin))
			resolveOnce(j, &result)
			return nil
		})
	}
	_ = g.Wait()
}

// pause stops dispatching for the given duration and empties the queue.
func (d *Dispatcher) pause(dur time.Duration, cause string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pausedUntil = d.clock.Now().Add(dur)
	metrics.RecordDispatchPause(cause)
	d.logger.Warn("dispatcher paused",
		slog.String("cause", cause),
		slog.Duration("duration", dur),
		slog.Int("drained", len(d.queue)),
		slog.Any("error", err))

	d.stopTimerLocked()
	d.drainLocked()
}

// drainLocked resolves every queued job with no upgrade.
// Must be called with d.mu held.
func (d *Dispatcher) drainLocked() {
	for _, j := range d.queue {
		resolveOnce(j, nil)
	}
	d.queue = nil
	metrics.SetDispatchQueueDepth(0)
}

// stopTimerLocked cancels the armed flush timer, if any.
// Must be called with d.mu held.
func (d *Dispatcher) stopTimerLocked() {
	if d.cancelTimer != nil {
		d.cancelTimer()
		d.cancelTimer = nil
	}
}

// pruneRecentLocked drops dedup entries older than DedupTTL, so the map stays
// bounded by the distinct headlines seen in one window.
// Must be called with d.mu held.
func (d *Dispatcher) pruneRecentLocked(now time.Time) {
	for key, admitted := range d.recent {
		if now.Sub(admitted) >= d.cfg.DedupTTL {
			delete(d.recent, key)
		}
	}
}

// pruneWindowLocked drops admission timestamps older than one minute.
// Must be called with d.mu held.
func (d *Dispatcher) pruneWindowLocked(now time.Time) {
	cutoff := now.Add(-time.Minute)
	keep := d.window[:0]
	for _, t := range d.window {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	d.window = keep
}

// resolveOnce delivers a result without blocking. The channel is buffered
// with capacity one, so the send only skips if the job was already resolved.
func resolveOnce(j *job, result *entity.ThreatClassification) {
	select {
	case j.resolve <- result:
	default:
	}
}

// dedupKey identifies a headline for duplicate suppression. Titles are
// compared case-insensitively across sources: a syndicated wire story carries
// the same headline on every outlet, and one RPC for it is enough.
func dedupKey(req aiclassify.Request) string {
	return strings.ToLower(strings.TrimSpace(req.Title))
}
