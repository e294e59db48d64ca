package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-crawler/internal/progress"
)

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.New("crawl already started")

// TracerName identifies spans started by the engine.
const TracerName = "github.com/JakeFAU/topic-crawler/internal/crawler"

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	Workers        int
	FanOut         int
	FetchTimeout   time.Duration
	MatchBuffer    int
	ProgressBuffer int
	RunID          uuid.UUID
	Logger         *zap.Logger
	Emitter        progress.Emitter

	// Tracer defaults to the global OpenTelemetry provider's tracer.
	Tracer trace.Tracer

	// CountSeed makes the seed use up one slot of MaxPages. By default the
	// seed is admitted outside the budget and a run may fetch MaxPages+1 pages.
	CountSeed bool
}

// Engine orchestrates one crawl: it seeds the frontier, runs crawl tasks on a
// bounded pool and streams matches and claim counts to the caller.
type Engine struct {
	cfg       Config
	opts      Options
	fetcher   Fetcher
	extractor Extractor
	policy    LinkPolicy
	logger    *zap.Logger
	emitter   progress.Emitter
	tracer    trace.Tracer

	frontier *Frontier
	crawlLog *CrawlLog
	pool     atomic.Pointer[Pool]

	matches  chan Match
	progress chan int

	started  atomic.Bool
	rejected atomic.Int64
}

// NewEngine validates cfg and wires an Engine around the collaborators.
func NewEngine(cfg Config, fetcher Fetcher, extractor Extractor, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.FanOut <= 0 {
		opts.FanOut = DefaultFanOut
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.MatchBuffer <= 0 {
		opts.MatchBuffer = DefaultChannelBuffer
	}
	if opts.ProgressBuffer <= 0 {
		opts.ProgressBuffer = DefaultChannelBuffer
	}
	if opts.RunID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate run id: %w", err)
		}
		opts.RunID = id
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run_id", opts.RunID.String()))
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}

	return &Engine{
		cfg:       cfg,
		opts:      opts,
		fetcher:   fetcher,
		extractor: extractor,
		policy:    NewLinkPolicy(cfg.SeedURL),
		logger:    logger,
		emitter:   opts.Emitter,
		tracer:    tracer,
		frontier:  NewFrontier(cfg.MaxDepth, cfg.MaxPages),
		crawlLog:  NewCrawlLog(),
		matches:   make(chan Match, opts.MatchBuffer),
		progress:  make(chan int, opts.ProgressBuffer),
	}, nil
}

// Config returns the crawl configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// RunID identifies this crawl in logs, events and reports.
func (e *Engine) RunID() uuid.UUID {
	return e.opts.RunID
}

// Matches streams topic sentences as pages are processed. The channel is
// closed when Run returns; callers must keep draining it while Run is active.
func (e *Engine) Matches() <-chan Match {
	return e.matches
}

// Progress streams the claim count after every admitted link (the seed is not
// counted). The channel is closed when Run returns; callers must keep
// draining it while Run is active.
func (e *Engine) Progress() <-chan int {
	return e.progress
}

// CrawlLog returns the records written so far, in completion order.
func (e *Engine) CrawlLog() []LinkRecord {
	return e.crawlLog.Snapshot()
}

// Stats returns a point-in-time view of the run.
func (e *Engine) Stats() Stats {
	claimed, visited := e.frontier.Stats()
	inFlight := 0
	if pool := e.pool.Load(); pool != nil {
		inFlight = pool.InFlight()
	}
	return Stats{
		Claimed:             claimed,
		Visited:             visited,
		InFlight:            inFlight,
		Records:             e.crawlLog.Len(),
		RejectedSubmissions: int(e.rejected.Load()),
	}
}

// Run crawls from the seed until the frontier is exhausted or the budget is
// spent, then shuts the pool down and closes both output channels. ctx is
// only forwarded to fetches; cancelling it makes outstanding fetches fail,
// which lets the run finish through the normal path.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(e.progress)
	defer close(e.matches)

	ctx, span := e.tracer.Start(ctx, "crawl.run", trace.WithAttributes(
		attribute.String("crawl.run_id", e.opts.RunID.String()),
		attribute.String("crawl.topic", e.cfg.Topic),
		attribute.Int("crawl.max_depth", e.cfg.MaxDepth),
		attribute.Int("crawl.max_pages", e.cfg.MaxPages),
	))
	defer span.End()

	start := time.Now()
	pool := NewPool(e.opts.Workers, e.logger.Named("pool"))
	e.pool.Store(pool)

	seed := e.frontier.Seed(e.cfg.SeedURL, e.opts.CountSeed)
	e.logger.Info("crawl started",
		zap.String("seed", seed),
		zap.String("topic", e.cfg.Topic),
		zap.Int("max_depth", e.cfg.MaxDepth),
		zap.Int("max_pages", e.cfg.MaxPages),
		zap.Int("workers", e.opts.Workers),
	)
	e.emit(progress.Event{Stage: progress.StageRunStart, URL: seed, Site: siteOf(seed)})

	if err := pool.Submit(func() { e.runTask(ctx, seed, "", 0) }); err != nil {
		pool.Shutdown()
		return fmt.Errorf("schedule seed: %w", err)
	}
	pool.AwaitIdle()
	pool.Shutdown()

	stats := e.Stats()
	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.Int("crawl.claimed", stats.Claimed),
		attribute.Int("crawl.records", stats.Records),
		attribute.Int("crawl.rejected_submissions", stats.RejectedSubmissions),
	)
	e.logger.Info("crawl finished",
		zap.Int("claimed", stats.Claimed),
		zap.Int("visited", stats.Visited),
		zap.Int("records", stats.Records),
		zap.Int("rejected_submissions", stats.RejectedSubmissions),
		zap.Duration("elapsed", elapsed),
	)
	e.emit(progress.Event{Stage: progress.StageRunDone, URL: seed, Dur: elapsed})
	return nil
}

// claim offers a discovered link to the frontier and schedules a task for it
// when admitted. The progress send and the submission happen outside the
// frontier lock.
func (e *Engine) claim(ctx context.Context, link, parent string, depth int) bool {
	canonical, count, ok := e.frontier.Claim(link, depth)
	if !ok {
		return false
	}
	pool := e.pool.Load()
	if pool == nil {
		e.rejectSubmission(canonical, ErrPoolClosed)
		return false
	}
	if err := pool.Submit(func() { e.runTask(ctx, canonical, parent, depth) }); err != nil {
		e.rejectSubmission(canonical, err)
		return false
	}

	e.emit(progress.Event{
		Stage:   progress.StageClaim,
		URL:     canonical,
		Site:    siteOf(canonical),
		Depth:   depth,
		Claimed: count,
	})
	select {
	case e.progress <- count:
	case <-ctx.Done():
	}
	return true
}

// rejectSubmission handles a claim whose task could not be scheduled because
// the pool had already shut down: the claim is released so the frontier stays
// consistent with the crawl log, and the rejection is surfaced.
func (e *Engine) rejectSubmission(canonical string, err error) {
	e.frontier.Release(canonical)
	e.rejected.Add(1)
	e.logger.Warn("late link submission rejected", zap.String("url", canonical), zap.Error(err))
	e.emit(progress.Event{
		Stage: progress.StageSubmitRejected,
		URL:   canonical,
		Site:  siteOf(canonical),
		Note:  err.Error(),
	})
}

func (e *Engine) emit(evt progress.Event) {
	if e.emitter == nil {
		return
	}
	evt.RunID = progress.UUIDToBytes(e.opts.RunID)
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	e.emitter.Emit(evt)
}
