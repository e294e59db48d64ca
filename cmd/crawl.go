package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/topic-crawler/internal/config"
	"github.com/JakeFAU/topic-crawler/internal/crawler"
	"github.com/JakeFAU/topic-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/topic-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/topic-crawler/internal/progress"
	"github.com/JakeFAU/topic-crawler/internal/progress/sinks"
	"github.com/JakeFAU/topic-crawler/internal/report"
	"github.com/JakeFAU/topic-crawler/internal/server"
	"github.com/JakeFAU/topic-crawler/internal/storage"
	gcsstorage "github.com/JakeFAU/topic-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/topic-crawler/internal/storage/local"
	"github.com/JakeFAU/topic-crawler/internal/telemetry"
)

const closeTimeout = 10 * time.Second

// newCrawlCmd creates the 'crawl' subcommand and binds its flags into v.
func newCrawlCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl from a seed URL and print sentences matching a topic",
		Example: `  topic-crawler crawl --seed https://go.dev/ --topic goroutine --max-depth 2 --max-pages 30
  CRAWLER_REPORT_BACKEND=local topic-crawler crawl --seed https://example.com --topic domain`,
		Args: cobra.NoArgs,
		RunE: runCrawlCommand,
	}

	f := cmd.Flags()
	f.String("seed", "", "seed URL (required)")
	f.String("topic", "", "topic keyword to match (required)")
	f.Int("max-depth", 0, "maximum link depth from the seed")
	f.Int("max-pages", 0, "maximum number of discovered pages to admit")
	f.Bool("count-seed", false, "count the seed page against --max-pages; by default the seed is admitted outside the budget, so --max-pages 1 still fetches one child page")
	f.Int("workers", 0, "number of concurrent crawl workers")
	f.Int("fan-out", 0, "maximum links followed per page")
	f.Duration("timeout", 0, "per-request fetch timeout")
	f.String("metrics-addr", "", "serve /metrics and /v1/run on this address while crawling")
	f.String("report", "", "report backend: none, local or gcs")
	f.String("report-dir", "", "base directory for the local report backend")
	f.String("report-bucket", "", "bucket for the gcs report backend")
	f.Bool("trace", false, "record OpenTelemetry spans and log them at debug level")

	for key, name := range map[string]string{
		"crawl.seed_url":    "seed",
		"crawl.topic":       "topic",
		"crawl.max_depth":   "max-depth",
		"crawl.max_pages":   "max-pages",
		"crawl.count_seed":  "count-seed",
		"crawler.workers":   "workers",
		"crawler.fan_out":   "fan-out",
		"http.timeout":      "timeout",
		"metrics.addr":      "metrics-addr",
		"report.backend":    "report",
		"report.base_dir":   "report-dir",
		"report.gcs_bucket": "report-bucket",
		"tracing.enabled":   "trace",
	} {
		mustBind(v, key, f.Lookup(name))
	}
	return cmd
}

// mustBind binds a flag; only unchanged flags fall through to env, file and
// defaults.
func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	return runCrawl(cmd.Context(), appInstance.Config, appInstance.Logger, cmd.OutOrStdout())
}

func runCrawl(ctx context.Context, cfg config.Config, logger *zap.Logger, out io.Writer) error {
	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.Tracing.ServiceName,
			sdktrace.WithBatcher(telemetry.NewLogExporter(logger.Named("trace"))),
		)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
			defer cancel()
			if cerr := tp.Shutdown(closeCtx); cerr != nil {
				logger.Warn("tracer provider shutdown failed", zap.Error(cerr))
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("init progress metrics: %w", err)
	}
	hub := progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   cfg.Progress.MaxBatchWait,
		Logger:         logger.Named("progress"),
	}, sinks.NewLogSink(logger.Named("progress")), promSink)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := hub.Close(closeCtx); cerr != nil {
			logger.Warn("progress hub close failed", zap.Error(cerr))
		}
	}()

	reportWriter, closeStore, err := buildReportWriter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			logger.Warn("report store close failed", zap.Error(cerr))
		}
	}()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.HTTP.Timeout,
	})
	engine, err := crawler.NewEngine(cfg.CrawlParams(), fetcher, extract.New(), crawler.Options{
		Workers:        cfg.Crawler.Workers,
		FanOut:         cfg.Crawler.FanOut,
		FetchTimeout:   cfg.HTTP.Timeout,
		MatchBuffer:    cfg.Crawler.MatchBuffer,
		ProgressBuffer: cfg.Crawler.ProgressBuffer,
		Logger:         logger.Named("crawler"),
		Emitter:        hub,
		CountSeed:      cfg.Crawl.CountSeed,
	})
	if err != nil {
		return fmt.Errorf("init crawler: %w", err)
	}

	startedAt := time.Now().UTC()
	var matches []crawler.Match

	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	g.Go(func() error {
		defer stopServer()
		if runErr := engine.Run(gctx); runErr != nil {
			return fmt.Errorf("run crawler: %w", runErr)
		}
		return nil
	})
	g.Go(func() error {
		for m := range engine.Matches() {
			matches = append(matches, m)
			if _, werr := fmt.Fprintf(out, "[%s] %s\n", m.SourceURL, m.Sentence); werr != nil {
				logger.Warn("write match failed", zap.Error(werr))
			}
		}
		return nil
	})
	g.Go(func() error {
		for claimed := range engine.Progress() {
			logger.Debug("frontier claimed", zap.Int("claimed", claimed), zap.Int("max_pages", cfg.Crawl.MaxPages))
		}
		return nil
	})
	if cfg.Metrics.Addr != "" {
		srv, serr := server.NewServer(engine, server.Options{
			Gatherer:   reg,
			Registerer: reg,
			Logger:     logger.Named("http"),
		})
		if serr != nil {
			return fmt.Errorf("init status server: %w", serr)
		}
		g.Go(func() error {
			return srv.ListenAndServe(srvCtx, cfg.Metrics.Addr)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	finishedAt := time.Now().UTC()

	records := engine.CrawlLog()
	if _, err := fmt.Fprintln(out); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := report.RenderTable(out, records); err != nil {
		return fmt.Errorf("render crawl log: %w", err)
	}

	stats := engine.Stats()
	logger.Info("crawl finished",
		zap.String("run_id", engine.RunID().String()),
		zap.Int("pages", len(records)),
		zap.Int("matches", len(matches)),
		zap.Int("claimed", stats.Claimed),
		zap.Int("rejected_submissions", stats.RejectedSubmissions),
		zap.Duration("elapsed", finishedAt.Sub(startedAt)),
	)

	if reportWriter == nil {
		return nil
	}
	_, err = reportWriter.Write(context.WithoutCancel(ctx), report.Run{
		ID:         engine.RunID(),
		Config:     engine.Config(),
		Stats:      stats,
		Records:    records,
		Matches:    matches,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	})
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// buildReportWriter opens the configured blob store. The returned closer is
// always non-nil.
func buildReportWriter(ctx context.Context, cfg config.Config, logger *zap.Logger) (*report.Writer, func() error, error) {
	noop := func() error { return nil }
	if !cfg.ReportEnabled() {
		return nil, noop, nil
	}

	var (
		store  storage.BlobStore
		closer = noop
	)
	switch cfg.Report.Backend {
	case config.ReportLocal:
		local, err := localstorage.New(localstorage.Config{BaseDir: cfg.Report.BaseDir})
		if err != nil {
			return nil, noop, fmt.Errorf("init local report store: %w", err)
		}
		store = local
	case config.ReportGCS:
		gcs, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: cfg.Report.GCSBucket})
		if err != nil {
			return nil, noop, fmt.Errorf("init gcs report store: %w", err)
		}
		store, closer = gcs, gcs.Close
	default:
		return nil, noop, errors.New("unknown report backend " + cfg.Report.Backend)
	}

	writer, err := report.NewWriter(store, cfg.Report.Prefix, logger.Named("report"))
	if err != nil {
		return nil, noop, errors.Join(err, closer())
	}
	return writer, closer, nil
}
