// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
)

// Report backends accepted by report.backend.
const (
	ReportNone  = "none"
	ReportLocal = "local"
	ReportGCS   = "gcs"
)

// EnvPrefix is prepended to every environment override, e.g.
// CRAWLER_CRAWL_TOPIC=golang.
const EnvPrefix = "CRAWLER"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Report   ReportConfig   `mapstructure:"report"`
	Progress ProgressConfig `mapstructure:"progress"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// CrawlConfig describes the crawl itself.
type CrawlConfig struct {
	SeedURL   string `mapstructure:"seed_url"`
	Topic     string `mapstructure:"topic"`
	MaxDepth  int    `mapstructure:"max_depth"`
	MaxPages  int    `mapstructure:"max_pages"`
	CountSeed bool   `mapstructure:"count_seed"`
}

// CrawlerConfig governs the engine's worker pool and output channels.
type CrawlerConfig struct {
	Workers        int    `mapstructure:"workers"`
	FanOut         int    `mapstructure:"fan_out"`
	UserAgent      string `mapstructure:"user_agent"`
	MatchBuffer    int    `mapstructure:"match_buffer"`
	ProgressBuffer int    `mapstructure:"progress_buffer"`
}

// HTTPConfig configures the fetcher.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the status server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ReportConfig selects where the run report is written.
type ReportConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// ProgressConfig tunes the progress event hub.
type ProgressConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
}

// TracingConfig toggles OpenTelemetry spans, exported to debug logs.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	Bind(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// Bind installs defaults and environment overrides on v.
func Bind(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// FromViper decodes and validates whatever v has accumulated from defaults,
// files, environment and bound flags.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Report.Backend = strings.ToLower(strings.TrimSpace(cfg.Report.Backend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers every key with its default so env overrides resolve
// during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("crawl.seed_url", "")
	v.SetDefault("crawl.topic", "")
	v.SetDefault("crawl.max_depth", 2)
	v.SetDefault("crawl.max_pages", 50)
	v.SetDefault("crawl.count_seed", false)
	v.SetDefault("crawler.workers", crawler.DefaultWorkers)
	v.SetDefault("crawler.fan_out", crawler.DefaultFanOut)
	v.SetDefault("crawler.user_agent", "topic-crawler/0.1 (+https://github.com/JakeFAU/topic-crawler)")
	v.SetDefault("crawler.match_buffer", crawler.DefaultChannelBuffer)
	v.SetDefault("crawler.progress_buffer", crawler.DefaultChannelBuffer)
	v.SetDefault("http.timeout", crawler.DefaultFetchTimeout)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("report.backend", ReportNone)
	v.SetDefault("report.base_dir", "data/reports")
	v.SetDefault("report.gcs_bucket", "")
	v.SetDefault("report.prefix", "runs")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 256)
	v.SetDefault("progress.max_batch_wait", 250*time.Millisecond)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "topic-crawler")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.CrawlParams().Validate(); err != nil {
		return err
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.FanOut <= 0 {
		return fmt.Errorf("crawler.fan_out must be > 0")
	}
	if c.Crawler.MatchBuffer < 0 || c.Crawler.ProgressBuffer < 0 {
		return fmt.Errorf("crawler channel buffers must be >= 0")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	switch c.Report.Backend {
	case "", ReportNone:
	case ReportLocal:
		if strings.TrimSpace(c.Report.BaseDir) == "" {
			return fmt.Errorf("report.base_dir must be set for the local backend")
		}
	case ReportGCS:
		if strings.TrimSpace(c.Report.GCSBucket) == "" {
			return fmt.Errorf("report.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("report.backend must be one of none, local, gcs; got %q", c.Report.Backend)
	}
	return nil
}

// CrawlParams converts the crawl section into the engine's Config.
func (c Config) CrawlParams() crawler.Config {
	return crawler.Config{
		SeedURL:  strings.TrimSpace(c.Crawl.SeedURL),
		Topic:    strings.TrimSpace(c.Crawl.Topic),
		MaxDepth: c.Crawl.MaxDepth,
		MaxPages: c.Crawl.MaxPages,
	}
}

// ReportEnabled reports whether a run report should be written.
func (c Config) ReportEnabled() bool {
	return c.Report.Backend != "" && c.Report.Backend != ReportNone
}
