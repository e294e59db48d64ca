// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
)

const defaultTimeout = 5 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

var _ crawler.Fetcher = (*Fetcher)(nil)

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher sharing one pooled transport across requests.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	// Clones share the backend client, so the timeout is set once here.
	c.SetRequestTimeout(cfg.Timeout)
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET. Non-2xx responses are returned as pages.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.Page, error) {
	var (
		result   crawler.Page
		fetchErr error
	)
	collector := f.buildCollector(ctx)
	f.configureCollectorHooks(collector, nil, &result, &fetchErr)

	if err := runCollector(ctx, func() error { return collector.Visit(rawURL) }, &fetchErr); err != nil {
		return crawler.Page{}, err
	}
	result.URL = rawURL
	return result, nil
}

// Head issues a HEAD request asking for an uncompressed representation so
// Content-Length reflects the real body size.
func (f *Fetcher) Head(ctx context.Context, rawURL string) (crawler.PageMeta, error) {
	var (
		result   crawler.Page
		fetchErr error
	)
	collector := f.buildCollector(ctx)
	f.configureCollectorHooks(collector, http.Header{"Accept-Encoding": {"identity"}}, &result, &fetchErr)

	if err := runCollector(ctx, func() error { return collector.Head(rawURL) }, &fetchErr); err != nil {
		return crawler.PageMeta{}, err
	}
	return result.PageMeta, nil
}

func (f *Fetcher) buildCollector(ctx context.Context) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	// The frontier owns deduplication; the HEAD probe and the GET hit the same URL.
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.Context = ctx
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	headers http.Header,
	result *crawler.Page,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = pageFromResponse(r)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		// ParseHTTPErrorResponse still routes 4xx/5xx here; keep them as pages.
		if r != nil && r.StatusCode > 0 {
			*result = pageFromResponse(r)
			return
		}
		*fetchErr = err
	})
}

func pageFromResponse(r *colly.Response) crawler.Page {
	page := crawler.Page{
		PageMeta: crawler.PageMeta{
			StatusCode:    r.StatusCode,
			ContentLength: -1,
		},
		Body: append([]byte(nil), r.Body...),
	}
	if r.Headers != nil {
		page.ContentType = r.Headers.Get("Content-Type")
		page.ContentLength = contentLength(r.Headers.Get("Content-Length"))
	}
	if page.ContentLength < 0 && r.Request != nil && r.Request.Method == http.MethodGet {
		page.ContentLength = int64(len(r.Body))
	}
	if r.Request != nil && r.Request.URL != nil {
		page.FinalURL = r.Request.URL.String()
	}
	return page
}

func contentLength(raw string) int64 {
	if raw == "" {
		return -1
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

func runCollector(ctx context.Context, visit func() error, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- visit()
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
