package crawler

import (
	"context"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-crawler/internal/progress"
)

// runTask performs one page's fetch, extract and expand cycle. It always
// appends exactly one record to the crawl log, whatever happens to the fetch.
// Each page gets a span parented on the span of the page that linked to it.
func (e *Engine) runTask(ctx context.Context, pageURL, parent string, depth int) {
	ctx, span := e.tracer.Start(ctx, "crawl.page", trace.WithAttributes(
		attribute.String("url.full", pageURL),
		attribute.Int("crawl.depth", depth),
	))
	start := time.Now()
	record := LinkRecord{
		URL:       pageURL,
		ParentURL: parent,
		Depth:     depth,
		Status:    unknownStatus,
		SizeBytes: unknownContentLength,
		FetchedAt: start.UTC(),
	}
	logger := e.logger.With(zap.String("url", pageURL), zap.Int("depth", depth))
	defer func() {
		record.Duration = time.Since(start)
		e.crawlLog.Append(record)
		span.SetAttributes(
			attribute.Int("http.response.status_code", record.Status),
			attribute.Int64("http.response.body.size", record.SizeBytes),
		)
		if record.Error != "" {
			span.SetStatus(codes.Error, record.Error)
		}
		span.End()
		e.emit(progress.Event{
			Stage:       progress.StageFetchDone,
			URL:         pageURL,
			Site:        siteOf(pageURL),
			Depth:       depth,
			Bytes:       max(record.SizeBytes, 0),
			StatusClass: progress.ClassifyStatus(record.Status),
			Dur:         record.Duration,
			Note:        record.Error,
		})
	}()

	meta, headErr := e.head(ctx, pageURL)
	if headErr == nil {
		record.Status = meta.StatusCode
		record.SizeBytes = meta.ContentLength
		record.ContentType = meta.ContentType
	} else {
		logger.Debug("metadata probe failed", zap.Error(headErr))
	}

	page, err := e.fetch(ctx, pageURL)
	if err != nil {
		logger.Warn("fetch failed", zap.Error(err))
		record.Status = unknownStatus
		record.SizeBytes = unknownContentLength
		record.ContentType = ""
		record.Error = truncateError(err.Error())
		return
	}
	if headErr != nil {
		record.Status = page.StatusCode
		record.SizeBytes = page.ContentLength
		record.ContentType = page.ContentType
	}

	extraction, err := e.extractor.Extract(page, e.cfg.Topic)
	if err != nil {
		logger.Warn("extract failed", zap.Error(err))
		record.Error = truncateError(err.Error())
		return
	}
	for _, sentence := range extraction.Sentences {
		select {
		case e.matches <- Match{Sentence: sentence, SourceURL: pageURL}:
		case <-ctx.Done():
			return
		}
	}

	if depth >= e.cfg.MaxDepth {
		return
	}
	accepted := 0
	for _, link := range extraction.Links {
		if accepted >= e.opts.FanOut {
			break
		}
		if !e.policy.Allows(link) {
			continue
		}
		if e.claim(ctx, link, pageURL, depth+1) {
			accepted++
		}
	}
	if accepted > 0 {
		logger.Debug("links claimed", zap.Int("accepted", accepted), zap.Int("discovered", len(extraction.Links)))
	}
}

func (e *Engine) head(ctx context.Context, pageURL string) (PageMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
	defer cancel()
	return e.fetcher.Head(ctx, pageURL)
}

func (e *Engine) fetch(ctx context.Context, pageURL string) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
	defer cancel()
	return e.fetcher.Fetch(ctx, pageURL)
}

func truncateError(msg string) string {
	if len(msg) <= maxRecordedErrorBytes {
		return msg
	}
	return msg[:maxRecordedErrorBytes]
}

// siteOf labels a URL by its www-stripped host for metrics and events.
func siteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return hostKey(u.Hostname())
}
