// Package report persists the outcome of a crawl run: the crawl log, the
// matched sentences and a summary, each as a JSON object in a blob store.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
	"github.com/JakeFAU/topic-crawler/internal/storage"
)

const contentTypeJSON = "application/json"

// Object names written for every run, under <prefix>/<run id>/.
const (
	CrawlLogObject = "crawl_log.json"
	MatchesObject  = "matches.json"
	SummaryObject  = "summary.json"
)

// Run is everything a finished crawl produced.
type Run struct {
	ID         uuid.UUID
	Config     crawler.Config
	Stats      crawler.Stats
	Records    []crawler.LinkRecord
	Matches    []crawler.Match
	StartedAt  time.Time
	FinishedAt time.Time
}

// Summary is the headline view of a run.
type Summary struct {
	RunID               string         `json:"run_id"`
	Config              crawler.Config `json:"config"`
	Claimed             int            `json:"claimed"`
	Visited             int            `json:"visited"`
	Pages               int            `json:"pages"`
	Failures            int            `json:"failures"`
	Matches             int            `json:"matches"`
	RejectedSubmissions int            `json:"rejected_submissions"`
	StartedAt           time.Time      `json:"started_at"`
	FinishedAt          time.Time      `json:"finished_at"`
	Duration            string         `json:"duration"`
}

// Summarize derives the Summary for run.
func Summarize(run Run) Summary {
	failures := 0
	for _, r := range run.Records {
		if r.Failed() {
			failures++
		}
	}
	return Summary{
		RunID:               run.ID.String(),
		Config:              run.Config,
		Claimed:             run.Stats.Claimed,
		Visited:             run.Stats.Visited,
		Pages:               len(run.Records),
		Failures:            failures,
		Matches:             len(run.Matches),
		RejectedSubmissions: run.Stats.RejectedSubmissions,
		StartedAt:           run.StartedAt.UTC(),
		FinishedAt:          run.FinishedAt.UTC(),
		Duration:            run.FinishedAt.Sub(run.StartedAt).String(),
	}
}

// Writer uploads run reports to a BlobStore.
type Writer struct {
	store  storage.BlobStore
	prefix string
	logger *zap.Logger
}

// NewWriter builds a Writer. prefix may be empty.
func NewWriter(store storage.BlobStore, prefix string, logger *zap.Logger) (*Writer, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, prefix: strings.Trim(prefix, "/"), logger: logger}, nil
}

// Write uploads the crawl log, matches and summary for run and returns the
// URIs keyed by object name. Nil slices are written as empty JSON arrays.
func (w *Writer) Write(ctx context.Context, run Run) (map[string]string, error) {
	if run.ID == uuid.Nil {
		return nil, errors.New("run id is required")
	}
	records := run.Records
	if records == nil {
		records = []crawler.LinkRecord{}
	}
	matches := run.Matches
	if matches == nil {
		matches = []crawler.Match{}
	}

	objects := []struct {
		name    string
		payload any
	}{
		{name: CrawlLogObject, payload: records},
		{name: MatchesObject, payload: matches},
		{name: SummaryObject, payload: Summarize(run)},
	}

	uris := make(map[string]string, len(objects))
	for _, obj := range objects {
		body, err := json.MarshalIndent(obj.payload, "", "  ")
		if err != nil {
			return uris, fmt.Errorf("encode %s: %w", obj.name, err)
		}
		key := w.objectPath(run.ID, obj.name)
		uri, err := w.store.PutObject(ctx, key, contentTypeJSON, bytes.NewReader(body))
		if err != nil {
			return uris, fmt.Errorf("upload %s: %w", key, err)
		}
		uris[obj.name] = uri
		w.logger.Debug("report object written", zap.String("uri", uri), zap.Int("bytes", len(body)))
	}
	w.logger.Info("crawl report written",
		zap.String("run_id", run.ID.String()),
		zap.String("summary", uris[SummaryObject]),
	)
	return uris, nil
}

func (w *Writer) objectPath(id uuid.UUID, name string) string {
	if w.prefix == "" {
		return path.Join(id.String(), name)
	}
	return path.Join(w.prefix, id.String(), name)
}
