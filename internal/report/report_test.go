package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
	"github.com/JakeFAU/topic-crawler/internal/storage"
	"github.com/JakeFAU/topic-crawler/internal/storage/memory"
)

func sampleRun() Run {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return Run{
		ID:     uuid.MustParse("0190c6a4-1c3e-7b5e-9f4a-2d3c4b5a6978"),
		Config: crawler.Config{SeedURL: "http://x.test/", Topic: "go", MaxDepth: 1, MaxPages: 5},
		Stats:  crawler.Stats{Claimed: 1, Visited: 2, Records: 2},
		Records: []crawler.LinkRecord{
			{URL: "http://x.test/", Depth: 0, Status: 200, SizeBytes: 120, ContentType: "text/html"},
			{URL: "http://x.test/a", ParentURL: "http://x.test/", Depth: 1, Status: -1, SizeBytes: -1, Error: "timeout"},
		},
		Matches:    []crawler.Match{{Sentence: "Go is fun.", SourceURL: "http://x.test/"}},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := Summarize(sampleRun())
	require.Equal(t, "0190c6a4-1c3e-7b5e-9f4a-2d3c4b5a6978", s.RunID)
	require.Equal(t, 2, s.Pages)
	require.Equal(t, 1, s.Failures)
	require.Equal(t, 1, s.Matches)
	require.Equal(t, 1, s.Claimed)
	require.Equal(t, 2, s.Visited)
	require.Equal(t, "1.5s", s.Duration)
}

func TestWriterWritesObjects(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	w, err := NewWriter(store, "/reports/", nil)
	require.NoError(t, err)

	run := sampleRun()
	uris, err := w.Write(context.Background(), run)
	require.NoError(t, err)

	base := "reports/" + run.ID.String() + "/"
	require.Equal(t, []string{base + CrawlLogObject, base + MatchesObject, base + SummaryObject}, store.Paths())
	require.Equal(t, "memory://"+base+SummaryObject, uris[SummaryObject])

	raw, contentType, ok := store.Object(base + CrawlLogObject)
	require.True(t, ok)
	require.Equal(t, "application/json", contentType)
	var records []crawler.LinkRecord
	require.NoError(t, json.Unmarshal(raw, &records))
	require.Equal(t, run.Records, records)

	raw, _, _ = store.Object(base + SummaryObject)
	var summary Summary
	require.NoError(t, json.Unmarshal(raw, &summary))
	require.Equal(t, 1, summary.Failures)
	require.Equal(t, run.Config, summary.Config)
}

func TestWriterEmptyRun(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	w, err := NewWriter(store, "", nil)
	require.NoError(t, err)

	id := uuid.New()
	_, err = w.Write(context.Background(), Run{ID: id})
	require.NoError(t, err)
	raw, _, ok := store.Object(id.String() + "/" + MatchesObject)
	require.True(t, ok)
	require.JSONEq(t, "[]", string(raw))

	_, err = w.Write(context.Background(), Run{})
	require.Error(t, err)
}

func TestWriterPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	store := &storage.MockBlobStore{}
	store.On("PutObject", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.HasSuffix(p, CrawlLogObject)
	}), "application/json", mock.Anything).Return("memory://ok", nil).Once()
	store.On("PutObject", mock.Anything, mock.Anything, "application/json", mock.Anything).Return("", errors.New("quota exceeded")).Once()

	w, err := NewWriter(store, "p", nil)
	require.NoError(t, err)
	uris, err := w.Write(context.Background(), sampleRun())
	require.ErrorContains(t, err, "quota exceeded")
	require.Len(t, uris, 1)
	store.AssertExpectations(t)

	_, err = NewWriter(nil, "", nil)
	require.Error(t, err)
}

func TestRenderTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, sampleRun().Records))
	out := buf.String()
	require.Contains(t, out, "DEPTH")
	require.Contains(t, out, "http://x.test/a")
	require.Contains(t, out, "text/html")
	require.True(t, strings.HasSuffix(out, "2 pages, 1 failed\n"))
}
