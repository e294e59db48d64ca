package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
	"github.com/JakeFAU/topic-crawler/internal/report"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html><body><p>Go is fun. Nothing else.</p>
<a href="/a">a</a><a href="/missing">b</a><a href="/logo.png">logo</a></body></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html><body><p>Coffee first. We love go routines.</p></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCrawlCommandPrintsMatchesAndWritesReport(t *testing.T) {
	t.Parallel()

	site := newSite(t)
	reportDir := t.TempDir()

	out, err := executeRoot(t, "crawl",
		"--seed", site.URL,
		"--topic", "go",
		"--max-depth", "1",
		"--max-pages", "10",
		"--workers", "2",
		"--log-level", "error",
		"--metrics-addr", "127.0.0.1:0",
		"--report", "local",
		"--report-dir", reportDir,
	)
	require.NoError(t, err)

	require.Contains(t, out, "["+site.URL+"/] Go is fun.\n")
	require.Contains(t, out, "["+site.URL+"/a] We love go routines.\n")
	require.NotContains(t, out, "Coffee")
	require.Contains(t, out, "DEPTH")
	require.Contains(t, out, site.URL+"/missing")
	require.NotContains(t, out, "logo.png")
	require.Contains(t, out, "3 pages, 0 failed")

	summaries, err := filepath.Glob(filepath.Join(reportDir, "runs", "*", report.SummaryObject))
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	raw, err := os.ReadFile(summaries[0])
	require.NoError(t, err)
	var summary report.Summary
	require.NoError(t, json.Unmarshal(raw, &summary))
	require.Equal(t, 3, summary.Pages)
	require.Equal(t, 2, summary.Matches)
	require.Equal(t, "go", summary.Config.Topic)

	raw, err = os.ReadFile(filepath.Join(filepath.Dir(summaries[0]), report.CrawlLogObject))
	require.NoError(t, err)
	var records []crawler.LinkRecord
	require.NoError(t, json.Unmarshal(raw, &records))
	require.Len(t, records, 3)
}

func TestCrawlCommandCountSeed(t *testing.T) {
	t.Parallel()

	site := newSite(t)
	out, err := executeRoot(t, "crawl",
		"--seed", site.URL,
		"--topic", "go",
		"--max-depth", "3",
		"--max-pages", "1",
		"--count-seed",
		"--log-level", "error",
	)
	require.NoError(t, err)
	require.Contains(t, out, "1 pages, 0 failed")
	require.NotContains(t, out, "We love go routines.")
}

func TestCrawlCommandHelpExplainsSeedBudget(t *testing.T) {
	t.Parallel()

	out, err := executeRoot(t, "crawl", "--help")
	require.NoError(t, err)
	require.Contains(t, out, "--count-seed")
	require.Contains(t, out, "by default the seed is admitted outside the budget, so --max-pages 1 still fetches one child page")
}

func TestCrawlCommandRequiresSeedAndTopic(t *testing.T) {
	t.Parallel()

	_, err := executeRoot(t, "crawl", "--topic", "go", "--log-level", "error")
	require.ErrorIs(t, err, crawler.ErrInvalidConfig)

	_, err = executeRoot(t, "crawl", "--seed", "https://example.com/", "--log-level", "error")
	require.ErrorIs(t, err, crawler.ErrInvalidConfig)
}

func TestCrawlCommandRejectsPositionalArgs(t *testing.T) {
	t.Parallel()

	_, err := executeRoot(t, "crawl", "https://example.com/")
	require.Error(t, err)
}
