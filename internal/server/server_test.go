package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
)

type fakeRun struct {
	id      uuid.UUID
	records []crawler.LinkRecord
}

func (f *fakeRun) Config() crawler.Config {
	return crawler.Config{SeedURL: "https://x.test/", Topic: "go", MaxDepth: 2, MaxPages: 5}
}

func (f *fakeRun) RunID() uuid.UUID { return f.id }

func (f *fakeRun) Stats() crawler.Stats {
	return crawler.Stats{Claimed: 3, Visited: 4, Records: len(f.records)}
}

func (f *fakeRun) CrawlLog() []crawler.LinkRecord { return f.records }

func newTestServer(t *testing.T, run RunSource) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	srv, err := NewServer(run, Options{Gatherer: reg, Registerer: reg, Logger: zap.NewNop()})
	require.NoError(t, err)
	return srv, reg
}

func serve(srv *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeRun{id: uuid.New()})
	rec := serve(srv, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(srv, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)

	detached, _ := newTestServer(t, nil)
	rec = serve(detached, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = serve(detached, http.MethodGet, "/v1/run")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_GetRun(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	srv, _ := newTestServer(t, &fakeRun{id: id, records: make([]crawler.LinkRecord, 2)})
	rec := serve(srv, http.MethodGet, "/v1/run")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, id.String(), body.RunID)
	require.Equal(t, "go", body.Config.Topic)
	require.Equal(t, 3, body.Stats.Claimed)
	require.Equal(t, 2, body.Stats.Records)
}

func TestServer_GetCrawlLogPaginates(t *testing.T) {
	t.Parallel()

	records := []crawler.LinkRecord{
		{URL: "https://x.test/", Status: 200},
		{URL: "https://x.test/a", Status: 200},
		{URL: "https://x.test/b", Status: -1, Error: "timeout"},
	}
	srv, _ := newTestServer(t, &fakeRun{id: uuid.New(), records: records})

	rec := serve(srv, http.MethodGet, "/v1/run/log?limit=2&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Records []crawler.LinkRecord `json:"records"`
		Total   int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 3, body.Total)
	require.Len(t, body.Records, 2)
	require.Equal(t, "https://x.test/a", body.Records[0].URL)
	require.True(t, body.Records[1].Failed())

	rec = serve(srv, http.MethodGet, "/v1/run/log?offset=10")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"records":[]`)

	for _, q := range []string{"limit=0", "limit=abc", "offset=-1"} {
		rec = serve(srv, http.MethodGet, "/v1/run/log?"+q)
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, reg := newTestServer(t, &fakeRun{id: uuid.New()})
	require.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/healthz").Code)
	require.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/nope").Code)

	rec := serve(srv, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")

	count, err := testutil.GatherAndCount(reg, "http_requests_total")
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 2)
}

func TestServer_DuplicateRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewServer(nil, Options{Registerer: reg, Gatherer: reg})
	require.NoError(t, err)
	_, err = NewServer(nil, Options{Registerer: reg, Gatherer: reg})
	require.Error(t, err)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func TestRequestIDPropagates(t *testing.T) {
	t.Parallel()

	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeRun{id: uuid.New()})
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + lis.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
