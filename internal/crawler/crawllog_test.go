package crawler

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCrawlLogConcurrentAppend(t *testing.T) {
	t.Parallel()

	log := NewCrawlLog()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			log.Append(LinkRecord{URL: fmt.Sprintf("http://x.test/%d", i), Depth: 1})
			_ = log.Snapshot()
		}(i)
	}
	wg.Wait()

	records := log.Snapshot()
	require.Len(t, records, 100)
	require.Equal(t, 100, log.Len())

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		require.False(t, seen[r.URL], "duplicate record %s", r.URL)
		seen[r.URL] = true
	}
}

func TestCrawlLogSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	log := NewCrawlLog()
	log.Append(LinkRecord{URL: "http://x.test/"})
	snap := log.Snapshot()
	snap[0].URL = "mutated"
	require.Equal(t, "http://x.test/", log.Snapshot()[0].URL)
}

func TestLinkRecordFailed(t *testing.T) {
	t.Parallel()

	require.True(t, LinkRecord{Status: -1}.Failed())
	require.True(t, LinkRecord{Status: 200, Error: "extract: bad html"}.Failed())
	require.False(t, LinkRecord{Status: 404}.Failed())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := Config{SeedURL: "http://x.test/", Topic: "go", MaxDepth: 0, MaxPages: 1}
	require.NoError(t, valid.Validate())

	cases := []struct {
		cfg Config
		msg string
	}{
		{cfg: Config{Topic: "go", MaxPages: 1}, msg: "seed url must be set"},
		{cfg: Config{SeedURL: "/relative", Topic: "go", MaxPages: 1}, msg: "seed url must be absolute"},
		{cfg: Config{SeedURL: "http://x.test/", Topic: " ", MaxPages: 1}, msg: "topic must be set"},
		{cfg: Config{SeedURL: "http://x.test/", Topic: "go", MaxDepth: -1, MaxPages: 1}, msg: "max depth must be >= 0"},
		{cfg: Config{SeedURL: "http://x.test/", Topic: "go"}, msg: "max pages must be >= 1"},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		require.ErrorIs(t, err, ErrInvalidConfig)
		require.ErrorContains(t, err, tc.msg)
	}
}
