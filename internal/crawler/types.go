package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Tunables shared by the engine and the CLI defaults.
const (
	DefaultWorkers        = 10
	DefaultFanOut         = 10
	DefaultFetchTimeout   = 5 * time.Second
	DefaultChannelBuffer  = 64
	unknownStatus         = -1
	unknownContentLength  = -1
	maxRecordedErrorBytes = 512
)

// ErrInvalidConfig is returned (wrapped) by Config.Validate.
var ErrInvalidConfig = errors.New("invalid crawl config")

// Config describes a single crawl. It is built once and never mutated.
type Config struct {
	SeedURL  string `json:"seed_url"`
	Topic    string `json:"topic"`
	MaxDepth int    `json:"max_depth"`
	MaxPages int    `json:"max_pages"`
}

// Validate checks the crawl parameters before a run is started.
func (c Config) Validate() error {
	seed := strings.TrimSpace(c.SeedURL)
	if seed == "" {
		return fmt.Errorf("%w: seed url must be set", ErrInvalidConfig)
	}
	u, err := url.Parse(seed)
	if err != nil {
		return fmt.Errorf("%w: seed url: %v", ErrInvalidConfig, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: seed url must be absolute", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Topic) == "" {
		return fmt.Errorf("%w: topic must be set", ErrInvalidConfig)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: max depth must be >= 0", ErrInvalidConfig)
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("%w: max pages must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// Match is a sentence containing the topic keyword.
type Match struct {
	Sentence  string `json:"sentence"`
	SourceURL string `json:"source_url"`
}

// LinkRecord is the audit entry written for every attempted fetch.
// ParentURL is empty for the seed. Status is -1 when the page could not be
// fetched and SizeBytes is -1 when the length is unknown.
type LinkRecord struct {
	URL         string        `json:"url"`
	ParentURL   string        `json:"parent_url,omitempty"`
	Depth       int           `json:"depth"`
	Status      int           `json:"status"`
	SizeBytes   int64         `json:"size_bytes"`
	ContentType string        `json:"content_type,omitempty"`
	Error       string        `json:"error,omitempty"`
	FetchedAt   time.Time     `json:"fetched_at"`
	Duration    time.Duration `json:"duration_ns"`
}

// Failed reports whether the page body could not be retrieved.
func (r LinkRecord) Failed() bool {
	return r.Error != "" || r.Status == unknownStatus
}

// PageMeta carries the response metadata used for the crawl log.
type PageMeta struct {
	StatusCode    int
	ContentLength int64
	ContentType   string
}

// Page is a fetched document.
type Page struct {
	PageMeta
	URL      string
	FinalURL string
	Body     []byte
}

// BaseURL is the URL relative links on the page resolve against.
func (p Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// Extraction is the result of analysing a page body.
type Extraction struct {
	// Sentences holds the topic-matching sentences in document order.
	Sentences []string
	// Links holds absolute anchor targets in document order, de-duplicated.
	Links []string
}

// Stats is a point-in-time view of a run.
type Stats struct {
	Claimed             int `json:"claimed"`
	Visited             int `json:"visited"`
	InFlight            int `json:"in_flight"`
	Records             int `json:"records"`
	RejectedSubmissions int `json:"rejected_submissions"`
}
