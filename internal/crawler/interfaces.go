package crawler

import (
	"context"
)

// Fetcher retrieves pages. Implementations apply their own per-request
// timeout and follow redirects.
type Fetcher interface {
	// Fetch issues a GET and returns the body plus metadata. Non-2xx responses
	// are returned as pages, not errors.
	Fetch(ctx context.Context, rawURL string) (Page, error)
	// Head issues a metadata-only request asking for an uncompressed length.
	Head(ctx context.Context, rawURL string) (PageMeta, error)
}

// Extractor finds topic sentences and outbound anchors in a page.
type Extractor interface {
	Extract(page Page, topic string) (Extraction, error)
}
