package crawler

import (
	"net/url"
	"strings"
)

// staticExtensions lists path suffixes that never lead to crawlable pages.
var staticExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".ico",
	".css", ".js",
	".pdf",
	".zip", ".gz", ".tar", ".rar", ".7z",
	".mp3", ".mp4", ".avi", ".mov",
}

// LinkPolicy decides which discovered links are worth following. It only
// admits http(s) pages on the seed's site.
type LinkPolicy struct {
	seedHost string
}

// NewLinkPolicy builds a policy scoped to the seed's host. A seed that does
// not parse yields a policy that rejects everything.
func NewLinkPolicy(seedURL string) LinkPolicy {
	u, err := url.Parse(strings.TrimSpace(seedURL))
	if err != nil {
		return LinkPolicy{}
	}
	return LinkPolicy{seedHost: hostKey(u.Hostname())}
}

// IsEligible reports whether candidate may be followed from a crawl rooted at seed.
func IsEligible(candidate, seed string) bool {
	return NewLinkPolicy(seed).Allows(candidate)
}

// Allows reports whether candidate may be followed.
func (p LinkPolicy) Allows(candidate string) bool {
	if p.seedHost == "" {
		return false
	}
	t := strings.TrimSpace(candidate)
	if t == "" {
		return false
	}
	lower := strings.ToLower(t)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
		return false
	}

	u, err := url.Parse(t)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "http"
	}
	if scheme != "http" && scheme != "https" {
		return false
	}
	if hostKey(u.Hostname()) != p.seedHost {
		return false
	}
	return !hasStaticExtension(u.Path)
}

func hasStaticExtension(p string) bool {
	p = strings.ToLower(p)
	for _, ext := range staticExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
