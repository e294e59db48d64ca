package crawler

import (
	"net/url"
	"path"
	"strings"
)

// Canonicalize standardizes a URL so it can be used both as the dedup key and
// as the displayed form of a page.
//
// It lowercases the scheme and host, defaults the scheme to http, removes the
// default port, cleans the path (resolving dot segments and collapsing
// repeated slashes), strips a trailing slash unless the path is the root, and
// drops the fragment. The query string, user info and non-default ports are
// kept as-is.
//
// Canonicalize never fails: input that cannot be parsed is returned with
// everything from the first '#' removed.
func Canonicalize(raw string) string {
	stripped := stripFragment(raw)
	u, err := url.Parse(raw)
	if err != nil {
		u, err = url.Parse(stripped)
		if err != nil {
			return stripped
		}
	}
	if u.Scheme == "" && u.Host == "" && !strings.HasPrefix(stripped, "/") {
		// "example.com/a" has no authority; treat it as a host-relative
		// reference with the default scheme.
		withScheme, perr := url.Parse("http://" + stripped)
		if perr != nil {
			return stripped
		}
		u = withScheme
	}
	return canonicalString(u)
}

func canonicalString(u *url.URL) string {
	u.Fragment = ""
	u.RawFragment = ""

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme == "" {
		u.Scheme = "http"
	}
	if u.Opaque != "" {
		return u.String()
	}

	u.Host = strings.ToLower(u.Host)
	switch u.Scheme {
	case "http":
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case "https":
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Path = cleanPath(u.Path)
	u.RawPath = ""
	return u.String()
}

// cleanPath applies path.Clean, which also takes care of the single trailing
// slash: "/a/" becomes "/a" while "/" stays "/".
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return "/"
	}
	return cleaned
}

func stripFragment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// hostKey returns the lowercase host with a leading "www." removed so that
// www and non-www hosts compare equal.
func hostKey(host string) string {
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}
