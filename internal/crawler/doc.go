// Package crawler implements the crawl orchestration engine: URL
// canonicalization, the same-site link policy, the admission-controlled
// frontier, the bounded worker pool, the per-page crawl task and the crawl log.
package crawler
