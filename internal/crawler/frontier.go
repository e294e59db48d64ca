package crawler

import "sync"

// Frontier is the admission controller for a run. It owns the visited set and
// the claim counter; both are only touched while holding mu.
//
// Admission is optimistic: a URL is inserted and counted first, and the claim
// is rolled back if that pushed the counter past the budget. The whole
// sequence runs in one critical section so concurrent claims can never admit
// more than maxPages URLs or the same URL twice.
type Frontier struct {
	mu       sync.Mutex
	visited  map[string]struct{}
	claimed  int
	maxDepth int
	maxPages int
}

// NewFrontier returns an empty frontier for the given limits.
func NewFrontier(maxDepth, maxPages int) *Frontier {
	return &Frontier{
		visited:  make(map[string]struct{}),
		maxDepth: maxDepth,
		maxPages: maxPages,
	}
}

// Seed marks the seed URL visited and returns its canonical form. Unless
// counted is set the seed does not use up the budget, so a run can fetch
// maxPages+1 pages.
func (f *Frontier) Seed(rawURL string, counted bool) string {
	canonical := Canonicalize(rawURL)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, seen := f.visited[canonical]; seen {
		return canonical
	}
	f.visited[canonical] = struct{}{}
	if counted {
		f.claimed++
	}
	return canonical
}

// Claim reserves rawURL at depth against the budget. It returns the canonical
// URL, the claim count after a successful reservation, and whether the claim
// was accepted. Rejections (too deep, duplicate, over budget) have no side
// effects.
func (f *Frontier) Claim(rawURL string, depth int) (string, int, bool) {
	if depth > f.maxDepth {
		return "", 0, false
	}
	canonical := Canonicalize(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, seen := f.visited[canonical]; seen {
		return canonical, f.claimed, false
	}
	f.visited[canonical] = struct{}{}
	f.claimed++
	if f.claimed > f.maxPages {
		delete(f.visited, canonical)
		f.claimed--
		return canonical, f.claimed, false
	}
	return canonical, f.claimed, true
}

// Release undoes an accepted claim whose task could not be scheduled.
func (f *Frontier) Release(canonical string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[canonical]; !ok {
		return
	}
	delete(f.visited, canonical)
	if f.claimed > 0 {
		f.claimed--
	}
}

// Stats returns the current claim count and visited-set size.
func (f *Frontier) Stats() (claimed, visited int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claimed, len(f.visited)
}
