package crawler

import "sync"

// CrawlLog is the append-only audit trail of a run, kept in completion order.
type CrawlLog struct {
	mu      sync.RWMutex
	records []LinkRecord
}

// NewCrawlLog returns an empty log.
func NewCrawlLog() *CrawlLog {
	return &CrawlLog{}
}

// Append adds a record.
func (l *CrawlLog) Append(record LinkRecord) {
	l.mu.Lock()
	l.records = append(l.records, record)
	l.mu.Unlock()
}

// Snapshot returns a copy of the records appended so far.
func (l *CrawlLog) Snapshot() []LinkRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]LinkRecord(nil), l.records...)
}

// Len returns the number of records.
func (l *CrawlLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
