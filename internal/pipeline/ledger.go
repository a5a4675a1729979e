package pipeline

import (
	"sort"
	"sync"
	"time"

	"dispatchscan/internal/dispatch"
)

// LedgerCapacity is the number of recent scans kept in memory.
const LedgerCapacity = 20

// Ledger keeps the most recent successful scans, newest first, plus a counter
// of scans recorded on the current local day.
type Ledger struct {
	mu       sync.Mutex
	capacity int
	records  []dispatch.ScanRecord
	today    int
	day      string
	now      func() time.Time
}

// NewLedger returns an empty ledger. A capacity <= 0 uses LedgerCapacity and a
// nil clock uses time.Now.
func NewLedger(capacity int, now func() time.Time) *Ledger {
	if capacity <= 0 {
		capacity = LedgerCapacity
	}
	if now == nil {
		now = time.Now
	}
	l := &Ledger{capacity: capacity, now: now}
	l.day = l.dayKey()
	return l
}

func (l *Ledger) dayKey() string {
	return l.now().Local().Format("2006-01-02")
}

// rollover resets the counter when the local date has changed. Callers hold mu.
func (l *Ledger) rollover() {
	if key := l.dayKey(); key != l.day {
		l.day = key
		l.today = 0
	}
}

// Append records a successful scan, evicting the oldest beyond capacity.
func (l *Ledger) Append(record dispatch.ScanRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	next := make([]dispatch.ScanRecord, 0, l.capacity)
	next = append(next, record)
	next = append(next, l.records...)
	if len(next) > l.capacity {
		next = next[:l.capacity]
	}
	l.records = next
	l.today++
}

// Seed replaces the ledger with bootstrap data from the backend.
func (l *Ledger) Seed(records []dispatch.ScanRecord, todayCount int) {
	sorted := append([]dispatch.ScanRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ScannedAt.After(sorted[j].ScannedAt)
	})
	if len(sorted) > l.capacity {
		sorted = sorted[:l.capacity]
	}
	if todayCount < 0 {
		todayCount = 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.day = l.dayKey()
	l.records = sorted
	l.today = todayCount
}

// Records returns a copy of the ledger, newest first.
func (l *Ledger) Records() []dispatch.ScanRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]dispatch.ScanRecord(nil), l.records...)
}

// Len returns the number of records held.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// TodayCount returns the number of scans recorded today.
func (l *Ledger) TodayCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return l.today
}
