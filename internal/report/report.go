// Package report keeps the per-cycle operator counters and a bounded
// log of recent pipeline activity. Everything here is goroutine-safe;
// the engines write while the dashboard and stats command read.
package report

import (
	"fmt"
	"sync"
	"time"
)

// Counters accumulates pipeline outcomes since process start. Values
// only grow; a cycle that fails outright contributes only to FailedCalls.
type Counters struct {
	Clustered   int // records placed into validated clusters
	Orphaned    int // records left unclustered or failed validation
	Recycled    int // records returned to the pool by the min-size rule
	Absorbed    int // records added to existing incidents by key match
	Created     int // new incidents opened
	Merged      int // incidents retired into a surviving sibling
	Split       int // incidents partitioned into children
	Assigned    int // orphans placed by the cross-batch assigner
	FailedCalls int // classification calls that errored or parsed dirty
}

// Add folds one cycle's outcome into the running totals.
func (c *Counters) Add(other Counters) {
	c.Clustered += other.Clustered
	c.Orphaned += other.Orphaned
	c.Recycled += other.Recycled
	c.Absorbed += other.Absorbed
	c.Created += other.Created
	c.Merged += other.Merged
	c.Split += other.Split
	c.Assigned += other.Assigned
	c.FailedCalls += other.FailedCalls
}

// Entry is one line of pipeline activity shown to operators.
type Entry struct {
	At      time.Time
	Source  string // which pass produced it
	Message string
}

// Board is the shared operator view: running counters plus a fixed-size
// ring of recent activity, newest first on read.
type Board struct {
	mu       sync.RWMutex
	counters Counters
	ring     []Entry
	next     int
	filled   bool
}

const ringSize = 128

// NewBoard returns an empty Board.
func NewBoard() *Board {
	return &Board{ring: make([]Entry, ringSize)}
}

// Record folds a cycle outcome into the totals.
func (b *Board) Record(c Counters) {
	b.mu.Lock()
	b.counters.Add(c)
	b.mu.Unlock()
}

// Counters returns a snapshot of the running totals.
func (b *Board) Counters() Counters {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counters
}

// Logf appends one formatted activity line, evicting the oldest when
// the ring is full.
func (b *Board) Logf(source, format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ring[b.next] = Entry{At: time.Now(), Source: source, Message: fmt.Sprintf(format, args...)}
	b.next = (b.next + 1) % ringSize
	if b.next == 0 {
		b.filled = true
	}
}

// Recent returns up to n activity entries, newest first.
func (b *Board) Recent(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	size := b.next
	if b.filled {
		size = ringSize
	}
	if n > size {
		n = size
	}

	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (b.next - i + ringSize) % ringSize
		out = append(out, b.ring[idx])
	}
	return out
}
