// Package recordlock provides blocking shared/exclusive locks over byte
// ranges of a single resource, such as one record in a fixed-length file.
package recordlock

import (
	"math"
	"sync"
)

type Mode int

const (
	Shared Mode = iota
	Exclusive
)

func (m Mode) String() string {
	if m == Exclusive {
		return "exclusive"
	}
	return "shared"
}

// Range is a byte range of the resource. Length 0 extends to the end of the
// resource, so Range{} covers the whole file.
type Range struct {
	Offset int64
	Length int64
}

// Whole returns the range covering the entire resource.
func Whole() Range {
	return Range{}
}

// Record returns the range of the fixed-length record id (1-based).
func Record(id, recordSize int64) Range {
	return Range{Offset: (id - 1) * recordSize, Length: recordSize}
}

func (r Range) end() int64 {
	if r.Length == 0 {
		return math.MaxInt64
	}
	return r.Offset + r.Length
}

// Overlaps reports whether r and o share at least one byte.
func (r Range) Overlaps(o Range) bool {
	return r.Offset < o.end() && o.Offset < r.end()
}

// Lock is a granted lock. It must be released exactly once.
type Lock struct {
	table *Table
	mode  Mode
	rng   Range
}

func (l *Lock) Mode() Mode   { return l.mode }
func (l *Lock) Range() Range { return l.rng }

// Release drops the lock and wakes any waiters.
func (l *Lock) Release() {
	l.table.release(l)
}

// Table is the lock table of one resource. The zero value is not usable; use
// NewTable.
type Table struct {
	mu   sync.Mutex
	cond *sync.Cond
	held map[*Lock]struct{}
}

func NewTable() *Table {
	t := &Table{held: make(map[*Lock]struct{})}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Acquire blocks until a lock of the given mode over rng can be granted.
// Shared locks coexist with each other; an exclusive lock excludes every
// overlapping holder. There is no timeout and no fairness guarantee.
func (t *Table) Acquire(mode Mode, rng Range) *Lock {
	t.mu.Lock()
	defer t.mu.Unlock()

	for !t.canGrant(mode, rng) {
		t.cond.Wait()
	}

	l := &Lock{table: t, mode: mode, rng: rng}
	t.held[l] = struct{}{}
	return l
}

// TryAcquire grants the lock only if that is possible without waiting.
func (t *Table) TryAcquire(mode Mode, rng Range) (*Lock, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.canGrant(mode, rng) {
		return nil, false
	}
	l := &Lock{table: t, mode: mode, rng: rng}
	t.held[l] = struct{}{}
	return l, true
}

// Held returns the number of locks currently granted.
func (t *Table) Held() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.held)
}

func (t *Table) canGrant(mode Mode, rng Range) bool {
	for h := range t.held {
		if !h.rng.Overlaps(rng) {
			continue
		}
		if mode == Exclusive || h.mode == Exclusive {
			return false
		}
	}
	return true
}

func (t *Table) release(l *Lock) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.held[l]; !ok {
		panic("recordlock: release of a lock that is not held")
	}
	delete(t.held, l)
	t.cond.Broadcast()
}
