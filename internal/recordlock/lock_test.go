package recordlock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeOverlaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Range
		want bool
	}{
		{name: "same_record", a: Record(1, 64), b: Record(1, 64), want: true},
		{name: "adjacent_records", a: Record(1, 64), b: Record(2, 64), want: false},
		{name: "whole_vs_record", a: Whole(), b: Record(40, 64), want: true},
		{name: "whole_vs_whole", a: Whole(), b: Whole(), want: true},
		{name: "open_ended_tail", a: Range{Offset: 128}, b: Record(2, 64), want: false},
		{name: "open_ended_tail_hits", a: Range{Offset: 128}, b: Record(3, 64), want: true},
		{name: "partial", a: Range{Offset: 10, Length: 20}, b: Range{Offset: 29, Length: 5}, want: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, tc.a.Overlaps(tc.b))
			require.Equal(t, tc.want, tc.b.Overlaps(tc.a))
		})
	}
}

func TestGrantRules(t *testing.T) {
	t.Parallel()

	tbl := NewTable()

	s1 := tbl.Acquire(Shared, Record(1, 32))
	s2, ok := tbl.TryAcquire(Shared, Record(1, 32))
	require.True(t, ok, "shared locks coexist")

	_, ok = tbl.TryAcquire(Exclusive, Record(1, 32))
	require.False(t, ok, "exclusive waits for shared holders")

	other, ok := tbl.TryAcquire(Exclusive, Record(2, 32))
	require.True(t, ok, "unrelated records proceed")

	_, ok = tbl.TryAcquire(Shared, Whole())
	require.False(t, ok, "whole-file lock overlaps the exclusive record")

	require.Equal(t, 3, tbl.Held())
	s1.Release()
	s2.Release()
	other.Release()
	require.Equal(t, 0, tbl.Held())

	w, ok := tbl.TryAcquire(Exclusive, Whole())
	require.True(t, ok)
	require.Equal(t, Exclusive, w.Mode())
	w.Release()
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	held := tbl.Acquire(Exclusive, Record(3, 16))

	acquired := make(chan struct{})
	go func() {
		l := tbl.Acquire(Shared, Record(3, 16))
		close(acquired)
		l.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("shared lock granted while exclusive was held")
	case <-time.After(50 * time.Millisecond):
	}

	held.Release()
	require.Eventually(t, func() bool {
		select {
		case <-acquired:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestExclusiveSerializesWriters(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	var inside int32
	var counter int
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := tbl.Acquire(Exclusive, Record(1, 8))
			defer l.Release()
			assert.Equal(t, int32(1), atomic.AddInt32(&inside, 1))
			counter++
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
	require.Equal(t, 0, tbl.Held())
}

func TestDoubleReleasePanics(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	l := tbl.Acquire(Shared, Whole())
	l.Release()
	require.Panics(t, func() { l.Release() })
}
