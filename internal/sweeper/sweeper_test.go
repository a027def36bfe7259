package sweeper

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	bidding "auction-server/internal/biddingService"
	"auction-server/internal/models"
	"auction-server/internal/repository"
)

type fakeCloser struct {
	mu      sync.Mutex
	due     []int64
	dueErr  error
	failing map[int64]bool
	closed  []int64
	sweeps  int
}

func (f *fakeCloser) DueAuctions() ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return append([]int64(nil), f.due...), f.dueErr
}

func (f *fakeCloser) ExpireAuction(itemID int64) (models.CloseResult, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[itemID] {
		return "", false, errors.New("write failed")
	}
	for _, id := range f.closed {
		if id == itemID {
			return "", false, nil
		}
	}
	f.closed = append(f.closed, itemID)
	return models.CloseSold, true, nil
}

func (f *fakeCloser) sweepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

func TestSweepOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		closer   *fakeCloser
		expected int
		closed   []int64
	}{
		{name: "nothing_due", closer: &fakeCloser{}, expected: 0},
		{name: "all_due_closed", closer: &fakeCloser{due: []int64{1, 3}}, expected: 2, closed: []int64{1, 3}},
		{
			name:     "failure_does_not_stop_the_rest",
			closer:   &fakeCloser{due: []int64{1, 2, 3}, failing: map[int64]bool{2: true}},
			expected: 2,
			closed:   []int64{1, 3},
		},
		{
			name:     "partial_scan_still_closes",
			closer:   &fakeCloser{due: []int64{4}, dueErr: errors.New("read item 5: corrupt record")},
			expected: 1,
			closed:   []int64{4},
		},
		{
			name:     "already_closed_not_counted",
			closer:   &fakeCloser{due: []int64{7}, closed: []int64{7}},
			expected: 0,
			closed:   []int64{7},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := New(tc.closer, time.Second)
			require.Equal(t, tc.expected, s.SweepOnce())
			require.Equal(t, tc.closed, tc.closer.closed)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	closer := &fakeCloser{}
	s := New(closer, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return closer.sweepCount() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

// Tests the sweeper against real stores: an expired item is paid out once
func TestSweeperClosesExpiredAuction(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	users, err := repository.OpenUserStore(filepath.Join(dir, "users.dat"), bcrypt.MinCost)
	require.NoError(t, err)
	items, err := repository.OpenItemStore(filepath.Join(dir, "items.dat"), 4)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = users.Close()
		_ = items.Close()
	})

	seller, err := users.Register("seller", "pw", models.RoleUser, 0, "a")
	require.NoError(t, err)
	buyer, err := users.Register("buyer", "pw", models.RoleUser, 100, "a")
	require.NoError(t, err)

	svc := bidding.NewBiddingService(items, users, nil, bidding.DefaultOptions())
	itemID, err := svc.CreateItem(seller, bidding.NewItem{Name: "Clock", BasePrice: 10, Duration: 2 * time.Second})
	require.NoError(t, err)
	_, err = svc.PlaceBid(itemID, buyer, 60)
	require.NoError(t, err)

	s := New(svc, time.Millisecond)
	require.Zero(t, s.SweepOnce())

	require.Eventually(t, func() bool { return s.SweepOnce() == 1 }, 5*time.Second, 50*time.Millisecond)
	require.Zero(t, s.SweepOnce())

	balance, err := users.GetBalance(seller)
	require.NoError(t, err)
	require.Equal(t, int64(60), balance)

	item, err := items.Get(itemID)
	require.NoError(t, err)
	require.Equal(t, models.ItemSold, item.Status)
}
