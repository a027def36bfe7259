package perftests

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	bidding "auction-server/internal/biddingService"
	"auction-server/internal/models"
	"auction-server/internal/repository"
)

const benchBalance = int64(1 << 40)

// setupStores opens file-backed stores in a temp dir and returns a service
// without withdraw cooldown.
func setupStores(b *testing.B) (*repository.UserStore, *repository.ItemStore, *bidding.BiddingService) {
	b.Helper()
	dir := b.TempDir()

	users, err := repository.OpenUserStore(filepath.Join(dir, "users.dat"), bcrypt.MinCost)
	if err != nil {
		b.Fatalf("open users: %v", err)
	}
	items, err := repository.OpenItemStore(filepath.Join(dir, "items.dat"), 10)
	if err != nil {
		b.Fatalf("open items: %v", err)
	}
	b.Cleanup(func() {
		_ = users.Close()
		_ = items.Close()
	})

	svc := bidding.NewBiddingService(items, users, nil, bidding.Options{})
	return users, items, svc
}

func seedUsers(b *testing.B, users *repository.UserStore, n int) []int64 {
	b.Helper()
	ids := make([]int64, n)
	for i := range ids {
		id, err := users.Register(fmt.Sprintf("user_%d", i), "pw", models.RoleUser, benchBalance, "a")
		if err != nil {
			b.Fatalf("register: %v", err)
		}
		ids[i] = id
	}
	return ids
}

func seedItems(b *testing.B, svc *bidding.BiddingService, sellerID int64, n int) []int64 {
	b.Helper()
	ids := make([]int64, n)
	for i := range ids {
		id, err := svc.CreateItem(sellerID, bidding.NewItem{
			Name:        fmt.Sprintf("item_%d", i),
			Description: "benchmark item",
			BasePrice:   50,
			Duration:    time.Hour,
		})
		if err != nil {
			b.Fatalf("create item: %v", err)
		}
		ids[i] = id
	}
	return ids
}

// Benchmark 1: PlaceBid - Isolated Items (Low Contention - Micro Benchmark)
func Benchmark_PlaceBid_Isolated(b *testing.B) {
	users, _, svc := setupStores(b)
	ids := seedUsers(b, users, 2)
	itemIDs := seedItems(b, svc, ids[0], b.N)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		bidAmount := int64(51 + rand.Intn(100))
		if _, err := svc.PlaceBid(itemIDs[i], ids[1], bidAmount); err != nil {
			b.Fatalf("failed to place bid: %v", err)
		}
	}
}

// Benchmark 2: PlaceBid - Shared Item (High Contention - Concurrency Benchmark)
func Benchmark_PlaceBid_ConcurrentSharedItem(b *testing.B) {
	users, _, svc := setupStores(b)
	ids := seedUsers(b, users, 33)
	itemID := seedItems(b, svc, ids[0], 1)[0]
	bidders := ids[1:]

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = 50

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			bidder := bidders[rnd.Intn(len(bidders))]
			nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
			_, _ = svc.PlaceBid(itemID, bidder, nextBid)
		}
	})
}

// Benchmark 3: WithdrawBid with a full history to cascade through
func Benchmark_WithdrawBid_Cascade(b *testing.B) {
	users, _, svc := setupStores(b)
	ids := seedUsers(b, users, 11)
	itemIDs := seedItems(b, svc, ids[0], b.N)

	for i := 0; i < b.N; i++ {
		for j, bidder := range ids[1:] {
			if _, err := svc.PlaceBid(itemIDs[i], bidder, int64(60+j*10)); err != nil {
				b.Fatalf("seed bid: %v", err)
			}
		}
	}
	top := ids[len(ids)-1]

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := svc.WithdrawBid(itemIDs[i], top); err != nil {
			b.Fatalf("withdraw: %v", err)
		}
	}
}

// Benchmark 4: ListItems under concurrent readers
func Benchmark_ListItems_Concurrent(b *testing.B) {
	users, _, svc := setupStores(b)
	ids := seedUsers(b, users, 1)
	seedItems(b, svc, ids[0], 100)

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := svc.ListItems(100); err != nil {
				b.Errorf("list: %v", err)
			}
		}
	})
}

// Benchmark 5: Transfer between random pairs, both directions
func Benchmark_Transfer_Concurrent(b *testing.B) {
	users, _, _ := setupStores(b)
	ids := seedUsers(b, users, 16)

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			from, to := ids[rnd.Intn(len(ids))], ids[rnd.Intn(len(ids))]
			if from == to {
				continue
			}
			if err := users.Transfer(from, to, 1); err != nil {
				b.Errorf("transfer: %v", err)
			}
		}
	})
}
