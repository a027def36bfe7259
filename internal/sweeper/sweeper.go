// Package sweeper closes auctions whose end time has passed.
package sweeper

import (
	"context"
	"time"

	"auction-server/internal/models"
	"auction-server/utils"
)

// Closer is the slice of the bidding service the sweeper drives.
type Closer interface {
	DueAuctions() ([]int64, error)
	ExpireAuction(itemID int64) (models.CloseResult, bool, error)
}

type Sweeper struct {
	closer   Closer
	interval time.Duration
}

func New(closer Closer, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sweeper{closer: closer, interval: interval}
}

// Run sweeps once immediately and then every interval until ctx is done.
// A sweep in progress always finishes.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	utils.Info("Expiry sweeper started", map[string]any{"interval": s.interval.String()})
	s.SweepOnce()
	for {
		select {
		case <-ctx.Done():
			utils.Info("Expiry sweeper stopped", nil)
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce closes every auction that is due and returns how many it closed.
// One failing item does not stop the rest.
func (s *Sweeper) SweepOnce() int {
	due, err := s.closer.DueAuctions()
	if err != nil {
		utils.Error("Failed to scan for expired auctions", map[string]any{"error": err.Error()})
		// ids gathered before the failure are still worth closing
	}

	closed := 0
	for _, id := range due {
		result, ok, err := s.closer.ExpireAuction(id)
		if err != nil {
			utils.Error("Failed to close expired auction", map[string]any{
				"item_id": id,
				"error":   err.Error(),
			})
			continue
		}
		if !ok {
			continue
		}
		closed++
		utils.Info("Auction expired", map[string]any{
			"item_id": id,
			"result":  string(result),
		})
	}
	return closed
}
