package bidding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"auction-server/internal/auctionerrors"
	"auction-server/internal/events"
	"auction-server/internal/models"
	"auction-server/internal/repository"
	"auction-server/utils"
)

const (
	maxNameLen        = repository.ItemNameWidth - 1
	maxDescriptionLen = repository.DescriptionWidth - 1

	// MaxDuration is the longest auction CreateItem accepts.
	MaxDuration = 365 * 24 * time.Hour

	// NoWinnerName is the display name of an item nobody has bid on.
	NoWinnerName = "None"

	CloseReasonManual  = "manual"
	CloseReasonExpired = "expired"
)

// Options bounds the result sets and sets the withdraw penalty.
type Options struct {
	ListLimit        int
	MyBidsLimit      int
	HistoryLimit     int
	WithdrawCooldown time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		ListLimit:        100,
		MyBidsLimit:      50,
		HistoryLimit:     50,
		WithdrawCooldown: 60 * time.Second,
	}
}

// NewItem is the input to CreateItem.
type NewItem struct {
	Name        string
	Description string
	BasePrice   int64
	Duration    time.Duration
}

// BiddingService defines the business logic for auction bidding. Funds move
// through escrow: a bid is deducted from the bidder when placed, refunded
// when outbid or withdrawn, and paid to the seller on close.
//
// Lock order is item record, then user record(s). No method takes an item
// lock while holding a user lock, and none holds two item locks.
type BiddingService struct {
	items  repository.AuctionDB
	users  repository.UserDB
	events events.Emitter
	opts   Options
	now    func() time.Time
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(items repository.AuctionDB, users repository.UserDB, emitter events.Emitter, opts Options) *BiddingService {
	if emitter == nil {
		emitter = events.Nop()
	}
	defaults := DefaultOptions()
	if opts.ListLimit < 1 {
		opts.ListLimit = defaults.ListLimit
	}
	if opts.MyBidsLimit < 1 {
		opts.MyBidsLimit = defaults.MyBidsLimit
	}
	if opts.HistoryLimit < 1 {
		opts.HistoryLimit = defaults.HistoryLimit
	}
	if opts.WithdrawCooldown < 0 {
		opts.WithdrawCooldown = 0
	}
	return &BiddingService{
		items:  items,
		users:  users,
		events: emitter,
		opts:   opts,
		now:    time.Now,
	}
}

// CreateItem lists a new ACTIVE item for sellerID.
func (s *BiddingService) CreateItem(sellerID int64, in NewItem) (int64, error) {
	if err := validateNewItem(in); err != nil {
		return 0, err
	}
	if _, err := s.users.GetUser(sellerID); err != nil {
		return 0, fmt.Errorf("service: create item for seller %d: %w", sellerID, err)
	}

	item := models.Item{
		Name:        in.Name,
		Description: in.Description,
		SellerID:    sellerID,
		WinnerID:    models.NoWinner,
		BasePrice:   in.BasePrice,
		CurrentBid:  in.BasePrice,
		EndTime:     s.now().Add(in.Duration).Unix(),
		Status:      models.ItemActive,
	}

	id, err := s.items.Create(item)
	if err != nil {
		return 0, fmt.Errorf("service: failed to create item %q: %w", in.Name, err)
	}

	s.events.Emit(context.Background(), events.ItemCreatedEvent{
		ItemID:    id,
		SellerID:  sellerID,
		Name:      in.Name,
		BasePrice: in.BasePrice,
		EndTime:   item.EndTime,
	})
	return id, nil
}

func validateNewItem(in NewItem) error {
	switch {
	case in.Name == "" || len(in.Name) > maxNameLen:
		return fmt.Errorf("service: %w - name must be 1..%d bytes", auctionerrors.ErrInvalidInput, maxNameLen)
	case len(in.Description) > maxDescriptionLen:
		return fmt.Errorf("service: %w - description longer than %d bytes", auctionerrors.ErrInvalidInput, maxDescriptionLen)
	case hasControl(in.Name) || hasControl(in.Description):
		return fmt.Errorf("service: %w - control characters in name or description", auctionerrors.ErrInvalidInput)
	case in.BasePrice <= 0 || in.BasePrice > models.MaxAmount:
		return fmt.Errorf("service: %w - base price must be 1..%d", auctionerrors.ErrInvalidInput, models.MaxAmount)
	case in.Duration < time.Second || in.Duration > MaxDuration:
		return fmt.Errorf("service: %w - duration must be between one second and %s", auctionerrors.ErrInvalidInput, MaxDuration)
	}
	return nil
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

// ListItems returns up to limit items in id order. A limit outside
// 1..ListLimit is clamped to ListLimit.
func (s *BiddingService) ListItems(limit int) ([]models.DisplayItem, error) {
	if limit < 1 || limit > s.opts.ListLimit {
		limit = s.opts.ListLimit
	}
	items, err := s.items.List(limit)
	if err != nil {
		return nil, fmt.Errorf("service: list items: %w", err)
	}

	// names are resolved after the item scan has released its lock
	now := s.now()
	out := make([]models.DisplayItem, 0, len(items))
	for i := range items {
		out = append(out, s.display(&items[i], now))
	}
	return out, nil
}

// PlaceBid escrows amount from bidderID and makes them the item's winner,
// refunding the previous winner.
//
// The new amount is deducted before the previous winner is refunded, even
// when that winner is bidderID raising their own bid. A raise therefore
// needs the full new amount in the balance, not just the difference.
func (s *BiddingService) PlaceBid(itemID, bidderID, amount int64) (models.Item, error) {
	if amount <= 0 || amount > models.MaxAmount {
		return models.Item{}, fmt.Errorf("service: %w - bid must be 1..%d", auctionerrors.ErrInvalidInput, models.MaxAmount)
	}

	tx := events.NewTransactionalBus(s.events)
	var result models.Item

	err := s.items.Update(itemID, func(item *models.Item, save func() error) error {
		if item.SellerID == bidderID {
			return auctionerrors.ErrSelfBid
		}
		if !item.IsOpen(s.now()) {
			return auctionerrors.ErrAuctionEnded
		}
		if amount <= item.CurrentBid {
			return fmt.Errorf("%w - current bid is %d", auctionerrors.ErrBidTooLow, item.CurrentBid)
		}
		remaining, err := s.users.GetCooldown(bidderID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return fmt.Errorf("%w - %d seconds remaining", auctionerrors.ErrCooldownActive, remaining)
		}

		// escrow the new bid before touching anything else
		if err := s.users.UpdateBalance(bidderID, -amount); err != nil {
			return err
		}

		prevWinner, prevBid := item.WinnerID, item.CurrentBid
		if prevWinner != models.NoWinner {
			if err := s.users.UpdateBalance(prevWinner, prevBid); err != nil {
				s.credit(bidderID, amount, "undo escrow after failed refund")
				return err
			}
		}

		item.RecordBid(bidderID, amount, s.items.HistoryCapacity())
		item.WinnerID = bidderID
		item.CurrentBid = amount
		if err := save(); err != nil {
			if prevWinner != models.NoWinner {
				s.debit(prevWinner, prevBid, "re-escrow after failed item write")
			}
			s.credit(bidderID, amount, "undo escrow after failed item write")
			return err
		}

		tx.Publish(events.BidPlacedEvent{
			ItemID:           itemID,
			BidderID:         bidderID,
			Amount:           amount,
			PreviousWinnerID: prevWinner,
			Refunded:         refunded(prevWinner, prevBid),
		})
		result = *item
		return nil
	})
	if err != nil {
		tx.Discard()
		return models.Item{}, fmt.Errorf("service: failed to place bid on item %d by user %d: %w", itemID, bidderID, err)
	}

	tx.Flush(context.Background())
	return result, nil
}

// WithdrawBid lets the current winner pull out. Their escrow is refunded and
// the next highest bidder who can still cover their bid becomes the winner.
func (s *BiddingService) WithdrawBid(itemID, bidderID int64) (models.Item, error) {
	tx := events.NewTransactionalBus(s.events)
	var result models.Item

	err := s.items.Update(itemID, func(item *models.Item, save func() error) error {
		if !item.IsOpen(s.now()) {
			return auctionerrors.ErrNotActive
		}
		if item.WinnerID != bidderID {
			return auctionerrors.ErrNotHighestBidder
		}

		withdrawn := item.CurrentBid
		if err := s.users.UpdateBalance(bidderID, withdrawn); err != nil {
			return err
		}
		item.ClearBid(bidderID)

		newWinner := s.cascade(item)

		if err := save(); err != nil {
			if newWinner != models.NoWinner {
				s.credit(newWinner, item.CurrentBid, "undo re-escrow after failed item write")
			}
			s.debit(bidderID, withdrawn, "re-escrow withdrawn bid after failed item write")
			return err
		}

		tx.Publish(events.BidWithdrawnEvent{
			ItemID:        itemID,
			BidderID:      bidderID,
			Refunded:      withdrawn,
			NewWinnerID:   item.WinnerID,
			NewCurrentBid: item.CurrentBid,
		})
		result = *item
		return nil
	})
	if err != nil {
		tx.Discard()
		return models.Item{}, fmt.Errorf("service: failed to withdraw bid on item %d by user %d: %w", itemID, bidderID, err)
	}

	if cooldown := int64(s.opts.WithdrawCooldown / time.Second); cooldown > 0 {
		if err := s.users.SetCooldown(bidderID, cooldown); err != nil {
			utils.Warn("Failed to set bidding cooldown", map[string]any{
				"user_id": bidderID,
				"error":   err.Error(),
			})
		}
	}

	tx.Flush(context.Background())
	return result, nil
}

// cascade hands the item to the highest remaining bidder that can re-escrow
// their last bid. Bidders that cannot are dropped from the history. It
// returns the new winner or NoWinner.
func (s *BiddingService) cascade(item *models.Item) int64 {
	for {
		next, ok := item.HighestBid()
		if !ok {
			item.WinnerID = models.NoWinner
			item.CurrentBid = item.BasePrice
			return models.NoWinner
		}
		err := s.users.UpdateBalance(next.BidderID, -next.Amount)
		if err == nil {
			item.WinnerID = next.BidderID
			item.CurrentBid = next.Amount
			return next.BidderID
		}
		if !errors.Is(err, auctionerrors.ErrInsufficientFunds) {
			utils.Warn("Skipping bidder during escrow cascade", map[string]any{
				"item_id":   item.ID,
				"bidder_id": next.BidderID,
				"error":     err.Error(),
			})
		}
		item.ClearBid(next.BidderID)
	}
}

// CloseAuction is the seller ending their auction. The winner's escrow goes
// to the seller.
func (s *BiddingService) CloseAuction(itemID, sellerID int64) (models.CloseResult, error) {
	var result models.CloseResult
	var closed events.AuctionClosedEvent

	err := s.items.Update(itemID, func(item *models.Item, save func() error) error {
		if item.SellerID != sellerID {
			return auctionerrors.ErrNotSeller
		}
		if item.Status == models.ItemSold {
			return auctionerrors.ErrAlreadyClosed
		}
		var err error
		result, closed, err = s.settle(item, save, CloseReasonManual)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("service: failed to close item %d by user %d: %w", itemID, sellerID, err)
	}

	s.events.Emit(context.Background(), closed)
	return result, nil
}

// ExpireAuction closes itemID if it is still ACTIVE and past its end time.
// It reports whether this call closed the item.
func (s *BiddingService) ExpireAuction(itemID int64) (models.CloseResult, bool, error) {
	var result models.CloseResult
	var closed events.AuctionClosedEvent
	expired := false

	err := s.items.Update(itemID, func(item *models.Item, save func() error) error {
		if !item.IsDue(s.now()) {
			return nil
		}
		var err error
		result, closed, err = s.settle(item, save, CloseReasonExpired)
		expired = err == nil
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("service: failed to expire item %d: %w", itemID, err)
	}

	if expired {
		s.events.Emit(context.Background(), closed)
	}
	return result, expired, nil
}

// settle pays the seller from escrow (if there is a winner), marks the item
// SOLD and ends it now. The caller holds the item lock.
func (s *BiddingService) settle(item *models.Item, save func() error, reason string) (models.CloseResult, events.AuctionClosedEvent, error) {
	result := models.CloseNoBids
	paid := int64(0)
	if item.WinnerID != models.NoWinner {
		if err := s.users.UpdateBalance(item.SellerID, item.CurrentBid); err != nil {
			return "", events.AuctionClosedEvent{}, err
		}
		result = models.CloseSold
		paid = item.CurrentBid
	}

	item.Status = models.ItemSold
	item.EndTime = s.now().Unix()
	if err := save(); err != nil {
		if paid > 0 {
			s.debit(item.SellerID, paid, "take back payout after failed item write")
		}
		return "", events.AuctionClosedEvent{}, err
	}

	return result, events.AuctionClosedEvent{
		ItemID:   item.ID,
		SellerID: item.SellerID,
		WinnerID: item.WinnerID,
		Amount:   paid,
		Result:   string(result),
		Reason:   reason,
	}, nil
}

// DueAuctions returns ids of ACTIVE items past their end time. Each item is
// read under its own shared lock, so the answer may be stale by the time the
// caller acts; ExpireAuction re-checks.
func (s *BiddingService) DueAuctions() ([]int64, error) {
	count, err := s.items.Count()
	if err != nil {
		return nil, fmt.Errorf("service: count items: %w", err)
	}

	now := s.now()
	var due []int64
	for id := int64(1); id <= count; id++ {
		item, err := s.items.Get(id)
		if err != nil {
			return due, fmt.Errorf("service: read item %d: %w", id, err)
		}
		if item.IsDue(now) {
			due = append(due, id)
		}
	}
	return due, nil
}

// IsSeller reports whether userID has ever listed an item.
func (s *BiddingService) IsSeller(userID int64) (bool, error) {
	found := false
	err := s.items.Scan(func(item models.Item) bool {
		found = item.SellerID == userID
		return !found
	})
	if err != nil {
		return false, fmt.Errorf("service: is seller %d: %w", userID, err)
	}
	return found, nil
}

// HasActiveBids reports whether userID is currently winning an ACTIVE item.
func (s *BiddingService) HasActiveBids(userID int64) (bool, error) {
	found := false
	err := s.items.Scan(func(item models.Item) bool {
		found = item.Status == models.ItemActive && item.WinnerID == userID
		return !found
	})
	if err != nil {
		return false, fmt.Errorf("service: has active bids %d: %w", userID, err)
	}
	return found, nil
}

// MyBids lists items userID is winning or still holds a history slot in,
// capped at MyBidsLimit.
func (s *BiddingService) MyBids(userID int64) ([]models.DisplayItem, error) {
	var items []models.Item
	err := s.items.Scan(func(item models.Item) bool {
		if item.WinnerID == userID || item.BidOf(userID) > 0 {
			items = append(items, item)
		}
		return len(items) < s.opts.MyBidsLimit
	})
	if err != nil {
		return nil, fmt.Errorf("service: my bids %d: %w", userID, err)
	}

	now := s.now()
	out := make([]models.DisplayItem, 0, len(items))
	for i := range items {
		row := s.display(&items[i], now)
		row.MyBidAmount = items[i].BidOf(userID)
		if items[i].WinnerID == userID {
			row.MyBidAmount = items[i].CurrentBid
		}
		out = append(out, row)
	}
	return out, nil
}

// TransactionHistory lists SOLD items where userID was seller or winner,
// capped at HistoryLimit.
func (s *BiddingService) TransactionHistory(userID int64) ([]models.HistoryRecord, error) {
	var items []models.Item
	err := s.items.Scan(func(item models.Item) bool {
		if item.Status == models.ItemSold && (item.SellerID == userID || item.WinnerID == userID) {
			items = append(items, item)
		}
		return len(items) < s.opts.HistoryLimit
	})
	if err != nil {
		return nil, fmt.Errorf("service: history %d: %w", userID, err)
	}

	out := make([]models.HistoryRecord, 0, len(items))
	for _, item := range items {
		amount := int64(0)
		if item.WinnerID != models.NoWinner {
			amount = item.CurrentBid
		}
		out = append(out, models.HistoryRecord{
			ItemID:     item.ID,
			ItemName:   item.Name,
			Amount:     amount,
			SellerID:   item.SellerID,
			SellerName: s.users.Username(item.SellerID),
			WinnerID:   item.WinnerID,
			WinnerName: s.winnerName(item.WinnerID),
		})
	}
	return out, nil
}

func (s *BiddingService) display(item *models.Item, now time.Time) models.DisplayItem {
	left := item.EndTime - now.Unix()
	if left < 0 || item.Status != models.ItemActive {
		left = 0
	}
	return models.DisplayItem{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		SellerID:    item.SellerID,
		SellerName:  s.users.Username(item.SellerID),
		WinnerID:    item.WinnerID,
		WinnerName:  s.winnerName(item.WinnerID),
		BasePrice:   item.BasePrice,
		CurrentBid:  item.CurrentBid,
		EndTime:     item.EndTime,
		SecondsLeft: left,
		Status:      item.Status,
	}
}

func (s *BiddingService) winnerName(id int64) string {
	if id == models.NoWinner {
		return NoWinnerName
	}
	return s.users.Username(id)
}

// credit and debit are compensations run after a later step failed. They
// can only log if they fail too.
func (s *BiddingService) credit(userID, amount int64, reason string) {
	if err := s.users.UpdateBalance(userID, amount); err != nil {
		utils.Error("Escrow compensation failed", map[string]any{
			"user_id": userID,
			"amount":  amount,
			"reason":  reason,
			"error":   err.Error(),
		})
	}
}

func (s *BiddingService) debit(userID, amount int64, reason string) {
	s.credit(userID, -amount, reason)
}

func refunded(prevWinner, prevBid int64) int64 {
	if prevWinner == models.NoWinner {
		return 0
	}
	return prevBid
}
