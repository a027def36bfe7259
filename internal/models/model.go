package models

import "time"

// Role is the account type stored with every user.
type Role int32

const (
	RoleAdmin Role = 1
	RoleUser  Role = 2 // can be both buyer and seller
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// ItemStatus is the lifecycle state of an auction. SOLD is terminal.
type ItemStatus int32

const (
	ItemActive ItemStatus = 1
	ItemSold   ItemStatus = 2
)

func (s ItemStatus) String() string {
	switch s {
	case ItemActive:
		return "ACTIVE"
	case ItemSold:
		return "SOLD"
	default:
		return "UNKNOWN"
	}
}

// NoWinner marks an item nobody is currently escrowed for.
const NoWinner int64 = -1

// MaxAmount caps initial balances, base prices, bids and transfers. Balances
// may grow past it through credits but never past math.MaxInt64.
const MaxAmount int64 = 1 << 50

// User represents a participant in the auction
type User struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	PasswordHash  string `json:"-"`
	AnswerHash    string `json:"-"`
	Role          Role   `json:"role"`
	Balance       int64  `json:"balance"`
	CooldownUntil int64  `json:"cooldown_until"`
}

// BidEntry is one bidder's slot in an item's bounded bid history. Amount is
// the bidder's last escrowed amount; zero once refunded for good.
type BidEntry struct {
	BidderID int64 `json:"bidder_id"`
	Amount   int64 `json:"amount"`
}

// Item represents an auction item
type Item struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	SellerID    int64      `json:"seller_id"`
	WinnerID    int64      `json:"current_winner_id"`
	BasePrice   int64      `json:"base_price"`
	CurrentBid  int64      `json:"current_bid"`
	EndTime     int64      `json:"end_time"`
	Status      ItemStatus `json:"status"`
	Bids        []BidEntry `json:"bids"`
}

// IsOpen reports whether the item still accepts bids at now.
func (i *Item) IsOpen(now time.Time) bool {
	return i.Status == ItemActive && now.Unix() < i.EndTime
}

// IsDue reports whether the item is active but past its end time.
func (i *Item) IsDue(now time.Time) bool {
	return i.Status == ItemActive && now.Unix() >= i.EndTime
}

// Escrowed returns the amount currently held for the winner.
func (i *Item) Escrowed() int64 {
	if i.Status == ItemActive && i.WinnerID != NoWinner {
		return i.CurrentBid
	}
	return 0
}

// BidOf returns the caller's last escrowed amount, or 0.
func (i *Item) BidOf(userID int64) int64 {
	for _, b := range i.Bids {
		if b.BidderID == userID {
			return b.Amount
		}
	}
	return 0
}

// RecordBid upserts bidderID's history slot. When the history is full the
// lowest slot is overwritten.
func (i *Item) RecordBid(bidderID, amount int64, capacity int) {
	for idx := range i.Bids {
		if i.Bids[idx].BidderID == bidderID {
			i.Bids[idx].Amount = amount
			return
		}
	}
	if len(i.Bids) < capacity {
		i.Bids = append(i.Bids, BidEntry{BidderID: bidderID, Amount: amount})
		return
	}
	if len(i.Bids) == 0 {
		return
	}
	lowest := 0
	for idx := range i.Bids {
		if i.Bids[idx].Amount < i.Bids[lowest].Amount {
			lowest = idx
		}
	}
	i.Bids[lowest] = BidEntry{BidderID: bidderID, Amount: amount}
}

// ClearBid zeroes bidderID's history slot.
func (i *Item) ClearBid(bidderID int64) {
	for idx := range i.Bids {
		if i.Bids[idx].BidderID == bidderID {
			i.Bids[idx].Amount = 0
		}
	}
}

// HighestBid returns the highest non-zero history slot. Ties go to the
// earlier slot.
func (i *Item) HighestBid() (BidEntry, bool) {
	var best BidEntry
	found := false
	for _, b := range i.Bids {
		if b.Amount > 0 && (!found || b.Amount > best.Amount) {
			best = b
			found = true
		}
	}
	return best, found
}

// CloseResult tells a successful close with a sale apart from one without bids.
type CloseResult string

const (
	CloseSold   CloseResult = "SOLD"
	CloseNoBids CloseResult = "CLOSED_NO_BIDS"
)

// DisplayItem is the listing row handed to clients.
type DisplayItem struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	SellerID    int64      `json:"seller_id"`
	SellerName  string     `json:"seller_name"`
	WinnerID    int64      `json:"winner_id"`
	WinnerName  string     `json:"winner_name"`
	BasePrice   int64      `json:"base_price"`
	CurrentBid  int64      `json:"current_bid"`
	EndTime     int64      `json:"end_time"`
	SecondsLeft int64      `json:"seconds_left"`
	Status      ItemStatus `json:"status"`
	MyBidAmount int64      `json:"my_bid_amount,omitempty"`
}

// HistoryRecord is one closed sale the user took part in.
type HistoryRecord struct {
	ItemID     int64  `json:"item_id"`
	ItemName   string `json:"item_name"`
	Amount     int64  `json:"amount"`
	SellerID   int64  `json:"seller_id"`
	SellerName string `json:"seller_name"`
	WinnerID   int64  `json:"winner_id"`
	WinnerName string `json:"winner_name"`
}
