package events

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeUserRegistered  EventType = "user_registered"
	EventTypeUserLoggedIn    EventType = "user_logged_in"
	EventTypeUserLoggedOut   EventType = "user_logged_out"
	EventTypePasswordChanged EventType = "password_changed"
	EventTypeFundsTransfer   EventType = "funds_transferred"
	EventTypeItemCreated     EventType = "item_created"
	EventTypeBidPlaced       EventType = "bid_placed"
	EventTypeBidWithdrawn    EventType = "bid_withdrawn"
	EventTypeAuctionClosed   EventType = "auction_closed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	// Message is the one-line human description written to the audit log.
	Message() string
}

// UserRegisteredEvent represents a new account
type UserRegisteredEvent struct {
	UserID         int64  `json:"user_id"`
	Username       string `json:"username"`
	Role           int32  `json:"role"`
	InitialBalance int64  `json:"initial_balance"`
}

func (e UserRegisteredEvent) Type() EventType { return EventTypeUserRegistered }
func (e UserRegisteredEvent) Message() string {
	return fmt.Sprintf("User %s registered with id %d, balance %d", e.Username, e.UserID, e.InitialBalance)
}

// UserLoggedInEvent represents a session being opened
type UserLoggedInEvent struct {
	UserID int64 `json:"user_id"`
	Slot   int   `json:"slot"`
}

func (e UserLoggedInEvent) Type() EventType { return EventTypeUserLoggedIn }
func (e UserLoggedInEvent) Message() string {
	return fmt.Sprintf("User %d logged in (slot %d)", e.UserID, e.Slot)
}

type UserLoggedOutEvent struct {
	UserID int64 `json:"user_id"`
}

func (e UserLoggedOutEvent) Type() EventType { return EventTypeUserLoggedOut }
func (e UserLoggedOutEvent) Message() string {
	return fmt.Sprintf("User %d logged out", e.UserID)
}

// PasswordChangedEvent covers both reset (old password known) and recovery
// through the security answer.
type PasswordChangedEvent struct {
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Method   string `json:"method"`
}

func (e PasswordChangedEvent) Type() EventType { return EventTypePasswordChanged }
func (e PasswordChangedEvent) Message() string {
	if e.Username != "" {
		return fmt.Sprintf("Password for %s changed via %s", e.Username, e.Method)
	}
	return fmt.Sprintf("Password for user %d changed via %s", e.UserID, e.Method)
}

type FundsTransferredEvent struct {
	FromID int64 `json:"from_id"`
	ToID   int64 `json:"to_id"`
	Amount int64 `json:"amount"`
}

func (e FundsTransferredEvent) Type() EventType { return EventTypeFundsTransfer }
func (e FundsTransferredEvent) Message() string {
	return fmt.Sprintf("Transferred %d from user %d to user %d", e.Amount, e.FromID, e.ToID)
}

type ItemCreatedEvent struct {
	ItemID    int64  `json:"item_id"`
	SellerID  int64  `json:"seller_id"`
	Name      string `json:"name"`
	BasePrice int64  `json:"base_price"`
	EndTime   int64  `json:"end_time"`
}

func (e ItemCreatedEvent) Type() EventType { return EventTypeItemCreated }
func (e ItemCreatedEvent) Message() string {
	return fmt.Sprintf("Item %d (%s) listed by user %d at %d", e.ItemID, e.Name, e.SellerID, e.BasePrice)
}

// BidPlacedEvent represents an accepted bid. PreviousWinnerID is -1 when the
// item had no bidder.
type BidPlacedEvent struct {
	ItemID           int64 `json:"item_id"`
	BidderID         int64 `json:"bidder_id"`
	Amount           int64 `json:"amount"`
	PreviousWinnerID int64 `json:"previous_winner_id"`
	Refunded         int64 `json:"refunded"`
}

func (e BidPlacedEvent) Type() EventType { return EventTypeBidPlaced }
func (e BidPlacedEvent) Message() string {
	return fmt.Sprintf("User %d bid %d on item %d", e.BidderID, e.Amount, e.ItemID)
}

type BidWithdrawnEvent struct {
	ItemID        int64 `json:"item_id"`
	BidderID      int64 `json:"bidder_id"`
	Refunded      int64 `json:"refunded"`
	NewWinnerID   int64 `json:"new_winner_id"`
	NewCurrentBid int64 `json:"new_current_bid"`
}

func (e BidWithdrawnEvent) Type() EventType { return EventTypeBidWithdrawn }
func (e BidWithdrawnEvent) Message() string {
	return fmt.Sprintf("User %d withdrew from item %d, new winner %d at %d",
		e.BidderID, e.ItemID, e.NewWinnerID, e.NewCurrentBid)
}

// AuctionClosedEvent represents an ACTIVE to SOLD transition. Reason is
// "manual" or "expired".
type AuctionClosedEvent struct {
	ItemID   int64  `json:"item_id"`
	SellerID int64  `json:"seller_id"`
	WinnerID int64  `json:"winner_id"`
	Amount   int64  `json:"amount"`
	Result   string `json:"result"`
	Reason   string `json:"reason"`
}

func (e AuctionClosedEvent) Type() EventType { return EventTypeAuctionClosed }
func (e AuctionClosedEvent) Message() string {
	if e.WinnerID < 1 {
		return fmt.Sprintf("Auction %d closed (%s) with no bids", e.ItemID, e.Reason)
	}
	return fmt.Sprintf("Auction %d closed (%s): sold to user %d for %d", e.ItemID, e.Reason, e.WinnerID, e.Amount)
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Emitter is what services publish through.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
	inflight sync.WaitGroup
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler that receives every event
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type()])+len(b.all))
	handlers = append(handlers, b.handlers[event.Type()]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		b.inflight.Add(1)
		go func(h Handler, handlerIndex int) {
			defer b.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Wait blocks until every handler started so far has returned.
func (b *Bus) Wait() {
	b.inflight.Wait()
}

// TransactionalBus holds events raised inside a locked section and releases
// them only once the section has committed.
type TransactionalBus struct {
	real    Emitter
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real Emitter) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits the pending events in order and clears them.
func (b *TransactionalBus) Flush(ctx context.Context) {
	for _, ev := range b.pending {
		b.real.Emit(ctx, ev)
	}
	b.pending = nil
}

// Discard drops pending events after a failed section.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}

type discard struct{}

func (discard) Emit(context.Context, Event) {}

// Nop returns an Emitter that drops every event.
func Nop() Emitter {
	return discard{}
}
