// Package session tracks which users are logged in. One user holds at most
// one live slot; the table has a fixed capacity.
package session

import (
	"fmt"
	"sync"
	"time"

	"auction-server/internal/auctionerrors"
)

// Session is one occupied slot.
type Session struct {
	UserID    int64
	TokenID   string
	ExpiresAt time.Time
}

// Table is a fixed slot array behind one mutex. Expired slots count as free.
type Table struct {
	mu    sync.Mutex
	slots []Session
	now   func() time.Time
}

func NewTable(capacity int) *Table {
	if capacity < 1 {
		capacity = 1
	}
	return &Table{slots: make([]Session, capacity), now: time.Now}
}

func (t *Table) live(s Session, now time.Time) bool {
	return s.UserID != 0 && now.Before(s.ExpiresAt)
}

// Create claims a slot for userID and returns its index.
func (t *Table) Create(userID int64, tokenID string, ttl time.Duration) (int, error) {
	if userID < 1 || tokenID == "" || ttl <= 0 {
		return -1, fmt.Errorf("create session for user %d: %w", userID, auctionerrors.ErrInvalidInput)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	free := -1
	for i, s := range t.slots {
		if !t.live(s, now) {
			if free < 0 {
				free = i
			}
			continue
		}
		if s.UserID == userID {
			return -1, fmt.Errorf("create session for user %d: %w", userID, auctionerrors.ErrAlreadyLoggedIn)
		}
	}
	if free < 0 {
		return -1, fmt.Errorf("create session for user %d: %w", userID, auctionerrors.ErrServerFull)
	}

	t.slots[free] = Session{UserID: userID, TokenID: tokenID, ExpiresAt: now.Add(ttl)}
	return free, nil
}

// Remove frees userID's slot, if any.
func (t *Table) Remove(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := false
	for i, s := range t.slots {
		if s.UserID == userID {
			t.slots[i] = Session{}
			removed = true
		}
	}
	return removed
}

// Check reports whether userID holds a live slot issued with tokenID.
func (t *Table) Check(userID int64, tokenID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for _, s := range t.slots {
		if s.UserID == userID {
			return s.TokenID == tokenID && t.live(s, now)
		}
	}
	return false
}

// Active counts live slots.
func (t *Table) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	n := 0
	for _, s := range t.slots {
		if t.live(s, now) {
			n++
		}
	}
	return n
}
