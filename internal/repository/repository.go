package repository

import (
	model "auction-server/internal/models"
)

// UserDB defines the account storage interface for the auction system
type UserDB interface {
	Register(username, password string, role model.Role, initialBalance int64, securityAnswer string) (int64, error)
	Authenticate(username, password string) (int64, error)
	GetUser(id int64) (model.User, error)
	Username(id int64) string
	GetBalance(id int64) (int64, error)
	UpdateBalance(id, delta int64) error
	Transfer(from, to, amount int64) error
	SetCooldown(id, seconds int64) error
	GetCooldown(id int64) (int64, error)
	ResetPassword(id int64, oldPassword, newPassword string) error
	ForgotPassword(username, answer, newPassword string) error
}

// AuctionDB defines the item storage interface for the auction system
type AuctionDB interface {
	Create(item model.Item) (int64, error)
	Get(id int64) (model.Item, error)
	List(limit int) ([]model.Item, error)
	Scan(fn func(item model.Item) bool) error
	Update(id int64, fn ItemMutation) error
	Count() (int64, error)
	HistoryCapacity() int
}

var (
	_ UserDB    = (*UserStore)(nil)
	_ AuctionDB = (*ItemStore)(nil)
)
