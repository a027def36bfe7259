package handler

import (
	account "auction-server/internal/accountService"
	bidding "auction-server/internal/biddingService"
	"auction-server/internal/models"
)

//go:generate mockgen -source=interfaces.go -destination=mock_services.go -package=handler

type AccountServiceInterface interface {
	Register(reg account.Registration) (int64, error)
	Login(username, password string) (account.LoginResult, error)
	Logout(userID int64) error
	Balance(userID int64) (int64, error)
	ResetPassword(userID int64, oldPassword, newPassword string) error
	ForgotPassword(username, answer, newPassword string) error
	Transfer(fromID, toID, amount int64) error
}

type AuctionServiceInterface interface {
	CreateItem(sellerID int64, in bidding.NewItem) (int64, error)
	ListItems(limit int) ([]models.DisplayItem, error)
	PlaceBid(itemID, bidderID, amount int64) (models.Item, error)
	WithdrawBid(itemID, bidderID int64) (models.Item, error)
	CloseAuction(itemID, sellerID int64) (models.CloseResult, error)
	IsSeller(userID int64) (bool, error)
	HasActiveBids(userID int64) (bool, error)
	MyBids(userID int64) ([]models.DisplayItem, error)
	TransactionHistory(userID int64) ([]models.HistoryRecord, error)
}

// UserIDKey is the gin context key the auth middleware stores the caller under.
const UserIDKey = "userID"
