package helpers

import "auction-server/internal/models"

// Request/Response DTOs. Amount bounds match models.MaxAmount and the
// duration bound matches bidding.MaxDuration.
type RegisterRequest struct {
	Username       string `json:"username" binding:"required,max=49"`
	Password       string `json:"password" binding:"required,max=72"`
	SecurityAnswer string `json:"security_answer" binding:"required,max=72"`
	Role           int32  `json:"role" binding:"omitempty,oneof=1 2"`
	InitialBalance int64  `json:"initial_balance" binding:"gte=0,lte=1125899906842624"`
}

type RegisterResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	UserID    int64       `json:"user_id"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	Slot      int         `json:"slot"`
	ExpiresAt string      `json:"expires_at"`
}

type ForgotPasswordRequest struct {
	Username       string `json:"username" binding:"required"`
	SecurityAnswer string `json:"security_answer" binding:"required"`
	NewPassword    string `json:"new_password" binding:"required,max=72"`
}

type ResetPasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,max=72"`
}

type BalanceResponse struct {
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

type StatusResponse struct {
	IsSeller      bool `json:"is_seller"`
	HasActiveBids bool `json:"has_active_bids"`
}

type TransferRequest struct {
	ToUserID int64 `json:"to_user_id" binding:"required,gt=0"`
	Amount   int64 `json:"amount" binding:"required,gt=0,lte=1125899906842624"`
}

type CreateItemRequest struct {
	Name            string `json:"name" binding:"required,max=49"`
	Description     string `json:"description" binding:"max=99"`
	BasePrice       int64  `json:"base_price" binding:"required,gt=0,lte=1125899906842624"`
	DurationSeconds int64  `json:"duration_seconds" binding:"required,gt=0,lte=31536000"`
}

type CreateItemResponse struct {
	ItemID int64 `json:"item_id"`
}

type ListItemsQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1"`
}

type PlaceBidRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0,lte=1125899906842624"`
}

type BidResponse struct {
	ItemID     int64 `json:"item_id"`
	WinnerID   int64 `json:"current_winner_id"`
	CurrentBid int64 `json:"current_bid"`
	EndTime    int64 `json:"end_time"`
}

type CloseResponse struct {
	ItemID int64  `json:"item_id"`
	Result string `json:"result"`
}

// NewBidResponse trims an item down to what a bidder needs back.
func NewBidResponse(item models.Item) BidResponse {
	return BidResponse{
		ItemID:     item.ID,
		WinnerID:   item.WinnerID,
		CurrentBid: item.CurrentBid,
		EndTime:    item.EndTime,
	}
}
