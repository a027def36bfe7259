package handler

import (
	"net/http"
	"time"

	bidding "auction-server/internal/biddingService"
	"auction-server/internal/models"
	"auction-server/services/auction/helpers"
	"auction-server/utils"

	"github.com/gin-gonic/gin"
)

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// CreateItemHandler handles POST /items
func (h *AuctionHandler) CreateItemHandler(c *gin.Context) {
	sellerID, ok := mustCaller(c, "CreateItemHandler")
	if !ok {
		return
	}
	var req helpers.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateItemHandler", err)
		return
	}

	itemID, err := h.service.CreateItem(sellerID, bidding.NewItem{
		Name:        req.Name,
		Description: req.Description,
		BasePrice:   req.BasePrice,
		Duration:    time.Duration(req.DurationSeconds) * time.Second,
	})
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("CreateItemHandler: failed to create item", map[string]any{
			"seller_id": sellerID,
			"error":     err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.CreateItemResponse{ItemID: itemID}, "item created successfully")
	helpers.LogSuccess("CreateItemHandler", "item created successfully", map[string]any{
		"item_id":   itemID,
		"seller_id": sellerID,
	})
}

// ListItemsHandler handles GET /items
func (h *AuctionHandler) ListItemsHandler(c *gin.Context) {
	var q helpers.ListItemsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		helpers.HandleBindError(c, "ListItemsHandler", err)
		return
	}

	items, err := h.service.ListItems(q.Limit)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("ListItemsHandler: error listing items", map[string]any{"error": err.Error()})
		return
	}

	if items == nil {
		items = []models.DisplayItem{}
	}
	utils.JSONResponse(c, http.StatusOK, items, "items retrieved successfully")
}

// PlaceBidHandler handles POST /items/:item_id/bids
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	bidderID, ok := mustCaller(c, "PlaceBidHandler")
	if !ok {
		return
	}
	itemID, err := helpers.ParseIDParam(c, "item_id")
	if err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	item, err := h.service.PlaceBid(itemID, bidderID, req.Amount)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("PlaceBidHandler: failed to place bid", map[string]any{
			"item_id":   itemID,
			"bidder_id": bidderID,
			"amount":    req.Amount,
			"error":     err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(item), "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"item_id":   itemID,
		"bidder_id": bidderID,
		"amount":    req.Amount,
	})
}

// WithdrawBidHandler handles DELETE /items/:item_id/bids
func (h *AuctionHandler) WithdrawBidHandler(c *gin.Context) {
	bidderID, ok := mustCaller(c, "WithdrawBidHandler")
	if !ok {
		return
	}
	itemID, err := helpers.ParseIDParam(c, "item_id")
	if err != nil {
		helpers.HandleBindError(c, "WithdrawBidHandler", err)
		return
	}

	item, err := h.service.WithdrawBid(itemID, bidderID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("WithdrawBidHandler: failed to withdraw bid", map[string]any{
			"item_id":   itemID,
			"bidder_id": bidderID,
			"error":     err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(item), "bid withdrawn")
	helpers.LogSuccess("WithdrawBidHandler", "bid withdrawn", map[string]any{
		"item_id":    itemID,
		"bidder_id":  bidderID,
		"new_winner": item.WinnerID,
	})
}

// CloseAuctionHandler handles POST /items/:item_id/close
func (h *AuctionHandler) CloseAuctionHandler(c *gin.Context) {
	sellerID, ok := mustCaller(c, "CloseAuctionHandler")
	if !ok {
		return
	}
	itemID, err := helpers.ParseIDParam(c, "item_id")
	if err != nil {
		helpers.HandleBindError(c, "CloseAuctionHandler", err)
		return
	}

	result, err := h.service.CloseAuction(itemID, sellerID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("CloseAuctionHandler: failed to close auction", map[string]any{
			"item_id":   itemID,
			"seller_id": sellerID,
			"error":     err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.CloseResponse{ItemID: itemID, Result: string(result)}, "auction closed")
	helpers.LogSuccess("CloseAuctionHandler", "auction closed", map[string]any{
		"item_id": itemID,
		"result":  string(result),
	})
}

// StatusHandler handles GET /me/status
func (h *AuctionHandler) StatusHandler(c *gin.Context) {
	userID, ok := mustCaller(c, "StatusHandler")
	if !ok {
		return
	}

	seller, err := h.service.IsSeller(userID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("StatusHandler: error reading status", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}
	active, err := h.service.HasActiveBids(userID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("StatusHandler: error reading status", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.StatusResponse{IsSeller: seller, HasActiveBids: active}, "status retrieved successfully")
}

// MyBidsHandler handles GET /me/bids
func (h *AuctionHandler) MyBidsHandler(c *gin.Context) {
	userID, ok := mustCaller(c, "MyBidsHandler")
	if !ok {
		return
	}

	items, err := h.service.MyBids(userID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("MyBidsHandler: error retrieving bids", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	if items == nil {
		items = []models.DisplayItem{}
	}
	utils.JSONResponse(c, http.StatusOK, items, "bids retrieved successfully")
	helpers.LogSuccess("MyBidsHandler", "bids retrieved successfully", map[string]any{
		"user_id": userID,
		"count":   len(items),
	})
}

// HistoryHandler handles GET /me/history
func (h *AuctionHandler) HistoryHandler(c *gin.Context) {
	userID, ok := mustCaller(c, "HistoryHandler")
	if !ok {
		return
	}

	records, err := h.service.TransactionHistory(userID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("HistoryHandler: error retrieving history", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	if records == nil {
		records = []models.HistoryRecord{}
	}
	utils.JSONResponse(c, http.StatusOK, records, "history retrieved successfully")
}
