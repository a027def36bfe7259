package server

import (
	"auction-server/services/auction/handler"

	"github.com/gin-gonic/gin"
)

// Deps is everything the router needs from the application.
type Deps struct {
	Accounts  handler.AccountServiceInterface
	Auctions  handler.AuctionServiceInterface
	Sessions  SessionChecker
	JWTSecret string
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(deps Deps) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestIDMiddleware)     // correlate log lines
	router.Use(RequestLoggerMiddleware) // custom request logging

	accountHandler := handler.NewAccountHandler(deps.Accounts, deps.JWTSecret)
	auctionHandler := handler.NewAuctionHandler(deps.Auctions)
	requireSession := SessionAuthMiddleware(deps.JWTSecret, deps.Sessions)

	auth := router.Group("/auth")
	{
		auth.POST("/register", accountHandler.RegisterHandler)
		auth.POST("/login", accountHandler.LoginHandler)
		auth.POST("/forgot-password", accountHandler.ForgotPasswordHandler)
		auth.POST("/logout", requireSession, accountHandler.LogoutHandler)
	}

	me := router.Group("/me", requireSession)
	{
		me.POST("/password", accountHandler.ResetPasswordHandler)
		me.GET("/balance", accountHandler.BalanceHandler)
		me.GET("/status", auctionHandler.StatusHandler)
		me.GET("/bids", auctionHandler.MyBidsHandler)
		me.GET("/history", auctionHandler.HistoryHandler)
	}

	router.POST("/transfers", requireSession, accountHandler.TransferHandler)

	items := router.Group("/items")
	{
		items.GET("", auctionHandler.ListItemsHandler)
		items.POST("", requireSession, auctionHandler.CreateItemHandler)
		items.POST("/:item_id/bids", requireSession, auctionHandler.PlaceBidHandler)
		items.DELETE("/:item_id/bids", requireSession, auctionHandler.WithdrawBidHandler)
		items.POST("/:item_id/close", requireSession, auctionHandler.CloseAuctionHandler)
	}

	return router
}
