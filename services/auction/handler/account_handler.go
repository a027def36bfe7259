package handler

import (
	"fmt"
	"net/http"
	"time"

	account "auction-server/internal/accountService"
	"auction-server/internal/auctionerrors"
	"auction-server/internal/models"
	"auction-server/services/auction/helpers"
	"auction-server/utils"

	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	service   AccountServiceInterface
	jwtSecret string
}

func NewAccountHandler(service AccountServiceInterface, jwtSecret string) *AccountHandler {
	return &AccountHandler{service: service, jwtSecret: jwtSecret}
}

// callerID returns the user id the auth middleware resolved.
func callerID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func mustCaller(c *gin.Context, handlerName string) (int64, bool) {
	id, ok := callerID(c)
	if !ok {
		utils.JSONError(c, http.StatusUnauthorized, auctionerrors.ErrNoSession, "unauthorized")
		utils.Warn(handlerName+": no caller in context", nil)
	}
	return id, ok
}

// RegisterHandler handles POST /auth/register
func (h *AccountHandler) RegisterHandler(c *gin.Context) {
	var req helpers.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RegisterHandler", err)
		return
	}

	id, err := h.service.Register(account.Registration{
		Username:       req.Username,
		Password:       req.Password,
		Role:           models.Role(req.Role),
		InitialBalance: req.InitialBalance,
		SecurityAnswer: req.SecurityAnswer,
	})
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("RegisterHandler: registration failed", map[string]any{
			"username": req.Username,
			"error":    err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.RegisterResponse{UserID: id, Username: req.Username}, "user registered successfully")
	helpers.LogSuccess("RegisterHandler", "user registered successfully", map[string]any{
		"user_id":  id,
		"username": req.Username,
	})
}

// LoginHandler handles POST /auth/login
func (h *AccountHandler) LoginHandler(c *gin.Context) {
	var req helpers.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "LoginHandler", err)
		return
	}

	res, err := h.service.Login(req.Username, req.Password)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("LoginHandler: login failed", map[string]any{
			"username": req.Username,
			"error":    err.Error(),
		})
		return
	}

	token, err := utils.GenerateJWT(res.UserID, res.SessionID, h.jwtSecret, res.ExpiresAt)
	if err != nil {
		// the slot is useless without a token
		_ = h.service.Logout(res.UserID)
		helpers.RespondError(c, fmt.Errorf("sign token: %w", err))
		utils.Error("LoginHandler: failed to sign token", map[string]any{
			"user_id": res.UserID,
			"error":   err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.LoginResponse{
		Token:     token,
		UserID:    res.UserID,
		Username:  res.Username,
		Role:      res.Role,
		Slot:      res.Slot,
		ExpiresAt: res.ExpiresAt.UTC().Format(time.RFC3339),
	}, "login successful")
	helpers.LogSuccess("LoginHandler", "login successful", map[string]any{
		"user_id": res.UserID,
		"slot":    res.Slot,
	})
}

// LogoutHandler handles POST /auth/logout
func (h *AccountHandler) LogoutHandler(c *gin.Context) {
	userID, ok := mustCaller(c, "LogoutHandler")
	if !ok {
		return
	}

	if err := h.service.Logout(userID); err != nil {
		helpers.RespondError(c, err)
		utils.Warn("LogoutHandler: logout failed", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "logged out")
	helpers.LogSuccess("LogoutHandler", "logged out", map[string]any{"user_id": userID})
}

// ForgotPasswordHandler handles POST /auth/forgot-password
func (h *AccountHandler) ForgotPasswordHandler(c *gin.Context) {
	var req helpers.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "ForgotPasswordHandler", err)
		return
	}

	if err := h.service.ForgotPassword(req.Username, req.SecurityAnswer, req.NewPassword); err != nil {
		helpers.RespondError(c, err)
		utils.Warn("ForgotPasswordHandler: reset failed", map[string]any{
			"username": req.Username,
			"error":    err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "password updated")
	helpers.LogSuccess("ForgotPasswordHandler", "password updated", map[string]any{"username": req.Username})
}

// ResetPasswordHandler handles POST /me/password
func (h *AccountHandler) ResetPasswordHandler(c *gin.Context) {
	userID, ok := mustCaller(c, "ResetPasswordHandler")
	if !ok {
		return
	}
	var req helpers.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "ResetPasswordHandler", err)
		return
	}

	if err := h.service.ResetPassword(userID, req.OldPassword, req.NewPassword); err != nil {
		helpers.RespondError(c, err)
		utils.Warn("ResetPasswordHandler: reset failed", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "password updated")
	helpers.LogSuccess("ResetPasswordHandler", "password updated", map[string]any{"user_id": userID})
}

// BalanceHandler handles GET /me/balance
func (h *AccountHandler) BalanceHandler(c *gin.Context) {
	userID, ok := mustCaller(c, "BalanceHandler")
	if !ok {
		return
	}

	balance, err := h.service.Balance(userID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("BalanceHandler: error reading balance", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.BalanceResponse{UserID: userID, Balance: balance}, "balance retrieved successfully")
}

// TransferHandler handles POST /transfers
func (h *AccountHandler) TransferHandler(c *gin.Context) {
	userID, ok := mustCaller(c, "TransferHandler")
	if !ok {
		return
	}
	var req helpers.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "TransferHandler", err)
		return
	}

	if err := h.service.Transfer(userID, req.ToUserID, req.Amount); err != nil {
		helpers.RespondError(c, err)
		utils.Warn("TransferHandler: transfer failed", map[string]any{
			"from":   userID,
			"to":     req.ToUserID,
			"amount": req.Amount,
			"error":  err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, req, "transfer completed")
	helpers.LogSuccess("TransferHandler", "transfer completed", map[string]any{
		"from":   userID,
		"to":     req.ToUserID,
		"amount": req.Amount,
	})
}
