package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	account "auction-server/internal/accountService"
	"auction-server/internal/auctionerrors"
	"auction-server/internal/models"
	"auction-server/services/auction/helpers"
	"auction-server/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// Helper to stand in for the auth middleware
func withCaller(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// Helper to send a JSON request and decode the envelope
func doJSON(t *testing.T, router http.Handler, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

// Test RegisterHandler
func TestRegisterHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockAccountServiceInterface(ctrl)
	handler := NewAccountHandler(mockService, testSecret)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auth/register", handler.RegisterHandler)

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		expectedCode   string
	}{
		{
			name:        "success",
			requestBody: helpers.RegisterRequest{Username: "alice", Password: "pw", SecurityAnswer: "blue", InitialBalance: 100},
			mockSetup: func() {
				mockService.EXPECT().
					Register(account.Registration{Username: "alice", Password: "pw", SecurityAnswer: "blue", InitialBalance: 100}).
					Return(int64(1), nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "user registered successfully",
		},
		{
			name:        "duplicate_username",
			requestBody: helpers.RegisterRequest{Username: "bob", Password: "pw", SecurityAnswer: "blue", Role: 2},
			mockSetup: func() {
				mockService.EXPECT().
					Register(account.Registration{Username: "bob", Password: "pw", SecurityAnswer: "blue", Role: models.RoleUser}).
					Return(int64(0), fmt.Errorf("service: failed to register: %w", auctionerrors.ErrDuplicateUsername))
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "resource already exists",
			expectedCode:   "Duplicate",
		},
		{
			name:           "invalid_json",
			requestBody:    `{invalid json}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "missing_password",
			requestBody:    helpers.RegisterRequest{Username: "carol", SecurityAnswer: "blue"},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "unknown_role",
			requestBody:    helpers.RegisterRequest{Username: "dave", Password: "pw", SecurityAnswer: "blue", Role: 9},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "negative_balance",
			requestBody:    helpers.RegisterRequest{Username: "erin", Password: "pw", SecurityAnswer: "blue", InitialBalance: -1},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.mockSetup()
			status, resp := doJSON(t, router, http.MethodPost, "/auth/register", tc.requestBody)

			require.Equal(t, tc.expectedStatus, status)
			require.Contains(t, resp["message"], tc.expectedMsg)
			if tc.expectedCode != "" {
				require.Equal(t, tc.expectedCode, resp["code"])
			}
		})
	}
}

// Test LoginHandler issues a token bound to the session id
func TestLoginHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockAccountServiceInterface(ctrl)
	handler := NewAccountHandler(mockService, testSecret)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auth/login", handler.LoginHandler)

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	sessionID := utils.GenerateID()

	t.Run("success", func(t *testing.T) {
		mockService.EXPECT().Login("alice", "pw").Return(account.LoginResult{
			UserID: 4, Username: "alice", Role: models.RoleUser, Slot: 2, SessionID: sessionID, ExpiresAt: expires,
		}, nil)

		status, resp := doJSON(t, router, http.MethodPost, "/auth/login", helpers.LoginRequest{Username: "alice", Password: "pw"})
		require.Equal(t, http.StatusOK, status)

		data := resp["data"].(map[string]any)
		require.Equal(t, float64(2), data["slot"])

		claims, err := utils.ParseJWT(data["token"].(string), testSecret)
		require.NoError(t, err)
		require.Equal(t, int64(4), claims.UserID)
		require.Equal(t, sessionID, claims.ID)
	})

	tests := []struct {
		name           string
		username       string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{name: "bad_credentials", username: "bob", err: auctionerrors.ErrInvalidCredentials, expectedStatus: http.StatusUnauthorized, expectedCode: "Unauthorized"},
		{name: "already_logged_in", username: "carol", err: auctionerrors.ErrAlreadyLoggedIn, expectedStatus: http.StatusConflict, expectedCode: "StateConflict"},
		{name: "server_full", username: "dave", err: auctionerrors.ErrServerFull, expectedStatus: http.StatusConflict, expectedCode: "StateConflict"},
		{name: "storage_failure", username: "erin", err: errors.New("read users.dat: input/output error"), expectedStatus: http.StatusInternalServerError, expectedCode: "IOError"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mockService.EXPECT().Login(tc.username, "pw").Return(account.LoginResult{}, fmt.Errorf("service: login: %w", tc.err))
			status, resp := doJSON(t, router, http.MethodPost, "/auth/login", helpers.LoginRequest{Username: tc.username, Password: "pw"})

			require.Equal(t, tc.expectedStatus, status)
			require.Equal(t, tc.expectedCode, resp["code"])
			if status == http.StatusInternalServerError {
				require.NotContains(t, resp["error"], "users.dat", "storage details must not leak")
			}
		})
	}
}

// Test the handlers that act on the authenticated caller
func TestAccountCallerHandlers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockAccountServiceInterface(ctrl)
	handler := NewAccountHandler(mockService, testSecret)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	authed := router.Group("", withCaller(7))
	authed.POST("/auth/logout", handler.LogoutHandler)
	authed.POST("/me/password", handler.ResetPasswordHandler)
	authed.GET("/me/balance", handler.BalanceHandler)
	authed.POST("/transfers", handler.TransferHandler)
	router.POST("/anon/logout", handler.LogoutHandler)
	router.POST("/auth/forgot-password", handler.ForgotPasswordHandler)

	tests := []struct {
		name           string
		method         string
		path           string
		requestBody    any
		mockSetup      func()
		expectedStatus int
		validate       func(t *testing.T, resp map[string]any)
	}{
		{
			name:   "balance",
			method: http.MethodGet,
			path:   "/me/balance",
			mockSetup: func() {
				mockService.EXPECT().Balance(int64(7)).Return(int64(350), nil)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, resp map[string]any) {
				data := resp["data"].(map[string]any)
				require.Equal(t, float64(350), data["balance"])
			},
		},
		{
			name:   "logout",
			method: http.MethodPost,
			path:   "/auth/logout",
			mockSetup: func() {
				mockService.EXPECT().Logout(int64(7)).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "logout_without_caller",
			method:         http.MethodPost,
			path:           "/anon/logout",
			mockSetup:      func() {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:        "reset_password_wrong_old",
			method:      http.MethodPost,
			path:        "/me/password",
			requestBody: helpers.ResetPasswordRequest{OldPassword: "nope", NewPassword: "new"},
			mockSetup: func() {
				mockService.EXPECT().ResetPassword(int64(7), "nope", "new").Return(auctionerrors.ErrWrongOldPassword)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:        "forgot_password",
			method:      http.MethodPost,
			path:        "/auth/forgot-password",
			requestBody: helpers.ForgotPasswordRequest{Username: "alice", SecurityAnswer: "blue", NewPassword: "fresh"},
			mockSetup: func() {
				mockService.EXPECT().ForgotPassword("alice", "blue", "fresh").Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:        "transfer_insufficient",
			method:      http.MethodPost,
			path:        "/transfers",
			requestBody: helpers.TransferRequest{ToUserID: 8, Amount: 1000},
			mockSetup: func() {
				mockService.EXPECT().Transfer(int64(7), int64(8), int64(1000)).Return(auctionerrors.ErrInsufficientFunds)
			},
			expectedStatus: http.StatusPaymentRequired,
			validate: func(t *testing.T, resp map[string]any) {
				require.Equal(t, "InsufficientFunds", resp["code"])
			},
		},
		{
			name:           "transfer_zero_amount",
			method:         http.MethodPost,
			path:           "/transfers",
			requestBody:    helpers.TransferRequest{ToUserID: 8},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.mockSetup()
			status, resp := doJSON(t, router, tc.method, tc.path, tc.requestBody)

			require.Equal(t, tc.expectedStatus, status)
			if tc.validate != nil {
				tc.validate(t, resp)
			}
		})
	}
}
