package integrationtests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"auction-server/internal/app"
	"auction-server/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestServer is a fully wired application over a temporary data directory.
type TestServer struct {
	App    *app.App
	Router *gin.Engine
	Config config.Config
}

// SetupTestServer opens the application the way `serve` does, minus the
// listener. The sweeper is driven by hand through App.Sweeper.
func SetupTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := config.Config{
		Env:             "test",
		Port:            8080,
		GinMode:         gin.TestMode,
		DataDir:         filepath.Join(dir, "data"),
		LogFile:         filepath.Join(dir, "logs", "server.log"),
		JWTSecret:       "integration-secret",
		SessionTTL:      time.Hour,
		SessionCapacity: 8,
		BcryptCost:      bcrypt.MinCost,
		Auction: config.AuctionConfig{
			BidHistoryCapacity: 10,
			ListLimit:          100,
			MyBidsLimit:        50,
			HistoryLimit:       50,
			SweepInterval:      time.Second,
			WithdrawCooldown:   time.Minute,
		},
	}
	require.NoError(t, cfg.Validate())

	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	return &TestServer{App: a, Router: a.Router, Config: cfg}
}

// ExecuteRequestAndParse executes an HTTP request on the router and parses
// the response envelope. token may be empty.
func (s *TestServer) ExecuteRequestAndParse(t *testing.T, method, url, token string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		require.NoError(t, err, "failed to marshal body")
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	s.Router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "failed to unmarshal response")
	}
	return resp, w
}

// StatusOf serves one request and returns only its status code. It never
// fails the test, so worker goroutines may call it.
func (s *TestServer) StatusOf(method, url, token string, body []byte) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	s.Router.ServeHTTP(w, req)
	return w.Code
}

// Data returns the envelope's data object.
func Data(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", resp)
	return data
}

// Register creates a user and returns their id.
func (s *TestServer) Register(t *testing.T, username string, balance int64) int64 {
	t.Helper()
	resp, w := s.ExecuteRequestAndParse(t, http.MethodPost, "/auth/register", "", map[string]any{
		"username":        username,
		"password":        "pw-" + username,
		"security_answer": "answer-" + username,
		"initial_balance": balance,
	})
	require.Equal(t, http.StatusCreated, w.Code, "register %s: %v", username, resp)
	return int64(Data(t, resp)["user_id"].(float64))
}

// Login opens a session and returns the bearer token.
func (s *TestServer) Login(t *testing.T, username string) string {
	t.Helper()
	resp, w := s.ExecuteRequestAndParse(t, http.MethodPost, "/auth/login", "", map[string]any{
		"username": username,
		"password": "pw-" + username,
	})
	require.Equal(t, http.StatusOK, w.Code, "login %s: %v", username, resp)
	return Data(t, resp)["token"].(string)
}

// Balance reads the caller's balance.
func (s *TestServer) Balance(t *testing.T, token string) int64 {
	t.Helper()
	resp, w := s.ExecuteRequestAndParse(t, http.MethodGet, "/me/balance", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	return int64(Data(t, resp)["balance"].(float64))
}

// CreateItem lists an item and returns its id.
func (s *TestServer) CreateItem(t *testing.T, token, name string, basePrice, durationSeconds int64) int64 {
	t.Helper()
	resp, w := s.ExecuteRequestAndParse(t, http.MethodPost, "/items", token, map[string]any{
		"name":             name,
		"description":      name + " for sale",
		"base_price":       basePrice,
		"duration_seconds": durationSeconds,
	})
	require.Equal(t, http.StatusCreated, w.Code, "create item: %v", resp)
	return int64(Data(t, resp)["item_id"].(float64))
}

// Bid places a bid and returns the status code.
func (s *TestServer) Bid(t *testing.T, token string, itemID, amount int64) int {
	t.Helper()
	_, w := s.ExecuteRequestAndParse(t, http.MethodPost, fmt.Sprintf("/items/%d/bids", itemID), token, map[string]any{"amount": amount})
	return w.Code
}
