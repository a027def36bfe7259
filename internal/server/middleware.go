package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"auction-server/internal/auctionerrors"
	"auction-server/services/auction/handler"
	"auction-server/utils"

	"github.com/gin-gonic/gin"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestID"
)

// SessionChecker tells whether a token still belongs to a live session.
type SessionChecker interface {
	Check(userID int64, tokenID string) bool
}

// RequestIDMiddleware reuses the caller's X-Request-ID or assigns a new one.
func RequestIDMiddleware(c *gin.Context) {
	id := c.GetHeader(requestIDHeader)
	if !utils.IsID(id) {
		id = utils.GenerateID()
	}
	c.Set(requestIDKey, id)
	c.Header(requestIDHeader, id)
	c.Next()
}

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"status":     c.Writer.Status(),
		"latency":    time.Since(start).String(),
		"request_id": c.GetString(requestIDKey),
	})
}

// SessionAuthMiddleware accepts a bearer token only while the session it was
// issued for is still in the table, so logout revokes it.
func SessionAuthMiddleware(secret string, sessions SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			utils.AbortJSONError(c, http.StatusUnauthorized, fmt.Errorf("missing bearer token: %w", auctionerrors.ErrNoSession), "unauthorized")
			return
		}

		claims, err := utils.ParseJWT(token, secret)
		if err != nil {
			utils.AbortJSONError(c, http.StatusUnauthorized, auctionerrors.ErrNoSession, "unauthorized")
			utils.Warn("SessionAuthMiddleware: invalid token", map[string]any{"error": err.Error()})
			return
		}

		if !sessions.Check(claims.UserID, claims.ID) {
			utils.AbortJSONError(c, http.StatusUnauthorized, auctionerrors.ErrNoSession, "unauthorized")
			return
		}

		c.Set(handler.UserIDKey, claims.UserID)
		c.Next()
	}
}
