package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/rtdb"
)

func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		logger.Infof("Request: %s %s, Status: %d, Latency: %v", method, path, status, latency)
	}
}

// AuthMiddleware resolves the bearer token to a user id via the tokens tree
// and stores it on the context. Tokens are opaque; issuing them is outside
// this service.
func AuthMiddleware(store rtdb.Store, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		snap, err := store.Get(c.Request.Context(), rtdb.TokenPath(token))
		if err != nil {
			logger.Errorf("Token lookup failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token lookup failed"})
			return
		}
		var uid string
		if err := snap.Decode(&uid); err != nil || uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("uid", uid)
		c.Next()
	}
}

// userID returns the authenticated user id set by AuthMiddleware.
func userID(c *gin.Context) string {
	return c.GetString("uid")
}
