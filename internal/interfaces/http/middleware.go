package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/event"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	currentUserKey  = "current_user"
)

// requestIDMiddleware tags each request with an ID, reusing the caller's
// X-Request-ID when present. The ID also correlates the events it causes.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(event.ContextWithCorrelationID(c.Request.Context(), id))

		c.Next()
	}
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		keysAndValues := []interface{}{
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKey),
		}
		if user, ok := c.Get(currentUserKey); ok {
			keysAndValues = append(keysAndValues, "user_id", user.(*entity.User).ID)
		}

		s.logger.Info("HTTP request", keysAndValues...)
	}
}

// authMiddleware resolves the bearer token to a stored user
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		userID, err := s.auth.ParseToken(strings.TrimSpace(raw))
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}

		user, err := s.deps.Users.Get(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, entity.ErrUserNotFound) {
				unauthorized(c, "unknown user")
				return
			}
			s.handlers.respondError(c, err)
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// adminOnly rejects authenticated users without the admin role
func adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentUser(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{
				Success: false,
				Error:   "admin role required",
				Code:    CodeForbidden,
			})
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Success: false,
		Error:   message,
		Code:    CodeUnauthenticated,
	})
}

// currentUser returns the user set by authMiddleware
func currentUser(c *gin.Context) *entity.User {
	return c.MustGet(currentUserKey).(*entity.User)
}
