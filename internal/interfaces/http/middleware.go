package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hotelops/requisition-approval/internal/application/service"
	"github.com/hotelops/requisition-approval/internal/metrics"
	"github.com/hotelops/requisition-approval/pkg/utils"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
	headerUserRole  = "X-User-Role"

	ctxRequestID = "request_id"
	ctxUser      = "user"
)

// requestIDMiddleware tags every request with the caller's X-Request-ID or a fresh uuid
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
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

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(ctxRequestID),
		)
	}
}

// metricsMiddleware observes every request under its route template
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// userMiddleware identifies the caller from the X-User-ID and X-User-Role headers
func userMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerUserID)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing " + headerUserID + " header",
			})
			return
		}
		if err := utils.ValidateUserID(id); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   err.Error(),
			})
			return
		}
		c.Set(ctxUser, service.User{
			ID:   id,
			Role: utils.SanitizeString(c.GetHeader(headerUserRole)),
		})
		c.Next()
	}
}

func currentUser(c *gin.Context) service.User {
	if u, ok := c.Get(ctxUser); ok {
		if user, ok := u.(service.User); ok {
			return user
		}
	}
	return service.User{}
}
