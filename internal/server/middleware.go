package server

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	claimsContextKey    = "coffeeshop_claims"
	requestIDContextKey = "coffeeshop_request_id"
	requestIDHeader     = "X-Request-ID"
	maxRequestIDLength  = 128
)

// requirePermission verifies the bearer token and checks that it grants
// permission before the route handler runs.
func (h *httpHandler) requirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			h.logger.Info("authorization header rejected", zap.Error(err), zap.String("request_id", c.GetString(requestIDContextKey)))
			abortWithAuthError(c, err)
			return
		}

		claims, err := h.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			h.logTokenFailure(c, err)
			abortWithAuthError(c, err)
			return
		}

		if err := auth.RequirePermission(claims, permission); err != nil {
			h.logger.Info("permission denied",
				zap.String("subject", claims.Subject),
				zap.String("permission", permission),
				zap.String("request_id", c.GetString(requestIDContextKey)))
			abortWithAuthError(c, err)
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

func (h *httpHandler) logTokenFailure(c *gin.Context, err error) {
	fields := []zap.Field{zap.Error(err), zap.String("request_id", c.GetString(requestIDContextKey))}
	if errors.Is(err, auth.ErrTokenExpired) {
		h.logger.Info("token validation failed", fields...)
		return
	}
	h.logger.Warn("token validation failed", fields...)
}

func claimsFromContext(c *gin.Context) auth.Claims {
	value, ok := c.Get(claimsContextKey)
	if !ok {
		return auth.Claims{}
	}
	claims, _ := value.(auth.Claims)
	return claims
}

// requestID propagates the caller's X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(requestIDContextKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDContextKey)),
		}
		if status >= 500 {
			logger.Warn("http request", fields...)
			return
		}
		logger.Info("http request", fields...)
	}
}
