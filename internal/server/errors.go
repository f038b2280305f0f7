package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusMessages = map[int]string{
	http.StatusBadRequest:          "Bad request",
	http.StatusNotFound:            "Not found",
	http.StatusMethodNotAllowed:    "Method not allowed",
	http.StatusUnprocessableEntity: "Un-processable Entity",
	http.StatusInternalServerError: "Internal Server Error",
	http.StatusServiceUnavailable:  "Service Unavailable",
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

type authErrorResponse struct {
	Success     bool   `json:"success"`
	Error       int    `json:"error"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func abortWithStatus(c *gin.Context, status int) {
	message, ok := statusMessages[status]
	if !ok {
		message = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, errorResponse{Success: false, Error: status, Message: message})
}

func abortWithAuthError(c *gin.Context, err error) {
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		authErr = auth.ErrMalformedToken
	}
	c.AbortWithStatusJSON(authErr.Status, authErrorResponse{
		Success:     false,
		Error:       authErr.Status,
		Code:        authErr.Code,
		Description: authErr.Description,
	})
}

// storeErrorStatus maps drink store failures onto response statuses.
func storeErrorStatus(err error) int {
	switch {
	case errors.Is(err, drinks.ErrDrinkNotFound):
		return http.StatusNotFound
	case errors.Is(err, drinks.ErrDuplicateTitle), errors.Is(err, drinks.ErrInvalidDrink):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *httpHandler) abortWithStoreError(c *gin.Context, message string, err error) {
	status := storeErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	} else {
		h.logger.Debug(message, zap.Int("status", status), zap.Error(err))
	}
	abortWithStatus(c, status)
}

func recoverWithEnvelope(logger *zap.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		abortWithStatus(c, http.StatusInternalServerError)
	}
}
