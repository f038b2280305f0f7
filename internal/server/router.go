package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Permissions required by the protected drink routes.
const (
	PermissionGetDrinksDetail = "get:drinks-detail"
	PermissionPostDrinks      = "post:drinks"
	PermissionPatchDrinks     = "patch:drinks"
	PermissionDeleteDrinks    = "delete:drinks"
)

var (
	errMissingVerifier   = errors.New("token verifier dependency required")
	errMissingDrinkStore = errors.New("drink store dependency required")
)

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Claims, error)
}

type DrinkStore interface {
	ListAll(ctx context.Context) ([]drinks.Drink, error)
	Insert(ctx context.Context, title string, recipe drinks.Recipe) (drinks.Drink, error)
	FindByID(ctx context.Context, id uint) (drinks.Drink, error)
	Update(ctx context.Context, drink drinks.Drink) (drinks.Drink, error)
	Delete(ctx context.Context, id uint) error
	Ping(ctx context.Context) error
}

// Dependencies is the application context shared by every request.
type Dependencies struct {
	Verifier        TokenVerifier
	Drinks          DrinkStore
	Logger          *zap.Logger
	AllowedOrigins  []string
	MetricsRegistry *prometheus.Registry
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Verifier == nil {
		return nil, errMissingVerifier
	}
	if deps.Drinks == nil {
		return nil, errMissingDrinkStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := deps.MetricsRegistry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics, err := newRequestMetrics(registry)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(requestID())
	router.Use(accessLog(logger))
	router.Use(metrics.middleware())
	router.Use(gin.CustomRecovery(recoverWithEnvelope(logger)))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.NoRoute(func(c *gin.Context) {
		abortWithStatus(c, http.StatusNotFound)
	})
	router.NoMethod(func(c *gin.Context) {
		abortWithStatus(c, http.StatusMethodNotAllowed)
	})

	handler := &httpHandler{
		verifier: deps.Verifier,
		drinks:   deps.Drinks,
		logger:   logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/drinks", handler.handleListDrinks)
	router.GET("/drinks-detail", handler.requirePermission(PermissionGetDrinksDetail), handler.handleListDrinkDetails)
	router.POST("/drinks", handler.requirePermission(PermissionPostDrinks), handler.handleCreateDrink)
	router.PATCH("/drinks/:id", handler.requirePermission(PermissionPatchDrinks), handler.handleUpdateDrink)
	router.DELETE("/drinks/:id", handler.requirePermission(PermissionDeleteDrinks), handler.handleDeleteDrink)

	return router, nil
}

type httpHandler struct {
	verifier TokenVerifier
	drinks   DrinkStore
	logger   *zap.Logger
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || containsWildcard(allowedOrigins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowCredentials = true
	}
	return cors.New(config)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	if err := h.drinks.Ping(c.Request.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		abortWithStatus(c, http.StatusServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
}
