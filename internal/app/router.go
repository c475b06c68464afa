package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"freightpay/internal/handler"
	"freightpay/internal/middleware"
	internalRedis "freightpay/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	PaymentHandler *handler.PaymentHandler
	SessionHandler *handler.SessionHandler
	SessionStore   internalRedis.SessionStoreInterface
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Session routes.
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", deps.SessionHandler.Create)
			sessions.DELETE("", deps.SessionHandler.Delete)
		}

		// The gateway redirects the user here without a bearer token.
		v1.GET("/payments/return", deps.PaymentHandler.Return)

		// Payment routes (authenticated).
		payments := v1.Group("/payments")
		payments.Use(middleware.AuthMiddleware(deps.SessionStore))
		payments.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
		{
			payments.POST("", deps.PaymentHandler.Initiate)
			payments.POST("/resume", deps.PaymentHandler.Resume)
			payments.GET("/active", deps.PaymentHandler.Active)
			payments.GET("/history", deps.PaymentHandler.History)
		}
	}

	return router
}
