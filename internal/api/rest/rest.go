package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-webhook-engine/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes, all authenticated
	v1 := router.Group("/api/v1", middleware.Auth(authCfg))
	{
		// Subscription endpoints
		v1.POST("/subscriptions", handler.RegisterSubscription)
		v1.GET("/subscriptions", handler.ListSubscriptions)
		v1.GET("/subscriptions/:id", handler.GetSubscription)
		v1.POST("/subscriptions/:id/deactivate", handler.DeactivateSubscription)
		v1.POST("/subscriptions/:id/suppress", handler.SuppressPendingDeliveries)

		// Delivery history endpoints
		v1.GET("/deliveries", handler.ListDeliveries)
		v1.GET("/deliveries/:id", handler.GetDelivery)

		// Event ingestion
		v1.POST("/events", handler.PublishEvent)
	}
}
