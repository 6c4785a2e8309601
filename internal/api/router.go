// Package api contains the HTTP handlers and routing for the payment service.
package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter configures the Gin router with all routes and middleware.
func SetupRouter(handler *Handler, ginMode string) *gin.Engine {
	gin.SetMode(ginMode)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())

	// Health check endpoint (no auth required)
	router.GET("/health", handler.Health)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		payments := v1.Group("/payments")
		{
			payments.POST("", handler.CreatePayment)
			payments.POST("/:payId/capture", handler.CapturePayment)
			payments.POST("/:payId/cancel", handler.CancelPayment)
			payments.POST("/:payId/refund", handler.RefundPayment)
		}

		aliases := v1.Group("/aliases")
		{
			aliases.POST("", handler.CreateAlias)
			aliases.GET("/:alias", handler.GetAlias)
			aliases.DELETE("/:alias", handler.DeleteAlias)
		}

		v1.POST("/checkout", handler.CreateCheckout)
	}

	// Gateway callback endpoint. No auth; the SHASIGN over the posted
	// fields is the authentication.
	router.POST("/callbacks/postfinance", handler.HandleCallback)

	return router
}
