package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shuleconnect/backend/internal/handlers"
	"github.com/shuleconnect/backend/internal/middleware"
)

// SetupPaymentRoutes wires the payment endpoints onto the router.
func SetupPaymentRoutes(router *gin.Engine, paymentHandler *handlers.PaymentHandler, jwtSecret string, rateLimiter *middleware.RateLimiter) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Operator-facing diagnostics; responses are sanitized, never raw secrets.
	router.GET("/test-credentials", paymentHandler.TestCredentials)
	router.GET("/config", paymentHandler.GetConfig)

	// Public catalog
	router.GET("/credit-packages", paymentHandler.CreditPackages)

	// Authenticated payment endpoints
	authenticated := router.Group("/")
	authenticated.Use(middleware.AuthMiddleware(jwtSecret))
	{
		authenticated.POST("/request-payment", rateLimiter.IPRateLimiterMiddleware(), paymentHandler.RequestPayment)
		authenticated.GET("/payment-status/:referenceId", paymentHandler.PaymentStatus)
	}
}
