package routes

import (
	"net/http"

	"github.com/AriMathi1/Fitness-app-server/common/auth"
	"github.com/AriMathi1/Fitness-app-server/controllers"
	"github.com/AriMathi1/Fitness-app-server/middleware"
	"github.com/gin-gonic/gin"
)

func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, verifier *auth.TokenVerifier) {
	api := r.Group("/api/payments")

	// Stripe webhook (no auth)
	api.POST("/webhook", pc.StripeWebhook)

	payments := api.Group("")
	payments.Use(middleware.AuthMiddleware(verifier))
	payments.POST("/create-intent", pc.CreateIntent)
	payments.POST("/confirm", pc.Confirm)
	payments.GET("", pc.ListPayments)
	payments.GET("/:id", pc.GetPayment)
	payments.POST("/:id/refund", pc.Refund)
}

func RegisterHealthRoute(r *gin.Engine, serviceName string) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})
}
