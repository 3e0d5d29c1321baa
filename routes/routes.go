package routes

import (
	"checkout-service/common/auth"
	commonmw "checkout-service/common/middleware"
	"checkout-service/controllers"
	"checkout-service/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterPaymentRoutes mounts the payment widget endpoints. They are open
// to guests; the user is recorded when the caller is signed in.
func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, parser *auth.TokenParser, limiter *commonmw.RateLimiter) {
	payment := r.Group("/api/payment")
	payment.Use(middleware.OptionalAuth(parser))
	if limiter != nil {
		payment.Use(commonmw.RateLimitMiddleware(limiter))
	}

	payment.GET("/config", pc.GetConfig)
	payment.POST("/create-order", pc.CreateOrder)
	payment.POST("/verify", pc.VerifyPayment)
}

// RegisterCheckoutRoutes mounts the checkout session endpoints.
func RegisterCheckoutRoutes(r *gin.Engine, cc *controllers.CheckoutController, parser *auth.TokenParser) {
	sessions := r.Group("/api/checkout/sessions")
	sessions.Use(middleware.AuthMiddleware(parser))

	sessions.POST("", cc.StartSession)
	sessions.GET("/:id", cc.GetSession)
	sessions.DELETE("/:id", cc.Abandon)
	sessions.GET("/:id/totals", cc.GetTotals)

	sessions.PATCH("/:id/shipping", cc.UpdateShipping)
	sessions.DELETE("/:id/shipping", cc.ResetShipping)

	sessions.POST("/:id/next", cc.NextStep)
	sessions.POST("/:id/prev", cc.PrevStep)
	sessions.PUT("/:id/step", cc.GoToStep)
}
