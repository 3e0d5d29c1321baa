package controllers

import (
	"net/http"

	"checkout-service/common/logger"
	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// PaymentController serves the gateway order and verification endpoints
// used by the payment widget.
type PaymentController struct {
	paymentService services.PaymentService
	logger         *zap.Logger
}

func NewPaymentController(svc services.PaymentService, logger *zap.Logger) *PaymentController {
	return &PaymentController{paymentService: svc, logger: logger}
}

// CreateOrder handles POST /api/payment/create-order
func (pc *PaymentController) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.For(c, pc.logger).Debug("Rejected create-order body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": services.MsgInvalidAmount})
		return
	}

	result, appErr := pc.paymentService.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		Amount:            req.Amount,
		IdempotencyKey:    c.GetHeader(IdempotencyKeyHeader),
		UserID:            middleware.GetUserID(c),
		CheckoutSessionID: req.CheckoutSessionID,
	})
	if appErr != nil {
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	c.Header(IdempotencyKeyHeader, result.IdempotencyKey)
	c.JSON(http.StatusOK, result.Order)
}

// VerifyPayment handles POST /api/payment/verify
func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.For(c, pc.logger).Warn("Unreadable verify body", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": services.MsgInternalServerError})
		return
	}

	ok := pc.paymentService.VerifyPayment(c.Request.Context(), services.VerifyPaymentInput{
		VerifyPaymentRequest: req,
		UserID:               middleware.GetUserID(c),
	})
	if !ok {
		c.JSON(http.StatusBadRequest, models.VerifyPaymentResponse{Success: false, Message: services.MsgInvalidSignature})
		return
	}
	c.JSON(http.StatusOK, models.VerifyPaymentResponse{Success: true, Message: services.MsgPaymentVerified})
}

// GetConfig handles GET /api/payment/config
func (pc *PaymentController) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, pc.paymentService.Config())
}
