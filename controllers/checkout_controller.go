package controllers

import (
	"net/http"

	apperrors "checkout-service/common/errors"
	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
)

// CheckoutController exposes checkout sessions to the storefront.
type CheckoutController struct {
	checkoutService services.CheckoutService
}

func NewCheckoutController(svc services.CheckoutService) *CheckoutController {
	return &CheckoutController{checkoutService: svc}
}

// StartSession handles POST /api/checkout/sessions
func (cc *CheckoutController) StartSession(c *gin.Context) {
	view, appErr := cc.checkoutService.StartSession(c.Request.Context(), middleware.GetUserID(c))
	respond(c, http.StatusCreated, view, appErr)
}

// GetSession handles GET /api/checkout/sessions/:id
func (cc *CheckoutController) GetSession(c *gin.Context) {
	view, appErr := cc.checkoutService.GetSession(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	respond(c, http.StatusOK, view, appErr)
}

// GetTotals handles GET /api/checkout/sessions/:id/totals
func (cc *CheckoutController) GetTotals(c *gin.Context) {
	totals, appErr := cc.checkoutService.Totals(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	respond(c, http.StatusOK, totals, appErr)
}

// UpdateShipping handles PATCH /api/checkout/sessions/:id/shipping
func (cc *CheckoutController) UpdateShipping(c *gin.Context) {
	var patch models.ShippingInfoPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	view, appErr := cc.checkoutService.UpdateShipping(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), patch)
	respond(c, http.StatusOK, view, appErr)
}

// ResetShipping handles DELETE /api/checkout/sessions/:id/shipping
func (cc *CheckoutController) ResetShipping(c *gin.Context) {
	view, appErr := cc.checkoutService.ResetShipping(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	respond(c, http.StatusOK, view, appErr)
}

// NextStep handles POST /api/checkout/sessions/:id/next
func (cc *CheckoutController) NextStep(c *gin.Context) {
	view, appErr := cc.checkoutService.NextStep(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	respond(c, http.StatusOK, view, appErr)
}

// PrevStep handles POST /api/checkout/sessions/:id/prev
func (cc *CheckoutController) PrevStep(c *gin.Context) {
	view, appErr := cc.checkoutService.PrevStep(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	respond(c, http.StatusOK, view, appErr)
}

// GoToStep handles PUT /api/checkout/sessions/:id/step
func (cc *CheckoutController) GoToStep(c *gin.Context) {
	var req models.GoToStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	view, appErr := cc.checkoutService.GoToStep(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), req.Step)
	respond(c, http.StatusOK, view, appErr)
}

// Abandon handles DELETE /api/checkout/sessions/:id
func (cc *CheckoutController) Abandon(c *gin.Context) {
	if appErr := cc.checkoutService.Abandon(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); appErr != nil {
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}
	c.Status(http.StatusNoContent)
}

func respond(c *gin.Context, status int, body interface{}, appErr *apperrors.Error) {
	if appErr != nil {
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}
	c.JSON(status, body)
}
