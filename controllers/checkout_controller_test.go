package controllers_test

import (
	"context"
	"net/http"
	"testing"

	apperrors "checkout-service/common/errors"
	"checkout-service/controllers"
	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCheckoutService struct {
	services.CheckoutService

	startFn    func(ctx context.Context, userID string) (*models.SessionView, *apperrors.Error)
	getFn      func(ctx context.Context, userID, id string) (*models.SessionView, *apperrors.Error)
	totalsFn   func(ctx context.Context, userID, id string) (*models.OrderTotals, *apperrors.Error)
	updateFn   func(ctx context.Context, userID, id string, patch models.ShippingInfoPatch) (*models.SessionView, *apperrors.Error)
	resetFn    func(ctx context.Context, userID, id string) (*models.SessionView, *apperrors.Error)
	nextFn     func(ctx context.Context, userID, id string) (*models.SessionView, *apperrors.Error)
	prevFn     func(ctx context.Context, userID, id string) (*models.SessionView, *apperrors.Error)
	goToStepFn func(ctx context.Context, userID, id string, step int) (*models.SessionView, *apperrors.Error)
	abandonFn  func(ctx context.Context, userID, id string) *apperrors.Error
}

func (m *mockCheckoutService) StartSession(ctx context.Context, userID string) (*models.SessionView, *apperrors.Error) {
	return m.startFn(ctx, userID)
}
func (m *mockCheckoutService) GetSession(ctx context.Context, userID, id string) (*models.SessionView, *apperrors.Error) {
	return m.getFn(ctx, userID, id)
}
func (m *mockCheckoutService) Totals(ctx context.Context, userID, id string) (*models.OrderTotals, *apperrors.Error) {
	return m.totalsFn(ctx, userID, id)
}
func (m *mockCheckoutService) UpdateShipping(ctx context.Context, userID, id string, patch models.ShippingInfoPatch) (*models.SessionView, *apperrors.Error) {
	return m.updateFn(ctx, userID, id, patch)
}
func (m *mockCheckoutService) ResetShipping(ctx context.Context, userID, id string) (*models.SessionView, *apperrors.Error) {
	return m.resetFn(ctx, userID, id)
}
func (m *mockCheckoutService) NextStep(ctx context.Context, userID, id string) (*models.SessionView, *apperrors.Error) {
	return m.nextFn(ctx, userID, id)
}
func (m *mockCheckoutService) PrevStep(ctx context.Context, userID, id string) (*models.SessionView, *apperrors.Error) {
	return m.prevFn(ctx, userID, id)
}
func (m *mockCheckoutService) GoToStep(ctx context.Context, userID, id string, step int) (*models.SessionView, *apperrors.Error) {
	return m.goToStepFn(ctx, userID, id, step)
}
func (m *mockCheckoutService) Abandon(ctx context.Context, userID, id string) *apperrors.Error {
	return m.abandonFn(ctx, userID, id)
}

func setupCheckoutRouter(svc services.CheckoutService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cc := controllers.NewCheckoutController(svc)

	s := r.Group("/api/checkout/sessions", middleware.AuthMiddleware(nil))
	s.POST("", cc.StartSession)
	s.GET("/:id", cc.GetSession)
	s.DELETE("/:id", cc.Abandon)
	s.GET("/:id/totals", cc.GetTotals)
	s.PATCH("/:id/shipping", cc.UpdateShipping)
	s.DELETE("/:id/shipping", cc.ResetShipping)
	s.POST("/:id/next", cc.NextStep)
	s.POST("/:id/prev", cc.PrevStep)
	s.PUT("/:id/step", cc.GoToStep)
	return r
}

var asUser1 = map[string]string{"X-User-ID": "user-1"}

func sessionView(step models.Step) *models.SessionView {
	return &models.SessionView{
		Session:  &models.CheckoutSession{ID: "sess-1", UserID: "user-1", Step: step},
		StepName: step.String(),
		Totals:   &models.OrderTotals{Subtotal: 10000, ShippingFee: 1500, Total: 11500, Currency: "INR", FreeShippingThreshold: 20000},
	}
}

func TestStartSession_RequiresUser(t *testing.T) {
	r := setupCheckoutRouter(&mockCheckoutService{})

	w := doJSON(r, http.MethodPost, "/api/checkout/sessions", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStartSession_Created(t *testing.T) {
	svc := &mockCheckoutService{startFn: func(_ context.Context, userID string) (*models.SessionView, *apperrors.Error) {
		assert.Equal(t, "user-1", userID)
		return sessionView(models.StepCart), nil
	}}
	r := setupCheckoutRouter(svc)

	w := doJSON(r, http.MethodPost, "/api/checkout/sessions", "", asUser1)

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "cart", body["step_name"])
	totals := body["totals"].(map[string]interface{})
	assert.Equal(t, float64(11500), totals["total"])
}

func TestGetSession_ServiceError(t *testing.T) {
	svc := &mockCheckoutService{getFn: func(context.Context, string, string) (*models.SessionView, *apperrors.Error) {
		return nil, apperrors.Forbidden("Checkout session belongs to another user")
	}}
	r := setupCheckoutRouter(svc)

	w := doJSON(r, http.MethodGet, "/api/checkout/sessions/sess-1", "", asUser1)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Checkout session belongs to another user", decodeBody(t, w)["error"])
}

func TestGetTotals(t *testing.T) {
	svc := &mockCheckoutService{totalsFn: func(_ context.Context, _, id string) (*models.OrderTotals, *apperrors.Error) {
		assert.Equal(t, "sess-1", id)
		return sessionView(models.StepCart).Totals, nil
	}}
	r := setupCheckoutRouter(svc)

	w := doJSON(r, http.MethodGet, "/api/checkout/sessions/sess-1/totals", "", asUser1)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subtotal":10000,"shipping_fee":1500,"total":11500,"currency":"INR","free_shipping_threshold":20000}`, w.Body.String())
}

func TestUpdateShipping_PassesOnlySentFields(t *testing.T) {
	var got models.ShippingInfoPatch
	svc := &mockCheckoutService{updateFn: func(_ context.Context, _, _ string, patch models.ShippingInfoPatch) (*models.SessionView, *apperrors.Error) {
		got = patch
		return sessionView(models.StepShipping), nil
	}}
	r := setupCheckoutRouter(svc)

	w := doJSON(r, http.MethodPatch, "/api/checkout/sessions/sess-1/shipping", `{"name":"Asha","pincode":"560001"}`, asUser1)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got.Name)
	assert.Equal(t, "Asha", *got.Name)
	require.NotNil(t, got.Pincode)
	assert.Nil(t, got.Email)
	assert.Nil(t, got.AddressType)
}

func TestUpdateShipping_RejectsUnknownAddressType(t *testing.T) {
	r := setupCheckoutRouter(&mockCheckoutService{})

	w := doJSON(r, http.MethodPatch, "/api/checkout/sessions/sess-1/shipping", `{"address_type":"castle"}`, asUser1)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetShipping(t *testing.T) {
	svc := &mockCheckoutService{resetFn: func(context.Context, string, string) (*models.SessionView, *apperrors.Error) {
		return sessionView(models.StepShipping), nil
	}}
	r := setupCheckoutRouter(svc)

	w := doJSON(r, http.MethodDelete, "/api/checkout/sessions/sess-1/shipping", "", asUser1)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNextAndPrevStep(t *testing.T) {
	svc := &mockCheckoutService{
		nextFn: func(context.Context, string, string) (*models.SessionView, *apperrors.Error) {
			return sessionView(models.StepShipping), nil
		},
		prevFn: func(context.Context, string, string) (*models.SessionView, *apperrors.Error) {
			return sessionView(models.StepCart), nil
		},
	}
	r := setupCheckoutRouter(svc)

	w := doJSON(r, http.MethodPost, "/api/checkout/sessions/sess-1/next", "", asUser1)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "shipping", decodeBody(t, w)["step_name"])

	w = doJSON(r, http.MethodPost, "/api/checkout/sessions/sess-1/prev", "", asUser1)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cart", decodeBody(t, w)["step_name"])
}

func TestNextStep_IncompleteShipping(t *testing.T) {
	svc := &mockCheckoutService{nextFn: func(context.Context, string, string) (*models.SessionView, *apperrors.Error) {
		return nil, apperrors.BadRequest("Shipping information incomplete: name, email", nil)
	}}
	r := setupCheckoutRouter(svc)

	w := doJSON(r, http.MethodPost, "/api/checkout/sessions/sess-1/next", "", asUser1)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Shipping information incomplete: name, email", decodeBody(t, w)["error"])
}

func TestGoToStep(t *testing.T) {
	var gotStep int
	svc := &mockCheckoutService{goToStepFn: func(_ context.Context, _, _ string, step int) (*models.SessionView, *apperrors.Error) {
		gotStep = step
		return sessionView(models.StepPayment), nil
	}}
	r := setupCheckoutRouter(svc)

	w := doJSON(r, http.MethodPut, "/api/checkout/sessions/sess-1/step", `{"step":3}`, asUser1)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, gotStep)

	w = doJSON(r, http.MethodPut, "/api/checkout/sessions/sess-1/step", `{}`, asUser1)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAbandon(t *testing.T) {
	svc := &mockCheckoutService{abandonFn: func(context.Context, string, string) *apperrors.Error { return nil }}
	r := setupCheckoutRouter(svc)

	w := doJSON(r, http.MethodDelete, "/api/checkout/sessions/sess-1", "", asUser1)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAbandon_NotFound(t *testing.T) {
	svc := &mockCheckoutService{abandonFn: func(context.Context, string, string) *apperrors.Error {
		return apperrors.NotFound("Checkout session not found", nil)
	}}
	r := setupCheckoutRouter(svc)

	w := doJSON(r, http.MethodDelete, "/api/checkout/sessions/sess-1", "", asUser1)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
