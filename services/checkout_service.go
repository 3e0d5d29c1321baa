package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	apperrors "checkout-service/common/errors"
	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"
	"checkout-service/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartSnapshotProvider reads the current cart of a user.
type CartSnapshotProvider interface {
	Snapshot(ctx context.Context, userID string) (*models.CartSnapshot, error)
}

// CheckoutService manages checkout sessions: the active step, the shipping
// info collected on step 2, and the totals shown on every step.
type CheckoutService interface {
	StartSession(ctx context.Context, userID string) (*models.SessionView, *apperrors.Error)
	GetSession(ctx context.Context, userID, sessionID string) (*models.SessionView, *apperrors.Error)
	Totals(ctx context.Context, userID, sessionID string) (*models.OrderTotals, *apperrors.Error)
	UpdateShipping(ctx context.Context, userID, sessionID string, patch models.ShippingInfoPatch) (*models.SessionView, *apperrors.Error)
	ResetShipping(ctx context.Context, userID, sessionID string) (*models.SessionView, *apperrors.Error)
	NextStep(ctx context.Context, userID, sessionID string) (*models.SessionView, *apperrors.Error)
	PrevStep(ctx context.Context, userID, sessionID string) (*models.SessionView, *apperrors.Error)
	GoToStep(ctx context.Context, userID, sessionID string, step int) (*models.SessionView, *apperrors.Error)
	Abandon(ctx context.Context, userID, sessionID string) *apperrors.Error
	Complete(ctx context.Context, userID, sessionID string) error
}

type checkoutServiceImpl struct {
	sessions repository.SessionRepository
	carts    CartSnapshotProvider
	policy   models.ShippingPolicy
	validate *validator.Validate
	metrics  awspkg.MetricsRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewCheckoutService(
	sessions repository.SessionRepository,
	carts CartSnapshotProvider,
	policy models.ShippingPolicy,
	metrics awspkg.MetricsRecorder,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		sessions: sessions,
		carts:    carts,
		policy:   policy,
		validate: newShippingValidator(),
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// newShippingValidator reports field errors by their JSON names.
func newShippingValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *checkoutServiceImpl) StartSession(ctx context.Context, userID string) (*models.SessionView, *apperrors.Error) {
	now := s.now().UTC()
	session := &models.CheckoutSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Step:      models.StepCart,
		Shipping:  models.ShippingInfo{AddressType: models.AddressTypeHome},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Error("Failed to save checkout session", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.Internal("Failed to start checkout", err)
	}

	s.logger.Info("Checkout session started", zap.String("session_id", session.ID), zap.String("user_id", userID))
	s.recordCount(ctx, awspkg.MetricCheckoutSessionsStarted)
	return s.view(ctx, session)
}

func (s *checkoutServiceImpl) GetSession(ctx context.Context, userID, sessionID string) (*models.SessionView, *apperrors.Error) {
	session, appErr := s.load(ctx, userID, sessionID)
	if appErr != nil {
		return nil, appErr
	}
	return s.view(ctx, session)
}

// Totals is recomputed from the live cart on every call.
func (s *checkoutServiceImpl) Totals(ctx context.Context, userID, sessionID string) (*models.OrderTotals, *apperrors.Error) {
	if _, appErr := s.load(ctx, userID, sessionID); appErr != nil {
		return nil, appErr
	}
	return s.totals(ctx, userID)
}

func (s *checkoutServiceImpl) UpdateShipping(ctx context.Context, userID, sessionID string, patch models.ShippingInfoPatch) (*models.SessionView, *apperrors.Error) {
	return s.mutate(ctx, userID, sessionID, func(session *models.CheckoutSession) *apperrors.Error {
		applyShippingPatch(&session.Shipping, patch)
		return nil
	})
}

func (s *checkoutServiceImpl) ResetShipping(ctx context.Context, userID, sessionID string) (*models.SessionView, *apperrors.Error) {
	return s.mutate(ctx, userID, sessionID, func(session *models.CheckoutSession) *apperrors.Error {
		session.Shipping = models.ShippingInfo{AddressType: models.AddressTypeHome}
		return nil
	})
}

// NextStep advances one step. Leaving the shipping step requires complete
// shipping info; leaving the cart step requires a non-empty cart.
func (s *checkoutServiceImpl) NextStep(ctx context.Context, userID, sessionID string) (*models.SessionView, *apperrors.Error) {
	return s.mutate(ctx, userID, sessionID, func(session *models.CheckoutSession) *apperrors.Error {
		steps := NewStepController(session.Step)
		next := steps.NextStep()
		if appErr := s.checkEntry(ctx, userID, session, next); appErr != nil {
			return appErr
		}
		session.Step = next
		return nil
	})
}

func (s *checkoutServiceImpl) PrevStep(ctx context.Context, userID, sessionID string) (*models.SessionView, *apperrors.Error) {
	return s.mutate(ctx, userID, sessionID, func(session *models.CheckoutSession) *apperrors.Error {
		steps := NewStepController(session.Step)
		session.Step = steps.PrevStep()
		return nil
	})
}

func (s *checkoutServiceImpl) GoToStep(ctx context.Context, userID, sessionID string, step int) (*models.SessionView, *apperrors.Error) {
	return s.mutate(ctx, userID, sessionID, func(session *models.CheckoutSession) *apperrors.Error {
		steps := NewStepController(session.Step)
		if err := steps.GoToStep(step); err != nil {
			return apperrors.BadRequest(fmt.Sprintf("Step must be between %d and %d", models.StepCart, models.StepPayment), err)
		}
		if appErr := s.checkEntry(ctx, userID, session, steps.Step()); appErr != nil {
			return appErr
		}
		session.Step = steps.Step()
		return nil
	})
}

// checkEntry guards moving forward to target: every step after the cart
// needs a non-empty cart, and the payment step needs complete shipping
// info. Moving back or staying put is always allowed.
func (s *checkoutServiceImpl) checkEntry(ctx context.Context, userID string, session *models.CheckoutSession, target models.Step) *apperrors.Error {
	if target <= session.Step {
		return nil
	}
	if target >= models.StepShipping {
		cart, err := s.carts.Snapshot(ctx, userID)
		if err != nil {
			s.logger.Error("Failed to read cart", zap.String("user_id", userID), zap.Error(err))
			return apperrors.Internal("Failed to read cart", err)
		}
		if cart.IsEmpty() {
			return apperrors.BadRequest("Cart is empty", nil)
		}
	}
	if target >= models.StepPayment {
		return s.validateShipping(session.Shipping)
	}
	return nil
}

func (s *checkoutServiceImpl) Abandon(ctx context.Context, userID, sessionID string) *apperrors.Error {
	if _, appErr := s.load(ctx, userID, sessionID); appErr != nil {
		return appErr
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Error("Failed to delete checkout session", zap.String("session_id", sessionID), zap.Error(err))
		return apperrors.Internal("Failed to abandon checkout", err)
	}
	s.logger.Info("Checkout session abandoned", zap.String("session_id", sessionID))
	return nil
}

// Complete ends a paid checkout: the shipping info is dropped together with
// the session. A session owned by another user is left alone.
func (s *checkoutServiceImpl) Complete(ctx context.Context, userID, sessionID string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.UserID != "" && session.UserID != userID {
		return fmt.Errorf("checkout session %s is owned by another user", sessionID)
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("Checkout session completed", zap.String("session_id", sessionID))
	s.recordCount(ctx, awspkg.MetricCheckoutSessionsCompleted)
	return nil
}

func (s *checkoutServiceImpl) load(ctx context.Context, userID, sessionID string) (*models.CheckoutSession, *apperrors.Error) {
	session, err := s.sessions.Get(ctx, sessionID)
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		return nil, apperrors.NotFound("Checkout session not found", err)
	case errors.Is(err, repository.ErrUnsupportedSessionVersion):
		s.logger.Warn("Checkout session has unsupported version", zap.String("session_id", sessionID), zap.Error(err))
		return nil, apperrors.Conflict("Checkout session cannot be read by this version", err)
	case err != nil:
		s.logger.Error("Failed to load checkout session", zap.String("session_id", sessionID), zap.Error(err))
		return nil, apperrors.Internal("Failed to load checkout session", err)
	}

	if session.UserID == "" {
		// sessions stored before ownership was recorded go to the first caller
		session.UserID = userID
	} else if session.UserID != userID {
		return nil, apperrors.Forbidden("Checkout session belongs to another user")
	}
	return session, nil
}

func (s *checkoutServiceImpl) mutate(ctx context.Context, userID, sessionID string, fn func(*models.CheckoutSession) *apperrors.Error) (*models.SessionView, *apperrors.Error) {
	session, appErr := s.load(ctx, userID, sessionID)
	if appErr != nil {
		return nil, appErr
	}
	if appErr := fn(session); appErr != nil {
		return nil, appErr
	}

	session.UpdatedAt = s.now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Error("Failed to save checkout session", zap.String("session_id", sessionID), zap.Error(err))
		return nil, apperrors.Internal("Failed to save checkout session", err)
	}
	return s.view(ctx, session)
}

func (s *checkoutServiceImpl) view(ctx context.Context, session *models.CheckoutSession) (*models.SessionView, *apperrors.Error) {
	totals, appErr := s.totals(ctx, session.UserID)
	if appErr != nil {
		return nil, appErr
	}
	return &models.SessionView{Session: session, StepName: session.Step.String(), Totals: totals}, nil
}

func (s *checkoutServiceImpl) totals(ctx context.Context, userID string) (*models.OrderTotals, *apperrors.Error) {
	cart, err := s.carts.Snapshot(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to read cart", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.Internal("Failed to read cart", err)
	}
	totals := CalculateTotals(cart, s.policy)
	return &totals, nil
}

// validateShipping lists every missing or malformed field in the message.
func (s *checkoutServiceImpl) validateShipping(info models.ShippingInfo) *apperrors.Error {
	err := s.validate.Struct(info)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Internal("Failed to validate shipping information", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return apperrors.BadRequest("Shipping information incomplete: "+strings.Join(fields, ", "), err)
}

func applyShippingPatch(info *models.ShippingInfo, patch models.ShippingInfoPatch) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&info.Name, patch.Name)
	set(&info.Email, patch.Email)
	set(&info.Phone, patch.Phone)
	set(&info.Address, patch.Address)
	set(&info.City, patch.City)
	set(&info.State, patch.State)
	set(&info.Pincode, patch.Pincode)
	set(&info.AddressType, patch.AddressType)
	if info.AddressType == "" {
		info.AddressType = models.AddressTypeHome
	}
}

func (s *checkoutServiceImpl) recordCount(ctx context.Context, metric string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	if err := s.metrics.RecordCount(ctx, metric, map[string]string{"Service": metricsServiceName}); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}
