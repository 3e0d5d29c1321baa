package services

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	apperrors "checkout-service/common/errors"
	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"
	"checkout-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Public messages. Gateway and database causes are logged, never returned.
const (
	MsgInvalidAmount        = "Invalid amount"
	MsgOrderCreationFailed  = "Error creating order"
	MsgOrderInProgress      = "Order creation already in progress"
	MsgIdempotencyKeyReused = "Idempotency key already used for a different amount"
	MsgPaymentVerified      = "Payment verified successfully"
	MsgInvalidSignature     = "Invalid signature"
	MsgInternalServerError  = "Internal Server Error"
)

const (
	publishTimeout     = 5 * time.Second
	metricsServiceName = "checkout-service"
)

var (
	hundred       = decimal.NewFromInt(100)
	maxMinorUnits = decimal.NewFromInt(math.MaxInt64)
)

// ErrAmountOutOfRange is returned for amounts whose paise value does not
// fit in an int64.
var ErrAmountOutOfRange = errors.New("amount out of range")

// ToMinorUnits converts a major-unit amount to paise, rounding half up.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Mul(hundred).Round(0)
	if minor.Abs().GreaterThan(maxMinorUnits) {
		return 0, ErrAmountOutOfRange
	}
	return minor.IntPart(), nil
}

// NewReceipt returns a unique receipt reference of at most 40 characters.
func NewReceipt() string {
	return "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SessionCompleter closes a checkout session once its payment is verified.
type SessionCompleter interface {
	Complete(ctx context.Context, userID, sessionID string) error
}

type CreateOrderInput struct {
	Amount            decimal.Decimal
	IdempotencyKey    string
	UserID            string
	CheckoutSessionID string
}

type CreateOrderResult struct {
	Order          models.CreateOrderResponse
	IdempotencyKey string
	// Replayed is true when a stored order was returned without calling
	// the gateway.
	Replayed bool
}

type VerifyPaymentInput struct {
	models.VerifyPaymentRequest
	UserID string
}

// PaymentService creates gateway orders and verifies completed payments.
type PaymentService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, *apperrors.Error)
	VerifyPayment(ctx context.Context, in VerifyPaymentInput) bool
	Config() models.PaymentConfigResponse
}

type PaymentServiceConfig struct {
	KeyID    string
	Currency string
}

type paymentServiceImpl struct {
	cfg      PaymentServiceConfig
	orders   repository.PaymentOrderRepository
	gateway  PaymentGateway
	verifier *SignatureVerifier
	events   PaymentEventPublisher
	sessions SessionCompleter
	metrics  awspkg.MetricsRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewPaymentService(
	cfg PaymentServiceConfig,
	orders repository.PaymentOrderRepository,
	gateway PaymentGateway,
	verifier *SignatureVerifier,
	events PaymentEventPublisher,
	sessions SessionCompleter,
	metrics awspkg.MetricsRecorder,
	logger *zap.Logger,
) PaymentService {
	if events == nil {
		events = NoopEventPublisher{}
	}
	return &paymentServiceImpl{
		cfg:      cfg,
		orders:   orders,
		gateway:  gateway,
		verifier: verifier,
		events:   events,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *paymentServiceImpl) Config() models.PaymentConfigResponse {
	return models.PaymentConfigResponse{KeyID: s.cfg.KeyID, Currency: s.cfg.Currency}
}

// CreateOrder creates a gateway order for the amount. A ledger row is
// written in state creating before the gateway is called, so a second
// request with the same idempotency key never creates a second order.
func (s *paymentServiceImpl) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, *apperrors.Error) {
	if !in.Amount.IsPositive() {
		return nil, apperrors.BadRequest(MsgInvalidAmount, nil)
	}
	amount, err := ToMinorUnits(in.Amount)
	if err != nil || amount <= 0 {
		return nil, apperrors.BadRequest(MsgInvalidAmount, nil)
	}

	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	log := s.logger.With(zap.String("idempotency_key", key), zap.Int64("amount", amount))

	order, appErr := s.claimOrder(ctx, key, amount, in, log)
	if appErr != nil {
		return nil, appErr
	}
	if order.Status == models.PaymentOrderCreated || order.Status == models.PaymentOrderPaid {
		log.Info("Returning stored payment order", zap.String("gateway_order_id", deref(order.GatewayOrderID)))
		return &CreateOrderResult{
			Order:          models.CreateOrderResponse{ID: deref(order.GatewayOrderID), Currency: order.Currency, Amount: order.Amount},
			IdempotencyKey: key,
			Replayed:       true,
		}, nil
	}

	start := s.now()
	gwOrder, err := s.gateway.CreateOrder(ctx, CreateGatewayOrderInput{
		Amount:   amount,
		Currency: s.cfg.Currency,
		Receipt:  order.Receipt,
		Notes:    map[string]string{"payment_order_id": order.ID.String()},
	})
	s.recordLatency(ctx, awspkg.MetricGatewayLatency, s.now().Sub(start))
	if err != nil {
		log.Error("Gateway order creation failed", zap.String("receipt", order.Receipt), zap.Error(err))
		// a fresh context so a cancelled request still records the failure
		markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if markErr := s.orders.MarkFailed(markCtx, order.ID, err.Error()); markErr != nil {
			log.Error("Failed to mark payment order failed", zap.Error(markErr))
		}
		s.recordCount(ctx, awspkg.MetricPaymentOrderFailures)
		return nil, apperrors.Internal(MsgOrderCreationFailed, err)
	}

	if err := s.orders.MarkCreated(ctx, order.ID, gwOrder.ID); err != nil {
		log.Error("Failed to record gateway order id",
			zap.String("payment_order_id", order.ID.String()),
			zap.String("gateway_order_id", gwOrder.ID),
			zap.Error(err),
		)
	}

	log.Info("Payment order created", zap.String("gateway_order_id", gwOrder.ID))
	s.recordCount(ctx, awspkg.MetricPaymentOrdersCreated)
	s.publish(ctx, models.PaymentEvent{
		Type:              models.EventPaymentOrderCreated,
		PaymentOrderID:    order.ID.String(),
		GatewayOrderID:    gwOrder.ID,
		UserID:            in.UserID,
		CheckoutSessionID: in.CheckoutSessionID,
		Amount:            amount,
		Currency:          s.cfg.Currency,
	})

	currency := gwOrder.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	gwAmount := gwOrder.Amount
	if gwAmount == 0 {
		gwAmount = amount
	}
	return &CreateOrderResult{
		Order:          models.CreateOrderResponse{ID: gwOrder.ID, Currency: currency, Amount: gwAmount},
		IdempotencyKey: key,
	}, nil
}

// claimOrder returns the ledger row for key, creating it when absent. A row
// returned in state creating belongs to this request.
func (s *paymentServiceImpl) claimOrder(ctx context.Context, key string, amount int64, in CreateOrderInput, log *zap.Logger) (*models.PaymentOrder, *apperrors.Error) {
	existing, err := s.orders.FindByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		if existing.Amount != amount {
			return nil, apperrors.New(http.StatusUnprocessableEntity, MsgIdempotencyKeyReused, nil)
		}
		switch existing.Status {
		case models.PaymentOrderCreated, models.PaymentOrderPaid:
			return existing, nil
		case models.PaymentOrderFailed:
			if err := s.orders.MarkRetrying(ctx, existing.ID); err != nil {
				if errors.Is(err, repository.ErrPaymentOrderBusy) {
					return nil, apperrors.Conflict(MsgOrderInProgress, err)
				}
				log.Error("Failed to reopen payment order", zap.Error(err))
				return nil, apperrors.Internal(MsgOrderCreationFailed, err)
			}
			existing.Status = models.PaymentOrderCreating
			log.Info("Retrying failed payment order", zap.String("payment_order_id", existing.ID.String()))
			return existing, nil
		default:
			return nil, apperrors.Conflict(MsgOrderInProgress, nil)
		}

	case errors.Is(err, repository.ErrPaymentOrderNotFound):
		order := &models.PaymentOrder{
			ID:                uuid.New(),
			IdempotencyKey:    key,
			Receipt:           NewReceipt(),
			UserID:            optional(in.UserID),
			CheckoutSessionID: optional(in.CheckoutSessionID),
			Amount:            amount,
			Currency:          s.cfg.Currency,
			Status:            models.PaymentOrderCreating,
		}
		if err := s.orders.Create(ctx, order); err != nil {
			if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
				return nil, apperrors.Conflict(MsgOrderInProgress, err)
			}
			log.Error("Failed to store payment order", zap.Error(err))
			return nil, apperrors.Internal(MsgOrderCreationFailed, err)
		}
		return order, nil

	default:
		log.Error("Failed to look up payment order", zap.Error(err))
		return nil, apperrors.Internal(MsgOrderCreationFailed, err)
	}
}

// VerifyPayment checks the callback signature. On a match the ledger row is
// marked paid and the checkout session completed; those follow-ups are
// logged on failure and never change the result.
func (s *paymentServiceImpl) VerifyPayment(ctx context.Context, in VerifyPaymentInput) bool {
	log := s.logger.With(
		zap.String("gateway_order_id", in.GatewayOrderID),
		zap.String("gateway_payment_id", in.GatewayPaymentID),
	)

	if !s.verifier.Verify(in.GatewayOrderID, in.GatewayPaymentID, in.GatewaySignature) {
		log.Warn("Payment signature rejected")
		s.recordCount(ctx, awspkg.MetricPaymentSignatureRejected)
		s.publish(ctx, models.PaymentEvent{
			Type:             models.EventPaymentSignatureRejected,
			GatewayOrderID:   in.GatewayOrderID,
			GatewayPaymentID: in.GatewayPaymentID,
			UserID:           in.UserID,
		})
		return false
	}

	event := models.PaymentEvent{
		Type:              models.EventPaymentVerified,
		GatewayOrderID:    in.GatewayOrderID,
		GatewayPaymentID:  in.GatewayPaymentID,
		UserID:            in.UserID,
		CheckoutSessionID: in.CheckoutSessionID,
	}

	marked, err := s.orders.MarkPaid(ctx, in.GatewayOrderID, in.GatewayPaymentID, s.now().UTC())
	if err != nil {
		log.Error("Failed to mark payment order paid", zap.Error(err))
	} else if !marked {
		log.Warn("No unpaid payment order for verified payment")
	}
	if order, err := s.orders.FindByGatewayOrderID(ctx, in.GatewayOrderID); err == nil {
		event.PaymentOrderID = order.ID.String()
		event.Amount = order.Amount
		event.Currency = order.Currency
		if event.CheckoutSessionID == "" {
			event.CheckoutSessionID = deref(order.CheckoutSessionID)
		}
		if event.UserID == "" {
			event.UserID = deref(order.UserID)
		}
	}

	log.Info("Payment verified")
	s.recordCount(ctx, awspkg.MetricPaymentSucceeded)
	s.publish(ctx, event)

	if event.CheckoutSessionID != "" && s.sessions != nil {
		if err := s.sessions.Complete(ctx, event.UserID, event.CheckoutSessionID); err != nil {
			log.Warn("Failed to complete checkout session",
				zap.String("checkout_session_id", event.CheckoutSessionID),
				zap.Error(err),
			)
		}
	}
	return true
}

func (s *paymentServiceImpl) publish(ctx context.Context, event models.PaymentEvent) {
	event.Timestamp = s.now().UTC()
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.PublishPaymentEvent(pubCtx, event); err != nil {
		s.logger.Warn("Failed to publish payment event",
			zap.String("event_type", event.Type),
			zap.String("gateway_order_id", event.GatewayOrderID),
			zap.Error(err),
		)
	}
}

func (s *paymentServiceImpl) recordCount(ctx context.Context, metric string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	dims := map[string]string{"Service": metricsServiceName}
	if err := s.metrics.RecordCount(ctx, metric, dims); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

func (s *paymentServiceImpl) recordLatency(ctx context.Context, metric string, d time.Duration) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	dims := map[string]string{"Service": metricsServiceName}
	if err := s.metrics.RecordLatency(ctx, metric, d, dims); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
