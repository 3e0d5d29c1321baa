package repository

import (
	"context"
	"errors"
	"time"

	"checkout-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrPaymentOrderNotFound    = errors.New("payment order not found")
	ErrDuplicateIdempotencyKey = errors.New("payment order already exists for idempotency key")
	// ErrPaymentOrderBusy means another request moved the row first.
	ErrPaymentOrderBusy = errors.New("payment order is being processed by another request")
)

// PaymentOrderRepository persists the idempotency key -> gateway order
// mapping of every payment attempt.
type PaymentOrderRepository interface {
	Create(ctx context.Context, order *models.PaymentOrder) error
	FindByIdempotencyKey(ctx context.Context, key string) (*models.PaymentOrder, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error)
	// MarkRetrying moves a failed row back to creating.
	MarkRetrying(ctx context.Context, id uuid.UUID) error
	MarkCreated(ctx context.Context, id uuid.UUID, gatewayOrderID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	// MarkPaid reports false when no unpaid row matched gatewayOrderID.
	MarkPaid(ctx context.Context, gatewayOrderID, gatewayPaymentID string, paidAt time.Time) (bool, error)
}

// GormPaymentOrderRepository implements PaymentOrderRepository on Postgres.
// The *gorm.DB must be opened with TranslateError so unique violations
// surface as gorm.ErrDuplicatedKey.
type GormPaymentOrderRepository struct {
	db *gorm.DB
}

func NewGormPaymentOrderRepository(db *gorm.DB) PaymentOrderRepository {
	return &GormPaymentOrderRepository{db: db}
}

func (r *GormPaymentOrderRepository) Create(ctx context.Context, order *models.PaymentOrder) error {
	err := r.db.WithContext(ctx).Create(order).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateIdempotencyKey
	}
	return err
}

func (r *GormPaymentOrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.PaymentOrder, error) {
	return r.findOne(ctx, "idempotency_key = ?", key)
}

func (r *GormPaymentOrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	return r.findOne(ctx, "gateway_order_id = ?", gatewayOrderID)
}

func (r *GormPaymentOrderRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	err := r.db.WithContext(ctx).Where(query, arg).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormPaymentOrderRepository) MarkRetrying(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ? AND status = ?", id, models.PaymentOrderFailed).
		Updates(map[string]interface{}{
			"status":         models.PaymentOrderCreating,
			"failure_reason": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPaymentOrderBusy
	}
	return nil
}

func (r *GormPaymentOrderRepository) MarkCreated(ctx context.Context, id uuid.UUID, gatewayOrderID string) error {
	return r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           models.PaymentOrderCreated,
			"gateway_order_id": gatewayOrderID,
		}).Error
}

func (r *GormPaymentOrderRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	if len(reason) > 512 {
		reason = reason[:512]
	}
	return r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         models.PaymentOrderFailed,
			"failure_reason": reason,
		}).Error
}

func (r *GormPaymentOrderRepository) MarkPaid(ctx context.Context, gatewayOrderID, gatewayPaymentID string, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("gateway_order_id = ? AND status <> ?", gatewayOrderID, models.PaymentOrderPaid).
		Updates(map[string]interface{}{
			"status":             models.PaymentOrderPaid,
			"gateway_payment_id": gatewayPaymentID,
			"paid_at":            paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
