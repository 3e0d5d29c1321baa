package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment order statuses. creating is written before the gateway is called
// so a retry with the same idempotency key can see the attempt in flight.
const (
	PaymentOrderCreating = "creating"
	PaymentOrderCreated  = "created"
	PaymentOrderFailed   = "failed"
	PaymentOrderPaid     = "paid"
)

// PaymentOrder maps one checkout payment attempt to the gateway order it
// produced, so gateway orders can be reconciled with internal ones.
type PaymentOrder struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	IdempotencyKey    string         `gorm:"type:varchar(128);not null;uniqueIndex" json:"idempotency_key"`
	Receipt           string         `gorm:"type:varchar(40);not null;uniqueIndex" json:"receipt"`
	GatewayOrderID    *string        `gorm:"type:varchar(64);uniqueIndex" json:"gateway_order_id,omitempty"`
	GatewayPaymentID  *string        `gorm:"type:varchar(64)" json:"gateway_payment_id,omitempty"`
	UserID            *string        `gorm:"type:varchar(128);index" json:"user_id,omitempty"`
	CheckoutSessionID *string        `gorm:"type:varchar(64);index" json:"checkout_session_id,omitempty"`
	Amount            int64          `gorm:"not null" json:"amount"` // paise
	Currency          string         `gorm:"type:varchar(10);not null" json:"currency"`
	Status            string         `gorm:"type:varchar(20);not null;default:'creating'" json:"status"`
	FailureReason     *string        `gorm:"type:varchar(512)" json:"-"`
	PaidAt            *time.Time     `json:"paid_at,omitempty"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// CreateOrderRequest is the body of POST /api/payment/create-order. Amount
// is in rupees and is decoded exactly, so 19.99 becomes 1999 paise.
type CreateOrderRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	CheckoutSessionID string          `json:"checkout_session_id,omitempty"`
}

// CreateOrderResponse is returned to the widget. Amount is in paise.
type CreateOrderResponse struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

// VerifyPaymentRequest carries the gateway's checkout callback fields.
type VerifyPaymentRequest struct {
	GatewayOrderID    string `json:"razorpay_order_id"`
	GatewayPaymentID  string `json:"razorpay_payment_id"`
	GatewaySignature  string `json:"razorpay_signature"`
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
}

type VerifyPaymentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PaymentConfigResponse tells the widget which public key to open the
// hosted checkout with.
type PaymentConfigResponse struct {
	KeyID    string `json:"key_id"`
	Currency string `json:"currency"`
}
