package models

import "time"

const (
	EventPaymentOrderCreated      = "payment_order_created"
	EventPaymentVerified          = "payment_verified"
	EventPaymentSignatureRejected = "payment_signature_rejected"
)

type PaymentEvent struct {
	Type              string    `json:"type"`
	PaymentOrderID    string    `json:"payment_order_id,omitempty"`
	GatewayOrderID    string    `json:"gateway_order_id"`
	GatewayPaymentID  string    `json:"gateway_payment_id,omitempty"`
	UserID            string    `json:"user_id,omitempty"`
	CheckoutSessionID string    `json:"checkout_session_id,omitempty"`
	Amount            int64     `json:"amount,omitempty"` // paise
	Currency          string    `json:"currency,omitempty"`
	Timestamp         time.Time `json:"timestamp"` // UTC
}
