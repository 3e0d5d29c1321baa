package models

import "time"

// Step is a checkout step. Only StepCart..StepPayment are valid.
type Step int

const (
	StepCart     Step = 1
	StepShipping Step = 2
	StepPayment  Step = 3
)

func (s Step) Valid() bool {
	return s >= StepCart && s <= StepPayment
}

func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	default:
		return "unknown"
	}
}

const (
	AddressTypeHome = "home"
	AddressTypeWork = "work"
)

// ShippingInfo holds the contact and delivery address collected on the
// shipping step. The validate tags describe a complete record; partial
// records are normal while the user is still typing.
type ShippingInfo struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required,e164|numeric,min=10,max=15"`
	Address     string `json:"address" validate:"required"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state" validate:"required"`
	Pincode     string `json:"pincode" validate:"required,numeric,len=6"`
	AddressType string `json:"address_type" validate:"required,oneof=home work"`
}

// ShippingInfoPatch carries the fields a client changed. Nil fields are
// left as they are.
type ShippingInfoPatch struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	Pincode     *string `json:"pincode"`
	AddressType *string `json:"address_type" binding:"omitempty,oneof=home work"`
}

// CheckoutSession is the state one user's checkout owns from entry until it
// is completed or abandoned.
type CheckoutSession struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Step      Step         `json:"step"`
	Shipping  ShippingInfo `json:"shipping"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ShippingPolicy decides the shipping fee. Amounts are in paise.
type ShippingPolicy struct {
	Currency              string
	FreeShippingThreshold int64
	FlatShippingFee       int64
}

// OrderTotals is derived from a cart snapshot; amounts are in paise.
type OrderTotals struct {
	Subtotal              int64  `json:"subtotal"`
	ShippingFee           int64  `json:"shipping_fee"`
	Total                 int64  `json:"total"`
	Currency              string `json:"currency"`
	FreeShippingThreshold int64  `json:"free_shipping_threshold"`
}

// SessionView is what the session endpoints return.
type SessionView struct {
	Session  *CheckoutSession `json:"session"`
	StepName string           `json:"step_name"`
	Totals   *OrderTotals     `json:"totals,omitempty"`
}

type GoToStepRequest struct {
	Step int `json:"step" binding:"required"`
}
