package clients

import (
	"context"
	"errors"

	"checkout-service/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrPaymentDisabled is returned for a non-positive amount; nothing is
	// sent to the server.
	ErrPaymentDisabled = errors.New("payment disabled: amount must be positive")
	// ErrCheckoutDismissed is returned by a HostedCheckout the user closed.
	ErrCheckoutDismissed = errors.New("hosted checkout dismissed")
)

// View is where the storefront should go after a payment attempt.
type View string

const (
	ViewSuccess View = "success"
	ViewPayment View = "payment"
)

type Prefill struct {
	Name    string
	Email   string
	Contact string
}

// CheckoutOptions configure the gateway's hosted checkout.
type CheckoutOptions struct {
	KeyID       string
	OrderID     string
	Amount      int64 // minor units
	Currency    string
	Name        string
	Description string
	Prefill     Prefill
}

// CheckoutCallback is what the hosted checkout hands back on success.
type CheckoutCallback struct {
	OrderID   string
	PaymentID string
	Signature string
}

// HostedCheckout opens the gateway's checkout UI and blocks until the user
// pays (callback returned), closes it (ErrCheckoutDismissed) or the
// payment fails (any other error).
type HostedCheckout interface {
	Open(ctx context.Context, opts CheckoutOptions) (*CheckoutCallback, error)
}

type paymentAPI interface {
	Config(ctx context.Context) (*models.PaymentConfigResponse, error)
	CreateOrder(ctx context.Context, req models.CreateOrderRequest, idempotencyKey string) (*models.CreateOrderResponse, error)
	Verify(ctx context.Context, req models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error)
}

type PayInput struct {
	Amount            decimal.Decimal // major units
	CheckoutSessionID string
	// IdempotencyKey should be reused when retrying after a TransportError.
	IdempotencyKey string
	Description    string
	Prefill        Prefill
}

type PaymentOutcome struct {
	Verified  bool
	Next      View
	Message   string
	OrderID   string
	PaymentID string
}

// PaymentWidget drives one payment: create the gateway order, open the
// hosted checkout, and relay the callback to the verifier.
type PaymentWidget struct {
	api          paymentAPI
	checkout     HostedCheckout
	merchantName string
}

func NewPaymentWidget(api *PaymentClient, checkout HostedCheckout, merchantName string) *PaymentWidget {
	return &PaymentWidget{api: api, checkout: checkout, merchantName: merchantName}
}

// Pay returns an outcome once the user finished with the hosted checkout.
// Errors are returned when no outcome is known: a disabled amount, a
// transport or API failure, or a failed checkout.
func (w *PaymentWidget) Pay(ctx context.Context, in PayInput) (*PaymentOutcome, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrPaymentDisabled
	}
	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	cfg, err := w.api.Config(ctx)
	if err != nil {
		return nil, err
	}
	order, err := w.api.CreateOrder(ctx, models.CreateOrderRequest{Amount: in.Amount, CheckoutSessionID: in.CheckoutSessionID}, key)
	if err != nil {
		return nil, err
	}

	callback, err := w.checkout.Open(ctx, CheckoutOptions{
		KeyID:       cfg.KeyID,
		OrderID:     order.ID,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Name:        w.merchantName,
		Description: in.Description,
		Prefill:     in.Prefill,
	})
	if errors.Is(err, ErrCheckoutDismissed) {
		return &PaymentOutcome{Next: ViewPayment, Message: "Payment cancelled", OrderID: order.ID}, nil
	}
	if err != nil {
		return nil, err
	}

	result, err := w.api.Verify(ctx, models.VerifyPaymentRequest{
		GatewayOrderID:    callback.OrderID,
		GatewayPaymentID:  callback.PaymentID,
		GatewaySignature:  callback.Signature,
		CheckoutSessionID: in.CheckoutSessionID,
	})
	if err != nil {
		return nil, err
	}

	outcome := &PaymentOutcome{
		Verified:  result.Success,
		Message:   result.Message,
		OrderID:   callback.OrderID,
		PaymentID: callback.PaymentID,
		Next:      ViewPayment,
	}
	if result.Success {
		outcome.Next = ViewSuccess
	}
	return outcome, nil
}
