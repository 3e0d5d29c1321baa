package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"
)

var ErrGatewayTimeout = errors.New("payment gateway timed out")

type CreateGatewayOrderInput struct {
	Amount   int64 // minor units
	Currency string
	Receipt  string
	Notes    map[string]string
}

type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// PaymentGateway creates orders with the external payment provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, in CreateGatewayOrderInput) (*GatewayOrder, error)
}

// orderCreator is the part of the razorpay SDK order resource we call.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway implements PaymentGateway with razorpay-go. The SDK call
// takes no context, so it runs in its own goroutine and is abandoned once
// the timeout expires.
//
// An abandoned call can still create the order at Razorpay. The caller has
// already marked its ledger row failed by then, and a retry with the same
// idempotency key creates a second order under the same receipt. Late
// results are logged with the orphaned order id so they can be reconciled
// by receipt.
type RazorpayGateway struct {
	orders  orderCreator
	timeout time.Duration
	logger  *zap.Logger
}

func NewRazorpayGateway(keyID, keySecret string, timeout time.Duration, logger *zap.Logger) *RazorpayGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := razorpay.NewClient(keyID, keySecret)
	return &RazorpayGateway{orders: client.Order, timeout: timeout, logger: logger}
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, in CreateGatewayOrderInput) (*GatewayOrder, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	data := map[string]interface{}{
		"amount":   in.Amount,
		"currency": in.Currency,
		"receipt":  in.Receipt,
	}
	if len(in.Notes) > 0 {
		notes := make(map[string]interface{}, len(in.Notes))
		for k, v := range in.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	done := make(chan gatewayResult, 1)
	go func() {
		body, err := g.orders.Create(data, nil)
		done <- gatewayResult{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		go g.logLateResult(in.Receipt, done)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrGatewayTimeout
		}
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("razorpay order create: %w", res.err)
		}
		return parseGatewayOrder(res.body)
	}
}

type gatewayResult struct {
	body map[string]interface{}
	err  error
}

// logLateResult waits for an abandoned SDK call to finish and logs any
// order it created.
func (g *RazorpayGateway) logLateResult(receipt string, done <-chan gatewayResult) {
	res := <-done
	if res.err != nil {
		g.logger.Info("Abandoned gateway order call failed",
			zap.String("receipt", receipt),
			zap.Error(res.err),
		)
		return
	}
	order, err := parseGatewayOrder(res.body)
	if err != nil {
		g.logger.Warn("Abandoned gateway order call returned no order", zap.String("receipt", receipt), zap.Error(err))
		return
	}
	g.logger.Warn("Gateway order created after timeout",
		zap.String("receipt", receipt),
		zap.String("orphaned_gateway_order_id", order.ID),
		zap.Int64("amount", order.Amount),
	)
}

func parseGatewayOrder(body map[string]interface{}) (*GatewayOrder, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay order create: response has no order id")
	}

	order := &GatewayOrder{ID: id}
	order.Currency, _ = body["currency"].(string)
	order.Receipt, _ = body["receipt"].(string)
	order.Status, _ = body["status"].(string)

	switch amount := body["amount"].(type) {
	case float64:
		order.Amount = int64(amount)
	case int64:
		order.Amount = amount
	case int:
		order.Amount = int64(amount)
	}
	return order, nil
}
