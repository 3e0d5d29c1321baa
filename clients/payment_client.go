package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"checkout-service/models"
)

// TransportError means the request never produced an HTTP response. It is
// safe to retry; the client itself never does.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Retryable() bool { return true }

// APIError is a non-success answer from the checkout service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("checkout api error: status=%d message=%s", e.StatusCode, e.Message)
}

// PaymentClient calls the payment endpoints of the checkout service.
type PaymentClient struct {
	baseURL   string
	client    *http.Client
	authToken string
}

func NewPaymentClient(baseURL string, timeout time.Duration) *PaymentClient {
	return &PaymentClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// WithAuthToken returns a copy that sends token as a bearer token.
func (p *PaymentClient) WithAuthToken(token string) *PaymentClient {
	cp := *p
	cp.authToken = token
	return &cp
}

func (p *PaymentClient) Config(ctx context.Context) (*models.PaymentConfigResponse, error) {
	var out models.PaymentConfigResponse
	resp, err := p.do(ctx, "payment config", http.MethodGet, "/api/payment/config", nil, nil)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// createOrderBody is the wire form of models.CreateOrderRequest. The amount
// goes out as a JSON number, not the quoted string decimal.Decimal produces.
type createOrderBody struct {
	Amount            json.Number `json:"amount"`
	CheckoutSessionID string      `json:"checkout_session_id,omitempty"`
}

func (p *PaymentClient) CreateOrder(ctx context.Context, req models.CreateOrderRequest, idempotencyKey string) (*models.CreateOrderResponse, error) {
	headers := http.Header{}
	if idempotencyKey != "" {
		headers.Set("Idempotency-Key", idempotencyKey)
	}
	body := createOrderBody{
		Amount:            json.Number(req.Amount.String()),
		CheckoutSessionID: req.CheckoutSessionID,
	}
	resp, err := p.do(ctx, "create order", http.MethodPost, "/api/payment/create-order", headers, body)
	if err != nil {
		return nil, err
	}
	var out models.CreateOrderResponse
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify forwards a checkout callback. A rejected signature is a normal
// result with Success false, not an error.
func (p *PaymentClient) Verify(ctx context.Context, req models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error) {
	resp, err := p.do(ctx, "verify payment", http.MethodPost, "/api/payment/verify", nil, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return nil, apiError(resp)
	}
	var out models.VerifyPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	return &out, nil
}

func (p *PaymentClient) do(ctx context.Context, op, method, path string, headers http.Header, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return resp, nil
}

func decodeJSON(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			msg = payload.Error
		} else if payload.Message != "" {
			msg = payload.Message
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
