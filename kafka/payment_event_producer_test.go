package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"checkout-service/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishPaymentEvent_KeysByGatewayOrder(t *testing.T) {
	w := &fakeWriter{}
	p := &PaymentEventProducer{writer: w, topic: "payment-events", logger: zap.NewNop()}

	event := models.PaymentEvent{
		Type:           models.EventPaymentVerified,
		GatewayOrderID: "order_123",
		Amount:         50000,
		Currency:       "INR",
		Timestamp:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, p.PublishPaymentEvent(context.Background(), event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "order_123", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, models.EventPaymentVerified, string(msg.Headers[0].Value))

	var decoded models.PaymentEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event, decoded)
}

func TestPublishPaymentEvent_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &PaymentEventProducer{writer: w, topic: "payment-events", logger: zap.NewNop()}

	err := p.PublishPaymentEvent(context.Background(), models.PaymentEvent{Type: models.EventPaymentOrderCreated})
	assert.EqualError(t, err, "broker down")
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	p := &PaymentEventProducer{writer: w, topic: "payment-events", logger: zap.NewNop()}
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
