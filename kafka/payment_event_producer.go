package kafka

import (
	"context"
	"encoding/json"

	"checkout-service/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentEventProducer publishes payment events to one topic, keyed by the
// gateway order id so every event of an order lands on one partition.
type PaymentEventProducer struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewPaymentEventProducer(brokers []string, topic string, logger *zap.Logger) *PaymentEventProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	logger.Info("Kafka payment event producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &PaymentEventProducer{writer: w, topic: topic, logger: logger}
}

func (p *PaymentEventProducer) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.GatewayOrderID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to send payment event",
			zap.String("topic", p.topic),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		return err
	}

	p.logger.Debug("Sent payment event",
		zap.String("topic", p.topic),
		zap.String("event_type", event.Type),
		zap.String("gateway_order_id", event.GatewayOrderID),
	)
	return nil
}

func (p *PaymentEventProducer) Close() error {
	p.logger.Info("Closing Kafka payment event producer", zap.String("topic", p.topic))
	return p.writer.Close()
}
