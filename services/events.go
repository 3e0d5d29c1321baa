package services

import (
	"context"
	"encoding/json"
	"fmt"

	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"
)

// PaymentEventPublisher delivers payment lifecycle events to downstream
// services (order, notification).
type PaymentEventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

// SNSEventPublisher publishes events as JSON to one SNS topic.
type SNSEventPublisher struct {
	sns      awspkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(sns awspkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{sns: sns, topicArn: topicArn}
}

func (p *SNSEventPublisher) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return p.sns.Publish(ctx, p.topicArn, event.Type, body)
}

// NoopEventPublisher drops every event. Used when EVENT_TRANSPORT=none.
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishPaymentEvent(context.Context, models.PaymentEvent) error {
	return nil
}
