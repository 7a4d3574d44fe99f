package events

import (
	"context"
	"encoding/json"
	"fmt"

	awspkg "github.com/AriMathi1/Fitness-app-server/pkg/aws"
	"github.com/AriMathi1/Fitness-app-server/models"
	"go.uber.org/zap"
)

// Publisher delivers payment events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event models.PaymentEvent) error
	Close() error
}

// NopPublisher drops every event. Used when EVENT_BUS=none.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.PaymentEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

// SNSPublisher fans events out through an SNS topic.
type SNSPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
	log      *zap.Logger
}

func NewSNSPublisher(client awspkg.SNSPublisher, topicArn string, log *zap.Logger) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn, log: log}
}

func (p *SNSPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}
	if err := p.client.Publish(ctx, p.topicArn, payload); err != nil {
		return err
	}
	p.log.Info("Payment event published to SNS",
		zap.String("event_type", event.Type),
		zap.String("payment_id", event.PaymentID),
	)
	return nil
}

func (p *SNSPublisher) Close() error { return nil }

// MessageSender is satisfied by pkg/aws.SQSSender.
type MessageSender interface {
	SendMessage(ctx context.Context, body, eventType string) error
}

// SQSPublisher sends events straight to a queue.
type SQSPublisher struct {
	sender MessageSender
	log    *zap.Logger
}

func NewSQSPublisher(sender MessageSender, log *zap.Logger) *SQSPublisher {
	return &SQSPublisher{sender: sender, log: log}
}

func (p *SQSPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}
	if err := p.sender.SendMessage(ctx, string(payload), event.Type); err != nil {
		return err
	}
	p.log.Info("Payment event sent to SQS",
		zap.String("event_type", event.Type),
		zap.String("payment_id", event.PaymentID),
	)
	return nil
}

func (p *SQSPublisher) Close() error { return nil }
