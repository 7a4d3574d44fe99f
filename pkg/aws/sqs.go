package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSender sends messages to a single queue.
type SQSSender struct {
	client   SQSAPI
	queueURL string
}

// NewSQSSender creates a sender for the given queue URL
func NewSQSSender(cfg sdkaws.Config, queueURL string) *SQSSender {
	return &SQSSender{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}
}

// NewSQSSenderWithAPI wraps an existing SQS API implementation.
func NewSQSSenderWithAPI(api SQSAPI, queueURL string) *SQSSender {
	return &SQSSender{client: api, queueURL: queueURL}
}

// SendMessage sends a single message to the queue. eventType is attached as
// the "event_type" message attribute so consumers can filter without parsing.
func (s *SQSSender) SendMessage(ctx context.Context, body, eventType string) error {
	if s.queueURL == "" {
		return fmt.Errorf("empty queueURL")
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    sdkaws.String(s.queueURL),
		MessageBody: sdkaws.String(body),
	}
	if eventType != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    sdkaws.String("String"),
				StringValue: sdkaws.String(eventType),
			},
		}
	}
	if _, err := s.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
