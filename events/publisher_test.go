package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/AriMathi1/Fitness-app-server/events"
	"github.com/AriMathi1/Fitness-app-server/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSNS struct {
	topic   string
	payload []byte
	err     error
}

func (m *mockSNS) Publish(ctx context.Context, topicArn string, message []byte) error {
	m.topic = topicArn
	m.payload = message
	return m.err
}

type mockSender struct {
	body      string
	eventType string
}

func (m *mockSender) SendMessage(ctx context.Context, body, eventType string) error {
	m.body = body
	m.eventType = eventType
	return nil
}

type mockWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func sampleEvent() models.PaymentEvent {
	return models.PaymentEvent{
		Type:          models.EventPaymentSucceeded,
		PaymentID:     "pay-1",
		BookingID:     "booking-1",
		UserID:        "user-1",
		Amount:        "49.99",
		Currency:      "usd",
		TransactionID: "pi_123",
		Source:        models.SourceWebhook,
	}
}

func TestSNSPublisher(t *testing.T) {
	sns := &mockSNS{}
	p := events.NewSNSPublisher(sns, "arn:topic", zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, "arn:topic", sns.topic)

	var decoded models.PaymentEvent
	require.NoError(t, json.Unmarshal(sns.payload, &decoded))
	assert.Equal(t, "pay-1", decoded.PaymentID)
	assert.Equal(t, "49.99", decoded.Amount)

	sns.err = errors.New("throttled")
	assert.Error(t, p.Publish(context.Background(), sampleEvent()))
}

func TestSQSPublisher(t *testing.T) {
	sender := &mockSender{}
	p := events.NewSQSPublisher(sender, zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, models.EventPaymentSucceeded, sender.eventType)
	assert.Contains(t, sender.body, `"transaction_id":"pi_123"`)
}

func TestKafkaPublisher_KeysByBooking(t *testing.T) {
	w := &mockWriter{}
	p := events.NewKafkaPublisherWithWriter(w, zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "booking-1", string(w.msgs[0].Key))
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNopPublisher(t *testing.T) {
	var p events.Publisher = events.NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.NoError(t, p.Close())
}
