package models

import "time"

const (
	EventPaymentSucceeded = "payment_succeeded"
	EventPaymentFailed    = "payment_failed"
	EventPaymentRefunded  = "payment_refunded"
)

// Where a transition originated.
const (
	SourceConfirm = "confirm"
	SourceWebhook = "webhook"
	SourceRefund  = "refund"
)

type PaymentEvent struct {
	Type          string    `json:"type"`
	PaymentID     string    `json:"payment_id"`
	BookingID     string    `json:"booking_id"`
	UserID        string    `json:"user_id"`
	Amount        string    `json:"amount"` // major units
	Currency      string    `json:"currency"`
	TransactionID string    `json:"transaction_id"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewPaymentEvent builds the event published after p reached its current status.
func NewPaymentEvent(eventType string, p *Payment, source string) PaymentEvent {
	return PaymentEvent{
		Type:          eventType,
		PaymentID:     p.ID,
		BookingID:     p.BookingID,
		UserID:        p.UserID,
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		TransactionID: p.TransactionID,
		Source:        source,
		Timestamp:     time.Now().UTC(),
	}
}
