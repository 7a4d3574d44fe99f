package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Verification failures. Callers must not echo the underlying reason.
var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrMalformedEvent   = errors.New("malformed webhook payload")
)

const IntentSucceeded = "succeeded"

type EventType string

const (
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
	EventRefunded  EventType = "refunded"
	EventIgnored   EventType = "ignored"
)

type IntentRequest struct {
	AmountMinor   int64
	Currency      string
	PaymentMethod string
	Metadata      map[string]string
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
	ReceiptURL   string
	Metadata     map[string]string
}

type Refund struct {
	ID          string
	IntentID    string
	AmountMinor int64
	Status      string
}

// Event is a verified processor notification reduced to what reconciliation needs.
type Event struct {
	ID             string
	Type           EventType
	RawType        string
	IntentID       string
	ReceiptURL     string
	FailureMessage string
	Payload        []byte
}

// Gateway is the payment processor as seen by the reconciliation core.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	CreateRefund(ctx context.Context, intentID, reason string) (*Refund, error)
	VerifyEvent(payload []byte, signature string) (*Event, error)
}

// Error is a failed processor call. Message carries the processor's own text.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

var hundred = decimal.NewFromInt(100)

// ToMinor converts a major-unit amount to integer cents, rounding half away from zero.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinor converts integer cents back to major units.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
