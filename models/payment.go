package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// transitions lists every legal move of the payment lifecycle.
var transitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed},
	PaymentCompleted: {PaymentRefunded},
}

// CanTransition reports whether a payment may move from one status to another.
func CanTransition(from, to PaymentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition leaves s.
func (s PaymentStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type NoteKind string

const (
	NoteFailure NoteKind = "failure"
	NoteRefund  NoteKind = "refund"
	NoteManual  NoteKind = "manual"
)

// Note is free text attached to a payment by the transition that wrote it.
type Note struct {
	Kind NoteKind `json:"kind"`
	Text string   `json:"text"`
}

type Payment struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	BookingID     string          `json:"booking_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        PaymentStatus   `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id"`
	ReceiptURL    string          `json:"receipt_url,omitempty"`
	Note          *Note           `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	FailedAt      *time.Time      `json:"failed_at,omitempty"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`
}

// Transition describes a conditional status change. The store applies it only
// while the payment still holds From.
type Transition struct {
	From       PaymentStatus
	To         PaymentStatus
	ReceiptURL string
	Note       *Note
	At         time.Time
}
