package repository

import (
	"context"
	"errors"

	"github.com/AriMathi1/Fitness-app-server/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrCompletedExists is returned when a write would leave a booking with
	// two completed payments.
	ErrCompletedExists = errors.New("booking already has a completed payment")
	// ErrDuplicateTransaction is returned when a gateway intent id is stored twice.
	ErrDuplicateTransaction = errors.New("transaction already recorded")
)

// PaymentRepository persists payments. Implementations never delete.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	HasCompletedForBooking(ctx context.Context, bookingID string) (bool, error)
	// ApplyTransition moves the payment from tr.From to tr.To only if it still
	// holds tr.From. It returns the payment as stored afterwards and whether
	// this call performed the write.
	ApplyTransition(ctx context.Context, id string, tr models.Transition) (*models.Payment, bool, error)
	// SetNote replaces the note of a payment that still holds status and
	// returns the stored payment. ErrNotFound covers a status mismatch.
	SetNote(ctx context.Context, id string, status models.PaymentStatus, note models.Note) (*models.Payment, error)
	ListByUser(ctx context.Context, userID string, page, limit int) ([]models.Payment, int64, error)
}

type BookingRepository interface {
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	UpdatePaymentState(ctx context.Context, id string, update models.BookingUpdate) error
}

type ClassRepository interface {
	GetByID(ctx context.Context, id string) (*models.Class, error)
}

type WebhookEventRepository interface {
	Record(ctx context.Context, entry *models.WebhookEventLog) error
}
