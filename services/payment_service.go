package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AriMathi1/Fitness-app-server/common/auth"
	apperrors "github.com/AriMathi1/Fitness-app-server/common/errors"
	"github.com/AriMathi1/Fitness-app-server/events"
	"github.com/AriMathi1/Fitness-app-server/gateway"
	"github.com/AriMathi1/Fitness-app-server/models"
	awspkg "github.com/AriMathi1/Fitness-app-server/pkg/aws"
	"github.com/AriMathi1/Fitness-app-server/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPaymentMethod = "card"
	defaultFailureNote   = "Payment failed"
	defaultRefundNote    = "Refund requested by customer"
	maxPageSize          = 100
	defaultPageSize      = 20
)

type CreateIntentInput struct {
	BookingID     string
	UserID        string
	PaymentMethod string
}

type CreateIntentResult struct {
	PaymentID    string
	ClientSecret string
	Amount       decimal.Decimal
}

type RefundInput struct {
	PaymentID string
	UserID    string
	Reason    string
}

type RefundResult struct {
	RefundID  string
	PaymentID string
	Amount    decimal.Decimal
	Status    string
}

// PaymentService owns the payment lifecycle and its effect on bookings.
type PaymentService interface {
	CreateIntent(ctx context.Context, in CreateIntentInput) (*CreateIntentResult, error)
	Confirm(ctx context.Context, intentID string) (*models.Payment, error)
	Refund(ctx context.Context, in RefundInput) (*RefundResult, error)
	HandleEvent(ctx context.Context, evt *gateway.Event) (models.WebhookOutcome, error)
	GetPayment(ctx context.Context, paymentID string, caller auth.Principal) (*models.Payment, error)
	ListPayments(ctx context.Context, userID string, page, limit int) ([]models.Payment, int64, error)
}

// MetricsRecorder is satisfied by *pkg/aws.MetricsClient.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// Dependencies wires a PaymentService. AuditLog, Publisher and Metrics may be nil.
type Dependencies struct {
	Payments    repository.PaymentRepository
	Bookings    repository.BookingRepository
	Classes     repository.ClassRepository
	AuditLog    repository.WebhookEventRepository
	Gateway     gateway.Gateway
	Publisher   events.Publisher
	Metrics     MetricsRecorder
	Currency    string
	ServiceName string
	Logger      *zap.Logger
}

type paymentServiceImpl struct {
	payments    repository.PaymentRepository
	bookings    repository.BookingRepository
	classes     repository.ClassRepository
	auditLog    repository.WebhookEventRepository
	gw          gateway.Gateway
	publisher   events.Publisher
	metrics     MetricsRecorder
	currency    string
	serviceName string
	logger      *zap.Logger
	now         func() time.Time
}

func NewPaymentService(deps Dependencies) PaymentService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := strings.ToLower(deps.Currency)
	if currency == "" {
		currency = "usd"
	}
	return &paymentServiceImpl{
		payments:    deps.Payments,
		bookings:    deps.Bookings,
		classes:     deps.Classes,
		auditLog:    deps.AuditLog,
		gw:          deps.Gateway,
		publisher:   publisher,
		metrics:     deps.Metrics,
		currency:    currency,
		serviceName: deps.ServiceName,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateIntent opens a remote intent for the booked class price and records a
// pending payment against it. Nothing is stored if the processor call fails.
func (s *paymentServiceImpl) CreateIntent(ctx context.Context, in CreateIntentInput) (*CreateIntentResult, error) {
	booking, err := s.bookings.GetByID(ctx, in.BookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Booking not found")
		}
		return nil, apperrors.Internal("Failed to load booking", err)
	}
	if booking.UserID != in.UserID {
		return nil, apperrors.Forbidden("Not authorized to pay for this booking")
	}

	completed, err := s.payments.HasCompletedForBooking(ctx, booking.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to check existing payments", err)
	}
	if completed {
		return nil, apperrors.Conflict("Payment already completed for this booking")
	}

	class, err := s.classes.GetByID(ctx, booking.ClassID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Class not found")
		}
		return nil, apperrors.Internal("Failed to load class", err)
	}
	minor := gateway.ToMinor(class.Price)
	if minor <= 0 {
		return nil, apperrors.Validation("Class price must be positive", nil)
	}

	method := in.PaymentMethod
	if method == "" {
		method = defaultPaymentMethod
	}

	intent, err := s.gw.CreateIntent(ctx, gateway.IntentRequest{
		AmountMinor:   minor,
		Currency:      s.currency,
		PaymentMethod: method,
		Metadata: map[string]string{
			"booking_id": booking.ID,
			"user_id":    in.UserID,
			"class_id":   booking.ClassID,
		},
	})
	if err != nil {
		s.logger.Error("Failed to create payment intent",
			zap.String("booking_id", booking.ID),
			zap.Error(err),
		)
		return nil, apperrors.Gateway(err)
	}

	now := s.now()
	payment := &models.Payment{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		BookingID:     booking.ID,
		Amount:        gateway.FromMinor(minor),
		Currency:      s.currency,
		Status:        models.PaymentPending,
		PaymentMethod: method,
		TransactionID: intent.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		s.logger.Error("Failed to persist payment",
			zap.String("booking_id", booking.ID),
			zap.String("intent_id", intent.ID),
			zap.Error(err),
		)
		return nil, apperrors.Internal("Failed to record payment", err)
	}

	s.logger.Info("Payment intent created",
		zap.String("payment_id", payment.ID),
		zap.String("booking_id", booking.ID),
		zap.String("intent_id", intent.ID),
	)
	s.recordMetric(awspkg.MetricPaymentIntents, nil)

	return &CreateIntentResult{
		PaymentID:    payment.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       payment.Amount,
	}, nil
}

// Confirm re-reads the intent from the processor and, when it succeeded,
// completes the payment and confirms the booking.
func (s *paymentServiceImpl) Confirm(ctx context.Context, intentID string) (*models.Payment, error) {
	intent, err := s.gw.GetIntent(ctx, intentID)
	if err != nil {
		return nil, apperrors.Gateway(err)
	}
	if intent.Status != gateway.IntentSucceeded {
		return nil, apperrors.Conflict(fmt.Sprintf("Payment not successful, current status: %s", intent.Status))
	}

	payment, err := s.payments.GetByTransactionID(ctx, intentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Payment not found")
		}
		return nil, apperrors.Internal("Failed to load payment", err)
	}

	updated, _, err := s.applyOutcome(ctx, payment, outcome{
		target:         models.PaymentCompleted,
		receiptURL:     intent.ReceiptURL,
		confirmBooking: true,
		strict:         true,
		source:         models.SourceConfirm,
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Refund refunds a completed payment in full at the processor, then marks it
// refunded locally. Only the payer may refund.
func (s *paymentServiceImpl) Refund(ctx context.Context, in RefundInput) (*RefundResult, error) {
	payment, err := s.payments.GetByID(ctx, in.PaymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Payment not found")
		}
		return nil, apperrors.Internal("Failed to load payment", err)
	}
	if payment.UserID != in.UserID {
		return nil, apperrors.Forbidden("Not authorized to refund this payment")
	}
	if payment.Status != models.PaymentCompleted {
		return nil, apperrors.Conflict("Only completed payments can be refunded")
	}

	refund, err := s.gw.CreateRefund(ctx, payment.TransactionID, in.Reason)
	if err != nil {
		s.logger.Error("Refund rejected by payment processor",
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
		return nil, apperrors.Gateway(err)
	}

	note := strings.TrimSpace(in.Reason)
	if note == "" {
		note = defaultRefundNote
	}
	if _, _, err := s.applyOutcome(ctx, payment, outcome{
		target: models.PaymentRefunded,
		note:   &models.Note{Kind: models.NoteRefund, Text: note},
		source: models.SourceRefund,
	}); err != nil {
		return nil, err
	}

	return &RefundResult{
		RefundID:  refund.ID,
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		Status:    refund.Status,
	}, nil
}

func (s *paymentServiceImpl) GetPayment(ctx context.Context, paymentID string, caller auth.Principal) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Payment not found")
		}
		return nil, apperrors.Internal("Failed to load payment", err)
	}
	if payment.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, apperrors.Forbidden("Not authorized to view this payment")
	}
	return payment, nil
}

func (s *paymentServiceImpl) ListPayments(ctx context.Context, userID string, page, limit int) ([]models.Payment, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	payments, total, err := s.payments.ListByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list payments", err)
	}
	return payments, total, nil
}
