package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/AriMathi1/Fitness-app-server/common/errors"
	"github.com/AriMathi1/Fitness-app-server/common/logger"
	"github.com/AriMathi1/Fitness-app-server/gateway"
	"github.com/AriMathi1/Fitness-app-server/models"
	awspkg "github.com/AriMathi1/Fitness-app-server/pkg/aws"
	"github.com/AriMathi1/Fitness-app-server/repository"
	"go.uber.org/zap"
)

// outcome is a processor result to be applied to one payment, whichever
// entry point reported it.
type outcome struct {
	target     models.PaymentStatus
	receiptURL string
	note       *models.Note
	// confirmBooking also moves a pending booking to confirmed.
	confirmBooking bool
	// strict rejects a move the lifecycle forbids instead of treating it
	// as a no-op. Webhooks are never strict.
	strict bool
	source string
}

var (
	eventTypeFor = map[models.PaymentStatus]string{
		models.PaymentCompleted: models.EventPaymentSucceeded,
		models.PaymentFailed:    models.EventPaymentFailed,
		models.PaymentRefunded:  models.EventPaymentRefunded,
	}
	metricFor = map[models.PaymentStatus]string{
		models.PaymentCompleted: awspkg.MetricPaymentSucceeded,
		models.PaymentFailed:    awspkg.MetricPaymentFailed,
		models.PaymentRefunded:  awspkg.MetricPaymentRefunded,
	}
	bookingStatusFor = map[models.PaymentStatus]models.BookingPaymentStatus{
		models.PaymentCompleted: models.BookingPaid,
		models.PaymentRefunded:  models.BookingRefunded,
	}
)

// applyOutcome is the single transition path for confirm, webhook and refund.
// It reports whether this call moved the payment. A payment already holding
// the target status only has its booking re-asserted; nothing is republished.
func (s *paymentServiceImpl) applyOutcome(ctx context.Context, p *models.Payment, o outcome) (*models.Payment, bool, error) {
	log := logger.For(ctx, s.logger).With(
		zap.String("payment_id", p.ID),
		zap.String("source", o.source),
	)

	if p.Status == o.target {
		log.Info("Payment already in target status, skipping", zap.String("status", string(p.Status)))
		return p, false, s.syncBooking(ctx, p, o, true)
	}
	if !models.CanTransition(p.Status, o.target) {
		log.Warn("Ignoring illegal payment transition",
			zap.String("from", string(p.Status)),
			zap.String("to", string(o.target)),
		)
		if o.strict {
			return nil, false, illegalTransition(p.Status, o.target)
		}
		return p, false, nil
	}

	updated, applied, err := s.payments.ApplyTransition(ctx, p.ID, models.Transition{
		From:       p.Status,
		To:         o.target,
		ReceiptURL: o.receiptURL,
		Note:       o.note,
		At:         s.now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrCompletedExists) {
			return nil, false, apperrors.Conflict("Payment already completed for this booking")
		}
		log.Error("Failed to update payment status", zap.Error(err))
		return nil, false, apperrors.Internal("Failed to update payment", err)
	}
	if !applied {
		// Another writer moved the payment first.
		log.Info("Payment status changed concurrently",
			zap.String("status", string(updated.Status)),
		)
		if updated.Status == o.target {
			updated = s.keepRefundNote(ctx, updated, o)
			return updated, false, s.syncBooking(ctx, updated, o, true)
		}
		if o.strict {
			return nil, false, illegalTransition(updated.Status, o.target)
		}
		return updated, false, nil
	}

	log.Info("Payment status updated",
		zap.String("from", string(p.Status)),
		zap.String("to", string(updated.Status)),
	)

	bookingErr := s.syncBooking(ctx, updated, o, false)
	s.publish(ctx, updated, o.source)
	s.recordMetric(metricFor[o.target], map[string]string{"Source": o.source})
	return updated, true, bookingErr
}

func illegalTransition(from, to models.PaymentStatus) error {
	if to == models.PaymentCompleted {
		return apperrors.Conflict(fmt.Sprintf("Payment cannot be confirmed from status %s", from))
	}
	return apperrors.Conflict(fmt.Sprintf("Payment cannot move from %s to %s", from, to))
}

// keepRefundNote writes the customer's refund reason when the processor's
// refund notification got the payment to refunded first.
func (s *paymentServiceImpl) keepRefundNote(ctx context.Context, p *models.Payment, o outcome) *models.Payment {
	if o.source != models.SourceRefund || o.note == nil || o.note.Kind != models.NoteRefund {
		return p
	}
	if p.Note != nil && *p.Note == *o.note {
		return p
	}
	noted, err := s.payments.SetNote(ctx, p.ID, o.target, *o.note)
	if err != nil {
		s.logger.Warn("Failed to keep refund reason",
			zap.String("payment_id", p.ID),
			zap.Error(err),
		)
		return p
	}
	return noted
}

// syncBooking writes the booking payment status that matches the payment.
// On a replay the booking is only moved to confirmed while still pending.
func (s *paymentServiceImpl) syncBooking(ctx context.Context, p *models.Payment, o outcome, replay bool) error {
	ps, ok := bookingStatusFor[o.target]
	if !ok {
		return nil
	}

	update := models.BookingUpdate{PaymentStatus: ps}
	if o.confirmBooking && o.target == models.PaymentCompleted {
		confirm := true
		if replay {
			booking, err := s.bookings.GetByID(ctx, p.BookingID)
			if err != nil {
				s.logger.Error("Failed to load booking", zap.String("booking_id", p.BookingID), zap.Error(err))
				return apperrors.Internal("Failed to update booking", err)
			}
			confirm = booking.Status == models.BookingPending
		}
		if confirm {
			st := models.BookingConfirmed
			update.Status = &st
		}
	}

	if err := s.bookings.UpdatePaymentState(ctx, p.BookingID, update); err != nil {
		s.logger.Error("Failed to update booking payment status",
			zap.String("booking_id", p.BookingID),
			zap.String("payment_id", p.ID),
			zap.Error(err),
		)
		return apperrors.Internal("Failed to update booking", err)
	}
	return nil
}

// HandleEvent applies a verified processor event and records it in the audit
// log. Unknown references are reported as unmatched, not as errors.
func (s *paymentServiceImpl) HandleEvent(ctx context.Context, evt *gateway.Event) (models.WebhookOutcome, error) {
	result, err := s.handleEvent(ctx, evt)
	s.recordMetric(awspkg.MetricWebhookReceived, map[string]string{"Outcome": string(result)})
	s.recordAudit(ctx, evt, result, err)
	return result, err
}

func (s *paymentServiceImpl) handleEvent(ctx context.Context, evt *gateway.Event) (models.WebhookOutcome, error) {
	log := logger.For(ctx, s.logger).With(
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.RawType),
		zap.String("intent_id", evt.IntentID),
	)

	var o outcome
	switch evt.Type {
	case gateway.EventSucceeded:
		o = outcome{target: models.PaymentCompleted, receiptURL: evt.ReceiptURL}
	case gateway.EventFailed:
		msg := evt.FailureMessage
		if msg == "" {
			msg = defaultFailureNote
		}
		o = outcome{target: models.PaymentFailed, note: &models.Note{Kind: models.NoteFailure, Text: msg}}
	case gateway.EventRefunded:
		o = outcome{target: models.PaymentRefunded, note: &models.Note{
			Kind: models.NoteRefund,
			Text: "Refunded via payment processor on " + s.now().Format(time.RFC3339),
		}}
	default:
		log.Info("Unhandled webhook event type")
		return models.OutcomeIgnored, nil
	}
	o.source = models.SourceWebhook

	payment, err := s.payments.GetByTransactionID(ctx, evt.IntentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("Payment not found for webhook event")
			return models.OutcomeUnmatched, nil
		}
		log.Error("Failed to load payment for webhook event", zap.Error(err))
		return models.OutcomeError, err
	}

	// Webhook payloads carry the latest charge unexpanded, so the receipt
	// has to be fetched before the first completion.
	if o.target == models.PaymentCompleted && o.receiptURL == "" && payment.Status == models.PaymentPending {
		if intent, err := s.gw.GetIntent(ctx, evt.IntentID); err != nil {
			log.Warn("Failed to fetch receipt for succeeded intent", zap.Error(err))
		} else {
			o.receiptURL = intent.ReceiptURL
		}
	}

	_, applied, err := s.applyOutcome(ctx, payment, o)
	if err != nil {
		return models.OutcomeError, err
	}
	if applied {
		return models.OutcomeApplied, nil
	}
	return models.OutcomeNoop, nil
}

func (s *paymentServiceImpl) recordAudit(ctx context.Context, evt *gateway.Event, result models.WebhookOutcome, procErr error) {
	if s.auditLog == nil {
		return
	}
	entry := &models.WebhookEventLog{
		EventID:  evt.ID,
		Type:     evt.RawType,
		IntentID: evt.IntentID,
		Outcome:  result,
	}
	if len(evt.Payload) > 0 {
		payload := string(evt.Payload)
		entry.Payload = &payload
	}
	if procErr != nil {
		msg := procErr.Error()
		entry.Error = &msg
	}
	if err := s.auditLog.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("Failed to record webhook event", zap.String("event_id", evt.ID), zap.Error(err))
	}
}

// publish emits the event for p's new status. Failures are logged only.
func (s *paymentServiceImpl) publish(ctx context.Context, p *models.Payment, source string) {
	eventType, ok := eventTypeFor[p.Status]
	if !ok {
		return
	}
	event := models.NewPaymentEvent(eventType, p, source)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, event); err != nil {
		s.logger.Error("Failed to publish payment event",
			zap.String("event_type", eventType),
			zap.String("payment_id", p.ID),
			zap.Error(err),
		)
	}
}

func (s *paymentServiceImpl) recordMetric(name string, extra map[string]string) {
	if s.metrics == nil || name == "" {
		return
	}
	dims := map[string]string{"Service": s.serviceName}
	for k, v := range extra {
		dims[k] = v
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metrics.RecordCount(ctx, name, dims); err != nil {
			s.logger.Debug("Failed to record metric", zap.String("metric", name), zap.Error(err))
		}
	}()
}
