package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

const (
	stripeIntentSucceeded = "payment_intent.succeeded"
	stripeIntentFailed    = "payment_intent.payment_failed"
	stripeChargeRefunded  = "charge.refunded"
)

// StripeConfig holds explicit credentials; nothing is read from package globals.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	// Backend overrides the HTTP backend, used to point at a fake server.
	Backend stripe.Backend
}

type StripeGateway struct {
	sc            *client.API
	webhookSecret string
	log           *zap.Logger
}

func NewStripeGateway(cfg StripeConfig, log *zap.Logger) *StripeGateway {
	var backends *stripe.Backends
	if cfg.Backend != nil {
		backends = &stripe.Backends{API: cfg.Backend, Connect: cfg.Backend, Uploads: cfg.Backend}
	}
	return &StripeGateway{
		sc:            client.New(cfg.APIKey, backends),
		webhookSecret: cfg.WebhookSecret,
		log:           log,
	}
}

func remoteError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return &Error{Op: op, Message: se.Msg, Err: err}
	}
	return &Error{Op: op, Message: err.Error(), Err: err}
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	in := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.LatestCharge != nil {
		in.ReceiptURL = pi.LatestCharge.ReceiptURL
	}
	return in
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(req.Currency),
	}
	if req.PaymentMethod != "" {
		params.PaymentMethodTypes = stripe.StringSlice([]string{req.PaymentMethod})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, remoteError("create_intent", err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	pi, err := g.sc.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, remoteError("get_intent", err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) CreateRefund(ctx context.Context, intentID, reason string) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if reason != "" {
		params.AddMetadata("reason", reason)
	}
	params.Context = ctx

	r, err := g.sc.Refunds.New(params)
	if err != nil {
		return nil, remoteError("create_refund", err)
	}

	out := &Refund{
		ID:          r.ID,
		IntentID:    intentID,
		AmountMinor: r.Amount,
		Status:      string(r.Status),
	}
	if r.PaymentIntent != nil && r.PaymentIntent.ID != "" {
		out.IntentID = r.PaymentIntent.ID
	}
	return out, nil
}

// VerifyEvent authenticates payload against the signing secret and translates
// the Stripe event. Unknown event types come back as EventIgnored.
func (g *StripeGateway) VerifyEvent(payload []byte, signature string) (*Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		g.log.Debug("stripe signature check failed", zap.Error(err))
		return nil, ErrInvalidSignature
	}

	out := &Event{
		ID:      evt.ID,
		Type:    EventIgnored,
		RawType: string(evt.Type),
		Payload: payload,
	}

	switch string(evt.Type) {
	case stripeIntentSucceeded, stripeIntentFailed:
		if evt.Data == nil {
			return nil, ErrMalformedEvent
		}
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil || pi.ID == "" {
			return nil, ErrMalformedEvent
		}
		out.IntentID = pi.ID
		// latest_charge is normally an unexpanded id here, leaving the receipt
		// empty; the reconciler fetches it from the intent in that case.
		if pi.LatestCharge != nil {
			out.ReceiptURL = pi.LatestCharge.ReceiptURL
		}
		if string(evt.Type) == stripeIntentSucceeded {
			out.Type = EventSucceeded
		} else {
			out.Type = EventFailed
			if pi.LastPaymentError != nil {
				out.FailureMessage = pi.LastPaymentError.Msg
			}
		}

	case stripeChargeRefunded:
		if evt.Data == nil {
			return nil, ErrMalformedEvent
		}
		var ch stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &ch); err != nil {
			return nil, ErrMalformedEvent
		}
		if ch.PaymentIntent == nil || ch.PaymentIntent.ID == "" {
			return nil, ErrMalformedEvent
		}
		out.IntentID = ch.PaymentIntent.ID
		out.ReceiptURL = ch.ReceiptURL
		// Partial refunds leave the payment completed.
		if ch.Refunded {
			out.Type = EventRefunded
		}
	}

	return out, nil
}
