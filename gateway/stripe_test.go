package gateway_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/AriMathi1/Fitness-app-server/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

const testSecret = "whsec_test_secret"

func signed(t *testing.T, payload string) (string, []byte) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return sp.Header, sp.Payload
}

func eventJSON(id, typ, object string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","api_version":%q,"type":%q,"data":{"object":%s}}`,
		id, stripe.APIVersion, typ, object)
}

func newGateway(backend stripe.Backend) *gateway.StripeGateway {
	return gateway.NewStripeGateway(gateway.StripeConfig{
		APIKey:        "sk_test_123",
		WebhookSecret: testSecret,
		Backend:       backend,
	}, zap.NewNop())
}

func TestVerifyEvent_Succeeded(t *testing.T) {
	g := newGateway(nil)
	header, body := signed(t, eventJSON("evt_1", "payment_intent.succeeded",
		`{"id":"pi_123","object":"payment_intent","status":"succeeded","latest_charge":{"id":"ch_1","object":"charge","receipt_url":"https://pay.stripe.com/receipts/ch_1"}}`))

	evt, err := g.VerifyEvent(body, header)
	require.NoError(t, err)
	assert.Equal(t, gateway.EventSucceeded, evt.Type)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, "pi_123", evt.IntentID)
	assert.Equal(t, "https://pay.stripe.com/receipts/ch_1", evt.ReceiptURL)
}

func TestVerifyEvent_FailedCarriesMessage(t *testing.T) {
	g := newGateway(nil)
	header, body := signed(t, eventJSON("evt_2", "payment_intent.payment_failed",
		`{"id":"pi_456","object":"payment_intent","status":"requires_payment_method","last_payment_error":{"message":"Your card was declined."}}`))

	evt, err := g.VerifyEvent(body, header)
	require.NoError(t, err)
	assert.Equal(t, gateway.EventFailed, evt.Type)
	assert.Equal(t, "pi_456", evt.IntentID)
	assert.Equal(t, "Your card was declined.", evt.FailureMessage)
}

func TestVerifyEvent_ChargeRefunded(t *testing.T) {
	g := newGateway(nil)
	header, body := signed(t, eventJSON("evt_3", "charge.refunded",
		`{"id":"ch_1","object":"charge","payment_intent":"pi_123","refunded":true}`))

	evt, err := g.VerifyEvent(body, header)
	require.NoError(t, err)
	assert.Equal(t, gateway.EventRefunded, evt.Type)
	assert.Equal(t, "pi_123", evt.IntentID)
}

func TestVerifyEvent_PartialRefundIgnored(t *testing.T) {
	g := newGateway(nil)
	header, body := signed(t, eventJSON("evt_4", "charge.refunded",
		`{"id":"ch_1","object":"charge","payment_intent":"pi_123","refunded":false}`))

	evt, err := g.VerifyEvent(body, header)
	require.NoError(t, err)
	assert.Equal(t, gateway.EventIgnored, evt.Type)
}

func TestVerifyEvent_UnknownTypeIgnored(t *testing.T) {
	g := newGateway(nil)
	header, body := signed(t, eventJSON("evt_5", "customer.created", `{"id":"cus_1","object":"customer"}`))

	evt, err := g.VerifyEvent(body, header)
	require.NoError(t, err)
	assert.Equal(t, gateway.EventIgnored, evt.Type)
	assert.Equal(t, "customer.created", evt.RawType)
}

func TestVerifyEvent_TamperedPayload(t *testing.T) {
	g := newGateway(nil)
	header, body := signed(t, eventJSON("evt_6", "payment_intent.succeeded", `{"id":"pi_123","object":"payment_intent"}`))

	tampered := append([]byte{}, body...)
	tampered[len(tampered)-3] = ' '

	_, err := g.VerifyEvent(tampered, header)
	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)

	_, err = g.VerifyEvent(body, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
}

func TestVerifyEvent_StaleTimestamp(t *testing.T) {
	g := newGateway(nil)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(eventJSON("evt_7", "payment_intent.succeeded", `{"id":"pi_123"}`)),
		Secret:    testSecret,
		Timestamp: time.Now().Add(-time.Hour),
	})

	_, err := g.VerifyEvent(sp.Payload, sp.Header)
	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
}

func TestVerifyEvent_MissingIntentIsMalformed(t *testing.T) {
	g := newGateway(nil)
	header, body := signed(t, eventJSON("evt_8", "payment_intent.succeeded", `{"object":"payment_intent"}`))

	_, err := g.VerifyEvent(body, header)
	assert.ErrorIs(t, err, gateway.ErrMalformedEvent)
}

func fakeStripe(t *testing.T, handler http.HandlerFunc) stripe.Backend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
}

func TestCreateIntent_SendsMinorUnitsAndMetadata(t *testing.T) {
	var form url.Values
	backend := fakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(raw))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_new","object":"payment_intent","client_secret":"pi_new_secret_x","status":"requires_payment_method","amount":4999,"currency":"usd"}`))
	})

	intent, err := newGateway(backend).CreateIntent(context.Background(), gateway.IntentRequest{
		AmountMinor:   4999,
		Currency:      "usd",
		PaymentMethod: "card",
		Metadata:      map[string]string{"booking_id": "booking-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_new", intent.ID)
	assert.Equal(t, "pi_new_secret_x", intent.ClientSecret)
	assert.Equal(t, "4999", form.Get("amount"))
	assert.Equal(t, "booking-1", form.Get("metadata[booking_id]"))
}

func TestGetIntent_ReadsExpandedReceipt(t *testing.T) {
	backend := fakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents/pi_123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","status":"succeeded","amount":4999,"currency":"usd","latest_charge":{"id":"ch_1","object":"charge","receipt_url":"https://r/1"}}`))
	})

	intent, err := newGateway(backend).GetIntent(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, gateway.IntentSucceeded, intent.Status)
	assert.Equal(t, "https://r/1", intent.ReceiptURL)
}

func TestCreateRefund_RemoteErrorKeepsMessage(t *testing.T) {
	backend := fakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Charge ch_1 has already been refunded."}}`))
	})

	_, err := newGateway(backend).CreateRefund(context.Background(), "pi_123", "changed plans")
	require.Error(t, err)

	var gwErr *gateway.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "Charge ch_1 has already been refunded.", gwErr.Error())
}

func TestCreateRefund_Success(t *testing.T) {
	var form url.Values
	backend := fakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(raw))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re_1","object":"refund","amount":4999,"status":"succeeded","payment_intent":"pi_123"}`))
	})

	refund, err := newGateway(backend).CreateRefund(context.Background(), "pi_123", "schedule conflict")
	require.NoError(t, err)
	assert.Equal(t, "re_1", refund.ID)
	assert.Equal(t, "succeeded", refund.Status)
	assert.Equal(t, "pi_123", refund.IntentID)
	assert.Equal(t, "requested_by_customer", form.Get("reason"))
	assert.Equal(t, "schedule conflict", form.Get("metadata[reason]"))
}

func TestMinorUnitConversion(t *testing.T) {
	cases := map[string]int64{
		"49.99":  4999,
		"10":     1000,
		"0.005":  1,
		"19.994": 1999,
		"0.01":   1,
	}
	for in, want := range cases {
		assert.Equal(t, want, gateway.ToMinor(decimal.RequireFromString(in)), in)
	}
	assert.Equal(t, "49.99", gateway.FromMinor(4999).StringFixed(2))
}
