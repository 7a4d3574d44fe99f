package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/AriMathi1/Fitness-app-server/common/logger"
	"github.com/AriMathi1/Fitness-app-server/gateway"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 64 << 10

// EventVerifier checks a processor signature and decodes the event.
type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (*gateway.Event, error)
}

// StripeWebhook receives signed processor events. Once an event verifies it is
// always acknowledged, whatever processing made of it.
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	log := logger.For(c.Request.Context(), pc.logger)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warn("Failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook signature verification failed"})
		return
	}

	evt, err := pc.verifier.VerifyEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, gateway.ErrMalformedEvent) {
			log.Warn("Malformed webhook payload", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed webhook payload"})
			return
		}
		log.Warn("Stripe webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook signature verification failed"})
		return
	}

	log.Info("Processing Stripe webhook",
		zap.String("event_type", evt.RawType),
		zap.String("event_id", evt.ID),
	)

	outcome, err := pc.service.HandleEvent(c.Request.Context(), evt)
	if err != nil {
		log.Error("Failed to process webhook event",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.RawType),
			zap.Error(err),
		)
	} else {
		log.Info("Webhook event processed",
			zap.String("event_id", evt.ID),
			zap.String("outcome", string(outcome)),
		)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
