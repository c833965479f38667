// internal/handlers/webhook.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/autolend/leadmarket-backend/internal/config"
	"github.com/autolend/leadmarket-backend/internal/services"
)

// WebhookHandler receives Stripe events. Only checkout.session.completed is
// consumed; everything else is acknowledged and ignored. Handlers must be
// idempotent because Stripe delivers at least once.
type WebhookHandler struct {
	config         *config.Config
	paymentService *services.PaymentService
}

func NewWebhookHandler(cfg *config.Config, paymentService *services.PaymentService) *WebhookHandler {
	return &WebhookHandler{
		config:         cfg,
		paymentService: paymentService,
	}
}

// POST /webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	// Sessions with many line items produce large payloads; a truncated
	// body would fail signature verification.
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.config.Payment.StripeWebhookSecret)
	if err != nil {
		logrus.WithError(err).Warn("Webhook signature verification failed")
		c.Status(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			logrus.WithError(err).Error("Failed to parse checkout session payload")
			c.Status(http.StatusBadRequest)
			return
		}

		if err := h.paymentService.HandleCheckoutCompleted(&sess); err != nil {
			if errors.Is(err, services.ErrPaymentNotConfirmed) {
				// Unpaid session completion (e.g. async payment method);
				// acknowledge and wait for the paid event.
				logrus.WithField("session_id", sess.ID).Info("Checkout completed without payment confirmation")
				c.Status(http.StatusOK)
				return
			}
			logrus.WithError(err).WithField("session_id", sess.ID).Error("Failed to apply checkout session")
			// Non-2xx makes Stripe retry; application is idempotent.
			c.Status(http.StatusInternalServerError)
			return
		}

	default:
		logrus.WithField("type", event.Type).Debug("Ignoring webhook event")
	}

	c.Status(http.StatusOK)
}
