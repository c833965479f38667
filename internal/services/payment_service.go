// internal/services/payment_service.go
package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"

	"github.com/autolend/leadmarket-backend/internal/config"
	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/utils"
)

// PaymentService creates Stripe Checkout Sessions for lead purchases and
// lock extensions, and applies confirmed sessions delivered by webhook.
// Nothing durable is written until a session is confirmed paid: the pending
// intent lives only in the session metadata, so abandoned checkouts leave
// no state behind.
type PaymentService struct {
	config        *config.Config
	pricing       *PricingService
	locks         *LockService
	purchases     *PurchaseService
	notifications *NotificationService
}

type CreateCheckoutRequest struct {
	ApplicationIDs []uuid.UUID        `json:"application_ids" validate:"required,min=1"`
	Kind           models.PaymentKind `json:"kind" validate:"required"`
	LockKind       models.LockKind    `json:"lock_kind,omitempty" validate:"omitempty,lock_kind"`
}

type CheckoutResponse struct {
	SessionID   string  `json:"session_id"`
	CheckoutURL string  `json:"checkout_url"`
	AmountTotal float64 `json:"amount_total"`
}

func NewPaymentService(cfg *config.Config, pricing *PricingService, locks *LockService, purchases *PurchaseService, notifications *NotificationService) *PaymentService {
	// Initialize Stripe
	stripe.Key = cfg.Payment.StripeSecretKey

	return &PaymentService{
		config:        cfg,
		pricing:       pricing,
		locks:         locks,
		purchases:     purchases,
		notifications: notifications,
	}
}

// CreateCheckoutSession prices the requested applications and opens a Stripe
// Checkout Session for the total. Already-purchased applications resolve to
// zero and are left out of the line items.
func (s *PaymentService) CreateCheckoutSession(dealerID uuid.UUID, companyID *uuid.UUID, req *CreateCheckoutRequest) (*CheckoutResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if req.Kind == models.PaymentKindLockExtension && !models.ValidLockKind(req.LockKind) {
		return nil, fmt.Errorf("invalid lock kind %q", req.LockKind)
	}

	var lineItems []*stripe.CheckoutSessionLineItemParams
	var total float64

	for _, appID := range req.ApplicationIDs {
		quote, name, err := s.quoteFor(appID, dealerID, companyID, req)
		if err != nil {
			return nil, err
		}
		if quote.Amount <= 0 {
			continue
		}
		total += quote.Amount
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String("usd"),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
				UnitAmount: stripe.Int64(int64(quote.Amount * 100)),
			},
			Quantity: stripe.Int64(1),
		})
	}

	if len(lineItems) == 0 {
		return nil, fmt.Errorf("nothing to charge: requested applications are already purchased")
	}

	appIDs := make([]string, 0, len(req.ApplicationIDs))
	for _, id := range req.ApplicationIDs {
		appIDs = append(appIDs, id.String())
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(s.config.Frontend.BaseURL + "/dealer/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.config.Frontend.BaseURL + "/dealer/checkout/cancelled"),
	}
	params.AddMetadata("dealer_id", dealerID.String())
	params.AddMetadata("application_ids", strings.Join(appIDs, ","))
	params.AddMetadata("payment_kind", string(req.Kind))
	if companyID != nil {
		params.AddMetadata("company_id", companyID.String())
	}
	if req.Kind == models.PaymentKindLockExtension {
		params.AddMetadata("lock_kind", string(req.LockKind))
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"session_id":   sess.ID,
		"dealer_id":    dealerID,
		"payment_kind": req.Kind,
		"amount_total": total,
	}).Info("Checkout session created")

	return &CheckoutResponse{
		SessionID:   sess.ID,
		CheckoutURL: sess.URL,
		AmountTotal: total,
	}, nil
}

func (s *PaymentService) quoteFor(appID, dealerID uuid.UUID, companyID *uuid.UUID, req *CreateCheckoutRequest) (*models.PriceQuote, string, error) {
	app, err := s.pricing.store.Applications().Get(appID)
	if err != nil {
		return nil, "", fmt.Errorf("application %s: %w", appID, err)
	}

	var action PriceAction
	var name string
	if req.Kind == models.PaymentKindLockExtension {
		action = LockAction(req.LockKind)
		name = fmt.Sprintf("Lock extension (%s) for application %s", req.LockKind, appID)
	} else {
		action = PurchaseAction()
		name = fmt.Sprintf("Lead application %s", appID)
	}

	quote, err := s.pricing.ResolvePrice(app, dealerID, companyID, action)
	if err != nil {
		return nil, "", fmt.Errorf("application %s: %w", appID, err)
	}
	return quote, name, nil
}

// HandleCheckoutCompleted applies a confirmed checkout session. Delivery is
// at least once and possibly reordered; recording downstream is idempotent
// keyed on the session ID, so replays are harmless.
func (s *PaymentService) HandleCheckoutCompleted(sess *stripe.CheckoutSession) error {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return fmt.Errorf("%w: session %s has payment status %q", ErrPaymentNotConfirmed, sess.ID, sess.PaymentStatus)
	}

	dealerID, err := uuid.Parse(sess.Metadata["dealer_id"])
	if err != nil {
		return fmt.Errorf("invalid dealer_id in session metadata: %w", err)
	}

	var appIDs []uuid.UUID
	for _, raw := range strings.Split(sess.Metadata["application_ids"], ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid application id %q in session metadata: %w", raw, err)
		}
		appIDs = append(appIDs, id)
	}
	if len(appIDs) == 0 {
		return fmt.Errorf("session %s carries no application ids", sess.ID)
	}

	companyID := s.companyIDFromMetadata(sess)

	switch models.PaymentKind(sess.Metadata["payment_kind"]) {
	case models.PaymentKindPurchase:
		return s.applyPurchases(sess, dealerID, companyID, appIDs)
	case models.PaymentKindLockExtension:
		return s.applyLockExtensions(sess, dealerID, appIDs)
	default:
		return fmt.Errorf("unknown payment kind %q in session %s", sess.Metadata["payment_kind"], sess.ID)
	}
}

func (s *PaymentService) applyPurchases(sess *stripe.CheckoutSession, dealerID uuid.UUID, companyID *uuid.UUID, appIDs []uuid.UUID) error {
	for _, appID := range appIDs {
		app, err := s.pricing.store.Applications().Get(appID)
		if err != nil {
			return fmt.Errorf("application %s: %w", appID, err)
		}

		// Re-resolve at confirmation time so the recorded tier matches
		// what the dealer was charged for.
		quote, err := s.pricing.ResolvePrice(app, dealerID, companyID, PurchaseAction())
		if err != nil {
			return fmt.Errorf("application %s: %w", appID, err)
		}

		result, err := s.purchases.RecordPurchase(dealerID, &RecordPurchaseRequest{
			ApplicationID:    appID,
			PaymentReference: sess.ID,
			Amount:           quote.Amount,
			Tier:             quote.Tier,
			DiscountInfo: map[string]interface{}{
				"tier":   string(quote.Tier),
				"reason": quote.Reason,
			},
		})
		if err != nil {
			return fmt.Errorf("application %s: %w", appID, err)
		}
		if !result.Created {
			logrus.WithFields(logrus.Fields{
				"session_id":     sess.ID,
				"application_id": appID,
			}).Info("Purchase already recorded for session")
			continue
		}

		if s.notifications != nil {
			purchase := result.Purchase
			go func() {
				if err := s.notifications.SendPurchaseConfirmationNotification(dealerID, purchase); err != nil {
					logrus.WithError(err).WithField("purchase_id", purchase.ID).Error("Failed to send purchase confirmation")
				}
			}()
		}
	}
	return nil
}

func (s *PaymentService) applyLockExtensions(sess *stripe.CheckoutSession, dealerID uuid.UUID, appIDs []uuid.UUID) error {
	kind := models.LockKind(sess.Metadata["lock_kind"])
	if !models.ValidLockKind(kind) {
		return fmt.Errorf("invalid lock kind %q in session %s", sess.Metadata["lock_kind"], sess.ID)
	}

	feePerApp := float64(sess.AmountTotal) / 100 / float64(len(appIDs))
	for _, appID := range appIDs {
		_, err := s.locks.Extend(dealerID, &LockRequest{
			ApplicationID:    appID,
			Kind:             kind,
			PaymentReference: sess.ID,
			FeePaid:          roundCurrency(feePerApp),
		})
		if err != nil {
			return fmt.Errorf("application %s: %w", appID, err)
		}
	}
	return nil
}

func (s *PaymentService) companyIDFromMetadata(sess *stripe.CheckoutSession) *uuid.UUID {
	raw, ok := sess.Metadata["company_id"]
	if !ok || raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
