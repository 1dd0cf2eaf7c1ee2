// Package handlers contains the HTTP handler implementations for the
// orchestration API.
//
// This file implements the Stripe webhook handler. It is NOT behind any
// auth middleware; security comes from verifying the Stripe-Signature
// header with the webhook signing secret.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/buzzflixai/buzzflix-droplet/internal/core"
	"github.com/buzzflixai/buzzflix-droplet/internal/external"
	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// maxWebhookBodySize is the maximum allowed Stripe webhook payload (64 KB).
const maxWebhookBodySize = 64 * 1024

// SubscriptionStateUpdater synchronizes local billing state from Stripe
// events. Implementations use optimistic locking on the event timestamp so
// out-of-order deliveries cannot regress state.
type SubscriptionStateUpdater interface {
	UpdateSubscriptionStatus(
		ctx context.Context,
		stripeCustomerID string,
		newPlan types.PlanTier,
		status types.SubscriptionStatus,
		eventTimestamp time.Time,
	) error

	// UpdatePaymentFailure records dunning state without changing the plan.
	UpdatePaymentFailure(ctx context.Context, stripeCustomerID string, eventTimestamp time.Time) error
}

// StripeWebhookHandler handles asynchronous billing events from Stripe.
type StripeWebhookHandler struct {
	verifier    external.WebhookVerifier
	users       SubscriptionStateUpdater
	priceToPlan map[string]types.PlanTier
	secret      string
	logger      *slog.Logger
}

// StripeWebhookHandlerConfig holds the dependencies for creating a
// StripeWebhookHandler.
type StripeWebhookHandlerConfig struct {
	Verifier    external.WebhookVerifier
	Users       SubscriptionStateUpdater
	PriceToPlan map[string]types.PlanTier
	Secret      string
	Logger      *slog.Logger
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler.
func NewStripeWebhookHandler(cfg StripeWebhookHandlerConfig) *StripeWebhookHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier:    cfg.Verifier,
		users:       cfg.Users,
		priceToPlan: cfg.PriceToPlan,
		secret:      cfg.Secret,
		logger:      logger,
	}
}

// RegisterRoutes mounts the Stripe webhook endpoint.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// Handle processes an incoming Stripe webhook event: verify the signature,
// parse the event, apply the state change, and acknowledge. Internal
// processing failures still return 200 so Stripe does not retry forever;
// the error is logged for investigation.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body",
			"error", err,
		)
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "failed to read request body", err))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSignatureMissing, "missing Stripe-Signature header", nil))
		return
	}

	if err := h.verifier.Verify(payload, sigHeader, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed",
			"error", err,
		)
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSignatureInvalid, "webhook signature verification failed", err))
		return
	}

	var event stripeWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event JSON",
			"error", err,
		)
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "invalid webhook event JSON", err))
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
	}

	w.WriteHeader(http.StatusOK)
}

// routeEvent dispatches the event by type. Unhandled types are acknowledged
// and ignored.
func (h *StripeWebhookHandler) routeEvent(ctx context.Context, event *stripeWebhookEvent) error {
	switch event.Type {
	case external.EventStripeSubUpdated:
		return h.handleSubscriptionUpdated(ctx, event)
	case external.EventStripeSubDeleted:
		return h.handleSubscriptionDeleted(ctx, event)
	case external.EventStripePaymentFailed:
		return h.handlePaymentFailed(ctx, event)
	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_type", event.Type,
		)
		return nil
	}
}

// handleSubscriptionUpdated applies plan and status changes, covering both
// upgrades and downgrades.
func (h *StripeWebhookHandler) handleSubscriptionUpdated(ctx context.Context, event *stripeWebhookEvent) error {
	sub, err := event.subscription()
	if err != nil {
		return fmt.Errorf("%s: %w", event.Type, err)
	}

	plan := h.planForPrice(sub.priceID())
	status := mapSubscriptionStatus(sub.Status)

	h.logger.InfoContext(ctx, "processing subscription updated",
		"event_id", event.ID,
		"customer_id", sub.Customer,
		"plan", plan,
		"subscription_status", status,
	)

	return h.users.UpdateSubscriptionStatus(ctx, sub.Customer, plan, status, event.eventTimestamp())
}

// handleSubscriptionDeleted reverts the user to the entry tier with a
// canceled subscription.
func (h *StripeWebhookHandler) handleSubscriptionDeleted(ctx context.Context, event *stripeWebhookEvent) error {
	sub, err := event.subscription()
	if err != nil {
		return fmt.Errorf("%s: %w", event.Type, err)
	}

	h.logger.InfoContext(ctx, "processing subscription deleted",
		"event_id", event.ID,
		"customer_id", sub.Customer,
	)

	return h.users.UpdateSubscriptionStatus(ctx, sub.Customer, types.PlanStarter, types.SubscriptionCanceled, event.eventTimestamp())
}

// handlePaymentFailed marks the subscription past due, which stops the
// recurrence loop from picking up the user's series until payment recovers.
func (h *StripeWebhookHandler) handlePaymentFailed(ctx context.Context, event *stripeWebhookEvent) error {
	invoice, err := event.invoice()
	if err != nil {
		return fmt.Errorf("%s: %w", event.Type, err)
	}

	h.logger.WarnContext(ctx, "processing payment failure",
		"event_id", event.ID,
		"customer_id", invoice.Customer,
	)

	// Plan is left untouched; only the status degrades on dunning.
	return h.users.UpdatePaymentFailure(ctx, invoice.Customer, event.eventTimestamp())
}

// planForPrice maps a Stripe price ID onto a plan tier, falling back to the
// entry tier for unknown prices.
func (h *StripeWebhookHandler) planForPrice(priceID string) types.PlanTier {
	if plan, ok := h.priceToPlan[priceID]; ok {
		return plan
	}
	return types.PlanStarter
}

// mapSubscriptionStatus collapses Stripe's subscription statuses onto the
// three states the service distinguishes. Trialing counts as active;
// anything terminal or delinquent beyond past_due counts as canceled.
func mapSubscriptionStatus(status string) types.SubscriptionStatus {
	switch status {
	case "active", "trialing":
		return types.SubscriptionActive
	case "past_due":
		return types.SubscriptionPastDue
	default:
		return types.SubscriptionCanceled
	}
}

// ---------------------------------------------------------------------------
// Stripe Event Parsing
// ---------------------------------------------------------------------------

// stripeWebhookEvent is a minimal representation of a Stripe webhook event
// tailored to the fields this handler needs. We avoid binding to the full
// stripe.Event type to keep the handler decoupled from stripe-go and easy
// to test with hand-built payloads.
type stripeWebhookEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

// stripeSubscriptionObj holds the minimal fields of a subscription object.
type stripeSubscriptionObj struct {
	ID       string         `json:"id"`
	Customer string         `json:"customer"`
	Status   string         `json:"status"`
	Items    stripeSubItems `json:"items"`
}

type stripeSubItems struct {
	Data []stripeSubItem `json:"data"`
}

type stripeSubItem struct {
	Price stripeSubPrice `json:"price"`
}

type stripeSubPrice struct {
	ID string `json:"id"`
}

// stripeInvoiceObj holds the minimal fields of an invoice object.
type stripeInvoiceObj struct {
	Customer string `json:"customer"`
}

func (e *stripeWebhookEvent) eventTimestamp() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

func (e *stripeWebhookEvent) subscription() (*stripeSubscriptionObj, error) {
	var sub stripeSubscriptionObj
	if err := json.Unmarshal(e.Data.Object, &sub); err != nil {
		return nil, fmt.Errorf("decoding subscription object: %w", err)
	}
	if sub.Customer == "" {
		return nil, fmt.Errorf("subscription object missing customer in event %s", e.ID)
	}
	return &sub, nil
}

func (e *stripeWebhookEvent) invoice() (*stripeInvoiceObj, error) {
	var invoice stripeInvoiceObj
	if err := json.Unmarshal(e.Data.Object, &invoice); err != nil {
		return nil, fmt.Errorf("decoding invoice object: %w", err)
	}
	if invoice.Customer == "" {
		return nil, fmt.Errorf("invoice object missing customer in event %s", e.ID)
	}
	return &invoice, nil
}

func (s *stripeSubscriptionObj) priceID() string {
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].Price.ID
	}
	return ""
}
