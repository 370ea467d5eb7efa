package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/subcharge/backend/internal/config"
	"github.com/subcharge/backend/internal/domain"
	"github.com/subcharge/backend/pkg/payment"
)

// profileStore is the slice of the profile repository the handler needs.
type profileStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.PaymentProfile, error)
	Upsert(ctx context.Context, p *domain.PaymentProfile) error
}

// scheduleStore pushes a subscription's next billing date.
type scheduleStore interface {
	Reschedule(ctx context.Context, id string, next time.Time) error
}

// PaymentHandler serves the payment setup and confirmation endpoints.
type PaymentHandler struct {
	profiles profileStore
	subs     scheduleStore
	manager  payment.ProfileManager
	currency string
	interval config.Interval
	validate *validator.Validate
	log      *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(
	profiles profileStore,
	subs scheduleStore,
	manager payment.ProfileManager,
	cfg *config.Config,
	log *logrus.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		profiles: profiles,
		subs:     subs,
		manager:  manager,
		currency: cfg.Currency,
		interval: cfg.BillingInterval,
		validate: validator.New(),
		log:      log,
	}
}

// SetupRequest is the input for creating or replacing a payment profile.
type SetupRequest struct {
	Email           string  `json:"email" validate:"required,email"`
	PaymentMethodID string  `json:"paymentMethodId" validate:"required"`
	Amount          float64 `json:"amount" validate:"required,gt=0"`
}

// Setup handles POST /api/payment/setup. It creates the gateway customer on
// first use (or attaches the new payment method as default), stores the
// payment profile, and returns the client secret of an on-session payment
// intent for the storefront to confirm.
func (h *PaymentHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		Error(w, domain.ErrValidation(err.Error()))
		return
	}

	ctx := r.Context()

	existing, err := h.profiles.FindByEmail(ctx, req.Email)
	if err != nil {
		Error(w, domain.ErrInternal("failed to look up payment profile", err))
		return
	}
	existingCustomerID := ""
	if existing != nil {
		existingCustomerID = existing.CustomerID
	}

	customerID, err := h.manager.EnsureCustomer(ctx, req.Email, req.PaymentMethodID, existingCustomerID)
	if err != nil {
		Error(w, domain.ErrInternal("failed to set up gateway customer", err))
		return
	}

	if err := h.profiles.Upsert(ctx, &domain.PaymentProfile{
		Email:           req.Email,
		CustomerID:      customerID,
		PaymentMethodID: req.PaymentMethodID,
	}); err != nil {
		Error(w, domain.ErrInternal("failed to store payment profile", err))
		return
	}

	clientSecret, err := h.manager.CreatePaymentIntent(ctx,
		domain.MinorUnits(req.Amount), h.currency, customerID, req.PaymentMethodID)
	if err != nil {
		Error(w, domain.ErrInternal("failed to create payment intent", err))
		return
	}

	h.log.WithField("email", req.Email).Info("payment profile stored")
	JSON(w, http.StatusCreated, map[string]string{"clientSecret": clientSecret})
}

// Confirm handles GET /api/subscriptions/{id}/confirm. After the customer
// completes authentication out-of-band, the storefront calls this to push the
// next billing date one interval forward so the billed cycle is not
// re-attempted.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		Error(w, domain.ErrBadRequest("subscription id required"))
		return
	}

	next := h.interval.Next(time.Now().UTC())
	if err := h.subs.Reschedule(r.Context(), id, next); err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			Error(w, domain.ErrNotFound("subscription not found"))
			return
		}
		Error(w, domain.ErrInternal("failed to confirm payment", err))
		return
	}

	h.log.WithFields(logrus.Fields{
		"subscription_id":   id,
		"next_billing_date": next,
	}).Info("payment confirmed, schedule advanced")
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
