package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/subcharge/backend/internal/config"
	"github.com/subcharge/backend/internal/domain"
	"github.com/subcharge/backend/pkg/payment"
)

// Cycle states for one subscription within one billing cycle. Due is the
// entry state; Paid, ActionRequired and Failed are terminal for the cycle and
// each resolves into a schedule update.
type cycleState string

const (
	stateDue            cycleState = "due"
	stateCharging       cycleState = "charging"
	statePaid           cycleState = "paid"
	stateActionRequired cycleState = "action_required"
	stateFailed         cycleState = "failed"
)

// SubscriptionStore is the slice of the store the billing engine needs.
type SubscriptionStore interface {
	FindDue(ctx context.Context, now time.Time) ([]domain.BillingTarget, error)
	Reschedule(ctx context.Context, id string, next time.Time) error
}

// ProfileStore looks up payment profiles by owner email.
type ProfileStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.PaymentProfile, error)
}

// Publisher broadcasts an event to all connected listeners, best-effort.
type Publisher interface {
	Publish(event string, payload interface{})
}

// BillingService drives due subscriptions through the charge state machine.
type BillingService struct {
	subs     SubscriptionStore
	profiles ProfileStore
	gateway  payment.Gateway
	events   Publisher
	log      *logrus.Logger

	currency      string
	interval      config.Interval
	retryInterval time.Duration
	chargeTimeout time.Duration
}

// NewBillingService wires the billing engine. All collaborators are injected
// so tests can substitute fakes.
func NewBillingService(
	subs SubscriptionStore,
	profiles ProfileStore,
	gateway payment.Gateway,
	events Publisher,
	log *logrus.Logger,
	cfg *config.Config,
) *BillingService {
	return &BillingService{
		subs:          subs,
		profiles:      profiles,
		gateway:       gateway,
		events:        events,
		log:           log,
		currency:      cfg.Currency,
		interval:      cfg.BillingInterval,
		retryInterval: cfg.RetryInterval,
		chargeTimeout: cfg.ChargeTimeout,
	}
}

// RunCycle processes every subscription due at the time of the call. A store
// failure aborts the cycle; per-subscription failures are classified into
// state transitions and never propagate past the subscription boundary.
func (s *BillingService) RunCycle(ctx context.Context) error {
	now := time.Now().UTC()
	cycleLog := s.log.WithField("cycle_id", uuid.New().String())

	targets, err := s.subs.FindDue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to select due subscriptions: %w", err)
	}
	if len(targets) == 0 {
		cycleLog.Debug("no subscriptions due")
		return nil
	}
	cycleLog.WithField("due", len(targets)).Info("billing cycle started")

	for _, target := range targets {
		s.processSubscription(ctx, cycleLog, target, now)
	}

	cycleLog.Info("billing cycle completed")
	return nil
}

// processSubscription runs Due -> Charging -> {Paid, ActionRequired, Failed}
// for one target. The terminal state decides the schedule update and the
// event broadcast.
func (s *BillingService) processSubscription(ctx context.Context, cycleLog *logrus.Entry, target domain.BillingTarget, now time.Time) {
	log := cycleLog.WithFields(logrus.Fields{
		"subscription_id": target.ID(),
		"state":           stateDue,
	})

	profile, err := s.profiles.FindByEmail(ctx, target.Email())
	if err != nil {
		log.WithError(err).Error("payment profile lookup failed")
		s.fail(ctx, log, target, now)
		return
	}
	if profile == nil {
		log.WithError(domain.ErrNoPaymentProfile).WithField("email", target.Email()).
			Warn("skipping charge, no payment profile")
		s.fail(ctx, log, target, now)
		return
	}

	log = log.WithField("state", stateCharging)
	amount := target.AmountMinorUnits()

	chargeCtx, cancel := context.WithTimeout(ctx, s.chargeTimeout)
	charge, err := s.gateway.Charge(chargeCtx, payment.ChargeRequest{
		Amount:          amount,
		Currency:        s.currency,
		CustomerID:      profile.CustomerID,
		PaymentMethodID: profile.PaymentMethodID,
		IdempotencyKey:  idempotencyKey(target.ID(), now),
	})
	cancel()

	if err == nil {
		s.succeed(ctx, log, target, now, charge)
		return
	}

	var authErr *payment.AuthenticationRequiredError
	if errors.As(err, &authErr) {
		s.requireAction(ctx, log, target, now, authErr)
		return
	}

	var declined *payment.DeclinedError
	if errors.As(err, &declined) {
		log.WithField("reason", declined.ReasonCode).Warn("charge declined")
	} else {
		// Timeouts and transport faults count as declined-class transient
		// failures; the idempotency key keeps the next attempt safe.
		log.WithError(err).Warn("charge failed")
	}
	s.fail(ctx, log, target, now)
}

// succeed advances the schedule one interval and broadcasts paymentSuccess.
func (s *BillingService) succeed(ctx context.Context, log *logrus.Entry, target domain.BillingTarget, now time.Time, charge *payment.Charge) {
	log = log.WithFields(logrus.Fields{"state": statePaid, "transaction_id": charge.TransactionID})

	next := s.interval.Next(now)
	if err := s.reschedule(ctx, target, next); err != nil {
		// The customer has been charged but the schedule did not advance.
		// This is the one inconsistency that needs a human: flag it apart
		// from ordinary failures.
		perr := &domain.PostChargePersistenceError{
			SubscriptionID: target.ID(),
			TransactionID:  charge.TransactionID,
			Err:            err,
		}
		log.WithError(perr).WithField("reconciliation_required", true).
			Error("charge succeeded but schedule update failed")
	} else {
		log.WithField("next_billing_date", next).Info("payment succeeded")
	}

	s.events.Publish(domain.EventPaymentSuccess, domain.PaymentSuccessEvent{
		SubscriptionID: target.ID(),
	})
}

// requireAction resets the schedule for retry and broadcasts the client
// secret so the customer can authenticate out-of-band.
func (s *BillingService) requireAction(ctx context.Context, log *logrus.Entry, target domain.BillingTarget, now time.Time, authErr *payment.AuthenticationRequiredError) {
	log = log.WithField("state", stateActionRequired)

	if err := s.reschedule(ctx, target, now.Add(s.retryInterval)); err != nil {
		log.WithError(err).Error("failed to reset billing date")
	}
	log.Warn("payment requires customer authentication")

	s.events.Publish(domain.EventPaymentActionRequired, domain.PaymentActionRequiredEvent{
		SubscriptionID:  target.ID(),
		ClientSecret:    authErr.ClientSecret,
		PaymentMethodID: authErr.PaymentMethodID,
	})
}

// fail resets the schedule for retry and broadcasts paymentFailed.
func (s *BillingService) fail(ctx context.Context, log *logrus.Entry, target domain.BillingTarget, now time.Time) {
	log = log.WithField("state", stateFailed)

	if err := s.reschedule(ctx, target, now.Add(s.retryInterval)); err != nil {
		log.WithError(err).Error("failed to reset billing date")
	}

	s.events.Publish(domain.EventPaymentFailed, domain.PaymentFailedEvent{
		SubscriptionID: target.ID(),
	})
}

func (s *BillingService) reschedule(ctx context.Context, target domain.BillingTarget, next time.Time) error {
	if err := s.subs.Reschedule(ctx, target.ID(), next); err != nil {
		return err
	}
	target.Reschedule(next)
	return nil
}

// idempotencyKey is unique per (subscription, cycle): re-sending the same
// cycle's request after a transient fault cannot double-charge.
func idempotencyKey(subscriptionID string, cycleTime time.Time) string {
	return fmt.Sprintf("sub_%s_%d", subscriptionID, cycleTime.Unix())
}
