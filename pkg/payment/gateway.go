package payment

import (
	"context"
	"fmt"
)

// ChargeRequest describes one off-session charge attempt. The idempotency key
// must be unique per (subscription, cycle) so a retried request after a
// transient network fault cannot double-charge.
type ChargeRequest struct {
	Amount          int64 // minor units, must be > 0
	Currency        string
	CustomerID      string
	PaymentMethodID string
	IdempotencyKey  string
}

// Charge is a settled gateway transaction.
type Charge struct {
	TransactionID string
}

// Gateway wraps the create-and-confirm charge operation of an external
// payment provider. Failed charges surface as AuthenticationRequiredError,
// DeclinedError or TimeoutError; anything else is a transport fault.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
}

// ProfileManager covers the customer-setup side of the provider: creating or
// updating the customer/payment-method pair behind a payment profile.
type ProfileManager interface {
	// EnsureCustomer creates the provider customer on first use, or attaches
	// the new payment method as default on subsequent calls. Returns the
	// provider customer id.
	EnsureCustomer(ctx context.Context, email, paymentMethodID, existingCustomerID string) (string, error)
	// CreatePaymentIntent starts an on-session payment and returns its client
	// secret for the storefront to confirm.
	CreatePaymentIntent(ctx context.Context, amount int64, currency, customerID, paymentMethodID string) (string, error)
}

// AuthenticationRequiredError means the provider needs the cardholder to act
// (e.g. strong customer authentication) before the charge can complete.
type AuthenticationRequiredError struct {
	PaymentMethodID string
	ClientSecret    string
}

func (e *AuthenticationRequiredError) Error() string {
	return "charge requires customer authentication"
}

// DeclinedError is a terminal decline for this attempt; the provider will not
// retry it.
type DeclinedError struct {
	ReasonCode string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("charge declined: %s", e.ReasonCode)
}

// TimeoutError means the charge outcome is unknown because the provider did
// not answer in time. Treated as a transient, declined-class failure: the
// idempotency key makes the next cycle's retry safe.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("gateway call timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
