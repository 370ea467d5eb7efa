package payment

import (
	"context"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeGateway implements Gateway and ProfileManager against the Stripe API.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway creates a gateway bound to the given secret key.
func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{api: client.New(secretKey, nil)}
}

// Charge creates and confirms an off-session PaymentIntent.
func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("charge amount must be positive, got %d", req.Amount)
	}
	if req.CustomerID == "" || req.PaymentMethodID == "" {
		return nil, fmt.Errorf("charge requires customer id and payment method id")
	}

	params := &stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(req.Currency),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classifyStripeError(err)
	}
	return &Charge{TransactionID: pi.ID}, nil
}

// classifyStripeError maps Stripe failures onto the gateway error taxonomy.
func classifyStripeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TimeoutError{Err: err}
	}

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return fmt.Errorf("stripe request failed: %w", err)
	}

	if stripeErr.Code == stripe.ErrorCodeAuthenticationRequired {
		authErr := &AuthenticationRequiredError{}
		if pi := stripeErr.PaymentIntent; pi != nil {
			authErr.ClientSecret = pi.ClientSecret
			if pi.LastPaymentError != nil && pi.LastPaymentError.PaymentMethod != nil {
				authErr.PaymentMethodID = pi.LastPaymentError.PaymentMethod.ID
			}
		}
		return authErr
	}

	reason := string(stripeErr.DeclineCode)
	if reason == "" {
		reason = string(stripeErr.Code)
	}
	return &DeclinedError{ReasonCode: reason}
}

// EnsureCustomer creates the Stripe customer on first use, or attaches the
// payment method and makes it the default on later calls.
func (g *StripeGateway) EnsureCustomer(ctx context.Context, email, paymentMethodID, existingCustomerID string) (string, error) {
	if existingCustomerID == "" {
		cust, err := g.api.Customers.New(&stripe.CustomerParams{
			Params:        stripe.Params{Context: ctx},
			Email:         stripe.String(email),
			PaymentMethod: stripe.String(paymentMethodID),
			InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
				DefaultPaymentMethod: stripe.String(paymentMethodID),
			},
		})
		if err != nil {
			return "", fmt.Errorf("failed to create stripe customer: %w", err)
		}
		return cust.ID, nil
	}

	_, err := g.api.PaymentMethods.Attach(paymentMethodID, &stripe.PaymentMethodAttachParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(existingCustomerID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to attach payment method: %w", err)
	}

	_, err = g.api.Customers.Update(existingCustomerID, &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to update stripe customer: %w", err)
	}
	return existingCustomerID, nil
}

// CreatePaymentIntent starts an on-session payment for the setup flow.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency, customerID, paymentMethodID string) (string, error) {
	pi, err := g.api.PaymentIntents.New(&stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(currency),
		Customer:      stripe.String(customerID),
		PaymentMethod: stripe.String(paymentMethodID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create payment intent: %w", err)
	}
	return pi.ClientSecret, nil
}
