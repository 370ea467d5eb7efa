package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
)

func TestClassifyAuthenticationRequired(t *testing.T) {
	stripeErr := &stripe.Error{
		Code: stripe.ErrorCodeAuthenticationRequired,
		PaymentIntent: &stripe.PaymentIntent{
			ClientSecret: "cs_1",
			LastPaymentError: &stripe.Error{
				PaymentMethod: &stripe.PaymentMethod{ID: "pm_1"},
			},
		},
	}

	err := classifyStripeError(stripeErr)

	var authErr *AuthenticationRequiredError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "cs_1", authErr.ClientSecret)
	assert.Equal(t, "pm_1", authErr.PaymentMethodID)
}

func TestClassifyDecline(t *testing.T) {
	err := classifyStripeError(&stripe.Error{
		Code:        stripe.ErrorCodeCardDeclined,
		DeclineCode: stripe.DeclineCodeInsufficientFunds,
	})

	var declined *DeclinedError
	require.ErrorAs(t, err, &declined)
	assert.Equal(t, string(stripe.DeclineCodeInsufficientFunds), declined.ReasonCode)
}

func TestClassifyDeclineFallsBackToErrorCode(t *testing.T) {
	err := classifyStripeError(&stripe.Error{Code: stripe.ErrorCodeExpiredCard})

	var declined *DeclinedError
	require.ErrorAs(t, err, &declined)
	assert.Equal(t, string(stripe.ErrorCodeExpiredCard), declined.ReasonCode)
}

func TestClassifyTimeout(t *testing.T) {
	err := classifyStripeError(context.DeadlineExceeded)

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
}

func TestClassifyUnknownErrorIsWrapped(t *testing.T) {
	cause := errors.New("connection reset")
	err := classifyStripeError(cause)

	assert.ErrorIs(t, err, cause)

	var declined *DeclinedError
	assert.False(t, errors.As(err, &declined), "transport faults are not declines")
}

func TestChargeRejectsInvalidInput(t *testing.T) {
	g := NewStripeGateway("sk_test_xxx")

	_, err := g.Charge(context.Background(), ChargeRequest{Amount: 0, CustomerID: "cus_1", PaymentMethodID: "pm_1"})
	require.Error(t, err)

	_, err = g.Charge(context.Background(), ChargeRequest{Amount: 100})
	require.Error(t, err)
}
