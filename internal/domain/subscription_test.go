package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProductSubscriptionAmount(t *testing.T) {
	sub := &ProductSubscription{UnitAmount: 10.00, Quantity: 2}
	assert.Equal(t, int64(2000), sub.AmountMinorUnits())

	// Rounding happens per unit before multiplying by quantity.
	sub = &ProductSubscription{UnitAmount: 19.99, Quantity: 3}
	assert.Equal(t, int64(5997), sub.AmountMinorUnits())
}

func TestOrderSubscriptionAmount(t *testing.T) {
	sub := &OrderSubscription{
		Items: []LineItem{
			{Name: "widget", Quantity: 2, PriceIncTax: 12.50},
			{Name: "gadget", Quantity: 1, PriceIncTax: 4.99},
		},
	}
	assert.Equal(t, int64(2999), sub.AmountMinorUnits())
}

func TestMinorUnitsRounding(t *testing.T) {
	assert.Equal(t, int64(1000), MinorUnits(10.00))
	assert.Equal(t, int64(1999), MinorUnits(19.99))
	// Guard against float representation error: 0.1+0.2 style values must
	// still round to the nearest cent.
	assert.Equal(t, int64(30), MinorUnits(0.1+0.2))
}

func TestRescheduleUpdatesNextBilling(t *testing.T) {
	next := time.Now().Add(time.Hour)

	var target BillingTarget = &ProductSubscription{SubscriptionID: "p1"}
	target.Reschedule(next)
	assert.Equal(t, next, target.NextBilling())

	target = &OrderSubscription{SubscriptionID: "o1"}
	target.Reschedule(next)
	assert.Equal(t, next, target.NextBilling())
}
