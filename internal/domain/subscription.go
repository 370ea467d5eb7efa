package domain

import (
	"math"
	"time"
)

// SubscriptionKind discriminates the two billing target variants.
type SubscriptionKind string

const (
	KindProduct SubscriptionKind = "product"
	KindOrder   SubscriptionKind = "order"
)

// BillingTarget is one billable line item under recurring charge. The billing
// state machine only depends on this contract; the variants differ in how the
// charge amount is derived.
type BillingTarget interface {
	ID() string
	Email() string
	// AmountMinorUnits returns the charge amount converted to the gateway's
	// minor currency unit (e.g. cents).
	AmountMinorUnits() int64
	NextBilling() time.Time
	Reschedule(next time.Time)
}

// ProductSubscription bills a single product: unit amount times quantity.
type ProductSubscription struct {
	SubscriptionID  string    `json:"subscriptionId"`
	OwnerEmail      string    `json:"email"`
	UnitAmount      float64   `json:"unitAmount"`
	Quantity        int64     `json:"quantity"`
	Active          bool      `json:"active"`
	NextBillingDate time.Time `json:"nextBillingDate"`
}

func (s *ProductSubscription) ID() string    { return s.SubscriptionID }
func (s *ProductSubscription) Email() string { return s.OwnerEmail }

func (s *ProductSubscription) AmountMinorUnits() int64 {
	return MinorUnits(s.UnitAmount) * s.Quantity
}

func (s *ProductSubscription) NextBilling() time.Time    { return s.NextBillingDate }
func (s *ProductSubscription) Reschedule(next time.Time) { s.NextBillingDate = next }

// LineItem is one product line inside an order subscription.
type LineItem struct {
	ProductID   int64   `json:"product_id"`
	Name        string  `json:"name"`
	Quantity    int64   `json:"quantity"`
	PriceIncTax float64 `json:"price_inc_tax"`
}

// OrderSubscription bills a whole order: the sum of its line items.
type OrderSubscription struct {
	SubscriptionID  string     `json:"subscriptionId"`
	OwnerEmail      string     `json:"email"`
	Items           []LineItem `json:"items"`
	Active          bool       `json:"active"`
	NextBillingDate time.Time  `json:"nextBillingDate"`
}

func (s *OrderSubscription) ID() string    { return s.SubscriptionID }
func (s *OrderSubscription) Email() string { return s.OwnerEmail }

func (s *OrderSubscription) AmountMinorUnits() int64 {
	var total int64
	for _, item := range s.Items {
		total += MinorUnits(item.PriceIncTax) * item.Quantity
	}
	return total
}

func (s *OrderSubscription) NextBilling() time.Time    { return s.NextBillingDate }
func (s *OrderSubscription) Reschedule(next time.Time) { s.NextBillingDate = next }

// MinorUnits converts a major-unit decimal amount to minor units.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// PaymentProfile links an email to a gateway customer and its default
// payment method. At most one profile exists per email.
type PaymentProfile struct {
	Email           string    `json:"email"`
	CustomerID      string    `json:"customerId"`
	PaymentMethodID string    `json:"paymentMethodId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
