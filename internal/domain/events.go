package domain

// Event names broadcast to connected listeners.
const (
	EventPaymentSuccess        = "paymentSuccess"
	EventPaymentActionRequired = "paymentActionRequired"
	EventPaymentFailed         = "paymentFailed"
)

// PaymentSuccessEvent is broadcast after a charge settles.
type PaymentSuccessEvent struct {
	SubscriptionID string `json:"subscriptionId"`
}

// PaymentActionRequiredEvent is broadcast when the gateway demands customer
// authentication. ClientSecret and PaymentMethodID let the storefront finish
// the authentication out-of-band.
type PaymentActionRequiredEvent struct {
	SubscriptionID  string `json:"subscriptionId"`
	ClientSecret    string `json:"clientSecret"`
	PaymentMethodID string `json:"paymentMethodId"`
}

// PaymentFailedEvent is broadcast on a declined or unattemptable charge.
type PaymentFailedEvent struct {
	SubscriptionID string `json:"subscriptionId"`
}
