package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port            int
	DatabaseURL     string
	StripeSecretKey string
	JWTSecret       string
	Currency        string
	LogLevel        string
	CORSOrigins     []string

	// BillingSchedule is a cron spec (or "@every <duration>") that drives
	// billing cycles. Test environments run every minute; production runs at
	// a monthly-equivalent cadence.
	BillingSchedule string
	// BillingInterval is how far the next billing date advances after a
	// successful charge.
	BillingInterval Interval
	// RetryInterval is added to the cycle time after a failed or
	// action-required outcome. Zero means immediately eligible again.
	RetryInterval time.Duration
	// ChargeTimeout bounds a single gateway call.
	ChargeTimeout time.Duration
}

// Interval is a billing advance: either one calendar month or a fixed
// duration. Calendar months cannot be expressed as a time.Duration, so both
// forms are supported.
type Interval struct {
	Monthly bool
	Fixed   time.Duration
}

// Next returns the billing timestamp one interval after t.
func (iv Interval) Next(t time.Time) time.Time {
	if iv.Monthly {
		return t.AddDate(0, 1, 0)
	}
	return t.Add(iv.Fixed)
}

func (iv Interval) String() string {
	if iv.Monthly {
		return "month"
	}
	return iv.Fixed.String()
}

// ParseInterval accepts "month"/"monthly" or a Go duration string.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "month", "monthly":
		return Interval{Monthly: true}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid billing interval %q: %w", s, err)
	}
	if d <= 0 {
		return Interval{}, fmt.Errorf("billing interval must be positive, got %q", s)
	}
	return Interval{Fixed: d}, nil
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, _ := strconv.Atoi(getEnv("PORT", "4000"))

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	stripeKey := getEnv("STRIPE_SECRET_KEY", "")
	if stripeKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	interval, err := ParseInterval(getEnv("BILLING_INTERVAL", "month"))
	if err != nil {
		return nil, err
	}

	retry, err := time.ParseDuration(getEnv("RETRY_INTERVAL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_INTERVAL: %w", err)
	}
	if retry < 0 {
		return nil, fmt.Errorf("RETRY_INTERVAL must not be negative")
	}

	chargeTimeout, err := time.ParseDuration(getEnv("CHARGE_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHARGE_TIMEOUT: %w", err)
	}

	origins := strings.Split(getEnv("CORS_ORIGINS", "*"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:            port,
		DatabaseURL:     dbURL,
		StripeSecretKey: stripeKey,
		JWTSecret:       jwtSecret,
		Currency:        getEnv("BILLING_CURRENCY", "usd"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSOrigins:     origins,
		BillingSchedule: getEnv("BILLING_SCHEDULE", "@every 1m"),
		BillingInterval: interval,
		RetryInterval:   retry,
		ChargeTimeout:   chargeTimeout,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
