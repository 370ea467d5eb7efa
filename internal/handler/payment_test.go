package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subcharge/backend/internal/config"
	"github.com/subcharge/backend/internal/domain"
)

type fakeProfileStore struct {
	profiles map[string]*domain.PaymentProfile
	upserted []*domain.PaymentProfile
}

func (f *fakeProfileStore) FindByEmail(ctx context.Context, email string) (*domain.PaymentProfile, error) {
	return f.profiles[email], nil
}

func (f *fakeProfileStore) Upsert(ctx context.Context, p *domain.PaymentProfile) error {
	f.upserted = append(f.upserted, p)
	return nil
}

type fakeScheduleStore struct {
	known       map[string]bool
	rescheduled map[string]time.Time
}

func (f *fakeScheduleStore) Reschedule(ctx context.Context, id string, next time.Time) error {
	if !f.known[id] {
		return domain.ErrSubscriptionNotFound
	}
	if f.rescheduled == nil {
		f.rescheduled = make(map[string]time.Time)
	}
	f.rescheduled[id] = next
	return nil
}

type fakeManager struct {
	customers map[string]string // email -> created customer id
	intents   int
}

func (f *fakeManager) EnsureCustomer(ctx context.Context, email, paymentMethodID, existingCustomerID string) (string, error) {
	if existingCustomerID != "" {
		return existingCustomerID, nil
	}
	if f.customers == nil {
		f.customers = make(map[string]string)
	}
	id := "cus_" + email
	f.customers[email] = id
	return id, nil
}

func (f *fakeManager) CreatePaymentIntent(ctx context.Context, amount int64, currency, customerID, paymentMethodID string) (string, error) {
	f.intents++
	return "cs_test", nil
}

func handlerConfig() *config.Config {
	return &config.Config{
		Currency:        "usd",
		BillingInterval: config.Interval{Fixed: 2 * time.Minute},
	}
}

func newTestHandler(profiles *fakeProfileStore, subs *fakeScheduleStore, mgr *fakeManager) *PaymentHandler {
	log, _ := logrustest.NewNullLogger()
	return NewPaymentHandler(profiles, subs, mgr, handlerConfig(), log)
}

func TestSetupCreatesProfileAndReturnsClientSecret(t *testing.T) {
	profiles := &fakeProfileStore{profiles: map[string]*domain.PaymentProfile{}}
	mgr := &fakeManager{}
	h := newTestHandler(profiles, &fakeScheduleStore{}, mgr)

	body, _ := json.Marshal(map[string]interface{}{
		"email":           "alice@example.com",
		"paymentMethodId": "pm_123",
		"amount":          25.50,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/payment/setup", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Setup(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cs_test", resp["clientSecret"])

	require.Len(t, profiles.upserted, 1)
	assert.Equal(t, "alice@example.com", profiles.upserted[0].Email)
	assert.Equal(t, "cus_alice@example.com", profiles.upserted[0].CustomerID)
	assert.Equal(t, "pm_123", profiles.upserted[0].PaymentMethodID)
	assert.Equal(t, 1, mgr.intents)
}

func TestSetupReusesExistingCustomer(t *testing.T) {
	profiles := &fakeProfileStore{profiles: map[string]*domain.PaymentProfile{
		"alice@example.com": {
			Email:           "alice@example.com",
			CustomerID:      "cus_existing",
			PaymentMethodID: "pm_old",
		},
	}}
	h := newTestHandler(profiles, &fakeScheduleStore{}, &fakeManager{})

	body, _ := json.Marshal(map[string]interface{}{
		"email":           "alice@example.com",
		"paymentMethodId": "pm_new",
		"amount":          10.0,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/payment/setup", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Setup(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, profiles.upserted, 1)
	assert.Equal(t, "cus_existing", profiles.upserted[0].CustomerID)
	assert.Equal(t, "pm_new", profiles.upserted[0].PaymentMethodID)
}

func TestSetupValidatesInput(t *testing.T) {
	h := newTestHandler(&fakeProfileStore{}, &fakeScheduleStore{}, &fakeManager{})

	cases := []map[string]interface{}{
		{"paymentMethodId": "pm_123", "amount": 10.0},                              // missing email
		{"email": "not-an-email", "paymentMethodId": "pm_123", "amount": 10.0},     // bad email
		{"email": "alice@example.com", "amount": 10.0},                             // missing payment method
		{"email": "alice@example.com", "paymentMethodId": "pm_123", "amount": 0.0}, // non-positive amount
	}
	for _, payload := range cases {
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/api/payment/setup", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		h.Setup(rec, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "payload: %v", payload)
	}
}

func TestConfirmAdvancesSchedule(t *testing.T) {
	subs := &fakeScheduleStore{known: map[string]bool{"sub_1": true}}
	h := newTestHandler(&fakeProfileStore{}, subs, &fakeManager{})

	r := chi.NewRouter()
	r.Get("/api/subscriptions/{id}/confirm", h.Confirm)

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions/sub_1/confirm", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	next, ok := subs.rescheduled["sub_1"]
	require.True(t, ok)
	assert.True(t, next.After(time.Now().UTC().Add(time.Minute)),
		"confirm must push the next billing date one interval forward")
}

func TestConfirmUnknownSubscription(t *testing.T) {
	h := newTestHandler(&fakeProfileStore{}, &fakeScheduleStore{}, &fakeManager{})

	r := chi.NewRouter()
	r.Get("/api/subscriptions/{id}/confirm", h.Confirm)

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions/missing/confirm", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
