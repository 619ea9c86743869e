package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/connectapp/connect-backend/internal/logger"
	"github.com/connectapp/connect-backend/internal/store"
	"github.com/stripe/stripe-go/v84"
)

type mockUserStore struct {
	users map[string]*store.User
	err   error

	customerIDs map[string]string
	accountIDs  map[string]string
}

func (m *mockUserStore) GetUser(ctx context.Context, uid string) (*store.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users[uid], nil
}

func (m *mockUserStore) SetUserStripeCustomerID(ctx context.Context, uid, customerID string) error {
	if m.customerIDs == nil {
		m.customerIDs = map[string]string{}
	}
	m.customerIDs[uid] = customerID
	return nil
}

func (m *mockUserStore) SetUserStripeAccountID(ctx context.Context, uid, accountID string) error {
	if m.accountIDs == nil {
		m.accountIDs = map[string]string{}
	}
	m.accountIDs[uid] = accountID
	return nil
}

type mockConsultationStore struct {
	err error

	markedConsultationID   string
	markedPaymentIntentID  string
	markConsultationsCalls int
}

func (m *mockConsultationStore) MarkConsultationPaid(ctx context.Context, consultationID, paymentIntentID string) error {
	m.markConsultationsCalls++
	if m.err != nil {
		return m.err
	}
	m.markedConsultationID = consultationID
	m.markedPaymentIntentID = paymentIntentID
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{})
}

func newTestService(users *mockUserStore, consultations *mockConsultationStore) *Service {
	return NewService(users, consultations, "sk_test_dummy", "whsec_dummy", testLogger())
}

func TestGetOrCreateCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("existing customer ID is reused without a stripe call", func(t *testing.T) {
		users := &mockUserStore{users: map[string]*store.User{
			"u1": {UID: "u1", StripeCustomerID: "cus_existing"},
		}}
		service := newTestService(users, &mockConsultationStore{})

		id, err := service.GetOrCreateCustomer(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "cus_existing" {
			t.Errorf("expected cus_existing, got %q", id)
		}
		if len(users.customerIDs) != 0 {
			t.Errorf("expected no customer ID writes, got %v", users.customerIDs)
		}
	})

	t.Run("unknown user yields ErrUserNotFound", func(t *testing.T) {
		service := newTestService(&mockUserStore{}, &mockConsultationStore{})

		_, err := service.GetOrCreateCustomer(ctx, "ghost")
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("storage failure propagates", func(t *testing.T) {
		wantErr := errors.New("firestore unavailable")
		service := newTestService(&mockUserStore{err: wantErr}, &mockConsultationStore{})

		_, err := service.GetOrCreateCustomer(ctx, "u1")
		if !errors.Is(err, wantErr) {
			t.Errorf("expected storage error, got %v", err)
		}
	})
}

func TestChargeStoredPaymentMethodValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("non-positive amount is rejected before any lookup", func(t *testing.T) {
		wantErr := errors.New("should not be reached")
		service := newTestService(&mockUserStore{err: wantErr}, &mockConsultationStore{})

		if _, err := service.ChargeStoredPaymentMethod(ctx, "u1", 0, "cad"); err == nil {
			t.Error("expected error for zero amount")
		} else if errors.Is(err, wantErr) {
			t.Error("expected validation to short-circuit the user lookup")
		}
		if _, err := service.ChargeStoredPaymentMethod(ctx, "u1", -5, "cad"); err == nil {
			t.Error("expected error for negative amount")
		}
	})

	t.Run("unknown user yields ErrUserNotFound", func(t *testing.T) {
		service := newTestService(&mockUserStore{}, &mockConsultationStore{})

		_, err := service.ChargeStoredPaymentMethod(ctx, "ghost", 25, "cad")
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("user without stored method yields ErrNoStoredPaymentMethod", func(t *testing.T) {
		users := &mockUserStore{users: map[string]*store.User{
			"no-method":   {UID: "no-method", StripeCustomerID: "cus_1"},
			"no-customer": {UID: "no-customer", DefaultPaymentMethodID: "pm_1"},
		}}
		service := newTestService(users, &mockConsultationStore{})

		for _, uid := range []string{"no-method", "no-customer"} {
			if _, err := service.ChargeStoredPaymentMethod(ctx, uid, 25, "cad"); !errors.Is(err, ErrNoStoredPaymentMethod) {
				t.Errorf("uid %s: expected ErrNoStoredPaymentMethod, got %v", uid, err)
			}
		}
	})
}

func TestCreateExpressAccountLinkValidation(t *testing.T) {
	service := newTestService(&mockUserStore{}, &mockConsultationStore{})

	_, _, err := service.CreateExpressAccountLink(context.Background(), "ghost")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreateCheckoutSessionValidation(t *testing.T) {
	ctx := context.Background()
	service := newTestService(&mockUserStore{}, &mockConsultationStore{})

	cases := []struct {
		name   string
		params CheckoutParams
	}{
		{"missing consultation ID", CheckoutParams{Cost: 25, HelperAccountID: "acct_1"}},
		{"non-positive cost", CheckoutParams{ConsultationID: "c1", HelperAccountID: "acct_1"}},
		{"missing helper account", CheckoutParams{ConsultationID: "c1", Cost: 25}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := service.CreateCheckoutSession(ctx, "u1", tc.params); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestHandleWebhook(t *testing.T) {
	t.Run("invalid signature is rejected", func(t *testing.T) {
		service := newTestService(&mockUserStore{}, &mockConsultationStore{})

		err := service.HandleWebhook(context.Background(), []byte(`{}`), "bad-signature")
		if err == nil {
			t.Error("expected signature verification error")
		}
	})
}

func TestHandlePaymentSucceeded(t *testing.T) {
	ctx := context.Background()

	paymentIntentEvent := func(t *testing.T, pi stripe.PaymentIntent) stripe.Event {
		t.Helper()
		raw, err := json.Marshal(pi)
		if err != nil {
			t.Fatalf("failed to marshal payment intent: %v", err)
		}
		return stripe.Event{
			Type: "payment_intent.succeeded",
			Data: &stripe.EventData{Raw: raw},
		}
	}

	t.Run("marks the referenced consultation paid", func(t *testing.T) {
		consultations := &mockConsultationStore{}
		service := newTestService(&mockUserStore{}, consultations)

		event := paymentIntentEvent(t, stripe.PaymentIntent{
			ID:       "pi_123",
			Metadata: map[string]string{"consultationId": "consult-1"},
		})
		if err := service.handlePaymentSucceeded(ctx, event); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if consultations.markedConsultationID != "consult-1" {
			t.Errorf("expected consult-1, got %q", consultations.markedConsultationID)
		}
		if consultations.markedPaymentIntentID != "pi_123" {
			t.Errorf("expected pi_123, got %q", consultations.markedPaymentIntentID)
		}
	})

	t.Run("intent without consultation metadata is ignored", func(t *testing.T) {
		consultations := &mockConsultationStore{}
		service := newTestService(&mockUserStore{}, consultations)

		event := paymentIntentEvent(t, stripe.PaymentIntent{ID: "pi_123"})
		if err := service.handlePaymentSucceeded(ctx, event); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if consultations.markConsultationsCalls != 0 {
			t.Errorf("expected no store writes, got %d", consultations.markConsultationsCalls)
		}
	})

	t.Run("store failure propagates", func(t *testing.T) {
		wantErr := errors.New("firestore unavailable")
		consultations := &mockConsultationStore{err: wantErr}
		service := newTestService(&mockUserStore{}, consultations)

		event := paymentIntentEvent(t, stripe.PaymentIntent{
			ID:       "pi_123",
			Metadata: map[string]string{"consultationId": "consult-1"},
		})
		if err := service.handlePaymentSucceeded(ctx, event); !errors.Is(err, wantErr) {
			t.Errorf("expected store error, got %v", err)
		}
	})

	t.Run("malformed event payload is an error", func(t *testing.T) {
		service := newTestService(&mockUserStore{}, &mockConsultationStore{})

		event := stripe.Event{
			Type: "payment_intent.succeeded",
			Data: &stripe.EventData{Raw: json.RawMessage(`{"id":`)},
		}
		if err := service.handlePaymentSucceeded(ctx, event); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestAmountHelpers(t *testing.T) {
	t.Run("major units convert to rounded cents", func(t *testing.T) {
		cases := []struct {
			amount float64
			want   int64
		}{
			{25, 2500},
			{25.5, 2550},
			{19.999, 2000},
			{0.015, 2},
		}
		for _, tc := range cases {
			if got := toMinorUnits(tc.amount); got != tc.want {
				t.Errorf("toMinorUnits(%v): expected %d, got %d", tc.amount, tc.want, got)
			}
		}
	})

	t.Run("platform fee is fifteen percent rounded", func(t *testing.T) {
		cases := []struct {
			amount int64
			want   int64
		}{
			{2500, 375},
			{1000, 150},
			{1, 0},
			{10, 2},
		}
		for _, tc := range cases {
			if got := applicationFee(tc.amount); got != tc.want {
				t.Errorf("applicationFee(%d): expected %d, got %d", tc.amount, tc.want, got)
			}
		}
	})
}

func TestCustomerName(t *testing.T) {
	cases := []struct {
		name string
		user *store.User
		want string
	}{
		{"full name wins", &store.User{FullName: "Alice Smith", Name: "Alice"}, "Alice Smith"},
		{"short name fallback", &store.User{Name: "Alice"}, "Alice"},
		{"no name at all", &store.User{}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := customerName(tc.user); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
