package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/connectapp/connect-backend/internal/logger"
	"github.com/connectapp/connect-backend/internal/store"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/accountlink"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/setupintent"
	"github.com/stripe/stripe-go/v84/webhook"
)

// platformFeeRate is the platform's cut of a consultation payment.
const platformFeeRate = 0.15

const (
	expressAccountCountry = "CA"
	defaultCurrency       = "cad"

	defaultOnboardingRefreshURL = "https://connectapp.page.link/onboarding_refresh"
	defaultOnboardingReturnURL  = "https://connectapp.page.link/onboarding_success"
	defaultCheckoutSuccessURL   = "https://connectapp.page.link/success"
	defaultCheckoutCancelURL    = "https://connectapp.page.link/cancel"
)

// ErrUserNotFound is returned when a payment operation references a user with
// no document in the store.
var ErrUserNotFound = errors.New("user not found")

// ErrNoStoredPaymentMethod is returned when an off-session charge is
// requested for a user without a stored default payment method.
var ErrNoStoredPaymentMethod = errors.New("no stored payment method")

// UserStore is the slice of the store the payment service needs for users.
type UserStore interface {
	GetUser(ctx context.Context, uid string) (*store.User, error)
	SetUserStripeCustomerID(ctx context.Context, uid, customerID string) error
	SetUserStripeAccountID(ctx context.Context, uid, accountID string) error
}

// ConsultationStore records payment outcomes on consultations.
type ConsultationStore interface {
	MarkConsultationPaid(ctx context.Context, consultationID, paymentIntentID string) error
}

// Service delegates payment operations to Stripe. It adds no payment logic of
// its own beyond field mapping and persisting the Stripe identifiers back to
// the user document.
type Service struct {
	users         UserStore
	consultations ConsultationStore
	webhookSecret string
	logger        *logger.Logger
}

// NewService creates a new payment service and configures the Stripe SDK key.
func NewService(users UserStore, consultations ConsultationStore, secretKey, webhookSecret string, logger *logger.Logger) *Service {
	log := logger.WithComponent("payments")

	if secretKey == "" {
		log.Warn("Stripe secret key is empty - API calls will fail")
	}
	stripe.Key = secretKey

	return &Service{
		users:         users,
		consultations: consultations,
		webhookSecret: webhookSecret,
		logger:        log,
	}
}

// GetOrCreateCustomer returns the user's Stripe customer ID, creating the
// customer on first use and persisting the ID on the user document.
func (s *Service) GetOrCreateCustomer(ctx context.Context, uid string) (string, error) {
	user, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{}
	if user.Email != "" {
		params.Email = stripe.String(user.Email)
	}
	if name := customerName(user); name != "" {
		params.Name = stripe.String(name)
	}
	params.AddMetadata("firebaseUID", uid)

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}

	if err := s.users.SetUserStripeCustomerID(ctx, uid, cust.ID); err != nil {
		return "", err
	}

	s.logger.Info("stripe customer created", "user_id", uid, "customer_id", cust.ID)
	return cust.ID, nil
}

// CreateSetupIntent creates a card setup intent so the client can store a
// payment method for later off-session charges.
func (s *Service) CreateSetupIntent(ctx context.Context, uid string) (string, error) {
	customerID, err := s.GetOrCreateCustomer(ctx, uid)
	if err != nil {
		return "", err
	}

	si, err := setupintent.New(&stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create setup intent: %w", err)
	}

	return si.ClientSecret, nil
}

// ChargeStoredPaymentMethod charges the user's stored default payment method
// off-session. The amount is in the currency's major unit.
func (s *Service) ChargeStoredPaymentMethod(ctx context.Context, uid string, amount float64, currency string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("invalid amount: %v", amount)
	}
	if currency == "" {
		currency = defaultCurrency
	}

	user, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	if user.StripeCustomerID == "" || user.DefaultPaymentMethodID == "" {
		return "", ErrNoStoredPaymentMethod
	}

	pi, err := paymentintent.New(&stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toMinorUnits(amount)),
		Currency:      stripe.String(currency),
		Customer:      stripe.String(user.StripeCustomerID),
		PaymentMethod: stripe.String(user.DefaultPaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("off-session charge failed: %w", err)
	}

	s.logger.Info("off-session charge confirmed", "user_id", uid, "payment_intent_id", pi.ID)
	return pi.ID, nil
}

// CreateExpressAccountLink returns an onboarding link for the user's Express
// account, creating the account on first use.
func (s *Service) CreateExpressAccountLink(ctx context.Context, uid string) (url, accountID string, err error) {
	user, err := s.users.GetUser(ctx, uid)
	if err != nil {
		return "", "", err
	}
	if user == nil {
		return "", "", ErrUserNotFound
	}

	accountID = user.StripeAccountID
	if accountID == "" {
		params := &stripe.AccountParams{
			Type:    stripe.String(string(stripe.AccountTypeExpress)),
			Country: stripe.String(expressAccountCountry),
			Capabilities: &stripe.AccountCapabilitiesParams{
				Transfers: &stripe.AccountCapabilitiesTransfersParams{
					Requested: stripe.Bool(true),
				},
			},
		}
		if user.Email != "" {
			params.Email = stripe.String(user.Email)
		}

		acct, err := account.New(params)
		if err != nil {
			return "", "", fmt.Errorf("failed to create express account: %w", err)
		}
		accountID = acct.ID

		if err := s.users.SetUserStripeAccountID(ctx, uid, accountID); err != nil {
			return "", "", err
		}
	}

	link, err := accountlink.New(&stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(defaultOnboardingRefreshURL),
		ReturnURL:  stripe.String(defaultOnboardingReturnURL),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to create account link: %w", err)
	}

	return link.URL, accountID, nil
}

// CheckoutParams describes a consultation checkout request.
type CheckoutParams struct {
	ConsultationID  string
	Cost            float64
	HelperAccountID string
	Currency        string
	SuccessURL      string
	CancelURL       string
}

// CreateCheckoutSession builds a Stripe Checkout Session for a consultation
// payment, with the platform fee taken as an application fee and the rest
// transferred to the helper's Express account.
func (s *Service) CreateCheckoutSession(ctx context.Context, uid string, p CheckoutParams) (sessionID, checkoutURL string, err error) {
	if p.ConsultationID == "" || p.Cost <= 0 || p.HelperAccountID == "" {
		return "", "", fmt.Errorf("missing required checkout fields")
	}
	if p.Currency == "" {
		p.Currency = defaultCurrency
	}
	if p.SuccessURL == "" {
		p.SuccessURL = defaultCheckoutSuccessURL
	}
	if p.CancelURL == "" {
		p.CancelURL = defaultCheckoutCancelURL
	}

	customerID, err := s.GetOrCreateCustomer(ctx, uid)
	if err != nil {
		return "", "", err
	}

	amount := toMinorUnits(p.Cost)
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(p.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Consultation (%s)", p.ConsultationID)),
					},
					UnitAmount: stripe.Int64(amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(applicationFee(amount)),
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(p.HelperAccountID),
			},
			Metadata: map[string]string{
				"consultationId": p.ConsultationID,
				"uid":            uid,
			},
		},
	}

	sess, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info("checkout session created",
		"user_id", uid,
		"consultation_id", p.ConsultationID,
		"session_id", sess.ID)

	return sess.ID, sess.URL, nil
}

// HandleWebhook verifies the event signature and branches on the event type.
// Only payment_intent.succeeded carries work for this service: a succeeded
// intent with a consultation ID in its metadata marks that consultation paid.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	s.logger.Info("webhook event received", "type", event.Type, "event_id", event.ID)

	switch event.Type {
	case "payment_intent.succeeded":
		return s.handlePaymentSucceeded(ctx, event)
	default:
		s.logger.Info("unhandled webhook event type", "type", event.Type)
	}

	return nil
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return fmt.Errorf("failed to parse payment intent: %w", err)
	}

	consultationID := pi.Metadata["consultationId"]
	if consultationID == "" {
		s.logger.Info("payment intent without consultation metadata, ignoring",
			"payment_intent_id", pi.ID)
		return nil
	}

	if err := s.consultations.MarkConsultationPaid(ctx, consultationID, pi.ID); err != nil {
		return err
	}

	s.logger.Info("consultation marked paid",
		"consultation_id", consultationID,
		"payment_intent_id", pi.ID)

	return nil
}

func customerName(user *store.User) string {
	if user.FullName != "" {
		return user.FullName
	}
	return user.Name
}

// toMinorUnits converts a major-unit amount to cents, rounding to the
// nearest cent.
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// applicationFee is the platform's cut of an amount already in minor units.
func applicationFee(amountMinor int64) int64 {
	return int64(math.Round(float64(amountMinor) * platformFeeRate))
}
