package payments

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/connectapp/connect-backend/internal/auth"
	"github.com/connectapp/connect-backend/internal/errors"
	"github.com/connectapp/connect-backend/internal/logger"
	"github.com/gin-gonic/gin"
)

// Handler exposes the payment endpoints. Everything except the webhook sits
// behind the Firebase auth middleware; the webhook is public and relies on
// signature verification instead.
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new payment handler.
func NewHandler(service *Service, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.WithComponent("payments-handler"),
	}
}

// CreateCustomer handles POST /payments/customer.
func (h *Handler) CreateCustomer(c *gin.Context) {
	uid, ok := auth.GetUserID(c)
	if !ok {
		errors.AbortWithUnauthorized(c, "unauthenticated")
		return
	}

	customerID, err := h.service.GetOrCreateCustomer(c.Request.Context(), uid)
	if err != nil {
		h.abortWithServiceError(c, err, "failed to create customer")
		return
	}

	c.JSON(http.StatusOK, gin.H{"stripeCustomerId": customerID})
}

// CreateSetupIntent handles POST /payments/setup-intent.
func (h *Handler) CreateSetupIntent(c *gin.Context) {
	uid, ok := auth.GetUserID(c)
	if !ok {
		errors.AbortWithUnauthorized(c, "unauthenticated")
		return
	}

	clientSecret, err := h.service.CreateSetupIntent(c.Request.Context(), uid)
	if err != nil {
		h.abortWithServiceError(c, err, "failed to create setup intent")
		return
	}

	c.JSON(http.StatusOK, gin.H{"clientSecret": clientSecret})
}

// Charge handles POST /payments/charge.
func (h *Handler) Charge(c *gin.Context) {
	uid, ok := auth.GetUserID(c)
	if !ok {
		errors.AbortWithUnauthorized(c, "unauthenticated")
		return
	}

	var body struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Amount <= 0 {
		errors.AbortWithBadRequest(c, "invalid amount", nil)
		return
	}

	paymentIntentID, err := h.service.ChargeStoredPaymentMethod(c.Request.Context(), uid, body.Amount, body.Currency)
	if err != nil {
		if stderrors.Is(err, ErrNoStoredPaymentMethod) {
			errors.AbortWithBadRequest(c, "no stored payment method", nil)
			return
		}
		h.abortWithServiceError(c, err, "charge failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": paymentIntentID})
}

// CreateExpressAccountLink handles POST /payments/express-account-link.
func (h *Handler) CreateExpressAccountLink(c *gin.Context) {
	uid, ok := auth.GetUserID(c)
	if !ok {
		errors.AbortWithUnauthorized(c, "unauthenticated")
		return
	}

	url, accountID, err := h.service.CreateExpressAccountLink(c.Request.Context(), uid)
	if err != nil {
		h.abortWithServiceError(c, err, "failed to create account link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "stripeAccountId": accountID})
}

// CreateCheckoutSession handles POST /payments/checkout-session.
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	uid, ok := auth.GetUserID(c)
	if !ok {
		errors.AbortWithUnauthorized(c, "unauthenticated")
		return
	}

	var body struct {
		ConsultationID  string  `json:"consultationId"`
		Cost            float64 `json:"cost"`
		HelperAccountID string  `json:"helperStripeAccountId"`
		Currency        string  `json:"currency"`
		SuccessURL      string  `json:"successUrl"`
		CancelURL       string  `json:"cancelUrl"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		errors.AbortWithBadRequest(c, "invalid request body", nil)
		return
	}
	if body.ConsultationID == "" || body.Cost <= 0 || body.HelperAccountID == "" {
		errors.AbortWithBadRequest(c, "missing required fields", nil)
		return
	}

	sessionID, checkoutURL, err := h.service.CreateCheckoutSession(c.Request.Context(), uid, CheckoutParams{
		ConsultationID:  body.ConsultationID,
		Cost:            body.Cost,
		HelperAccountID: body.HelperAccountID,
		Currency:        body.Currency,
		SuccessURL:      body.SuccessURL,
		CancelURL:       body.CancelURL,
	})
	if err != nil {
		h.abortWithServiceError(c, err, "failed to create checkout session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "checkoutUrl": checkoutURL})
}

// Webhook handles POST /payments/webhook. The raw body must reach signature
// verification unmodified.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		errors.AbortWithBadRequest(c, "failed to read body", nil)
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.service.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		h.logger.LogError(c.Request.Context(), err, "webhook processing failed")
		errors.AbortWithBadRequest(c, "webhook error", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) abortWithServiceError(c *gin.Context, err error, msg string) {
	if stderrors.Is(err, ErrUserNotFound) {
		errors.AbortWithNotFound(c, "user not found")
		return
	}
	h.logger.LogError(c.Request.Context(), err, msg)
	errors.AbortWithInternal(c, msg)
}
