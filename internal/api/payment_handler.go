package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tabashir/internal/api/middleware"
	"tabashir/internal/catalog"
	"tabashir/internal/database"
	"tabashir/internal/payment"
)

// PaymentHandler opens provider checkouts and reports payment state. No
// endpoint here mutates payment records; unlocks happen exclusively on
// confirmed webhooks.
type PaymentHandler struct {
	db              *gorm.DB
	stripe          *payment.StripeClient
	ziina           *payment.ZiinaClient
	frontendBaseURL string
	logger          *slog.Logger
}

// NewPaymentHandler builds the handler.
func NewPaymentHandler(db *gorm.DB, stripeClient *payment.StripeClient, ziinaClient *payment.ZiinaClient, frontendBaseURL string, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		db:              db,
		stripe:          stripeClient,
		ziina:           ziinaClient,
		frontendBaseURL: frontendBaseURL,
		logger:          logger,
	}
}

type createIntentRequest struct {
	ServiceID string `json:"service_id" binding:"required"`
	Provider  string `json:"provider" binding:"required,oneof=stripe ziina"`
	ResumeID  *uint  `json:"resume_id"`
}

// CreateIntent validates the requested service and opens a checkout with the
// chosen provider, returning the hosted-page redirect URL.
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	svc, err := catalog.Lookup(req.ServiceID)
	if err != nil {
		BadRequest(c, "unknown service")
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger).With(
		slog.String("service_id", svc.ID),
		slog.String("provider", req.Provider),
	)

	cctx := payment.CheckoutContext{
		ServiceID: svc.ID,
		UserID:    identity.UserID,
		DraftID:   req.ResumeID,
	}
	if err := cctx.Validate(); err != nil {
		BadRequest(c, "this service requires a resume id")
		return
	}

	// A draft-bound purchase must reference a draft the caller owns.
	if cctx.DraftID != nil {
		var draft database.ResumeDraft
		if err := h.db.WithContext(ctx).
			Where("id = ? AND user_id = ?", *cctx.DraftID, identity.UserID).
			First(&draft).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				NotFound(c, "draft not found")
				return
			}
			Internal(c, "failed to load draft")
			return
		}
	}

	successURL := h.frontendBaseURL + "/payment/success"
	cancelURL := h.frontendBaseURL + "/payment/cancel"

	var redirectURL string
	switch req.Provider {
	case payment.ProviderStripe:
		redirectURL, err = h.stripe.CreateCheckout(svc, cctx, successURL, cancelURL)
	case payment.ProviderZiina:
		redirectURL, err = h.ziina.CreateCheckout(ctx, svc, cctx, successURL, cancelURL)
	}
	if err != nil {
		logger.Error("create checkout failed", slog.Any("error", err))
		Internal(c, "failed to create checkout")
		return
	}

	logger.Info("checkout created", slog.Uint64("user_id", uint64(identity.UserID)))
	c.JSON(http.StatusCreated, gin.H{
		"redirect_url": redirectURL,
		"service_id":   svc.ID,
		"amount":       svc.AmountFils,
		"currency":     svc.Currency,
	})
}

type paymentResponse struct {
	TransactionID string `json:"transaction_id"`
	ServiceID     string `json:"service_id"`
	Provider      string `json:"provider"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	PaidAt        any    `json:"paid_at,omitempty"`
}

func newPaymentResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		TransactionID: p.TransactionID,
		ServiceID:     p.ServiceID,
		Provider:      p.Provider,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        p.Status,
	}
	if p.PaidAt != nil {
		resp.PaidAt = p.PaidAt
	}
	return resp
}

// GetIntent reports the state of a payment by provider transaction id. A
// transaction the webhook has not confirmed yet reads as pending.
func (h *PaymentHandler) GetIntent(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	transactionID := c.Param("id")
	if transactionID == "" {
		BadRequest(c, "missing transaction id")
		return
	}

	var record database.Payment
	err := h.db.WithContext(c.Request.Context()).
		Where("transaction_id = ? AND user_id = ?", transactionID, identity.UserID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusOK, paymentResponse{
			TransactionID: transactionID,
			Status:        database.PaymentStatusPending,
		})
		return
	}
	if err != nil {
		Internal(c, "failed to load payment")
		return
	}

	c.JSON(http.StatusOK, newPaymentResponse(record))
}

// LatestSubscription returns the caller's newest subscription, if any.
func (h *PaymentHandler) LatestSubscription(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var sub database.Subscription
	err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", identity.UserID).
		Order("expires_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		NotFound(c, "no subscription")
		return
	}
	if err != nil {
		Internal(c, "failed to load subscription")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"service_id": sub.ServiceID,
		"expires_at": sub.ExpiresAt,
		"active":     sub.Active(time.Now()),
	})
}
