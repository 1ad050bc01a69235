package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"tabashir/internal/payment"
	"tabashir/internal/tasks"
)

const maxWebhookBodyBytes = 1 << 20

// WebhookHandler receives provider payment events. Signature verification
// happens before any database write; replayed events are absorbed by the
// unlocker's transaction-id idempotency.
type WebhookHandler struct {
	stripe      *payment.StripeClient
	ziina       *payment.ZiinaClient
	unlocker    *payment.Unlocker
	asynqClient *asynq.Client
	logger      *slog.Logger
}

// NewWebhookHandler builds the handler.
func NewWebhookHandler(stripeClient *payment.StripeClient, ziinaClient *payment.ZiinaClient, unlocker *payment.Unlocker, asynqClient *asynq.Client, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		stripe:      stripeClient,
		ziina:       ziinaClient,
		unlocker:    unlocker,
		asynqClient: asynqClient,
		logger:      logger,
	}
}

// Stripe handles POST deliveries signed with the stripe-signature header.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	event, err := h.stripe.ParseEvent(body, c.GetHeader("Stripe-Signature"))
	h.process(c, event, err)
}

// Ziina handles POST deliveries signed with the x-hmac-signature header.
func (h *WebhookHandler) Ziina(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	event, err := h.ziina.ParseEvent(body, c.GetHeader("X-Hmac-Signature"))
	h.process(c, event, err)
}

func (h *WebhookHandler) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		BadRequest(c, "unreadable body")
		return nil, false
	}
	return body, true
}

func (h *WebhookHandler) process(c *gin.Context, event payment.Event, parseErr error) {
	logger := requestLogger(c, h.logger)

	if parseErr != nil {
		switch {
		case errors.Is(parseErr, payment.ErrSignatureInvalid):
			logger.Warn("webhook signature rejected", slog.Any("error", parseErr))
			Unauthorized(c)
		case errors.Is(parseErr, payment.ErrPayloadMalformed):
			logger.Warn("webhook payload rejected", slog.Any("error", parseErr))
			BadRequest(c, "malformed payload")
		default:
			logger.Warn("webhook rejected", slog.Any("error", parseErr))
			BadRequest(c, "invalid event")
		}
		return
	}

	logger = logger.With(
		slog.String("provider", event.Provider),
		slog.String("transaction_id", event.TransactionID),
	)

	ctx := c.Request.Context()
	switch event.Kind {
	case payment.EventCompleted:
		record, applied, err := h.unlocker.ApplyCompleted(ctx, event)
		if err != nil {
			if errors.Is(err, payment.ErrUnlockTargetMissing) {
				logger.Warn("unlock target missing")
				BadRequest(c, "unlock target missing")
				return
			}
			logger.Error("apply completed event failed", slog.Any("error", err))
			Internal(c, "failed to process event")
			return
		}
		if !applied {
			logger.Info("duplicate completed event absorbed")
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		logger.Info("payment unlocked",
			slog.String("service_id", record.ServiceID),
			slog.Uint64("user_id", uint64(record.UserID)),
		)
		if task, err := tasks.NewPaymentReceiptTask(record.ID, record.UserID); err == nil {
			if _, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(3)); err != nil {
				logger.Warn("enqueue receipt task failed", slog.Any("error", err))
			}
		}

	case payment.EventFailed:
		if err := h.unlocker.MarkFailed(ctx, event.TransactionID); err != nil {
			logger.Error("mark failed event failed", slog.Any("error", err))
			Internal(c, "failed to process event")
			return
		}
		logger.Info("payment marked failed")

	case payment.EventIgnored:
		// Out-of-scope event type; acknowledge so the provider stops retrying.
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
