package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"tabashir/internal/database"
	"tabashir/internal/tasks"
)

// NotifyTaskHandler consumes application and receipt notifications and fans
// them out over the per-user Redis channels.
type NotifyTaskHandler struct {
	db          *gorm.DB
	redisClient redis.UniversalClient
	logger      *slog.Logger
}

// NewNotifyTaskHandler builds the handler.
func NewNotifyTaskHandler(db *gorm.DB, redisClient redis.UniversalClient, logger *slog.Logger) *NotifyTaskHandler {
	return &NotifyTaskHandler{db: db, redisClient: redisClient, logger: logger}
}

// ProcessApplicationNotify tells the recruiter about a new application.
func (h *NotifyTaskHandler) ProcessApplicationNotify(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ApplicationNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal application notify payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("application_id", int(payload.ApplicationID)),
	)

	var job database.Job
	if err := h.db.WithContext(ctx).First(&job, payload.JobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("job not found, dropping notification")
			return nil
		}
		return err
	}

	notify := ApplicationNotifyMessage{
		Type:          "application_submitted",
		ApplicationID: payload.ApplicationID,
		JobID:         job.ID,
		JobTitle:      job.Title,
	}
	if err := publishUserNotify(ctx, h.redisClient, payload.RecruiterID, notify); err != nil {
		log.Error("publish application notification failed", slog.Any("error", err))
		return err
	}

	log.Info("application notification delivered")
	return nil
}

// ProcessPaymentReceipt confirms a completed payment to the payer.
func (h *NotifyTaskHandler) ProcessPaymentReceipt(ctx context.Context, t *asynq.Task) error {
	var payload tasks.PaymentReceiptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal payment receipt payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(slog.Int("payment_id", int(payload.PaymentID)))

	var record database.Payment
	if err := h.db.WithContext(ctx).First(&record, payload.PaymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("payment not found, dropping receipt")
			return nil
		}
		return err
	}

	notify := ReceiptNotifyMessage{
		Type:          "payment_receipt",
		TransactionID: record.TransactionID,
		ServiceID:     record.ServiceID,
		Amount:        record.Amount,
		Currency:      record.Currency,
	}
	if err := publishUserNotify(ctx, h.redisClient, payload.UserID, notify); err != nil {
		log.Error("publish receipt notification failed", slog.Any("error", err))
		return err
	}

	log.Info("payment receipt delivered")
	return nil
}
