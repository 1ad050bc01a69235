package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"tabashir/internal/database"
	"tabashir/internal/errcode"
	"tabashir/internal/payment"
	"tabashir/internal/storage"
	"tabashir/internal/tasks"
)

// RenderTaskHandler consumes resume render tasks: it re-checks the payment
// gate, drives the headless browser against the frontend print page, uploads
// the PDF and notifies the owner.
type RenderTaskHandler struct {
	db                 *gorm.DB
	storage            *storage.Client
	redisClient        redis.UniversalClient
	gate               *payment.Gate
	logger             *slog.Logger
	internalSecret     string
	internalAPIBaseURL string
	frontendBaseURL    string
}

// NewRenderTaskHandler builds the handler.
func NewRenderTaskHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
	internalSecret string,
	internalAPIBaseURL string,
	frontendBaseURL string,
) *RenderTaskHandler {
	return &RenderTaskHandler{
		db:                 db,
		storage:            storageClient,
		redisClient:        redisClient,
		gate:               payment.NewGate(db),
		logger:             logger,
		internalSecret:     internalSecret,
		internalAPIBaseURL: strings.TrimRight(strings.TrimSpace(internalAPIBaseURL), "/"),
		frontendBaseURL:    strings.TrimRight(strings.TrimSpace(frontendBaseURL), "/"),
	}
}

// ProcessTask implements asynq.Handler.
func (h *RenderTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.ResumeRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("draft_id", int(payload.DraftID)),
	)
	log.Info("starting resume PDF render")

	var draft database.ResumeDraft
	if err := h.db.WithContext(ctx).First(&draft, payload.DraftID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("draft not found, skipping task")
			return nil
		}
		log.Error("query draft failed", slog.Any("error", err))
		return err
	}

	log = log.With(slog.Uint64("user_id", uint64(draft.UserID)))

	// The gate was checked at enqueue time; re-check in case the unlock was
	// reversed before the task ran.
	unlocked, err := h.gate.DownloadUnlocked(ctx, draft.UserID, draft.ID)
	if err != nil {
		log.Error("gate check failed", slog.Any("error", err))
		return err
	}
	if !unlocked {
		log.Warn("draft is not unlocked, skipping render")
		return nil
	}

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		notify := RenderNotifyMessage{
			Type:          "resume_render",
			Status:        "error",
			DraftID:       draft.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := publishUserNotify(ctx, h.redisClient, draft.UserID, notify); err != nil {
			log.Error("publish render error notification failed", slog.Any("error", err))
		}
	}()

	pdfBytes, err := h.renderDraftPDF(ctx, draft.ID)
	if err != nil {
		log.Error("render draft pdf failed", slog.Any("error", err))
		return err
	}

	objectName := fmt.Sprintf("generated-resumes/%d/%s.pdf", draft.UserID, uuid.NewString())
	pdfReader := bytes.NewReader(pdfBytes)
	if _, err := h.storage.UploadFile(ctx, objectName, pdfReader, int64(len(pdfBytes)), "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	update := map[string]any{
		"pdf_object_key": objectName,
		"status":         "completed",
	}
	if err := h.db.WithContext(ctx).Model(&draft).Updates(update).Error; err != nil {
		log.Error("update draft failed", slog.Any("error", err))
		return err
	}

	notify := RenderNotifyMessage{
		Type:          "resume_render",
		Status:        "completed",
		DraftID:       draft.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if err := publishUserNotify(ctx, h.redisClient, draft.UserID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("resume PDF render completed")
	return nil
}

func (h *RenderTaskHandler) renderDraftPDF(ctx context.Context, draftID uint) ([]byte, error) {
	printData, err := fetchPrintData(ctx, h.internalAPIBaseURL, draftID, h.internalSecret)
	if err != nil {
		return nil, err
	}

	targetURL := fmt.Sprintf("%s/print/resume/%d", h.frontendBaseURL, draftID)
	injectionScript := buildPrintDataBootstrapScript(printData)

	page, cleanup, err := renderPrintPage(h.logger, targetURL, injectionScript)
	if err != nil {
		cleanup()
		return nil, err
	}
	defer cleanup()

	return exportPDF(page)
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
