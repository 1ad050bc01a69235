package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tabashir/internal/api/middleware"
	"tabashir/internal/database"
	"tabashir/internal/payment"
	"tabashir/internal/storage"
	"tabashir/internal/tasks"
	"tabashir/internal/wizard"
)

var errInvalidDraftID = errors.New("invalid draft id")

// DraftHandler serves the resume wizard: draft CRUD, step submission and
// the payment-gated download.
type DraftHandler struct {
	db             *gorm.DB
	asynqClient    *asynq.Client
	storage        *storage.Client
	redis          redis.UniversalClient
	gate           *payment.Gate
	internalSecret string
	logger         *slog.Logger
}

// NewDraftHandler builds the handler.
func NewDraftHandler(db *gorm.DB, asynqClient *asynq.Client, storageClient *storage.Client, redisClient redis.UniversalClient, gate *payment.Gate, internalSecret string, logger *slog.Logger) *DraftHandler {
	return &DraftHandler{
		db:             db,
		asynqClient:    asynqClient,
		storage:        storageClient,
		redis:          redisClient,
		gate:           gate,
		internalSecret: internalSecret,
		logger:         logger,
	}
}

type createDraftRequest struct {
	Title string `json:"title" binding:"required,max=255"`
}

type draftResponse struct {
	ID               uint       `json:"id"`
	Title            string     `json:"title"`
	Progress         int        `json:"progress"`
	PaymentCompleted bool       `json:"payment_completed"`
	PaymentDate      *time.Time `json:"payment_date,omitempty"`
	Status           string     `json:"status"`
	NextStep         string     `json:"next_step,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CreateDraft starts a new resume draft and points the caller at the first
// wizard step.
func (h *DraftHandler) CreateDraft(c *gin.Context) {
	var req createDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	draft := database.ResumeDraft{
		UserID: identity.UserID,
		Title:  req.Title,
	}
	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Create(&draft).Error; err != nil {
		requestLogger(c, h.logger).Error("create draft failed", slog.Any("error", err))
		Internal(c, "failed to create draft")
		return
	}

	h.invalidateDraftListing(ctx, identity.UserID)

	c.JSON(http.StatusCreated, gin.H{
		"id":        draft.ID,
		"next_step": stepRoute(draft.ID, wizard.StepPersonalDetails),
	})
}

// ListDrafts returns the caller's drafts, newest first.
func (h *DraftHandler) ListDrafts(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var drafts []database.ResumeDraft
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", identity.UserID).
		Order("updated_at DESC").
		Find(&drafts).Error; err != nil {
		Internal(c, "failed to list drafts")
		return
	}

	items := make([]draftResponse, 0, len(drafts))
	for _, d := range drafts {
		items = append(items, newDraftResponse(d))
	}
	c.JSON(http.StatusOK, items)
}

// GetDraft returns one draft with its section payloads.
func (h *DraftHandler) GetDraft(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	draft, err := h.getDraftForUser(c.Request.Context(), c.Param("id"), identity.UserID)
	if err != nil {
		h.respondDraftError(c, err)
		return
	}

	var sections []database.DraftSection
	if err := h.db.WithContext(c.Request.Context()).
		Where("resume_draft_id = ?", draft.ID).
		Find(&sections).Error; err != nil {
		Internal(c, "failed to load draft sections")
		return
	}

	sectionMap := make(gin.H, len(sections))
	for _, s := range sections {
		sectionMap[s.Step] = s.Payload
	}

	resp := newDraftResponse(*draft)
	c.JSON(http.StatusOK, gin.H{
		"draft":    resp,
		"sections": sectionMap,
	})
}

// SubmitStep validates a wizard step payload, upserts its section record,
// sets the draft progress to the step's fixed value and returns the next
// route. Submitting an earlier step again overwrites its section and lowers
// progress.
func (h *DraftHandler) SubmitStep(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	step := c.Param("step")
	progress, err := wizard.Progress(step)
	if err != nil {
		BadRequest(c, "unknown wizard step")
		return
	}

	ctx := c.Request.Context()
	draft, err := h.getDraftForUser(ctx, c.Param("id"), identity.UserID)
	if err != nil {
		h.respondDraftError(c, err)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		BadRequest(c, "unreadable request body")
		return
	}

	payloadJSON, err := wizard.DecodeStepPayload(step, raw)
	if err != nil {
		var vErr *wizard.ErrValidationFailed
		if errors.As(err, &vErr) {
			UnprocessableEntity(c, vErr.Error())
			return
		}
		BadRequest(c, "unknown wizard step")
		return
	}

	section := database.DraftSection{
		ResumeDraftID: draft.ID,
		Step:          step,
		Payload:       payloadJSON,
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "resume_draft_id"}, {Name: "step"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).Create(&section).Error; err != nil {
			return err
		}
		return tx.Model(&database.ResumeDraft{}).
			Where("id = ?", draft.ID).
			Update("progress", progress).Error
	})
	if err != nil {
		requestLogger(c, h.logger).Error("persist wizard step failed",
			slog.String("step", step),
			slog.Any("error", err),
		)
		Internal(c, "failed to save step")
		return
	}

	h.invalidateDraftListing(ctx, identity.UserID)

	next, nextErr := wizard.Next(step)
	if errors.Is(nextErr, wizard.ErrTerminalStep) {
		c.JSON(http.StatusOK, gin.H{
			"progress": progress,
			"next":     downloadRoute(draft.ID),
			"terminal": true,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"progress": progress,
		"next":     stepRoute(draft.ID, next),
	})
}

// Download is gated on payment: locked drafts get 402, unlocked drafts get
// a presigned link when the PDF exists, otherwise a render task is enqueued
// and 202 returned.
func (h *DraftHandler) Download(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	draft, err := h.getDraftForUser(ctx, c.Param("id"), identity.UserID)
	if err != nil {
		h.respondDraftError(c, err)
		return
	}

	unlocked, err := h.gate.DownloadUnlocked(ctx, identity.UserID, draft.ID)
	if err != nil {
		requestLogger(c, h.logger).Error("download gate check failed", slog.Any("error", err))
		Internal(c, "failed to check download access")
		return
	}
	if !unlocked {
		PaymentRequired(c, "resume download requires payment")
		return
	}

	if draft.PdfObjectKey != "" {
		signedURL, err := h.storage.GeneratePresignedURL(ctx, draft.PdfObjectKey, 5*time.Minute)
		if err != nil {
			requestLogger(c, h.logger).Error("generate download link failed", slog.Any("error", err))
			Internal(c, "failed to generate download link")
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": signedURL})
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	task, err := tasks.NewResumeRenderTask(draft.ID, correlationID)
	if err != nil {
		Internal(c, "failed to create render task")
		return
	}
	info, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(5))
	if err != nil {
		Internal(c, "failed to enqueue render task")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "PDF render request accepted",
		"task_id": info.ID,
	})
}

// PrintData returns the JSON the render worker injects into the print page.
// Only the worker may call it, authenticated by the shared internal secret.
func (h *DraftHandler) PrintData(c *gin.Context) {
	if h.internalSecret == "" {
		Internal(c, "internal api secret is not configured")
		return
	}
	if token := strings.TrimSpace(c.GetHeader("X-Internal-Secret")); token == "" || token != h.internalSecret {
		Unauthorized(c)
		return
	}

	draftID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid draft id")
		return
	}

	ctx := c.Request.Context()
	var draft database.ResumeDraft
	if err := h.db.WithContext(ctx).First(&draft, uint(draftID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "draft not found")
			return
		}
		Internal(c, "failed to load draft")
		return
	}

	var sections []database.DraftSection
	if err := h.db.WithContext(ctx).
		Where("resume_draft_id = ?", draft.ID).
		Find(&sections).Error; err != nil {
		Internal(c, "failed to load draft sections")
		return
	}

	sectionMap := make(gin.H, len(sections))
	for _, s := range sections {
		sectionMap[s.Step] = s.Payload
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       draft.ID,
		"title":    draft.Title,
		"sections": sectionMap,
	})
}

func (h *DraftHandler) getDraftForUser(ctx context.Context, idParam string, userID uint) (*database.ResumeDraft, error) {
	draftID, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		return nil, errInvalidDraftID
	}

	var draft database.ResumeDraft
	if err := h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", uint(draftID), userID).
		First(&draft).Error; err != nil {
		return nil, err
	}
	return &draft, nil
}

func (h *DraftHandler) respondDraftError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidDraftID):
		BadRequest(c, "invalid draft id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "draft not found")
	default:
		Internal(c, "failed to query draft")
	}
}

// invalidateDraftListing drops the cached listing pages for the owner.
// Cache misses repopulate on the next list request.
func (h *DraftHandler) invalidateDraftListing(ctx context.Context, userID uint) {
	if h.redis == nil {
		return
	}
	key := draftListingCacheKey(userID)
	if err := h.redis.Del(ctx, key).Err(); err != nil {
		logger := h.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("invalidate draft listing cache failed",
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}

func draftListingCacheKey(userID uint) string {
	return fmt.Sprintf("cache:drafts:%d", userID)
}

func stepRoute(draftID uint, step string) string {
	return fmt.Sprintf("/resumes/%d/steps/%s", draftID, step)
}

func downloadRoute(draftID uint) string {
	return fmt.Sprintf("/resumes/%d/download", draftID)
}

func newDraftResponse(d database.ResumeDraft) draftResponse {
	resp := draftResponse{
		ID:               d.ID,
		Title:            d.Title,
		Progress:         d.Progress,
		PaymentCompleted: d.PaymentCompleted,
		PaymentDate:      d.PaymentDate,
		Status:           d.Status,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if d.Progress < 100 {
		resp.NextStep = nextStepFromProgress(d)
	}
	return resp
}

// nextStepFromProgress picks the resume point for a partially filled draft.
func nextStepFromProgress(d database.ResumeDraft) string {
	for _, step := range wizard.Steps() {
		p, err := wizard.Progress(step)
		if err != nil {
			continue
		}
		if d.Progress < p {
			return stepRoute(d.ID, step)
		}
	}
	return ""
}
