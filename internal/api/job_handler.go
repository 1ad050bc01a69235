package api

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"tabashir/internal/api/middleware"
	"tabashir/internal/database"
	"tabashir/internal/storage"
	"tabashir/internal/tasks"
)

const maxCVSizeBytes = 10 << 20

// JobHandler serves the public job board, recruiter posting management and
// candidate applications.
type JobHandler struct {
	db          *gorm.DB
	storage     *storage.Client
	asynqClient *asynq.Client
	clamdAddr   string
	logger      *slog.Logger
}

// NewJobHandler builds the handler. clamdAddr may be empty to skip upload
// scanning in development.
func NewJobHandler(db *gorm.DB, storageClient *storage.Client, asynqClient *asynq.Client, clamdAddr string, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		db:          db,
		storage:     storageClient,
		asynqClient: asynqClient,
		clamdAddr:   clamdAddr,
		logger:      logger,
	}
}

type jobResponse struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	SalaryMin   int    `json:"salary_min"`
	SalaryMax   int    `json:"salary_max"`
	JobType     string `json:"job_type"`
	Status      string `json:"status"`
	EasyApply   bool   `json:"easy_apply"`
}

func newJobResponse(j database.Job) jobResponse {
	return jobResponse{
		ID:          j.ID,
		Title:       j.Title,
		Company:     j.Company,
		Location:    j.Location,
		Description: j.Description,
		SalaryMin:   j.SalaryMin,
		SalaryMax:   j.SalaryMax,
		JobType:     j.JobType,
		Status:      j.Status,
		EasyApply:   j.EasyApply,
	}
}

// ListJobs returns open postings with optional filters and pagination.
func (h *JobHandler) ListJobs(c *gin.Context) {
	page, pageSize := paginationParams(c)

	query := h.db.WithContext(c.Request.Context()).
		Model(&database.Job{}).
		Where("status = ?", "open")

	if q := c.Query("q"); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(company) LIKE ?", like, like)
	}
	if location := c.Query("location"); location != "" {
		query = query.Where("LOWER(location) LIKE ?", "%"+strings.ToLower(location)+"%")
	}
	if jobType := c.Query("job_type"); jobType != "" {
		query = query.Where("job_type = ?", jobType)
	}
	if c.Query("easy_apply") == "true" {
		query = query.Where("easy_apply = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		Internal(c, "failed to count jobs")
		return
	}

	var jobs []database.Job
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobs).Error; err != nil {
		Internal(c, "failed to list jobs")
		return
	}

	items := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, newJobResponse(j))
	}
	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetJob returns one posting.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid job id")
		return
	}

	var job database.Job
	if err := h.db.WithContext(c.Request.Context()).First(&job, uint(jobID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return
		}
		Internal(c, "failed to load job")
		return
	}

	c.JSON(http.StatusOK, newJobResponse(job))
}

type jobRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Company     string `json:"company" binding:"required,max=255"`
	Location    string `json:"location" binding:"required,max=255"`
	Description string `json:"description" binding:"required"`
	SalaryMin   int    `json:"salary_min" binding:"omitempty,min=0"`
	SalaryMax   int    `json:"salary_max" binding:"omitempty,min=0,gtefield=SalaryMin"`
	JobType     string `json:"job_type" binding:"required,oneof=full-time part-time contract remote"`
	EasyApply   *bool  `json:"easy_apply"`
}

// CreateJob lets a recruiter publish a posting.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	job := database.Job{
		Title:       req.Title,
		Company:     req.Company,
		Location:    req.Location,
		Description: req.Description,
		SalaryMin:   req.SalaryMin,
		SalaryMax:   req.SalaryMax,
		JobType:     req.JobType,
		Status:      "open",
		EasyApply:   true,
		RecruiterID: identity.UserID,
	}
	if req.EasyApply != nil {
		job.EasyApply = *req.EasyApply
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&job).Error; err != nil {
		requestLogger(c, h.logger).Error("create job failed", slog.Any("error", err))
		Internal(c, "failed to create job")
		return
	}

	c.JSON(http.StatusCreated, newJobResponse(job))
}

type jobUpdateRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Company     *string `json:"company" binding:"omitempty,max=255"`
	Location    *string `json:"location" binding:"omitempty,max=255"`
	Description *string `json:"description"`
	SalaryMin   *int    `json:"salary_min" binding:"omitempty,min=0"`
	SalaryMax   *int    `json:"salary_max" binding:"omitempty,min=0"`
	JobType     *string `json:"job_type" binding:"omitempty,oneof=full-time part-time contract remote"`
	Status      *string `json:"status" binding:"omitempty,oneof=open closed"`
	EasyApply   *bool   `json:"easy_apply"`
}

// UpdateJob lets the owning recruiter change a posting.
func (h *JobHandler) UpdateJob(c *gin.Context) {
	var req jobUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	jobID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid job id")
		return
	}

	ctx := c.Request.Context()
	var job database.Job
	if err := h.db.WithContext(ctx).
		Where("id = ? AND recruiter_id = ?", uint(jobID), identity.UserID).
		First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return
		}
		Internal(c, "failed to load job")
		return
	}

	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Company != nil {
		updates["company"] = *req.Company
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.SalaryMin != nil {
		updates["salary_min"] = *req.SalaryMin
	}
	if req.SalaryMax != nil {
		updates["salary_max"] = *req.SalaryMax
	}
	if req.JobType != nil {
		updates["job_type"] = *req.JobType
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.EasyApply != nil {
		updates["easy_apply"] = *req.EasyApply
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, newJobResponse(job))
		return
	}

	if err := h.db.WithContext(ctx).Model(&job).Updates(updates).Error; err != nil {
		requestLogger(c, h.logger).Error("update job failed", slog.Any("error", err))
		Internal(c, "failed to update job")
		return
	}

	c.JSON(http.StatusOK, newJobResponse(job))
}

// Apply submits an application for a posting. Easy-apply jobs are free;
// other jobs consume one ai-apply credit. A CV may be attached as multipart
// "cv" and is virus-scanned before upload.
func (h *JobHandler) Apply(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	jobID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid job id")
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c, h.logger)

	var job database.Job
	if err := h.db.WithContext(ctx).First(&job, uint(jobID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return
		}
		Internal(c, "failed to load job")
		return
	}
	if job.Status != "open" {
		Conflict(c, "job is closed")
		return
	}

	var existing database.Application
	err = h.db.WithContext(ctx).
		Where("job_id = ? AND candidate_id = ?", job.ID, identity.UserID).
		First(&existing).Error
	if err == nil {
		Conflict(c, "already applied to this job")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		Internal(c, "failed to check application")
		return
	}

	cvObjectKey, err := h.storeCV(c, identity.UserID)
	if err != nil {
		return
	}

	coverNote := c.PostForm("cover_note")
	application := database.Application{
		JobID:       job.ID,
		CandidateID: identity.UserID,
		Status:      database.ApplicationStatusSubmitted,
		CoverNote:   coverNote,
		CVObjectKey: cvObjectKey,
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !job.EasyApply {
			result := tx.Model(&database.User{}).
				Where("id = ? AND apply_credits > 0", identity.UserID).
				UpdateColumn("apply_credits", gorm.Expr("apply_credits - 1"))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return errNoApplyCredits
			}
		}
		return tx.Create(&application).Error
	})
	if err != nil {
		if errors.Is(err, errNoApplyCredits) {
			PaymentRequired(c, "no apply credits remaining")
			return
		}
		logger.Error("create application failed", slog.Any("error", err))
		Internal(c, "failed to submit application")
		return
	}

	task, err := tasks.NewApplicationNotifyTask(application.ID, job.ID, job.RecruiterID, middleware.GetCorrelationID(c))
	if err == nil {
		if _, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(3)); err != nil {
			logger.Warn("enqueue application notify failed", slog.Any("error", err))
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     application.ID,
		"status": application.Status,
	})
}

// MyApplications lists the caller's applications, newest first.
func (h *JobHandler) MyApplications(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var applications []database.Application
	if err := h.db.WithContext(c.Request.Context()).
		Preload("Job").
		Where("candidate_id = ?", identity.UserID).
		Order("created_at DESC").
		Find(&applications).Error; err != nil {
		Internal(c, "failed to list applications")
		return
	}

	items := make([]gin.H, 0, len(applications))
	for _, a := range applications {
		items = append(items, gin.H{
			"id":         a.ID,
			"status":     a.Status,
			"created_at": a.CreatedAt,
			"job":        newJobResponse(a.Job),
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

var errNoApplyCredits = errors.New("no apply credits")

// storeCV handles the optional multipart CV: scan, then upload. Returns the
// object key, or "" when no file was attached. Writes the HTTP error itself
// and returns a non-nil error when the request should stop.
func (h *JobHandler) storeCV(c *gin.Context, userID uint) (string, error) {
	file, err := c.FormFile("cv")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		BadRequest(c, "invalid cv upload")
		return "", err
	}
	if file.Size > maxCVSizeBytes {
		BadRequest(c, "cv exceeds the 10MB limit")
		return "", errors.New("cv too large")
	}

	if h.clamdAddr != "" {
		if err := h.scanUpload(c, file); err != nil {
			return "", err
		}
	}

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open cv")
		return "", err
	}
	defer fileReader.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectKey := fmt.Sprintf("application-cvs/%d/%s.pdf", userID, uuid.NewString())
	if _, err := h.storage.UploadFile(c.Request.Context(), objectKey, fileReader, file.Size, contentType); err != nil {
		requestLogger(c, h.logger).Error("upload cv failed", slog.Any("error", err))
		Internal(c, "failed to upload cv")
		return "", err
	}
	return objectKey, nil
}

func (h *JobHandler) scanUpload(c *gin.Context, file *multipart.FileHeader) error {
	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open cv")
		return err
	}

	clamdClient := clamd.NewClamd(h.clamdAddr)
	abortChan := make(chan bool)
	scanChan, err := clamdClient.ScanStream(fileReader, abortChan)
	fileReader.Close()
	if err != nil {
		requestLogger(c, h.logger).Error("scan cv failed", slog.Any("error", err))
		Internal(c, "failed to scan cv")
		return err
	}
	defer close(abortChan)

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			BadRequest(c, "malicious file detected")
			return errors.New("malicious upload")
		}
	}
	return nil
}

func paginationParams(c *gin.Context) (page, pageSize int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
