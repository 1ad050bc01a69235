package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tabashir/internal/database"
	"tabashir/internal/rbac"
)

// AdminHandler serves the back-office listings. Route-level access is
// enforced by the admin gate middleware; handlers only query.
type AdminHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewAdminHandler builds the handler.
func NewAdminHandler(db *gorm.DB, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{db: db, logger: logger}
}

// ListJobs returns all postings, newest first.
func (h *AdminHandler) ListJobs(c *gin.Context) {
	page, pageSize := paginationParams(c)

	query := h.db.WithContext(c.Request.Context()).Model(&database.Job{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
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

	c.JSON(http.StatusOK, gin.H{
		"items":     jobs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListApplications returns applications across all jobs.
func (h *AdminHandler) ListApplications(c *gin.Context) {
	page, pageSize := paginationParams(c)

	query := h.db.WithContext(c.Request.Context()).Model(&database.Application{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if jobID := c.Query("job_id"); jobID != "" {
		query = query.Where("job_id = ?", jobID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		Internal(c, "failed to count applications")
		return
	}

	var applications []database.Application
	if err := query.
		Preload("Job").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&applications).Error; err != nil {
		Internal(c, "failed to list applications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":     applications,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

type applicationStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=submitted reviewed accepted rejected"`
}

// UpdateApplicationStatus moves an application through its lifecycle.
func (h *AdminHandler) UpdateApplicationStatus(c *gin.Context) {
	var req applicationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	applicationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid application id")
		return
	}

	ctx := c.Request.Context()
	var application database.Application
	if err := h.db.WithContext(ctx).First(&application, uint(applicationID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "application not found")
			return
		}
		Internal(c, "failed to load application")
		return
	}

	if err := h.db.WithContext(ctx).Model(&application).
		Update("status", req.Status).Error; err != nil {
		requestLogger(c, h.logger).Error("update application status failed", slog.Any("error", err))
		Internal(c, "failed to update application")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     application.ID,
		"status": req.Status,
	})
}

// ListPayments returns payment records, newest first.
func (h *AdminHandler) ListPayments(c *gin.Context) {
	page, pageSize := paginationParams(c)

	query := h.db.WithContext(c.Request.Context()).Model(&database.Payment{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if provider := c.Query("provider"); provider != "" {
		query = query.Where("provider = ?", provider)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		Internal(c, "failed to count payments")
		return
	}

	var payments []database.Payment
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&payments).Error; err != nil {
		Internal(c, "failed to list payments")
		return
	}

	items := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		items = append(items, newPaymentResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

type adminUserResponse struct {
	ID          uint     `json:"id"`
	Email       string   `json:"email"`
	UserType    string   `json:"user_type"`
	Onboarded   bool     `json:"onboarded"`
	Permissions []string `json:"permissions,omitempty"`
}

// ListUsers returns accounts with their decoded admin permissions.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, pageSize := paginationParams(c)

	query := h.db.WithContext(c.Request.Context()).Model(&database.User{})
	if userType := c.Query("user_type"); userType != "" {
		query = query.Where("user_type = ?", userType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		Internal(c, "failed to count users")
		return
	}

	var users []database.User
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error; err != nil {
		Internal(c, "failed to list users")
		return
	}

	items := make([]adminUserResponse, 0, len(users))
	for _, u := range users {
		item := adminUserResponse{
			ID:        u.ID,
			Email:     u.Email,
			UserType:  u.UserType,
			Onboarded: u.Onboarded,
		}
		if perms, err := rbac.DecodePermissions(u.Permissions); err == nil {
			for _, p := range perms {
				item.Permissions = append(item.Permissions, string(p))
			}
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
