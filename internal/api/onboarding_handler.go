package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tabashir/internal/api/middleware"
	"tabashir/internal/database"
)

// OnboardingHandler serves the candidate onboarding wizard. Each page writes
// into the candidate profile; completion flips the account's onboarding flag
// so login stops redirecting here.
type OnboardingHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewOnboardingHandler builds the handler.
func NewOnboardingHandler(db *gorm.DB, logger *slog.Logger) *OnboardingHandler {
	return &OnboardingHandler{db: db, logger: logger}
}

type personalInfoRequest struct {
	FullName    string `json:"full_name" binding:"required,max=255"`
	Phone       string `json:"phone" binding:"required,e164"`
	Nationality string `json:"nationality" binding:"required,max=64"`
	CurrentCity string `json:"current_city" binding:"required,max=128"`
}

// SubmitPersonalInfo records the first onboarding page.
func (h *OnboardingHandler) SubmitPersonalInfo(c *gin.Context) {
	var req personalInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	updates := map[string]any{
		"full_name":    req.FullName,
		"phone":        req.Phone,
		"nationality":  req.Nationality,
		"current_city": req.CurrentCity,
	}
	if err := h.updateProfile(c, identity.UserID, updates); err != nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"next": "/onboarding/preferences"})
}

type preferencesRequest struct {
	DesiredTitle   string          `json:"desired_title" binding:"required,max=255"`
	DesiredSalary  int             `json:"desired_salary" binding:"omitempty,min=0"`
	NoticePeriod   string          `json:"notice_period" binding:"omitempty,max=64"`
	JobPreferences json.RawMessage `json:"job_preferences"`
}

// SubmitPreferences records the second onboarding page.
func (h *OnboardingHandler) SubmitPreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	updates := map[string]any{
		"desired_title":  req.DesiredTitle,
		"desired_salary": req.DesiredSalary,
		"notice_period":  req.NoticePeriod,
	}
	if len(req.JobPreferences) > 0 {
		updates["job_preferences"] = datatypes.JSON(req.JobPreferences)
	}
	if err := h.updateProfile(c, identity.UserID, updates); err != nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"next": "/onboarding/complete"})
}

// Complete checks the required profile fields are filled and marks the
// account onboarded.
func (h *OnboardingHandler) Complete(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	var profile database.CandidateProfile
	if err := h.db.WithContext(ctx).
		Where("user_id = ?", identity.UserID).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "candidate profile not found")
			return
		}
		requestLogger(c, h.logger).Error("load candidate profile failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if profile.FullName == "" || profile.Phone == "" || profile.DesiredTitle == "" {
		UnprocessableEntity(c, "onboarding incomplete: personal info and preferences are required")
		return
	}

	if err := h.db.WithContext(ctx).Model(&database.User{}).
		Where("id = ?", identity.UserID).
		Update("onboarded", true).Error; err != nil {
		requestLogger(c, h.logger).Error("mark onboarded failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"redirect": redirectDashboard})
}

// Profile returns the candidate's current onboarding state.
func (h *OnboardingHandler) Profile(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var profile database.CandidateProfile
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", identity.UserID).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "candidate profile not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *OnboardingHandler) updateProfile(c *gin.Context, userID uint, updates map[string]any) error {
	result := h.db.WithContext(c.Request.Context()).
		Model(&database.CandidateProfile{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		requestLogger(c, h.logger).Error("update candidate profile failed", slog.Any("error", result.Error))
		Internal(c, "internal error")
		return result.Error
	}
	if result.RowsAffected == 0 {
		NotFound(c, "candidate profile not found")
		return gorm.ErrRecordNotFound
	}
	return nil
}
