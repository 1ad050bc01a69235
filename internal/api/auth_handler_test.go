package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"tabashir/internal/api/middleware"
	"tabashir/internal/auth"
	"tabashir/internal/database"
)

func newTestAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	svc, err := auth.NewAuthService("test-access-secret", "test-refresh-secret", 15*time.Minute, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

func newAuthRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authService := newTestAuthService(t)
	// Unreachable on purpose: the handlers treat Redis failures as soft.
	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	handler := NewAuthHandler(db, authService, redisClient, nil)

	router := gin.New()
	router.POST("/api/mobile/auth/register", handler.Register)
	router.POST("/api/mobile/auth/login", handler.Login)
	router.GET("/api/mobile/me", middleware.AuthMiddleware(authService), handler.Me)
	return router
}

func TestRegisterCandidateRedirectsToOnboarding(t *testing.T) {
	db := newTestDB(t)
	router := newAuthRouter(t, db)

	rec := postJSON(router, "/api/mobile/auth/register",
		`{"email": "new@example.com", "password": "correcthorse", "user_type": "candidate"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		Redirect     string `json:"redirect"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("token pair missing")
	}
	if resp.Redirect != redirectOnboarding {
		t.Fatalf("redirect = %q, want %q", resp.Redirect, redirectOnboarding)
	}

	// The candidate profile shell is created alongside the account.
	var profile database.CandidateProfile
	if err := db.Where("user_id = ?", 1).First(&profile).Error; err != nil {
		t.Fatalf("candidate profile not created: %v", err)
	}
}

func TestRegisterRecruiterRedirectsToDashboard(t *testing.T) {
	db := newTestDB(t)
	router := newAuthRouter(t, db)

	rec := postJSON(router, "/api/mobile/auth/register",
		`{"email": "hr@example.com", "password": "correcthorse", "user_type": "recruiter"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var resp struct {
		Redirect string `json:"redirect"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Redirect != redirectDashboard {
		t.Fatalf("redirect = %q, want %q", resp.Redirect, redirectDashboard)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	db := newTestDB(t)
	router := newAuthRouter(t, db)

	body := `{"email": "dup@example.com", "password": "correcthorse", "user_type": "candidate"}`
	if rec := postJSON(router, "/api/mobile/auth/register", body); rec.Code != http.StatusCreated {
		t.Fatalf("first register: %d", rec.Code)
	}
	if rec := postJSON(router, "/api/mobile/auth/register", body); rec.Code != http.StatusConflict {
		t.Fatalf("second register status = %d, want 409", rec.Code)
	}
}

func TestRegisterRejectsAdminUserType(t *testing.T) {
	db := newTestDB(t)
	router := newAuthRouter(t, db)

	rec := postJSON(router, "/api/mobile/auth/register",
		`{"email": "root@example.com", "password": "correcthorse", "user_type": "admin"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, admin accounts must not self-register", rec.Code)
	}
}

func TestLoginAfterOnboardingRedirectsToDashboard(t *testing.T) {
	db := newTestDB(t)
	router := newAuthRouter(t, db)

	body := `{"email": "done@example.com", "password": "correcthorse", "user_type": "candidate"}`
	if rec := postJSON(router, "/api/mobile/auth/register", body); rec.Code != http.StatusCreated {
		t.Fatalf("register: %d", rec.Code)
	}
	if err := db.Model(&database.User{}).Where("email = ?", "done@example.com").
		Update("onboarded", true).Error; err != nil {
		t.Fatalf("mark onboarded: %v", err)
	}

	rec := postJSON(router, "/api/mobile/auth/login",
		`{"email": "done@example.com", "password": "correcthorse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Redirect string `json:"redirect"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Redirect != redirectDashboard {
		t.Fatalf("redirect = %q, want %q after onboarding", resp.Redirect, redirectDashboard)
	}
}

func TestLoginWrongPasswordUnauthorized(t *testing.T) {
	db := newTestDB(t)
	router := newAuthRouter(t, db)

	body := `{"email": "user@example.com", "password": "correcthorse", "user_type": "candidate"}`
	if rec := postJSON(router, "/api/mobile/auth/register", body); rec.Code != http.StatusCreated {
		t.Fatalf("register: %d", rec.Code)
	}

	rec := postJSON(router, "/api/mobile/auth/login",
		`{"email": "user@example.com", "password": "wrongpassword"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMeReturnsAccount(t *testing.T) {
	db := newTestDB(t)
	router := newAuthRouter(t, db)

	rec := postJSON(router, "/api/mobile/auth/register",
		`{"email": "me@example.com", "password": "correcthorse", "user_type": "candidate"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d", rec.Code)
	}
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/mobile/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	meRec := httptest.NewRecorder()
	router.ServeHTTP(meRec, req)

	if meRec.Code != http.StatusOK {
		t.Fatalf("me status = %d, body %s", meRec.Code, meRec.Body.String())
	}
	var me struct {
		Email     string `json:"email"`
		UserType  string `json:"user_type"`
		Onboarded bool   `json:"onboarded"`
	}
	if err := json.Unmarshal(meRec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Email != "me@example.com" || me.UserType != database.UserTypeCandidate || me.Onboarded {
		t.Fatalf("me = %+v", me)
	}
}

func TestMeWithoutTokenUnauthorized(t *testing.T) {
	db := newTestDB(t)
	router := newAuthRouter(t, db)

	req := httptest.NewRequest(http.MethodGet, "/api/mobile/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
