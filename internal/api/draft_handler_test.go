package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tabashir/internal/api/middleware"
	"tabashir/internal/database"
	"tabashir/internal/payment"
)

func identityMiddleware(identity middleware.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("identity", identity)
		c.Next()
	}
}

func newDraftRouter(t *testing.T, db *gorm.DB, identity middleware.Identity) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewDraftHandler(db, newTestAsynqClient(), nil, nil, payment.NewGate(db), "", nil)

	router := gin.New()
	group := router.Group("/v1/resumes", identityMiddleware(identity))
	group.POST("", handler.CreateDraft)
	group.GET("", handler.ListDrafts)
	group.GET("/:id", handler.GetDraft)
	group.POST("/:id/steps/:step", handler.SubmitStep)
	group.GET("/:id/download", handler.Download)
	return router
}

func seedCandidateWithDraft(t *testing.T, db *gorm.DB) (database.User, database.ResumeDraft) {
	t.Helper()
	user := database.User{Email: "candidate@example.com", UserType: database.UserTypeCandidate}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	draft := database.ResumeDraft{UserID: user.ID, Title: "My Resume"}
	if err := db.Create(&draft).Error; err != nil {
		t.Fatalf("seed draft: %v", err)
	}
	return user, draft
}

func identityFor(user database.User) middleware.Identity {
	return middleware.Identity{UserID: user.ID, Email: user.Email, UserType: user.UserType}
}

func postJSON(router *gin.Engine, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitStepPersistsSectionAndProgress(t *testing.T) {
	db := newTestDB(t)
	user, draft := seedCandidateWithDraft(t, db)
	router := newDraftRouter(t, db, identityFor(user))

	payloadJSON := `{
		"full_name": "Amina Hassan",
		"email": "amina@example.com",
		"phone": "+971501234567",
		"city": "Dubai",
		"country": "AE"
	}`
	rec := postJSON(router, "/v1/resumes/1/steps/personal-details", payloadJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Progress int    `json:"progress"`
		Next     string `json:"next"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Progress != 15 {
		t.Errorf("progress = %d, want 15", resp.Progress)
	}
	if resp.Next != "/resumes/1/steps/professional-summary" {
		t.Errorf("next = %q, want professional-summary route", resp.Next)
	}

	var sections []database.DraftSection
	if err := db.Where("resume_draft_id = ?", draft.ID).Find(&sections).Error; err != nil {
		t.Fatalf("load sections: %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(sections))
	}

	var got database.ResumeDraft
	if err := db.First(&got, draft.ID).Error; err != nil {
		t.Fatalf("reload draft: %v", err)
	}
	if got.Progress != 15 {
		t.Errorf("draft progress = %d, want 15", got.Progress)
	}
}

func TestSubmitStepResubmissionOverwrites(t *testing.T) {
	db := newTestDB(t)
	user, draft := seedCandidateWithDraft(t, db)
	router := newDraftRouter(t, db, identityFor(user))

	summary := `{"summary": "Seasoned backend engineer with ten years of Go."}`
	if rec := postJSON(router, "/v1/resumes/1/steps/professional-summary", summary); rec.Code != http.StatusOK {
		t.Fatalf("first submit: %d %s", rec.Code, rec.Body.String())
	}

	updated := `{"summary": "Backend engineer focused on payments and infrastructure."}`
	if rec := postJSON(router, "/v1/resumes/1/steps/professional-summary", updated); rec.Code != http.StatusOK {
		t.Fatalf("second submit: %d %s", rec.Code, rec.Body.String())
	}

	var sections []database.DraftSection
	if err := db.Where("resume_draft_id = ?", draft.ID).Find(&sections).Error; err != nil {
		t.Fatalf("load sections: %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("sections = %d, want 1 (resubmission overwrites)", len(sections))
	}
	if !bytes.Contains(sections[0].Payload, []byte("payments")) {
		t.Fatalf("section payload not overwritten: %s", sections[0].Payload)
	}
}

func TestSubmitStepLowersProgressOnEarlierStep(t *testing.T) {
	db := newTestDB(t)
	user, draft := seedCandidateWithDraft(t, db)
	router := newDraftRouter(t, db, identityFor(user))

	summary := `{"summary": "Seasoned backend engineer with ten years of Go."}`
	if rec := postJSON(router, "/v1/resumes/1/steps/professional-summary", summary); rec.Code != http.StatusOK {
		t.Fatalf("summary submit: %d", rec.Code)
	}

	personal := `{
		"full_name": "Amina Hassan",
		"email": "amina@example.com",
		"phone": "+971501234567",
		"city": "Dubai",
		"country": "AE"
	}`
	if rec := postJSON(router, "/v1/resumes/1/steps/personal-details", personal); rec.Code != http.StatusOK {
		t.Fatalf("personal submit: %d", rec.Code)
	}

	var got database.ResumeDraft
	if err := db.First(&got, draft.ID).Error; err != nil {
		t.Fatalf("reload draft: %v", err)
	}
	if got.Progress != 15 {
		t.Fatalf("progress = %d, want 15 (earlier step lowers progress)", got.Progress)
	}
}

func TestSubmitStepInvalidPayloadRejected(t *testing.T) {
	db := newTestDB(t)
	user, draft := seedCandidateWithDraft(t, db)
	router := newDraftRouter(t, db, identityFor(user))

	rec := postJSON(router, "/v1/resumes/1/steps/professional-summary", `{"summary": "too short"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var sections []database.DraftSection
	if err := db.Where("resume_draft_id = ?", draft.ID).Find(&sections).Error; err != nil {
		t.Fatalf("load sections: %v", err)
	}
	if len(sections) != 0 {
		t.Fatalf("sections = %d, rejected payload must not persist", len(sections))
	}
}

func TestSubmitStepUnknownStep(t *testing.T) {
	db := newTestDB(t)
	user, _ := seedCandidateWithDraft(t, db)
	router := newDraftRouter(t, db, identityFor(user))

	rec := postJSON(router, "/v1/resumes/1/steps/references", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSubmitStepForeignDraftIsNotFound(t *testing.T) {
	db := newTestDB(t)
	_, draft := seedCandidateWithDraft(t, db)

	other := database.User{Email: "other@example.com", UserType: database.UserTypeCandidate}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("seed other user: %v", err)
	}
	router := newDraftRouter(t, db, identityFor(other))

	summary := `{"summary": "Seasoned backend engineer with ten years of Go."}`
	rec := postJSON(router, "/v1/resumes/1/steps/professional-summary", summary)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for foreign draft", rec.Code)
	}

	var sections []database.DraftSection
	if err := db.Where("resume_draft_id = ?", draft.ID).Find(&sections).Error; err != nil {
		t.Fatalf("load sections: %v", err)
	}
	if len(sections) != 0 {
		t.Fatalf("sections = %d, foreign submit must not write", len(sections))
	}
}

func TestSubmitTerminalStepPointsAtDownload(t *testing.T) {
	db := newTestDB(t)
	user, _ := seedCandidateWithDraft(t, db)
	router := newDraftRouter(t, db, identityFor(user))

	rec := postJSON(router, "/v1/resumes/1/steps/skills", `{"skills": ["Go", "PostgreSQL"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Progress int    `json:"progress"`
		Next     string `json:"next"`
		Terminal bool   `json:"terminal"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Progress != 100 || !resp.Terminal {
		t.Fatalf("terminal response = %+v, want progress 100 and terminal", resp)
	}
	if resp.Next != "/resumes/1/download" {
		t.Fatalf("next = %q, want download route", resp.Next)
	}
}

func TestDownloadLockedDraftIsPaymentRequired(t *testing.T) {
	db := newTestDB(t)
	user, _ := seedCandidateWithDraft(t, db)
	router := newDraftRouter(t, db, identityFor(user))

	req := httptest.NewRequest(http.MethodGet, "/v1/resumes/1/download", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
}

func TestCreateDraftReturnsFirstStep(t *testing.T) {
	db := newTestDB(t)
	user := database.User{Email: "new@example.com", UserType: database.UserTypeCandidate}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	router := newDraftRouter(t, db, identityFor(user))

	rec := postJSON(router, "/v1/resumes", `{"title": "First Resume"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID       uint   `json:"id"`
		NextStep string `json:"next_step"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.NextStep != "/resumes/1/steps/personal-details" {
		t.Fatalf("next_step = %q, want personal-details route", resp.NextStep)
	}
}
