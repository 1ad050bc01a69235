package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User account types.
const (
	UserTypeCandidate = "candidate"
	UserTypeRecruiter = "recruiter"
	UserTypeAdmin     = "admin"
)

// Payment lifecycle statuses.
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
)

// Application lifecycle statuses.
const (
	ApplicationStatusSubmitted = "submitted"
	ApplicationStatusReviewed  = "reviewed"
	ApplicationStatusAccepted  = "accepted"
	ApplicationStatusRejected  = "rejected"
)

// User is an account of any type. Admin accounts carry a permission list,
// candidate accounts carry an onboarding flag and purchased apply credits.
type User struct {
	gorm.Model
	Email          string         `gorm:"uniqueIndex;size:255"`
	PasswordHash   string         `gorm:"size:255"`
	UserType       string         `gorm:"size:32;index"`
	Onboarded      bool           `gorm:"default:false"`
	ApplyCredits   int            `gorm:"default:0"`
	Permissions    datatypes.JSON `gorm:"type:jsonb"`
	Profile        *CandidateProfile
	Jobs           []Job         `gorm:"foreignKey:RecruiterID"`
	ResumeDrafts   []ResumeDraft `gorm:"constraint:OnDelete:CASCADE"`
	Applications   []Application `gorm:"foreignKey:CandidateID;constraint:OnDelete:CASCADE"`
	Payments       []Payment
	Subscriptions  []Subscription
}

// CandidateProfile holds the onboarding wizard output for a candidate.
type CandidateProfile struct {
	gorm.Model
	UserID         uint   `gorm:"uniqueIndex"`
	FullName       string `gorm:"size:255"`
	Phone          string `gorm:"size:32"`
	Nationality    string `gorm:"size:64"`
	CurrentCity    string `gorm:"size:128"`
	DesiredTitle   string `gorm:"size:255"`
	DesiredSalary  int
	NoticePeriod   string         `gorm:"size:64"`
	JobPreferences datatypes.JSON `gorm:"type:jsonb"`
}

// Job is a posting owned by a recruiter.
type Job struct {
	gorm.Model
	Title        string `gorm:"size:255;index"`
	Company      string `gorm:"size:255"`
	Location     string `gorm:"size:255;index"`
	Description  string `gorm:"type:text"`
	SalaryMin    int
	SalaryMax    int
	JobType      string `gorm:"size:32;index"`
	Status       string `gorm:"size:32;index;default:open"`
	EasyApply    bool   `gorm:"default:true"`
	RecruiterID  uint   `gorm:"index"`
	Applications []Application
}

// Application is a candidate's submission against a job.
type Application struct {
	gorm.Model
	JobID       uint `gorm:"index;uniqueIndex:idx_job_candidate"`
	CandidateID uint `gorm:"index;uniqueIndex:idx_job_candidate"`
	Job         Job  `gorm:"constraint:OnDelete:CASCADE"`
	Status      string `gorm:"size:32;index;default:submitted"`
	CoverNote   string `gorm:"type:text"`
	CVObjectKey string `gorm:"size:512"`
}

// ResumeDraft is an in-progress resume assembled by the step wizard.
// Progress reflects the step that last completed, not a high-water mark;
// resubmitting an earlier step lowers it.
type ResumeDraft struct {
	gorm.Model
	UserID           uint           `gorm:"index"`
	Title            string         `gorm:"size:255"`
	Progress         int            `gorm:"default:0"`
	PaymentCompleted bool           `gorm:"default:false"`
	PaymentAmount    int64
	PaymentDate      *time.Time
	PdfObjectKey     string         `gorm:"size:512"`
	Status           string         `gorm:"size:32;default:draft"`
	Sections         []DraftSection `gorm:"constraint:OnDelete:CASCADE"`
}

// DraftSection stores one wizard step's payload. One row per (draft, step);
// a resubmitted step overwrites its row.
type DraftSection struct {
	gorm.Model
	ResumeDraftID uint           `gorm:"index;uniqueIndex:idx_draft_step"`
	Step          string         `gorm:"size:64;uniqueIndex:idx_draft_step"`
	Payload       datatypes.JSON `gorm:"type:jsonb"`
}

// Payment records a provider-confirmed charge. TransactionID is the
// provider's id (Stripe session / Ziina payment intent) and is unique so
// replayed webhook events cannot create a second row.
type Payment struct {
	gorm.Model
	UserID        uint   `gorm:"index"`
	ResumeDraftID *uint  `gorm:"index"`
	ServiceID     string `gorm:"size:64;index"`
	Provider      string `gorm:"size:32"`
	TransactionID string `gorm:"size:255;uniqueIndex"`
	Amount        int64
	Currency      string `gorm:"size:8"`
	Status        string `gorm:"size:16;index"`
	PaidAt        *time.Time
}

// Subscription grants time-boxed premium access.
type Subscription struct {
	gorm.Model
	UserID    uint   `gorm:"index"`
	ServiceID string `gorm:"size:64"`
	ExpiresAt time.Time
}

// Active reports whether the subscription covers the given instant.
func (s Subscription) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
