package wizard

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// ErrValidationFailed wraps schema rejections so handlers can map them to a
// 422 without inspecting validator internals.
type ErrValidationFailed struct {
	Step   string
	Reason string
}

func (e *ErrValidationFailed) Error() string {
	return fmt.Sprintf("step %q payload invalid: %s", e.Step, e.Reason)
}

var validate = validator.New()

// PersonalDetailsPayload is the first wizard step.
type PersonalDetailsPayload struct {
	FullName string `json:"full_name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,e164"`
	City     string `json:"city" validate:"required,max=128"`
	Country  string `json:"country" validate:"required,max=64"`
	Headline string `json:"headline" validate:"max=255"`
}

// ProfessionalSummaryPayload carries the free-text summary.
type ProfessionalSummaryPayload struct {
	Summary string `json:"summary" validate:"required,min=20,max=4000"`
}

// EmploymentEntry is one job in the employment history.
type EmploymentEntry struct {
	Title       string `json:"title" validate:"required,max=255"`
	Company     string `json:"company" validate:"required,max=255"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01"`
	EndDate     string `json:"end_date" validate:"omitempty,datetime=2006-01"`
	Current     bool   `json:"current"`
	Description string `json:"description" validate:"max=4000"`
}

// EmploymentHistoryPayload requires at least one entry.
type EmploymentHistoryPayload struct {
	Entries []EmploymentEntry `json:"entries" validate:"required,min=1,dive"`
}

// EducationEntry is one school record.
type EducationEntry struct {
	Institution string `json:"institution" validate:"required,max=255"`
	Degree      string `json:"degree" validate:"required,max=255"`
	Field       string `json:"field" validate:"max=255"`
	StartYear   int    `json:"start_year" validate:"required,min=1950,max=2100"`
	EndYear     int    `json:"end_year" validate:"omitempty,min=1950,max=2100"`
}

// EducationPayload requires at least one entry.
type EducationPayload struct {
	Entries []EducationEntry `json:"entries" validate:"required,min=1,dive"`
}

// LanguageEntry pairs a language with a proficiency level.
type LanguageEntry struct {
	Language    string `json:"language" validate:"required,max=64"`
	Proficiency string `json:"proficiency" validate:"required,oneof=basic conversational fluent native"`
}

// LanguagesPayload requires at least one entry.
type LanguagesPayload struct {
	Entries []LanguageEntry `json:"entries" validate:"required,min=1,dive"`
}

// SkillsPayload is the terminal step.
type SkillsPayload struct {
	Skills []string `json:"skills" validate:"required,min=1,max=50,dive,required,max=64"`
}

// DecodeStepPayload validates raw JSON against the step's schema and returns
// the canonical JSONB value to persist. Unknown steps fail with
// ErrInvalidStep; schema rejections fail with *ErrValidationFailed.
func DecodeStepPayload(step string, raw []byte) (datatypes.JSON, error) {
	target, err := payloadFor(step)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return nil, &ErrValidationFailed{Step: step, Reason: "malformed json"}
	}
	if err := validate.Struct(target); err != nil {
		return nil, &ErrValidationFailed{Step: step, Reason: err.Error()}
	}

	canonical, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("marshal step payload: %w", err)
	}
	return datatypes.JSON(canonical), nil
}

func payloadFor(step string) (any, error) {
	switch step {
	case StepPersonalDetails:
		return &PersonalDetailsPayload{}, nil
	case StepProfessionalSummary:
		return &ProfessionalSummaryPayload{}, nil
	case StepEmploymentHistory:
		return &EmploymentHistoryPayload{}, nil
	case StepEducation:
		return &EducationPayload{}, nil
	case StepLanguages:
		return &LanguagesPayload{}, nil
	case StepSkills:
		return &SkillsPayload{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStep, step)
	}
}
