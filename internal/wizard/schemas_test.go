package wizard

import (
	"errors"
	"testing"
)

func TestDecodeStepPayloadValid(t *testing.T) {
	raw := []byte(`{
		"full_name": "Amina Hassan",
		"email": "amina@example.com",
		"phone": "+971501234567",
		"city": "Dubai",
		"country": "AE",
		"headline": "Backend Engineer"
	}`)
	out, err := DecodeStepPayload(StepPersonalDetails, raw)
	if err != nil {
		t.Fatalf("DecodeStepPayload: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("DecodeStepPayload returned empty payload")
	}
}

func TestDecodeStepPayloadRejectsBadPhone(t *testing.T) {
	raw := []byte(`{
		"full_name": "Amina Hassan",
		"email": "amina@example.com",
		"phone": "not-a-phone",
		"city": "Dubai",
		"country": "AE"
	}`)
	_, err := DecodeStepPayload(StepPersonalDetails, raw)
	var vErr *ErrValidationFailed
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *ErrValidationFailed", err)
	}
	if vErr.Step != StepPersonalDetails {
		t.Errorf("failed step = %q, want %q", vErr.Step, StepPersonalDetails)
	}
}

func TestDecodeStepPayloadRejectsMalformedJSON(t *testing.T) {
	_, err := DecodeStepPayload(StepSkills, []byte(`{"skills": [`))
	var vErr *ErrValidationFailed
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *ErrValidationFailed", err)
	}
}

func TestDecodeStepPayloadRejectsEmptyEmployment(t *testing.T) {
	_, err := DecodeStepPayload(StepEmploymentHistory, []byte(`{"entries": []}`))
	var vErr *ErrValidationFailed
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *ErrValidationFailed", err)
	}
}

func TestDecodeStepPayloadUnknownStep(t *testing.T) {
	_, err := DecodeStepPayload("references", []byte(`{}`))
	if !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("error = %v, want ErrInvalidStep", err)
	}
}

func TestDecodeStepPayloadLanguageProficiency(t *testing.T) {
	good := []byte(`{"entries": [{"language": "Arabic", "proficiency": "native"}]}`)
	if _, err := DecodeStepPayload(StepLanguages, good); err != nil {
		t.Fatalf("valid languages payload rejected: %v", err)
	}

	bad := []byte(`{"entries": [{"language": "Arabic", "proficiency": "expert"}]}`)
	var vErr *ErrValidationFailed
	if _, err := DecodeStepPayload(StepLanguages, bad); !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *ErrValidationFailed", err)
	}
}
