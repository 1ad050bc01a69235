package wizard

import (
	"errors"
	"testing"
)

func TestNextFollowsDeclaredOrder(t *testing.T) {
	want := map[string]string{
		StepPersonalDetails:     StepProfessionalSummary,
		StepProfessionalSummary: StepEmploymentHistory,
		StepEmploymentHistory:   StepEducation,
		StepEducation:           StepLanguages,
		StepLanguages:           StepSkills,
	}
	for current, expected := range want {
		next, err := Next(current)
		if err != nil {
			t.Fatalf("Next(%q): %v", current, err)
		}
		if next != expected {
			t.Errorf("Next(%q) = %q, want %q", current, next, expected)
		}
	}
}

func TestNextSkillsIsTerminal(t *testing.T) {
	if _, err := Next(StepSkills); !errors.Is(err, ErrTerminalStep) {
		t.Fatalf("Next(skills) error = %v, want ErrTerminalStep", err)
	}
	if !IsTerminal(StepSkills) {
		t.Fatal("IsTerminal(skills) = false, want true")
	}
	if IsTerminal(StepLanguages) {
		t.Fatal("IsTerminal(languages) = true, want false")
	}
}

func TestNextUnknownStep(t *testing.T) {
	if _, err := Next("cover-letter"); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("Next(unknown) error = %v, want ErrInvalidStep", err)
	}
}

func TestProgressValues(t *testing.T) {
	cases := map[string]int{
		StepPersonalDetails:     15,
		StepProfessionalSummary: 30,
		StepEmploymentHistory:   50,
		StepEducation:           70,
		StepLanguages:           85,
		StepSkills:              100,
	}
	for step, want := range cases {
		got, err := Progress(step)
		if err != nil {
			t.Fatalf("Progress(%q): %v", step, err)
		}
		if got != want {
			t.Errorf("Progress(%q) = %d, want %d", step, got, want)
		}
	}

	if _, err := Progress("unknown"); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("Progress(unknown) error = %v, want ErrInvalidStep", err)
	}
}

func TestStepsEndWithSkills(t *testing.T) {
	steps := Steps()
	if len(steps) == 0 {
		t.Fatal("Steps() returned no steps")
	}
	if steps[len(steps)-1] != StepSkills {
		t.Fatalf("last step = %q, want %q", steps[len(steps)-1], StepSkills)
	}
}
