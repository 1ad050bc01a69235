package wizard

import (
	"errors"
	"fmt"
)

// ErrInvalidStep is returned for step names outside the wizard's ordered list.
var ErrInvalidStep = errors.New("invalid wizard step")

// ErrTerminalStep signals that the given step is the last one.
var ErrTerminalStep = errors.New("terminal wizard step")

// Resume wizard step names, in submission order.
const (
	StepPersonalDetails     = "personal-details"
	StepProfessionalSummary = "professional-summary"
	StepEmploymentHistory   = "employment-history"
	StepEducation           = "education"
	StepLanguages           = "languages"
	StepSkills              = "skills"
)

// stepOrder fixes the wizard sequence and the progress value each step sets.
// Progress is the last step touched, not a high-water mark.
var stepOrder = []struct {
	Name     string
	Progress int
}{
	{StepPersonalDetails, 15},
	{StepProfessionalSummary, 30},
	{StepEmploymentHistory, 50},
	{StepEducation, 70},
	{StepLanguages, 85},
	{StepSkills, 100},
}

// Steps returns the ordered step names.
func Steps() []string {
	names := make([]string, len(stepOrder))
	for i, s := range stepOrder {
		names[i] = s.Name
	}
	return names
}

// Next returns the step following current, or ErrTerminalStep when current
// is the last step. Unknown names fail with ErrInvalidStep.
func Next(current string) (string, error) {
	for i, s := range stepOrder {
		if s.Name != current {
			continue
		}
		if i == len(stepOrder)-1 {
			return "", ErrTerminalStep
		}
		return stepOrder[i+1].Name, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStep, current)
}

// IsTerminal reports whether the step is the wizard's last.
func IsTerminal(step string) bool {
	return len(stepOrder) > 0 && stepOrder[len(stepOrder)-1].Name == step
}

// Progress returns the fixed progress value the step sets on submission.
func Progress(step string) (int, error) {
	for _, s := range stepOrder {
		if s.Name == step {
			return s.Progress, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStep, step)
}
