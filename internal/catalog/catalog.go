package catalog

import "errors"

// ErrUnknownService is returned when a checkout names a service id that is
// not in the catalog.
var ErrUnknownService = errors.New("unknown service")

// UnlockKind selects which effect a completed payment applies.
type UnlockKind int

const (
	// UnlockResumeDownload flips the payment flag on a resume draft.
	UnlockResumeDownload UnlockKind = iota
	// UnlockApplyCredits raises the user's easy-apply credit counter.
	UnlockApplyCredits
	// UnlockSubscription creates or extends a premium subscription.
	UnlockSubscription
)

// Service is one purchasable premium offering. The catalog is static
// configuration, not persisted state.
type Service struct {
	ID            string
	Title         string
	AmountFils    int64 // AED minor units
	Currency      string
	Unlock        UnlockKind
	Credits       int // only for UnlockApplyCredits
	PeriodDays    int // only for UnlockSubscription
	RequiresDraft bool
}

var services = []Service{
	{
		ID:            "resume-pro",
		Title:         "AI Resume PDF",
		AmountFils:    4900,
		Currency:      "AED",
		Unlock:        UnlockResumeDownload,
		RequiresDraft: true,
	},
	{
		ID:         "ai-apply-50",
		Title:      "50 Easy Apply Credits",
		AmountFils: 2900,
		Currency:   "AED",
		Unlock:     UnlockApplyCredits,
		Credits:    50,
	},
	{
		ID:         "premium-monthly",
		Title:      "Premium Monthly",
		AmountFils: 9900,
		Currency:   "AED",
		Unlock:     UnlockSubscription,
		PeriodDays: 30,
	},
}

// Lookup resolves a service id against the static catalog.
func Lookup(id string) (Service, error) {
	for _, s := range services {
		if s.ID == id {
			return s, nil
		}
	}
	return Service{}, ErrUnknownService
}

// All returns the catalog for listing endpoints.
func All() []Service {
	out := make([]Service, len(services))
	copy(out, services)
	return out
}
