package rbac

import (
	"encoding/json"
	"fmt"
)

// Permission is one grant an admin account can hold.
type Permission string

const (
	ManageJobs         Permission = "MANAGE_JOBS"
	ManageApplications Permission = "MANAGE_APPLICATIONS"
	ManagePayments     Permission = "MANAGE_PAYMENTS"
	ManageUsers        Permission = "MANAGE_USERS"
)

// ParsePermission validates a raw permission string.
func ParsePermission(raw string) (Permission, error) {
	switch Permission(raw) {
	case ManageJobs, ManageApplications, ManagePayments, ManageUsers:
		return Permission(raw), nil
	default:
		return "", fmt.Errorf("unknown permission %q", raw)
	}
}

// Page identifies one protected back-office area.
type Page int

const (
	PageUnknown Page = iota
	PageJobs
	PageApplications
	PagePayments
	PageUsers
)

// PageFromPath maps a request path to a protected page. Paths that do not
// match any known page resolve to PageUnknown, which is always denied.
func PageFromPath(path string) Page {
	switch {
	case path == "/admin/jobs" || hasPagePrefix(path, "/admin/jobs/"):
		return PageJobs
	case path == "/admin/applications" || hasPagePrefix(path, "/admin/applications/"):
		return PageApplications
	case path == "/admin/payments" || hasPagePrefix(path, "/admin/payments/"):
		return PagePayments
	case path == "/admin/users" || hasPagePrefix(path, "/admin/users/"):
		return PageUsers
	default:
		return PageUnknown
	}
}

func hasPagePrefix(path, prefix string) bool {
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}

// requiredPermissions enumerates every declared page; a new page must be
// added here before any route can grant access to it.
func requiredPermissions(page Page) []Permission {
	switch page {
	case PageJobs:
		return []Permission{ManageJobs}
	case PageApplications:
		return []Permission{ManageApplications, ManageJobs}
	case PagePayments:
		return []Permission{ManagePayments}
	case PageUsers:
		return []Permission{ManageUsers}
	case PageUnknown:
		return nil
	default:
		return nil
	}
}

// CanAccessPage reports whether any held permission satisfies the page's
// required set. Unknown pages are denied.
func CanAccessPage(held []Permission, path string) bool {
	required := requiredPermissions(PageFromPath(path))
	if len(required) == 0 {
		return false
	}
	for _, need := range required {
		for _, have := range held {
			if have == need {
				return true
			}
		}
	}
	return false
}

// DecodePermissions parses the JSONB permission list stored on a user row.
// Unknown entries are dropped rather than failing the whole set.
func DecodePermissions(raw []byte) ([]Permission, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	perms := make([]Permission, 0, len(values))
	for _, v := range values {
		if p, err := ParsePermission(v); err == nil {
			perms = append(perms, p)
		}
	}
	return perms, nil
}

// EncodePermissions serializes a permission list for storage.
func EncodePermissions(perms []Permission) ([]byte, error) {
	values := make([]string, 0, len(perms))
	for _, p := range perms {
		values = append(values, string(p))
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode permissions: %w", err)
	}
	return data, nil
}
