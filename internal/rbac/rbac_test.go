package rbac

import "testing"

func TestCanAccessPage(t *testing.T) {
	cases := []struct {
		name string
		held []Permission
		path string
		want bool
	}{
		{"jobs permission opens jobs", []Permission{ManageJobs}, "/admin/jobs", true},
		{"jobs permission opens jobs subpath", []Permission{ManageJobs}, "/admin/jobs/42", true},
		{"jobs permission denied payments", []Permission{ManageJobs}, "/admin/payments", false},
		{"payments permission opens payments", []Permission{ManagePayments}, "/admin/payments", true},
		{"jobs permission also opens applications", []Permission{ManageJobs}, "/admin/applications", true},
		{"applications permission opens applications", []Permission{ManageApplications}, "/admin/applications/7", true},
		{"users requires users permission", []Permission{ManageJobs, ManagePayments}, "/admin/users", false},
		{"unknown page always denied", []Permission{ManageJobs, ManageApplications, ManagePayments, ManageUsers}, "/admin/settings", false},
		{"no permissions denied everywhere", nil, "/admin/jobs", false},
		{"prefix must match a segment", []Permission{ManageJobs}, "/admin/jobsarchive", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAccessPage(tc.held, tc.path); got != tc.want {
				t.Errorf("CanAccessPage(%v, %q) = %v, want %v", tc.held, tc.path, got, tc.want)
			}
		})
	}
}

func TestPageFromPath(t *testing.T) {
	if got := PageFromPath("/admin/payments/tx_123"); got != PagePayments {
		t.Errorf("PageFromPath(payments subpath) = %v, want PagePayments", got)
	}
	if got := PageFromPath("/api/mobile/me"); got != PageUnknown {
		t.Errorf("PageFromPath(non-admin) = %v, want PageUnknown", got)
	}
}

func TestParsePermission(t *testing.T) {
	if _, err := ParsePermission("MANAGE_JOBS"); err != nil {
		t.Fatalf("ParsePermission(MANAGE_JOBS): %v", err)
	}
	if _, err := ParsePermission("manage_jobs"); err == nil {
		t.Fatal("ParsePermission is case sensitive, lowercase should fail")
	}
	if _, err := ParsePermission("DELETE_EVERYTHING"); err == nil {
		t.Fatal("unknown permission should fail")
	}
}

func TestPermissionsRoundTrip(t *testing.T) {
	in := []Permission{ManageJobs, ManageUsers}
	raw, err := EncodePermissions(in)
	if err != nil {
		t.Fatalf("EncodePermissions: %v", err)
	}
	out, err := DecodePermissions(raw)
	if err != nil {
		t.Fatalf("DecodePermissions: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("round trip lost permissions: %v -> %v", in, out)
	}
}

func TestDecodePermissionsDropsUnknown(t *testing.T) {
	out, err := DecodePermissions([]byte(`["MANAGE_JOBS","SUDO","MANAGE_USERS"]`))
	if err != nil {
		t.Fatalf("DecodePermissions: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %v, want unknown entries dropped", out)
	}
}

func TestDecodePermissionsEmpty(t *testing.T) {
	out, err := DecodePermissions(nil)
	if err != nil {
		t.Fatalf("DecodePermissions(nil): %v", err)
	}
	if out != nil {
		t.Fatalf("DecodePermissions(nil) = %v, want nil", out)
	}
}
