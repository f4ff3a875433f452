package domain

import "testing"

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]string{
		"Foo@Bar.com ":       "foo@bar.com",
		"  foo@bar.com":      "foo@bar.com",
		"FOO@BAR.COM":        "foo@bar.com",
		"already@normal.org": "already@normal.org",
	}
	for in, want := range cases {
		if got := NormalizeEmail(in); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeApplicationStatus(t *testing.T) {
	if got := NormalizeApplicationStatus(" Approved \n"); got != ApplicationApproved {
		t.Errorf("got %q", got)
	}
	if got := NormalizeApplicationStatus("ON_HOLD"); got != ApplicationStatus("on_hold") {
		t.Errorf("got %q", got)
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RolePartner, RoleCustomer} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	if Role("trainer").Valid() {
		t.Error("trainer should not be valid")
	}
}
