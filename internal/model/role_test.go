package model

import "testing"

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
	}{
		{"doctor", RoleDoctor},
		{"DOCTOR", RoleDoctor},
		{"  Doctor ", RoleDoctor},
		{"lab_owner", RoleLabOwner},
		{"labowner", RoleLabOwner},
		{"admin", RoleAdmin},
		{"staff", RoleStaff},
		{"patient", RolePatient},
		// anything unrecognised falls back to PATIENT rather than erroring
		{"superhero", RolePatient},
		{"", RolePatient},
		{"ADMIN ", RoleAdmin},
	}
	for _, tc := range cases {
		if got := ParseRole(tc.in); got != tc.want {
			t.Errorf("ParseRole(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestRoleIn(t *testing.T) {
	if !RoleAdmin.In(RoleAdmin, RoleStaff) {
		t.Error("ADMIN should be in {ADMIN, STAFF}")
	}
	if RolePatient.In(RoleAdmin, RoleStaff) {
		t.Error("PATIENT should not be in {ADMIN, STAFF}")
	}
	if RolePatient.In() {
		t.Error("empty set contains nothing")
	}
}
