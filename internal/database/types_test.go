package database

import (
	"encoding/json"
	"testing"
)

func TestNewPage(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		req       PageRequest
		wantPages int
	}{
		{"empty", 0, PageRequest{Page: 0, Size: 10}, 0},
		{"exact", 20, PageRequest{Page: 1, Size: 10}, 2},
		{"partial", 21, PageRequest{Page: 2, Size: 10}, 3},
		{"zero size", 5, PageRequest{Page: 0, Size: 0}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPage[int](nil, tc.total, tc.req)
			if p.TotalPages != tc.wantPages {
				t.Errorf("TotalPages = %d, want %d", p.TotalPages, tc.wantPages)
			}
			if p.Content == nil {
				t.Error("content should never be nil")
			}
			if p.Number != tc.req.Page || p.Size != tc.req.Size {
				t.Errorf("unexpected number/size: %d/%d", p.Number, p.Size)
			}
		})
	}
}

func TestPageRequestOffset(t *testing.T) {
	if got := (PageRequest{Page: 3, Size: 10}).Offset(); got != 30 {
		t.Errorf("Offset() = %d, want 30", got)
	}
}

func TestParseAttendanceStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   AttendanceStatus
		wantOK bool
	}{
		{"PRESENT", StatusPresent, true},
		{"late", StatusLate, true},
		{" Overtime ", StatusOvertime, true},
		{"ABSENT", StatusAbsent, true},
		{"HOLIDAY", "", false},
		{"", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseAttendanceStatus(tc.in)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("ParseAttendanceStatus(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestRoleFromRequest(t *testing.T) {
	tests := map[string]Role{
		"admin":      RoleAdmin,
		"ADMIN":      RoleAdmin,
		"ROLE_ADMIN": RoleAdmin,
		"user":       RoleUser,
		"mod":        RoleUser,
		"":           RoleUser,
	}
	for in, want := range tests {
		if got := RoleFromRequest(in); got != want {
			t.Errorf("RoleFromRequest(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseGender(t *testing.T) {
	if g, err := ParseGender("female"); err != nil || g != GenderFemale {
		t.Errorf("ParseGender(female) = %q, %v", g, err)
	}
	if g, err := ParseGender(""); err != nil || g != "" {
		t.Errorf("ParseGender(\"\") = %q, %v", g, err)
	}
	if _, err := ParseGender("robot"); err == nil {
		t.Error("expected error for unknown gender")
	}
}

func TestDateJSON(t *testing.T) {
	var e Employee
	if err := json.Unmarshal([]byte(`{"name":"Lan","dob":"1990-04-12"}`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.DOB == nil || e.DOB.String() != "1990-04-12" {
		t.Fatalf("unexpected dob: %v", e.DOB)
	}

	b, err := json.Marshal(e.DOB)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"1990-04-12"` {
		t.Errorf("marshal = %s", b)
	}

	if err := json.Unmarshal([]byte(`{"dob":"12/04/1990"}`), &e); err == nil {
		t.Error("expected error for invalid date")
	}
}

func TestUserPasswordNotSerialized(t *testing.T) {
	u := User{Username: "admin", PasswordHash: "secret-hash"}
	b, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	for k := range m {
		if k == "PasswordHash" || k == "password" {
			t.Errorf("password hash leaked as %q", k)
		}
	}
}

func TestHasRole(t *testing.T) {
	u := User{Roles: []Role{RoleUser}}
	if u.HasRole(RoleAdmin) {
		t.Error("user should not be admin")
	}
	if !u.HasRole(RoleUser) {
		t.Error("user should have ROLE_USER")
	}
}
