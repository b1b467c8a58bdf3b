package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint would be violated
	ErrConflict = errors.New("already exists")
)

// Role is an authorization role granted to a user
type Role string

const (
	RoleAdmin Role = "ROLE_ADMIN"
	RoleUser  Role = "ROLE_USER"
)

// RoleFromRequest maps a role requested at signup ("admin", "user") to a Role.
// Anything that is not "admin" falls back to RoleUser.
func RoleFromRequest(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", string(RoleAdmin):
		return RoleAdmin
	default:
		return RoleUser
	}
}

// User is an account that can log in
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasRole reports whether the user was granted the role
func (u *User) HasRole(r Role) bool {
	for _, role := range u.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// Gender of an employee
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOther  Gender = "OTHER"
)

// ParseGender parses a gender case-insensitively. Empty input yields an empty gender.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.ToUpper(strings.TrimSpace(s))); g {
	case "", GenderMale, GenderFemale, GenderOther:
		return g, nil
	default:
		return "", fmt.Errorf("invalid gender %q", s)
	}
}

// Date is a calendar date serialized as YYYY-MM-DD
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Employee is a person whose attendance is tracked
type Employee struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	DOB        *Date     `json:"dob,omitempty"`
	Gender     Gender    `json:"gender,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Department string    `json:"department,omitempty"`
	UserID     *int64    `json:"userId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AttendanceStatus classifies an attendance record
type AttendanceStatus string

const (
	StatusPresent  AttendanceStatus = "PRESENT"
	StatusLate     AttendanceStatus = "LATE"
	StatusAbsent   AttendanceStatus = "ABSENT"
	StatusOvertime AttendanceStatus = "OVERTIME"
)

// AttendanceStatuses lists every status in display order
var AttendanceStatuses = []AttendanceStatus{StatusPresent, StatusLate, StatusAbsent, StatusOvertime}

// ParseAttendanceStatus parses a status case-insensitively
func ParseAttendanceStatus(s string) (AttendanceStatus, bool) {
	st := AttendanceStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AttendanceStatuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// Attendance is one check-in, optionally closed by a check-out
type Attendance struct {
	ID           int64            `json:"id"`
	EmployeeID   int64            `json:"employeeId"`
	EmployeeName string           `json:"employeeName,omitempty"`
	CheckIn      time.Time        `json:"checkIn"`
	CheckOut     *time.Time       `json:"checkOut"`
	Status       AttendanceStatus `json:"status"`
	Note         string           `json:"note,omitempty"`
	OverTime     string           `json:"overTime,omitempty"`
	Location     string           `json:"location,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// Open reports whether the employee has not checked out yet
func (a *Attendance) Open() bool {
	return a.CheckOut == nil
}

// PageRequest selects a 0-based page of a listing
type PageRequest struct {
	Page int
	Size int
}

// Offset returns the number of rows to skip
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is one page of a listing
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

// NewPage assembles a page; content is never serialized as null
func NewPage[T any](content []T, total int64, req PageRequest) Page[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    pages,
		Number:        req.Page,
		Size:          req.Size,
	}
}
