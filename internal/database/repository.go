package database

import (
	"context"
	"time"
)

// EmployeeStore provides access to employees
type EmployeeStore interface {
	// Create inserts an employee and fills its ID and timestamps
	Create(ctx context.Context, e *Employee) error
	// Get returns an employee by ID or ErrNotFound
	Get(ctx context.Context, id int64) (*Employee, error)
	// List returns a page of employees whose normalized name contains the normalized filter
	List(ctx context.Context, name string, req PageRequest) (Page[Employee], error)
	// Update replaces the mutable fields of an employee, ErrNotFound if missing
	Update(ctx context.Context, e *Employee) error
	// Delete removes an employee and its attendance, ErrNotFound if missing
	Delete(ctx context.Context, id int64) error
	// Count returns the total number of employees
	Count(ctx context.Context) (int, error)
}

// UserStore provides access to user accounts and their roles
type UserStore interface {
	// Create inserts a user with its roles; ErrConflict on duplicate username or email
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]User, error)
	// Update replaces profile fields, password hash and roles
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
	// EnsureRoles creates the given roles if they are missing
	EnsureRoles(ctx context.Context, roles ...Role) error
}

// AttendanceStore provides access to attendance records
type AttendanceStore interface {
	// Create inserts a record and fills its ID, timestamps and employee name
	Create(ctx context.Context, a *Attendance) error
	Get(ctx context.Context, id int64) (*Attendance, error)
	// List returns a page of all records, newest check-in first
	List(ctx context.Context, req PageRequest) (Page[Attendance], error)
	// ListByEmployee returns a page of one employee's records, newest check-in first
	ListByEmployee(ctx context.Context, employeeID int64, req PageRequest) (Page[Attendance], error)
	// ListBetween returns records with check-in in [from, to), oldest first
	ListBetween(ctx context.Context, from, to time.Time) ([]Attendance, error)
	// FindOpen returns the latest record without check-out, or ErrNotFound
	FindOpen(ctx context.Context, employeeID int64) (*Attendance, error)
	// Update replaces employee, status, check-out, note, overtime and location
	Update(ctx context.Context, a *Attendance) error
	Delete(ctx context.Context, id int64) error
}

// TokenDenylist remembers revoked JWT IDs until they would have expired anyway
type TokenDenylist interface {
	// Revoke marks the token ID as revoked for ttl
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	// IsRevoked reports whether the token ID was revoked
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
