// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockEmployeeStore is a mock implementation of database.EmployeeStore
type MockEmployeeStore struct {
	mu        sync.RWMutex
	employees map[int64]*database.Employee
	nextID    int64

	// Error injection
	CreateError error
	GetError    error
	ListError   error
	UpdateError error
	DeleteError error
	CountError  error
}

// NewMockEmployeeStore creates a new mock employee store
func NewMockEmployeeStore() *MockEmployeeStore {
	return &MockEmployeeStore{
		employees: make(map[int64]*database.Employee),
		nextID:    1,
	}
}

// AddEmployee adds an employee to the mock store, assigning an ID when missing
func (m *MockEmployeeStore) AddEmployee(e database.Employee) *database.Employee {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == 0 {
		e.ID = m.nextID
	}
	if e.ID >= m.nextID {
		m.nextID = e.ID + 1
	}
	m.employees[e.ID] = &e
	return &e
}

// Create inserts an employee
func (m *MockEmployeeStore) Create(ctx context.Context, e *database.Employee) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.UserID != nil {
		for _, other := range m.employees {
			if other.UserID != nil && *other.UserID == *e.UserID {
				return fmt.Errorf("%w: employees_user_id_key", database.ErrConflict)
			}
		}
	}
	e.ID = m.nextID
	m.nextID++
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	m.employees[e.ID] = &cp
	return nil
}

// Get retrieves an employee by ID
func (m *MockEmployeeStore) Get(ctx context.Context, id int64) (*database.Employee, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// List returns a page of employees filtered by normalized name
func (m *MockEmployeeStore) List(ctx context.Context, name string, req database.PageRequest) (database.Page[database.Employee], error) {
	if m.ListError != nil {
		return database.Page[database.Employee]{}, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	filter := database.NormalizeName(name)
	var matched []database.Employee
	for _, e := range m.employees {
		if strings.Contains(database.NormalizeName(e.Name), filter) {
			matched = append(matched, *e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	return database.NewPage(paginate(matched, req), int64(len(matched)), req), nil
}

// Update replaces an employee
func (m *MockEmployeeStore) Update(ctx context.Context, e *database.Employee) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.employees[e.ID]
	if !ok {
		return database.ErrNotFound
	}
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = time.Now()
	cp := *e
	m.employees[e.ID] = &cp
	return nil
}

// Delete removes an employee
func (m *MockEmployeeStore) Delete(ctx context.Context, id int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.employees, id)
	return nil
}

// Count returns the number of employees
func (m *MockEmployeeStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.employees), nil
}

func (m *MockEmployeeStore) name(id int64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return "", false
	}
	return e.Name, true
}

// MockUserStore is a mock implementation of database.UserStore
type MockUserStore struct {
	mu     sync.RWMutex
	users  map[int64]*database.User
	roles  map[database.Role]bool
	nextID int64

	// Error injection
	CreateError error
	GetError    error
	ListError   error
	UpdateError error
	DeleteError error
	ExistsError error
}

// NewMockUserStore creates a new mock user store with both default roles present
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{
		users:  make(map[int64]*database.User),
		roles:  map[database.Role]bool{database.RoleAdmin: true, database.RoleUser: true},
		nextID: 1,
	}
}

// AddUser adds a user to the mock store
func (m *MockUserStore) AddUser(u database.User) *database.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.nextID
	}
	if u.ID >= m.nextID {
		m.nextID = u.ID + 1
	}
	m.users[u.ID] = &u
	return &u
}

// EnsureRoles records the roles
func (m *MockUserStore) EnsureRoles(ctx context.Context, roles ...database.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range roles {
		m.roles[r] = true
	}
	return nil
}

func (m *MockUserStore) checkUnique(u *database.User) error {
	for _, other := range m.users {
		if other.ID == u.ID {
			continue
		}
		if other.Username == u.Username {
			return fmt.Errorf("%w: users_username_key", database.ErrConflict)
		}
		if other.Email == u.Email {
			return fmt.Errorf("%w: users_email_key", database.ErrConflict)
		}
	}
	for _, r := range u.Roles {
		if !m.roles[r] {
			return fmt.Errorf("%w: unknown role %s", database.ErrNotFound, r)
		}
	}
	return nil
}

// Create inserts a user
func (m *MockUserStore) Create(ctx context.Context, u *database.User) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUnique(u); err != nil {
		return err
	}
	u.ID = m.nextID
	m.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	cp.Roles = append([]database.Role(nil), u.Roles...)
	m.users[u.ID] = &cp
	return nil
}

// Get retrieves a user by ID
func (m *MockUserStore) Get(ctx context.Context, id int64) (*database.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetByUsername retrieves a user by username
func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*database.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

// ExistsByUsername reports whether the username is taken
func (m *MockUserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.ExistsError != nil {
		return false, m.ExistsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

// ExistsByEmail reports whether the email is taken
func (m *MockUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.ExistsError != nil {
		return false, m.ExistsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// List returns all users ordered by ID
func (m *MockUserStore) List(ctx context.Context) ([]database.User, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]database.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Update replaces a user
func (m *MockUserStore) Update(ctx context.Context, u *database.User) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.users[u.ID]
	if !ok {
		return database.ErrNotFound
	}
	if err := m.checkUnique(u); err != nil {
		return err
	}
	u.CreatedAt = old.CreatedAt
	u.UpdatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

// Delete removes a user
func (m *MockUserStore) Delete(ctx context.Context, id int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// MockAttendanceStore is a mock implementation of database.AttendanceStore.
// When Employees is set, records are joined with employee names and
// unknown employees are rejected like the foreign key would.
type MockAttendanceStore struct {
	mu      sync.RWMutex
	records map[int64]*database.Attendance
	nextID  int64

	Employees *MockEmployeeStore

	// Error injection
	CreateError   error
	GetError      error
	ListError     error
	FindOpenError error
	UpdateError   error
	DeleteError   error
}

// NewMockAttendanceStore creates a new mock attendance store
func NewMockAttendanceStore(employees *MockEmployeeStore) *MockAttendanceStore {
	return &MockAttendanceStore{
		records:   make(map[int64]*database.Attendance),
		nextID:    1,
		Employees: employees,
	}
}

// AddAttendance adds a record to the mock store
func (m *MockAttendanceStore) AddAttendance(a database.Attendance) *database.Attendance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == 0 {
		a.ID = m.nextID
	}
	if a.ID >= m.nextID {
		m.nextID = a.ID + 1
	}
	m.records[a.ID] = &a
	return &a
}

func (m *MockAttendanceStore) join(a *database.Attendance) error {
	if m.Employees == nil {
		return nil
	}
	name, ok := m.Employees.name(a.EmployeeID)
	if !ok {
		return fmt.Errorf("%w: attendances_employee_id_fkey", database.ErrNotFound)
	}
	a.EmployeeName = name
	return nil
}

// Create inserts a record
func (m *MockAttendanceStore) Create(ctx context.Context, a *database.Attendance) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	if err := m.join(a); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.nextID
	m.nextID++
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.records[a.ID] = &cp
	return nil
}

// Get retrieves a record by ID
func (m *MockAttendanceStore) Get(ctx context.Context, id int64) (*database.Attendance, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.records[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// newestFirst returns matching records ordered by check-in descending
func (m *MockAttendanceStore) newestFirst(match func(*database.Attendance) bool) []database.Attendance {
	var items []database.Attendance
	for _, a := range m.records {
		if match(a) {
			items = append(items, *a)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CheckIn.Equal(items[j].CheckIn) {
			return items[i].ID > items[j].ID
		}
		return items[i].CheckIn.After(items[j].CheckIn)
	})
	return items
}

// List returns a page of all records
func (m *MockAttendanceStore) List(ctx context.Context, req database.PageRequest) (database.Page[database.Attendance], error) {
	if m.ListError != nil {
		return database.Page[database.Attendance]{}, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.newestFirst(func(*database.Attendance) bool { return true })
	return database.NewPage(paginate(items, req), int64(len(items)), req), nil
}

// ListByEmployee returns a page of one employee's records
func (m *MockAttendanceStore) ListByEmployee(ctx context.Context, employeeID int64, req database.PageRequest) (database.Page[database.Attendance], error) {
	if m.ListError != nil {
		return database.Page[database.Attendance]{}, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.newestFirst(func(a *database.Attendance) bool { return a.EmployeeID == employeeID })
	return database.NewPage(paginate(items, req), int64(len(items)), req), nil
}

// ListBetween returns records with check-in in [from, to), oldest first
func (m *MockAttendanceStore) ListBetween(ctx context.Context, from, to time.Time) ([]database.Attendance, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.newestFirst(func(a *database.Attendance) bool {
		return !a.CheckIn.Before(from) && a.CheckIn.Before(to)
	})
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

// FindOpen returns the latest record without a check-out
func (m *MockAttendanceStore) FindOpen(ctx context.Context, employeeID int64) (*database.Attendance, error) {
	if m.FindOpenError != nil {
		return nil, m.FindOpenError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.newestFirst(func(a *database.Attendance) bool {
		return a.EmployeeID == employeeID && a.CheckOut == nil
	})
	if len(items) == 0 {
		return nil, database.ErrNotFound
	}
	return &items[0], nil
}

// Update replaces a record
func (m *MockAttendanceStore) Update(ctx context.Context, a *database.Attendance) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if err := m.join(a); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.records[a.ID]
	if !ok {
		return database.ErrNotFound
	}
	a.CheckIn = old.CheckIn
	a.CreatedAt = old.CreatedAt
	a.UpdatedAt = time.Now()
	cp := *a
	m.records[a.ID] = &cp
	return nil
}

// Delete removes a record
func (m *MockAttendanceStore) Delete(ctx context.Context, id int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

// MockTokenDenylist is a mock implementation of database.TokenDenylist
type MockTokenDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time

	RevokeError error
	CheckError  error
}

// NewMockTokenDenylist creates a new mock token denylist
func NewMockTokenDenylist() *MockTokenDenylist {
	return &MockTokenDenylist{revoked: make(map[string]time.Time)}
}

// Revoke marks a token ID as revoked
func (m *MockTokenDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if m.RevokeError != nil {
		return m.RevokeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = time.Now().Add(ttl)
	return nil
}

// IsRevoked reports whether a token ID is revoked and not yet expired
func (m *MockTokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if m.CheckError != nil {
		return false, m.CheckError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.revoked[jti]
	return ok && time.Now().Before(exp), nil
}

func paginate[T any](items []T, req database.PageRequest) []T {
	start := req.Offset()
	if start >= len(items) || req.Size <= 0 {
		return nil
	}
	end := start + req.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
