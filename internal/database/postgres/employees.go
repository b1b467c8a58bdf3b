package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// EmployeeRepository provides PostgreSQL-backed employee storage
type EmployeeRepository struct {
	pool *Pool
}

// NewEmployeeRepository creates a new PostgreSQL employee repository
func NewEmployeeRepository(pool *Pool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

const employeeColumns = `id, name, dob, gender, image_url, department, user_id, created_at, updated_at`

// Create inserts an employee
func (r *EmployeeRepository) Create(ctx context.Context, e *database.Employee) error {
	query := `
		INSERT INTO employees (name, name_normalized, dob, gender, image_url, department, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		e.Name, database.NormalizeName(e.Name), dobValue(e.DOB), string(e.Gender),
		e.ImageURL, e.Department, e.UserID,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create employee: %w", mapError(err))
	}
	return nil
}

// Get retrieves an employee by ID
func (r *EmployeeRepository) Get(ctx context.Context, id int64) (*database.Employee, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
	e, err := scanEmployee(row)
	if err != nil {
		return nil, fmt.Errorf("get employee %d: %w", id, mapError(err))
	}
	return e, nil
}

// List returns a page of employees ordered by ID, optionally filtered by name
func (r *EmployeeRepository) List(ctx context.Context, name string, req database.PageRequest) (database.Page[database.Employee], error) {
	filter := database.NormalizeName(name)

	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM employees WHERE strpos(name_normalized, $1) > 0`, filter,
	).Scan(&total); err != nil {
		return database.Page[database.Employee]{}, fmt.Errorf("count employees: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE strpos(name_normalized, $1) > 0
		ORDER BY id
		LIMIT $2 OFFSET $3
	`, filter, req.Size, req.Offset())
	if err != nil {
		return database.Page[database.Employee]{}, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var employees []database.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return database.Page[database.Employee]{}, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, *e)
	}
	if err := rows.Err(); err != nil {
		return database.Page[database.Employee]{}, fmt.Errorf("iterate employees: %w", err)
	}

	return database.NewPage(employees, total, req), nil
}

// Update replaces the mutable fields of an employee
func (r *EmployeeRepository) Update(ctx context.Context, e *database.Employee) error {
	query := `
		UPDATE employees
		SET name = $2, name_normalized = $3, dob = $4, gender = $5, image_url = $6,
		    department = $7, user_id = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		e.ID, e.Name, database.NormalizeName(e.Name), dobValue(e.DOB), string(e.Gender),
		e.ImageURL, e.Department, e.UserID,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update employee %d: %w", e.ID, mapError(err))
	}
	return nil
}

// Delete removes an employee; attendance records cascade
func (r *EmployeeRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM employees WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete employee %d: %w", id, err)
	}
	if err := requireAffected(result); err != nil {
		return fmt.Errorf("delete employee %d: %w", id, err)
	}
	return nil
}

// Count returns the total number of employees
func (r *EmployeeRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM employees").Scan(&count); err != nil {
		return 0, fmt.Errorf("count employees: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*database.Employee, error) {
	var (
		e      database.Employee
		dob    sql.NullTime
		gender string
		userID sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.Name, &dob, &gender, &e.ImageURL, &e.Department, &userID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if dob.Valid {
		e.DOB = &database.Date{Time: dob.Time}
	}
	e.Gender = database.Gender(gender)
	if userID.Valid {
		id := userID.Int64
		e.UserID = &id
	}
	return &e, nil
}

func dobValue(d *database.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}
